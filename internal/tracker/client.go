// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package tracker talks to the remote BitTorrent tracker's management API:
// whitelisting info-hashes, issuing per-user announce keys and pulling swarm
// statistics.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"

	"github.com/bitdex/bitdex/pkg/httphelpers"
)

var (
	ErrTrackerOffline       = errors.New("tracker: unreachable")
	ErrInvalidTrackerToken  = errors.New("tracker: admin token rejected")
	ErrTorrentNotRegistered = errors.New("tracker: torrent not known")
	ErrUnexpectedResponse   = errors.New("tracker: unexpected response")
)

// Modes the remote tracker can run in. Listening modes need a personal key
// in the announce URL, whitelisted modes need uploads whitelisted.
const (
	ModePublic             = "public"
	ModePrivate            = "private"
	ModeWhitelisted        = "whitelisted"
	ModePrivateWhitelisted = "private_whitelisted"
)

// Config describes the remote tracker.
type Config struct {
	Mode string
	// URL is the public announce base, e.g. udp://tracker.example.com:6969.
	URL string
	// APIURL is the management API base, e.g. http://localhost:1212.
	APIURL string
	// Token authenticates management API calls.
	Token string
	// TokenValidSeconds is the lifetime requested for issued announce keys.
	TokenValidSeconds int64
}

// IsPrivate reports whether announce URLs must carry a personal key.
func (c Config) IsPrivate() bool {
	return c.Mode == ModePrivate || c.Mode == ModePrivateWhitelisted
}

// IsWhitelisted reports whether info-hashes must be whitelisted to announce.
func (c Config) IsWhitelisted() bool {
	return c.Mode == ModeWhitelisted || c.Mode == ModePrivateWhitelisted
}

// Key is an announce key issued by the tracker.
type Key struct {
	Key        string `json:"key"`
	ValidUntil int64  `json:"valid_until"`
}

// Peer is one member of a swarm as reported by the tracker.
type Peer struct {
	PeerID     string `json:"peer_id"`
	IP         string `json:"ip"`
	Port       int    `json:"port"`
	Left       int64  `json:"left"`
	Downloaded int64  `json:"downloaded"`
	Uploaded   int64  `json:"uploaded"`
}

// TorrentInfo is the tracker's view of a single swarm.
type TorrentInfo struct {
	InfoHash  string `json:"info_hash"`
	Seeders   int64  `json:"seeders"`
	Leechers  int64  `json:"leechers"`
	Completed int64  `json:"completed"`
	Peers     []Peer `json:"peers"`
}

type Client struct {
	log    zerolog.Logger
	http   *http.Client
	config Config
}

func NewClient(log zerolog.Logger, config Config) *Client {
	return &Client{
		log:    log.With().Str("module", "tracker").Logger(),
		http:   &http.Client{Timeout: 15 * time.Second},
		config: config,
	}
}

func (c *Client) apiURL(path string) string {
	return strings.TrimRight(c.config.APIURL, "/") + "/api" + path + "?token=" + url.QueryEscape(c.config.Token)
}

// do runs a management API request with retries for transient failures.
// Authentication and not-found responses are terminal.
func (c *Client) do(ctx context.Context, method, requestURL string) ([]byte, error) {
	var body []byte

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, method, requestURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrTrackerOffline, err)
			}
			defer httphelpers.DrainAndClose(resp.Body)

			payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return fmt.Errorf("%w: read body: %v", ErrUnexpectedResponse, err)
			}

			switch {
			case resp.StatusCode == http.StatusOK:
				// The tracker reports some errors with a 200 and a plain
				// text body instead of a status code.
				if text := strings.TrimSpace(string(payload)); text == `"torrent not known"` {
					return retry.Unrecoverable(ErrTorrentNotRegistered)
				}
				body = payload
				return nil
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
				return retry.Unrecoverable(ErrInvalidTrackerToken)
			case resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(ErrTorrentNotRegistered)
			case resp.StatusCode >= 500:
				return fmt.Errorf("%w: status %d", ErrTrackerOffline, resp.StatusCode)
			default:
				return retry.Unrecoverable(fmt.Errorf("%w: status %d", ErrUnexpectedResponse, resp.StatusCode))
			}
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(250*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.Debug().Err(err).Uint("attempt", n+1).Str("url", requestURL).Msg("retrying tracker request")
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// WhitelistInfoHash registers a hash with the tracker's whitelist so peers
// can announce it.
func (c *Client) WhitelistInfoHash(ctx context.Context, infoHash string) error {
	_, err := c.do(ctx, http.MethodPost, c.apiURL("/whitelist/"+infoHash))
	return err
}

// RemoveInfoHash drops a hash from the whitelist. Used to compensate a
// failed upload and when a torrent is deleted.
func (c *Client) RemoveInfoHash(ctx context.Context, infoHash string) error {
	err := c.RemoveInfoHashStrict(ctx, infoHash)
	if errors.Is(err, ErrTorrentNotRegistered) {
		return nil
	}
	return err
}

func (c *Client) RemoveInfoHashStrict(ctx context.Context, infoHash string) error {
	_, err := c.do(ctx, http.MethodDelete, c.apiURL("/whitelist/"+infoHash))
	return err
}

// IssueKey asks the tracker for a fresh announce key.
func (c *Client) IssueKey(ctx context.Context) (*Key, error) {
	body, err := c.do(ctx, http.MethodPost, c.apiURL(fmt.Sprintf("/key/%d", c.config.TokenValidSeconds)))
	if err != nil {
		return nil, err
	}

	key := &Key{}
	if err := json.Unmarshal(body, key); err != nil {
		return nil, fmt.Errorf("%w: decode key: %v", ErrUnexpectedResponse, err)
	}
	if key.Key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrUnexpectedResponse)
	}
	return key, nil
}

// GetTorrentInfo fetches swarm statistics for one hash.
func (c *Client) GetTorrentInfo(ctx context.Context, infoHash string) (*TorrentInfo, error) {
	body, err := c.do(ctx, http.MethodGet, c.apiURL("/torrent/"+infoHash))
	if err != nil {
		return nil, err
	}

	info := &TorrentInfo{}
	if err := json.Unmarshal(body, info); err != nil {
		return nil, fmt.Errorf("%w: decode torrent info: %v", ErrUnexpectedResponse, err)
	}
	if info.InfoHash == "" {
		info.InfoHash = infoHash
	}
	return info, nil
}

// GetTorrentsInfo fetches swarm statistics for a batch of hashes in one
// round trip. Hashes the tracker does not know are absent from the result.
func (c *Client) GetTorrentsInfo(ctx context.Context, infoHashes []string) ([]TorrentInfo, error) {
	if len(infoHashes) == 0 {
		return nil, nil
	}

	requestURL := c.apiURL("/torrents")
	for _, hash := range infoHashes {
		requestURL += "&info_hash=" + url.QueryEscape(hash)
	}

	body, err := c.do(ctx, http.MethodGet, requestURL)
	if err != nil {
		return nil, err
	}

	var infos []TorrentInfo
	if err := json.Unmarshal(body, &infos); err != nil {
		return nil, fmt.Errorf("%w: decode torrent list: %v", ErrUnexpectedResponse, err)
	}
	return infos, nil
}
