// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package statsimport periodically refreshes swarm statistics from the
// tracker and reports its own liveness through a loopback health endpoint.
package statsimport

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/bitdex/bitdex/internal/models"
	"github.com/bitdex/bitdex/internal/tracker"
	"github.com/bitdex/bitdex/pkg/httphelpers"
)

// batchSize caps how many torrents one tick refreshes. A slow tracker delays
// the next tick instead of growing a queue.
const batchSize = 500

type Config struct {
	// Interval between refresh ticks.
	Interval time.Duration
	// HeartbeatURL is where ticks POST their liveness signal.
	HeartbeatURL string
	// TrackerURL keys the stats rows.
	TrackerURL string
}

type Importer struct {
	log     zerolog.Logger
	store   *models.TorrentStore
	tracker *tracker.Client
	config  Config
	http    *http.Client
	now     func() time.Time
}

func NewImporter(log zerolog.Logger, store *models.TorrentStore, trackerClient *tracker.Client, config Config) *Importer {
	return &Importer{
		log:     log.With().Str("module", "statsimport").Logger(),
		store:   store,
		tracker: trackerClient,
		config:  config,
		http:    &http.Client{Timeout: 5 * time.Second},
		now:     time.Now,
	}
}

// Run ticks until the context is cancelled. Tick errors are logged, never
// propagated; the loop always reaches the next tick.
func (i *Importer) Run(ctx context.Context) error {
	i.log.Info().Dur("interval", i.config.Interval).Msg("statistics importer started")

	ticker := time.NewTicker(i.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			i.log.Info().Msg("statistics importer stopped")
			return ctx.Err()
		case <-ticker.C:
			i.heartbeat(ctx)
			if err := i.Tick(ctx); err != nil {
				i.log.Error().Err(err).Msg("statistics refresh failed")
			}
		}
	}
}

// heartbeat signals liveness to the health endpoint. Delivery failure is
// logged and otherwise ignored; a missed heartbeat only flips the health
// check, it never stops the importer.
func (i *Importer) heartbeat(ctx context.Context) {
	if i.config.HeartbeatURL == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.config.HeartbeatURL, nil)
	if err != nil {
		i.log.Error().Err(err).Msg("failed to build heartbeat request")
		return
	}

	resp, err := i.http.Do(req)
	if err != nil {
		i.log.Error().Err(err).Msg("failed to send heartbeat")
		return
	}
	httphelpers.DrainAndClose(resp.Body)
}

// Tick refreshes one batch of torrents whose stats are older than the
// configured interval. Torrents the tracker does not know are recorded with
// zero counts so they age out of the stale batch.
func (i *Importer) Tick(ctx context.Context) error {
	cutoff := i.now().Add(-i.config.Interval)

	stale, err := i.store.StatsStaleBefore(ctx, cutoff, batchSize)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	hashes := make([]string, 0, len(stale))
	for _, st := range stale {
		hashes = append(hashes, st.InfoHash)
	}

	byHash := make(map[string]tracker.TorrentInfo)
	infos, err := i.tracker.GetTorrentsInfo(ctx, hashes)
	if err != nil {
		// The tracker being down still zeroes nothing; keep stored counts
		// and try again next tick.
		return err
	}
	for _, info := range infos {
		byHash[info.InfoHash] = info
	}

	var updated int
	for _, st := range stale {
		seeders, leechers := int64(0), int64(0)
		if info, ok := byHash[st.InfoHash]; ok {
			seeders, leechers = info.Seeders, info.Leechers
		}
		if err := i.store.UpsertTrackerStats(ctx, st.ID, i.config.TrackerURL, seeders, leechers); err != nil {
			i.log.Error().Err(err).Int64("torrentId", st.ID).Msg("failed to persist stats")
			continue
		}
		updated++
	}

	i.log.Debug().Int("batch", len(stale)).Int("updated", updated).Msg("statistics batch refreshed")
	return nil
}
