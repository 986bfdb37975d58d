// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitdex/bitdex/internal/dbinterface"
	"github.com/bitdex/bitdex/internal/metainfo"
)

var (
	ErrTorrentNotFound           = errors.New("torrent not found")
	ErrInfoHashAlreadyExists     = errors.New("canonical info-hash already exists")
	ErrTorrentTitleAlreadyExists = errors.New("torrent title already exists")
	ErrInvalidCategoryReference  = errors.New("category does not exist")
	ErrInvalidSort               = errors.New("invalid sort field")
)

// TorrentFile is one file entry; Path is empty for single-file torrents.
type TorrentFile struct {
	Path   []string `json:"path"`
	Length int64    `json:"length"`
	MD5Sum string   `json:"md5sum,omitempty"`
}

type TorrentNode struct {
	Host string `json:"host"`
	Port int64  `json:"port"`
}

// Torrent is the fully loaded persistent record for a stored torrent.
type Torrent struct {
	ID          int64  `json:"torrent_id"`
	UploaderID  int64  `json:"uploader_id"`
	CategoryID  int64  `json:"category_id"`
	InfoHash    string `json:"info_hash"` // canonical, lowercase hex
	Size        int64  `json:"size"`
	Name        string `json:"name"`
	PiecesHex   string `json:"-"`
	RootHash    string `json:"-"`
	PieceLength int64  `json:"piece_length"`
	// PrivateFlag keeps the raw BEP-27 value: nil when the key was absent.
	// A present-but-zero flag must survive storage or the canonical hash
	// changes on re-encode.
	PrivateFlag  *int64    `json:"-"`
	Private      bool      `json:"private"`
	IsBEP30      bool      `json:"is_bep_30"`
	Source       string    `json:"source,omitempty"`
	Comment      string    `json:"comment,omitempty"`
	DateUploaded time.Time `json:"date_uploaded"`
	CreationDate int64     `json:"creation_date,omitempty"`
	CreatedBy    string    `json:"created_by,omitempty"`
	Encoding     string    `json:"encoding,omitempty"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Files        []TorrentFile `json:"files"`
	AnnounceURLs []string      `json:"announce_urls"`
	HTTPSeeds    []string      `json:"http_seeds,omitempty"`
	Nodes        []TorrentNode `json:"nodes,omitempty"`
	Tags         []*Tag        `json:"tags"`
}

// TorrentListing is the flattened search-result row with aggregated swarm
// counts across all tracker URLs.
type TorrentListing struct {
	ID           int64     `json:"torrent_id"`
	InfoHash     string    `json:"info_hash"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	CategoryName string    `json:"category"`
	Uploader     string    `json:"uploader"`
	Size         int64     `json:"size"`
	FileCount    int64     `json:"file_count"`
	Seeders      int64     `json:"seeders"`
	Leechers     int64     `json:"leechers"`
	DateUploaded time.Time `json:"date_uploaded"`
}

// AddTorrentParams carries everything the transactional insert needs.
type AddTorrentParams struct {
	UploaderID        int64
	CategoryID        int64
	Title             string
	Description       string
	TagIDs            []int64
	OriginalInfoHash  string
	CanonicalInfoHash string
	Meta              *metainfo.Torrent
}

// StaleTorrent identifies a torrent whose stats need a refresh.
type StaleTorrent struct {
	ID       int64
	InfoHash string
}

var sortClauses = map[string]string{
	"uploaded_asc":  "t.date_uploaded ASC",
	"uploaded_desc": "t.date_uploaded DESC",
	"seeders_asc":   "seeders ASC",
	"seeders_desc":  "seeders DESC",
	"leechers_asc":  "leechers ASC",
	"leechers_desc": "leechers DESC",
	"name_asc":      "ti.title COLLATE NOCASE ASC",
	"name_desc":     "ti.title COLLATE NOCASE DESC",
	"size_asc":      "t.size ASC",
	"size_desc":     "t.size DESC",
}

// SearchParams filters the torrent listing. Category and tag ids must be
// pre-validated by the caller; unknown names are dropped before they get here.
type SearchParams struct {
	Search      string
	CategoryIDs []int64
	TagIDs      []int64
	Sort        string
	Offset      int64
	Limit       int64
}

type TorrentStore struct {
	db     dbinterface.TxBeginner
	groups *InfoHashGroupStore
}

func NewTorrentStore(db dbinterface.TxBeginner) *TorrentStore {
	return &TorrentStore{db: db, groups: NewInfoHashGroupStore(db)}
}

// Add persists the decomposed metainfo atomically. Any step failing rolls the
// whole insert back; the only rows that survive a duplicate-hash failure are
// the idempotent info-hash group mappings.
func (s *TorrentStore) Add(ctx context.Context, params AddTorrentParams) (int64, error) {
	info := &params.Meta.Info

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		piecesValue   any
		rootHashValue any
		privateValue  any
	)
	if info.RootHash != "" {
		rootHashValue = info.RootHash
	} else {
		piecesValue = hex.EncodeToString(info.Pieces)
	}
	if info.Private != nil {
		privateValue = *info.Private
	}

	var torrentID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO torrents (
			uploader_id, category_id, info_hash, size, name,
			pieces, root_hash, piece_length, private, is_bep_30,
			source, comment, creation_date, created_by, encoding
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		params.UploaderID, params.CategoryID, params.CanonicalInfoHash,
		info.TotalSize(), info.Name,
		piecesValue, rootHashValue, info.PieceLength, privateValue, info.IsBEP30(),
		nullable(info.Source), nullable(params.Meta.Comment),
		nullableInt(params.Meta.CreationDate), nullable(params.Meta.CreatedBy),
		nullable(params.Meta.Encoding),
	).Scan(&torrentID)
	if err != nil {
		if isUniqueConstraintOn(err, "torrents.info_hash") {
			// Record the mapping outside the doomed transaction so lookups by
			// this original hash resolve to the already-stored torrent.
			_ = tx.Rollback()
			if mapErr := s.recordMapping(ctx, params.OriginalInfoHash, params.CanonicalInfoHash, true); mapErr != nil {
				return 0, fmt.Errorf("record duplicate mapping: %w", mapErr)
			}
			return 0, ErrInfoHashAlreadyExists
		}
		if isForeignKeyConstraintError(err) {
			return 0, ErrInvalidCategoryReference
		}
		return 0, fmt.Errorf("insert torrent: %w", err)
	}

	if err := s.insertMappings(ctx, tx, params.OriginalInfoHash, params.CanonicalInfoHash); err != nil {
		return 0, err
	}

	if err := s.insertFiles(ctx, tx, torrentID, info); err != nil {
		return 0, err
	}

	if err := s.insertAnnounceURLs(ctx, tx, torrentID, params.Meta); err != nil {
		return 0, err
	}

	for _, seed := range params.Meta.HTTPSeeds {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO torrent_http_seeds (torrent_id, seed_url) VALUES (?, ?)
		`, torrentID, seed); err != nil {
			return 0, fmt.Errorf("insert http seed: %w", err)
		}
	}

	for _, node := range params.Meta.Nodes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO torrent_nodes (torrent_id, node_ip, node_port) VALUES (?, ?, ?)
		`, torrentID, node.Host, node.Port); err != nil {
			return 0, fmt.Errorf("insert node: %w", err)
		}
	}

	for _, tagID := range params.TagIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO torrent_tag_links (torrent_id, tag_id) VALUES (?, ?)
		`, torrentID, tagID); err != nil {
			if isForeignKeyConstraintError(err) {
				return 0, ErrTagNotFound
			}
			return 0, fmt.Errorf("insert tag link: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO torrent_info (torrent_id, title, description) VALUES (?, ?, ?)
	`, torrentID, params.Title, nullable(strings.TrimSpace(params.Description)))
	if err != nil {
		if isUniqueConstraintOn(err, "torrent_info.title") {
			return 0, ErrTorrentTitleAlreadyExists
		}
		return 0, fmt.Errorf("insert torrent info: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return torrentID, nil
}

func (s *TorrentStore) insertMappings(ctx context.Context, tx dbinterface.TxQuerier, original, canonical string) error {
	if err := s.groups.AddMapping(ctx, tx, original, canonical, true); err != nil {
		return fmt.Errorf("insert info-hash mapping: %w", err)
	}

	if original == canonical {
		return nil
	}

	// The canonical self-mapping; the canonical bytes themselves were never
	// uploaded, only derived.
	if err := s.groups.AddMapping(ctx, tx, canonical, canonical, false); err != nil {
		return fmt.Errorf("insert canonical self-mapping: %w", err)
	}

	return nil
}

func (s *TorrentStore) recordMapping(ctx context.Context, original, canonical string, known bool) error {
	return s.groups.AddMapping(ctx, nil, original, canonical, known)
}

func (s *TorrentStore) insertFiles(ctx context.Context, tx dbinterface.TxQuerier, torrentID int64, info *metainfo.Info) error {
	if len(info.Files) == 0 {
		// Single-file torrent: one row with an empty path.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO torrent_files (torrent_id, path, length, md5sum) VALUES (?, '', ?, ?)
		`, torrentID, info.Length, nullable(info.MD5Sum))
		if err != nil {
			return fmt.Errorf("insert single file: %w", err)
		}
		return nil
	}

	for _, f := range info.Files {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO torrent_files (torrent_id, path, length, md5sum) VALUES (?, ?, ?, ?)
		`, torrentID, strings.Join(f.Path, "/"), f.Length, nullable(f.MD5Sum))
		if err != nil {
			return fmt.Errorf("insert file: %w", err)
		}
	}
	return nil
}

func (s *TorrentStore) insertAnnounceURLs(ctx context.Context, tx dbinterface.TxQuerier, torrentID int64, meta *metainfo.Torrent) error {
	urls := flattenAnnounceURLs(meta)
	for _, u := range urls {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO torrent_announce_urls (torrent_id, tracker_url) VALUES (?, ?)
		`, torrentID, u); err != nil {
			return fmt.Errorf("insert announce url: %w", err)
		}
	}
	return nil
}

// flattenAnnounceURLs flattens the BEP-12 tiers in order, falling back to the
// single announce, and deduplicates while preserving first occurrence.
func flattenAnnounceURLs(meta *metainfo.Torrent) []string {
	seen := make(map[string]struct{})
	var urls []string

	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	if len(meta.AnnounceList) > 0 {
		for _, tier := range meta.AnnounceList {
			for _, u := range tier {
				add(u)
			}
		}
	}
	add(meta.Announce)

	return urls
}

// GetByInfoHash loads the full record via the hash group: any hash ever
// observed for the content group resolves to the canonical torrent.
func (s *TorrentStore) GetByInfoHash(ctx context.Context, infoHash string) (*Torrent, error) {
	canonical, err := s.groups.FindCanonical(ctx, infoHash)
	if err != nil {
		if errors.Is(err, ErrInfoHashNotFound) {
			return nil, ErrTorrentNotFound
		}
		return nil, err
	}

	t := &Torrent{}
	var (
		pieces, rootHash, source, comment, createdBy, encoding sql.NullString
		description                                            sql.NullString
		creationDate, private                                  sql.NullInt64
	)

	err = s.db.QueryRowContext(ctx, `
		SELECT t.id, t.uploader_id, t.category_id, t.info_hash, t.size, t.name,
			t.pieces, t.root_hash, t.piece_length, t.private, t.is_bep_30,
			t.source, t.comment, t.date_uploaded, t.creation_date, t.created_by, t.encoding,
			ti.title, ti.description
		FROM torrents t
		JOIN torrent_info ti ON ti.torrent_id = t.id
		WHERE t.info_hash = ?
	`, canonical).Scan(
		&t.ID, &t.UploaderID, &t.CategoryID, &t.InfoHash, &t.Size, &t.Name,
		&pieces, &rootHash, &t.PieceLength, &private, &t.IsBEP30,
		&source, &comment, &t.DateUploaded, &creationDate, &createdBy, &encoding,
		&t.Title, &description,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTorrentNotFound
		}
		return nil, err
	}

	if private.Valid {
		t.PrivateFlag = &private.Int64
		t.Private = private.Int64 == 1
	}
	t.PiecesHex = pieces.String
	t.RootHash = rootHash.String
	t.Source = source.String
	t.Comment = comment.String
	t.CreatedBy = createdBy.String
	t.Encoding = encoding.String
	t.CreationDate = creationDate.Int64
	t.Description = description.String

	if err := s.loadChildren(ctx, t); err != nil {
		return nil, err
	}

	return t, nil
}

func (s *TorrentStore) loadChildren(ctx context.Context, t *Torrent) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, length, COALESCE(md5sum, '') FROM torrent_files
		WHERE torrent_id = ? ORDER BY id ASC
	`, t.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			path string
			f    TorrentFile
		)
		if err := rows.Scan(&path, &f.Length, &f.MD5Sum); err != nil {
			return err
		}
		if path != "" {
			f.Path = strings.Split(path, "/")
		}
		t.Files = append(t.Files, f)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	urlRows, err := s.db.QueryContext(ctx, `
		SELECT tracker_url FROM torrent_announce_urls WHERE torrent_id = ? ORDER BY id ASC
	`, t.ID)
	if err != nil {
		return err
	}
	defer urlRows.Close()
	for urlRows.Next() {
		var u string
		if err := urlRows.Scan(&u); err != nil {
			return err
		}
		t.AnnounceURLs = append(t.AnnounceURLs, u)
	}
	if err := urlRows.Err(); err != nil {
		return err
	}

	seedRows, err := s.db.QueryContext(ctx, `
		SELECT seed_url FROM torrent_http_seeds WHERE torrent_id = ? ORDER BY id ASC
	`, t.ID)
	if err != nil {
		return err
	}
	defer seedRows.Close()
	for seedRows.Next() {
		var u string
		if err := seedRows.Scan(&u); err != nil {
			return err
		}
		t.HTTPSeeds = append(t.HTTPSeeds, u)
	}
	if err := seedRows.Err(); err != nil {
		return err
	}

	nodeRows, err := s.db.QueryContext(ctx, `
		SELECT node_ip, node_port FROM torrent_nodes WHERE torrent_id = ? ORDER BY id ASC
	`, t.ID)
	if err != nil {
		return err
	}
	defer nodeRows.Close()
	for nodeRows.Next() {
		var n TorrentNode
		if err := nodeRows.Scan(&n.Host, &n.Port); err != nil {
			return err
		}
		t.Nodes = append(t.Nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return err
	}

	tagRows, err := s.db.QueryContext(ctx, `
		SELECT tt.id, tt.name FROM torrent_tags tt
		JOIN torrent_tag_links l ON l.tag_id = tt.id
		WHERE l.torrent_id = ? ORDER BY tt.name ASC
	`, t.ID)
	if err != nil {
		return err
	}
	defer tagRows.Close()
	for tagRows.Next() {
		tag := &Tag{}
		if err := tagRows.Scan(&tag.ID, &tag.Name); err != nil {
			return err
		}
		t.Tags = append(t.Tags, tag)
	}
	return tagRows.Err()
}

const listingColumns = `
	t.id, t.info_hash, ti.title, COALESCE(ti.description, ''), c.name, p.username,
	t.size,
	(SELECT COUNT(*) FROM torrent_files f WHERE f.torrent_id = t.id),
	COALESCE(SUM(s.seeders), 0) AS seeders,
	COALESCE(SUM(s.leechers), 0) AS leechers,
	t.date_uploaded
`

const listingJoins = `
	FROM torrents t
	JOIN torrent_info ti ON ti.torrent_id = t.id
	JOIN categories c ON c.id = t.category_id
	JOIN user_profiles p ON p.user_id = t.uploader_id
	LEFT JOIN torrent_tracker_stats s ON s.torrent_id = t.id
`

func scanListing(rows *sql.Rows) (*TorrentListing, error) {
	l := &TorrentListing{}
	err := rows.Scan(
		&l.ID, &l.InfoHash, &l.Title, &l.Description, &l.CategoryName, &l.Uploader,
		&l.Size, &l.FileCount, &l.Seeders, &l.Leechers, &l.DateUploaded,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// GetListingByInfoHash returns the aggregated listing row for any hash in
// the content group.
func (s *TorrentStore) GetListingByInfoHash(ctx context.Context, infoHash string) (*TorrentListing, error) {
	canonical, err := s.groups.FindCanonical(ctx, infoHash)
	if err != nil {
		if errors.Is(err, ErrInfoHashNotFound) {
			return nil, ErrTorrentNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+listingColumns+listingJoins+`
		WHERE t.info_hash = ?
		GROUP BY t.id
	`, canonical)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrTorrentNotFound
	}
	return scanListing(rows)
}

// Search returns the filtered, sorted, paginated listing plus the unpaginated
// total.
func (s *TorrentStore) Search(ctx context.Context, params SearchParams) (int64, []*TorrentListing, error) {
	orderBy, ok := sortClauses[params.Sort]
	if !ok {
		return 0, nil, ErrInvalidSort
	}

	var (
		where []string
		args  []any
	)

	if params.Search != "" {
		where = append(where, "ti.title LIKE ?")
		args = append(args, "%"+params.Search+"%")
	}

	if len(params.CategoryIDs) > 0 {
		where = append(where, "t.category_id IN ("+placeholders(len(params.CategoryIDs))+")")
		for _, id := range params.CategoryIDs {
			args = append(args, id)
		}
	}

	if len(params.TagIDs) > 0 {
		where = append(where, `EXISTS (
			SELECT 1 FROM torrent_tag_links l
			WHERE l.torrent_id = t.id AND l.tag_id IN (`+placeholders(len(params.TagIDs))+`)
		)`)
		for _, id := range params.TagIDs {
			args = append(args, id)
		}
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	countQuery := `SELECT COUNT(DISTINCT t.id)` + listingJoins + whereClause
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count torrents: %w", err)
	}

	query := `SELECT ` + listingColumns + listingJoins + whereClause + `
		GROUP BY t.id
		ORDER BY ` + orderBy + `
		LIMIT ? OFFSET ?`
	args = append(args, params.Limit, params.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, nil, fmt.Errorf("search torrents: %w", err)
	}
	defer rows.Close()

	var listings []*TorrentListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return 0, nil, err
		}
		listings = append(listings, l)
	}

	return total, listings, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Delete removes the torrent; dependent rows cascade.
func (s *TorrentStore) Delete(ctx context.Context, torrentID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM torrents WHERE id = ?`, torrentID)
	if err != nil {
		return err
	}
	return requireRowsAffected(result, ErrTorrentNotFound)
}

func (s *TorrentStore) UpdateTitle(ctx context.Context, torrentID int64, title string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE torrent_info SET title = ? WHERE torrent_id = ?
	`, title, torrentID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrTorrentTitleAlreadyExists
		}
		return err
	}
	return requireRowsAffected(result, ErrTorrentNotFound)
}

func (s *TorrentStore) UpdateDescription(ctx context.Context, torrentID int64, description string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE torrent_info SET description = ? WHERE torrent_id = ?
	`, nullable(strings.TrimSpace(description)), torrentID)
	if err != nil {
		return err
	}
	return requireRowsAffected(result, ErrTorrentNotFound)
}

func (s *TorrentStore) UpdateCategory(ctx context.Context, torrentID, categoryID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE torrents SET category_id = ? WHERE id = ?
	`, categoryID, torrentID)
	if err != nil {
		if isForeignKeyConstraintError(err) {
			return ErrInvalidCategoryReference
		}
		return err
	}
	return requireRowsAffected(result, ErrTorrentNotFound)
}

// ReplaceTags swaps the torrent's tag set atomically.
func (s *TorrentStore) ReplaceTags(ctx context.Context, torrentID int64, tagIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM torrent_tag_links WHERE torrent_id = ?`, torrentID); err != nil {
		return err
	}

	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO torrent_tag_links (torrent_id, tag_id) VALUES (?, ?)
		`, torrentID, tagID); err != nil {
			if isForeignKeyConstraintError(err) {
				return ErrTagNotFound
			}
			return err
		}
	}

	return tx.Commit()
}

// StatsStaleBefore returns torrents whose newest stats row is older than the
// cutoff or missing entirely, oldest first. NULLs sort first under ASC, so
// never-scraped torrents lead the batch. The cutoff is compared as text
// against CURRENT_TIMESTAMP values, hence the explicit UTC formatting.
func (s *TorrentStore) StatsStaleBefore(ctx context.Context, cutoff time.Time, limit int64) ([]StaleTorrent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.info_hash
		FROM torrents t
		LEFT JOIN torrent_tracker_stats s ON s.torrent_id = t.id
		GROUP BY t.id
		HAVING MAX(s.updated_at) IS NULL OR MAX(s.updated_at) < ?
		ORDER BY MAX(s.updated_at) ASC
		LIMIT ?
	`, cutoff.UTC().Format("2006-01-02 15:04:05"), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []StaleTorrent
	for rows.Next() {
		var st StaleTorrent
		if err := rows.Scan(&st.ID, &st.InfoHash); err != nil {
			return nil, err
		}
		stale = append(stale, st)
	}

	return stale, rows.Err()
}

// UpsertTrackerStats records swarm counts keyed by (torrent_id, tracker_url),
// last writer wins.
func (s *TorrentStore) UpsertTrackerStats(ctx context.Context, torrentID int64, trackerURL string, seeders, leechers int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO torrent_tracker_stats (torrent_id, tracker_url, seeders, leechers, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (torrent_id, tracker_url) DO UPDATE SET
			seeders = excluded.seeders,
			leechers = excluded.leechers,
			updated_at = CURRENT_TIMESTAMP
	`, torrentID, trackerURL, seeders, leechers)
	if isForeignKeyConstraintError(err) {
		return ErrTorrentNotFound
	}
	return err
}

// AggregatedStats sums seeders and leechers across tracker URLs.
func (s *TorrentStore) AggregatedStats(ctx context.Context, torrentID int64) (seeders, leechers int64, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(seeders), 0), COALESCE(SUM(leechers), 0)
		FROM torrent_tracker_stats WHERE torrent_id = ?
	`, torrentID).Scan(&seeders, &leechers)
	return seeders, leechers, err
}

// Count returns the number of stored torrents. Used by the metrics collector.
func (s *TorrentStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM torrents`).Scan(&count)
	return count, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
