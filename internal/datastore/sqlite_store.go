package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aleister1102/oerscout/internal/models"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const defaultInsertBatchSize = 100

const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	base_url TEXT NOT NULL,
	type TEXT NOT NULL,
	description TEXT,
	license_name TEXT,
	license_url TEXT,
	robots_status TEXT NOT NULL,
	rate_limit_per_minute INTEGER DEFAULT 0,
	scan_status TEXT NOT NULL,
	scan_error TEXT,
	last_scanned_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS assets (
	id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL,
	slug TEXT NOT NULL,
	title TEXT NOT NULL,
	url TEXT NOT NULL,
	description TEXT,
	subjects TEXT,
	license_name TEXT,
	license_url TEXT,
	license_confidence REAL DEFAULT 0,
	robots_status TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 0,
	toc_extraction_success INTEGER NOT NULL DEFAULT 0,
	toc_stats TEXT,
	scan_status TEXT NOT NULL,
	scan_error TEXT,
	validation_report TEXT,
	metadata TEXT,
	last_scanned_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (source_id, slug)
);
CREATE TABLE IF NOT EXISTS toc_nodes (
	id TEXT PRIMARY KEY,
	asset_id TEXT NOT NULL,
	parent_id TEXT,
	slug TEXT NOT NULL,
	title TEXT NOT NULL,
	url TEXT,
	node_type TEXT NOT NULL,
	depth INTEGER NOT NULL,
	sort_order INTEGER NOT NULL,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_toc_nodes_asset ON toc_nodes (asset_id, sort_order);
CREATE TABLE IF NOT EXISTS scan_logs (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	source_id TEXT,
	asset_id TEXT,
	action TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT,
	details TEXT,
	created_at TEXT NOT NULL
);
`

const (
	sourceColumns = `id, name, base_url, type, description, license_name, license_url, robots_status,
		rate_limit_per_minute, scan_status, scan_error, last_scanned_at, created_at, updated_at`
	assetColumns = `id, source_id, slug, title, url, description, subjects, license_name, license_url,
		license_confidence, robots_status, active, toc_extraction_success, toc_stats, scan_status,
		scan_error, validation_report, metadata, last_scanned_at, created_at, updated_at`
	tocNodeColumns = `id, asset_id, parent_id, slug, title, url, node_type, depth, sort_order, metadata`
)

// SQLiteStore persists the catalog in a SQLite database file.
type SQLiteStore struct {
	db        *sql.DB
	batchSize int
	logger    zerolog.Logger
}

// NewSQLiteStore opens (creating when needed) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string, batchSize int, logger zerolog.Logger) (*SQLiteStore, error) {
	logger = logger.With().Str("component", "SQLiteStore").Logger()
	if batchSize <= 0 {
		batchSize = defaultInsertBatchSize
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sql.Open failed for %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		logger.Error().Err(err).Msg("Failed to initialize schema")
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logger.Info().Str("path", path).Msg("Database initialized and schema verified")
	return &SQLiteStore{db: db, batchSize: batchSize, logger: logger}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) GetSource(ctx context.Context, id string) (*models.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("source", id)
	}
	return src, err
}

func (s *SQLiteStore) GetSourceByName(ctx context.Context, name string) (*models.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE name = ?`, name)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("source", name)
	}
	return src, err
}

func (s *SQLiteStore) CreateSource(ctx context.Context, src *models.Source) error {
	stampSource(src)
	_, err := s.db.ExecContext(ctx, `INSERT INTO sources (`+sourceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.Name, src.BaseURL, string(src.Type), src.Description, src.LicenseName, src.LicenseURL,
		string(src.RobotsStatus), src.RateLimitPerMinute, string(src.ScanStatus), src.ScanError,
		formatTimePtr(src.LastScannedAt), formatTime(src.CreatedAt), formatTime(src.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert source '%s': %w", src.Name, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateSource(ctx context.Context, src *models.Source) error {
	src.UpdatedAt = now()
	res, err := s.db.ExecContext(ctx, `UPDATE sources SET name = ?, base_url = ?, type = ?, description = ?,
		license_name = ?, license_url = ?, robots_status = ?, rate_limit_per_minute = ?, scan_status = ?,
		scan_error = ?, last_scanned_at = ?, updated_at = ? WHERE id = ?`,
		src.Name, src.BaseURL, string(src.Type), src.Description, src.LicenseName, src.LicenseURL,
		string(src.RobotsStatus), src.RateLimitPerMinute, string(src.ScanStatus), src.ScanError,
		formatTimePtr(src.LastScannedAt), formatTime(src.UpdatedAt), src.ID)
	if err != nil {
		return fmt.Errorf("failed to update source '%s': %w", src.ID, err)
	}
	return requireAffected(res, "source", src.ID)
}

func (s *SQLiteStore) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("asset", id)
	}
	return asset, err
}

func (s *SQLiteStore) GetAssetBySlug(ctx context.Context, sourceID, slug string) (*models.Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE source_id = ? AND slug = ?`, sourceID, slug)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("asset", slug)
	}
	return asset, err
}

func (s *SQLiteStore) CreateAsset(ctx context.Context, asset *models.Asset) error {
	stampAsset(asset)
	args, err := assetArgs(asset)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO assets (`+assetColumns+`) VALUES (`+placeholders(21)+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to insert asset '%s': %w", asset.Slug, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateAsset(ctx context.Context, asset *models.Asset) error {
	asset.UpdatedAt = now()
	args, err := assetArgs(asset)
	if err != nil {
		return err
	}
	// Drop id and created_at from the column list; id goes last for the WHERE clause.
	update := make([]interface{}, 0, len(args))
	update = append(update, args[1:19]...)
	update = append(update, args[20], asset.ID)
	res, err := s.db.ExecContext(ctx, `UPDATE assets SET source_id = ?, slug = ?, title = ?, url = ?,
		description = ?, subjects = ?, license_name = ?, license_url = ?, license_confidence = ?,
		robots_status = ?, active = ?, toc_extraction_success = ?, toc_stats = ?, scan_status = ?,
		scan_error = ?, validation_report = ?, metadata = ?, last_scanned_at = ?, updated_at = ?
		WHERE id = ?`, update...)
	if err != nil {
		return fmt.Errorf("failed to update asset '%s': %w", asset.ID, err)
	}
	return requireAffected(res, "asset", asset.ID)
}

func (s *SQLiteStore) ListAssets(ctx context.Context, filter AssetFilter) ([]*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE 1 = 1`
	var args []interface{}
	if filter.SourceID != "" {
		query += ` AND source_id = ?`
		args = append(args, filter.SourceID)
	}
	if filter.ActiveOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var out []*models.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, asset)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ReplaceTocNodes(ctx context.Context, assetID string, nodes []*models.TocNode) error {
	prepareNodes(assetID, nodes)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM toc_nodes WHERE asset_id = ?`, assetID); err != nil {
		return fmt.Errorf("failed to delete nodes of asset '%s': %w", assetID, err)
	}

	for start := 0; start < len(nodes); start += s.batchSize {
		end := start + s.batchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		batch := nodes[start:end]
		rowsSQL := make([]string, 0, len(batch))
		args := make([]interface{}, 0, len(batch)*10)
		for _, n := range batch {
			meta, err := marshalJSON(n.Metadata)
			if err != nil {
				return err
			}
			var parentID interface{}
			if n.ParentID != nil {
				parentID = *n.ParentID
			}
			rowsSQL = append(rowsSQL, "("+placeholders(10)+")")
			args = append(args, n.ID, assetID, parentID, n.Slug, n.Title, n.URL, string(n.NodeType), n.Depth, n.SortOrder, meta)
		}
		query := `INSERT INTO toc_nodes (` + tocNodeColumns + `) VALUES ` + strings.Join(rowsSQL, ", ")
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert node batch %d-%d: %w", start, end, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit nodes of asset '%s': %w", assetID, err)
	}
	s.logger.Debug().Str("asset_id", assetID).Int("nodes", len(nodes)).Int("batch_size", s.batchSize).Msg("TOC nodes replaced")
	return nil
}

func (s *SQLiteStore) ListTocNodes(ctx context.Context, assetID string) ([]*models.TocNode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tocNodeColumns+` FROM toc_nodes WHERE asset_id = ? ORDER BY sort_order`, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	defer rows.Close()

	out := []*models.TocNode{}
	for rows.Next() {
		var (
			n        models.TocNode
			parentID sql.NullString
			url      sql.NullString
			nodeType string
			meta     sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.AssetID, &parentID, &n.Slug, &n.Title, &url, &nodeType, &n.Depth, &n.SortOrder, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		if parentID.Valid {
			id := parentID.String
			n.ParentID = &id
		}
		n.URL = url.String
		n.NodeType = models.NodeType(nodeType)
		if err := unmarshalJSON(meta, &n.Metadata); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendScanLog(ctx context.Context, entry *models.ScanLog) error {
	stampLog(entry)
	details, err := marshalJSON(entry.Details)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO scan_logs (id, source_id, asset_id, action, status, message, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.SourceID, entry.AssetID, entry.Action, entry.Status, entry.Message, details, formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append scan log: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListScanLogs(ctx context.Context, filter ScanLogFilter) ([]*models.ScanLog, error) {
	query := `SELECT id, source_id, asset_id, action, status, message, details, created_at FROM scan_logs WHERE 1 = 1`
	var args []interface{}
	if filter.SourceID != "" {
		query += ` AND source_id = ?`
		args = append(args, filter.SourceID)
	}
	if filter.AssetID != "" {
		query += ` AND asset_id = ?`
		args = append(args, filter.AssetID)
	}
	if filter.Action != "" {
		query += ` AND action = ?`
		args = append(args, filter.Action)
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan logs: %w", err)
	}
	defer rows.Close()

	var out []*models.ScanLog
	for rows.Next() {
		var (
			l                           models.ScanLog
			sourceID, assetID, msg, det sql.NullString
			createdAt                   string
		)
		if err := rows.Scan(&l.ID, &sourceID, &assetID, &l.Action, &l.Status, &msg, &det, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		l.SourceID, l.AssetID, l.Message = sourceID.String, assetID.String, msg.String
		if err := unmarshalJSON(det, &l.Details); err != nil {
			return nil, err
		}
		l.CreatedAt = parseTime(createdAt)
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSource(row rowScanner) (*models.Source, error) {
	var (
		src                                  models.Source
		srcType, robots, status              string
		desc, licName, licURL, scanErr, last sql.NullString
		createdAt, updatedAt                 string
	)
	err := row.Scan(&src.ID, &src.Name, &src.BaseURL, &srcType, &desc, &licName, &licURL, &robots,
		&src.RateLimitPerMinute, &status, &scanErr, &last, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	src.Type = models.SourceType(srcType)
	src.RobotsStatus = models.RobotsStatus(robots)
	src.ScanStatus = models.ScanStatus(status)
	src.Description, src.LicenseName, src.LicenseURL, src.ScanError = desc.String, licName.String, licURL.String, scanErr.String
	src.LastScannedAt = parseTimePtr(last)
	src.CreatedAt, src.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
	return &src, nil
}

func scanAsset(row rowScanner) (*models.Asset, error) {
	var (
		a                                  models.Asset
		robots, status                     string
		desc, subjects, licName, licURL    sql.NullString
		stats, scanErr, report, meta, last sql.NullString
		active, tocOK                      bool
		createdAt, updatedAt               string
	)
	err := row.Scan(&a.ID, &a.SourceID, &a.Slug, &a.Title, &a.URL, &desc, &subjects, &licName, &licURL,
		&a.LicenseConfidence, &robots, &active, &tocOK, &stats, &status, &scanErr, &report, &meta, &last,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	a.Description, a.LicenseName, a.LicenseURL, a.ScanError = desc.String, licName.String, licURL.String, scanErr.String
	a.RobotsStatus = models.RobotsStatus(robots)
	a.ScanStatus = models.ScanStatus(status)
	a.Active, a.TocExtractionSuccess = active, tocOK
	a.LastScannedAt = parseTimePtr(last)
	a.CreatedAt, a.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)

	if err := unmarshalJSON(subjects, &a.Subjects); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(stats, &a.TocStats); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(report, &a.ValidationReport); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(meta, &a.Metadata); err != nil {
		return nil, err
	}
	return &a, nil
}

// assetArgs returns values in assetColumns order.
func assetArgs(a *models.Asset) ([]interface{}, error) {
	subjects, err := marshalJSON(a.Subjects)
	if err != nil {
		return nil, err
	}
	stats, err := marshalJSON(a.TocStats)
	if err != nil {
		return nil, err
	}
	report, err := marshalJSON(a.ValidationReport)
	if err != nil {
		return nil, err
	}
	meta, err := marshalJSON(a.Metadata)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		a.ID, a.SourceID, a.Slug, a.Title, a.URL, a.Description, subjects, a.LicenseName, a.LicenseURL,
		a.LicenseConfidence, string(a.RobotsStatus), a.Active, a.TocExtractionSuccess, stats,
		string(a.ScanStatus), a.ScanError, report, meta, formatTimePtr(a.LastScannedAt),
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	}, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

// marshalJSON encodes v for a JSON column; nil values and empty collections map to NULL.
func marshalJSON(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON column: %w", err)
	}
	switch string(b) {
	case "null", "{}", "[]":
		return nil, nil
	}
	return string(b), nil
}

func unmarshalJSON(col sql.NullString, dest interface{}) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(col.String), dest); err != nil {
		return fmt.Errorf("failed to decode JSON column: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}
