package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yegors/co-notam/internal/notam"
	"github.com/yegors/co-notam/pkg/logger"
	_ "modernc.org/sqlite"
)

// NotamStorage persists categorized NOTAMs between refreshes
type NotamStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewNotamStorage opens (or creates) the SQLite database at dbPath
func NewNotamStorage(dbPath string, log *logger.Logger) (*NotamStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=10000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &NotamStorage{db: db, logger: storageLogger}, nil
}

// Close closes the database connection
func (s *NotamStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS notams (
			id TEXT PRIMARY KEY,
			location TEXT NOT NULL,
			fir TEXT,
			q_code TEXT,
			source TEXT,
			text TEXT NOT NULL,
			raw_text TEXT,
			lat REAL,
			lon REAL,
			effective_start TIMESTAMP,
			effective_end TIMESTAMP,   -- NULL means until further notice
			issued_at TIMESTAMP,
			primary_category TEXT,
			categories TEXT NOT NULL,  -- JSON array
			tags TEXT NOT NULL,        -- JSON array
			fields TEXT,               -- JSON object of ICAO items
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create notams table: %w", err)
	}

	indexes := map[string]string{
		"idx_notams_location":         `CREATE INDEX IF NOT EXISTS idx_notams_location ON notams(location)`,
		"idx_notams_primary_category": `CREATE INDEX IF NOT EXISTS idx_notams_primary_category ON notams(primary_category)`,
		"idx_notams_effective_end":    `CREATE INDEX IF NOT EXISTS idx_notams_effective_end ON notams(effective_end)`,
	}
	for name, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create %s index: %w", name, err)
		}
	}

	return nil
}

// Save upserts the NOTAMs in one transaction and returns how many were written
func (s *NotamStorage) Save(ctx context.Context, notams []*notam.Notam) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO notams (
			id, location, fir, q_code, source, text, raw_text, lat, lon,
			effective_start, effective_end, issued_at,
			primary_category, categories, tags, fields, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			location = excluded.location,
			fir = excluded.fir,
			q_code = excluded.q_code,
			source = excluded.source,
			text = excluded.text,
			raw_text = excluded.raw_text,
			lat = excluded.lat,
			lon = excluded.lon,
			effective_start = excluded.effective_start,
			effective_end = excluded.effective_end,
			issued_at = excluded.issued_at,
			primary_category = excluded.primary_category,
			categories = excluded.categories,
			tags = excluded.tags,
			fields = excluded.fields,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	written := 0
	for _, n := range notams {
		if n == nil {
			continue
		}
		if err := n.Validate(); err != nil {
			return 0, fmt.Errorf("refusing to store NOTAM: %w", err)
		}

		categories, err := marshalStringArray(n.CustomCategories.Sorted())
		if err != nil {
			return 0, err
		}
		tags, err := marshalStringArray(n.CustomTags.Sorted())
		if err != nil {
			return 0, err
		}
		var fields sql.NullString
		if len(n.Fields) > 0 {
			data, err := json.Marshal(n.Fields)
			if err != nil {
				return 0, fmt.Errorf("failed to encode fields of %s: %w", n.ID, err)
			}
			fields = sql.NullString{String: string(data), Valid: true}
		}
		var lat, lon sql.NullFloat64
		if n.Position != nil {
			lat = sql.NullFloat64{Float64: n.Position.Lat, Valid: true}
			lon = sql.NullFloat64{Float64: n.Position.Lon, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			n.ID,
			n.Location,
			n.FIR,
			n.QCode,
			n.Source,
			n.Text,
			n.RawText,
			lat,
			lon,
			formatNullableTime(&n.EffectiveStart),
			formatNullableTime(n.EffectiveEnd),
			formatNullableTime(&n.IssuedAt),
			nullString(n.PrimaryCategory),
			categories,
			tags,
			fields,
			now,
		); err != nil {
			return 0, fmt.Errorf("failed to upsert NOTAM %s: %w", n.ID, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit NOTAMs: %w", err)
	}

	s.logger.Debug("Stored NOTAMs", logger.Int("count", written))
	return written, nil
}

const selectNotams = `
	SELECT id, location, fir, q_code, source, text, raw_text, lat, lon,
		effective_start, effective_end, issued_at,
		primary_category, categories, tags, fields
	FROM notams`

// LoadAll returns every stored NOTAM ordered by start of validity
func (s *NotamStorage) LoadAll(ctx context.Context) ([]*notam.Notam, error) {
	rows, err := s.db.QueryContext(ctx, selectNotams+` ORDER BY effective_start, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query NOTAMs: %w", err)
	}
	defer rows.Close()

	var notams []*notam.Notam
	for rows.Next() {
		n, err := scanNotam(rows)
		if err != nil {
			return nil, err
		}
		notams = append(notams, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate NOTAMs: %w", err)
	}
	return notams, nil
}

// Get returns one NOTAM by id
func (s *NotamStorage) Get(ctx context.Context, id string) (*notam.Notam, bool, error) {
	row := s.db.QueryRowContext(ctx, selectNotams+` WHERE id = ?`, id)
	n, err := scanNotam(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

// Count returns the number of stored NOTAMs
func (s *NotamStorage) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notams`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count NOTAMs: %w", err)
	}
	return count, nil
}

// DeleteExpired removes NOTAMs whose validity ended before the cutoff.
// Permanent NOTAMs are never removed.
func (s *NotamStorage) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM notams WHERE effective_end IS NOT NULL AND effective_end < ?`,
		before.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired NOTAMs: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("Deleted expired NOTAMs",
			logger.Int64("count", deleted),
			logger.Time("before", before))
	}
	return deleted, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotam(row scanner) (*notam.Notam, error) {
	var (
		id, location, text                        string
		fir, qCode, source, rawText               sql.NullString
		lat, lon                                  sql.NullFloat64
		effectiveStart, effectiveEnd, issuedAt    sql.NullString
		primaryCategory, categories, tags, fields sql.NullString
	)
	if err := row.Scan(
		&id, &location, &fir, &qCode, &source, &text, &rawText, &lat, &lon,
		&effectiveStart, &effectiveEnd, &issuedAt,
		&primaryCategory, &categories, &tags, &fields,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan NOTAM: %w", err)
	}

	m := map[string]any{
		"id":                id,
		"location":          location,
		"text":              text,
		"fir":               fir.String,
		"q_code":            qCode.String,
		"source":            source.String,
		"raw_text":          rawText.String,
		"effective_start":   effectiveStart.String,
		"effective_end":     effectiveEnd.String,
		"issued_at":         issuedAt.String,
		"primary_category":  primaryCategory.String,
		"custom_categories": categories.String,
		"custom_tags":       tags.String,
	}
	if lat.Valid && lon.Valid {
		m["lat"] = lat.Float64
		m["lon"] = lon.Float64
	}
	if fields.Valid && fields.String != "" {
		var decoded map[string]string
		if err := json.Unmarshal([]byte(fields.String), &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode fields of %s: %w", id, err)
		}
		m["fields"] = decoded
	}

	n, err := notam.FromMap(m)
	if err != nil {
		return nil, fmt.Errorf("stored NOTAM %s is invalid: %w", id, err)
	}
	return n, nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalStringArray(arr []string) (string, error) {
	if arr == nil {
		arr = []string{}
	}
	data, err := json.Marshal(arr)
	if err != nil {
		return "", fmt.Errorf("failed to encode string array: %w", err)
	}
	return string(data), nil
}
