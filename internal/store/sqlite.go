package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/station-aggregator/internal/weather"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sampleColumns are the flat sample keys, in schema order.
var sampleColumns = func() []string {
	fields := weather.Sample{}.Fields()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Key
	}
	return cols
}()

var (
	selectColumns = "id, station_id, flushed_at, " + quoteColumns(sampleColumns)

	insertSampleSQL = fmt.Sprintf(
		"INSERT OR IGNORE INTO samples (id, station_id, flushed_at, %s) VALUES (?, ?, ?%s)",
		quoteColumns(sampleColumns),
		strings.Repeat(", ?", len(sampleColumns)),
	)
	getLatestSQL = "SELECT " + selectColumns +
		` FROM samples WHERE station_id = ? ORDER BY "localtime" DESC, flushed_at DESC LIMIT 1`
	getRangeSQL = "SELECT " + selectColumns +
		` FROM samples WHERE station_id = ? AND "localtime" >= ? AND "localtime" <= ? ORDER BY "localtime" ASC`
)

func quoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = `"` + c + `"`
	}
	return strings.Join(quoted, ", ")
}

// SQLiteStore persists samples in a SQLite database, one row per sample.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// A single writer avoids "database is locked" under concurrent flushes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	s, err := NewSQLiteStore(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an open database and applies pending migrations.
func NewSQLiteStore(db *sql.DB, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := migrate(db, logger); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func buildDSN(path string) (string, error) {
	dir := filepath.Dir(strings.TrimPrefix(path, "file:"))
	if dir != "." && !strings.HasPrefix(path, ":memory:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

// WriteSample inserts one sample row. Rewriting a sample id is a no-op, so
// retried writes are safe.
func (s *SQLiteStore) WriteSample(ctx context.Context, fc weather.FlushContext, sample weather.Sample) error {
	fields := sample.Fields()
	args := make([]any, 0, 3+len(fields))
	args = append(args, fc.ID.String(), fc.StationID, fc.FlushedAt.UTC().Format(timeLayout))

	for _, f := range fields {
		if f.Key == "localtime" {
			at := sample.LocalTime
			if at.IsZero() {
				at = fc.FlushedAt
			}
			args = append(args, at.UTC().Format(timeLayout))
			continue
		}
		args = append(args, f.Value)
	}

	if _, err := s.db.ExecContext(ctx, insertSampleSQL, args...); err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// GetLatest returns the sample with the newest localtime for a station.
func (s *SQLiteStore) GetLatest(stationID string) (weather.StoredSample, error) {
	rows, err := s.db.Query(getLatestSQL, stationID)
	if err != nil {
		return weather.StoredSample{}, err
	}
	defer s.closeRows(rows)

	out, err := scanSamples(rows)
	if err != nil {
		return weather.StoredSample{}, err
	}
	if len(out) == 0 {
		return weather.StoredSample{}, ErrNotFound
	}
	return out[0], nil
}

// GetRange returns the samples whose localtime lies between from and to
// (inclusive), oldest first.
func (s *SQLiteStore) GetRange(stationID string, from, to time.Time) ([]weather.StoredSample, error) {
	rows, err := s.db.Query(getRangeSQL, stationID, from.UTC().Format(timeLayout), to.UTC().Format(timeLayout))
	if err != nil {
		return nil, err
	}
	defer s.closeRows(rows)

	out, err := scanSamples(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		s.logger.Error("close sample rows", "error", err)
	}
}

func scanSamples(rows *sql.Rows) ([]weather.StoredSample, error) {
	var out []weather.StoredSample
	for rows.Next() {
		var (
			id, stationID, flushedAt, localtime string
			uv                                  sql.NullInt64
		)
		floats := make(map[string]*sql.NullFloat64, len(sampleColumns))
		dest := []any{&id, &stationID, &flushedAt}
		for _, col := range sampleColumns {
			switch col {
			case "uv_index":
				dest = append(dest, &uv)
			case "localtime":
				dest = append(dest, &localtime)
			default:
				v := new(sql.NullFloat64)
				floats[col] = v
				dest = append(dest, v)
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		rec := weather.StoredSample{StationID: stationID}
		var err error
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse sample id %q: %w", id, err)
		}
		if rec.FlushedAt, err = time.Parse(timeLayout, flushedAt); err != nil {
			return nil, fmt.Errorf("parse flushed_at %q: %w", flushedAt, err)
		}
		if rec.Sample.LocalTime, err = time.Parse(timeLayout, localtime); err != nil {
			return nil, fmt.Errorf("parse localtime %q: %w", localtime, err)
		}
		for col, v := range floats {
			if v.Valid {
				f := v.Float64
				rec.Sample.SetFloat(col, &f)
			}
		}
		if uv.Valid {
			n := int(uv.Int64)
			rec.Sample.UVIndex = &n
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

