package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"checkproof/internal/config"
	"checkproof/internal/evidence"
)

// Store persists pending captures in SQLite. Every method is durable once it
// returns and is safe for concurrent use.
type Store struct {
	db        *sql.DB
	path      string
	dir       string
	minFree   uint64
	freeSpace func(string) (uint64, error)
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// Fixed-width so lexical order matches chronological order.
	timestampLayout = "2006-01-02T15:04:05.000000000Z"
)

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	minFree := uint64(0)
	if cfg.Queue.MinFreeMiB > 0 {
		minFree = uint64(cfg.Queue.MinFreeMiB) << 20
	}
	return OpenPath(cfg.QueueDBPath(), minFree)
}

// OpenPath opens the database at dbPath. minFreeBytes is the free-space floor
// enforced before each Put; zero disables the check.
func OpenPath(dbPath string, minFreeBytes uint64) (*Store, error) {
	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := &Store{
		db:        db,
		path:      dbPath,
		dir:       filepath.Dir(dbPath),
		minFree:   minFreeBytes,
		freeSpace: freeBytes,
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put inserts the capture or replaces the payload and metadata of an existing
// entry with the same id. The first insertion time is kept.
func (s *Store) Put(ctx context.Context, capture evidence.Capture) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(capture.ID) == "" {
		return storageErr("put", "", errors.New("capture id is empty"))
	}
	if err := s.checkFreeSpace(len(capture.Payload)); err != nil {
		return storageErr("put", capture.ID, err)
	}
	metadataJSON, err := json.Marshal(capture.Metadata)
	if err != nil {
		return storageErr("put", capture.ID, fmt.Errorf("marshal metadata: %w", err))
	}
	now := time.Now().UTC().Format(timestampLayout)
	err = s.execWithRetry(ctx,
		`INSERT INTO captures (id, payload, metadata_json, address, device_ts, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             payload = excluded.payload,
             metadata_json = excluded.metadata_json,
             address = excluded.address,
             device_ts = excluded.device_ts,
             updated_at = excluded.updated_at`,
		capture.ID,
		capture.Payload,
		string(metadataJSON),
		nullableString(capture.Metadata.Address),
		nullableTime(capture.Metadata.DeviceTS),
		now,
		now,
	)
	return storageErr("put", capture.ID, err)
}

// GetAll returns every pending capture in insertion order.
func (s *Store) GetAll(ctx context.Context) ([]evidence.Capture, error) {
	ctx = ensureContext(ctx)
	var captures []evidence.Capture
	err := retryOnBusy(ctx, func() error {
		captures = captures[:0]
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, payload, metadata_json, created_at FROM captures ORDER BY created_at, rowid`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			capture, err := scanCapture(rows)
			if err != nil {
				return err
			}
			captures = append(captures, capture)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storageErr("get all", "", err)
	}
	if captures == nil {
		captures = []evidence.Capture{}
	}
	return captures, nil
}

// Get returns a single capture, or nil when the id is not queued.
func (s *Store) Get(ctx context.Context, id string) (*evidence.Capture, error) {
	ctx = ensureContext(ctx)
	var (
		capture evidence.Capture
		found   bool
	)
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT id, payload, metadata_json, created_at FROM captures WHERE id = ?`, id)
		var err error
		capture, err = scanCapture(row)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		return nil, storageErr("get", id, err)
	}
	if !found {
		return nil, nil
	}
	return &capture, nil
}

// Delete removes a capture. Removing an id that is not queued is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	return storageErr("delete", id, s.execWithRetry(ctx, `DELETE FROM captures WHERE id = ?`, id))
}

// Count returns the number of pending captures.
func (s *Store) Count(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM captures`).Scan(&count)
	})
	if err != nil {
		return 0, storageErr("count", "", err)
	}
	return count, nil
}

// List returns payload-free summaries in insertion order.
func (s *Store) List(ctx context.Context) ([]evidence.Summary, error) {
	ctx = ensureContext(ctx)
	var summaries []evidence.Summary
	err := retryOnBusy(ctx, func() error {
		summaries = summaries[:0]
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, address, device_ts, created_at, length(payload) FROM captures ORDER BY created_at, rowid`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				summary    evidence.Summary
				address    sql.NullString
				deviceRaw  sql.NullString
				createdRaw string
			)
			if err := rows.Scan(&summary.ID, &address, &deviceRaw, &createdRaw, &summary.SizeBytes); err != nil {
				return err
			}
			summary.Address = address.String
			summary.DeviceTS = parseTime(deviceRaw.String)
			summary.CreatedAt = parseTime(createdRaw)
			summaries = append(summaries, summary)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storageErr("list", "", err)
	}
	if summaries == nil {
		summaries = []evidence.Summary{}
	}
	return summaries, nil
}

func scanCapture(scanner interface{ Scan(dest ...any) error }) (evidence.Capture, error) {
	var (
		capture      evidence.Capture
		metadataJSON string
		createdRaw   string
	)
	if err := scanner.Scan(&capture.ID, &capture.Payload, &metadataJSON, &createdRaw); err != nil {
		return evidence.Capture{}, err
	}
	if err := json.Unmarshal([]byte(metadataJSON), &capture.Metadata); err != nil {
		return evidence.Capture{}, fmt.Errorf("decode metadata for %s: %w", capture.ID, err)
	}
	capture.CreatedAt = parseTime(createdRaw)
	return capture, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func nullableString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullableTime(value time.Time) sql.NullString {
	if value.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: value.UTC().Format(timestampLayout), Valid: true}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(timestampLayout, raw); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts.UTC()
	}
	return time.Time{}
}
