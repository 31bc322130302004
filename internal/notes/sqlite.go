package notes

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

	_ "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"reelnotes/internal/services"
)

// SQLiteStore persists notes in a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const noteColumns = "id, user_id, source_url, title, category, summary, notes_json, transcription, duration, thumbnail, platform, degraded, created_at, updated_at"

// OpenSQLite opens (creating if needed) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "persisting", "open sqlite", "store.sqlite_path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, persistenceError("open sqlite", err)
	}
	// busy_timeout must be set per connection; the DSN pragma applies it to every pooled one.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, persistenceError("open sqlite", fmt.Errorf("open sqlite db: %w", err))
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, persistenceError("open sqlite", fmt.Errorf("apply pragma %q: %w", pragma, execErr))
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, persistenceError("migrate sqlite", err)
	}
	return store, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return persistenceError("ping", err)
	}
	return nil
}

// Insert appends note.
func (s *SQLiteStore) Insert(ctx context.Context, note VideoNote) (string, error) {
	if err := note.Validate(); err != nil {
		return "", invalidNote(err)
	}
	note = Prepared(note, time.Now())
	notesJSON, err := json.Marshal(note.Notes)
	if err != nil {
		return "", persistenceError("insert", fmt.Errorf("marshal notes: %w", err))
	}
	err = retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO video_notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			note.ID,
			note.UserID,
			note.SourceURL,
			note.Title,
			note.Category,
			note.Summary,
			string(notesJSON),
			note.Transcription,
			nullableFloat(note.Duration),
			nullableString(note.Thumbnail),
			nullableString(note.Platform),
			boolToInt(note.Degraded),
			formatTimestamp(note.CreatedAt),
			formatTimestamp(note.UpdatedAt),
		)
		return execErr
	})
	if isSQLiteDuplicate(err) {
		return "", duplicateIDError("insert", err)
	}
	if err != nil {
		return "", persistenceError("insert", err)
	}
	return note.ID, nil
}

// ListByUser returns the user's notes, newest first.
func (s *SQLiteStore) ListByUser(ctx context.Context, userID string) ([]VideoNote, error) {
	return s.list(ctx, `SELECT `+noteColumns+` FROM video_notes WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
}

// ListAll returns every note, newest first.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]VideoNote, error) {
	return s.list(ctx, `SELECT `+noteColumns+` FROM video_notes ORDER BY created_at DESC, id DESC`)
}

func (s *SQLiteStore) list(ctx context.Context, query string, args ...any) ([]VideoNote, error) {
	var result []VideoNote
	err := retryOnBusy(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		result = result[:0]
		for rows.Next() {
			note, err := scanSQLiteNote(rows)
			if err != nil {
				return err
			}
			result = append(result, note)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, persistenceError("list", err)
	}
	if result == nil {
		result = []VideoNote{}
	}
	return result, nil
}

func scanSQLiteNote(scanner interface{ Scan(dest ...any) error }) (VideoNote, error) {
	var (
		note       VideoNote
		notesJSON  string
		duration   sql.NullFloat64
		thumbnail  sql.NullString
		platform   sql.NullString
		degraded   int64
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&note.ID,
		&note.UserID,
		&note.SourceURL,
		&note.Title,
		&note.Category,
		&note.Summary,
		&notesJSON,
		&note.Transcription,
		&duration,
		&thumbnail,
		&platform,
		&degraded,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return VideoNote{}, err
	}
	if err := json.Unmarshal([]byte(notesJSON), &note.Notes); err != nil {
		return VideoNote{}, fmt.Errorf("decode notes for %s: %w", note.ID, err)
	}
	if note.Notes == nil {
		note.Notes = []string{}
	}
	if duration.Valid {
		d := duration.Float64
		note.Duration = &d
	}
	note.Thumbnail = thumbnail.String
	note.Platform = platform.String
	note.Degraded = degraded != 0
	note.CreatedAt = parseTimestamp(createdRaw)
	note.UpdatedAt = parseTimestamp(updatedRaw)
	return note, nil
}

func (s *SQLiteStore) applyMigrations(ctx context.Context) error {
	migrations, err := loadMigrations("sqlite")
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	for _, m := range migrations {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", m.version).Scan(&count); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.version, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isSQLiteDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		switch coder.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
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

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
