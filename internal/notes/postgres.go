package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"reelnotes/internal/services"
)

// pgUniqueViolation is SQLSTATE unique_violation.
const pgUniqueViolation = "23505"

// PostgresStore persists notes in Postgres (Supabase's video_notes table).
type PostgresStore struct {
	pool *pgxpool.Pool
}

const pgNoteColumns = "id, user_id, source_url, title, category, summary, notes, transcription, duration, thumbnail, platform, degraded, created_at, updated_at"

// OpenPostgres creates a pgx pool for databaseURL and runs migrations.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "persisting", "open postgres",
			"database url required (set DATABASE_URL or SUPABASE_DB_URL)", nil)
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "persisting", "open postgres", "parse database url", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, persistenceError("open postgres", fmt.Errorf("create pgx pool: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, persistenceError("open postgres", fmt.Errorf("ping postgres: %w", err))
	}
	store := &PostgresStore{pool: pool}
	if err := store.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, persistenceError("migrate postgres", err)
	}
	return store, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ping verifies connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return persistenceError("ping", err)
	}
	return nil
}

// Insert appends note.
func (s *PostgresStore) Insert(ctx context.Context, note VideoNote) (string, error) {
	if err := note.Validate(); err != nil {
		return "", invalidNote(err)
	}
	note = Prepared(note, time.Now())
	notesJSON, err := json.Marshal(note.Notes)
	if err != nil {
		return "", persistenceError("insert", fmt.Errorf("marshal notes: %w", err))
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO video_notes (`+pgNoteColumns+`)
         VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11, $12, $13, $14)`,
		note.ID,
		note.UserID,
		note.SourceURL,
		note.Title,
		note.Category,
		note.Summary,
		string(notesJSON),
		note.Transcription,
		note.Duration,
		nullableString(note.Thumbnail),
		nullableString(note.Platform),
		note.Degraded,
		note.CreatedAt,
		note.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return "", duplicateIDError("insert", err)
	}
	if err != nil {
		return "", persistenceError("insert", err)
	}
	return note.ID, nil
}

// ListByUser returns the user's notes, newest first.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]VideoNote, error) {
	return s.list(ctx, `SELECT `+pgNoteColumns+` FROM video_notes WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

// ListAll returns every note, newest first.
func (s *PostgresStore) ListAll(ctx context.Context) ([]VideoNote, error) {
	return s.list(ctx, `SELECT `+pgNoteColumns+` FROM video_notes ORDER BY created_at DESC, id DESC`)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]VideoNote, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, persistenceError("list", err)
	}
	notes, err := pgx.CollectRows(rows, scanPostgresNote)
	if err != nil {
		return nil, persistenceError("list", err)
	}
	if notes == nil {
		notes = []VideoNote{}
	}
	return notes, nil
}

func scanPostgresNote(row pgx.CollectableRow) (VideoNote, error) {
	var (
		note      VideoNote
		notesJSON []byte
		thumbnail *string
		platform  *string
	)
	if err := row.Scan(
		&note.ID,
		&note.UserID,
		&note.SourceURL,
		&note.Title,
		&note.Category,
		&note.Summary,
		&notesJSON,
		&note.Transcription,
		&note.Duration,
		&thumbnail,
		&platform,
		&note.Degraded,
		&note.CreatedAt,
		&note.UpdatedAt,
	); err != nil {
		return VideoNote{}, err
	}
	if len(notesJSON) > 0 {
		if err := json.Unmarshal(notesJSON, &note.Notes); err != nil {
			return VideoNote{}, fmt.Errorf("decode notes for %s: %w", note.ID, err)
		}
	}
	if note.Notes == nil {
		note.Notes = []string{}
	}
	if thumbnail != nil {
		note.Thumbnail = *thumbnail
	}
	if platform != nil {
		note.Platform = *platform
	}
	note.CreatedAt = note.CreatedAt.UTC()
	note.UpdatedAt = note.UpdatedAt.UTC()
	return note, nil
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	migrations, err := loadMigrations("postgres")
	if err != nil {
		return err
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	for _, m := range migrations {
		var applied bool
		err := conn.QueryRow(ctx, "SELECT TRUE FROM schema_migrations WHERE version = $1", m.version).Scan(&applied)
		if err == nil && applied {
			continue
		}
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", m.version, err)
		}
		tx, err := conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.version, err)
		}
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("apply migration %s: %w", m.version, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %s: %w", m.version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.version, err)
		}
	}
	return nil
}
