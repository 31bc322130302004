package notes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reelnotes/internal/config"
	"reelnotes/internal/services"
)

// ErrDuplicateID is returned by Insert when a record with the note id exists.
var ErrDuplicateID = errors.New("note id already stored")

// Store is the Persistence Gateway.
type Store interface {
	// Insert appends note and returns its id. Existing records are never updated.
	Insert(ctx context.Context, note VideoNote) (string, error)
	// ListByUser returns the user's notes, newest first.
	ListByUser(ctx context.Context, userID string) ([]VideoNote, error)
	// ListAll returns every note, newest first.
	ListAll(ctx context.Context) ([]VideoNote, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the backend selected by store.backend.
func Open(ctx context.Context, cfg config.Store) (Store, error) {
	switch cfg.Backend {
	case config.StoreSQLite, "":
		store, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorePostgres:
		store, err := OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreFirestore:
		store, err := OpenFirestore(ctx, cfg.FirestoreProject, cfg.FirestoreCollection)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "persisting", "open store",
			fmt.Sprintf("unknown store backend %q", cfg.Backend), nil)
	}
}

func persistenceError(op string, err error) error {
	return services.Wrap(services.ErrPersistence, "persisting", op, "datastore operation failed", err)
}

func duplicateIDError(op string, err error) error {
	return services.Wrap(services.ErrPersistence, "persisting", op, "note id already stored",
		fmt.Errorf("%w: %w", ErrDuplicateID, err))
}

func invalidNote(err error) error {
	return services.Wrap(services.ErrConfiguration, "persisting", "validate", err.Error(), nil)
}

// timestampLayout is fixed width so lexical order matches time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(raw string) time.Time {
	if t, err := time.Parse(timestampLayout, raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
