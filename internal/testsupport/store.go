package testsupport

import (
	"context"
	"testing"
	"time"

	"reelnotes/internal/config"
	"reelnotes/internal/notes"
)

// MustOpenStore opens the configured notes.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) notes.Store {
	t.Helper()

	store, err := notes.Open(context.Background(), cfg.Store)
	if err != nil {
		t.Fatalf("notes.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// InsertNote stores a complete note for userID and returns it with its id.
func InsertNote(t testing.TB, store notes.Store, userID, title string, created time.Time) notes.VideoNote {
	t.Helper()

	note := notes.VideoNote{
		UserID:        userID,
		SourceURL:     "https://www.youtube.com/shorts/dQw4w9WgXcQ",
		Title:         title,
		Category:      "education",
		Summary:       title + " summary",
		Notes:         []string{"first", "second", "third"},
		Transcription: "transcript for " + title,
		Platform:      "youtube",
		CreatedAt:     created,
	}
	id, err := store.Insert(context.Background(), note)
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	note.ID = id
	return note
}
