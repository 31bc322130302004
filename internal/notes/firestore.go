package notes

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"reelnotes/internal/services"
)

const defaultFirestoreCollection = "video_notes"

// FirestoreStore persists notes as documents keyed by note id.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

type firestoreNote struct {
	UserID        string    `firestore:"user_id"`
	SourceURL     string    `firestore:"source_url"`
	Title         string    `firestore:"title"`
	Category      string    `firestore:"category"`
	Summary       string    `firestore:"summary"`
	Notes         []string  `firestore:"notes"`
	Transcription string    `firestore:"transcription"`
	Duration      *float64  `firestore:"duration"`
	Thumbnail     string    `firestore:"thumbnail,omitempty"`
	Platform      string    `firestore:"platform,omitempty"`
	Degraded      bool      `firestore:"degraded"`
	CreatedAt     time.Time `firestore:"created_at"`
	UpdatedAt     time.Time `firestore:"updated_at"`
}

// OpenFirestore connects to projectID using application default credentials.
func OpenFirestore(ctx context.Context, projectID, collection string) (*FirestoreStore, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "persisting", "open firestore",
			"project required (set store.firestore_project or GOOGLE_CLOUD_PROJECT)", nil)
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultFirestoreCollection
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "persisting", "open firestore", "create firestore client", err)
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

// Close releases the client.
func (s *FirestoreStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Ping runs a one-document read against the collection.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	if _, err := s.client.Collection(s.collection).Limit(1).Documents(ctx).GetAll(); err != nil {
		return persistenceError("ping", err)
	}
	return nil
}

// Insert creates a new document; an id collision fails rather than overwrites.
func (s *FirestoreStore) Insert(ctx context.Context, note VideoNote) (string, error) {
	if err := note.Validate(); err != nil {
		return "", invalidNote(err)
	}
	note = Prepared(note, time.Now())
	doc := firestoreNote{
		UserID:        note.UserID,
		SourceURL:     note.SourceURL,
		Title:         note.Title,
		Category:      note.Category,
		Summary:       note.Summary,
		Notes:         note.Notes,
		Transcription: note.Transcription,
		Duration:      note.Duration,
		Thumbnail:     note.Thumbnail,
		Platform:      note.Platform,
		Degraded:      note.Degraded,
		CreatedAt:     note.CreatedAt,
		UpdatedAt:     note.UpdatedAt,
	}
	if _, err := s.client.Collection(s.collection).Doc(note.ID).Create(ctx, doc); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return "", duplicateIDError("insert", err)
		}
		return "", persistenceError("insert", err)
	}
	return note.ID, nil
}

// ListByUser returns the user's notes, newest first.
func (s *FirestoreStore) ListByUser(ctx context.Context, userID string) ([]VideoNote, error) {
	return s.list(ctx, s.client.Collection(s.collection).Where("user_id", "==", userID))
}

// ListAll returns every note, newest first.
func (s *FirestoreStore) ListAll(ctx context.Context) ([]VideoNote, error) {
	return s.list(ctx, s.client.Collection(s.collection).Query)
}

func (s *FirestoreStore) list(ctx context.Context, query firestore.Query) ([]VideoNote, error) {
	snaps, err := query.
		OrderBy("created_at", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, persistenceError("list", err)
	}
	notes := make([]VideoNote, 0, len(snaps))
	for _, snap := range snaps {
		var doc firestoreNote
		if err := snap.DataTo(&doc); err != nil {
			return nil, persistenceError("list", err)
		}
		notes = append(notes, doc.toNote(snap.Ref.ID))
	}
	return notes, nil
}

func (d firestoreNote) toNote(id string) VideoNote {
	notes := d.Notes
	if notes == nil {
		notes = []string{}
	}
	return VideoNote{
		ID:            id,
		UserID:        d.UserID,
		SourceURL:     d.SourceURL,
		Title:         d.Title,
		Category:      d.Category,
		Summary:       d.Summary,
		Notes:         notes,
		Transcription: d.Transcription,
		Duration:      d.Duration,
		Thumbnail:     d.Thumbnail,
		Platform:      d.Platform,
		Degraded:      d.Degraded,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}
