package notes

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// VideoNote is the durable record produced for one submission.
type VideoNote struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	SourceURL     string    `json:"source_url"`
	Title         string    `json:"title"`
	Category      string    `json:"category"`
	Summary       string    `json:"summary"`
	Notes         []string  `json:"notes"`
	Transcription string    `json:"transcription"`
	Duration      *float64  `json:"duration,omitempty"`
	Thumbnail     string    `json:"thumbnail,omitempty"`
	Platform      string    `json:"platform,omitempty"`
	Degraded      bool      `json:"degraded"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a lexically sortable record id.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Validate checks the fields every persisted record must carry.
func (n VideoNote) Validate() error {
	var missing []string
	if strings.TrimSpace(n.UserID) == "" {
		missing = append(missing, "user_id")
	}
	if strings.TrimSpace(n.SourceURL) == "" {
		missing = append(missing, "source_url")
	}
	if strings.TrimSpace(n.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(n.Category) == "" {
		missing = append(missing, "category")
	}
	if len(missing) > 0 {
		return errors.New("video note missing " + strings.Join(missing, ", "))
	}
	return nil
}

// Prepared returns a copy with id and timestamps assigned when absent. Notes
// is never nil so it serializes as an empty array.
func Prepared(n VideoNote, now time.Time) VideoNote {
	if n.ID == "" {
		n.ID = NewID()
	}
	now = now.UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
	if n.Notes == nil {
		n.Notes = []string{}
	} else {
		n.Notes = append(make([]string, 0, len(n.Notes)), n.Notes...)
	}
	return n
}
