package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelnotes/internal/config"
)

const userAgent = "reelnotes/0.1"

// NoteEvent describes a note that finished the pipeline and was stored.
type NoteEvent struct {
	JobID    string
	UserID   string
	Title    string
	Category string
	Platform string
	Degraded bool
	Elapsed  time.Duration
}

// FailureEvent describes a job that ended in the failed state.
type FailureEvent struct {
	JobID  string
	UserID string
	URL    string
	Stage  string
	Kind   string
	Reason string
}

// Service is the notification surface used by the pipeline and CLI.
type Service interface {
	NotifyNoteReady(ctx context.Context, event NoteEvent) error
	NotifyJobFailed(ctx context.Context, event FailureEvent) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed Service, or a no-op one when
// notifications.ntfy_topic is empty.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	n := cfg.Notifications
	topic := strings.TrimSpace(n.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(n.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		notifySuccess: n.NotifySuccess,
		notifyFailure: n.NotifyFailure,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	notifySuccess bool
	notifyFailure bool
}

func (n *ntfyService) NotifyNoteReady(ctx context.Context, event NoteEvent) error {
	if !n.notifySuccess {
		return nil
	}
	title := strings.TrimSpace(event.Title)
	if title == "" {
		title = "Untitled video"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📝 Notes ready: %s", title)
	if category := strings.TrimSpace(event.Category); category != "" {
		fmt.Fprintf(&b, " [%s]", category)
	}
	if event.Degraded {
		b.WriteString("\nSummary unavailable; transcript saved")
	}
	if event.Elapsed > 0 {
		fmt.Fprintf(&b, "\nProcessed in %s", event.Elapsed.Round(time.Second))
	}
	tags := []string{"reelnotes", "note", "ready"}
	if platform := strings.TrimSpace(event.Platform); platform != "" {
		tags = append(tags, platform)
	}
	if event.Degraded {
		tags = append(tags, "degraded")
	}
	return n.send(ctx, payload{
		title:   "reelnotes - Note Ready",
		message: b.String(),
		tags:    tags,
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, event FailureEvent) error {
	if !n.notifyFailure {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "❌ Job %s failed", shortID(event.JobID))
	if stage := strings.TrimSpace(event.Stage); stage != "" {
		fmt.Fprintf(&b, " while %s", stage)
	}
	if reason := strings.TrimSpace(event.Reason); reason != "" {
		fmt.Fprintf(&b, ": %s", reason)
	}
	if url := strings.TrimSpace(event.URL); url != "" {
		fmt.Fprintf(&b, "\n%s", url)
	}
	tags := []string{"reelnotes", "job", "failed"}
	if kind := strings.TrimSpace(event.Kind); kind != "" {
		tags = append(tags, kind)
	}
	return n.send(ctx, payload{
		title:    "reelnotes - Job Failed",
		message:  b.String(),
		tags:     tags,
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "reelnotes - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"reelnotes", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type noopService struct{}

func (noopService) NotifyNoteReady(context.Context, NoteEvent) error    { return nil }
func (noopService) NotifyJobFailed(context.Context, FailureEvent) error { return nil }
func (noopService) TestNotification(context.Context) error              { return nil }
