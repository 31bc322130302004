package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reelnotes/internal/config"
	"reelnotes/internal/notifications"
)

type captured struct {
	calls    int
	title    string
	tags     string
	priority string
	body     string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	var got captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		got.calls++
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		body, _ := io.ReadAll(r.Body)
		got.body = string(body)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, &got
}

func configFor(topic string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.RequestTimeoutSeconds = 5
	return &cfg
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	svc := notifications.NewService(configFor(""))
	if err := svc.NotifyNoteReady(context.Background(), notifications.NoteEvent{Title: "x"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := notifications.NewService(nil).TestNotification(context.Background()); err != nil {
		t.Fatalf("expected nil config to yield noop, got %v", err)
	}
}

func TestNotifyNoteReadyFormatsPayload(t *testing.T) {
	tests := []struct {
		name        string
		event       notifications.NoteEvent
		wantMessage string
		wantTags    string
	}{
		{
			name: "well formed",
			event: notifications.NoteEvent{
				Title:    "Perfect scrambled eggs",
				Category: "cooking",
				Platform: "tiktok",
				Elapsed:  42 * time.Second,
			},
			wantMessage: "📝 Notes ready: Perfect scrambled eggs [cooking]\nProcessed in 42s",
			wantTags:    "reelnotes,note,ready,tiktok",
		},
		{
			name:        "degraded without title",
			event:       notifications.NoteEvent{Degraded: true},
			wantMessage: "📝 Notes ready: Untitled video\nSummary unavailable; transcript saved",
			wantTags:    "reelnotes,note,ready,degraded",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, got := newCaptureServer(t, http.StatusOK)
			svc := notifications.NewService(configFor(server.URL))
			if err := svc.NotifyNoteReady(context.Background(), tc.event); err != nil {
				t.Fatalf("notify: %v", err)
			}
			if got.title != "reelnotes - Note Ready" {
				t.Fatalf("unexpected title %q", got.title)
			}
			if got.body != tc.wantMessage {
				t.Fatalf("expected message %q, got %q", tc.wantMessage, got.body)
			}
			if got.tags != tc.wantTags {
				t.Fatalf("expected tags %q, got %q", tc.wantTags, got.tags)
			}
			if got.priority != "" {
				t.Fatalf("expected default priority, got %q", got.priority)
			}
		})
	}
}

func TestNotifyJobFailedFormatsPayload(t *testing.T) {
	server, got := newCaptureServer(t, http.StatusOK)
	svc := notifications.NewService(configFor(server.URL))
	err := svc.NotifyJobFailed(context.Background(), notifications.FailureEvent{
		JobID:  "0c9f1d2e-aaaa-bbbb-cccc-000000000000",
		URL:    "https://www.instagram.com/reel/abc/",
		Stage:  "retrieving",
		Kind:   "AccessDenied",
		Reason: "video is private",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	want := "❌ Job 0c9f1d2e failed while retrieving: video is private\nhttps://www.instagram.com/reel/abc/"
	if got.body != want {
		t.Fatalf("expected message %q, got %q", want, got.body)
	}
	if got.tags != "reelnotes,job,failed,AccessDenied" {
		t.Fatalf("unexpected tags %q", got.tags)
	}
	if got.priority != "high" {
		t.Fatalf("expected high priority, got %q", got.priority)
	}
}

func TestNotifySuppressedByConfig(t *testing.T) {
	server, got := newCaptureServer(t, http.StatusOK)
	cfg := configFor(server.URL)
	cfg.Notifications.NotifySuccess = false
	cfg.Notifications.NotifyFailure = false
	svc := notifications.NewService(cfg)

	if err := svc.NotifyNoteReady(context.Background(), notifications.NoteEvent{Title: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.NotifyJobFailed(context.Background(), notifications.FailureEvent{JobID: "j"}); err != nil {
		t.Fatal(err)
	}
	if got.calls != 0 {
		t.Fatalf("expected no requests, got %d", got.calls)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("test notification: %v", err)
	}
	if got.calls != 1 || got.priority != "low" {
		t.Fatalf("expected one low-priority test request, got calls=%d priority=%q", got.calls, got.priority)
	}
}

func TestNotifyReportsServerError(t *testing.T) {
	server, _ := newCaptureServer(t, http.StatusForbidden)
	svc := notifications.NewService(configFor(server.URL))
	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
