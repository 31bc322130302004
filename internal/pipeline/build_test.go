package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"reelnotes/internal/notifications"
	"reelnotes/internal/testsupport"
)

func TestBuildWiresNotifier(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	store := testsupport.MustOpenStore(t, cfg)

	runtime, err := Build(context.Background(), cfg, store, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = runtime.Close() })

	require.NotNil(t, runtime.opts.Notifier)
	require.NoError(t, runtime.opts.Notifier.NotifyNoteReady(context.Background(), notifications.NoteEvent{Title: "Core routine"}))
	require.EqualValues(t, 1, hits.Load())
}

func TestBuildWithoutTopicUsesSilentNotifier(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = ""
	store := testsupport.MustOpenStore(t, cfg)

	runtime, err := Build(context.Background(), cfg, store, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = runtime.Close() })

	require.NotNil(t, runtime.opts.Notifier)
	require.NoError(t, runtime.opts.Notifier.NotifyJobFailed(context.Background(), notifications.FailureEvent{JobID: "j"}))
}
