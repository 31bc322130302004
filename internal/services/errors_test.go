package services_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"

	"reelnotes/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrAccessDenied, "retrieving", "yt-dlp", "private video", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrAccessDenied) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"retrieving", "yt-dlp", "private video", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestDetailsUsesOutermostStage(t *testing.T) {
	inner := services.Wrap(services.ErrRateLimited, "summarizing", "complete", "429", nil)
	outer := fmt.Errorf("pipeline: %w", inner)

	details := services.Details(outer)
	if details.Kind != services.KindUpstreamRateLimited {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if details.Stage != "summarizing" || details.Operation != "complete" {
		t.Fatalf("unexpected stage context: %+v", details)
	}
	if details.Hint == "" {
		t.Fatal("expected hint for rate limited kind")
	}
}

func TestKindOfClassification(t *testing.T) {
	transient := services.Wrap(services.ErrTransient, "retrieving", "download", "reset", nil)
	exhausted := services.Wrap(services.ErrRetryExhausted, "retrieving", "download", "gave up", transient)

	cases := []struct {
		name string
		err  error
		want services.Kind
	}{
		{"nil", nil, ""},
		{"marker", services.Wrap(services.ErrMediaCorrupt, "extracting", "", "", nil), services.KindMediaCorrupt},
		{"exhausted beats transient", exhausted, services.KindRetryExhausted},
		{"context canceled", fmt.Errorf("wrapped: %w", context.Canceled), services.KindCancelled},
		{"deadline", context.DeadlineExceeded, services.KindTransientNetworkFailure},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("refused")}, services.KindTransientNetworkFailure},
		{"unknown", errors.New("mystery"), services.KindOperationalMisconfiguration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !services.IsRetryable(services.Wrap(services.ErrRateLimited, "", "", "", nil)) {
		t.Fatal("expected rate limited to be retryable")
	}
	if !services.IsRetryable(services.Wrap(services.ErrTransient, "", "", "", nil)) {
		t.Fatal("expected transient to be retryable")
	}
	if services.IsRetryable(services.Wrap(services.ErrAccessDenied, "", "", "", nil)) {
		t.Fatal("expected access denied to be final")
	}
	exhausted := services.Wrap(services.ErrRetryExhausted, "", "", "", services.Wrap(services.ErrTransient, "", "", "", nil))
	if services.IsRetryable(exhausted) {
		t.Fatal("expected exhausted error to be final")
	}
}
