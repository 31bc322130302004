package transcription

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"reelnotes/internal/services"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio_1234abcd.mp3")
	if err := os.WriteFile(path, []byte("ID3fake"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func newTestProvider(t *testing.T, srv *httptest.Server, cfg OpenAIConfig) *OpenAIProvider {
	t.Helper()
	if cfg.APIKey == "" {
		cfg.APIKey = "sk-test"
	}
	cfg.BaseURL = srv.URL
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	return NewOpenAIProvider(cfg, WithHTTPClient(srv.Client()), WithSleeper(func(time.Duration) {}))
}

func TestOpenAITranscribeVerboseJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.FormValue("response_format") != "verbose_json" {
			t.Fatalf("expected verbose_json, got %q", r.FormValue("response_format"))
		}
		if r.FormValue("language") != "en" {
			t.Fatalf("expected language en, got %q", r.FormValue("language"))
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "ID3fake" || header.Filename != "audio_1234abcd.mp3" {
			t.Fatalf("unexpected upload %q %q", header.Filename, data)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" Hello there. ","language":"english","duration":12.5,"segments":[{"avg_logprob":0},{"avg_logprob":0}]}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv, OpenAIConfig{Language: "english"})
	got, err := p.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != " Hello there. " {
		t.Fatalf("unexpected text %q", got.Text)
	}
	if got.Confidence == nil || *got.Confidence != 1 {
		t.Fatalf("expected confidence 1, got %v", got.Confidence)
	}
	if got.DurationSeconds != 12.5 || got.Language != "english" {
		t.Fatalf("unexpected metadata %+v", got)
	}
}

func TestOpenAIGPT4oModelsUsePlainJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)
		if r.FormValue("response_format") != "json" {
			t.Fatalf("expected json, got %q", r.FormValue("response_format"))
		}
		_, _ = w.Write([]byte(`{"text":"hi"}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv, OpenAIConfig{Model: "gpt-4o-mini-transcribe"})
	got, err := p.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Confidence != nil {
		t.Fatalf("expected no confidence without segments, got %v", *got.Confidence)
	}
}

func TestOpenAIRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.Header().Set("Retry-After", "1")
			http.Error(w, `{"error":{"message":"Rate limit reached"}}`, http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"text":"done"}`))
	}))
	defer srv.Close()

	var slept []time.Duration
	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, MaxAttempts: 4},
		WithHTTPClient(srv.Client()),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }))
	got, err := p.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "done" || calls.Load() != 3 {
		t.Fatalf("unexpected result %q after %d calls", got.Text, calls.Load())
	}
	if len(slept) != 2 || slept[0] != time.Second {
		t.Fatalf("expected Retry-After honoured, got %v", slept)
	}
}

func TestOpenAIStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   services.Kind
		calls  int32
	}{
		{http.StatusUnauthorized, `{"error":{"message":"Incorrect API key"}}`, services.KindOperationalMisconfiguration, 1},
		{http.StatusRequestEntityTooLarge, `too large`, services.KindUnsupportedSource, 1},
		{http.StatusBadRequest, `{"error":{"message":"Audio file is too long. Maximum duration is 1500 seconds"}}`, services.KindUnsupportedSource, 1},
		{http.StatusBadRequest, `{"error":{"message":"Invalid file format. Supported formats: ['mp3']"}}`, services.KindUnsupportedSource, 1},
		{http.StatusTooManyRequests, `{"error":{"code":"insufficient_quota"}}`, services.KindOperationalMisconfiguration, 1},
		{http.StatusTooManyRequests, `slow down`, services.KindUpstreamRateLimited, 3},
		{http.StatusBadGateway, `bad gateway`, services.KindRetryExhausted, 3},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status)+"/"+tc.body, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				http.Error(w, tc.body, tc.status)
			}))
			defer srv.Close()

			p := newTestProvider(t, srv, OpenAIConfig{})
			_, err := p.Transcribe(context.Background(), writeAudio(t))
			if got := services.KindOf(err); got != tc.want {
				t.Fatalf("expected %s, got %s (%v)", tc.want, got, err)
			}
			if calls.Load() != tc.calls {
				t.Fatalf("expected %d calls, got %d", tc.calls, calls.Load())
			}
		})
	}
}

func TestOpenAIMissingKey(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{})
	_, err := p.Transcribe(context.Background(), writeAudio(t))
	if services.KindOf(err) != services.KindOperationalMisconfiguration {
		t.Fatalf("expected misconfiguration, got %v", err)
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected env var hint, got %v", err)
	}
}
