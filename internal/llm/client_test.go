package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reelnotes/internal/services"
)

func completionServer(t *testing.T, handler func(w http.ResponseWriter, calls int)) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		handler(w, calls)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func writeContent(t *testing.T, w http.ResponseWriter, choice map[string]any) {
	t.Helper()
	if err := json.NewEncoder(w).Encode(map[string]any{"choices": []any{choice}}); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func testClient(url string, opts ...Option) *Client {
	base := []Option{WithRetryBackoff(0, 0), WithSleeper(func(time.Duration) {})}
	return NewClient(Config{APIKey: "test", BaseURL: url, Model: "demo-model"}, append(base, opts...)...)
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseFormat["type"] != "json_object" {
			t.Errorf("expected json response format, got %v", req.ResponseFormat)
		}
		writeContent(t, w, map[string]any{"message": map[string]any{"content": `{"ok":true}`}})
	}))
	defer server.Close()

	if err := testClient(server.URL).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckCodeFence(t *testing.T) {
	server, _ := completionServer(t, func(w http.ResponseWriter, _ int) {
		writeContent(t, w, map[string]any{"message": map[string]any{"content": "```json\n{\"ok\":true}\n```"}})
	})
	if err := testClient(server.URL).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientUnauthorizedIsMisconfiguration(t *testing.T) {
	server, calls := completionServer(t, func(w http.ResponseWriter, _ int) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	})
	err := testClient(server.URL).HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected health check to fail")
	}
	if kind := services.KindOf(err); kind != services.KindOperationalMisconfiguration {
		t.Fatalf("expected misconfiguration, got %s (%v)", kind, err)
	}
	if *calls != 1 {
		t.Fatalf("expected no retries for 401, got %d calls", *calls)
	}
}

func TestClientMissingKeyIsMisconfiguration(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.CompleteJSON(context.Background(), "sys", "user")
	if services.KindOf(err) != services.KindOperationalMisconfiguration {
		t.Fatalf("expected misconfiguration, got %v", err)
	}
}

func TestClientToolCallsArguments(t *testing.T) {
	server, _ := completionServer(t, func(w http.ResponseWriter, _ int) {
		writeContent(t, w, map[string]any{
			"finish_reason": "tool_calls",
			"message": map[string]any{
				"content": "",
				"tool_calls": []any{map[string]any{
					"type":     "function",
					"id":       "call_1",
					"function": map[string]any{"name": "summarize", "arguments": `{"title":"Squats"}`},
				}},
			},
		})
	})
	content, err := testClient(server.URL).CompleteJSON(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if !strings.Contains(content, `"title"`) {
		t.Fatalf("expected tool call arguments, got %q", content)
	}
}

func TestClientDeltaAndLegacyText(t *testing.T) {
	for name, choice := range map[string]map[string]any{
		"delta":  {"delta": map[string]any{"content": `{"a":1}`}},
		"legacy": {"finish_reason": "stop", "text": `{"a":1}`},
	} {
		t.Run(name, func(t *testing.T) {
			server, _ := completionServer(t, func(w http.ResponseWriter, _ int) { writeContent(t, w, choice) })
			content, err := testClient(server.URL).CompleteJSON(context.Background(), "sys", "user")
			if err != nil {
				t.Fatalf("CompleteJSON returned error: %v", err)
			}
			if content != `{"a":1}` {
				t.Fatalf("unexpected content %q", content)
			}
		})
	}
}

func TestClientEmptyContentHasSnippet(t *testing.T) {
	server, calls := completionServer(t, func(w http.ResponseWriter, _ int) {
		writeContent(t, w, map[string]any{"finish_reason": "stop", "message": map[string]any{"content": ""}})
	})
	_, err := testClient(server.URL, WithRetryMaxAttempts(2)).CompleteJSON(context.Background(), "sys", "user")
	if err == nil {
		t.Fatal("expected completion to fail")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected empty-content error to include snippet, got %v", err)
	}
	if *calls != 2 {
		t.Fatalf("expected empty content to be retried, got %d calls", *calls)
	}
}

func TestClientRefusalIsNotRetried(t *testing.T) {
	server, calls := completionServer(t, func(w http.ResponseWriter, _ int) {
		writeContent(t, w, map[string]any{
			"finish_reason": "content_filter",
			"message":       map[string]any{"content": "", "refusal": "I can't help with that."},
		})
	})
	_, err := testClient(server.URL).CompleteJSON(context.Background(), "sys", "user")
	if !errors.Is(err, ErrRefused) {
		t.Fatalf("expected refusal, got %v", err)
	}
	if *calls != 1 {
		t.Fatalf("expected refusal to stop retries, got %d calls", *calls)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	server, calls := completionServer(t, func(w http.ResponseWriter, calls int) {
		if calls <= 3 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limited"})
			return
		}
		writeContent(t, w, map[string]any{"message": map[string]any{"content": `{"title":"ok"}`}})
	})
	var slept []time.Duration
	client := testClient(server.URL,
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(0, 10*time.Second),
		WithRetryMaxAttempts(5),
	)
	content, err := client.CompleteJSON(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if content != `{"title":"ok"}` {
		t.Fatalf("unexpected content %q", content)
	}
	if *calls != 4 {
		t.Fatalf("expected 4 calls, got %d", *calls)
	}
	if len(slept) != 3 || slept[0] != time.Second {
		t.Fatalf("expected three 1s sleeps, got %v", slept)
	}
}

func TestClientRateLimitExhaustion(t *testing.T) {
	server, _ := completionServer(t, func(w http.ResponseWriter, _ int) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := testClient(server.URL, WithRetryMaxAttempts(3)).CompleteJSON(context.Background(), "sys", "user")
	if services.KindOf(err) != services.KindUpstreamRateLimited {
		t.Fatalf("expected rate limited kind, got %s (%v)", services.KindOf(err), err)
	}
}

func TestClientServerErrorExhaustion(t *testing.T) {
	server, calls := completionServer(t, func(w http.ResponseWriter, _ int) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := testClient(server.URL, WithRetryMaxAttempts(3)).CompleteJSON(context.Background(), "sys", "user")
	if services.KindOf(err) != services.KindRetryExhausted {
		t.Fatalf("expected retry exhausted, got %s (%v)", services.KindOf(err), err)
	}
	if *calls != 3 {
		t.Fatalf("expected 3 calls, got %d", *calls)
	}
}

func TestClientPolicyRejectionStatus(t *testing.T) {
	server, _ := completionServer(t, func(w http.ResponseWriter, _ int) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Input flagged by moderation"}}`))
	})
	_, err := testClient(server.URL).CompleteJSON(context.Background(), "sys", "user")
	if !errors.Is(err, ErrRefused) {
		t.Fatalf("expected refusal, got %v", err)
	}
}

func TestDecodeLLMJSONExtractsObjectFromProse(t *testing.T) {
	var out struct {
		Title string `json:"title"`
	}
	if err := DecodeLLMJSON("Sure! Here you go: {\"title\":\"Leg day\"} Enjoy.", &out); err != nil {
		t.Fatalf("DecodeLLMJSON returned error: %v", err)
	}
	if out.Title != "Leg day" {
		t.Fatalf("unexpected title %q", out.Title)
	}
	if err := DecodeLLMJSON("not json", &out); err == nil {
		t.Fatal("expected decode failure")
	}
}
