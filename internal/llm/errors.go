package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"reelnotes/internal/services"
)

// ErrRefused marks a completion the model declined on content-policy grounds.
var ErrRefused = errors.New("llm refused request")

// StatusError is a non-2xx response from a chat completions endpoint.
type StatusError struct {
	StatusCode int
	Body       string
	Retry      time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, summarizePayloadSnippet(e.Body))
}

// RetryAfter exposes the upstream Retry-After hint to retry policies.
func (e *StatusError) RetryAfter() time.Duration {
	return e.Retry
}

// Unwrap classifies the status into a failure marker.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return services.ErrRateLimited
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode >= http.StatusInternalServerError:
		return services.ErrTransient
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden,
		e.StatusCode == http.StatusPaymentRequired, e.StatusCode == http.StatusNotFound:
		return services.ErrConfiguration
	case isPolicyRejection(e.Body):
		return ErrRefused
	default:
		return services.ErrConfiguration
	}
}

// EmptyContentError reports a 2xx completion without usable content.
type EmptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *EmptyContentError) Error() string {
	return fmt.Sprintf(
		"%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op,
		e.FinishReason,
		e.Refusal,
		e.Snippet,
	)
}

func (e *EmptyContentError) Unwrap() error {
	if e.Refusal != "" || strings.EqualFold(e.FinishReason, "content_filter") {
		return ErrRefused
	}
	return services.ErrMalformedResponse
}

// retryable extends the shared predicate: an empty completion without a
// refusal is usually a provider hiccup and worth another attempt.
func retryable(err error) bool {
	if errors.Is(err, ErrRefused) {
		return false
	}
	var empty *EmptyContentError
	if errors.As(err, &empty) {
		return true
	}
	return services.IsRetryable(err)
}

func isPolicyRejection(body string) bool {
	lower := strings.ToLower(body)
	for _, needle := range []string{"content_policy", "content policy", "content_filter", "moderation", "flagged"} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}
