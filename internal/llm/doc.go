// Package llm provides JSON-mode chat completion clients for summarization.
//
// Two backends satisfy Completer: Client talks to OpenRouter (or any
// OpenAI-compatible chat completions endpoint) and VertexClient talks to
// Gemini through Vertex AI.
//
// # Retry Behaviour
//
// Both clients retry rate limits, HTTP 408/5xx responses, network failures,
// and empty completions with exponential backoff (base 1s, max 10s, up to 5
// attempts by default), honouring Retry-After. Requests are paced by an
// optional per-minute limiter. Context cancellation aborts retries
// immediately.
//
// # Errors
//
// Failures carry services markers so callers can classify them: throttling
// is services.ErrRateLimited, credential problems are services.ErrConfiguration,
// and content-policy refusals match ErrRefused.
package llm
