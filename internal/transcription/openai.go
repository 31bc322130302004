package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reelnotes/internal/retry"
	"reelnotes/internal/services"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "whisper-1"
	defaultOpenAITimeout = 5 * time.Minute
	openAIRetryBase      = 2 * time.Second
	openAIRetryMax       = 30 * time.Second
)

// OpenAIConfig describes an OpenAI-compatible transcription endpoint.
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Language          string
	Timeout           time.Duration
	MaxAttempts       int
	RequestsPerMinute int
}

// OpenAIProvider uploads audio to /audio/transcriptions.
type OpenAIProvider struct {
	cfg        OpenAIConfig
	httpClient *http.Client
	policy     retry.Policy
	limiter    *rate.Limiter
}

// OpenAIOption customizes the provider.
type OpenAIOption func(*OpenAIProvider)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithSleeper overrides retry sleeps (tests).
func WithSleeper(sleeper func(time.Duration)) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.policy.Sleeper = sleeper
	}
}

// NewOpenAIProvider constructs the provider.
func NewOpenAIProvider(cfg OpenAIConfig, opts ...OpenAIOption) *OpenAIProvider {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultOpenAITimeout
	}
	p := &OpenAIProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   openAIRetryBase,
			MaxDelay:    openAIRetryMax,
		},
	}
	if cfg.RequestsPerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the provider in logs.
func (p *OpenAIProvider) Name() string {
	return "openai:" + p.cfg.Model
}

// Transcribe uploads audioPath and returns the recognized text.
func (p *OpenAIProvider) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	if p.cfg.APIKey == "" {
		return Transcript{}, services.Wrap(services.ErrConfiguration, "transcribing", "openai",
			"api key required (set OPENAI_API_KEY)", nil)
	}
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrMediaCorrupt, "transcribing", "read audio", audioPath, err)
	}

	var transcript Transcript
	err = p.policy.Do(ctx, "openai transcribe", func(ctx context.Context, _ int) error {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		result, err := p.send(ctx, filepath.Base(audioPath), audio)
		if err != nil {
			return err
		}
		transcript = result
		return nil
	})
	if err != nil {
		return Transcript{}, err
	}
	return transcript, nil
}

type verboseTranscription struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text         string  `json:"text"`
		AvgLogprob   float64 `json:"avg_logprob"`
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}

// verboseJSONSupported reports whether the model accepts response_format=verbose_json.
// The gpt-4o transcription models only return plain json.
func (p *OpenAIProvider) verboseJSONSupported() bool {
	return !strings.HasPrefix(strings.ToLower(p.cfg.Model), "gpt-4o")
}

func (p *OpenAIProvider) send(ctx context.Context, filename string, audio []byte) (Transcript, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return Transcript{}, fmt.Errorf("openai transcribe: form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return Transcript{}, fmt.Errorf("openai transcribe: form file: %w", err)
	}
	format := "json"
	if p.verboseJSONSupported() {
		format = "verbose_json"
	}
	fields := map[string]string{
		"model":           p.cfg.Model,
		"response_format": format,
		"temperature":     "0",
	}
	if lang := ToISO2(p.cfg.Language); lang != "" {
		fields["language"] = lang
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return Transcript{}, fmt.Errorf("openai transcribe: field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return Transcript{}, fmt.Errorf("openai transcribe: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/audio/transcriptions", body)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrConfiguration, "transcribing", "openai", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Transcript{}, ctx.Err()
		}
		return Transcript{}, services.Wrap(services.ErrTransient, "transcribing", "openai",
			fmt.Sprintf("http error (timeout=%s)", p.cfg.Timeout), err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTransient, "transcribing", "openai", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := retry.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return Transcript{}, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(payload)),
			Retry:      retryAfter,
		}
	}

	var decoded verboseTranscription
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Transcript{}, services.Wrap(services.ErrMalformedResponse, "transcribing", "openai", "decode response", err)
	}
	transcript := Transcript{
		Text:            decoded.Text,
		Language:        decoded.Language,
		DurationSeconds: decoded.Duration,
	}
	if len(decoded.Segments) > 0 {
		scores := make([]float64, 0, len(decoded.Segments))
		for _, seg := range decoded.Segments {
			scores = append(scores, math.Exp(seg.AvgLogprob))
		}
		transcript.Confidence = meanConfidence(scores)
	}
	return transcript, nil
}

// StatusError is a non-2xx response from the transcription endpoint.
type StatusError struct {
	StatusCode int
	Body       string
	Retry      time.Duration
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("transcription api status %d: %s", e.StatusCode, body)
}

// RetryAfter returns the server-provided retry hint, if any.
func (e *StatusError) RetryAfter() time.Duration {
	return e.Retry
}

// Unwrap maps the status onto a failure marker.
func (e *StatusError) Unwrap() error {
	lower := strings.ToLower(e.Body)
	switch {
	case e.StatusCode == http.StatusTooManyRequests && strings.Contains(lower, "insufficient_quota"):
		return services.ErrConfiguration
	case e.StatusCode == http.StatusTooManyRequests:
		return services.ErrRateLimited
	case e.StatusCode == http.StatusRequestTimeout || e.StatusCode >= http.StatusInternalServerError:
		return services.ErrTransient
	case e.StatusCode == http.StatusRequestEntityTooLarge:
		return services.ErrUnsupportedSource
	case e.StatusCode == http.StatusBadRequest && isContentLimitation(lower):
		return services.ErrUnsupportedSource
	default:
		return services.ErrConfiguration
	}
}

var contentLimitationPatterns = []string{
	"duration",
	"too long",
	"invalid file format",
	"unsupported file",
	"could not be decoded",
	"audio file is too",
	"maximum content size",
}

func isContentLimitation(lowerBody string) bool {
	for _, pattern := range contentLimitationPatterns {
		if strings.Contains(lowerBody, pattern) {
			return true
		}
	}
	return false
}

var _ retry.RetryAfterer = (*StatusError)(nil)
