package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"reelnotes/internal/config"
	"reelnotes/internal/logging"
	"reelnotes/internal/services"
)

// Transcript is the speech-to-text result for one audio file.
type Transcript struct {
	Text            string
	Confidence      *float64
	Language        string
	DurationSeconds float64
}

// Empty reports whether no speech was recognized.
func (t Transcript) Empty() bool {
	return strings.TrimSpace(t.Text) == ""
}

// Transcriber converts an audio file into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (Transcript, error)
	Name() string
}

// FromConfig builds the provider selected by transcription.provider.
func FromConfig(cfg *config.Config) (Transcriber, error) {
	tc := cfg.Transcription
	switch tc.Provider {
	case config.TranscriptionWhisperX:
		return NewWhisperXProvider(WhisperXConfig{
			Model:       tc.WhisperXModel,
			CUDAEnabled: tc.WhisperXCUDA,
			Language:    tc.Language,
			Timeout:     cfg.TranscriptionTimeout(),
		}), nil
	case config.TranscriptionOpenAI, "":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:            tc.APIKey,
			BaseURL:           tc.BaseURL,
			Model:             tc.Model,
			Language:          tc.Language,
			Timeout:           cfg.TranscriptionTimeout(),
			MaxAttempts:       tc.MaxAttempts,
			RequestsPerMinute: tc.RequestsPerMinute,
		}), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "transcribing", "provider",
			fmt.Sprintf("unknown transcription provider %q", tc.Provider), nil)
	}
}

// Adapter guards a Transcriber with the configured duration ceiling.
type Adapter struct {
	provider    Transcriber
	maxDuration float64
	logger      *slog.Logger
}

// NewAdapter wraps provider. maxDurationSeconds <= 0 disables the ceiling.
func NewAdapter(provider Transcriber, maxDurationSeconds int, logger *slog.Logger) *Adapter {
	return &Adapter{
		provider:    provider,
		maxDuration: float64(maxDurationSeconds),
		logger:      logging.NewComponentLogger(logger, "transcription"),
	}
}

// Transcribe checks durationSeconds against the ceiling before calling the
// provider. Audio that is too long is a content limitation, not a retryable fault.
func (a *Adapter) Transcribe(ctx context.Context, audioPath string, durationSeconds float64) (Transcript, error) {
	if a.maxDuration > 0 && durationSeconds > a.maxDuration {
		return Transcript{}, services.Wrap(services.ErrUnsupportedSource, "transcribing", "duration check",
			fmt.Sprintf("audio is %.0fs, limit is %.0fs", durationSeconds, a.maxDuration), nil)
	}
	logger := logging.WithContext(ctx, a.logger)
	start := time.Now()
	transcript, err := a.provider.Transcribe(ctx, audioPath)
	if err != nil {
		return Transcript{}, err
	}
	transcript.Text = strings.TrimSpace(transcript.Text)
	transcript.Language = ToISO2(transcript.Language)
	if transcript.DurationSeconds <= 0 {
		transcript.DurationSeconds = durationSeconds
	}

	attrs := []logging.Attr{
		logging.String("provider", a.provider.Name()),
		logging.Int("characters", len(transcript.Text)),
		logging.String("language", DisplayName(transcript.Language)),
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldEventType, "transcription_completed"),
	}
	if transcript.Confidence != nil {
		attrs = append(attrs, logging.Float64("confidence", *transcript.Confidence))
	}
	if transcript.Empty() {
		logger.Info("no speech recognized", logging.Args(attrs...)...)
	} else {
		logger.Info("transcription completed", logging.Args(attrs...)...)
	}
	return transcript, nil
}

func meanConfidence(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return nil
	}
	mean = math.Max(0, math.Min(1, mean))
	return &mean
}
