package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"reelnotes/internal/config"
	"reelnotes/internal/llm"
	"reelnotes/internal/logging"
	"reelnotes/internal/services"
)

const (
	// SummaryFallbackRunes bounds the transcript excerpt used as a fallback summary.
	SummaryFallbackRunes = 280
	untitledVideo        = "Untitled video"
	fallbackTitleWords   = 8
	maxPromptRunes       = 24000
)

// Summarizer produces note fields from transcripts.
type Summarizer struct {
	completer llm.Completer
	maxNotes  int
	logger    *slog.Logger
}

// New constructs a Summarizer. maxNotes is clamped to the supported range.
func New(completer llm.Completer, maxNotes int, logger *slog.Logger) *Summarizer {
	if maxNotes < config.MinNotes {
		maxNotes = config.MinNotes
	}
	if maxNotes > config.MaxNotes {
		maxNotes = config.MaxNotes
	}
	return &Summarizer{
		completer: completer,
		maxNotes:  maxNotes,
		logger:    logging.NewComponentLogger(logger, "summarize"),
	}
}

// Summarize asks the model for title, category, summary and notes. Unusable
// or refused output yields a Fallback result rather than an error.
func (s *Summarizer) Summarize(ctx context.Context, transcript, titleHint string) (Result, error) {
	transcript = strings.TrimSpace(transcript)
	titleHint = strings.TrimSpace(titleHint)
	logger := logging.WithContext(ctx, s.logger)

	if transcript == "" && titleHint == "" {
		return s.fallback(logger, transcript, titleHint, ReasonNoInput, "no transcript or title hint"), nil
	}

	start := time.Now()
	content, err := s.completer.CompleteJSON(ctx, systemPrompt(s.maxNotes), userPrompt(transcript, titleHint))
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, llm.ErrRefused):
			return s.fallback(logger, transcript, titleHint, ReasonRefused, err.Error()), nil
		case errors.Is(err, services.ErrMalformedResponse):
			return s.fallback(logger, transcript, titleHint, ReasonMalformed, err.Error()), nil
		case errors.Is(err, services.ErrRateLimited), errors.Is(err, services.ErrRetryExhausted),
			errors.Is(err, services.ErrConfiguration), errors.Is(err, services.ErrTransient):
			return nil, err
		default:
			return nil, services.Wrap(services.ErrConfiguration, "summarizing", "complete", "summarization request failed", err)
		}
	}

	var payload summaryPayload
	if err := llm.DecodeLLMJSON(content, &payload); err != nil {
		return s.fallback(logger, transcript, titleHint, ReasonMalformed, err.Error()), nil
	}
	title := collapseSpace(payload.Title)
	summary := collapseSpace(payload.Summary)
	if title == "" || summary == "" {
		return s.fallback(logger, transcript, titleHint, ReasonIncomplete,
			fmt.Sprintf("missing fields (title=%t summary=%t)", title != "", summary != "")), nil
	}

	result := WellFormed{
		Title:    title,
		Category: NormalizeCategory(payload.Category),
		Summary:  summary,
		Notes:    normalizeNotes(payload.Notes.values, s.maxNotes),
	}
	logger.Info("summary generated",
		logging.String("category", result.Category),
		logging.Int("notes", len(result.Notes)),
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldEventType, "summary_generated"),
	)
	return result, nil
}

func (s *Summarizer) fallback(logger *slog.Logger, transcript, titleHint string, reason FallbackReason, detail string) Fallback {
	result := Fallback{
		Reason:   reason,
		Detail:   detail,
		Title:    fallbackTitle(transcript, titleHint),
		Category: CategoryOther,
		Summary:  truncateRunes(transcript, SummaryFallbackRunes),
		Notes:    []string{},
	}
	logging.WarnWithContext(logger, "summary degraded; using fallback record", "summary_degraded",
		logging.Alert("degraded_summary"),
		logging.String("reason", string(reason)),
		logging.String("detail", truncateRunes(detail, 200)),
		logging.String(logging.FieldErrorKind, string(services.KindUpstreamMalformedResponse)),
		logging.String(logging.FieldErrorHint, "model output unusable; note saved with transcript excerpt"),
		logging.String(logging.FieldImpact, "note has no generated notes and category other"),
	)
	return result
}

type summaryPayload struct {
	Title    string    `json:"title"`
	Category string    `json:"category"`
	Summary  string    `json:"summary"`
	Notes    notesList `json:"notes"`
}

// notesList accepts an array of strings or a single newline-separated string.
type notesList struct {
	values []string
}

func (n *notesList) UnmarshalJSON(data []byte) error {
	var list []any
	if err := json.Unmarshal(data, &list); err == nil {
		for _, item := range list {
			switch v := item.(type) {
			case string:
				n.values = append(n.values, v)
			case map[string]any:
				if text, ok := v["text"].(string); ok {
					n.values = append(n.values, text)
				}
			}
		}
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("notes: expected array or string: %w", err)
	}
	n.values = strings.Split(single, "\n")
	return nil
}

func normalizeNotes(raw []string, limit int) []string {
	notes := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, note := range raw {
		note = collapseSpace(stripBullet(note))
		if note == "" {
			continue
		}
		key := strings.ToLower(note)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		notes = append(notes, note)
		if len(notes) == limit {
			break
		}
	}
	return notes
}

func stripBullet(note string) string {
	note = strings.TrimSpace(note)
	for _, prefix := range []string{"- ", "* ", "• "} {
		note = strings.TrimPrefix(note, prefix)
	}
	// "1. " or "1) "
	if i := strings.IndexAny(note, ".)"); i > 0 && i <= 2 && len(note) > i+1 && note[i+1] == ' ' {
		digits := true
		for _, r := range note[:i] {
			if r < '0' || r > '9' {
				digits = false
				break
			}
		}
		if digits {
			note = note[i+2:]
		}
	}
	return strings.TrimSpace(note)
}

func fallbackTitle(transcript, hint string) string {
	if hint != "" {
		return hint
	}
	words := strings.Fields(transcript)
	if len(words) == 0 {
		return untitledVideo
	}
	if len(words) > fallbackTitleWords {
		return strings.Join(words[:fallbackTitleWords], " ") + "…"
	}
	return strings.Join(words, " ")
}

func truncateRunes(value string, limit int) string {
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}

func collapseSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
