package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"reelnotes/internal/audio"
	"reelnotes/internal/config"
	"reelnotes/internal/llm"
	"reelnotes/internal/notes"
	"reelnotes/internal/notifications"
	"reelnotes/internal/retriever"
	"reelnotes/internal/summarize"
	"reelnotes/internal/tempfiles"
	"reelnotes/internal/transcription"
)

// Runtime is an Orchestrator wired to real stage implementations together
// with the resources it owns.
type Runtime struct {
	*Orchestrator
	Temp      *tempfiles.Manager
	Completer llm.Completer
}

// Build wires the production stages from cfg. The caller keeps ownership of
// store; Close releases everything else.
func Build(ctx context.Context, cfg *config.Config, store notes.Store, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline: config is required")
	}
	provider, err := transcription.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	completer, err := llm.FromConfig(ctx, cfg.GetLLM())
	if err != nil {
		return nil, err
	}
	temp := tempfiles.NewManager(cfg.Paths.TempDir, logger)
	stages := Stages{
		Retriever:   retriever.New(cfg.Retriever, logger),
		Extractor:   audio.New(cfg.Audio, logger),
		Transcriber: transcription.NewAdapter(provider, cfg.Transcription.MaxDurationSeconds, logger),
		Summarizer:  summarize.New(completer, cfg.LLM.MaxNotes, logger),
		Store:       store,
	}
	orch := New(temp, stages, Options{
		MaxConcurrentJobs: cfg.Pipeline.MaxConcurrentJobs,
		RefetchOnCorrupt:  cfg.Pipeline.RefetchOnCorrupt,
		WriteAttempts:     cfg.Store.WriteAttempts,
		Notifier:          notifications.NewService(cfg),
	}, logger)
	return &Runtime{Orchestrator: orch, Temp: temp, Completer: completer}, nil
}

// Close releases the model client when it holds a connection.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	if closer, ok := r.Completer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
