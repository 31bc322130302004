package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"reelnotes/internal/config"
	"reelnotes/internal/deps"
	"reelnotes/internal/llm"
)

const (
	llmCheckTimeout   = 30 * time.Second
	storeCheckTimeout = 5 * time.Second
)

// Pinger is satisfied by every notes.Store backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckLLM verifies that the summarization model is reachable and the
// credentials are valid. It uses a single attempt with no retries.
func CheckLLM(ctx context.Context, cfg config.LLMConfig) Result {
	const name = "Summarization model"
	switch cfg.Provider {
	case config.LLMVertex:
		if strings.TrimSpace(cfg.VertexProject) == "" {
			return Result{Name: name, Detail: "vertex project missing"}
		}
	default:
		if cfg.APIKey == "" {
			return Result{Name: name, Detail: "API key missing"}
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, llmCheckTimeout)
	defer cancel()

	cfg.MaxAttempts = 1
	completer, err := llm.FromConfig(checkCtx, cfg)
	if err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	if closer, ok := completer.(io.Closer); ok {
		defer closer.Close()
	}
	if err := completer.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s reachable (%s)", providerLabel(cfg.Provider), cfg.Model)}
}

// CheckTranscription verifies the speech-to-text provider is usable without
// sending audio.
func CheckTranscription(ctx context.Context, cfg *config.Config) Result {
	const name = "Transcription provider"
	tc := cfg.Transcription
	switch tc.Provider {
	case config.TranscriptionWhisperX:
		status := deps.CheckBinaries(ctx, []deps.Requirement{{Name: "uvx", Command: "uvx"}})[0]
		if !status.Available {
			return Result{Name: name, Detail: "whisperx needs uvx: " + status.Detail}
		}
		return Result{Name: name, Passed: true, Detail: "whisperx via " + status.Path}
	default:
		if strings.TrimSpace(tc.APIKey) == "" {
			return Result{Name: name, Detail: "API key missing (set OPENAI_API_KEY)"}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s at %s", tc.Model, tc.BaseURL)}
	}
}

// CheckStore pings the note datastore.
func CheckStore(ctx context.Context, backend string, store Pinger) Result {
	name := "Note store"
	if backend != "" {
		name = fmt.Sprintf("Note store (%s)", backend)
	}
	if store == nil {
		return Result{Name: name, Detail: "store not opened"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, storeCheckTimeout)
	defer cancel()
	if err := store.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the pipeline shells out to.
// uvx is only required when WhisperX transcribes locally.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Retriever.YtdlpBinary,
			Description: "Required for video retrieval",
			VersionArgs: []string{"--version"},
		},
		{
			Name:        "FFmpeg",
			Command:     cfg.Audio.FFmpegBinary,
			Description: "Required for audio extraction",
			VersionArgs: []string{"-version"},
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Audio.FFprobeBinary,
			Description: "Required for media inspection",
			VersionArgs: []string{"-version"},
		},
	}
	if cfg.Transcription.Provider == config.TranscriptionWhisperX {
		requirements = append(requirements, deps.Requirement{
			Name:        "uvx",
			Command:     "uvx",
			Description: "Required for WhisperX-driven transcription",
		})
	}
	return deps.CheckBinaries(ctx, requirements)
}

func providerLabel(provider string) string {
	if provider == config.LLMVertex {
		return "Vertex AI"
	}
	return "OpenRouter"
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("health check rejected (HTTP %d)", statusErr.StatusCode)
	}
	return err.Error()
}
