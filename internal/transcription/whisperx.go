package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"reelnotes/internal/services"
)

// WhisperX invocation constants.
const (
	DefaultWhisperXModel = "large-v3-turbo"
	UVXCommand           = "uvx"
	CUDAIndexURL         = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL         = "https://pypi.org/simple"
	whisperXBatchSize    = "4"
	whisperXChunkSize    = "15"
	whisperXBeamSize     = "5"
	whisperXTemperature  = "0.0"
	whisperXVADMethod    = "silero"
	cpuDevice            = "cpu"
	cudaDevice           = "cuda"
	cpuComputeType       = "float32"
)

// WhisperXConfig captures runtime settings for local WhisperX runs.
type WhisperXConfig struct {
	Model       string
	CUDAEnabled bool
	Language    string
	Timeout     time.Duration
}

// WhisperXProvider transcribes audio with a local WhisperX install via uvx.
type WhisperXProvider struct {
	cfg           WhisperXConfig
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewWhisperXProvider creates a WhisperX provider.
func NewWhisperXProvider(cfg WhisperXConfig) *WhisperXProvider {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultWhisperXModel
	}
	return &WhisperXProvider{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (p *WhisperXProvider) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	p.commandRunner = runner
}

// Name identifies the provider in logs.
func (p *WhisperXProvider) Name() string {
	return "whisperx:" + p.cfg.Model
}

func (p *WhisperXProvider) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if p.commandRunner != nil {
		return p.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	return cmd.CombinedOutput()
}

// Transcribe runs WhisperX on audioPath. The JSON output is written beside
// the audio file and removed once read.
func (p *WhisperXProvider) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	if strings.TrimSpace(audioPath) == "" {
		return Transcript{}, errors.New("whisperx: audio path required")
	}
	runCtx := ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	outputDir := filepath.Dir(audioPath)
	output, err := p.run(runCtx, UVXCommand, p.buildArgs(audioPath, outputDir)...)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return Transcript{}, ctx.Err()
		case errors.Is(err, exec.ErrNotFound):
			return Transcript{}, services.Wrap(services.ErrConfiguration, "transcribing", "whisperx",
				"uvx not found; install uv to use the whisperx provider", err)
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			return Transcript{}, services.Wrap(services.ErrTransient, "transcribing", "whisperx",
				fmt.Sprintf("timed out after %s", p.cfg.Timeout), err)
		default:
			return Transcript{}, services.Wrap(services.ErrConfiguration, "transcribing", "whisperx",
				tailLine(output), err)
		}
	}

	jsonPath := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))+".json")
	defer os.Remove(jsonPath)
	payload, err := loadWhisperXPayload(jsonPath)
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrMalformedResponse, "transcribing", "whisperx", "read output", err)
	}
	return payload.transcript(), nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (p *WhisperXProvider) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 32)
	if p.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", p.cfg.Model,
		"--batch_size", whisperXBatchSize,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--chunk_size", whisperXChunkSize,
		"--beam_size", whisperXBeamSize,
		"--temperature", whisperXTemperature,
		"--vad_method", whisperXVADMethod,
	)
	if lang := ToISO2(p.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if p.cfg.CUDAEnabled {
		args = append(args, "--device", cudaDevice)
	} else {
		args = append(args, "--device", cpuDevice, "--compute_type", cpuComputeType)
	}
	return args
}

type whisperXWord struct {
	Word  string   `json:"word"`
	Start float64  `json:"start"`
	End   float64  `json:"end"`
	Score *float64 `json:"score"`
}

type whisperXSegment struct {
	Text  string         `json:"text"`
	Start float64        `json:"start"`
	End   float64        `json:"end"`
	Words []whisperXWord `json:"words"`
}

type whisperXPayload struct {
	Language string            `json:"language"`
	Segments []whisperXSegment `json:"segments"`
}

func loadWhisperXPayload(jsonPath string) (whisperXPayload, error) {
	var payload whisperXPayload
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return payload, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload, nil
}

func (p whisperXPayload) transcript() Transcript {
	var parts []string
	var scores []float64
	for _, seg := range p.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
		for _, w := range seg.Words {
			if w.Score != nil {
				scores = append(scores, *w.Score)
			}
		}
	}
	return Transcript{
		Text:       strings.Join(parts, " "),
		Confidence: meanConfidence(scores),
		Language:   p.Language,
	}
}

func tailLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "whisperx failed"
}
