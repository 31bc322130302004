package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"reelnotes/internal/config"
	"reelnotes/internal/logging"
	"reelnotes/internal/services"
	"reelnotes/internal/tempfiles"
)

// CommandRunner executes a binary and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Audio is an extracted track ready for transcription.
type Audio struct {
	Handle          *tempfiles.Handle
	DurationSeconds float64
}

// Extractor wraps ffprobe and ffmpeg.
type Extractor struct {
	cfg     config.Audio
	ffmpeg  string
	ffprobe string
	runner  CommandRunner
	logger  *slog.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithCommandRunner replaces process execution (tests).
func WithCommandRunner(runner CommandRunner) Option {
	return func(e *Extractor) {
		if runner != nil {
			e.runner = runner
		}
	}
}

// New constructs an Extractor from the audio config section.
func New(cfg config.Audio, logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		cfg:     cfg,
		ffmpeg:  binaryOr(cfg.FFmpegBinary, "ffmpeg"),
		ffprobe: binaryOr(cfg.FFprobeBinary, "ffprobe"),
		runner:  runCommand,
		logger:  logging.NewComponentLogger(logger, "audio"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract transcodes media into a mono audio file acquired from scope. The
// media handle is left in place.
func (e *Extractor) Extract(ctx context.Context, media *tempfiles.Handle, scope *tempfiles.Scope) (Audio, error) {
	if media == nil {
		return Audio{}, errors.New("audio extract: nil media handle")
	}
	logger := logging.WithContext(ctx, e.logger)

	probe, err := e.Probe(ctx, media.Path())
	if err != nil {
		return Audio{}, err
	}

	ext := ".mp3"
	if e.cfg.Codec == config.CodecWAV {
		ext = ".wav"
	}
	handle, err := scope.Acquire(tempfiles.KindAudio, ext)
	if err != nil {
		return Audio{}, services.Wrap(services.ErrConfiguration, "extracting", "acquire", "reserve audio path", err)
	}

	start := time.Now()
	output, err := e.runner(ctx, e.ffmpeg, e.buildArgs(media.Path(), handle.Path())...)
	if err != nil {
		_ = handle.Release()
		if ctx.Err() != nil {
			return Audio{}, ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return Audio{}, services.Wrap(services.ErrConfiguration, "extracting", "ffmpeg", "ffmpeg binary not found", err)
		}
		return Audio{}, services.Wrap(services.ErrMediaCorrupt, "extracting", "ffmpeg",
			fmt.Sprintf("transcode failed: %s", firstLine(output)), err)
	}
	stat, err := os.Stat(handle.Path())
	if err != nil || stat.Size() == 0 {
		_ = handle.Release()
		return Audio{}, services.Wrap(services.ErrMediaCorrupt, "extracting", "ffmpeg", "transcode produced no audio", err)
	}

	logger.Info("audio extracted",
		logging.String("codec", e.cfg.Codec),
		logging.Float64("duration_seconds", probe.DurationSeconds()),
		logging.Int64("size_bytes", stat.Size()),
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldEventType, "audio_extracted"),
	)
	return Audio{Handle: handle, DurationSeconds: probe.DurationSeconds()}, nil
}

func (e *Extractor) buildArgs(src, dest string) []string {
	rate := e.cfg.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", src,
		"-vn", "-sn", "-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
	}
	if e.cfg.Codec == config.CodecWAV {
		args = append(args, "-c:a", "pcm_s16le")
	} else {
		bitrate := strings.TrimSpace(e.cfg.Bitrate)
		if bitrate == "" {
			bitrate = "64k"
		}
		args = append(args, "-c:a", "libmp3lame", "-b:a", bitrate)
	}
	return append(args, dest)
}

func binaryOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}
