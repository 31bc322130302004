package audio_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"testing"

	"reelnotes/internal/audio"
	"reelnotes/internal/config"
	"reelnotes/internal/logging"
	"reelnotes/internal/services"
	"reelnotes/internal/tempfiles"
)

const probeJSON = `{"streams":[{"index":0,"codec_type":"video","codec_name":"h264"},{"index":1,"codec_type":"audio","codec_name":"aac","duration":"41.9"}],"format":{"duration":"42.5","size":"1024"}}`

type fakeTools struct {
	probeOut    string
	probeErr    error
	ffmpegErr   error
	ffmpegCalls [][]string
}

func (f *fakeTools) run(_ context.Context, name string, args ...string) ([]byte, error) {
	switch name {
	case "ffprobe":
		return []byte(f.probeOut), f.probeErr
	case "ffmpeg":
		f.ffmpegCalls = append(f.ffmpegCalls, args)
		if f.ffmpegErr != nil {
			return []byte("Invalid data found when processing input\n"), f.ffmpegErr
		}
		dest := args[len(args)-1]
		return nil, os.WriteFile(dest, []byte("ID3audio"), 0o644)
	}
	return nil, fmt.Errorf("unexpected binary %s", name)
}

func setup(t *testing.T) (*tempfiles.Scope, *tempfiles.Handle) {
	t.Helper()
	mgr := tempfiles.NewManager(t.TempDir(), logging.NewNop())
	scope, err := mgr.NewScope("job")
	if err != nil {
		t.Fatalf("NewScope: %v", err)
	}
	t.Cleanup(func() { _ = scope.ReleaseAll() })
	media, err := scope.Acquire(tempfiles.KindMedia, "")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := os.WriteFile(media.Path(), []byte("video"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	return scope, media
}

func TestExtractProducesMonoMP3(t *testing.T) {
	tools := &fakeTools{probeOut: probeJSON}
	ex := audio.New(config.Default().Audio, logging.NewNop(), audio.WithCommandRunner(tools.run))
	scope, media := setup(t)

	out, err := ex.Extract(context.Background(), media, scope)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out.DurationSeconds != 42.5 {
		t.Fatalf("unexpected duration %v", out.DurationSeconds)
	}
	if _, err := os.Stat(media.Path()); err != nil {
		t.Fatalf("media handle must be kept: %v", err)
	}
	if _, err := os.Stat(out.Handle.Path()); err != nil {
		t.Fatalf("audio file missing: %v", err)
	}
	if len(tools.ffmpegCalls) != 1 {
		t.Fatalf("expected one ffmpeg call, got %d", len(tools.ffmpegCalls))
	}
	args := tools.ffmpegCalls[0]
	for _, want := range []string{"-vn", "libmp3lame", "64k", "16000"} {
		if !slices.Contains(args, want) {
			t.Fatalf("ffmpeg args %v missing %q", args, want)
		}
	}
	if idx := slices.Index(args, "-ac"); idx < 0 || args[idx+1] != "1" {
		t.Fatalf("expected mono output, args %v", args)
	}
}

func TestExtractWAV(t *testing.T) {
	cfg := config.Default().Audio
	cfg.Codec = config.CodecWAV
	tools := &fakeTools{probeOut: probeJSON}
	ex := audio.New(cfg, nil, audio.WithCommandRunner(tools.run))
	scope, media := setup(t)

	out, err := ex.Extract(context.Background(), media, scope)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !slices.Contains(tools.ffmpegCalls[0], "pcm_s16le") {
		t.Fatalf("expected pcm codec, args %v", tools.ffmpegCalls[0])
	}
	if got := out.Handle.Path(); got[len(got)-4:] != ".wav" {
		t.Fatalf("expected .wav output, got %s", got)
	}
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name  string
		tools fakeTools
		want  services.Kind
	}{
		{"no audio stream", fakeTools{probeOut: `{"streams":[{"codec_type":"video"}],"format":{}}`}, services.KindMediaCorrupt},
		{"garbage probe", fakeTools{probeOut: "not json"}, services.KindMediaCorrupt},
		{"probe rejects", fakeTools{probeOut: "moov atom not found", probeErr: errors.New("exit status 1")}, services.KindMediaCorrupt},
		{"ffprobe missing", fakeTools{probeErr: fmt.Errorf("start: %w", exec.ErrNotFound)}, services.KindOperationalMisconfiguration},
		{"ffmpeg fails", fakeTools{probeOut: probeJSON, ffmpegErr: errors.New("exit status 1")}, services.KindMediaCorrupt},
		{"ffmpeg missing", fakeTools{probeOut: probeJSON, ffmpegErr: fmt.Errorf("start: %w", exec.ErrNotFound)}, services.KindOperationalMisconfiguration},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tools := tc.tools
			ex := audio.New(config.Default().Audio, nil, audio.WithCommandRunner(tools.run))
			scope, media := setup(t)
			_, err := ex.Extract(context.Background(), media, scope)
			if got := services.KindOf(err); got != tc.want {
				t.Fatalf("expected %s, got %s (%v)", tc.want, got, err)
			}
			if details := services.Details(err); details.Stage != "extracting" {
				t.Fatalf("expected extracting stage, got %q", details.Stage)
			}
			if scope.Acquired()-scope.Released() != 1 {
				t.Fatalf("failed extraction must not leave an audio handle (acquired=%d released=%d)", scope.Acquired(), scope.Released())
			}
		})
	}
}
