package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"reelnotes/internal/config"
	"reelnotes/internal/logging"
	"reelnotes/internal/retry"
	"reelnotes/internal/services"
	"reelnotes/internal/tempfiles"
)

const (
	retryBaseDelay = 2 * time.Second
	retryMaxDelay  = 30 * time.Second
)

// CommandRunner executes a binary and returns its stdout and stderr.
type CommandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// Media describes a downloaded video.
type Media struct {
	Handle     *tempfiles.Handle
	Title      string
	Duration   float64
	Platform   Platform
	Thumbnail  string
	Uploader   string
	WebpageURL string
}

// Retriever downloads videos into job scopes.
type Retriever struct {
	cfg       config.Retriever
	logger    *slog.Logger
	runner    CommandRunner
	policy    retry.Policy
	freeSpace func(path string) (uint64, error)
}

// Option customizes a Retriever.
type Option func(*Retriever)

// WithCommandRunner replaces process execution (tests).
func WithCommandRunner(runner CommandRunner) Option {
	return func(r *Retriever) {
		if runner != nil {
			r.runner = runner
		}
	}
}

// WithSleeper replaces retry sleeps (tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(r *Retriever) {
		r.policy.Sleeper = sleeper
	}
}

// WithFreeSpace replaces the filesystem free-space probe (tests).
func WithFreeSpace(fn func(path string) (uint64, error)) Option {
	return func(r *Retriever) {
		if fn != nil {
			r.freeSpace = fn
		}
	}
}

// New constructs a Retriever from the retriever config section.
func New(cfg config.Retriever, logger *slog.Logger, opts ...Option) *Retriever {
	r := &Retriever{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "retriever"),
		runner:    runCommand,
		freeSpace: freeBytes,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   retryBaseDelay,
			MaxDelay:    retryMaxDelay,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve downloads rawURL into a media handle acquired from scope.
func (r *Retriever) Retrieve(ctx context.Context, rawURL string, scope *tempfiles.Scope) (Media, error) {
	source, err := ParseSource(rawURL)
	if err != nil {
		return Media{}, err
	}
	if source.Platform == PlatformGeneric && !r.cfg.AllowGeneric {
		return Media{}, services.Wrap(services.ErrUnsupportedSource, "retrieving", "detect platform",
			fmt.Sprintf("host %s is not a supported platform", source.URL.Hostname()), nil)
	}
	if err := r.checkFreeSpace(scope.Dir()); err != nil {
		return Media{}, err
	}
	handle, err := scope.Acquire(tempfiles.KindMedia, "")
	if err != nil {
		return Media{}, services.Wrap(services.ErrConfiguration, "retrieving", "acquire", "reserve media path", err)
	}

	logger := logging.WithContext(ctx, r.logger)
	logger.Info("download started",
		logging.String("url", source.String()),
		logging.String("platform", string(source.Platform)),
		logging.String(logging.FieldEventType, "download_started"),
	)

	policy := r.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logging.WarnWithContext(logger, "download attempt failed; retrying", "download_retry",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "transient network failure; will retry"),
			logging.String(logging.FieldImpact, "download delayed"),
		)
	}

	var info ytdlpInfo
	start := time.Now()
	err = policy.Do(ctx, "download", func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			if err := handle.Reset(); err != nil {
				return services.Wrap(services.ErrConfiguration, "retrieving", "reset", "clear partial download", err)
			}
		}
		var attemptErr error
		info, attemptErr = r.download(ctx, source, handle.Path())
		return attemptErr
	})
	if err != nil {
		return Media{}, err
	}

	stat, err := os.Stat(handle.Path())
	if err != nil {
		return Media{}, services.Wrap(services.ErrMediaCorrupt, "retrieving", "verify", "yt-dlp reported success but wrote no file", err)
	}
	if stat.Size() == 0 {
		return Media{}, services.Wrap(services.ErrMediaCorrupt, "retrieving", "verify", "downloaded file is empty", nil)
	}

	media := Media{
		Handle:     handle,
		Title:      strings.TrimSpace(info.Title),
		Duration:   info.Duration,
		Platform:   source.Platform,
		Thumbnail:  strings.TrimSpace(info.Thumbnail),
		Uploader:   strings.TrimSpace(info.Uploader),
		WebpageURL: strings.TrimSpace(info.WebpageURL),
	}
	logger.Info("download completed",
		logging.String("title", media.Title),
		logging.Float64("duration_seconds", media.Duration),
		logging.Int64("size_bytes", stat.Size()),
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldEventType, "download_completed"),
	)
	return media, nil
}

type ytdlpInfo struct {
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	Thumbnail  string  `json:"thumbnail"`
	Uploader   string  `json:"uploader"`
	WebpageURL string  `json:"webpage_url"`
}

func (r *Retriever) download(ctx context.Context, source Source, dest string) (ytdlpInfo, error) {
	var info ytdlpInfo
	attemptCtx := ctx
	if r.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, time.Duration(r.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	stdout, stderr, err := r.runner(attemptCtx, r.binary(), r.buildArgs(source.String(), dest)...)
	if err != nil {
		if ctx.Err() != nil {
			return info, ctx.Err()
		}
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return info, services.Wrap(services.ErrTransient, "retrieving", "yt-dlp",
				fmt.Sprintf("download timed out after %ds", r.cfg.TimeoutSeconds), err)
		}
		return info, classify(string(stderr), err)
	}
	if decodeErr := json.Unmarshal(bytes.TrimSpace(stdout), &info); decodeErr != nil {
		logging.WarnWithContext(r.logger, "yt-dlp metadata unreadable", "download_metadata_missing",
			logging.Error(decodeErr),
			logging.String(logging.FieldErrorHint, "update yt-dlp"),
			logging.String(logging.FieldImpact, "title hint and duration unavailable"),
		)
	}
	return info, nil
}

func (r *Retriever) binary() string {
	if bin := strings.TrimSpace(r.cfg.YtdlpBinary); bin != "" {
		return bin
	}
	return "yt-dlp"
}

func (r *Retriever) buildArgs(url, dest string) []string {
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--no-part",
		"--no-warnings",
		"-f", r.cfg.Format,
		"--dump-single-json",
		"--no-simulate",
		"-o", dest,
	}
	if r.cfg.CookiesFile != "" {
		args = append(args, "--cookies", r.cfg.CookiesFile)
	}
	return append(args, "--", url)
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
