package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"reelnotes/internal/config"
	"reelnotes/internal/daemon"
	"reelnotes/internal/daemonctl"
	"reelnotes/internal/deps"
	"reelnotes/internal/logging"
	"reelnotes/internal/notes"
	"reelnotes/internal/pipeline"
	"reelnotes/internal/preflight"
)

// PIDFileName is written under paths.log_dir while the daemon runs.
const PIDFileName = daemonctl.PIDFileName

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the reelnotes daemon and blocks until cmdCtx is cancelled or the
// process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		FilePath:    filepath.Join(cfg.Paths.LogDir, logging.LogFileName),
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, PIDFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := notes.Open(signalCtx, cfg.Store)
	if err != nil {
		logging.ErrorWithContext(logger, "open note store", "store_open_failed",
			logging.String("backend", cfg.Store.Backend),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check [store] settings and database reachability"),
		)
		return err
	}
	defer store.Close()

	runtime, err := pipeline.Build(signalCtx, cfg, store, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer runtime.Close()

	d, err := daemon.New(cfg, store, runtime, runtime.Temp, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api_bind and that no other reelnotesd is running"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("reelnotes daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	statuses := preflight.CheckSystemDeps(ctx, cfg)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("transcription_provider", cfg.Transcription.Provider),
		logging.String("llm_provider", cfg.LLM.Provider),
		logging.String("store_backend", cfg.Store.Backend),
		logging.Bool("llm_key_present", strings.TrimSpace(cfg.LLM.APIKey) != ""),
	}
	for _, status := range statuses {
		key := strings.ToLower(strings.ReplaceAll(status.Name, " ", "_"))
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	if missing := deps.Missing(statuses); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, status := range missing {
			names = append(names, status.Command)
		}
		logging.WarnWithContext(logger, "required binaries missing", "dependency_missing",
			logging.String("missing", strings.Join(names, ",")),
			logging.String(logging.FieldErrorHint, "install the missing tools or fix their paths in config"),
		)
	}
}
