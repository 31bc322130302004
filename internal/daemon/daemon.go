package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"reelnotes/internal/config"
	"reelnotes/internal/logging"
	"reelnotes/internal/notes"
	"reelnotes/internal/tempfiles"
)

// LockFileName is the flock target under paths.log_dir.
const LockFileName = "reelnotesd.lock"

// Daemon hosts the API and temp sweeper and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  notes.Store
	temp   *tempfiles.Manager
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool   `json:"running"`
	PID          int    `json:"pid"`
	APIAddress   string `json:"api_address,omitempty"`
	ActiveJobs   int    `json:"active_jobs"`
	TempDir      string `json:"temp_dir"`
	StoreBackend string `json:"store_backend"`
	LockFilePath string `json:"lock_file_path"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store notes.Store, submitter Submitter, temp *tempfiles.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || submitter == nil || temp == nil {
		return nil, errors.New("daemon requires config, store, submitter, and temp manager")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	lockPath := filepath.Join(cfg.Paths.LogDir, LockFileName)
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		temp:     temp,
		api:      newAPIServer(cfg, submitter, store, temp, logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, opens the API listener and begins sweeping
// stale temp artifacts.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelnotes daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api: %w", err)
	}
	d.cancel = cancel

	d.wg.Add(1)
	go d.sweepLoop(runCtx)

	d.running.Store(true)
	d.logger.Info("reelnotes daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api_address", d.api.address()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops background work, closes the API and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" manually if restarts fail"),
		)
	}
	d.running.Store(false)
	d.logger.Info("reelnotes daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon. The store is owned by the caller.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Address returns the API listener address once started.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		APIAddress:   d.api.address(),
		ActiveJobs:   d.api.submitter.ActiveJobs(),
		TempDir:      d.temp.Root(),
		StoreBackend: d.cfg.Store.Backend,
		LockFilePath: d.lockPath,
	}
}

// SweepNow removes temp artifacts older than the configured stale age.
func (d *Daemon) SweepNow() tempfiles.SweepResult {
	result := d.temp.Sweep(d.cfg.StaleTempAge())
	if len(result.Removed) > 0 || len(result.Errors) > 0 {
		d.logger.Info("temp sweep finished",
			logging.Int("removed", len(result.Removed)),
			logging.Int("errors", len(result.Errors)),
			logging.String(logging.FieldEventType, "temp_sweep_complete"),
		)
	}
	return result
}

func (d *Daemon) sweepLoop(ctx context.Context) {
	defer d.wg.Done()
	interval := d.cfg.SweepInterval()
	if interval <= 0 {
		return
	}
	d.SweepNow()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.SweepNow()
		}
	}
}
