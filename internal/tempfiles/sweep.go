package tempfiles

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"reelnotes/internal/logging"
)

// SweepResult contains the outcome of a stale artifact sweep.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a path with its cleanup error.
type SweepError struct {
	Path  string
	Error error
}

// Sweep removes job directories and loose files under the temp root older
// than maxAge. Scopes owned by running jobs are skipped.
func (m *Manager) Sweep(maxAge time.Duration) SweepResult {
	result := SweepResult{}
	if m.root == "" {
		return result
	}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			result.Errors = append(result.Errors, SweepError{Path: m.root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		path := filepath.Join(m.root, entry.Name())
		if entry.IsDir() && m.isActive(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: path, Error: err})
			m.logger.Warn("failed to remove stale temp artifact",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "temp_sweep_failed"),
				logging.String(logging.FieldErrorHint, "check temp_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		m.logger.Info("removed stale temp artifact",
			logging.String("path", path),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "temp_sweep"),
		)
	}
	return result
}

// EntryInfo describes one top-level entry under the temp root.
type EntryInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
	Dir     bool
}

// List returns the top-level entries under the temp root with their sizes.
func (m *Manager) List() ([]EntryInfo, error) {
	if m.root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]EntryInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(m.root, entry.Name())
		size := info.Size()
		if entry.IsDir() {
			size, _ = dirSize(path)
		}
		out = append(out, EntryInfo{
			Name:    entry.Name(),
			Path:    path,
			ModTime: info.ModTime(),
			Size:    size,
			Dir:     entry.IsDir(),
		})
	}
	return out, nil
}

func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
