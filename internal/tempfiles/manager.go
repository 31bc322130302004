package tempfiles

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"reelnotes/internal/logging"
)

// Artifact kinds.
const (
	KindMedia      = "media"
	KindAudio      = "audio"
	KindTranscript = "transcript"
)

const scopePrefix = "job-"

var (
	// ErrArtifactNotFound is returned by Remove when no artifact matches.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrInvalidName is returned by Remove for names that are not a single path element.
	ErrInvalidName = errors.New("invalid artifact name")
	// ErrArtifactInUse is returned by Remove for artifacts of a running job.
	ErrArtifactInUse = errors.New("artifact in use by a running job")
)

// Manager hands out per-job scopes under a single temp root.
type Manager struct {
	root   string
	logger *slog.Logger

	mu     sync.Mutex
	scopes map[string]*Scope
}

// NewManager returns a manager rooted at root. The directory is created lazily.
func NewManager(root string, logger *slog.Logger) *Manager {
	return &Manager{
		root:   strings.TrimSpace(root),
		logger: logging.NewComponentLogger(logger, "tempfiles"),
		scopes: make(map[string]*Scope),
	}
}

// Root returns the temp root directory.
func (m *Manager) Root() string {
	return m.root
}

// NewScope creates the private directory for one job.
func (m *Manager) NewScope(jobID string) (*Scope, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, errors.New("tempfiles: job id required")
	}
	if m.root == "" {
		return nil, errors.New("tempfiles: temp root not configured")
	}
	dir := filepath.Join(m.root, scopePrefix+jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tempfiles: create scope dir: %w", err)
	}
	scope := &Scope{manager: m, jobID: jobID, dir: dir}
	m.mu.Lock()
	m.scopes[jobID] = scope
	m.mu.Unlock()
	return scope, nil
}

// ActiveScopes reports how many scopes have not been released.
func (m *Manager) ActiveScopes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scopes)
}

func (m *Manager) forget(jobID string) {
	m.mu.Lock()
	delete(m.scopes, jobID)
	m.mu.Unlock()
}

// ownedByActiveScope reports whether path sits inside the directory of an
// unreleased scope.
func (m *Manager) ownedByActiveScope(path string) bool {
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return false
	}
	top, _, nested := strings.Cut(filepath.ToSlash(rel), "/")
	return nested && m.isActive(top)
}

func (m *Manager) isActive(dirName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.scopes[strings.TrimPrefix(dirName, scopePrefix)]
	return ok
}

// Remove deletes a single artifact by base name anywhere under the temp root.
func (m *Manager) Remove(filename string) error {
	name := strings.TrimSpace(filename)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("tempfiles: %q: %w", filename, ErrInvalidName)
	}
	if m.root == "" {
		return ErrArtifactNotFound
	}
	var found string
	err := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() && d.Name() == name {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tempfiles: search %s: %w", m.root, err)
	}
	if found == "" {
		return ErrArtifactNotFound
	}
	if m.ownedByActiveScope(found) {
		return fmt.Errorf("tempfiles: %s: %w", name, ErrArtifactInUse)
	}
	if err := os.Remove(found); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrArtifactNotFound
		}
		return fmt.Errorf("tempfiles: remove %s: %w", found, err)
	}
	m.logger.Info("removed temp artifact",
		logging.String("path", found),
		logging.String(logging.FieldEventType, "temp_artifact_removed"),
	)
	return nil
}

// Scope is the private directory of a single job.
type Scope struct {
	manager *Manager
	jobID   string
	dir     string

	mu       sync.Mutex
	handles  []*Handle
	acquired int
	released int
	closed   bool
}

// Dir returns the scope directory.
func (s *Scope) Dir() string {
	return s.dir
}

// Acquire reserves a unique path for an artifact of the given kind. The file
// itself is created by the caller.
func (s *Scope) Acquire(kind, ext string) (*Handle, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = KindMedia
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("tempfiles: scope %s already released", s.jobID)
	}
	name := fmt.Sprintf("%s_%s%s", kind, uuid.NewString()[:8], ext)
	h := &Handle{scope: s, kind: kind, path: filepath.Join(s.dir, name)}
	s.handles = append(s.handles, h)
	s.acquired++
	return h, nil
}

// Acquired returns the number of handles handed out.
func (s *Scope) Acquired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired
}

// Released returns the number of handles released.
func (s *Scope) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// ReleaseAll releases every outstanding handle and removes the scope
// directory. Safe to call more than once.
func (s *Scope) ReleaseAll() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	handles := append([]*Handle(nil), s.handles...)
	s.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := h.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := os.RemoveAll(s.dir); err != nil {
		errs = append(errs, fmt.Errorf("tempfiles: remove scope dir: %w", err))
	}
	s.manager.forget(s.jobID)
	if err := errors.Join(errs...); err != nil {
		logging.WarnWithContext(s.manager.logger, "temp scope cleanup incomplete", "temp_cleanup_failed",
			logging.String(logging.FieldJobID, s.jobID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check temp_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed until next sweep"),
		)
		return err
	}
	return nil
}

func (s *Scope) markReleased() {
	s.mu.Lock()
	s.released++
	s.mu.Unlock()
}

// Handle is a reserved artifact path owned by one scope.
type Handle struct {
	scope *Scope
	kind  string
	path  string
	once  sync.Once
	err   error
}

// Path returns the absolute artifact path.
func (h *Handle) Path() string {
	return h.path
}

// Kind returns the artifact kind.
func (h *Handle) Kind() string {
	return h.kind
}

// Name returns the artifact base name.
func (h *Handle) Name() string {
	return filepath.Base(h.path)
}

// Reset deletes any bytes written to the handle so it can be reused for a
// retry. The handle stays acquired.
func (h *Handle) Reset() error {
	return removeArtifact(h.path)
}

// Release deletes the artifact and any partial download beside it. Missing
// files are not an error, and repeated calls return the first result.
func (h *Handle) Release() error {
	h.once.Do(func() {
		h.err = removeArtifact(h.path)
		h.scope.markReleased()
	})
	return h.err
}

func removeArtifact(path string) error {
	var errs []error
	for _, p := range []string{path, path + ".part"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("tempfiles: remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
