package daemonctl_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"reelnotes/internal/daemonctl"
)

func writePID(t *testing.T, dir string, pid int) string {
	t.Helper()
	path := filepath.Join(dir, daemonctl.PIDFileName)
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	return path
}

func TestProcessInfoWithoutPIDFile(t *testing.T) {
	running, pid, err := daemonctl.ProcessInfo(t.TempDir())
	if err != nil || running || pid != 0 {
		t.Fatalf("expected not running, got running=%v pid=%d err=%v", running, pid, err)
	}
}

func TestProcessInfoRemovesStalePIDFile(t *testing.T) {
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Skipf("true unavailable: %v", err)
	}
	dir := t.TempDir()
	path := writePID(t, dir, cmd.Process.Pid)

	running, _, err := daemonctl.ProcessInfo(dir)
	if err != nil {
		t.Fatalf("process info: %v", err)
	}
	if running {
		t.Fatal("expected exited process to be reported as not running")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected stale pid file removed, stat err=%v", err)
	}
}

func TestProcessInfoRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, daemonctl.PIDFileName), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := daemonctl.ProcessInfo(dir); err == nil {
		t.Fatal("expected invalid pid file error")
	}
}

func TestStopNotRunning(t *testing.T) {
	_, err := daemonctl.Stop(t.TempDir(), time.Second)
	if !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestStopTerminatesProcess(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("sleep unavailable: %v", err)
	}
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	dir := t.TempDir()
	writePID(t, dir, cmd.Process.Pid)

	result, err := daemonctl.Stop(dir, 5*time.Second)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if result.PID != cmd.Process.Pid || result.ForcedKill {
		t.Fatalf("unexpected result %+v", result)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process still running after stop")
	}
}

func TestWaitForAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	bind := strings.TrimPrefix(server.URL, "http://")
	if err := daemonctl.WaitForAPI(context.Background(), bind, 2*time.Second); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestWaitForAPITimesOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	bind := strings.TrimPrefix(server.URL, "http://")
	err := daemonctl.WaitForAPI(context.Background(), bind, 500*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "api returned 503") {
		t.Fatalf("expected 503 timeout error, got %v", err)
	}
}

func TestEnsureStartedAlreadyRunning(t *testing.T) {
	dir := t.TempDir()
	writePID(t, dir, os.Getpid())
	result, err := daemonctl.EnsureStarted(context.Background(), dir, "127.0.0.1:1", "/nonexistent", daemonctl.LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("ensure started: %v", err)
	}
	if result.State != daemonctl.StartStateAlreadyRunning || result.PID != os.Getpid() {
		t.Fatalf("unexpected result %+v", result)
	}
}
