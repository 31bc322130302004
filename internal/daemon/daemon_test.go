package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reelnotes/internal/daemon"
	"reelnotes/internal/pipeline"
	"reelnotes/internal/tempfiles"
	"reelnotes/internal/testsupport"
)

type idleSubmitter struct{}

func (idleSubmitter) Submit(context.Context, pipeline.Submission) pipeline.Outcome {
	return pipeline.Outcome{State: pipeline.StateFailed}
}

func (idleSubmitter) ActiveJobs() int { return 0 }

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	temp := tempfiles.NewManager(cfg.Paths.TempDir, nil)

	d, err := daemon.New(cfg, store, idleSubmitter{}, temp, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx))

	status := d.Status()
	require.True(t, status.Running)
	require.Equal(t, filepath.Join(cfg.Paths.LogDir, daemon.LockFileName), status.LockFilePath)
	require.NotEmpty(t, status.APIAddress)

	resp, err := http.Get("http://" + d.Address() + "/")
	require.NoError(t, err)
	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	_ = resp.Body.Close()
	require.Equal(t, "online", payload["status"])

	require.Error(t, d.Start(ctx), "second start should fail")

	d.Stop()
	require.False(t, d.Status().Running)
}

func TestSecondInstanceIsLockedOut(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	temp := tempfiles.NewManager(cfg.Paths.TempDir, nil)

	first, err := daemon.New(cfg, store, idleSubmitter{}, temp, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })
	require.NoError(t, first.Start(context.Background()))

	second, err := daemon.New(cfg, store, idleSubmitter{}, temp, nil)
	require.NoError(t, err)
	require.ErrorContains(t, second.Start(context.Background()), "already running")

	first.Stop()
	require.NoError(t, second.Start(context.Background()))
	second.Stop()
}

func TestSweepNowRemovesStaleArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.StaleTempMinutes = 30
	store := testsupport.MustOpenStore(t, cfg)
	temp := tempfiles.NewManager(cfg.Paths.TempDir, nil)

	stale := filepath.Join(cfg.Paths.TempDir, "job-orphan")
	fresh := filepath.Join(cfg.Paths.TempDir, "job-fresh")
	testsupport.WriteFile(t, filepath.Join(stale, "media_1.mp4"), 64)
	testsupport.WriteFile(t, filepath.Join(fresh, "media_2.mp4"), 64)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	d, err := daemon.New(cfg, store, idleSubmitter{}, temp, nil)
	require.NoError(t, err)
	result := d.SweepNow()

	require.Equal(t, []string{stale}, result.Removed)
	require.NoDirExists(t, stale)
	require.DirExists(t, fresh)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := daemon.New(nil, nil, nil, nil, nil)
	require.Error(t, err)
}
