package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCleanupRemovesNamedArtifact(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.cfg.Paths.TempDir, "leftover.mp3")
	require.NoError(t, os.WriteFile(target, []byte("audio"), 0o644))

	out, _, err := runCLI(t, []string{"cleanup", "leftover.mp3"}, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "Deleted leftover.mp3")
	require.NoFileExists(t, target)

	_, _, err = runCLI(t, []string{"cleanup", "leftover.mp3"}, env.configPath)
	require.ErrorContains(t, err, "file not found")
}

func TestCleanupRejectsTraversal(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"cleanup", "../config.toml"}, env.configPath)
	require.Error(t, err)
	require.FileExists(t, env.configPath)
}

func TestCleanupStaleSweep(t *testing.T) {
	env := setupCLITestEnv(t)
	stale := filepath.Join(env.cfg.Paths.TempDir, "job-old")
	fresh := filepath.Join(env.cfg.Paths.TempDir, "job-new")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	require.NoError(t, os.MkdirAll(fresh, 0o755))
	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	out, _, err := runCLI(t, []string{"cleanup", "--stale", "1h"}, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "Swept 1 stale artifact(s)")
	require.NoDirExists(t, stale)
	require.DirExists(t, fresh)
}

func TestCleanupList(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"cleanup", "--list"}, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "Temp directory is empty")

	require.NoError(t, os.WriteFile(filepath.Join(env.cfg.Paths.TempDir, "clip.mp4"), make([]byte, 2048), 0o644))
	out, _, err = runCLI(t, []string{"cleanup", "--list"}, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "clip.mp4")
	requireContains(t, out, "2.0 KiB")
}

func TestCleanupRequiresTarget(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"cleanup"}, env.configPath)
	require.ErrorContains(t, err, "provide a filename")
}

func TestFormatBytes(t *testing.T) {
	require.Equal(t, "512 B", formatBytes(512))
	require.Equal(t, "1.5 KiB", formatBytes(1536))
	require.Equal(t, "3.0 MiB", formatBytes(3<<20))
}
