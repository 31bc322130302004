package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"reelnotes/internal/pipeline"
	"reelnotes/internal/services"
	"reelnotes/internal/testsupport"
)

func TestSubmitRequiresUser(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"submit", "https://www.youtube.com/shorts/abc"}, env.configPath)
	require.ErrorContains(t, err, "--user is required")
}

func TestSubmitRequiresURL(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"submit", "--user", "u1"}, env.configPath)
	require.Error(t, err)
}

func TestSubmitReportsUnsupportedSource(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())

	out, _, err := runCLI(t, []string{"submit", "ftp://example.com/clip.mp4", "--user", "u1", "--json"}, env.configPath)
	require.Error(t, err)

	var outcome pipeline.Outcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	require.Equal(t, pipeline.StateFailed, outcome.State)
	require.NotNil(t, outcome.Failure)
	require.Equal(t, pipeline.StateRetrieving, outcome.Failure.Stage)
	require.Equal(t, services.KindUnsupportedSource, outcome.Failure.Kind)
	require.NotEmpty(t, outcome.JobID)

	out, _, err = runCLI(t, []string{"submit", "ftp://example.com/clip.mp4", "--user", "u1"}, env.configPath)
	require.Error(t, err)
	requireContains(t, out, "Kind:   UnsupportedSource")
}
