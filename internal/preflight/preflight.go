package preflight

import (
	"context"

	"golang.org/x/sync/errgroup"

	"reelnotes/internal/config"
	"reelnotes/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// RunLocal executes every check that stays on this host: directories,
// binaries, transcription provider settings and the store ping.
func RunLocal(ctx context.Context, cfg *config.Config, store Pinger) []Result {
	return run(ctx, cfg, store, false)
}

// RunAll executes RunLocal's checks plus a live summarization model ping.
func RunAll(ctx context.Context, cfg *config.Config, store Pinger) []Result {
	return run(ctx, cfg, store, true)
}

func run(ctx context.Context, cfg *config.Config, store Pinger, withLLM bool) []Result {
	if cfg == nil {
		return nil
	}
	checks := []func(context.Context) []Result{
		func(context.Context) []Result {
			return []Result{CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir)}
		},
		func(context.Context) []Result {
			return []Result{CheckDirectoryAccess("Log directory", cfg.Paths.LogDir)}
		},
		func(ctx context.Context) []Result {
			return fromDeps(CheckSystemDeps(ctx, cfg))
		},
		func(ctx context.Context) []Result {
			return []Result{CheckTranscription(ctx, cfg)}
		},
		func(ctx context.Context) []Result {
			return []Result{CheckStore(ctx, cfg.Store.Backend, store)}
		},
	}
	if withLLM {
		checks = append(checks, func(ctx context.Context) []Result {
			return []Result{CheckLLM(ctx, cfg.GetLLM())}
		})
	}

	slots := make([][]Result, len(checks))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, check := range checks {
		group.Go(func() error {
			slots[i] = check(groupCtx)
			return nil
		})
	}
	_ = group.Wait()

	var results []Result
	for _, slot := range slots {
		results = append(results, slot...)
	}
	return results
}

func fromDeps(statuses []deps.Status) []Result {
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		detail := status.Detail
		if status.Available {
			detail = status.Path
			if status.Version != "" {
				detail = status.Version
			}
		}
		results = append(results, Result{
			Name:   status.Name,
			Passed: status.Available || status.Optional,
			Detail: detail,
		})
	}
	return results
}
