package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"reelnotes/internal/notes"
	"reelnotes/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var skipLLM bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check directories, binaries, providers and the note store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var pinger preflight.Pinger
			store, err := notes.Open(cmd.Context(), cfg.Store)
			if err != nil {
				pinger = unreachableStore{err: err}
			} else {
				defer store.Close()
				pinger = store
			}

			var results []preflight.Result
			if skipLLM {
				results = preflight.RunLocal(cmd.Context(), cfg, pinger)
			} else {
				results = preflight.RunAll(cmd.Context(), cfg, pinger)
			}
			if jsonOutput {
				if err := writeJSON(cmd, map[string]any{
					"passed": preflight.AllPassed(results),
					"checks": results,
				}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintf(out, "Config: %s (found: %s)\n", ctx.configPath, yesNo(ctx.configSeen))
				for _, line := range checkLines(results, colorize) {
					fmt.Fprintln(out, line)
				}
			}
			if !preflight.AllPassed(results) {
				return fmt.Errorf("preflight checks failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	cmd.Flags().BoolVar(&skipLLM, "skip-llm", false, "Skip the live summarization model check")
	return cmd
}

// unreachableStore reports the open error through the store check.
type unreachableStore struct{ err error }

func (u unreachableStore) Ping(context.Context) error { return u.err }
