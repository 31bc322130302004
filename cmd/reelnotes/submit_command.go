package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelnotes/internal/notes"
	"reelnotes/internal/pipeline"
	"reelnotes/internal/summarize"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Download, transcribe and summarize a video, then store the note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID = strings.TrimSpace(userID)
			if userID == "" {
				return errors.New("--user is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.cliLogger(cmd)

			store, err := notes.Open(cmd.Context(), cfg.Store)
			if err != nil {
				return fmt.Errorf("open note store: %w", err)
			}
			defer store.Close()

			runtime, err := pipeline.Build(cmd.Context(), cfg, store, logger)
			if err != nil {
				return fmt.Errorf("build pipeline: %w", err)
			}
			defer runtime.Close()

			outcome := runtime.Run(cmd.Context(), pipeline.Submission{URL: args[0], UserID: userID})
			if jsonOutput {
				if err := writeJSON(cmd, outcome); err != nil {
					return err
				}
			} else {
				printOutcome(cmd.OutOrStdout(), outcome)
			}
			if !outcome.Succeeded() {
				return fmt.Errorf("job %s failed", outcome.JobID)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Owner of the resulting note")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the outcome as JSON")
	return cmd
}

func printOutcome(out io.Writer, outcome pipeline.Outcome) {
	if !outcome.Succeeded() {
		fmt.Fprintf(out, "Job %s failed\n", outcome.JobID)
		if f := outcome.Failure; f != nil {
			fmt.Fprintf(out, "  Stage:  %s\n", f.Stage)
			fmt.Fprintf(out, "  Kind:   %s\n", f.Kind)
			fmt.Fprintf(out, "  Reason: %s\n", f.Reason)
			if f.Hint != "" {
				fmt.Fprintf(out, "  Hint:   %s\n", f.Hint)
			}
		}
		return
	}
	note := outcome.Note
	fmt.Fprintf(out, "%s\n", note.Title)
	fmt.Fprintf(out, "  ID:       %s\n", note.ID)
	fmt.Fprintf(out, "  Category: %s\n", summarize.CategoryLabel(note.Category))
	if note.Platform != "" {
		fmt.Fprintf(out, "  Platform: %s\n", note.Platform)
	}
	if note.Duration != nil {
		fmt.Fprintf(out, "  Duration: %.0fs\n", *note.Duration)
	}
	fmt.Fprintf(out, "  Elapsed:  %s\n", outcome.Elapsed.Round(time.Millisecond))
	if outcome.Degraded {
		fmt.Fprintln(out, "  Summary unavailable; transcript stored as-is")
	}
	fmt.Fprintf(out, "\n%s\n", note.Summary)
	if len(note.Notes) > 0 {
		fmt.Fprintln(out)
		for _, item := range note.Notes {
			fmt.Fprintf(out, "  - %s\n", item)
		}
	}
}
