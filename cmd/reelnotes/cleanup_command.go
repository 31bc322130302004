package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reelnotes/internal/tempfiles"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var stale time.Duration
	var list bool

	cmd := &cobra.Command{
		Use:   "cleanup [filename]",
		Short: "Remove temp artifacts by name, sweep stale ones, or list them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			manager := tempfiles.NewManager(cfg.Paths.TempDir, ctx.cliLogger(cmd))
			out := cmd.OutOrStdout()

			switch {
			case list:
				entries, err := manager.List()
				if err != nil {
					return fmt.Errorf("list temp dir: %w", err)
				}
				if len(entries) == 0 {
					fmt.Fprintln(out, "Temp directory is empty")
					return nil
				}
				fmt.Fprintln(out, renderTable([]column{
					{Header: "Name"},
					{Header: "Size", Right: true},
					{Header: "Modified"},
				}, buildTempRows(entries)))
				return nil
			case stale > 0:
				result := manager.Sweep(stale)
				for _, path := range result.Removed {
					fmt.Fprintf(out, "Removed %s\n", path)
				}
				for _, sweepErr := range result.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "Failed to remove %s: %v\n", sweepErr.Path, sweepErr.Error)
				}
				fmt.Fprintf(out, "Swept %d stale artifact(s)\n", len(result.Removed))
				if len(result.Errors) > 0 {
					return fmt.Errorf("%d artifact(s) could not be removed", len(result.Errors))
				}
				return nil
			case len(args) == 1:
				err := manager.Remove(args[0])
				switch {
				case err == nil:
					fmt.Fprintf(out, "Deleted %s\n", args[0])
					return nil
				case errors.Is(err, tempfiles.ErrArtifactNotFound):
					return fmt.Errorf("file not found: %s", args[0])
				default:
					return err
				}
			default:
				return errors.New("provide a filename, --stale, or --list")
			}
		},
	}
	cmd.Flags().DurationVar(&stale, "stale", 0, "Remove artifacts older than this age (e.g. 1h)")
	cmd.Flags().BoolVar(&list, "list", false, "List artifacts under the temp directory")
	return cmd
}

func buildTempRows(entries []tempfiles.EntryInfo) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name
		if entry.Dir {
			name += "/"
		}
		rows = append(rows, []string{
			name,
			formatBytes(entry.Size),
			entry.ModTime.UTC().Format("2006-01-02 15:04"),
		})
	}
	return rows
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return strconv.FormatInt(size, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
