package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelnotes/internal/notes"
	"reelnotes/internal/summarize"
)

func newVideosCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "videos",
		Short: "List stored video notes, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := notes.Open(cmd.Context(), cfg.Store)
			if err != nil {
				return fmt.Errorf("open note store: %w", err)
			}
			defer store.Close()

			var list []notes.VideoNote
			if user := strings.TrimSpace(userID); user != "" {
				list, err = store.ListByUser(cmd.Context(), user)
			} else {
				list, err = store.ListAll(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("list videos: %w", err)
			}
			if list == nil {
				list = []notes.VideoNote{}
			}

			if jsonOutput {
				return writeJSON(cmd, map[string]any{"videos": list})
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No videos stored")
				return nil
			}
			fmt.Fprintln(out, renderTable(videoColumns(), buildVideoRows(list)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Only list notes owned by this user")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print notes as JSON")
	return cmd
}

func videoColumns() []column {
	return []column{
		{Header: "ID"},
		{Header: "User"},
		{Header: "Title", MaxWidth: 48},
		{Header: "Category"},
		{Header: "Platform"},
		{Header: "Duration", Right: true},
		{Header: "Created"},
	}
}

func buildVideoRows(list []notes.VideoNote) [][]string {
	rows := make([][]string, 0, len(list))
	for _, note := range list {
		title := strings.TrimSpace(note.Title)
		if title == "" {
			title = "Untitled"
		}
		if note.Degraded {
			title += " (transcript only)"
		}
		rows = append(rows, []string{
			note.ID,
			note.UserID,
			title,
			summarize.CategoryLabel(note.Category),
			dashIfEmpty(note.Platform),
			formatDuration(note.Duration),
			formatCreated(note.CreatedAt),
		})
	}
	return rows
}

func formatDuration(seconds *float64) string {
	if seconds == nil || *seconds <= 0 {
		return "-"
	}
	return (time.Duration(*seconds * float64(time.Second))).Round(time.Second).String()
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
