package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwstascii/jwstascii"
	"github.com/jwstascii/jwstascii/archive"
	"github.com/jwstascii/jwstascii/runlog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// printResult prints a published day in human-readable form
func printResult(cmd *cobra.Command, result *jwstascii.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Published %s\n", result.Entry.Date.Format("02 January 2006"))
	fmt.Fprintf(out, "   %s\n", result.Entry.Title)
	fmt.Fprintf(out, "   Page:   %s\n", result.Entry.Href())
	fmt.Fprintf(out, "   Image:  %s\n", result.ImageHref)
	fmt.Fprintf(out, "   Source: %s\n", result.Entry.SourceURL)
	if !result.Previous.IsZero() {
		fmt.Fprintf(out, "   After:  %s\n", result.Previous.Format(time.DateOnly))
	}
	if result.Pushed {
		fmt.Fprintln(out, "   Pushed to the site repository")
	}
}

// printEntries prints archive entries in human-readable table format
func printEntries(cmd *cobra.Command, entries []archive.Entry, current time.Time) {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No entries to display.")
		return
	}

	for _, entry := range entries {
		marker := " "
		if entry.Date.Equal(current) {
			marker = "*"
		}

		title := entry.Title
		if len(title) > 70 {
			title = title[:67] + "..."
		}

		fmt.Fprintf(out, "%s %s  %s\n", marker, entry.Date.Format(time.DateOnly), title)
		fmt.Fprintf(out, "   %s\n", entry.SourceURL)
	}
}

// printRuns prints runs in human-readable table format
func printRuns(cmd *cobra.Command, runs []runlog.Run) {
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs to display.")
		return
	}

	for _, run := range runs {
		duration := "-"
		if run.FinishedAt != nil {
			duration = run.Duration().Round(time.Millisecond).String()
		}

		fmt.Fprintf(out, "%-9s %s  page %s  %s\n",
			run.Status,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.PageDate.Format(time.DateOnly),
			duration,
		)
		if run.SourceURL != nil {
			fmt.Fprintf(out, "   Source: %s\n", *run.SourceURL)
		}
		if run.Error != nil {
			fmt.Fprintf(out, "   Error:  %s\n", *run.Error)
		}
		fmt.Fprintf(out, "   ID: %s\n", run.RunID.String())
	}
}

// printJSON prints v as indented JSON
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// printYAML prints v as YAML
func printYAML(cmd *cobra.Command, v any) error {
	encoder := yaml.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return encoder.Close()
}
