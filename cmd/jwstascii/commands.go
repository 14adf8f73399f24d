package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jwstascii/jwstascii"
	"github.com/jwstascii/jwstascii/config"
	"github.com/jwstascii/jwstascii/runlog"
	"github.com/jwstascii/jwstascii/schedule"
	"github.com/jwstascii/jwstascii/selection"
	"github.com/spf13/cobra"
)

// publishFunc is Runner.Run or Runner.Init.
type publishFunc func(r *jwstascii.Runner, ctx context.Context, now time.Time) (*jwstascii.Result, error)

func newPublishCmd(use, short string, publish publishFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			now, err := dateFlag(cmd)
			if err != nil {
				return err
			}

			runner, cleanup, err := a.runner(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := publish(runner, cmd.Context(), now)
			if err != nil {
				return err
			}
			printResult(cmd, result)
			return nil
		},
	}
	cmd.Flags().String("date", "", "publish for this day (YYYY-MM-DD) instead of today (UTC)")
	return cmd
}

func newRunCmd() *cobra.Command {
	return newPublishCmd("run", "Publish today's page", (*jwstascii.Runner).Run)
}

func newInitCmd() *cobra.Command {
	return newPublishCmd("init", "Publish the first page of an empty site and create its archive", (*jwstascii.Runner).Init)
}

func dateFlag(cmd *cobra.Command) (time.Time, error) {
	raw, _ := cmd.Flags().GetString("date")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	date, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date: %w", err)
	}
	return date, nil
}

func newSelectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Print the item the next run would choose from, without publishing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if raw, _ := cmd.Flags().GetString("fallback"); raw != "" {
				a.cfg.Selection.Fallback = raw
			}

			parts, err := a.openSite()
			if err != nil {
				return err
			}
			cat, err := a.openCatalog()
			if err != nil {
				return err
			}
			ignore, err := a.cfg.IgnorePatterns()
			if err != nil {
				return err
			}
			fallback, err := a.cfg.FallbackPolicy()
			if err != nil {
				return err
			}

			opts := append(a.selectOptions(), selection.WithLogger(a.logger))
			selector := selection.New(cat.catalog, parts.index, opts...)
			item, err := selector.SelectNext(cmd.Context(), ignore, fallback)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), item)
			return nil
		},
	}
	cmd.Flags().String("fallback", "", "exclusion policy of the second pass: all, none or recent:N")
	return cmd
}

func newUsedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "used",
		Short: "List the catalog items already published, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			parts, err := a.openSite()
			if err != nil {
				return err
			}

			used, err := parts.index.UsedItemsOrdered()
			if err != nil {
				return err
			}

			if format, _ := cmd.Flags().GetString("format"); format == "json" {
				return printJSON(cmd, map[string]any{"items": used, "total": len(used)})
			}
			for _, item := range used {
				fmt.Fprintln(cmd.OutOrStdout(), item)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "text", "output format: text or json")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the published archive, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			parts, err := a.openSite()
			if err != nil {
				return err
			}

			entries, err := parts.index.Entries()
			if err != nil {
				return err
			}
			current, err := parts.index.CurrentPublishedDate()
			if err != nil {
				return err
			}

			limit, _ := cmd.Flags().GetInt("limit")
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			if format, _ := cmd.Flags().GetString("format"); format == "json" {
				return printJSON(cmd, map[string]any{"entries": entries, "current": current.Format(time.DateOnly)})
			}
			printEntries(cmd, entries, current)
			return nil
		},
	}
	cmd.Flags().Int("limit", 0, "show at most this many entries (0 for all)")
	cmd.Flags().String("format", "text", "output format: text or json")
	return cmd
}

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded publishing runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if a.cfg.RunLog == "" {
				return fmt.Errorf("run log is disabled (run_log is empty)")
			}

			runs, err := runlog.Open(a.cfg.RunLog)
			if err != nil {
				return err
			}
			defer runs.Close()

			filter := runlog.RunFilter{}
			filter.Limit, _ = cmd.Flags().GetInt("limit")
			if status, _ := cmd.Flags().GetString("status"); status != "" {
				filter.Status = &status
			}

			list, err := runs.ListRuns(filter)
			if err != nil {
				return err
			}

			if format, _ := cmd.Flags().GetString("format"); format == "json" {
				return printJSON(cmd, map[string]any{"runs": list, "total": len(list)})
			}
			printRuns(cmd, list)
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "show at most this many runs (0 for all)")
	cmd.Flags().String("status", "", "only show runs with this status: running, succeeded or failed")
	cmd.Flags().String("format", "text", "output format: text or json")
	return cmd
}

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Publish a page on the configured cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if a.cfg.Schedule == "" {
				return fmt.Errorf("no schedule configured")
			}

			scheduler, err := schedule.New(a.logger)
			if err != nil {
				return err
			}
			if err := scheduler.Add("publish", a.cfg.Schedule, a.publishTask()); err != nil {
				return err
			}

			scheduler.Start()
			<-cmd.Context().Done()
			return scheduler.Stop()
		},
	}
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration (default path: ~/.jwstascii/config.yaml)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				var err error
				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}

			force, _ := cmd.Flags().GetBool("force")
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			return printYAML(cmd, a.cfg)
		},
	}

	configCmd.AddCommand(initCmd, showCmd)
	return configCmd
}
