// Command jwstascii publishes one James Webb Space Telescope image per day
// to a static website.
//
// Logging:
//   - Base logger is created from the loaded config with output format and
//     level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "jwstascii",
		Short:         "Daily JWST image site publisher",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.jwstascii/config.yaml if present)")
	rootCmd.PersistentFlags().String("site-dir", "", "site directory (overrides site_dir)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: pretty, json or text (overrides log_format)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error (overrides log_level)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newInitCmd(),
		newSelectCmd(),
		newUsedCmd(),
		newHistoryCmd(),
		newRunsCmd(),
		newScheduleCmd(),
		newConfigCmd(),
		versionCmd,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
