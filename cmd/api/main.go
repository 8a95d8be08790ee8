package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"moodsun/api/internal/config"
)

func main() {
	if err := newRootCommand(config.Load()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(cfg config.Config) *cobra.Command {
	serveCmd := newServeCommand(&cfg)

	cmd := &cobra.Command{
		Use:           "moodsun-api",
		Short:         "MoodSun mood journal API",
		SilenceUsage:  true,
		SilenceErrors: true,
		// serving is the default action
		RunE: serveCmd.RunE,
	}
	cmd.Flags().AddFlagSet(serveCmd.Flags())
	cmd.PersistentFlags().StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "storage driver (mongo|postgres|memory)")
	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug|info|warn|error)")

	cmd.AddCommand(serveCmd)
	cmd.AddCommand(newMigrateCommand(&cfg))
	return cmd
}
