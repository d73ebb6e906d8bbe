package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vbonduro/pullsheet/internal/config"
	"github.com/vbonduro/pullsheet/internal/logging"
)

var (
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	logCleanup = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "pullsheet",
	Short: "Bakery pull list server and tools",
	Long: `pullsheet tracks how many of each catalog item a baker needs to pull and
which items need restocking, persists the list per user, and keeps an
audit log of sign-ins and sent summaries.

Configuration comes from an optional YAML file overlaid by environment
variables such as DB_DRIVER, DB_PATH, DATABASE_URL and LISTEN_ADDR.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		c, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		l, cleanup, err := logging.New(c.LogLevel, c.LogFile)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg, logger, logCleanup = c, l, cleanup
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logCleanup()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("PULLSHEET_CONFIG"), "path to a YAML config file")
}
