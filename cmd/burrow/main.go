package main

import (
	"fmt"
	"os"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cfg is loaded by the root command before any subcommand runs
var cfg = config.Default()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "burrow",
	Short: "Burrow - Fleet scheduler for contended targets",
	Long: `Burrow packs work onto a fleet of heterogeneous nodes.

Each tick it reads the fleet, asks every registered action whether it has
work, and runs the most urgent ones. A supervisor keeps the engine modules
running on the local node and kills those that overrun their timeout.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("json") {
			loaded.Log.JSON, _ = cmd.Flags().GetBool("json")
		}
		if cmd.Flags().Changed("data-dir") {
			loaded.DataDir, _ = cmd.Flags().GetString("data-dir")
		}
		if cmd.Flags().Changed("spend") {
			loaded.SpendMoney, _ = cmd.Flags().GetBool("spend")
		}
		cfg = loaded

		log.Init(log.Config{
			Level:      log.Level(cfg.Log.Level),
			JSONOutput: cfg.Log.JSON,
			Buffered:   true,
		})
		metrics.SetVersion(Version)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return log.Flush()
	},
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Burrow version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().String("data-dir", "", "Directory holding the fleet database")
	rootCmd.PersistentFlags().Bool("spend", false, "Allow actions that spend money")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(moduleCmd)
	rootCmd.AddCommand(actionsCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Burrow version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}
