package cmd

import (
	"fmt"
	"os"

	cfgpkg "github.com/KaramelBytes/munidata-cli/internal/config"
	"github.com/KaramelBytes/munidata-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Overrides for config values
	flagDataDir    string
	flagLogFile    string
	flagStrictKeys bool

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "munidata",
	Short: "munidata: reconcile, reshape and analyze municipal statistics tables",
	Long: `munidata aligns per-variable municipal tables (code, name, year, value) with a
reference filters table, melts wide year columns into long form, and computes
descriptive statistics, Tukey outliers and correlation matrices. Results can be
exported to CSV, XLSX, SQLite, JSON or Markdown, or served as a JSON API.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	err := rootCmd.Execute()
	_ = utils.Log().Close()
	if err != nil {
		errorf(os.Stderr, "✗ Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.munidata/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data warehouse directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "append log output to this file (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagStrictKeys, "strict-keys", false, "treat duplicate (code, year) keys as errors")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to defaults so commands can still run
		warnf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = &cfgpkg.Global{}
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	if f.Changed("log-file") {
		cfg.LogFile = flagLogFile
	}
	if f.Changed("strict-keys") {
		cfg.StrictKeys = flagStrictKeys
	}

	l, err := utils.NewLogger(os.Stderr, cfg.LogFile, debug)
	if err != nil {
		warnf(os.Stderr, "⚠ Warning: %v; logging to stderr only\n", err)
		l, _ = utils.NewLogger(os.Stderr, "", debug)
	}
	utils.SetDefault(l)
	l.Debug("config loaded (data_dir=%s)", cfg.DataDir)
}

// settings returns the loaded config, loading it on first use.
func settings() *cfgpkg.Global {
	if cfg == nil {
		loadConfig()
	}
	return cfg
}

func mustPositive(name string, v int) error {
	if v < 0 {
		return fmt.Errorf("--%s must be >= 0", name)
	}
	return nil
}
