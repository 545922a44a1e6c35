package cmd

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osmedit/internal/config"
	"github.com/wegman-software/osmedit/internal/logger"
)

var (
	cfg             = config.DefaultConfig()
	configFile      string
	verbose         bool
	logFile         string
	metricsFile     string
	metricsInterval time.Duration
	workers         int
	undoLimit       int
	rulesFile       string
	apiURL          string
	username        string
	password        string
	databaseURL     string
	dbSchema        string
)

var rootCmd = &cobra.Command{
	Use:   "osmedit",
	Short: "OpenStreetMap editing engine",
	Long: `osmedit loads OpenStreetMap data, edits it through the same gesture
state machine an interactive editor uses, and writes or uploads the result.

Features:
  - OSM XML, PBF and osmChange input
  - Lua scripts driving long-click, select and menu gestures
  - Undo checkpoints and pending change listings
  - Changeset upload to the OSM API
  - PostgreSQL snapshots of whole editing sessions`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loaded, err := config.Load(configFile)
		if err != nil {
			logger.Init(verbose)
			exitWithError("failed to load configuration", err)
		}
		cfg = loaded
		applyFlags(cmd)

		// Initialize logger with optional file output
		if cfg.LogFile != "" {
			logger.InitWithFile(cfg.Verbose, cfg.LogFile)
		} else {
			logger.Init(cfg.Verbose)
		}

		if err := cfg.Validate(); err != nil {
			exitWithError("invalid configuration", err)
		}
		summary := cfg.LogSummary()
		fields := make([]zap.Field, 0, len(summary))
		for k, v := range summary {
			fields = append(fields, zap.String(k, v))
		}
		logger.Get().Debug("Configuration loaded", fields...)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// applyFlags overrides file and environment settings with explicit flags
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	cfg.Verbose = cfg.Verbose || verbose
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if flags.Changed("metrics-file") {
		cfg.MetricsFile = metricsFile
	}
	if flags.Changed("metrics-interval") {
		cfg.MetricsInterval = metricsInterval
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("undo-limit") {
		cfg.UndoLimit = undoLimit
	}
	if flags.Changed("rules") {
		cfg.RulesFile = rulesFile
	}
	if flags.Changed("api-url") {
		cfg.APIURL = apiURL
	}
	if flags.Changed("username") {
		cfg.Username = username
	}
	if flags.Changed("password") {
		cfg.Password = password
	}
	if flags.Changed("database-url") {
		cfg.DatabaseURL = databaseURL
	}
	if flags.Changed("db-schema") {
		cfg.DBSchema = dbSchema
	}
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "j", cfg.Workers, "Number of parallel workers")
	rootCmd.PersistentFlags().IntVar(&undoLimit, "undo-limit", cfg.UndoLimit, "Maximum number of undo checkpoints")
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "Tagging rules YAML file (default: built-in rules)")

	// Logging and metrics flags
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file at exit")
	rootCmd.PersistentFlags().DurationVar(&metricsInterval, "metrics-interval", cfg.MetricsInterval, "Interval for system metrics sampling (e.g., 10s, 1m)")

	// Server flags
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", cfg.APIURL, "OSM API base URL")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "OSM API user name")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "OSM API password")

	// Database flags
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL for snapshots")
	rootCmd.PersistentFlags().StringVar(&dbSchema, "db-schema", cfg.DBSchema, "PostgreSQL schema for snapshots")
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	logger.Sync()
	os.Exit(1)
}

// outf writes command output to stdout; logs go to stderr
func outf(format string, args ...any) {
	fmt.Fprintf(os.Stdout, format, args...)
}
