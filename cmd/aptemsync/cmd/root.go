package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile    string
	logLevel   string
	logFormat  string
	startDate  string
	maxRetries int
)

var rootCmd = &cobra.Command{
	Use:   "aptemsync",
	Short: "Aptem OData Extractor",
	Long: `A CLI tool for extracting data from the Aptem OData API with
schema discovery and incremental replication.

Features:
  - Entity and schema discovery from the $metadata document
  - Incremental extraction via UpdatedDate replication cursors
  - Offset pagination fallback for entities without a replication key
  - Crash recovery via persisted cursors (file or MySQL backed)
  - Embedded child collection unpacking with inherited parent keys`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "aptemsync.yaml",
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Extraction overrides
	rootCmd.PersistentFlags().StringVar(&startDate, "start-date", "",
		"Override initial replication start date (RFC3339)")
	rootCmd.PersistentFlags().IntVar(&maxRetries, "max-retries", 0,
		"Override maximum retries for transient API errors")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel   string
	LogFormat  string
	StartDate  string
	MaxRetries int
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:   logLevel,
		LogFormat:  logFormat,
		StartDate:  startDate,
		MaxRetries: maxRetries,
	}
}
