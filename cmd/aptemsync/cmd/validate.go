package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dbsmedya/aptemsync/internal/config"
)

var validatePrint bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate checks the configuration file for syntax errors, missing
required fields, and inconsistent settings.

Checks performed:
  - Configuration syntax and required fields
  - Tenant name format and API token presence
  - Start date format (RFC3339)
  - HTTP timeout, retry and rate limit ranges
  - State backend settings (file path or MySQL DSN and table)
  - Per-entity column, children and page size overrides

Example:
  aptemsync validate --config aptemsync.yaml`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validatePrint, "print", false,
		"Print the effective configuration after overrides (token redacted)")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply CLI overrides
	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat,
		overrides.StartDate, overrides.MaxRetries)

	cmd.Printf("\n=== Configuration Validation ===\n")
	cmd.Printf("Config file: %s\n", configFile)
	cmd.Printf("Tenant: %s\n", cfg.TenantName)
	cmd.Printf("Entity overrides: %d\n", len(cfg.Entities))
	cmd.Printf("Excluded entities: %d\n\n", len(cfg.Exclude))

	if err := cfg.Validate(); err != nil {
		return err
	}

	if validatePrint {
		redacted := *cfg
		if redacted.APIToken != "" {
			redacted.APIToken = "<redacted>"
		}
		out, err := yaml.Marshal(&redacted)
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}
		cmd.Printf("--- Effective configuration ---\n%s\n", out)
	}

	cmd.Println("=== Validation Complete ===")
	return nil
}
