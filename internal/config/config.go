// Package config provides configuration structures and loading for aptemsync.
package config

import "fmt"

// Config represents the complete application configuration.
type Config struct {
	TenantName string                  `yaml:"tenant_name" mapstructure:"tenant_name"`
	APIToken   string                  `yaml:"api_token" mapstructure:"api_token"`
	StartDate  string                  `yaml:"start_date" mapstructure:"start_date"`
	HTTP       HTTPConfig              `yaml:"http" mapstructure:"http"`
	State      StateConfig             `yaml:"state" mapstructure:"state"`
	Entities   map[string]EntityConfig `yaml:"entities" mapstructure:"entities"`
	Exclude    []string                `yaml:"exclude" mapstructure:"exclude"`
	Output     OutputConfig            `yaml:"output" mapstructure:"output"`
	Logging    LoggingConfig           `yaml:"logging" mapstructure:"logging"`
}

// HTTPConfig represents transport settings for the OData API.
type HTTPConfig struct {
	TimeoutSeconds         int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MetadataTimeoutSeconds int     `yaml:"metadata_timeout_seconds" mapstructure:"metadata_timeout_seconds"`
	MaxRetries             int     `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimit              float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst              int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// StateConfig represents cursor persistence settings.
type StateConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend"` // file or mysql
	Path    string `yaml:"path" mapstructure:"path"`       // file backend: state file path
	DSN     string `yaml:"dsn" mapstructure:"dsn"`         // mysql backend: connection string
	Table   string `yaml:"table" mapstructure:"table"`     // mysql backend: state table name
}

// EntityConfig represents per-entity extraction overrides.
type EntityConfig struct {
	Columns  []string `yaml:"columns" mapstructure:"columns"`     // column mask; empty selects everything
	Children []string `yaml:"children" mapstructure:"children"`   // embedded collections to expand
	PageSize int      `yaml:"page_size" mapstructure:"page_size"` // overrides the built-in page size table
}

// OutputConfig represents record emission settings.
type OutputConfig struct {
	Directory string `yaml:"directory" mapstructure:"directory"` // NDJSON output directory; empty means stdout
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			TimeoutSeconds:         60,
			MetadataTimeoutSeconds: 300,
			MaxRetries:             3,
			RateLimit:              5,
			RateBurst:              5,
		},
		State: StateConfig{
			Backend: "file",
			Path:    "aptemsync-state.json",
			Table:   "aptemsync_state",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// BaseURL builds the tenant-scoped OData base URL.
func (c *Config) BaseURL() string {
	return fmt.Sprintf("https://%s.aptem.co.uk/odata/1.0", c.TenantName)
}

// MetadataURL builds the URL of the tenant's $metadata document.
func (c *Config) MetadataURL() string {
	return c.BaseURL() + "/$metadata"
}

// GetEntity returns the per-entity overrides for a collection name.
// A zero EntityConfig is returned when no overrides are configured.
func (c *Config) GetEntity(name string) EntityConfig {
	if ec, ok := c.Entities[name]; ok {
		return ec
	}
	return EntityConfig{}
}

// IsExcluded reports whether a collection name is excluded from extraction.
func (c *Config) IsExcluded(name string) bool {
	for _, e := range c.Exclude {
		if e == name {
			return true
		}
	}
	return false
}
