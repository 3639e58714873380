package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// tenantPattern matches valid Aptem tenant names (DNS label, becomes a subdomain).
var tenantPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	if c.TenantName == "" {
		errors = append(errors, ValidationError{
			Field:   "tenant_name",
			Message: "tenant name is required",
		})
	} else if !tenantPattern.MatchString(c.TenantName) {
		errors = append(errors, ValidationError{
			Field:   "tenant_name",
			Message: "tenant name must be a valid subdomain label (lowercase letters, digits, hyphens)",
		})
	}

	if c.APIToken == "" {
		errors = append(errors, ValidationError{
			Field:   "api_token",
			Message: "API token is required",
		})
	}

	if c.StartDate != "" {
		if _, err := time.Parse(time.RFC3339, c.StartDate); err != nil {
			errors = append(errors, ValidationError{
				Field:   "start_date",
				Message: "start date must be an RFC3339 timestamp (e.g. 2024-01-01T00:00:00Z)",
			})
		}
	}

	errors = append(errors, c.validateHTTP()...)
	errors = append(errors, c.validateState()...)
	errors = append(errors, c.validateEntities()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateHTTP() ValidationErrors {
	var errors ValidationErrors

	if c.HTTP.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "http.timeout_seconds",
			Message: "timeout must be positive",
		})
	}

	if c.HTTP.MetadataTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "http.metadata_timeout_seconds",
			Message: "metadata timeout must be positive",
		})
	}

	if c.HTTP.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "http.max_retries",
			Message: "max retries cannot be negative",
		})
	}

	if c.HTTP.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "http.rate_limit",
			Message: "rate limit cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateState() ValidationErrors {
	var errors ValidationErrors

	switch c.State.Backend {
	case "file":
		if c.State.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "state.path",
				Message: "state file path is required for the file backend",
			})
		}
	case "mysql":
		if c.State.DSN == "" {
			errors = append(errors, ValidationError{
				Field:   "state.dsn",
				Message: "DSN is required for the mysql backend",
			})
		}
		if c.State.Table == "" {
			errors = append(errors, ValidationError{
				Field:   "state.table",
				Message: "table name is required for the mysql backend",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "state.backend",
			Message: fmt.Sprintf("unknown backend %q (must be file or mysql)", c.State.Backend),
		})
	}

	return errors
}

func (c *Config) validateEntities() ValidationErrors {
	var errors ValidationErrors

	for name, ec := range c.Entities {
		if ec.PageSize < 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("entities.%s.page_size", name),
				Message: "page size cannot be negative",
			})
		}
		for _, col := range ec.Columns {
			if col == "" {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("entities.%s.columns", name),
					Message: "column names cannot be empty",
				})
				break
			}
		}
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q (must be debug, info, warn, or error)", c.Logging.Level),
		})
	}

	switch c.Logging.Format {
	case "", "json", "text":
	default:
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q (must be json or text)", c.Logging.Format),
		})
	}

	return errors
}
