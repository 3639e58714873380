package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommandStructure(t *testing.T) {
	assert.NotNil(t, validateCmd)
	assert.Equal(t, "validate", validateCmd.Use)
	assert.NotEmpty(t, validateCmd.Short)
	assert.NotEmpty(t, validateCmd.Long)
	assert.NotNil(t, validateCmd.RunE)
}

func TestValidateCommandExample(t *testing.T) {
	assert.Contains(t, validateCmd.Long, "Example:")
	assert.Contains(t, validateCmd.Long, "aptemsync validate")
}

// writeTempConfig writes a config file and points the global flag at it,
// restoring the previous value when the test ends.
func writeTempConfig(t *testing.T, content string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "aptemsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	original := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = original })
}

func TestRunValidateValidConfig(t *testing.T) {
	writeTempConfig(t, `
tenant_name: acme
api_token: secret-token
start_date: "2026-01-01T00:00:00Z"
entities:
  Reviews:
    children: [Responses]
`)

	var buf bytes.Buffer
	validateCmd.SetOut(&buf)

	err := runValidate(validateCmd, nil)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Tenant: acme")
	assert.Contains(t, output, "=== Validation Complete ===")
	assert.NotContains(t, output, "secret-token")
}

func TestRunValidateMissingToken(t *testing.T) {
	writeTempConfig(t, `
tenant_name: acme
`)

	var buf bytes.Buffer
	validateCmd.SetOut(&buf)

	err := runValidate(validateCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_token")
}

func TestRunValidatePrintRedactsToken(t *testing.T) {
	writeTempConfig(t, `
tenant_name: acme
api_token: secret-token
`)

	originalPrint := validatePrint
	validatePrint = true
	defer func() { validatePrint = originalPrint }()

	var buf bytes.Buffer
	validateCmd.SetOut(&buf)

	err := runValidate(validateCmd, nil)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Effective configuration")
	assert.Contains(t, output, "<redacted>")
	assert.NotContains(t, output, "secret-token")
}

func TestRunValidateMissingFile(t *testing.T) {
	original := cfgFile
	cfgFile = filepath.Join(t.TempDir(), "does-not-exist.yaml")
	defer func() { cfgFile = original }()

	err := runValidate(validateCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}
