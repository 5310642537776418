package gen

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
target: ./internal/gen
package: github.com/acme/blog/internal/gen
header: "// Code generated by strata. DO NOT EDIT."
features:
  - cache
  - upsert
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "./internal/gen", cfg.Target)
	assert.Equal(t, "github.com/acme/blog/internal/gen", cfg.Package)
	assert.True(t, cfg.FeatureEnabled("cache"))
	assert.True(t, cfg.FeatureEnabled("upsert"))
	assert.False(t, cfg.FeatureEnabled("graphql"))
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingConfig))

	_, err = LoadConfig(writeConfig(t, "target: [not a string"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingConfig))

	_, err = LoadConfig(writeConfig(t, "package: github.com/acme/blog"))
	require.Error(t, err)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))

	_, err = LoadConfig(writeConfig(t, "target: ./gen"))
	require.Error(t, err)
}
