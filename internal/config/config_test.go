package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultResolverProcesses, cfg.ResolverProcesses)
}

func TestLoad_ParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"1.21","resolver_processes":8,"env_variables":{"FOO":"bar"}}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1.21", cfg.ID)
	assert.Equal(t, 8, cfg.ResolverProcesses)
	assert.Equal(t, "bar", cfg.EnvVariables["FOO"])
}

func TestLoad_MalformedJSONErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestMerge_EnvVariablesCLIWinsOnCollision(t *testing.T) {
	base := &Config{EnvVariables: map[string]string{"A": "1", "B": "2"}}
	cli := &Config{EnvVariables: map[string]string{"B": "override"}}

	merged := base.Merge(cli)
	assert.Equal(t, "1", merged.EnvVariables["A"])
	assert.Equal(t, "override", merged.EnvVariables["B"])
}

func TestMerge_JVMArgsConcatenateConfigThenCLI(t *testing.T) {
	base := &Config{JVMArgs: []string{"-Xmx2G"}}
	cli := &Config{JVMArgs: []string{"-Xms512M"}}

	merged := base.Merge(cli)
	assert.Equal(t, []string{"-Xmx2G", "-Xms512M"}, merged.JVMArgs)
}

func TestMerge_ScalarCLIOverridesConfig(t *testing.T) {
	base := &Config{ID: "1.20", JavaPath: "/usr/bin/java"}
	cli := &Config{ID: "1.21"}

	merged := base.Merge(cli)
	assert.Equal(t, "1.21", merged.ID)
	assert.Equal(t, "/usr/bin/java", merged.JavaPath)
}
