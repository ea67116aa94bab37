package cli

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestInit_WritesSampleConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path})
	require.NoError(t, root.Execute())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "oapisync configuration")
	assert.Contains(t, string(data), "# typeOverrides:")

	// Everything is commented out, so the sample is an empty but valid config.
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	assert.Empty(t, raw)
	var cfg GenerateConfig
	assert.NoError(t, applyGenerateConfigFromFile(&cfg, path))
}

func TestInit_ExistingWithoutForce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path})

	err := root.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUsage)

	root = NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path, "--force"})
	require.NoError(t, root.Execute())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, "x", string(data))
}
