package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/oapisync/internal/generator"
)

// captureGenerate runs the CLI with args and returns the config the runner saw.
func captureGenerate(t *testing.T, args ...string) (*GenerateConfig, error) {
	t.Helper()
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	var captured *GenerateConfig
	generateRunner = func(ctx context.Context, cfg *GenerateConfig) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { generateRunner = runGenerate })

	root.SetArgs(args)
	err := root.Execute()
	return captured, err
}

func TestGenerateConfigDefaults(t *testing.T) {
	cfg, err := captureGenerate(t, "generate", "--input", "spec.yaml")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "echo", cfg.Framework)
	assert.Equal(t, ".", cfg.Out)
	assert.True(t, cfg.Models)
	assert.True(t, cfg.Registration)
	assert.False(t, cfg.Tests)
	assert.False(t, cfg.Check)
}

func TestGenerateConfigFromFlags(t *testing.T) {
	cfg, err := captureGenerate(t,
		"--verbose",
		"generate",
		"--input", "spec.yaml",
		"--framework", "CHI",
		"--out", "./server",
		"--module", "example.com/server",
		"--handlers-package", "internal/api",
		"--models-package", "internal/types",
		"--routes-package", "internal/router",
		"--registration-func", "Mount",
		"--default-group", "misc",
		"--include-tags", "foo,bar,foo",
		"--exclude-tags", "baz",
		"--methods", "GET,post",
		"--paths", "^/v1/",
		"--models=false",
		"--tests",
		"--registration=false",
		"--model-directive", "+genclient",
		"--model-directive", "oapisync:model",
		"--type-override", "User.created_at=civil.DateTime@cloud.google.com/go/civil",
		"--validate",
		"--check",
	)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "spec.yaml", cfg.Input)
	assert.Equal(t, "chi", cfg.Framework)
	assert.Equal(t, "./server", cfg.Out)
	assert.Equal(t, "example.com/server", cfg.Module)
	assert.Equal(t, "internal/api", cfg.HandlersPackage)
	assert.Equal(t, "internal/types", cfg.ModelsPackage)
	assert.Equal(t, "internal/router", cfg.RoutesPackage)
	assert.Equal(t, "Mount", cfg.RegistrationFunc)
	assert.Equal(t, "misc", cfg.DefaultGroup)
	assert.Equal(t, []string{"foo", "bar"}, cfg.IncludeTags)
	assert.Equal(t, []string{"baz"}, cfg.ExcludeTags)
	assert.Equal(t, []string{"get", "post"}, cfg.Methods)
	assert.Equal(t, []string{"^/v1/"}, cfg.Paths)
	assert.False(t, cfg.Models)
	assert.True(t, cfg.Tests)
	assert.False(t, cfg.Registration)
	assert.Equal(t, []string{"+genclient", "oapisync:model"}, cfg.ModelDirectives)
	assert.Equal(t, []generator.TypeOverride{
		{Model: "User", Field: "created_at", Type: "civil.DateTime", Import: "cloud.google.com/go/civil"},
	}, cfg.TypeOverrides)
	assert.True(t, cfg.Validate)
	assert.True(t, cfg.Check)
	assert.True(t, cfg.Verbose)
}

func TestGenerateConfigPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := strings.TrimSpace(`input: config-spec.yaml
framework: chi
out: from-config
module: example.com/cfg
Handlers_Package: cfghandlers
includeTags:
  - cfgFoo
excludeTags: cfgBar
tests: true
dry-run: true
verbose: true
modelDirectives: [+a, +b]
typeOverrides:
  - model: Pet
    field: id
    type: uuid.UUID
    import: github.com/google/uuid
  - Order.total=float64
`) + "\n"
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o600))

	t.Setenv("OAPISYNC_OUT", "from-env")
	t.Setenv("OAPISYNC_MODULE", "example.com/env")
	t.Setenv("OAPISYNC_TESTS", "false")
	t.Setenv("OAPISYNC_METHODS", "get,put")

	cfg, err := captureGenerate(t,
		"--config", configPath,
		"generate",
		"--input", "flag-spec.yaml",
		"--include-tags", "flagTag",
		"--dry-run=false",
		"--module", "example.com/flag",
	)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "flag-spec.yaml", cfg.Input, "flag beats config")
	assert.Equal(t, "chi", cfg.Framework, "config beats default")
	assert.Equal(t, "from-env", cfg.Out, "env beats config")
	assert.Equal(t, "example.com/flag", cfg.Module, "flag beats env")
	assert.Equal(t, "cfghandlers", cfg.HandlersPackage)
	assert.Equal(t, []string{"flagTag"}, cfg.IncludeTags)
	assert.Equal(t, []string{"cfgBar"}, cfg.ExcludeTags)
	assert.Equal(t, []string{"get", "put"}, cfg.Methods)
	assert.False(t, cfg.Tests, "env false beats config true")
	assert.False(t, cfg.DryRun, "flag false beats config true")
	assert.True(t, cfg.Verbose)
	assert.Equal(t, []string{"+a", "+b"}, cfg.ModelDirectives)
	assert.Equal(t, []generator.TypeOverride{
		{Model: "Pet", Field: "id", Type: "uuid.UUID", Import: "github.com/google/uuid"},
		{Model: "Order", Field: "total", Type: "float64"},
	}, cfg.TypeOverrides)
	assert.Equal(t, configPath, cfg.ConfigPath)
}

func TestGenerateConfigUnknownKey(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("unknown: value\n"), 0o600))

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", configPath, "generate", "--input", "spec.yaml"})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUsage))
	assert.Contains(t, err.Error(), "unknown field")
}

func TestGenerateConfigValidation(t *testing.T) {
	t.Parallel()
	cases := map[string]struct {
		args []string
		want string
	}{
		"missing input":    {[]string{"generate"}, "--input is required"},
		"framework":        {[]string{"generate", "--input", "a.yaml", "--framework", "gin"}, "unsupported --framework"},
		"method":           {[]string{"generate", "--input", "a.yaml", "--methods", "fetch"}, "unknown HTTP method"},
		"tags overlap":     {[]string{"generate", "--input", "a.yaml", "--include-tags", "a", "--exclude-tags", "a"}, "overlap"},
		"dry run check":    {[]string{"generate", "--input", "a.yaml", "--dry-run", "--check"}, "mutually exclusive"},
		"registration fn":  {[]string{"generate", "--input", "a.yaml", "--registration-func", "1bad"}, "not a Go identifier"},
		"override no type": {[]string{"generate", "--input", "a.yaml", "--type-override", "User.id="}, "empty type"},
		"override shape":   {[]string{"generate", "--input", "a.yaml", "--type-override", "User=int"}, "Model.field=type"},
	}
	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			root := NewRootCmd()
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)
			root.SetArgs(tc.args)
			err := root.Execute()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUsage)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseOverrides(t *testing.T) {
	t.Parallel()
	got, err := parseOverrides([]string{" Pet.tag = string ", "", "A.b=x.Y@example.com/x"})
	require.NoError(t, err)
	assert.Equal(t, []generator.TypeOverride{
		{Model: "Pet", Field: "tag", Type: "string"},
		{Model: "A", Field: "b", Type: "x.Y", Import: "example.com/x"},
	}, got)

	_, err = valueAsOverrides([]any{map[string]any{"model": "A", "field": "b"}})
	assert.ErrorContains(t, err, "required")
	_, err = valueAsOverrides([]any{map[string]any{"model": "A", "field": "b", "type": "c", "pkg": "d"}})
	assert.ErrorContains(t, err, "unknown field")
	_, err = valueAsOverrides("A.b=c")
	assert.ErrorContains(t, err, "expected list")
}

func TestIsIdentifier(t *testing.T) {
	t.Parallel()
	assert.True(t, isIdentifier("RegisterRoutes"))
	assert.True(t, isIdentifier("_mount2"))
	assert.False(t, isIdentifier("2mount"))
	assert.False(t, isIdentifier("mount-all"))
	assert.False(t, isIdentifier(""))
}
