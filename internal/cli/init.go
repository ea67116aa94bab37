package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
	Verbose    bool

	stdout io.Writer
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample oapisync configuration file",
		Long:  "Scaffold a commented oapisync configuration file that documents available options.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			cfg := &InitConfig{
				OutputPath: out,
				Force:      force,
				Verbose:    verbose,
				stdout:     cmd.OutOrStdout(),
			}
			return initRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("out", "oapisync.yaml", "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = "oapisync.yaml"
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force {
		if st.Mode().IsRegular() {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
		}
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot create parent directory: %v", err))
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"

	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err))
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return newUsageError(fmt.Sprintf("init: cannot place file at %s: %v", absPath, err))
	}
	stdout := cfg.stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	fmt.Fprintf(stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# oapisync configuration (YAML)
# All fields are optional. OAPISYNC_* environment variables override these
# values and command-line flags override both.

# Path to the Swagger/OpenAPI document (local file).
# input: ./openapi.yaml

# Project directory the generated packages live under.
# out: .

# Target framework (echo|chi). Defaults to echo.
# framework: echo

# Import path of out. Derived from the nearest go.mod when omitted.
# module: example.com/server

# Package directories, relative to out.
# handlersPackage: handlers
# modelsPackage: models
# routesPackage: routes

# Function route registrations are injected into.
# registrationFunc: RegisterRoutes

# Group (and handler file) for operations without tags.
# defaultGroup: default

# Only include operations with these tags (comma-separated or list).
# includeTags: [public]

# Exclude operations with these tags (comma-separated or list).
# excludeTags: [internal]

# Only include these HTTP methods, or paths matching these regular expressions.
# methods: [get, post]
# paths: ['^/v1/']

# Sync component schemas into the models package.
# models: true

# Scaffold one test per handler.
# tests: false

# Inject route registrations.
# registration: true

# Directive comments added to every model.
# modelDirectives: ['+kubebuilder:object:generate=true']

# Field types replaced after models are synced.
# typeOverrides:
#   - model: User
#     field: created_at
#     type: civil.DateTime
#     import: cloud.google.com/go/civil
#   - Order.total=decimal.Decimal@github.com/shopspring/decimal

# Validate the document structurally before generating.
# validate: false

# Preview planned writes without writing files.
# dryRun: false

# Write nothing and fail when any file would change.
# check: false

# Enable verbose logging.
# verbose: false
`
