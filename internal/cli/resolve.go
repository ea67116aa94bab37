package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oapisync/internal/spec"
)

// ResolveConfig captures the options for the resolve command.
type ResolveConfig struct {
	Input       string
	Format      string
	IncludeTags []string
	ExcludeTags []string
	Validate    bool
	Verbose     bool

	stdout io.Writer
	stderr io.Writer
}

var resolveRunner = runResolve

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the resolved routes and models of a document",
		Long: "Resolve references, normalize schemas and print the routes and model types " +
			"generate would work from, as JSON or YAML.",
		Example: "  oapisync resolve --input openapi.yaml --format yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			cfg := &ResolveConfig{stdout: cmd.OutOrStdout(), stderr: cmd.ErrOrStderr()}
			var err error
			if cfg.Input, err = flags.GetString("input"); err != nil {
				return err
			}
			if cfg.Format, err = flags.GetString("format"); err != nil {
				return err
			}
			if cfg.IncludeTags, err = flags.GetStringSlice("include-tags"); err != nil {
				return err
			}
			if cfg.ExcludeTags, err = flags.GetStringSlice("exclude-tags"); err != nil {
				return err
			}
			if cfg.Validate, err = flags.GetBool("validate"); err != nil {
				return err
			}
			if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
				return err
			}
			cfg.Input = strings.TrimSpace(cfg.Input)
			cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
			cfg.IncludeTags = sanitizeTags(cfg.IncludeTags)
			cfg.ExcludeTags = sanitizeTags(cfg.ExcludeTags)
			if cfg.Input == "" {
				return newUsageError("resolve: --input is required")
			}
			if cfg.Format != "json" && cfg.Format != "yaml" {
				return newUsageError(fmt.Sprintf("resolve: unsupported --format %q (allowed: json, yaml)", cfg.Format))
			}
			return resolveRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("input", "", "Path to the Swagger/OpenAPI document")
	cmd.Flags().String("format", "json", "Output format (json|yaml)")
	cmd.Flags().StringSlice("include-tags", nil, "Only include operations with these tags")
	cmd.Flags().StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	cmd.Flags().Bool("validate", false, "Validate the document structurally before resolving")

	return cmd
}

func runResolve(ctx context.Context, cfg *ResolveConfig) error {
	stdout, stderr := cfg.stdout, cfg.stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := newLogger(stderr, cfg.Verbose)

	doc, err := spec.Load(ctx, cfg.Input, spec.WithValidation(cfg.Validate), spec.WithLogger(logger))
	if err != nil {
		return specUsageError(err)
	}
	res, err := spec.ResolveDocument(doc,
		spec.WithIncludeTags(cfg.IncludeTags),
		spec.WithExcludeTags(cfg.ExcludeTags),
		spec.WithRouteLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("resolve document: %w", err)
	}

	if cfg.Format == "yaml" {
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	_, err = fmt.Fprintf(stdout, "%s\n", data)
	return err
}
