package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oapisync/internal/emitter"
	"github.com/mark3labs/oapisync/internal/emitter/chiemitter"
	"github.com/mark3labs/oapisync/internal/emitter/echoemitter"
	"github.com/mark3labs/oapisync/internal/generator"
	"github.com/mark3labs/oapisync/internal/spec"
)

// envPrefix prefixes every environment variable the generate command reads.
const envPrefix = "OAPISYNC_"

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, environment variables and CLI overrides.
type GenerateConfig struct {
	Input            string
	Out              string
	Framework        string
	Module           string
	HandlersPackage  string
	ModelsPackage    string
	RoutesPackage    string
	RegistrationFunc string
	DefaultGroup     string
	IncludeTags      []string
	ExcludeTags      []string
	Methods          []string
	Paths            []string
	Models           bool
	Tests            bool
	Registration     bool
	ModelDirectives  []string
	TypeOverrides    []generator.TypeOverride
	Validate         bool
	ConfigPath       string
	DryRun           bool
	Check            bool
	Verbose          bool

	stdout io.Writer
	stderr io.Writer
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Out:          ".",
		Framework:    "echo",
		Models:       true,
		Registration: true,
	}
}

// generateEnv mirrors the settable options as environment variables. Pointer
// fields stay nil when the variable is unset.
type generateEnv struct {
	Input            string   `env:"INPUT"`
	Out              string   `env:"OUT"`
	Framework        string   `env:"FRAMEWORK"`
	Module           string   `env:"MODULE"`
	HandlersPackage  string   `env:"HANDLERS_PACKAGE"`
	ModelsPackage    string   `env:"MODELS_PACKAGE"`
	RoutesPackage    string   `env:"ROUTES_PACKAGE"`
	RegistrationFunc string   `env:"REGISTRATION_FUNC"`
	DefaultGroup     string   `env:"DEFAULT_GROUP"`
	IncludeTags      []string `env:"INCLUDE_TAGS" envSeparator:","`
	ExcludeTags      []string `env:"EXCLUDE_TAGS" envSeparator:","`
	Methods          []string `env:"METHODS" envSeparator:","`
	Paths            []string `env:"PATHS" envSeparator:","`
	Models           *bool    `env:"MODELS"`
	Tests            *bool    `env:"TESTS"`
	Registration     *bool    `env:"REGISTRATION"`
	ModelDirectives  []string `env:"MODEL_DIRECTIVES" envSeparator:","`
	TypeOverrides    []string `env:"TYPE_OVERRIDES" envSeparator:","`
	Validate         *bool    `env:"VALIDATE"`
	DryRun           *bool    `env:"DRY_RUN"`
	Check            *bool    `env:"CHECK"`
	Verbose          *bool    `env:"VERBOSE"`
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create or update handlers, routes and models from an OpenAPI/Swagger document",
		Long: "Create or update Go handler stubs, route registrations, models and test scaffolds " +
			"from an OpenAPI/Swagger document. Existing files are patched, never rewritten. " +
			"Options can be provided via flags, OAPISYNC_* environment variables, config files, or defaults.",
		Example: strings.TrimSpace(`  oapisync generate --input openapi.yaml --framework echo --out ./server
  oapisync --config oapisync.yaml generate --check
  OAPISYNC_FRAMEWORK=chi oapisync generate --input api.json --tests`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			cfg.stdout, cfg.stderr = cmd.OutOrStdout(), cmd.ErrOrStderr()
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path to the Swagger/OpenAPI document")
	flags.String("out", "", "Project directory generated packages live under (default \".\")")
	flags.String("framework", "", "Target framework (echo|chi); defaults to echo")
	flags.String("module", "", "Import path of --out (derived from go.mod when omitted)")
	flags.String("handlers-package", "", "Handlers package directory, relative to --out")
	flags.String("models-package", "", "Models package directory, relative to --out")
	flags.String("routes-package", "", "Routes package directory, relative to --out")
	flags.String("registration-func", "", "Name of the function route registrations are injected into")
	flags.String("default-group", "", "Group name for untagged operations")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("methods", nil, "Only include operations with these HTTP methods")
	flags.StringSlice("paths", nil, "Only include operations whose path matches one of these regular expressions")
	flags.Bool("models", true, "Sync component schemas into the models package")
	flags.Bool("tests", false, "Scaffold one test per handler")
	flags.Bool("registration", true, "Inject route registrations")
	flags.StringArray("model-directive", nil, "Directive comment added to every model (repeatable)")
	flags.StringArray("type-override", nil, "Retype a model field: Model.field=type[@import] (repeatable)")
	flags.Bool("validate", false, "Validate the document structurally before generating")
	flags.Bool("dry-run", false, "Preview planned writes without writing files")
	flags.Bool("check", false, "Write nothing and fail when any file would change")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateEnv(&cfg); err != nil {
		return nil, err
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateEnv(cfg *GenerateConfig) error {
	var e generateEnv
	if err := env.ParseWithOptions(&e, env.Options{Prefix: envPrefix}); err != nil {
		return newUsageError(fmt.Sprintf("environment: %v", err))
	}
	setString := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	setString(&cfg.Input, e.Input)
	setString(&cfg.Out, e.Out)
	setString(&cfg.Framework, e.Framework)
	setString(&cfg.Module, e.Module)
	setString(&cfg.HandlersPackage, e.HandlersPackage)
	setString(&cfg.ModelsPackage, e.ModelsPackage)
	setString(&cfg.RoutesPackage, e.RoutesPackage)
	setString(&cfg.RegistrationFunc, e.RegistrationFunc)
	setString(&cfg.DefaultGroup, e.DefaultGroup)

	setList := func(dst *[]string, v []string) {
		if len(v) > 0 {
			*dst = v
		}
	}
	setList(&cfg.IncludeTags, e.IncludeTags)
	setList(&cfg.ExcludeTags, e.ExcludeTags)
	setList(&cfg.Methods, e.Methods)
	setList(&cfg.Paths, e.Paths)
	setList(&cfg.ModelDirectives, e.ModelDirectives)
	if len(e.TypeOverrides) > 0 {
		overrides, err := parseOverrides(e.TypeOverrides)
		if err != nil {
			return newUsageError(fmt.Sprintf("environment %sTYPE_OVERRIDES: %v", envPrefix, err))
		}
		cfg.TypeOverrides = overrides
	}

	for dst, v := range map[*bool]*bool{
		&cfg.Models: e.Models, &cfg.Tests: e.Tests, &cfg.Registration: e.Registration,
		&cfg.Validate: e.Validate, &cfg.DryRun: e.DryRun, &cfg.Check: e.Check, &cfg.Verbose: e.Verbose,
	} {
		if v != nil {
			*dst = *v
		}
	}
	return nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := map[string]*string{
		"input":             &cfg.Input,
		"out":               &cfg.Out,
		"framework":         &cfg.Framework,
		"module":            &cfg.Module,
		"handlers-package":  &cfg.HandlersPackage,
		"models-package":    &cfg.ModelsPackage,
		"routes-package":    &cfg.RoutesPackage,
		"registration-func": &cfg.RegistrationFunc,
		"default-group":     &cfg.DefaultGroup,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}

	lists := map[string]*[]string{
		"include-tags": &cfg.IncludeTags,
		"exclude-tags": &cfg.ExcludeTags,
		"methods":      &cfg.Methods,
		"paths":        &cfg.Paths,
	}
	for name, dst := range lists {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetStringSlice(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	if flags.Changed("model-directive") {
		value, err := flags.GetStringArray("model-directive")
		if err != nil {
			return err
		}
		cfg.ModelDirectives = value
	}
	if flags.Changed("type-override") {
		value, err := flags.GetStringArray("type-override")
		if err != nil {
			return err
		}
		overrides, err := parseOverrides(value)
		if err != nil {
			return newUsageError(fmt.Sprintf("generate: --type-override: %v", err))
		}
		cfg.TypeOverrides = overrides
	}

	bools := map[string]*bool{
		"models":       &cfg.Models,
		"tests":        &cfg.Tests,
		"registration": &cfg.Registration,
		"validate":     &cfg.Validate,
		"dry-run":      &cfg.DryRun,
		"check":        &cfg.Check,
		"verbose":      &cfg.Verbose,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	return nil
}

// parseOverrides reads "Model.field=type" entries with an optional
// "@import/path" suffix.
func parseOverrides(entries []string) ([]generator.TypeOverride, error) {
	var out []generator.TypeOverride
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		target, typ, ok := strings.Cut(entry, "=")
		model, field, okField := strings.Cut(strings.TrimSpace(target), ".")
		if !ok || !okField || strings.TrimSpace(model) == "" || strings.TrimSpace(field) == "" {
			return nil, fmt.Errorf("%q: expected Model.field=type[@import]", entry)
		}
		o := generator.TypeOverride{Model: strings.TrimSpace(model), Field: strings.TrimSpace(field)}
		typ, imp, _ := strings.Cut(typ, "@")
		o.Type, o.Import = strings.TrimSpace(typ), strings.TrimSpace(imp)
		if o.Type == "" {
			return nil, fmt.Errorf("%q: empty type", entry)
		}
		out = append(out, o)
	}
	return out, nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Out = strings.TrimSpace(c.Out)
	if c.Out == "" {
		c.Out = "."
	}
	c.Framework = strings.ToLower(strings.TrimSpace(c.Framework))
	c.Module = strings.TrimSpace(c.Module)
	c.HandlersPackage = strings.TrimSpace(c.HandlersPackage)
	c.ModelsPackage = strings.TrimSpace(c.ModelsPackage)
	c.RoutesPackage = strings.TrimSpace(c.RoutesPackage)
	c.RegistrationFunc = strings.TrimSpace(c.RegistrationFunc)
	c.DefaultGroup = strings.TrimSpace(c.DefaultGroup)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
	c.Methods = sanitizeTags(c.Methods)
	for i, m := range c.Methods {
		c.Methods[i] = strings.ToLower(m)
	}
	c.Paths = sanitizeTags(c.Paths)
	c.ModelDirectives = sanitizeTags(c.ModelDirectives)
}

var frameworks = map[string]func() emitter.Strategy{
	"echo": func() emitter.Strategy { return echoemitter.New() },
	"chi":  func() emitter.Strategy { return chiemitter.New() },
}

var knownMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

func (c *GenerateConfig) validate() error {
	if c.Input == "" {
		return newUsageError("generate: --input is required (set via flag, OAPISYNC_INPUT or config file)")
	}

	if c.Framework == "" {
		c.Framework = "echo"
	}
	if _, ok := frameworks[c.Framework]; !ok {
		return newUsageError(fmt.Sprintf("generate: unsupported --framework %q (allowed: echo, chi)", c.Framework))
	}

	for _, m := range c.Methods {
		if !knownMethods[m] {
			return newUsageError(fmt.Sprintf("generate: unknown HTTP method %q", m))
		}
	}

	if c.RegistrationFunc != "" && !isIdentifier(c.RegistrationFunc) {
		return newUsageError(fmt.Sprintf("generate: --registration-func %q is not a Go identifier", c.RegistrationFunc))
	}

	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}

	if c.DryRun && c.Check {
		return newUsageError("generate: --dry-run and --check are mutually exclusive")
	}

	return nil
}

func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return s != ""
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
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

	methods := make([]spec.HttpMethod, 0, len(cfg.Methods))
	for _, m := range cfg.Methods {
		methods = append(methods, spec.HttpMethod(m))
	}
	res, err := spec.ResolveDocument(doc,
		spec.WithIncludeTags(cfg.IncludeTags),
		spec.WithExcludeTags(cfg.ExcludeTags),
		spec.WithMethods(methods),
		spec.WithPathPatterns(cfg.Paths),
		spec.WithRouteLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("resolve document: %w", err)
	}

	absOut := cfg.Out
	if ap, err := filepath.Abs(cfg.Out); err == nil {
		absOut = ap
	}

	result, err := generator.Run(ctx, res, frameworks[cfg.Framework](), generator.Options{
		OutDir:           cfg.Out,
		Module:           cfg.Module,
		HandlersPackage:  cfg.HandlersPackage,
		ModelsPackage:    cfg.ModelsPackage,
		RoutesPackage:    cfg.RoutesPackage,
		RegistrationFunc: cfg.RegistrationFunc,
		DefaultGroup:     cfg.DefaultGroup,
		Models:           cfg.Models,
		Tests:            cfg.Tests,
		Registration:     cfg.Registration,
		ModelDirectives:  cfg.ModelDirectives,
		TypeOverrides:    cfg.TypeOverrides,
		DryRun:           cfg.DryRun,
		Check:            cfg.Check,
		Logger:           logger,
	})
	if result != nil && (cfg.DryRun || cfg.Check) {
		printPlan(stdout, absOut, result.Planned)
	}
	if err != nil {
		if errors.Is(err, generator.ErrOutOfDate) {
			return err
		}
		return newUsageError(fmt.Sprintf("generate: %v", err))
	}

	if !cfg.DryRun && !cfg.Check {
		fmt.Fprintf(stdout, "Synced %d handlers, %d registrations, %d models into %s (%d files changed)\n",
			result.Handlers, result.Registrations, result.Models, absOut, len(result.Changed()))
	}
	if len(result.Failures) > 0 {
		for _, f := range result.Failures {
			fmt.Fprintf(stdout, "! %s: %s: %s\n", f.File, f.Kind, f.Message)
		}
		return fmt.Errorf("generate: %d file(s) could not be generated", len(result.Failures))
	}
	return nil
}

// specUsageError renders loader errors with their location and pointer.
func specUsageError(err error) error {
	var se *spec.SpecError
	if !errors.As(err, &se) {
		return err
	}
	msg := fmt.Sprintf("spec: %s", se.Message)
	if se.Location != "" {
		msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
	}
	if se.JSONPointer != "" {
		msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
	}
	return wrapUsageError(msg, err)
}

func printPlan(w io.Writer, outDir string, planned []generator.PlannedFile) {
	fmt.Fprintf(w, "Planned writes to %s (%d files):\n", outDir, len(planned))
	for _, p := range planned {
		fmt.Fprintf(w, "- %-9s %s\n", p.Action, p.RelPath)
	}
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	strs := map[string]*string{
		"input":            &cfg.Input,
		"out":              &cfg.Out,
		"framework":        &cfg.Framework,
		"module":           &cfg.Module,
		"handlerspackage":  &cfg.HandlersPackage,
		"modelspackage":    &cfg.ModelsPackage,
		"routespackage":    &cfg.RoutesPackage,
		"registrationfunc": &cfg.RegistrationFunc,
		"defaultgroup":     &cfg.DefaultGroup,
	}
	lists := map[string]*[]string{
		"includetags":     &cfg.IncludeTags,
		"excludetags":     &cfg.ExcludeTags,
		"methods":         &cfg.Methods,
		"paths":           &cfg.Paths,
		"modeldirectives": &cfg.ModelDirectives,
	}
	bools := map[string]*bool{
		"models":       &cfg.Models,
		"tests":        &cfg.Tests,
		"registration": &cfg.Registration,
		"validate":     &cfg.Validate,
		"dryrun":       &cfg.DryRun,
		"check":        &cfg.Check,
		"verbose":      &cfg.Verbose,
	}

	for key, value := range raw {
		normalized := normalizeKey(key)
		if dst, ok := strs[normalized]; ok {
			str, err := valueAsString(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*dst = str
			continue
		}
		if dst, ok := lists[normalized]; ok {
			list, err := valueAsStringSlice(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*dst = list
			continue
		}
		if dst, ok := bools[normalized]; ok {
			val, err := valueAsBool(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			*dst = val
			continue
		}
		if normalized == "typeoverrides" {
			overrides, err := valueAsOverrides(value)
			if err != nil {
				return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
			cfg.TypeOverrides = overrides
			continue
		}
		return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
	}

	return nil
}

// valueAsOverrides accepts a list whose entries are either
// "Model.field=type[@import]" strings or {model, field, type, import} maps.
func valueAsOverrides(v any) ([]generator.TypeOverride, error) {
	items, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("expected list, got %T", v)
	}
	var out []generator.TypeOverride
	for idx, item := range items {
		switch val := item.(type) {
		case string:
			parsed, err := parseOverrides([]string{val})
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			out = append(out, parsed...)
		case map[string]any:
			var o generator.TypeOverride
			for k, field := range val {
				str, err := valueAsString(field)
				if err != nil {
					return nil, fmt.Errorf("element %d field %q: %w", idx, k, err)
				}
				switch normalizeKey(k) {
				case "model":
					o.Model = str
				case "field":
					o.Field = str
				case "type":
					o.Type = str
				case "import":
					o.Import = str
				default:
					return nil, fmt.Errorf("element %d: unknown field %q", idx, k)
				}
			}
			if o.Model == "" || o.Field == "" || o.Type == "" {
				return nil, fmt.Errorf("element %d: model, field and type are required", idx)
			}
			out = append(out, o)
		default:
			return nil, fmt.Errorf("element %d: expected string or map, got %T", idx, item)
		}
	}
	return out, nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
