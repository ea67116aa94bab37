package generator

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// TypeOverride replaces the type of one model field after models are synced.
type TypeOverride struct {
	Model  string `yaml:"model" json:"model"`
	Field  string `yaml:"field" json:"field"`
	Type   string `yaml:"type" json:"type"`
	Import string `yaml:"import,omitempty" json:"import,omitempty"`
}

// Options controls where generated code goes and which parts are produced.
type Options struct {
	OutDir string // required; root the package directories are relative to
	// Module is the import path of OutDir. When empty it is derived from the
	// nearest go.mod at or above OutDir.
	Module string

	HandlersPackage  string // default "handlers"
	ModelsPackage    string // default "models"
	RoutesPackage    string // default "routes"
	RegistrationFunc string // default "RegisterRoutes"
	DefaultGroup     string // group of untagged routes, default "default"

	Models       bool
	Tests        bool
	Registration bool

	ModelDirectives []string
	TypeOverrides   []TypeOverride

	DryRun bool // plan only
	Check  bool // plan only, fail when anything would change

	Logger *slog.Logger
}

func (o Options) withDefaults() (Options, error) {
	if strings.TrimSpace(o.OutDir) == "" {
		return o, errors.New("generator: OutDir is required")
	}
	def := func(v *string, d string) {
		*v = strings.Trim(strings.TrimSpace(filepath.ToSlash(*v)), "/")
		if *v == "" {
			*v = d
		}
	}
	def(&o.HandlersPackage, "handlers")
	def(&o.ModelsPackage, "models")
	def(&o.RoutesPackage, "routes")
	def(&o.RegistrationFunc, "RegisterRoutes")
	def(&o.DefaultGroup, "default")
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	abs, err := filepath.Abs(o.OutDir)
	if err != nil {
		return o, fmt.Errorf("generator: resolve out dir: %w", err)
	}
	o.OutDir = abs
	o.Module = strings.TrimSuffix(strings.TrimSpace(o.Module), "/")
	if o.Module == "" {
		mod, err := moduleOf(abs)
		if err != nil {
			return o, err
		}
		o.Module = mod
	}
	return o, nil
}

// moduleOf returns the import path of dir, found by walking up to the
// nearest go.mod and joining its module path with dir's relative location.
func moduleOf(dir string) (string, error) {
	for cur := dir; ; {
		data, err := os.ReadFile(filepath.Join(cur, "go.mod"))
		if err == nil {
			mod := modfile.ModulePath(data)
			if mod == "" {
				return "", fmt.Errorf("generator: no module directive in %s", filepath.Join(cur, "go.mod"))
			}
			rel, err := filepath.Rel(cur, dir)
			if err != nil {
				return "", err
			}
			return path.Join(mod, filepath.ToSlash(rel)), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("generator: module path unknown for %s: set the module option or add a go.mod", dir)
		}
		cur = parent
	}
}

// importPath is the import path of a package directory under OutDir.
func (o Options) importPath(pkgDir string) string { return path.Join(o.Module, pkgDir) }

// packageName is the Go package name of a package directory.
func packageName(pkgDir string) string {
	name := path.Base(pkgDir)
	name = strings.Map(func(r rune) rune {
		if r == '-' || r == '.' {
			return '_'
		}
		return r
	}, name)
	return strings.ToLower(name)
}
