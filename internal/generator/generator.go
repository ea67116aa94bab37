// Package generator turns a resolved API description into Go source inside an
// existing project. New files are created from scratch; files that already
// exist are only ever extended through structural patches, so hand-written
// code survives every run.
package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-openapi/swag"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mark3labs/oapisync/internal/emitter"
	"github.com/mark3labs/oapisync/internal/patch"
	"github.com/mark3labs/oapisync/internal/spec"
	"github.com/mark3labs/oapisync/internal/syntax"
)

// Action says what a run does, or would do, to one file.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionUnchanged Action = "unchanged"
	ActionFailed    Action = "failed"
)

// WriteFailure is the Failure kind recorded when a file cannot be written.
const WriteFailure = "WriteFailure"

// ErrOutOfDate is returned in check mode when a run would change files.
var ErrOutOfDate = errors.New("generated code is out of date")

// PlannedFile describes one file the generator touched.
type PlannedFile struct {
	RelPath string
	Action  Action
	Size    int
	Mode    os.FileMode
}

// Failure is a file that could not be generated. The rest of the batch is
// unaffected.
type Failure struct {
	File    string
	Kind    string
	Decl    string
	Field   string
	Message string
}

// Result reports the outcome of a run.
type Result struct {
	Module        string
	Planned       []PlannedFile
	Failures      []Failure
	Warnings      []string
	Handlers      int
	Registrations int
	Models        int
}

// Changed lists the files created or updated, in plan order.
func (r *Result) Changed() []string {
	var out []string
	for _, p := range r.Planned {
		if p.Action == ActionCreate || p.Action == ActionUpdate {
			out = append(out, p.RelPath)
		}
	}
	return out
}

// Run generates handlers, route registrations, models and tests for res
// using s, then writes every changed file unless opts asks for a plan only.
// Per-file problems are reported in Result.Failures; the returned error is
// reserved for problems that stop the whole run.
func Run(ctx context.Context, res *spec.Resolution, s emitter.Strategy, opts Options) (*Result, error) {
	if res == nil {
		return nil, errors.New("generator: nil resolution")
	}
	if s == nil {
		return nil, errors.New("generator: nil strategy")
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	g := &run{opts: opts, strategy: s, res: res, result: &Result{Module: opts.Module}, files: map[string]*file{}}
	g.handlerTypes, g.testModels = g.typeMapper(), modelTypes(res.Models)

	groups := g.groups()
	steps := []func(context.Context) error{
		g.syncModels,
		func(ctx context.Context) error { return g.syncHandlers(ctx, groups) },
		func(ctx context.Context) error { return g.syncRoutes(ctx, groups) },
		func(ctx context.Context) error { return g.syncTests(ctx, groups) },
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := step(ctx); err != nil {
			return nil, err
		}
	}

	g.plan()
	changed := g.result.Changed()
	if opts.Check {
		if len(changed) > 0 {
			return g.result, fmt.Errorf("%w: %s", ErrOutOfDate, strings.Join(changed, ", "))
		}
		return g.result, nil
	}
	if opts.DryRun {
		return g.result, nil
	}
	g.write()
	return g.result, nil
}

type run struct {
	opts     Options
	strategy emitter.Strategy
	res      *spec.Resolution
	result   *Result

	handlerTypes emitter.TypeMapper
	testModels   map[string]spec.TypeDescriptor

	files map[string]*file
	// declared caches top-level names per package directory, keyed by the
	// file declaring them.
	declared map[string]map[string]string
}

// file is one output file: what is on disk and what the run wants there.
type file struct {
	rel     string
	exists  bool
	orig    []byte
	content []byte
	failed  bool
	// imports of a created file, rendered as one block when planning
	imports emitter.ImportSet
}

type group struct {
	name     string
	file     string
	routes   []spec.ParsedRoute
	handlers []emitter.Handler
}

func (g *run) warn(msg string, args ...any) {
	g.opts.Logger.Warn(msg, args...)
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	g.result.Warnings = append(g.result.Warnings, b.String())
}

func (g *run) fail(f *file, err error) {
	f.failed = true
	fl := Failure{File: f.rel, Kind: "Error", Message: err.Error()}
	var pe *patch.PatchError
	if errors.As(err, &pe) {
		fl.Kind, fl.Decl, fl.Field = string(pe.Kind), pe.Decl, pe.Field
	}
	g.opts.Logger.Error("file not generated", "file", f.rel, "kind", fl.Kind, "err", err)
	g.result.Failures = append(g.result.Failures, fl)
}

// typeMapper is the mapper handler and test files use to reference models.
func (g *run) typeMapper() emitter.TypeMapper {
	if g.opts.ModelsPackage == g.opts.HandlersPackage {
		return emitter.TypeMapper{}
	}
	return emitter.TypeMapper{
		Qualifier:    packageName(g.opts.ModelsPackage) + ".",
		ModelsImport: emitter.Import{Path: g.opts.importPath(g.opts.ModelsPackage)},
	}
}

func modelTypes(models []spec.ModelSchema) map[string]spec.TypeDescriptor {
	out := make(map[string]spec.TypeDescriptor, len(models))
	for _, m := range models {
		out[m.Name] = m.Type
	}
	return out
}

// groups buckets routes by their first tag. Groups whose names map to the
// same file are merged.
func (g *run) groups() []*group {
	byFile := map[string]*group{}
	var order []*group
	for _, r := range g.res.Routes {
		name := r.Group(g.opts.DefaultGroup)
		fname := groupFile(name)
		gr, ok := byFile[fname]
		if !ok {
			gr = &group{name: name, file: fname}
			byFile[fname] = gr
			order = append(order, gr)
		}
		gr.routes = append(gr.routes, r)
		gr.handlers = append(gr.handlers, emitter.NewHandler(g.strategy, r, g.handlerTypes))
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].file < order[j].file })
	return order
}

// buildSuffixes are file name suffixes the go tool treats as constraints.
var buildSuffixes = map[string]bool{
	"test": true, "aix": true, "android": true, "darwin": true, "dragonfly": true, "freebsd": true,
	"illumos": true, "ios": true, "js": true, "linux": true, "netbsd": true, "openbsd": true,
	"plan9": true, "solaris": true, "wasip1": true, "windows": true, "386": true, "amd64": true,
	"arm": true, "arm64": true, "loong64": true, "mips": true, "ppc64": true, "riscv64": true,
	"s390x": true, "wasm": true,
}

// groupFile is the base file name (without .go) for a route group.
func groupFile(name string) string {
	f := swag.ToFileName(name)
	f = strings.Trim(strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, strings.ToLower(f)), "_")
	if f == "" {
		return "default"
	}
	if i := strings.LastIndexByte(f, '_'); i >= 0 && buildSuffixes[f[i+1:]] {
		f += "_handlers"
	}
	return f
}

func titleOf(group string) string {
	return cases.Title(language.English).String(strings.NewReplacer("_", " ", "-", " ").Replace(group))
}

// open loads rel from disk, or starts it from a fresh prefix.
func (g *run) open(rel, fresh string) (*file, error) {
	if f, ok := g.files[rel]; ok {
		return f, nil
	}
	f := &file{rel: rel}
	data, err := os.ReadFile(filepath.Join(g.opts.OutDir, filepath.FromSlash(rel)))
	switch {
	case err == nil:
		f.exists, f.orig, f.content = true, data, data
	case errors.Is(err, os.ErrNotExist):
		f.content = []byte(fresh)
	default:
		return nil, fmt.Errorf("generator: read %s: %w", rel, err)
	}
	g.files[rel] = f
	g.opts.Logger.Debug("planning file", "file", rel, "exists", f.exists)
	return f, nil
}

// step is one patch plus the imports its new text relies on.
type step struct {
	m       patch.Mutation
	imports []emitter.Import
	// lenient steps are skipped with a warning when their target is missing.
	lenient bool
}

// apply runs steps against f in order, then adds the imports of every step
// that changed the text. A file that fails keeps its original content.
func (g *run) apply(f *file, steps []step) {
	if f.failed {
		return
	}
	src := f.content
	var needed emitter.ImportSet
	for _, st := range steps {
		if ad, ok := st.m.(patch.AppendDeclaration); ok {
			if other := g.declaredElsewhere(f.rel, ad.Name); other != "" {
				g.opts.Logger.Debug("declaration lives in another file", "file", f.rel, "decl", ad.Name, "in", other)
				continue
			}
		}
		out, err := patch.Apply(f.rel, src, st.m)
		if err != nil {
			if st.lenient && (errors.Is(err, patch.ErrDeclarationNotFound) || errors.Is(err, patch.ErrFieldNotFound)) {
				g.warn("patch skipped", "file", f.rel, "target", st.m.Target(), "err", err)
				continue
			}
			g.fail(f, err)
			return
		}
		if !bytes.Equal(out, src) {
			needed.Add(st.imports...)
		}
		src = out
	}
	if !f.exists {
		f.imports.Add(needed.List()...)
		f.content = src
		return
	}
	for _, imp := range needed.List() {
		out, err := patch.Apply(f.rel, src, patch.AddImport{Path: imp.Path, Name: imp.Name})
		if err != nil {
			g.fail(f, err)
			return
		}
		src = out
	}
	f.content = src
}

// withImportBlock inserts a grouped import block after the package clause
// of a file the run created.
func withImportBlock(src []byte, imps []emitter.Import) []byte {
	block := emitter.ImportBlock(imps)
	if block == "" {
		return src
	}
	t, err := syntax.Parse("new.go", src)
	if err != nil {
		return src
	}
	at := t.AfterPackageClause()
	out := make([]byte, 0, len(src)+len(block)+1)
	out = append(out, src[:at]...)
	out = append(out, '\n')
	out = append(out, block...)
	return append(out, src[at:]...)
}

// declaredElsewhere reports the sibling file of rel that already declares
// name, or "".
func (g *run) declaredElsewhere(rel, name string) string {
	dir := path.Dir(rel)
	if g.declared == nil {
		g.declared = map[string]map[string]string{}
	}
	names, ok := g.declared[dir]
	if !ok {
		names = g.scanDir(dir)
		g.declared[dir] = names
	}
	if other, ok := names[name]; ok && other != rel {
		return other
	}
	return ""
}

func (g *run) scanDir(dir string) map[string]string {
	names := map[string]string{}
	abs := filepath.Join(g.opts.OutDir, filepath.FromSlash(dir))
	entries, err := os.ReadDir(abs)
	if err != nil {
		return names
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".go") {
			continue
		}
		rel := path.Join(dir, e.Name())
		data, err := os.ReadFile(filepath.Join(abs, e.Name()))
		if err != nil {
			continue
		}
		t, err := syntax.Parse(rel, data)
		if err != nil {
			// reported when the file itself is patched
			continue
		}
		for _, d := range t.Declarations() {
			if _, dup := names[d.Name()]; !dup {
				names[d.Name()] = rel
			}
		}
	}
	return names
}

func (g *run) syncModels(ctx context.Context) error {
	if !g.opts.Models || (len(g.res.Models) == 0 && len(g.opts.TypeOverrides) == 0) {
		return nil
	}
	pkg := packageName(g.opts.ModelsPackage)
	rel := path.Join(g.opts.ModelsPackage, "models.go")
	title := g.res.Title
	if title == "" {
		title = "API"
	}
	fresh := fmt.Sprintf("// Package %s holds the types of the %s schemas. Missing types and\n// fields are added by oapisync; nothing here is rewritten.\npackage %s\n", pkg, title, pkg)
	f, err := g.open(rel, fresh)
	if err != nil {
		return err
	}

	var mapper emitter.TypeMapper
	var steps []step
	for _, m := range g.res.Models {
		if err := ctx.Err(); err != nil {
			return err
		}
		md := mapper.ModelDecl(m)
		steps = append(steps, step{m: patch.AppendDeclaration{Name: md.Name, Text: md.Text}, imports: md.Imports})
		for _, fld := range md.Fields {
			steps = append(steps, step{
				m:       patch.AddField{Decl: md.Name, Name: fld.Name, Type: fld.Type, Tag: fld.Tag},
				imports: fld.Imports,
				lenient: true,
			})
		}
		for _, dir := range g.opts.ModelDirectives {
			steps = append(steps, step{m: patch.AddAttribute{Decl: md.Name, Text: dir}, lenient: true})
		}
		g.result.Models++
	}
	g.apply(f, steps)

	// Overrides run after the sync so they see fields added above.
	var overrides []step
	for _, o := range g.opts.TypeOverrides {
		st := step{m: patch.RetypeField{Decl: emitter.TypeName(o.Model), Field: o.Field, Type: o.Type}, lenient: true}
		if o.Import != "" {
			st.imports = []emitter.Import{{Path: o.Import}}
		}
		overrides = append(overrides, st)
	}
	g.apply(f, overrides)
	return nil
}

func (g *run) syncHandlers(ctx context.Context, groups []*group) error {
	pkg := packageName(g.opts.HandlersPackage)
	for _, gr := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := path.Join(g.opts.HandlersPackage, gr.file+".go")
		fresh := fmt.Sprintf("// %s handlers. oapisync appends a stub for every operation without a\n// handler; existing code is left as written.\n\npackage %s\n", titleOf(gr.name), pkg)
		f, err := g.open(rel, fresh)
		if err != nil {
			return err
		}
		var steps []step
		for _, h := range gr.handlers {
			imps := g.strategy.Imports(emitter.RoleHandlers, []emitter.Handler{h})
			stub := g.strategy.HandlerStub(h)
			steps = append(steps, step{m: patch.AppendDeclaration{Name: stub.Name, Text: stub.Text}, imports: imps})
			if h.Credential != "" {
				cred := g.strategy.SecurityExtraction(h)
				steps = append(steps, step{m: patch.AppendDeclaration{Name: cred.Name, Text: cred.Text}, imports: imps})
			}
			g.result.Handlers++
		}
		g.apply(f, steps)
	}
	return nil
}

func (g *run) syncRoutes(ctx context.Context, groups []*group) error {
	if !g.opts.Registration {
		return nil
	}
	pkg := packageName(g.opts.RoutesPackage)
	rel := path.Join(g.opts.RoutesPackage, "routes.go")
	fresh := fmt.Sprintf("// Package %s mounts the generated handlers. Registrations are appended by\n// oapisync and never reordered or removed.\npackage %s\n", pkg, pkg)
	f, err := g.open(rel, fresh)
	if err != nil {
		return err
	}

	var handlersImport []emitter.Import
	qualifier := ""
	if g.opts.HandlersPackage != g.opts.RoutesPackage {
		handlersImport = []emitter.Import{{Path: g.opts.importPath(g.opts.HandlersPackage)}}
		qualifier = packageName(g.opts.HandlersPackage) + "."
	}

	fn := g.strategy.RegistrationFunc(g.opts.RegistrationFunc)
	steps := []step{{m: patch.AppendDeclaration{Name: fn.Name, Text: fn.Text}, imports: g.strategy.Imports(emitter.RoleRoutes, nil)}}
	for _, gr := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, r := range gr.routes {
			reg, ok := g.strategy.Registration(r, qualifier+gr.handlers[i].Name)
			if !ok {
				continue
			}
			steps = append(steps, step{
				m:       patch.InsertRegistration{Func: g.opts.RegistrationFunc, Statement: reg.Statement, DedupeKey: reg.DedupeKey},
				imports: handlersImport,
			})
			g.result.Registrations++
		}
	}
	g.apply(f, steps)
	return nil
}

func (g *run) syncTests(ctx context.Context, groups []*group) error {
	if !g.opts.Tests {
		return nil
	}
	pkg := packageName(g.opts.HandlersPackage)
	for _, gr := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := path.Join(g.opts.HandlersPackage, gr.file+"_test.go")
		f, err := g.open(rel, fmt.Sprintf("package %s\n", pkg))
		if err != nil {
			return err
		}
		var steps []step
		for i, h := range gr.handlers {
			d := emitter.TestFunc(g.strategy, h, emitter.NewSample(gr.routes[i], g.testModels))
			steps = append(steps, step{
				m:       patch.AppendDeclaration{Name: d.Name, Text: d.Text},
				imports: g.strategy.Imports(emitter.RoleTests, []emitter.Handler{h}),
			})
		}
		g.apply(f, steps)
	}
	return nil
}

// plan fills Result.Planned in path order.
func (g *run) plan() {
	rels := make([]string, 0, len(g.files))
	for rel := range g.files {
		rels = append(rels, rel)
	}
	sort.Strings(rels)
	for _, rel := range rels {
		f := g.files[rel]
		if !f.exists && !f.failed {
			f.content = withImportBlock(f.content, f.imports.List())
		}
		p := PlannedFile{RelPath: rel, Size: len(f.content), Mode: 0o644}
		switch {
		case f.failed:
			p.Action = ActionFailed
		case !f.exists:
			p.Action = ActionCreate
		case !bytes.Equal(f.orig, f.content):
			p.Action = ActionUpdate
		default:
			p.Action = ActionUnchanged
		}
		g.result.Planned = append(g.result.Planned, p)
	}
}

func (g *run) write() {
	for _, p := range g.result.Planned {
		if p.Action != ActionCreate && p.Action != ActionUpdate {
			continue
		}
		if err := writeFile(g.opts.OutDir, p.RelPath, g.files[p.RelPath].content, p.Mode); err != nil {
			g.opts.Logger.Error("write failed", "file", p.RelPath, "err", err)
			g.result.Failures = append(g.result.Failures, Failure{File: p.RelPath, Kind: WriteFailure, Message: err.Error()})
			continue
		}
		g.opts.Logger.Info("wrote file", "file", p.RelPath, "action", string(p.Action))
	}
}
