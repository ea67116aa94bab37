// Package syntax exposes declaration-level queries over Go source files:
// find a struct, enum-like type or function by name, list its directive
// attributes and struct fields, locate a function body and the import list.
//
// Every query answers with byte offsets into the original text so callers
// can splice edits without regenerating the file.
package syntax

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/astutil"
)

// Kind classifies a declaration.
type Kind int

const (
	// Struct is a named struct type.
	Struct Kind = iota + 1
	// Enum is any other named type, typically a string or int with a const block.
	Enum
	// Func is a top-level function (methods are not indexed).
	Func
)

func (k Kind) String() string {
	switch k {
	case Struct:
		return "struct"
	case Enum:
		return "enum"
	case Func:
		return "func"
	}
	return "unknown"
}

// Tree is a parsed source file. Declarations live in a slice and handles
// refer to them by index, so a handle is only meaningful for the tree that
// produced it.
type Tree struct {
	Filename string
	src      []byte
	fset     *token.FileSet
	file     *ast.File
	decls    []decl
}

type decl struct {
	name    string
	kind    Kind
	grouped bool // type spec inside a parenthesized type (...) block
	gen     *ast.GenDecl
	spec    *ast.TypeSpec
	fn      *ast.FuncDecl
}

// Parse parses Go source text. Syntax errors are returned as is; the caller
// decides whether they are fatal.
func Parse(filename string, src []byte) (*Tree, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	t := &Tree{Filename: filename, src: src, fset: fset, file: file}
	for _, d := range file.Decls {
		switch d := d.(type) {
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, s := range d.Specs {
				ts, ok := s.(*ast.TypeSpec)
				if !ok {
					continue
				}
				kind := Enum
				if _, isStruct := ts.Type.(*ast.StructType); isStruct {
					kind = Struct
				}
				t.decls = append(t.decls, decl{name: ts.Name.Name, kind: kind, grouped: d.Lparen.IsValid(), gen: d, spec: ts})
			}
		case *ast.FuncDecl:
			if d.Recv != nil {
				continue
			}
			t.decls = append(t.decls, decl{name: d.Name.Name, kind: Func, fn: d})
		}
	}
	return t, nil
}

// Source returns the text the tree was parsed from.
func (t *Tree) Source() []byte { return t.src }

// Package returns the package name.
func (t *Tree) Package() string { return t.file.Name.Name }

func (t *Tree) offset(p token.Pos) int { return t.fset.Position(p).Offset }

// DeclHandle identifies one declaration of a Tree.
type DeclHandle struct {
	tree  *Tree
	index int
}

// Valid reports whether the handle refers to a declaration.
func (h DeclHandle) Valid() bool { return h.tree != nil && h.index >= 0 && h.index < len(h.tree.decls) }

func (h DeclHandle) d() *decl { return &h.tree.decls[h.index] }

func (h DeclHandle) Name() string { return h.d().name }
func (h DeclHandle) Kind() Kind   { return h.d().kind }

// Find returns the first declaration with the given name.
func (t *Tree) Find(name string) (DeclHandle, bool) {
	for i := range t.decls {
		if t.decls[i].name == name {
			return DeclHandle{tree: t, index: i}, true
		}
	}
	return DeclHandle{}, false
}

// FindKind is Find restricted to one kind.
func (t *Tree) FindKind(name string, kind Kind) (DeclHandle, bool) {
	for i := range t.decls {
		if t.decls[i].name == name && t.decls[i].kind == kind {
			return DeclHandle{tree: t, index: i}, true
		}
	}
	return DeclHandle{}, false
}

// Declarations lists every indexed declaration in source order.
func (t *Tree) Declarations() []DeclHandle {
	out := make([]DeclHandle, len(t.decls))
	for i := range t.decls {
		out[i] = DeclHandle{tree: t, index: i}
	}
	return out
}

func (h DeclHandle) doc() *ast.CommentGroup {
	d := h.d()
	switch {
	case d.fn != nil:
		return d.fn.Doc
	case d.grouped:
		return d.spec.Doc
	default:
		// An ungrouped `type X ...` keeps its comment on the GenDecl.
		if d.gen.Doc != nil {
			return d.gen.Doc
		}
		return d.spec.Doc
	}
}

// Start is the offset of the declaration's first token, after its doc comment.
func (h DeclHandle) Start() int {
	d := h.d()
	switch {
	case d.fn != nil:
		return h.tree.offset(d.fn.Pos())
	case d.grouped:
		return h.tree.offset(d.spec.Pos())
	default:
		return h.tree.offset(d.gen.Pos())
	}
}

// Indent is the whitespace preceding the declaration on its line.
func (h DeclHandle) Indent() string {
	start := h.Start()
	line := lineStart(h.tree.src, start)
	return string(h.tree.src[line:start])
}

// AttributeRegion is the byte range of the declaration's doc comment.
// ok is false when the declaration has none.
func (h DeclHandle) AttributeRegion() (start, end int, ok bool) {
	doc := h.doc()
	if doc == nil || len(doc.List) == 0 {
		return 0, 0, false
	}
	return h.tree.offset(doc.Pos()), h.tree.offset(doc.End()), true
}

// Attribute is one directive line from a declaration's doc comment, for
// example "//oapisync:model" or "// +kubebuilder:object:root=true".
type Attribute struct {
	Name string // directive name without the leading slashes or plus
	Text string // the whole comment line
}

var directiveRe = regexp.MustCompile(`^//(?:([a-z0-9][a-z0-9_.-]*:[^\s]*)|\s?\+([^\s]+))`)

// Attributes lists the directive comment lines of the declaration in order.
func (h DeclHandle) Attributes() []Attribute {
	doc := h.doc()
	if doc == nil {
		return nil
	}
	var out []Attribute
	for _, c := range doc.List {
		m := directiveRe.FindStringSubmatch(c.Text)
		if m == nil {
			continue
		}
		name := m[1]
		if name == "" {
			name = m[2]
		}
		out = append(out, Attribute{Name: name, Text: c.Text})
	}
	return out
}

// FieldInfo locates one struct field.
type FieldInfo struct {
	Name      string // Go identifier; the type name for embedded fields
	JSONName  string // name from the json struct tag, if any
	Type      string
	TypeStart int
	TypeEnd   int
	Embedded  bool

	// Names lists every identifier declared together with this one, as in
	// "A, B int". NamesStart and NamesEnd bound that list.
	Names      []string
	NamesStart int
	NamesEnd   int
	Tag        string // raw tag literal including backquotes
	End        int    // end of the field, tag included
}

// Fields lists a struct's fields in order. A field list like "A, B int"
// yields one entry per name sharing the same type range.
func (h DeclHandle) Fields() []FieldInfo {
	st := h.structType()
	if st == nil || st.Fields == nil {
		return nil
	}
	var out []FieldInfo
	for _, f := range st.Fields.List {
		start, end := h.tree.offset(f.Type.Pos()), h.tree.offset(f.Type.End())
		typ := string(h.tree.src[start:end])
		info := FieldInfo{
			JSONName: tagJSONName(f.Tag), Type: typ, TypeStart: start, TypeEnd: end,
			End: h.tree.offset(f.End()),
		}
		if f.Tag != nil {
			info.Tag = f.Tag.Value
		}
		if len(f.Names) == 0 {
			info.Name, info.Embedded = embeddedName(typ), true
			out = append(out, info)
			continue
		}
		info.NamesStart = h.tree.offset(f.Names[0].Pos())
		info.NamesEnd = h.tree.offset(f.Names[len(f.Names)-1].End())
		for _, n := range f.Names {
			info.Names = append(info.Names, n.Name)
		}
		for _, n := range f.Names {
			fi := info
			fi.Name = n.Name
			out = append(out, fi)
		}
	}
	return out
}

// Field finds a struct field by Go identifier or by json tag name.
func (h DeclHandle) Field(name string) (FieldInfo, bool) {
	fields := h.Fields()
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	for _, f := range fields {
		if f.JSONName != "" && f.JSONName == name {
			return f, true
		}
	}
	return FieldInfo{}, false
}

func tagJSONName(tag *ast.BasicLit) string {
	if tag == nil {
		return ""
	}
	raw, err := strconv.Unquote(tag.Value)
	if err != nil {
		return ""
	}
	name, _, _ := strings.Cut(reflect.StructTag(raw).Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func embeddedName(typ string) string {
	typ = strings.TrimPrefix(typ, "*")
	if i := strings.LastIndex(typ, "."); i >= 0 {
		typ = typ[i+1:]
	}
	if i := strings.Index(typ, "["); i >= 0 {
		typ = typ[:i]
	}
	return typ
}

func (h DeclHandle) structType() *ast.StructType {
	d := h.d()
	if d.spec == nil {
		return nil
	}
	st, _ := d.spec.Type.(*ast.StructType)
	return st
}

// Body returns the offsets of the opening and closing braces of a struct's
// field list or a function's body.
func (h DeclHandle) Body() (lbrace, rbrace int, ok bool) {
	if st := h.structType(); st != nil && st.Fields != nil {
		return h.tree.offset(st.Fields.Opening), h.tree.offset(st.Fields.Closing), true
	}
	if fn := h.d().fn; fn != nil && fn.Body != nil {
		return h.tree.offset(fn.Body.Lbrace), h.tree.offset(fn.Body.Rbrace), true
	}
	return 0, 0, false
}

// BodyText is the source between the braces returned by Body.
func (h DeclHandle) BodyText() string {
	l, r, ok := h.Body()
	if !ok {
		return ""
	}
	return string(h.tree.src[l+1 : r])
}

// End is the offset just past the declaration.
func (h DeclHandle) End() int {
	d := h.d()
	switch {
	case d.fn != nil:
		return h.tree.offset(d.fn.End())
	case d.grouped:
		return h.tree.offset(d.spec.End())
	default:
		return h.tree.offset(d.gen.End())
	}
}

// Import is one import spec.
type Import struct {
	Name string
	Path string
}

// Imports lists every import of the file, across all import groups.
func (t *Tree) Imports() []Import {
	var out []Import
	for _, group := range astutil.Imports(t.fset, t.file) {
		for _, spec := range group {
			path, err := strconv.Unquote(spec.Path.Value)
			if err != nil {
				continue
			}
			imp := Import{Path: path}
			if spec.Name != nil {
				imp.Name = spec.Name.Name
			}
			out = append(out, imp)
		}
	}
	return out
}

// HasImport reports whether path is imported, under any name.
func (t *Tree) HasImport(path string) bool {
	for _, imp := range t.Imports() {
		if imp.Path == path {
			return true
		}
	}
	return false
}

// AfterPackageClause is the offset of the line following the package
// clause, or len(src) when the clause ends the file.
func (t *Tree) AfterPackageClause() int {
	end := t.offset(t.file.Name.End())
	if i := bytes.IndexByte(t.src[end:], '\n'); i >= 0 {
		return end + i + 1
	}
	return len(t.src)
}

func lineStart(src []byte, off int) int {
	if i := bytes.LastIndexByte(src[:off], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

// LineStart is the offset of the first byte of the line containing off.
func (t *Tree) LineStart(off int) int { return lineStart(t.src, off) }
