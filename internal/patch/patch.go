// Package patch applies structural mutations to Go source text.
//
// Each mutation parses the text, locates its target and splices new text
// at one offset; everything else is left byte-for-byte as it was. Applying
// a mutation whose result is already present returns the input unchanged,
// so repeated runs converge.
package patch

import (
	"fmt"
	"strings"

	"github.com/mark3labs/oapisync/internal/syntax"
)

// Mutation is one requested change. The set of implementations is closed.
type Mutation interface {
	apply(t *syntax.Tree) ([]byte, error)
	// Target names what the mutation touches, for logs.
	Target() string
}

// AddAttribute appends a directive comment line to a declaration's doc
// comment. A no-op when that text already appears in the doc comment.
type AddAttribute struct {
	Decl string
	Text string // "//oapisync:model"; the leading slashes are added when missing
}

// AddField appends a field to a struct. A no-op when a field with the same
// Go name or json tag name exists.
type AddField struct {
	Decl string
	Name string
	Type string
	Tag  string // without backquotes, e.g. json:"id,omitempty"
}

// RetypeField replaces the type of an existing struct field, leaving its
// name, tag, comments and position alone.
type RetypeField struct {
	Decl  string
	Field string // Go name or json tag name
	Type  string
}

// AddImport adds an import spec directly after the package clause. A no-op
// when the path is already imported under any name.
type AddImport struct {
	Path string
	Name string
}

// InsertRegistration appends a statement to a function body. A no-op when
// the body already contains DedupeKey followed by something other than an
// identifier character.
type InsertRegistration struct {
	Func      string
	Statement string
	DedupeKey string
}

// AppendDeclaration appends a whole declaration at the end of the file. A
// no-op when a declaration with that name exists.
type AppendDeclaration struct {
	Name string
	Text string
}

func (m AddAttribute) Target() string       { return m.Decl }
func (m AddField) Target() string           { return m.Decl + "." + m.Name }
func (m RetypeField) Target() string        { return m.Decl + "." + m.Field }
func (m AddImport) Target() string          { return m.Path }
func (m InsertRegistration) Target() string { return m.Func }
func (m AppendDeclaration) Target() string  { return m.Name }

// Apply parses src and applies one mutation. filename only labels errors.
func Apply(filename string, src []byte, m Mutation) ([]byte, error) {
	t, err := syntax.Parse(filename, src)
	if err != nil {
		return src, &PatchError{Kind: ParseFailure, File: filename, Cause: err}
	}
	out, err := m.apply(t)
	if err != nil {
		if pe, ok := err.(*PatchError); ok && pe.File == "" {
			pe.File = filename
		}
		return src, err
	}
	return out, nil
}

// ApplyAll applies mutations in order, re-parsing after each so offsets are
// always computed against the current text. It stops at the first error
// and returns the text as it was before the failing mutation.
func ApplyAll(filename string, src []byte, ms ...Mutation) ([]byte, error) {
	for _, m := range ms {
		next, err := Apply(filename, src, m)
		if err != nil {
			return src, err
		}
		src = next
	}
	return src, nil
}

func splice(src []byte, at int, text string) []byte {
	out := make([]byte, 0, len(src)+len(text))
	out = append(out, src[:at]...)
	out = append(out, text...)
	return append(out, src[at:]...)
}

func replace(src []byte, start, end int, text string) []byte {
	out := make([]byte, 0, len(src)-(end-start)+len(text))
	out = append(out, src[:start]...)
	out = append(out, text...)
	return append(out, src[end:]...)
}

func (m AddAttribute) apply(t *syntax.Tree) ([]byte, error) {
	src := t.Source()
	h, ok := t.Find(m.Decl)
	if !ok {
		return nil, &PatchError{Kind: DeclarationNotFound, Decl: m.Decl}
	}
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return src, nil
	}
	if !strings.HasPrefix(text, "//") {
		text = "//" + text
	}
	if start, end, ok := h.AttributeRegion(); ok {
		if strings.Contains(string(src[start:end]), text) {
			return src, nil
		}
		return splice(src, end, "\n"+h.Indent()+text), nil
	}
	return splice(src, t.LineStart(h.Start()), h.Indent()+text+"\n"), nil
}

func (m AddField) apply(t *syntax.Tree) ([]byte, error) {
	src := t.Source()
	h, ok := t.FindKind(m.Decl, syntax.Struct)
	if !ok {
		return nil, &PatchError{Kind: DeclarationNotFound, Decl: m.Decl}
	}
	if _, exists := h.Field(m.Name); exists {
		return src, nil
	}
	if jsonName := tagJSON(m.Tag); jsonName != "" {
		if _, exists := h.Field(jsonName); exists {
			return src, nil
		}
	}
	line := m.Name + " " + m.Type
	if m.Tag != "" {
		line += " `" + m.Tag + "`"
	}
	_, rbrace, _ := h.Body()
	return insertBeforeClose(t, src, rbrace, line), nil
}

// insertBeforeClose puts one line, indented one level deeper than the
// closing brace, on its own line just before that brace.
func insertBeforeClose(t *syntax.Tree, src []byte, rbrace int, text string) []byte {
	lineStart := t.LineStart(rbrace)
	prefix := string(src[lineStart:rbrace])
	if strings.TrimSpace(prefix) == "" {
		var b strings.Builder
		for _, l := range strings.Split(text, "\n") {
			if l == "" {
				b.WriteString("\n")
				continue
			}
			b.WriteString(prefix + "\t" + l + "\n")
		}
		return splice(src, lineStart, b.String())
	}
	// Brace shares its line with other text, as in "struct{}".
	indent := leadingSpace(prefix)
	var b strings.Builder
	b.WriteString("\n")
	for _, l := range strings.Split(text, "\n") {
		if l == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(indent + "\t" + l + "\n")
	}
	b.WriteString(indent)
	return splice(src, rbrace, b.String())
}

func leadingSpace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

func tagJSON(tag string) string {
	const key = `json:"`
	i := strings.Index(tag, key)
	if i < 0 {
		return ""
	}
	rest := tag[i+len(key):]
	end := strings.IndexAny(rest, `",`)
	if end < 0 {
		return ""
	}
	if name := rest[:end]; name != "-" {
		return name
	}
	return ""
}

func (m RetypeField) apply(t *syntax.Tree) ([]byte, error) {
	src := t.Source()
	h, ok := t.FindKind(m.Decl, syntax.Struct)
	if !ok {
		return nil, &PatchError{Kind: DeclarationNotFound, Decl: m.Decl, Field: m.Field}
	}
	f, ok := h.Field(m.Field)
	if !ok {
		return nil, &PatchError{Kind: FieldNotFound, Decl: m.Decl, Field: m.Field}
	}
	typ := strings.TrimSpace(m.Type)
	if typ == "" || f.Type == typ {
		return src, nil
	}
	if len(f.Names) > 1 {
		return splitField(t, src, f, typ), nil
	}
	return replace(src, f.TypeStart, f.TypeEnd, typ), nil
}

// splitField moves f out of a shared name list such as "A, B int" onto a
// line of its own right after the list, so the other names keep their type.
func splitField(t *syntax.Tree, src []byte, f syntax.FieldInfo, typ string) []byte {
	rest := make([]string, 0, len(f.Names)-1)
	for _, n := range f.Names {
		if n != f.Name {
			rest = append(rest, n)
		}
	}
	decl := f.Name + " " + typ
	if f.Tag != "" {
		decl += " " + f.Tag
	}

	// Insert first: it lies after the name list, so the list offsets hold.
	eol := len(src)
	if i := strings.IndexByte(string(src[f.End:]), '\n'); i >= 0 {
		eol = f.End + i
	}
	if tail := strings.TrimSpace(string(src[f.End:eol])); tail == "" || strings.HasPrefix(tail, "//") {
		lineStart := t.LineStart(f.NamesStart)
		indent := leadingSpace(string(src[lineStart:f.NamesStart]))
		src = splice(src, eol, "\n"+indent+decl)
	} else {
		// Single-line struct, e.g. "struct{ A, B int }".
		src = splice(src, f.End, "; "+decl)
	}
	return replace(src, f.NamesStart, f.NamesEnd, strings.Join(rest, ", "))
}

func (m AddImport) apply(t *syntax.Tree) ([]byte, error) {
	src := t.Source()
	if m.Path == "" || t.HasImport(m.Path) {
		return src, nil
	}
	spec := fmt.Sprintf("import %q\n", m.Path)
	if m.Name != "" {
		spec = fmt.Sprintf("import %s %q\n", m.Name, m.Path)
	}
	at := t.AfterPackageClause()
	if at == len(src) && (len(src) == 0 || src[len(src)-1] != '\n') {
		spec = "\n" + spec
	}
	return splice(src, at, spec), nil
}

func (m InsertRegistration) apply(t *syntax.Tree) ([]byte, error) {
	src := t.Source()
	h, ok := t.FindKind(m.Func, syntax.Func)
	if !ok {
		return nil, &PatchError{Kind: DeclarationNotFound, Decl: m.Func}
	}
	stmt := strings.TrimSpace(m.Statement)
	if stmt == "" {
		return src, nil
	}
	key := m.DedupeKey
	if key == "" {
		key = stmt
	}
	if containsKey(h.BodyText(), key) {
		return src, nil
	}
	_, rbrace, _ := h.Body()
	return insertBeforeClose(t, src, rbrace, stmt), nil
}

// containsKey reports whether body holds key ending at a token boundary, so
// a key ending in GetUsers does not match a call to GetUsersV2.
func containsKey(body, key string) bool {
	for from := 0; ; {
		i := strings.Index(body[from:], key)
		if i < 0 {
			return false
		}
		end := from + i + len(key)
		if end == len(body) || !isIdentByte(key[len(key)-1]) || !isIdentByte(body[end]) {
			return true
		}
		from += i + 1
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func (m AppendDeclaration) apply(t *syntax.Tree) ([]byte, error) {
	src := t.Source()
	if _, exists := t.Find(m.Name); exists {
		return src, nil
	}
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return src, nil
	}
	out := make([]byte, 0, len(src)+len(text)+3)
	out = append(out, src...)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	out = append(out, '\n')
	out = append(out, text...)
	return append(out, '\n'), nil
}
