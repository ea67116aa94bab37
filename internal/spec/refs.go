package spec

import (
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/go-openapi/jsonpointer"
	"gopkg.in/yaml.v3"
)

// RefKind classifies a $ref string by its document part.
type RefKind int

const (
	// RefLocal is a fragment-only reference ("#/components/schemas/Pet").
	RefLocal RefKind = iota
	// RefRelative names another document by relative path or absolute path without scheme.
	RefRelative
	// RefRemote names another document by URL.
	RefRemote
)

func (k RefKind) String() string {
	switch k {
	case RefLocal:
		return "local"
	case RefRelative:
		return "relative"
	default:
		return "remote"
	}
}

// Ref is a parsed reference string.
type Ref struct {
	Raw      string
	Kind     RefKind
	Document string // part before '#', empty for local references
	Pointer  string // part after '#'
}

// ParseRef splits a reference at its fragment and classifies it.
func ParseRef(raw string) Ref {
	raw = strings.TrimSpace(raw)
	doc, frag, _ := strings.Cut(raw, "#")
	r := Ref{Raw: raw, Document: doc, Pointer: frag}
	switch {
	case doc == "":
		r.Kind = RefLocal
	case hasScheme(doc) || strings.HasPrefix(doc, "//"):
		r.Kind = RefRemote
	default:
		r.Kind = RefRelative
	}
	return r
}

func hasScheme(s string) bool {
	u, err := url.Parse(s)
	return err == nil && len(u.Scheme) > 1
}

// IsLocal reports whether r points into this document, either by fragment
// alone or because its document part names this document's $self.
func (d *Document) IsLocal(r Ref) bool {
	if r.Kind == RefLocal {
		return true
	}
	return sameDocument(r.Document, d.SelfID)
}

// sameDocument compares a reference's document part against a self
// identifier. Checks run from strictest to loosest.
func sameDocument(docPart, self string) bool {
	if docPart == "" || self == "" {
		return false
	}
	if docPart == self {
		return true
	}
	a, errA := url.Parse(docPart)
	b, errB := url.Parse(self)
	if errA != nil || errB != nil {
		return false
	}
	if a.Scheme != "" && b.Scheme != "" {
		return strings.EqualFold(a.Scheme, b.Scheme) &&
			strings.EqualFold(a.Hostname(), b.Hostname()) &&
			effectivePort(a) == effectivePort(b) &&
			cleanPath(a.Path) == cleanPath(b.Path)
	}
	if strings.HasPrefix(self, "/") && a.Path != "" {
		return cleanPath(a.Path) == cleanPath(b.Path)
	}
	if a.Scheme == "" && b.Scheme == "" {
		return cleanPath(docPart) == cleanPath(self)
	}
	return false
}

func effectivePort(u *url.URL) string {
	if p := u.Port(); p != "" {
		return p
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		return "80"
	case "https":
		return "443"
	}
	return ""
}

func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

// DecodePointer splits a JSON pointer into tokens, undoing "~1" and "~0"
// escapes first and percent-encoding second.
func DecodePointer(ptr string) ([]string, bool) {
	if ptr == "" {
		return nil, true
	}
	p, err := jsonpointer.New(ptr)
	if err != nil {
		return nil, false
	}
	tokens := p.DecodedTokens()
	for i, t := range tokens {
		if u, err := url.PathUnescape(t); err == nil {
			tokens[i] = u
		}
	}
	return tokens, true
}

// ComponentName extracts section and name from a reference of the exact
// shape "#/components/<section>/<name>". Anything else yields ok=false.
func ComponentName(raw string) (section, name string, ok bool) {
	return componentName(ParseRef(raw))
}

func componentName(r Ref) (section, name string, ok bool) {
	tokens, valid := DecodePointer(r.Pointer)
	if !valid || len(tokens) != 3 || tokens[0] != "components" || tokens[1] == "" || tokens[2] == "" {
		return "", "", false
	}
	return tokens[1], tokens[2], true
}

// ComponentRef is ComponentName restricted to references into this document.
func (d *Document) ComponentRef(raw string) (section, name string, ok bool) {
	r := ParseRef(raw)
	if !d.IsLocal(r) {
		return "", "", false
	}
	return componentName(r)
}

// ResolveRef returns the node a reference points at. Non-local references
// and dangling pointers resolve to (nil, false); callers decide whether a
// missing target is fatal.
func (d *Document) ResolveRef(raw string) (*yaml.Node, bool) {
	r := ParseRef(raw)
	if !d.IsLocal(r) {
		return nil, false
	}
	tokens, ok := DecodePointer(r.Pointer)
	if !ok {
		return nil, false
	}
	n := d.Root
	for _, t := range tokens {
		switch {
		case isMapping(n):
			n = lookup(n, t)
		case isSequence(n):
			i, err := strconv.Atoi(t)
			elems := items(n)
			if err != nil || i < 0 || i >= len(elems) {
				return nil, false
			}
			n = deref(elems[i])
		default:
			return nil, false
		}
		if n == nil {
			return nil, false
		}
	}
	return n, n != nil
}

// maxRefHops bounds chains of $ref-to-$ref outside schemas (parameters,
// responses, headers). Schemas are resolved one level at a time instead.
const maxRefHops = 8

// follow dereferences n while it is a {$ref: ...} object. The second result
// is the last reference that could not be resolved, if any.
func (d *Document) follow(n *yaml.Node) (*yaml.Node, string) {
	n = deref(n)
	for hop := 0; hop < maxRefHops; hop++ {
		ref := stringAt(n, "$ref")
		if ref == "" {
			return n, ""
		}
		target, ok := d.ResolveRef(ref)
		if !ok {
			return nil, ref
		}
		n = target
	}
	return nil, stringAt(n, "$ref")
}
