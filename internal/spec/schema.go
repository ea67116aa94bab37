package spec

import (
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultRefDepth is how many non-component reference hops a schema may
// take. References to component schemas never consume budget: they stop
// at a KindRef descriptor naming the component.
const DefaultRefDepth = 1

// Resolver maps canonical schema nodes to TypeDescriptors and collects
// the non-fatal problems met along the way.
type Resolver struct {
	doc      *Document
	logger   *slog.Logger
	warnings []string
	seen     map[string]struct{}
}

// NewResolver normalizes doc if needed. A nil logger discards output.
func NewResolver(doc *Document, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = discardLogger()
	}
	return &Resolver{doc: Normalize(doc), logger: logger, seen: map[string]struct{}{}}
}

// Document returns the canonical document the resolver reads from.
func (r *Resolver) Document() *Document { return r.doc }

// Warnings lists every distinct warning in the order first reported.
func (r *Resolver) Warnings() []string { return append([]string(nil), r.warnings...) }

func (r *Resolver) warnUnresolved(ref, where string) {
	msg := fmt.Sprintf("%s: unresolved reference %q at %s", UnresolvedReference, ref, where)
	if _, dup := r.seen[msg]; dup {
		return
	}
	r.seen[msg] = struct{}{}
	r.warnings = append(r.warnings, msg)
	r.logger.Warn("unresolved reference", "ref", ref, "route", where)
}

func (r *Resolver) warn(msg string, args ...any) {
	if _, dup := r.seen[msg]; dup {
		return
	}
	r.seen[msg] = struct{}{}
	r.warnings = append(r.warnings, msg)
	r.logger.Warn(msg, args...)
}

// Schema resolves one schema node. depth is the remaining budget for
// following non-component references.
func (r *Resolver) Schema(n *yaml.Node, depth int) TypeDescriptor {
	n = deref(n)
	if !isMapping(n) {
		return dynamicType()
	}
	if ref := stringAt(n, "$ref"); ref != "" {
		return r.reference(ref, depth)
	}
	t := r.shape(n, depth)
	if t.Description == "" {
		t.Description = strings.TrimSpace(stringAt(n, "description"))
	}
	return t
}

func (r *Resolver) reference(ref string, depth int) TypeDescriptor {
	if section, name, ok := r.doc.ComponentRef(ref); ok && section == "schemas" {
		if _, found := r.doc.ResolveRef(ref); found {
			return TypeDescriptor{Kind: KindRef, Ref: name}
		}
		r.warnUnresolved(ref, "schema")
		return TypeDescriptor{Kind: KindDynamic, Unresolved: ref}
	}
	target, ok := r.doc.ResolveRef(ref)
	if !ok || depth <= 0 {
		r.warnUnresolved(ref, "schema")
		return TypeDescriptor{Kind: KindDynamic, Unresolved: ref}
	}
	return r.Schema(target, depth-1)
}

// schemaTypes splits the declared type into its non-null members and
// whether null is allowed.
func schemaTypes(n *yaml.Node) (types []string, nullable bool) {
	for _, t := range stringList(lookup(n, "type")) {
		if t == "null" {
			nullable = true
			continue
		}
		types = append(types, t)
	}
	return types, nullable
}

func (r *Resolver) shape(n *yaml.Node, depth int) TypeDescriptor {
	for _, key := range []string{"oneOf", "anyOf"} {
		if members := items(lookup(n, key)); len(members) > 0 {
			return r.union(n, members, depth)
		}
	}
	if members := items(lookup(n, "allOf")); len(members) > 0 {
		return r.allOf(n, members, depth)
	}

	types, nullable := schemaTypes(n)
	var t TypeDescriptor
	switch len(types) {
	case 0:
		if nullable {
			return scalarType(ScalarNull, "")
		}
		t = r.untyped(n, depth)
	case 1:
		t = r.typed(n, types[0], depth)
	default:
		t = TypeDescriptor{Kind: KindUnion}
		for _, typ := range types {
			inner := r.typed(n, typ, depth)
			t.Variants = append(t.Variants, ParsedVariant{Name: typ, Type: &inner})
		}
	}
	if nullable {
		return optionalOf(t)
	}
	return t
}

func (r *Resolver) untyped(n *yaml.Node, depth int) TypeDescriptor {
	switch {
	case lookup(n, "properties") != nil:
		return r.typed(n, "object", depth)
	case lookup(n, "items") != nil:
		return r.typed(n, "array", depth)
	case isMapping(lookup(n, "additionalProperties")):
		return r.typed(n, "object", depth)
	case lookup(n, "enum") != nil:
		// Enum without a type: infer from the first literal.
		if first := items(lookup(n, "enum")); len(first) > 0 {
			if typ := literalType(first[0]); typ != "" && typ != "null" {
				return r.typed(n, typ, depth)
			}
		}
	}
	return dynamicType()
}

func (r *Resolver) typed(n *yaml.Node, typ string, depth int) TypeDescriptor {
	format := stringAt(n, "format")
	switch typ {
	case "string":
		t := scalarType(ScalarString, format)
		t.Enum = enumStrings(n)
		return t
	case "integer":
		return scalarType(ScalarInteger, format)
	case "number":
		return scalarType(ScalarNumber, format)
	case "boolean":
		return scalarType(ScalarBoolean, format)
	case "null":
		return scalarType(ScalarNull, "")
	case "array":
		elem := dynamicType()
		if it := lookup(n, "items"); isMapping(it) {
			elem = r.Schema(it, depth)
		}
		return TypeDescriptor{Kind: KindArray, Elem: &elem}
	case "object":
		return r.object(n, depth)
	}
	return dynamicType()
}

func enumStrings(n *yaml.Node) []string {
	var out []string
	for _, v := range items(lookup(n, "enum")) {
		if s, ok := scalarValue(v); ok && deref(v).ShortTag() != "!!null" {
			out = append(out, s)
		}
	}
	return out
}

func (r *Resolver) object(n *yaml.Node, depth int) TypeDescriptor {
	props := lookup(n, "properties")
	if props == nil || len(props.Content) == 0 {
		if ap := lookup(n, "additionalProperties"); isMapping(ap) {
			elem := r.Schema(ap, depth)
			return TypeDescriptor{Kind: KindMap, Elem: &elem}
		}
		return TypeDescriptor{Kind: KindObject}
	}
	return TypeDescriptor{Kind: KindObject, Fields: r.fields(n, depth)}
}

func (r *Resolver) fields(n *yaml.Node, depth int) []Field {
	required := map[string]bool{}
	for _, name := range stringList(lookup(n, "required")) {
		required[name] = true
	}
	var out []Field
	eachPair(lookup(n, "properties"), func(name string, s *yaml.Node) {
		out = append(out, Field{Name: name, Required: required[name], Type: r.Schema(s, depth)})
	})
	return out
}

// isNullSchema matches {type: null} produced by nullable folding.
func isNullSchema(n *yaml.Node) bool {
	n = deref(n)
	if stringAt(n, "$ref") != "" {
		return false
	}
	types, nullable := schemaTypes(n)
	return nullable && len(types) == 0 && lookup(n, "properties") == nil
}

func (r *Resolver) union(n *yaml.Node, members []*yaml.Node, depth int) TypeDescriptor {
	var rest []*yaml.Node
	nullable := false
	for _, m := range members {
		if isNullSchema(m) {
			nullable = true
			continue
		}
		rest = append(rest, m)
	}

	var t TypeDescriptor
	switch len(rest) {
	case 0:
		t = scalarType(ScalarNull, "")
	case 1:
		t = r.Schema(rest[0], depth)
	default:
		t = TypeDescriptor{Kind: KindUnion, Variants: r.variants(rest, depth)}
		if disc := lookup(n, "discriminator"); disc != nil {
			t.Discriminator = stringAt(disc, "propertyName")
			r.applyMapping(&t, disc)
		}
	}
	if nullable {
		return optionalOf(t)
	}
	return t
}

func (r *Resolver) variants(members []*yaml.Node, depth int) []ParsedVariant {
	out := make([]ParsedVariant, 0, len(members))
	for i, m := range members {
		if ref := stringAt(m, "$ref"); ref != "" {
			typ := r.reference(ref, depth)
			name := typ.Ref
			if name == "" {
				name = refTail(ref)
			}
			if name == "" {
				name = fmt.Sprintf("Variant%d", i+1)
			}
			out = append(out, ParsedVariant{Name: name, Type: &typ})
			continue
		}
		typ := r.Schema(m, depth)
		out = append(out, ParsedVariant{Name: fmt.Sprintf("Variant%d", i+1), Type: &typ})
	}
	return out
}

// applyMapping walks the discriminator mapping in document order. The first
// value routed to a variant is its primary alias, later ones are secondary.
// Referenced variants with no mapping entry use their component name.
func (r *Resolver) applyMapping(t *TypeDescriptor, disc *yaml.Node) {
	index := make(map[string]int, len(t.Variants))
	for i, v := range t.Variants {
		index[v.Name] = i
	}
	eachPair(lookup(disc, "mapping"), func(value string, target *yaml.Node) {
		ref, _ := scalarValue(target)
		name := ref
		if _, n, ok := r.doc.ComponentRef(ref); ok {
			name = n
		} else if strings.Contains(ref, "/") {
			name = refTail(ref)
		}
		i, ok := index[name]
		if !ok {
			r.warn(fmt.Sprintf("discriminator value %q maps to %q which is not a variant", value, ref), "ref", ref)
			return
		}
		v := &t.Variants[i]
		if v.PrimaryAlias == "" {
			v.PrimaryAlias = value
			return
		}
		v.SecondaryAliases = append(v.SecondaryAliases, value)
	})
	for i := range t.Variants {
		v := &t.Variants[i]
		if v.PrimaryAlias == "" && v.Type != nil && v.Type.Kind == KindRef {
			v.PrimaryAlias = v.Name
		}
	}
}

func refTail(ref string) string {
	tokens, ok := DecodePointer(ParseRef(ref).Pointer)
	if !ok || len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}

func (r *Resolver) allOf(n *yaml.Node, members []*yaml.Node, depth int) TypeDescriptor {
	// A lone wrapped reference, usually there to attach a description.
	if len(members) == 1 && lookup(n, "properties") == nil {
		t := r.Schema(members[0], depth)
		if t.Description == "" {
			t.Description = strings.TrimSpace(stringAt(n, "description"))
		}
		return t
	}

	out := TypeDescriptor{Kind: KindObject}
	seen := map[string]int{}
	add := func(fs []Field) {
		for _, f := range fs {
			if i, dup := seen[f.Name]; dup {
				out.Fields[i] = f
				continue
			}
			seen[f.Name] = len(out.Fields)
			out.Fields = append(out.Fields, f)
		}
	}
	for _, m := range members {
		t := r.Schema(m, depth)
		switch t.Kind {
		case KindRef:
			out.Embeds = append(out.Embeds, t.Ref)
		case KindObject:
			out.Embeds = append(out.Embeds, t.Embeds...)
			add(t.Fields)
		}
	}
	if lookup(n, "properties") != nil {
		add(r.fields(n, depth))
	}
	return out
}

// Models resolves every component schema in declaration order.
func (r *Resolver) Models() []ModelSchema {
	var out []ModelSchema
	eachPair(lookupPath(r.doc.Root, "components", "schemas"), func(name string, s *yaml.Node) {
		out = append(out, ModelSchema{Name: name, Type: r.Schema(s, DefaultRefDepth)})
	})
	return out
}
