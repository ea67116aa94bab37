package spec

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// UnsatisfiableProperty is the required property name that makes a rewritten
// `false` schema reject every instance. It is never declared in properties
// and additionalProperties is false, so no object can carry it.
const UnsatisfiableProperty = "__unsatisfiable__"

// Normalize returns a canonical copy of doc. The input is not modified.
//
// Three rewrites run in a fixed order, each over the whole document, since
// each may create schema nodes the next has to see:
//
//  1. boolean schemas: true becomes {}, false becomes an object schema no
//     instance satisfies;
//  2. nullable and x-nullable are removed and folded into the type;
//  3. const becomes a one-element enum, inferring type when absent.
//
// The result is a fixed point: normalizing it again changes nothing.
func Normalize(doc *Document) *Document {
	if doc == nil || doc.canonical {
		return doc
	}
	out := *doc
	out.Root = cloneNode(doc.Root)
	canonicalize(out.Root)
	out.canonical = true
	return &out
}

func canonicalize(root *yaml.Node) {
	walkDocument(root, eliminateBooleanSchema)
	walkDocument(root, foldNullable)
	walkDocument(root, foldConst)
}

// NormalizeSchema canonicalizes a single detached schema in place.
func NormalizeSchema(schema *yaml.Node) {
	walkSchema(schema, eliminateBooleanSchema)
	walkSchema(schema, foldNullable)
	walkSchema(schema, foldConst)
}

type schemaRewrite func(n *yaml.Node)

// walkDocument applies fn to every schema reachable from an OpenAPI
// document: component schemas, Swagger definitions, and every `schema`
// value (parameters, media types, headers) at any depth. Examples are
// data, not schemas, and are skipped.
func walkDocument(root *yaml.Node, fn schemaRewrite) {
	var walk func(n *yaml.Node, parentKey string)
	walk = func(n *yaml.Node, parentKey string) {
		n = deref(n)
		if n == nil {
			return
		}
		switch n.Kind {
		case yaml.MappingNode:
			for i := 0; i+1 < len(n.Content); i += 2 {
				key, value := n.Content[i].Value, n.Content[i+1]
				switch {
				case key == "schema":
					walkSchema(value, fn)
				case key == "schemas" && parentKey == "components",
					key == "definitions" && n == deref(root):
					eachPair(value, func(_ string, s *yaml.Node) { walkSchema(s, fn) })
				case key == "example" || key == "examples":
				default:
					walk(value, key)
				}
			}
		case yaml.SequenceNode:
			for _, c := range n.Content {
				walk(c, parentKey)
			}
		}
	}
	walk(root, "")
}

// walkSchema applies fn to n and then to every subschema. fn runs first so
// that replacements (a boolean turned into a mapping, a schema wrapped in
// anyOf) are themselves traversed.
func walkSchema(n *yaml.Node, fn schemaRewrite) {
	if n == nil {
		return
	}
	fn(n)
	n = deref(n)
	if !isMapping(n) {
		return
	}
	eachPair(n, func(key string, v *yaml.Node) {
		if strings.HasPrefix(key, "$dynamic") {
			return
		}
		switch key {
		case "properties", "patternProperties", "dependentSchemas", "$defs", "definitions":
			eachPair(v, func(_ string, s *yaml.Node) { walkSchema(s, fn) })
		case "allOf", "anyOf", "oneOf", "prefixItems":
			for _, s := range items(v) {
				walkSchema(s, fn)
			}
		case "items":
			if isSequence(v) {
				for _, s := range items(v) {
					walkSchema(s, fn)
				}
				return
			}
			walkSchema(v, fn)
		case "not", "contains", "propertyNames", "if", "then", "else", "additionalItems":
			walkSchema(v, fn)
		case "additionalProperties", "unevaluatedProperties", "unevaluatedItems":
			if _, isBool := boolScalar(v); !isBool {
				walkSchema(v, fn)
			}
		}
	})
}

func eliminateBooleanSchema(n *yaml.Node) {
	b, ok := boolScalar(n)
	if !ok {
		return
	}
	target := deref(n)
	if b {
		replaceNode(target, newMapping())
		return
	}
	replaceNode(target, newMapping(
		newString("type"), newString("object"),
		newString("additionalProperties"), newBool(false),
		newString("required"), newSequence(newString(UnsatisfiableProperty)),
	))
}

var nullableKeys = []string{"nullable", "x-nullable"}

func foldNullable(n *yaml.Node) {
	n = deref(n)
	if !isMapping(n) {
		return
	}
	nullable := false
	for _, k := range nullableKeys {
		if b, ok := boolAt(n, k); ok && b {
			nullable = true
		}
		deleteKey(n, k)
	}
	if !nullable {
		return
	}

	typ := lookup(n, "type")
	switch {
	case typ == nil:
		orig := cloneNode(n)
		replaceNode(n, newMapping(
			newString("anyOf"), newSequence(orig, newMapping(newString("type"), newString("null"))),
		))
	case isSequence(typ):
		for _, t := range stringList(typ) {
			if t == "null" {
				return
			}
		}
		typ.Content = append(typ.Content, newString("null"))
	default:
		if s, _ := scalarValue(typ); s != "null" {
			setKey(n, "type", newSequence(newString(s), newString("null")))
		}
	}
}

func foldConst(n *yaml.Node) {
	n = deref(n)
	i := keyIndex(n, "const")
	if i < 0 {
		return
	}
	value := n.Content[i+1]
	deleteKey(n, "const")
	setKey(n, "enum", newSequence(cloneNode(value)))
	if lookup(n, "type") == nil {
		if t := literalType(value); t != "" {
			setKey(n, "type", newString(t))
		}
	}
}

// literalType is the JSON Schema type name of a YAML literal.
func literalType(v *yaml.Node) string {
	v = deref(v)
	if v == nil {
		return ""
	}
	switch v.Kind {
	case yaml.MappingNode:
		return "object"
	case yaml.SequenceNode:
		return "array"
	case yaml.ScalarNode:
		switch v.ShortTag() {
		case "!!str":
			return "string"
		case "!!bool":
			return "boolean"
		case "!!int":
			return "integer"
		case "!!float":
			return "number"
		case "!!null":
			return "null"
		}
	}
	return ""
}
