package spec

import (
	"gopkg.in/yaml.v3"
)

// Helpers over yaml.v3 nodes. Documents are kept as node trees rather than
// map[string]any so mapping key order survives decoding; discriminator
// mappings, parameter lists and property order all depend on it.

func deref(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch n.Kind {
		case yaml.AliasNode:
			n = n.Alias
		case yaml.DocumentNode:
			if len(n.Content) == 0 {
				return nil
			}
			n = n.Content[0]
		default:
			return n
		}
	}
	return nil
}

func isMapping(n *yaml.Node) bool {
	n = deref(n)
	return n != nil && n.Kind == yaml.MappingNode
}

func isSequence(n *yaml.Node) bool {
	n = deref(n)
	return n != nil && n.Kind == yaml.SequenceNode
}

// boolScalar reports whether n is a boolean scalar and its value.
func boolScalar(n *yaml.Node) (value, ok bool) {
	n = deref(n)
	if n == nil || n.Kind != yaml.ScalarNode || n.ShortTag() != "!!bool" {
		return false, false
	}
	var b bool
	if err := n.Decode(&b); err != nil {
		return false, false
	}
	return b, true
}

func keyIndex(n *yaml.Node, key string) int {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return -1
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func lookup(n *yaml.Node, key string) *yaml.Node {
	n = deref(n)
	i := keyIndex(n, key)
	if i < 0 {
		return nil
	}
	return deref(n.Content[i+1])
}

// lookupPath walks nested mapping keys.
func lookupPath(n *yaml.Node, keys ...string) *yaml.Node {
	for _, k := range keys {
		n = lookup(n, k)
		if n == nil {
			return nil
		}
	}
	return n
}

func setKey(n *yaml.Node, key string, value *yaml.Node) {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return
	}
	if i := keyIndex(n, key); i >= 0 {
		n.Content[i+1] = value
		return
	}
	n.Content = append(n.Content, newString(key), value)
}

func deleteKey(n *yaml.Node, key string) bool {
	n = deref(n)
	i := keyIndex(n, key)
	if i < 0 {
		return false
	}
	n.Content = append(n.Content[:i], n.Content[i+2:]...)
	return true
}

// eachPair visits mapping entries in document order.
func eachPair(n *yaml.Node, fn func(key string, value *yaml.Node)) {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		fn(n.Content[i].Value, n.Content[i+1])
	}
}

func mappingKeys(n *yaml.Node) []string {
	var keys []string
	eachPair(n, func(k string, _ *yaml.Node) { keys = append(keys, k) })
	return keys
}

func items(n *yaml.Node) []*yaml.Node {
	n = deref(n)
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	return n.Content
}

func scalarValue(n *yaml.Node) (string, bool) {
	n = deref(n)
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", false
	}
	return n.Value, true
}

func stringAt(n *yaml.Node, key string) string {
	s, _ := scalarValue(lookup(n, key))
	return s
}

func boolAt(n *yaml.Node, key string) (value, ok bool) {
	return boolScalar(lookup(n, key))
}

// stringList accepts either a sequence of scalars or a single scalar.
func stringList(n *yaml.Node) []string {
	n = deref(n)
	if n == nil {
		return nil
	}
	if n.Kind == yaml.ScalarNode {
		return []string{n.Value}
	}
	var out []string
	for _, it := range items(n) {
		if s, ok := scalarValue(it); ok {
			out = append(out, s)
		}
	}
	return out
}

func newString(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func newBool(b bool) *yaml.Node {
	v := "false"
	if b {
		v = "true"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: v}
}

func newMapping(pairs ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: pairs}
}

func newSequence(elems ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: elems}
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Kind == yaml.AliasNode {
		return cloneNode(n.Alias)
	}
	if len(n.Content) > 0 {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneNode(child)
		}
	}
	return &c
}

// replaceNode overwrites dst in place so parents holding the pointer see the
// new value.
func replaceNode(dst, src *yaml.Node) {
	line, col := dst.Line, dst.Column
	*dst = *src
	dst.Line, dst.Column = line, col
}

// toPlain converts a node tree into values encoding/json can marshal.
// Mapping keys always become strings, so unquoted status codes survive.
func toPlain(n *yaml.Node) (any, error) {
	n = deref(n)
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := toPlain(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[n.Content[i].Value] = v
		}
		return m, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := toPlain(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
