package spec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// upgradeV2 turns Swagger 2.0 bytes into an OpenAPI 3 node tree.
//
// kin-openapi does the structural conversion. Two details it loses are put
// back from the original: the definitions section (restored verbatim, in
// source order, as components.schemas) and per-parameter collectionFormat,
// which the route resolver maps to style/explode.
func upgradeV2(data []byte) (*yaml.Node, error) {
	var original yaml.Node
	if err := yaml.Unmarshal(data, &original); err != nil {
		return nil, err
	}
	if fixed, changed, err := preprocessV2ForCompatibility(data); err == nil && changed {
		data = fixed
	}
	v3, err := convertV2ToV3(data)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(v3)
	if err != nil {
		return nil, fmt.Errorf("encode converted document: %w", err)
	}
	var converted yaml.Node
	if err := yaml.Unmarshal(out, &converted); err != nil {
		return nil, fmt.Errorf("decode converted document: %w", err)
	}
	root := deref(&converted)
	restoreV2Details(root, deref(&original))
	return root, nil
}

func convertV2ToV3(data []byte) (*openapi3.T, error) {
	// openapi2.T only carries json tags, so go through JSON rather than
	// decoding YAML into it directly.
	var n yaml.Node
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	plain, err := toPlain(&n)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(plain)
	if err != nil {
		return nil, err
	}
	var v2 openapi2.T
	if err := json.Unmarshal(raw, &v2); err != nil {
		return nil, err
	}
	return openapi2conv.ToV3(&v2)
}

var v2RefPrefixes = [][2]string{
	{"#/definitions/", "#/components/schemas/"},
	{"#/parameters/", "#/components/parameters/"},
	{"#/responses/", "#/components/responses/"},
}

func restoreV2Details(v3, v2 *yaml.Node) {
	if defs := lookup(v2, "definitions"); isMapping(defs) {
		schemas := cloneNode(defs)
		rewriteV2Refs(schemas)
		components := lookup(v3, "components")
		if components == nil {
			components = newMapping()
			setKey(v3, "components", components)
		}
		setKey(components, "schemas", schemas)
	}

	eachPair(lookup(v2, "parameters"), func(name string, p *yaml.Node) {
		if cf := stringAt(p, "collectionFormat"); cf != "" {
			if target := lookupPath(v3, "components", "parameters", name); target != nil {
				setKey(target, "collectionFormat", newString(cf))
			}
		}
	})

	paths := lookup(v3, "paths")
	eachPair(lookup(v2, "paths"), func(path string, item *yaml.Node) {
		target := lookup(paths, path)
		if target == nil {
			return
		}
		copyCollectionFormats(lookup(item, "parameters"), lookup(target, "parameters"))
		for _, m := range methodOrder {
			copyCollectionFormats(lookupPath(item, string(m), "parameters"), lookupPath(target, string(m), "parameters"))
		}
	})
}

func copyCollectionFormats(src, dst *yaml.Node) {
	for _, p := range items(src) {
		cf := stringAt(p, "collectionFormat")
		if cf == "" {
			continue
		}
		name, in := stringAt(p, "name"), stringAt(p, "in")
		for _, q := range items(dst) {
			if stringAt(q, "name") == name && stringAt(q, "in") == in {
				setKey(q, "collectionFormat", newString(cf))
			}
		}
	}
}

func rewriteV2Refs(n *yaml.Node) {
	n = deref(n)
	if n == nil {
		return
	}
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			if n.Content[i].Value == "$ref" {
				v := deref(n.Content[i+1])
				if v != nil && v.Kind == yaml.ScalarNode {
					for _, p := range v2RefPrefixes {
						if strings.HasPrefix(v.Value, p[0]) {
							v.Value = p[1] + strings.TrimPrefix(v.Value, p[0])
							break
						}
					}
				}
				continue
			}
			rewriteV2Refs(n.Content[i+1])
		}
		return
	}
	for _, c := range n.Content {
		rewriteV2Refs(c)
	}
}

// preprocessV2ForCompatibility rewrites non-compliant Swagger v2 operations so kin-openapi
// can convert them to v3. Specifically:
//   - If an operation contains multiple body parameters, merge them into a single body
//     parameter whose schema is an object with properties per original parameter.
//   - If an operation mixes body and formData parameters, convert all body parameters to
//     formData equivalents and ensure the operation consumes multipart/form-data.
//
// It returns possibly-modified YAML bytes and whether anything changed. On error the
// original bytes are returned with modified=false.
func preprocessV2ForCompatibility(data []byte) ([]byte, bool, error) {
	var docNode yaml.Node
	if err := yaml.Unmarshal(data, &docNode); err != nil {
		return data, false, err
	}
	modified := false
	eachPair(lookup(deref(&docNode), "paths"), func(_ string, item *yaml.Node) {
		for _, m := range methodOrder {
			if op := lookup(item, string(m)); op != nil && fixBodyParams(op) {
				modified = true
			}
		}
	})
	if !modified {
		return data, false, nil
	}
	out, err := yaml.Marshal(&docNode)
	if err != nil {
		return data, false, err
	}
	return out, true, nil
}

func isIn(p *yaml.Node, loc string) bool {
	return strings.EqualFold(stringAt(p, "in"), loc)
}

func fixBodyParams(op *yaml.Node) bool {
	params := lookup(op, "parameters")
	bodies, hasForm := 0, false
	for _, p := range items(params) {
		switch {
		case isIn(p, "body"):
			bodies++
		case isIn(p, "formData"):
			hasForm = true
		}
	}
	if bodies == 0 || (bodies == 1 && !hasForm) {
		return false
	}

	if hasForm {
		for i, p := range params.Content {
			if isIn(p, "body") {
				params.Content[i] = formDataFromBodyParam(deref(p))
			}
		}
		consumes := lookup(op, "consumes")
		for _, c := range stringList(consumes) {
			if c == "multipart/form-data" {
				return true
			}
		}
		if !isSequence(consumes) {
			consumes = newSequence()
			setKey(op, "consumes", consumes)
		}
		consumes.Content = append(consumes.Content, newString("multipart/form-data"))
		return true
	}

	props := newMapping()
	required := newSequence()
	var rest []*yaml.Node
	for _, p := range params.Content {
		if !isIn(p, "body") {
			rest = append(rest, p)
			continue
		}
		name := stringAt(p, "name")
		if name == "" {
			name = "field"
		}
		schema := schemaFromParam(p)
		if schema == nil {
			schema = newMapping(newString("type"), newString("string"))
		}
		props.Content = append(props.Content, newString(name), schema)
		if req, _ := boolAt(p, "required"); req {
			required.Content = append(required.Content, newString(name))
		}
	}
	body := newMapping(newString("type"), newString("object"), newString("properties"), props)
	if len(required.Content) > 0 {
		setKey(body, "required", required)
	}
	merged := newMapping(
		newString("in"), newString("body"),
		newString("name"), newString("body"),
		newString("schema"), body,
	)
	params.Content = append([]*yaml.Node{merged}, rest...)
	return true
}

func schemaFromParam(p *yaml.Node) *yaml.Node {
	if sch := lookup(p, "schema"); sch != nil {
		return cloneNode(sch)
	}
	typ := stringAt(p, "type")
	if typ == "" {
		return nil
	}
	m := newMapping(newString("type"), newString(typ))
	if it := lookup(p, "items"); it != nil {
		setKey(m, "items", cloneNode(it))
	}
	if f := stringAt(p, "format"); f != "" {
		setKey(m, "format", newString(f))
	}
	return m
}

func formDataFromBodyParam(p *yaml.Node) *yaml.Node {
	name := stringAt(p, "name")
	if name == "" {
		name = "field"
	}
	out := newMapping(newString("in"), newString("formData"), newString("name"), newString(name))
	if desc := stringAt(p, "description"); desc != "" {
		setKey(out, "description", newString(desc))
	}
	if req, ok := boolAt(p, "required"); ok {
		setKey(out, "required", newBool(req))
	}

	// A referenced object cannot be represented in formData; it degrades to string.
	var typ, format string
	var elem *yaml.Node
	if sch := lookup(p, "schema"); sch != nil {
		typ, format, elem = stringAt(sch, "type"), stringAt(sch, "format"), lookup(sch, "items")
	}
	if typ == "" {
		typ, format, elem = stringAt(p, "type"), stringAt(p, "format"), lookup(p, "items")
	}
	if typ == "" || typ == "object" {
		typ = "string"
	}
	setKey(out, "type", newString(typ))
	if elem != nil {
		setKey(out, "items", cloneNode(elem))
	}
	if format != "" {
		setKey(out, "format", newString(format))
	}
	return out
}
