package emitter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mark3labs/oapisync/internal/spec"
)

// TypeMapper renders TypeDescriptors as Go type expressions.
type TypeMapper struct {
	// Qualifier prefixes component names, "models." outside the models package.
	Qualifier string
	// ModelsImport is recorded whenever a component name is referenced.
	ModelsImport Import
}

// TypeName is the Go name of a component schema.
func TypeName(component string) string { return GoName(component) }

// GoType returns the Go type of t and records the imports it needs.
func (m TypeMapper) GoType(t spec.TypeDescriptor, imps *ImportSet) string {
	return m.goType(t, imps, "", "")
}

func (m TypeMapper) goType(t spec.TypeDescriptor, imps *ImportSet, indent, self string) string {
	switch t.Kind {
	case spec.KindScalar:
		return scalarGoType(t, imps)
	case spec.KindArray:
		return "[]" + m.elem(t.Elem, imps, indent, self)
	case spec.KindMap:
		return "map[string]" + m.elem(t.Elem, imps, indent, self)
	case spec.KindOptional:
		inner := m.elem(t.Elem, imps, indent, self)
		if nillable(inner) {
			return inner
		}
		return "*" + inner
	case spec.KindRef:
		if m.ModelsImport.Path != "" {
			imps.Add(m.ModelsImport)
		}
		return m.Qualifier + TypeName(t.Ref)
	case spec.KindObject:
		if len(t.Fields) == 0 && len(t.Embeds) == 0 {
			return "map[string]any"
		}
		var b strings.Builder
		b.WriteString("struct {\n")
		for _, line := range m.fieldLines(t, imps, self) {
			b.WriteString(indent + "\t" + line + "\n")
		}
		b.WriteString(indent + "}")
		return b.String()
	case spec.KindUnion:
		imps.Add(Import{Path: "encoding/json"})
		return "json.RawMessage"
	}
	return "any"
}

func (m TypeMapper) elem(e *spec.TypeDescriptor, imps *ImportSet, indent, self string) string {
	if e == nil {
		return "any"
	}
	return m.goType(*e, imps, indent, self)
}

func scalarGoType(t spec.TypeDescriptor, imps *ImportSet) string {
	switch t.Scalar {
	case spec.ScalarString:
		switch t.Format {
		case "date-time":
			imps.Add(Import{Path: "time"})
			return "time.Time"
		case "byte", "binary":
			return "[]byte"
		}
		return "string"
	case spec.ScalarInteger:
		switch t.Format {
		case "int32":
			return "int32"
		case "int64":
			return "int64"
		}
		return "int"
	case spec.ScalarNumber:
		if t.Format == "float" {
			return "float32"
		}
		return "float64"
	case spec.ScalarBoolean:
		return "bool"
	}
	return "any"
}

func nillable(typ string) bool {
	for _, p := range []string{"[]", "map[", "*", "any", "json.RawMessage", "interface"} {
		if strings.HasPrefix(typ, p) {
			return true
		}
	}
	return false
}

// ModelField is one struct field of a rendered model.
type ModelField struct {
	Name    string
	Type    string
	Tag     string
	Imports []Import
}

// Model is a rendered component schema.
type Model struct {
	Name    string
	Text    string
	Struct  bool
	Fields  []ModelField
	Imports []Import
}

// fieldLines renders struct field lines (without indentation).
func (m TypeMapper) fieldLines(t spec.TypeDescriptor, imps *ImportSet, self string) []string {
	var lines []string
	for _, e := range t.Embeds {
		lines = append(lines, m.Qualifier+TypeName(e))
	}
	for _, f := range m.fields(t, self) {
		imps.Add(f.Imports...)
		lines = append(lines, f.Name+" "+f.Type+" `"+f.Tag+"`")
	}
	return lines
}

func (m TypeMapper) fields(t spec.TypeDescriptor, self string) []ModelField {
	used := map[string]bool{}
	for _, e := range t.Embeds {
		used[TypeName(e)] = true
	}
	var out []ModelField
	for i, f := range t.Fields {
		var imps ImportSet
		name := swagGoField(f.Name, i, used)
		typ := m.goType(f.Type, &imps, "\t", self)
		tag := `json:"` + f.Name + `"`
		if !f.Required {
			tag = `json:"` + f.Name + `,omitempty"`
		}
		if (!f.Required || (self != "" && typ == m.Qualifier+self)) && !nillable(typ) && !strings.HasPrefix(typ, "struct") {
			typ = "*" + typ
		}
		out = append(out, ModelField{Name: name, Type: typ, Tag: tag, Imports: imps.List()})
	}
	return out
}

func swagGoField(jsonName string, index int, used map[string]bool) string {
	name := GoName(jsonName)
	if name == "X" && jsonName != "x" && jsonName != "X" {
		name = "Field" + strconv.Itoa(index)
	}
	base := name
	for i := 2; used[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	used[name] = true
	return name
}

// ModelDecl renders a component schema as a Go declaration: structs for
// objects, a named type with a const block for enums, a struct of variant
// pointers for unions and a named type for everything else.
func (m TypeMapper) ModelDecl(s spec.ModelSchema) Model {
	name := TypeName(s.Name)
	t := s.Type
	var imps ImportSet
	var b strings.Builder
	b.WriteString(modelDoc(name, s.Name, t.Description))

	model := Model{Name: name}
	switch {
	case t.Kind == spec.KindObject && (len(t.Fields) > 0 || len(t.Embeds) > 0):
		model.Struct = true
		model.Fields = m.fields(t, name)
		fmt.Fprintf(&b, "type %s struct {\n", name)
		for _, line := range m.fieldLines(t, &imps, name) {
			b.WriteString("\t" + line + "\n")
		}
		b.WriteString("}\n")
	case t.Kind == spec.KindScalar && len(t.Enum) > 0:
		base := scalarGoType(t, &imps)
		fmt.Fprintf(&b, "type %s %s\n\n", name, base)
		b.WriteString(enumConsts(name, t))
	case t.Kind == spec.KindUnion:
		b.WriteString(m.unionDecl(name, t, &imps))
	case t.Kind == spec.KindDynamic:
		fmt.Fprintf(&b, "type %s = any\n", name)
	default:
		under := t
		if under.Kind == spec.KindOptional && under.Elem != nil {
			under = *under.Elem
		}
		fmt.Fprintf(&b, "type %s %s\n", name, m.goType(under, &imps, "", name))
	}
	model.Text = FormatDecl(b.String())
	model.Imports = imps.List()
	return model
}

func modelDoc(goName, schemaName, desc string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// %s is the %s schema.\n", goName, schemaName)
	if desc = strings.TrimSpace(desc); desc != "" {
		b.WriteString("//\n")
		for _, line := range strings.Split(desc, "\n") {
			b.WriteString(strings.TrimRight("// "+strings.TrimSpace(line), " ") + "\n")
		}
	}
	return b.String()
}

var numericLiteral = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

func enumConsts(name string, t spec.TypeDescriptor) string {
	var b strings.Builder
	b.WriteString("const (\n")
	used := map[string]bool{}
	for i, v := range t.Enum {
		var lit, suffix string
		switch t.Scalar {
		case spec.ScalarString:
			lit = strconv.Quote(v)
			suffix = GoName(v)
		default:
			if !numericLiteral.MatchString(v) && v != "true" && v != "false" {
				continue
			}
			lit = v
			suffix = strings.NewReplacer("-", "Minus", ".", "Point").Replace(v)
			if v == "true" || v == "false" {
				suffix = GoName(v)
			}
		}
		if suffix == "X" && v != "x" && v != "X" {
			suffix = "Value" + strconv.Itoa(i)
		}
		c := name + suffix
		for j := 2; used[c]; j++ {
			c = name + suffix + strconv.Itoa(j)
		}
		used[c] = true
		fmt.Fprintf(&b, "\t%s %s = %s\n", c, name, lit)
	}
	b.WriteString(")\n")
	return b.String()
}

func (m TypeMapper) unionDecl(name string, t spec.TypeDescriptor, imps *ImportSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "type %s struct {\n", name)
	used := map[string]bool{}
	for i, v := range t.Variants {
		field := swagGoField(v.Name, i, used)
		var typ string
		if v.Type != nil {
			typ = m.goType(*v.Type, imps, "\t", name)
		} else {
			typ = m.Qualifier + TypeName(v.Name)
		}
		if !nillable(typ) {
			typ = "*" + typ
		}
		fmt.Fprintf(&b, "\t%s %s `json:\"-\"`\n", field, typ)
	}
	b.WriteString("}\n")

	var pairs [][2]string
	for _, v := range t.Variants {
		if v.PrimaryAlias != "" {
			pairs = append(pairs, [2]string{v.PrimaryAlias, v.Name})
		}
		for _, alias := range v.SecondaryAliases {
			pairs = append(pairs, [2]string{alias, v.Name})
		}
	}
	if len(pairs) > 0 && t.Discriminator != "" {
		fmt.Fprintf(&b, "\n// %sVariants maps each %s value to the variant it selects.\n", name, t.Discriminator)
		fmt.Fprintf(&b, "var %sVariants = map[string]string{\n", name)
		for _, p := range pairs {
			fmt.Fprintf(&b, "\t%s: %s,\n", strconv.Quote(p[0]), strconv.Quote(p[1]))
		}
		b.WriteString("}\n")
	}
	return b.String()
}
