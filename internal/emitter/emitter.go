// Package emitter defines the capability set the generator uses to render
// framework-specific Go code, plus the rendering shared by every framework:
// Go type mapping, model declarations, credential extraction and test
// request samples.
//
// A Strategy only produces text. The generator decides where that text goes
// and whether it is needed; it never looks inside it.
package emitter

import (
	"go/format"
	"go/token"
	"sort"
	"strconv"
	"strings"

	"github.com/go-openapi/swag"

	"github.com/mark3labs/oapisync/internal/spec"
)

// FileRole tells a Strategy which kind of file it contributes to.
type FileRole int

const (
	RoleHandlers FileRole = iota + 1
	RoleRoutes
	RoleTests
)

// Strategy renders the framework-specific pieces of generated code.
type Strategy interface {
	// Name is the value selecting the strategy on the command line.
	Name() string
	// Imports lists what the given handlers need in a file of the given role.
	Imports(role FileRole, handlers []Handler) []Import
	// HandlerName turns a snake_case route handler name into a Go identifier.
	HandlerName(r spec.ParsedRoute) string
	// ParamExtraction is the Go type a parameter is read into, given its
	// source and serialization style.
	ParamExtraction(p spec.RouteParam) string
	// SecurityExtraction renders the declaration that pulls credentials
	// out of a request for one handler.
	SecurityExtraction(h Handler) Declaration
	HandlerStub(h Handler) Declaration
	// RegistrationFunc renders an empty registration function.
	RegistrationFunc(name string) Declaration
	// Registration renders the statement mounting one route. ok is false
	// for routes that are not served, such as webhooks.
	Registration(r spec.ParsedRoute, handlerRef string) (reg Registration, ok bool)

	TestSignature(h Handler) string
	TestRequest(h Handler, s Sample) string
	TestAssertion(h Handler) string
}

// Declaration is a named top-level Go declaration.
type Declaration struct {
	Name string
	Text string
}

// Registration is one statement for the registration function and the text
// whose presence means the route is already registered.
type Registration struct {
	Statement string
	DedupeKey string
}

// Arg is one request parameter as a handler stub reads it.
type Arg struct {
	Var   string
	Param spec.RouteParam
	Type  string
}

// Handler is everything a Strategy needs to render one route.
type Handler struct {
	Route spec.ParsedRoute
	Name  string
	Args  []Arg
	// Body is the Go type a JSON request body decodes into; empty when the
	// route has no JSON body.
	Body string
	// Response is the Go type of the success body; empty when there is none.
	Response   string
	Status     int
	Credential string // credential function name; empty for open routes
	Imports    []Import
}

// NewHandler resolves names and types for one route.
func NewHandler(s Strategy, r spec.ParsedRoute, types TypeMapper) Handler {
	h := Handler{Route: r, Name: s.HandlerName(r), Status: SuccessStatus(r.Response)}
	var imps ImportSet
	used := map[string]bool{}
	for i, p := range r.Params {
		h.Args = append(h.Args, Arg{Var: VarName(p.Name, i, used), Param: p, Type: s.ParamExtraction(p)})
	}
	if b := r.RequestBody; b != nil && b.Kind == spec.BodyJSON {
		h.Body = types.GoType(b.Type, &imps)
	}
	if resp := r.Response; resp != nil && resp.Type != nil {
		h.Response = types.GoType(*resp.Type, &imps)
	}
	if len(r.Security) > 0 {
		h.Credential = lowerFirst(h.Name) + "Credential"
	}
	h.Imports = imps.List()
	return h
}

// GoName renders a snake_case or free-form name as an exported identifier.
func GoName(name string) string {
	n := swag.ToGoName(name)
	if n == "" {
		return "X"
	}
	return n
}

// reserved holds identifiers generated stubs already use.
var reserved = map[string]bool{
	"c": true, "r": true, "w": true, "e": true, "t": true, "req": true, "rec": true,
	"body": true, "resp": true, "err": true, "ctx": true, "router": true,
}

// VarName renders a parameter name as a local variable, unique within used.
func VarName(name string, index int, used map[string]bool) string {
	v := swag.ToVarName(name)
	if v == "" || !token.IsIdentifier(v) {
		v = "param" + strconv.Itoa(index)
	}
	if token.IsKeyword(v) || reserved[v] {
		v += "Param"
	}
	base := v
	for i := 2; used[v]; i++ {
		v = base + strconv.Itoa(i)
	}
	used[v] = true
	return v
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	// Leading initialisms are lowered as a whole: IDToken -> idToken.
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	switch {
	case i == 0:
		return s
	case i == 1 || i == len(s):
		return strings.ToLower(s[:i]) + s[i:]
	default:
		return strings.ToLower(s[:i-1]) + s[i-1:]
	}
}

// RawParamType is the framework-neutral parameter type: exploded form
// arrays arrive as repeated query keys, deepObject parameters as the whole
// query, cookies as *http.Cookie and everything else as one string.
func RawParamType(p spec.RouteParam) string {
	switch p.In {
	case spec.InCookie:
		return "*http.Cookie"
	case spec.InQuery:
		if p.Style == spec.StyleDeepObject {
			return "url.Values"
		}
		if p.Style == spec.StyleForm && p.Explode && isArray(p.Type) {
			return "[]string"
		}
	}
	return "string"
}

func isArray(t spec.TypeDescriptor) bool {
	if t.Kind == spec.KindOptional && t.Elem != nil {
		return isArray(*t.Elem)
	}
	return t.Kind == spec.KindArray
}

// SuccessStatus is the numeric status of a resolved success response,
// 200 when it is missing or not a plain number.
func SuccessStatus(r *spec.Response) int {
	if r == nil {
		return 200
	}
	if n, err := strconv.Atoi(r.Status); err == nil {
		return n
	}
	return 200
}

var statusNames = map[int]string{
	200: "StatusOK",
	201: "StatusCreated",
	202: "StatusAccepted",
	203: "StatusNonAuthoritativeInfo",
	204: "StatusNoContent",
	205: "StatusResetContent",
	206: "StatusPartialContent",
}

// StatusExpr renders a status code as a net/http constant when one exists.
func StatusExpr(code int) string {
	if name, ok := statusNames[code]; ok {
		return "http." + name
	}
	return strconv.Itoa(code)
}

// MethodExpr renders an HTTP method as its net/http constant.
func MethodExpr(m spec.HttpMethod) string {
	switch m {
	case spec.GET:
		return "http.MethodGet"
	case spec.POST:
		return "http.MethodPost"
	case spec.PUT:
		return "http.MethodPut"
	case spec.DELETE:
		return "http.MethodDelete"
	case spec.PATCH:
		return "http.MethodPatch"
	case spec.HEAD:
		return "http.MethodHead"
	case spec.OPTIONS:
		return "http.MethodOptions"
	case spec.TRACE:
		return "http.MethodTrace"
	}
	return strconv.Quote(strings.ToUpper(string(m)))
}

// HandlerDoc renders the doc comment of a handler stub.
func HandlerDoc(h Handler) string {
	r := h.Route
	var b strings.Builder
	method := strings.ToUpper(string(r.Method))
	if r.Kind == spec.RouteWebhook {
		b.WriteString("// " + h.Name + " receives the " + r.Path + " webhook (" + method + ").\n")
	} else {
		b.WriteString("// " + h.Name + " handles " + method + " " + r.Path + ".\n")
	}
	var extra []string
	if s := strings.TrimSpace(r.Summary); s != "" {
		extra = append(extra, strings.Split(s, "\n")...)
	}
	if h.Response != "" {
		extra = append(extra, "Responds "+strconv.Itoa(h.Status)+" with "+h.Response+".")
	}
	if resp := r.Response; resp != nil {
		if len(resp.Headers) > 0 {
			names := make([]string, 0, len(resp.Headers))
			for _, hd := range resp.Headers {
				n := hd.Name
				if hd.Required {
					n += " (required)"
				}
				names = append(names, n)
			}
			extra = append(extra, "Response headers: "+strings.Join(names, ", ")+".")
		}
		for _, l := range resp.Links {
			target := l.OperationID
			if target == "" {
				target = l.OperationRef
			}
			extra = append(extra, "Link "+l.Name+": "+target+".")
		}
	}
	if len(extra) > 0 {
		b.WriteString("//\n")
		for _, line := range extra {
			b.WriteString(strings.TrimRight("// "+strings.TrimSpace(line), " ") + "\n")
		}
	}
	return b.String()
}

// TestFunc assembles one test declaration from a Strategy's test pieces.
func TestFunc(s Strategy, h Handler, sample Sample) Declaration {
	var b strings.Builder
	b.WriteString(s.TestSignature(h))
	b.WriteString("\n")
	b.WriteString(s.TestRequest(h, sample))
	b.WriteString(s.TestAssertion(h))
	b.WriteString("}\n")
	return Declaration{Name: "Test" + h.Name, Text: FormatDecl(b.String())}
}

// FormatDecl gofmts a single declaration. Text that does not parse is
// returned as is.
func FormatDecl(text string) string {
	const header = "package p\n\n"
	out, err := format.Source([]byte(header + text))
	if err != nil {
		return strings.TrimSpace(text) + "\n"
	}
	return strings.TrimPrefix(string(out), header)
}

// Import is one import spec.
type Import struct {
	Name string
	Path string
}

// ImportSet collects imports without duplicates.
type ImportSet struct {
	m map[string]Import
}

func (s *ImportSet) Add(imps ...Import) {
	if s.m == nil {
		s.m = map[string]Import{}
	}
	for _, imp := range imps {
		if imp.Path != "" {
			s.m[imp.Path] = imp
		}
	}
}

// List returns the imports sorted by path.
func (s *ImportSet) List() []Import {
	out := make([]Import, 0, len(s.m))
	for _, imp := range s.m {
		out = append(out, imp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// isStdlib reports whether an import path belongs to the standard library,
// which by convention has no dot in its first element.
func isStdlib(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return !strings.Contains(first, ".")
}

// ImportBlock renders imports the way goimports groups them: standard
// library first, then everything else.
func ImportBlock(imps []Import) string {
	if len(imps) == 0 {
		return ""
	}
	var std, other []string
	for _, imp := range imps {
		line := strconv.Quote(imp.Path)
		if imp.Name != "" {
			line = imp.Name + " " + line
		}
		if isStdlib(imp.Path) {
			std = append(std, line)
		} else {
			other = append(other, line)
		}
	}
	sort.Strings(std)
	sort.Strings(other)
	var b strings.Builder
	b.WriteString("import (\n")
	for _, l := range std {
		b.WriteString("\t" + l + "\n")
	}
	if len(std) > 0 && len(other) > 0 {
		b.WriteString("\n")
	}
	for _, l := range other {
		b.WriteString("\t" + l + "\n")
	}
	b.WriteString(")\n")
	return b.String()
}
