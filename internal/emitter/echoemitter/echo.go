// Package echoemitter renders handlers, registrations and tests for the
// labstack/echo framework.
package echoemitter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mark3labs/oapisync/internal/emitter"
	"github.com/mark3labs/oapisync/internal/spec"
)

const echoImport = "github.com/labstack/echo/v4"

// Strategy renders echo code. The zero value is ready to use.
type Strategy struct{}

var _ emitter.Strategy = Strategy{}

func New() Strategy { return Strategy{} }

func (Strategy) Name() string { return "echo" }

func (Strategy) HandlerName(r spec.ParsedRoute) string { return emitter.GoName(r.HandlerName) }

func (Strategy) ParamExtraction(p spec.RouteParam) string { return emitter.RawParamType(p) }

var pathParam = regexp.MustCompile(`\{([^}/]+)\}`)

// echoPath turns /users/{id} into /users/:id.
func echoPath(p string) string { return pathParam.ReplaceAllString(p, ":$1") }

func (Strategy) Imports(role emitter.FileRole, handlers []emitter.Handler) []emitter.Import {
	var set emitter.ImportSet
	switch role {
	case emitter.RoleRoutes:
		set.Add(emitter.Import{Path: echoImport})
	case emitter.RoleHandlers:
		set.Add(emitter.Import{Path: "net/http"}, emitter.Import{Path: echoImport})
		for _, h := range handlers {
			set.Add(h.Imports...)
			if h.Credential != "" {
				set.Add(emitter.CredentialImports(h.Route.Security)...)
			}
			if b := h.Route.RequestBody; b != nil && (b.Kind == spec.BodyText || b.Kind == spec.BodyBinary) {
				set.Add(emitter.Import{Path: "io"})
			}
			for _, a := range h.Args {
				if a.Type == "url.Values" {
					set.Add(emitter.Import{Path: "net/url"})
				}
			}
		}
	case emitter.RoleTests:
		set.Add(emitter.Import{Path: "net/http"}, emitter.Import{Path: "net/http/httptest"},
			emitter.Import{Path: "testing"}, emitter.Import{Path: echoImport})
		for _, h := range handlers {
			if h.Route.RequestBody != nil {
				set.Add(emitter.Import{Path: "strings"})
			}
		}
	}
	return set.List()
}

func (Strategy) SecurityExtraction(h emitter.Handler) emitter.Declaration {
	return emitter.CredentialFunc(h.Credential, h.Name, h.Route.Security)
}

func extraction(a emitter.Arg) string {
	name := strconv.Quote(a.Param.Name)
	switch a.Param.In {
	case spec.InPath:
		return fmt.Sprintf("%s := c.Param(%s)", a.Var, name)
	case spec.InHeader:
		return fmt.Sprintf("%s := c.Request().Header.Get(%s)", a.Var, name)
	case spec.InCookie:
		return fmt.Sprintf("%s, _ := c.Cookie(%s)", a.Var, name)
	}
	switch a.Type {
	case "[]string":
		return fmt.Sprintf("%s := c.QueryParams()[%s]", a.Var, name)
	case "url.Values":
		return fmt.Sprintf("%s := c.QueryParams()", a.Var)
	}
	return fmt.Sprintf("%s := c.QueryParam(%s)", a.Var, name)
}

func (Strategy) HandlerStub(h emitter.Handler) emitter.Declaration {
	var b strings.Builder
	b.WriteString(emitter.HandlerDoc(h))
	fmt.Fprintf(&b, "func %s(c echo.Context) error {\n", h.Name)
	if h.Credential != "" {
		fmt.Fprintf(&b, "if _, _, ok := %s(c.Request()); !ok {\nreturn echo.ErrUnauthorized\n}\n", h.Credential)
	}
	if len(h.Args) > 0 {
		vars := make([]string, 0, len(h.Args))
		for _, a := range h.Args {
			b.WriteString(extraction(a) + "\n")
			vars = append(vars, a.Var)
		}
		fmt.Fprintf(&b, "%s = %s\n", strings.TrimSuffix(strings.Repeat("_, ", len(vars)), ", "), strings.Join(vars, ", "))
	}
	if body := h.Route.RequestBody; body != nil {
		b.WriteString("\n")
		switch body.Kind {
		case spec.BodyJSON:
			fmt.Fprintf(&b, "var body %s\nif err := c.Bind(&body); err != nil {\nreturn echo.NewHTTPError(http.StatusBadRequest, err.Error())\n}\n", h.Body)
		case spec.BodyForm:
			b.WriteString("body, err := c.FormParams()\nif err != nil {\nreturn echo.NewHTTPError(http.StatusBadRequest, err.Error())\n}\n")
		case spec.BodyMultipart:
			b.WriteString("body, err := c.MultipartForm()\nif err != nil {\nreturn echo.NewHTTPError(http.StatusBadRequest, err.Error())\n}\n")
		default:
			b.WriteString("body, err := io.ReadAll(c.Request().Body)\nif err != nil {\nreturn echo.NewHTTPError(http.StatusBadRequest, err.Error())\n}\n")
		}
		b.WriteString("_ = body\n")
	}
	b.WriteString("\n")
	status := emitter.StatusExpr(h.Status)
	if h.Response != "" {
		fmt.Fprintf(&b, "var resp %s\nreturn c.JSON(%s, resp)\n", h.Response, status)
	} else {
		fmt.Fprintf(&b, "return c.NoContent(%s)\n", status)
	}
	b.WriteString("}\n")
	return emitter.Declaration{Name: h.Name, Text: emitter.FormatDecl(b.String())}
}

func (Strategy) RegistrationFunc(name string) emitter.Declaration {
	text := fmt.Sprintf("// %s mounts every generated handler on e.\nfunc %s(e *echo.Echo) {\n}\n", name, name)
	return emitter.Declaration{Name: name, Text: text}
}

// Registration mounts endpoints; webhooks are sent by the API, not served.
func (Strategy) Registration(r spec.ParsedRoute, handlerRef string) (emitter.Registration, bool) {
	if r.Kind == spec.RouteWebhook {
		return emitter.Registration{}, false
	}
	call := fmt.Sprintf("e.%s(%s, %s", strings.ToUpper(string(r.Method)), strconv.Quote(echoPath(r.Path)), handlerRef)
	return emitter.Registration{Statement: call + ")", DedupeKey: call}, true
}

func (Strategy) TestSignature(h emitter.Handler) string {
	return fmt.Sprintf("func Test%s(t *testing.T) {", h.Name)
}

func (Strategy) TestRequest(h emitter.Handler, s emitter.Sample) string {
	var b strings.Builder
	b.WriteString(emitter.RequestSetup(h.Route.Method, s))
	b.WriteString("c := echo.New().NewContext(req, rec)\n")
	if len(s.PathParams) > 0 {
		names := make([]string, 0, len(s.PathParams))
		values := make([]string, 0, len(s.PathParams))
		for _, p := range s.PathParams {
			names = append(names, strconv.Quote(p.Name))
			values = append(values, strconv.Quote(p.Value))
		}
		fmt.Fprintf(&b, "c.SetPath(%s)\n", strconv.Quote(echoPath(h.Route.Path)))
		fmt.Fprintf(&b, "c.SetParamNames(%s)\n", strings.Join(names, ", "))
		fmt.Fprintf(&b, "c.SetParamValues(%s)\n", strings.Join(values, ", "))
	}
	fmt.Fprintf(&b, "\nif err := %s(c); err != nil {\nt.Fatalf(\"%s: %%v\", err)\n}\n", h.Name, h.Name)
	return b.String()
}

func (Strategy) TestAssertion(h emitter.Handler) string {
	status := emitter.StatusExpr(h.Status)
	return fmt.Sprintf("if rec.Code != %s {\nt.Fatalf(\"status = %%d, want %%d\", rec.Code, %s)\n}\n", status, status)
}
