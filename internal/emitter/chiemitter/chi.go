// Package chiemitter renders net/http handlers mounted on a go-chi router.
package chiemitter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/oapisync/internal/emitter"
	"github.com/mark3labs/oapisync/internal/spec"
)

const chiImport = "github.com/go-chi/chi/v5"

// maxMemory is the multipart form memory limit written into stubs.
const maxMemory = "32 << 20"

type Strategy struct{}

var _ emitter.Strategy = Strategy{}

func New() Strategy { return Strategy{} }

func (Strategy) Name() string { return "chi" }

func (Strategy) HandlerName(r spec.ParsedRoute) string { return emitter.GoName(r.HandlerName) }

func (Strategy) ParamExtraction(p spec.RouteParam) string { return emitter.RawParamType(p) }

func (Strategy) Imports(role emitter.FileRole, handlers []emitter.Handler) []emitter.Import {
	var set emitter.ImportSet
	switch role {
	case emitter.RoleRoutes:
		set.Add(emitter.Import{Path: chiImport})
	case emitter.RoleHandlers:
		set.Add(emitter.Import{Path: "net/http"})
		for _, h := range handlers {
			set.Add(h.Imports...)
			if h.Credential != "" {
				set.Add(emitter.CredentialImports(h.Route.Security)...)
			}
			if h.Body != "" || h.Response != "" {
				set.Add(emitter.Import{Path: "encoding/json"})
			}
			if b := h.Route.RequestBody; b != nil && (b.Kind == spec.BodyText || b.Kind == spec.BodyBinary) {
				set.Add(emitter.Import{Path: "io"})
			}
			for _, a := range h.Args {
				if a.Param.In == spec.InPath {
					set.Add(emitter.Import{Path: chiImport})
				}
				if a.Type == "url.Values" {
					set.Add(emitter.Import{Path: "net/url"})
				}
			}
		}
	case emitter.RoleTests:
		set.Add(emitter.Import{Path: "net/http"}, emitter.Import{Path: "net/http/httptest"},
			emitter.Import{Path: "testing"}, emitter.Import{Path: chiImport})
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
		return fmt.Sprintf("%s := chi.URLParam(r, %s)", a.Var, name)
	case spec.InHeader:
		return fmt.Sprintf("%s := r.Header.Get(%s)", a.Var, name)
	case spec.InCookie:
		return fmt.Sprintf("%s, _ := r.Cookie(%s)", a.Var, name)
	}
	switch a.Type {
	case "[]string":
		return fmt.Sprintf("%s := r.URL.Query()[%s]", a.Var, name)
	case "url.Values":
		return fmt.Sprintf("%s := r.URL.Query()", a.Var)
	}
	return fmt.Sprintf("%s := r.URL.Query().Get(%s)", a.Var, name)
}

const badRequest = "http.Error(w, err.Error(), http.StatusBadRequest)\nreturn\n"

func (Strategy) HandlerStub(h emitter.Handler) emitter.Declaration {
	var b strings.Builder
	b.WriteString(emitter.HandlerDoc(h))
	fmt.Fprintf(&b, "func %s(w http.ResponseWriter, r *http.Request) {\n", h.Name)
	if h.Credential != "" {
		fmt.Fprintf(&b, "if _, _, ok := %s(r); !ok {\nhttp.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)\nreturn\n}\n", h.Credential)
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
			fmt.Fprintf(&b, "var body %s\nif err := json.NewDecoder(r.Body).Decode(&body); err != nil {\n%s}\n", h.Body, badRequest)
		case spec.BodyForm:
			fmt.Fprintf(&b, "if err := r.ParseForm(); err != nil {\n%s}\nbody := r.PostForm\n", badRequest)
		case spec.BodyMultipart:
			fmt.Fprintf(&b, "if err := r.ParseMultipartForm(%s); err != nil {\n%s}\nbody := r.MultipartForm\n", maxMemory, badRequest)
		default:
			fmt.Fprintf(&b, "body, err := io.ReadAll(r.Body)\nif err != nil {\n%s}\n", badRequest)
		}
		b.WriteString("_ = body\n")
	}
	b.WriteString("\n")
	status := emitter.StatusExpr(h.Status)
	if h.Response != "" {
		fmt.Fprintf(&b, "var resp %s\nw.Header().Set(\"Content-Type\", \"application/json\")\nw.WriteHeader(%s)\n_ = json.NewEncoder(w).Encode(resp)\n", h.Response, status)
	} else {
		fmt.Fprintf(&b, "w.WriteHeader(%s)\n", status)
	}
	b.WriteString("}\n")
	return emitter.Declaration{Name: h.Name, Text: emitter.FormatDecl(b.String())}
}

func (Strategy) RegistrationFunc(name string) emitter.Declaration {
	text := fmt.Sprintf("// %s mounts every generated handler on r.\nfunc %s(r chi.Router) {\n}\n", name, name)
	return emitter.Declaration{Name: name, Text: text}
}

func routerMethod(m spec.HttpMethod) string {
	s := string(m)
	return strings.ToUpper(s[:1]) + s[1:]
}

func (Strategy) Registration(r spec.ParsedRoute, handlerRef string) (emitter.Registration, bool) {
	if r.Kind == spec.RouteWebhook {
		return emitter.Registration{}, false
	}
	call := fmt.Sprintf("r.%s(%s, %s", routerMethod(r.Method), strconv.Quote(r.Path), handlerRef)
	return emitter.Registration{Statement: call + ")", DedupeKey: call}, true
}

func (Strategy) TestSignature(h emitter.Handler) string {
	return fmt.Sprintf("func Test%s(t *testing.T) {", h.Name)
}

func (Strategy) TestRequest(h emitter.Handler, s emitter.Sample) string {
	var b strings.Builder
	b.WriteString(emitter.RequestSetup(h.Route.Method, s))
	pattern := h.Route.Path
	if !strings.HasPrefix(pattern, "/") {
		pattern = "/" + pattern
	}
	b.WriteString("\nrouter := chi.NewRouter()\n")
	fmt.Fprintf(&b, "router.MethodFunc(%s, %s, %s)\n", emitter.MethodExpr(h.Route.Method), strconv.Quote(pattern), h.Name)
	b.WriteString("router.ServeHTTP(rec, req)\n\n")
	return b.String()
}

func (Strategy) TestAssertion(h emitter.Handler) string {
	status := emitter.StatusExpr(h.Status)
	return fmt.Sprintf("if rec.Code != %s {\nt.Fatalf(\"status = %%d, want %%d\", rec.Code, %s)\n}\n", status, status)
}
