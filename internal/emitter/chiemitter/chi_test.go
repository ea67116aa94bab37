package chiemitter

import (
	"go/parser"
	"go/token"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/oapisync/internal/emitter"
	"github.com/mark3labs/oapisync/internal/spec"
)

func parseDecl(t *testing.T, text string) {
	t.Helper()
	_, err := parser.ParseFile(token.NewFileSet(), "x.go", "package handlers\n\n"+text, parser.ParseComments)
	require.NoError(t, err, text)
}

var mapper = emitter.TypeMapper{Qualifier: "models.", ModelsImport: emitter.Import{Path: "example.com/app/models"}}

func listPets() spec.ParsedRoute {
	pets := spec.TypeDescriptor{Kind: spec.KindArray, Elem: &spec.TypeDescriptor{Kind: spec.KindRef, Ref: "Pet"}}
	return spec.ParsedRoute{
		Path: "/owners/{ownerId}/pets", Method: spec.GET, HandlerName: "list_pets",
		Params: []spec.RouteParam{
			{Name: "ownerId", In: spec.InPath, Required: true, Style: spec.StyleSimple,
				Type: spec.TypeDescriptor{Kind: spec.KindScalar, Scalar: spec.ScalarInteger}},
			{Name: "filter", In: spec.InQuery, Style: spec.StyleDeepObject, Explode: true,
				Type: spec.TypeDescriptor{Kind: spec.KindObject}},
			{Name: "limit", In: spec.InQuery, Style: spec.StyleForm, Explode: true,
				Type: spec.TypeDescriptor{Kind: spec.KindScalar, Scalar: spec.ScalarInteger}},
		},
		Security: []spec.SecurityRequirement{{Scheme: "api_key", Type: "apiKey", In: "header", ParamName: "X-API-Key"}},
		Response: &spec.Response{Status: "200", Type: &pets},
	}
}

func TestHandlerStub(t *testing.T) {
	t.Parallel()
	s := New()
	h := emitter.NewHandler(s, listPets(), mapper)
	assert.Equal(t, "ListPets", h.Name)
	assert.Equal(t, "[]models.Pet", h.Response)

	d := s.HandlerStub(h)
	parseDecl(t, d.Text)
	assert.Contains(t, d.Text, "func ListPets(w http.ResponseWriter, r *http.Request) {")
	assert.Contains(t, d.Text, "if _, _, ok := listPetsCredential(r); !ok {")
	assert.Contains(t, d.Text, `ownerID := chi.URLParam(r, "ownerId")`)
	assert.Contains(t, d.Text, "filter := r.URL.Query()\n")
	assert.Contains(t, d.Text, `limit := r.URL.Query().Get("limit")`)
	assert.Contains(t, d.Text, "var resp []models.Pet")
	assert.Contains(t, d.Text, "w.WriteHeader(http.StatusOK)")
	assert.Contains(t, d.Text, "_ = json.NewEncoder(w).Encode(resp)")

	assert.Equal(t, []emitter.Import{
		{Path: "encoding/json"},
		{Path: "example.com/app/models"},
		{Path: "github.com/go-chi/chi/v5"},
		{Path: "net/http"},
		{Path: "net/url"},
	}, s.Imports(emitter.RoleHandlers, []emitter.Handler{h}))
}

func TestHandlerStub_Bodies(t *testing.T) {
	t.Parallel()
	s := New()
	base := spec.ParsedRoute{Path: "/upload", Method: spec.PUT, HandlerName: "upload", Response: &spec.Response{Status: "204"}}
	for kind, want := range map[spec.BodyKind]string{
		spec.BodyJSON:      "if err := json.NewDecoder(r.Body).Decode(&body); err != nil {",
		spec.BodyForm:      "body := r.PostForm",
		spec.BodyMultipart: "if err := r.ParseMultipartForm(32 << 20); err != nil {",
		spec.BodyBinary:    "body, err := io.ReadAll(r.Body)",
	} {
		r := base
		r.RequestBody = &spec.RequestBody{Kind: kind, ContentType: "x/y", Type: spec.TypeDescriptor{Kind: spec.KindDynamic}}
		d := s.HandlerStub(emitter.NewHandler(s, r, mapper))
		parseDecl(t, d.Text)
		assert.Contains(t, d.Text, want, kind)
		assert.Contains(t, d.Text, "w.WriteHeader(http.StatusNoContent)")
	}
}

func TestRegistration(t *testing.T) {
	t.Parallel()
	s := New()
	reg, ok := s.Registration(listPets(), "handlers.ListPets")
	require.True(t, ok)
	assert.Equal(t, `r.Get("/owners/{ownerId}/pets", handlers.ListPets)`, reg.Statement)
	assert.Equal(t, `r.Get("/owners/{ownerId}/pets", handlers.ListPets`, reg.DedupeKey)

	fn := s.RegistrationFunc("Mount")
	parseDecl(t, fn.Text)
	assert.Contains(t, fn.Text, "func Mount(r chi.Router) {")
	assert.Equal(t, []emitter.Import{{Path: "github.com/go-chi/chi/v5"}}, s.Imports(emitter.RoleRoutes, nil))
}

func TestTestFunc(t *testing.T) {
	t.Parallel()
	s := New()
	r := listPets()
	d := emitter.TestFunc(s, emitter.NewHandler(s, r, mapper), emitter.NewSample(r, nil))
	parseDecl(t, d.Text)
	assert.Contains(t, d.Text, "router := chi.NewRouter()")
	assert.Contains(t, d.Text, `router.MethodFunc(http.MethodGet, "/owners/{ownerId}/pets", ListPets)`)
	assert.Contains(t, d.Text, `req.Header.Set("X-API-Key", `)
	assert.Contains(t, d.Text, "router.ServeHTTP(rec, req)")
	assert.Contains(t, d.Text, "if rec.Code != http.StatusOK {")
	assert.NotContains(t, d.Text, "strings.NewReader")
}

func TestRoutePattern_MatchesRouter(t *testing.T) {
	t.Parallel()
	r := listPets()
	reg, ok := New().Registration(r, "h")
	require.True(t, ok)
	require.Contains(t, reg.Statement, `"/owners/{ownerId}/pets"`)

	router := chi.NewRouter()
	var owner string
	router.Get(r.Path, func(w http.ResponseWriter, req *http.Request) {
		owner = chi.URLParam(req, "ownerId")
		w.WriteHeader(http.StatusNoContent)
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/owners/17/pets", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "17", owner)
	assert.Equal(t, "Get", routerMethod(spec.GET))
	assert.Equal(t, "Delete", routerMethod(spec.DELETE))
}
