package emitter

import (
	"encoding/json"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/oapisync/internal/spec"
)

func str() spec.TypeDescriptor {
	return spec.TypeDescriptor{Kind: spec.KindScalar, Scalar: spec.ScalarString}
}

func ptr(t spec.TypeDescriptor) *spec.TypeDescriptor { return &t }

// mustParseDecl fails the test unless text is a valid top-level declaration.
func mustParseDecl(t *testing.T, text string) {
	t.Helper()
	_, err := parser.ParseFile(token.NewFileSet(), "x.go", "package p\n\n"+text, parser.ParseComments)
	require.NoError(t, err, text)
}

func TestImportBlock(t *testing.T) {
	t.Parallel()
	got := ImportBlock([]Import{
		{Path: "github.com/labstack/echo/v4"},
		{Path: "net/http"},
		{Name: "m", Path: "example.com/app/models"},
		{Path: "encoding/json"},
	})
	want := "import (\n" +
		"\t\"encoding/json\"\n" +
		"\t\"net/http\"\n" +
		"\n" +
		"\t\"github.com/labstack/echo/v4\"\n" +
		"\tm \"example.com/app/models\"\n" +
		")\n"
	assert.Equal(t, want, got)
	assert.Empty(t, ImportBlock(nil))
}

func TestImportSet(t *testing.T) {
	t.Parallel()
	var s ImportSet
	s.Add(Import{Path: "time"}, Import{Path: "net/http"}, Import{Path: "time"}, Import{})
	assert.Equal(t, []Import{{Path: "net/http"}, {Path: "time"}}, s.List())
}

func TestVarName(t *testing.T) {
	t.Parallel()
	used := map[string]bool{}
	assert.Equal(t, "limit", VarName("limit", 0, used))
	assert.Equal(t, "limit2", VarName("limit", 1, used))
	assert.Equal(t, "typeParam", VarName("type", 2, used))
	assert.Equal(t, "bodyParam", VarName("body", 3, used))
}

func TestLowerFirst(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"GetUserByID": "getUserByID",
		"IDToken":     "idToken",
		"ID":          "id",
		"already":     "already",
		"":            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, lowerFirst(in), in)
	}
}

func TestRawParamType(t *testing.T) {
	t.Parallel()
	arr := spec.TypeDescriptor{Kind: spec.KindArray, Elem: ptr(str())}
	cases := []struct {
		p    spec.RouteParam
		want string
	}{
		{spec.RouteParam{In: spec.InPath, Style: spec.StyleSimple, Type: str()}, "string"},
		{spec.RouteParam{In: spec.InQuery, Style: spec.StyleForm, Explode: true, Type: arr}, "[]string"},
		{spec.RouteParam{In: spec.InQuery, Style: spec.StyleForm, Explode: false, Type: arr}, "string"},
		{spec.RouteParam{In: spec.InQuery, Style: spec.StylePipeDelimited, Type: arr}, "string"},
		{spec.RouteParam{In: spec.InQuery, Style: spec.StyleDeepObject, Explode: true}, "url.Values"},
		{spec.RouteParam{In: spec.InHeader, Style: spec.StyleSimple, Type: arr}, "string"},
		{spec.RouteParam{In: spec.InCookie, Style: spec.StyleForm, Type: str()}, "*http.Cookie"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, RawParamType(c.p), "%+v", c.p)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 200, SuccessStatus(nil))
	assert.Equal(t, 201, SuccessStatus(&spec.Response{Status: "201"}))
	assert.Equal(t, 200, SuccessStatus(&spec.Response{Status: "2XX"}))
	assert.Equal(t, "http.StatusCreated", StatusExpr(201))
	assert.Equal(t, "299", StatusExpr(299))
	assert.Equal(t, "http.MethodPatch", MethodExpr(spec.PATCH))
}

func TestGoType(t *testing.T) {
	t.Parallel()
	m := TypeMapper{Qualifier: "models.", ModelsImport: Import{Path: "example.com/app/models"}}
	cases := []struct {
		in   spec.TypeDescriptor
		want string
	}{
		{str(), "string"},
		{spec.TypeDescriptor{Kind: spec.KindScalar, Scalar: spec.ScalarString, Format: "date-time"}, "time.Time"},
		{spec.TypeDescriptor{Kind: spec.KindScalar, Scalar: spec.ScalarString, Format: "binary"}, "[]byte"},
		{spec.TypeDescriptor{Kind: spec.KindScalar, Scalar: spec.ScalarInteger, Format: "int64"}, "int64"},
		{spec.TypeDescriptor{Kind: spec.KindScalar, Scalar: spec.ScalarInteger}, "int"},
		{spec.TypeDescriptor{Kind: spec.KindScalar, Scalar: spec.ScalarNumber, Format: "float"}, "float32"},
		{spec.TypeDescriptor{Kind: spec.KindScalar, Scalar: spec.ScalarBoolean}, "bool"},
		{spec.TypeDescriptor{Kind: spec.KindArray, Elem: ptr(spec.TypeDescriptor{Kind: spec.KindRef, Ref: "Pet"})}, "[]models.Pet"},
		{spec.TypeDescriptor{Kind: spec.KindMap, Elem: ptr(str())}, "map[string]string"},
		{spec.TypeDescriptor{Kind: spec.KindOptional, Elem: ptr(str())}, "*string"},
		{spec.TypeDescriptor{Kind: spec.KindOptional, Elem: ptr(spec.TypeDescriptor{Kind: spec.KindArray, Elem: ptr(str())})}, "[]string"},
		{spec.TypeDescriptor{Kind: spec.KindObject}, "map[string]any"},
		{spec.TypeDescriptor{Kind: spec.KindUnion}, "json.RawMessage"},
		{spec.TypeDescriptor{Kind: spec.KindDynamic}, "any"},
	}
	for _, c := range cases {
		var imps ImportSet
		assert.Equal(t, c.want, m.GoType(c.in, &imps), "%+v", c.in)
	}

	var imps ImportSet
	m.GoType(spec.TypeDescriptor{Kind: spec.KindRef, Ref: "user-profile"}, &imps)
	assert.Equal(t, []Import{{Path: "example.com/app/models"}}, imps.List())
}

func TestModelDecl_Struct(t *testing.T) {
	t.Parallel()
	m := TypeMapper{}
	model := m.ModelDecl(spec.ModelSchema{Name: "Pet", Type: spec.TypeDescriptor{
		Kind:        spec.KindObject,
		Description: "A pet in the store.",
		Embeds:      []string{"Base"},
		Fields: []spec.Field{
			{Name: "id", Required: true, Type: str()},
			{Name: "born_at", Type: spec.TypeDescriptor{Kind: spec.KindScalar, Scalar: spec.ScalarString, Format: "date-time"}},
			{Name: "parent", Required: true, Type: spec.TypeDescriptor{Kind: spec.KindRef, Ref: "Pet"}},
			{Name: "tags", Type: spec.TypeDescriptor{Kind: spec.KindArray, Elem: ptr(str())}},
		},
	}})
	mustParseDecl(t, model.Text)
	assert.True(t, model.Struct)
	assert.Equal(t, "Pet", model.Name)
	assert.Contains(t, model.Text, "// Pet is the Pet schema.\n//\n// A pet in the store.\ntype Pet struct {")
	assert.Contains(t, model.Text, "\tBase\n")
	assert.Contains(t, model.Text, "`json:\"id\"`")
	assert.Contains(t, model.Text, "*time.Time")
	assert.Contains(t, model.Text, "`json:\"born_at,omitempty\"`")
	assert.Contains(t, model.Text, "*Pet")
	assert.Equal(t, []Import{{Path: "time"}}, model.Imports)

	require.Len(t, model.Fields, 4)
	assert.Equal(t, ModelField{Name: "BornAt", Type: "*time.Time", Tag: `json:"born_at,omitempty"`, Imports: []Import{{Path: "time"}}}, model.Fields[1])
	assert.Equal(t, "[]string", model.Fields[3].Type)
}

func TestModelDecl_Enum(t *testing.T) {
	t.Parallel()
	model := TypeMapper{}.ModelDecl(spec.ModelSchema{Name: "status", Type: spec.TypeDescriptor{
		Kind: spec.KindScalar, Scalar: spec.ScalarString, Enum: []string{"active", "on-hold", ""},
	}})
	mustParseDecl(t, model.Text)
	assert.False(t, model.Struct)
	assert.Contains(t, model.Text, "type Status string")
	assert.Regexp(t, `StatusActive\s+Status = "active"`, model.Text)
	assert.Regexp(t, `StatusOnHold\s+Status = "on-hold"`, model.Text)
	assert.Regexp(t, `StatusValue2\s+Status = ""`, model.Text)

	ints := TypeMapper{}.ModelDecl(spec.ModelSchema{Name: "Level", Type: spec.TypeDescriptor{
		Kind: spec.KindScalar, Scalar: spec.ScalarInteger, Enum: []string{"1", "-2", "oops"},
	}})
	mustParseDecl(t, ints.Text)
	assert.Regexp(t, `Level1\s+Level = 1\n`, ints.Text)
	assert.Regexp(t, `LevelMinus2\s+Level = -2\n`, ints.Text)
	assert.NotContains(t, ints.Text, "oops")
}

func TestModelDecl_Union(t *testing.T) {
	t.Parallel()
	cat := spec.TypeDescriptor{Kind: spec.KindRef, Ref: "Cat"}
	inline := spec.TypeDescriptor{Kind: spec.KindObject, Fields: []spec.Field{{Name: "name", Type: str()}}}
	model := TypeMapper{}.ModelDecl(spec.ModelSchema{Name: "Pet", Type: spec.TypeDescriptor{
		Kind:          spec.KindUnion,
		Discriminator: "petType",
		Variants: []spec.ParsedVariant{
			{Name: "Cat", Type: &cat, PrimaryAlias: "cat", SecondaryAliases: []string{"kitten"}},
			{Name: "Variant2", Type: &inline},
		},
	}})
	mustParseDecl(t, model.Text)
	assert.Regexp(t, "Cat\\s+\\*Cat\\s+`json:\"-\"`", model.Text)
	assert.Contains(t, model.Text, "var PetVariants = map[string]string{")
	assert.Less(t, strings.Index(model.Text, `"cat":`), strings.Index(model.Text, `"kitten":`))
	assert.Contains(t, model.Text, "// PetVariants maps each petType value to the variant it selects.")
}

func TestModelDecl_Other(t *testing.T) {
	t.Parallel()
	m := TypeMapper{}
	tags := m.ModelDecl(spec.ModelSchema{Name: "Tags", Type: spec.TypeDescriptor{Kind: spec.KindArray, Elem: ptr(str())}})
	assert.Contains(t, tags.Text, "type Tags []string")
	anything := m.ModelDecl(spec.ModelSchema{Name: "Anything", Type: spec.TypeDescriptor{Kind: spec.KindDynamic}})
	assert.Contains(t, anything.Text, "type Anything = any")
	nullable := m.ModelDecl(spec.ModelSchema{Name: "Name", Type: spec.TypeDescriptor{Kind: spec.KindOptional, Elem: ptr(str())}})
	assert.Contains(t, nullable.Text, "type Name string")
}

func TestFormatDecl(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "func F() {\n\treturn\n}\n", FormatDecl("func F() {\nreturn\n}"))
	assert.Equal(t, "func F( {\n", FormatDecl("func F( {"))
}

func TestCredentialFunc(t *testing.T) {
	t.Parallel()
	reqs := []spec.SecurityRequirement{
		{Scheme: "bearerAuth", Type: "http", HTTPScheme: "bearer", Scopes: []string{"read"}},
		{Scheme: "basic", Type: "http", HTTPScheme: "basic"},
		{Scheme: "key", Type: "apiKey", In: "header", ParamName: "X-API-Key"},
		{Scheme: "qkey", Type: "apiKey", In: "query", ParamName: "api_key"},
		{Scheme: "session", Type: "apiKey", In: "cookie", ParamName: "sid"},
		{Scheme: "mtls", Type: "mutualTLS"},
		{Scheme: "bearerAuth", Type: "http", HTTPScheme: "bearer"},
	}
	d := CredentialFunc("getPetCredential", "GetPet", reqs)
	mustParseDecl(t, d.Text)
	assert.Equal(t, "getPetCredential", d.Name)
	assert.Contains(t, d.Text, "// Accepted: bearerAuth (read), basic, key, qkey, session, mtls.")
	assert.Contains(t, d.Text, `strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")`)
	assert.Contains(t, d.Text, "r.BasicAuth()")
	assert.Contains(t, d.Text, `r.Header.Get("X-API-Key")`)
	assert.Contains(t, d.Text, `r.URL.Query().Get("api_key")`)
	assert.Contains(t, d.Text, `r.Cookie("sid")`)
	assert.Contains(t, d.Text, "r.TLS.PeerCertificates")
	assert.Equal(t, 1, strings.Count(d.Text, `return "bearerAuth"`))

	assert.Equal(t, []Import{{Path: "net/http"}, {Path: "strings"}}, CredentialImports(reqs))
	assert.Equal(t, []Import{{Path: "net/http"}}, CredentialImports(reqs[1:3]))
}

func sampleRoute() spec.ParsedRoute {
	return spec.ParsedRoute{
		Path:        "/users/{id}/posts",
		Method:      spec.POST,
		HandlerName: "create_user_post",
		Params: []spec.RouteParam{
			{Name: "id", In: spec.InPath, Required: true, Type: spec.TypeDescriptor{Kind: spec.KindScalar, Scalar: spec.ScalarInteger}},
			{Name: "tags", In: spec.InQuery, Required: true, Style: spec.StyleForm, Explode: true, Type: spec.TypeDescriptor{Kind: spec.KindArray, Elem: ptr(str())}},
			{Name: "verbose", In: spec.InQuery, Type: spec.TypeDescriptor{Kind: spec.KindScalar, Scalar: spec.ScalarBoolean}},
			{Name: "X-Trace", In: spec.InHeader, Required: true, Type: str()},
		},
		RequestBody: &spec.RequestBody{ContentType: "application/json", Kind: spec.BodyJSON, Required: true,
			Type: spec.TypeDescriptor{Kind: spec.KindRef, Ref: "NewPost"}},
		Security: []spec.SecurityRequirement{{Scheme: "key", Type: "apiKey", In: "query", ParamName: "api_key"}},
	}
}

func TestNewSample(t *testing.T) {
	t.Parallel()
	models := map[string]spec.TypeDescriptor{
		"NewPost": {Kind: spec.KindObject, Fields: []spec.Field{
			{Name: "title", Required: true, Type: str()},
			{Name: "status", Type: spec.TypeDescriptor{Kind: spec.KindScalar, Scalar: spec.ScalarString, Enum: []string{"draft", "live"}}},
		}},
	}
	r := sampleRoute()
	s := NewSample(r, models)
	assert.Equal(t, s, NewSample(r, models), "samples are deterministic")

	require.Len(t, s.PathParams, 1)
	assert.Equal(t, "id", s.PathParams[0].Name)
	assert.True(t, strings.HasPrefix(s.Target, "/users/"+s.PathParams[0].Value+"/posts?"), s.Target)
	assert.Contains(t, s.Target, "tags=")
	assert.Contains(t, s.Target, "api_key=")
	assert.NotContains(t, s.Target, "verbose=")
	require.Len(t, s.Headers, 1)
	assert.Equal(t, "X-Trace", s.Headers[0].Name)

	assert.True(t, s.HasBody)
	assert.Equal(t, "application/json", s.ContentType)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(s.Body), &body))
	assert.Equal(t, "draft", body["status"])
	assert.NotEmpty(t, body["title"])
}

func TestNewSample_Bodies(t *testing.T) {
	t.Parallel()
	obj := spec.TypeDescriptor{Kind: spec.KindObject, Fields: []spec.Field{{Name: "b", Required: true, Type: str()}, {Name: "a", Required: true, Type: str()}}}
	r := spec.ParsedRoute{Path: "upload", Method: spec.PUT, HandlerName: "upload",
		RequestBody: &spec.RequestBody{ContentType: "multipart/form-data", Kind: spec.BodyMultipart, Type: obj},
		Security:    []spec.SecurityRequirement{{Scheme: "mtls", Type: "mutualTLS"}, {Scheme: "basic", Type: "http", HTTPScheme: "basic"}},
	}
	s := NewSample(r, nil)
	assert.Equal(t, "/upload", s.Target)
	assert.Equal(t, "multipart/form-data; boundary="+MultipartBoundary, s.ContentType)
	assert.Less(t, strings.Index(s.Body, `name="a"`), strings.Index(s.Body, `name="b"`))
	assert.True(t, strings.HasSuffix(s.Body, "--"+MultipartBoundary+"--\r\n"))
	require.Len(t, s.Headers, 1)
	assert.True(t, strings.HasPrefix(s.Headers[0].Value, "Basic "))

	r.RequestBody = &spec.RequestBody{ContentType: "application/x-www-form-urlencoded", Kind: spec.BodyForm, Type: obj}
	s = NewSample(r, nil)
	assert.True(t, strings.HasPrefix(s.Body, "a="), s.Body)

	r.RequestBody = &spec.RequestBody{ContentType: "*/*", Kind: spec.BodyBinary}
	assert.Equal(t, "application/octet-stream", NewSample(r, nil).ContentType)
}

func TestRequestSetup(t *testing.T) {
	t.Parallel()
	got := RequestSetup(spec.GET, Sample{
		Target:  "/pets?limit=3",
		Headers: []Pair{{"X-Trace", "abc"}},
		Cookies: []Pair{{"sid", "s1"}},
	})
	assert.Equal(t, `req := httptest.NewRequest(http.MethodGet, "/pets?limit=3", nil)
req.Header.Set("X-Trace", "abc")
req.AddCookie(&http.Cookie{Name: "sid", Value: "s1"})
rec := httptest.NewRecorder()
`, got)

	got = RequestSetup(spec.POST, Sample{Target: "/pets", HasBody: true, Body: `{"a":1}`, ContentType: "application/json"})
	assert.Contains(t, got, `strings.NewReader("{\"a\":1}")`)
	assert.Contains(t, got, `req.Header.Set("Content-Type", "application/json")`)
}

func TestHandlerDoc(t *testing.T) {
	t.Parallel()
	h := Handler{
		Name:     "GetPet",
		Response: "models.Pet",
		Status:   200,
		Route: spec.ParsedRoute{Path: "/pets/{id}", Method: spec.GET, Summary: "Fetch a pet",
			Response: &spec.Response{Status: "200",
				Headers: []spec.ResponseHeader{{Name: "X-Rate-Limit", Required: true}},
				Links:   []spec.ResponseLink{{Name: "owner", OperationID: "getOwner"}}}},
	}
	assert.Equal(t, "// GetPet handles GET /pets/{id}.\n"+
		"//\n"+
		"// Fetch a pet\n"+
		"// Responds 200 with models.Pet.\n"+
		"// Response headers: X-Rate-Limit (required).\n"+
		"// Link owner: getOwner.\n", HandlerDoc(h))

	h = Handler{Name: "OnUserCreated", Route: spec.ParsedRoute{Path: "userCreated", Method: spec.POST, Kind: spec.RouteWebhook}}
	assert.Equal(t, "// OnUserCreated receives the userCreated webhook (POST).\n", HandlerDoc(h))
}
