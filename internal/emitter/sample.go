package emitter

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/mark3labs/oapisync/internal/spec"
)

// MultipartBoundary separates parts of generated multipart sample bodies.
const MultipartBoundary = "oapisync-boundary"

// maxSampleDepth bounds how far references are followed when building a
// sample body.
const maxSampleDepth = 4

// Pair is an ordered name/value pair.
type Pair struct {
	Name  string
	Value string
}

// Sample is a request that satisfies one route, used by generated tests.
// The same route always yields the same sample.
type Sample struct {
	// Target is the request URI: path parameters substituted, query encoded.
	Target      string
	PathParams  []Pair
	Headers     []Pair
	Cookies     []Pair
	HasBody     bool
	Body        string
	ContentType string
}

// SeedFor derives a stable faker seed from a name.
func SeedFor(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64() & math.MaxInt64)
}

type sampler struct {
	f      *gofakeit.Faker
	models map[string]spec.TypeDescriptor
}

// NewSample builds a request for r. Required parameters, the first usable
// credential and the request body are filled with deterministic fake data;
// models resolves component references inside bodies.
func NewSample(r spec.ParsedRoute, models map[string]spec.TypeDescriptor) Sample {
	g := &sampler{f: gofakeit.New(SeedFor(r.HandlerName)), models: models}
	var s Sample
	path := r.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	query := url.Values{}
	for _, p := range r.Params {
		if !p.Required && p.In != spec.InPath {
			continue
		}
		v := g.paramValue(p.Type)
		switch p.In {
		case spec.InPath:
			s.PathParams = append(s.PathParams, Pair{p.Name, v})
			path = strings.ReplaceAll(path, "{"+p.Name+"}", url.PathEscape(v))
		case spec.InQuery:
			query.Add(p.Name, v)
		case spec.InHeader:
			s.Headers = append(s.Headers, Pair{p.Name, v})
		case spec.InCookie:
			s.Cookies = append(s.Cookies, Pair{p.Name, v})
		}
	}
	if in, name, value, ok := sampleCredential(r.Security, g.f.LetterN(24), g.f.Username(), g.f.LetterN(12)); ok {
		switch in {
		case spec.InHeader:
			s.Headers = append(s.Headers, Pair{name, value})
		case spec.InQuery:
			query.Set(name, value)
		case spec.InCookie:
			s.Cookies = append(s.Cookies, Pair{name, value})
		}
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	s.Target = path
	if b := r.RequestBody; b != nil {
		s.HasBody = true
		s.Body, s.ContentType = g.body(b)
	}
	return s
}

func basicToken(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

func (g *sampler) body(b *spec.RequestBody) (body, contentType string) {
	contentType = b.ContentType
	if strings.Contains(contentType, "*") {
		contentType = "application/octet-stream"
	}
	switch b.Kind {
	case spec.BodyJSON:
		data, err := json.Marshal(g.value(b.Type, 0))
		if err != nil {
			return "{}", contentType
		}
		return string(data), contentType
	case spec.BodyForm:
		form := url.Values{}
		for _, kv := range g.flat(b.Type) {
			form.Add(kv.Name, kv.Value)
		}
		return form.Encode(), contentType
	case spec.BodyMultipart:
		var sb strings.Builder
		for _, kv := range g.flat(b.Type) {
			fmt.Fprintf(&sb, "--%s\r\nContent-Disposition: form-data; name=%q\r\n\r\n%s\r\n", MultipartBoundary, kv.Name, kv.Value)
		}
		fmt.Fprintf(&sb, "--%s--\r\n", MultipartBoundary)
		return sb.String(), "multipart/form-data; boundary=" + MultipartBoundary
	case spec.BodyText:
		return g.f.Sentence(6), contentType
	}
	return g.f.LetterN(32), contentType
}

// flat renders the top-level properties of an object body as strings,
// sorted by name.
func (g *sampler) flat(t spec.TypeDescriptor) []Pair {
	obj, ok := g.value(t, 0).(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Pair, 0, len(keys))
	for _, k := range keys {
		out = append(out, Pair{k, stringify(obj[k])})
	}
	return out
}

func stringify(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case nil:
		return ""
	case map[string]any, []any:
		data, _ := json.Marshal(v)
		return string(data)
	}
	return fmt.Sprint(v)
}

func (g *sampler) paramValue(t spec.TypeDescriptor) string {
	v := g.value(t, 0)
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return ""
		}
		v = list[0]
	}
	return stringify(v)
}

func (g *sampler) value(t spec.TypeDescriptor, depth int) any {
	if depth > maxSampleDepth {
		return nil
	}
	switch t.Kind {
	case spec.KindScalar:
		return g.scalar(t)
	case spec.KindArray:
		if t.Elem == nil {
			return []any{}
		}
		return []any{g.value(*t.Elem, depth+1)}
	case spec.KindMap:
		if t.Elem == nil {
			return map[string]any{}
		}
		return map[string]any{g.f.Word(): g.value(*t.Elem, depth+1)}
	case spec.KindOptional:
		if t.Elem == nil {
			return nil
		}
		return g.value(*t.Elem, depth)
	case spec.KindRef:
		m, ok := g.models[t.Ref]
		if !ok {
			return nil
		}
		return g.value(m, depth+1)
	case spec.KindObject:
		obj := map[string]any{}
		for _, e := range t.Embeds {
			if m, ok := g.models[e]; ok {
				if inner, ok := g.value(m, depth+1).(map[string]any); ok {
					for k, v := range inner {
						obj[k] = v
					}
				}
			}
		}
		for _, f := range t.Fields {
			if v := g.value(f.Type, depth+1); v != nil || f.Required {
				obj[f.Name] = v
			}
		}
		return obj
	case spec.KindUnion:
		if len(t.Variants) == 0 {
			return nil
		}
		first := t.Variants[0]
		var v any
		if first.Type != nil {
			v = g.value(*first.Type, depth)
		}
		if obj, ok := v.(map[string]any); ok && t.Discriminator != "" && first.PrimaryAlias != "" {
			obj[t.Discriminator] = first.PrimaryAlias
		}
		return v
	}
	return g.f.Word()
}

func (g *sampler) scalar(t spec.TypeDescriptor) any {
	if len(t.Enum) > 0 {
		v := t.Enum[0]
		switch t.Scalar {
		case spec.ScalarInteger:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				return n
			}
		case spec.ScalarNumber:
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				return n
			}
		case spec.ScalarBoolean:
			return v == "true"
		}
		return v
	}
	switch t.Scalar {
	case spec.ScalarInteger:
		return g.f.Number(1, 1000)
	case spec.ScalarNumber:
		return math.Round(g.f.Float64Range(1, 100)*100) / 100
	case spec.ScalarBoolean:
		return g.f.Bool()
	case spec.ScalarNull:
		return nil
	}
	switch t.Format {
	case "date-time":
		return g.f.Date().UTC().Format(time.RFC3339)
	case "date":
		return g.f.Date().UTC().Format(time.DateOnly)
	case "uuid":
		return g.f.UUID()
	case "email":
		return g.f.Email()
	case "uri", "url":
		return g.f.URL()
	case "ipv4":
		return g.f.IPv4Address()
	case "byte":
		return base64.StdEncoding.EncodeToString([]byte(g.f.Word()))
	}
	return g.f.Word()
}

// RequestSetup renders the statements building req and rec for a sample.
func RequestSetup(m spec.HttpMethod, s Sample) string {
	var b strings.Builder
	body := "nil"
	if s.HasBody {
		body = "strings.NewReader(" + strconv.Quote(s.Body) + ")"
	}
	fmt.Fprintf(&b, "req := httptest.NewRequest(%s, %s, %s)\n", MethodExpr(m), strconv.Quote(s.Target), body)
	if s.HasBody && s.ContentType != "" {
		fmt.Fprintf(&b, "req.Header.Set(\"Content-Type\", %s)\n", strconv.Quote(s.ContentType))
	}
	for _, h := range s.Headers {
		fmt.Fprintf(&b, "req.Header.Set(%s, %s)\n", strconv.Quote(h.Name), strconv.Quote(h.Value))
	}
	for _, c := range s.Cookies {
		fmt.Fprintf(&b, "req.AddCookie(&http.Cookie{Name: %s, Value: %s})\n", strconv.Quote(c.Name), strconv.Quote(c.Value))
	}
	b.WriteString("rec := httptest.NewRecorder()\n")
	return b.String()
}
