package spec

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RouteOption configures which operations ResolveRoutes keeps.
type RouteOption func(*routeConfig)

type routeConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HttpMethod]struct{}
	pathRes     []*regexp.Regexp
	logger      *slog.Logger
}

func tagSet(dst map[string]struct{}, tags []string) map[string]struct{} {
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if dst == nil {
			dst = make(map[string]struct{}, len(tags))
		}
		dst[t] = struct{}{}
	}
	return dst
}

// WithIncludeTags keeps only operations that have at least one of the given tags.
func WithIncludeTags(tags []string) RouteOption {
	return func(c *routeConfig) { c.includeTags = tagSet(c.includeTags, tags) }
}

// WithExcludeTags removes operations that have any of the given tags.
func WithExcludeTags(tags []string) RouteOption {
	return func(c *routeConfig) { c.excludeTags = tagSet(c.excludeTags, tags) }
}

// WithMethods keeps only operations using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) RouteOption {
	return func(c *routeConfig) {
		if len(methods) == 0 {
			return
		}
		if c.methods == nil {
			c.methods = make(map[HttpMethod]struct{}, len(methods))
		}
		for _, m := range methods {
			c.methods[HttpMethod(strings.ToLower(string(m)))] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only operations whose path matches at least one of
// the provided regular expressions. An invalid pattern never matches.
func WithPathPatterns(patterns []string) RouteOption {
	return func(c *routeConfig) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				re = regexp.MustCompile("a^$")
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

// WithRouteLogger receives warnings about skipped or degraded entities.
func WithRouteLogger(l *slog.Logger) RouteOption {
	return func(c *routeConfig) { c.logger = l }
}

func (c *routeConfig) allow(method HttpMethod, path string, tags []string) bool {
	if len(c.methods) > 0 {
		if _, ok := c.methods[method]; !ok {
			return false
		}
	}
	if len(c.pathRes) > 0 {
		matched := false
		for _, re := range c.pathRes {
			if re.MatchString(path) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(c.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := c.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := c.excludeTags[t]; blocked {
			return false
		}
	}
	return true
}

// ResolveDocument builds the full IR of a document: routes, component
// models, tags and warnings.
func ResolveDocument(doc *Document, opts ...RouteOption) (*Resolution, error) {
	if doc == nil || doc.Root == nil {
		return nil, fmt.Errorf("nil document")
	}
	cfg := &routeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	r := NewResolver(doc, cfg.logger)
	info := lookup(r.doc.Root, "info")
	res := &Resolution{
		Title:   strings.TrimSpace(stringAt(info, "title")),
		Version: strings.TrimSpace(stringAt(info, "version")),
		Routes:  r.routes(cfg),
		Models:  r.Models(),
	}
	res.Tags = collectSortedTags(res.Routes)
	res.Warnings = r.Warnings()
	return res, nil
}

// ResolveRoutes returns one ParsedRoute per operation and webhook, paths in
// document order and methods in a fixed order within each path.
func ResolveRoutes(doc *Document, opts ...RouteOption) ([]ParsedRoute, error) {
	res, err := ResolveDocument(doc, opts...)
	if err != nil {
		return nil, err
	}
	return res.Routes, nil
}

func (r *Resolver) routes(cfg *routeConfig) []ParsedRoute {
	var out []ParsedRoute
	used := map[string]int{}
	visit := func(path string, item *yaml.Node, kind RouteKind) {
		item, ref := r.doc.follow(item)
		if item == nil {
			r.warnUnresolved(ref, path)
			return
		}
		for _, m := range methodOrder {
			op := lookup(item, string(m))
			if !isMapping(op) {
				continue
			}
			route := r.route(path, m, item, op, kind)
			if !cfg.allow(m, path, route.Tags) {
				continue
			}
			if n := used[route.HandlerName]; n > 0 {
				dup := fmt.Sprintf("%s_%d", route.HandlerName, n+1)
				r.warn(fmt.Sprintf("handler name %s already used, %s %s renamed to %s", route.HandlerName, strings.ToUpper(string(m)), path, dup),
					"route", path, "method", m)
				used[route.HandlerName]++
				route.HandlerName = dup
			}
			used[route.HandlerName]++
			out = append(out, route)
		}
	}
	eachPair(lookup(r.doc.Root, "paths"), func(path string, item *yaml.Node) { visit(path, item, RouteEndpoint) })
	eachPair(lookup(r.doc.Root, "webhooks"), func(name string, item *yaml.Node) { visit(name, item, RouteWebhook) })
	return out
}

func (r *Resolver) route(path string, method HttpMethod, item, op *yaml.Node, kind RouteKind) ParsedRoute {
	opID := strings.TrimSpace(stringAt(op, "operationId"))
	var tags []string
	for _, t := range stringList(lookup(op, "tags")) {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return ParsedRoute{
		Path:        path,
		Method:      method,
		HandlerName: DeriveHandlerName(method, path, opID),
		OperationID: opID,
		Summary:     strings.TrimSpace(stringAt(op, "summary")),
		Tags:        tags,
		Params:      r.params(path, lookup(item, "parameters"), lookup(op, "parameters")),
		RequestBody: r.requestBody(path, lookup(op, "requestBody")),
		Security:    r.security(op),
		Response:    r.response(path, lookup(op, "responses")),
		Kind:        kind,
	}
}

func paramKey(in ParamSource, name string) string { return string(in) + ":" + name }

// params merges path-level and operation-level parameters. An operation
// parameter replaces a path parameter with the same name and location in
// place; new ones are appended.
func (r *Resolver) params(path string, levels ...*yaml.Node) []RouteParam {
	var out []RouteParam
	index := map[string]int{}
	for _, list := range levels {
		for _, p := range items(list) {
			rp, ok := r.param(path, p)
			if !ok {
				continue
			}
			key := paramKey(rp.In, rp.Name)
			if i, dup := index[key]; dup {
				out[i] = rp
				continue
			}
			index[key] = len(out)
			out = append(out, rp)
		}
	}
	return out
}

func (r *Resolver) param(path string, p *yaml.Node) (RouteParam, bool) {
	pn, ref := r.doc.follow(p)
	if pn == nil {
		r.warnUnresolved(ref, path)
		return RouteParam{}, false
	}
	name := strings.TrimSpace(stringAt(pn, "name"))
	in := ParamSource(strings.ToLower(stringAt(pn, "in")))
	switch in {
	case InPath, InQuery, InHeader, InCookie:
	default:
		r.logger.Debug("parameter skipped", "route", path, "name", name, "in", in)
		return RouteParam{}, false
	}
	if name == "" {
		return RouteParam{}, false
	}
	required, _ := boolAt(pn, "required")
	style, explode := paramStyle(pn, in)
	typ := dynamicType()
	if s := lookup(pn, "schema"); s != nil {
		typ = r.Schema(s, DefaultRefDepth)
	} else if _, media, _ := pickContent(lookup(pn, "content"), anyMedia); media != nil {
		typ = r.Schema(lookup(media, "schema"), DefaultRefDepth)
	}
	return RouteParam{
		Name:     name,
		In:       in,
		Required: required || in == InPath,
		Style:    style,
		Explode:  explode,
		Type:     typ,
	}, true
}

func defaultStyle(in ParamSource) ParamStyle {
	if in == InQuery || in == InCookie {
		return StyleForm
	}
	return StyleSimple
}

// paramStyle applies the location defaults (path and header: simple, not
// exploded; query and cookie: form, exploded) unless a legacy
// collectionFormat or an explicit style/explode says otherwise.
func paramStyle(p *yaml.Node, in ParamSource) (ParamStyle, bool) {
	if style, explode, ok := collectionFormatStyle(stringAt(p, "collectionFormat"), in); ok {
		return style, explode
	}
	style := ParamStyle(stringAt(p, "style"))
	if style == "" {
		style = defaultStyle(in)
	}
	explode := style == StyleForm
	if v, ok := boolAt(p, "explode"); ok {
		explode = v
	}
	return style, explode
}

func collectionFormatStyle(cf string, in ParamSource) (ParamStyle, bool, bool) {
	switch strings.ToLower(strings.TrimSpace(cf)) {
	case "csv":
		if in == InQuery || in == InCookie {
			return StyleForm, false, true
		}
		return StyleSimple, false, true
	case "ssv":
		return StyleSpaceDelimited, false, true
	case "pipes":
		return StylePipeDelimited, false, true
	case "tsv":
		return StyleTabDelimited, false, true
	case "multi":
		return StyleForm, true, true
	}
	return "", false, false
}

type mediaMatcher struct {
	kind  BodyKind
	match func(base string) bool
}

// bodyPreference is the fixed order request body representations are tried in.
var bodyPreference = []mediaMatcher{
	{BodyJSON, isJSONMedia},
	{BodyForm, func(b string) bool { return b == "application/x-www-form-urlencoded" }},
	{BodyMultipart, func(b string) bool { return strings.HasPrefix(b, "multipart/") }},
	{BodyText, func(b string) bool { return b == "text/plain" }},
	{BodyBinary, func(b string) bool { return b == "application/octet-stream" }},
}

var (
	jsonOnly = []mediaMatcher{{BodyJSON, isJSONMedia}}
	anyMedia = []mediaMatcher{{BodyJSON, func(string) bool { return true }}}
)

func mediaBase(mt string) string {
	base, _, _ := strings.Cut(mt, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

func isJSONMedia(base string) bool {
	return base == "application/json" || strings.HasSuffix(base, "+json")
}

// pickContent returns the first content entry, in document order, matched
// by the earliest matcher in prefs.
func pickContent(content *yaml.Node, prefs []mediaMatcher) (string, *yaml.Node, BodyKind) {
	for _, pref := range prefs {
		keys := mappingKeys(content)
		for _, mt := range keys {
			if pref.match(mediaBase(mt)) {
				return mt, lookup(content, mt), pref.kind
			}
		}
	}
	return "", nil, ""
}

func (r *Resolver) requestBody(path string, n *yaml.Node) *RequestBody {
	if n == nil {
		return nil
	}
	body, ref := r.doc.follow(n)
	if body == nil {
		r.warnUnresolved(ref, path)
		return nil
	}
	mt, media, kind := pickContent(lookup(body, "content"), bodyPreference)
	if media == nil {
		r.logger.Debug("request body has no supported content type", "route", path, "content", mappingKeys(lookup(body, "content")))
		return nil
	}
	required, _ := boolAt(body, "required")
	typ := r.Schema(lookup(media, "schema"), DefaultRefDepth)
	if kind == BodyBinary && typ.Kind == KindDynamic && typ.Unresolved == "" {
		typ = scalarType(ScalarString, "binary")
	}
	return &RequestBody{ContentType: mt, Kind: kind, Required: required, Type: typ}
}

// response picks the first 2xx status (in sorted order) that has a JSON
// body; when none has one the first 2xx still supplies headers and links.
func (r *Resolver) response(path string, responses *yaml.Node) *Response {
	codes := mappingKeys(responses)
	sort.Strings(codes)
	var first *Response
	for _, code := range codes {
		if !strings.HasPrefix(code, "2") {
			continue
		}
		resp, ref := r.doc.follow(lookup(responses, code))
		if resp == nil {
			r.warnUnresolved(ref, path)
			continue
		}
		out := &Response{Status: code, Headers: r.headers(path, resp), Links: links(r.doc, resp)}
		if _, media, _ := pickContent(lookup(resp, "content"), jsonOnly); media != nil {
			t := r.Schema(lookup(media, "schema"), DefaultRefDepth)
			out.Type = &t
			return out
		}
		if first == nil {
			first = out
		}
	}
	return first
}

func (r *Resolver) headers(path string, resp *yaml.Node) []ResponseHeader {
	var out []ResponseHeader
	eachPair(lookup(resp, "headers"), func(name string, h *yaml.Node) {
		hn, ref := r.doc.follow(h)
		if hn == nil {
			r.warnUnresolved(ref, path)
			return
		}
		required, _ := boolAt(hn, "required")
		typ := dynamicType()
		if s := lookup(hn, "schema"); s != nil {
			typ = r.Schema(s, DefaultRefDepth)
		}
		out = append(out, ResponseHeader{Name: name, Required: required, Type: typ})
	})
	return out
}

func links(doc *Document, resp *yaml.Node) []ResponseLink {
	var out []ResponseLink
	eachPair(lookup(resp, "links"), func(name string, l *yaml.Node) {
		ln, _ := doc.follow(l)
		out = append(out, ResponseLink{
			Name:         name,
			OperationID:  stringAt(ln, "operationId"),
			OperationRef: stringAt(ln, "operationRef"),
		})
	})
	return out
}

// security returns the effective requirements: the operation's own list
// when declared (an empty list disables security), otherwise the document
// default. Requirement objects are flattened in document order.
func (r *Resolver) security(op *yaml.Node) []SecurityRequirement {
	sec := lookup(op, "security")
	if sec == nil {
		sec = lookup(r.doc.Root, "security")
	}
	schemes := lookupPath(r.doc.Root, "components", "securitySchemes")
	var out []SecurityRequirement
	for _, req := range items(sec) {
		eachPair(req, func(name string, scopes *yaml.Node) {
			sr := SecurityRequirement{Scheme: name, Scopes: stringList(scopes)}
			if def, _ := r.doc.follow(lookup(schemes, name)); def != nil {
				sr.Type = stringAt(def, "type")
				sr.In = stringAt(def, "in")
				sr.ParamName = stringAt(def, "name")
				sr.HTTPScheme = strings.ToLower(stringAt(def, "scheme"))
			} else {
				r.warn(fmt.Sprintf("security scheme %q is not declared", name), "ref", name)
			}
			out = append(out, sr)
		})
	}
	return out
}

func collectSortedTags(routes []ParsedRoute) []string {
	set := make(map[string]struct{})
	for _, rt := range routes {
		for _, t := range rt.Tags {
			set[t] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
