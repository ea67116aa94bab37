package spec

// Intermediate representation (IR) consumed by the generator and emitters.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	POST    HttpMethod = "post"
	PUT     HttpMethod = "put"
	DELETE  HttpMethod = "delete"
	PATCH   HttpMethod = "patch"
	HEAD    HttpMethod = "head"
	OPTIONS HttpMethod = "options"
	TRACE   HttpMethod = "trace"
)

// methodOrder is the stable order operations are read from a path item.
var methodOrder = []HttpMethod{GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS, TRACE}

// RouteKind distinguishes served endpoints from webhook/event definitions.
type RouteKind string

const (
	RouteEndpoint RouteKind = "endpoint"
	RouteWebhook  RouteKind = "webhook"
)

// ParamSource is where a parameter is read from.
type ParamSource string

const (
	InPath   ParamSource = "path"
	InQuery  ParamSource = "query"
	InHeader ParamSource = "header"
	InCookie ParamSource = "cookie"
)

// ParamStyle is the serialization style of a parameter.
type ParamStyle string

const (
	StyleSimple         ParamStyle = "simple"
	StyleForm           ParamStyle = "form"
	StyleLabel          ParamStyle = "label"
	StyleMatrix         ParamStyle = "matrix"
	StyleSpaceDelimited ParamStyle = "spaceDelimited"
	StylePipeDelimited  ParamStyle = "pipeDelimited"
	StyleDeepObject     ParamStyle = "deepObject"
	// StyleTabDelimited only arises from the Swagger 2.0 "tsv" collection format.
	StyleTabDelimited ParamStyle = "tabDelimited"
)

// BodyKind records which representation of a request body was chosen.
type BodyKind string

const (
	BodyJSON      BodyKind = "json"
	BodyForm      BodyKind = "form"
	BodyMultipart BodyKind = "multipart"
	BodyText      BodyKind = "text"
	BodyBinary    BodyKind = "binary"
)

type ParsedRoute struct {
	Path        string
	Method      HttpMethod
	HandlerName string // snake_case, always a valid bare identifier
	OperationID string
	Summary     string
	Tags        []string
	Params      []RouteParam
	RequestBody *RequestBody
	Security    []SecurityRequirement
	Response    *Response
	Kind        RouteKind
}

// Group is the first declared tag, or fallback when the route is untagged.
func (r ParsedRoute) Group(fallback string) string {
	if len(r.Tags) > 0 && r.Tags[0] != "" {
		return r.Tags[0]
	}
	return fallback
}

type RouteParam struct {
	Name     string
	In       ParamSource
	Required bool
	Style    ParamStyle
	Explode  bool
	Type     TypeDescriptor
}

type RequestBody struct {
	ContentType string
	Kind        BodyKind
	Required    bool
	Type        TypeDescriptor
}

// Response is the resolved success response of an operation.
type Response struct {
	Status  string
	Type    *TypeDescriptor // nil when the 2xx response has no JSON body
	Headers []ResponseHeader
	Links   []ResponseLink
}

type ResponseHeader struct {
	Name     string
	Required bool
	Type     TypeDescriptor
}

type ResponseLink struct {
	Name         string
	OperationID  string
	OperationRef string
}

// SecurityRequirement is one scheme and the scopes it needs. Scheme details
// are copied from components.securitySchemes when declared there.
type SecurityRequirement struct {
	Scheme string
	Scopes []string

	Type       string // apiKey|http|oauth2|openIdConnect|mutualTLS
	In         string // apiKey location
	ParamName  string // apiKey header/query/cookie name
	HTTPScheme string // bearer, basic, ...
}

// TypeKind classifies a TypeDescriptor.
type TypeKind string

const (
	KindDynamic  TypeKind = "dynamic"
	KindScalar   TypeKind = "scalar"
	KindArray    TypeKind = "array"
	KindMap      TypeKind = "map"
	KindObject   TypeKind = "object"
	KindOptional TypeKind = "optional"
	KindRef      TypeKind = "ref"
	KindUnion    TypeKind = "union"
)

// ScalarKind is the primitive type of a scalar descriptor.
type ScalarKind string

const (
	ScalarString  ScalarKind = "string"
	ScalarInteger ScalarKind = "integer"
	ScalarNumber  ScalarKind = "number"
	ScalarBoolean ScalarKind = "boolean"
	ScalarNull    ScalarKind = "null"
)

// TypeDescriptor is the target-neutral type a schema resolves to.
type TypeDescriptor struct {
	Kind   TypeKind
	Scalar ScalarKind `json:",omitempty" yaml:",omitempty"`
	Format string     `json:",omitempty" yaml:",omitempty"`
	Enum   []string   `json:",omitempty" yaml:",omitempty"`

	// Elem is the element of arrays and maps, and the wrapped type of optionals.
	Elem *TypeDescriptor `json:",omitempty" yaml:",omitempty"`
	// Ref is the component name of a reference.
	Ref string `json:",omitempty" yaml:",omitempty"`
	// Unresolved is the raw reference text when a reference could not be resolved.
	Unresolved string `json:",omitempty" yaml:",omitempty"`

	Fields []Field `json:",omitempty" yaml:",omitempty"`
	// Embeds lists component names merged through allOf.
	Embeds []string `json:",omitempty" yaml:",omitempty"`

	Variants      []ParsedVariant `json:",omitempty" yaml:",omitempty"`
	Discriminator string          `json:",omitempty" yaml:",omitempty"`

	Description string `json:",omitempty" yaml:",omitempty"`
}

type Field struct {
	Name     string
	Required bool
	Type     TypeDescriptor
}

// ParsedVariant is one member of a union. Several discriminator values may
// route to the same variant: the first is the primary alias, the rest are
// secondary aliases.
type ParsedVariant struct {
	Name             string
	Type             *TypeDescriptor `json:",omitempty" yaml:",omitempty"`
	PrimaryAlias     string          `json:",omitempty" yaml:",omitempty"`
	SecondaryAliases []string        `json:",omitempty" yaml:",omitempty"`
}

func dynamicType() TypeDescriptor { return TypeDescriptor{Kind: KindDynamic} }

func scalarType(k ScalarKind, format string) TypeDescriptor {
	return TypeDescriptor{Kind: KindScalar, Scalar: k, Format: format}
}

func optionalOf(t TypeDescriptor) TypeDescriptor {
	if t.Kind == KindOptional {
		return t
	}
	return TypeDescriptor{Kind: KindOptional, Elem: &t}
}

// ModelSchema is a named component schema with its resolved type.
type ModelSchema struct {
	Name string
	Type TypeDescriptor
}

// Resolution is the full IR of one document.
type Resolution struct {
	Title    string
	Version  string
	Routes   []ParsedRoute
	Models   []ModelSchema
	Tags     []string
	Warnings []string
}
