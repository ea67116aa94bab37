package spec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader and resolver errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	DocumentError   ErrorCode = "DocumentError"
	ValidationError ErrorCode = "ValidationError"
	ConversionError ErrorCode = "ConversionError"
	// UnresolvedReference is never returned as a fatal error; it labels warnings.
	UnresolvedReference ErrorCode = "UnresolvedReference"
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // file path
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// Dialect is the OpenAPI or Swagger version a document was written against.
type Dialect string

const (
	DialectSwagger2  Dialect = "swagger-2.0"
	DialectOpenAPI30 Dialect = "openapi-3.0"
	DialectOpenAPI31 Dialect = "openapi-3.1"
)

// Document is a decoded contract. Swagger 2.0 input has already been
// upgraded to the OpenAPI 3 layout; Dialect still records the original.
type Document struct {
	Root     *yaml.Node
	Version  string
	Dialect  Dialect
	SelfID   string
	Location string

	canonical bool
}

// Canonical reports whether the document went through Normalize.
func (d *Document) Canonical() bool { return d.canonical }

// Settings configures loader behavior.
type Settings struct {
	// Validate runs kin-openapi structural validation. Only Swagger 2.0 and
	// OpenAPI 3.0.x are validated; newer dialects are skipped with a debug log.
	Validate bool
	Logger   *slog.Logger
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{Logger: discardLogger()}
}

// Option mutates Settings.
type Option func(*Settings)

func WithValidation(on bool) Option { return func(s *Settings) { s.Validate = on } }
func WithLogger(l *slog.Logger) Option {
	return func(s *Settings) {
		if l != nil {
			s.Logger = l
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Load reads and decodes a contract from a local file. Remote documents are
// rejected: resolution never performs network I/O.
func Load(ctx context.Context, input string, opts ...Option) (*Document, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &SpecError{Code: InputError, Message: "spec: input is empty"}
	}

	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	// Single-letter schemes are Windows drive letters.
	if u, err := url.Parse(input); err == nil && len(u.Scheme) > 1 {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("spec: remote documents are not supported (%s)", u.Scheme), Location: input}
	}

	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: input, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &SpecError{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
	}

	doc, err := Parse(raw, abs)
	if err != nil {
		return nil, err
	}

	if settings.Validate {
		if doc.Dialect == DialectOpenAPI31 {
			settings.Logger.Debug("validation skipped for dialect", "dialect", doc.Dialect, "file", abs)
		} else if err := validateDocument(ctx, raw, doc.Dialect, abs); err != nil {
			return nil, err
		}
	}
	settings.Logger.Debug("loaded document", "file", abs, "version", doc.Version, "dialect", doc.Dialect)
	return doc, nil
}

// Parse decodes YAML or JSON contract bytes. location is only used in errors.
func Parse(data []byte, location string) (*Document, error) {
	version, err := detectSpecVersion(data)
	if err != nil {
		return nil, &SpecError{Code: DocumentError, Message: err.Error(), Location: location, Cause: err}
	}

	doc := &Document{Version: version, Location: location}
	switch {
	case strings.HasPrefix(version, "2."):
		doc.Dialect = DialectSwagger2
		root, err := upgradeV2(data)
		if err != nil {
			return nil, &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: location, Cause: err}
		}
		doc.Root = root
	default:
		doc.Dialect = DialectOpenAPI31
		if strings.HasPrefix(version, "3.0") {
			doc.Dialect = DialectOpenAPI30
		}
		var n yaml.Node
		if err := yaml.Unmarshal(data, &n); err != nil {
			return nil, &SpecError{Code: DocumentError, Message: fmt.Sprintf("parse spec: %v", err), Location: location, Cause: err}
		}
		doc.Root = deref(&n)
	}

	if !isMapping(doc.Root) {
		return nil, &SpecError{Code: DocumentError, Message: "spec: document root is not a mapping", Location: location}
	}
	doc.SelfID = strings.TrimSpace(stringAt(doc.Root, "$self"))
	return doc, nil
}

// detectSpecVersion returns the declared openapi/swagger version string.
func detectSpecVersion(data []byte) (string, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return "", fmt.Errorf("parse spec: %w", err)
	}
	if v, ok := root["openapi"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "3.") {
			return strings.TrimSpace(s), nil
		}
	}
	if v, ok := root["swagger"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
			return strings.TrimSpace(s), nil
		}
	}
	return "", fmt.Errorf("spec: missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
}

func validateDocument(ctx context.Context, raw []byte, dialect Dialect, location string) error {
	var (
		doc *openapi3.T
		err error
	)
	switch dialect {
	case DialectSwagger2:
		if fixed, changed, _ := preprocessV2ForCompatibility(raw); changed {
			raw = fixed
		}
		doc, err = convertV2ToV3(raw)
		if err != nil {
			return &SpecError{Code: ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: location, Cause: err}
		}
	default:
		loader := openapi3.NewLoader()
		doc, err = loader.LoadFromData(raw)
		if err != nil {
			return mapValidateOrParseErr(err, location)
		}
	}
	if err := doc.Validate(ctx); err != nil && !canProceedDespiteValidation(err) {
		return mapValidateOrParseErr(err, location)
	}
	return nil
}

func mapValidateOrParseErr(err error, location string) error {
	pointer := extractJSONPointer(err)
	code := ValidationError
	// Heuristics: some loader errors are parse errors.
	if strings.Contains(strings.ToLower(err.Error()), "parse") || strings.Contains(strings.ToLower(err.Error()), "invalid character") {
		code = DocumentError
	}
	return &SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: pointer, Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'\"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	// Unwrap MultiError and take the first for brevity.
	if me, ok := err.(openapi3.MultiError); ok {
		if len(me) > 0 {
			return extractJSONPointer(me[0])
		}
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return m
	}
	return ""
}

// canProceedDespiteValidation returns true for validation errors where a
// best-effort build can still proceed (e.g., unresolved $ref entries).
func canProceedDespiteValidation(err error) bool {
	if err == nil {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unresolved ref") || strings.Contains(s, "found unresolved ref")
}
