package patch

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes patch failures.
type Kind string

const (
	ParseFailure        Kind = "ParseFailure"
	DeclarationNotFound Kind = "DeclarationNotFound"
	FieldNotFound       Kind = "FieldNotFound"
)

// Sentinels for errors.Is; every *PatchError matches the one of its Kind.
var (
	ErrParseFailure        = errors.New("source could not be parsed")
	ErrDeclarationNotFound = errors.New("declaration not found")
	ErrFieldNotFound       = errors.New("field not found")
)

// PatchError carries enough context to re-run narrowly after a manual fix.
type PatchError struct {
	Kind  Kind
	File  string
	Decl  string
	Field string
	Cause error
}

func (e *PatchError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.File != "" {
		fmt.Fprintf(&b, " in %s", e.File)
	}
	if e.Decl != "" {
		fmt.Fprintf(&b, ": %s", e.Decl)
		if e.Field != "" {
			fmt.Fprintf(&b, ".%s", e.Field)
		}
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *PatchError) Unwrap() error { return e.Cause }

func (e *PatchError) Is(target error) bool {
	switch e.Kind {
	case ParseFailure:
		return target == ErrParseFailure
	case DeclarationNotFound:
		return target == ErrDeclarationNotFound
	case FieldNotFound:
		return target == ErrFieldNotFound
	}
	return false
}
