package emitter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/oapisync/internal/spec"
)

type credentialKind int

const (
	credBearer credentialKind = iota
	credBasic
	credAuthorization
	credHeader
	credQuery
	credCookie
	credTLS
)

func classify(req spec.SecurityRequirement) credentialKind {
	switch strings.ToLower(req.Type) {
	case "http":
		switch req.HTTPScheme {
		case "basic":
			return credBasic
		case "bearer", "":
			return credBearer
		}
		return credAuthorization
	case "apikey":
		switch req.In {
		case "query":
			return credQuery
		case "cookie":
			return credCookie
		}
		return credHeader
	case "mutualtls":
		return credTLS
	}
	// oauth2, openIdConnect and undeclared schemes carry bearer tokens.
	return credBearer
}

func uniqueRequirements(reqs []spec.SecurityRequirement) []spec.SecurityRequirement {
	seen := map[string]bool{}
	var out []spec.SecurityRequirement
	for _, r := range reqs {
		if seen[r.Scheme] {
			continue
		}
		seen[r.Scheme] = true
		out = append(out, r)
	}
	return out
}

// CredentialImports lists the imports CredentialFunc output needs.
func CredentialImports(reqs []spec.SecurityRequirement) []Import {
	imps := []Import{{Path: "net/http"}}
	for _, r := range reqs {
		if classify(r) == credBearer {
			return append(imps, Import{Path: "strings"})
		}
	}
	return imps
}

// CredentialFunc renders a function named name that returns the first
// credential among reqs carried by an *http.Request.
func CredentialFunc(name, handler string, reqs []spec.SecurityRequirement) Declaration {
	reqs = uniqueRequirements(reqs)
	var b strings.Builder
	names := make([]string, 0, len(reqs))
	for _, r := range reqs {
		n := r.Scheme
		if len(r.Scopes) > 0 {
			n += " (" + strings.Join(r.Scopes, ", ") + ")"
		}
		names = append(names, n)
	}
	fmt.Fprintf(&b, "// %s returns the first credential %s accepts that r carries.\n", name, handler)
	fmt.Fprintf(&b, "// Accepted: %s.\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "func %s(r *http.Request) (scheme, credential string, ok bool) {\n", name)
	for _, r := range reqs {
		scheme := strconv.Quote(r.Scheme)
		switch classify(r) {
		case credBearer:
			b.WriteString("\tif v, found := strings.CutPrefix(r.Header.Get(\"Authorization\"), \"Bearer \"); found && v != \"\" {\n")
			fmt.Fprintf(&b, "\t\treturn %s, v, true\n\t}\n", scheme)
		case credBasic:
			b.WriteString("\tif user, pass, found := r.BasicAuth(); found {\n")
			fmt.Fprintf(&b, "\t\treturn %s, user + \":\" + pass, true\n\t}\n", scheme)
		case credAuthorization:
			b.WriteString("\tif v := r.Header.Get(\"Authorization\"); v != \"\" {\n")
			fmt.Fprintf(&b, "\t\treturn %s, v, true\n\t}\n", scheme)
		case credHeader:
			fmt.Fprintf(&b, "\tif v := r.Header.Get(%s); v != \"\" {\n", strconv.Quote(r.ParamName))
			fmt.Fprintf(&b, "\t\treturn %s, v, true\n\t}\n", scheme)
		case credQuery:
			fmt.Fprintf(&b, "\tif v := r.URL.Query().Get(%s); v != \"\" {\n", strconv.Quote(r.ParamName))
			fmt.Fprintf(&b, "\t\treturn %s, v, true\n\t}\n", scheme)
		case credCookie:
			fmt.Fprintf(&b, "\tif ck, err := r.Cookie(%s); err == nil && ck.Value != \"\" {\n", strconv.Quote(r.ParamName))
			fmt.Fprintf(&b, "\t\treturn %s, ck.Value, true\n\t}\n", scheme)
		case credTLS:
			b.WriteString("\tif r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {\n")
			fmt.Fprintf(&b, "\t\treturn %s, r.TLS.PeerCertificates[0].Subject.CommonName, true\n\t}\n", scheme)
		}
	}
	b.WriteString("\treturn \"\", \"\", false\n}\n")
	return Declaration{Name: name, Text: FormatDecl(b.String())}
}

// sampleCredential returns a request header, query parameter or cookie
// satisfying the first requirement a plain request can carry.
func sampleCredential(reqs []spec.SecurityRequirement, token, user, pass string) (in spec.ParamSource, name, value string, ok bool) {
	for _, r := range reqs {
		switch classify(r) {
		case credBearer:
			return spec.InHeader, "Authorization", "Bearer " + token, true
		case credBasic:
			return spec.InHeader, "Authorization", "Basic " + basicToken(user, pass), true
		case credAuthorization:
			return spec.InHeader, "Authorization", GoName(r.HTTPScheme) + " " + token, true
		case credHeader:
			return spec.InHeader, r.ParamName, token, true
		case credQuery:
			return spec.InQuery, r.ParamName, token, true
		case credCookie:
			return spec.InCookie, r.ParamName, token, true
		}
	}
	return "", "", "", false
}
