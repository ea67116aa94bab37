package spec

import (
	"strings"
	"unicode"
)

// DeriveHandlerName returns the snake_case handler identifier of an
// operation. An explicit operationId wins; otherwise the name is built from
// method and path, so GET /users gives get_users and
// POST /users/{id}/activate gives post_users_id_activate.
func DeriveHandlerName(method HttpMethod, path, operationID string) string {
	if name := snakeCase(operationID); name != "" {
		return ensureIdentStart(name)
	}
	m := strings.ToLower(string(method))
	p := sanitizePath(path)
	if p == "" {
		p = "root"
	}
	return ensureIdentStart(m + "_" + p)
}

// sanitizePath strips braces, turns every other non-alphanumeric run into a
// single underscore and trims separators at both ends.
func sanitizePath(path string) string {
	var b strings.Builder
	lastSep := true
	for _, r := range strings.ToLower(path) {
		switch {
		case r == '{' || r == '}':
			continue
		case isASCIILetterOrDigit(r):
			b.WriteRune(r)
			lastSep = false
		default:
			if !lastSep {
				b.WriteByte('_')
				lastSep = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// snakeCase splits on separators and on case transitions
// (getUserByID -> get_user_by_id, HTTPServer -> http_server).
func snakeCase(s string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(strings.TrimSpace(s))
	for i, r := range runes {
		if r > unicode.MaxASCII || !isASCIILetterOrDigit(r) {
			flush()
			continue
		}
		if i > 0 && len(cur) > 0 {
			prev := runes[i-1]
			switch {
			case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
				flush()
			case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return strings.Join(words, "_")
}

func isASCIILetterOrDigit(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

func ensureIdentStart(name string) string {
	if name != "" && unicode.IsDigit(rune(name[0])) {
		return "op_" + name
	}
	return name
}
