package gateway

import (
	"strings"
	"unicode"

	"github.com/shopforge/shopforge/pkg/errors"
)

// sanitize strips # comments and collapses runs of whitespace outside string
// literals into single spaces.
func sanitize(query string) string {
	var b strings.Builder
	b.Grow(len(query))

	inString, inComment, escaped, pendingSpace := false, false, false, false
	for _, r := range query {
		switch {
		case inComment:
			if r == '\n' {
				inComment = false
				pendingSpace = true
			}
		case inString:
			b.WriteRune(r)
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
		case r == '#':
			inComment = true
		case unicode.IsSpace(r):
			pendingSpace = true
		default:
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			if r == '"' {
				inString = true
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// checkSyntax verifies the sanitized query opens with an operation keyword or
// a bare selection block and that its delimiters balance outside string
// literals.
func checkSyntax(query string) error {
	if !strings.HasPrefix(query, "query") &&
		!strings.HasPrefix(query, "mutation") &&
		!strings.HasPrefix(query, "subscription") &&
		!strings.HasPrefix(query, "{") {
		return errors.ErrSyntax.WithMessage("Query must start with an operation keyword or a selection block")
	}

	braces, parens := 0, 0
	scan(query, func(r rune) {
		switch r {
		case '{':
			braces++
		case '}':
			braces--
		case '(':
			parens++
		case ')':
			parens--
		}
	})
	if braces != 0 || parens != 0 {
		return errors.ErrSyntax.WithMessage("Query has unbalanced delimiters")
	}
	return nil
}

// maxDepthOf reports the deepest brace nesting in the query, ignoring braces
// inside string literals.
func maxDepthOf(query string) int {
	depth, max := 0, 0
	scan(query, func(r rune) {
		switch r {
		case '{':
			depth++
			if depth > max {
				max = depth
			}
		case '}':
			if depth > 0 {
				depth--
			}
		}
	})
	return max
}

// complexityOf counts selected fields: identifier tokens inside a selection
// block, skipping argument lists, variables and string literals.
func complexityOf(query string) int {
	fields := 0
	depth, parens := 0, 0
	inString, escaped, inIdent := false, false, false
	prev := rune(0)

	for _, r := range query {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			prev = r
			continue
		}

		switch {
		case r == '"':
			inString = true
			inIdent = false
		case r == '{':
			depth++
			inIdent = false
		case r == '}':
			depth--
			inIdent = false
		case r == '(':
			parens++
			inIdent = false
		case r == ')':
			parens--
			inIdent = false
		case isIdentRune(r):
			starts := !inIdent
			inIdent = true
			if starts && depth > 0 && parens == 0 && prev != '$' && prev != ':' && prev != '@' {
				fields++
			}
		default:
			inIdent = false
		}
		prev = r
	}
	return fields
}

// containsIntrospection matches the well-known introspection entry points.
func containsIntrospection(query string) bool {
	return strings.Contains(query, "__schema") || strings.Contains(query, "__type")
}

// scan visits every rune outside string literals.
func scan(query string, visit func(rune)) {
	inString, escaped := false, false
	for _, r := range query {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		if r == '"' {
			inString = true
			continue
		}
		visit(r)
	}
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
