package gen

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	rules      = ruleset()
	titleCaser = cases.Title(language.English, cases.NoLower)
)

func ruleset() *inflect.Ruleset {
	r := inflect.NewDefaultRuleset()
	for _, w := range []string{"ID", "SQL", "HTTP", "URL", "JSON", "UUID", "API"} {
		r.AddAcronym(w)
	}
	return r
}

// snake converts a PascalCase or camelCase name to snake_case.
// Already snake_case names pass through unchanged.
func snake(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 && (!unicode.IsUpper(rune(s[i-1])) || (i+1 < len(s) && !unicode.IsUpper(rune(s[i+1])))) {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// pascal converts a snake_case name to PascalCase, respecting acronyms.
func pascal(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		switch strings.ToUpper(p) {
		case "ID", "SQL", "HTTP", "URL", "JSON", "UUID", "API":
			parts[i] = strings.ToUpper(p)
		default:
			parts[i] = titleCaser.String(p)
		}
	}
	return strings.Join(parts, "")
}

// tableOf derives the conventional table name for an entity that is not
// part of the compiled set: snake_case and pluralized.
func tableOf(entity string) string {
	return rules.Pluralize(snake(entity))
}

// Snake converts a PascalCase or camelCase name to snake_case. It is the
// naming convention used by generated file names and columns.
func Snake(s string) string { return snake(s) }

// Pascal converts a snake_case name to PascalCase, respecting acronyms. It
// is the naming convention used by generated identifiers.
func Pascal(s string) string { return pascal(s) }
