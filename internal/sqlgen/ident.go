package sqlgen

import (
	"regexp"
	"strings"

	"github.com/lib/pq"
)

var bareIdent = regexp.MustCompile(`^[a-z_][a-z0-9_$]*$`)

// reservedKeywords are the PostgreSQL key words that cannot be used as bare
// identifiers (reserved, plus reserved-can-be-function-or-type).
var reservedKeywords = map[string]struct{}{}

func init() {
	for _, kw := range strings.Fields(`
		all analyse analyze and any array as asc asymmetric authorization binary both
		case cast check collate collation column concurrently constraint create cross
		current_catalog current_date current_role current_schema current_time
		current_timestamp current_user default deferrable desc distinct do else end
		except false fetch for foreign freeze from full grant group having ilike in
		initially inner intersect into is isnull join lateral leading left like limit
		localtime localtimestamp natural not notnull null offset on only or order outer
		overlaps placing primary references returning right select session_user similar
		some symmetric system_user table tablesample then to trailing true union unique
		user using variadic verbose when where window with`) {
		reservedKeywords[kw] = struct{}{}
	}
}

// Ident escapes a single identifier. Lower-case names made of letters, digits,
// underscores and dollar signs that are not reserved words are left bare;
// anything else is double-quoted with embedded quotes doubled.
func Ident(name string) string {
	if bareIdent.MatchString(name) {
		if _, reserved := reservedKeywords[name]; !reserved {
			return name
		}
	}
	return pq.QuoteIdentifier(name)
}

// Qualified returns schema.name with both parts escaped.
func Qualified(schema, name string) string {
	return Ident(schema) + "." + Ident(name)
}

// Literal escapes s as a string literal. Text containing backslashes becomes
// an E'' literal.
func Literal(s string) string {
	return strings.TrimSpace(pq.QuoteLiteral(s))
}

// wrapParens wraps an expression in parentheses unless a single pair already
// encloses all of it.
func wrapParens(expr string) string {
	expr = strings.TrimSpace(expr)
	if enclosed(expr) {
		return expr
	}
	return "(" + expr + ")"
}

// enclosed reports whether the opening parenthesis at position 0 is closed by
// the final character. Quoted strings and identifiers are skipped.
func enclosed(expr string) bool {
	if len(expr) < 2 || expr[0] != '(' || expr[len(expr)-1] != ')' {
		return false
	}
	depth := 0
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(expr)-1 {
				return false
			}
		}
	}
	return depth == 0
}
