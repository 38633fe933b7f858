package sqlgen

import (
	"fmt"
	"strings"
)

// Section is a titled run of statements within a script part.
type Section struct {
	Title      string
	Statements []string
}

// Script is one generated SQL file: a header, then cleanup, then recreate.
type Script struct {
	Title    string // e.g. "Table app_public.users"
	Notes    []string
	Cleanup  []Section
	Recreate []Section
}

// Empty reports whether the script has no statements at all.
func (s Script) Empty() bool {
	for _, sec := range append(append([]Section(nil), s.Cleanup...), s.Recreate...) {
		if len(sec.Statements) > 0 {
			return false
		}
	}
	return true
}

// Statements returns every statement in execution order.
func (s Script) Statements() []string {
	var out []string
	for _, part := range [][]Section{s.Cleanup, s.Recreate} {
		for _, sec := range part {
			out = append(out, sec.Statements...)
		}
	}
	return out
}

const rule = "-- ============================================================================"

// String renders the script. Empty sections and parts are omitted; the output
// only depends on the inspected objects, so regenerated files diff cleanly.
func (s Script) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- %s\n", s.Title)
	for _, n := range s.Notes {
		fmt.Fprintf(&b, "-- %s\n", n)
	}
	b.WriteString("-- Generated by tablerizer; edits will be overwritten on the next export.\n")

	writePart(&b, "Cleanup", s.Cleanup)
	writePart(&b, "Recreate", s.Recreate)
	return b.String()
}

// Bytes is String as a byte slice.
func (s Script) Bytes() []byte {
	return []byte(s.String())
}

func writePart(b *strings.Builder, title string, sections []Section) {
	hasStatements := false
	for _, sec := range sections {
		if len(sec.Statements) > 0 {
			hasStatements = true
			break
		}
	}
	if !hasStatements {
		return
	}

	fmt.Fprintf(b, "\n%s\n-- %s\n%s\n", rule, title, rule)
	for _, sec := range sections {
		if len(sec.Statements) == 0 {
			continue
		}
		fmt.Fprintf(b, "\n-- %s\n", sec.Title)
		for _, stmt := range sec.Statements {
			b.WriteString(stmt)
			b.WriteByte('\n')
		}
	}
}

// optf returns the formatted string when cond holds, "" otherwise.
func optf(cond bool, format string, args ...any) string {
	if !cond {
		return ""
	}
	return fmt.Sprintf(format, args...)
}
