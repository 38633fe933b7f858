package sqlgen

import "testing"

func TestIdent(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		expect string
	}{
		{name: "plain", in: "users", expect: "users"},
		{name: "underscore prefix", in: "_100_timestamps", expect: "_100_timestamps"},
		{name: "dollar", in: "a$b", expect: "a$b"},
		{name: "mixed case", in: "Users", expect: `"Users"`},
		{name: "space", in: "user accounts", expect: `"user accounts"`},
		{name: "leading digit", in: "1st", expect: `"1st"`},
		{name: "reserved", in: "user", expect: `"user"`},
		{name: "reserved table", in: "table", expect: `"table"`},
		{name: "unreserved keyword", in: "name", expect: "name"},
		{name: "embedded quote", in: `we"ird`, expect: `"we""ird"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ident(tt.in); got != tt.expect {
				t.Errorf("Ident(%q) = %s, want %s", tt.in, got, tt.expect)
			}
		})
	}
}

func TestQualified(t *testing.T) {
	if got := Qualified("app_public", "User"); got != `app_public."User"` {
		t.Errorf("Qualified() = %s", got)
	}
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		in     string
		expect string
	}{
		{in: "A user.", expect: "'A user.'"},
		{in: "It's", expect: "'It''s'"},
		{in: `C:\path`, expect: `E'C:\\path'`},
		{in: "", expect: "''"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Literal(tt.in); got != tt.expect {
				t.Errorf("Literal(%q) = %s, want %s", tt.in, got, tt.expect)
			}
		})
	}
}

func TestWrapParens(t *testing.T) {
	tests := []struct {
		in     string
		expect string
	}{
		{in: "true", expect: "(true)"},
		{in: "(owner_id = current_user_id())", expect: "(owner_id = current_user_id())"},
		{in: "(a) AND (b)", expect: "((a) AND (b))"},
		{in: "  (x = ')')  ", expect: "(x = ')')"},
		{in: "(x = '(') OR (y)", expect: "((x = '(') OR (y))"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := wrapParens(tt.in); got != tt.expect {
				t.Errorf("wrapParens(%q) = %s, want %s", tt.in, got, tt.expect)
			}
		})
	}
}
