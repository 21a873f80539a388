package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ruscc/ruscc/pkg/token"
)

func TestAlignUp(t *testing.T) {
	cases := []struct {
		n, align, want int64
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{17, 16, 32},
		{5, 1, 5},
		{13, 4, 16},
	}
	for _, tc := range cases {
		if got := AlignUp(tc.n, tc.align); got != tc.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tc.n, tc.align, got, tc.want)
		}
	}
}

func TestExitCodes(t *testing.T) {
	cases := []struct {
		kind ErrKind
		want int
	}{
		{LexErr, 2},
		{ParseErr, 3},
		{TypeErr, 4},
		{CodegenErr, 70},
	}
	for _, tc := range cases {
		if got := tc.kind.ExitCode(); got != tc.want {
			t.Errorf("%s: exit code %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestDiagnosticError(t *testing.T) {
	tok := token.Token{Line: 3, Column: 14}
	err := Errorf(TypeErr, tok, "cannot assign %s to %s", "bool", "i64")
	want := "3:14: type error: cannot assign bool to i64"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestReportPointsAtToken(t *testing.T) {
	src := &SourceFile{
		Name:    "main.rs",
		Content: []rune("fn main() {\n    return oops;\n}\n"),
	}
	d := &Diagnostic{
		Kind:    TypeErr,
		Tok:     token.Token{Line: 2, Column: 12, Len: 4},
		Message: "undefined variable 'oops'",
	}

	var buf bytes.Buffer
	d.Report(&buf, src)
	out := buf.String()

	if !strings.Contains(out, "main.rs:2:12:") {
		t.Errorf("missing position prefix in %q", out)
	}
	if !strings.Contains(out, "undefined variable 'oops'") {
		t.Errorf("missing message in %q", out)
	}
	if !strings.Contains(out, "    return oops;") {
		t.Errorf("missing source line in %q", out)
	}
	// caret sits under column 12, with tildes covering the token
	if !strings.Contains(out, "^~~~") {
		t.Errorf("missing caret underline in %q", out)
	}
}

func TestReportWithoutSource(t *testing.T) {
	d := &Diagnostic{Kind: LexErr, Tok: token.Token{Line: 1, Column: 1}, Message: "bad byte"}
	var buf bytes.Buffer
	d.Report(&buf, nil)
	if !strings.Contains(buf.String(), "<input>:1:1:") {
		t.Errorf("nil source should fall back to a placeholder name, got %q", buf.String())
	}
}
