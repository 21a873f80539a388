package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ruscc/ruscc/pkg/config"
	"github.com/ruscc/ruscc/pkg/token"
	"github.com/ruscc/ruscc/pkg/util"
)

func tokenize(t *testing.T, src string) []token.Token {
	t.Helper()
	toks, err := Tokenize(&util.SourceFile{Name: "test.rs", Content: []rune(src)}, config.NewConfig())
	if err != nil {
		t.Fatalf("Tokenize(%q) failed: %v", src, err)
	}
	return toks
}

func types(toks []token.Token) []token.Type {
	out := make([]token.Type, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestTokenizeProgram(t *testing.T) {
	toks := tokenize(t, "fn main() -> i64 { return 42; }")
	want := []token.Type{
		token.Fn, token.Ident, token.LParen, token.RParen, token.Arrow, token.I64,
		token.LBrace, token.Return, token.Number, token.Semi, token.RBrace, token.EOF,
	}
	if diff := cmp.Diff(want, types(toks)); diff != "" {
		t.Errorf("token types mismatch (-want +got):\n%s", diff)
	}
	if toks[1].Value != "main" {
		t.Errorf("ident value = %q, want %q", toks[1].Value, "main")
	}
	if toks[8].Value != "42" {
		t.Errorf("number value = %q, want %q", toks[8].Value, "42")
	}
}

func TestTokenizeOperators(t *testing.T) {
	toks := tokenize(t, "+ - * / = == != < <= > >= & && || -> : ; , [ ] ( ) { }")
	want := []token.Type{
		token.Plus, token.Minus, token.Star, token.Slash, token.Eq, token.EqEq,
		token.Neq, token.Lt, token.Lte, token.Gt, token.Gte, token.And,
		token.AndAnd, token.OrOr, token.Arrow, token.Colon, token.Semi,
		token.Comma, token.LBracket, token.RBracket, token.LParen, token.RParen,
		token.LBrace, token.RBrace, token.EOF,
	}
	if diff := cmp.Diff(want, types(toks)); diff != "" {
		t.Errorf("token types mismatch (-want +got):\n%s", diff)
	}
}

func TestNumberSuffix(t *testing.T) {
	toks := tokenize(t, "255u8 7i32 99")
	if toks[0].Value != "255" || toks[0].Suffix != token.U8 {
		t.Errorf("got value %q suffix %v, want 255 with u8 suffix", toks[0].Value, toks[0].Suffix)
	}
	if toks[1].Value != "7" || toks[1].Suffix != token.I32 {
		t.Errorf("got value %q suffix %v, want 7 with i32 suffix", toks[1].Value, toks[1].Suffix)
	}
	if toks[2].Suffix != token.EOF {
		t.Errorf("unsuffixed literal should carry no suffix, got %v", toks[2].Suffix)
	}
}

func TestStringEscapes(t *testing.T) {
	toks := tokenize(t, `"line\n\ttab \"quoted\" back\\slash"`)
	want := "line\n\ttab \"quoted\" back\\slash"
	if toks[0].Type != token.String || toks[0].Value != want {
		t.Errorf("string literal = %q, want %q", toks[0].Value, want)
	}
}

func TestCommentsAreSkipped(t *testing.T) {
	toks := tokenize(t, "let // trailing comment\n/* block\ncomment */ x")
	want := []token.Type{token.Let, token.Ident, token.EOF}
	if diff := cmp.Diff(want, types(toks)); diff != "" {
		t.Errorf("token types mismatch (-want +got):\n%s", diff)
	}
	if toks[1].Line != 3 {
		t.Errorf("ident after block comment on line %d, want 3", toks[1].Line)
	}
}

func TestPositions(t *testing.T) {
	toks := tokenize(t, "fn f\nlet")
	if toks[1].Line != 1 || toks[1].Column != 4 {
		t.Errorf("f at %d:%d, want 1:4", toks[1].Line, toks[1].Column)
	}
	if toks[2].Line != 2 || toks[2].Column != 1 {
		t.Errorf("let at %d:%d, want 2:1", toks[2].Line, toks[2].Column)
	}
}

func TestLexErrors(t *testing.T) {
	cases := []struct {
		src string
		msg string
	}{
		{"@", "unexpected character"},
		{`"open`, "unterminated string"},
		{"/* open", "unterminated block comment"},
		{"12xyz", "invalid suffix"},
		{"5u8x", "invalid suffix"},
		{"! x", "unexpected character"},
		{"a | b", "unexpected character"},
		{`"bad \q escape"`, "unrecognized escape"},
	}
	for _, tc := range cases {
		_, err := Tokenize(&util.SourceFile{Name: "test.rs", Content: []rune(tc.src)}, config.NewConfig())
		if err == nil {
			t.Errorf("Tokenize(%q) succeeded, want error containing %q", tc.src, tc.msg)
			continue
		}
		d, ok := err.(*util.Diagnostic)
		if !ok {
			t.Errorf("Tokenize(%q) returned %T, want *util.Diagnostic", tc.src, err)
			continue
		}
		if d.Kind != util.LexErr {
			t.Errorf("Tokenize(%q) kind = %v, want LexErr", tc.src, d.Kind)
		}
	}
}
