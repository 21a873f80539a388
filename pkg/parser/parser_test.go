package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ruscc/ruscc/pkg/ast"
	"github.com/ruscc/ruscc/pkg/config"
	"github.com/ruscc/ruscc/pkg/lexer"
	"github.com/ruscc/ruscc/pkg/token"
	"github.com/ruscc/ruscc/pkg/util"
)

func parseProgram(t *testing.T, src string) (*ast.Node, error) {
	t.Helper()
	toks, err := lexer.Tokenize(&util.SourceFile{Name: "test.rs", Content: []rune(src)}, config.NewConfig())
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	return NewParser(toks).Parse()
}

func parseExprString(t *testing.T, expr string) string {
	t.Helper()
	root, err := parseProgram(t, "fn f() { "+expr+"; }")
	if err != nil {
		t.Fatalf("parse %q: %v", expr, err)
	}
	fn := root.Data.(ast.BlockNode).Stmts[0].Data.(ast.FuncDeclNode)
	return sexpr(fn.Body.Data.(ast.BlockNode).Stmts[0])
}

// sexpr renders an expression tree in prefix form for compact comparison.
func sexpr(n *ast.Node) string {
	switch n.Type {
	case ast.Number:
		d := n.Data.(ast.NumberNode)
		if d.Suffix != nil {
			return fmt.Sprintf("%d%s", d.Value, d.Suffix)
		}
		return fmt.Sprintf("%d", d.Value)
	case ast.Bool:
		return fmt.Sprintf("%v", n.Data.(ast.BoolNode).Value)
	case ast.String:
		return fmt.Sprintf("%q", n.Data.(ast.StringNode).Value)
	case ast.Ident:
		return n.Data.(ast.IdentNode).Name
	case ast.BinaryOp:
		d := n.Data.(ast.BinaryOpNode)
		return fmt.Sprintf("(%s %s %s)", opSym(d.Op), sexpr(d.Left), sexpr(d.Right))
	case ast.UnaryOp:
		return fmt.Sprintf("(neg %s)", sexpr(n.Data.(ast.UnaryOpNode).Expr))
	case ast.Assign:
		d := n.Data.(ast.AssignNode)
		return fmt.Sprintf("(= %s %s)", sexpr(d.Lhs), sexpr(d.Rhs))
	case ast.AddressOf:
		return fmt.Sprintf("(addr %s)", sexpr(n.Data.(ast.AddressOfNode).LValue))
	case ast.Indirection:
		return fmt.Sprintf("(deref %s)", sexpr(n.Data.(ast.IndirectionNode).Expr))
	case ast.Subscript:
		d := n.Data.(ast.SubscriptNode)
		return fmt.Sprintf("(index %s %s)", sexpr(d.Array), sexpr(d.Index))
	case ast.FuncCall:
		d := n.Data.(ast.FuncCallNode)
		parts := make([]string, len(d.Args))
		for i, a := range d.Args {
			parts[i] = sexpr(a)
		}
		return fmt.Sprintf("(call %s %s)", d.Name, strings.Join(parts, " "))
	}
	return "?"
}

func opSym(op token.Type) string {
	switch op {
	case token.Plus:
		return "+"
	case token.Minus:
		return "-"
	case token.Star:
		return "*"
	case token.Slash:
		return "/"
	case token.EqEq:
		return "=="
	case token.Neq:
		return "!="
	case token.Lt:
		return "<"
	case token.Lte:
		return "<="
	case token.Gt:
		return ">"
	case token.Gte:
		return ">="
	case token.AndAnd:
		return "&&"
	case token.OrOr:
		return "||"
	}
	return "?"
}

func TestExpressionPrecedence(t *testing.T) {
	cases := []struct {
		expr string
		want string
	}{
		{"1 + 2 * 3", "(+ 1 (* 2 3))"},
		{"(1 + 2) * 3", "(* (+ 1 2) 3)"},
		{"1 - 2 - 3", "(- (- 1 2) 3)"},
		{"8 / 2 / 2", "(/ (/ 8 2) 2)"},
		{"a == b + 1", "(== a (+ b 1))"},
		{"a < b == c < d", "(== (< a b) (< c d))"},
		{"a && b || c", "(|| (&& a b) c)"},
		{"a == b && c != d", "(&& (== a b) (!= c d))"},
		{"x = y = 1", "(= x (= y 1))"},
		{"-x + y", "(+ (neg x) y)"},
		{"- -1", "(neg (neg 1))"},
		{"*p + 1", "(+ (deref p) 1)"},
		{"&a", "(addr a)"},
		{"*&x", "(deref (addr x))"},
		{"a[i + 1]", "(index a (+ i 1))"},
		{"a[0][1]", "(index (index a 0) 1)"},
		{"f(1, x + 2)", "(call f 1 (+ x 2))"},
		{"200u8 + 1u8", "(+ 200u8 1u8)"},
	}
	for _, tc := range cases {
		got := parseExprString(t, tc.expr)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("parse %q (-want +got):\n%s", tc.expr, diff)
		}
	}
}

func TestParseFuncDecl(t *testing.T) {
	root, err := parseProgram(t, `
fn add(a: i32, b: i32) -> i32 {
    return a + b;
}

fn loop() {
    let i = 0;
    while i < 10 {
        i = i + 1;
    }
}

static table: [i64; 8];
`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	stmts := root.Data.(ast.BlockNode).Stmts
	if len(stmts) != 3 {
		t.Fatalf("got %d top-level declarations, want 3", len(stmts))
	}

	add := stmts[0].Data.(ast.FuncDeclNode)
	if add.Name != "add" || !add.IsTyped || add.ReturnType != ast.TypeI32 || len(add.Params) != 2 {
		t.Errorf("unexpected signature for add: %+v", add)
	}
	p0 := add.Params[0].Data.(ast.VarDeclNode)
	if p0.Name != "a" || !ast.TypesEqual(p0.Type, ast.TypeI32) {
		t.Errorf("param 0 = %s %s, want a i32", p0.Name, p0.Type)
	}

	loop := stmts[1].Data.(ast.FuncDeclNode)
	if loop.IsTyped || loop.ReturnType != nil {
		t.Errorf("loop should have no return annotation")
	}

	table := stmts[2].Data.(ast.VarDeclNode)
	if !table.IsStatic || table.Type.Kind != ast.TYPE_ARRAY || table.Type.Len != 8 {
		t.Errorf("unexpected static: %+v", table)
	}
}

func TestParseTypes(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{"let x: i8;", "i8"},
		{"let x: u64;", "u64"},
		{"let x: bool;", "bool"},
		{"let x: str;", "str"},
		{"let x: *i32;", "*i32"},
		{"let x: &u8;", "&u8"},
		{"let x: **i64;", "**i64"},
		{"let x: [i32; 4];", "[i32; 4]"},
		{"let x: [u8];", "[u8]"},
		{"let x: &[i16; 2];", "&[i16; 2]"},
	}
	for _, tc := range cases {
		root, err := parseProgram(t, "fn f() { "+tc.src+" }")
		if err != nil {
			t.Fatalf("parse %q: %v", tc.src, err)
		}
		fn := root.Data.(ast.BlockNode).Stmts[0].Data.(ast.FuncDeclNode)
		decl := fn.Body.Data.(ast.BlockNode).Stmts[0].Data.(ast.VarDeclNode)
		if got := decl.Type.String(); got != tc.want {
			t.Errorf("type of %q = %s, want %s", tc.src, got, tc.want)
		}
	}
}

func TestParseIfElseChain(t *testing.T) {
	root, err := parseProgram(t, `
fn f(n: i64) {
    if n < 0 {
        return;
    } else if n == 0 {
        n = 1;
    } else {
        n = 2;
    }
}
`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	fn := root.Data.(ast.BlockNode).Stmts[0].Data.(ast.FuncDeclNode)
	ifNode := fn.Body.Data.(ast.BlockNode).Stmts[0]
	d := ifNode.Data.(ast.IfNode)
	if d.ElseBody == nil || d.ElseBody.Type != ast.If {
		t.Fatalf("else-if should parse as nested if")
	}
	inner := d.ElseBody.Data.(ast.IfNode)
	if inner.ElseBody == nil || inner.ElseBody.Type != ast.Block {
		t.Errorf("final else should be a block")
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"fn f() { return 1 }",          // missing semicolon
		"fn f() { let x; }",            // no type, no initializer
		"let x = 1;",                   // let at top level
		"fn f( { }",                    // bad parameter list
		"fn f() -> { }",                // missing return type
		"fn f() { if x 1; }",           // missing block
		"fn f() { 1(2); }",             // calling a non-identifier
		"fn f() { a[1; }",              // unclosed subscript
		"static s = 3;",                // static needs a type annotation
		"fn f() { let a: [i32;]; }",    // missing array length
		"fn f() { let a: [i32; -1]; }", // negative array length
	}
	for _, src := range cases {
		_, err := parseProgram(t, src)
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want parse error", src)
			continue
		}
		d, ok := err.(*util.Diagnostic)
		if !ok || d.Kind != util.ParseErr {
			t.Errorf("Parse(%q) = %v, want ParseErr diagnostic", src, err)
		}
	}
}
