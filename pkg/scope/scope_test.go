package scope

import (
	"testing"

	"github.com/ruscc/ruscc/pkg/ast"
)

func TestDeclareAndLookup(t *testing.T) {
	s := New(nil)
	if !s.Declare(&Symbol{Name: "x", Type: ast.TypeI64}) {
		t.Fatal("first declaration failed")
	}
	if sym := s.Lookup("x"); sym == nil || sym.Type != ast.TypeI64 {
		t.Fatal("lookup after declare failed")
	}
	if s.Lookup("y") != nil {
		t.Fatal("lookup of undeclared name succeeded")
	}
}

func TestDuplicateDeclaration(t *testing.T) {
	s := New(nil)
	s.Declare(&Symbol{Name: "x"})
	if s.Declare(&Symbol{Name: "x"}) {
		t.Fatal("duplicate declaration in the same scope succeeded")
	}
}

func TestShadowing(t *testing.T) {
	outer := New(nil)
	outer.Declare(&Symbol{Name: "x", Type: ast.TypeI64})

	inner := New(outer)
	if !inner.Declare(&Symbol{Name: "x", Type: ast.TypeBool}) {
		t.Fatal("shadowing in a child scope failed")
	}
	if got := inner.Lookup("x").Type; got != ast.TypeBool {
		t.Fatalf("inner lookup found the outer binding (%s)", got)
	}
	if got := outer.Lookup("x").Type; got != ast.TypeI64 {
		t.Fatalf("outer binding was clobbered (%s)", got)
	}
}

func TestLookupWalksParents(t *testing.T) {
	outer := New(nil)
	outer.Declare(&Symbol{Name: "g", IsFunc: true})

	inner := New(outer)
	if inner.Lookup("g") == nil {
		t.Fatal("lookup did not reach the parent scope")
	}
	if inner.LookupLocal("g") != nil {
		t.Fatal("local lookup reached the parent scope")
	}
}
