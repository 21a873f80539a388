// Package scope holds the symbol table: a chain of lexical scopes, each a
// linked list of bindings, searched innermost-first.
package scope

import (
	"github.com/ruscc/ruscc/pkg/ast"
)

// Symbol is one binding. Functions record their signature; variables record
// their type and resolved storage location.
type Symbol struct {
	Name    string
	Type    *ast.Type
	IsFunc  bool
	Params  []*ast.Type
	Result  *ast.Type // nil when the function has no annotated return type
	IsTyped bool
	Loc     ast.Location
	Node    *ast.Node
	Used    bool
	Next    *Symbol
}

type Scope struct {
	Symbols *Symbol
	Parent  *Scope
}

func New(parent *Scope) *Scope {
	return &Scope{Parent: parent}
}

// Declare adds sym to this scope. It reports false when the name is already
// bound here; shadowing an outer scope is allowed.
func (s *Scope) Declare(sym *Symbol) bool {
	if s.LookupLocal(sym.Name) != nil {
		return false
	}
	sym.Next = s.Symbols
	s.Symbols = sym
	return true
}

// Lookup searches this scope and its ancestors, innermost binding wins.
func (s *Scope) Lookup(name string) *Symbol {
	for sc := s; sc != nil; sc = sc.Parent {
		if sym := sc.LookupLocal(name); sym != nil {
			return sym
		}
	}
	return nil
}

func (s *Scope) LookupLocal(name string) *Symbol {
	for sym := s.Symbols; sym != nil; sym = sym.Next {
		if sym.Name == name {
			return sym
		}
	}
	return nil
}
