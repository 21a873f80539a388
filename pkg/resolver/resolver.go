// Package resolver binds names to storage, checks types and computes frame
// layouts. It decorates the tree in place: every expression gets a type,
// every name a location, every function a frame size.
package resolver

import (
	"github.com/ruscc/ruscc/pkg/ast"
	"github.com/ruscc/ruscc/pkg/config"
	"github.com/ruscc/ruscc/pkg/scope"
	"github.com/ruscc/ruscc/pkg/token"
	"github.com/ruscc/ruscc/pkg/util"
)

type Resolver struct {
	cfg     *config.Config
	src     *util.SourceFile
	globals *scope.Scope
	current *scope.Scope

	frameOffset int64
	locals      []*scope.Symbol
	fnSym       *scope.Symbol
}

func New(cfg *config.Config, src *util.SourceFile) *Resolver {
	g := scope.New(nil)
	return &Resolver{cfg: cfg, src: src, globals: g, current: g}
}

// Resolve checks the whole program. Globals are collected first so functions
// can call each other regardless of declaration order.
func (r *Resolver) Resolve(root *ast.Node) error {
	block := root.Data.(ast.BlockNode)
	for _, stmt := range block.Stmts {
		if err := r.collectGlobal(stmt); err != nil {
			return err
		}
	}
	for _, stmt := range block.Stmts {
		if stmt.Type == ast.FuncDecl {
			if err := r.resolveFunc(stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Resolver) collectGlobal(node *ast.Node) error {
	switch node.Type {
	case ast.FuncDecl:
		d := node.Data.(ast.FuncDeclNode)
		params := make([]*ast.Type, len(d.Params))
		for i, p := range d.Params {
			pt := p.Data.(ast.VarDeclNode).Type
			if pt.Kind == ast.TYPE_ARRAY {
				return util.Errorf(util.TypeErr, p.Tok, "arrays cannot be passed by value, use a slice")
			}
			params[i] = pt
		}
		if d.IsTyped {
			switch d.ReturnType.Kind {
			case ast.TYPE_ARRAY, ast.TYPE_SLICE:
				return util.Errorf(util.TypeErr, node.Tok, "functions cannot return %s", d.ReturnType)
			}
		}
		sym := &scope.Symbol{
			Name: d.Name, IsFunc: true, Params: params,
			Result: d.ReturnType, IsTyped: d.IsTyped, Node: node,
		}
		if !r.globals.Declare(sym) {
			return util.Errorf(util.TypeErr, node.Tok, "redefinition of '%s'", d.Name)
		}
	case ast.VarDecl:
		d := node.Data.(ast.VarDeclNode)
		sym := &scope.Symbol{
			Name: d.Name, Type: d.Type, Node: node,
			Loc: ast.Location{Class: ast.StorageGlobal, Label: d.Name},
		}
		if !r.globals.Declare(sym) {
			return util.Errorf(util.TypeErr, node.Tok, "redefinition of '%s'", d.Name)
		}
		node.Typ = d.Type
		node.Loc = &sym.Loc
	}
	return nil
}

func (r *Resolver) resolveFunc(node *ast.Node) error {
	d := node.Data.(ast.FuncDeclNode)
	r.fnSym = r.globals.Lookup(d.Name)
	r.current = scope.New(r.globals)
	r.frameOffset = 0
	r.locals = nil

	for _, p := range d.Params {
		pd := p.Data.(ast.VarDeclNode)
		sym := &scope.Symbol{
			Name: pd.Name, Type: pd.Type, Node: p,
			Loc: ast.Location{Class: ast.StorageParam, Offset: r.allocSlot(pd.Type)},
		}
		if !r.current.Declare(sym) {
			return util.Errorf(util.TypeErr, p.Tok, "duplicate parameter '%s'", pd.Name)
		}
		sym.Used = true // parameters are not reported as unused
		p.Typ = pd.Type
		p.Loc = &sym.Loc
	}

	if err := r.resolveStmt(d.Body); err != nil {
		return err
	}

	d.FrameSize = util.AlignUp(r.frameOffset, int64(r.cfg.StackAlignment))
	node.Data = d

	for _, sym := range r.locals {
		if !sym.Used {
			util.Warn(r.cfg, config.WarnUnusedVariable, r.src, sym.Node.Tok, "unused variable '%s'", sym.Name)
		}
	}
	return nil
}

// allocSlot reserves an aligned slot below the frame pointer and returns its
// offset from rbp.
func (r *Resolver) allocSlot(t *ast.Type) int64 {
	size := ast.SizeOf(t, r.cfg.WordSize)
	align := ast.AlignOf(t, r.cfg.WordSize)
	r.frameOffset = util.AlignUp(r.frameOffset, align) + size
	return r.frameOffset
}

func (r *Resolver) resolveStmt(node *ast.Node) error {
	switch node.Type {
	case ast.Block:
		parent := r.current
		r.current = scope.New(parent)
		for _, stmt := range node.Data.(ast.BlockNode).Stmts {
			if err := r.resolveStmt(stmt); err != nil {
				return err
			}
		}
		r.current = parent
		return nil

	case ast.VarDecl:
		return r.resolveLocalDecl(node)

	case ast.If:
		d := node.Data.(ast.IfNode)
		if err := r.resolveCond(d.Cond); err != nil {
			return err
		}
		if err := r.resolveStmt(d.ThenBody); err != nil {
			return err
		}
		if d.ElseBody != nil {
			return r.resolveStmt(d.ElseBody)
		}
		return nil

	case ast.While:
		d := node.Data.(ast.WhileNode)
		if err := r.resolveCond(d.Cond); err != nil {
			return err
		}
		return r.resolveStmt(d.Body)

	case ast.Return:
		d := node.Data.(ast.ReturnNode)
		if d.Expr == nil {
			if r.fnSym.IsTyped {
				return util.Errorf(util.TypeErr, node.Tok, "missing return value in '%s'", r.fnSym.Name)
			}
			return nil
		}
		var want *ast.Type
		if r.fnSym.IsTyped {
			want = r.fnSym.Result
		}
		t, err := r.resolveExpr(d.Expr, want)
		if err != nil {
			return err
		}
		if r.fnSym.IsTyped && !r.assignable(r.fnSym.Result, d.Expr, t) {
			return util.Errorf(util.TypeErr, d.Expr.Tok, "cannot return %s from '%s' returning %s",
				t, r.fnSym.Name, r.fnSym.Result)
		}
		if !r.fnSym.IsTyped && !isScalar(t) {
			return util.Errorf(util.TypeErr, d.Expr.Tok, "cannot return %s from '%s'", t, r.fnSym.Name)
		}
		node.Typ = t
		return nil
	}

	t, err := r.resolveExpr(node, nil)
	if err != nil {
		return err
	}
	// A bare expression statement has to produce a register value; slice
	// assignments are the one aggregate-typed statement that lowers.
	if node.Type != ast.Assign && !isScalar(t) {
		return util.Errorf(util.TypeErr, node.Tok, "cannot use %s as a value", t)
	}
	return nil
}

func (r *Resolver) resolveCond(cond *ast.Node) error {
	t, err := r.resolveExpr(cond, nil)
	if err != nil {
		return err
	}
	if t.Kind != ast.TYPE_BOOL {
		return util.Errorf(util.TypeErr, cond.Tok, "condition must be bool, got %s", t)
	}
	return nil
}

func (r *Resolver) resolveLocalDecl(node *ast.Node) error {
	d := node.Data.(ast.VarDeclNode)

	var initType *ast.Type
	if d.Init != nil {
		var err error
		initType, err = r.resolveExpr(d.Init, d.Type)
		if err != nil {
			return err
		}
	}

	if d.Type == nil {
		d.Type = initType
	}
	if d.Type.Kind == ast.TYPE_ARRAY && d.Init != nil {
		return util.Errorf(util.TypeErr, node.Tok, "arrays cannot be initialized")
	}
	if d.Init != nil && !r.assignable(d.Type, d.Init, initType) {
		return util.Errorf(util.TypeErr, d.Init.Tok, "cannot initialize %s '%s' with %s", d.Type, d.Name, initType)
	}

	sym := &scope.Symbol{
		Name: d.Name, Type: d.Type, Node: node,
		Loc: ast.Location{Class: ast.StorageLocal, Offset: r.allocSlot(d.Type)},
	}
	if !r.current.Declare(sym) {
		return util.Errorf(util.TypeErr, node.Tok, "redefinition of '%s'", d.Name)
	}
	r.locals = append(r.locals, sym)

	node.Typ = d.Type
	node.Loc = &sym.Loc
	node.Data = d
	return nil
}

// resolveExpr types the expression rooted at node. want, when non-nil, is
// the type the context expects; it only pins otherwise-free integer
// literals and slice-producing &array expressions.
func (r *Resolver) resolveExpr(node *ast.Node, want *ast.Type) (*ast.Type, error) {
	switch node.Type {
	case ast.Number:
		d := node.Data.(ast.NumberNode)
		t := d.Suffix
		if t == nil && want.IsInteger() {
			t = want
		}
		if t == nil {
			t = ast.TypeI64
		}
		if min, max := ast.IntRange(t); d.Value < min || d.Value > max {
			truncated := ast.Truncate(d.Value, t)
			util.Warn(r.cfg, config.WarnOverflow, r.src, node.Tok,
				"constant %d out of range for %s, truncated to %d", d.Value, t, truncated)
			d.Value = truncated
			node.Data = d
		}
		node.Typ = t
		return t, nil

	case ast.Bool:
		node.Typ = ast.TypeBool
		return node.Typ, nil

	case ast.String:
		node.Typ = ast.TypeStr
		return node.Typ, nil

	case ast.Ident:
		d := node.Data.(ast.IdentNode)
		sym := r.current.Lookup(d.Name)
		if sym == nil {
			return nil, util.Errorf(util.TypeErr, node.Tok, "undefined variable '%s'", d.Name)
		}
		if sym.IsFunc {
			return nil, util.Errorf(util.TypeErr, node.Tok, "'%s' is a function, not a variable", d.Name)
		}
		sym.Used = true
		node.Typ = sym.Type
		node.Loc = &sym.Loc
		return sym.Type, nil

	case ast.UnaryOp:
		d := node.Data.(ast.UnaryOpNode)
		t, err := r.resolveExpr(d.Expr, intWant(want))
		if err != nil {
			return nil, err
		}
		if !t.IsInteger() {
			return nil, util.Errorf(util.TypeErr, node.Tok, "cannot negate %s", t)
		}
		node.Typ = t
		return t, nil

	case ast.BinaryOp:
		return r.resolveBinaryOp(node, want)

	case ast.Assign:
		return r.resolveAssign(node)

	case ast.AddressOf:
		d := node.Data.(ast.AddressOfNode)
		if !isLValue(d.LValue) {
			return nil, util.Errorf(util.TypeErr, node.Tok, "invalid address-of target")
		}
		t, err := r.resolveExpr(d.LValue, nil)
		if err != nil {
			return nil, err
		}
		if want != nil && want.Kind == ast.TYPE_SLICE &&
			t.Kind == ast.TYPE_ARRAY && ast.TypesEqual(want.Base, t.Base) {
			// &array consumed where a slice is expected becomes the slice.
			node.Typ = want
			return want, nil
		}
		node.Typ = ast.NewReference(t)
		return node.Typ, nil

	case ast.Indirection:
		d := node.Data.(ast.IndirectionNode)
		t, err := r.resolveExpr(d.Expr, nil)
		if err != nil {
			return nil, err
		}
		if t.Kind != ast.TYPE_POINTER && t.Kind != ast.TYPE_REFERENCE {
			return nil, util.Errorf(util.TypeErr, node.Tok, "cannot dereference %s", t)
		}
		node.Typ = t.Base
		return t.Base, nil

	case ast.Subscript:
		d := node.Data.(ast.SubscriptNode)
		bt, err := r.resolveExpr(d.Array, nil)
		if err != nil {
			return nil, err
		}
		if bt.Kind != ast.TYPE_ARRAY && bt.Kind != ast.TYPE_SLICE {
			return nil, util.Errorf(util.TypeErr, node.Tok, "cannot index %s", bt)
		}
		it, err := r.resolveExpr(d.Index, ast.TypeI64)
		if err != nil {
			return nil, err
		}
		if !it.IsInteger() {
			return nil, util.Errorf(util.TypeErr, d.Index.Tok, "array index must be an integer, got %s", it)
		}
		node.Typ = bt.Base
		return bt.Base, nil

	case ast.FuncCall:
		return r.resolveCall(node, want)
	}

	return nil, util.Errorf(util.TypeErr, node.Tok, "expression expected")
}

func (r *Resolver) resolveBinaryOp(node *ast.Node, want *ast.Type) (*ast.Type, error) {
	d := node.Data.(ast.BinaryOpNode)

	if d.Op == token.AndAnd || d.Op == token.OrOr {
		for _, operand := range []*ast.Node{d.Left, d.Right} {
			t, err := r.resolveExpr(operand, nil)
			if err != nil {
				return nil, err
			}
			if t.Kind != ast.TYPE_BOOL {
				return nil, util.Errorf(util.TypeErr, operand.Tok, "operand of '%s' must be bool, got %s",
					opName(d.Op), t)
			}
		}
		node.Typ = ast.TypeBool
		return node.Typ, nil
	}

	lt, err := r.resolveExpr(d.Left, intWant(want))
	if err != nil {
		return nil, err
	}
	rt, err := r.resolveExpr(d.Right, lt)
	if err != nil {
		return nil, err
	}

	// A free operand on the left adopts the type the right side settled on.
	if !ast.TypesEqual(lt, rt) && rt.IsInteger() && r.isFreeOperand(d.Left) {
		if lt, err = r.resolveExpr(d.Left, rt); err != nil {
			return nil, err
		}
	}
	if !ast.TypesEqual(lt, rt) {
		return nil, util.Errorf(util.TypeErr, node.Tok, "mismatched operands to '%s' (%s and %s)",
			opName(d.Op), lt, rt)
	}

	switch d.Op {
	case token.Plus, token.Minus, token.Star, token.Slash:
		if !lt.IsInteger() {
			return nil, util.Errorf(util.TypeErr, node.Tok, "invalid operands to '%s' (%s)", opName(d.Op), lt)
		}
		node.Typ = lt
	case token.Lt, token.Lte, token.Gt, token.Gte:
		if !lt.IsInteger() {
			return nil, util.Errorf(util.TypeErr, node.Tok, "cannot order values of type %s", lt)
		}
		node.Typ = ast.TypeBool
	case token.EqEq, token.Neq:
		if !isComparable(lt) {
			return nil, util.Errorf(util.TypeErr, node.Tok, "cannot compare values of type %s", lt)
		}
		node.Typ = ast.TypeBool
	default:
		return nil, util.Errorf(util.TypeErr, node.Tok, "unsupported operator")
	}
	return node.Typ, nil
}

func (r *Resolver) resolveAssign(node *ast.Node) (*ast.Type, error) {
	d := node.Data.(ast.AssignNode)
	if !isLValue(d.Lhs) {
		return nil, util.Errorf(util.TypeErr, node.Tok, "invalid assignment target")
	}
	lt, err := r.resolveExpr(d.Lhs, nil)
	if err != nil {
		return nil, err
	}
	if lt.Kind == ast.TYPE_ARRAY {
		return nil, util.Errorf(util.TypeErr, node.Tok, "cannot assign to an array")
	}
	rt, err := r.resolveExpr(d.Rhs, lt)
	if err != nil {
		return nil, err
	}
	if !r.assignable(lt, d.Rhs, rt) {
		return nil, util.Errorf(util.TypeErr, node.Tok, "cannot assign %s to %s", rt, lt)
	}
	node.Typ = lt
	return lt, nil
}

func (r *Resolver) resolveCall(node *ast.Node, want *ast.Type) (*ast.Type, error) {
	d := node.Data.(ast.FuncCallNode)
	sym := r.current.Lookup(d.Name)
	if sym == nil {
		return nil, util.Errorf(util.TypeErr, node.Tok, "call to undefined function '%s'", d.Name)
	}
	if !sym.IsFunc {
		return nil, util.Errorf(util.TypeErr, node.Tok, "'%s' is not a function", d.Name)
	}
	if len(d.Args) != len(sym.Params) {
		return nil, util.Errorf(util.TypeErr, node.Tok, "wrong number of arguments to '%s' (want %d, have %d)",
			d.Name, len(sym.Params), len(d.Args))
	}
	for i, arg := range d.Args {
		at, err := r.resolveExpr(arg, sym.Params[i])
		if err != nil {
			return nil, err
		}
		if !r.assignable(sym.Params[i], arg, at) {
			return nil, util.Errorf(util.TypeErr, arg.Tok, "argument %d of '%s': cannot use %s as %s",
				i+1, d.Name, at, sym.Params[i])
		}
	}
	if sym.IsTyped {
		node.Typ = sym.Result
	} else if want.IsInteger() {
		// An untyped call returns whatever is in the result register, so
		// the surrounding integer context decides how to read it.
		node.Typ = want
	} else {
		node.Typ = ast.TypeI64
	}
	return node.Typ, nil
}

// assignable reports whether a value of type src, produced by srcNode, can
// initialize dst. Pointers and references to the same base interchange.
func (r *Resolver) assignable(dst *ast.Type, srcNode *ast.Node, src *ast.Type) bool {
	if ast.TypesEqual(dst, src) {
		return true
	}
	if isAddressKind(dst.Kind) && isAddressKind(src.Kind) && ast.TypesEqual(dst.Base, src.Base) {
		return true
	}
	return false
}

func isAddressKind(k ast.TypeKind) bool {
	return k == ast.TYPE_POINTER || k == ast.TYPE_REFERENCE
}

// isScalar reports whether a value of type t fits in one register.
func isScalar(t *ast.Type) bool {
	switch t.Kind {
	case ast.TYPE_ARRAY, ast.TYPE_SLICE:
		return false
	}
	return true
}

func isComparable(t *ast.Type) bool {
	switch t.Kind {
	case ast.TYPE_INTEGER, ast.TYPE_BOOL, ast.TYPE_POINTER, ast.TYPE_REFERENCE, ast.TYPE_STR:
		return true
	}
	return false
}

func isLValue(node *ast.Node) bool {
	if node == nil {
		return false
	}
	switch node.Type {
	case ast.Ident, ast.Indirection, ast.Subscript:
		return true
	}
	return false
}

// isFreeOperand reports whether node's integer type is still free to follow
// the sibling operand: an unsuffixed literal (possibly negated) or a call to
// a function without a return annotation.
func (r *Resolver) isFreeOperand(node *ast.Node) bool {
	switch node.Type {
	case ast.Number:
		return node.Data.(ast.NumberNode).Suffix == nil
	case ast.UnaryOp:
		return r.isFreeOperand(node.Data.(ast.UnaryOpNode).Expr)
	case ast.FuncCall:
		sym := r.globals.Lookup(node.Data.(ast.FuncCallNode).Name)
		return sym != nil && sym.IsFunc && !sym.IsTyped
	}
	return false
}

func intWant(want *ast.Type) *ast.Type {
	if want.IsInteger() {
		return want
	}
	return nil
}

func opName(op token.Type) string {
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
	return token.TypeStrings[op]
}
