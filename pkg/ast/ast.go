// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"github.com/ruscc/ruscc/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	Number NodeType = iota
	Bool
	String
	Ident
	Assign
	BinaryOp
	UnaryOp
	FuncCall
	Indirection
	AddressOf
	Subscript

	// Statements
	FuncDecl
	VarDecl
	If
	While
	Return
	Block
)

// StorageClass says where a binding lives: a label in the data segment or a
// slot in the current frame.
type StorageClass int

const (
	StorageGlobal StorageClass = iota
	StorageLocal
	StorageParam
)

// Location is a resolved storage descriptor. Offset is the distance below
// the frame pointer for locals and parameters; Label names the data-segment
// symbol for globals.
type Location struct {
	Class  StorageClass
	Offset int64
	Label  string
}

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type NodeType
	Tok  token.Token
	Data interface{}
	Typ  *Type     // Set by the resolver
	Loc  *Location // Set by the resolver on nodes naming storage
}

// --- Node Data Structs ---

// NumberNode keeps the literal's pinned type in Suffix when the programmer
// wrote one, e.g. 255u8. A nil Suffix leaves the literal free to adopt the
// surrounding type.
type NumberNode struct {
	Value  int64
	Suffix *Type
}
type BoolNode struct{ Value bool }
type StringNode struct{ Value string }
type IdentNode struct{ Name string }
type AssignNode struct{ Lhs, Rhs *Node }
type BinaryOpNode struct {
	Op          token.Type
	Left, Right *Node
}
type UnaryOpNode struct {
	Op   token.Type
	Expr *Node
}
type IndirectionNode struct{ Expr *Node }
type AddressOfNode struct{ LValue *Node }
type SubscriptNode struct{ Array, Index *Node }
type FuncCallNode struct {
	Name string
	Args []*Node
}
type FuncDeclNode struct {
	Name       string
	Params     []*Node
	Body       *Node
	IsTyped    bool
	ReturnType *Type
	FrameSize  int64 // filled in by the resolver
}
type VarDeclNode struct {
	Name     string
	Type     *Type
	Init     *Node
	IsStatic bool
}
type IfNode struct{ Cond, ThenBody, ElseBody *Node }
type WhileNode struct{ Cond, Body *Node }
type ReturnNode struct{ Expr *Node }
type BlockNode struct{ Stmts []*Node }

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data interface{}) *Node {
	return &Node{Type: nodeType, Tok: tok, Data: data}
}

func NewNumber(tok token.Token, value int64, suffix *Type) *Node {
	return newNode(tok, Number, NumberNode{Value: value, Suffix: suffix})
}
func NewBool(tok token.Token, value bool) *Node {
	return newNode(tok, Bool, BoolNode{Value: value})
}
func NewString(tok token.Token, value string) *Node {
	return newNode(tok, String, StringNode{Value: value})
}
func NewIdent(tok token.Token, name string) *Node {
	return newNode(tok, Ident, IdentNode{Name: name})
}
func NewAssign(tok token.Token, lhs, rhs *Node) *Node {
	return newNode(tok, Assign, AssignNode{Lhs: lhs, Rhs: rhs})
}
func NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right})
}
func NewUnaryOp(tok token.Token, op token.Type, expr *Node) *Node {
	return newNode(tok, UnaryOp, UnaryOpNode{Op: op, Expr: expr})
}
func NewIndirection(tok token.Token, expr *Node) *Node {
	return newNode(tok, Indirection, IndirectionNode{Expr: expr})
}
func NewAddressOf(tok token.Token, lvalue *Node) *Node {
	return newNode(tok, AddressOf, AddressOfNode{LValue: lvalue})
}
func NewSubscript(tok token.Token, array, index *Node) *Node {
	return newNode(tok, Subscript, SubscriptNode{Array: array, Index: index})
}
func NewFuncCall(tok token.Token, name string, args []*Node) *Node {
	return newNode(tok, FuncCall, FuncCallNode{Name: name, Args: args})
}
func NewFuncDecl(tok token.Token, name string, params []*Node, body *Node, isTyped bool, returnType *Type) *Node {
	return newNode(tok, FuncDecl, FuncDeclNode{
		Name: name, Params: params, Body: body, IsTyped: isTyped, ReturnType: returnType,
	})
}
func NewVarDecl(tok token.Token, name string, varType *Type, init *Node, isStatic bool) *Node {
	return newNode(tok, VarDecl, VarDeclNode{Name: name, Type: varType, Init: init, IsStatic: isStatic})
}
func NewIf(tok token.Token, cond, thenBody, elseBody *Node) *Node {
	return newNode(tok, If, IfNode{Cond: cond, ThenBody: thenBody, ElseBody: elseBody})
}
func NewWhile(tok token.Token, cond, body *Node) *Node {
	return newNode(tok, While, WhileNode{Cond: cond, Body: body})
}
func NewReturn(tok token.Token, expr *Node) *Node {
	return newNode(tok, Return, ReturnNode{Expr: expr})
}
func NewBlock(tok token.Token, stmts []*Node) *Node {
	return newNode(tok, Block, BlockNode{Stmts: stmts})
}
