// Package codegen lowers the resolved tree to textual x86-64 assembly in
// Intel syntax. Expressions evaluate into rax; binary operators stash the
// left operand on the machine stack while the right side runs.
package codegen

import (
	"fmt"
	"strings"

	"github.com/ruscc/ruscc/pkg/ast"
	"github.com/ruscc/ruscc/pkg/config"
	"github.com/ruscc/ruscc/pkg/token"
	"github.com/ruscc/ruscc/pkg/util"
)

// System V AMD64 integer argument registers, widest to narrowest name.
var (
	argRegs64 = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}
	argRegs32 = []string{"edi", "esi", "edx", "ecx", "r8d", "r9d"}
	argRegs16 = []string{"di", "si", "dx", "cx", "r8w", "r9w"}
	argRegs8  = []string{"dil", "sil", "dl", "cl", "r8b", "r9b"}
)

type Context struct {
	cfg  *config.Config
	text strings.Builder

	labelCount int
	depth      int // outstanding 8-byte pushes in the current function

	strs     map[string]string
	strOrder []string

	fnName string
}

func NewContext(cfg *config.Config) *Context {
	return &Context{cfg: cfg, strs: make(map[string]string)}
}

// Generate emits the program: one .bss block per static, one .text block
// per function, and a trailing .rodata section holding interned strings.
func (ctx *Context) Generate(root *ast.Node) (string, error) {
	var out strings.Builder
	out.WriteString(".intel_syntax noprefix\n")

	for _, stmt := range root.Data.(ast.BlockNode).Stmts {
		switch stmt.Type {
		case ast.VarDecl:
			ctx.genGlobal(&out, stmt)
		case ast.FuncDecl:
			if err := ctx.genFunc(stmt); err != nil {
				return "", err
			}
		}
	}

	out.WriteString(ctx.text.String())

	if len(ctx.strOrder) > 0 {
		out.WriteString("    .section .rodata\n")
		for _, s := range ctx.strOrder {
			fmt.Fprintf(&out, "%s:\n", ctx.strs[s])
			fmt.Fprintf(&out, "    .string \"%s\"\n", escapeString(s))
		}
	}
	return out.String(), nil
}

func (ctx *Context) genGlobal(out *strings.Builder, node *ast.Node) {
	d := node.Data.(ast.VarDeclNode)
	size := ast.SizeOf(d.Type, ctx.cfg.WordSize)
	out.WriteString("    .bss\n")
	fmt.Fprintf(out, "    .global %s\n", d.Name)
	fmt.Fprintf(out, "    .align %d\n", ast.AlignOf(d.Type, ctx.cfg.WordSize))
	fmt.Fprintf(out, "%s:\n", d.Name)
	fmt.Fprintf(out, "    .zero %d\n", size)
}

func (ctx *Context) genFunc(node *ast.Node) error {
	d := node.Data.(ast.FuncDeclNode)
	ctx.fnName = d.Name
	ctx.depth = 0

	ctx.text.WriteString("    .text\n")
	ctx.emit(".global %s", d.Name)
	fmt.Fprintf(&ctx.text, "%s:\n", d.Name)
	ctx.emit("push rbp")
	ctx.emit("mov rbp, rsp")
	if d.FrameSize > 0 {
		ctx.emit("sub rsp, %d", d.FrameSize)
	}

	if err := ctx.spillParams(d.Params); err != nil {
		return err
	}

	for _, stmt := range d.Body.Data.(ast.BlockNode).Stmts {
		if err := ctx.genStmt(stmt); err != nil {
			return err
		}
	}

	// Fall through without an explicit return yields zero.
	ctx.emit("mov rax, 0")
	ctx.genEpilogue()
	return nil
}

// spillParams stores incoming arguments into their frame slots. Slices
// arrive as a pointer/length register pair.
func (ctx *Context) spillParams(params []*ast.Node) error {
	slot := 0
	for _, p := range params {
		t := p.Typ
		off := p.Loc.Offset
		if t.Kind == ast.TYPE_SLICE {
			if err := ctx.spillWord(slot, off, 8); err != nil {
				return err
			}
			if err := ctx.spillWord(slot+1, off-8, 8); err != nil {
				return err
			}
			slot += 2
			continue
		}
		if err := ctx.spillWord(slot, off, ast.SizeOf(t, ctx.cfg.WordSize)); err != nil {
			return err
		}
		slot++
	}
	return nil
}

func (ctx *Context) spillWord(slot int, off, size int64) error {
	if slot < len(argRegs64) {
		switch size {
		case 1:
			ctx.emit("mov byte ptr [rbp-%d], %s", off, argRegs8[slot])
		case 2:
			ctx.emit("mov word ptr [rbp-%d], %s", off, argRegs16[slot])
		case 4:
			ctx.emit("mov dword ptr [rbp-%d], %s", off, argRegs32[slot])
		default:
			ctx.emit("mov [rbp-%d], %s", off, argRegs64[slot])
		}
		return nil
	}
	// Overflow arguments sit above the saved rbp and return address.
	stackOff := 16 + 8*int64(slot-len(argRegs64))
	ctx.emit("mov rax, [rbp+%d]", stackOff)
	switch size {
	case 1:
		ctx.emit("mov byte ptr [rbp-%d], al", off)
	case 2:
		ctx.emit("mov word ptr [rbp-%d], ax", off)
	case 4:
		ctx.emit("mov dword ptr [rbp-%d], eax", off)
	default:
		ctx.emit("mov [rbp-%d], rax", off)
	}
	return nil
}

// --- Statements ---

func (ctx *Context) genStmt(node *ast.Node) error {
	switch node.Type {
	case ast.Block:
		for _, stmt := range node.Data.(ast.BlockNode).Stmts {
			if err := ctx.genStmt(stmt); err != nil {
				return err
			}
		}
		return nil

	case ast.VarDecl:
		return ctx.genLocalDecl(node)

	case ast.If:
		d := node.Data.(ast.IfNode)
		c := ctx.newLabel()
		if err := ctx.genExpr(d.Cond); err != nil {
			return err
		}
		ctx.emit("cmp rax, 0")
		if d.ElseBody != nil {
			ctx.emit("je .Lelse%d", c)
			if err := ctx.genStmt(d.ThenBody); err != nil {
				return err
			}
			ctx.emit("jmp .Lend%d", c)
			ctx.putLabel(".Lelse%d", c)
			if err := ctx.genStmt(d.ElseBody); err != nil {
				return err
			}
		} else {
			ctx.emit("je .Lend%d", c)
			if err := ctx.genStmt(d.ThenBody); err != nil {
				return err
			}
		}
		ctx.putLabel(".Lend%d", c)
		return nil

	case ast.While:
		d := node.Data.(ast.WhileNode)
		c := ctx.newLabel()
		ctx.putLabel(".Lbegin%d", c)
		if err := ctx.genExpr(d.Cond); err != nil {
			return err
		}
		ctx.emit("cmp rax, 0")
		ctx.emit("je .Lend%d", c)
		if err := ctx.genStmt(d.Body); err != nil {
			return err
		}
		ctx.emit("jmp .Lbegin%d", c)
		ctx.putLabel(".Lend%d", c)
		return nil

	case ast.Return:
		d := node.Data.(ast.ReturnNode)
		if d.Expr != nil {
			if err := ctx.genExpr(d.Expr); err != nil {
				return err
			}
		} else {
			ctx.emit("mov rax, 0")
		}
		ctx.genEpilogue()
		return nil
	}

	return ctx.genExpr(node)
}

func (ctx *Context) genEpilogue() {
	ctx.emit("mov rsp, rbp")
	ctx.emit("pop rbp")
	ctx.emit("ret")
}

func (ctx *Context) genLocalDecl(node *ast.Node) error {
	d := node.Data.(ast.VarDeclNode)
	if d.Init == nil {
		return nil
	}
	if node.Typ.Kind == ast.TYPE_SLICE {
		ctx.emit("lea rax, [rbp-%d]", node.Loc.Offset)
		ctx.push()
		return ctx.genSliceStore(d.Init)
	}
	ctx.emit("lea rax, [rbp-%d]", node.Loc.Offset)
	ctx.push()
	if err := ctx.genExpr(d.Init); err != nil {
		return err
	}
	ctx.pop("rdi")
	ctx.store(node.Typ)
	return nil
}

// --- Expressions ---

func (ctx *Context) genExpr(node *ast.Node) error {
	switch node.Type {
	case ast.Number:
		ctx.emit("mov rax, %d", node.Data.(ast.NumberNode).Value)
		return nil

	case ast.Bool:
		if node.Data.(ast.BoolNode).Value {
			ctx.emit("mov rax, 1")
		} else {
			ctx.emit("mov rax, 0")
		}
		return nil

	case ast.String:
		lbl := ctx.internString(node.Data.(ast.StringNode).Value)
		ctx.emit("mov rax, OFFSET FLAT:%s", lbl)
		return nil

	case ast.Ident:
		if !isScalar(node.Typ) {
			return util.Errorf(util.CodegenErr, node.Tok, "cannot use %s as a value", node.Typ)
		}
		if err := ctx.genAddr(node); err != nil {
			return err
		}
		ctx.load(node.Typ)
		return nil

	case ast.UnaryOp:
		if err := ctx.genExpr(node.Data.(ast.UnaryOpNode).Expr); err != nil {
			return err
		}
		ctx.emit("neg rax")
		return nil

	case ast.BinaryOp:
		return ctx.genBinaryOp(node)

	case ast.Assign:
		return ctx.genAssign(node)

	case ast.AddressOf:
		if node.Typ.Kind == ast.TYPE_SLICE {
			return util.Errorf(util.CodegenErr, node.Tok, "slice value outside slice context")
		}
		return ctx.genAddr(node.Data.(ast.AddressOfNode).LValue)

	case ast.Indirection:
		if err := ctx.genExpr(node.Data.(ast.IndirectionNode).Expr); err != nil {
			return err
		}
		ctx.load(node.Typ)
		return nil

	case ast.Subscript:
		if err := ctx.genSubscriptAddr(node); err != nil {
			return err
		}
		ctx.load(node.Typ)
		return nil

	case ast.FuncCall:
		return ctx.genCall(node)
	}

	return util.Errorf(util.CodegenErr, node.Tok, "cannot generate code for this expression")
}

func (ctx *Context) genBinaryOp(node *ast.Node) error {
	d := node.Data.(ast.BinaryOpNode)

	if d.Op == token.AndAnd || d.Op == token.OrOr {
		return ctx.genShortCircuit(d)
	}

	if err := ctx.genExpr(d.Left); err != nil {
		return err
	}
	ctx.push()
	if err := ctx.genExpr(d.Right); err != nil {
		return err
	}
	ctx.emit("mov rdi, rax")
	ctx.pop("rax")

	signed := d.Left.Typ == nil || !d.Left.Typ.IsInteger() || d.Left.Typ.Signed

	switch d.Op {
	case token.Plus:
		ctx.emit("add rax, rdi")
	case token.Minus:
		ctx.emit("sub rax, rdi")
	case token.Star:
		ctx.emit("imul rax, rdi")
	case token.Slash:
		if signed {
			ctx.emit("cqo")
			ctx.emit("idiv rdi")
		} else {
			ctx.emit("mov rdx, 0")
			ctx.emit("div rdi")
		}
	case token.EqEq, token.Neq, token.Lt, token.Lte, token.Gt, token.Gte:
		ctx.emit("cmp rax, rdi")
		ctx.emit("%s al", setccFor(d.Op, signed))
		ctx.emit("movzb rax, al")
	default:
		return util.Errorf(util.CodegenErr, node.Tok, "unsupported binary operator")
	}
	return nil
}

func setccFor(op token.Type, signed bool) string {
	switch op {
	case token.EqEq:
		return "sete"
	case token.Neq:
		return "setne"
	case token.Lt:
		if signed {
			return "setl"
		}
		return "setb"
	case token.Lte:
		if signed {
			return "setle"
		}
		return "setbe"
	case token.Gt:
		if signed {
			return "setg"
		}
		return "seta"
	case token.Gte:
		if signed {
			return "setge"
		}
		return "setae"
	}
	return "sete"
}

func (ctx *Context) genShortCircuit(d ast.BinaryOpNode) error {
	c := ctx.newLabel()
	if err := ctx.genExpr(d.Left); err != nil {
		return err
	}
	ctx.emit("cmp rax, 0")
	if d.Op == token.AndAnd {
		ctx.emit("je .Lfalse%d", c)
		if err := ctx.genExpr(d.Right); err != nil {
			return err
		}
		ctx.emit("cmp rax, 0")
		ctx.emit("je .Lfalse%d", c)
		ctx.emit("mov rax, 1")
		ctx.emit("jmp .Lend%d", c)
		ctx.putLabel(".Lfalse%d", c)
		ctx.emit("mov rax, 0")
	} else {
		ctx.emit("jne .Ltrue%d", c)
		if err := ctx.genExpr(d.Right); err != nil {
			return err
		}
		ctx.emit("cmp rax, 0")
		ctx.emit("jne .Ltrue%d", c)
		ctx.emit("mov rax, 0")
		ctx.emit("jmp .Lend%d", c)
		ctx.putLabel(".Ltrue%d", c)
		ctx.emit("mov rax, 1")
	}
	ctx.putLabel(".Lend%d", c)
	return nil
}

func (ctx *Context) genAssign(node *ast.Node) error {
	d := node.Data.(ast.AssignNode)
	if node.Typ.Kind == ast.TYPE_SLICE {
		if err := ctx.genAddr(d.Lhs); err != nil {
			return err
		}
		ctx.push()
		return ctx.genSliceStore(d.Rhs)
	}
	if err := ctx.genAddr(d.Lhs); err != nil {
		return err
	}
	ctx.push()
	if err := ctx.genExpr(d.Rhs); err != nil {
		return err
	}
	ctx.pop("rdi")
	ctx.store(node.Typ)
	return nil
}

// --- Addresses ---

func (ctx *Context) genAddr(node *ast.Node) error {
	switch node.Type {
	case ast.Ident:
		if node.Loc.Class == ast.StorageGlobal {
			ctx.emit("mov rax, OFFSET FLAT:%s", node.Loc.Label)
		} else {
			ctx.emit("lea rax, [rbp-%d]", node.Loc.Offset)
		}
		return nil
	case ast.Indirection:
		return ctx.genExpr(node.Data.(ast.IndirectionNode).Expr)
	case ast.Subscript:
		return ctx.genSubscriptAddr(node)
	}
	return util.Errorf(util.CodegenErr, node.Tok, "expression is not addressable")
}

func (ctx *Context) genSubscriptAddr(node *ast.Node) error {
	d := node.Data.(ast.SubscriptNode)
	if err := ctx.genAddr(d.Array); err != nil {
		return err
	}
	if d.Array.Typ.Kind == ast.TYPE_SLICE {
		ctx.emit("mov rax, [rax]")
	}
	ctx.push()
	if err := ctx.genExpr(d.Index); err != nil {
		return err
	}
	ctx.emit("imul rax, %d", ast.SizeOf(node.Typ, ctx.cfg.WordSize))
	ctx.pop("rdi")
	ctx.emit("add rax, rdi")
	return nil
}

// --- Slices ---

// genSlicePair evaluates a slice expression and pushes its data pointer,
// then its length.
func (ctx *Context) genSlicePair(node *ast.Node) error {
	if node.Type == ast.AddressOf && node.Typ.Kind == ast.TYPE_SLICE {
		arr := node.Data.(ast.AddressOfNode).LValue
		if err := ctx.genAddr(arr); err != nil {
			return err
		}
		ctx.push()
		ctx.emit("mov rax, %d", arr.Typ.Len)
		ctx.push()
		return nil
	}
	if err := ctx.genAddr(node); err != nil {
		return err
	}
	ctx.emit("mov rdi, [rax+8]")
	ctx.emit("mov rax, [rax]")
	ctx.push()
	ctx.emit("push rdi")
	ctx.depth++
	return nil
}

// genSliceStore expects the destination address already pushed and stores
// the pointer/length pair of rhs through it.
func (ctx *Context) genSliceStore(rhs *ast.Node) error {
	if err := ctx.genSlicePair(rhs); err != nil {
		return err
	}
	ctx.pop("rsi") // length
	ctx.pop("rdi") // data pointer
	ctx.pop("rax") // destination
	ctx.emit("mov [rax], rdi")
	ctx.emit("mov [rax+8], rsi")
	ctx.emit("mov rax, rdi")
	return nil
}

// --- Calls ---

func (ctx *Context) genCall(node *ast.Node) error {
	d := node.Data.(ast.FuncCallNode)

	depthBefore := ctx.depth
	slots := 0
	for _, arg := range d.Args {
		if arg.Typ.Kind == ast.TYPE_SLICE {
			if err := ctx.genSlicePair(arg); err != nil {
				return err
			}
			slots += 2
			continue
		}
		if err := ctx.genExpr(arg); err != nil {
			return err
		}
		ctx.push()
		slots++
	}

	if slots <= len(argRegs64) {
		for i := slots - 1; i >= 0; i-- {
			ctx.pop(argRegs64[i])
		}
		padded := ctx.depth%2 != 0
		if padded {
			ctx.emit("sub rsp, 8")
		}
		ctx.emit("call %s", d.Name)
		if padded {
			ctx.emit("add rsp, 8")
		}
		return nil
	}

	// More than six slots: the overflow tail has to sit at rsp in order,
	// so copy it below the evaluated arguments, highest slot first.
	overflow := slots - len(argRegs64)
	pad := 0
	if (ctx.depth+overflow)%2 != 0 {
		pad = 1
		ctx.emit("sub rsp, 8")
	}
	for c := 0; c < overflow; c++ {
		ctx.emit("mov rax, [rsp+%d]", 16*c+8*pad)
		ctx.emit("push rax")
	}
	for i := 0; i < len(argRegs64); i++ {
		ctx.emit("mov %s, [rsp+%d]", argRegs64[i], 8*(overflow+pad+slots-1-i))
	}
	ctx.emit("call %s", d.Name)
	ctx.emit("add rsp, %d", 8*(slots+overflow+pad))
	ctx.depth = depthBefore
	return nil
}

// --- Loads and stores ---

// load replaces the address in rax with the value it points at, extended to
// a full register according to the type's width and signedness.
func (ctx *Context) load(t *ast.Type) {
	switch ast.SizeOf(t, ctx.cfg.WordSize) {
	case 1:
		if t.Kind == ast.TYPE_INTEGER && t.Signed {
			ctx.emit("movsx rax, byte ptr [rax]")
		} else {
			ctx.emit("movzx rax, byte ptr [rax]")
		}
	case 2:
		if t.Kind == ast.TYPE_INTEGER && t.Signed {
			ctx.emit("movsx rax, word ptr [rax]")
		} else {
			ctx.emit("movzx rax, word ptr [rax]")
		}
	case 4:
		if t.Kind == ast.TYPE_INTEGER && t.Signed {
			ctx.emit("movsxd rax, dword ptr [rax]")
		} else {
			ctx.emit("mov eax, dword ptr [rax]")
		}
	default:
		ctx.emit("mov rax, [rax]")
	}
}

// store writes rax through the address in rdi, narrowed to the type's width.
func (ctx *Context) store(t *ast.Type) {
	switch ast.SizeOf(t, ctx.cfg.WordSize) {
	case 1:
		ctx.emit("mov byte ptr [rdi], al")
	case 2:
		ctx.emit("mov word ptr [rdi], ax")
	case 4:
		ctx.emit("mov dword ptr [rdi], eax")
	default:
		ctx.emit("mov [rdi], rax")
	}
}

// --- Helpers ---

func (ctx *Context) emit(format string, args ...any) {
	fmt.Fprintf(&ctx.text, "    "+format+"\n", args...)
}

func (ctx *Context) putLabel(format string, args ...any) {
	fmt.Fprintf(&ctx.text, format+":\n", args...)
}

func (ctx *Context) newLabel() int {
	ctx.labelCount++
	return ctx.labelCount
}

func (ctx *Context) push() {
	ctx.emit("push rax")
	ctx.depth++
}

func (ctx *Context) pop(reg string) {
	ctx.emit("pop %s", reg)
	ctx.depth--
}

func (ctx *Context) internString(s string) string {
	if lbl, ok := ctx.strs[s]; ok {
		return lbl
	}
	lbl := fmt.Sprintf(".Lstr%d", len(ctx.strOrder))
	ctx.strs[s] = lbl
	ctx.strOrder = append(ctx.strOrder, s)
	return lbl
}

func isScalar(t *ast.Type) bool {
	switch t.Kind {
	case ast.TYPE_ARRAY, ast.TYPE_SLICE:
		return false
	}
	return true
}

func escapeString(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case 0:
			sb.WriteString(`\0`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
