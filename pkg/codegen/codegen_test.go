package codegen

import (
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruscc/ruscc/pkg/config"
	"github.com/ruscc/ruscc/pkg/lexer"
	"github.com/ruscc/ruscc/pkg/parser"
	"github.com/ruscc/ruscc/pkg/resolver"
	"github.com/ruscc/ruscc/pkg/util"
)

func compile(t *testing.T, src string) string {
	t.Helper()
	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnUnusedVariable, false)
	cfg.SetWarning(config.WarnOverflow, false)
	file := &util.SourceFile{Name: "test.rs", Content: []rune(src)}
	toks, err := lexer.Tokenize(file, cfg)
	require.NoError(t, err)
	root, err := parser.NewParser(toks).Parse()
	require.NoError(t, err)
	require.NoError(t, resolver.New(cfg, file).Resolve(root))
	asm, err := NewContext(cfg).Generate(root)
	require.NoError(t, err)
	return asm
}

// contains asserts each snippet occurs in the output, in order.
func contains(t *testing.T, asm string, snippets ...string) {
	t.Helper()
	rest := asm
	for _, s := range snippets {
		i := strings.Index(rest, s)
		require.GreaterOrEqual(t, i, 0, "missing %q in:\n%s", s, asm)
		rest = rest[i+len(s):]
	}
}

func TestFunctionFrame(t *testing.T) {
	asm := compile(t, `
fn main() -> i64 {
    let x = 7;
    return x;
}
`)
	contains(t, asm,
		".intel_syntax noprefix",
		".global main",
		"main:",
		"push rbp",
		"mov rbp, rsp",
		"sub rsp, 16",
		"mov rsp, rbp",
		"pop rbp",
		"ret",
	)
}

func TestLeafFunctionHasNoFrameAllocation(t *testing.T) {
	asm := compile(t, "fn f() -> i64 { return 1; }")
	assert.NotContains(t, asm, "sub rsp,")
}

func TestParamSpill(t *testing.T) {
	asm := compile(t, `
fn f(a: i64, b: i32, c: u8) -> i64 {
    return a + 0;
}
`)
	contains(t, asm,
		"mov [rbp-8], rdi",
		"mov dword ptr [rbp-12], esi",
		"mov byte ptr [rbp-13], dl",
	)
}

func TestDivisionSignedness(t *testing.T) {
	signed := compile(t, "fn f(a: i64, b: i64) -> i64 { return a / b; }")
	contains(t, signed, "cqo", "idiv rdi")
	assert.NotContains(t, signed, "\n    div rdi")

	unsigned := compile(t, "fn f(a: u64, b: u64) -> u64 { return a / b; }")
	contains(t, unsigned, "mov rdx, 0", "div rdi")
	assert.NotContains(t, unsigned, "cqo")
}

func TestComparisons(t *testing.T) {
	asm := compile(t, `
fn f(a: i64, b: u32) -> bool {
    let s: bool = a < 0;
    let u: bool = b < 1u32;
    return a == 0;
}
`)
	contains(t, asm, "setl al", "movzb rax, al")
	contains(t, asm, "setb al")
	contains(t, asm, "sete al")
}

func TestBranchLabels(t *testing.T) {
	asm := compile(t, `
fn f(c: bool) -> i64 {
    if c {
        return 1;
    } else {
        return 2;
    }
}
`)
	contains(t, asm,
		"cmp rax, 0",
		"je .Lelse1",
		"jmp .Lend1",
		".Lelse1:",
		".Lend1:",
	)
}

func TestWhileLabels(t *testing.T) {
	asm := compile(t, `
fn f() -> i64 {
    let i = 0;
    while i < 3 {
        i = i + 1;
    }
    return i;
}
`)
	contains(t, asm,
		".Lbegin1:",
		"je .Lend1",
		"jmp .Lbegin1",
		".Lend1:",
	)
}

func TestShortCircuit(t *testing.T) {
	and := compile(t, "fn f(a: bool, b: bool) -> bool { return a && b; }")
	contains(t, and, "je .Lfalse1", "je .Lfalse1", "mov rax, 1", ".Lfalse1:")

	or := compile(t, "fn f(a: bool, b: bool) -> bool { return a || b; }")
	contains(t, or, "jne .Ltrue1", "jne .Ltrue1", "mov rax, 0", ".Ltrue1:")
}

func TestGlobals(t *testing.T) {
	asm := compile(t, `
static counter: i64;
static table: [i32; 4];

fn f() -> i64 {
    counter = counter + 1;
    table[0] = 1;
    return counter;
}
`)
	contains(t, asm,
		".bss",
		".global counter",
		".align 8",
		"counter:",
		".zero 8",
		".bss",
		".global table",
		".align 4",
		"table:",
		".zero 16",
	)
	assert.Contains(t, asm, "mov rax, OFFSET FLAT:counter")
	assert.Contains(t, asm, "mov rax, OFFSET FLAT:table")
}

func TestStringInterning(t *testing.T) {
	asm := compile(t, `
fn f() -> str {
    let a: str = "hi\n";
    let b: str = "hi\n";
    let c: str = "other";
    return a;
}
`)
	assert.Equal(t, 2, strings.Count(asm, ".string "), "identical literals share one entry")
	contains(t, asm,
		".section .rodata",
		".Lstr0:",
		`.string "hi\n"`,
		".Lstr1:",
		`.string "other"`,
	)
}

func TestNarrowLoadsAndStores(t *testing.T) {
	asm := compile(t, `
fn f() -> i8 {
    let a: i8 = -1i8;
    let b: u8 = 255;
    let c: i32 = 0;
    let d: u32 = 0u32;
    return a + 0i8;
}
`)
	contains(t, asm, "mov byte ptr [rdi], al")
	assert.Contains(t, asm, "movsx rax, byte ptr [rax]")
	assert.Contains(t, asm, "mov dword ptr [rdi], eax")
}

func TestSliceArgument(t *testing.T) {
	asm := compile(t, `
fn sum(xs: [i64], n: i64) -> i64 {
    return xs[0] + n;
}

fn main() -> i64 {
    let a: [i64; 2];
    a[0] = 5;
    return sum(&a, 1);
}
`)
	// callee spills ptr and len from rdi/rsi, n arrives in rdx
	contains(t, asm,
		"mov [rbp-16], rdi",
		"mov [rbp-8], rsi",
		"mov [rbp-24], rdx",
	)
	// caller materializes &a as ptr + constant length
	contains(t, asm, "mov rax, 2", "push rax")
}

func TestManyArguments(t *testing.T) {
	asm := compile(t, `
fn f(a: i64, b: i64, c: i64, d: i64, e: i64, g: i64, h: i64, i: i64) -> i64 {
    return a + i;
}

fn main() -> i64 {
    return f(1, 2, 3, 4, 5, 6, 7, 8);
}
`)
	// callee: slots 7 and 8 come from above the frame
	contains(t, asm, "mov rax, [rbp+16]", "mov rax, [rbp+24]")
	// caller: overflow tail copied below the evaluated arguments
	contains(t, asm, "mov rax, [rsp+0]", "push rax", "mov rax, [rsp+16]", "push rax")
	assert.Contains(t, asm, "mov rdi, [rsp+")
	assert.Contains(t, asm, "add rsp, 80")
}

func TestCallAlignmentPadding(t *testing.T) {
	// One evaluated operand is live across the call, so the stack needs an
	// 8-byte pad to stay 16-aligned.
	asm := compile(t, `
fn g() -> i64 { return 1; }
fn f() -> i64 { return 1 + g(); }
`)
	contains(t, asm, "push rax", "sub rsp, 8", "call g", "add rsp, 8")
}

func TestPointerRoundTrip(t *testing.T) {
	asm := compile(t, `
fn f() -> i64 {
    let x = 41;
    let p: *i64 = &x;
    *p = *p + 1;
    return x;
}
`)
	contains(t, asm, "lea rax, [rbp-8]")
	assert.Contains(t, asm, "mov [rdi], rax")
}

func TestDeterministicOutput(t *testing.T) {
	src := `
static total: i64;

fn add(xs: [i32], n: i64) -> i64 {
    let i = 0;
    while i < n {
        total = total + 1;
        i = i + 1;
    }
    return total;
}

fn main() -> i64 {
    let a: [i32; 3];
    let msg: str = "done";
    return add(&a, 3);
}
`
	a := compile(t, src)
	b := compile(t, src)
	assert.Equal(t, xxhash.Sum64String(a), xxhash.Sum64String(b))
	assert.Equal(t, a, b)
}
