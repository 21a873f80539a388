package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ruscc/ruscc/pkg/config"
	"github.com/ruscc/ruscc/pkg/token"
)

// ErrKind classifies a diagnostic by the phase that produced it. The kind
// decides the process exit code.
type ErrKind int

const (
	LexErr ErrKind = iota
	ParseErr
	TypeErr
	CodegenErr
)

func (k ErrKind) String() string {
	switch k {
	case LexErr:
		return "lex error"
	case ParseErr:
		return "parse error"
	case TypeErr:
		return "type error"
	case CodegenErr:
		return "codegen error"
	}
	return "error"
}

func (k ErrKind) ExitCode() int {
	switch k {
	case LexErr:
		return 2
	case ParseErr:
		return 3
	case TypeErr:
		return 4
	case CodegenErr:
		return 70
	}
	return 1
}

// Diagnostic is an error carrying the offending token so the reporter can
// point at the source line.
type Diagnostic struct {
	Kind    ErrKind
	Tok     token.Token
	Message string
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s", d.Tok.Line, d.Tok.Column, d.Kind, d.Message)
}

func Errorf(kind ErrKind, tok token.Token, format string, args ...any) error {
	return &Diagnostic{Kind: kind, Tok: tok, Message: fmt.Sprintf(format, args...)}
}

// SourceFile tracks the name and content of a single source file.
type SourceFile struct {
	Name    string
	Content []rune
}

// Report prints the diagnostic with the source line and a caret underneath
// the offending token.
func (d *Diagnostic) Report(w io.Writer, src *SourceFile) {
	name := "<input>"
	if src != nil {
		name = src.Name
	}
	fmt.Fprintf(w, "%s:%d:%d: \033[31merror:\033[0m %s\n", name, d.Tok.Line, d.Tok.Column, d.Message)
	printSourceLine(w, src, d.Tok)
}

// Warn prints a warning message if the corresponding warning is enabled.
func Warn(cfg *config.Config, wt config.Warning, src *SourceFile, tok token.Token, format string, args ...any) {
	if !cfg.IsWarningEnabled(wt) {
		return
	}
	name := cfg.InputName
	if name == "" {
		name = "<input>"
	}
	fmt.Fprintf(os.Stderr, "%s:%d:%d: \033[33mwarning:\033[0m ", name, tok.Line, tok.Column)
	fmt.Fprintf(os.Stderr, format, args...)
	fmt.Fprintf(os.Stderr, " [-W%s]\n", cfg.Warnings[wt].Name)
	printSourceLine(os.Stderr, src, tok)
}

// printSourceLine prints the source line and a caret indicating the position.
func printSourceLine(w io.Writer, src *SourceFile, tok token.Token) {
	if src == nil || tok.Line == 0 {
		return
	}

	content := src.Content
	lineNum := tok.Line
	lineStart := 0
	for i, r := range content {
		if lineNum <= 1 {
			break
		}
		if r == '\n' {
			lineNum--
			lineStart = i + 1
		}
	}

	lineEnd := len(content)
	for i := lineStart; i < len(content); i++ {
		if content[i] == '\n' {
			lineEnd = i
			break
		}
	}

	fmt.Fprintf(w, "  %s\n", string(content[lineStart:lineEnd]))

	fmt.Fprintf(w, "  %s\033[32m^", strings.Repeat(" ", tok.Column-1))
	if tok.Len > 1 {
		fmt.Fprintf(w, "%s", strings.Repeat("~", tok.Len-1))
	}
	fmt.Fprintln(w, "\033[0m")
}

// AlignUp rounds n up to the next multiple of align. align must be a power
// of two.
func AlignUp(n, align int64) int64 {
	return (n + align - 1) &^ (align - 1)
}
