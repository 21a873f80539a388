package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/ruscc/ruscc/pkg/ast"
	"github.com/ruscc/ruscc/pkg/cli"
	"github.com/ruscc/ruscc/pkg/codegen"
	"github.com/ruscc/ruscc/pkg/config"
	"github.com/ruscc/ruscc/pkg/lexer"
	"github.com/ruscc/ruscc/pkg/parser"
	"github.com/ruscc/ruscc/pkg/resolver"
	"github.com/ruscc/ruscc/pkg/util"
)

func main() {
	app := cli.NewApp("ruscc")
	app.Synopsis = "[options] <input.rs>"
	app.Description = "A compiler for a small statically-typed systems language, producing x86-64 assembly."

	var (
		outFile string
		asmOnly bool
		verbose bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file>.", "file")
	fs.Bool(&asmOnly, "asm", "s", false, "Emit assembly instead of linking a binary.")
	fs.Bool(&verbose, "verbose", "v", false, "Log each compilation phase.")

	cfg := config.NewConfig()
	warningFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		cfg.ApplyFlagGroups(warningFlags)

		if len(args) != 1 {
			fmt.Fprintf(os.Stderr, "ruscc: expected exactly one input file\n")
			os.Exit(1)
		}
		inputFile := args[0]

		ctx := context.Background()
		if verbose {
			ctx = tlog.ContextWithSpan(ctx, tlog.Root())
		}

		var content []byte
		var err error
		if inputFile == "-" {
			inputFile = "<stdin>"
			content, err = io.ReadAll(os.Stdin)
		} else {
			content, err = os.ReadFile(inputFile)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "ruscc: could not read '%s': %v\n", inputFile, err)
			os.Exit(1)
		}
		src := &util.SourceFile{Name: inputFile, Content: []rune(string(content))}
		cfg.InputName = inputFile

		asm, err := compile(ctx, cfg, src)
		if err != nil {
			if d, ok := err.(*util.Diagnostic); ok {
				d.Report(os.Stderr, src)
				os.Exit(d.Kind.ExitCode())
			}
			fmt.Fprintf(os.Stderr, "ruscc: %v\n", err)
			os.Exit(1)
		}

		if outFile == "" {
			if asmOnly {
				if inputFile == "<stdin>" {
					outFile = "out.s"
				} else {
					outFile = stem(inputFile) + ".s"
				}
			} else {
				outFile = "a.out"
			}
		}

		if asmOnly {
			if err := os.WriteFile(outFile, []byte(asm), 0o644); err != nil {
				fmt.Fprintf(os.Stderr, "ruscc: %v\n", err)
				os.Exit(1)
			}
			return nil
		}

		if err := assembleAndLink(outFile, asm); err != nil {
			fmt.Fprintf(os.Stderr, "ruscc: %v\n", err)
			os.Exit(1)
		}
		tlog.SpanFromContext(ctx).Printw("linked", "output", outFile)
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// compile runs the full pipeline on one source file and returns the
// generated assembly.
func compile(ctx context.Context, cfg *config.Config, src *util.SourceFile) (string, error) {
	tr := tlog.SpanFromContext(ctx)

	toks, err := lexer.Tokenize(src, cfg)
	if err != nil {
		return "", err
	}
	tr.Printw("tokenized", "tokens", len(toks))

	p := parser.NewParser(toks)
	root, err := p.Parse()
	if err != nil {
		return "", err
	}
	tr.Printw("parsed", "decls", len(root.Data.(ast.BlockNode).Stmts))

	if err := resolver.New(cfg, src).Resolve(root); err != nil {
		return "", err
	}
	tr.Printw("resolved")

	asm, err := codegen.NewContext(cfg).Generate(root)
	if err != nil {
		return "", err
	}
	tr.Printw("generated", "bytes", len(asm))
	return asm, nil
}

func assembleAndLink(outFile, asm string) error {
	asmFile, err := os.CreateTemp("", "ruscc-*.s")
	if err != nil {
		return errors.Wrap(err, "create temp asm file")
	}
	defer os.Remove(asmFile.Name())
	if _, err := asmFile.WriteString(asm); err != nil {
		return errors.Wrap(err, "write temp asm file")
	}
	asmFile.Close()

	// The generated assembly uses absolute OFFSET FLAT relocations, so the
	// result must not be position independent.
	cmd := exec.Command("cc", "-no-pie", "-o", outFile, asmFile.Name())
	if output, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrap(err, "cc failed:\n%s", string(output))
	}
	return nil
}

func stem(path string) string {
	base := filepath.Base(path)
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}
