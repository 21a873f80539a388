// ructest runs the compiler's end-to-end suite: every testdata program is
// compiled twice to check the output is byte-identical, then built and run
// to check its exit status against the '// expect:' header.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

var (
	compiler  = flag.String("compiler", "./ruscc", "Path to the compiler under test.")
	testFiles = flag.String("test-files", "testdata/*.rs", "Glob pattern(s) for files to test (space-separated).")
	skipFiles = flag.String("skip-files", "", "Files to skip (space-separated).")
	timeout   = flag.Duration("timeout", 5*time.Second, "Timeout for each command execution.")
	verbose   = flag.Bool("v", false, "Enable verbose logging.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	tempDir, err := os.MkdirTemp("", "ructest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s failed to create temp directory: %v", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)
	setupInterruptHandler(tempDir)

	files := collectFiles()
	if len(files) == 0 {
		log.Fatalf("%s[ERROR]%s no test files matched %q", cRed, cNone, *testFiles)
	}

	passed, failed := 0, 0
	for _, file := range files {
		if msg := runTest(file, tempDir); msg != "" {
			failed++
			log.Printf("%s[FAIL]%s %s: %s", cRed, cNone, file, msg)
		} else {
			passed++
			log.Printf("%s[PASS]%s %s", cGreen, cNone, file)
		}
	}

	log.Printf("%s%d passed, %d failed%s", cBold, passed, failed, cNone)
	if failed > 0 {
		os.Exit(1)
	}
}

func setupInterruptHandler(tempDir string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		os.RemoveAll(tempDir)
		fmt.Printf("\n%s[INTERRUPT]%s test run cancelled, cleaning up...\n", cYellow, cNone)
		os.Exit(1)
	}()
}

func collectFiles() []string {
	skip := make(map[string]bool)
	for _, s := range strings.Fields(*skipFiles) {
		skip[s] = true
	}
	var files []string
	for _, pattern := range strings.Fields(*testFiles) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			log.Fatalf("%s[ERROR]%s bad glob %q: %v", cRed, cNone, pattern, err)
		}
		for _, m := range matches {
			if !skip[m] {
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files
}

// runTest returns an empty string on success, or a failure description.
func runTest(file, tempDir string) string {
	expected, err := expectedExitCode(file)
	if err != nil {
		return err.Error()
	}

	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))

	// Two independent compilations must produce identical assembly.
	asmA := filepath.Join(tempDir, stem+"-a.s")
	asmB := filepath.Join(tempDir, stem+"-b.s")
	for _, out := range []string{asmA, asmB} {
		if msg := runCommand(*compiler, "-s", "-o", out, file); msg != "" {
			return "compile (asm): " + msg
		}
	}
	hashA, textA := hashFile(asmA)
	hashB, textB := hashFile(asmB)
	if hashA != hashB {
		return "nondeterministic output:\n" + cmp.Diff(textA, textB)
	}
	if *verbose {
		log.Printf("  %s asm hash %016x", file, hashA)
	}

	bin := filepath.Join(tempDir, stem)
	if msg := runCommand(*compiler, "-o", bin, file); msg != "" {
		return "compile (binary): " + msg
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, bin)
	err = cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "timed out"
	}
	got := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		got = exitErr.ExitCode()
	} else if err != nil {
		return fmt.Sprintf("run failed: %v", err)
	}
	if got != expected {
		return fmt.Sprintf("exit code %d, want %d", got, expected)
	}
	return ""
}

// expectedExitCode reads the '// expect: N' header from the test program.
func expectedExitCode(file string) (int, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "// expect:"); ok {
			return strconv.Atoi(strings.TrimSpace(rest))
		}
		break
	}
	return 0, fmt.Errorf("missing '// expect:' header")
}

func runCommand(name string, args ...string) string {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Sprintf("%v\n%s", err, strings.TrimSpace(string(output)))
	}
	return ""
}

func hashFile(path string) (uint64, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("%s[ERROR]%s read %s: %v", cRed, cNone, path, err)
	}
	return xxhash.Sum64(data), string(data)
}
