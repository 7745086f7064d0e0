// Package repl implements the interactive fallback spec.md §6.2 names:
// with no file argument (and stdin a terminal), the CLI drops into a
// read-compile-run loop against one shared VM, so a variable bound on
// one line is visible to the next.
package repl

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ember-lang/ember/internal/compiler"
	"github.com/ember-lang/ember/internal/optimize"
	"github.com/ember-lang/ember/internal/reader"
	"github.com/ember-lang/ember/internal/stitch"
	"github.com/ember-lang/ember/internal/transform"
	"github.com/ember-lang/ember/internal/value"
	"github.com/ember-lang/ember/internal/vm"
)

const prompt = ">>> "

// Start runs the loop, reading lines from in and writing the prompt and
// results to out, until in is exhausted or a line is exactly "exit".
func Start(in io.Reader, out io.Writer) {
	fmt.Fprintln(out, "ember REPL | type 'exit' to quit")
	scanner := bufio.NewScanner(in)
	m := vm.New(nil)

	for i := 0; ; i++ {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if line == "exit" {
			return
		}
		if line == "" {
			continue
		}

		if err := evalLine(m, fmt.Sprintf("<repl:%d>", i), line, out); err != nil {
			fmt.Fprintln(out, err)
		}
	}
}

func evalLine(m *vm.VM, file, line string, out io.Writer) error {
	rdr, err := reader.New(file, line)
	if err != nil {
		return err
	}
	// A REPL line normally carries no distinct/expose prelude; calling
	// DistinctExpose consumes one if it is there, since ReadAll would
	// reject those words as statements.
	if _, _, err := rdr.DistinctExpose(); err != nil {
		return err
	}
	stmts, err := rdr.ReadAll()
	if err != nil {
		return err
	}
	transformed, err := transform.RunAll(stmts)
	if err != nil {
		return err
	}
	chunks, err := compiler.New(file).Compile(transformed)
	if err != nil {
		return err
	}
	optimize.Optimize(chunks, optimize.DefaultIterations)
	stitch.All(chunks)

	entry := m.Extend(chunks)
	result, err := m.Run(entry)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if vv, ok := value.As(result); ok {
		if s, err := vv.ToStr(); err == nil {
			fmt.Fprintln(out, s)
			return nil
		}
	}
	fmt.Fprintf(out, "%v\n", result)
	return nil
}
