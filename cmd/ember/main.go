// cmd/ember is the CLI collaborator spec.md §6.2 describes: a thin
// driver over internal/orchestrator, not part of the core pipeline's own
// test surface. Flag scanning is hand-rolled, mirroring the teacher's own
// cmd/sentra/main.go rather than reaching for a flag-parsing library.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/ember-lang/ember/internal/bytecode"
	"github.com/ember-lang/ember/internal/compiler"
	"github.com/ember-lang/ember/internal/ensure"
	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/optimize"
	"github.com/ember-lang/ember/internal/oracle"
	"github.com/ember-lang/ember/internal/orchestrator"
	"github.com/ember-lang/ember/internal/reader"
	"github.com/ember-lang/ember/internal/repl"
	"github.com/ember-lang/ember/internal/stitch"
	"github.com/ember-lang/ember/internal/transform"
	"github.com/ember-lang/ember/internal/value"
)

const version = "0.1.0"

type options struct {
	file          string
	printResult   bool
	measure       bool
	disassemble   bool
	optimizeLevel int
	verboseExpose int
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if opts == nil {
		// -h/-v already handled and printed; nothing left to run.
		return
	}

	if opts.file == "" {
		runREPLOrStdin()
		return
	}

	if err := runFile(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// parseArgs scans argv by hand (spec.md §6.2's exact flag set): -h/--help,
// -v/--version, -r/--print-result, -m/--measure, -d/--disassemble,
// -O LEVEL, -e/--verbose-expose LEVEL, plus one trailing file argument.
// Returns (nil, nil) once -h/-v has already printed its own output.
func parseArgs(args []string) (*options, error) {
	opts := &options{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-h", "--help":
			printUsage()
			return nil, nil
		case "-v", "--version":
			fmt.Printf("ember %s\n", version)
			return nil, nil
		case "-r", "--print-result":
			opts.printResult = true
		case "-m", "--measure":
			opts.measure = true
		case "-d", "--disassemble":
			opts.disassemble = true
		case "-O":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("-O requires a LEVEL argument")
			}
			level, err := parseInt(args[i])
			if err != nil {
				return nil, fmt.Errorf("-O: %w", err)
			}
			opts.optimizeLevel = level
		case "-e", "--verbose-expose":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("%s requires a LEVEL argument", arg)
			}
			level, err := parseInt(args[i])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", arg, err)
			}
			opts.verboseExpose = level
		default:
			if opts.file != "" {
				return nil, fmt.Errorf("unexpected argument: %s", arg)
			}
			opts.file = arg
		}
	}
	return opts, nil
}

func parseInt(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not a number: %s", s)
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

func printUsage() {
	fmt.Println("ember - run, disassemble or explore a source file")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ember [flags] [file]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -h, --help                Show this help")
	fmt.Println("  -v, --version             Show version")
	fmt.Println("  -r, --print-result        Print the unit's resulting value")
	fmt.Println("  -m, --measure             Print elapsed compile/run time")
	fmt.Println("  -d, --disassemble         Print the compiled bytecode instead of running")
	fmt.Println("  -O LEVEL                  Optimizer passes = LEVEL * 8")
	fmt.Println("  -e, --verbose-expose LEVEL  Oracle resolution verbosity")
	fmt.Println()
	fmt.Println("With no file argument, starts an interactive REPL (or reads a script from")
	fmt.Println("stdin when stdin isn't a terminal).")
}

// unconfiguredOracle answers every FilesFor with an ExposeError naming
// the missing configuration, rather than leaving the orchestrator to
// dereference a nil interface the moment a unit actually uses expose.
type unconfiguredOracle struct{}

func (unconfiguredOracle) FilesFor(distinct string) ([]string, error) {
	return nil, errors.NewExpose("cannot resolve expose \"" + distinct + "\": EMBER_ORACLE_ADDR is not set")
}

// oracleClient builds the oracle.Client a run needs to resolve
// distinct/expose, from the EMBER_ORACLE_ADDR environment variable — the
// oracle's own implementation is an external collaborator (spec §1), so
// there is no in-process default to fall back to.
func oracleClient() orchestrator.Oracle {
	addr := os.Getenv("EMBER_ORACLE_ADDR")
	if addr == "" {
		return unconfiguredOracle{}
	}
	return oracle.Dial(addr)
}

func runREPLOrStdin() {
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		repl.Start(os.Stdin, os.Stdout)
		return
	}

	source, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(&options{file: "<stdin>"}, string(source)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runFile(opts *options) error {
	source, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", opts.file, err)
	}
	return run(opts, string(source))
}

func run(opts *options, source string) error {
	if opts.disassemble {
		return disassembleOnly(opts, source)
	}

	o := orchestrator.New(oracleClient())
	if opts.optimizeLevel > 0 {
		o.Iterations = opts.optimizeLevel * optimize.DefaultIterations
	}
	if opts.verboseExpose > 0 {
		o.Log = func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, "[expose] "+format+"\n", args...)
		}
	}

	start := time.Now()
	result, err := o.Run(opts.file, source)
	elapsed := time.Since(start)

	if opts.measure {
		fmt.Printf("took %s\n", elapsed)
	}
	if err != nil {
		return err
	}

	if outcome, ok := asEnsureOutcome(opts.file, result); ok {
		report := &ensure.Report{Outcomes: []*ensure.Outcome{outcome}, Elapsed: elapsed}
		report.Print(os.Stdout)
		if !report.AllPassed() {
			os.Exit(1)
		}
		return nil
	}

	if opts.printResult && result != nil {
		printValue(result)
	}
	return nil
}

// asEnsureOutcome treats a top-level *value.Map result as an ensure
// block's outcome so the CLI can report it instead of printing a raw map
// value. Any *value.Map qualifies: an ordinary program value that happens
// to be a map is not told apart from an ensure block's result.
func asEnsureOutcome(file string, result value.Value) (*ensure.Outcome, bool) {
	m, ok := result.(*value.Map)
	if !ok {
		return nil, false
	}
	outcome, err := ensure.FromValue(file, m)
	if err != nil {
		return nil, false
	}
	return outcome, true
}

func printValue(v value.Value) {
	if vv, ok := value.As(v); ok {
		if s, err := vv.ToStr(); err == nil {
			fmt.Println(s)
			return
		}
	}
	fmt.Printf("%v\n", v)
}

func disassembleOnly(opts *options, source string) error {
	rdr, err := reader.New(opts.file, source)
	if err != nil {
		return err
	}
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
	chunks, err := compiler.New(opts.file).Compile(transformed)
	if err != nil {
		return err
	}
	iterations := optimize.DefaultIterations
	if opts.optimizeLevel > 0 {
		iterations = opts.optimizeLevel * optimize.DefaultIterations
	}
	optimize.Optimize(chunks, iterations)
	stitch.All(chunks)

	fmt.Print(bytecode.Disassemble(chunks))
	return nil
}
