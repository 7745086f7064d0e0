// Package orchestrator implements spec.md §4.8: the multi-unit driver
// that resolves `distinct`/`expose` against an external oracle, compiles
// each newly-discovered unit into a shared bytecode pool, runs every
// dependency once for its side effects, and finally runs the target
// unit and returns its value.
//
// The chunk pool and the VM's global scope are the orchestrator's two
// pieces of shared state (spec §5: "mutated only by the top-level
// orchestrator thread"); nothing here runs two units' compile-and-splice
// steps concurrently. What does run concurrently is the pure half of
// preparing a batch of newly-exposed files — reading, reading their own
// distinct/expose prelude, transforming and compiling are functions of
// file content alone — via golang.org/x/sync/errgroup, grounded on the
// teacher's own short-lived-per-call dial idiom in internal/network
// generalized from network round-trips to file preparation.
package orchestrator

import (
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/ember-lang/ember/internal/bytecode"
	"github.com/ember-lang/ember/internal/compiler"
	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/optimize"
	"github.com/ember-lang/ember/internal/reader"
	"github.com/ember-lang/ember/internal/stitch"
	"github.com/ember-lang/ember/internal/transform"
	"github.com/ember-lang/ember/internal/value"
	"github.com/ember-lang/ember/internal/vm"
)

// Oracle answers the module-resolution question spec.md §4.8/§6.3 name:
// given a distinct path, the ordered list of filenames whose source
// starts with a matching distinct prelude.
type Oracle interface {
	FilesFor(distinct string) ([]string, error)
}

// Reader abstracts "get me the source for this filename" so tests can
// substitute an in-memory map instead of touching disk.
type Reader func(filename string) (string, error)

func readFile(filename string) (string, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Orchestrator is one process's multi-unit driver: one VM (one shared
// global scope and chunk pool), one oracle, and the filename cache
// spec §4.8/§5 requires to cut self-reference cycles.
type Orchestrator struct {
	VM     *vm.VM
	Oracle Oracle

	// Iterations is the optimizer pass count each unit is run through
	// before stitching (spec §6.2's `-O LEVEL` sets this to LEVEL*8);
	// zero means optimize.DefaultIterations.
	Iterations int

	// Log, when non-nil, is called with one line per expose path resolved
	// and per dependency spliced — the CLI's `-e/--verbose-expose LEVEL`
	// wires this to os.Stderr at LEVEL > 0, nil otherwise.
	Log func(format string, args ...interface{})

	read  Reader
	cache map[string]bool
}

// New builds an Orchestrator with a fresh VM and the given oracle.
func New(o Oracle) *Orchestrator {
	return &Orchestrator{
		VM:     vm.New(nil),
		Oracle: o,
		read:   readFile,
		cache:  make(map[string]bool),
	}
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.Log != nil {
		o.Log(format, args...)
	}
}

// WithReader overrides how dependency source is fetched from a
// filename, for tests that don't want to touch the real filesystem.
func (o *Orchestrator) WithReader(r Reader) *Orchestrator {
	o.read = r
	return o
}

// preparedUnit is the pure half of loading one unit: everything that
// depends only on its own source text, computable off the orchestrator's
// shared state and safe to run concurrently with sibling units.
type preparedUnit struct {
	file    string
	exposes []string
	chunks  []*bytecode.Chunk
}

func (o *Orchestrator) prepare(file, source string) (*preparedUnit, error) {
	rdr, err := reader.New(file, source)
	if err != nil {
		return nil, err
	}
	_, exposes, err := rdr.DistinctExpose()
	if err != nil {
		return nil, err
	}
	stmts, err := rdr.ReadAll()
	if err != nil {
		return nil, err
	}
	transformed, err := transform.RunAll(stmts)
	if err != nil {
		return nil, err
	}
	chunks, err := compiler.New(file).Compile(transformed)
	if err != nil {
		return nil, err
	}
	optimize.Optimize(chunks, o.Iterations)
	stitch.All(chunks)

	paths := make([]string, len(exposes))
	for i, e := range exposes {
		paths[i] = e.Path
	}
	return &preparedUnit{file: file, exposes: paths, chunks: chunks}, nil
}

// splice appends a prepared unit's chunks to the shared pool (rewriting
// every FunctionPayload's chunk-local indices to pool-global ones first)
// and runs it at its new entry point.
func (o *Orchestrator) splice(p *preparedUnit) (value.Value, error) {
	base := int32(len(o.VM.Pool()))
	rewriteChunkRefs(p.chunks, base)
	entry := o.VM.Extend(p.chunks)
	return o.VM.Run(entry)
}

// resolveExpose asks the oracle which files answer one expose path and
// loads every one not already in the filename cache. The files named by
// a single expose path are read, parsed and compiled concurrently (pure
// work, no shared state touched); each is then spliced into the pool and
// run in the oracle's own returned order, on this goroutine only.
func (o *Orchestrator) resolveExpose(path string) error {
	o.log("expose %s: querying oracle", path)
	files, err := o.Oracle.FilesFor(path)
	if err != nil {
		return err
	}
	o.log("expose %s: oracle returned %v", path, files)
	if len(files) == 0 {
		return errors.NewExpose("unresolved distinct path: " + path)
	}

	var toLoad []string
	for _, f := range files {
		if !o.cache[f] {
			toLoad = append(toLoad, f)
		}
	}
	if len(toLoad) == 0 {
		o.log("expose %s: all files already loaded", path)
		return nil
	}

	prepared := make([]*preparedUnit, len(toLoad))
	var g errgroup.Group
	for i, f := range toLoad {
		i, f := i, f
		g.Go(func() error {
			source, err := o.read(f)
			if err != nil {
				return errors.NewExpose("cannot read exposed file " + f + ": " + err.Error())
			}
			p, err := o.prepare(f, source)
			if err != nil {
				return err
			}
			prepared[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range prepared {
		// A cycle through an earlier file in this same batch may
		// already have loaded p.file by the time its turn comes —
		// the cache is what cuts the cycle (spec §4.8/§5).
		if o.cache[p.file] {
			continue
		}
		o.cache[p.file] = true
		for _, nested := range p.exposes {
			if err := o.resolveExpose(nested); err != nil {
				return err
			}
		}
		o.log("splicing dependency %s", p.file)
		if _, err := o.splice(p); err != nil {
			return err
		}
	}
	return nil
}

// Run compiles and executes file as the target unit, first resolving
// every expose it declares — transitively — against the oracle. The
// target's own exposes are resolved the same way as a dependency's, the
// only difference being that the target unit's own result is returned
// rather than discarded.
func (o *Orchestrator) Run(file, source string) (value.Value, error) {
	if o.cache[file] {
		return nil, errors.NewExpose("module cycle: " + file + " exposes its own distinct path")
	}
	o.cache[file] = true

	p, err := o.prepare(file, source)
	if err != nil {
		return nil, err
	}
	for _, path := range p.exposes {
		if err := o.resolveExpose(path); err != nil {
			return nil, err
		}
	}
	return o.splice(p)
}
