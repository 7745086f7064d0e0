// Package compiler implements the bytecode compiler of spec §4.4: a
// tagged-dispatch visitor turning a transformed quote tree into a list of
// bytecode.Chunk. Every chunk starts with one snippet under a fictitious
// core label; compiling a fun/box/lambda body opens a new child chunk,
// appended to the same pool so FunctionPayload.ChunkRef can index it.
package compiler

import (
	"github.com/ember-lang/ember/internal/bytecode"
	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/quote"
)

// lexScope tracks, at compile time only, which names are declared at
// which nesting level so a Symbol's vsymbol payload can carry its nest
// depth (spec §4.4: "the vsymbol's nest is the index of the scope in
// which it was declared, 0 = global"). This mirrors value.Scope's shape
// without holding any runtime value.
type lexScope struct {
	parent *lexScope
	names  map[string]bool
	depth  int32
}

func newLexScope(parent *lexScope) *lexScope {
	depth := int32(0)
	if parent != nil {
		depth = parent.depth + 1
	}
	return &lexScope{parent: parent, names: map[string]bool{}, depth: depth}
}

func (s *lexScope) declare(name string) { s.names[name] = true }

// nest returns the declaring scope's depth for name, defaulting to this
// scope's own depth (an implicit binding introduced by the assignment
// itself) when name is not yet declared anywhere visible.
func (s *lexScope) nest(name string) int32 {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.names[name] {
			return cur.depth
		}
	}
	return s.depth
}

// loopCtx records the label a bare `next`/`next loop` inside the loop
// body re-enters at.
type loopCtx struct {
	headLabel *bytecode.Label
}

// Compiler holds the chunk pool being built for one compile unit — one
// source file's top-level statements, or one orchestrator-resolved
// dependency.
type Compiler struct {
	file        string
	chunks      []*bytecode.Chunk
	loops       []*loopCtx
	funRestarts []*bytecode.Label
}

func New(file string) *Compiler {
	return &Compiler{file: file}
}

// Compile compiles a unit's top-level statements into the chunk at index
// 0 of the returned slice; subsequent entries are fun/lambda/box bodies
// discovered while compiling.
func (c *Compiler) Compile(stmts []quote.Quote) ([]*bytecode.Chunk, error) {
	chunk := bytecode.NewChunk(c.file, "main")
	c.chunks = []*bytecode.Chunk{chunk}
	scope := newLexScope(nil)
	snip := chunk.Entry()

	for i, s := range stmts {
		next, err := c.compile(chunk, snip, scope, s)
		if err != nil {
			return nil, err
		}
		snip = next
		if i < len(stmts)-1 {
			snip.Emit(bytecode.OpPop, line(s))
		}
	}
	return c.chunks, nil
}

// openSnippet binds label's (pre-stitch) target to the snippet index it
// is about to occupy, then appends it to chunk — per bytecode.Label's own
// doc comment: "during compilation its Target is a snippet index".
func (c *Compiler) openSnippet(chunk *bytecode.Chunk, label *bytecode.Label) *bytecode.Snippet {
	label.Bind(len(chunk.Snippets))
	return chunk.OpenSnippet(label)
}

func line(q quote.Quote) int { return q.Pos().Line }

func unsupported(q quote.Quote, what string) error {
	p := q.Pos()
	return errors.NewCompile("unsupported "+what, p.File, p.Line)
}
