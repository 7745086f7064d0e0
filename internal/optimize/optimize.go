// Package optimize implements the peephole optimizer of spec §4.5: a
// fixed pipeline of passes run repeatedly over every chunk's snippets
// before stitching. Passes only ever shrink or fold a snippet's
// instruction list in place — none of them introduce a new snippet or
// touch a Label. They rewrite Snippets only: stitch.Chunk/stitch.All
// copy the snippets into Seamless, so only rewrites made before
// stitching reach the stream the VM runs.
package optimize

import "github.com/ember-lang/ember/internal/bytecode"

// Pass is one peephole rewrite rule. Apply scans a single snippet's
// instructions and returns the rewritten slice along with whether it
// changed anything, so the pipeline knows whether another iteration is
// worth running.
type Pass interface {
	Name() string
	Apply(chunk *bytecode.Chunk, instrs []bytecode.Instruction) ([]bytecode.Instruction, bool)
}

// DefaultIterations is the peephole pass count spec §4.5 calls out as
// the default, and what `-O LEVEL` multiplies LEVEL by (spec §6.2).
const DefaultIterations = 8

// Pipeline runs an ordered list of passes over every snippet of every
// chunk, repeating up to iterations times or until a full round makes
// no change, whichever comes first.
type Pipeline struct {
	passes []Pass
}

// NewPipeline builds the pipeline with the passes spec §4.5 names, in
// the order listed there: constant-folding triples first (so later
// redundant-conversion and dead-value passes see the folded form),
// then the pair collapses, then dead-tail trimming last (it benefits
// from whatever the earlier passes have already dropped).
func NewPipeline() *Pipeline {
	return &Pipeline{passes: []Pass{
		foldArithmeticTriple{},
		foldStringConcatTriple{},
		dropEmptyConcatIntermediate{},
		dropRedundantConversion{},
		collapseAssignPop{},
		collapsePutsOnePop{},
		trimDeadTail{},
	}}
}

// Optimize runs the pipeline over every snippet of every chunk in
// place, for up to iterations rounds.
func Optimize(chunks []*bytecode.Chunk, iterations int) {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	p := NewPipeline()
	for _, chunk := range chunks {
		p.optimizeChunk(chunk, iterations)
	}
}

func (p *Pipeline) optimizeChunk(chunk *bytecode.Chunk, iterations int) {
	for _, snip := range chunk.Snippets {
		p.optimizeSnippet(chunk, snip, iterations)
	}
}

func (p *Pipeline) optimizeSnippet(chunk *bytecode.Chunk, snip *bytecode.Snippet, iterations int) {
	for i := 0; i < iterations; i++ {
		changedThisRound := false
		for _, pass := range p.passes {
			rewritten, changed := pass.Apply(chunk, snip.Instructions)
			if changed {
				snip.Instructions = rewritten
				changedThisRound = true
			}
		}
		if !changedThisRound {
			return
		}
	}
}
