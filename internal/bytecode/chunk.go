package bytecode

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ember-lang/ember/internal/quote"
)

// Label is a mutable forward reference: during compilation its Target is
// a snippet index, and after stitching it's an absolute instruction
// index (spec §3.3).
type Label struct {
	Target   int
	Resolved bool
}

func NewLabel() *Label { return &Label{Target: -1} }

func (l *Label) Bind(target int) {
	l.Target = target
	l.Resolved = true
}

// Instruction is one bytecode op, an optional arg index into a payload
// storage, its source line, and (pre-stitch only) the Label it jumps to.
type Instruction struct {
	Op    OpCode
	Arg   int32
	Line  int
	Label *Label // non-nil only for jump-payload instructions before stitching
}

// Snippet is a labeled basic block: a mutable instruction sequence.
type Snippet struct {
	Label        *Label
	Instructions []Instruction
}

func NewSnippet(label *Label) *Snippet {
	return &Snippet{Label: label}
}

func (s *Snippet) Emit(op OpCode, line int) {
	s.Instructions = append(s.Instructions, Instruction{Op: op, Line: line})
}

func (s *Snippet) EmitArg(op OpCode, arg int32, line int) {
	s.Instructions = append(s.Instructions, Instruction{Op: op, Arg: arg, Line: line})
}

func (s *Snippet) EmitJump(op OpCode, target *Label, line int) {
	s.Instructions = append(s.Instructions, Instruction{Op: op, Label: target, Line: line})
}

// StaticKind discriminates the i32 | decimal | string union a Static
// payload vehicle holds.
type StaticKind int

const (
	StaticInt StaticKind = iota
	StaticNum
	StaticStr
)

type Static struct {
	Kind StaticKind
	I    int32
	Num  decimal.Decimal
	Str  string
}

// SymbolPayload names a variable reference; Nest is the lexical scope
// depth at which it was declared (0 = global).
type SymbolPayload struct {
	Name string
	Nest int32
}

// FunctionPayload carries a fun/box/lambda body's metadata; ChunkRef
// indexes the compiler's own chunk list (remapped to a pool-global index
// by the orchestrator when chunks are appended to the shared pool).
//
// Box declarations reuse this same payload (IsBox true) rather than a
// separate opcode: ChunkRef/Params/Arity/Slurpy describe the box's
// constructor parameters exactly like a fun's, and FieldOrder/FieldInit
// add the field namespace a Box instantiation needs — each field's
// initializer compiles to its own standalone chunk (indices parallel to
// FieldOrder) so instantiation can run them in declaration order against
// the new instance's scope.
type FunctionPayload struct {
	Symbol   string
	ChunkRef int32
	Params   *quote.Parameters
	Arity    int32
	Slurpy   bool

	// IsLambda marks an anonymous closure (quote.Lambda): its value
	// captures the enclosing scope active when OpFun executes. A named
	// or anonymous quote.Fun is never a closure over enclosing locals —
	// only the global scope and its own parameters are visible to it.
	IsLambda bool

	// GivenChunkRefs parallels Params.List: GivenChunkRefs[i] indexes a
	// standalone chunk evaluating that parameter's `given` type
	// expression (run once, at OpFun time, against the defining scope),
	// or -1 when the parameter has no given clause at all (weight
	// ANY/ANON_ANY). Only populated for a quote.Fun that has a given
	// clause — lambdas and boxes don't participate in generic-function
	// dispatch.
	GivenChunkRefs []int32

	IsBox      bool
	FieldOrder []string
	FieldInit  []int32
}

// Chunk is a compiled unit: a mutable sequence of labeled snippets plus
// its own payload storages, and (post-stitch) the flattened Seamless
// instruction stream.
type Chunk struct {
	File     string
	Name     string
	Snippets []*Snippet
	Seamless []Instruction

	Jumps     []int32 // resolved absolute instruction indices, post-stitch
	Statics   []Static
	Symbols   []SymbolPayload
	Functions []FunctionPayload

	staticIndex map[string]int32
	symbolIndex map[string]int32
}

func NewChunk(file, name string) *Chunk {
	c := &Chunk{
		File:        file,
		Name:        name,
		staticIndex: make(map[string]int32),
		symbolIndex: make(map[string]int32),
	}
	entry := NewSnippet(NewLabel())
	entry.Label.Bind(0)
	c.Snippets = append(c.Snippets, entry)
	return c
}

// Entry is the fictitious core label's snippet every chunk starts with.
func (c *Chunk) Entry() *Snippet { return c.Snippets[0] }

// OpenSnippet appends and returns a new labeled snippet (sub-chunks for
// if/loop/function bodies open these as needed).
func (c *Chunk) OpenSnippet(label *Label) *Snippet {
	s := NewSnippet(label)
	c.Snippets = append(c.Snippets, s)
	return s
}

func staticKey(kind StaticKind, s Static) string {
	switch kind {
	case StaticInt:
		return fmt.Sprintf("i:%d", s.I)
	case StaticNum:
		return "n:" + s.Num.String()
	default:
		return "s:" + s.Str
	}
}

// AddInt de-duplicates and returns the static's index.
func (c *Chunk) AddInt(v int32) int32 {
	return c.addStatic(Static{Kind: StaticInt, I: v})
}

func (c *Chunk) AddNum(v decimal.Decimal) int32 {
	return c.addStatic(Static{Kind: StaticNum, Num: v})
}

func (c *Chunk) AddStr(v string) int32 {
	return c.addStatic(Static{Kind: StaticStr, Str: v})
}

func (c *Chunk) addStatic(s Static) int32 {
	key := staticKey(s.Kind, s)
	if idx, ok := c.staticIndex[key]; ok {
		return idx
	}
	idx := int32(len(c.Statics))
	c.Statics = append(c.Statics, s)
	c.staticIndex[key] = idx
	return idx
}

// AddSymbol de-duplicates by (name, nest) and returns the symbol's index.
func (c *Chunk) AddSymbol(name string, nest int32) int32 {
	key := fmt.Sprintf("%s\x00%d", name, nest)
	if idx, ok := c.symbolIndex[key]; ok {
		return idx
	}
	idx := int32(len(c.Symbols))
	c.Symbols = append(c.Symbols, SymbolPayload{Name: name, Nest: nest})
	c.symbolIndex[key] = idx
	return idx
}

// AddFunction never de-duplicates: each fun/box/lambda body is distinct.
func (c *Chunk) AddFunction(f FunctionPayload) int32 {
	idx := int32(len(c.Functions))
	c.Functions = append(c.Functions, f)
	return idx
}

// AddJump allocates a fresh jump payload slot; the stitcher fills Target
// once labels resolve to absolute instruction indices.
func (c *Chunk) AddJump() int32 {
	idx := int32(len(c.Jumps))
	c.Jumps = append(c.Jumps, -1)
	return idx
}
