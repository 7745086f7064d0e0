package compiler

import (
	"github.com/ember-lang/ember/internal/bytecode"
	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/pattern"
	"github.com/ember-lang/ember/internal/quote"
)

// compileFun opens a new chunk for the body, compiles its parameter
// prologue and body into it, emits FUN to produce the function value in
// the enclosing snippet, and (when named) binds it via SET_TAP so
// mutually-recursive top-level funs can reference each other simply by
// being in the same enclosing scope — no separate hoisting pass needed
// since invocation resolves the symbol lazily at call time.
func (c *Compiler) compileFun(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.Fun) (*bytecode.Snippet, error) {
	params, err := quote.NewParameters(n.Params)
	if err != nil {
		return nil, err
	}
	name := n.Name
	if name == "" {
		name = "fun"
	}
	bodyChunk, err := c.compileFunctionBody(name, params, n.Body, scope)
	if err != nil {
		return nil, err
	}
	chunkRef := int32(len(c.chunks))
	c.chunks = append(c.chunks, bodyChunk)

	fp := bytecode.FunctionPayload{
		Symbol: n.Name, ChunkRef: chunkRef, Params: params,
		Arity: int32(params.Arity()), Slurpy: params.HasSlurpy(),
	}
	// Each given clause is its own standalone chunk, evaluated once at
	// OpFun time against the defining scope — the same per-item-chunk
	// shape compileBox uses for field initializers (bytecode.FunctionPayload's
	// doc). -1 marks a parameter with no given clause at all.
	if len(n.Givens) > 0 {
		fp.GivenChunkRefs = make([]int32, len(n.Givens))
		for i, g := range n.Givens {
			if g == nil {
				fp.GivenChunkRefs[i] = -1
				continue
			}
			givenChunk := bytecode.NewChunk(c.file, name+".given")
			givenSnip := givenChunk.Entry()
			givenSnip, err := c.compile(givenChunk, givenSnip, scope, g)
			if err != nil {
				return nil, err
			}
			givenSnip.Emit(bytecode.OpRet, g.Pos().Line)
			fp.GivenChunkRefs[i] = int32(len(c.chunks))
			c.chunks = append(c.chunks, givenChunk)
		}
	}
	idx := chunk.AddFunction(fp)
	snip.EmitArg(bytecode.OpFun, idx, n.Pos.Line)

	if n.Name != "" {
		scope.declare(n.Name)
		symIdx := chunk.AddSymbol(n.Name, scope.depth)
		snip.EmitArg(bytecode.OpSetTap, symIdx, n.Pos.Line)
	}
	return snip, nil
}

func (c *Compiler) compileLambda(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.Lambda) (*bytecode.Snippet, error) {
	params, err := quote.NewParameters(n.Params)
	if err != nil {
		return nil, err
	}
	bodyChunk, err := c.compileFunctionBody("lambda", params, n.Body, scope)
	if err != nil {
		return nil, err
	}
	chunkRef := int32(len(c.chunks))
	c.chunks = append(c.chunks, bodyChunk)

	fp := bytecode.FunctionPayload{
		ChunkRef: chunkRef, Params: params,
		Arity: int32(params.Arity()), Slurpy: params.HasSlurpy(),
		IsLambda: true,
	}
	idx := chunk.AddFunction(fp)
	snip.EmitArg(bytecode.OpFun, idx, n.Pos.Line)
	return snip, nil
}

// compileBox compiles each field initializer into its own standalone
// chunk (see bytecode.FunctionPayload's doc) and always opens a
// constructor chunk whose prologue binds the box's constructor
// parameters (if any) so field initializers (sharing that same lexical
// scope) can see them.
func (c *Compiler) compileBox(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.Box) (*bytecode.Snippet, error) {
	params, err := quote.NewParameters(n.Params)
	if err != nil {
		return nil, err
	}

	ctorScope := newLexScope(scope)
	for _, p := range params.List {
		if p.Name != "" {
			ctorScope.declare(p.Name)
		}
	}

	fp := bytecode.FunctionPayload{
		Symbol: n.Name, Params: params,
		Arity: int32(params.Arity()), Slurpy: params.HasSlurpy(),
		IsBox: true,
	}
	// ChunkRef for a box points at its constructor prologue chunk (binds
	// params into the instance scope); it has no further body beyond
	// the prologue, so its entry ends immediately with RET FALSE.
	ctorChunk := bytecode.NewChunk(c.file, n.Name+".ctor")
	ctorSnip := ctorChunk.Entry()
	ctorSnip, err = c.bindParamsPrologue(ctorChunk, ctorSnip, ctorScope, params)
	if err != nil {
		return nil, err
	}
	ctorSnip.Emit(bytecode.OpFalse, n.Pos.Line)
	ctorSnip.Emit(bytecode.OpRet, n.Pos.Line)
	fp.ChunkRef = int32(len(c.chunks))
	c.chunks = append(c.chunks, ctorChunk)

	for _, f := range n.Fields {
		fieldChunk := bytecode.NewChunk(c.file, n.Name+"."+f.Name)
		fieldSnip := fieldChunk.Entry()
		fieldSnip, err := c.compile(fieldChunk, fieldSnip, ctorScope, f.Value)
		if err != nil {
			return nil, err
		}
		fieldSnip.Emit(bytecode.OpRet, n.Pos.Line)
		fp.FieldOrder = append(fp.FieldOrder, f.Name)
		fp.FieldInit = append(fp.FieldInit, int32(len(c.chunks)))
		c.chunks = append(c.chunks, fieldChunk)
	}

	idx := chunk.AddFunction(fp)
	snip.EmitArg(bytecode.OpFun, idx, n.Pos.Line)

	if n.Name != "" {
		scope.declare(n.Name)
		symIdx := chunk.AddSymbol(n.Name, scope.depth)
		snip.EmitArg(bytecode.OpSetTap, symIdx, n.Pos.Line)
	}
	return snip, nil
}

// compileFunctionBody opens a fresh chunk, binds its restart label (for
// `next fun`), compiles the parameter-binding prologue, then the body,
// terminating the implicit fall-through value with RET.
func (c *Compiler) compileFunctionBody(name string, params *quote.Parameters, body quote.Quote, outer *lexScope) (*bytecode.Chunk, error) {
	fnChunk := bytecode.NewChunk(c.file, name)
	fnSnip := fnChunk.Entry()
	fnScope := newLexScope(outer)

	c.funRestarts = append(c.funRestarts, fnChunk.Entry().Label)
	defer func() { c.funRestarts = c.funRestarts[:len(c.funRestarts)-1] }()

	fnSnip, err := c.bindParamsPrologue(fnChunk, fnSnip, fnScope, params)
	if err != nil {
		return nil, err
	}

	fnSnip, err = c.compile(fnChunk, fnSnip, fnScope, body)
	if err != nil {
		return nil, err
	}
	fnSnip.Emit(bytecode.OpRet, body.Pos().Line)
	return fnChunk, nil
}

// bindParamsPrologue assumes the invocation protocol has already pushed
// every argument value onto this frame's superlocal stack in reverse
// order (so UPOP yields them in declaration order — the same
// convention `next fun` uses to rebind params on restart; see
// compileNext). For each parameter in turn: a plain name pops straight
// into its symbol, an underscore parameter pops and discards, a slurpy
// parameter scoops every remaining superlocal value into one vector via
// REM_TO_VEC, and a pattern parameter pops into a synthetic subject
// name then runs the pattern's compiled match/bind lambda inline.
func (c *Compiler) bindParamsPrologue(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, params *quote.Parameters) (*bytecode.Snippet, error) {
	for _, p := range params.List {
		// Parameter nodes carry no Pos of their own; line numbers here
		// are only ever consulted for error-reporting on a genuinely
		// failing instruction, which the enclosing fun/lambda/box's own
		// Pos already anchors for the surrounding frame.
		const line = 0
		switch {
		case p.Slurpy:
			snip.Emit(bytecode.OpRemToVec, line)
			if p.Name != "" {
				scope.declare(p.Name)
				idx := chunk.AddSymbol(p.Name, scope.depth)
				snip.EmitArg(bytecode.OpSetPop, idx, line)
			} else {
				snip.Emit(bytecode.OpPop, line)
			}

		case p.Pattern != nil:
			next, err := c.bindPatternParam(chunk, snip, scope, p, line)
			if err != nil {
				return nil, err
			}
			snip = next

		case p.Underscore || p.Name == "":
			snip.Emit(bytecode.OpUpop, line)
			snip.Emit(bytecode.OpPop, line)

		default:
			snip.Emit(bytecode.OpUpop, line)
			scope.declare(p.Name)
			idx := chunk.AddSymbol(p.Name, scope.depth)
			snip.EmitArg(bytecode.OpSetPop, idx, line)
		}
	}
	return snip, nil
}

// bindPatternParam inlines a parameter pattern's compiled match-and-bind
// lambda (internal/pattern) directly into the prologue: the subject
// name it expects is bound from the popped argument, the match
// condition dies the call on failure (ENS), and each binding the
// pattern recorded is assigned from its recorded subject expression —
// all resolved statically since pattern.Compile's bindings map always
// has string-literal keys.
func (c *Compiler) bindPatternParam(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, p quote.Parameter, ln int) (*bytecode.Snippet, error) {
	lam, err := pattern.Compile(p.Pattern, p.Pattern.Pos())
	if err != nil {
		return nil, err
	}
	subject := lam.Params[0].Name
	scope.declare(subject)
	subjIdx := chunk.AddSymbol(subject, scope.depth)
	snip.Emit(bytecode.OpUpop, ln)
	snip.EmitArg(bytecode.OpSetPop, subjIdx, ln)

	body, ok := lam.Body.(*quote.Binary)
	if !ok || body.Operator != "and" {
		return nil, errors.NewCompile("malformed compiled pattern", p.Pattern.Pos().File, p.Pattern.Pos().Line)
	}

	next, err := c.compile(chunk, snip, scope, body.Left)
	if err != nil {
		return nil, err
	}
	snip = next
	snip.Emit(bytecode.OpToib, ln)
	snip.Emit(bytecode.OpEns, ln)

	assigns, ok := body.Right.(*quote.MapLit)
	if !ok {
		return nil, errors.NewCompile("malformed compiled pattern bindings", p.Pattern.Pos().File, p.Pattern.Pos().Line)
	}
	for i, key := range assigns.Keys {
		lit, ok := key.(*quote.StringLit)
		if !ok || len(lit.Parts) != 1 || lit.Parts[0].Expr != nil {
			return nil, errors.NewCompile("pattern binding name must be a literal", p.Pattern.Pos().File, p.Pattern.Pos().Line)
		}
		name := lit.Parts[0].Literal
		next, err := c.compile(chunk, snip, scope, assigns.Values[i])
		if err != nil {
			return nil, err
		}
		snip = next
		scope.declare(name)
		idx := chunk.AddSymbol(name, scope.depth)
		snip.EmitArg(bytecode.OpSetPop, idx, ln)
	}
	return snip, nil
}
