package compiler

import (
	"github.com/ember-lang/ember/internal/bytecode"
	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/quote"
)

// compileIf implements: cond; GIFP fail; then; J end; fail: (else or
// FALSE); end:. Each label's snippet is opened at the point its target
// is reached, per bytecode.Label's compile-time meaning (a snippet
// index).
func (c *Compiler) compileIf(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.If) (*bytecode.Snippet, error) {
	ln := n.Pos.Line
	next, err := c.compile(chunk, snip, scope, n.Cond)
	if err != nil {
		return nil, err
	}
	snip = next

	fail := bytecode.NewLabel()
	snip.EmitJump(bytecode.OpGifp, fail, ln)

	snip, err = c.compile(chunk, snip, scope, n.Then)
	if err != nil {
		return nil, err
	}

	end := bytecode.NewLabel()
	snip.EmitJump(bytecode.OpJ, end, ln)

	snip = c.openSnippet(chunk, fail)
	if n.Else != nil {
		snip, err = c.compile(chunk, snip, scope, n.Else)
		if err != nil {
			return nil, err
		}
	} else {
		snip.Emit(bytecode.OpFalse, ln)
	}

	return c.openSnippet(chunk, end), nil
}

// compileBlock compiles statements in sequence, discarding every
// intermediate result (POP) so only the last statement's value
// survives; an empty block pushes FALSE to uphold the one-value
// convention.
func (c *Compiler) compileBlock(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.Block) (*bytecode.Snippet, error) {
	if len(n.Statements) == 0 {
		snip.Emit(bytecode.OpFalse, n.Pos.Line)
		return snip, nil
	}
	inner := newLexScope(scope)
	for i, s := range n.Statements {
		next, err := c.compile(chunk, snip, inner, s)
		if err != nil {
			return nil, err
		}
		snip = next
		if i < len(n.Statements)-1 {
			snip.Emit(bytecode.OpPop, line(s))
		}
	}
	return snip, nil
}

// compileLoop implements all four Loop kinds with one protocol:
//
//	[start]; head: [base]; GIFP loop_end; CLEAR; [body]; [step]; J head;
//	loop_end: FALSE_IF_EMPTY
//
// CLEAR runs right after a passing base test, discarding the previous
// iteration's leftover body value so the stack doesn't grow across
// iterations. FALSE_IF_EMPTY produces FALSE only when the loop's body
// never ran (no CLEAR mark was pushed for this activation); otherwise it leaves
// the last body value. LoopInfinite (bare `loop body`, no parens) has
// no base test at all — it exits only via return/next fun/dies, never
// naturally producing a value through FALSE_IF_EMPTY.
func (c *Compiler) compileLoop(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.Loop) (*bytecode.Snippet, error) {
	ln := n.Pos.Line
	loopScope := newLexScope(scope)

	if n.Start != nil {
		next, err := c.compile(chunk, snip, loopScope, n.Start)
		if err != nil {
			return nil, err
		}
		snip = next
		snip.Emit(bytecode.OpPop, ln)
	}

	head := bytecode.NewLabel()
	snip.EmitJump(bytecode.OpJ, head, ln)
	snip = c.openSnippet(chunk, head)

	if n.Kind == quote.LoopInfinite {
		c.loops = append(c.loops, &loopCtx{headLabel: head})
		snip, err := c.compile(chunk, snip, loopScope, n.Body)
		if err != nil {
			return nil, err
		}
		c.loops = c.loops[:len(c.loops)-1]
		snip.Emit(bytecode.OpPop, ln)
		snip.EmitJump(bytecode.OpJ, head, ln)
		// LoopInfinite never falls through to an end label: it only
		// exits via return/next-fun/dies unwinding the frame.
		return snip, nil
	}

	loopEnd := bytecode.NewLabel()
	c.loops = append(c.loops, &loopCtx{headLabel: head})

	if n.Base != nil {
		next, err := c.compile(chunk, snip, loopScope, n.Base)
		if err != nil {
			return nil, err
		}
		snip = next
	} else {
		snip.Emit(bytecode.OpTrue, ln)
	}
	snip.EmitJump(bytecode.OpGifp, loopEnd, ln)
	snip.Emit(bytecode.OpClear, ln)

	next, err := c.compile(chunk, snip, loopScope, n.Body)
	if err != nil {
		return nil, err
	}
	snip = next

	if n.Step != nil {
		next, err := c.compile(chunk, snip, loopScope, n.Step)
		if err != nil {
			return nil, err
		}
		snip = next
		snip.Emit(bytecode.OpPop, ln)
	}

	snip.EmitJump(bytecode.OpJ, head, ln)
	c.loops = c.loops[:len(c.loops)-1]

	snip = c.openSnippet(chunk, loopEnd)
	snip.Emit(bytecode.OpFalseIfEmpty, ln)
	return snip, nil
}

// compileNext re-enters the nearest enclosing loop's head on `next`/`next
// loop`; `next fun` is a tail-restart of the enclosing function, jumping
// to the restart label compileFunctionBody registers for it, and is
// rejected when no enclosing function body has registered one.
func (c *Compiler) compileNext(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.Next) (*bytecode.Snippet, error) {
	ln := n.Pos.Line
	if n.Scope == quote.NextFun {
		if len(c.funRestarts) == 0 {
			return nil, errors.NewCompile("next fun outside a function body", n.Pos.File, n.Pos.Line)
		}
		restart := c.funRestarts[len(c.funRestarts)-1]
		// Rebind the function's own parameters by pushing new argument
		// values onto the superlocal stack in the same reverse order the
		// invocation prologue expects (see bindParamsPrologue), then jump
		// back to the chunk's own entry to re-run that prologue plus body.
		for i := len(n.Args) - 1; i >= 0; i-- {
			next, err := c.compile(chunk, snip, scope, n.Args[i])
			if err != nil {
				return nil, err
			}
			snip = next
			snip.Emit(bytecode.OpUput, ln)
		}
		snip.EmitJump(bytecode.OpJ, restart, ln)
		return c.openSnippet(chunk, bytecode.NewLabel()), nil
	}

	if len(c.loops) == 0 {
		return nil, errors.NewCompile("next outside a loop", n.Pos.File, n.Pos.Line)
	}
	head := c.loops[len(c.loops)-1].headLabel
	// `next loop args...` carries values the step/base clause can pick
	// up via UPOP/UREF next time around, same superlocal channel the
	// `_`/`&_` forms use (spec's open question on next-loop args).
	for i := len(n.Args) - 1; i >= 0; i-- {
		next, err := c.compile(chunk, snip, scope, n.Args[i])
		if err != nil {
			return nil, err
		}
		snip = next
		snip.Emit(bytecode.OpUput, ln)
	}
	snip.EmitJump(bytecode.OpJ, head, ln)
	// Unreachable tail: keep the one-value convention for any peephole
	// pass inspecting this snippet before dead-tail trimming runs.
	return c.openSnippet(chunk, bytecode.NewLabel()), nil
}

// compileReturn compiles `return expr` (or a bare `return`, which
// returns FALSE) followed by RET.
func (c *Compiler) compileReturn(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.ReturnStatement) (*bytecode.Snippet, error) {
	ln := n.Pos.Line
	if n.Value == nil {
		snip.Emit(bytecode.OpFalse, ln)
	} else {
		next, err := c.compile(chunk, snip, scope, n.Value)
		if err != nil {
			return nil, err
		}
		snip = next
	}
	snip.Emit(bytecode.OpRet, ln)
	return c.openSnippet(chunk, bytecode.NewLabel()), nil
}

// compileQueue compiles a deferred multi-value return: each queued
// value is pushed onto the superlocal stack (UPUT) for the caller's
// next fun/return to harvest via UPOP/UREF, in reverse source order so
// the first queued value is the first popped.
func (c *Compiler) compileQueue(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.Queue) (*bytecode.Snippet, error) {
	ln := n.Pos.Line
	for i := len(n.Values) - 1; i >= 0; i-- {
		next, err := c.compile(chunk, snip, scope, n.Values[i])
		if err != nil {
			return nil, err
		}
		snip = next
		snip.Emit(bytecode.OpUput, ln)
	}
	snip.Emit(bytecode.OpFalse, ln)
	return snip, nil
}

// compileEnsureTest compiles `ensure "title" { should "case" expr ... }`
// into one map literal keyed by each case's label: every case's body
// runs behind its own TRY_POP guard (exactly compileDies's protocol),
// so a failing ENS inside one case dies to `false` for that entry
// instead of aborting its siblings. The EnsureTest's own value is the
// resulting label->passed Map; internal/ensure's reporter is what turns
// that Map into a human-readable pass/fail report when a CLI run
// discovers one at top level (see spec §6.1).
func (c *Compiler) compileEnsureTest(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.EnsureTest) (*bytecode.Snippet, error) {
	for _, sh := range n.Cases {
		cln := sh.Pos.Line
		snip.EmitArg(bytecode.OpStr, chunk.AddStr(sh.Label), cln)

		resume := bytecode.NewLabel()
		snip.EmitJump(bytecode.OpTryPop, resume, cln)
		next, err := c.compile(chunk, snip, scope, sh.Body)
		if err != nil {
			return nil, err
		}
		snip = next
		snip.Emit(bytecode.OpEns, cln)
		snip.Emit(bytecode.OpTrue, cln)
		snip = c.openSnippet(chunk, resume)
	}
	snip.EmitArg(bytecode.OpMapSetup, int32(len(n.Cases)), n.Pos.Line)
	return snip, nil
}
