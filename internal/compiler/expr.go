package compiler

import (
	"github.com/shopspring/decimal"

	"github.com/ember-lang/ember/internal/bytecode"
	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/quote"
)

// compile is the single tagged-dispatch visitor over every quote kind the
// transformer can hand the compiler. Every case leaves exactly one value
// on the frame's value stack (spec's expression-oriented convention);
// control-flow cases additionally may open new snippets, so compile
// returns the snippet execution should continue appending to.
func (c *Compiler) compile(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, q quote.Quote) (*bytecode.Snippet, error) {
	ln := line(q)
	switch n := q.(type) {

	case *quote.NumberLit:
		d, err := decimal.NewFromString(n.Lexeme)
		if err != nil {
			return nil, errors.NewCompile("malformed number literal "+n.Lexeme, n.Pos.File, n.Pos.Line)
		}
		snip.EmitArg(bytecode.OpNum, chunk.AddNum(d), ln)
		return snip, nil

	case *quote.StringLit:
		return c.compileStringLit(chunk, snip, scope, n)

	case *quote.RegexLit:
		snip.EmitArg(bytecode.OpPcre, chunk.AddStr(n.Source), ln)
		return snip, nil

	case *quote.True:
		snip.Emit(bytecode.OpTrue, ln)
		return snip, nil
	case *quote.False:
		snip.Emit(bytecode.OpFalse, ln)
		return snip, nil

	case *quote.Symbol:
		idx := chunk.AddSymbol(n.Name, scope.nest(n.Name))
		snip.EmitArg(bytecode.OpSym, idx, ln)
		return snip, nil

	case *quote.Vector:
		for _, e := range n.Elements {
			next, err := c.compile(chunk, snip, scope, e)
			if err != nil {
				return nil, err
			}
			snip = next
		}
		snip.EmitArg(bytecode.OpVec, int32(len(n.Elements)), ln)
		return snip, nil

	case *quote.MapLit:
		for i := range n.Keys {
			next, err := c.compile(chunk, snip, scope, n.Keys[i])
			if err != nil {
				return nil, err
			}
			snip = next
			next, err = c.compile(chunk, snip, scope, n.Values[i])
			if err != nil {
				return nil, err
			}
			snip = next
		}
		snip.EmitArg(bytecode.OpMapSetup, int32(len(n.Keys)), ln)
		return snip, nil

	case *quote.Unary:
		return c.compileUnary(chunk, snip, scope, n)

	case *quote.Binary:
		return c.compileBinary(chunk, snip, scope, n)

	case *quote.Call:
		next, err := c.compile(chunk, snip, scope, n.Callee)
		if err != nil {
			return nil, err
		}
		snip = next
		for _, a := range n.Args {
			next, err := c.compile(chunk, snip, scope, a)
			if err != nil {
				return nil, err
			}
			snip = next
		}
		snip.EmitArg(bytecode.OpCall, int32(len(n.Args)), ln)
		return snip, nil

	case *quote.Access:
		return c.compileAccess(chunk, snip, scope, n)

	case *quote.AccessField:
		return c.compileAccessField(chunk, snip, scope, n)

	case *quote.Assign:
		return c.compileAssign(chunk, snip, scope, n)

	case *quote.IntoBool:
		next, err := c.compile(chunk, snip, scope, n.Operand)
		if err != nil {
			return nil, err
		}
		snip = next
		snip.Emit(bytecode.OpToib, ln)
		return snip, nil

	case *quote.ReturnIncDec:
		return c.compileIncDec(chunk, snip, scope, n)

	case *quote.Dies:
		return c.compileDies(chunk, snip, scope, n)

	case *quote.If:
		return c.compileIf(chunk, snip, scope, n)

	case *quote.Block:
		return c.compileBlock(chunk, snip, scope, n)

	case *quote.Group:
		return c.compile(chunk, snip, scope, n.Inner)

	case *quote.Loop:
		return c.compileLoop(chunk, snip, scope, n)

	case *quote.Next:
		return c.compileNext(chunk, snip, scope, n)

	case *quote.ReturnStatement:
		return c.compileReturn(chunk, snip, scope, n)

	case *quote.Queue:
		return c.compileQueue(chunk, snip, scope, n)

	case *quote.Fun:
		return c.compileFun(chunk, snip, scope, n)

	case *quote.Box:
		return c.compileBox(chunk, snip, scope, n)

	case *quote.Lambda:
		return c.compileLambda(chunk, snip, scope, n)

	case *quote.Ensure:
		next, err := c.compile(chunk, snip, scope, n.Expr)
		if err != nil {
			return nil, err
		}
		snip = next
		snip.Emit(bytecode.OpEns, ln)
		snip.Emit(bytecode.OpTrue, ln)
		return snip, nil

	case *quote.EnsureTest:
		return c.compileEnsureTest(chunk, snip, scope, n)

	case *quote.SuperlocalTake:
		snip.Emit(bytecode.OpUpop, ln)
		return snip, nil
	case *quote.SuperlocalTap:
		snip.Emit(bytecode.OpUref, ln)
		return snip, nil

	case *quote.NudMacro, *quote.Distinct, *quote.Expose:
		// Consumed entirely by the reader (macro table registration,
		// module prelude); nothing survives to compile. Push a sentinel
		// so the statement-sequencing convention (every statement leaves
		// one value) still holds if one slips through as a statement.
		snip.Emit(bytecode.OpFalse, ln)
		return snip, nil

	default:
		return nil, unsupported(q, "quote kind in compiler")
	}
}

func (c *Compiler) compileStringLit(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.StringLit) (*bytecode.Snippet, error) {
	ln := n.Pos.Line
	if len(n.Parts) == 0 {
		snip.EmitArg(bytecode.OpStr, chunk.AddStr(""), ln)
		return snip, nil
	}
	first := true
	for _, part := range n.Parts {
		if part.Expr == nil {
			snip.EmitArg(bytecode.OpStr, chunk.AddStr(part.Literal), ln)
		} else {
			next, err := c.compile(chunk, snip, scope, part.Expr)
			if err != nil {
				return nil, err
			}
			snip = next
			snip.Emit(bytecode.OpTos, ln)
		}
		if !first {
			snip.EmitArg(bytecode.OpBinary, chunk.AddStr("~"), ln)
		}
		first = false
	}
	return snip, nil
}

func (c *Compiler) compileUnary(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.Unary) (*bytecode.Snippet, error) {
	ln := n.Pos.Line
	if n.Operator == "&" {
		next, err := c.compile(chunk, snip, scope, n.Operand)
		if err != nil {
			return nil, err
		}
		snip = next
		snip.EmitArg(bytecode.OpVec, 1, ln)
		return snip, nil
	}
	next, err := c.compile(chunk, snip, scope, n.Operand)
	if err != nil {
		return nil, err
	}
	snip = next
	switch n.Operator {
	case "+":
		snip.Emit(bytecode.OpTon, ln)
	case "-":
		snip.Emit(bytecode.OpTon, ln)
		snip.Emit(bytecode.OpNeg, ln)
	case "~":
		snip.Emit(bytecode.OpTos, ln)
	case "#":
		snip.Emit(bytecode.OpLen, ln)
	case "not":
		// No dedicated boolean-not opcode in the chosen revision (spec
		// §4.7's list has none): canonicalize to bool then compare
		// against false, which the BINARY "is" truth table negates.
		snip.Emit(bytecode.OpToib, ln)
		snip.Emit(bytecode.OpFalse, ln)
		snip.EmitArg(bytecode.OpBinary, chunk.AddStr("is"), ln)
	default:
		return nil, unsupported(n, "unary operator "+n.Operator)
	}
	return snip, nil
}

func (c *Compiler) compileBinary(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.Binary) (*bytecode.Snippet, error) {
	ln := n.Pos.Line
	if n.Operator == "and" || n.Operator == "or" {
		left, err := c.compile(chunk, snip, scope, n.Left)
		if err != nil {
			return nil, err
		}
		snip = left
		skip := bytecode.NewLabel()
		if n.Operator == "and" {
			snip.EmitJump(bytecode.OpJifElsePop, skip, ln)
		} else {
			snip.EmitJump(bytecode.OpJitElsePop, skip, ln)
		}
		if _, err := c.compile(chunk, snip, scope, n.Right); err != nil {
			return nil, err
		}
		// Falls through directly into skip's snippet: the right operand's
		// value is already the junction's result (no jump needed) since
		// skip is opened immediately after it in snippet order.
		return c.openSnippet(chunk, skip), nil
	}

	left, err := c.compile(chunk, snip, scope, n.Left)
	if err != nil {
		return nil, err
	}
	snip = left
	right, err := c.compile(chunk, snip, scope, n.Right)
	if err != nil {
		return nil, err
	}
	snip = right
	snip.EmitArg(bytecode.OpBinary, chunk.AddStr(n.Operator), ln)
	return snip, nil
}

func (c *Compiler) compileAccess(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.Access) (*bytecode.Snippet, error) {
	next, err := c.compile(chunk, snip, scope, n.Head)
	if err != nil {
		return nil, err
	}
	snip = next
	for _, a := range n.Args {
		next, err := c.compile(chunk, snip, scope, a)
		if err != nil {
			return nil, err
		}
		snip = next
	}
	snip.EmitArg(bytecode.OpCall, int32(len(n.Args)), n.Pos.Line)
	return snip, nil
}

func (c *Compiler) compileAccessField(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.AccessField) (*bytecode.Snippet, error) {
	ln := n.Pos.Line
	switch n.Accessor.Kind {
	case quote.FieldImmediate:
		next, err := c.compile(chunk, snip, scope, n.Head)
		if err != nil {
			return nil, err
		}
		snip = next
		snip.EmitArg(bytecode.OpStr, chunk.AddStr(n.Accessor.Symbol), ln)
		snip.EmitArg(bytecode.OpCall, 1, ln)
		return snip, nil

	case quote.FieldDynamic:
		next, err := c.compile(chunk, snip, scope, n.Head)
		if err != nil {
			return nil, err
		}
		snip = next
		next, err = c.compile(chunk, snip, scope, n.Accessor.Expr)
		if err != nil {
			return nil, err
		}
		snip = next
		snip.EmitArg(bytecode.OpCall, 1, ln)
		return snip, nil

	case quote.FieldBranches:
		for _, branch := range n.Accessor.Branches {
			next, err := c.compile(chunk, snip, scope, n.Head)
			if err != nil {
				return nil, err
			}
			snip = next
			next, err = c.compile(chunk, snip, scope, branch)
			if err != nil {
				return nil, err
			}
			snip = next
			snip.EmitArg(bytecode.OpCall, 1, ln)
		}
		snip.EmitArg(bytecode.OpVec, int32(len(n.Accessor.Branches)), ln)
		return snip, nil

	default:
		return nil, unsupported(n, "field accessor kind")
	}
}

func (c *Compiler) compileAssign(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.Assign) (*bytecode.Snippet, error) {
	sym, ok := n.Target.(*quote.Symbol)
	if !ok {
		return nil, errors.NewCompile("assign target must be a symbol after lowering", n.Pos.File, n.Pos.Line)
	}
	next, err := c.compile(chunk, snip, scope, n.Value)
	if err != nil {
		return nil, err
	}
	snip = next

	target := scope
	if n.Global {
		target = scope
		for target.parent != nil {
			target = target.parent
		}
	}
	target.declare(sym.Name)
	idx := chunk.AddSymbol(sym.Name, target.depth)
	// Every assign is emitted as a tap (value survives on the stack) so
	// assignment composes as an expression; a trailing POP in statement
	// position collapses to SET_POP in the optimizer's peephole pass.
	snip.EmitArg(bytecode.OpSetTap, idx, n.Pos.Line)
	return snip, nil
}

func (c *Compiler) compileIncDec(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.ReturnIncDec) (*bytecode.Snippet, error) {
	sym, ok := n.Target.(*quote.Symbol)
	if !ok {
		return nil, errors.NewCompile("++/-- target must be a symbol", n.Pos.File, n.Pos.Line)
	}
	ln := n.Pos.Line
	idx := chunk.AddSymbol(sym.Name, scope.nest(sym.Name))
	snip.EmitArg(bytecode.OpSym, idx, ln)
	snip.Emit(bytecode.OpDup, ln)
	snip.Emit(bytecode.OpTon, ln)
	if n.Increment {
		snip.Emit(bytecode.OpInc, ln)
	} else {
		snip.Emit(bytecode.OpDec, ln)
	}
	snip.EmitArg(bytecode.OpSetPop, idx, ln)
	return snip, nil
}

func (c *Compiler) compileDies(chunk *bytecode.Chunk, snip *bytecode.Snippet, scope *lexScope, n *quote.Dies) (*bytecode.Snippet, error) {
	ln := n.Pos.Line
	resume := bytecode.NewLabel()
	// TRY_POP pushes a guard record {resume, stack height} onto the
	// frame's guard stack. If a runtime error unwinds through this frame
	// while the guard is active, the VM truncates the stack, pushes
	// false and resumes at resume's target instead of propagating.
	// Reaching resume normally just pops the guard; the TRUE already on
	// the stack is the dies result.
	snip.EmitJump(bytecode.OpTryPop, resume, ln)
	next, err := c.compile(chunk, snip, scope, n.Operand)
	if err != nil {
		return nil, err
	}
	snip = next
	snip.Emit(bytecode.OpPop, ln)
	snip.Emit(bytecode.OpTrue, ln)
	snip = c.openSnippet(chunk, resume)
	return snip, nil
}
