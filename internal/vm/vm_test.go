package vm

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ember-lang/ember/internal/bytecode"
	"github.com/ember-lang/ember/internal/quote"
	"github.com/ember-lang/ember/internal/stitch"
	"github.com/ember-lang/ember/internal/value"
)

// buildChunk stitches a hand-built snippet sequence into one runnable
// chunk, the way the compiler+stitcher pipeline would for real source.
func buildChunk(name string, build func(c *bytecode.Chunk, s *bytecode.Snippet)) *bytecode.Chunk {
	c := bytecode.NewChunk("test", name)
	build(c, c.Entry())
	stitch.Chunk(c)
	return c
}

func runOne(t *testing.T, chunk *bytecode.Chunk) value.Value {
	t.Helper()
	m := New([]*bytecode.Chunk{chunk})
	v, err := m.Run(0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return v
}

func numVal(t *testing.T, v value.Value) decimal.Decimal {
	t.Helper()
	n, ok := v.(value.Num)
	if !ok {
		t.Fatalf("expected Num, got %T (%v)", v, v)
	}
	return n.D
}

func TestArithmetic(t *testing.T) {
	chunk := buildChunk("add", func(c *bytecode.Chunk, s *bytecode.Snippet) {
		s.EmitArg(bytecode.OpNum, c.AddNum(decimal.NewFromInt(10)), 1)
		s.EmitArg(bytecode.OpNum, c.AddNum(decimal.NewFromInt(20)), 1)
		s.EmitArg(bytecode.OpBinary, c.AddStr("+"), 1)
		s.Emit(bytecode.OpRet, 1)
	})
	got := numVal(t, runOne(t, chunk))
	if !got.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("10 + 20 = %s, want 30", got)
	}
}

func TestStringConcat(t *testing.T) {
	chunk := buildChunk("concat", func(c *bytecode.Chunk, s *bytecode.Snippet) {
		s.EmitArg(bytecode.OpStr, c.AddStr("foo"), 1)
		s.EmitArg(bytecode.OpStr, c.AddStr("bar"), 1)
		s.EmitArg(bytecode.OpBinary, c.AddStr("~"), 1)
		s.Emit(bytecode.OpRet, 1)
	})
	got, ok := runOne(t, chunk).(value.Str)
	if !ok || got != "foobar" {
		t.Fatalf("got %v, want foobar", got)
	}
}

func TestDivisionByZero(t *testing.T) {
	chunk := buildChunk("div0", func(c *bytecode.Chunk, s *bytecode.Snippet) {
		s.EmitArg(bytecode.OpNum, c.AddNum(decimal.NewFromInt(1)), 1)
		s.EmitArg(bytecode.OpNum, c.AddNum(decimal.Zero), 1)
		s.EmitArg(bytecode.OpBinary, c.AddStr("/"), 1)
		s.Emit(bytecode.OpRet, 1)
	})
	m := New([]*bytecode.Chunk{chunk})
	if _, err := m.Run(0); err == nil {
		t.Fatal("expected division-by-zero error")
	}
}

// TestIfBranches builds `if true { 1 } else { 2 }` directly: JIF jumps to
// the else branch on a falsy condition, falling through to the then
// branch's value otherwise; both branches must leave exactly one value
// on the stack at the shared end label.
func TestIfBranches(t *testing.T) {
	build := func(cond bool) *bytecode.Chunk {
		return buildChunk("if", func(c *bytecode.Chunk, s *bytecode.Snippet) {
			elseLabel := bytecode.NewLabel()
			endLabel := bytecode.NewLabel()
			if cond {
				s.Emit(bytecode.OpTrue, 1)
			} else {
				s.Emit(bytecode.OpFalse, 1)
			}
			s.EmitJump(bytecode.OpJif, elseLabel, 1)
			s.EmitArg(bytecode.OpNum, c.AddNum(decimal.NewFromInt(1)), 1)
			s.EmitJump(bytecode.OpJ, endLabel, 1)
			elseSnip := c.OpenSnippet(elseLabel)
			elseSnip.EmitArg(bytecode.OpNum, c.AddNum(decimal.NewFromInt(2)), 1)
			endSnip := c.OpenSnippet(endLabel)
			endSnip.Emit(bytecode.OpRet, 1)
		})
	}
	if got := numVal(t, runOne(t, build(true))); !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("then branch = %s, want 1", got)
	}
	if got := numVal(t, runOne(t, build(false))); !got.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("else branch = %s, want 2", got)
	}
}

// TestLoopClearDiscardsPriorIteration builds a 3-iteration counting loop
// straight-line (the shape compileLoop emits): base test, GIFP to exit,
// CLEAR, body (pushes the counter), step, jump back to head; exit pops
// FALSE_IF_EMPTY to read the accumulated loop result. This exercises the
// CLEAR/FALSE_IF_EMPTY ctrlMark bookkeeping directly: each iteration's
// stale body value must be discarded by CLEAR before the next body
// pushes its own, and FALSE_IF_EMPTY must report the last iteration's
// value rather than false once the loop has run at least once.
func TestLoopClearDiscardsPriorIteration(t *testing.T) {
	chunk := buildChunk("loop", func(c *bytecode.Chunk, s *bytecode.Snippet) {
		iIdx := c.AddSymbol("i", 0)
		limIdx := c.AddSymbol("limit", 0)

		s.EmitArg(bytecode.OpNum, c.AddNum(decimal.Zero), 1)
		s.EmitArg(bytecode.OpSetPop, iIdx, 1)
		s.EmitArg(bytecode.OpNum, c.AddNum(decimal.NewFromInt(3)), 1)
		s.EmitArg(bytecode.OpSetPop, limIdx, 1)

		head := bytecode.NewLabel()
		loopEnd := bytecode.NewLabel()
		s.EmitJump(bytecode.OpJ, head, 1)

		headSnip := c.OpenSnippet(head)
		headSnip.EmitArg(bytecode.OpSym, iIdx, 1)
		headSnip.EmitArg(bytecode.OpSym, limIdx, 1)
		headSnip.EmitArg(bytecode.OpBinary, c.AddStr("<"), 1)
		headSnip.EmitJump(bytecode.OpGifp, loopEnd, 1)
		headSnip.Emit(bytecode.OpClear, 1)
		// body: push i * 10 as this iteration's value
		headSnip.EmitArg(bytecode.OpSym, iIdx, 1)
		headSnip.EmitArg(bytecode.OpNum, c.AddNum(decimal.NewFromInt(10)), 1)
		headSnip.EmitArg(bytecode.OpBinary, c.AddStr("*"), 1)
		// step: i = i + 1
		headSnip.EmitArg(bytecode.OpSym, iIdx, 1)
		headSnip.Emit(bytecode.OpInc, 1)
		headSnip.EmitArg(bytecode.OpSetPop, iIdx, 1)
		headSnip.EmitJump(bytecode.OpJ, head, 1)

		endSnip := c.OpenSnippet(loopEnd)
		endSnip.Emit(bytecode.OpFalseIfEmpty, 1)
		endSnip.Emit(bytecode.OpRet, 1)
	})
	got := numVal(t, runOne(t, chunk))
	if !got.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("loop result = %s, want 20 (last iteration's value, stack not polluted)", got)
	}
}

// TestLoopNeverRuns checks FALSE_IF_EMPTY falls back to false when the
// base test fails on the very first check.
func TestLoopNeverRuns(t *testing.T) {
	chunk := buildChunk("emptyloop", func(c *bytecode.Chunk, s *bytecode.Snippet) {
		loopEnd := bytecode.NewLabel()
		s.Emit(bytecode.OpFalse, 1)
		s.EmitJump(bytecode.OpGifp, loopEnd, 1)
		s.Emit(bytecode.OpClear, 1)
		s.EmitArg(bytecode.OpNum, c.AddNum(decimal.NewFromInt(99)), 1)
		endSnip := c.OpenSnippet(loopEnd)
		endSnip.Emit(bytecode.OpFalseIfEmpty, 1)
		endSnip.Emit(bytecode.OpRet, 1)
	})
	got, ok := runOne(t, chunk).(value.Bool)
	if !ok || bool(got) != false {
		t.Fatalf("got %v, want false", got)
	}
}

// TestFunCallAndRecursion compiles a recursive factorial fun by hand:
// given n, if n <= 1 return 1, else return n * fact(n - 1). Exercises
// CALL dispatch, the underscores-stack argument prologue, and SET_TAP
// binding a name the fun's own body can see (mutual/self recursion).
func TestFunCallAndRecursion(t *testing.T) {
	pool := []*bytecode.Chunk{nil, nil} // [0]=main, [1]=fact body
	main := bytecode.NewChunk("test", "main")
	fact := bytecode.NewChunk("test", "fact")

	nIdx := fact.AddSymbol("n", 0)
	factSnip := fact.Entry()
	factSnip.Emit(bytecode.OpUpop, 1)
	factSnip.EmitArg(bytecode.OpSetPop, nIdx, 1)
	factSnip.EmitArg(bytecode.OpSym, nIdx, 1)
	factSnip.EmitArg(bytecode.OpNum, fact.AddNum(decimal.NewFromInt(1)), 1)
	factSnip.EmitArg(bytecode.OpBinary, fact.AddStr("<="), 1)
	elseLabel := bytecode.NewLabel()
	endLabel := bytecode.NewLabel()
	factSnip.EmitJump(bytecode.OpJif, elseLabel, 1)
	factSnip.EmitArg(bytecode.OpNum, fact.AddNum(decimal.NewFromInt(1)), 1)
	factSnip.EmitJump(bytecode.OpJ, endLabel, 1)
	elseSnip := fact.OpenSnippet(elseLabel)
	factSym := fact.AddSymbol("fact", 0)
	elseSnip.EmitArg(bytecode.OpSym, factSym, 1)
	elseSnip.EmitArg(bytecode.OpSym, nIdx, 1)
	elseSnip.EmitArg(bytecode.OpNum, fact.AddNum(decimal.NewFromInt(1)), 1)
	elseSnip.EmitArg(bytecode.OpBinary, fact.AddStr("-"), 1)
	elseSnip.EmitArg(bytecode.OpCall, 1, 1)
	elseSnip.EmitArg(bytecode.OpSym, nIdx, 1)
	elseSnip.EmitArg(bytecode.OpBinary, fact.AddStr("*"), 1)
	endSnip := fact.OpenSnippet(endLabel)
	endSnip.Emit(bytecode.OpRet, 1)
	stitch.Chunk(fact)
	pool[1] = fact

	mainSnip := main.Entry()
	factParams, err := quote.NewParameters([]quote.Parameter{{Index: 0, Name: "n"}})
	if err != nil {
		t.Fatal(err)
	}
	fp := bytecode.FunctionPayload{Symbol: "fact", ChunkRef: 1, Params: factParams, Arity: 1}
	mainSnip.EmitArg(bytecode.OpFun, main.AddFunction(fp), 1)
	mainFactIdx := main.AddSymbol("fact", 0)
	mainSnip.EmitArg(bytecode.OpSetTap, mainFactIdx, 1)
	mainSnip.Emit(bytecode.OpPop, 1)
	mainSnip.EmitArg(bytecode.OpSym, mainFactIdx, 1)
	mainSnip.EmitArg(bytecode.OpNum, main.AddNum(decimal.NewFromInt(5)), 1)
	mainSnip.EmitArg(bytecode.OpCall, 1, 1)
	mainSnip.Emit(bytecode.OpRet, 1)
	stitch.Chunk(main)
	pool[0] = main

	m := New(pool)
	v, err := m.Run(0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := numVal(t, v)
	if !got.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("fact(5) = %s, want 120", got)
	}
}

// TestDiesGuardRecoversFromRuntimeError checks TRY_POP's guard catches a
// runtime error (division by zero) and resumes with false on the stack.
func TestDiesGuardRecoversFromRuntimeError(t *testing.T) {
	chunk := buildChunk("dies", func(c *bytecode.Chunk, s *bytecode.Snippet) {
		resume := bytecode.NewLabel()
		s.EmitJump(bytecode.OpTryPop, resume, 1)
		s.EmitArg(bytecode.OpNum, c.AddNum(decimal.NewFromInt(1)), 1)
		s.EmitArg(bytecode.OpNum, c.AddNum(decimal.Zero), 1)
		s.EmitArg(bytecode.OpBinary, c.AddStr("/"), 1)
		resumeSnip := c.OpenSnippet(resume)
		resumeSnip.Emit(bytecode.OpRet, 1)
	})
	got, ok := runOne(t, chunk).(value.Bool)
	if !ok || bool(got) != false {
		t.Fatalf("got %v, want false (guard caught the division error)", got)
	}
}
