package optimize

import (
	"github.com/shopspring/decimal"

	"github.com/ember-lang/ember/internal/bytecode"
)

func numOf(chunk *bytecode.Chunk, ins bytecode.Instruction) (decimal.Decimal, bool) {
	if ins.Op != bytecode.OpNum {
		return decimal.Decimal{}, false
	}
	return chunk.Statics[ins.Arg].Num, true
}

func strOf(chunk *bytecode.Chunk, ins bytecode.Instruction) (string, bool) {
	if ins.Op != bytecode.OpStr {
		return "", false
	}
	return chunk.Statics[ins.Arg].Str, true
}

func binaryOp(chunk *bytecode.Chunk, ins bytecode.Instruction) (string, bool) {
	if ins.Op != bytecode.OpBinary {
		return "", false
	}
	return chunk.Statics[ins.Arg].Str, true
}

// foldArithmeticTriple folds `NUM n, NUM m, BINARY op` into a single
// `NUM (n op m)` for op in {+,-,*,/}, skipping division by zero so the
// runtime error that op would raise is preserved instead of silently
// disappearing at compile time.
type foldArithmeticTriple struct{}

func (foldArithmeticTriple) Name() string { return "fold-arithmetic-triple" }

func (foldArithmeticTriple) Apply(chunk *bytecode.Chunk, instrs []bytecode.Instruction) ([]bytecode.Instruction, bool) {
	out := make([]bytecode.Instruction, 0, len(instrs))
	changed := false
	for i := 0; i < len(instrs); i++ {
		if i+2 < len(instrs) {
			n, nOK := numOf(chunk, instrs[i])
			m, mOK := numOf(chunk, instrs[i+1])
			op, opOK := binaryOp(chunk, instrs[i+2])
			if nOK && mOK && opOK {
				if folded, ok := foldDecimal(op, n, m); ok {
					idx := chunk.AddNum(folded)
					out = append(out, bytecode.Instruction{Op: bytecode.OpNum, Arg: idx, Line: instrs[i].Line})
					i += 2
					changed = true
					continue
				}
			}
		}
		out = append(out, instrs[i])
	}
	return out, changed
}

func foldDecimal(op string, n, m decimal.Decimal) (decimal.Decimal, bool) {
	switch op {
	case "+":
		return n.Add(m), true
	case "-":
		return n.Sub(m), true
	case "*":
		return n.Mul(m), true
	case "/":
		if m.IsZero() {
			return decimal.Decimal{}, false
		}
		return n.Div(m), true
	default:
		return decimal.Decimal{}, false
	}
}

// foldStringConcatTriple folds `STR s, STR t, BINARY "~"` into `STR
// (s ++ t)`.
type foldStringConcatTriple struct{}

func (foldStringConcatTriple) Name() string { return "fold-string-concat-triple" }

func (foldStringConcatTriple) Apply(chunk *bytecode.Chunk, instrs []bytecode.Instruction) ([]bytecode.Instruction, bool) {
	out := make([]bytecode.Instruction, 0, len(instrs))
	changed := false
	for i := 0; i < len(instrs); i++ {
		if i+2 < len(instrs) {
			s, sOK := strOf(chunk, instrs[i])
			t, tOK := strOf(chunk, instrs[i+1])
			op, opOK := binaryOp(chunk, instrs[i+2])
			if sOK && tOK && opOK && op == "~" {
				idx := chunk.AddStr(s + t)
				out = append(out, bytecode.Instruction{Op: bytecode.OpStr, Arg: idx, Line: instrs[i].Line})
				i += 2
				changed = true
				continue
			}
		}
		out = append(out, instrs[i])
	}
	return out, changed
}

// dropEmptyConcatIntermediate drops the middle of `BINARY "~", STR "",
// BINARY "~"`: concatenating an empty string onto whatever the first
// BINARY produced changes nothing.
type dropEmptyConcatIntermediate struct{}

func (dropEmptyConcatIntermediate) Name() string { return "drop-empty-concat-intermediate" }

func (dropEmptyConcatIntermediate) Apply(chunk *bytecode.Chunk, instrs []bytecode.Instruction) ([]bytecode.Instruction, bool) {
	out := make([]bytecode.Instruction, 0, len(instrs))
	changed := false
	for i := 0; i < len(instrs); i++ {
		if i+2 < len(instrs) {
			op1, op1OK := binaryOp(chunk, instrs[i])
			s, sOK := strOf(chunk, instrs[i+1])
			op2, op2OK := binaryOp(chunk, instrs[i+2])
			if op1OK && op1 == "~" && sOK && s == "" && op2OK && op2 == "~" {
				out = append(out, instrs[i])
				i += 2
				changed = true
				continue
			}
		}
		out = append(out, instrs[i])
	}
	return out, changed
}

// dropRedundantConversion drops a conversion immediately re-applied to
// a value already of that type: `NUM x, TON`, `STR x, TOS`, `VEC x,
// TOV` each collapse to just the literal push.
type dropRedundantConversion struct{}

func (dropRedundantConversion) Name() string { return "drop-redundant-conversion" }

func (dropRedundantConversion) Apply(chunk *bytecode.Chunk, instrs []bytecode.Instruction) ([]bytecode.Instruction, bool) {
	out := make([]bytecode.Instruction, 0, len(instrs))
	changed := false
	for i := 0; i < len(instrs); i++ {
		if i+1 < len(instrs) {
			redundant := instrs[i+1].Op == bytecode.OpTon && instrs[i].Op == bytecode.OpNum ||
				instrs[i+1].Op == bytecode.OpTos && instrs[i].Op == bytecode.OpStr ||
				instrs[i+1].Op == bytecode.OpTov && instrs[i].Op == bytecode.OpVec
			if redundant {
				out = append(out, instrs[i])
				i++
				changed = true
				continue
			}
		}
		out = append(out, instrs[i])
	}
	return out, changed
}

// collapseAssignPop implements spec's `TAP_ASSIGN x, POP → POP_ASSIGN
// x` in this revision's naming: every assign is compiled as SET_TAP
// (see internal/compiler), so a trailing POP that immediately discards
// its surviving value collapses into the non-surviving SET_POP form.
type collapseAssignPop struct{}

func (collapseAssignPop) Name() string { return "collapse-assign-pop" }

func (collapseAssignPop) Apply(chunk *bytecode.Chunk, instrs []bytecode.Instruction) ([]bytecode.Instruction, bool) {
	out := make([]bytecode.Instruction, 0, len(instrs))
	changed := false
	for i := 0; i < len(instrs); i++ {
		if i+1 < len(instrs) && instrs[i].Op == bytecode.OpSetTap && instrs[i+1].Op == bytecode.OpPop {
			out = append(out, bytecode.Instruction{Op: bytecode.OpSetPop, Arg: instrs[i].Arg, Line: instrs[i].Line})
			i++
			changed = true
			continue
		}
		out = append(out, instrs[i])
	}
	return out, changed
}

// collapsePutsOnePop implements spec's `<puts_one>, POP → remove both`:
// any opcode whose postcondition is "pushed exactly one value" is a
// pure waste of a push when immediately discarded.
type collapsePutsOnePop struct{}

func (collapsePutsOnePop) Name() string { return "collapse-puts-one-pop" }

func (collapsePutsOnePop) Apply(chunk *bytecode.Chunk, instrs []bytecode.Instruction) ([]bytecode.Instruction, bool) {
	out := make([]bytecode.Instruction, 0, len(instrs))
	changed := false
	for i := 0; i < len(instrs); i++ {
		if i+1 < len(instrs) && instrs[i].Op.PutsOne() && instrs[i+1].Op == bytecode.OpPop {
			i++
			changed = true
			continue
		}
		out = append(out, instrs[i])
	}
	return out, changed
}

// trimDeadTail implements spec's `J _, * → trim dead tail inside a
// snippet`: once an unconditional jump (or RET, or GOTO) executes,
// nothing after it in the same snippet can
// ever run — labels only ever target whole snippets (see
// Compiler.openSnippet), never an instruction mid-snippet, so trimming
// here can't orphan a jump target.
type trimDeadTail struct{}

func (trimDeadTail) Name() string { return "trim-dead-tail" }

func (trimDeadTail) Apply(chunk *bytecode.Chunk, instrs []bytecode.Instruction) ([]bytecode.Instruction, bool) {
	for i, ins := range instrs {
		if ins.Op == bytecode.OpJ || ins.Op == bytecode.OpRet || ins.Op == bytecode.OpGoto {
			if i+1 < len(instrs) {
				return instrs[:i+1], true
			}
			return instrs, false
		}
	}
	return instrs, false
}
