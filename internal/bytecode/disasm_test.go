package bytecode

import (
	"strings"
	"testing"
)

func buildSimpleChunk() *Chunk {
	c := NewChunk("t.ember", "main")
	snip := c.Entry()
	snip.EmitArg(OpNum, c.AddInt(1), 1)
	snip.EmitArg(OpStr, c.AddStr("hi"), 2)
	snip.Emit(OpPop, 2)
	c.Seamless = snip.Instructions
	return c
}

func TestDisassembleListsEveryInstructionWithOperands(t *testing.T) {
	out := Disassemble([]*Chunk{buildSimpleChunk()})

	for _, want := range []string{"chunk 0 (main)", "NUM", "1", "STR", `"hi"`, "POP", "line 1", "line 2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected disassembly to contain %q, got:\n%s", want, out)
		}
	}
}

func TestDisassembleResolvesJumpTargets(t *testing.T) {
	c := NewChunk("t.ember", "main")
	snip := c.Entry()
	jumpIdx := c.AddJump()
	c.Jumps[jumpIdx] = 5
	snip.Instructions = append(snip.Instructions, Instruction{Op: OpJ, Arg: jumpIdx, Line: 3})
	c.Seamless = snip.Instructions

	out := Disassemble([]*Chunk{c})
	if !strings.Contains(out, "-> 5") {
		t.Fatalf("expected resolved jump target, got:\n%s", out)
	}
}
