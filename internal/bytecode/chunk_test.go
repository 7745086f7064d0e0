package bytecode

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAddIntDeduplicates(t *testing.T) {
	c := NewChunk("t.ember", "main")
	a := c.AddInt(7)
	b := c.AddInt(7)
	other := c.AddInt(8)
	if a != b {
		t.Fatalf("expected duplicate int statics to share an index, got %d and %d", a, b)
	}
	if other == a {
		t.Fatalf("expected distinct int statics to get distinct indices")
	}
	if len(c.Statics) != 2 {
		t.Fatalf("expected 2 statics, got %d", len(c.Statics))
	}
}

func TestAddNumAndStrDeduplicateIndependently(t *testing.T) {
	c := NewChunk("t.ember", "main")
	n1 := c.AddNum(decimal.NewFromInt(3))
	n2 := c.AddNum(decimal.NewFromInt(3))
	if n1 != n2 {
		t.Fatalf("expected duplicate num statics to share an index")
	}
	s1 := c.AddStr("hi")
	s2 := c.AddStr("hi")
	if s1 != s2 {
		t.Fatalf("expected duplicate str statics to share an index")
	}
}

func TestAddSymbolDeduplicatesByNameAndNest(t *testing.T) {
	c := NewChunk("t.ember", "main")
	a := c.AddSymbol("x", 0)
	b := c.AddSymbol("x", 0)
	if a != b {
		t.Fatalf("expected same (name, nest) symbol to share an index")
	}
	c2 := c.AddSymbol("x", 1)
	if c2 == a {
		t.Fatalf("expected different nest depth to get a distinct symbol index")
	}
}

func TestAddFunctionNeverDeduplicates(t *testing.T) {
	c := NewChunk("t.ember", "main")
	a := c.AddFunction(FunctionPayload{Symbol: "f", Arity: 1})
	b := c.AddFunction(FunctionPayload{Symbol: "f", Arity: 1})
	if a == b {
		t.Fatalf("expected every function payload to get its own index")
	}
}

func TestAddJumpAllocatesUnresolvedSlot(t *testing.T) {
	c := NewChunk("t.ember", "main")
	idx := c.AddJump()
	if c.Jumps[idx] != -1 {
		t.Fatalf("expected a freshly allocated jump slot to be unresolved (-1), got %d", c.Jumps[idx])
	}
}

func TestNewChunkOpensEntrySnippetBoundToLabelZero(t *testing.T) {
	c := NewChunk("t.ember", "main")
	entry := c.Entry()
	if !entry.Label.Resolved || entry.Label.Target != 0 {
		t.Fatalf("expected entry snippet label bound to 0, got %+v", entry.Label)
	}
}

func TestOpenSnippetAppendsToChunk(t *testing.T) {
	c := NewChunk("t.ember", "main")
	before := len(c.Snippets)
	s := c.OpenSnippet(NewLabel())
	if len(c.Snippets) != before+1 {
		t.Fatalf("expected OpenSnippet to grow the snippet list")
	}
	s.Emit(OpTrue, 1)
	if len(s.Instructions) != 1 || s.Instructions[0].Op != OpTrue {
		t.Fatalf("expected emitted instruction to record, got %+v", s.Instructions)
	}
}

func TestOpcodePayloadClassification(t *testing.T) {
	cases := []struct {
		op   OpCode
		kind PayloadKind
	}{
		{OpPop, PayloadNone},
		{OpNum, PayloadStatic},
		{OpJ, PayloadJump},
		{OpSym, PayloadSymbol},
		{OpFun, PayloadFunction},
	}
	for _, c := range cases {
		if got := c.op.Payload(); got != c.kind {
			t.Fatalf("%s: expected payload kind %d, got %d", c.op, c.kind, got)
		}
	}
}

func TestPutsOneMarksSingleValueProducers(t *testing.T) {
	if !OpNum.PutsOne() {
		t.Fatal("expected NUM to put exactly one value")
	}
	if OpPop.PutsOne() {
		t.Fatal("expected POP not to put a value")
	}
}
