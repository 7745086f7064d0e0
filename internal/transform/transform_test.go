package transform

import (
	"testing"

	"github.com/ember-lang/ember/internal/quote"
)

func pos() quote.Pos { return quote.Pos{File: "t.ember", Line: 1} }

func TestRunRejectsLeakedReadSymbol(t *testing.T) {
	_, err := Run(&quote.ReadSymbol{Pos: pos(), Name: "e"})
	if err == nil {
		t.Fatal("expected an error for a read-symbol that escaped its macro")
	}
}

func TestRunLowersFilterOver(t *testing.T) {
	fo := &quote.FilterOver{
		Pos:  pos(),
		Vec:  &quote.Vector{Pos: pos()},
		Pred: &quote.Symbol{Pos: pos(), Name: "pred"},
	}
	out, err := Run(fo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call, ok := out.(*quote.Call)
	if !ok {
		t.Fatalf("expected Call, got %+v", out)
	}
	callee := call.Callee.(*quote.Symbol)
	if callee.Name != "__filter" {
		t.Fatalf("expected __filter callee, got %q", callee.Name)
	}
	if len(call.Args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(call.Args))
	}
	if _, ok := call.Args[1].(*quote.Symbol); !ok {
		t.Fatalf("expected a bare symbol predicate to pass through unwrapped, got %+v", call.Args[1])
	}
}

func TestRunLowersFilterOverWrapsNonSymbolPredicate(t *testing.T) {
	fo := &quote.FilterOver{
		Pos: pos(),
		Vec: &quote.Vector{Pos: pos()},
		Pred: &quote.Binary{
			Pos: pos(), Operator: ">",
			Left:  &quote.Symbol{Pos: pos(), Name: "x"},
			Right: &quote.NumberLit{Pos: pos(), Lexeme: "1"},
		},
	}
	out, err := Run(fo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call := out.(*quote.Call)
	if _, ok := call.Args[1].(*quote.Lambda); !ok {
		t.Fatalf("expected the predicate to be wrapped in a zero-arg lambda, got %+v", call.Args[1])
	}
}

func TestRunLowersReduceSpread(t *testing.T) {
	sp := &quote.Spread{
		Pos:      pos(),
		Kind:     quote.SpreadReduce,
		Operator: &quote.Symbol{Pos: pos(), Name: "plus"},
		Operand:  &quote.Vector{Pos: pos()},
	}
	out, err := Run(sp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call := out.(*quote.Call)
	if call.Callee.(*quote.Symbol).Name != "__reduce" {
		t.Fatalf("expected __reduce callee, got %+v", call.Callee)
	}
}

func TestRunLowersMapSpread(t *testing.T) {
	sp := &quote.Spread{
		Pos:      pos(),
		Kind:     quote.SpreadMap,
		Operator: &quote.Symbol{Pos: pos(), Name: "f"},
		Operand:  &quote.Vector{Pos: pos()},
	}
	out, err := Run(sp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call := out.(*quote.Call)
	if call.Callee.(*quote.Symbol).Name != "__map_spread" {
		t.Fatalf("expected __map_spread callee, got %+v", call.Callee)
	}
}

func TestRunLowersImmediateBox(t *testing.T) {
	ib := &quote.ImmediateBox{
		Pos: pos(),
		Inner: &quote.Box{
			Pos:  pos(),
			Name: "Singleton",
			Fields: []quote.BoxField{
				{Name: "v", Value: &quote.NumberLit{Pos: pos(), Lexeme: "1"}},
			},
		},
	}
	out, err := Run(ib)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	block, ok := out.(*quote.Block)
	if !ok || len(block.Statements) != 2 {
		t.Fatalf("expected a 2-statement block (decl + assign), got %+v", out)
	}
	if _, ok := block.Statements[0].(*quote.Box); !ok {
		t.Fatalf("expected first statement to be the box decl, got %+v", block.Statements[0])
	}
	assign, ok := block.Statements[1].(*quote.Assign)
	if !ok || !assign.Global {
		t.Fatalf("expected a global assign binding the instantiated box, got %+v", block.Statements[1])
	}
}

func TestRunRejectsParametricImmediateBox(t *testing.T) {
	ib := &quote.ImmediateBox{
		Pos: pos(),
		Inner: &quote.Box{
			Pos:    pos(),
			Name:   "Bad",
			Params: []quote.Parameter{{Index: 0, Name: "n"}},
		},
	}
	if _, err := Run(ib); err == nil {
		t.Fatal("expected an error for a parametric immediate box")
	}
}

func TestRunLowersAccessAssign(t *testing.T) {
	assign := &quote.Assign{
		Pos: pos(),
		Target: &quote.Access{
			Pos:  pos(),
			Head: &quote.Symbol{Pos: pos(), Name: "v"},
			Args: []quote.Quote{&quote.NumberLit{Pos: pos(), Lexeme: "0"}},
		},
		Value: &quote.NumberLit{Pos: pos(), Lexeme: "9"},
	}
	out, err := Run(assign)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call, ok := out.(*quote.Call)
	if !ok || call.Callee.(*quote.Symbol).Name != "__access_assign" {
		t.Fatalf("expected __access_assign call, got %+v", out)
	}
	if len(call.Args) != 3 {
		t.Fatalf("expected 3 args (head, value, index), got %d", len(call.Args))
	}
}

func TestRunLeavesPlainAssignAlone(t *testing.T) {
	assign := &quote.Assign{
		Pos:    pos(),
		Target: &quote.Symbol{Pos: pos(), Name: "x"},
		Value:  &quote.NumberLit{Pos: pos(), Lexeme: "1"},
	}
	out, err := Run(assign)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := out.(*quote.Assign); !ok {
		t.Fatalf("expected plain assign to pass through unchanged, got %+v", out)
	}
}

func TestRunLowersBinaryAccessAssign(t *testing.T) {
	ba := &quote.BinaryAssign{
		Pos:      pos(),
		Operator: "+",
		Target: &quote.Access{
			Pos:  pos(),
			Head: &quote.Symbol{Pos: pos(), Name: "v"},
			Args: []quote.Quote{&quote.NumberLit{Pos: pos(), Lexeme: "0"}},
		},
		Value: &quote.NumberLit{Pos: pos(), Lexeme: "1"},
	}
	out, err := Run(ba)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call, ok := out.(*quote.Call)
	if !ok || call.Callee.(*quote.Symbol).Name != "__access_assign" {
		t.Fatalf("expected __access_assign call, got %+v", out)
	}
	combined, ok := call.Args[1].(*quote.Binary)
	if !ok || combined.Operator != "+" {
		t.Fatalf("expected the combined binary op as the value argument, got %+v", call.Args[1])
	}
}

func TestRunLowersBinaryAssignToPlainSymbol(t *testing.T) {
	ba := &quote.BinaryAssign{
		Pos:      pos(),
		Operator: "+",
		Target:   &quote.Symbol{Pos: pos(), Name: "x"},
		Value:    &quote.NumberLit{Pos: pos(), Lexeme: "1"},
	}
	out, err := Run(ba)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assign, ok := out.(*quote.Assign)
	if !ok {
		t.Fatalf("expected a plain Assign, got %+v", out)
	}
	if _, ok := assign.Value.(*quote.Binary); !ok {
		t.Fatalf("expected the assign value to be the combined binary, got %+v", assign.Value)
	}
}

func TestRunLowersPatternEnvelopeToLambda(t *testing.T) {
	env := &quote.PatternEnvelope{
		Pos:     pos(),
		Pattern: &quote.Symbol{Pos: pos(), Name: "x"},
	}
	out, err := Run(env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := out.(*quote.Lambda); !ok {
		t.Fatalf("expected pattern envelope to lower to a lambda, got %+v", out)
	}
}

func TestRunAllRewritesEachStatement(t *testing.T) {
	stmts := []quote.Quote{
		&quote.FilterOver{Pos: pos(), Vec: &quote.Vector{Pos: pos()}, Pred: &quote.Symbol{Pos: pos(), Name: "p"}},
		&quote.NumberLit{Pos: pos(), Lexeme: "1"},
	}
	out, err := RunAll(stmts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(out))
	}
	if _, ok := out[0].(*quote.Call); !ok {
		t.Fatalf("expected first statement rewritten to a call, got %+v", out[0])
	}
}

func TestRunRecursesIntoNestedBlocks(t *testing.T) {
	block := &quote.Block{Pos: pos(), Statements: []quote.Quote{
		&quote.FilterOver{Pos: pos(), Vec: &quote.Vector{Pos: pos()}, Pred: &quote.Symbol{Pos: pos(), Name: "p"}},
	}}
	out, err := Run(block)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := out.(*quote.Block)
	if _, ok := b.Statements[0].(*quote.Call); !ok {
		t.Fatalf("expected nested filter-over to be rewritten, got %+v", b.Statements[0])
	}
}
