package reader

import (
	"testing"

	"github.com/ember-lang/ember/internal/quote"
)

func parseProgram(t *testing.T, source string) []quote.Quote {
	t.Helper()
	r, err := New("t.ember", source)
	if err != nil {
		t.Fatalf("unexpected error constructing reader: %v", err)
	}
	if _, _, err := r.DistinctExpose(); err != nil {
		t.Fatalf("unexpected error reading prelude: %v", err)
	}
	stmts, err := r.ReadAll()
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return stmts
}

func TestDistinctExposePrelude(t *testing.T) {
	r, err := New("t.ember", "distinct a.b.c;\nexpose x.y;\nexpose z;\n1;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	distinct, exposes, err := r.DistinctExpose()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if distinct == nil || distinct.Path != "a.b.c" {
		t.Fatalf("expected distinct path a.b.c, got %+v", distinct)
	}
	if len(exposes) != 2 || exposes[0].Path != "x.y" || exposes[1].Path != "z" {
		t.Fatalf("expected two expose paths, got %+v", exposes)
	}
}

func TestBinaryPrecedenceClimbsAdditionBeforeProduct(t *testing.T) {
	stmts := parseProgram(t, "1 + 2 * 3;")
	bin, ok := stmts[0].(*quote.Binary)
	if !ok || bin.Operator != "+" {
		t.Fatalf("expected top-level '+', got %+v", stmts[0])
	}
	rhs, ok := bin.Right.(*quote.Binary)
	if !ok || rhs.Operator != "*" {
		t.Fatalf("expected right side to be the tighter '*', got %+v", bin.Right)
	}
}

func TestIfThenElseExpression(t *testing.T) {
	stmts := parseProgram(t, "if true then 1 else 2;")
	ifq, ok := stmts[0].(*quote.If)
	if !ok {
		t.Fatalf("expected If quote, got %+v", stmts[0])
	}
	if _, ok := ifq.Then.(*quote.NumberLit); !ok {
		t.Fatalf("expected then-branch number literal")
	}
	if ifq.Else == nil {
		t.Fatalf("expected else branch to be present")
	}
}

func TestAssignLocalVsGlobal(t *testing.T) {
	stmts := parseProgram(t, "x = 1; y := 2;")
	local := stmts[0].(*quote.Assign)
	if local.Global {
		t.Fatal("expected '=' to produce a local assign")
	}
	global := stmts[1].(*quote.Assign)
	if !global.Global {
		t.Fatal("expected ':=' to produce a global assign")
	}
}

func TestVectorWithFilterOver(t *testing.T) {
	stmts := parseProgram(t, "[1, 2, 3] if x > 1;")
	fo, ok := stmts[0].(*quote.FilterOver)
	if !ok {
		t.Fatalf("expected FilterOver, got %+v", stmts[0])
	}
	vec, ok := fo.Vec.(*quote.Vector)
	if !ok || len(vec.Elements) != 3 {
		t.Fatalf("expected a 3-element vector, got %+v", fo.Vec)
	}
}

func TestMapLiteral(t *testing.T) {
	stmts := parseProgram(t, `%{"a": 1, "b": 2};`)
	m, ok := stmts[0].(*quote.MapLit)
	if !ok || len(m.Keys) != 2 {
		t.Fatalf("expected 2-entry map literal, got %+v", stmts[0])
	}
}

func TestFunDeclarationWithGiven(t *testing.T) {
	stmts := parseProgram(t, "fun add(a, b) given num, num { return a + b; }")
	fn, ok := stmts[0].(*quote.Fun)
	if !ok {
		t.Fatalf("expected Fun, got %+v", stmts[0])
	}
	if fn.Name != "add" || len(fn.Params) != 2 || len(fn.Givens) != 2 {
		t.Fatalf("unexpected fun shape: %+v", fn)
	}
}

func TestFunExpressionForm(t *testing.T) {
	stmts := parseProgram(t, "fun double(x) = x * 2;")
	fn := stmts[0].(*quote.Fun)
	if _, ok := fn.Body.(*quote.Binary); !ok {
		t.Fatalf("expected expression-form fun body, got %+v", fn.Body)
	}
}

func TestBoxDeclaration(t *testing.T) {
	stmts := parseProgram(t, "box Counter { n = 0; }")
	b, ok := stmts[0].(*quote.Box)
	if !ok || b.Name != "Counter" || len(b.Fields) != 1 {
		t.Fatalf("expected box Counter with one field, got %+v", stmts[0])
	}
}

func TestImmediateBoxLowersToBoxDecl(t *testing.T) {
	stmts := parseProgram(t, "immediate box Singleton { v = 1; }")
	ib, ok := stmts[0].(*quote.ImmediateBox)
	if !ok || ib.Inner.Name != "Singleton" {
		t.Fatalf("expected ImmediateBox wrapping Singleton, got %+v", stmts[0])
	}
}

func TestBareEnsureAssertion(t *testing.T) {
	stmts := parseProgram(t, "ensure 1 == 1;")
	e, ok := stmts[0].(*quote.Ensure)
	if !ok {
		t.Fatalf("expected bare Ensure, got %+v", stmts[0])
	}
	if _, ok := e.Expr.(*quote.Binary); !ok {
		t.Fatalf("expected binary expr inside ensure")
	}
}

func TestEnsureTestBlockWithCases(t *testing.T) {
	stmts := parseProgram(t, `ensure "math" { should "adds" 1 + 1 == 2; should "subs" 2 - 1 == 1; }`)
	et, ok := stmts[0].(*quote.EnsureTest)
	if !ok {
		t.Fatalf("expected EnsureTest, got %+v", stmts[0])
	}
	if et.Title != "math" || len(et.Cases) != 2 {
		t.Fatalf("expected 2 cases in ensure-test, got %+v", et)
	}
	if et.Cases[0].Label != "adds" {
		t.Fatalf("expected first case label 'adds', got %q", et.Cases[0].Label)
	}
}

func TestStringInterpolation(t *testing.T) {
	stmts := parseProgram(t, `"hi $name!";`)
	s, ok := stmts[0].(*quote.StringLit)
	if !ok {
		t.Fatalf("expected StringLit, got %+v", stmts[0])
	}
	if len(s.Parts) != 3 {
		t.Fatalf("expected 3 string parts (literal, symbol, literal), got %d: %+v", len(s.Parts), s.Parts)
	}
	if s.Parts[1].Expr == nil {
		t.Fatalf("expected the middle part to be an interpolated expression")
	}
	sym, ok := s.Parts[1].Expr.(*quote.Symbol)
	if !ok || sym.Name != "name" {
		t.Fatalf("expected interpolated symbol 'name', got %+v", s.Parts[1].Expr)
	}
}

func TestNudMacroRegistersAndExpands(t *testing.T) {
	stmts := parseProgram(t, "nud twice(e) = $e + $e; twice 3;")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 top-level statements, got %d", len(stmts))
	}
	if _, ok := stmts[0].(*quote.NudMacro); !ok {
		t.Fatalf("expected NudMacro definition, got %+v", stmts[0])
	}
	bin, ok := stmts[1].(*quote.Binary)
	if !ok || bin.Operator != "+" {
		t.Fatalf("expected macro expansion to a '+' binary, got %+v", stmts[1])
	}
}

func TestPostfixIncDecAndIntoBool(t *testing.T) {
	stmts := parseProgram(t, "x++; y--; z?;")
	if _, ok := stmts[0].(*quote.ReturnIncDec); !ok {
		t.Fatalf("expected ReturnIncDec, got %+v", stmts[0])
	}
	if _, ok := stmts[2].(*quote.IntoBool); !ok {
		t.Fatalf("expected IntoBool, got %+v", stmts[2])
	}
}

func TestAccessAndFieldChains(t *testing.T) {
	stmts := parseProgram(t, "a[0].b;")
	af, ok := stmts[0].(*quote.AccessField)
	if !ok {
		t.Fatalf("expected AccessField at top, got %+v", stmts[0])
	}
	if _, ok := af.Head.(*quote.Access); !ok {
		t.Fatalf("expected Access beneath the field, got %+v", af.Head)
	}
}

func TestEscapedPatternDoesNotDoubleEscape(t *testing.T) {
	r, err := New("t.ember", "'1;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := r.DistinctExpose(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stmts, err := r.ReadAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	env, ok := stmts[0].(*quote.PatternEnvelope)
	if !ok || !env.Escaped {
		t.Fatalf("expected escaped pattern envelope, got %+v", stmts[0])
	}
}
