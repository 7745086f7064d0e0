package orchestrator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/value"
)

// fakeOracle answers FilesFor from an in-memory map, standing in for
// the real TCP oracle (internal/oracle) in these tests.
type fakeOracle struct {
	files map[string][]string
}

func (f *fakeOracle) FilesFor(distinct string) ([]string, error) {
	return f.files[distinct], nil
}

func memReader(files map[string]string) Reader {
	return func(filename string) (string, error) {
		src, ok := files[filename]
		if !ok {
			return "", errors.NewExpose("no such file: " + filename)
		}
		return src, nil
	}
}

func numOf(t *testing.T, v value.Value) decimal.Decimal {
	t.Helper()
	n, ok := v.(value.Num)
	if !ok {
		t.Fatalf("expected Num, got %T (%v)", v, v)
	}
	return n.D
}

// TestRunResolvesExposeAcrossUnits mirrors spec.md §8's own worked
// example: unit A declares `add` under distinct path "a"; unit B
// exposes "a" and calls add(2, 3).
func TestRunResolvesExposeAcrossUnits(t *testing.T) {
	files := map[string]string{
		"a.ember": "distinct a;\nfun add(a, b) = a + b;\n",
	}
	o := New(&fakeOracle{files: map[string][]string{"a": {"a.ember"}}}).
		WithReader(memReader(files))

	result, err := o.Run("b.ember", "expose a;\nadd(2, 3);\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := numOf(t, result); !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected 5, got %v", got)
	}
}

// TestRunMissingExposeRaisesExposeError asserts an oracle answering
// with no files surfaces as an ExposeError, per spec.md §4.8's "an
// empty list denotes not found and MUST raise an ExposeError".
func TestRunMissingExposeRaisesExposeError(t *testing.T) {
	o := New(&fakeOracle{files: map[string][]string{}})

	_, err := o.Run("b.ember", "expose a.missing;\n1;\n")
	if err == nil {
		t.Fatalf("expected an error")
	}
	le, ok := err.(*errors.LangError)
	if !ok || le.Kind != errors.KindExpose {
		t.Fatalf("expected ExposeError, got %#v", err)
	}
}

// TestRunCutsExposeCycle checks that two units exposing each other
// don't loop forever: the filename cache marks each as loaded before
// recursing into its own exposes, so the second visit is a no-op.
func TestRunCutsExposeCycle(t *testing.T) {
	files := map[string]string{
		"a.ember": "distinct a;\nexpose b;\nfun one() = 1;\n",
		"b.ember": "distinct b;\nexpose a;\nfun two() = 2;\n",
	}
	o := New(&fakeOracle{files: map[string][]string{
		"a": {"a.ember"},
		"b": {"b.ember"},
	}}).WithReader(memReader(files))

	result, err := o.Run("main.ember", "expose a;\nexpose b;\none() + two();\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := numOf(t, result); !got.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected 3, got %v", got)
	}
}

// TestRunSharesGlobalScopeAcrossDependencies confirms the orchestrator
// runs a dependency's top-level statements for side effects before the
// target unit runs, and that both land in the same shared global scope
// (a second dependency can call the first's fun).
func TestRunSharesGlobalScopeAcrossDependencies(t *testing.T) {
	files := map[string]string{
		"base.ember": "distinct base;\nfun double(n) = n * 2;\n",
		"mid.ember":  "distinct mid;\nexpose base;\nfun quadruple(n) = double(double(n));\n",
	}
	o := New(&fakeOracle{files: map[string][]string{
		"base": {"base.ember"},
		"mid":  {"mid.ember"},
	}}).WithReader(memReader(files))

	result, err := o.Run("main.ember", "expose mid;\nquadruple(3);\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := numOf(t, result); !got.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected 12, got %v", got)
	}
}

// TestRunLogsExposeResolutionWhenEnabled checks the optional Log hook
// fires for expose resolution, without requiring it (nil is the default).
func TestRunLogsExposeResolutionWhenEnabled(t *testing.T) {
	files := map[string]string{
		"a.ember": "distinct a;\nfun add(a, b) = a + b;\n",
	}
	o := New(&fakeOracle{files: map[string][]string{"a": {"a.ember"}}}).
		WithReader(memReader(files))

	var lines []string
	o.Log = func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	if _, err := o.Run("b.ember", "expose a;\nadd(2, 3);\n"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(lines) == 0 {
		t.Fatal("expected at least one log line")
	}
}

// TestRunGivenTypecheckDispatches mirrors spec.md §8 scenario 2: a
// single fun declared with an abstract given type on every parameter
// both runs normally for matching arguments and dies with a typecheck
// message for a mismatched call, even though there is only ever one
// variant of `add`.
func TestRunGivenTypecheckDispatches(t *testing.T) {
	o := New(nil)

	result, err := o.Run("main.ember", "fun add(a, b) given num, num = a + b;\nadd(2, 3);\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := numOf(t, result); !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected 5, got %v", got)
	}

	o2 := New(nil)
	_, err = o2.Run("main.ember", `fun add(a, b) given num, num = a + b;
add("x", "y");
`)
	if err == nil {
		t.Fatal("expected add(\"x\", \"y\") to die on a typecheck mismatch")
	}
	if !strings.Contains(err.Error(), "typecheck") && !strings.Contains(err.Error(), "no concrete") {
		t.Fatalf("expected a typecheck/no-concrete error, got: %v", err)
	}
}

// TestRunGivenAbstractDispatchPicksVariant mirrors spec.md §8 scenario
// 4: two funs sharing a name, distinguished only by an abstract given
// type, merge into one generic dispatch that picks the matching
// variant by argument kind.
func TestRunGivenAbstractDispatchPicksVariant(t *testing.T) {
	src := `fun g(x) given num = "num";
fun g(x) given str = "str";
`
	o := New(nil)
	result, err := o.Run("main.ember", src+"g(1);\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got, ok := result.(value.Str); !ok || string(got) != "num" {
		t.Fatalf("expected \"num\", got %#v", result)
	}

	o2 := New(nil)
	result, err = o2.Run("main.ember", src+`g("x");
`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got, ok := result.(value.Str); !ok || string(got) != "str" {
		t.Fatalf("expected \"str\", got %#v", result)
	}

	o3 := New(nil)
	_, err = o3.Run("main.ember", src+"g(true);\n")
	if err == nil {
		t.Fatal("expected g(true) to find no matching variant")
	}
}

// TestRunGivenPatternDispatchesAndBinds mirrors spec.md §8 scenario 3: a
// fun whose given clause is a pattern both rejects a non-matching
// argument (dying instead of silently running) and binds the pattern's
// own names into the body on a match — the bug a prior review flagged
// (the pattern was compiled into a verification lambda dispatch never
// invoked, with no path for its bindings to reach the frame).
func TestRunGivenPatternDispatchesAndBinds(t *testing.T) {
	src := "fun f(n) given '[a, b] = a + b;\n"

	o := New(nil)
	result, err := o.Run("main.ember", src+"f([10, 20]);\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := numOf(t, result); !got.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected 30, got %v", got)
	}

	o2 := New(nil)
	_, err = o2.Run("main.ember", src+"f([1, 2, 3]);\n")
	if err == nil {
		t.Fatal("expected f([1, 2, 3]) to die on a pattern mismatch")
	}
}

// TestRunParameterPatternDestructuresVec covers the simple
// parameter-pattern form (no given clause at all) end to end, since no
// prior test exercised a real pattern match and a bare `vec`/`map`
// category reference inside a compiled pattern used to die as an
// undefined symbol.
func TestRunParameterPatternDestructuresVec(t *testing.T) {
	o := New(nil)
	result, err := o.Run("main.ember", "fun f(n '[a, b]) = a + b;\nf([3, 4]);\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := numOf(t, result); !got.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected 7, got %v", got)
	}
}
