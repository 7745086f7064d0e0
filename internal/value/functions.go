package value

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/quote"
)

// ConcreteFunction is one compiled fun variant: its parameter list, the
// parallel given-type values bound at compile time, and where its body
// lives in the chunk pool.
type ConcreteFunction struct {
	Name       string
	Params     *quote.Parameters
	Givens     []Value // parallel to Params.List; the bound `given` value, or AnySingleton
	ChunkIndex int     // index into the orchestrator's chunk pool
	Arity      int
	Slurpy     bool
	// InsertionIndex breaks specificity ties in declaration order (spec §9).
	InsertionIndex int
}

func (f *ConcreteFunction) Truthy() bool            { return true }
func (f *ConcreteFunction) Weight() int             { return WeightValue }
func (f *ConcreteFunction) Kind() string             { return "fun" }
func (f *ConcreteFunction) ToVec() ([]Value, error)  { return nil, errors.NewCast("fun has no vec form") }
func (f *ConcreteFunction) ToStr() (string, error)   { return "<fn " + f.Name + ">", nil }
func (f *ConcreteFunction) Length() (int, error)     { return f.Arity, nil }
func (f *ConcreteFunction) ToNum() (decimal.Decimal, error) {
	return decimal.Zero, errors.NewCast("fun has no num form")
}

// Specificity sums each parameter's weight (spec §4.5), collapsing
// anonymous parameters through ParamWeight.
func (f *ConcreteFunction) Specificity() int {
	total := 0
	for i, p := range f.Params.List {
		given := AnySingleton
		if i < len(f.Givens) && f.Givens[i] != nil {
			given = f.Givens[i]
		}
		w, _ := As(given)
		base := WeightAny
		if w != nil {
			base = w.Weight()
		}
		total += ParamWeight(p.Underscore, base)
	}
	return total
}

// BuiltinFunction is a host-implemented function invoked synchronously by
// the VM; its body is Go code, not a chunk.
type BuiltinFunction struct {
	Name string
	Fn   func(args []Value) (Value, error)
}

func (f *BuiltinFunction) Truthy() bool            { return true }
func (f *BuiltinFunction) Weight() int             { return WeightValue }
func (f *BuiltinFunction) Kind() string             { return "builtin" }
func (f *BuiltinFunction) ToVec() ([]Value, error)  { return nil, errors.NewCast("builtin has no vec form") }
func (f *BuiltinFunction) ToStr() (string, error)   { return "<builtin " + f.Name + ">", nil }
func (f *BuiltinFunction) Length() (int, error)     { return 0, errors.NewCast("builtin has no length") }
func (f *BuiltinFunction) ToNum() (decimal.Decimal, error) {
	return decimal.Zero, errors.NewCast("builtin has no num form")
}

// GenericFunction is a named, insertion-ordered set of ConcreteFunction
// variants, kept sorted by (specificity, insertion index) (spec §9).
type GenericFunction struct {
	Name     string
	Variants []*ConcreteFunction
}

func NewGenericFunction(name string) *GenericFunction {
	return &GenericFunction{Name: name}
}

// AddVariant inserts v and re-sorts by descending specificity, breaking
// ties by ascending insertion index so the ordering is stable.
func (g *GenericFunction) AddVariant(v *ConcreteFunction) {
	v.InsertionIndex = len(g.Variants)
	g.Variants = append(g.Variants, v)
	sort.SliceStable(g.Variants, func(i, j int) bool {
		a, b := g.Variants[i], g.Variants[j]
		if a.Specificity() != b.Specificity() {
			return a.Specificity() > b.Specificity()
		}
		return a.InsertionIndex < b.InsertionIndex
	})
}

func (g *GenericFunction) Truthy() bool           { return true }
func (g *GenericFunction) Weight() int            { return WeightValue }
func (g *GenericFunction) Kind() string            { return "generic_fun" }
func (g *GenericFunction) ToVec() ([]Value, error) { return nil, errors.NewCast("generic fun has no vec form") }
func (g *GenericFunction) ToStr() (string, error)  { return "<generic " + g.Name + ">", nil }
func (g *GenericFunction) Length() (int, error)    { return len(g.Variants), nil }
func (g *GenericFunction) ToNum() (decimal.Decimal, error) {
	return decimal.Zero, errors.NewCast("generic fun has no num form")
}

// Select walks variants in specificity order and returns the first whose
// arity and typed-parameter checks match args (spec §4.7).
func (g *GenericFunction) Select(args []Value, isFn func(v Value, given Value) bool) (*ConcreteFunction, error) {
	for _, variant := range g.Variants {
		if variantMatches(variant, args, isFn) {
			return variant, nil
		}
	}
	return nil, errors.NewRuntime("no concrete variant of "+g.Name+" matches the given arguments: typecheck failed", "", 0)
}

func variantMatches(f *ConcreteFunction, args []Value, isFn func(v Value, given Value) bool) bool {
	params := f.Params.List
	nonSlurpy := len(params)
	if f.Slurpy {
		nonSlurpy--
	}
	if f.Slurpy {
		if len(args) < nonSlurpy {
			return false
		}
	} else if len(args) != nonSlurpy {
		return false
	}

	givenAt := func(i int) Value {
		if i < len(f.Givens) && f.Givens[i] != nil {
			return f.Givens[i]
		}
		// underflow rule: fewer givens than parameters, last given covers the rest
		if len(f.Givens) > 0 {
			return f.Givens[len(f.Givens)-1]
		}
		return AnySingleton
	}

	for i := 0; i < nonSlurpy; i++ {
		if !isFn(args[i], givenAt(i)) {
			return false
		}
	}
	if f.Slurpy {
		restGiven := givenAt(nonSlurpy)
		for i := nonSlurpy; i < len(args); i++ {
			if !isFn(args[i], restGiven) {
				return false
			}
		}
	}
	return true
}

// Partial is a bound-head call: some leading arguments are already bound
// to target, awaiting the rest.
type Partial struct {
	Target Value
	Bound  []Value
}

func (p *Partial) Truthy() bool            { return true }
func (p *Partial) Weight() int             { return WeightValue }
func (p *Partial) Kind() string            { return "partial" }
func (p *Partial) ToVec() ([]Value, error) { return nil, errors.NewCast("partial has no vec form") }
func (p *Partial) ToStr() (string, error)  { return "<partial>", nil }
func (p *Partial) Length() (int, error)    { return len(p.Bound), nil }
func (p *Partial) ToNum() (decimal.Decimal, error) {
	return decimal.Zero, errors.NewCast("partial has no num form")
}
