package value

import (
	"github.com/shopspring/decimal"

	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/quote"
)

// Box is a function-like constructor with a typed parameter list and a
// field namespace; invoking it creates a BoxInstance with its own scope
// (spec §3.2: "two instances of the same Box have independent scopes").
type Box struct {
	Name       string
	Params     *quote.Parameters
	CtorChunk  int // chunk binding the constructor params into a new instance's scope
	FieldOrder []string
	FieldInit  map[string]int // field name -> chunk index of its init expression
}

func (b *Box) Truthy() bool            { return true }
func (b *Box) Weight() int             { return WeightConcreteType }
func (b *Box) Kind() string            { return "box" }
func (b *Box) ToVec() ([]Value, error) { return nil, errors.NewCast("box has no vec form") }
func (b *Box) ToStr() (string, error)  { return "<box " + b.Name + ">", nil }
func (b *Box) Length() (int, error)    { return len(b.FieldOrder), nil }
func (b *Box) ToNum() (decimal.Decimal, error) {
	return decimal.Zero, errors.NewCast("box has no num form")
}

// AsType returns the concrete Type descriptor naming this Box, used by
// `given BoxName` parameters and `is?` category checks.
func (b *Box) AsType() Type { return NewConcreteType(b.Name) }

// BoxInstance is a Box's prototype-object instance: the parent Box plus an
// owned scope holding this instance's own field bindings.
type BoxInstance struct {
	Parent *Box
	Scope  *Scope
}

func NewBoxInstance(parent *Box, enclosing *Scope) *BoxInstance {
	return &BoxInstance{Parent: parent, Scope: NewScope(enclosing)}
}

func (bi *BoxInstance) Truthy() bool { return true }
func (bi *BoxInstance) Weight() int  { return WeightConcreteType }
func (bi *BoxInstance) Kind() string { return bi.Parent.Name }
func (bi *BoxInstance) ToVec() ([]Value, error) {
	return nil, errors.NewCast("box instance has no vec form")
}
func (bi *BoxInstance) ToStr() (string, error) {
	return "<" + bi.Parent.Name + " instance>", nil
}
func (bi *BoxInstance) Length() (int, error) { return len(bi.Parent.FieldOrder), nil }
func (bi *BoxInstance) ToNum() (decimal.Decimal, error) {
	return decimal.Zero, errors.NewCast("box instance has no num form")
}

// Get reads a field from the instance's own scope.
func (bi *BoxInstance) Get(name string) (Value, bool) {
	return bi.Scope.Get(name)
}

// Set mutates a field in the instance's own scope.
func (bi *BoxInstance) Set(name string, v Value) {
	bi.Scope.Define(name, v)
}

// Lambda is a closure: captured scope shared by every invocation, plus its
// parameter list and the chunk it targets. Calling a Lambda does not
// inherit the caller's locals (spec §3.2 invariant).
type Lambda struct {
	Captured   *Scope
	Params     *quote.Parameters
	ChunkIndex int
}

func (l *Lambda) Truthy() bool            { return true }
func (l *Lambda) Weight() int             { return WeightValue }
func (l *Lambda) Kind() string            { return "lambda" }
func (l *Lambda) ToVec() ([]Value, error) { return nil, errors.NewCast("lambda has no vec form") }
func (l *Lambda) ToStr() (string, error)  { return "<lambda>", nil }
func (l *Lambda) Length() (int, error)    { return l.Params.Arity(), nil }
func (l *Lambda) ToNum() (decimal.Decimal, error) {
	return decimal.Zero, errors.NewCast("lambda has no num form")
}
