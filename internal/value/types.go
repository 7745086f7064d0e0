package value

import (
	"github.com/shopspring/decimal"

	"github.com/ember-lang/ember/internal/errors"
)

// Any is the singleton matching every value (the ANY weight category).
type anyType struct{}

var AnySingleton Value = anyType{}

func (anyType) Truthy() bool            { return true }
func (anyType) Weight() int             { return WeightAny }
func (anyType) Kind() string            { return "any" }
func (anyType) ToVec() ([]Value, error) { return nil, errors.NewCast("any has no vec form") }
func (anyType) ToStr() (string, error)  { return "any", nil }
func (anyType) Length() (int, error)    { return 0, errors.NewCast("any has no length") }
func (anyType) ToNum() (decimal.Decimal, error) {
	return decimal.Zero, errors.NewCast("any has no num form")
}

// Type is a descriptor of a value category: either one of the built-in
// abstract categories (num, str, bool, vec, map, regex, range, fun) or a
// concrete user-defined category (a Box's name).
type Type struct {
	Name     string
	Abstract bool
}

// BuiltinAbstractTypes lists the abstract categories spec.md's `given`
// clauses can name without a prior declaration; the VM seeds one
// Type(Name, Abstract: true) value per entry into the global scope at
// startup so bare references like `given num` resolve.
var BuiltinAbstractTypes = map[string]bool{
	"num": true, "str": true, "bool": true, "vec": true,
	"map": true, "regex": true, "range": true, "fun": true,
}

func NewAbstractType(name string) Type { return Type{Name: name, Abstract: true} }
func NewConcreteType(name string) Type { return Type{Name: name, Abstract: false} }

func (t Type) Truthy() bool { return true }
func (t Type) Weight() int {
	if t.Abstract {
		return WeightAbstractType
	}
	return WeightConcreteType
}
func (t Type) Kind() string           { return "type" }
func (t Type) ToStr() (string, error) { return t.Name, nil }
func (t Type) ToVec() ([]Value, error) {
	return nil, errors.NewCast("type has no vec form")
}
func (t Type) Length() (int, error) { return 0, errors.NewCast("type has no length") }
func (t Type) ToNum() (decimal.Decimal, error) {
	return decimal.Zero, errors.NewCast("type has no num form")
}

// Matches reports whether v's runtime kind satisfies this type descriptor.
func (t Type) Matches(v Value) bool {
	if t.Abstract {
		return KindOf(v) == t.Name
	}
	if bi, ok := v.(*BoxInstance); ok {
		return bi.Parent.Name == t.Name
	}
	return false
}

// CompoundType is a lead type plus alternative contents, e.g. a typed
// slurpy's "rest-typecheck" given (spec §4.7 variant selection).
type CompoundType struct {
	Lead Type
	Alts []Value
}

func (c CompoundType) Truthy() bool            { return true }
func (c CompoundType) Weight() int             { return c.Lead.Weight() }
func (c CompoundType) Kind() string            { return "compound_type" }
func (c CompoundType) ToVec() ([]Value, error) { return c.Alts, nil }
func (c CompoundType) ToStr() (string, error)  { return c.Lead.Name, nil }
func (c CompoundType) Length() (int, error)    { return len(c.Alts), nil }
func (c CompoundType) ToNum() (decimal.Decimal, error) {
	return decimal.Zero, errors.NewCast("compound type has no num form")
}

func (c CompoundType) Matches(v Value) bool {
	if c.Lead.Matches(v) {
		return true
	}
	for _, alt := range c.Alts {
		if t, ok := alt.(Type); ok && t.Matches(v) {
			return true
		}
	}
	return false
}
