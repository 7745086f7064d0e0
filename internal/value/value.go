// Package value implements the runtime value model of spec §3.2: a tagged
// discriminated sum of Num, Str, Bool, Regex, Vec, Map, Range, Any, Type,
// CompoundType, ConcreteFunction, BuiltinFunction, GenericFunction,
// Partial, Box, BoxInstance, Lambda, Native and Internal.
//
// Following the teacher's own value.go, a Value is just interface{}; every
// concrete kind additionally implements Valuer so operations dispatch by a
// single type assertion rather than a giant switch repeated at every call
// site.
package value

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Value is any runtime value. Concrete kinds are the pointer or named
// types defined across this package's files.
type Value interface{}

// Valuer is the operation contract every runtime value satisfies (spec
// §3.2 invariants): true?, to_num, to_str, to_vec, to_bool and length,
// plus the specificity Weight used by generic dispatch (§4.5).
type Valuer interface {
	Truthy() bool
	ToNum() (decimal.Decimal, error)
	ToStr() (string, error)
	ToVec() ([]Value, error)
	Length() (int, error)
	Weight() int
	Kind() string
}

// As asserts v implements Valuer; every concrete Value kind in this
// package does, so a failure here means v is not a well-formed runtime
// value (an InternalError at the call site, not a ModelCastError).
func As(v Value) (Valuer, bool) {
	vv, ok := v.(Valuer)
	return vv, ok
}

func KindOf(v Value) string {
	if vv, ok := As(v); ok {
		return vv.Kind()
	}
	return fmt.Sprintf("%T", v)
}

// Truthy reports whether v counts as true in a boolean context (§6.1
// "into-bool" quotes, if-conditions, and/or short circuiting).
func Truthy(v Value) bool {
	if vv, ok := As(v); ok {
		return vv.Truthy()
	}
	return v != nil
}
