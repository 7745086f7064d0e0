package value

import (
	"github.com/shopspring/decimal"

	"github.com/ember-lang/ember/internal/errors"
)

// rangeConversionLimit is the distance ceiling past which a Range refuses
// conversion to Vec (spec §3.2 invariant).
const rangeConversionLimit = 100000

// Vec is an ordered, interior-mutable sequence: index assignment mutates
// the existing Vec, while a range subset yields a new one. Always stored
// as *Vec so mutation is visible to every holder of the reference.
type Vec struct {
	Items []Value
}

func NewVec(items ...Value) *Vec { return &Vec{Items: items} }

func (v *Vec) Truthy() bool              { return len(v.Items) > 0 }
func (v *Vec) Length() (int, error)      { return len(v.Items), nil }
func (v *Vec) Weight() int               { return WeightValue }
func (v *Vec) Kind() string              { return "vec" }
func (v *Vec) ToVec() ([]Value, error)   { return v.Items, nil }
func (v *Vec) ToNum() (decimal.Decimal, error) {
	return decimal.Zero, errors.NewCast("vec has no num form")
}
func (v *Vec) ToStr() (string, error) {
	return "", errors.NewCast("vec has no implicit str form")
}

// Get returns the element at i, or an error if out of range.
func (v *Vec) Get(i int) (Value, error) {
	if i < 0 || i >= len(v.Items) {
		return nil, errors.NewRuntime("index out of range", "", 0)
	}
	return v.Items[i], nil
}

// Set mutates the element at i in place.
func (v *Vec) Set(i int, val Value) error {
	if i < 0 || i >= len(v.Items) {
		return errors.NewRuntime("index out of range", "", 0)
	}
	v.Items[i] = val
	return nil
}

// Slice returns a new Vec over items [from, to) (range subset access).
func (v *Vec) Slice(from, to int) *Vec {
	if from < 0 {
		from = 0
	}
	if to > len(v.Items) {
		to = len(v.Items)
	}
	if from >= to {
		return NewVec()
	}
	out := make([]Value, to-from)
	copy(out, v.Items[from:to])
	return &Vec{Items: out}
}

// Map is a string-keyed mapping that preserves insertion order.
type Map struct {
	keys []string
	data map[string]Value
}

func NewMap() *Map { return &Map{data: make(map[string]Value)} }

func (m *Map) Truthy() bool            { return len(m.keys) > 0 }
func (m *Map) Length() (int, error)    { return len(m.keys), nil }
func (m *Map) Weight() int             { return WeightValue }
func (m *Map) Kind() string            { return "map" }
func (m *Map) ToNum() (decimal.Decimal, error) {
	return decimal.Zero, errors.NewCast("map has no num form")
}
func (m *Map) ToStr() (string, error) {
	return "", errors.NewCast("map has no implicit str form")
}
func (m *Map) ToVec() ([]Value, error) {
	out := make([]Value, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.data[k])
	}
	return out, nil
}

// Set inserts or updates key, preserving first-insertion order.
func (m *Map) Set(key string, val Value) {
	if m.data == nil {
		m.data = make(map[string]Value)
	}
	if _, exists := m.data[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.data[key] = val
}

func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *Map) Has(key string) bool {
	_, ok := m.data[key]
	return ok
}

// Keys returns keys in insertion order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Range is `a to b` (full) or `from a`/`to b` (partial), with inclusive
// bounds when both ends are present.
type Range struct {
	HasFrom bool
	From    decimal.Decimal
	HasTo   bool
	To      decimal.Decimal
}

func (r Range) Truthy() bool { return true }
func (r Range) Weight() int  { return WeightValue }
func (r Range) Kind() string { return "range" }
func (r Range) ToNum() (decimal.Decimal, error) {
	return decimal.Zero, errors.NewCast("range has no num form")
}
func (r Range) ToStr() (string, error) {
	return "", errors.NewCast("range has no implicit str form")
}

func (r Range) Length() (int, error) {
	if !r.HasFrom || !r.HasTo {
		return 0, errors.NewCast("partial range has no length")
	}
	dist := r.To.Sub(r.From)
	return int(dist.IntPart()) + 1, nil
}

// ToVec materializes the range inclusively, refusing per spec §3.2 when
// the distance exceeds rangeConversionLimit.
func (r Range) ToVec() ([]Value, error) {
	if !r.HasFrom || !r.HasTo {
		return nil, errors.NewCast("partial range cannot convert to vec")
	}
	dist := r.To.Sub(r.From)
	if dist.IsNegative() {
		return nil, errors.NewCast("range has inverted bounds")
	}
	if dist.GreaterThan(decimal.NewFromInt(rangeConversionLimit)) {
		return nil, errors.NewRuntime("range distance exceeds 100,000: refusing vec conversion", "", 0)
	}
	n := int(dist.IntPart()) + 1
	out := make([]Value, n)
	cur := r.From
	for i := 0; i < n; i++ {
		out[i] = NewNum(cur)
		cur = cur.Add(decimal.NewFromInt(1))
	}
	return out, nil
}
