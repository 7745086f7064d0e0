package value

import (
	"github.com/shopspring/decimal"

	"github.com/ember-lang/ember/internal/errors"
)

// Native is an opaque host-language wrapper, the attachment point the
// out-of-scope builtin standard library would use to expose e.g. an open
// file handle or socket to language code.
type Native struct {
	Name   string
	Handle any
}

func (n *Native) Truthy() bool            { return n.Handle != nil }
func (n *Native) Weight() int             { return WeightValue }
func (n *Native) Kind() string            { return "native" }
func (n *Native) ToVec() ([]Value, error) { return nil, errors.NewCast("native has no vec form") }
func (n *Native) ToStr() (string, error)  { return "<native " + n.Name + ">", nil }
func (n *Native) Length() (int, error)    { return 0, errors.NewCast("native has no length") }
func (n *Native) ToNum() (decimal.Decimal, error) {
	return decimal.Zero, errors.NewCast("native has no num form")
}

// Internal is a read-only host-defined field bag (e.g. the `env` object
// injected into every interpreter instance by its embedder).
type Internal struct {
	Name   string
	Fields map[string]Value
}

func (i *Internal) Truthy() bool            { return true }
func (i *Internal) Weight() int             { return WeightValue }
func (i *Internal) Kind() string            { return "internal" }
func (i *Internal) ToVec() ([]Value, error) { return nil, errors.NewCast("internal has no vec form") }
func (i *Internal) ToStr() (string, error)  { return "<internal " + i.Name + ">", nil }
func (i *Internal) Length() (int, error)    { return len(i.Fields), nil }
func (i *Internal) ToNum() (decimal.Decimal, error) {
	return decimal.Zero, errors.NewCast("internal has no num form")
}

func (i *Internal) Get(name string) (Value, bool) {
	v, ok := i.Fields[name]
	return v, ok
}
