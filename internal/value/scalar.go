package value

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/ember-lang/ember/internal/errors"
)

// Num wraps an arbitrary-precision decimal (spec §1: "numeric guarantees
// beyond arbitrary-precision decimals delegated to a big-number library").
type Num struct {
	D decimal.Decimal
}

func NewNum(d decimal.Decimal) Num { return Num{D: d} }

func NumFromInt(i int64) Num { return Num{D: decimal.NewFromInt(i)} }

func (n Num) Truthy() bool                        { return !n.D.IsZero() }
func (n Num) ToNum() (decimal.Decimal, error)      { return n.D, nil }
func (n Num) ToStr() (string, error)               { return n.D.String(), nil }
func (n Num) ToVec() ([]Value, error) {
	return nil, errors.NewCast("num has no vec form")
}
func (n Num) Length() (int, error) { return 0, errors.NewCast("num has no length") }
func (n Num) Weight() int          { return WeightValue }
func (n Num) Kind() string         { return "num" }

// Str is an immutable, byte-safe string.
type Str string

func (s Str) Truthy() bool                   { return len(s) > 0 }
func (s Str) ToStr() (string, error)         { return string(s), nil }
func (s Str) ToVec() ([]Value, error) {
	out := make([]Value, 0, len(s))
	for _, b := range []byte(s) {
		out = append(out, Str(string(b)))
	}
	return out, nil
}
func (s Str) Length() (int, error) { return len(s), nil }
func (s Str) Weight() int          { return WeightValue }
func (s Str) Kind() string         { return "str" }

func (s Str) ToNum() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(string(s))
	if err != nil {
		return decimal.Zero, errors.NewCast("cannot coerce str to num: " + string(s))
	}
	return d, nil
}

// Bool is the language's boolean.
type Bool bool

func (b Bool) Truthy() bool              { return bool(b) }
func (b Bool) ToVec() ([]Value, error)   { return nil, errors.NewCast("bool has no vec form") }
func (b Bool) Length() (int, error)      { return 0, errors.NewCast("bool has no length") }
func (b Bool) Weight() int               { return WeightValue }
func (b Bool) Kind() string              { return "bool" }
func (b Bool) ToStr() (string, error) {
	if b {
		return "true", nil
	}
	return "false", nil
}
func (b Bool) ToNum() (decimal.Decimal, error) {
	if b {
		return decimal.NewFromInt(1), nil
	}
	return decimal.Zero, nil
}

// Regex is a compiled regex literal plus its original source text; regex
// vs. string equality (is?) is intentionally asymmetric per spec §3.2.
type Regex struct {
	Source string
	Re     *regexp.Regexp
}

func NewRegex(source string) (Regex, error) {
	re, err := regexp.Compile(source)
	if err != nil {
		return Regex{}, errors.NewCast("malformed regex literal: " + err.Error())
	}
	return Regex{Source: source, Re: re}, nil
}

func (r Regex) Truthy() bool            { return true }
func (r Regex) ToStr() (string, error)  { return r.Source, nil }
func (r Regex) ToVec() ([]Value, error) { return nil, errors.NewCast("regex has no vec form") }
func (r Regex) Length() (int, error)    { return len(r.Source), nil }
func (r Regex) Weight() int             { return WeightValue }
func (r Regex) Kind() string            { return "regex" }
func (r Regex) ToNum() (decimal.Decimal, error) {
	return decimal.Zero, errors.NewCast("regex has no num form")
}

// MatchesStr implements the asymmetric semantic equality used by `is`
// between a Regex and a Str: the regex is always on the left.
func (r Regex) MatchesStr(s string) bool {
	return r.Re.MatchString(s)
}
