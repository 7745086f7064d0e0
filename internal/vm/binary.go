package vm

import (
	"github.com/shopspring/decimal"

	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/value"
)

// normalizeCeiling bounds BINARY's coerce-and-retry loop (spec.md:
// "Normalization has a ceiling; infinite recursion is a bug").
const normalizeCeiling = 4

// binaryOp is BINARY op's fixed truth table over operand types. When no
// case matches the concrete (left, right) pair, normalize coerces one or
// both operands to a compatible shape and the table is consulted again,
// up to normalizeCeiling times.
func (m *VM) binaryOp(op string, left, right value.Value) (value.Value, error) {
	for attempt := 0; attempt < normalizeCeiling; attempt++ {
		res, matched, err := tryBinary(op, left, right)
		if err != nil {
			return nil, err
		}
		if matched {
			return res, nil
		}
		nl, nr, ok := normalize(op, left, right)
		if !ok {
			return nil, errors.NewCast("no matching operand types for operator " + op)
		}
		left, right = nl, nr
	}
	return nil, errors.NewInternal("BINARY normalization did not converge for operator "+op, nil)
}

func tryBinary(op string, left, right value.Value) (value.Value, bool, error) {
	switch op {
	case "+":
		if lv, ok := left.(*value.Vec); ok {
			if rv, ok := right.(*value.Vec); ok {
				out := make([]value.Value, 0, len(lv.Items)+len(rv.Items))
				out = append(out, lv.Items...)
				out = append(out, rv.Items...)
				return value.NewVec(out...), true, nil
			}
			return nil, false, nil
		}
		return arith(left, right, decimal.Decimal.Add)
	case "-":
		return arith(left, right, decimal.Decimal.Sub)
	case "*":
		return arith(left, right, decimal.Decimal.Mul)
	case "/":
		ln, lok := left.(value.Num)
		rn, rok := right.(value.Num)
		if !lok || !rok {
			return nil, false, nil
		}
		if rn.D.IsZero() {
			return nil, true, errors.NewRuntime("division by zero", "", 0)
		}
		return value.NewNum(ln.D.Div(rn.D)), true, nil

	case "~":
		ls, lok := left.(value.Str)
		rs, rok := right.(value.Str)
		if !lok || !rok {
			return nil, false, nil
		}
		return value.Str(string(ls) + string(rs)), true, nil

	case "is":
		// A Num against a numeric Str is left to normalize, which coerces
		// the Str to Num before the table is consulted again.
		if _, ok := left.(value.Num); ok {
			if s, ok := right.(value.Str); ok {
				if _, err := s.ToNum(); err == nil {
					return nil, false, nil
				}
			}
		}
		if _, ok := right.(value.Num); ok {
			if s, ok := left.(value.Str); ok {
				if _, err := s.ToNum(); err == nil {
					return nil, false, nil
				}
			}
		}
		return value.Bool(value.Is(left, right)), true, nil
	case "==":
		return value.Bool(value.Eqv(left, right)), true, nil
	case "!=":
		return value.Bool(!value.Eqv(left, right)), true, nil

	case "in":
		return membership(left, right)

	case "to":
		ln, lok := left.(value.Num)
		rn, rok := right.(value.Num)
		if !lok || !rok {
			return nil, false, nil
		}
		return value.Range{HasFrom: true, From: ln.D, HasTo: true, To: rn.D}, true, nil

	case "<", ">", "<=", ">=":
		return compare(op, left, right)

	case "x":
		return repeat(left, right)
	}
	return nil, false, errors.NewInternal("unknown binary operator "+op, nil)
}

func arith(left, right value.Value, f func(decimal.Decimal, decimal.Decimal) decimal.Decimal) (value.Value, bool, error) {
	ln, lok := left.(value.Num)
	rn, rok := right.(value.Num)
	if !lok || !rok {
		return nil, false, nil
	}
	return value.NewNum(f(ln.D, rn.D)), true, nil
}

func compare(op string, left, right value.Value) (value.Value, bool, error) {
	ln, lok := left.(value.Num)
	rn, rok := right.(value.Num)
	if !lok || !rok {
		ls, lok := left.(value.Str)
		rs, rok := right.(value.Str)
		if !lok || !rok {
			return nil, false, nil
		}
		var res bool
		switch op {
		case "<":
			res = ls < rs
		case ">":
			res = ls > rs
		case "<=":
			res = ls <= rs
		case ">=":
			res = ls >= rs
		}
		return value.Bool(res), true, nil
	}
	var res bool
	switch op {
	case "<":
		res = ln.D.LessThan(rn.D)
	case ">":
		res = ln.D.GreaterThan(rn.D)
	case "<=":
		res = ln.D.LessThanOrEqual(rn.D)
	case ">=":
		res = ln.D.GreaterThanOrEqual(rn.D)
	}
	return value.Bool(res), true, nil
}

// membership implements `in`: Vec search by eqv?, Map key presence, Range
// bounds and Str substring.
func membership(left, right value.Value) (value.Value, bool, error) {
	switch c := right.(type) {
	case *value.Vec:
		for _, item := range c.Items {
			if value.Eqv(left, item) {
				return value.Bool(true), true, nil
			}
		}
		return value.Bool(false), true, nil
	case *value.Map:
		key, err := keyOf(left)
		if err != nil {
			return nil, true, err
		}
		return value.Bool(c.Has(key)), true, nil
	case value.Range:
		ln, ok := left.(value.Num)
		if !ok {
			return nil, false, nil
		}
		if c.HasFrom && ln.D.LessThan(c.From) {
			return value.Bool(false), true, nil
		}
		if c.HasTo && ln.D.GreaterThan(c.To) {
			return value.Bool(false), true, nil
		}
		return value.Bool(true), true, nil
	case value.Str:
		ls, ok := left.(value.Str)
		if !ok {
			return nil, false, nil
		}
		return value.Bool(containsStr(string(c), string(ls))), true, nil
	}
	return nil, false, nil
}

func containsStr(haystack, needle string) bool {
	if len(needle) == 0 {
		return true
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

// repeat implements `x`: a vec/str repeated a numeric count of times,
// the repeated operand always canonicalized to the left by normalize
// before this runs.
func repeat(left, right value.Value) (value.Value, bool, error) {
	count, ok := right.(value.Num)
	if !ok {
		return nil, false, nil
	}
	n := int(count.D.IntPart())
	if n < 0 {
		return nil, true, errors.NewCast("repeat count must be non-negative")
	}
	switch v := left.(type) {
	case *value.Vec:
		out := make([]value.Value, 0, len(v.Items)*n)
		for i := 0; i < n; i++ {
			out = append(out, v.Items...)
		}
		return value.NewVec(out...), true, nil
	case value.Str:
		out := ""
		for i := 0; i < n; i++ {
			out += string(v)
		}
		return value.Str(out), true, nil
	}
	return nil, false, nil
}

// normalize coerces operands into a shape tryBinary can match, retried
// up to normalizeCeiling times. For `is` between a Num and a Str, the
// Str is coerced to Num. For `x`, operand order is rotated so the
// repeated operand (vec/str) comes first and the count comes second.
func normalize(op string, left, right value.Value) (value.Value, value.Value, bool) {
	switch op {
	case "is", "==", "!=", "<", ">", "<=", ">=":
		if ln, ok := left.(value.Num); ok {
			if rs, ok := right.(value.Str); ok {
				if rn, err := rs.ToNum(); err == nil {
					return ln, value.NewNum(rn), true
				}
			}
		}
		if rn, ok := right.(value.Num); ok {
			if ls, ok := left.(value.Str); ok {
				if ln, err := ls.ToNum(); err == nil {
					return value.NewNum(ln), rn, true
				}
			}
		}
	case "x":
		_, leftIsCount := left.(value.Num)
		if leftIsCount {
			switch right.(type) {
			case *value.Vec, value.Str:
				return right, left, true
			}
		}
	}
	return nil, nil, false
}
