package vm

import (
	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/value"
)

// installPrelude registers the handful of builtins internal/transform's
// desugaring targets: __filter/__map_spread/__reduce (spread forms) and
// __access_assign (assignment through an access expression). Each needs
// to call back into a user-supplied predicate/operator value, so they're
// closures over this VM rather than free functions — no other bare
// operator-name bindings are installed, since nothing else in the
// compiler emits a call to one.
//
// It also seeds one value.Type per builtin abstract category (num, str,
// bool, vec, map, regex, range, fun) into the global scope, so a bare
// `given num` or a compiled pattern's `S is vec` resolves a real Type
// value instead of dying as an undefined symbol. Concrete box types need
// no such seeding: a box's own constructor value already answers
// value.Is through Box.AsType (see internal/value/equality.go).
func (m *VM) installPrelude() {
	reg := func(name string, fn func(args []value.Value) (value.Value, error)) {
		m.global.Define(name, &value.BuiltinFunction{Name: name, Fn: fn})
	}
	reg("__filter", m.filterBuiltin)
	reg("__map_spread", m.mapSpreadBuiltin)
	reg("__reduce", m.reduceVariadic)
	reg("__access_assign", m.accessAssignBuiltin)

	for name := range value.BuiltinAbstractTypes {
		m.global.Define(name, value.NewAbstractType(name))
	}
}

func itemsOf(v value.Value) ([]value.Value, error) {
	vv, ok := value.As(v)
	if !ok {
		return nil, errors.NewInternal("value without Valuer contract", nil)
	}
	return vv.ToVec()
}

// filterBuiltin is __filter(vec, pred): keeps items pred(item) finds truthy.
func (m *VM) filterBuiltin(args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return nil, errors.NewInternal("__filter expects 2 arguments", nil)
	}
	items, err := itemsOf(args[0])
	if err != nil {
		return nil, err
	}
	pred := args[1]
	out := make([]value.Value, 0, len(items))
	for _, item := range items {
		keep, err := m.invoke(pred, []value.Value{item})
		if err != nil {
			return nil, err
		}
		if value.Truthy(keep) {
			out = append(out, item)
		}
	}
	return value.NewVec(out...), nil
}

// mapSpreadBuiltin is __map_spread(operand, op, iterative): applies op to
// every element in turn, collecting the results. The third argument is
// the spread's iterative flag (rewriteSpread passes it through) and is
// not consulted; a hole-sentinel skip-during-map mechanic spec.md's dedicated
// opcode alternative describes is not implemented here — a documented
// simplification, since spec.md allows either lowering as long as
// observable semantics for supported programs match.
func (m *VM) mapSpreadBuiltin(args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return nil, errors.NewInternal("__map_spread expects 3 arguments", nil)
	}
	items, err := itemsOf(args[0])
	if err != nil {
		return nil, err
	}
	op := args[1]
	out := make([]value.Value, len(items))
	for i, item := range items {
		res, err := m.invoke(op, []value.Value{item})
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return value.NewVec(out...), nil
}

// reduceVariadic is __reduce(operand, op, iterative): a left fold over
// operand's elements, using the first element as the seed accumulator.
func (m *VM) reduceVariadic(args []value.Value) (value.Value, error) {
	if len(args) != 3 {
		return nil, errors.NewInternal("__reduce expects 3 arguments", nil)
	}
	return m.reduceBuiltin(args[0], args[1], args[2])
}

func (m *VM) reduceBuiltin(operand, op, _ value.Value) (value.Value, error) {
	items, err := itemsOf(operand)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return value.Bool(false), nil
	}
	acc := items[0]
	for _, item := range items[1:] {
		acc, err = m.invoke(op, []value.Value{acc, item})
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// accessAssignBuiltin is __access_assign(head, value, *indices): writes
// value into head at every given index (Vec/Map/BoxInstance), broadcast
// to each index when more than one is given — an Open Question spec.md
// leaves to the implementation; this mirrors CALL n's own one-vs-many
// container-get symmetry. Returns the assigned value so assignment
// composes as an expression.
func (m *VM) accessAssignBuiltin(args []value.Value) (value.Value, error) {
	if len(args) < 3 {
		return nil, errors.NewInternal("__access_assign expects head, value and at least one index", nil)
	}
	head, v, indices := args[0], args[1], args[2:]

	switch c := head.(type) {
	case *value.Vec:
		for _, idx := range indices {
			n, ok := idx.(value.Num)
			if !ok {
				return nil, errors.NewCast("vec index must be numeric")
			}
			if err := c.Set(int(n.D.IntPart()), v); err != nil {
				return nil, err
			}
		}
	case *value.Map:
		for _, idx := range indices {
			key, err := keyOf(idx)
			if err != nil {
				return nil, err
			}
			c.Set(key, v)
		}
	case *value.BoxInstance:
		for _, idx := range indices {
			key, err := keyOf(idx)
			if err != nil {
				return nil, err
			}
			c.Set(key, v)
		}
	default:
		return nil, errors.NewCast("value is not assignable by index: " + value.KindOf(head))
	}
	return v, nil
}
