package vm

import (
	"github.com/ember-lang/ember/internal/bytecode"
	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/quote"
	"github.com/ember-lang/ember/internal/value"
)

// invoke is CALL n's unified dispatch: the callee's runtime type decides
// whether this is container indexing or a function invocation (spec.md's
// invocation protocol). Builtins run synchronously in Go; every other
// callable gets a fresh Frame seeded from args.
func (m *VM) invoke(callee value.Value, args []value.Value) (value.Value, error) {
	switch c := callee.(type) {
	case *value.Vec:
		if idx, ok := allIndices(args); ok {
			return gatherVec(c, idx)
		}
		return nil, errors.NewCast("vec index must be numeric")
	case value.Str:
		if idx, ok := allIndices(args); ok {
			return gatherStr(c, idx)
		}
		return nil, errors.NewCast("str index must be numeric")

	case *value.Map:
		return gatherKeyed(args, func(key string) (value.Value, error) {
			v, ok := c.Get(key)
			if !ok {
				return nil, errors.NewRuntime("no such key: "+key, "", 0)
			}
			return v, nil
		})

	case *value.BoxInstance:
		return gatherKeyed(args, func(key string) (value.Value, error) {
			v, ok := c.Get(key)
			if !ok {
				return nil, errors.NewRuntime("no such field: "+key, "", 0)
			}
			return v, nil
		})

	case *value.BuiltinFunction:
		return c.Fn(args)

	case *value.ConcreteFunction:
		return m.invokeConcrete(c, args)

	case *value.GenericFunction:
		variant, err := c.Select(args, value.Is)
		if err != nil {
			return nil, err
		}
		return m.invokeConcrete(variant, args)

	case *value.Lambda:
		return m.invokeLambda(c, args)

	case *value.Box:
		return m.invokeBox(c, args)

	case *value.Partial:
		combined := make([]value.Value, 0, len(c.Bound)+len(args))
		combined = append(combined, c.Bound...)
		combined = append(combined, args...)
		return m.invoke(c.Target, combined)

	default:
		return nil, errors.NewRuntime("value is not callable: "+value.KindOf(callee), "", 0)
	}
}

func allIndices(args []value.Value) ([]int, bool) {
	out := make([]int, len(args))
	for i, a := range args {
		n, ok := a.(value.Num)
		if !ok {
			return nil, false
		}
		out[i] = int(n.D.IntPart())
	}
	return out, true
}

// gatherVec implements n-ary Vec indexing: one index reads a single
// element, several indices gather each in turn into a new Vec.
func gatherVec(v *value.Vec, idx []int) (value.Value, error) {
	if len(idx) == 1 {
		return v.Get(idx[0])
	}
	out := make([]value.Value, len(idx))
	for i, ix := range idx {
		e, err := v.Get(ix)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return value.NewVec(out...), nil
}

// gatherStr implements n-ary Str indexing the same way, gathering
// characters rather than elements.
func gatherStr(s value.Str, idx []int) (value.Value, error) {
	runes := []rune(string(s))
	get := func(i int) (string, error) {
		if i < 0 || i >= len(runes) {
			return "", errors.NewRuntime("index out of range", "", 0)
		}
		return string(runes[i]), nil
	}
	if len(idx) == 1 {
		c, err := get(idx[0])
		if err != nil {
			return nil, err
		}
		return value.Str(c), nil
	}
	var out []rune
	for _, ix := range idx {
		c, err := get(ix)
		if err != nil {
			return nil, err
		}
		out = append(out, []rune(c)...)
	}
	return value.Str(string(out)), nil
}

// gatherKeyed implements n-ary string-keyed access for Map and
// BoxInstance callees: one argument reads a single value, several gather
// each in turn into a new Vec — the same one-vs-many shape CALL uses for
// numeric Vec/Str indexing, generalized to any string key domain since
// field access (`.name`) and bracket access on a map compile to the same
// CALL instruction regardless of the head's runtime type.
func gatherKeyed(args []value.Value, get func(key string) (value.Value, error)) (value.Value, error) {
	if len(args) == 1 {
		key, err := keyOf(args[0])
		if err != nil {
			return nil, err
		}
		return get(key)
	}
	out := make([]value.Value, len(args))
	for i, a := range args {
		key, err := keyOf(a)
		if err != nil {
			return nil, err
		}
		v, err := get(key)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return value.NewVec(out...), nil
}

// seedArgs pushes args onto a fresh frame's superlocal stack in reverse,
// so the prologue's first UPOP yields args[0] (spec's invocation
// protocol: "seeds the frame ... reversed, so the first SET_POP reads
// the first positional").
func seedArgs(frame *Frame, args []value.Value) {
	for i := len(args) - 1; i >= 0; i-- {
		frame.pushUnder(args[i])
	}
}

// invokeConcrete runs one compiled fun variant. A plain fun (unlike a
// Lambda) does not close over the caller's locals — its new frame's
// scope is parented directly on the VM's global scope, so it can still
// see top-level bindings (including mutually-recursive sibling funs).
func (m *VM) invokeConcrete(cf *value.ConcreteFunction, args []value.Value) (value.Value, error) {
	frame := newFrame(m.pool[cf.ChunkIndex], value.NewScope(m.global))
	seedArgs(frame, args)
	return m.runFrame(frame)
}

// invokeLambda runs a closure's body against a scope parented on its
// captured scope, so it can see the locals alive when it was created.
func (m *VM) invokeLambda(l *value.Lambda, args []value.Value) (value.Value, error) {
	frame := newFrame(m.pool[l.ChunkIndex], value.NewScope(l.Captured))
	seedArgs(frame, args)
	return m.runFrame(frame)
}

// invokeBox instantiates a Box: the constructor chunk binds params into
// the new instance's own scope, then each field initializer runs in
// turn against that same scope — so a later field can read an earlier
// field or a constructor parameter, and the instance ends up with one
// flat scope holding every field (spec §3.2: "two instances of the same
// Box have independent scopes").
func (m *VM) invokeBox(b *value.Box, args []value.Value) (value.Value, error) {
	inst := value.NewBoxInstance(b, m.global)

	ctorFrame := newFrame(m.pool[b.CtorChunk], inst.Scope)
	seedArgs(ctorFrame, args)
	if _, err := m.runFrame(ctorFrame); err != nil {
		return nil, err
	}

	for _, name := range b.FieldOrder {
		chunkIdx, ok := b.FieldInit[name]
		if !ok {
			continue
		}
		fieldFrame := newFrame(m.pool[chunkIdx], inst.Scope)
		v, err := m.runFrame(fieldFrame)
		if err != nil {
			return nil, err
		}
		inst.Set(name, v)
	}
	return inst, nil
}

// buildFunction turns a FUN instruction's FunctionPayload into the
// runtime value it names: a Lambda closure, a Box constructor, or a
// ConcreteFunction with its given clauses evaluated once against the
// defining frame's scope (spec §4.7: "each given clause is its own
// standalone chunk, evaluated once at OpFun time").
func (m *VM) buildFunction(f *Frame, fp bytecode.FunctionPayload) (value.Value, error) {
	params := fp.Params
	if params == nil {
		var err error
		params, err = quote.NewParameters(nil)
		if err != nil {
			return nil, err
		}
	}

	if fp.IsBox {
		fieldInit := make(map[string]int, len(fp.FieldOrder))
		for i, name := range fp.FieldOrder {
			fieldInit[name] = int(fp.FieldInit[i])
		}
		return &value.Box{
			Name:       fp.Symbol,
			Params:     params,
			CtorChunk:  int(fp.ChunkRef),
			FieldOrder: append([]string(nil), fp.FieldOrder...),
			FieldInit:  fieldInit,
		}, nil
	}

	if fp.IsLambda {
		return &value.Lambda{
			Captured:   f.scope,
			Params:     params,
			ChunkIndex: int(fp.ChunkRef),
		}, nil
	}

	var givens []value.Value
	if len(fp.GivenChunkRefs) > 0 {
		givens = make([]value.Value, len(fp.GivenChunkRefs))
		for i, ref := range fp.GivenChunkRefs {
			if ref < 0 {
				continue
			}
			gv, err := m.runFrame(newFrame(m.pool[ref], f.scope))
			if err != nil {
				return nil, err
			}
			givens[i] = gv
		}
	}

	return &value.ConcreteFunction{
		Name:       fp.Symbol,
		Params:     params,
		Givens:     givens,
		ChunkIndex: int(fp.ChunkRef),
		Arity:      int(fp.Arity),
		Slurpy:     fp.Slurpy,
	}, nil
}
