// Package vm implements the stack machine of spec.md §4.7/§5: one frame
// stack, one chunk pool, one global-and-nested scope stack, with each
// frame owning its own value stack, control stack and underscores
// (superlocal) stack. The teacher's several divergent VM revisions
// (EnhancedVM, the vm_*.go family) are not carried forward — see
// DESIGN.md — this is a fresh implementation of the one opcode revision
// internal/bytecode names.
package vm

import (
	"github.com/shopspring/decimal"

	"github.com/ember-lang/ember/internal/bytecode"
	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/value"
)

var decimalOne = decimal.NewFromInt(1)

// VM owns the chunk pool every ChunkRef/ChunkIndex indexes, the single
// global scope, and the call stack of active Frames. Single-threaded,
// cooperative, no suspension points visible to the language (spec §5).
type VM struct {
	pool   []*bytecode.Chunk
	global *value.Scope
	frames []*Frame

	loopPairs map[*bytecode.Chunk]map[int]int
	regexes   map[*bytecode.Chunk]map[int32]value.Regex
}

// New builds a VM over a chunk pool that has already been stitched
// (internal/stitch) — every instruction's jump Arg must already index
// Chunk.Jumps, and Chunk.Seamless must already be populated. Building a
// VM over an un-stitched pool is a programming error, not a runtime one.
func New(pool []*bytecode.Chunk) *VM {
	m := &VM{
		pool:      pool,
		global:    value.NewScope(nil),
		loopPairs: make(map[*bytecode.Chunk]map[int]int),
		regexes:   make(map[*bytecode.Chunk]map[int32]value.Regex),
	}
	m.installPrelude()
	return m
}

// Global exposes the root scope so an orchestrator/REPL can seed or read
// top-level bindings between units sharing this VM.
func (m *VM) Global() *value.Scope { return m.global }

// Pool exposes the chunk pool so a caller that appends more chunks at
// runtime (the orchestrator, compiling one distinct unit at a time) can
// keep ChunkIndex/ChunkRef values stable.
func (m *VM) Pool() []*bytecode.Chunk { return m.pool }

// Extend appends freshly compiled chunks to the pool and returns the
// index the first of them now occupies.
func (m *VM) Extend(chunks []*bytecode.Chunk) int {
	base := len(m.pool)
	m.pool = append(m.pool, chunks...)
	return base
}

// Run executes chunk pool[entry] in a fresh top-level frame whose scope
// IS the VM's global scope (not a child of it) — so a top-level `fun`
// bound via SET_TAP becomes visible, as a true global, to every other
// frame parented on the global scope (spec §5's shared global; this is
// also what lets mutually-recursive top-level funs see each other).
func (m *VM) Run(entry int) (value.Value, error) {
	frame := newFrame(m.pool[entry], m.global)
	return m.runFrame(frame)
}

// runFrame pushes frame onto the call stack and drives it (and anything
// it calls) to completion, returning the value its RET produced. A
// runtime error unwinds frames one at a time, giving each its own guard
// stack a chance to recover via the TRY_POP/`dies` protocol before the
// error is allowed to propagate further.
func (m *VM) runFrame(frame *Frame) (value.Value, error) {
	m.frames = append(m.frames, frame)
	defer func() { m.frames = m.frames[:len(m.frames)-1] }()

	for {
		v, done, err := m.step(frame)
		if err != nil {
			if le, ok := err.(*errors.LangError); ok && le.Kind == errors.KindRuntime {
				if n := len(frame.guard); n > 0 {
					g := frame.guard[n-1]
					frame.guard = frame.guard[:n-1]
					if len(frame.stack) > g.height {
						frame.stack = frame.stack[:g.height]
					}
					frame.push(value.Bool(false))
					frame.ip = g.resume
					continue
				}
			}
			return nil, err
		}
		if done {
			return v, nil
		}
	}
}

// step executes exactly one instruction, reporting the frame's final
// value and done=true once RET fires (or control falls off the chunk's
// end, which a RET-less body's last expression result stands in for).
func (m *VM) step(f *Frame) (value.Value, bool, error) {
	chunk := f.chunk
	// Reaching a guard's resume point without an error exits it normally.
	for n := len(f.guard); n > 0 && f.guard[n-1].resume == f.ip; n = len(f.guard) {
		f.guard = f.guard[:n-1]
	}
	if f.ip >= len(chunk.Seamless) {
		v, _ := f.pop()
		return v, true, nil
	}
	ins := chunk.Seamless[f.ip]
	here := f.ip
	f.ip++

	switch ins.Op {
	case bytecode.OpPop:
		f.pop()
	case bytecode.OpPop2:
		f.pop()
		f.pop()
	case bytecode.OpDup:
		v, ok := f.peek()
		if !ok {
			return nil, false, errors.NewRuntime("DUP on empty stack", chunk.File, ins.Line)
		}
		f.push(v)
	case bytecode.OpTon:
		v, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("TON on empty stack", chunk.File, ins.Line)
		}
		d, err := numOf(v)
		if err != nil {
			return nil, false, err
		}
		f.push(value.NewNum(d))
	case bytecode.OpTos:
		v, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("TOS on empty stack", chunk.File, ins.Line)
		}
		s, err := strOf(v)
		if err != nil {
			return nil, false, err
		}
		f.push(value.Str(s))
	case bytecode.OpTob, bytecode.OpToib:
		v, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("bool coercion on empty stack", chunk.File, ins.Line)
		}
		f.push(value.Bool(value.Truthy(v)))
	case bytecode.OpTrue:
		f.push(value.Bool(true))
	case bytecode.OpFalse:
		f.push(value.Bool(false))
	case bytecode.OpTov:
		v, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("TOV on empty stack", chunk.File, ins.Line)
		}
		vv, ok := value.As(v)
		if !ok {
			return nil, false, errors.NewInternal("value without Valuer contract", nil)
		}
		items, err := vv.ToVec()
		if err != nil {
			return nil, false, err
		}
		f.push(value.NewVec(items...))
	case bytecode.OpNeg:
		v, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("NEG on empty stack", chunk.File, ins.Line)
		}
		n, ok := v.(value.Num)
		if !ok {
			return nil, false, errors.NewCast("cannot negate a non-num value")
		}
		f.push(value.NewNum(n.D.Neg()))
	case bytecode.OpLen:
		v, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("LEN on empty stack", chunk.File, ins.Line)
		}
		vv, ok := value.As(v)
		if !ok {
			return nil, false, errors.NewInternal("value without Valuer contract", nil)
		}
		n, err := vv.Length()
		if err != nil {
			return nil, false, err
		}
		f.push(value.NumFromInt(int64(n)))
	case bytecode.OpEns:
		v, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("ENS on empty stack", chunk.File, ins.Line)
		}
		if !value.Truthy(v) {
			return nil, false, errors.NewRuntime("ensure failed", chunk.File, ins.Line)
		}
	case bytecode.OpUput:
		v, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("UPUT on empty stack", chunk.File, ins.Line)
		}
		f.pushUnder(v)
	case bytecode.OpUpop:
		v, ok := f.popUnder()
		if !ok {
			return nil, false, errors.NewRuntime("missing argument", chunk.File, ins.Line)
		}
		f.push(v)
	case bytecode.OpUref:
		v, ok := f.peekUnder()
		if !ok {
			return nil, false, errors.NewRuntime("UREF on empty superlocal stack", chunk.File, ins.Line)
		}
		f.push(v)
	case bytecode.OpClear:
		if n := len(f.ctrl); n > 0 && f.ctrl[n-1].ip == here {
			h := f.ctrl[n-1].height
			if len(f.stack) > h {
				f.stack = f.stack[:h]
			}
		} else {
			f.ctrl = append(f.ctrl, ctrlMark{ip: here, height: len(f.stack)})
		}
	case bytecode.OpRet:
		v, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("RET on empty stack", chunk.File, ins.Line)
		}
		return v, true, nil
	case bytecode.OpInc:
		v, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("INC on empty stack", chunk.File, ins.Line)
		}
		n, ok := v.(value.Num)
		if !ok {
			return nil, false, errors.NewCast("cannot increment a non-num value")
		}
		f.push(value.NewNum(n.D.Add(decimalOne)))
	case bytecode.OpDec:
		v, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("DEC on empty stack", chunk.File, ins.Line)
		}
		n, ok := v.(value.Num)
		if !ok {
			return nil, false, errors.NewCast("cannot decrement a non-num value")
		}
		f.push(value.NewNum(n.D.Sub(decimalOne)))
	case bytecode.OpMapSetup:
		n := int(ins.Arg)
		pairs := make([]value.Value, 2*n)
		for i := 2*n - 1; i >= 0; i-- {
			v, ok := f.pop()
			if !ok {
				return nil, false, errors.NewRuntime("MAP_SETUP on short stack", chunk.File, ins.Line)
			}
			pairs[i] = v
		}
		mp := value.NewMap()
		for i := 0; i < n; i++ {
			key, err := keyOf(pairs[2*i])
			if err != nil {
				return nil, false, err
			}
			mp.Set(key, pairs[2*i+1])
		}
		f.push(mp)
	case bytecode.OpMapAppend:
		// Unreachable from this compiler: map literals compile through
		// MAP_SETUP only (compiler/expr.go), never an iterative append.
		// Kept so the full opcode taxonomy has a plausible implementation.
		val, _ := f.pop()
		keyV, _ := f.pop()
		mv, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("MAP_APPEND on short stack", chunk.File, ins.Line)
		}
		mm, ok := mv.(*value.Map)
		if !ok {
			return nil, false, errors.NewCast("MAP_APPEND target is not a map")
		}
		key, err := keyOf(keyV)
		if err != nil {
			return nil, false, err
		}
		mm.Set(key, val)
		f.push(mm)
	case bytecode.OpMapIter:
		// Unreachable: this revision lowers map/filter/reduce spread
		// through the __map_spread/__filter/__reduce prelude builtins
		// (internal/transform's rewriteSpread) rather than a dedicated
		// iteration opcode — spec.md's explicit "either" allowance.
		f.push(value.Bool(false))
	case bytecode.OpRemToVec:
		f.push(value.NewVec(f.drainUnder()...))
	case bytecode.OpFalseIfEmpty:
		pairs := m.loopPairsFor(chunk)
		if clearIP, ok := pairs[here]; ok {
			if n := len(f.ctrl); n > 0 && f.ctrl[n-1].ip == clearIP {
				f.ctrl = f.ctrl[:n-1]
				break
			}
		}
		f.push(value.Bool(false))

	case bytecode.OpNum:
		f.push(value.NewNum(chunk.Statics[ins.Arg].Num))
	case bytecode.OpStr:
		f.push(value.Str(chunk.Statics[ins.Arg].Str))
	case bytecode.OpVec:
		n := int(ins.Arg)
		items := make([]value.Value, n)
		for i := n - 1; i >= 0; i-- {
			v, ok := f.pop()
			if !ok {
				return nil, false, errors.NewRuntime("VEC on short stack", chunk.File, ins.Line)
			}
			items[i] = v
		}
		f.push(value.NewVec(items...))
	case bytecode.OpPcre:
		re, err := m.regexFor(chunk, ins.Arg)
		if err != nil {
			return nil, false, err
		}
		f.push(re)
	case bytecode.OpGoto:
		f.ip = int(ins.Arg)
	case bytecode.OpCall:
		n := int(ins.Arg)
		args := make([]value.Value, n)
		for i := n - 1; i >= 0; i-- {
			v, ok := f.pop()
			if !ok {
				return nil, false, errors.NewRuntime("CALL on short stack", chunk.File, ins.Line)
			}
			args[i] = v
		}
		callee, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("CALL missing callee", chunk.File, ins.Line)
		}
		res, err := m.invoke(callee, args)
		if err != nil {
			return nil, false, err
		}
		f.push(res)
	case bytecode.OpReduce:
		// Unreachable from this compiler (see OpMapIter); kept as a
		// plausible two-operand fold in case a future compiler revision
		// emits it directly instead of desugaring through __reduce.
		rightOp, _ := f.pop()
		leftOp, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("REDUCE on short stack", chunk.File, ins.Line)
		}
		res, err := m.reduceBuiltin(leftOp, rightOp, value.Bool(true))
		if err != nil {
			return nil, false, err
		}
		f.push(res)
	case bytecode.OpBinary:
		op := chunk.Statics[ins.Arg].Str
		right, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("BINARY missing right operand", chunk.File, ins.Line)
		}
		left, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("BINARY missing left operand", chunk.File, ins.Line)
		}
		res, err := m.binaryOp(op, left, right)
		if err != nil {
			return nil, false, err
		}
		f.push(res)

	case bytecode.OpJ:
		f.ip = int(chunk.Jumps[ins.Arg])
	case bytecode.OpJit:
		v, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("JIT on empty stack", chunk.File, ins.Line)
		}
		if value.Truthy(v) {
			f.ip = int(chunk.Jumps[ins.Arg])
		}
	case bytecode.OpJif, bytecode.OpGifp:
		v, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("JIF on empty stack", chunk.File, ins.Line)
		}
		if !value.Truthy(v) {
			f.ip = int(chunk.Jumps[ins.Arg])
		}
	case bytecode.OpJitElsePop:
		v, ok := f.peek()
		if !ok {
			return nil, false, errors.NewRuntime("JIT_ELSE_POP on empty stack", chunk.File, ins.Line)
		}
		if value.Truthy(v) {
			f.ip = int(chunk.Jumps[ins.Arg])
		} else {
			f.pop()
		}
	case bytecode.OpJifElsePop:
		v, ok := f.peek()
		if !ok {
			return nil, false, errors.NewRuntime("JIF_ELSE_POP on empty stack", chunk.File, ins.Line)
		}
		if !value.Truthy(v) {
			f.ip = int(chunk.Jumps[ins.Arg])
		} else {
			f.pop()
		}
	case bytecode.OpTryPop:
		f.guard = append(f.guard, guard{resume: int(chunk.Jumps[ins.Arg]), height: len(f.stack)})

	case bytecode.OpSym:
		sym := chunk.Symbols[ins.Arg]
		v, ok := f.scope.Get(sym.Name)
		if !ok {
			return nil, false, errors.NewRuntime("undefined symbol: "+sym.Name, chunk.File, ins.Line)
		}
		f.push(v)
	case bytecode.OpSetPop:
		sym := chunk.Symbols[ins.Arg]
		v, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("SET_POP on empty stack", chunk.File, ins.Line)
		}
		m.bind(f.scope, sym.Name, v)
	case bytecode.OpSetTap:
		sym := chunk.Symbols[ins.Arg]
		v, ok := f.pop()
		if !ok {
			return nil, false, errors.NewRuntime("SET_TAP on empty stack", chunk.File, ins.Line)
		}
		bound := m.bind(f.scope, sym.Name, v)
		f.push(bound)

	case bytecode.OpFun:
		fp := chunk.Functions[ins.Arg]
		fv, err := m.buildFunction(f, fp)
		if err != nil {
			return nil, false, err
		}
		f.push(fv)

	default:
		return nil, false, errors.NewInternal("unknown opcode", ins.Op)
	}
	return nil, false, nil
}

// bind implements plain assignment, except that assigning a
// *ConcreteFunction over a name that already holds one (or a
// GenericFunction) merges the new variant in rather than shadowing the
// old one — this is how two `fun name given ...` declarations sharing a
// name become one overload set (spec §4.5/§9's generic dispatch). bind
// returns the value now actually bound, which SET_TAP pushes back.
//
// A lone fun whose own given clauses name a real typecheck is also
// wrapped in a single-variant GenericFunction on its very first
// declaration, rather than only once a second overload arrives: a given
// clause is a call-time contract regardless of how many variants share
// the name, and only GenericFunction.Select enforces one (invoke's
// plain *ConcreteFunction case runs the body unconditionally). A fun
// with no given clauses at all stays a bare ConcreteFunction, matching
// the cheaper, check-free call path recursion (e.g. a factorial fun)
// relies on.
func (m *VM) bind(scope *value.Scope, name string, v value.Value) value.Value {
	incoming, ok := v.(*value.ConcreteFunction)
	if !ok {
		scope.Set(name, v)
		return v
	}
	existing, _ := scope.Get(name)
	switch e := existing.(type) {
	case *value.GenericFunction:
		e.AddVariant(incoming)
		return e
	case *value.ConcreteFunction:
		g := value.NewGenericFunction(incoming.Name)
		g.AddVariant(e)
		g.AddVariant(incoming)
		scope.Set(name, g)
		return g
	default:
		if hasAnyGiven(incoming) {
			g := value.NewGenericFunction(incoming.Name)
			g.AddVariant(incoming)
			scope.Set(name, g)
			return g
		}
		scope.Set(name, v)
		return v
	}
}

func hasAnyGiven(cf *value.ConcreteFunction) bool {
	for _, g := range cf.Givens {
		if g != nil {
			return true
		}
	}
	return false
}

// keyOf requires a map-literal key to reduce to a string (spec §3.2:
// maps are string-keyed), coercing via ToStr for non-Str keys the way a
// dynamic key expression naturally would.
func keyOf(v value.Value) (string, error) {
	if s, ok := v.(value.Str); ok {
		return string(s), nil
	}
	return strOf(v)
}

func numOf(v value.Value) (decimal.Decimal, error) {
	vv, ok := value.As(v)
	if !ok {
		return decimal.Zero, errors.NewInternal("value without Valuer contract", nil)
	}
	return vv.ToNum()
}

func strOf(v value.Value) (string, error) {
	vv, ok := value.As(v)
	if !ok {
		return "", errors.NewInternal("value without Valuer contract", nil)
	}
	return vv.ToStr()
}

func (m *VM) loopPairsFor(chunk *bytecode.Chunk) map[int]int {
	if p, ok := m.loopPairs[chunk]; ok {
		return p
	}
	p := buildLoopPairs(chunk.Seamless)
	m.loopPairs[chunk] = p
	return p
}

// buildLoopPairs statically pairs each FALSE_IF_EMPTY with the CLEAR it
// closes, by bracket-matching over the instruction stream: loop
// constructs nest properly (compileLoop emits CLEAR then FALSE_IF_EMPTY
// in strict source order, an inner loop always fully closing before an
// outer loop's own FALSE_IF_EMPTY runs), so a simple stack of pending
// CLEAR ips pairs correctly even across nested and sibling loops.
func buildLoopPairs(ins []bytecode.Instruction) map[int]int {
	pairs := make(map[int]int)
	var pending []int
	for ip, in := range ins {
		switch in.Op {
		case bytecode.OpClear:
			pending = append(pending, ip)
		case bytecode.OpFalseIfEmpty:
			if n := len(pending); n > 0 {
				pairs[ip] = pending[n-1]
				pending = pending[:n-1]
			}
		}
	}
	return pairs
}

func (m *VM) regexFor(chunk *bytecode.Chunk, arg int32) (value.Regex, error) {
	byChunk, ok := m.regexes[chunk]
	if !ok {
		byChunk = make(map[int32]value.Regex)
		m.regexes[chunk] = byChunk
	}
	if re, ok := byChunk[arg]; ok {
		return re, nil
	}
	re, err := value.NewRegex(chunk.Statics[arg].Str)
	if err != nil {
		return value.Regex{}, err
	}
	byChunk[arg] = re
	return re, nil
}
