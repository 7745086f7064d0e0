// Package transform implements the tree-to-tree lowering pass of spec
// §4.2: a type-dispatched recursive visitor that mutates quote trees in
// place, rewriting sugar into the normalized forms the compiler expects.
package transform

import (
	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/pattern"
	"github.com/ember-lang/ember/internal/quote"
)

// Run rewrites q (and everything beneath it) in place and returns the
// (possibly replaced) root.
func Run(q quote.Quote) (quote.Quote, error) {
	return rewrite(q)
}

// RunAll rewrites a list of top-level statements.
func RunAll(qs []quote.Quote) ([]quote.Quote, error) {
	for i, q := range qs {
		r, err := rewrite(q)
		if err != nil {
			return nil, err
		}
		qs[i] = r
	}
	return qs, nil
}

func rewrite(q quote.Quote) (quote.Quote, error) {
	if q == nil {
		return nil, nil
	}
	switch n := q.(type) {
	case *quote.ReadSymbol:
		return nil, errors.NewCompile("unexpanded read-time symbol $"+n.Name+" escaped its macro", n.Pos.File, n.Pos.Line)

	case *quote.FilterOver:
		return rewriteFilterOver(n)
	case *quote.Spread:
		return rewriteSpread(n)
	case *quote.ImmediateBox:
		return rewriteImmediateBox(n)
	case *quote.Assign:
		return rewriteAssign(n)
	case *quote.BinaryAssign:
		return rewriteBinaryAssign(n)
	case *quote.PatternEnvelope:
		return rewritePatternEnvelope(n)

	case *quote.Vector:
		return rewriteChildren(n, &n.Elements)
	case *quote.MapLit:
		if err := rewriteSlice(n.Keys); err != nil {
			return nil, err
		}
		if err := rewriteSlice(n.Values); err != nil {
			return nil, err
		}
		return n, nil
	case *quote.Unary:
		return n, rewriteInto(&n.Operand)
	case *quote.Binary:
		if err := rewriteInto(&n.Left); err != nil {
			return nil, err
		}
		return n, rewriteInto(&n.Right)
	case *quote.Call:
		if err := rewriteInto(&n.Callee); err != nil {
			return nil, err
		}
		return n, rewriteSlice(n.Args)
	case *quote.Access:
		if err := rewriteInto(&n.Head); err != nil {
			return nil, err
		}
		return n, rewriteSlice(n.Args)
	case *quote.AccessField:
		if err := rewriteInto(&n.Head); err != nil {
			return nil, err
		}
		switch n.Accessor.Kind {
		case quote.FieldDynamic:
			return n, rewriteInto(&n.Accessor.Expr)
		case quote.FieldBranches:
			return n, rewriteSlice(n.Accessor.Branches)
		}
		return n, nil
	case *quote.IntoBool:
		return n, rewriteInto(&n.Operand)
	case *quote.ReturnIncDec:
		return n, rewriteInto(&n.Target)
	case *quote.Dies:
		return n, rewriteInto(&n.Operand)

	case *quote.If:
		if err := rewriteInto(&n.Cond); err != nil {
			return nil, err
		}
		if err := rewriteInto(&n.Then); err != nil {
			return nil, err
		}
		return n, rewriteInto(&n.Else)
	case *quote.Block:
		return n, rewriteSlice(n.Statements)
	case *quote.Group:
		return n, rewriteInto(&n.Inner)
	case *quote.Loop:
		if err := rewriteInto(&n.Start); err != nil {
			return nil, err
		}
		if err := rewriteInto(&n.Base); err != nil {
			return nil, err
		}
		if err := rewriteInto(&n.Step); err != nil {
			return nil, err
		}
		return n, rewriteInto(&n.Body)
	case *quote.Next:
		return n, rewriteSlice(n.Args)
	case *quote.ReturnStatement:
		return n, rewriteInto(&n.Value)
	case *quote.Queue:
		return n, rewriteSlice(n.Values)

	case *quote.Fun:
		routeGivenPatterns(n.Params, n.Givens)
		if err := rewriteParams(n.Params); err != nil {
			return nil, err
		}
		if err := rewriteSlice(n.Givens); err != nil {
			return nil, err
		}
		return n, rewriteInto(&n.Body)
	case *quote.Box:
		if err := rewriteParams(n.Params); err != nil {
			return nil, err
		}
		for i := range n.Fields {
			if err := rewriteInto(&n.Fields[i].Value); err != nil {
				return nil, err
			}
		}
		return n, nil
	case *quote.Lambda:
		if err := rewriteParams(n.Params); err != nil {
			return nil, err
		}
		return n, rewriteInto(&n.Body)

	case *quote.StringLit:
		for i := range n.Parts {
			if n.Parts[i].Expr != nil {
				if err := rewriteInto(&n.Parts[i].Expr); err != nil {
					return nil, err
				}
			}
		}
		return n, nil

	case *quote.Ensure:
		return n, rewriteInto(&n.Expr)
	case *quote.EnsureTest:
		for _, c := range n.Cases {
			if err := rewriteInto(&c.Body); err != nil {
				return nil, err
			}
		}
		return n, nil

	default:
		return q, nil
	}
}

func rewriteInto(slot *quote.Quote) error {
	if *slot == nil {
		return nil
	}
	r, err := rewrite(*slot)
	if err != nil {
		return err
	}
	*slot = r
	return nil
}

func rewriteSlice(qs []quote.Quote) error {
	for i := range qs {
		r, err := rewrite(qs[i])
		if err != nil {
			return err
		}
		qs[i] = r
	}
	return nil
}

func rewriteChildren(n *quote.Vector, elems *[]quote.Quote) (quote.Quote, error) {
	if err := rewriteSlice(*elems); err != nil {
		return nil, err
	}
	return n, nil
}

// routeGivenPatterns moves a given clause written as a pattern (`given
// '[a, b]`) into that parameter's own Pattern slot — the same slot `fun
// f(n '[a, b])` fills directly — instead of leaving it in Givens to be
// lowered into a verification lambda no dispatch path ever calls.
// bindParamsPrologue's existing pattern binding then handles both the
// match (dying on mismatch) and the bindings uniformly, for generic
// variants and lone funs alike. The envelope's inner Pattern is moved
// raw, unwrapped, matching the shape the parameter-pattern reader
// syntax already produces; the envelope's own Escaped flag only governs
// nested sub-pattern escapes and plays no part here.
func routeGivenPatterns(params []quote.Parameter, givens []quote.Quote) {
	for i, g := range givens {
		if i >= len(params) {
			return
		}
		env, ok := g.(*quote.PatternEnvelope)
		if !ok || params[i].Pattern != nil {
			continue
		}
		params[i].Pattern = env.Pattern
		givens[i] = nil
	}
}

func rewriteParams(params []quote.Parameter) error {
	for i := range params {
		if err := rewriteInto(&params[i].Given); err != nil {
			return err
		}
		if err := rewriteInto(&params[i].Pattern); err != nil {
			return err
		}
	}
	return nil
}

// rewriteFilterOver implements `QFilterOver(vec, pred) → __filter(vec,
// lambda_of(pred))` (spec §4.2); the predicate is wrapped in a
// zero-argument lambda unless it is already a symbol or lambda.
func rewriteFilterOver(n *quote.FilterOver) (quote.Quote, error) {
	if err := rewriteInto(&n.Vec); err != nil {
		return nil, err
	}
	if err := rewriteInto(&n.Pred); err != nil {
		return nil, err
	}
	pred := lambdaOf(n.Pred)
	return &quote.Call{
		Pos:    n.Pos,
		Callee: &quote.Symbol{Pos: n.Pos, Name: "__filter"},
		Args:   []quote.Quote{n.Vec, pred},
	}, nil
}

// rewriteSpread implements `QMapSpread(op, operand, iterative) →
// __map_spread(operand, lambda_of(op), iterative)` (spec §4.2); reduce
// spreads lower to `__reduce` instead.
func rewriteSpread(n *quote.Spread) (quote.Quote, error) {
	if err := rewriteInto(&n.Operator); err != nil {
		return nil, err
	}
	if err := rewriteInto(&n.Operand); err != nil {
		return nil, err
	}
	op := lambdaOf(n.Operator)
	name := "__map_spread"
	if n.Kind == quote.SpreadReduce {
		name = "__reduce"
	}
	var iterative quote.Quote = &quote.False{Pos: n.Pos}
	if n.Iterative {
		iterative = &quote.True{Pos: n.Pos}
	}
	return &quote.Call{
		Pos:    n.Pos,
		Callee: &quote.Symbol{Pos: n.Pos, Name: name},
		Args:   []quote.Quote{n.Operand, op, iterative},
	}, nil
}

// lambdaOf wraps pred in a zero-argument lambda unless it's already a
// symbol or lambda (spec §4.2).
func lambdaOf(pred quote.Quote) quote.Quote {
	switch pred.(type) {
	case *quote.Symbol, *quote.Lambda:
		return pred
	}
	pos := pred.Pos()
	return &quote.Lambda{Pos: pos, Params: nil, Body: pred}
}

// rewriteImmediateBox implements `QImmediateBox(box) → { box_decl;
// box_name := box_name(); }`, dying if the box is parametric (spec §4.2).
func rewriteImmediateBox(n *quote.ImmediateBox) (quote.Quote, error) {
	box := n.Inner
	if len(box.Params) > 0 {
		return nil, errors.NewCompile("immediate box "+box.Name+" must not be parametric", n.Pos.File, n.Pos.Line)
	}
	if err := rewriteParams(box.Params); err != nil {
		return nil, err
	}
	for i := range box.Fields {
		if err := rewriteInto(&box.Fields[i].Value); err != nil {
			return nil, err
		}
	}
	name := box.Name
	call := &quote.Call{Pos: n.Pos, Callee: &quote.Symbol{Pos: n.Pos, Name: name}}
	assign := &quote.Assign{Pos: n.Pos, Target: &quote.Symbol{Pos: n.Pos, Name: name}, Value: call, Global: true}
	return &quote.Block{Pos: n.Pos, Statements: []quote.Quote{box, assign}}, nil
}

// rewriteAssign implements the access-assign rewrite: `QAssign(target=
// QAccess(head, args), value) → __access_assign(head, value, *args)`
// (spec §4.2). Assignments to any other target pass through unchanged.
func rewriteAssign(n *quote.Assign) (quote.Quote, error) {
	if err := rewriteInto(&n.Value); err != nil {
		return nil, err
	}
	access, ok := n.Target.(*quote.Access)
	if !ok {
		if err := rewriteInto(&n.Target); err != nil {
			return nil, err
		}
		return n, nil
	}
	if err := rewriteInto(&access.Head); err != nil {
		return nil, err
	}
	if err := rewriteSlice(access.Args); err != nil {
		return nil, err
	}
	args := append([]quote.Quote{access.Head, n.Value}, access.Args...)
	return &quote.Call{Pos: n.Pos, Callee: &quote.Symbol{Pos: n.Pos, Name: "__access_assign"}, Args: args}, nil
}

// rewriteBinaryAssign implements `QBinaryAssign(op, target=QAccess(head,
// args), value) → __access_assign(head, binary(op, access, value),
// *args)` (spec §4.2).
func rewriteBinaryAssign(n *quote.BinaryAssign) (quote.Quote, error) {
	if err := rewriteInto(&n.Value); err != nil {
		return nil, err
	}
	access, ok := n.Target.(*quote.Access)
	if !ok {
		if err := rewriteInto(&n.Target); err != nil {
			return nil, err
		}
		combined := &quote.Binary{Pos: n.Pos, Operator: n.Operator, Left: n.Target, Right: n.Value}
		return &quote.Assign{Pos: n.Pos, Target: n.Target, Value: combined}, nil
	}
	if err := rewriteInto(&access.Head); err != nil {
		return nil, err
	}
	if err := rewriteSlice(access.Args); err != nil {
		return nil, err
	}
	combined := &quote.Binary{Pos: n.Pos, Operator: n.Operator, Left: access, Right: n.Value}
	args := append([]quote.Quote{access.Head, quote.Quote(combined)}, access.Args...)
	return &quote.Call{Pos: n.Pos, Callee: &quote.Symbol{Pos: n.Pos, Name: "__access_assign"}, Args: args}, nil
}

// rewritePatternEnvelope implements `QPatternEnvelope(pattern) → a lambda
// with one synthetic parameter that, when called, returns the argument if
// the pattern matched, else a false value` (spec §4.2). pattern.Compile
// builds the whole lambda (synthetic parameter, match body and bindings);
// transform only delegates to it.
func rewritePatternEnvelope(n *quote.PatternEnvelope) (quote.Quote, error) {
	return pattern.Compile(n, n.Pos)
}
