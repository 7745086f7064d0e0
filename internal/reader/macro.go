package reader

import "github.com/ember-lang/ember/internal/quote"

// substitute clones a macro body, replacing every ReadSymbol ($name) with
// its bound argument quote (spec §4.1 "clones the body, runs the
// read-expansion visitor substituting $name with the bound quotes").
// A $name with no binding is left as-is; the transformer will then reject
// any ReadSymbol that survives expansion (spec §4.2).
func substitute(q quote.Quote, bindings map[string]quote.Quote) quote.Quote {
	if q == nil {
		return nil
	}
	switch n := q.(type) {
	case *quote.ReadSymbol:
		if bound, ok := bindings[n.Name]; ok {
			return bound
		}
		return n

	case *quote.Symbol:
		cp := *n
		return &cp
	case *quote.NumberLit:
		cp := *n
		return &cp
	case *quote.StringLit:
		cp := *n
		cp.Parts = make([]quote.StringPart, len(n.Parts))
		for i, p := range n.Parts {
			cp.Parts[i] = quote.StringPart{Literal: p.Literal, Expr: substitute(p.Expr, bindings)}
		}
		return &cp
	case *quote.RegexLit:
		cp := *n
		return &cp
	case *quote.True:
		cp := *n
		return &cp
	case *quote.False:
		cp := *n
		return &cp
	case *quote.Hole:
		cp := *n
		return &cp
	case *quote.SuperlocalTake:
		cp := *n
		return &cp
	case *quote.SuperlocalTap:
		cp := *n
		return &cp

	case *quote.Vector:
		cp := *n
		cp.Elements = substituteAll(n.Elements, bindings)
		return &cp
	case *quote.FilterOver:
		cp := *n
		cp.Vec = substitute(n.Vec, bindings)
		cp.Pred = substitute(n.Pred, bindings)
		return &cp
	case *quote.MapLit:
		cp := *n
		cp.Keys = substituteAll(n.Keys, bindings)
		cp.Values = substituteAll(n.Values, bindings)
		return &cp

	case *quote.Unary:
		cp := *n
		cp.Operand = substitute(n.Operand, bindings)
		return &cp
	case *quote.Binary:
		cp := *n
		cp.Left = substitute(n.Left, bindings)
		cp.Right = substitute(n.Right, bindings)
		return &cp
	case *quote.Call:
		cp := *n
		cp.Callee = substitute(n.Callee, bindings)
		cp.Args = substituteAll(n.Args, bindings)
		return &cp
	case *quote.Access:
		cp := *n
		cp.Head = substitute(n.Head, bindings)
		cp.Args = substituteAll(n.Args, bindings)
		return &cp
	case *quote.AccessField:
		cp := *n
		cp.Head = substitute(n.Head, bindings)
		switch cp.Accessor.Kind {
		case quote.FieldDynamic:
			cp.Accessor.Expr = substitute(n.Accessor.Expr, bindings)
		case quote.FieldBranches:
			cp.Accessor.Branches = substituteAll(n.Accessor.Branches, bindings)
		}
		return &cp
	case *quote.Assign:
		cp := *n
		cp.Target = substitute(n.Target, bindings)
		cp.Value = substitute(n.Value, bindings)
		return &cp
	case *quote.BinaryAssign:
		cp := *n
		cp.Target = substitute(n.Target, bindings)
		cp.Value = substitute(n.Value, bindings)
		return &cp
	case *quote.IntoBool:
		cp := *n
		cp.Operand = substitute(n.Operand, bindings)
		return &cp
	case *quote.ReturnIncDec:
		cp := *n
		cp.Target = substitute(n.Target, bindings)
		return &cp
	case *quote.Dies:
		cp := *n
		cp.Operand = substitute(n.Operand, bindings)
		return &cp

	case *quote.If:
		cp := *n
		cp.Cond = substitute(n.Cond, bindings)
		cp.Then = substitute(n.Then, bindings)
		cp.Else = substitute(n.Else, bindings)
		return &cp
	case *quote.Block:
		cp := *n
		cp.Statements = substituteAll(n.Statements, bindings)
		return &cp
	case *quote.Group:
		cp := *n
		cp.Inner = substitute(n.Inner, bindings)
		return &cp
	case *quote.Loop:
		cp := *n
		cp.Start = substitute(n.Start, bindings)
		cp.Base = substitute(n.Base, bindings)
		cp.Step = substitute(n.Step, bindings)
		cp.Body = substitute(n.Body, bindings)
		return &cp
	case *quote.Next:
		cp := *n
		cp.Args = substituteAll(n.Args, bindings)
		return &cp
	case *quote.ReturnStatement:
		cp := *n
		cp.Value = substitute(n.Value, bindings)
		return &cp
	case *quote.Queue:
		cp := *n
		cp.Values = substituteAll(n.Values, bindings)
		return &cp

	case *quote.Fun:
		cp := *n
		cp.Params = substituteParams(n.Params, bindings)
		cp.Givens = substituteAll(n.Givens, bindings)
		cp.Body = substitute(n.Body, bindings)
		return &cp
	case *quote.Box:
		cp := *n
		cp.Params = substituteParams(n.Params, bindings)
		cp.Fields = make([]quote.BoxField, len(n.Fields))
		for i, f := range n.Fields {
			cp.Fields[i] = quote.BoxField{Name: f.Name, Value: substitute(f.Value, bindings)}
		}
		return &cp
	case *quote.Lambda:
		cp := *n
		cp.Params = substituteParams(n.Params, bindings)
		cp.Body = substitute(n.Body, bindings)
		return &cp
	case *quote.ImmediateBox:
		inner := substitute(n.Inner, bindings).(*quote.Box)
		cp := *n
		cp.Inner = inner
		return &cp

	case *quote.NudMacro:
		cp := *n
		cp.Params = substituteParams(n.Params, bindings)
		cp.Body = substitute(n.Body, bindings)
		return &cp
	case *quote.ReadtimeEnvelope:
		cp := *n
		cp.Inner = substitute(n.Inner, bindings)
		return &cp
	case *quote.QuoteEnvelope:
		cp := *n
		cp.Inner = substitute(n.Inner, bindings)
		return &cp
	case *quote.PatternEnvelope:
		cp := *n
		cp.Pattern = substitute(n.Pattern, bindings)
		return &cp

	case *quote.Spread:
		cp := *n
		cp.Operator = substitute(n.Operator, bindings)
		cp.Operand = substitute(n.Operand, bindings)
		return &cp

	case *quote.Distinct:
		cp := *n
		return &cp
	case *quote.Expose:
		cp := *n
		return &cp

	case *quote.Ensure:
		cp := *n
		cp.Expr = substitute(n.Expr, bindings)
		return &cp
	case *quote.EnsureTest:
		cp := *n
		cp.Cases = make([]*quote.EnsureShould, len(n.Cases))
		for i, c := range n.Cases {
			cp.Cases[i] = substitute(c, bindings).(*quote.EnsureShould)
		}
		return &cp
	case *quote.EnsureShould:
		cp := *n
		cp.Body = substitute(n.Body, bindings)
		return &cp

	default:
		return q
	}
}

func substituteAll(qs []quote.Quote, bindings map[string]quote.Quote) []quote.Quote {
	if qs == nil {
		return nil
	}
	out := make([]quote.Quote, len(qs))
	for i, q := range qs {
		out[i] = substitute(q, bindings)
	}
	return out
}

func substituteParams(ps []quote.Parameter, bindings map[string]quote.Quote) []quote.Parameter {
	if ps == nil {
		return nil
	}
	out := make([]quote.Parameter, len(ps))
	for i, p := range ps {
		out[i] = p
		out[i].Given = substitute(p.Given, bindings)
		out[i].Pattern = substitute(p.Pattern, bindings)
	}
	return out
}
