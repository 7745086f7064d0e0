// Package pattern implements the pattern compiler of spec §4.3: patterns
// compose into a single verification lambda whose body conjoins a match
// expression with a map literal of the bindings the pattern recorded.
package pattern

import (
	"github.com/google/uuid"

	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/quote"
)

// gensym mints a synthetic symbol name that cannot collide with a user
// identifier (spec's own gensym-hygiene note, shared with the read-time
// macro expander).
func gensym(prefix string) string {
	return "$" + prefix + uuid.NewString()[:8]
}

// bindings accumulates the subject-expression each pattern variable was
// matched against, preserving first-bound order so the generated map
// literal is deterministic.
type bindings struct {
	names []string
	exprs map[string]quote.Quote
}

func newBindings() *bindings { return &bindings{exprs: map[string]quote.Quote{}} }

func (b *bindings) lookup(name string) (quote.Quote, bool) {
	e, ok := b.exprs[name]
	return e, ok
}

func (b *bindings) bind(name string, subject quote.Quote) {
	if _, exists := b.exprs[name]; !exists {
		b.names = append(b.names, name)
	}
	b.exprs[name] = subject
}

// Compile lowers a pattern tree into a lambda: one synthetic parameter,
// whose body is `(match_body) AND assigns_map` and which short-circuits
// to false on the first failed conjunct (spec §4.3).
func Compile(pat quote.Quote, pos quote.Pos) (*quote.Lambda, error) {
	// An outer PatternEnvelope is the transform's own wrapper, not a
	// nested escape: unwrap it before recurring so a top-level escaped
	// pattern `'P` means "match P literally", not "invalid double-escape".
	if env, ok := pat.(*quote.PatternEnvelope); ok {
		if env.Escaped {
			pat = &quote.PatternEnvelope{Pos: env.Pos, Pattern: env.Pattern, Escaped: true}
		} else {
			pat = env.Pattern
		}
	}
	paramName := gensym("match")
	subject := quote.Quote(&quote.Symbol{Pos: pos, Name: paramName})
	b := newBindings()
	match, err := recur(subject, pat, b)
	if err != nil {
		return nil, err
	}

	assignsMap := &quote.MapLit{Pos: pos}
	for _, name := range b.names {
		assignsMap.Keys = append(assignsMap.Keys, &quote.StringLit{Pos: pos, Parts: []quote.StringPart{{Literal: name}}})
		assignsMap.Values = append(assignsMap.Values, b.exprs[name])
	}

	body := quote.Quote(&quote.Binary{Pos: pos, Operator: "and", Left: match, Right: assignsMap})
	return &quote.Lambda{
		Pos:    pos,
		Params: []quote.Parameter{{Index: 0, Name: paramName}},
		Body:   body,
	}, nil
}

// recur implements the per-pattern-shape composition rules of spec §4.3,
// given the subject quote S and the pattern P.
func recur(s, p quote.Quote, b *bindings) (quote.Quote, error) {
	pos := p.Pos()
	switch n := p.(type) {
	case *quote.NumberLit, *quote.StringLit, *quote.RegexLit, *quote.True, *quote.False:
		return &quote.Binary{Pos: pos, Operator: "is", Left: s, Right: p}, nil

	case *quote.Symbol:
		if existing, ok := b.lookup(n.Name); ok {
			return &quote.Binary{Pos: pos, Operator: "is", Left: s, Right: existing}, nil
		}
		b.bind(n.Name, s)
		return &quote.True{Pos: pos}, nil

	case *quote.PatternEnvelope:
		if n.Escaped {
			return &quote.Binary{Pos: pos, Operator: "is", Left: s, Right: n.Pattern}, nil
		}
		return nil, errors.NewCompile("double-escaped pattern", pos.File, pos.Line)

	case *quote.Vector:
		result := quote.Quote(&quote.Binary{
			Pos: pos, Operator: "and",
			Left:  &quote.Binary{Pos: pos, Operator: "is", Left: s, Right: &quote.Symbol{Pos: pos, Name: "vec"}},
			Right: &quote.Binary{Pos: pos, Operator: "==", Left: &quote.Unary{Pos: pos, Operator: "#", Operand: s}, Right: &quote.NumberLit{Pos: pos, Lexeme: itoa(len(n.Elements))}},
		})
		for i, elem := range n.Elements {
			idx := &quote.Access{Pos: pos, Head: s, Args: []quote.Quote{&quote.NumberLit{Pos: pos, Lexeme: itoa(i)}}}
			sub, err := recur(idx, elem, b)
			if err != nil {
				return nil, err
			}
			result = &quote.Binary{Pos: pos, Operator: "and", Left: result, Right: sub}
		}
		return result, nil

	case *quote.MapLit:
		result := quote.Quote(&quote.Binary{Pos: pos, Operator: "is", Left: s, Right: &quote.Symbol{Pos: pos, Name: "map"}})
		for i, key := range n.Keys {
			val := n.Values[i]
			if lit, ok := key.(*quote.StringLit); ok {
				inClause := &quote.Binary{Pos: pos, Operator: "in", Left: lit, Right: s}
				access := &quote.Access{Pos: pos, Head: s, Args: []quote.Quote{lit}}
				sub, err := recur(access, val, b)
				if err != nil {
					return nil, err
				}
				result = &quote.Binary{Pos: pos, Operator: "and", Left: result, Right: &quote.Binary{Pos: pos, Operator: "and", Left: inClause, Right: sub}}
				continue
			}
			tmpName := gensym("key")
			keysCall := &quote.Call{Pos: pos, Callee: &quote.AccessField{Pos: pos, Head: s, Accessor: quote.FieldAccessor{Kind: quote.FieldImmediate, Symbol: "keys"}}}
			tmpAssign := &quote.Assign{Pos: pos, Target: &quote.Symbol{Pos: pos, Name: tmpName}, Value: &quote.Binary{Pos: pos, Operator: "in", Left: key, Right: keysCall}}
			access := &quote.Access{Pos: pos, Head: s, Args: []quote.Quote{&quote.Symbol{Pos: pos, Name: tmpName}}}
			sub, err := recur(access, val, b)
			if err != nil {
				return nil, err
			}
			result = &quote.Binary{Pos: pos, Operator: "and", Left: result, Right: &quote.Binary{Pos: pos, Operator: "and", Left: tmpAssign, Right: sub}}
		}
		return result, nil

	case *quote.Assign:
		sym, ok := n.Target.(*quote.Symbol)
		if !ok {
			return nil, errors.NewCompile("pattern assign target must be a symbol", pos.File, pos.Line)
		}
		sub, err := recur(s, n.Value, b)
		if err != nil {
			return nil, err
		}
		b.bind(sym.Name, s)
		return sub, nil

	case *quote.Binary:
		if (n.Operator == "and" || n.Operator == "or") {
			if _, rightIsJunction := n.Right.(*quote.Binary); rightIsJunction {
				left, err := recur(s, n.Left, b)
				if err != nil {
					return nil, err
				}
				right, err := recur(s, n.Right, b)
				if err != nil {
					return nil, err
				}
				if sym, ok := n.Left.(*quote.Symbol); ok {
					left = substituteSubject(left, sym.Name, s)
				}
				return &quote.Binary{Pos: pos, Operator: n.Operator, Left: left, Right: right}, nil
			}
		}
		left, err := recur(s, n.Left, b)
		if err != nil {
			return nil, err
		}
		return &quote.Binary{Pos: pos, Operator: n.Operator, Left: left, Right: n.Right}, nil

	case *quote.SuperlocalTake:
		return &quote.True{Pos: pos}, nil

	default:
		return nil, errors.NewCompile("unsupported pattern shape", pos.File, pos.Line)
	}
}

// substituteSubject returns subject when q itself is a bare reference to
// name, else q unchanged; references nested inside q are not rewritten.
// Used for the junction rule's bare-symbol left operand.
func substituteSubject(q quote.Quote, name string, subject quote.Quote) quote.Quote {
	if sym, ok := q.(*quote.Symbol); ok && sym.Name == name {
		return subject
	}
	return q
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}
