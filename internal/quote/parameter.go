package quote

import "github.com/ember-lang/ember/internal/errors"

// Parameter is one formal parameter of a fun/box/lambda (spec §3.1).
type Parameter struct {
	Index       int
	Name        string // "" when Underscore
	Given       Quote  // the `given` type expression for this parameter, if any
	Slurpy      bool   // trailing *rest parameter
	Underscore  bool   // anonymous, written as "*"
	Contextual  bool   // receives the superlocal implicitly
	Pattern     Quote  // a pattern envelope bound to this parameter, if any
}

// Parameters validates and owns an ordered parameter list: at most one
// slurpy, at most one contextual, and a slurpy (if present) must be last.
type Parameters struct {
	List []Parameter
}

func NewParameters(list []Parameter) (*Parameters, error) {
	slurpyCount, contextualCount := 0, 0
	for i, p := range list {
		if p.Slurpy {
			slurpyCount++
			if i != len(list)-1 {
				return nil, errors.NewCompile("slurpy parameter must be last", "", 0)
			}
		}
		if p.Contextual {
			contextualCount++
		}
	}
	if slurpyCount > 1 {
		return nil, errors.NewCompile("at most one slurpy parameter is allowed", "", 0)
	}
	if contextualCount > 1 {
		return nil, errors.NewCompile("at most one contextual parameter is allowed", "", 0)
	}
	return &Parameters{List: list}, nil
}

func (p *Parameters) Arity() int { return len(p.List) }

func (p *Parameters) HasSlurpy() bool {
	return len(p.List) > 0 && p.List[len(p.List)-1].Slurpy
}
