package value

// Eqv implements `eqv?`, structural equality disjoint from `is?` (spec
// §3.2 invariant).
func Eqv(a, b Value) bool {
	switch av := a.(type) {
	case Num:
		bv, ok := b.(Num)
		return ok && av.D.Equal(bv.D)
	case Str:
		bv, ok := b.(Str)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case *Vec:
		bv, ok := b.(*Vec)
		if !ok || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !Eqv(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	case *Map:
		bv, ok := b.(*Map)
		if !ok || len(av.keys) != len(bv.keys) {
			return false
		}
		for _, k := range av.keys {
			bval, ok := bv.Get(k)
			if !ok || !Eqv(av.data[k], bval) {
				return false
			}
		}
		return true
	case Regex:
		bv, ok := b.(Regex)
		return ok && av.Source == bv.Source
	default:
		return a == b
	}
}

// Is implements `is?`, semantic equality that is intentionally asymmetric
// for some pairs: a Regex on the left matches against a Str's contents,
// but a Str on the left never matches a Regex (spec §3.2 invariant).
func Is(a, b Value) bool {
	if re, ok := a.(Regex); ok {
		if s, ok := b.(Str); ok {
			return re.MatchesStr(string(s))
		}
	}
	if t, ok := b.(Type); ok {
		return t.Matches(a)
	}
	if ct, ok := b.(CompoundType); ok {
		return ct.Matches(a)
	}
	if box, ok := b.(*Box); ok {
		return box.AsType().Matches(a)
	}
	if _, ok := b.(anyType); ok {
		return true
	}
	return Eqv(a, b)
}
