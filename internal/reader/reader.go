package reader

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/ember-lang/ember/internal/errors"
	"github.com/ember-lang/ember/internal/quote"
)

// Level is the Pratt precedence ladder of spec §4.1, loosest first.
type Level int

const (
	LevelZero Level = iota
	LevelAssignment
	LevelConvert
	LevelJunction
	LevelIdentity
	LevelRange
	LevelAddition
	LevelProduct
	LevelPostfix
	LevelPrefix
	LevelCall
	LevelField
)

type nudFn func(r *Reader, w quote.Word) (quote.Quote, error)
type ledFn func(r *Reader, left quote.Quote, w quote.Word) (quote.Quote, error)
type stmtFn func(r *Reader, w quote.Word) (quote.Quote, error)

type ledParselet struct {
	level Level
	fn    ledFn
}

// macro is a registered `nud <trigger>(params) = body` definition (spec §4.1).
type macro struct {
	params []quote.Parameter
	body   quote.Quote
}

// Reader is the Pratt reader: it owns a Lexer, a one-word lookahead buffer,
// and the nud/led/stmt parselet tables plus registered macros.
type Reader struct {
	file    string
	lex     *Lexer
	cur     quote.Word
	nuds    map[quote.WordType]nudFn
	leds    map[quote.WordType]ledParselet
	stmts   map[quote.WordType]stmtFn
	noSemi  map[quote.WordType]bool // stmt parselets that opt out of trailing ';'
	macros  map[quote.WordType]*macro
	readtime bool // inside a nud macro body: $SYMBOL and <...> are legal
}

func New(file, source string) (*Reader, error) {
	r := &Reader{
		file:   file,
		lex:    NewLexer(file, source),
		nuds:   map[quote.WordType]nudFn{},
		leds:   map[quote.WordType]ledParselet{},
		stmts:  map[quote.WordType]stmtFn{},
		noSemi: map[quote.WordType]bool{},
		macros: map[quote.WordType]*macro{},
	}
	r.installBuiltins()
	if err := r.bump(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) bump() error {
	w, err := r.lex.Next()
	if err != nil {
		return err
	}
	r.cur = w
	return nil
}

func (r *Reader) pos() quote.Pos { return quote.Pos{File: r.file, Line: r.cur.Line} }

func (r *Reader) is(t quote.WordType) bool { return r.cur.Type == t }

func (r *Reader) expect(t quote.WordType, what string) (quote.Word, error) {
	if !r.is(t) {
		return quote.Word{}, errors.NewRead(fmt.Sprintf("expected %s", what), r.file, r.cur.Line, r.cur.Lexeme)
	}
	w := r.cur
	if err := r.bump(); err != nil {
		return quote.Word{}, err
	}
	return w, nil
}

func (r *Reader) accept(t quote.WordType) (bool, error) {
	if !r.is(t) {
		return false, nil
	}
	return true, r.bump()
}

// DistinctExpose consumes the reader's mandatory prelude: an optional
// `distinct a.b.c;` and zero or more `expose a.b.c;` (spec §4.1).
func (r *Reader) DistinctExpose() (*quote.Distinct, []*quote.Expose, error) {
	var distinct *quote.Distinct
	if ok, err := r.accept("DISTINCT"); err != nil {
		return nil, nil, err
	} else if ok {
		path, err := r.dottedPath()
		if err != nil {
			return nil, nil, err
		}
		if err := r.semicolon(); err != nil {
			return nil, nil, err
		}
		distinct = &quote.Distinct{Pos: r.pos(), Path: path}
	}
	var exposes []*quote.Expose
	for {
		ok, err := r.accept("EXPOSE")
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		path, err := r.dottedPath()
		if err != nil {
			return nil, nil, err
		}
		if err := r.semicolon(); err != nil {
			return nil, nil, err
		}
		exposes = append(exposes, &quote.Expose{Pos: r.pos(), Path: path})
	}
	return distinct, exposes, nil
}

func (r *Reader) dottedPath() (string, error) {
	w, err := r.expect(quote.WordSymbol, "module path")
	if err != nil {
		return "", err
	}
	path := w.Lexeme
	for {
		ok, err := r.accept(".")
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		w, err := r.expect(quote.WordSymbol, "module path segment")
		if err != nil {
			return "", err
		}
		path += "." + w.Lexeme
	}
	return path, nil
}

// ReadAll parses statements until EOF. It does not check that
// DistinctExpose ran first; a `distinct` or `expose` word it meets has no
// nud parselet and fails as a ReadError.
func (r *Reader) ReadAll() ([]quote.Quote, error) {
	var out []quote.Quote
	for !r.is(quote.WordEOF) {
		stmt, err := r.statement()
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

func (r *Reader) semicolon() error {
	if r.is(";") {
		return r.bump()
	}
	if r.is(quote.WordEOF) || r.is("}") {
		return nil
	}
	return errors.NewRead("expected ';'", r.file, r.cur.Line, r.cur.Lexeme)
}

// statement dispatches to a stmt parselet if the current word has one,
// else reads a led expression at the loosest level (spec §4.1). A
// semicolon is required afterwards unless the parselet opted out for this
// particular statement (recorded in r.noSemi by the parselet itself, since
// e.g. ensure's two forms differ) or the next word is EOF, '}', or ';'.
func (r *Reader) statement() (quote.Quote, error) {
	if fn, ok := r.stmts[r.cur.Type]; ok {
		w := r.cur
		delete(r.noSemi, w.Type)
		if err := r.bump(); err != nil {
			return nil, err
		}
		q, err := fn(r, w)
		if err != nil {
			return nil, err
		}
		if !r.noSemi[w.Type] {
			if err := r.semicolon(); err != nil {
				return nil, err
			}
		}
		return q, nil
	}
	q, err := r.expression(LevelZero)
	if err != nil {
		return nil, err
	}
	if err := r.semicolon(); err != nil {
		return nil, err
	}
	return q, nil
}

// expression implements led(level): read a nud, then iteratively apply led
// parselets whose precedence exceeds level (spec §4.1).
func (r *Reader) expression(level Level) (quote.Quote, error) {
	w := r.cur
	nud, ok := r.nuds[w.Type]
	if !ok {
		return nil, errors.NewRead(fmt.Sprintf("unexpected token %q in expression position", w.Lexeme), r.file, w.Line, w.Lexeme)
	}
	if err := r.bump(); err != nil {
		return nil, err
	}
	left, err := nud(r, w)
	if err != nil {
		return nil, err
	}
	for {
		// spec §4.1: the lexeme `x` in operator position is rewritten to
		// the multiplicative operator X; elsewhere it stays a symbol.
		ledType := r.cur.Type
		if ledType == quote.WordSymbol && r.cur.Lexeme == "x" {
			ledType = "X"
		}
		led, ok := r.leds[ledType]
		if !ok || led.level <= level {
			break
		}
		op := r.cur
		op.Type = ledType
		if err := r.bump(); err != nil {
			return nil, err
		}
		left, err = led.fn(r, left, op)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (r *Reader) block() (quote.Quote, error) {
	pos := r.pos()
	if _, err := r.expect("{", "'{'"); err != nil {
		return nil, err
	}
	var stmts []quote.Quote
	for !r.is("}") && !r.is(quote.WordEOF) {
		s, err := r.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if _, err := r.expect("}", "'}'"); err != nil {
		return nil, err
	}
	return &quote.Block{Pos: pos, Statements: stmts}, nil
}

// --- nud/led/stmt table construction ---

func (r *Reader) installBuiltins() {
	r.installLiteralNuds()
	r.installPrefixNuds()
	r.installGroupingAndCollectionNuds()
	r.installDeclarationNuds()
	r.installBinaryLeds()
	r.installPostfixLeds()
	r.installAccessLeds()
	r.installAssignLeds()
	r.installStatements()
}

func (r *Reader) installLiteralNuds() {
	r.nuds[quote.WordNumber] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		return &quote.NumberLit{Pos: quote.Pos{File: r.file, Line: w.Line}, Lexeme: w.Lexeme}, nil
	}
	r.nuds[quote.WordString] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		return parseStringParts(r.file, w)
	}
	r.nuds[quote.WordRegex] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		if _, err := regexp.Compile(w.Lexeme); err != nil {
			return nil, errors.NewRead("invalid regex literal: "+err.Error(), r.file, w.Line, w.Lexeme)
		}
		return &quote.RegexLit{Pos: quote.Pos{File: r.file, Line: w.Line}, Source: w.Lexeme}, nil
	}
	r.nuds["TRUE"] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		return &quote.True{Pos: quote.Pos{File: r.file, Line: w.Line}}, nil
	}
	r.nuds["FALSE"] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		return &quote.False{Pos: quote.Pos{File: r.file, Line: w.Line}}, nil
	}
	r.nuds["HOLE"] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		return &quote.Hole{Pos: quote.Pos{File: r.file, Line: w.Line}}, nil
	}
	r.nuds[quote.WordSymbol] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		return &quote.Symbol{Pos: quote.Pos{File: r.file, Line: w.Line}, Name: w.Lexeme}, nil
	}
	r.nuds[quote.WordReadSymbol] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		if !r.readtime {
			return nil, errors.NewRead("$ symbol is only legal inside a nud macro body", r.file, w.Line, w.Lexeme)
		}
		return &quote.ReadSymbol{Pos: quote.Pos{File: r.file, Line: w.Line}, Name: w.Lexeme}, nil
	}
	r.nuds["_"] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		return &quote.SuperlocalTake{Pos: quote.Pos{File: r.file, Line: w.Line}}, nil
	}
}

func (r *Reader) installPrefixNuds() {
	unary := func(op string) nudFn {
		return func(r *Reader, w quote.Word) (quote.Quote, error) {
			operand, err := r.expression(LevelPrefix)
			if err != nil {
				return nil, err
			}
			return &quote.Unary{Pos: quote.Pos{File: r.file, Line: w.Line}, Operator: op, Operand: operand}, nil
		}
	}
	r.nuds["+"] = unary("+")
	r.nuds["-"] = unary("-")
	r.nuds["~"] = unary("~")
	r.nuds["#"] = unary("#")
	r.nuds["NOT"] = unary("not")
	r.nuds["&"] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		if r.is("_") {
			if err := r.bump(); err != nil {
				return nil, err
			}
			return &quote.SuperlocalTap{Pos: quote.Pos{File: r.file, Line: w.Line}}, nil
		}
		operand, err := r.expression(LevelPrefix)
		if err != nil {
			return nil, err
		}
		return &quote.Unary{Pos: quote.Pos{File: r.file, Line: w.Line}, Operator: "&", Operand: operand}, nil
	}
	r.nuds["'"] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		inner, err := r.expression(LevelPrefix)
		if err != nil {
			return nil, err
		}
		if env, ok := inner.(*quote.PatternEnvelope); ok {
			if env.Escaped {
				return nil, errors.NewRead("double-escaped pattern", r.file, w.Line, "'")
			}
			env.Escaped = true
			return env, nil
		}
		return &quote.PatternEnvelope{Pos: quote.Pos{File: r.file, Line: w.Line}, Pattern: inner, Escaped: true}, nil
	}
}

func (r *Reader) installGroupingAndCollectionNuds() {
	r.nuds["("] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		inner, err := r.expression(LevelZero)
		if err != nil {
			return nil, err
		}
		if _, err := r.expect(")", "')'"); err != nil {
			return nil, err
		}
		return &quote.Group{Pos: quote.Pos{File: r.file, Line: w.Line}, Inner: inner}, nil
	}
	r.nuds["["] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		var elems []quote.Quote
		for !r.is("]") {
			e, err := r.expression(LevelAssignment)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if ok, err := r.accept(","); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
		if _, err := r.expect("]", "']'"); err != nil {
			return nil, err
		}
		vec := quote.Quote(&quote.Vector{Pos: quote.Pos{File: r.file, Line: w.Line}, Elements: elems})
		if r.is("IF") {
			if err := r.bump(); err != nil {
				return nil, err
			}
			pred, err := r.expression(LevelJunction)
			if err != nil {
				return nil, err
			}
			return &quote.FilterOver{Pos: quote.Pos{File: r.file, Line: w.Line}, Vec: vec, Pred: pred}, nil
		}
		return vec, nil
	}
	r.nuds["%"] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		if _, err := r.expect("{", "'{' after '%' map literal"); err != nil {
			return nil, err
		}
		var keys, vals []quote.Quote
		for !r.is("}") {
			k, err := r.expression(LevelAssignment)
			if err != nil {
				return nil, err
			}
			if _, err := r.expect(":", "':' in map literal"); err != nil {
				return nil, err
			}
			v, err := r.expression(LevelAssignment)
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
			vals = append(vals, v)
			if ok, err := r.accept(","); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
		if _, err := r.expect("}", "'}' closing map literal"); err != nil {
			return nil, err
		}
		return &quote.MapLit{Pos: quote.Pos{File: r.file, Line: w.Line}, Keys: keys, Values: vals}, nil
	}
	r.nuds["{"] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		var stmts []quote.Quote
		for !r.is("}") && !r.is(quote.WordEOF) {
			s, err := r.statement()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s)
		}
		if _, err := r.expect("}", "'}'"); err != nil {
			return nil, err
		}
		return &quote.Block{Pos: quote.Pos{File: r.file, Line: w.Line}, Statements: stmts}, nil
	}
	r.nuds["IF"] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		cond, err := r.expression(LevelJunction)
		if err != nil {
			return nil, err
		}
		_, _ = r.accept("THEN")
		then, err := r.expression(LevelAssignment)
		if err != nil {
			return nil, err
		}
		var elseq quote.Quote
		if ok, err := r.accept("ELSE"); err != nil {
			return nil, err
		} else if ok {
			elseq, err = r.expression(LevelAssignment)
			if err != nil {
				return nil, err
			}
		}
		return &quote.If{Pos: quote.Pos{File: r.file, Line: w.Line}, Cond: cond, Then: then, Else: elseq}, nil
	}
	r.nuds["QUOTE"] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		inner, err := r.block()
		if err != nil {
			return nil, err
		}
		return &quote.QuoteEnvelope{Pos: quote.Pos{File: r.file, Line: w.Line}, Inner: inner}, nil
	}
	r.nuds["DIES"] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		operand, err := r.expression(LevelPrefix)
		if err != nil {
			return nil, err
		}
		return &quote.Dies{Pos: quote.Pos{File: r.file, Line: w.Line}, Operand: operand}, nil
	}
	r.nuds["LOOP"] = r.readLoop
	r.nuds["NEXT"] = r.readNext
	r.nuds["RETURN"] = r.readReturn
	r.nuds["QUEUE"] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		var vals []quote.Quote
		for {
			v, err := r.expression(LevelAssignment)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
			if ok, err := r.accept(","); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
		return &quote.Queue{Pos: quote.Pos{File: r.file, Line: w.Line}, Values: vals}, nil
	}
}

func (r *Reader) readLoop(rd *Reader, w quote.Word) (quote.Quote, error) {
	pos := quote.Pos{File: r.file, Line: w.Line}
	if !r.is("(") {
		body, err := r.expression(LevelAssignment)
		if err != nil {
			return nil, err
		}
		return &quote.Loop{Pos: pos, Kind: quote.LoopInfinite, Body: body}, nil
	}
	if err := r.bump(); err != nil {
		return nil, err
	}
	var clauses []quote.Quote
	for !r.is(")") {
		c, err := r.expression(LevelAssignment)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
		if ok, err := r.accept(";"); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := r.expect(")", "')'"); err != nil {
		return nil, err
	}
	body, err := r.expression(LevelAssignment)
	if err != nil {
		return nil, err
	}
	l := &quote.Loop{Pos: pos, Body: body}
	switch len(clauses) {
	case 1:
		l.Kind = quote.LoopBase
		l.Base = clauses[0]
	case 2:
		l.Kind = quote.LoopStep
		l.Base = clauses[0]
		l.Step = clauses[1]
	case 3:
		l.Kind = quote.LoopComplex
		l.Start = clauses[0]
		l.Base = clauses[1]
		l.Step = clauses[2]
	default:
		return nil, errors.NewRead("loop header takes 1 to 3 clauses", r.file, w.Line, "loop")
	}
	return l, nil
}

func (r *Reader) readNext(rd *Reader, w quote.Word) (quote.Quote, error) {
	pos := quote.Pos{File: r.file, Line: w.Line}
	scope := quote.NextLoop
	if r.is("FUN") {
		scope = quote.NextFun
		if err := r.bump(); err != nil {
			return nil, err
		}
	} else {
		_, _ = r.accept("LOOP")
	}
	var args []quote.Quote
	if !r.is(";") && !r.is("}") && !r.is(quote.WordEOF) {
		for {
			a, err := r.expression(LevelAssignment)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if ok, err := r.accept(","); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
	}
	return &quote.Next{Pos: pos, Scope: scope, Args: args}, nil
}

func (r *Reader) readReturn(rd *Reader, w quote.Word) (quote.Quote, error) {
	pos := quote.Pos{File: r.file, Line: w.Line}
	if r.is("QUEUE") {
		qw := r.cur
		if err := r.bump(); err != nil {
			return nil, err
		}
		q, err := r.nuds["QUEUE"](r, qw)
		if err != nil {
			return nil, err
		}
		return &quote.ReturnStatement{Pos: pos, Value: q}, nil
	}
	if r.is(";") || r.is("}") || r.is(quote.WordEOF) {
		return &quote.ReturnStatement{Pos: pos}, nil
	}
	v, err := r.expression(LevelAssignment)
	if err != nil {
		return nil, err
	}
	return &quote.ReturnStatement{Pos: pos, Value: v}, nil
}

func (r *Reader) installBinaryLeds() {
	bin := func(level Level, op string) ledFn {
		return func(r *Reader, left quote.Quote, w quote.Word) (quote.Quote, error) {
			right, err := r.expression(level)
			if err != nil {
				return nil, err
			}
			return &quote.Binary{Pos: quote.Pos{File: r.file, Line: w.Line}, Operator: op, Left: left, Right: right}, nil
		}
	}
	r.leds["AND"] = ledParselet{LevelJunction, bin(LevelJunction, "and")}
	r.leds["OR"] = ledParselet{LevelJunction, bin(LevelJunction, "or")}
	r.leds["IS"] = ledParselet{LevelIdentity, bin(LevelIdentity, "is")}
	r.leds["IN"] = ledParselet{LevelIdentity, bin(LevelIdentity, "in")}
	r.leds["<"] = ledParselet{LevelIdentity, bin(LevelIdentity, "<")}
	r.leds[">"] = ledParselet{LevelIdentity, bin(LevelIdentity, ">")}
	r.leds["<="] = ledParselet{LevelIdentity, bin(LevelIdentity, "<=")}
	r.leds[">="] = ledParselet{LevelIdentity, bin(LevelIdentity, ">=")}
	r.leds["=="] = ledParselet{LevelIdentity, bin(LevelIdentity, "==")}
	r.leds["!="] = ledParselet{LevelIdentity, bin(LevelIdentity, "!=")}
	r.leds["TO"] = ledParselet{LevelRange, bin(LevelRange, "to")}
	r.leds["+"] = ledParselet{LevelAddition, bin(LevelAddition, "+")}
	r.leds["-"] = ledParselet{LevelAddition, bin(LevelAddition, "-")}
	r.leds["~"] = ledParselet{LevelAddition, bin(LevelAddition, "~")}
	r.leds["*"] = ledParselet{LevelProduct, bin(LevelProduct, "*")}
	r.leds["/"] = ledParselet{LevelProduct, bin(LevelProduct, "/")}
	r.leds["X"] = ledParselet{LevelProduct, bin(LevelProduct, "x")}
	r.leds["DIES"] = ledParselet{LevelConvert, func(r *Reader, left quote.Quote, w quote.Word) (quote.Quote, error) {
		return &quote.Dies{Pos: quote.Pos{File: r.file, Line: w.Line}, Operand: left}, nil
	}}
}

func (r *Reader) installPostfixLeds() {
	r.leds["++"] = ledParselet{LevelPostfix, func(r *Reader, left quote.Quote, w quote.Word) (quote.Quote, error) {
		return &quote.ReturnIncDec{Pos: quote.Pos{File: r.file, Line: w.Line}, Target: left, Increment: true}, nil
	}}
	r.leds["--"] = ledParselet{LevelPostfix, func(r *Reader, left quote.Quote, w quote.Word) (quote.Quote, error) {
		return &quote.ReturnIncDec{Pos: quote.Pos{File: r.file, Line: w.Line}, Target: left, Increment: false}, nil
	}}
	r.leds["?"] = ledParselet{LevelPostfix, func(r *Reader, left quote.Quote, w quote.Word) (quote.Quote, error) {
		return &quote.IntoBool{Pos: quote.Pos{File: r.file, Line: w.Line}, Operand: left}, nil
	}}
	r.leds["|"] = ledParselet{LevelPostfix, r.readSpread}
}

// readSpread is the postfix '|' led: `operand |op|` (reduce) or
// `operand |lambda|:` (map), with an optional trailing `&` marking the
// iterative/threading form. The prefix spelling `|op| operand` is not
// parsed.
func (r *Reader) readSpread(rd *Reader, left quote.Quote, w quote.Word) (quote.Quote, error) {
	op, err := r.expression(LevelPostfix)
	if err != nil {
		return nil, err
	}
	if _, err := r.expect("|", "closing '|' of spread"); err != nil {
		return nil, err
	}
	kind := quote.SpreadReduce
	if ok, err := r.accept(":"); err != nil {
		return nil, err
	} else if ok {
		kind = quote.SpreadMap
	}
	iterative := false
	if ok, err := r.accept("&"); err != nil {
		return nil, err
	} else if ok {
		iterative = true
	}
	return &quote.Spread{Pos: quote.Pos{File: r.file, Line: w.Line}, Kind: kind, Operator: op, Operand: left, Iterative: iterative}, nil
}

func (r *Reader) installAccessLeds() {
	r.leds["["] = ledParselet{LevelField, func(r *Reader, left quote.Quote, w quote.Word) (quote.Quote, error) {
		var args []quote.Quote
		for !r.is("]") {
			a, err := r.expression(LevelAssignment)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if ok, err := r.accept(","); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
		if _, err := r.expect("]", "']'"); err != nil {
			return nil, err
		}
		return &quote.Access{Pos: quote.Pos{File: r.file, Line: w.Line}, Head: left, Args: args}, nil
	}}
	r.leds["("] = ledParselet{LevelCall, func(r *Reader, left quote.Quote, w quote.Word) (quote.Quote, error) {
		var args []quote.Quote
		for !r.is(")") {
			a, err := r.expression(LevelAssignment)
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if ok, err := r.accept(","); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}
		if _, err := r.expect(")", "')'"); err != nil {
			return nil, err
		}
		return &quote.Call{Pos: quote.Pos{File: r.file, Line: w.Line}, Callee: left, Args: args}, nil
	}}
	r.leds["."] = ledParselet{LevelField, func(r *Reader, left quote.Quote, w quote.Word) (quote.Quote, error) {
		pos := quote.Pos{File: r.file, Line: w.Line}
		switch {
		case r.is("("):
			if err := r.bump(); err != nil {
				return nil, err
			}
			expr, err := r.expression(LevelZero)
			if err != nil {
				return nil, err
			}
			if _, err := r.expect(")", "')' closing dynamic field access"); err != nil {
				return nil, err
			}
			return &quote.AccessField{Pos: pos, Head: left, Accessor: quote.FieldAccessor{Kind: quote.FieldDynamic, Expr: expr}}, nil
		case r.is("["):
			if err := r.bump(); err != nil {
				return nil, err
			}
			var branches []quote.Quote
			for !r.is("]") {
				b, err := r.expression(LevelAssignment)
				if err != nil {
					return nil, err
				}
				branches = append(branches, b)
				if ok, err := r.accept(","); err != nil {
					return nil, err
				} else if !ok {
					break
				}
			}
			if _, err := r.expect("]", "']' closing branches field access"); err != nil {
				return nil, err
			}
			return &quote.AccessField{Pos: pos, Head: left, Accessor: quote.FieldAccessor{Kind: quote.FieldBranches, Branches: branches}}, nil
		default:
			sym, err := r.expect(quote.WordSymbol, "field name after '.'")
			if err != nil {
				return nil, err
			}
			return &quote.AccessField{Pos: pos, Head: left, Accessor: quote.FieldAccessor{Kind: quote.FieldImmediate, Symbol: sym.Lexeme}}, nil
		}
	}}
}

func (r *Reader) installAssignLeds() {
	assign := func(global bool) ledFn {
		return func(r *Reader, left quote.Quote, w quote.Word) (quote.Quote, error) {
			val, err := r.expression(LevelAssignment)
			if err != nil {
				return nil, err
			}
			return &quote.Assign{Pos: quote.Pos{File: r.file, Line: w.Line}, Target: left, Value: val, Global: global}, nil
		}
	}
	r.leds["="] = ledParselet{LevelAssignment, assign(false)}
	r.leds[":="] = ledParselet{LevelAssignment, assign(true)}
	binAssign := func(op string) ledFn {
		return func(r *Reader, left quote.Quote, w quote.Word) (quote.Quote, error) {
			val, err := r.expression(LevelAssignment)
			if err != nil {
				return nil, err
			}
			return &quote.BinaryAssign{Pos: quote.Pos{File: r.file, Line: w.Line}, Operator: op, Target: left, Value: val}, nil
		}
	}
	r.leds["+="] = ledParselet{LevelAssignment, binAssign("+")}
	r.leds["-="] = ledParselet{LevelAssignment, binAssign("-")}
	r.leds["*="] = ledParselet{LevelAssignment, binAssign("*")}
	r.leds["/="] = ledParselet{LevelAssignment, binAssign("/")}
	r.leds["~="] = ledParselet{LevelAssignment, binAssign("~")}
	r.leds["&="] = ledParselet{LevelAssignment, binAssign("&")}
}

func (r *Reader) installDeclarationNuds() {
	r.nuds["FUN"] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		return r.readFun(w, true)
	}
	r.nuds["BOX"] = r.readBox
	r.nuds["IMMEDIATE"] = func(r *Reader, w quote.Word) (quote.Quote, error) {
		if _, err := r.expect("BOX", "'box' after 'immediate'"); err != nil {
			return nil, err
		}
		bw := r.cur
		box, err := r.readBox(r, bw)
		if err != nil {
			return nil, err
		}
		b, ok := box.(*quote.Box)
		if !ok {
			return nil, errors.NewRead("immediate requires a box declaration", r.file, w.Line, "immediate")
		}
		return &quote.ImmediateBox{Pos: quote.Pos{File: r.file, Line: w.Line}, Inner: b}, nil
	}
	r.nuds["NUD"] = r.readNudMacro
}

func (r *Reader) readParameters() ([]quote.Parameter, error) {
	if _, err := r.expect("(", "'(' opening parameter list"); err != nil {
		return nil, err
	}
	var params []quote.Parameter
	idx := 0
	for !r.is(")") {
		p := quote.Parameter{Index: idx}
		if ok, err := r.accept("&"); err != nil {
			return nil, err
		} else if ok {
			p.Contextual = true
		}
		if ok, err := r.accept("*"); err != nil {
			return nil, err
		} else if ok {
			if r.is(quote.WordSymbol) {
				p.Slurpy = true
			} else {
				p.Underscore = true
			}
		}
		if !p.Underscore {
			name, err := r.expect(quote.WordSymbol, "parameter name")
			if err != nil {
				return nil, err
			}
			p.Name = name.Lexeme
		}
		if ok, err := r.accept("'"); err == nil && ok {
			pat, err := r.expression(LevelAssignment)
			if err != nil {
				return nil, err
			}
			p.Pattern = pat
		} else if err != nil {
			return nil, err
		}
		params = append(params, p)
		idx++
		if ok, err := r.accept(","); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := r.expect(")", "')' closing parameter list"); err != nil {
		return nil, err
	}
	return params, nil
}

func (r *Reader) readGivens(n int) ([]quote.Quote, error) {
	givens := make([]quote.Quote, n)
	if ok, err := r.accept("GIVEN"); err != nil {
		return nil, err
	} else if !ok {
		return givens, nil
	}
	for i := 0; i < n; i++ {
		g, err := r.expression(LevelPostfix)
		if err != nil {
			return nil, err
		}
		givens[i] = g
		if i < n-1 {
			if ok, err := r.accept(","); err != nil {
				return nil, err
			} else if !ok {
				for j := i + 1; j < n; j++ {
					givens[j] = g
				}
				break
			}
		}
	}
	return givens, nil
}

func (r *Reader) readFun(w quote.Word, named bool) (quote.Quote, error) {
	pos := quote.Pos{File: r.file, Line: w.Line}
	name := ""
	if named && r.is(quote.WordSymbol) {
		name = r.cur.Lexeme
		if err := r.bump(); err != nil {
			return nil, err
		}
	}
	params, err := r.readParameters()
	if err != nil {
		return nil, err
	}
	givens, err := r.readGivens(len(params))
	if err != nil {
		return nil, err
	}
	var body quote.Quote
	if ok, err := r.accept("="); err != nil {
		return nil, err
	} else if ok {
		body, err = r.expression(LevelAssignment)
		if err != nil {
			return nil, err
		}
	} else {
		body, err = r.block()
		if err != nil {
			return nil, err
		}
	}
	return &quote.Fun{Pos: pos, Name: name, Params: params, Givens: givens, Body: body}, nil
}

func (r *Reader) readBox(rd *Reader, w quote.Word) (quote.Quote, error) {
	pos := quote.Pos{File: r.file, Line: w.Line}
	name, err := r.expect(quote.WordSymbol, "box name")
	if err != nil {
		return nil, err
	}
	var params []quote.Parameter
	if r.is("(") {
		params, err = r.readParameters()
		if err != nil {
			return nil, err
		}
	}
	if _, err := r.expect("{", "'{' opening box body"); err != nil {
		return nil, err
	}
	var fields []quote.BoxField
	for !r.is("}") {
		fname, err := r.expect(quote.WordSymbol, "box field name")
		if err != nil {
			return nil, err
		}
		if _, err := r.expect("=", "'=' after box field name"); err != nil {
			return nil, err
		}
		val, err := r.expression(LevelAssignment)
		if err != nil {
			return nil, err
		}
		fields = append(fields, quote.BoxField{Name: fname.Lexeme, Value: val})
		if err := r.semicolon(); err != nil {
			return nil, err
		}
	}
	if _, err := r.expect("}", "'}' closing box body"); err != nil {
		return nil, err
	}
	return &quote.Box{Pos: pos, Name: name.Lexeme, Params: params, Fields: fields}, nil
}

// readNudMacro parses `nud <trigger>(params) = body` and installs the
// resulting parselet into the live nud table (spec §4.1).
func (r *Reader) readNudMacro(rd *Reader, w quote.Word) (quote.Quote, error) {
	pos := quote.Pos{File: r.file, Line: w.Line}
	var triggerIsRegex bool
	var trigger string
	var wordType quote.WordType
	if r.is(quote.WordRegex) {
		trigger = r.cur.Lexeme
		triggerIsRegex = true
		wordType = quote.WordType("__NUD_" + trigger)
		if err := r.bump(); err != nil {
			return nil, err
		}
	} else {
		kw, err := r.expect(quote.WordSymbol, "nud trigger")
		if err != nil {
			return nil, err
		}
		trigger = kw.Lexeme
		wordType = quote.WordType("__NUD_" + trigger)
	}
	params, err := r.readParameters()
	if err != nil {
		return nil, err
	}
	if _, err := r.expect("=", "'=' before nud macro body"); err != nil {
		return nil, err
	}
	prevReadtime := r.readtime
	r.readtime = true
	var body quote.Quote
	if r.is("{") {
		body, err = r.block()
	} else {
		body, err = r.expression(LevelAssignment)
	}
	r.readtime = prevReadtime
	if err != nil {
		return nil, err
	}

	m := &macro{params: params, body: body}
	r.macros[wordType] = m
	if triggerIsRegex {
		re, err := regexp.Compile(trigger)
		if err != nil {
			return nil, errors.NewRead("invalid nud trigger regex: "+err.Error(), r.file, w.Line, trigger)
		}
		r.lex.AddTrigger(Trigger{WordType: wordType, Regex: re})
	} else {
		r.lex.AddTrigger(Trigger{WordType: wordType, Keyword: trigger})
	}
	r.nuds[wordType] = func(r *Reader, triggerWord quote.Word) (quote.Quote, error) {
		return r.expandMacro(m, triggerWord)
	}

	return &quote.NudMacro{Pos: pos, TriggerIsRegex: triggerIsRegex, Trigger: trigger, Params: params, Body: body}, nil
}

// expandMacro reads the macro call's arguments, clones the macro body and
// substitutes $name references with the bound argument quotes (spec §4.1).
func (r *Reader) expandMacro(m *macro, triggerWord quote.Word) (quote.Quote, error) {
	bindings := map[string]quote.Quote{}
	for name, capture := range triggerWord.NamedCaptures {
		bindings[name] = &quote.StringLit{Pos: quote.Pos{File: r.file, Line: triggerWord.Line}, Parts: []quote.StringPart{{Literal: capture}}}
	}
	for i, p := range m.params {
		if p.Slurpy {
			var rest []quote.Quote
			for !r.is(";") && !r.is("}") && !r.is(quote.WordEOF) {
				a, err := r.expression(LevelAssignment)
				if err != nil {
					return nil, err
				}
				rest = append(rest, a)
				if ok, err := r.accept(","); err != nil {
					return nil, err
				} else if !ok {
					break
				}
			}
			bindings[p.Name] = &quote.Vector{Pos: quote.Pos{File: r.file, Line: triggerWord.Line}, Elements: rest}
			continue
		}
		a, err := r.expression(LevelAssignment)
		if err != nil {
			return nil, err
		}
		bindings[p.Name] = a
		if i < len(m.params)-1 {
			if _, err := r.accept(","); err != nil {
				return nil, err
			}
		}
	}
	return substitute(m.body, bindings), nil
}

func (r *Reader) installStatements() {
	r.stmts["ENSURE"] = r.readEnsure
}

// readEnsure disambiguates the bare-assertion form `ensure <expr>;` from
// the named test-block form `ensure "title" { should "case" expr … }`
// (spec §4.4, §8 scenario 1).
func (r *Reader) readEnsure(rd *Reader, w quote.Word) (quote.Quote, error) {
	pos := quote.Pos{File: r.file, Line: w.Line}
	if r.is(quote.WordString) && r.peekIsBlockAfterString() {
		title := r.cur
		if err := r.bump(); err != nil {
			return nil, err
		}
		if _, err := r.expect("{", "'{' opening ensure-test block"); err != nil {
			return nil, err
		}
		var cases []*quote.EnsureShould
		for !r.is("}") {
			if _, err := r.expect("SHOULD", "'should'"); err != nil {
				return nil, err
			}
			label, err := r.expect(quote.WordString, "case label string")
			if err != nil {
				return nil, err
			}
			body, err := r.expression(LevelAssignment)
			if err != nil {
				return nil, err
			}
			cases = append(cases, &quote.EnsureShould{Pos: quote.Pos{File: r.file, Line: label.Line}, Label: label.Lexeme, Body: body})
			if err := r.semicolon(); err != nil {
				return nil, err
			}
		}
		if _, err := r.expect("}", "'}' closing ensure-test block"); err != nil {
			return nil, err
		}
		r.noSemi["ENSURE"] = true
		return &quote.EnsureTest{Pos: pos, Title: title.Lexeme, Cases: cases}, nil
	}
	expr, err := r.expression(LevelAssignment)
	if err != nil {
		return nil, err
	}
	return &quote.Ensure{Pos: pos, Expr: expr}, nil
}

// peekIsBlockAfterString distinguishes `ensure "title" {` (a test block)
// from `ensure "just a string expression";` without consuming input.
func (r *Reader) peekIsBlockAfterString() bool {
	save := *r.lex
	savedCur := r.cur
	next, err := r.lex.Next()
	*r.lex = save
	r.cur = savedCur
	return err == nil && next.Type == "{"
}

// --- string literal interpolation ---

// parseStringParts splits a lexed string body on `$name` / `$(expr)`
// interpolation markers, recursively reading embedded expressions with a
// fresh sub-Reader (spec §6.1).
func parseStringParts(file string, w quote.Word) (quote.Quote, error) {
	body := w.Lexeme
	var parts []quote.StringPart
	var literal []rune
	runes := []rune(body)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '\\' && i+1 < len(runes) && runes[i+1] == '$' {
			literal = append(literal, '$')
			i++
			continue
		}
		if c != '$' {
			literal = append(literal, c)
			continue
		}
		if len(literal) > 0 {
			parts = append(parts, quote.StringPart{Literal: string(literal)})
			literal = nil
		}
		if i+1 < len(runes) && runes[i+1] == '(' {
			depth := 1
			j := i + 2
			for j < len(runes) && depth > 0 {
				if runes[j] == '(' {
					depth++
				} else if runes[j] == ')' {
					depth--
					if depth == 0 {
						break
					}
				}
				j++
			}
			sub := string(runes[i+2 : j])
			expr, err := readSubExpression(file, sub, w.Line)
			if err != nil {
				return nil, err
			}
			parts = append(parts, quote.StringPart{Expr: expr})
			i = j
			continue
		}
		j := i + 1
		for j < len(runes) && isIdentPart(runes[j]) {
			j++
		}
		name := string(runes[i+1 : j])
		if name == "" {
			literal = append(literal, '$')
			continue
		}
		parts = append(parts, quote.StringPart{Expr: &quote.Symbol{Pos: quote.Pos{File: file, Line: w.Line}, Name: name}})
		i = j - 1
	}
	if len(literal) > 0 {
		parts = append(parts, quote.StringPart{Literal: string(literal)})
	}
	if len(parts) == 0 {
		parts = append(parts, quote.StringPart{Literal: ""})
	}
	return &quote.StringLit{Pos: quote.Pos{File: file, Line: w.Line}, Parts: parts}, nil
}

func readSubExpression(file, source string, line int) (quote.Quote, error) {
	sub, err := New(file, source)
	if err != nil {
		return nil, err
	}
	return sub.expression(LevelZero)
}

// NumLexeme parses a plain decimal integer lexeme into an int64; it
// reports false for anything strconv.ParseInt rejects (fractions,
// underscores, overflow).
func NumLexeme(lexeme string) (int64, bool) {
	n, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
