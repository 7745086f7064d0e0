package reader

import (
	"testing"

	"github.com/ember-lang/ember/internal/quote"
)

func scanAll(t *testing.T, source string) []quote.Word {
	t.Helper()
	lex := NewLexer("t.ember", source)
	var words []quote.Word
	for {
		w, err := lex.Next()
		if err != nil {
			t.Fatalf("unexpected lex error: %v", err)
		}
		words = append(words, w)
		if w.Type == quote.WordEOF {
			break
		}
	}
	return words
}

func TestLexerRetypesKeywords(t *testing.T) {
	words := scanAll(t, "if x else")
	if words[0].Type != "IF" {
		t.Fatalf("expected IF, got %s", words[0].Type)
	}
	if words[1].Type != quote.WordSymbol {
		t.Fatalf("expected bare symbol for 'x', got %s", words[1].Type)
	}
	if words[2].Type != "ELSE" {
		t.Fatalf("expected ELSE, got %s", words[2].Type)
	}
}

func TestLexerNumberStripsUnderscores(t *testing.T) {
	words := scanAll(t, "1_000_000")
	if words[0].Type != quote.WordNumber || words[0].Lexeme != "1000000" {
		t.Fatalf("expected stripped number literal, got %+v", words[0])
	}
}

func TestLexerStringProcessesEscapes(t *testing.T) {
	words := scanAll(t, `"a\nb\"c"`)
	if words[0].Type != quote.WordString {
		t.Fatalf("expected string word, got %s", words[0].Type)
	}
	if words[0].Lexeme != "a\nb\"c" {
		t.Fatalf("expected escapes processed, got %q", words[0].Lexeme)
	}
}

func TestLexerRegexLiteral(t *testing.T) {
	words := scanAll(t, "`^ab+c$`")
	if words[0].Type != quote.WordRegex || words[0].Lexeme != "^ab+c$" {
		t.Fatalf("expected regex literal, got %+v", words[0])
	}
}

func TestLexerReadSymbol(t *testing.T) {
	words := scanAll(t, "$name")
	if words[0].Type != quote.WordReadSymbol || words[0].Lexeme != "name" {
		t.Fatalf("expected $ symbol, got %+v", words[0])
	}
}

func TestLexerUserTriggerFiresBeforeSymbol(t *testing.T) {
	lex := NewLexer("t.ember", "greet bob")
	lex.AddTrigger(Trigger{WordType: "GREET", Keyword: "greet"})
	w, err := lex.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Type != "GREET" {
		t.Fatalf("expected the registered trigger to win over the symbol scanner, got %s", w.Type)
	}
}

func TestLexerMalformedInputFails(t *testing.T) {
	lex := NewLexer("t.ember", "@")
	if _, err := lex.Next(); err == nil {
		t.Fatal("expected a ReadError for an unrecognized character")
	}
}

func TestLexerVerbalModeEmitsInvalidInsteadOfDying(t *testing.T) {
	lex := NewLexer("t.ember", "@")
	lex.Verbal(true)
	w, err := lex.Next()
	if err != nil {
		t.Fatalf("unexpected error in verbal mode: %v", err)
	}
	if w.Type != quote.WordInvalid {
		t.Fatalf("expected __INVALID__ word, got %s", w.Type)
	}
}
