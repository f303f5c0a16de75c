package sqlfront

import "testing"

func collectTokens(input string) []Token {
	l := newLexer(input)
	var toks []Token
	for {
		tok := l.next()
		toks = append(toks, tok)
		if tok.Kind == EOF {
			break
		}
	}
	return toks
}

func TestLexerKeywordsAndIdentifiers(t *testing.T) {
	toks := collectTokens("SELECT id FROM users")
	want := []Kind{SELECT, IDENT, FROM, IDENT, EOF}
	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %+v", len(want), len(toks), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d: expected kind %v, got %v (%q)", i, k, toks[i].Kind, toks[i].Value)
		}
	}
}

func TestLexerNumberLiterals(t *testing.T) {
	toks := collectTokens("42 3.14")
	if toks[0].Kind != INTLIT || toks[0].Value != "42" {
		t.Errorf("expected INTLIT 42, got %+v", toks[0])
	}
	if toks[1].Kind != DECIMALLIT || toks[1].Value != "3.14" {
		t.Errorf("expected DECIMALLIT 3.14, got %+v", toks[1])
	}
}

func TestLexerStringLiteralWithEscapedQuote(t *testing.T) {
	toks := collectTokens("'it''s here'")
	if toks[0].Kind != STRINGLIT || toks[0].Value != "it's here" {
		t.Errorf("expected unescaped string literal, got %+v", toks[0])
	}
}

func TestLexerComparisonOperators(t *testing.T) {
	toks := collectTokens("= <> <= >= < > !=")
	want := []Kind{EQ, NE, LE, GE, LT, GT, NE}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d: expected %v, got %v (%q)", i, k, toks[i].Kind, toks[i].Value)
		}
	}
}

func TestLexerIllegalCharacter(t *testing.T) {
	toks := collectTokens("@")
	if toks[0].Kind != ILLEGAL {
		t.Errorf("expected ILLEGAL for '@', got %+v", toks[0])
	}
}

func TestLexerPunctuation(t *testing.T) {
	toks := collectTokens("(a, b.c);")
	var kinds []Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	want := []Kind{LPAREN, IDENT, COMMA, IDENT, DOT, IDENT, RPAREN, SEMICOLON, EOF}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %+v", len(want), len(kinds), toks)
	}
	for i, k := range want {
		if kinds[i] != k {
			t.Errorf("token %d: expected %v, got %v", i, k, kinds[i])
		}
	}
}
