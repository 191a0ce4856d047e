package lexer

import (
	"testing"

	"github.com/positron-lang/positron/internal/token"
)

func TestLexerBasicTokens(t *testing.T) {
	input := `
fun add(a, b) {
  let c = a + b;
  if (c >= 10 && a != b) {
    return c;
  }
}
`

	tests := []token.Token{
		{Type: token.Fun, Lexeme: "fun"},
		{Type: token.Ident, Lexeme: "add"},
		{Type: token.LParen, Lexeme: "("},
		{Type: token.Ident, Lexeme: "a"},
		{Type: token.Comma, Lexeme: ","},
		{Type: token.Ident, Lexeme: "b"},
		{Type: token.RParen, Lexeme: ")"},
		{Type: token.LBrace, Lexeme: "{"},
		{Type: token.Let, Lexeme: "let"},
		{Type: token.Ident, Lexeme: "c"},
		{Type: token.Assign, Lexeme: "="},
		{Type: token.Ident, Lexeme: "a"},
		{Type: token.Plus, Lexeme: "+"},
		{Type: token.Ident, Lexeme: "b"},
		{Type: token.Semicolon, Lexeme: ";"},
		{Type: token.If, Lexeme: "if"},
		{Type: token.LParen, Lexeme: "("},
		{Type: token.Ident, Lexeme: "c"},
		{Type: token.GreaterEqual, Lexeme: ">="},
		{Type: token.Number, Lexeme: "10"},
		{Type: token.AndAnd, Lexeme: "&&"},
		{Type: token.Ident, Lexeme: "a"},
		{Type: token.NotEqual, Lexeme: "!="},
		{Type: token.Ident, Lexeme: "b"},
		{Type: token.RParen, Lexeme: ")"},
		{Type: token.LBrace, Lexeme: "{"},
		{Type: token.Return, Lexeme: "return"},
		{Type: token.Ident, Lexeme: "c"},
		{Type: token.Semicolon, Lexeme: ";"},
		{Type: token.RBrace, Lexeme: "}"},
		{Type: token.RBrace, Lexeme: "}"},
		{Type: token.EOF},
	}

	l := New(input)
	for i, expected := range tests {
		tok := l.NextToken()
		if tok.Type != expected.Type || tok.Lexeme != expected.Lexeme {
			t.Fatalf("token %d: expected %v %q, got %v %q", i, expected.Type, expected.Lexeme, tok.Type, tok.Lexeme)
		}
	}
}

func TestLexerListSyntax(t *testing.T) {
	input := `let l = [1, 2, 3]; l : 0`

	expectedTypes := []token.Type{
		token.Let, token.Ident, token.Assign,
		token.LBracket, token.Number, token.Comma, token.Number, token.Comma, token.Number, token.RBracket,
		token.Semicolon,
		token.Ident, token.Colon, token.Number,
		token.EOF,
	}

	l := New(input)
	for i, typ := range expectedTypes {
		tok := l.NextToken()
		if tok.Type != typ {
			t.Fatalf("token %d: expected %v, got %v (%q)", i, typ, tok.Type, tok.Lexeme)
		}
	}
}

func TestLexerOperators(t *testing.T) {
	input := `= == ! != < <= > >= && || + - * / . : ;`

	expected := []token.Type{
		token.Assign, token.Equal, token.Bang, token.NotEqual,
		token.Less, token.LessEqual, token.Greater, token.GreaterEqual,
		token.AndAnd, token.OrOr,
		token.Plus, token.Minus, token.Star, token.Slash,
		token.Dot, token.Colon, token.Semicolon,
		token.EOF,
	}

	l := New(input)
	for i, typ := range expected {
		tok := l.NextToken()
		if tok.Type != typ {
			t.Fatalf("token %d: expected %v, got %v (%q)", i, typ, tok.Type, tok.Lexeme)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	input := `0 42 3.25 0.5`

	expected := []string{"0", "42", "3.25", "0.5"}
	l := New(input)
	for i, lexeme := range expected {
		tok := l.NextToken()
		if tok.Type != token.Number || tok.Lexeme != lexeme {
			t.Fatalf("token %d: expected number %q, got %v %q", i, lexeme, tok.Type, tok.Lexeme)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	input := `"hello" "a\tb" "line\n"`

	expected := []string{"hello", "a\tb", "line\n"}
	l := New(input)
	for i, lexeme := range expected {
		tok := l.NextToken()
		if tok.Type != token.String || tok.Lexeme != lexeme {
			t.Fatalf("token %d: expected string %q, got %v %q", i, lexeme, tok.Type, tok.Lexeme)
		}
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	l := New(`"open`)
	tok := l.NextToken()
	if tok.Type != token.Illegal {
		t.Fatalf("expected Illegal, got %v (%q)", tok.Type, tok.Lexeme)
	}
}

func TestLexerComments(t *testing.T) {
	input := `// leading comment
let a = 1; // trailing comment
let b = 2;`

	expected := []token.Type{
		token.Let, token.Ident, token.Assign, token.Number, token.Semicolon,
		token.Let, token.Ident, token.Assign, token.Number, token.Semicolon,
		token.EOF,
	}

	l := New(input)
	for i, typ := range expected {
		tok := l.NextToken()
		if tok.Type != typ {
			t.Fatalf("token %d: expected %v, got %v (%q)", i, typ, tok.Type, tok.Lexeme)
		}
	}
}

func TestLexerTracksLines(t *testing.T) {
	input := "let a = 1;\nlet b = 2;\n\nlet c = 3;"

	l := New(input)
	lines := map[string]int{}
	for {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			break
		}
		if tok.Type == token.Ident {
			lines[tok.Lexeme] = tok.Line
		}
	}
	if lines["a"] != 1 || lines["b"] != 2 || lines["c"] != 4 {
		t.Fatalf("lines = %v", lines)
	}
}

func TestLexerKeywords(t *testing.T) {
	input := `let fun struct if else while for return exit print true false null letx`

	expected := []token.Type{
		token.Let, token.Fun, token.Struct, token.If, token.Else,
		token.While, token.For, token.Return, token.Exit, token.Print,
		token.True, token.False, token.Null, token.Ident,
		token.EOF,
	}

	l := New(input)
	for i, typ := range expected {
		tok := l.NextToken()
		if tok.Type != typ {
			t.Fatalf("token %d: expected %v, got %v (%q)", i, typ, tok.Type, tok.Lexeme)
		}
	}
}
