package lexer

import (
	"strings"

	"github.com/positron-lang/positron/internal/token"
)

// Lexer converts source text into a stream of tokens, one at a time.
type Lexer struct {
	input   string
	pos     int  // current position in bytes
	readPos int  // next read position
	ch      byte // current char
	line    int
}

// New creates a lexer for the provided source text.
func New(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// NextToken returns the next token from the input. Once the input is
// exhausted it returns EOF tokens indefinitely.
func (l *Lexer) NextToken() token.Token {
	for {
		l.skipWhitespace()

		if l.ch == 0 {
			return l.makeToken(token.EOF, "")
		}

		if l.ch == '/' && l.peekChar() == '/' {
			l.skipLineComment()
			continue
		}

		switch l.ch {
		case '=':
			if l.peekChar() == '=' {
				return l.makeTwoCharToken(token.Equal)
			}
			return l.makeCharToken(token.Assign)
		case '!':
			if l.peekChar() == '=' {
				return l.makeTwoCharToken(token.NotEqual)
			}
			return l.makeCharToken(token.Bang)
		case '<':
			if l.peekChar() == '=' {
				return l.makeTwoCharToken(token.LessEqual)
			}
			return l.makeCharToken(token.Less)
		case '>':
			if l.peekChar() == '=' {
				return l.makeTwoCharToken(token.GreaterEqual)
			}
			return l.makeCharToken(token.Greater)
		case '&':
			if l.peekChar() == '&' {
				return l.makeTwoCharToken(token.AndAnd)
			}
			return l.makeCharToken(token.Illegal)
		case '|':
			if l.peekChar() == '|' {
				return l.makeTwoCharToken(token.OrOr)
			}
			return l.makeCharToken(token.Illegal)
		case '+':
			return l.makeCharToken(token.Plus)
		case '-':
			return l.makeCharToken(token.Minus)
		case '*':
			return l.makeCharToken(token.Star)
		case '/':
			return l.makeCharToken(token.Slash)
		case ',':
			return l.makeCharToken(token.Comma)
		case '.':
			return l.makeCharToken(token.Dot)
		case ':':
			return l.makeCharToken(token.Colon)
		case ';':
			return l.makeCharToken(token.Semicolon)
		case '(':
			return l.makeCharToken(token.LParen)
		case ')':
			return l.makeCharToken(token.RParen)
		case '{':
			return l.makeCharToken(token.LBrace)
		case '}':
			return l.makeCharToken(token.RBrace)
		case '[':
			return l.makeCharToken(token.LBracket)
		case ']':
			return l.makeCharToken(token.RBracket)
		case '"':
			return l.readString()
		default:
			if isLetter(l.ch) {
				return l.readIdentifier()
			}
			if isDigit(l.ch) {
				return l.readNumber()
			}
			return l.makeCharToken(token.Illegal)
		}
	}
}

func (l *Lexer) makeToken(t token.Type, lexeme string) token.Token {
	return token.Token{
		Type:   t,
		Lexeme: lexeme,
		Line:   l.line,
	}
}

func (l *Lexer) makeCharToken(t token.Type) token.Token {
	tok := l.makeToken(t, string(l.ch))
	l.readChar()
	return tok
}

func (l *Lexer) makeTwoCharToken(t token.Type) token.Token {
	ch := l.ch
	l.readChar()
	tok := l.makeToken(t, string(ch)+string(l.ch))
	l.readChar()
	return tok
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
		l.readChar()
	}
}

func (l *Lexer) skipLineComment() {
	for l.ch != 0 && l.ch != '\n' {
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() token.Token {
	start := l.makeToken(token.Ident, "")
	var sb strings.Builder
	for isLetter(l.ch) || isDigit(l.ch) {
		sb.WriteByte(l.ch)
		l.readChar()
	}
	lit := sb.String()
	start.Type = token.LookupIdent(lit)
	start.Lexeme = lit
	return start
}

func (l *Lexer) readNumber() token.Token {
	start := l.makeToken(token.Number, "")
	var sb strings.Builder
	for isDigit(l.ch) {
		sb.WriteByte(l.ch)
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		sb.WriteByte(l.ch)
		l.readChar()
		for isDigit(l.ch) {
			sb.WriteByte(l.ch)
			l.readChar()
		}
	}
	start.Lexeme = sb.String()
	return start
}

func (l *Lexer) readString() token.Token {
	start := l.makeToken(token.String, "")
	var sb strings.Builder

	for {
		l.readChar()
		if l.ch == 0 {
			illegal := l.makeToken(token.Illegal, "unterminated string")
			return illegal
		}
		if l.ch == '"' {
			l.readChar()
			break
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case '"', '\\':
				sb.WriteByte(l.ch)
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(l.ch)
			}
			continue
		}
		sb.WriteByte(l.ch)
	}

	start.Lexeme = sb.String()
	return start
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.pos = l.readPos
		l.ch = 0
		return
	}

	l.ch = l.input[l.readPos]
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
	}
}
