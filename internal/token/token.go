package token

// Type identifies the category of a token.
type Type string

// Token carries one lexical item along with its source line.
type Token struct {
	Type   Type
	Lexeme string
	Line   int
}

const (
	Illegal Type = "ILLEGAL"
	EOF     Type = "EOF"

	// identifiers and literals
	Ident  Type = "IDENT"
	Number Type = "NUMBER"
	String Type = "STRING"

	// keywords
	Let    Type = "LET"
	Fun    Type = "FUN"
	Struct Type = "STRUCT"
	If     Type = "IF"
	Else   Type = "ELSE"
	While  Type = "WHILE"
	For    Type = "FOR"
	Return Type = "RETURN"
	Exit   Type = "EXIT"
	Print  Type = "PRINT"
	True   Type = "TRUE"
	False  Type = "FALSE"
	Null   Type = "NULL"

	// operators
	Assign       Type = "ASSIGN"       // =
	Plus         Type = "PLUS"         // +
	Minus        Type = "MINUS"        // -
	Star         Type = "STAR"         // *
	Slash        Type = "SLASH"        // /
	Bang         Type = "BANG"         // !
	Equal        Type = "EQUAL"        // ==
	NotEqual     Type = "NOTEQUAL"     // !=
	Less         Type = "LESS"         // <
	LessEqual    Type = "LESSEQUAL"    // <=
	Greater      Type = "GREATER"      // >
	GreaterEqual Type = "GREATEREQUAL" // >=
	AndAnd       Type = "ANDAND"       // &&
	OrOr         Type = "OROR"         // ||

	// delimiters
	Comma     Type = "COMMA"
	Dot       Type = "DOT"
	Colon     Type = "COLON"
	Semicolon Type = "SEMICOLON"
	LParen    Type = "LPAREN"
	RParen    Type = "RPAREN"
	LBrace    Type = "LBRACE"
	RBrace    Type = "RBRACE"
	LBracket  Type = "LBRACKET"
	RBracket  Type = "RBRACKET"
)

var keywords = map[string]Type{
	"let":    Let,
	"fun":    Fun,
	"struct": Struct,
	"if":     If,
	"else":   Else,
	"while":  While,
	"for":    For,
	"return": Return,
	"exit":   Exit,
	"print":  Print,
	"true":   True,
	"false":  False,
	"null":   Null,
}

// LookupIdent returns the keyword token type or Ident.
func LookupIdent(ident string) Type {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return Ident
}
