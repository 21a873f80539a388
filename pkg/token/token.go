package token

type Type int

const (
	EOF Type = iota
	Ident
	Number
	String
	Fn
	Let
	Static
	If
	Else
	While
	Return
	True
	False
	Bool
	Str
	I8
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Semi
	Comma
	Colon
	Arrow
	Eq
	Plus
	Minus
	Star
	Slash
	EqEq
	Neq
	Lt
	Gt
	Lte
	Gte
	And
	AndAnd
	OrOr
)

var KeywordMap = map[string]Type{
	"fn":     Fn,
	"let":    Let,
	"static": Static,
	"if":     If,
	"else":   Else,
	"while":  While,
	"return": Return,
	"true":   True,
	"false":  False,
	"bool":   Bool,
	"str":    Str,
	"i8":     I8,
	"i16":    I16,
	"i32":    I32,
	"i64":    I64,
	"u8":     U8,
	"u16":    U16,
	"u32":    U32,
	"u64":    U64,
}

// Reverse mapping from Type to the keyword string
var TypeStrings = make(map[Type]string)

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
}

// IsIntType reports whether t names one of the fixed-width integer types.
func IsIntType(t Type) bool {
	return t >= I8 && t <= U64
}

type Token struct {
	Type   Type
	Value  string
	Suffix Type // type keyword glued onto a number literal, or EOF
	Line   int
	Column int
	Len    int
}
