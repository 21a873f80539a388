package lexer

import (
	"strconv"
	"unicode"

	"github.com/ruscc/ruscc/pkg/config"
	"github.com/ruscc/ruscc/pkg/token"
	"github.com/ruscc/ruscc/pkg/util"
)

type Lexer struct {
	source []rune
	pos    int
	line   int
	column int
	cfg    *config.Config
}

func NewLexer(source []rune, cfg *config.Config) *Lexer {
	return &Lexer{source: source, line: 1, column: 1, cfg: cfg}
}

// Tokenize scans the whole input and returns the token stream, terminated
// by an EOF token.
func Tokenize(src *util.SourceFile, cfg *config.Config) ([]token.Token, error) {
	l := NewLexer(src.Content, cfg)
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) Next() (token.Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return token.Token{}, err
	}
	startPos, startCol, startLine := l.pos, l.column, l.line

	if l.isAtEnd() {
		return l.makeToken(token.EOF, "", startPos, startCol, startLine), nil
	}

	ch := l.peek()
	if unicode.IsLetter(ch) || ch == '_' {
		return l.identifierOrKeyword(startPos, startCol, startLine), nil
	}
	if unicode.IsDigit(ch) {
		return l.numberLiteral(startPos, startCol, startLine)
	}

	l.advance()
	switch ch {
	case '(':
		return l.makeToken(token.LParen, "", startPos, startCol, startLine), nil
	case ')':
		return l.makeToken(token.RParen, "", startPos, startCol, startLine), nil
	case '{':
		return l.makeToken(token.LBrace, "", startPos, startCol, startLine), nil
	case '}':
		return l.makeToken(token.RBrace, "", startPos, startCol, startLine), nil
	case '[':
		return l.makeToken(token.LBracket, "", startPos, startCol, startLine), nil
	case ']':
		return l.makeToken(token.RBracket, "", startPos, startCol, startLine), nil
	case ';':
		return l.makeToken(token.Semi, "", startPos, startCol, startLine), nil
	case ',':
		return l.makeToken(token.Comma, "", startPos, startCol, startLine), nil
	case ':':
		return l.makeToken(token.Colon, "", startPos, startCol, startLine), nil
	case '+':
		return l.makeToken(token.Plus, "", startPos, startCol, startLine), nil
	case '-':
		return l.matchThen('>', token.Arrow, token.Minus, startPos, startCol, startLine), nil
	case '*':
		return l.makeToken(token.Star, "", startPos, startCol, startLine), nil
	case '/':
		return l.makeToken(token.Slash, "", startPos, startCol, startLine), nil
	case '=':
		return l.matchThen('=', token.EqEq, token.Eq, startPos, startCol, startLine), nil
	case '<':
		return l.matchThen('=', token.Lte, token.Lt, startPos, startCol, startLine), nil
	case '>':
		return l.matchThen('=', token.Gte, token.Gt, startPos, startCol, startLine), nil
	case '&':
		return l.matchThen('&', token.AndAnd, token.And, startPos, startCol, startLine), nil
	case '!':
		if l.match('=') {
			return l.makeToken(token.Neq, "", startPos, startCol, startLine), nil
		}
		tok := l.makeToken(token.EOF, "", startPos, startCol, startLine)
		return token.Token{}, util.Errorf(util.LexErr, tok, "unexpected character: '!'")
	case '|':
		if l.match('|') {
			return l.makeToken(token.OrOr, "", startPos, startCol, startLine), nil
		}
		tok := l.makeToken(token.EOF, "", startPos, startCol, startLine)
		return token.Token{}, util.Errorf(util.LexErr, tok, "unexpected character: '|'")
	case '"':
		return l.stringLiteral(startPos, startCol, startLine)
	}

	tok := l.makeToken(token.EOF, "", startPos, startCol, startLine)
	return token.Token{}, util.Errorf(util.LexErr, tok, "unexpected character: '%c'", ch)
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) match(expected rune) bool {
	if l.isAtEnd() || l.source[l.pos] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) matchThen(expected rune, matched, fallback token.Type, startPos, startCol, startLine int) token.Token {
	if l.match(expected) {
		return l.makeToken(matched, "", startPos, startCol, startLine)
	}
	return l.makeToken(fallback, "", startPos, startCol, startLine)
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, value string, startPos, startCol, startLine int) token.Token {
	return token.Token{
		Type: tokType, Value: value,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
}

func (l *Lexer) skipWhitespaceAndComments() error {
	for {
		switch l.peek() {
		case ' ', '\t', '\n', '\r':
			l.advance()
		case '/':
			if l.peekNext() == '/' {
				for !l.isAtEnd() && l.peek() != '\n' {
					l.advance()
				}
			} else if l.peekNext() == '*' {
				if err := l.blockComment(); err != nil {
					return err
				}
			} else {
				return nil
			}
		default:
			return nil
		}
	}
}

func (l *Lexer) blockComment() error {
	startTok := l.makeToken(token.EOF, "", l.pos, l.column, l.line)
	l.advance()
	l.advance()
	for !l.isAtEnd() {
		if l.peek() == '*' && l.peekNext() == '/' {
			l.advance()
			l.advance()
			return nil
		}
		l.advance()
	}
	return util.Errorf(util.LexErr, startTok, "unterminated block comment")
}

func (l *Lexer) identifierOrKeyword(startPos, startCol, startLine int) token.Token {
	for unicode.IsLetter(l.peek()) || unicode.IsDigit(l.peek()) || l.peek() == '_' {
		l.advance()
	}
	value := string(l.source[startPos:l.pos])
	tok := l.makeToken(token.Ident, value, startPos, startCol, startLine)

	if tokType, isKeyword := token.KeywordMap[value]; isKeyword {
		tok.Type = tokType
		tok.Value = ""
	}
	return tok
}

// numberLiteral scans a decimal literal and an optional glued type suffix
// like 255u8. The suffix must name an integer type.
func (l *Lexer) numberLiteral(startPos, startCol, startLine int) (token.Token, error) {
	for unicode.IsDigit(l.peek()) {
		l.advance()
	}
	digitsEnd := l.pos

	suffix := token.EOF
	if unicode.IsLetter(l.peek()) || l.peek() == '_' {
		suffixStart := l.pos
		for unicode.IsLetter(l.peek()) || unicode.IsDigit(l.peek()) || l.peek() == '_' {
			l.advance()
		}
		name := string(l.source[suffixStart:l.pos])
		tokType, isKeyword := token.KeywordMap[name]
		if !isKeyword || !token.IsIntType(tokType) {
			tok := l.makeToken(token.EOF, "", startPos, startCol, startLine)
			return token.Token{}, util.Errorf(util.LexErr, tok, "invalid suffix '%s' on integer literal", name)
		}
		suffix = tokType
	}

	value := string(l.source[startPos:digitsEnd])
	if _, err := strconv.ParseInt(value, 10, 64); err != nil {
		tok := l.makeToken(token.EOF, "", startPos, startCol, startLine)
		return token.Token{}, util.Errorf(util.LexErr, tok, "integer literal out of range: %s", value)
	}

	tok := l.makeToken(token.Number, value, startPos, startCol, startLine)
	tok.Suffix = suffix
	return tok, nil
}

func (l *Lexer) stringLiteral(startPos, startCol, startLine int) (token.Token, error) {
	var sb []rune
	for !l.isAtEnd() && l.peek() != '"' {
		ch := l.advance()
		if ch == '\\' {
			if l.isAtEnd() {
				break
			}
			esc := l.advance()
			switch esc {
			case 'n':
				ch = '\n'
			case 't':
				ch = '\t'
			case 'r':
				ch = '\r'
			case '0':
				ch = 0
			case '\\', '"', '\'':
				ch = esc
			default:
				tok := l.makeToken(token.EOF, "", startPos, startCol, startLine)
				return token.Token{}, util.Errorf(util.LexErr, tok, "unrecognized escape sequence '\\%c'", esc)
			}
		}
		sb = append(sb, ch)
	}
	if l.isAtEnd() {
		tok := l.makeToken(token.EOF, "", startPos, startCol, startLine)
		return token.Token{}, util.Errorf(util.LexErr, tok, "unterminated string literal")
	}
	l.advance() // closing quote
	return l.makeToken(token.String, string(sb), startPos, startCol, startLine), nil
}
