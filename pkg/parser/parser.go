package parser

import (
	"strconv"

	"github.com/ruscc/ruscc/pkg/ast"
	"github.com/ruscc/ruscc/pkg/token"
	"github.com/ruscc/ruscc/pkg/util"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens  []token.Token
	pos     int
	current token.Token
}

// NewParser creates and initializes a new Parser from a token stream
func NewParser(tokens []token.Token) *Parser {
	p := &Parser{tokens: tokens, pos: 0}
	if len(tokens) > 0 {
		p.current = p.tokens[0]
	}
	return p
}

// Parse consumes the whole token stream and returns the program as a block
// of function and static declarations.
func (p *Parser) Parse() (*ast.Node, error) {
	var stmts []*ast.Node
	startTok := p.current
	for !p.check(token.EOF) {
		var stmt *ast.Node
		var err error
		switch p.current.Type {
		case token.Fn:
			stmt, err = p.parseFuncDecl()
		case token.Static:
			stmt, err = p.parseStaticDecl()
		default:
			return nil, util.Errorf(util.ParseErr, p.current, "expected 'fn' or 'static' at top level")
		}
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return ast.NewBlock(startTok, stmts), nil
}

// Parser helpers
func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
		if p.pos < len(p.tokens) {
			p.current = p.tokens[p.pos]
		}
	}
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type, message string) error {
	if p.check(tokType) {
		p.advance()
		return nil
	}
	return util.Errorf(util.ParseErr, p.current, "%s", message)
}

// --- Type Parsing ---

func (p *Parser) parseType() (*ast.Type, error) {
	tok := p.current
	switch tok.Type {
	case token.Star:
		p.advance()
		base, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return ast.NewPointer(base), nil
	case token.And:
		p.advance()
		base, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return ast.NewReference(base), nil
	case token.LBracket:
		p.advance()
		base, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if p.match(token.Semi) {
			lenTok := p.current
			if err := p.expect(token.Number, "expected array length"); err != nil {
				return nil, err
			}
			n, err := strconv.ParseInt(lenTok.Value, 10, 64)
			if err != nil || n < 0 {
				return nil, util.Errorf(util.ParseErr, lenTok, "invalid array length '%s'", lenTok.Value)
			}
			if err := p.expect(token.RBracket, "expected ']' after array length"); err != nil {
				return nil, err
			}
			return ast.NewArray(base, n), nil
		}
		if err := p.expect(token.RBracket, "expected ']' in slice type"); err != nil {
			return nil, err
		}
		return ast.NewSlice(base), nil
	case token.Bool:
		p.advance()
		return ast.TypeBool, nil
	case token.Str:
		p.advance()
		return ast.TypeStr, nil
	}
	if t := intTypeFor(tok.Type); t != nil {
		p.advance()
		return t, nil
	}
	return nil, util.Errorf(util.ParseErr, tok, "expected a type")
}

func intTypeFor(tokType token.Type) *ast.Type {
	switch tokType {
	case token.I8:
		return ast.TypeI8
	case token.I16:
		return ast.TypeI16
	case token.I32:
		return ast.TypeI32
	case token.I64:
		return ast.TypeI64
	case token.U8:
		return ast.TypeU8
	case token.U16:
		return ast.TypeU16
	case token.U32:
		return ast.TypeU32
	case token.U64:
		return ast.TypeU64
	}
	return nil
}

// --- Expression Parsing ---

func (p *Parser) parsePrimaryExpr() (*ast.Node, error) {
	tok := p.current
	switch tok.Type {
	case token.Number:
		p.advance()
		value, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, util.Errorf(util.ParseErr, tok, "invalid number literal '%s'", tok.Value)
		}
		return ast.NewNumber(tok, value, intTypeFor(tok.Suffix)), nil
	case token.True:
		p.advance()
		return ast.NewBool(tok, true), nil
	case token.False:
		p.advance()
		return ast.NewBool(tok, false), nil
	case token.String:
		p.advance()
		return ast.NewString(tok, tok.Value), nil
	case token.Ident:
		p.advance()
		return ast.NewIdent(tok, tok.Value), nil
	case token.LParen:
		p.advance()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(token.RParen, "expected ')' after expression"); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return nil, util.Errorf(util.ParseErr, tok, "expected an expression")
}

func (p *Parser) parsePostfixExpr() (*ast.Node, error) {
	expr, err := p.parsePrimaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.current
		switch {
		case p.match(token.LParen):
			if expr.Type != ast.Ident {
				return nil, util.Errorf(util.ParseErr, tok, "only named functions can be called")
			}
			var args []*ast.Node
			if !p.check(token.RParen) {
				for {
					arg, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if !p.match(token.Comma) {
						break
					}
				}
			}
			if err := p.expect(token.RParen, "expected ')' after arguments"); err != nil {
				return nil, err
			}
			expr = ast.NewFuncCall(expr.Tok, expr.Data.(ast.IdentNode).Name, args)
		case p.match(token.LBracket):
			index, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expect(token.RBracket, "expected ']' after index"); err != nil {
				return nil, err
			}
			expr = ast.NewSubscript(tok, expr, index)
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseUnaryExpr() (*ast.Node, error) {
	tok := p.current
	switch tok.Type {
	case token.Minus:
		p.advance()
		expr, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		return ast.NewUnaryOp(tok, token.Minus, expr), nil
	case token.And:
		p.advance()
		expr, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		return ast.NewAddressOf(tok, expr), nil
	case token.Star:
		p.advance()
		expr, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		return ast.NewIndirection(tok, expr), nil
	}
	return p.parsePostfixExpr()
}

func getBinaryOpPrecedence(tokType token.Type) int {
	switch tokType {
	case token.OrOr:
		return 1
	case token.AndAnd:
		return 2
	case token.EqEq, token.Neq:
		return 3
	case token.Lt, token.Lte, token.Gt, token.Gte:
		return 4
	case token.Plus, token.Minus:
		return 5
	case token.Star, token.Slash:
		return 6
	}
	return -1
}

func (p *Parser) parseBinaryExpr(minPrec int) (*ast.Node, error) {
	left, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}
	for {
		prec := getBinaryOpPrecedence(p.current.Type)
		if prec < minPrec {
			return left, nil
		}
		opTok := p.current
		p.advance()
		right, err := p.parseBinaryExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(opTok, opTok.Type, left, right)
	}
}

func (p *Parser) parseAssignmentExpr() (*ast.Node, error) {
	left, err := p.parseBinaryExpr(1)
	if err != nil {
		return nil, err
	}
	if p.check(token.Eq) {
		opTok := p.current
		p.advance()
		right, err := p.parseAssignmentExpr()
		if err != nil {
			return nil, err
		}
		return ast.NewAssign(opTok, left, right), nil
	}
	return left, nil
}

func (p *Parser) parseExpr() (*ast.Node, error) {
	return p.parseAssignmentExpr()
}

// --- Statement Parsing ---

func (p *Parser) parseBlockStmt() (*ast.Node, error) {
	startTok := p.current
	if err := p.expect(token.LBrace, "expected '{'"); err != nil {
		return nil, err
	}
	var stmts []*ast.Node
	for !p.check(token.RBrace) && !p.check(token.EOF) {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	if err := p.expect(token.RBrace, "expected '}' to close block"); err != nil {
		return nil, err
	}
	return ast.NewBlock(startTok, stmts), nil
}

func (p *Parser) parseStmt() (*ast.Node, error) {
	switch p.current.Type {
	case token.LBrace:
		return p.parseBlockStmt()
	case token.Let:
		return p.parseLetStmt()
	case token.If:
		return p.parseIfStmt()
	case token.While:
		return p.parseWhileStmt()
	case token.Return:
		tok := p.current
		p.advance()
		var expr *ast.Node
		if !p.check(token.Semi) {
			var err error
			expr, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		if err := p.expect(token.Semi, "expected ';' after return"); err != nil {
			return nil, err
		}
		return ast.NewReturn(tok, expr), nil
	}

	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.Semi, "expected ';' after expression"); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *Parser) parseLetStmt() (*ast.Node, error) {
	letTok := p.current
	p.advance()
	nameTok := p.current
	if err := p.expect(token.Ident, "expected variable name after 'let'"); err != nil {
		return nil, err
	}

	var declType *ast.Type
	if p.match(token.Colon) {
		var err error
		declType, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}

	var init *ast.Node
	if p.match(token.Eq) {
		var err error
		init, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}

	if declType == nil && init == nil {
		return nil, util.Errorf(util.ParseErr, letTok, "'%s' needs a type or an initializer", nameTok.Value)
	}
	if err := p.expect(token.Semi, "expected ';' after declaration"); err != nil {
		return nil, err
	}
	return ast.NewVarDecl(nameTok, nameTok.Value, declType, init, false), nil
}

func (p *Parser) parseIfStmt() (*ast.Node, error) {
	tok := p.current
	p.advance()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	thenBody, err := p.parseBlockStmt()
	if err != nil {
		return nil, err
	}
	var elseBody *ast.Node
	if p.match(token.Else) {
		if p.check(token.If) {
			elseBody, err = p.parseIfStmt()
		} else {
			elseBody, err = p.parseBlockStmt()
		}
		if err != nil {
			return nil, err
		}
	}
	return ast.NewIf(tok, cond, thenBody, elseBody), nil
}

func (p *Parser) parseWhileStmt() (*ast.Node, error) {
	tok := p.current
	p.advance()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlockStmt()
	if err != nil {
		return nil, err
	}
	return ast.NewWhile(tok, cond, body), nil
}

// --- Declaration Parsing ---

func (p *Parser) parseFuncDecl() (*ast.Node, error) {
	fnTok := p.current
	p.advance()
	nameTok := p.current
	if err := p.expect(token.Ident, "expected function name after 'fn'"); err != nil {
		return nil, err
	}
	if err := p.expect(token.LParen, "expected '(' after function name"); err != nil {
		return nil, err
	}

	var params []*ast.Node
	if !p.check(token.RParen) {
		for {
			paramTok := p.current
			if err := p.expect(token.Ident, "expected parameter name"); err != nil {
				return nil, err
			}
			if err := p.expect(token.Colon, "expected ':' after parameter name"); err != nil {
				return nil, err
			}
			paramType, err := p.parseType()
			if err != nil {
				return nil, err
			}
			params = append(params, ast.NewVarDecl(paramTok, paramTok.Value, paramType, nil, false))
			if !p.match(token.Comma) {
				break
			}
		}
	}
	if err := p.expect(token.RParen, "expected ')' after parameters"); err != nil {
		return nil, err
	}

	isTyped := false
	var returnType *ast.Type
	if p.match(token.Arrow) {
		isTyped = true
		var err error
		returnType, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}

	body, err := p.parseBlockStmt()
	if err != nil {
		return nil, err
	}
	return ast.NewFuncDecl(fnTok, nameTok.Value, params, body, isTyped, returnType), nil
}

func (p *Parser) parseStaticDecl() (*ast.Node, error) {
	p.advance()
	nameTok := p.current
	if err := p.expect(token.Ident, "expected variable name after 'static'"); err != nil {
		return nil, err
	}
	if err := p.expect(token.Colon, "expected ':' after static variable name"); err != nil {
		return nil, err
	}
	declType, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if err := p.expect(token.Semi, "expected ';' after static declaration"); err != nil {
		return nil, err
	}
	return ast.NewVarDecl(nameTok, nameTok.Value, declType, nil, true), nil
}
