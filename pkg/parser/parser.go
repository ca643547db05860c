// Package parser implements Monkey's Pratt (operator-precedence) parser.
//
// Parser Architecture:
//
// The parser is a recursive-descent parser with one addition: expression
// parsing is driven by a precedence-ordered dispatch table rather than one
// function per grammar rule per precedence level. Each token kind may have
// a prefix parse function (called when the token starts an expression) and
// an infix parse function (called when the token follows an already-parsed
// left-hand expression and the surrounding precedence allows it to bind).
//
// Token Management:
//
// The parser keeps two tokens at all times:
//   - curTok: the token being examined
//   - peekTok: the next token (one token of lookahead)
//
// This lets the parser decide, for example, whether a `(` following an
// identifier should be parsed as a CallExpression's argument list, without
// having already committed to parsing the identifier as something else.
//
// Precedence Table (increasing):
//
//	Lowest < Equals(==, !=) < LessGreater(<, >) < Sum(+, -) < Product(*, /)
//	      < Prefix < Call(() < Index([)
//
// Error Handling:
//
// Parse errors accumulate in the `errors` slice rather than aborting the
// parse. This allows reporting multiple syntax errors from one pass, and
// lets callers decide whether to proceed (they shouldn't — downstream stages
// should refuse to run while errors are non-empty).
package parser

import (
	"fmt"
	"strconv"

	"github.com/kristofer/monkey/pkg/ast"
	"github.com/kristofer/monkey/pkg/lexer"
)

// Operator precedence levels, lowest first.
const (
	_ int = iota
	LOWEST
	EQUALS      // == !=
	LESSGREATER // > <
	SUM         // + -
	PRODUCT     // * /
	PREFIX      // -x or !x
	CALL        // myFunction(x)
	INDEX       // myArray[x]
)

// precedences maps infix operator tokens to their binding precedence. Any
// token absent from this table is treated as LOWEST, which is also what
// stops the main parseExpression loop once it runs out of known infixes.
var precedences = map[lexer.TokenType]int{
	lexer.TokenEq:       EQUALS,
	lexer.TokenNotEq:    EQUALS,
	lexer.TokenLT:       LESSGREATER,
	lexer.TokenGT:       LESSGREATER,
	lexer.TokenPlus:     SUM,
	lexer.TokenMinus:    SUM,
	lexer.TokenSlash:    PRODUCT,
	lexer.TokenAsterisk: PRODUCT,
	lexer.TokenLParen:   CALL,
	lexer.TokenLBracket: INDEX,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser turns a token stream into an ast.Program. It is stateful and
// single-use: create a new Parser for each source string.
type Parser struct {
	l      *lexer.Lexer
	errors []string

	curTok  lexer.Token
	peekTok lexer.Token

	prefixParseFns map[lexer.TokenType]prefixParseFn
	infixParseFns  map[lexer.TokenType]infixParseFn
}

// New creates a Parser over input and primes its two-token lookahead
// window, and installs the fixed prefix/infix dispatch table. The set of
// token kinds Monkey's grammar can start or continue an expression with is
// closed, so the table is built once here rather than through a "register"
// API.
func New(input string) *Parser {
	p := &Parser{
		l:      lexer.New(input),
		errors: []string{},
	}

	p.prefixParseFns = map[lexer.TokenType]prefixParseFn{
		lexer.TokenIdent:    p.parseIdentifier,
		lexer.TokenInt:      p.parseIntegerLiteral,
		lexer.TokenString:   p.parseStringLiteral,
		lexer.TokenBang:     p.parsePrefixExpression,
		lexer.TokenMinus:    p.parsePrefixExpression,
		lexer.TokenTrue:     p.parseBoolean,
		lexer.TokenFalse:    p.parseBoolean,
		lexer.TokenLParen:   p.parseGroupedExpression,
		lexer.TokenIf:       p.parseIfExpression,
		lexer.TokenFunction: p.parseFunctionLiteral,
		lexer.TokenLBracket: p.parseArrayLiteral,
		lexer.TokenLBrace:   p.parseHashLiteral,
	}

	p.infixParseFns = map[lexer.TokenType]infixParseFn{
		lexer.TokenPlus:     p.parseInfixExpression,
		lexer.TokenMinus:    p.parseInfixExpression,
		lexer.TokenSlash:    p.parseInfixExpression,
		lexer.TokenAsterisk: p.parseInfixExpression,
		lexer.TokenEq:       p.parseInfixExpression,
		lexer.TokenNotEq:    p.parseInfixExpression,
		lexer.TokenLT:       p.parseInfixExpression,
		lexer.TokenGT:       p.parseInfixExpression,
		lexer.TokenLParen:   p.parseCallExpression,
		lexer.TokenLBracket: p.parseIndexExpression,
	}

	p.nextToken()
	p.nextToken()

	return p
}

// Errors returns every parse error accumulated so far.
func (p *Parser) Errors() []string { return p.errors }

// nextToken advances the lookahead window by one token.
func (p *Parser) nextToken() {
	p.curTok = p.peekTok
	p.peekTok = p.l.NextToken()
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool  { return p.curTok.Type == t }
func (p *Parser) peekTokenIs(t lexer.TokenType) bool { return p.peekTok.Type == t }

// expectPeek advances past peekTok if it has type t, recording a parse
// error and returning false otherwise.
func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t lexer.TokenType) {
	msg := fmt.Sprintf("expected next token to be %s, got %s instead", t, p.peekTok.Type)
	p.errors = append(p.errors, msg)
}

func (p *Parser) noPrefixParseFnError(t lexer.TokenType) {
	msg := fmt.Sprintf("no prefix parse fn for %s found", t)
	p.errors = append(p.errors, msg)
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekTok.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curTok.Type]; ok {
		return pr
	}
	return LOWEST
}

// ParseProgram parses the whole token stream into an ast.Program, one
// statement at a time until EOF. Errors() holds any parse errors afterward;
// callers must not attempt to evaluate or compile a Program with non-empty
// Errors().
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{Statements: []ast.Statement{}}

	for !p.curTokenIs(lexer.TokenEOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}

	return program
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curTok.Type {
	case lexer.TokenLet:
		return p.parseLetStatement()
	case lexer.TokenReturn:
		return p.parseReturnStatement()
	default:
		return p.parseExpressionStatement()
	}
}

// parseLetStatement parses `let <ident> = <expr> ;`. The `=` is mandatory;
// the value is a full expression.
func (p *Parser) parseLetStatement() ast.Statement {
	stmt := &ast.LetStatement{Token: p.curTok}

	if !p.expectPeek(lexer.TokenIdent) {
		return nil
	}

	stmt.Name = &ast.Identifier{Token: p.curTok, Value: p.curTok.Literal}

	if !p.expectPeek(lexer.TokenAssign) {
		return nil
	}

	p.nextToken()

	stmt.Value = p.parseExpression(LOWEST)

	if fl, ok := stmt.Value.(*ast.FunctionLiteral); ok {
		fl.Name = stmt.Name.Value
	}

	if p.peekTokenIs(lexer.TokenSemicolon) {
		p.nextToken()
	}

	return stmt
}

// parseReturnStatement parses `return <expr>? ;`. An immediate `;` yields a
// ReturnStatement with a nil ReturnValue, which the evaluator normalizes to
// Null and the compiler lowers to OpReturnNull.
func (p *Parser) parseReturnStatement() ast.Statement {
	stmt := &ast.ReturnStatement{Token: p.curTok}

	p.nextToken()

	if !p.curTokenIs(lexer.TokenSemicolon) {
		stmt.ReturnValue = p.parseExpression(LOWEST)
	}

	if p.peekTokenIs(lexer.TokenSemicolon) {
		p.nextToken()
	}

	return stmt
}

// parseExpressionStatement parses a bare expression used as a statement.
// The trailing `;` is optional, which is what lets a block's last statement
// double as that block's value.
func (p *Parser) parseExpressionStatement() ast.Statement {
	stmt := &ast.ExpressionStatement{Token: p.curTok}

	stmt.Expression = p.parseExpression(LOWEST)

	if p.peekTokenIs(lexer.TokenSemicolon) {
		p.nextToken()
	}

	return stmt
}

// parseExpression is the heart of the Pratt parser: it parses a prefix
// expression, then repeatedly extends it with infix expressions as long as
// the next operator binds tighter than precedence.
func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curTok.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curTok.Type)
		return nil
	}
	leftExp := prefix()

	for !p.peekTokenIs(lexer.TokenSemicolon) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekTok.Type]
		if infix == nil {
			return leftExp
		}

		p.nextToken()

		leftExp = infix(leftExp)
	}

	return leftExp
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curTok, Value: p.curTok.Literal}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	lit := &ast.IntegerLiteral{Token: p.curTok}

	value, err := strconv.ParseInt(p.curTok.Literal, 10, 64)
	if err != nil {
		msg := fmt.Sprintf("could not parse %q as integer", p.curTok.Literal)
		p.errors = append(p.errors, msg)
		return nil
	}

	lit.Value = value
	return lit
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curTok, Value: p.curTok.Literal}
}

func (p *Parser) parseBoolean() ast.Expression {
	return &ast.Boolean{Token: p.curTok, Value: p.curTokenIs(lexer.TokenTrue)}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expression := &ast.PrefixExpression{
		Token:    p.curTok,
		Operator: p.curTok.Literal,
	}

	p.nextToken()

	expression.Right = p.parseExpression(PREFIX)

	return expression
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expression := &ast.InfixExpression{
		Token:    p.curTok,
		Operator: p.curTok.Literal,
		Left:     left,
	}

	precedence := p.curPrecedence()
	p.nextToken()
	expression.Right = p.parseExpression(precedence)

	return expression
}

// parseGroupedExpression parses `( expr )`, reparsing the interior at
// LOWEST precedence so the parentheses only override precedence, never
// introduce new grammar.
func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()

	exp := p.parseExpression(LOWEST)

	if !p.expectPeek(lexer.TokenRParen) {
		return nil
	}

	return exp
}

// parseIfExpression parses `if ( cond ) { block } (else { block })?`.
func (p *Parser) parseIfExpression() ast.Expression {
	expression := &ast.IfExpression{Token: p.curTok}

	if !p.expectPeek(lexer.TokenLParen) {
		return nil
	}

	p.nextToken()
	expression.Condition = p.parseExpression(LOWEST)

	if !p.expectPeek(lexer.TokenRParen) {
		return nil
	}

	if !p.expectPeek(lexer.TokenLBrace) {
		return nil
	}

	expression.Consequence = p.parseBlockStatement()

	if p.peekTokenIs(lexer.TokenElse) {
		p.nextToken()

		if !p.expectPeek(lexer.TokenLBrace) {
			return nil
		}

		expression.Alternative = p.parseBlockStatement()
	}

	return expression
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curTok}
	block.Statements = []ast.Statement{}

	p.nextToken()

	for !p.curTokenIs(lexer.TokenRBrace) && !p.curTokenIs(lexer.TokenEOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		}
		p.nextToken()
	}

	return block
}

// parseFunctionLiteral parses `fn ( params ) { block }`.
func (p *Parser) parseFunctionLiteral() ast.Expression {
	lit := &ast.FunctionLiteral{Token: p.curTok}

	if !p.expectPeek(lexer.TokenLParen) {
		return nil
	}

	lit.Parameters = p.parseFunctionParameters()

	if !p.expectPeek(lexer.TokenLBrace) {
		return nil
	}

	lit.Body = p.parseBlockStatement()

	return lit
}

func (p *Parser) parseFunctionParameters() []*ast.Identifier {
	identifiers := []*ast.Identifier{}

	if p.peekTokenIs(lexer.TokenRParen) {
		p.nextToken()
		return identifiers
	}

	p.nextToken()

	identifiers = append(identifiers, &ast.Identifier{Token: p.curTok, Value: p.curTok.Literal})

	for p.peekTokenIs(lexer.TokenComma) {
		p.nextToken()
		p.nextToken()
		identifiers = append(identifiers, &ast.Identifier{Token: p.curTok, Value: p.curTok.Literal})
	}

	if !p.expectPeek(lexer.TokenRParen) {
		return nil
	}

	return identifiers
}

// parseCallExpression parses `(` as an infix operator producing a
// CallExpression: fn as the already-parsed left-hand side, followed by a
// comma-separated argument list.
func (p *Parser) parseCallExpression(function ast.Expression) ast.Expression {
	exp := &ast.CallExpression{Token: p.curTok, Function: function}
	exp.Arguments = p.parseExpressionList(lexer.TokenRParen)
	return exp
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	array := &ast.ArrayLiteral{Token: p.curTok}
	array.Elements = p.parseExpressionList(lexer.TokenRBracket)
	return array
}

// parseExpressionList parses a comma-separated list of expressions
// terminated by end, consuming end. Used for call arguments and array
// literal elements.
func (p *Parser) parseExpressionList(end lexer.TokenType) []ast.Expression {
	list := []ast.Expression{}

	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}

	p.nextToken()
	list = append(list, p.parseExpression(LOWEST))

	for p.peekTokenIs(lexer.TokenComma) {
		p.nextToken()
		p.nextToken()
		list = append(list, p.parseExpression(LOWEST))
	}

	if !p.expectPeek(end) {
		return nil
	}

	return list
}

// parseIndexExpression parses `[` as an infix operator: left[index].
func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	exp := &ast.IndexExpression{Token: p.curTok, Left: left}

	p.nextToken()
	exp.Index = p.parseExpression(LOWEST)

	if !p.expectPeek(lexer.TokenRBracket) {
		return nil
	}

	return exp
}

// parseHashLiteral parses `{ (expr : expr (, expr : expr)*)? }`, recording
// insertion order separately since Go maps don't preserve it.
func (p *Parser) parseHashLiteral() ast.Expression {
	hash := &ast.HashLiteral{Token: p.curTok, Pairs: make(map[ast.Expression]ast.Expression)}

	for !p.peekTokenIs(lexer.TokenRBrace) {
		p.nextToken()
		key := p.parseExpression(LOWEST)

		if !p.expectPeek(lexer.TokenColon) {
			return nil
		}

		p.nextToken()
		value := p.parseExpression(LOWEST)

		hash.Pairs[key] = value
		hash.Order = append(hash.Order, key)

		if !p.peekTokenIs(lexer.TokenRBrace) && !p.expectPeek(lexer.TokenComma) {
			return nil
		}
	}

	if !p.expectPeek(lexer.TokenRBrace) {
		return nil
	}

	return hash
}
