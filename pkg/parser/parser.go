package parser

import (
	"math"
	"strconv"

	"github.com/xplshn/gsm/pkg/ast"
	"github.com/xplshn/gsm/pkg/config"
	"github.com/xplshn/gsm/pkg/token"
	"github.com/xplshn/gsm/pkg/util"
)

// Parser holds the state for the parsing process. tokens must end with an
// EOF token; sitting on it is the exhausted state.
type Parser struct {
	tokens  []token.Token
	pos     int
	current token.Token
	cfg     *config.Config
	diags   []util.Diagnostic
}

// NewParser creates and initializes a new Parser from a token stream
func NewParser(tokens []token.Token, cfg *config.Config) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		tokens = append(tokens, token.Token{Type: token.EOF})
	}
	return &Parser{tokens: tokens, current: tokens[0], cfg: cfg}
}

// Diagnostics returns the warnings collected while parsing.
func (p *Parser) Diagnostics() []util.Diagnostic { return p.diags }

func (p *Parser) exhausted() bool { return p.current.Type == token.EOF }

func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
		p.current = p.tokens[p.pos]
	}
}

func (p *Parser) check(tokType token.Type) bool {
	return p.current.Type == tokType
}

// consume advances past the current token if its text is exactly expected.
func (p *Parser) consume(expected string) error {
	if p.exhausted() || p.current.Value != expected {
		return &util.SyntaxError{Kind: util.UnexpectedToken, Tok: p.current, Expected: expected}
	}
	p.advance()
	return nil
}

func (p *Parser) invalid() error {
	return &util.SyntaxError{Kind: util.InvalidToken, Tok: p.current}
}

// Parse reads assignments until the token stream is exhausted.
func (p *Parser) Parse() ([]*ast.Node, error) {
	var stmts []*ast.Node
	if p.exhausted() && !p.cfg.IsFeatureEnabled(config.FeatAllowEmpty) {
		return nil, &util.SyntaxError{Kind: util.EmptyProgram, Tok: p.current}
	}
	for !p.exhausted() {
		stmt, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		if p.cfg.IsFeatureEnabled(config.FeatSemicolons) && p.check(token.Semi) {
			util.Warnf(&p.diags, p.cfg, config.WarnSemicolon, p.current, "';' statement terminators are a gsm extension")
			p.advance()
		}
	}
	if len(stmts) == 0 {
		util.Warnf(&p.diags, p.cfg, config.WarnEmpty, p.current, "program contains no statements")
	}
	return stmts, nil
}

// parseAssign handles `name ('[' expr ']')? '=' expr`. Any word is a valid
// target name, digits included.
func (p *Parser) parseAssign() (*ast.Node, error) {
	tok := p.current
	if !tok.IsWord() {
		return nil, p.invalid()
	}
	p.advance()

	var index *ast.Node
	if p.check(token.LBracket) {
		p.advance()
		var err error
		if index, err = p.parseExpr(); err != nil {
			return nil, err
		}
		if err := p.consume("]"); err != nil {
			return nil, err
		}
	}
	if err := p.consume("="); err != nil {
		return nil, err
	}
	rhs, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return ast.NewAssign(tok, tok.Value, index, rhs), nil
}

// parseExpr handles the three expression forms: '-' NUMBER, '-' term, and a
// plain term, each followed by any number of '+'/'-' terms.
func (p *Parser) parseExpr() (*ast.Node, error) {
	var left *ast.Node
	if p.check(token.Minus) {
		minusTok := p.current
		p.advance()
		if p.check(token.Number) && p.cfg.IsFeatureEnabled(config.FeatFoldNegLiteral) {
			val, err := p.numberValue(true)
			if err != nil {
				return nil, err
			}
			left = ast.NewNegLiteral(minusTok, val)
			p.advance()
		} else {
			operand, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			left = ast.NewNeg(minusTok, operand)
		}
	} else {
		var err error
		if left, err = p.parseTerm(); err != nil {
			return nil, err
		}
	}

	for p.check(token.Plus) || p.check(token.Minus) {
		opTok := p.current
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(opTok, opTok.Type, left, right)
	}
	return left, nil
}

func (p *Parser) parseTerm() (*ast.Node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.check(token.Star) || p.check(token.Slash) {
		opTok := p.current
		p.advance()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryOp(opTok, opTok.Type, left, right)
	}
	return left, nil
}

func (p *Parser) parseFactor() (*ast.Node, error) {
	tok := p.current
	switch tok.Type {
	case token.Number:
		val, err := p.numberValue(false)
		if err != nil {
			return nil, err
		}
		p.advance()
		return ast.NewNumber(tok, val), nil
	case token.Ident:
		p.advance()
		if !p.check(token.LBracket) {
			return ast.NewIdent(tok, tok.Value), nil
		}
		p.advance()
		index, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.consume("]"); err != nil {
			return nil, err
		}
		return ast.NewSubscript(tok, tok.Value, index), nil
	}
	return nil, p.invalid()
}

// numberValue converts the current Number token. With negate set the
// magnitude may reach 1<<63 so that the most negative int64 is spellable.
func (p *Parser) numberValue(negate bool) (int64, error) {
	mag, err := strconv.ParseUint(p.current.Value, 10, 64)
	if err != nil {
		detail := "not a decimal integer"
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			detail = "out of range"
		}
		return 0, &util.SyntaxError{Kind: util.InvalidNumber, Tok: p.current, Detail: detail}
	}
	switch {
	case negate && mag == 1<<63:
		return math.MinInt64, nil
	case mag > math.MaxInt64:
		return 0, &util.SyntaxError{Kind: util.InvalidNumber, Tok: p.current, Detail: "out of range"}
	case negate:
		return -int64(mag), nil
	}
	return int64(mag), nil
}
