// Package parser implements the recursive-descent parser of spec §4.2:
// a two-construct grammar (Statement and colon Definition) over the
// lexer's token stream.
package parser

import (
	"roth/ast"
	"roth/token"
)

// ParseError reports a syntactic problem together with the position at
// which the parser noticed it.
type ParseError struct {
	Message string
	Pos     token.Position
}

func (e *ParseError) Error() string {
	return "ParseError: " + e.Message + " at " + e.Pos.String()
}

// Parser consumes a pre-lexed token slice and produces a Program AST.
type Parser struct {
	toks []token.Token
	pos  int
}

// New creates a Parser over an already-scanned token stream.
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks}
}

// Parse parses an already-scanned token stream.
func Parse(toks []token.Token) (*ast.Program, error) {
	return New(toks).ParseProgram()
}

func (p *Parser) cur() token.Token { return p.toks[p.pos] }
func (p *Parser) advance()         { p.pos++ }
func (p *Parser) atEnd() bool      { return p.cur().Type == token.EOF }

// skipComments discards COMMENT tokens; comments are legal at every
// position a Statement is expected.
func (p *Parser) skipComments() {
	for !p.atEnd() && p.cur().Type == token.COMMENT {
		p.advance()
	}
}

// ParseProgram parses the entire token stream as a flat, top-level
// sequence of statements.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	nodes, err := p.parseStatementList(token.EOF, false)
	if err != nil {
		return nil, err
	}
	return &ast.Program{Nodes: nodes}, nil
}

// parseStatementList parses Statement*, stopping when the current token is
// `stopAt` (token.EOF for the top level, token.ENDDEFINITION inside a
// definition). It folds the `N CONSTANT NAME` pattern into a single
// VariableDeclaration, since CONSTANT retroactively consumes the number
// statement that preceded it. inDefinition forbids nesting: a ':' seen
// while already parsing a definition's body is a ParseError, not a
// recursive definition.
func (p *Parser) parseStatementList(stopAt token.Type, inDefinition bool) ([]ast.Node, error) {
	var nodes []ast.Node
	for {
		p.skipComments()
		if p.atEnd() {
			if stopAt == token.EOF {
				return nodes, nil
			}
			return nil, &ParseError{Message: "unexpected end of input inside definition", Pos: p.cur().Pos}
		}
		tok := p.cur()
		if tok.Type == stopAt {
			p.advance()
			return nodes, nil
		}

		switch tok.Type {
		case token.ENDDEFINITION:
			return nil, &ParseError{Message: "unexpected ';' outside of a definition", Pos: tok.Pos}

		case token.STARTDEFINITION:
			if inDefinition {
				return nil, &ParseError{Message: "nested definitions are not permitted", Pos: tok.Pos}
			}
			def, err := p.parseDefinition()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, def)

		case token.WORD:
			p.advance()
			switch tok.Text {
			case "VARIABLE":
				name, err := p.expectWord("VARIABLE must be followed by a name", tok.Pos)
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, &ast.VariableDeclaration{Name: name.Text, Pos: tok.Pos})

			case "CONSTANT":
				if len(nodes) == 0 {
					return nil, &ParseError{Message: "CONSTANT must follow a number", Pos: tok.Pos}
				}
				num, ok := nodes[len(nodes)-1].(*ast.Number)
				if !ok {
					return nil, &ParseError{Message: "CONSTANT must follow a number", Pos: tok.Pos}
				}
				name, err := p.expectWord("CONSTANT must be followed by a name", tok.Pos)
				if err != nil {
					return nil, err
				}
				nodes[len(nodes)-1] = &ast.VariableDeclaration{
					Name: name.Text, Constant: true, Value: num.Value, Pos: num.Pos,
				}

			default:
				nodes = append(nodes, &ast.Word{Name: tok.Text, Pos: tok.Pos})
			}

		default:
			node, err := p.parseStatement()
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		}
	}
}

func (p *Parser) expectWord(errMsg string, at token.Position) (token.Token, error) {
	p.skipComments()
	if p.atEnd() || p.cur().Type != token.WORD {
		return token.Token{}, &ParseError{Message: errMsg, Pos: at}
	}
	tok := p.cur()
	p.advance()
	return tok, nil
}

// parseStatement parses a single Number or StringLiteral statement. Word
// and definition handling live in parseStatementList, since CONSTANT
// folding needs visibility into the list under construction.
func (p *Parser) parseStatement() (ast.Node, error) {
	tok := p.cur()
	switch tok.Type {
	case token.NUMBER:
		p.advance()
		return &ast.Number{Value: tok.Value, Pos: tok.Pos}, nil

	case token.STRING:
		p.advance()
		return &ast.StringLiteral{Text: tok.Text, Pos: tok.Pos}, nil

	case token.STARTDEFINITION:
		return nil, &ParseError{Message: "nested definitions are not permitted", Pos: tok.Pos}

	case token.ENDDEFINITION:
		return nil, &ParseError{Message: "unexpected ';'", Pos: tok.Pos}

	case token.EOF:
		return nil, &ParseError{Message: "unexpected end of input", Pos: tok.Pos}

	default:
		return nil, &ParseError{Message: "unexpected token", Pos: tok.Pos}
	}
}

// parseDefinition parses `: NAME Statement* ;`. Nesting is forbidden: a
// STARTDEFINITION encountered while already inside a definition is an
// error, as is running off the end of input before the closing ';'.
func (p *Parser) parseDefinition() (*ast.Definition, error) {
	startTok := p.cur()
	p.advance() // consume ':'

	nameTok, err := p.expectWord("definition name must be a word, not a number", startTok.Pos)
	if err != nil {
		return nil, err
	}

	body, err := p.parseStatementList(token.ENDDEFINITION, true)
	if err != nil {
		return nil, err
	}
	return &ast.Definition{Name: nameTok.Text, Body: body, Pos: startTok.Pos}, nil
}
