package grammar

import (
	"strings"
)

// Parse parses a filter expression.
func Parse(text string) (Node, error) {
	p, err := newParser(text)
	if err != nil {
		return nil, err
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF("'and'", "'or'"); err != nil {
		return nil, err
	}
	return node, nil
}

// ParseSearch parses a full search string.
func ParseSearch(text string) (*Search, error) {
	p, err := newParser(text)
	if err != nil {
		return nil, err
	}
	search, err := p.parseSearch()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return search, nil
}

// ParseOrder parses a comma separated list of order terms.
func ParseOrder(text string) ([]*OrderTerm, error) {
	p, err := newParser(text)
	if err != nil {
		return nil, err
	}
	terms, err := p.parseOrderTerms()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF("','"); err != nil {
		return nil, err
	}
	return terms, nil
}

type parser struct {
	input string
	toks  []token
	pos   int
}

func newParser(text string) (*parser, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	return &parser{input: text, toks: toks}, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

// atKeyword reports whether the current token is the word kw, ignoring case.
func (p *parser) atKeyword(kw string) bool {
	tok := p.peek()
	return tok.kind == tokWord && strings.EqualFold(tok.text, kw)
}

func (p *parser) fail(tok token, expected []string, format string, args ...any) *ParseError {
	found := tok.text
	if tok.kind == tokString {
		found = `"` + tok.text + `"`
	}
	return newParseError(ErrorKindSyntax, p.input, tok.offset, found, expected, format, args...)
}

func (p *parser) unexpected(tok token, expected ...string) *ParseError {
	if tok.kind == tokEOF {
		return p.fail(tok, expected, "unexpected end of input")
	}
	return p.fail(tok, expected, "unexpected %s %q", tok.kind, tok.text)
}

func (p *parser) expectEOF(alternatives ...string) error {
	tok := p.peek()
	if tok.kind == tokEOF {
		return nil
	}
	return p.unexpected(tok, append(alternatives, "end of input")...)
}

func (p *parser) expect(kind tokenKind) (token, error) {
	tok := p.peek()
	if tok.kind != kind {
		return tok, p.unexpected(tok, kind.String())
	}
	return p.next(), nil
}

// parseOr parses and_expr [ "or" expr ].
func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	if !p.atKeyword("or") {
		return left, nil
	}
	p.next()
	right, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	return &BoolExpr{Op: "or", Left: left, Right: right}, nil
}

// parseAnd parses primary [ "and" and_expr ].
func (p *parser) parseAnd() (Node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if !p.atKeyword("and") {
		return left, nil
	}
	p.next()
	right, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	return &BoolExpr{Op: "and", Left: left, Right: right}, nil
}

func (p *parser) parsePrimary() (Node, error) {
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if tok := p.peek(); tok.kind != tokRParen {
			return nil, p.unexpected(tok, "'and'", "'or'", "')'")
		}
		p.next()
		return &Group{Inner: inner}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Node, error) {
	start := p.peek().offset
	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}

	tok := p.peek()
	if tok.kind == tokOp {
		p.next()
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		return &DomainExpr{Path: path, Op: tok.text, Value: lit, Offset: start}, nil
	}

	negated := false
	if p.atKeyword("not") {
		p.next()
		negated = true
	}

	var (
		op    string
		value Node
	)
	switch {
	case p.atKeyword("in"):
		p.next()
		op = "in"
		value, err = p.parseList()
	case p.atKeyword("like"):
		p.next()
		op = "like"
		value, err = p.parseStringLiteral()
	case p.atKeyword("between"):
		p.next()
		op = "between"
		value, err = p.parseRange()
	default:
		if negated {
			return nil, p.unexpected(p.peek(), "'in'", "'like'", "'between'")
		}
		return nil, p.unexpected(p.peek(), "comparison operator", "'in'", "'like'", "'between'", "'not'")
	}
	if err != nil {
		return nil, err
	}
	if negated {
		op = "not " + op
	}
	return &DomainExpr{Path: path, Op: op, Value: value, Offset: start}, nil
}

// parsePath parses segment { "." segment } with lowercase segments.
func (p *parser) parsePath() ([]string, error) {
	var path []string
	for {
		tok := p.peek()
		if tok.kind != tokWord {
			return nil, p.unexpected(tok, "attribute path")
		}
		if !isPathSegment(tok.text) {
			return nil, p.fail(tok, []string{"lowercase attribute path"}, "attribute path segment %q must be lowercase", tok.text)
		}
		p.next()
		path = append(path, tok.text)
		if p.peek().kind != tokDot {
			return path, nil
		}
		p.next()
	}
}

func (p *parser) parseLiteral() (*Literal, error) {
	tok := p.peek()
	var kind LiteralKind
	switch tok.kind {
	case tokInt:
		kind = LitInt
	case tokFloat:
		kind = LitFloat
	case tokString:
		kind = LitString
	case tokDate:
		kind = LitDate
	case tokDateTime:
		kind = LitDateTime
	case tokWord:
		if !strings.EqualFold(tok.text, "true") && !strings.EqualFold(tok.text, "false") {
			return nil, p.unexpected(tok, "literal")
		}
		kind = LitBool
	default:
		return nil, p.unexpected(tok, "literal")
	}
	p.next()
	return &Literal{Kind: kind, Raw: tok.text, Offset: tok.offset}, nil
}

func (p *parser) parseStringLiteral() (*Literal, error) {
	tok := p.peek()
	if tok.kind != tokString {
		return nil, p.unexpected(tok, "string")
	}
	return p.parseLiteral()
}

// parseList parses "(" literal { "," literal } ")".
func (p *parser) parseList() (*List, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	list := &List{}
	for {
		lit, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		list.Items = append(list.Items, lit)

		tok := p.peek()
		switch tok.kind {
		case tokComma:
			p.next()
		case tokRParen:
			p.next()
			return list, nil
		default:
			return nil, p.unexpected(tok, "','", "')'")
		}
	}
}

// parseRange parses literal "and" literal. The "and" here belongs to
// between and never starts a conjunction.
func (p *parser) parseRange() (*Range, error) {
	low, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	if !p.atKeyword("and") {
		return nil, p.unexpected(p.peek(), "'and'")
	}
	p.next()
	high, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	return &Range{Low: low, High: high}, nil
}

func (p *parser) parseSearch() (*Search, error) {
	domainTok := p.peek()
	domain, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	if len(domain) != 2 {
		return nil, p.fail(domainTok, []string{"<feature>.<basename>", "global.<basename>"},
			"domain %q must have exactly two segments", strings.Join(domain, "."))
	}
	search := &Search{Domain: domain}

	if p.atKeyword("filter") {
		p.next()
		if search.Filter, err = p.parseOr(); err != nil {
			return nil, err
		}
	}
	if p.atKeyword("order") {
		p.next()
		if search.Order, err = p.parseOrderTerms(); err != nil {
			return nil, err
		}
	}
	if p.atKeyword("limit") {
		p.next()
		tok := p.peek()
		if tok.kind != tokInt || strings.HasPrefix(tok.text, "-") {
			return nil, p.unexpected(tok, "positive integer")
		}
		p.next()
		search.Limit = &Literal{Kind: LitInt, Raw: tok.text, Offset: tok.offset}
	}

	if tok := p.peek(); tok.kind != tokEOF {
		expected := []string{"'order'", "'limit'", "end of input"}
		switch {
		case search.Limit != nil:
			expected = []string{"end of input"}
		case search.Order != nil:
			expected = []string{"','", "'limit'", "end of input"}
		case search.Filter != nil:
			expected = []string{"'and'", "'or'", "'order'", "'limit'", "end of input"}
		default:
			expected = append([]string{"'filter'"}, expected...)
		}
		return nil, p.unexpected(tok, expected...)
	}
	return search, nil
}

// parseOrderTerms parses term { "," term }.
func (p *parser) parseOrderTerms() ([]*OrderTerm, error) {
	var terms []*OrderTerm
	for {
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		term := &OrderTerm{Path: path}
		switch {
		case p.atKeyword("asc"):
			p.next()
			term.Direction = "asc"
		case p.atKeyword("desc"):
			p.next()
			term.Direction = "desc"
		}
		terms = append(terms, term)

		if p.peek().kind != tokComma {
			return terms, nil
		}
		p.next()
	}
}

func isPathSegment(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c == '_':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
