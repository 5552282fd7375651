package match

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/byjtew/libgeodesk/feature"
	"github.com/byjtew/libgeodesk/golerr"
)

// Selector pairs a compiled Program with the feature-type mask that
// Accept tests before running it. A Selector carries no index bits:
// which tiles the executor walks does not depend on the Selector.
type Selector struct {
	AcceptedTypes feature.Type
	Matcher       *Matcher
}

// Accept reports whether feature f matches this selector.
func (s *Selector) Accept(typ feature.Type, tags feature.TagTable) bool {
	if typ&s.AcceptedTypes == 0 {
		return false
	}
	return s.Matcher.Accept(typ, tags)
}

// Compile parses a GOQL query into one Selector per top-level,
// comma-separated alternative (spec §6: "multiple top-level queries
// separated by comma denote OR"). Each Selector is independently
// tested; a feature matches the query if it matches any Selector.
func Compile(query string) ([]*Selector, error) {
	p := &parser{src: []rune(query), query: query}
	var out []*Selector
	for {
		p.skipSpace()
		sel, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		out = append(out, &Selector{
			AcceptedTypes: sel.acceptedTypes,
			Matcher:       newMatcher(compileSelector(sel)),
		})
		p.skipSpace()
		if p.atEnd() {
			break
		}
		if p.peek() != ',' {
			return nil, golerr.NewQuerySyntaxError(p.query, p.pos, "expected ',' or end of query")
		}
		p.pos++
	}
	return out, nil
}

type parser struct {
	src   []rune
	pos   int
	query string
}

func (p *parser) atEnd() bool  { return p.pos >= len(p.src) }
func (p *parser) peek() rune   { return p.src[p.pos] }
func (p *parser) skipSpace() {
	for !p.atEnd() && unicode.IsSpace(p.peek()) {
		p.pos++
	}
}

func (p *parser) fail(reason string) error {
	return golerr.NewQuerySyntaxError(p.query, p.pos, reason)
}

// parseTopLevel parses one type-selector-plus-clauses group, e.g.
// `n[highway=primary][name]`, up to (but not consuming) a top-level
// comma or end of input.
func (p *parser) parseTopLevel() (*selector, error) {
	p.skipSpace()
	types, err := p.parseTypeSelector()
	if err != nil {
		return nil, err
	}
	sel := newSelector(types)

	for {
		p.skipSpace()
		if p.atEnd() || p.peek() == ',' {
			break
		}
		if p.peek() != '[' {
			return nil, p.fail("expected '[' to start a tag clause")
		}
		clause, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		sel.addClause(clause)
	}
	return sel, nil
}

func (p *parser) parseTypeSelector() (feature.Type, error) {
	if p.atEnd() {
		return 0, p.fail("expected a type selector (n, w, a, or r)")
	}
	switch p.peek() {
	case 'n':
		p.pos++
		return feature.Node, nil
	case 'w':
		p.pos++
		return feature.Way, nil
	case 'r':
		p.pos++
		return feature.Relation, nil
	case 'a':
		p.pos++
		return feature.AnyType, nil
	default:
		return 0, p.fail("expected a type selector (n, w, a, or r)")
	}
}

// parseClause parses one bracketed clause: [k], [!k], or
// [k<op>value] where op is one of = != < <= > >= ~.
func (p *parser) parseClause() (*tagClause, error) {
	p.pos++ // consume '['
	p.skipSpace()

	negatePresence := false
	if !p.atEnd() && p.peek() == '!' {
		negatePresence = true
		p.pos++
	}

	key, err := p.parseIdent()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if p.atEnd() {
		return nil, p.fail("unterminated clause")
	}
	if p.peek() == ']' {
		p.pos++
		kind := clauseHasKey
		if negatePresence {
			kind = clauseNoKey
		}
		return &tagClause{keyOp: keyOp{key: key}, kind: kind}, nil
	}
	if negatePresence {
		return nil, p.fail("'!' is only valid for bare key presence, e.g. [!oneway]")
	}

	opStr, err := p.parseOperator()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.atEnd() || p.peek() != ']' {
		return nil, p.fail("expected ']' to close clause")
	}
	p.pos++

	clause := &tagClause{keyOp: keyOp{key: key}}
	if opStr == "~" {
		clause.kind = clauseRegex
		clause.regex = value
		return clause, nil
	}
	if opStr == "=" || opStr == "!=" {
		clause.kind = clauseStrEq
		if opStr == "!=" {
			clause.kind = clauseStrNe
		}
		clause.str = value
		return clause, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, p.fail("expected a numeric value for " + opStr)
	}
	clause.kind = clauseDouble
	clause.dbl = f
	switch opStr {
	case "<":
		clause.dblOp = DoubleLt
	case "<=":
		clause.dblOp = DoubleLe
	case ">":
		clause.dblOp = DoubleGt
	case ">=":
		clause.dblOp = DoubleGe
	}
	return clause, nil
}

func (p *parser) parseIdent() (string, error) {
	start := p.pos
	for !p.atEnd() && isIdentRune(p.peek()) {
		p.pos++
	}
	if p.pos == start {
		return "", p.fail("expected a tag key")
	}
	return string(p.src[start:p.pos]), nil
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == ':' || r == '-'
}

var operators = []string{"!=", "<=", ">=", "=", "<", ">", "~"}

func (p *parser) parseOperator() (string, error) {
	for _, o := range operators {
		if strings.HasPrefix(string(p.src[p.pos:]), o) {
			p.pos += len(o)
			return o, nil
		}
	}
	return "", p.fail("expected a comparison operator (=, !=, <, <=, >, >=, ~)")
}

func (p *parser) parseValue() (string, error) {
	if p.atEnd() {
		return "", p.fail("expected a value")
	}
	if p.peek() == '"' {
		p.pos++
		start := p.pos
		for !p.atEnd() && p.peek() != '"' {
			p.pos++
		}
		if p.atEnd() {
			return "", p.fail("unterminated quoted value")
		}
		val := string(p.src[start:p.pos])
		p.pos++
		return val, nil
	}
	start := p.pos
	for !p.atEnd() && p.peek() != ']' && !unicode.IsSpace(p.peek()) {
		p.pos++
	}
	if p.pos == start {
		return "", p.fail("expected a value")
	}
	return string(p.src[start:p.pos]), nil
}
