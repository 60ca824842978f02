package condition

import (
	"fmt"
	"strings"
)

// Parse parses an If header value.
//
// Errors wrap ErrMalformedCondition and carry the byte offset at which
// parsing stopped.
func Parse(header string) (*Condition, error) {
	p := &parser{input: header}

	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("empty header")
	}

	// Optional resource tag. Its value carries no meaning here.
	if p.peek() == '<' {
		if _, err := p.delimited('<', '>'); err != nil {
			return nil, err
		}
		p.skipSpace()
	}

	cond := &Condition{}
	for !p.eof() {
		if p.peek() != '(' {
			return nil, p.errorf("expected '(' but found %q", p.peek())
		}
		group, err := p.group()
		if err != nil {
			return nil, err
		}
		cond.Groups = append(cond.Groups, group)
		p.skipSpace()
	}

	if len(cond.Groups) == 0 {
		return nil, p.errorf("no condition list")
	}
	return cond, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *parser) peek() byte {
	return p.input[p.pos]
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.peek() {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrMalformedCondition, p.pos, fmt.Sprintf(format, args...))
}

// group parses "(" term+ ")".
func (p *parser) group() (Group, error) {
	start := p.pos
	p.pos++ // (

	var group Group
	for {
		p.skipSpace()
		if p.eof() {
			p.pos = start
			return Group{}, p.errorf("unbalanced '('")
		}
		if p.peek() == ')' {
			p.pos++
			break
		}

		term, err := p.term()
		if err != nil {
			return Group{}, err
		}
		group.Terms = append(group.Terms, term)
	}

	if len(group.Terms) == 0 {
		p.pos = start
		return Group{}, p.errorf("empty group")
	}
	return group, nil
}

// term parses ["Not"] ( "<" token ">" | "[" etag "]" ).
func (p *parser) term() (Term, error) {
	var term Term

	if p.hasNotPrefix() {
		term.Negated = true
		p.pos += len("not")
		p.skipSpace()
		if p.eof() {
			return Term{}, p.errorf("'Not' without operand")
		}
	}

	var err error
	switch p.peek() {
	case '<':
		term.Kind = TermToken
		term.Value, err = p.delimited('<', '>')
	case '[':
		term.Kind = TermETag
		term.Value, err = p.delimited('[', ']')
	default:
		return Term{}, p.errorf("unexpected %q in group", p.peek())
	}
	if err != nil {
		return Term{}, err
	}
	return term, nil
}

func (p *parser) hasNotPrefix() bool {
	rest := p.input[p.pos:]
	if len(rest) < 3 || !strings.EqualFold(rest[:3], "not") {
		return false
	}
	if len(rest) == 3 {
		return true
	}
	switch rest[3] {
	case ' ', '\t', '\r', '\n', '<', '[':
		return true
	}
	return false
}

// delimited consumes open ... closing and returns the trimmed text between
// the delimiters.
func (p *parser) delimited(open, closing byte) (string, error) {
	start := p.pos
	p.pos++ // open

	end := strings.IndexByte(p.input[p.pos:], closing)
	if end < 0 {
		p.pos = start
		return "", p.errorf("unbalanced '%c'", open)
	}

	value := p.input[p.pos : p.pos+end]
	if strings.IndexByte(value, open) >= 0 {
		p.pos = start
		return "", p.errorf("nested '%c'", open)
	}
	p.pos += end + 1

	value = strings.TrimSpace(value)
	if value == "" {
		p.pos = start
		return "", p.errorf("empty '%c%c'", open, closing)
	}
	return value, nil
}
