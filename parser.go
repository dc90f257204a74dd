package mtl

import (
	"fmt"
	"strings"
	"sync"
)

// SyntaxError reports a malformed template or an invalid construct found
// while rendering one.
type SyntaxError struct {
	Pos     int    // byte offset into the template (0-indexed), or -1 if unknown
	Message string // error message without position prefix
}

func (e *SyntaxError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("template syntax error at offset %d: %s", e.Pos, e.Message)
	}
	return "template syntax error: " + e.Message
}

// UnknownFieldError reports a field that no provider claims and that is
// not a variable reference.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return "unknown template field: " + e.Field
}

// syntaxErrorf returns a SyntaxError with no position information, for
// errors detected after parsing.
func syntaxErrorf(format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: -1, Message: fmt.Sprintf(format, args...)}
}

// operators maps each comparison keyword, lowercased, to its canonical
// spelling. Built once; safe for concurrent use.
var operators = sync.OnceValue(func() map[string]string {
	m := make(map[string]string)
	for _, op := range []string{
		"contains", "matches", "startswith", "endswith",
		"==", "!=", "<", "<=", ">", ">=",
	} {
		m[op] = op
	}
	return m
})

// Parse parses a template string into its segment tree without rendering
// it. The returned tree is independent of any Renderer and may be
// inspected or rendered later.
func Parse(template string) (*TemplateString, error) {
	p := &parser{src: template}
	ts, err := p.parseTemplate("")
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.src) {
		// parseTemplate stops only at EOF or a stop character; with no
		// stop characters this is an unbalanced close brace.
		return nil, p.errorf("unbalanced '}'")
	}
	return ts, nil
}

// parser is a single-use recursive-descent parser over one template.
type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: p.pos, Message: fmt.Sprintf(format, args...)}
}

// peek returns the current byte, or 0 at end of input.
func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

// parseTemplate parses segments until end of input or an unbraced stop
// character. The stop character is not consumed.
func (p *parser) parseTemplate(stops string) (*TemplateString, error) {
	ts := &TemplateString{}
	for p.pos < len(p.src) && strings.IndexByte(stops, p.src[p.pos]) < 0 {
		seg, err := p.parseSegment(stops)
		if err != nil {
			return nil, err
		}
		ts.Segments = append(ts.Segments, seg)
	}
	return ts, nil
}

// parseClause parses a nested template clause (bool, combine, default,
// conditional comparand). An empty clause renders as a single empty
// value, so it is normalized to one empty literal segment.
func (p *parser) parseClause(stops string) (*TemplateString, error) {
	ts, err := p.parseTemplate(stops)
	if err != nil {
		return nil, err
	}
	if len(ts.Segments) == 0 {
		ts.Segments = []TemplateSegment{{}}
	}
	return ts, nil
}

// parseSegment parses literal text, an optional expression, and the
// literal text following it.
func (p *parser) parseSegment(stops string) (TemplateSegment, error) {
	pre, err := p.scanText(stops)
	if err != nil {
		return TemplateSegment{}, err
	}
	if p.peek() != '{' {
		return TemplateSegment{Pre: pre}, nil
	}
	expr, err := p.parseExpression()
	if err != nil {
		return TemplateSegment{}, err
	}
	post, err := p.scanText(stops)
	if err != nil {
		return TemplateSegment{}, err
	}
	return TemplateSegment{Pre: pre, Expr: expr, Post: post}, nil
}

// scanText collects literal text up to the next expression, stop
// character, or end of input. A bare close brace is an error; literal
// braces are written {openbrace} and {closebrace}.
func (p *parser) scanText(stops string) (string, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '{' || strings.IndexByte(stops, c) >= 0 {
			break
		}
		if c == '}' {
			return "", p.errorf("unbalanced '}'")
		}
		p.pos++
	}
	return p.src[start:p.pos], nil
}

// scanIdent collects an identifier, which may be empty.
func (p *parser) scanIdent() string {
	start := p.pos
	if p.pos < len(p.src) && isIdentStart(p.src[p.pos]) {
		p.pos++
		for p.pos < len(p.src) && isIdentByte(p.src[p.pos]) {
			p.pos++
		}
	}
	return p.src[start:p.pos]
}

// scanParens consumes a parenthesized argument, tracking nesting, and
// returns its contents.
func (p *parser) scanParens() (string, error) {
	open := p.pos
	p.pos++ // consume '('
	depth := 1
	start := p.pos
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				arg := p.src[start:p.pos]
				p.pos++
				return arg, nil
			}
		}
		p.pos++
	}
	p.pos = open
	return "", p.errorf("missing ')'")
}

// subfield characters run until a byte that starts a later clause.
const subfieldStops = " (|/,?&{}"

// parseExpression parses one brace-delimited expression. The current
// byte is the open brace.
func (p *parser) parseExpression() (*TemplateExpression, error) {
	p.pos++ // consume '{'
	e := &TemplateExpression{}

	if p.peek() == '+' {
		p.pos++
		e.HasDelim = true
		start := p.pos
		for p.pos < len(p.src) {
			c := p.src[p.pos]
			if c == '%' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '%' {
				// %% is an escaped percent sign, not a variable reference.
				p.pos += 2
				continue
			}
			if isIdentStart(c) || c == '%' || c == '}' {
				break
			}
			p.pos++
		}
		e.Delim = p.src[start:p.pos]
	}

	if p.peek() == '%' {
		p.pos++
		name := p.scanIdent()
		if name == "" {
			return nil, p.errorf("expected variable name after '%%'")
		}
		e.Field = "%" + name
	} else {
		e.Field = p.scanIdent()
		if e.Field == "" {
			return nil, p.errorf("expected field name")
		}
	}

	if c := p.peek(); c == ':' || c == '.' {
		p.pos++
		start := p.pos
		for p.pos < len(p.src) && strings.IndexByte(subfieldStops, p.src[p.pos]) < 0 {
			p.pos++
		}
		e.Subfield = p.src[start:p.pos]
		if e.Subfield == "" {
			return nil, p.errorf("expected subfield after %q", string(c))
		}
	}

	if p.peek() == '(' {
		arg, err := p.scanParens()
		if err != nil {
			return nil, err
		}
		e.FieldArg = arg
		e.HasFieldArg = true
	}

	for p.peek() == '|' {
		p.pos++
		name := p.scanIdent()
		if name == "" {
			return nil, p.errorf("expected filter name after '|'")
		}
		f := Filter{Name: name}
		if p.peek() == '(' {
			arg, err := p.scanParens()
			if err != nil {
				return nil, err
			}
			f.Arg = arg
			f.HasArg = true
		}
		e.Filters = append(e.Filters, f)
	}

	for p.peek() == '/' {
		p.pos++
		find, err := p.scanFindReplace("/}")
		if err != nil {
			return nil, err
		}
		if p.peek() != '/' {
			return nil, p.errorf("find/replace requires /find/replace")
		}
		p.pos++
		replace, err := p.scanFindReplace("/?&,}")
		if err != nil {
			return nil, err
		}
		e.FindReplace = append(e.FindReplace, FindReplace{Find: find, Replace: replace})
	}

	if p.peek() == ' ' {
		opStart := p.pos + 1
		p.pos++
		word := p.scanOperatorWord()
		op, ok := operators()[strings.ToLower(word)]
		if !ok {
			return nil, &SyntaxError{Pos: opStart, Message: fmt.Sprintf("unknown operator %q", word)}
		}
		if p.peek() != ' ' {
			return nil, p.errorf("expected space after operator %q", op)
		}
		p.pos++
		cond := &Conditional{Operator: op}
		if strings.HasPrefix(p.src[p.pos:], "not ") {
			cond.Negated = true
			p.pos += len("not ")
		}
		value, err := p.parseClause("?&,}")
		if err != nil {
			return nil, err
		}
		cond.Value = value
		e.Conditional = cond
	}

	if p.peek() == '?' {
		p.pos++
		ts, err := p.parseClause("&,}")
		if err != nil {
			return nil, err
		}
		e.Bool = ts
	}

	if p.peek() == '&' {
		p.pos++
		ts, err := p.parseClause(",}")
		if err != nil {
			return nil, err
		}
		e.Combine = ts
	}

	if p.peek() == ',' {
		p.pos++
		ts, err := p.parseClause("}")
		if err != nil {
			return nil, err
		}
		e.Default = ts
	}

	if p.pos >= len(p.src) {
		return nil, p.errorf("missing '}'")
	}
	if p.src[p.pos] != '}' {
		return nil, p.errorf("unexpected %q in expression", string(p.src[p.pos]))
	}
	p.pos++

	if e.Field == "var" && (e.Subfield == "" || e.Default == nil) {
		return nil, p.errorf("var requires a name and value in form {var:name,value}")
	}

	return e, nil
}

// scanFindReplace collects find/replace text up to one of the stop
// bytes. End of input before a stop is an error: the expression is
// unterminated either way.
func (p *parser) scanFindReplace(stops string) (string, error) {
	start := p.pos
	for p.pos < len(p.src) {
		if strings.IndexByte(stops, p.src[p.pos]) >= 0 {
			return p.src[start:p.pos], nil
		}
		p.pos++
	}
	return "", p.errorf("missing '}'")
}

// scanOperatorWord collects a keyword operator (letters) or a symbolic
// operator (a run of comparison characters).
func (p *parser) scanOperatorWord() string {
	start := p.pos
	if c := p.peek(); c == '=' || c == '!' || c == '<' || c == '>' {
		for {
			switch p.peek() {
			case '=', '!', '<', '>':
				p.pos++
				continue
			}
			break
		}
		return p.src[start:p.pos]
	}
	for p.pos < len(p.src) && isIdentStart(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}
