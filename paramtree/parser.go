package paramtree

import (
	"fmt"
	"math"
	"strings"

	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/value"
)

type parser struct {
	lex *lexer
	src string
	cur token
}

// Parse converts an INI-style parameter string into a map value,
// exactly as bt_param_parse does: an empty string yields an empty map,
// and the grammar is a comma-separated list of `key=value` pairs.
func Parse(s string) (value.Value, error) {
	p := &parser{lex: newLexer(s), src: s}
	p.advance()

	m := value.NewMap()
	for !p.atEnd() {
		if p.cur.kind != tIdent {
			m.Unref()
			return nil, p.errorf("unquoted map key")
		}
		key := p.cur.ident
		p.advance()

		if !(p.cur.kind == tChar && p.cur.ch == '=') {
			m.Unref()
			return nil, p.errorf("'='")
		}
		p.advance()

		v, err := p.parseValue()
		if err != nil {
			m.Unref()
			return nil, err
		}
		if err := m.Set(key, v); err != nil {
			v.Unref()
			m.Unref()
			return nil, errs.Wrap(errs.DecodeError, err, "paramtree: setting key %q", key)
		}
		v.Unref()

		if p.cur.kind == tChar && p.cur.ch == ',' {
			p.advance()
			continue
		}
		if p.atEnd() {
			break
		}
		m.Unref()
		return nil, p.errorf("',' or end of input")
	}
	return m, nil
}

func (p *parser) advance() { p.cur = p.lex.next() }

// atEnd reports whether the current token is the real end of input
// rather than the tEOF token the lexer returns for a malformed token.
func (p *parser) atEnd() bool { return p.cur.kind == tEOF && p.cur.pos >= len(p.src) }

// parseValue parses a single value starting at the current token, per
// the grammar of spec §4.6 / ini_parse_value.
func (p *parser) parseValue() (value.Value, error) {
	switch {
	case p.cur.kind == tChar && p.cur.ch == '-':
		p.advance()
		return p.parseNegNumber()
	case p.cur.kind == tChar && p.cur.ch == '+':
		p.advance()
		return p.parseUint()
	case p.cur.kind == tChar && p.cur.ch == '[':
		return p.parseArray()
	case p.cur.kind == tChar && p.cur.ch == '{':
		return p.parseMap()
	case p.cur.kind == tInt:
		if p.cur.ival > math.MaxInt64 {
			err := p.errorf("an integer value that fits in a signed 64-bit integer (got %d)", p.cur.ival)
			return nil, err
		}
		v := value.NewInt(int64(p.cur.ival))
		p.advance()
		return v, nil
	case p.cur.kind == tFloat:
		v := value.NewReal(p.cur.fval)
		p.advance()
		return v, nil
	case p.cur.kind == tString:
		v := value.NewString(p.cur.sval)
		p.advance()
		return v, nil
	case p.cur.kind == tIdent:
		v := identValue(p.cur.ident)
		p.advance()
		return v, nil
	default:
		return nil, p.errorf("value")
	}
}

// parseNegNumber handles the token following a leading `-`: a negative
// integer or a negative double.
func (p *parser) parseNegNumber() (value.Value, error) {
	switch p.cur.kind {
	case tInt:
		if p.cur.ival > uint64(math.MaxInt64)+1 {
			return nil, p.errorf("an integer value of -%d, which is outside the range of a signed 64-bit integer", p.cur.ival)
		}
		v := value.NewInt(-int64(p.cur.ival))
		p.advance()
		return v, nil
	case tFloat:
		v := value.NewReal(-p.cur.fval)
		p.advance()
		return v, nil
	default:
		return nil, p.errorf("value")
	}
}

// parseUint handles the token following a leading `+`: always an
// unsigned integer (`+42` forces the Uint kind rather than Int).
func (p *parser) parseUint() (value.Value, error) {
	if p.cur.kind != tInt {
		return nil, p.errorf("integer value")
	}
	v := value.NewUint(p.cur.ival)
	p.advance()
	return v, nil
}

func (p *parser) parseArray() (value.Value, error) {
	p.advance() // consume `[`
	arr := value.NewArray()
	for {
		if p.cur.kind == tChar && p.cur.ch == ']' {
			p.advance()
			return arr, nil
		}
		item, err := p.parseValue()
		if err != nil {
			arr.Unref()
			return nil, err
		}
		if err := arr.(*value.ArrayValue).Append(item); err != nil {
			item.Unref()
			arr.Unref()
			return nil, errs.Wrap(errs.DecodeError, err, "paramtree: appending array element")
		}
		item.Unref()

		if p.cur.kind == tChar && p.cur.ch == ',' {
			p.advance()
			continue
		}
		if p.cur.kind == tChar && p.cur.ch == ']' {
			p.advance()
			return arr, nil
		}
		arr.Unref()
		return nil, p.errorf("',' or ']'")
	}
}

func (p *parser) parseMap() (value.Value, error) {
	p.advance() // consume `{`
	m := value.NewMap()
	for {
		if p.cur.kind == tChar && p.cur.ch == '}' {
			p.advance()
			return m, nil
		}
		if p.cur.kind != tIdent {
			m.Unref()
			return nil, p.errorf("unquoted map key")
		}
		key := p.cur.ident
		p.advance()

		if !(p.cur.kind == tChar && p.cur.ch == '=') {
			m.Unref()
			return nil, p.errorf("'='")
		}
		p.advance()

		v, err := p.parseValue()
		if err != nil {
			m.Unref()
			return nil, err
		}
		if err := m.Set(key, v); err != nil {
			v.Unref()
			m.Unref()
			return nil, errs.Wrap(errs.DecodeError, err, "paramtree: setting key %q", key)
		}
		v.Unref()

		if p.cur.kind == tChar && p.cur.ch == ',' {
			p.advance()
			continue
		}
		if p.cur.kind == tChar && p.cur.ch == '}' {
			p.advance()
			return m, nil
		}
		m.Unref()
		return nil, p.errorf("',' or '}'")
	}
}

// identValue resolves an unquoted identifier to null/bool when it
// matches one of the closed-set case-insensitive literals, falling
// back to a plain string value otherwise.
func identValue(id string) value.Value {
	switch strings.ToLower(id) {
	case "null", "nul":
		return value.NewNull()
	case "true", "yes":
		return value.NewBool(true)
	case "false", "no":
		return value.NewBool(false)
	default:
		return value.NewString(id)
	}
}

// errorf builds a one-line "expecting X" error with a caret pointing
// at the offending token, matching ini_append_error_expecting.
func (p *parser) errorf(expecting string, args ...any) error {
	msg := fmt.Sprintf(expecting, args...)
	if strings.Contains(p.src, "\n") || p.src == "" {
		return errs.New(errs.DecodeError, "expecting %s", msg)
	}
	pos := p.cur.pos
	if pos > len(p.src) {
		pos = len(p.src)
	}
	caret := strings.Repeat(" ", pos) + "^"
	return errs.New(errs.DecodeError, "expecting %s:\n\n    %s\n    %s\n", msg, p.src, caret)
}
