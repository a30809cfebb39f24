package paramtree

import (
	"strconv"
	"strings"

	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/value"
)

// Format renders v back into the INI-style grammar Parse accepts. For
// every non-real value produced by Parse, Format(v) followed by a
// re-Parse reproduces an equal value tree (spec §8.1 invariant 5);
// reals are excluded because floating-point text round-tripping is not
// guaranteed bit-exact. A map renders wrapped in braces, which Parse's
// top level does not accept, so a top-level map re-parses only once
// its outer braces are stripped.
func Format(v value.Value) (string, error) {
	var b strings.Builder
	if err := formatInto(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

func formatInto(b *strings.Builder, v value.Value) error {
	switch t := v.(type) {
	case *value.NullValue:
		b.WriteString("null")
	case *value.BoolValue:
		if t.Bool() {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case *value.IntValue:
		b.WriteString(strconv.FormatInt(t.Int(), 10))
	case *value.UintValue:
		b.WriteByte('+')
		b.WriteString(strconv.FormatUint(t.Uint(), 10))
	case *value.RealValue:
		b.WriteString(strconv.FormatFloat(t.Real(), 'g', -1, 64))
	case *value.StringValue:
		formatString(b, t.String())
	case *value.ArrayValue:
		b.WriteByte('[')
		for i, e := range t.Elems() {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := formatInto(b, e); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case *value.MapValue:
		b.WriteByte('{')
		for i, k := range t.Keys() {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte('=')
			ev, _ := t.Get(k)
			if err := formatInto(b, ev); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		return errs.New(errs.InvalidArgument, "paramtree: cannot format value of kind %v", v.Kind())
	}
	return nil
}

func formatString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}
