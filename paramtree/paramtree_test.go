package paramtree

import (
	"strings"
	"testing"

	"github.com/tracegraph/ctf/value"
)

func mustParse(t *testing.T, s string) value.Value {
	t.Helper()
	v, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return v
}

func TestParseEmptyStringYieldsEmptyMap(t *testing.T) {
	v := mustParse(t, "")
	m, ok := value.AsMap(v)
	if !ok || m.Len() != 0 {
		t.Fatalf("got %v, want empty map", v)
	}
}

func TestParseMixedEntries(t *testing.T) {
	v := mustParse(t, `a=true,b=+42,c=[1,-2,3.5],d={k="v"}`)
	m, ok := value.AsMap(v)
	if !ok {
		t.Fatalf("not a map: %v", v)
	}

	a, _ := m.Get("a")
	if b, ok := a.(*value.BoolValue); !ok || !b.Bool() {
		t.Fatalf("a = %v, want true", a)
	}

	b, _ := m.Get("b")
	u, ok := b.(*value.UintValue)
	if !ok || u.Uint() != 42 {
		t.Fatalf("b = %v, want uint 42", b)
	}

	c, _ := m.Get("c")
	arr, ok := value.AsArray(c)
	if !ok || arr.Len() != 3 {
		t.Fatalf("c = %v, want 3-element array", c)
	}
	if n, ok := arr.At(0).(*value.IntValue); !ok || n.Int() != 1 {
		t.Fatalf("c[0] = %v, want 1", arr.At(0))
	}
	if n, ok := arr.At(1).(*value.IntValue); !ok || n.Int() != -2 {
		t.Fatalf("c[1] = %v, want -2", arr.At(1))
	}
	if n, ok := arr.At(2).(*value.RealValue); !ok || n.Real() != 3.5 {
		t.Fatalf("c[2] = %v, want 3.5", arr.At(2))
	}

	d, _ := m.Get("d")
	dm, ok := value.AsMap(d)
	if !ok {
		t.Fatalf("d = %v, want map", d)
	}
	k, _ := dm.Get("k")
	if s, ok := k.(*value.StringValue); !ok || s.String() != "v" {
		t.Fatalf("d.k = %v, want string \"v\"", k)
	}
}

func TestParseIntegerOverflowBelowMinInt64(t *testing.T) {
	_, err := Parse("x=-9223372036854775809")
	if err == nil {
		t.Fatal("expected an overflow error, got nil")
	}
}

func TestParseNullTrueFalseAnyCase(t *testing.T) {
	v := mustParse(t, "a=NULL,b=TRUE,c=FALSE,d=yes,e=no")
	m, _ := value.AsMap(v)
	a, _ := m.Get("a")
	if a.Kind() != value.Null {
		t.Fatalf("a = %v, want null", a)
	}
	b, _ := m.Get("b")
	if bv, ok := b.(*value.BoolValue); !ok || !bv.Bool() {
		t.Fatalf("b = %v, want true", b)
	}
	c, _ := m.Get("c")
	if cv, ok := c.(*value.BoolValue); !ok || cv.Bool() {
		t.Fatalf("c = %v, want false", c)
	}
}

func TestParseRejectsMissingEquals(t *testing.T) {
	_, err := Parse("a")
	if err == nil {
		t.Fatal("expected an error for a key with no '='")
	}
	if !strings.Contains(err.Error(), "'='") {
		t.Fatalf("error = %q, want it to mention '='", err.Error())
	}
}

func TestParseAllowsTrailingCommas(t *testing.T) {
	v := mustParse(t, "a=[1,2,],b={k=1,},")
	m, _ := value.AsMap(v)
	a, _ := m.Get("a")
	arr, _ := value.AsArray(a)
	if arr.Len() != 2 {
		t.Fatalf("a has %d elements, want 2", arr.Len())
	}
}

func TestFormatRoundTripsNonRealValues(t *testing.T) {
	original := mustParse(t, `a=true,b=+42,c=[1,-2],d={k="v"},e=null`)
	text, err := Format(original)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	reparsed, err := Parse(strings.TrimSuffix(strings.TrimPrefix(text, "{"), "}"))
	if err != nil {
		t.Fatalf("re-Parse(%q): %v", text, err)
	}
	if !original.Equal(reparsed) {
		t.Fatalf("round trip mismatch: %v != %v", original, reparsed)
	}
}
