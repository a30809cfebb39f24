// Package value implements the dynamic, reference-counted, freezable
// value tree of spec §3.1: null, bool, signed/unsigned 64-bit integer,
// 64-bit real, UTF-8 string, ordered array, and insertion-ordered map
// with unique string keys.
//
// Go's garbage collector makes true reference counting unnecessary for
// memory safety, but spec §8.1 invariant 8 ("ref-count balance") and §5
// ("values follow reference counting with explicit freeze") are part of
// the public contract this package's callers are tested against, so the
// counting is real and explicit rather than simulated.
package value

import (
	"go.uber.org/atomic"

	"github.com/tracegraph/ctf/errs"
)

type Kind int

const (
	Null Kind = iota
	Bool
	Int
	Uint
	Real
	String
	Array
	Map
)

func (k Kind) String() string {
	return [...]string{"null", "bool", "int", "uint", "real", "string", "array", "map"}[k]
}

// Value is the common interface satisfied by every tree node.
type Value interface {
	Kind() Kind
	Ref() Value
	Unref()
	RefCount() int64
	Freeze()
	IsFrozen() bool
	Clone() Value
	Equal(other Value) bool
}

type base struct {
	refcount atomic.Int64
	frozen   atomic.Bool
}

func newBase() base {
	b := base{}
	b.refcount.Store(1)
	return b
}

func (b *base) Ref() *base {
	b.refcount.Inc()
	return b
}

func (b *base) Unref() int64 {
	return b.refcount.Dec()
}

func (b *base) RefCount() int64  { return b.refcount.Load() }
func (b *base) IsFrozen() bool   { return b.frozen.Load() }
func (b *base) setFrozen()       { b.frozen.Store(true) }

// ErrFrozen is returned by every mutator when the receiver (or an
// ancestor that froze it transitively) is frozen.
var ErrFrozen = errs.New(errs.InvalidArgument, "value is frozen")

func checkMutable(b *base) error {
	if b.IsFrozen() {
		return ErrFrozen
	}
	return nil
}

// --- null ---

type NullValue struct{ base }

func NewNull() Value { return &NullValue{newBase()} }

func (v *NullValue) Kind() Kind { return Null }
func (v *NullValue) Ref() Value { v.base.Ref(); return v }
func (v *NullValue) Unref()     { v.base.Unref() }
func (v *NullValue) Freeze()    { v.setFrozen() }
func (v *NullValue) Clone() Value { return NewNull() }
func (v *NullValue) Equal(o Value) bool { return o != nil && o.Kind() == Null }

// --- bool ---

type BoolValue struct {
	base
	v bool
}

func NewBool(b bool) Value { return &BoolValue{newBase(), b} }

func (v *BoolValue) Kind() Kind   { return Bool }
func (v *BoolValue) Ref() Value   { v.base.Ref(); return v }
func (v *BoolValue) Unref()       { v.base.Unref() }
func (v *BoolValue) Freeze()      { v.setFrozen() }
func (v *BoolValue) Bool() bool   { return v.v }
func (v *BoolValue) Clone() Value { return NewBool(v.v) }
func (v *BoolValue) Equal(o Value) bool {
	ov, ok := o.(*BoolValue)
	return ok && ov.v == v.v
}

func (v *BoolValue) Set(b bool) error {
	if err := checkMutable(&v.base); err != nil {
		return err
	}
	v.v = b
	return nil
}

// --- int ---

type IntValue struct {
	base
	v int64
}

func NewInt(n int64) Value { return &IntValue{newBase(), n} }

func (v *IntValue) Kind() Kind    { return Int }
func (v *IntValue) Ref() Value    { v.base.Ref(); return v }
func (v *IntValue) Unref()        { v.base.Unref() }
func (v *IntValue) Freeze()       { v.setFrozen() }
func (v *IntValue) Int() int64    { return v.v }
func (v *IntValue) Clone() Value  { return NewInt(v.v) }
func (v *IntValue) Equal(o Value) bool {
	ov, ok := o.(*IntValue)
	return ok && ov.v == v.v
}

func (v *IntValue) Set(n int64) error {
	if err := checkMutable(&v.base); err != nil {
		return err
	}
	v.v = n
	return nil
}

// --- uint ---

type UintValue struct {
	base
	v uint64
}

func NewUint(n uint64) Value { return &UintValue{newBase(), n} }

func (v *UintValue) Kind() Kind   { return Uint }
func (v *UintValue) Ref() Value   { v.base.Ref(); return v }
func (v *UintValue) Unref()       { v.base.Unref() }
func (v *UintValue) Freeze()      { v.setFrozen() }
func (v *UintValue) Uint() uint64 { return v.v }
func (v *UintValue) Clone() Value { return NewUint(v.v) }
func (v *UintValue) Equal(o Value) bool {
	ov, ok := o.(*UintValue)
	return ok && ov.v == v.v
}

func (v *UintValue) Set(n uint64) error {
	if err := checkMutable(&v.base); err != nil {
		return err
	}
	v.v = n
	return nil
}

// --- real ---

type RealValue struct {
	base
	v float64
}

func NewReal(f float64) Value { return &RealValue{newBase(), f} }

func (v *RealValue) Kind() Kind     { return Real }
func (v *RealValue) Ref() Value     { v.base.Ref(); return v }
func (v *RealValue) Unref()         { v.base.Unref() }
func (v *RealValue) Freeze()        { v.setFrozen() }
func (v *RealValue) Real() float64  { return v.v }
func (v *RealValue) Clone() Value   { return NewReal(v.v) }
func (v *RealValue) Equal(o Value) bool {
	ov, ok := o.(*RealValue)
	return ok && ov.v == v.v
}

func (v *RealValue) Set(f float64) error {
	if err := checkMutable(&v.base); err != nil {
		return err
	}
	v.v = f
	return nil
}

// --- string ---

type StringValue struct {
	base
	v string
}

func NewString(s string) Value { return &StringValue{newBase(), s} }

func (v *StringValue) Kind() Kind     { return String }
func (v *StringValue) Ref() Value     { v.base.Ref(); return v }
func (v *StringValue) Unref()         { v.base.Unref() }
func (v *StringValue) Freeze()        { v.setFrozen() }
func (v *StringValue) String() string { return v.v }
func (v *StringValue) Clone() Value   { return NewString(v.v) }
func (v *StringValue) Equal(o Value) bool {
	ov, ok := o.(*StringValue)
	return ok && ov.v == v.v
}

func (v *StringValue) Set(s string) error {
	if err := checkMutable(&v.base); err != nil {
		return err
	}
	v.v = s
	return nil
}

// --- array ---

type ArrayValue struct {
	base
	v []Value
}

func NewArray(elems ...Value) Value {
	a := &ArrayValue{base: newBase()}
	for _, e := range elems {
		a.v = append(a.v, e.Ref())
	}
	return a
}

func (v *ArrayValue) Kind() Kind { return Array }
func (v *ArrayValue) Ref() Value { v.base.Ref(); return v }
func (v *ArrayValue) Unref() {
	if v.base.Unref() == 0 {
		for _, e := range v.v {
			e.Unref()
		}
	}
}
func (v *ArrayValue) Freeze() {
	if v.IsFrozen() {
		return
	}
	v.setFrozen()
	for _, e := range v.v {
		e.Freeze()
	}
}
func (v *ArrayValue) Len() int          { return len(v.v) }
func (v *ArrayValue) At(i int) Value    { return v.v[i] }
func (v *ArrayValue) Elems() []Value    { return v.v }

func (v *ArrayValue) Clone() Value {
	out := &ArrayValue{base: newBase()}
	for _, e := range v.v {
		out.v = append(out.v, e.Clone())
	}
	return out
}

func (v *ArrayValue) Equal(o Value) bool {
	ov, ok := o.(*ArrayValue)
	if !ok || len(ov.v) != len(v.v) {
		return false
	}
	for i, e := range v.v {
		if !e.Equal(ov.v[i]) {
			return false
		}
	}
	return true
}

// Append takes a reference on elem (it must be Unref'd separately by the
// caller if the caller held its own reference).
func (v *ArrayValue) Append(elem Value) error {
	if err := checkMutable(&v.base); err != nil {
		return err
	}
	v.v = append(v.v, elem.Ref())
	return nil
}

// --- map ---

type MapValue struct {
	base
	keys []string
	v    map[string]Value
}

func NewMap() *MapValue {
	return &MapValue{base: newBase(), v: make(map[string]Value)}
}

func (v *MapValue) Kind() Kind { return Map }
func (v *MapValue) Ref() Value { v.base.Ref(); return v }
func (v *MapValue) Unref() {
	if v.base.Unref() == 0 {
		for _, e := range v.v {
			e.Unref()
		}
	}
}
func (v *MapValue) Freeze() {
	if v.IsFrozen() {
		return
	}
	v.setFrozen()
	for _, e := range v.v {
		e.Freeze()
	}
}

func (v *MapValue) Len() int      { return len(v.keys) }
func (v *MapValue) Keys() []string { return append([]string(nil), v.keys...) }
func (v *MapValue) Get(key string) (Value, bool) {
	e, ok := v.v[key]
	return e, ok
}

// Set inserts or replaces key => val (taking a reference on val).
// Insertion order is preserved on first insert; replacing an existing
// key does not move it.
func (v *MapValue) Set(key string, val Value) error {
	if err := checkMutable(&v.base); err != nil {
		return err
	}
	if old, ok := v.v[key]; ok {
		old.Unref()
	} else {
		v.keys = append(v.keys, key)
	}
	v.v[key] = val.Ref()
	return nil
}

func (v *MapValue) Clone() Value {
	out := NewMap()
	for _, k := range v.keys {
		out.keys = append(out.keys, k)
		out.v[k] = v.v[k].Clone()
	}
	return out
}

func (v *MapValue) Equal(o Value) bool {
	ov, ok := o.(*MapValue)
	if !ok || len(ov.v) != len(v.v) {
		return false
	}
	for k, e := range v.v {
		oe, ok := ov.v[k]
		if !ok || !e.Equal(oe) {
			return false
		}
	}
	return true
}

// AsMap/AsArray are narrowing helpers used throughout schema/iterator
// decode paths where the concrete container kind is already known.
func AsMap(v Value) (*MapValue, bool) {
	m, ok := v.(*MapValue)
	return m, ok
}

func AsArray(v Value) (*ArrayValue, bool) {
	a, ok := v.(*ArrayValue)
	return a, ok
}
