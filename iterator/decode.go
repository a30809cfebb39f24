package iterator

import (
	"math"

	"github.com/tracegraph/ctf/clock"
	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/message"
	"github.com/tracegraph/ctf/schema"
	"github.com/tracegraph/ctf/value"
)

// decoder drives the bit-cursor against one field-class arena,
// implementing every case of spec §4.2.1. It is reused across the
// whole packet -- header, context, and every event -- so the clock
// snapshot it accumulates carries forward exactly as the spec
// describes ("mapped-clock integers additionally update the current
// clock snapshot").
type decoder struct {
	cur    *bitCursor
	arena  *schema.Arena
	scopes *scopeTracker

	snapshot    message.Snapshot
	hasSnapshot bool
}

func newDecoder(cur *bitCursor, arena *schema.Arena) *decoder {
	return &decoder{cur: cur, arena: arena, scopes: newScopeTracker()}
}

func unboxClock(ref *schema.ClockRef) *clock.Class {
	if ref == nil {
		return nil
	}
	c, _ := ref.Class.(*clock.Class)
	return c
}

func signExtend(u uint64, width uint8) int64 {
	if width >= 64 {
		return int64(u)
	}
	sign := uint64(1) << (width - 1)
	if u&sign != 0 {
		return int64(u) - int64(sign<<1)
	}
	return int64(u)
}

func (d *decoder) decodeField(id schema.FieldClassID) (value.Value, error) {
	if id == schema.NoFieldClass {
		return value.NewNull(), nil
	}
	fc := d.arena.Get(id)
	switch fc.Kind {
	case schema.FCInteger:
		return d.decodeInteger(fc)
	case schema.FCEnum:
		return d.decodeEnum(fc)
	case schema.FCReal:
		return d.decodeReal(fc)
	case schema.FCString:
		return d.decodeString(fc)
	case schema.FCStruct:
		return d.decodeStruct(fc)
	case schema.FCStaticArray:
		return d.decodeStaticArray(fc)
	case schema.FCDynamicArray:
		return d.decodeDynamicArray(fc)
	case schema.FCVariant:
		return d.decodeVariant(fc)
	default:
		return nil, errs.New(errs.SchemaError, "unknown field class kind %d", fc.Kind)
	}
}

func (d *decoder) decodeInteger(fc *schema.FieldClass) (value.Value, error) {
	raw, err := d.cur.ReadUint(fc.Width, fc.ByteOrder)
	if err != nil {
		return nil, err
	}
	if fc.MappedClock != nil {
		if clk := unboxClock(fc.MappedClock); clk != nil {
			d.snapshot = message.Snapshot{Class: clk, Cycles: raw}
			d.hasSnapshot = true
		}
	}
	if fc.Signed {
		return value.NewInt(signExtend(raw, fc.Width)), nil
	}
	return value.NewUint(raw), nil
}

// decodeEnum decodes directly against the enum's container field
// class -- the enum has no bits of its own, it is a labeling of the
// container's (spec §3.2).
func (d *decoder) decodeEnum(fc *schema.FieldClass) (value.Value, error) {
	cont := d.arena.Get(fc.Container)
	return d.decodeInteger(cont)
}

// decodeReal composes an IEEE-754 single (exp=8, mant=24) or double
// (exp=11, mant=53) value, per spec §4.2.1; declared digit counts
// include the implicit leading mantissa bit, so the encoded width is
// just ExpDigits+MantDigits.
func (d *decoder) decodeReal(fc *schema.FieldClass) (value.Value, error) {
	width := uint8(fc.ExpDigits) + uint8(fc.MantDigits)
	raw, err := d.cur.ReadUint(width, fc.ByteOrder)
	if err != nil {
		return nil, err
	}
	switch width {
	case 32:
		return value.NewReal(float64(math.Float32frombits(uint32(raw)))), nil
	case 64:
		return value.NewReal(math.Float64frombits(raw)), nil
	default:
		return nil, errs.New(errs.DecodeError, "unsupported real width %d bits", width)
	}
}

func (d *decoder) decodeString(fc *schema.FieldClass) (value.Value, error) {
	d.cur.Align(8)
	s, err := d.cur.ReadCString()
	if err != nil {
		return nil, err
	}
	return value.NewString(s), nil
}

func (d *decoder) decodeStruct(fc *schema.FieldClass) (value.Value, error) {
	mv := value.NewMap()
	d.scopes.pushStruct(mv)
	for _, mem := range fc.Members {
		d.cur.Align(mem.Alignment)
		v, err := d.decodeField(mem.Class)
		if err != nil {
			d.scopes.popStruct()
			return nil, err
		}
		if err := mv.Set(mem.Name, v); err != nil {
			v.Unref()
			d.scopes.popStruct()
			return nil, err
		}
		d.scopes.recordMember(mv, mem.Name, mem.Class)
		v.Unref()
	}
	d.scopes.popStruct()
	return mv, nil
}

func (d *decoder) decodeStaticArray(fc *schema.FieldClass) (value.Value, error) {
	arr := value.NewArray()
	av, _ := value.AsArray(arr)
	for i := uint64(0); i < fc.Length; i++ {
		v, err := d.decodeField(fc.Element)
		if err != nil {
			arr.Unref()
			return nil, err
		}
		if err := av.Append(v); err != nil {
			v.Unref()
			arr.Unref()
			return nil, err
		}
		v.Unref()
	}
	return arr, nil
}

func (d *decoder) decodeDynamicArray(fc *schema.FieldClass) (value.Value, error) {
	r, err := d.scopes.Resolve(fc.LengthPath)
	if err != nil {
		return nil, err
	}
	length, err := asLength(r.val)
	if err != nil {
		return nil, err
	}
	arr := value.NewArray()
	av, _ := value.AsArray(arr)
	for i := uint64(0); i < length; i++ {
		v, err := d.decodeField(fc.Element)
		if err != nil {
			arr.Unref()
			return nil, err
		}
		if err := av.Append(v); err != nil {
			v.Unref()
			arr.Unref()
			return nil, err
		}
		v.Unref()
	}
	return arr, nil
}

func (d *decoder) decodeVariant(fc *schema.FieldClass) (value.Value, error) {
	r, err := d.scopes.Resolve(fc.TagPath)
	if err != nil {
		return nil, err
	}
	raw, err := asInt64(r.val)
	if err != nil {
		return nil, err
	}
	var labels []string
	if r.class != schema.NoFieldClass {
		if cfc := d.arena.Get(r.class); cfc.Kind == schema.FCEnum {
			labels = cfc.LookupEnumLabels(raw)
		}
	}
	var chosen *schema.VariantOption
	for i := range fc.Options {
		opt := &fc.Options[i]
		if opt.Label != "" {
			for _, l := range labels {
				if l == opt.Label {
					chosen = opt
					break
				}
			}
		} else {
			for _, rg := range opt.Ranges {
				if rg.Contains(raw) {
					chosen = opt
					break
				}
			}
		}
		if chosen != nil {
			break
		}
	}
	if chosen == nil {
		return nil, errs.New(errs.DecodeError, "variant tag %d (labels %v) matches no declared option", raw, labels)
	}
	return d.decodeField(chosen.Class)
}
