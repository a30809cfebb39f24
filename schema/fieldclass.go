// Package schema implements the trace-class data model of spec §3.2:
// trace class, stream class, event class, clock class (see package
// clock) and field class. Field classes are addressed by FieldClassID
// into a per-TraceClass arena rather than owning pointers, per the
// Design Notes §9 ("model as an arena of field classes addressed by
// FieldClassId; parent links are ids, not owning pointers") -- this is
// what makes a trace class's internal graph acyclic and lets Freeze
// flip one flag on the arena instead of walking a pointer graph.
package schema

import (
	"github.com/tracegraph/ctf/errs"
)

type FieldClassID int32

const NoFieldClass FieldClassID = -1

type FieldClassKind int

const (
	FCInteger FieldClassKind = iota
	FCEnum
	FCReal
	FCString
	FCStruct
	FCStaticArray
	FCDynamicArray
	FCVariant
)

type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

type StringEncoding int

const (
	EncodingUTF8 StringEncoding = iota
	EncodingASCII
)

type IntBase int

const (
	Base2  IntBase = 2
	Base8  IntBase = 8
	Base10 IntBase = 10
	Base16 IntBase = 16
)

// IntRange is an inclusive [Low, High] range of integer values, used by
// enumeration mappings.
type IntRange struct {
	Low, High int64
}

func (r IntRange) Contains(v int64) bool { return v >= r.Low && v <= r.High }

type StructMember struct {
	Name      string
	Class     FieldClassID
	Alignment uint // bits
}

type VariantOption struct {
	Name  string
	Class FieldClassID
	// exactly one of Ranges (integer tag) or Label (enum tag) is set
	Ranges []IntRange
	Label  string
}

// FieldClass is the tagged union described in spec §3.2. Only the
// fields relevant to Kind are meaningful; the rest are zero.
type FieldClass struct {
	ID       FieldClassID
	ParentID FieldClassID
	Kind     FieldClassKind

	// integer / enum container
	Signed      bool
	Width       uint8 // 1..64
	Base        IntBase
	ByteOrder   ByteOrder
	Encoding    StringEncoding
	MappedClock *ClockRef // non-nil iff this integer maps a clock class

	// enum
	Container FieldClassID
	Mapping   map[string][]IntRange

	// real
	ExpDigits, MantDigits uint8

	// struct
	Members []StructMember

	// static array / dynamic array (sequence)
	Element    FieldClassID
	Length     uint64 // static array only
	LengthPath Path   // dynamic array only

	// variant
	TagPath Path
	Options []VariantOption
}

// ClockRef avoids an import cycle with package clock by carrying a
// pointer the caller supplies; Arena.AddIntegerWithClock builds one
// around the clock value it is handed.
type ClockRef struct {
	Class any // *clock.Class, boxed to avoid import cycle
}

func validWidth(w uint8) bool { return w >= 1 && w <= 64 }

// Arena owns all field classes for one TraceClass. Freezing the arena
// (see Freeze) makes every FieldClass immutable for further structural
// changes; additive changes (new stream/event classes) happen at the
// TraceClass level, not here.
type Arena struct {
	nodes  []FieldClass
	frozen bool
}

func NewArena() *Arena { return &Arena{} }

func (a *Arena) Freeze()        { a.frozen = true }
func (a *Arena) IsFrozen() bool { return a.frozen }

func (a *Arena) Get(id FieldClassID) *FieldClass {
	if id == NoFieldClass {
		return nil
	}
	return &a.nodes[id]
}

func (a *Arena) add(fc FieldClass) (FieldClassID, error) {
	if a.frozen {
		return NoFieldClass, errs.New(errs.SchemaError, "cannot add field class to a frozen arena")
	}
	fc.ID = FieldClassID(len(a.nodes))
	a.nodes = append(a.nodes, fc)
	return fc.ID, nil
}

func (a *Arena) AddInteger(parent FieldClassID, signed bool, width uint8, base IntBase, order ByteOrder, enc StringEncoding) (FieldClassID, error) {
	if !validWidth(width) {
		return NoFieldClass, errs.New(errs.SchemaError, "integer width %d out of [1,64]", width)
	}
	return a.add(FieldClass{ParentID: parent, Kind: FCInteger, Signed: signed, Width: width, Base: base, ByteOrder: order, Encoding: enc})
}

// AddIntegerWithClock declares a fixed-width integer field class whose
// decoded value additionally updates the current clock snapshot
// (spec §4.2.1).
func (a *Arena) AddIntegerWithClock(parent FieldClassID, signed bool, width uint8, order ByteOrder, clk any) (FieldClassID, error) {
	id, err := a.AddInteger(parent, signed, width, Base10, order, EncodingUTF8)
	if err != nil {
		return id, err
	}
	a.nodes[id].MappedClock = &ClockRef{Class: clk}
	return id, nil
}

func (a *Arena) AddEnum(parent, container FieldClassID, mapping map[string][]IntRange) (FieldClassID, error) {
	cont := a.Get(container)
	if cont == nil || cont.Kind != FCInteger {
		return NoFieldClass, errs.New(errs.SchemaError, "enumeration container must be an integer field class")
	}
	return a.add(FieldClass{ParentID: parent, Kind: FCEnum, Container: container, Mapping: mapping})
}

func (a *Arena) AddReal(parent FieldClassID, expDigits, mantDigits uint8, order ByteOrder) (FieldClassID, error) {
	return a.add(FieldClass{ParentID: parent, Kind: FCReal, ExpDigits: expDigits, MantDigits: mantDigits, ByteOrder: order})
}

func (a *Arena) AddString(parent FieldClassID, enc StringEncoding) (FieldClassID, error) {
	return a.add(FieldClass{ParentID: parent, Kind: FCString, Encoding: enc})
}

func (a *Arena) AddStruct(parent FieldClassID, members []StructMember) (FieldClassID, error) {
	return a.add(FieldClass{ParentID: parent, Kind: FCStruct, Members: members})
}

func (a *Arena) AddStaticArray(parent, element FieldClassID, length uint64) (FieldClassID, error) {
	return a.add(FieldClass{ParentID: parent, Kind: FCStaticArray, Element: element, Length: length})
}

func (a *Arena) AddDynamicArray(parent, element FieldClassID, lengthPath Path) (FieldClassID, error) {
	return a.add(FieldClass{ParentID: parent, Kind: FCDynamicArray, Element: element, LengthPath: lengthPath})
}

func (a *Arena) AddVariant(parent FieldClassID, tagPath Path, options []VariantOption) (FieldClassID, error) {
	return a.add(FieldClass{ParentID: parent, Kind: FCVariant, TagPath: tagPath, Options: options})
}

// LookupEnumLabels returns every label whose range or single-value
// mapping contains v; ranges may overlap, so more than one label can
// match (spec §3.2).
func (fc *FieldClass) LookupEnumLabels(v int64) []string {
	var labels []string
	for label, ranges := range fc.Mapping {
		for _, r := range ranges {
			if r.Contains(v) {
				labels = append(labels, label)
				break
			}
		}
	}
	return labels
}
