package schema

import (
	"github.com/google/uuid"

	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/value"
)

// Quirks records the producer-specific packet-index corrections spec
// §4.2.5 names; identification (tracer_name/major/minor/patch) lives in
// Environment, quirk *applicability* is decided by DetectQuirks below,
// and the corrections themselves live in the index package.
type Quirks struct {
	EventAfterPacket  bool
	EventBeforePacket bool
	LTTngCrash        bool
}

type EventClass struct {
	ID             uint64
	StreamClass    *StreamClass
	Name           string
	LogLevel       *int64
	EMFURI         string
	SpecContext    FieldClassID // struct, or NoFieldClass
	Payload        FieldClassID // struct, or NoFieldClass
}

type StreamClass struct {
	ID                 uint64
	Trace              *TraceClass
	PacketContext      FieldClassID
	EventHeader        FieldClassID
	EventCommonContext FieldClassID
	DefaultClock       any // *clock.Class, boxed to avoid import cycle; nil => no default clock

	eventClasses   []*EventClass
	eventByID      map[uint64]*EventClass
}

func newStreamClass(id uint64, tc *TraceClass) *StreamClass {
	return &StreamClass{
		ID: id, Trace: tc,
		PacketContext: NoFieldClass, EventHeader: NoFieldClass, EventCommonContext: NoFieldClass,
		eventByID: make(map[uint64]*EventClass),
	}
}

func (sc *StreamClass) EventClassByID(id uint64) *EventClass { return sc.eventByID[id] }
func (sc *StreamClass) EventClassCount() int                 { return len(sc.eventClasses) }
func (sc *StreamClass) EventClassByIndex(i int) *EventClass  { return sc.eventClasses[i] }

// addEventClass appends a new event class, rejecting an id already
// present in this stream class. It is only reachable through
// StreamClass.AddEventClass, the additive (§6.2) update entry point.
func (sc *StreamClass) addEventClass(ec *EventClass) error {
	if _, exists := sc.eventByID[ec.ID]; exists {
		return errs.New(errs.SchemaError, "event class id %d already exists in stream class %d", ec.ID, sc.ID)
	}
	ec.StreamClass = sc
	sc.eventClasses = append(sc.eventClasses, ec)
	sc.eventByID[ec.ID] = ec
	return nil
}

type TraceClass struct {
	Arena        *Arena
	PacketHeader FieldClassID
	UUID         *uuid.UUID
	Environment  *value.MapValue
	Quirks       Quirks

	streamClasses []*StreamClass
	streamByID    map[uint64]*StreamClass

	// observed becomes true the moment an iterator first consumes this
	// trace class (spec §5: "become frozen when first observed by an
	// iterator"). Once observed, structural (non-additive) changes are
	// rejected; additive ones (new stream/event classes) remain legal.
	observed bool
}

func New() *TraceClass {
	return &TraceClass{
		Arena:        NewArena(),
		PacketHeader: NoFieldClass,
		streamByID:   make(map[uint64]*StreamClass),
	}
}

func (tc *TraceClass) MarkObserved() {
	tc.observed = true
	tc.Arena.Freeze()
}

func (tc *TraceClass) IsObserved() bool { return tc.observed }

func (tc *TraceClass) StreamClassByID(id uint64) *StreamClass { return tc.streamByID[id] }
func (tc *TraceClass) StreamClassCount() int                  { return len(tc.streamClasses) }
func (tc *TraceClass) StreamClassByIndex(i int) *StreamClass  { return tc.streamClasses[i] }

func (tc *TraceClass) EnvironmentEntry(name string) (value.Value, bool) {
	if tc.Environment == nil {
		return nil, false
	}
	return tc.Environment.Get(name)
}

func envString(tc *TraceClass, name string) (string, bool) {
	v, ok := tc.EnvironmentEntry(name)
	if !ok {
		return "", false
	}
	sv, ok := v.(*value.StringValue)
	if !ok {
		return "", false
	}
	return sv.String(), true
}

func envInt(tc *TraceClass, name string) (int64, bool) {
	v, ok := tc.EnvironmentEntry(name)
	if !ok {
		return 0, false
	}
	switch vv := v.(type) {
	case *value.IntValue:
		return vv.Int(), true
	case *value.UintValue:
		return int64(vv.Uint()), true
	default:
		return 0, false
	}
}

// tracerInfo is the producer identity §4.2.5 keys quirk detection on.
type tracerInfo struct {
	name               string
	major, minor, patch int64
	hasMinor, hasPatch bool
}

// extractTracerInfo reads tc's environment fields the way the original
// does: tracer_name and tracer_major are required (their absence
// disables every quirk, not an error); tracer_minor and
// tracer_patch/tracer_patchlevel are optional and default to 0 when
// missing.
func extractTracerInfo(tc *TraceClass) (tracerInfo, bool) {
	var info tracerInfo
	name, ok := envString(tc, "tracer_name")
	if !ok {
		return info, false
	}
	major, ok := envInt(tc, "tracer_major")
	if !ok {
		return info, false
	}
	info.name, info.major = name, major
	if minor, ok := envInt(tc, "tracer_minor"); ok {
		info.minor, info.hasMinor = minor, true
	}
	if patch, ok := envInt(tc, "tracer_patch"); ok {
		info.patch, info.hasPatch = patch, true
	} else if patch, ok := envInt(tc, "tracer_patchlevel"); ok {
		info.patch, info.hasPatch = patch, true
	}
	return info, true
}

// DetectQuirks identifies the producer that wrote tc's streams from its
// environment fields (tracer_name/tracer_major/tracer_minor/
// tracer_patch[level], §4.2.5) and reports which of the three
// tracer-bug quirks apply. A trace missing tracer_name or tracer_major
// is not an error -- it simply carries no quirks.
func DetectQuirks(tc *TraceClass) Quirks {
	info, ok := extractTracerInfo(tc)
	if !ok {
		return Quirks{}
	}
	return Quirks{
		EventAfterPacket:  isAffectedByLTTngEventAfterPacket(info),
		EventBeforePacket: isAffectedByBarectfEventBeforePacket(info),
		LTTngCrash:        isAffectedByLTTngCrash(info),
	}
}

// isAffectedByLTTngEventAfterPacket mirrors the original's
// is_tracer_affected_by_lttng_event_after_packet_bug: fixed in
// lttng-ust 2.11.0, lttng-modules 2.11.0/2.10.10/2.9.13.
func isAffectedByLTTngEventAfterPacket(info tracerInfo) bool {
	switch info.name {
	case "lttng-ust":
		if info.major < 2 {
			return true
		}
		return info.major == 2 && info.hasMinor && info.minor < 11
	case "lttng-modules":
		if info.major < 2 {
			return true
		}
		if info.major != 2 || !info.hasMinor {
			return false
		}
		switch {
		case info.minor == 10:
			return info.hasPatch && info.patch < 10
		case info.minor == 9:
			return info.hasPatch && info.patch < 13
		case info.minor < 9:
			return true
		default:
			return false
		}
	default:
		return false
	}
}

// isAffectedByBarectfEventBeforePacket mirrors
// is_tracer_affected_by_barectf_event_before_packet_bug: fixed in
// barectf 2.3.1.
func isAffectedByBarectfEventBeforePacket(info tracerInfo) bool {
	if info.name != "barectf" {
		return false
	}
	if info.major < 2 {
		return true
	}
	if info.major != 2 || !info.hasMinor {
		return false
	}
	if info.minor < 3 {
		return true
	}
	return info.minor == 3 && info.hasPatch && info.patch < 1
}

// isAffectedByLTTngCrash mirrors is_tracer_affected_by_lttng_crash_quirk:
// every lttng-ust/lttng-modules version may be affected.
func isAffectedByLTTngCrash(info tracerInfo) bool {
	return info.name == "lttng-ust" || info.name == "lttng-modules"
}

// AddStreamClass registers a new stream class. Before the trace class
// has been observed this is ordinary schema construction; after
// observation it is the "live metadata update" path of §4.2.3/§6.2,
// and is only valid for a stream id that doesn't already exist --
// anything else (a colliding id) is a schema_error per the Open
// Question decision recorded in DESIGN.md ("treat as schema_error
// unless byte-for-byte identical", which for this scaffold we treat
// conservatively as always an error: distilled live-update of an
// existing stream class is not implemented).
func (tc *TraceClass) AddStreamClass(id uint64) (*StreamClass, error) {
	if _, exists := tc.streamByID[id]; exists {
		return nil, errs.New(errs.SchemaError, "stream class id %d already exists in trace class", id)
	}
	sc := newStreamClass(id, tc)
	tc.streamClasses = append(tc.streamClasses, sc)
	tc.streamByID[id] = sc
	return sc, nil
}

// AddEventClass is the additive-update entry point named in §6.2 and
// §4.2.3: adding a new event class to an already-observed trace class
// is permitted; colliding ids are not.
func (sc *StreamClass) AddEventClass(id uint64) (*EventClass, error) {
	ec := &EventClass{ID: id, SpecContext: NoFieldClass, Payload: NoFieldClass}
	if err := sc.addEventClass(ec); err != nil {
		return nil, err
	}
	return ec, nil
}
