// Package message implements the tagged-variant message stream of
// spec §3.3. A single struct with a Kind tag (rather than an interface
// hierarchy) is used deliberately: the iterator and muxer fill batches
// of these by the thousand per call, and a flat struct avoids a
// per-message heap allocation + vtable indirection on that hot path --
// the same tradeoff the teacher makes for transport.Obj/ObjHdr
// (transport/api.go), plain structs passed by pointer through queues.
package message

import (
	"math"

	"github.com/tracegraph/ctf/clock"
	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/schema"
	"github.com/tracegraph/ctf/value"
)

type Kind int

const (
	StreamBegin Kind = iota
	PacketBegin
	Event
	PacketEnd
	StreamEnd
	DiscardedEvents
	DiscardedPackets
	Inactivity
)

func (k Kind) String() string {
	return [...]string{
		"stream_begin", "packet_begin", "event", "packet_end", "stream_end",
		"discarded_events", "discarded_packets", "inactivity",
	}[k]
}

// StreamIdentity names a stream class instance: the schema node plus
// the numeric instance id carried by the packet header (spec §4.2.3).
type StreamIdentity struct {
	Class      *schema.StreamClass
	InstanceID uint64
}

// PacketIdentity names a packet: the stream it belongs to plus its
// decoded packet-context values (spec §3.3).
type PacketIdentity struct {
	Stream  StreamIdentity
	Context value.Value // decoded packet-context struct, or nil
	SeqNum  uint64
	HasSeq  bool
}

// Snapshot is an unsigned cycle count against a named clock class
// (spec glossary "clock snapshot").
type Snapshot struct {
	Class  *clock.Class
	Cycles uint64
}

// Message is the tagged variant. Only the fields relevant to Kind are
// meaningful.
type Message struct {
	Kind Kind

	Stream StreamIdentity
	Packet *PacketIdentity

	// Event
	EventClass    *schema.EventClass
	Header        value.Value
	CommonContext value.Value
	SpecContext   value.Value
	Payload       value.Value

	// clock observation, if any (nil for "no-time" stream begin/end on
	// a clockless stream class, per spec §4.5.2)
	ClockSnapshot *Snapshot

	// DiscardedEvents / DiscardedPackets
	DiscardedCount uint64
	RangeBegin     *Snapshot
	RangeEnd       *Snapshot
	HasRange       bool

	// Inactivity
	InactivityClock *clock.Class
	InactivityCycle uint64
}

// EffectiveTimeNS computes the ns-from-origin time the muxer orders
// this message by (spec §4.5.2). StreamBegin/StreamEnd messages on a
// clockless stream are "opportunistic": -inf for begin, +inf for end,
// represented as math.MinInt64/MaxInt64 since no finite time is ever
// less/greater than those by construction here.
func (m *Message) EffectiveTimeNS() (int64, error) {
	switch m.Kind {
	case StreamBegin:
		if m.ClockSnapshot == nil {
			return math.MinInt64, nil
		}
		return m.ClockSnapshot.Class.CyclesToNS(m.ClockSnapshot.Cycles)
	case StreamEnd:
		if m.ClockSnapshot == nil {
			return math.MaxInt64, nil
		}
		return m.ClockSnapshot.Class.CyclesToNS(m.ClockSnapshot.Cycles)
	case Inactivity:
		if m.InactivityClock == nil {
			return 0, errs.New(errs.SchemaError, "inactivity message without a clock class")
		}
		return m.InactivityClock.CyclesToNS(m.InactivityCycle)
	default:
		if m.ClockSnapshot == nil {
			if m.Stream.Class != nil && m.Stream.Class.DefaultClock != nil {
				return 0, errs.New(errs.SchemaError, "late clock snapshot: %s message on a clock-bearing stream carries no snapshot", m.Kind)
			}
			// clockless stream: every message is legitimately "no-time"
			// and the muxer treats it that way (spec §4.5.2).
			return 0, nil
		}
		return m.ClockSnapshot.Class.CyclesToNS(m.ClockSnapshot.Cycles)
	}
}
