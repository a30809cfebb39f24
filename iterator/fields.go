package iterator

import (
	"github.com/tracegraph/ctf/clock"
	"github.com/tracegraph/ctf/message"
	"github.com/tracegraph/ctf/schema"
	"github.com/tracegraph/ctf/value"
)

// Recognized packet header / packet context member names (spec
// §4.2.3). Anything else decoded alongside them is kept in the
// message's Header/Context value tree but otherwise ignored by the
// state machine.
const (
	fieldMagic            = "magic"
	fieldUUID              = "uuid"
	fieldStreamID          = "stream_id"
	fieldStreamInstanceID  = "stream_instance_id"
	fieldPacketSize        = "packet_size"
	fieldContentSize       = "content_size"
	fieldTimestampBegin    = "timestamp_begin"
	fieldTimestampEnd      = "timestamp_end"
	fieldEventsDiscarded   = "events_discarded"
	fieldPacketSeqNum      = "packet_seq_num"
)

const ctfMagic = 0xC1FC1FC1

func getUint(m *value.MapValue, name string) (uint64, bool) {
	v, ok := m.Get(name)
	if !ok {
		return 0, false
	}
	switch vv := v.(type) {
	case *value.UintValue:
		return vv.Uint(), true
	case *value.IntValue:
		return uint64(vv.Int()), true
	default:
		return 0, false
	}
}

func snapshotFromField(m *value.MapValue, name string, clk *clock.Class) (*message.Snapshot, bool) {
	if clk == nil {
		return nil, false
	}
	cycles, ok := getUint(m, name)
	if !ok {
		return nil, false
	}
	return &message.Snapshot{Class: clk, Cycles: cycles}, true
}

func streamDefaultClock(sc *schema.StreamClass) *clock.Class {
	if sc == nil {
		return nil
	}
	c, _ := sc.DefaultClock.(*clock.Class)
	return c
}

func extractUUIDBytes(v value.Value) ([16]byte, bool) {
	var out [16]byte
	av, ok := value.AsArray(v)
	if !ok || av.Len() != 16 {
		return out, false
	}
	for i := 0; i < 16; i++ {
		switch e := av.At(i).(type) {
		case *value.UintValue:
			out[i] = byte(e.Uint())
		case *value.IntValue:
			out[i] = byte(e.Int())
		default:
			return out, false
		}
	}
	return out, true
}
