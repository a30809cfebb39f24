package iterator

import (
	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/index"
	"github.com/tracegraph/ctf/medium"
	"github.com/tracegraph/ctf/message"
	"github.com/tracegraph/ctf/schema"
)

type eventSelector int

const (
	firstEvent eventSelector = iota
	lastEvent
)

// decodeEventClockSnapshot opens a disposable medium and iterator over
// path, seeks to the packet starting at offsetBytes, and decodes
// forward through exactly that one packet to recover the clock
// snapshot of its first or last event -- the same "create a throwaway
// message iterator, seek to the packet, decode through it" approach
// the original's decode_clock_snapshot_after_event takes. Returns a
// nil snapshot, nil error when the packet holds no events at all.
func decodeEventClockSnapshot(path string, trace *schema.TraceClass, windowSize int, offsetBytes uint64, which eventSelector) (*message.Snapshot, error) {
	fm, err := medium.OpenFile(path, windowSize, trace)
	if err != nil {
		return nil, err
	}
	defer fm.Close()

	if err := fm.Seek(offsetBytes); err != nil {
		return nil, err
	}
	it := New(trace, fm)
	it.cur.SeekBits(offsetBytes * 8)

	var last *message.Snapshot
	for {
		msg, err := it.advance()
		if err != nil {
			if errs.IsEnd(err) {
				break
			}
			return nil, err
		}
		switch msg.Kind {
		case message.Event:
			last = msg.ClockSnapshot
			if which == firstEvent {
				return last, nil
			}
		case message.PacketEnd:
			return last, nil
		}
	}
	return last, nil
}

// eventClockSnapshotNS decodes which event's clock snapshot in the
// packet at offsetBytes and converts it to nanoseconds. required
// controls what happens when the packet has no events: the
// event-before-packet quirk has nothing to fall back to and errors,
// while event-after-packet/lttng-crash fall back to fallbackNS (the
// packet's own declared begin), matching the original's "if any, or
// [...] otherwise".
func eventClockSnapshotNS(path string, trace *schema.TraceClass, windowSize int, offsetBytes uint64, which eventSelector, required bool, fallbackNS int64) (int64, error) {
	snap, err := decodeEventClockSnapshot(path, trace, windowSize, offsetBytes, which)
	if err != nil {
		return 0, err
	}
	if snap == nil {
		if required {
			return 0, errs.New(errs.DecodeError, "packet at offset %d has no event to decode a clock snapshot from", offsetBytes)
		}
		return fallbackNS, nil
	}
	return snap.Class.CyclesToNS(snap.Cycles)
}

// applyQuirks repairs records in place for whichever tracer-bug quirks
// q enables, decoding exactly the event clock snapshots each quirk
// needs via path (spec §4.2.5). The heavy lifting -- which timestamp
// goes where -- lives in index.Correct*; this function only supplies
// the decoded inputs those need.
func applyQuirks(path string, trace *schema.TraceClass, windowSize int, q index.Quirks, records []index.Record) error {
	if len(records) == 0 || (!q.EventAfterPacket && !q.EventBeforePacket && !q.LTTngCrash) {
		return nil
	}

	if q.EventAfterPacket || q.LTTngCrash {
		last := records[len(records)-1]
		ns, err := eventClockSnapshotNS(path, trace, windowSize, last.Offset, lastEvent, false, last.TimestampBegin)
		if err != nil {
			return err
		}
		index.CorrectEventAfterPacket(records, q, ns)
		index.CorrectCrashTruncatedEnd(records, q, ns)
	}

	if q.EventBeforePacket {
		firstTS := make([]int64, len(records))
		for i := 1; i < len(records); i++ {
			ns, err := eventClockSnapshotNS(path, trace, windowSize, records[i].Offset, firstEvent, true, 0)
			if err != nil {
				return err
			}
			firstTS[i] = ns
		}
		index.CorrectEventBeforePacket(records, q, firstTS)
	}
	return nil
}
