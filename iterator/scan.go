package iterator

import (
	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/index"
	"github.com/tracegraph/ctf/medium"
	"github.com/tracegraph/ctf/schema"
	"github.com/tracegraph/ctf/value"
)

// ScanHeaders walks path's packet headers and contexts only --
// skipping every event by jumping straight to the next packet's
// origin -- to build the packet index spec §4.2.5 describes. It backs
// index.BuildGroup's parallel pre-scan (SPEC_FULL §C.2).
func ScanHeaders(path string, trace *schema.TraceClass, windowSize int) (*index.Index, error) {
	fm, err := medium.OpenFile(path, windowSize, trace)
	if err != nil {
		return nil, err
	}
	defer fm.Close()

	cur := newBitCursor(fm)
	dec := newDecoder(cur, trace.Arena)

	var records []index.Record
	for {
		origin := cur.bitPos
		var headerVal value.Value = value.NewMap()
		if trace.PacketHeader != schema.NoFieldClass {
			headerVal, err = dec.decodeField(trace.PacketHeader)
			if err != nil {
				if errs.IsEnd(err) {
					break
				}
				return nil, err
			}
		}
		hv, _ := value.AsMap(headerVal)
		streamID, _ := getUint(hv, fieldStreamID)
		instanceID, _ := getUint(hv, fieldStreamInstanceID)
		sc := trace.StreamClassByID(streamID)

		var ctxVal value.Value = value.NewMap()
		if sc != nil && sc.PacketContext != schema.NoFieldClass {
			ctxVal, err = dec.decodeField(sc.PacketContext)
			if err != nil {
				return nil, err
			}
		}
		cv, _ := value.AsMap(ctxVal)

		packetSize, _ := getUint(cv, fieldPacketSize)
		contentSize, ok := getUint(cv, fieldContentSize)
		if !ok {
			contentSize = packetSize
		}

		rec := index.Record{
			Offset: origin / 8, PacketSize: packetSize / 8, ContentSize: contentSize / 8,
			StreamInstanceID: instanceID,
		}
		clk := streamDefaultClock(sc)
		if snap, ok := snapshotFromField(cv, fieldTimestampBegin, clk); ok {
			if ns, err := snap.Class.CyclesToNS(snap.Cycles); err == nil {
				rec.TimestampBegin, rec.HasTimestamps = ns, true
			}
		}
		if snap, ok := snapshotFromField(cv, fieldTimestampEnd, clk); ok {
			if ns, err := snap.Class.CyclesToNS(snap.Cycles); err == nil {
				rec.TimestampEnd, rec.HasTimestamps = ns, true
			}
		}
		if seq, ok := getUint(cv, fieldPacketSeqNum); ok {
			rec.HasSeqNum, rec.SeqNum = true, seq
		}
		records = append(records, rec)

		if packetSize == 0 {
			return nil, errs.New(errs.SchemaError, "packet at offset %d declares packet_size 0", rec.Offset)
		}
		target := origin + packetSize
		if target < cur.bitPos {
			return nil, errs.New(errs.DecodeError, "content decoded past packet_size at offset %d", rec.Offset)
		}
		if err := cur.SkipBits(target - cur.bitPos); err != nil {
			if errs.IsEnd(err) {
				break
			}
			return nil, err
		}
	}

	if q := trace.Quirks; q.EventAfterPacket || q.EventBeforePacket || q.LTTngCrash {
		idxQuirks := index.Quirks{EventAfterPacket: q.EventAfterPacket, EventBeforePacket: q.EventBeforePacket, LTTngCrash: q.LTTngCrash}
		if err := applyQuirks(path, trace, windowSize, idxQuirks, records); err != nil {
			return nil, err
		}
	}
	return &index.Index{Records: records}, nil
}

// NewScanFunc partially applies ScanHeaders to satisfy index.ScanFunc
// for index.BuildGroup.
func NewScanFunc(trace *schema.TraceClass, windowSize int) index.ScanFunc {
	return func(path string) (*index.Index, error) {
		return ScanHeaders(path, trace, windowSize)
	}
}
