package iterator

import (
	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/message"
	"github.com/tracegraph/ctf/schema"
	"github.com/tracegraph/ctf/value"
)

// packetState enumerates the nodes of spec §4.2.2's diagram. Re-entry
// across a medium Again is handled one level up (advance rolls the
// bit cursor back to the start of whichever structure was in flight),
// so the state tag itself only needs to name which structure comes
// next.
type packetState int

const (
	stInit packetState = iota
	stReadPktHdr
	stAfterHdr
	stReadPktCtx
	stAfterCtx
	stEmitPktBegin
	stReadEvHdr
	stReadEvCommonCtx
	stReadEvSpecCtx
	stReadEvPayload
	stEmitEvent
	stEmitPktEnd
	stSkipPadding
	stEmitStreamEnd
	stDone
)

// decodeAtomic runs fn with the cursor positioned at its current bit
// offset; on Again, the cursor is rolled back to that offset so the
// next call re-decodes the whole structure from the still-buffered
// bytes rather than resuming mid-structure (see the bitCursor doc
// comment in bitcursor.go). This is what makes each §4.2.2 diagram node atomic.
func (it *Iterator) decodeAtomic(fn func() (value.Value, error)) (value.Value, error) {
	start := it.cur.bitPos
	prevFloor, prevHasFloor := it.cur.floor, it.cur.hasFloor
	it.cur.floor, it.cur.hasFloor = start, true

	v, err := fn()

	it.cur.floor, it.cur.hasFloor = prevFloor, prevHasFloor
	if err != nil && errs.IsAgain(err) {
		it.cur.bitPos = start
	}
	return v, err
}

func (it *Iterator) resetPacketScope() {
	it.pktHeaderVal = nil
	it.pktContextVal = nil
	it.streamClassID = 0
	it.streamInstanceID = 0
	it.curStreamClass = nil
	it.curTrack = nil
	it.packetSizeBits = 0
	it.contentSizeBits = 0
	it.curPacketIdentity = nil
	it.discardedPacketsDone = false
	it.discardedEventsDone = false
	it.dec.scopes.resetCompleted()
}

func (it *Iterator) resetEventScope() {
	it.evHeaderVal = nil
	it.evCommonCtxVal = nil
	it.evSpecCtxVal = nil
	it.evPayloadVal = nil
	it.evClass = nil
}

func (it *scopeTracker) resetCompleted() { it.completed = [6]*value.MapValue{} }

// advance runs the state machine until it produces exactly one
// message, blocks (Again), errors, or genuinely ends (End, with no
// more stream-end messages left to flush).
func (it *Iterator) advance() (*message.Message, error) {
	for {
		switch it.state {
		case stInit:
			it.resetPacketScope()
			it.pktOrigin = it.cur.bitPos
			it.state = stReadPktHdr

		case stReadPktHdr:
			v, err := it.decodeAtomic(func() (value.Value, error) {
				if it.trace.PacketHeader == schema.NoFieldClass {
					return value.NewMap(), nil
				}
				return it.dec.decodeField(it.trace.PacketHeader)
			})
			if err != nil {
				if errs.IsEnd(err) {
					it.state = stEmitStreamEnd
					continue
				}
				return nil, err
			}
			mv, _ := value.AsMap(v)
			it.pktHeaderVal = mv
			it.dec.scopes.completeScope(schema.ScopePacketHeader, mv)
			if err := it.validateHeader(mv); err != nil {
				return nil, err
			}
			it.state = stAfterHdr

		case stAfterHdr:
			sid, err := it.med.BorrowStream(it.streamClassID, it.streamInstanceID, it.pktHeaderVal)
			if err != nil {
				return nil, err
			}
			it.curStreamClass = sid.Class
			it.curTrack = it.streamFor(*sid)
			if !it.curTrack.begun {
				it.curTrack.begun = true
				it.state = stReadPktCtx
				return &message.Message{Kind: message.StreamBegin, Stream: *sid}, nil
			}
			it.state = stReadPktCtx

		case stReadPktCtx:
			v, err := it.decodeAtomic(func() (value.Value, error) {
				if it.curStreamClass.PacketContext == schema.NoFieldClass {
					return value.NewMap(), nil
				}
				return it.dec.decodeField(it.curStreamClass.PacketContext)
			})
			if err != nil {
				return nil, err
			}
			mv, _ := value.AsMap(v)
			it.pktContextVal = mv
			it.dec.scopes.completeScope(schema.ScopePacketContext, mv)
			if err := it.loadPacketSizes(mv); err != nil {
				return nil, err
			}
			it.state = stAfterCtx

		case stAfterCtx:
			if msg := it.maybeDiscardedPackets(); msg != nil {
				return msg, nil
			}
			if msg := it.maybeDiscardedEvents(); msg != nil {
				return msg, nil
			}
			it.state = stEmitPktBegin

		case stEmitPktBegin:
			clk := streamDefaultClock(it.curStreamClass)
			seq, hasSeq := getUint(it.pktContextVal, fieldPacketSeqNum)
			it.curPacketIdentity = &message.PacketIdentity{
				Stream:  it.curTrack.identity,
				Context: it.pktContextVal,
				SeqNum:  seq,
				HasSeq:  hasSeq,
			}
			snap, _ := snapshotFromField(it.pktContextVal, fieldTimestampBegin, clk)
			it.resetEventScope()
			it.state = stReadEvHdr
			return &message.Message{Kind: message.PacketBegin, Stream: it.curTrack.identity, Packet: it.curPacketIdentity, ClockSnapshot: snap}, nil

		case stReadEvHdr:
			if it.cur.bitPos >= it.pktOrigin+it.contentSizeBits {
				it.state = stEmitPktEnd
				continue
			}
			it.resetEventScope()
			v, err := it.decodeAtomic(func() (value.Value, error) {
				if it.curStreamClass.EventHeader == schema.NoFieldClass {
					return value.NewMap(), nil
				}
				return it.dec.decodeField(it.curStreamClass.EventHeader)
			})
			if err != nil {
				return nil, err
			}
			mv, _ := value.AsMap(v)
			it.evHeaderVal = mv
			it.dec.scopes.completeScope(schema.ScopeEventHeader, mv)
			id, ok := getUint(mv, "id")
			if !ok {
				return nil, errs.New(errs.DecodeError, "event header carries no recognizable event class id")
			}
			ec := it.curStreamClass.EventClassByID(id)
			if ec == nil {
				return nil, errs.New(errs.DecodeError, "event header names unknown event class id %d", id)
			}
			it.evClass = ec
			it.state = stReadEvCommonCtx

		case stReadEvCommonCtx:
			v, err := it.decodeAtomic(func() (value.Value, error) {
				if it.curStreamClass.EventCommonContext == schema.NoFieldClass {
					return value.NewMap(), nil
				}
				return it.dec.decodeField(it.curStreamClass.EventCommonContext)
			})
			if err != nil {
				return nil, err
			}
			mv, _ := value.AsMap(v)
			it.evCommonCtxVal = mv
			it.dec.scopes.completeScope(schema.ScopeEventCommonContext, mv)
			it.state = stReadEvSpecCtx

		case stReadEvSpecCtx:
			v, err := it.decodeAtomic(func() (value.Value, error) {
				if it.evClass.SpecContext == schema.NoFieldClass {
					return value.NewMap(), nil
				}
				return it.dec.decodeField(it.evClass.SpecContext)
			})
			if err != nil {
				return nil, err
			}
			mv, _ := value.AsMap(v)
			it.evSpecCtxVal = mv
			it.dec.scopes.completeScope(schema.ScopeEventSpecContext, mv)
			it.state = stReadEvPayload

		case stReadEvPayload:
			v, err := it.decodeAtomic(func() (value.Value, error) {
				if it.evClass.Payload == schema.NoFieldClass {
					return value.NewMap(), nil
				}
				return it.dec.decodeField(it.evClass.Payload)
			})
			if err != nil {
				return nil, err
			}
			mv, _ := value.AsMap(v)
			it.evPayloadVal = mv
			it.dec.scopes.completeScope(schema.ScopeEventPayload, mv)
			it.state = stEmitEvent

		case stEmitEvent:
			if it.cur.bitPos > it.pktOrigin+it.contentSizeBits {
				return nil, errs.New(errs.DecodeError, "event straddles the packet's content_size boundary")
			}
			var snap *message.Snapshot
			if it.dec.hasSnapshot {
				s := it.dec.snapshot
				snap = &s
			}
			msg := &message.Message{
				Kind: message.Event, Stream: it.curTrack.identity, Packet: it.curPacketIdentity,
				EventClass: it.evClass, Header: it.evHeaderVal, CommonContext: it.evCommonCtxVal,
				SpecContext: it.evSpecCtxVal, Payload: it.evPayloadVal, ClockSnapshot: snap,
			}
			it.state = stReadEvHdr
			return msg, nil

		case stEmitPktEnd:
			clk := streamDefaultClock(it.curStreamClass)
			snap, _ := snapshotFromField(it.pktContextVal, fieldTimestampEnd, clk)
			if snap != nil {
				it.curTrack.lastPacketEnd = snap
			}
			if seq, ok := getUint(it.pktContextVal, fieldPacketSeqNum); ok {
				it.curTrack.hasSeqNum = true
				it.curTrack.lastSeqNum = seq
			}
			if d, ok := getUint(it.pktContextVal, fieldEventsDiscarded); ok {
				it.curTrack.hasEventsDiscarded = true
				it.curTrack.lastEventsDiscarded = d
			}
			it.state = stSkipPadding
			return &message.Message{Kind: message.PacketEnd, Stream: it.curTrack.identity, Packet: it.curPacketIdentity, ClockSnapshot: snap}, nil

		case stSkipPadding:
			target := it.pktOrigin + it.packetSizeBits
			if target < it.cur.bitPos {
				return nil, errs.New(errs.DecodeError, "content_size %d exceeds packet_size %d", it.contentSizeBits, it.packetSizeBits)
			}
			start := it.cur.bitPos
			if err := it.cur.SkipBits(target - it.cur.bitPos); err != nil {
				if errs.IsAgain(err) {
					it.cur.bitPos = start
				}
				return nil, err
			}
			it.state = stInit

		case stEmitStreamEnd:
			for it.streamEndCursor < len(it.streamOrder) {
				id := it.streamOrder[it.streamEndCursor]
				it.streamEndCursor++
				trk := it.streams[id]
				if trk.begun && !trk.ended {
					trk.ended = true
					return &message.Message{Kind: message.StreamEnd, Stream: trk.identity}, nil
				}
			}
			it.state = stDone

		case stDone:
			return nil, errs.End
		}
	}
}
