package iterator

import (
	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/message"
	"github.com/tracegraph/ctf/value"
)

// validateHeader applies §6.1/§4.2.3's recognized packet-header
// members: a declared magic must match the CTF constant, a declared
// uuid must match the trace class, and stream_id/stream_instance_id
// (when present) select the stream this packet belongs to.
func (it *Iterator) validateHeader(mv *value.MapValue) error {
	if magic, ok := getUint(mv, fieldMagic); ok && magic != ctfMagic {
		return errs.New(errs.DecodeError, "bad packet magic 0x%x", magic)
	}
	if v, ok := mv.Get(fieldUUID); ok {
		if got, ok := extractUUIDBytes(v); ok {
			if it.trace.UUID != nil && got != [16]byte(*it.trace.UUID) {
				return errs.New(errs.DecodeError, "packet uuid does not match trace class uuid")
			}
		}
	}
	if id, ok := getUint(mv, fieldStreamID); ok {
		it.streamClassID = id
	}
	if id, ok := getUint(mv, fieldStreamInstanceID); ok {
		it.streamInstanceID = id
	}
	return nil
}

// loadPacketSizes reads packet_size/content_size (declared directly
// in bits, the common CTF convention) and validates content_size <=
// packet_size up front so SKIP_PADDING never has to.
func (it *Iterator) loadPacketSizes(mv *value.MapValue) error {
	packetSize, ok := getUint(mv, fieldPacketSize)
	if !ok {
		return errs.New(errs.SchemaError, "packet context declares no packet_size")
	}
	contentSize, ok := getUint(mv, fieldContentSize)
	if !ok {
		contentSize = packetSize
	}
	if contentSize > packetSize {
		return errs.New(errs.DecodeError, "content_size %d exceeds packet_size %d", contentSize, packetSize)
	}
	it.packetSizeBits = packetSize
	it.contentSizeBits = contentSize
	return nil
}

// maybeDiscardedPackets synthesizes the discarded-packets message of
// spec §4.2.4 when packet_seq_num has jumped by more than 1 since the
// previous packet on this stream.
func (it *Iterator) maybeDiscardedPackets() *message.Message {
	if it.discardedPacketsDone {
		return nil
	}
	it.discardedPacketsDone = true
	seq, ok := getUint(it.pktContextVal, fieldPacketSeqNum)
	if !ok || !it.curTrack.hasSeqNum || seq <= it.curTrack.lastSeqNum+1 {
		return nil
	}
	gap := seq - it.curTrack.lastSeqNum - 1
	begin, hasBegin := it.curTrack.lastPacketEnd, it.curTrack.lastPacketEnd != nil
	end, hasEnd := snapshotFromField(it.pktContextVal, fieldTimestampBegin, streamDefaultClock(it.curStreamClass))
	msg := &message.Message{Kind: message.DiscardedPackets, Stream: it.curTrack.identity, DiscardedCount: gap}
	if hasBegin && hasEnd {
		msg.RangeBegin, msg.RangeEnd, msg.HasRange = begin, end, true
	}
	return msg
}

// maybeDiscardedEvents synthesizes the discarded-events message of
// spec §4.2.4. Per the Open Question resolution recorded in
// DESIGN.md, a message is only emitted when both range boundaries are
// known or neither is -- a single known boundary is ambiguous and is
// dropped rather than emitted half-complete.
func (it *Iterator) maybeDiscardedEvents() *message.Message {
	if it.discardedEventsDone {
		return nil
	}
	it.discardedEventsDone = true
	discarded, ok := getUint(it.pktContextVal, fieldEventsDiscarded)
	if !ok || !it.curTrack.hasEventsDiscarded || discarded <= it.curTrack.lastEventsDiscarded {
		return nil
	}
	delta := discarded - it.curTrack.lastEventsDiscarded
	begin, hasBegin := it.curTrack.lastPacketEnd, it.curTrack.lastPacketEnd != nil
	end, hasEnd := snapshotFromField(it.pktContextVal, fieldTimestampBegin, streamDefaultClock(it.curStreamClass))
	if hasBegin != hasEnd {
		return nil
	}
	msg := &message.Message{Kind: message.DiscardedEvents, Stream: it.curTrack.identity, DiscardedCount: delta}
	if hasBegin {
		msg.RangeBegin, msg.RangeEnd, msg.HasRange = begin, end, true
	}
	return msg
}
