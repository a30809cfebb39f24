package iterator

import "github.com/tracegraph/ctf/message"

// streamTrack is the per-stream-instance bookkeeping needed to
// synthesize discarded-events/discarded-packets messages (spec §4.2.4)
// and to emit exactly one StreamBegin and one StreamEnd regardless of
// how many packets the stream spans.
type streamTrack struct {
	identity message.StreamIdentity
	begun    bool
	ended    bool

	hasEventsDiscarded bool
	lastEventsDiscarded uint64

	hasSeqNum  bool
	lastSeqNum uint64

	lastPacketEnd *message.Snapshot
}

func (it *Iterator) streamFor(sid message.StreamIdentity) *streamTrack {
	trk, ok := it.streams[sid.InstanceID]
	if !ok {
		trk = &streamTrack{identity: sid}
		it.streams[sid.InstanceID] = trk
		it.streamOrder = append(it.streamOrder, sid.InstanceID)
	}
	return trk
}
