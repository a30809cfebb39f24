// Package iterator implements spec §4.2, the message iterator: a
// pull-driven state machine (state.go) built over a bit-level cursor
// (bitcursor.go) and a field-class decoder (decode.go). It is the
// single largest piece of this repository, matching the spec's own
// description of it as "the core."
package iterator

import (
	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/index"
	"github.com/tracegraph/ctf/medium"
	"github.com/tracegraph/ctf/message"
	"github.com/tracegraph/ctf/schema"
	"github.com/tracegraph/ctf/value"
)

// Iterator is the re-entrant state holder of spec §4.2 / Design Notes
// §9: everything it needs to resume after a medium Again lives on this
// struct rather than on a Go call stack, so Next is safe to call again
// immediately after an Again with no replay or loss.
type Iterator struct {
	trace *schema.TraceClass
	med   medium.Medium
	cur   *bitCursor
	dec   *decoder

	idx         *index.Index // optional packet index, enables seeking
	canceled    func() bool

	state packetState

	// packet scope
	pktOrigin         uint64
	pktHeaderVal      *value.MapValue
	pktContextVal     *value.MapValue
	streamClassID     uint64
	streamInstanceID  uint64
	curStreamClass    *schema.StreamClass
	curTrack          *streamTrack
	packetSizeBits    uint64
	contentSizeBits   uint64
	curPacketIdentity *message.PacketIdentity
	discardedPacketsDone bool
	discardedEventsDone  bool

	// event scope
	evHeaderVal    *value.MapValue
	evCommonCtxVal *value.MapValue
	evSpecCtxVal   *value.MapValue
	evPayloadVal   *value.MapValue
	evClass        *schema.EventClass

	streams         map[uint64]*streamTrack
	streamOrder     []uint64
	streamEndCursor int
}

// Option customizes iterator construction.
type Option func(*Iterator)

// WithIndex attaches a pre-computed packet index, required for
// SeekNSFromOrigin to be advertised (spec §4.2.6).
func WithIndex(idx *index.Index) Option {
	return func(it *Iterator) { it.idx = idx }
}

// WithCancelCheck wires the graph's cancellation flag (spec §5): when
// it returns true, Next returns Again without touching the medium,
// exactly at the medium-level Again boundary the spec describes.
func WithCancelCheck(fn func() bool) Option {
	return func(it *Iterator) { it.canceled = fn }
}

func New(trace *schema.TraceClass, m medium.Medium, opts ...Option) *Iterator {
	trace.MarkObserved()
	it := &Iterator{
		trace:   trace,
		med:     m,
		cur:     newBitCursor(m),
		streams: make(map[uint64]*streamTrack),
		state:   stInit,
	}
	it.dec = newDecoder(it.cur, trace.Arena)
	for _, o := range opts {
		o(it)
	}
	return it
}

// Next fills up to capacity messages in FIFO order (spec §4.2). It
// returns errs.Again if no message could be produced without blocking
// on the medium, and errs.End once every stream has been closed out.
func (it *Iterator) Next(capacity int) ([]*message.Message, error) {
	if capacity <= 0 {
		return nil, errs.New(errs.InvalidArgument, "next: capacity must be > 0, got %d", capacity)
	}
	if it.canceled != nil && it.canceled() {
		return nil, errs.Again
	}
	var batch []*message.Message
	for len(batch) < capacity {
		msg, err := it.advance()
		if err != nil {
			if errs.IsAgain(err) || errs.IsEnd(err) {
				if len(batch) > 0 {
					return batch, nil
				}
				return nil, err
			}
			return nil, err
		}
		batch = append(batch, msg)
	}
	return batch, nil
}

// SeekBeginning resets the iterator and the medium to the start (spec
// §4.2.6).
func (it *Iterator) SeekBeginning() error {
	sk, ok := it.med.(medium.Seekable)
	if !ok || !sk.CanSeek() {
		return errs.New(errs.Unsupported, "medium does not support seeking")
	}
	if err := it.med.Seek(0); err != nil {
		return err
	}
	it.cur.SeekBits(0)
	it.state = stInit
	it.streams = make(map[uint64]*streamTrack)
	it.streamOrder = nil
	it.streamEndCursor = 0
	return nil
}

// CanSeekNSFromOrigin reports whether SeekNSFromOrigin is advertised:
// spec §4.2.6 requires both a packet index and every stream class in
// use to carry a default clock class.
func (it *Iterator) CanSeekNSFromOrigin() bool {
	if it.idx == nil {
		return false
	}
	sk, ok := it.med.(medium.Seekable)
	if !ok || !sk.CanSeek() {
		return false
	}
	for i := 0; i < it.trace.StreamClassCount(); i++ {
		if streamDefaultClock(it.trace.StreamClassByIndex(i)) == nil {
			return false
		}
	}
	return true
}

// SeekNSFromOrigin repositions the medium at the first packet whose
// timestamp_end is >= ns, per the packet index, then resumes decoding
// from that packet's origin (spec §4.2.6). Events before ns within
// that packet are the caller's responsibility to discard via
// EffectiveTimeNS -- the iterator only guarantees packet-granularity
// positioning, not per-event filtering.
func (it *Iterator) SeekNSFromOrigin(ns int64) error {
	if !it.CanSeekNSFromOrigin() {
		return errs.New(errs.Unsupported, "seek_ns_from_origin not advertised")
	}
	rec, ok := it.idx.SeekTarget(ns)
	if !ok {
		return errs.End
	}
	if err := it.med.Seek(rec.Offset); err != nil {
		return err
	}
	it.cur.SeekBits(rec.Offset * 8)
	it.state = stInit
	it.streams = make(map[uint64]*streamTrack)
	it.streamOrder = nil
	it.streamEndCursor = 0
	return nil
}

// Finalize releases the iterator's medium. Safe to call regardless of
// the prior state (spec §4.2).
func (it *Iterator) Finalize() error {
	type closer interface{ Close() error }
	if c, ok := it.med.(closer); ok {
		return c.Close()
	}
	return nil
}
