package iterator

import (
	"encoding/binary"
	"testing"

	"github.com/tracegraph/ctf/clock"
	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/medium"
	"github.com/tracegraph/ctf/message"
	"github.com/tracegraph/ctf/schema"
	"github.com/tracegraph/ctf/value"
)

// buildTrace constructs a minimal one-stream, one-event-class trace:
// packet header {stream_id: u32}, packet context {packet_size,
// content_size, timestamp_begin, timestamp_end: u32, the last two
// clock-mapped}, event header {id: u8}, event payload {value: u32}.
// All fields are byte-aligned so the fixture bytes can be built with
// plain concatenation instead of a bit writer.
func buildTrace(t *testing.T) (*schema.TraceClass, *clock.Class) {
	t.Helper()
	tc := schema.New()
	clk, err := clock.New(1_000_000_000, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	hdrStreamID, err := tc.Arena.AddInteger(schema.NoFieldClass, false, 32, schema.Base10, schema.BigEndian, schema.EncodingUTF8)
	if err != nil {
		t.Fatal(err)
	}
	hdr, err := tc.Arena.AddStruct(schema.NoFieldClass, []schema.StructMember{
		{Name: "stream_id", Class: hdrStreamID, Alignment: 8},
	})
	if err != nil {
		t.Fatal(err)
	}
	tc.PacketHeader = hdr

	u32 := func() schema.FieldClassID {
		id, err := tc.Arena.AddInteger(schema.NoFieldClass, false, 32, schema.Base10, schema.BigEndian, schema.EncodingUTF8)
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
	packetSize := u32()
	contentSize := u32()
	tsBeginInt, err := tc.Arena.AddIntegerWithClock(schema.NoFieldClass, false, 32, schema.BigEndian, clk)
	if err != nil {
		t.Fatal(err)
	}
	tsEndInt, err := tc.Arena.AddIntegerWithClock(schema.NoFieldClass, false, 32, schema.BigEndian, clk)
	if err != nil {
		t.Fatal(err)
	}
	ctx, err := tc.Arena.AddStruct(schema.NoFieldClass, []schema.StructMember{
		{Name: "packet_size", Class: packetSize, Alignment: 8},
		{Name: "content_size", Class: contentSize, Alignment: 8},
		{Name: "timestamp_begin", Class: tsBeginInt, Alignment: 8},
		{Name: "timestamp_end", Class: tsEndInt, Alignment: 8},
	})
	if err != nil {
		t.Fatal(err)
	}

	evIDInt, err := tc.Arena.AddInteger(schema.NoFieldClass, false, 8, schema.Base10, schema.BigEndian, schema.EncodingUTF8)
	if err != nil {
		t.Fatal(err)
	}
	evHdr, err := tc.Arena.AddStruct(schema.NoFieldClass, []schema.StructMember{
		{Name: "id", Class: evIDInt, Alignment: 8},
	})
	if err != nil {
		t.Fatal(err)
	}

	valInt := u32()
	payload, err := tc.Arena.AddStruct(schema.NoFieldClass, []schema.StructMember{
		{Name: "value", Class: valInt, Alignment: 8},
	})
	if err != nil {
		t.Fatal(err)
	}

	sc, err := tc.AddStreamClass(1)
	if err != nil {
		t.Fatal(err)
	}
	sc.PacketContext = ctx
	sc.EventHeader = evHdr
	sc.DefaultClock = clk

	if _, err := sc.AddEventClass(0); err != nil {
		t.Fatal(err)
	}
	sc.EventClassByID(0).Payload = payload

	return tc, clk
}

func buildPacketBytes(t *testing.T) []byte {
	t.Helper()
	u32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, v)
		return b
	}
	var out []byte
	out = append(out, u32(1)...)          // header.stream_id = 1
	out = append(out, u32(248)...)        // context.packet_size (bits)
	out = append(out, u32(240)...)        // context.content_size (bits)
	out = append(out, u32(100)...)        // context.timestamp_begin
	out = append(out, u32(300)...)        // context.timestamp_end
	out = append(out, 0)                  // event1.header.id
	out = append(out, u32(42)...)         // event1.payload.value
	out = append(out, 0)                  // event2.header.id
	out = append(out, u32(43)...)         // event2.payload.value
	out = append(out, 0)                  // 8 bits padding (240 -> 248)
	return out
}

func TestIteratorDecodesOnePacketTwoEventsThenEnds(t *testing.T) {
	tc, _ := buildTrace(t)
	raw := buildPacketBytes(t)
	m := medium.NewMock(tc, medium.Step{Data: raw})
	it := New(tc, m)

	batch, err := it.Next(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantKinds := []message.Kind{
		message.StreamBegin, message.PacketBegin, message.Event, message.Event,
		message.PacketEnd, message.StreamEnd,
	}
	if len(batch) != len(wantKinds) {
		t.Fatalf("got %d messages, want %d: %+v", len(batch), len(wantKinds), batch)
	}
	for i, k := range wantKinds {
		if batch[i].Kind != k {
			t.Fatalf("message %d: got kind %s, want %s", i, batch[i].Kind, k)
		}
	}

	ev1, ev2 := batch[2], batch[3]
	if ev1.Payload == nil || ev2.Payload == nil {
		t.Fatal("events missing payload")
	}
	v1, _ := ev1.Payload.(*value.MapValue).Get("value")
	v2, _ := ev2.Payload.(*value.MapValue).Get("value")
	if v1.(interface{ Uint() uint64 }).Uint() != 42 {
		t.Fatalf("event1 value = %v, want 42", v1)
	}
	if v2.(interface{ Uint() uint64 }).Uint() != 43 {
		t.Fatalf("event2 value = %v, want 43", v2)
	}

	if _, err := it.Next(1); !errs.IsEnd(err) {
		t.Fatalf("expected End on exhausted iterator, got %v", err)
	}
}

func TestIteratorResumesAfterAgain(t *testing.T) {
	tc, _ := buildTrace(t)
	raw := buildPacketBytes(t)
	// split mid-way through the event header/payload region, with an
	// Again in between -- spec §8.2 scenario 4.
	split := 21
	m := medium.NewMock(tc,
		medium.Step{Data: raw[:split]},
		medium.Step{}, // Again
		medium.Step{Data: raw[split:]},
	)
	it := New(tc, m)

	var all []*message.Message
	for {
		batch, err := it.Next(10)
		all = append(all, batch...)
		if errs.IsAgain(err) {
			continue
		}
		if errs.IsEnd(err) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	count := 0
	for _, m := range all {
		if m.Kind == message.Event {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("expected 2 events across the Again boundary, got %d (all=%+v)", count, all)
	}
}

// buildLargeArrayTrace is buildTrace's layout with the event payload
// replaced by a static array of n one-byte elements, so a single
// decodeAtomic call can be made to span well past trim's 4096-byte
// threshold.
func buildLargeArrayTrace(t *testing.T, n uint64) *schema.TraceClass {
	t.Helper()
	tc := schema.New()

	hdrStreamID, err := tc.Arena.AddInteger(schema.NoFieldClass, false, 32, schema.Base10, schema.BigEndian, schema.EncodingUTF8)
	if err != nil {
		t.Fatal(err)
	}
	hdr, err := tc.Arena.AddStruct(schema.NoFieldClass, []schema.StructMember{
		{Name: "stream_id", Class: hdrStreamID, Alignment: 8},
	})
	if err != nil {
		t.Fatal(err)
	}
	tc.PacketHeader = hdr

	u32 := func() schema.FieldClassID {
		id, err := tc.Arena.AddInteger(schema.NoFieldClass, false, 32, schema.Base10, schema.BigEndian, schema.EncodingUTF8)
		if err != nil {
			t.Fatal(err)
		}
		return id
	}
	ctx, err := tc.Arena.AddStruct(schema.NoFieldClass, []schema.StructMember{
		{Name: "packet_size", Class: u32(), Alignment: 8},
		{Name: "content_size", Class: u32(), Alignment: 8},
	})
	if err != nil {
		t.Fatal(err)
	}

	evIDInt, err := tc.Arena.AddInteger(schema.NoFieldClass, false, 8, schema.Base10, schema.BigEndian, schema.EncodingUTF8)
	if err != nil {
		t.Fatal(err)
	}
	evHdr, err := tc.Arena.AddStruct(schema.NoFieldClass, []schema.StructMember{
		{Name: "id", Class: evIDInt, Alignment: 8},
	})
	if err != nil {
		t.Fatal(err)
	}

	elem, err := tc.Arena.AddInteger(schema.NoFieldClass, false, 8, schema.Base10, schema.BigEndian, schema.EncodingUTF8)
	if err != nil {
		t.Fatal(err)
	}
	arr, err := tc.Arena.AddStaticArray(schema.NoFieldClass, elem, n)
	if err != nil {
		t.Fatal(err)
	}
	payload, err := tc.Arena.AddStruct(schema.NoFieldClass, []schema.StructMember{
		{Name: "bytes", Class: arr, Alignment: 8},
	})
	if err != nil {
		t.Fatal(err)
	}

	sc, err := tc.AddStreamClass(1)
	if err != nil {
		t.Fatal(err)
	}
	sc.PacketContext = ctx
	sc.EventHeader = evHdr
	if _, err := sc.AddEventClass(0); err != nil {
		t.Fatal(err)
	}
	sc.EventClassByID(0).Payload = payload

	return tc
}

// TestIteratorResumesAfterAgainPastTrimThreshold reproduces an Again in
// the middle of decoding a single event payload long enough that
// trim() would, pre-fix, discard buffered bytes the decodeAtomic
// rollback still needs to replay from -- a panic on valid input rather
// than a clean resume (spec §4.2.2, §8.1).
func TestIteratorResumesAfterAgainPastTrimThreshold(t *testing.T) {
	const arrayLen = 6000
	tc := buildLargeArrayTrace(t, arrayLen)

	headerBytes := 4
	ctxBytes := 8
	evHdrBytes := 1
	totalBytes := headerBytes + ctxBytes + evHdrBytes + arrayLen
	totalBits := uint32(totalBytes * 8)

	u32 := func(v uint32) []byte {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, v)
		return b
	}
	var raw []byte
	raw = append(raw, u32(1)...)         // header.stream_id
	raw = append(raw, u32(totalBits)...) // context.packet_size
	raw = append(raw, u32(totalBits)...) // context.content_size
	raw = append(raw, 0)                 // event.header.id
	for i := 0; i < arrayLen; i++ {
		raw = append(raw, byte(i))
	}

	// Split well past the array's start and past trim's 4096-byte
	// threshold, with an Again in between, so the rolled-back replay
	// covers buffer that a threshold-only trim would have freed.
	split := headerBytes + ctxBytes + evHdrBytes + 5000
	m := medium.NewMock(tc,
		medium.Step{Data: raw[:split]},
		medium.Step{}, // Again
		medium.Step{Data: raw[split:]},
	)
	it := New(tc, m)

	var all []*message.Message
	for {
		batch, err := it.Next(10)
		all = append(all, batch...)
		if errs.IsAgain(err) {
			continue
		}
		if errs.IsEnd(err) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	var evs []*message.Message
	for _, msg := range all {
		if msg.Kind == message.Event {
			evs = append(evs, msg)
		}
	}
	if len(evs) != 1 {
		t.Fatalf("expected exactly 1 event, got %d", len(evs))
	}
	arrVal, ok := evs[0].Payload.(*value.MapValue).Get("bytes")
	if !ok {
		t.Fatal("event payload missing bytes array")
	}
	av, ok := value.AsArray(arrVal)
	if !ok || av.Len() != arrayLen {
		t.Fatalf("expected array of length %d, got ok=%v len=%v", arrayLen, ok, av)
	}
}
