package main

import (
	"github.com/tracegraph/ctf/clock"
	"github.com/tracegraph/ctf/schema"
)

// demoTraceClass builds the one-stream, one-event-class trace the CLI
// decodes: packet header {stream_id: u32}, packet context
// {packet_size, content_size, timestamp_begin, timestamp_end: u32, the
// last two clock-mapped}, event header {id: u8}, event payload
// {value: u32}. The TSDL metadata grammar is out of scope, so this
// entrypoint decodes traces written to this one fixed layout rather
// than an arbitrary one read from a trace's own metadata file.
func demoTraceClass() (*schema.TraceClass, *clock.Class, error) {
	tc := schema.New()
	clk, err := clock.New(1_000_000_000, 0, 0)
	if err != nil {
		return nil, nil, err
	}

	u32 := func() (schema.FieldClassID, error) {
		return tc.Arena.AddInteger(schema.NoFieldClass, false, 32, schema.Base10, schema.BigEndian, schema.EncodingUTF8)
	}

	hdrStreamID, err := u32()
	if err != nil {
		return nil, nil, err
	}
	hdr, err := tc.Arena.AddStruct(schema.NoFieldClass, []schema.StructMember{
		{Name: "stream_id", Class: hdrStreamID, Alignment: 8},
	})
	if err != nil {
		return nil, nil, err
	}
	tc.PacketHeader = hdr

	packetSize, err := u32()
	if err != nil {
		return nil, nil, err
	}
	contentSize, err := u32()
	if err != nil {
		return nil, nil, err
	}
	tsBegin, err := tc.Arena.AddIntegerWithClock(schema.NoFieldClass, false, 32, schema.BigEndian, clk)
	if err != nil {
		return nil, nil, err
	}
	tsEnd, err := tc.Arena.AddIntegerWithClock(schema.NoFieldClass, false, 32, schema.BigEndian, clk)
	if err != nil {
		return nil, nil, err
	}
	ctx, err := tc.Arena.AddStruct(schema.NoFieldClass, []schema.StructMember{
		{Name: "packet_size", Class: packetSize, Alignment: 8},
		{Name: "content_size", Class: contentSize, Alignment: 8},
		{Name: "timestamp_begin", Class: tsBegin, Alignment: 8},
		{Name: "timestamp_end", Class: tsEnd, Alignment: 8},
	})
	if err != nil {
		return nil, nil, err
	}

	evID, err := tc.Arena.AddInteger(schema.NoFieldClass, false, 8, schema.Base10, schema.BigEndian, schema.EncodingUTF8)
	if err != nil {
		return nil, nil, err
	}
	evHdr, err := tc.Arena.AddStruct(schema.NoFieldClass, []schema.StructMember{
		{Name: "id", Class: evID, Alignment: 8},
	})
	if err != nil {
		return nil, nil, err
	}

	val, err := u32()
	if err != nil {
		return nil, nil, err
	}
	payload, err := tc.Arena.AddStruct(schema.NoFieldClass, []schema.StructMember{
		{Name: "value", Class: val, Alignment: 8},
	})
	if err != nil {
		return nil, nil, err
	}

	sc, err := tc.AddStreamClass(1)
	if err != nil {
		return nil, nil, err
	}
	sc.PacketContext = ctx
	sc.EventHeader = evHdr
	sc.DefaultClock = clk

	ec, err := sc.AddEventClass(0)
	if err != nil {
		return nil, nil, err
	}
	ec.Payload = payload

	return tc, clk, nil
}
