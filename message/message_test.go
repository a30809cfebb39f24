package message

import (
	"math"
	"testing"

	"github.com/tracegraph/ctf/clock"
	"github.com/tracegraph/ctf/schema"
)

func TestEffectiveTimeNSClockBearingStreamWithoutSnapshotErrors(t *testing.T) {
	cls, err := clock.New(1_000_000_000, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	sc := &schema.StreamClass{DefaultClock: cls}
	m := &Message{Kind: Event, Stream: StreamIdentity{Class: sc}}
	if _, err := m.EffectiveTimeNS(); err == nil {
		t.Fatal("expected a late-clock-snapshot error on a clock-bearing stream")
	}
}

func TestEffectiveTimeNSClocklessStreamWithoutSnapshotIsNoTime(t *testing.T) {
	sc := &schema.StreamClass{}
	for _, kind := range []Kind{Event, PacketBegin, PacketEnd, DiscardedEvents, DiscardedPackets} {
		m := &Message{Kind: kind, Stream: StreamIdentity{Class: sc}}
		if _, err := m.EffectiveTimeNS(); err != nil {
			t.Fatalf("%s: expected no error on a clockless stream, got %v", kind, err)
		}
	}
}

func TestEffectiveTimeNSStreamBeginEndAreOpportunistic(t *testing.T) {
	sc := &schema.StreamClass{}
	begin := &Message{Kind: StreamBegin, Stream: StreamIdentity{Class: sc}}
	if ns, err := begin.EffectiveTimeNS(); err != nil || ns != math.MinInt64 {
		t.Fatalf("expected -inf for a clockless stream begin, got %d err=%v", ns, err)
	}
	end := &Message{Kind: StreamEnd, Stream: StreamIdentity{Class: sc}}
	if ns, err := end.EffectiveTimeNS(); err != nil || ns != math.MaxInt64 {
		t.Fatalf("expected +inf for a clockless stream end, got %d err=%v", ns, err)
	}
}
