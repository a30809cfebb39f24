package muxer

import (
	"testing"

	"github.com/tracegraph/ctf/clock"
	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/message"
)

// seqIterator replays a fixed list of event times (ns) as Event
// messages against a shared clock class, one per Next(1) call, ending
// with errs.End.
type seqIterator struct {
	clk   *clock.Class
	times []int64
	idx   int
}

func newSeq(clk *clock.Class, times ...int64) *seqIterator {
	return &seqIterator{clk: clk, times: times}
}

func (s *seqIterator) Next(capacity int) ([]*message.Message, error) {
	if s.idx >= len(s.times) {
		return nil, errs.End
	}
	t := s.times[s.idx]
	s.idx++
	cycles := uint64(t) // identity clock below: freq=1e9, offset 0 => ns == cycles
	return []*message.Message{{
		Kind:          message.Event,
		ClockSnapshot: &message.Snapshot{Class: s.clk, Cycles: cycles},
	}}, nil
}

func (s *seqIterator) Finalize() error { return nil }

func mustTime(t *testing.T, m *message.Message) int64 {
	t.Helper()
	ns, err := m.EffectiveTimeNS()
	if err != nil {
		t.Fatal(err)
	}
	return ns
}

func TestMuxerOrdersBySmallestHeadTime(t *testing.T) {
	clk, err := clock.New(1_000_000_000, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	m := New()
	m.AddUpstream("in0", newSeq(clk, 24, 53, 97))
	m.AddUpstream("in1", newSeq(clk, 51, 59))
	m.AddUpstream("in2", newSeq(clk, 8, 71))
	m.AddUpstream("in3", newSeq(clk, 41, 56))

	var got []int64
	for {
		batch, err := m.Next(10)
		for _, msg := range batch {
			got = append(got, mustTime(t, msg))
		}
		if errs.IsEnd(err) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	want := []int64{8, 24, 41, 51, 53, 56, 59, 71, 97}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %d, want %d (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestMuxerTieBreaksBySlotIndex(t *testing.T) {
	clk0, _ := clock.New(1_000_000_000, 0, 0)
	clk1, _ := clock.New(1_000_000_000, 0, 0)
	clk0.IsAbsolute, clk1.IsAbsolute = true, true
	m := New()
	m.AddUpstream("in0", newSeq(clk0, 10))
	m.AddUpstream("in1", newSeq(clk1, 10))

	batch, err := m.Next(10)
	if err != nil && !errs.IsEnd(err) {
		t.Fatal(err)
	}
	if len(batch) == 0 {
		t.Fatal("expected at least one message")
	}
	// in0 was registered first, so on a tie it must be chosen first.
	if batch[0].ClockSnapshot.Cycles != 10 || batch[0].ClockSnapshot.Class != clk0 {
		t.Fatalf("unexpected first message: %+v", batch[0])
	}
}

func TestMuxerPropagatesAgainWhenNothingIsReady(t *testing.T) {
	m := New()
	m.AddUpstream("in0", &scriptedAgain{})

	_, err := m.Next(10)
	if !errs.IsAgain(err) {
		t.Fatalf("expected errs.Again, got %v", err)
	}
}

type scriptedAgain struct{}

func (scriptedAgain) Next(int) ([]*message.Message, error) { return nil, errs.Again }
func (scriptedAgain) Finalize() error                       { return nil }

// lateUpstream replays a single scripted time on its first pull and
// ends after that, modeling a port that is connected only after the
// muxer has already emitted messages.
type lateUpstream struct {
	t        int64
	produced bool
}

func (l *lateUpstream) Next(capacity int) ([]*message.Message, error) {
	if l.produced {
		return nil, errs.End
	}
	l.produced = true
	return []*message.Message{{Kind: message.Event, ClockSnapshot: &message.Snapshot{Class: sharedClk, Cycles: uint64(l.t)}}}, nil
}
func (l *lateUpstream) Finalize() error { return nil }

var sharedClk, _ = clock.New(1_000_000_000, 0, 0)

func TestMuxerLatePortTimeRegression(t *testing.T) {
	m := New()
	m.AddUpstream("in0", newSeq(sharedClk, 10, 20, 30))

	for i := 0; i < 3; i++ {
		if _, err := m.Next(1); err != nil {
			t.Fatalf("unexpected error advancing past message %d: %v", i, err)
		}
	}

	m.AddUpstream("in1", &lateUpstream{t: 15})
	_, err := m.Next(1)
	if kind, ok := errs.KindOf(err); !ok || kind != errs.TimeRegression {
		t.Fatalf("expected errs.TimeRegression, got %v", err)
	}
}

func TestMuxerLatePortCleanWhenTimeAdvances(t *testing.T) {
	m := New()
	m.AddUpstream("in0", newSeq(sharedClk, 10, 20, 30))
	for i := 0; i < 3; i++ {
		if _, err := m.Next(1); err != nil {
			t.Fatalf("unexpected error advancing past message %d: %v", i, err)
		}
	}

	m.AddUpstream("in1", &lateUpstream{t: 100})
	batch, err := m.Next(1)
	if err != nil {
		t.Fatalf("unexpected error merging a late port with an advancing time: %v", err)
	}
	if len(batch) != 1 || batch[0].ClockSnapshot.Cycles != 100 {
		t.Fatalf("got %+v, want the late port's message", batch)
	}
}
