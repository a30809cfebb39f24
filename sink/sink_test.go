package sink

import (
	"testing"

	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/graph"
)

func TestInitializeErrorPropagatesFromAddSinkComponent(t *testing.T) {
	g := graph.New()
	want := errs.New(errs.InvalidArgument, "boom")
	s := New(nil, nil, func(any, *graph.Port) error { return want }, nil)

	_, err := g.AddSinkComponent("sink", s, nil)
	if err != want {
		t.Fatalf("got %v, want %v", err, want)
	}
}

func TestConsumeAgainRequeuesTheSink(t *testing.T) {
	g := graph.New()
	calls := 0
	s := New(nil, func(any, *graph.Port) error {
		calls++
		if calls == 1 {
			return errs.Again
		}
		return errs.End
	}, nil, nil)

	if _, err := g.AddSinkComponent("sink", s, nil); err != nil {
		t.Fatal(err)
	}

	err := g.RunOnce()
	if !errs.IsAgain(err) {
		t.Fatalf("first RunOnce: got %v, want Again", err)
	}
	err = g.RunOnce()
	if !errs.IsEnd(err) {
		t.Fatalf("second RunOnce: got %v, want End", err)
	}
	if calls != 2 {
		t.Fatalf("consume called %d times, want 2", calls)
	}
}

func TestConsumeForwardsUserDataAndPort(t *testing.T) {
	g := graph.New()
	type counter struct{ n int }
	c := &counter{}
	s := New(c, func(data any, port *graph.Port) error {
		data.(*counter).n++
		if port == nil {
			t.Fatal("expected a non-nil port")
		}
		return errs.End
	}, nil, nil)

	if _, err := g.AddSinkComponent("sink", s, nil); err != nil {
		t.Fatal(err)
	}
	if err := g.RunOnce(); !errs.IsEnd(err) {
		t.Fatalf("got %v, want End", err)
	}
	if c.n != 1 {
		t.Fatalf("consume_func ran %d times, want 1", c.n)
	}
}
