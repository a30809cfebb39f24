package graph

import (
	"testing"

	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/message"
	"github.com/tracegraph/ctf/value"
)

// fakeIterator is a scripted PullCloser: each call to Next pops the
// next scripted (batch, err) pair.
type fakeIterator struct {
	script []struct {
		batch []*message.Message
		err   error
	}
	idx      int
	finalize bool
}

func (f *fakeIterator) Next(capacity int) ([]*message.Message, error) {
	if f.idx >= len(f.script) {
		return nil, errs.End
	}
	s := f.script[f.idx]
	f.idx++
	return s.batch, s.err
}

func (f *fakeIterator) Finalize() error {
	f.finalize = true
	return nil
}

func withScript(pairs ...struct {
	batch []*message.Message
	err   error
}) *fakeIterator {
	return &fakeIterator{script: pairs}
}

func pair(n int, err error) struct {
	batch []*message.Message
	err   error
} {
	var b []*message.Message
	for i := 0; i < n; i++ {
		b = append(b, &message.Message{Kind: message.Event})
	}
	return struct {
		batch []*message.Message
		err   error
	}{b, err}
}

// recordingSource adds one output port at Initialize time, wired to
// whatever scripted iterator the test supplies.
type recordingSource struct {
	it                  *fakeIterator
	outputPortConnected bool
}

func (s *recordingSource) Initialize(self *Handle, params value.Value) error {
	p, err := self.AddOutputPort("out")
	if err != nil {
		return err
	}
	return p.SetUpstream(s.it)
}
func (s *recordingSource) Finalize() error                { return nil }
func (s *recordingSource) OutputPortConnected(p *Port) error {
	s.outputPortConnected = true
	return nil
}
func (s *recordingSource) Query(string, value.Value) (value.Value, error) { return nil, nil }

// countingSink pulls once per Consume call and tallies events seen.
type countingSink struct {
	events             int
	inputPortConnected bool
}

func (s *countingSink) Initialize(self *Handle, params value.Value) error {
	_, err := self.AddInputPort("in")
	return err
}
func (s *countingSink) Finalize() error { return nil }
func (s *countingSink) InputPortConnected(p *Port) error {
	s.inputPortConnected = true
	return nil
}
func (s *countingSink) Consume(self *Handle) error {
	p, _ := self.InputPort("in")
	batch, err := p.Next(10)
	s.events += len(batch)
	return err
}

func TestConnectPortsInvokesCallbacksInOrder(t *testing.T) {
	g := New()
	src := &recordingSource{it: withScript(pair(1, errs.End))}
	sink := &countingSink{}

	srcHandle, err := g.AddSourceComponent("src", src, nil)
	if err != nil {
		t.Fatal(err)
	}
	sinkHandle, err := g.AddSinkComponent("sink", sink, nil)
	if err != nil {
		t.Fatal(err)
	}

	out, _ := srcHandle.OutputPort("out")
	in, _ := sinkHandle.InputPort("in")
	if err := g.ConnectPorts(out, in); err != nil {
		t.Fatal(err)
	}
	if !src.outputPortConnected || !sink.inputPortConnected {
		t.Fatal("expected both port_connected callbacks to fire")
	}
	if !out.Connected || !in.Connected || in.Peer != out {
		t.Fatal("ports not wired correctly")
	}
}

func TestConnectPortsRejectsAlreadyConnected(t *testing.T) {
	g := New()
	src := &recordingSource{it: withScript(pair(1, errs.End))}
	sink := &countingSink{}
	srcHandle, _ := g.AddSourceComponent("src", src, nil)
	sinkHandle, _ := g.AddSinkComponent("sink", sink, nil)
	out, _ := srcHandle.OutputPort("out")
	in, _ := sinkHandle.InputPort("in")
	if err := g.ConnectPorts(out, in); err != nil {
		t.Fatal(err)
	}
	if err := g.ConnectPorts(out, in); err == nil {
		t.Fatal("expected an error reconnecting an already-connected port")
	}
}

func TestRunDrivesSinkToEnd(t *testing.T) {
	g := New()
	src := &recordingSource{it: withScript(pair(3, nil), pair(2, errs.End))}
	sink := &countingSink{}
	srcHandle, _ := g.AddSourceComponent("src", src, nil)
	sinkHandle, _ := g.AddSinkComponent("sink", sink, nil)
	out, _ := srcHandle.OutputPort("out")
	in, _ := sinkHandle.InputPort("in")
	if err := g.ConnectPorts(out, in); err != nil {
		t.Fatal(err)
	}

	if err := g.Run(); !errs.IsEnd(err) {
		t.Fatalf("expected errs.End, got %v", err)
	}
	if sink.events != 5 {
		t.Fatalf("got %d events, want 5", sink.events)
	}
}

func TestRunReturnsAgainWhenEveryoneIsBlocked(t *testing.T) {
	g := New()
	src := &recordingSource{it: withScript(pair(0, errs.Again), pair(0, errs.Again))}
	sink := &countingSink{}
	srcHandle, _ := g.AddSourceComponent("src", src, nil)
	sinkHandle, _ := g.AddSinkComponent("sink", sink, nil)
	out, _ := srcHandle.OutputPort("out")
	in, _ := sinkHandle.InputPort("in")
	if err := g.ConnectPorts(out, in); err != nil {
		t.Fatal(err)
	}

	err := g.Run()
	if !errs.IsAgain(err) {
		t.Fatalf("expected errs.Again, got %v", err)
	}
}

func TestPortAddedListenerFiresForLatePorts(t *testing.T) {
	g := New()
	var seen []string
	g.AddOutputPortAddedListener(func(p *Port, _ any) {
		seen = append(seen, p.Name)
	}, nil)

	src := &recordingSource{it: withScript(pair(1, errs.End))}
	if _, err := g.AddSourceComponent("src", src, nil); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 || seen[0] != "out" {
		t.Fatalf("got %v, want [out]", seen)
	}
}
