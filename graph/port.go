// Package graph implements spec §4.3, the component/port/connection
// runtime that drives sources, filters, and sinks. Scheduling is
// single-threaded cooperative (spec §5): every exported method assumes
// it is called from the one goroutine driving this Graph, mirroring
// the teacher's own assumption that a single xaction runs its FSM from
// one goroutine at a time.
package graph

import (
	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/message"
)

// Direction distinguishes an output port (producer side, pulled by a
// downstream input) from an input port (consumer side).
type Direction int

const (
	Output Direction = iota
	Input
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// PullCloser is the minimal iterator surface the graph schedules
// against (spec's `next`/`finalize`). iterator.Iterator and muxer.Muxer
// both satisfy it without graph importing either package, keeping the
// dependency direction component -> graph one-way.
type PullCloser interface {
	Next(capacity int) ([]*message.Message, error)
	Finalize() error
}

// Port is one named connection point on a component.
type Port struct {
	Name      string
	Dir       Direction
	Owner     *Handle
	Connected bool

	// Output-port specific: the iterator this port exposes, set by
	// the owning component once it knows what to produce (spec §4.3's
	// "source adding an output port after learning about a new
	// stream").
	upstream PullCloser

	// Input-port specific: the output port this one is wired to.
	Peer *Port
}

func newPort(name string, dir Direction, owner *Handle) *Port {
	return &Port{Name: name, Dir: dir, Owner: owner}
}

// SetUpstream attaches the iterator an output port exposes.
func (p *Port) SetUpstream(it PullCloser) error {
	if p.Dir != Output {
		return errs.New(errs.InvalidArgument, "graph: SetUpstream on a non-output port %q", p.Name)
	}
	p.upstream = it
	return nil
}

// Next pulls from an input port by following its peer's upstream
// iterator. Filters and sinks call this on their input ports from
// consume/next.
func (p *Port) Next(capacity int) ([]*message.Message, error) {
	if p.Dir != Input {
		return nil, errs.New(errs.InvalidArgument, "graph: Next on a non-input port %q", p.Name)
	}
	if p.Peer == nil || !p.Connected {
		return nil, errs.New(errs.InvalidArgument, "graph: input port %q is not connected", p.Name)
	}
	if p.Peer.upstream == nil {
		return nil, errs.New(errs.InvalidArgument, "graph: output port %q has no iterator attached", p.Peer.Name)
	}
	return p.Peer.upstream.Next(capacity)
}

// Finalize releases the iterator attached to an output port, if any.
func (p *Port) Finalize() error {
	if p.upstream == nil {
		return nil
	}
	return p.upstream.Finalize()
}
