package graph

import (
	"go.uber.org/atomic"

	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/value"
)

type componentRecord struct {
	handle *Handle
	source Source
	filter Filter
	sink   Sink
}

// Graph owns a set of components and connections and advances them by
// pulling from sinks (spec §4.3). Per spec §5 it is driven by a single
// goroutine at a time; Graph.errChain and Graph.canceled are the
// Go-idiomatic substitute for the thread-locals of §9 -- see
// DESIGN.md.
type Graph struct {
	byName map[string]*componentRecord
	order  []*componentRecord // registration order, for Finalize

	sinkQueue []*componentRecord

	outListeners []portListener
	inListeners  []portListener
	pendingPorts []*Port
	batchDepth   int

	errChain errs.Chain
	canceled atomic.Bool
}

func New() *Graph {
	return &Graph{byName: make(map[string]*componentRecord)}
}

func (g *Graph) register(name string, rec *componentRecord) error {
	if _, exists := g.byName[name]; exists {
		return errs.New(errs.InvalidArgument, "graph: component name %q is already in use", name)
	}
	g.byName[name] = rec
	g.order = append(g.order, rec)
	return nil
}

// AddSourceComponent instantiates impl under name, invoking its
// Initialize callback (which may add output ports).
func (g *Graph) AddSourceComponent(name string, impl Source, params value.Value) (*Handle, error) {
	h := newHandle(g, name, KindSource)
	rec := &componentRecord{handle: h, source: impl}
	if err := g.register(name, rec); err != nil {
		return nil, err
	}
	g.beginCallback()
	err := impl.Initialize(h, params)
	g.endCallback()
	if err != nil {
		delete(g.byName, name)
		return nil, err
	}
	return h, nil
}

// AddFilterComponent instantiates impl under name.
func (g *Graph) AddFilterComponent(name string, impl Filter, params value.Value) (*Handle, error) {
	h := newHandle(g, name, KindFilter)
	rec := &componentRecord{handle: h, filter: impl}
	if err := g.register(name, rec); err != nil {
		return nil, err
	}
	g.beginCallback()
	err := impl.Initialize(h, params)
	g.endCallback()
	if err != nil {
		delete(g.byName, name)
		return nil, err
	}
	return h, nil
}

// AddSinkComponent instantiates impl under name and enqueues it onto
// the scheduler's sink FIFO.
func (g *Graph) AddSinkComponent(name string, impl Sink, params value.Value) (*Handle, error) {
	h := newHandle(g, name, KindSink)
	rec := &componentRecord{handle: h, sink: impl}
	if err := g.register(name, rec); err != nil {
		return nil, err
	}
	g.beginCallback()
	err := impl.Initialize(h, params)
	g.endCallback()
	if err != nil {
		delete(g.byName, name)
		return nil, err
	}
	g.sinkQueue = append(g.sinkQueue, rec)
	return h, nil
}

// ConnectPorts wires output to input (spec §4.3): both must currently
// be unconnected and owned by components already in this graph.
// port_connected callbacks run source side first, then sink side;
// either one failing tears the connection back down.
func (g *Graph) ConnectPorts(output, input *Port) error {
	if output.Dir != Output {
		return errs.New(errs.InvalidArgument, "graph: ConnectPorts: %q is not an output port", output.Name)
	}
	if input.Dir != Input {
		return errs.New(errs.InvalidArgument, "graph: ConnectPorts: %q is not an input port", input.Name)
	}
	if output.Connected || input.Connected {
		return errs.New(errs.InvalidArgument, "graph: ConnectPorts: a port is already connected")
	}
	if _, ok := g.byName[output.Owner.name]; !ok || g.byName[output.Owner.name].handle != output.Owner {
		return errs.New(errs.InvalidArgument, "graph: ConnectPorts: output port's component is not in this graph")
	}
	if _, ok := g.byName[input.Owner.name]; !ok || g.byName[input.Owner.name].handle != input.Owner {
		return errs.New(errs.InvalidArgument, "graph: ConnectPorts: input port's component is not in this graph")
	}

	output.Connected, input.Connected = true, true
	input.Peer = output

	teardown := func() {
		output.Connected, input.Connected = false, false
		input.Peer = nil
	}

	if err := g.invokePortConnected(output.Owner, output); err != nil {
		teardown()
		return err
	}
	if err := g.invokePortConnected(input.Owner, input); err != nil {
		teardown()
		return err
	}
	return nil
}

func (g *Graph) invokePortConnected(owner *Handle, p *Port) error {
	rec := g.byName[owner.name]
	g.beginCallback()
	defer g.endCallback()
	switch {
	case rec.source != nil:
		return rec.source.OutputPortConnected(p)
	case rec.filter != nil:
		if p.Dir == Output {
			return rec.filter.OutputPortConnected(p)
		}
		return rec.filter.InputPortConnected(p)
	case rec.sink != nil:
		return rec.sink.InputPortConnected(p)
	default:
		return nil
	}
}

// RunOnce advances the graph by one sink consume call (spec §4.3): it
// pops the head sink, calls Consume once, and re-queues it unless
// Consume returned errs.End.
func (g *Graph) RunOnce() error {
	if len(g.sinkQueue) == 0 {
		return errs.End
	}
	rec := g.sinkQueue[0]
	g.sinkQueue = g.sinkQueue[1:]
	err := rec.sink.Consume(rec.handle)
	if !errs.IsEnd(err) {
		g.sinkQueue = append(g.sinkQueue, rec)
	}
	return err
}

// Run runs the graph to completion. Each iteration round-robins every
// currently queued sink once; a round in which not a single sink made
// progress (ok or end) means the graph is genuinely blocked, and Run
// returns errs.Again to its own caller rather than busy-spinning --
// the caller decides the retry cadence, the same contract
// iterator.Next already exposes.
func (g *Graph) Run() error {
	for {
		if len(g.sinkQueue) == 0 {
			return errs.End
		}
		n := len(g.sinkQueue)
		progressed := false
		var firstAgain error
		for i := 0; i < n && len(g.sinkQueue) > 0; i++ {
			err := g.RunOnce()
			switch {
			case err == nil, errs.IsEnd(err):
				progressed = true
			case errs.IsAgain(err):
				if firstAgain == nil {
					firstAgain = err
				}
			default:
				return err
			}
		}
		if !progressed {
			if firstAgain != nil {
				return firstAgain
			}
			return errs.End
		}
	}
}

// Cancel sets the process-wide-in-spec, per-graph-in-practice canceled
// flag of spec §5; components (via WithCancelCheck-style wiring) check
// this at medium-level `again` boundaries.
func (g *Graph) Cancel()          { g.canceled.Store(true) }
func (g *Graph) Uncancel()        { g.canceled.Store(false) }
func (g *Graph) IsCanceled() bool { return g.canceled.Load() }

// ErrChain exposes the per-graph cause chain substituting for §9's
// thread-local (see DESIGN.md).
func (g *Graph) ErrChain() *errs.Chain { return &g.errChain }

// Finalize releases every component in reverse registration order,
// matching spec §5's "listener closures are released in reverse
// registration order on graph destruction" resource-ownership rule
// applied here to components generally.
func (g *Graph) Finalize() error {
	var first error
	for i := len(g.order) - 1; i >= 0; i-- {
		rec := g.order[i]
		var err error
		switch {
		case rec.source != nil:
			err = rec.source.Finalize()
		case rec.filter != nil:
			err = rec.filter.Finalize()
		case rec.sink != nil:
			err = rec.sink.Finalize()
		}
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}
