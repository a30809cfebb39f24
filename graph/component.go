package graph

import "github.com/tracegraph/ctf/value"

// Kind is the closed set of component classes spec §6.3 distinguishes.
type Kind int

const (
	KindSource Kind = iota
	KindFilter
	KindSink
)

func (k Kind) String() string {
	return [...]string{"source", "filter", "sink"}[k]
}

// Source is the component interface of spec §6.3: initialize may add
// output ports, output_port_connected fires once per downstream
// connection, query answers the out-of-band support-info/trace-infos
// objects of SPEC_FULL §C.1.
type Source interface {
	Initialize(self *Handle, params value.Value) error
	Finalize() error
	OutputPortConnected(port *Port) error
	Query(object string, params value.Value) (value.Value, error)
}

// Filter adds input-port-connected to Source's surface; a filter owns
// both input and output ports (the muxer is the canonical example).
type Filter interface {
	Initialize(self *Handle, params value.Value) error
	Finalize() error
	InputPortConnected(port *Port) error
	OutputPortConnected(port *Port) error
}

// Sink is driven by the graph's scheduler: Consume is called once per
// run_once turn and maps identity-wise to {ok, again, end, error} via
// a plain error return (nil, errs.Again, errs.End, or anything else).
type Sink interface {
	Initialize(self *Handle, params value.Value) error
	Finalize() error
	InputPortConnected(port *Port) error
	Consume(self *Handle) error
}
