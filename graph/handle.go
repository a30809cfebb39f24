package graph

import "github.com/tracegraph/ctf/errs"

// Handle is the opaque self-reference spec §6.3 passes to a
// component's methods: it owns that component's ports and is the only
// way to add new ones.
type Handle struct {
	g        *Graph
	name     string
	kind     Kind
	outputs  []*Port
	inputs   []*Port
	outByKey map[string]*Port
	inByKey  map[string]*Port
}

func newHandle(g *Graph, name string, kind Kind) *Handle {
	return &Handle{
		g: g, name: name, kind: kind,
		outByKey: make(map[string]*Port),
		inByKey:  make(map[string]*Port),
	}
}

func (h *Handle) Name() string { return h.name }
func (h *Handle) Kind() Kind   { return h.kind }

// IsCanceled forwards to the owning graph's cancellation flag (spec
// §5), so a component can wire it into a medium-level Again boundary
// without needing its own reference to the Graph.
func (h *Handle) IsCanceled() bool { return h.g.IsCanceled() }

// AddOutputPort creates and registers a new output port, deferring
// port-added listener dispatch to when the current callback returns
// (spec §4.3's port-added propagation rule).
func (h *Handle) AddOutputPort(name string) (*Port, error) {
	if _, exists := h.outByKey[name]; exists {
		return nil, errs.New(errs.InvalidArgument, "graph: component %q already has an output port %q", h.name, name)
	}
	p := newPort(name, Output, h)
	h.outputs = append(h.outputs, p)
	h.outByKey[name] = p
	h.g.notePortAdded(p)
	return p, nil
}

// AddInputPort creates and registers a new input port.
func (h *Handle) AddInputPort(name string) (*Port, error) {
	if _, exists := h.inByKey[name]; exists {
		return nil, errs.New(errs.InvalidArgument, "graph: component %q already has an input port %q", h.name, name)
	}
	p := newPort(name, Input, h)
	h.inputs = append(h.inputs, p)
	h.inByKey[name] = p
	h.g.notePortAdded(p)
	return p, nil
}

func (h *Handle) OutputPort(name string) (*Port, bool) {
	p, ok := h.outByKey[name]
	return p, ok
}

func (h *Handle) InputPort(name string) (*Port, bool) {
	p, ok := h.inByKey[name]
	return p, ok
}

func (h *Handle) OutputPorts() []*Port { return append([]*Port(nil), h.outputs...) }
func (h *Handle) InputPorts() []*Port  { return append([]*Port(nil), h.inputs...) }
