package graph

// portListener is one registered port-added callback (spec §4.3's
// `add_<kind>_port_added_listener`).
type portListener struct {
	cb   func(p *Port, data any)
	data any
}

// ListenerID identifies a registered listener; currently only used for
// documentation symmetry with spec §4.3 -- there is no remove call in
// scope.
type ListenerID int

// AddOutputPortAddedListener registers cb to run exactly once for
// every output port that appears in the graph after this call.
func (g *Graph) AddOutputPortAddedListener(cb func(p *Port, data any), data any) ListenerID {
	g.outListeners = append(g.outListeners, portListener{cb, data})
	return ListenerID(len(g.outListeners) - 1)
}

func (g *Graph) AddInputPortAddedListener(cb func(p *Port, data any), data any) ListenerID {
	g.inListeners = append(g.inListeners, portListener{cb, data})
	return ListenerID(len(g.inListeners) - 1)
}

// notePortAdded defers listener dispatch for p until the current
// top-level callback returns (batchDepth reaches 0), forming the BFS
// order spec §4.3 requires: ports discovered while dispatching a round
// of listeners are queued for the next round rather than dispatched
// immediately.
func (g *Graph) notePortAdded(p *Port) {
	g.pendingPorts = append(g.pendingPorts, p)
	if g.batchDepth == 0 {
		g.drainPendingPorts()
	}
}

func (g *Graph) drainPendingPorts() {
	g.batchDepth++
	defer func() { g.batchDepth-- }()
	for len(g.pendingPorts) > 0 {
		round := g.pendingPorts
		g.pendingPorts = nil
		for _, p := range round {
			g.dispatchListeners(p)
		}
	}
}

func (g *Graph) dispatchListeners(p *Port) {
	listeners := g.outListeners
	if p.Dir == Input {
		listeners = g.inListeners
	}
	for _, l := range listeners {
		l.cb(p, l.data)
	}
}

// beginCallback/endCallback bracket exactly one component callback
// invocation (initialize, port_connected). Nesting depth lets several
// AddOutputPort/AddInputPort calls inside one callback all batch
// together, draining only once the outermost callback returns.
func (g *Graph) beginCallback() { g.batchDepth++ }

func (g *Graph) endCallback() {
	g.batchDepth--
	if g.batchDepth == 0 {
		g.drainPendingPorts()
	}
}
