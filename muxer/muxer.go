// Package muxer implements spec §4.5: a filter that merges N upstream
// message iterators into one time-ordered stream. It is the only
// component in the core that multiplexes multiple upstreams, and the
// one place clock-class comparability (package clock) is enforced
// across more than two clocks at once.
package muxer

import (
	"fmt"

	"github.com/tracegraph/ctf/clock"
	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/graph"
	"github.com/tracegraph/ctf/message"
	"github.com/tracegraph/ctf/value"
)

type slotState int

const (
	stNeedsPull slotState = iota
	stReady
	stEnded
	stAgain
)

// puller is the structural subset of graph.PullCloser a slot needs:
// both *graph.Port (a connected input port) and any bare iterator
// satisfy it, so standalone (non-graph) use in tests doesn't need a
// graph.Graph at all.
type puller interface {
	Next(capacity int) ([]*message.Message, error)
}

type finalizer interface {
	Finalize() error
}

// slot is one upstream of spec §4.5.1.
type slot struct {
	name       string
	src        puller
	state      slotState
	head       *message.Message
	headTimeNS int64
}

// Muxer is both a graph.Filter (for registration with graph.Graph) and
// a graph.PullCloser (its own output port's upstream -- the muxer
// pulls itself).
type Muxer struct {
	slots         []*slot
	lastEmittedNS int64
	hasEmitted    bool
	nextSlotIdx   int
	handle        *graph.Handle

	clockOrigins map[*clock.Class]struct{}
}

func New() *Muxer {
	return &Muxer{clockOrigins: make(map[*clock.Class]struct{})}
}

// AddUpstream adds a new slot directly, bypassing graph port wiring --
// the entry point for standalone (test) use.
func (m *Muxer) AddUpstream(name string, src puller) {
	m.slots = append(m.slots, &slot{name: name, src: src, state: stNeedsPull})
}

// --- graph.Filter ---

func (m *Muxer) Initialize(self *graph.Handle, params value.Value) error {
	m.handle = self
	out, err := self.AddOutputPort("out")
	if err != nil {
		return err
	}
	return out.SetUpstream(m)
}

func (m *Muxer) Finalize() error {
	var first error
	for _, s := range m.slots {
		if err := finalizeSlot(s.src); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func finalizeSlot(src puller) error {
	if p, ok := src.(*graph.Port); ok {
		if p.Peer != nil {
			return p.Peer.Finalize()
		}
		return nil
	}
	if f, ok := src.(finalizer); ok {
		return f.Finalize()
	}
	return nil
}

// InputPortConnected adds a new slot in state needs_pull for the
// just-connected input port (spec §4.5.4's late-port-creation case is
// exactly this callback firing after Next has already been called).
func (m *Muxer) InputPortConnected(p *graph.Port) error {
	m.slots = append(m.slots, &slot{name: p.Name, src: p, state: stNeedsPull})
	return nil
}

func (m *Muxer) OutputPortConnected(p *graph.Port) error { return nil }

// AddInputPort allocates the next dynamically-named input port
// (`in0`, `in1`, ...) per spec §4.5.
func (m *Muxer) AddInputPort() (*graph.Port, error) {
	name := fmt.Sprintf("in%d", m.nextSlotIdx)
	m.nextSlotIdx++
	return m.handle.AddInputPort(name)
}

// --- graph.PullCloser ---

// Next runs the merge algorithm of spec §4.5.3 until capacity messages
// are produced or no further progress is possible without blocking.
func (m *Muxer) Next(capacity int) ([]*message.Message, error) {
	var batch []*message.Message
	for len(batch) < capacity {
		msg, err := m.step()
		if err != nil {
			if errs.IsAgain(err) || errs.IsEnd(err) {
				if len(batch) > 0 {
					return batch, nil
				}
				return nil, err
			}
			return nil, err
		}
		batch = append(batch, msg)
	}
	return batch, nil
}

// step performs one round of the merge algorithm: pull every
// needs_pull slot, then emit the smallest ready head (ties broken by
// slot index, i.e. iteration order).
func (m *Muxer) step() (*message.Message, error) {
	for _, s := range m.slots {
		if s.state != stNeedsPull {
			continue
		}
		batch, err := s.src.Next(1)
		switch {
		case err == nil && len(batch) > 0:
			t, terr := batch[0].EffectiveTimeNS()
			if terr != nil {
				return nil, terr
			}
			if err := m.checkComparable(batch[0]); err != nil {
				return nil, err
			}
			if m.hasEmitted && t < m.lastEmittedNS {
				return nil, errs.New(errs.TimeRegression,
					"muxer: slot %q head time %d precedes last emitted time %d", s.name, t, m.lastEmittedNS)
			}
			s.head, s.headTimeNS, s.state = batch[0], t, stReady
		case err == nil:
			// a well-behaved puller never returns (nil, nil); treat
			// it the same as again rather than busy-looping on it.
			s.state = stAgain
		case errs.IsAgain(err):
			s.state = stAgain
		case errs.IsEnd(err):
			s.state = stEnded
		default:
			return nil, err
		}
	}

	var best *slot
	allEnded := true
	for _, s := range m.slots {
		if s.state != stEnded {
			allEnded = false
		}
		if s.state == stReady && (best == nil || s.headTimeNS < best.headTimeNS) {
			best = s
		}
	}
	if best == nil {
		if allEnded {
			return nil, errs.End
		}
		return nil, errs.Again
	}
	// best != nil: emit it even if other slots are still again --
	// spec §4.5.3 step 2 only blocks the whole round when *no* slot is
	// ready.
	msg := best.head
	best.head, best.state = nil, stNeedsPull
	m.lastEmittedNS, m.hasEmitted = best.headTimeNS, true
	return msg, nil
}

// checkComparable enforces spec §4.5.2's pairwise clock-class
// comparability requirement across every clock contributing to this
// muxer's output.
func (m *Muxer) checkComparable(msg *message.Message) error {
	if msg.ClockSnapshot == nil {
		return nil
	}
	cls := msg.ClockSnapshot.Class
	for other := range m.clockOrigins {
		if !clock.Comparable(cls, other) {
			return errs.New(errs.IncomparableClocks,
				"muxer: clock class %q is not comparable with an already-active clock class %q", cls.Name, other.Name)
		}
	}
	m.clockOrigins[cls] = struct{}{}
	return nil
}
