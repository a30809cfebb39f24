// Package sink implements spec §4.4's simple sink adapter: a
// convenience component class built from three callables rather than
// a hand-written graph.Sink implementation, because most tests and
// tools just want to drain a graph and look at the messages.
package sink

import (
	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/graph"
	"github.com/tracegraph/ctf/value"
)

// InitializeFunc is called once the sink's single input port exists.
type InitializeFunc func(data any, port *graph.Port) error

// ConsumeFunc is called once per graph.Sink.Consume turn, pulling from
// port itself; its return value maps identity-wise to {ok, again, end,
// error} via a plain error return.
type ConsumeFunc func(data any, port *graph.Port) error

// FinalizeFunc runs once, on graph teardown.
type FinalizeFunc func(data any) error

// Simple is a graph.Sink that creates exactly one input port named
// "in" and forwards every callback to the three supplied funcs plus a
// user data value.
type Simple struct {
	Data       any
	OnInit     InitializeFunc
	OnConsume  ConsumeFunc
	OnFinalize FinalizeFunc

	port *graph.Port
}

// New builds a Simple sink ready to register with
// graph.Graph.AddSinkComponent.
func New(data any, onConsume ConsumeFunc, onInit InitializeFunc, onFinalize FinalizeFunc) *Simple {
	return &Simple{Data: data, OnInit: onInit, OnConsume: onConsume, OnFinalize: onFinalize}
}

func (s *Simple) Initialize(self *graph.Handle, params value.Value) error {
	p, err := self.AddInputPort("in")
	if err != nil {
		return err
	}
	s.port = p
	if s.OnInit != nil {
		return s.OnInit(s.Data, p)
	}
	return nil
}

func (s *Simple) Finalize() error {
	if s.OnFinalize != nil {
		return s.OnFinalize(s.Data)
	}
	return nil
}

func (s *Simple) InputPortConnected(port *graph.Port) error { return nil }

func (s *Simple) Consume(self *graph.Handle) error {
	if s.OnConsume == nil {
		return errs.New(errs.InvalidArgument, "sink: no consume_func set")
	}
	return s.OnConsume(s.Data, s.port)
}
