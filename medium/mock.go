package medium

import (
	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/message"
	"github.com/tracegraph/ctf/schema"
	"github.com/tracegraph/ctf/value"
)

// Step is one scripted response for MockMedium: Data is returned
// verbatim (ignoring requestedLen, since tests script exact byte
// counts), a nil Data with a nil Err means Again, and a non-nil Err is
// returned as-is.
type Step struct {
	Data []byte
	Err  error
}

// MockMedium replays a fixed script of RequestBytes outcomes,
// independent of requestedLen. It exists to drive the exact
// half-read-then-Again-then-rest scenario of spec §8.2 scenario 4
// without a real file or network round trip.
type MockMedium struct {
	steps []Step
	idx   int
	pos   uint64

	trace   *schema.TraceClass
	streams map[uint64]*message.StreamIdentity
}

func NewMock(trace *schema.TraceClass, steps ...Step) *MockMedium {
	return &MockMedium{steps: steps, trace: trace, streams: make(map[uint64]*message.StreamIdentity)}
}

func (m *MockMedium) RequestBytes(requestedLen int) ([]byte, uint64, error) {
	if m.idx >= len(m.steps) {
		return nil, 0, errs.End
	}
	step := m.steps[m.idx]
	m.idx++
	if step.Err != nil {
		return nil, 0, step.Err
	}
	if step.Data == nil {
		return nil, 0, errs.Again
	}
	off := m.pos
	m.pos += uint64(len(step.Data))
	return step.Data, off, nil
}

func (m *MockMedium) Seek(uint64) error {
	return errs.New(errs.Unsupported, "mock medium does not support seeking")
}

func (m *MockMedium) CanSeek() bool { return false }

func (m *MockMedium) BorrowStream(streamClassID, streamInstanceID uint64, _ value.Value) (*message.StreamIdentity, error) {
	if sid, ok := m.streams[streamInstanceID]; ok {
		return sid, nil
	}
	sc := m.trace.StreamClassByID(streamClassID)
	if sc == nil {
		return nil, errs.New(errs.DecodeError, "unknown stream class id %d", streamClassID)
	}
	sid := &message.StreamIdentity{Class: sc, InstanceID: streamInstanceID}
	m.streams[streamInstanceID] = sid
	return sid, nil
}
