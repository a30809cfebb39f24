package medium

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/message"
	"github.com/tracegraph/ctf/schema"
	"github.com/tracegraph/ctf/value"
)

// FileMedium implements spec §4.1's single-file medium: maps the file
// into memory in page-aligned windows of bounded maximum size, sliding
// the window forward on request rather than mapping the whole file at
// once (files can be far larger than a comfortable mapping).
type FileMedium struct {
	mu sync.Mutex

	f        *os.File
	size     int64
	winSize  int
	pageSize int

	window    []byte
	windowOff int64 // file offset the current window starts at
	pos       int64 // current absolute read position

	trace   *schema.TraceClass
	streams map[uint64]*message.StreamIdentity
}

// OpenFile opens path and prepares a single-file medium with the given
// maximum window size (rounded down to a page-size multiple).
func OpenFile(path string, windowSize int, trace *schema.TraceClass) (*FileMedium, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.DecodeError, err, "open %s", path)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(errs.DecodeError, err, "stat %s", path)
	}
	ps := unix.Getpagesize()
	if windowSize < ps {
		windowSize = ps
	}
	windowSize -= windowSize % ps
	return &FileMedium{
		f: f, size: fi.Size(), winSize: windowSize, pageSize: ps,
		windowOff: -1,
		trace:     trace,
		streams:   make(map[uint64]*message.StreamIdentity),
	}, nil
}

func (m *FileMedium) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unmapLocked()
	return m.f.Close()
}

func (m *FileMedium) unmapLocked() {
	if m.window != nil {
		_ = unix.Munmap(m.window)
		m.window = nil
		m.windowOff = -1
	}
}

func (m *FileMedium) ensureWindowLocked() error {
	if m.window != nil && m.pos >= m.windowOff && m.pos < m.windowOff+int64(len(m.window)) {
		return nil
	}
	m.unmapLocked()

	base := (m.pos / int64(m.pageSize)) * int64(m.pageSize)
	length := m.winSize
	if base+int64(length) > m.size {
		length = int(m.size - base)
	}
	if length <= 0 {
		return errs.End
	}
	data, err := unix.Mmap(int(m.f.Fd()), base, length, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return errs.Wrap(errs.MemoryError, err, "mmap window at %d len %d", base, length)
	}
	m.window = data
	m.windowOff = base
	return nil
}

func (m *FileMedium) RequestBytes(requestedLen int) ([]byte, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pos >= m.size {
		return nil, 0, errs.End
	}
	if err := m.ensureWindowLocked(); err != nil {
		return nil, 0, err
	}
	avail := int(m.windowOff + int64(len(m.window)) - m.pos)
	take := requestedLen
	if take > avail {
		take = avail
	}
	if take <= 0 {
		return nil, 0, errs.End
	}
	start := int(m.pos - m.windowOff)
	buf := m.window[start : start+take]
	offset := uint64(m.pos)
	m.pos += int64(take)
	return buf, offset, nil
}

func (m *FileMedium) Seek(offsetFromBegin uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int64(offsetFromBegin) > m.size {
		return errs.New(errs.DecodeError, "seek offset %d past end of file (size %d)", offsetFromBegin, m.size)
	}
	m.unmapLocked()
	m.pos = int64(offsetFromBegin)
	return nil
}

func (m *FileMedium) CanSeek() bool { return true }

func (m *FileMedium) BorrowStream(streamClassID, streamInstanceID uint64, _ value.Value) (*message.StreamIdentity, error) {
	if sid, ok := m.streams[streamInstanceID]; ok {
		return sid, nil
	}
	sc := m.trace.StreamClassByID(streamClassID)
	if sc == nil {
		return nil, errs.New(errs.DecodeError, "packet header names unknown stream class id %d", streamClassID)
	}
	sid := &message.StreamIdentity{Class: sc, InstanceID: streamInstanceID}
	m.streams[streamInstanceID] = sid
	return sid, nil
}
