package medium

import (
	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/message"
	"github.com/tracegraph/ctf/schema"
	"github.com/tracegraph/ctf/value"
)

// GroupMedium implements spec §4.1's group medium: an ordered list of
// data-stream files that share a single stream instance (the common
// case for a CTF trace that rotated a live stream across several
// files). Reads are transparently concatenated; Seek treats the group
// as one flat address space; EOF is only returned past the last file.
type GroupMedium struct {
	files []*FileMedium
	sizes []int64
	cur   int

	shared *message.StreamIdentity
}

func OpenGroup(paths []string, windowSize int, trace *schema.TraceClass, streamClassID, streamInstanceID uint64) (*GroupMedium, error) {
	g := &GroupMedium{}
	for _, p := range paths {
		fm, err := OpenFile(p, windowSize, trace)
		if err != nil {
			g.Close()
			return nil, err
		}
		g.files = append(g.files, fm)
		g.sizes = append(g.sizes, fm.size)
	}
	sc := trace.StreamClassByID(streamClassID)
	if sc == nil {
		g.Close()
		return nil, errs.New(errs.DecodeError, "group medium: unknown stream class id %d", streamClassID)
	}
	g.shared = &message.StreamIdentity{Class: sc, InstanceID: streamInstanceID}
	return g, nil
}

func (g *GroupMedium) Close() error {
	var first error
	for _, f := range g.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// cumulativeOffset returns the flat, group-wide offset of the start of
// file index i.
func (g *GroupMedium) cumulativeOffset(i int) uint64 {
	var off uint64
	for j := 0; j < i; j++ {
		off += uint64(g.sizes[j])
	}
	return off
}

func (g *GroupMedium) RequestBytes(requestedLen int) ([]byte, uint64, error) {
	for {
		if g.cur >= len(g.files) {
			return nil, 0, errs.End
		}
		buf, off, err := g.files[g.cur].RequestBytes(requestedLen)
		if errs.IsEnd(err) {
			g.cur++
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		return buf, g.cumulativeOffset(g.cur) + off, nil
	}
}

func (g *GroupMedium) Seek(offsetFromBegin uint64) error {
	remaining := offsetFromBegin
	for i, sz := range g.sizes {
		if remaining <= uint64(sz) || i == len(g.sizes)-1 {
			for j, f := range g.files {
				if j < i {
					_ = f.Seek(uint64(g.sizes[j]))
				} else if j > i {
					_ = f.Seek(0)
				}
			}
			g.cur = i
			return g.files[i].Seek(remaining)
		}
		remaining -= uint64(sz)
	}
	return errs.New(errs.DecodeError, "seek offset %d past end of group", offsetFromBegin)
}

func (g *GroupMedium) CanSeek() bool { return true }

func (g *GroupMedium) BorrowStream(_, _ uint64, _ value.Value) (*message.StreamIdentity, error) {
	return g.shared, nil
}
