// Package index implements the packet index of spec §4.2.5 as a
// first-class, cacheable structure (SPEC_FULL §C.2): one Record per
// packet (offset, size, timestamp range, sequence number), a binary
// encoding via github.com/tinylib/msgp's manual Writer/Reader API, and
// an on-disk cache keyed by (path, size, mtime) backed by
// github.com/tidwall/buntdb so re-opening the same trace skips a full
// rescan.
//
// This package knows nothing about field classes or bit-level decoding
// -- it is handed already-decoded packet boundaries and timestamps by
// the iterator's pre-scan pass, and in return hands back seek targets
// and quirk-corrected boundaries. That keeps index -> iterator a
// one-way dependency.
package index

import (
	"bytes"

	"github.com/tinylib/msgp/msgp"

	"github.com/tracegraph/ctf/errs"
)

// Record describes one packet's position and time range within a
// single medium (file or group).
type Record struct {
	Offset      uint64 // byte offset of the packet's first bit
	PacketSize  uint64 // total packet size in bytes, header included
	ContentSize uint64 // content size in bytes, may be < PacketSize

	HasTimestamps  bool
	TimestampBegin int64 // ns from origin
	TimestampEnd   int64 // ns from origin

	HasSeqNum bool
	SeqNum    uint64

	StreamInstanceID uint64
}

// EncodeMsg writes r using msgp's low-level array encoding: a fixed
// 9-element array keeps the format stable without struct-tag
// reflection or generated code.
func (r *Record) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteArrayHeader(9); err != nil {
		return err
	}
	if err := w.WriteUint64(r.Offset); err != nil {
		return err
	}
	if err := w.WriteUint64(r.PacketSize); err != nil {
		return err
	}
	if err := w.WriteUint64(r.ContentSize); err != nil {
		return err
	}
	if err := w.WriteBool(r.HasTimestamps); err != nil {
		return err
	}
	if err := w.WriteInt64(r.TimestampBegin); err != nil {
		return err
	}
	if err := w.WriteInt64(r.TimestampEnd); err != nil {
		return err
	}
	if err := w.WriteBool(r.HasSeqNum); err != nil {
		return err
	}
	if err := w.WriteUint64(r.SeqNum); err != nil {
		return err
	}
	return w.WriteUint64(r.StreamInstanceID)
}

func (r *Record) DecodeMsg(reader *msgp.Reader) error {
	n, err := reader.ReadArrayHeader()
	if err != nil {
		return err
	}
	if n != 9 {
		return errs.New(errs.DecodeError, "index record: expected 9-element array, got %d", n)
	}
	if r.Offset, err = reader.ReadUint64(); err != nil {
		return err
	}
	if r.PacketSize, err = reader.ReadUint64(); err != nil {
		return err
	}
	if r.ContentSize, err = reader.ReadUint64(); err != nil {
		return err
	}
	if r.HasTimestamps, err = reader.ReadBool(); err != nil {
		return err
	}
	if r.TimestampBegin, err = reader.ReadInt64(); err != nil {
		return err
	}
	if r.TimestampEnd, err = reader.ReadInt64(); err != nil {
		return err
	}
	if r.HasSeqNum, err = reader.ReadBool(); err != nil {
		return err
	}
	if r.SeqNum, err = reader.ReadUint64(); err != nil {
		return err
	}
	r.StreamInstanceID, err = reader.ReadUint64()
	return err
}

// Index is an ordered, immutable-once-built list of packet records for
// one medium.
type Index struct {
	Records []Record
}

func (ix *Index) EncodeMsg(w *msgp.Writer) error {
	if err := w.WriteArrayHeader(uint32(len(ix.Records))); err != nil {
		return err
	}
	for i := range ix.Records {
		if err := ix.Records[i].EncodeMsg(w); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Index) DecodeMsg(reader *msgp.Reader) error {
	n, err := reader.ReadArrayHeader()
	if err != nil {
		return err
	}
	ix.Records = make([]Record, n)
	for i := range ix.Records {
		if err := ix.Records[i].DecodeMsg(reader); err != nil {
			return err
		}
	}
	return nil
}

// Marshal and Unmarshal adapt Index to msgp's byte-slice convenience
// form, used by the buntdb cache.
func Marshal(ix *Index) ([]byte, error) {
	var buf bytes.Buffer
	w := msgp.NewWriter(&buf)
	if err := ix.EncodeMsg(w); err != nil {
		return nil, errs.Wrap(errs.MemoryError, err, "encode index")
	}
	if err := w.Flush(); err != nil {
		return nil, errs.Wrap(errs.MemoryError, err, "flush index encoder")
	}
	return buf.Bytes(), nil
}

func Unmarshal(data []byte) (*Index, error) {
	r := msgp.NewReader(bytes.NewReader(data))
	ix := &Index{}
	if err := ix.DecodeMsg(r); err != nil {
		return nil, errs.Wrap(errs.DecodeError, err, "decode index")
	}
	return ix, nil
}

// SeekTarget locates the record covering timestampNS, or the first
// record at or after it if none covers it exactly (spec §4.2.6's
// seek_ns_from_origin, packet-granularity half).
func (ix *Index) SeekTarget(timestampNS int64) (*Record, bool) {
	for i := range ix.Records {
		r := &ix.Records[i]
		if !r.HasTimestamps {
			continue
		}
		if timestampNS <= r.TimestampEnd {
			return r, true
		}
	}
	return nil, false
}
