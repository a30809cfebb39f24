package source

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"

	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/value"
)

// tsdlPacketMagic is the packetized-metadata stream's magic number
// (lttng-live/metadata.c's TSDL_MAGIC), checked little-endian against
// a metadata file's first four bytes.
const tsdlPacketMagic = 0x75d11d57

// plainTextMetadataPrefix is the comment libbabeltrace's own metadata
// writer opens every plain-text TSDL file with.
const plainTextMetadataPrefix = "/* CTF"

// traceUUIDPattern extracts `uuid = "...";` from plain-text TSDL
// metadata without a full grammar parser -- grounded on the original
// decoder's own "metadata text grammar is out of scope" boundary
// (SPEC_FULL §C), this is a regexp over the one line we need.
var traceUUIDPattern = regexp.MustCompile(`uuid\s*=\s*"([0-9a-fA-F-]{36})"`)

// querySupportInfo implements the "support-info" query object: a
// confidence weight plus, when found, the trace's UUID as the group
// key (original's support_info_query in fs-src/query.c).
func querySupportInfo(params value.Value) (value.Value, error) {
	mv, ok := value.AsMap(params)
	if !ok {
		return nil, errs.New(errs.InvalidArgument, "support-info: params must be a map")
	}

	result := value.NewMap()
	typ, _ := getString(mv, "type")
	if typ != "directory" {
		if err := result.Set("weight", value.NewReal(0)); err != nil {
			return nil, err
		}
		return result, nil
	}

	input, ok := getString(mv, "input")
	if !ok {
		return nil, errs.New(errs.InvalidArgument, "support-info: missing \"input\" parameter")
	}

	weight := 0.0
	var traceUUID *uuid.UUID
	if data, err := os.ReadFile(filepath.Join(input, metadataFileName)); err == nil {
		if looksLikeCTFMetadata(data) {
			weight = 0.75
			traceUUID = detectTraceUUID(data)
		}
	}

	if err := result.Set("weight", value.NewReal(weight)); err != nil {
		return nil, err
	}
	if weight > 0 && traceUUID != nil {
		gv := value.NewString(traceUUID.String())
		err := result.Set("group", gv)
		gv.Unref()
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func looksLikeCTFMetadata(data []byte) bool {
	if len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == tsdlPacketMagic {
		return true
	}
	return len(data) >= len(plainTextMetadataPrefix) && string(data[:len(plainTextMetadataPrefix)]) == plainTextMetadataPrefix
}

func detectTraceUUID(data []byte) *uuid.UUID {
	m := traceUUIDPattern.FindSubmatch(data)
	if m == nil {
		return nil
	}
	id, err := uuid.Parse(string(m[1]))
	if err != nil {
		return nil
	}
	return &id
}

// queryTraceInfos implements "babeltrace.trace-infos": one map per
// detected trace with its stream-file groupings. Restricted to the
// single input directory named in params -- multi-trace recursive
// discovery is the filesystem enumerator SPEC_FULL §C explicitly
// leaves out of scope.
func queryTraceInfos(params value.Value) (value.Value, error) {
	mv, ok := value.AsMap(params)
	if !ok {
		return nil, errs.New(errs.InvalidArgument, "trace-infos: params must be a map")
	}
	input, ok := getString(mv, "input")
	if !ok {
		return nil, errs.New(errs.InvalidArgument, "trace-infos: missing \"input\" parameter")
	}

	groups, err := discoverStreamFiles(input)
	if err != nil {
		return nil, err
	}

	streams, _ := value.AsArray(value.NewArray())
	for _, g := range groups {
		gm := value.NewMap()
		nameV := value.NewString(g.name)
		if err := gm.Set("name", nameV); err != nil {
			nameV.Unref()
			return nil, err
		}
		nameV.Unref()

		paths, _ := value.AsArray(value.NewArray())
		for _, p := range g.paths {
			pv := value.NewString(p)
			err := paths.Append(pv)
			pv.Unref()
			if err != nil {
				return nil, err
			}
		}
		if err := gm.Set("paths", paths); err != nil {
			paths.Unref()
			return nil, err
		}
		paths.Unref()

		err := streams.Append(gm)
		gm.Unref()
		if err != nil {
			return nil, err
		}
	}

	trace := value.NewMap()
	pathV := value.NewString(input)
	if err := trace.Set("path", pathV); err != nil {
		pathV.Unref()
		return nil, err
	}
	pathV.Unref()
	if err := trace.Set("streams", streams); err != nil {
		streams.Unref()
		return nil, err
	}
	streams.Unref()

	result, _ := value.AsArray(value.NewArray())
	if err := result.Append(trace); err != nil {
		trace.Unref()
		return nil, err
	}
	trace.Unref()
	return result, nil
}
