package source

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/tracegraph/ctf/errs"
)

const metadataFileName = "metadata"

// rotationSuffix matches the "_<n>" tail LTTng appends to a rotated
// channel file (e.g. "channel0_3"), so all rotations of one channel
// group under the same name.
var rotationSuffix = regexp.MustCompile(`^(.+)_(\d+)$`)

// streamGroup is one logical data stream: an ordered list of files
// that make it up (a single file, or a file plus its rotations).
type streamGroup struct {
	name  string
	paths []string
}

// discoverStreamFiles lists dir's immediate entries (no recursion --
// enumerating trace directories is the caller's job, per SPEC_FULL
// §C's non-goal) and groups everything but the metadata file by
// rotation suffix. Groups and their member paths are both returned in
// path-sorted order, matching the original's "first data stream file
// path" stability rule for source order (spec §8's Open Question on
// muxer tie-breaking).
func discoverStreamFiles(dir string) ([]streamGroup, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap(errs.DecodeError, err, "read trace directory %s", dir)
	}

	groups := make(map[string]*streamGroup)
	var order []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == metadataFileName {
			continue
		}
		base := e.Name()
		if m := rotationSuffix.FindStringSubmatch(base); m != nil {
			base = m[1]
		}
		g, ok := groups[base]
		if !ok {
			g = &streamGroup{name: base}
			groups[base] = g
			order = append(order, base)
		}
		g.paths = append(g.paths, filepath.Join(dir, e.Name()))
	}

	sort.Strings(order)
	out := make([]streamGroup, 0, len(order))
	for _, name := range order {
		g := groups[name]
		sort.Strings(g.paths)
		out = append(out, *g)
	}
	return out, nil
}
