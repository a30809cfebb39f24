package index

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/tracegraph/ctf/errs"
)

// ScanFunc decodes path's packet headers into an Index. It is supplied
// by the iterator package, which knows how to walk field classes; this
// package only knows how to cache and parallelize the result.
type ScanFunc func(path string) (*Index, error)

// BuildGroup resolves one Index per path, consulting cache first and
// falling back to scan only on a miss, across all paths concurrently.
// Modeled on the teacher's fan-out-with-errgroup pattern for
// multi-target work (golang.org/x/sync/errgroup).
func BuildGroup(ctx context.Context, paths []string, cache *Cache, scan ScanFunc) ([]*Index, error) {
	results := make([]*Index, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			fi, err := os.Stat(p)
			if err != nil {
				return errs.Wrap(errs.DecodeError, err, "stat %s", p)
			}
			mtime := fi.ModTime().UnixNano()
			if cache != nil {
				if ix, ok, err := cache.Lookup(p, fi.Size(), mtime); err == nil && ok {
					results[i] = ix
					return nil
				}
			}
			ix, err := scan(p)
			if err != nil {
				return err
			}
			results[i] = ix
			if cache != nil {
				if err := cache.Store(p, fi.Size(), mtime, ix); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
