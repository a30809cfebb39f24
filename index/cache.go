package index

import (
	"encoding/base64"
	"fmt"

	"github.com/OneOfOne/xxhash"
	"github.com/tidwall/buntdb"

	"github.com/tracegraph/ctf/errs"
)

// Cache persists built indexes across process runs, keyed by a file's
// path, size, and modification time -- if any of those three change
// the cached entry is treated as stale and a rescan is forced.
type Cache struct {
	db *buntdb.DB
}

// OpenCache opens (creating if absent) a buntdb file at path. An empty
// path opens an in-memory cache, useful for tests and one-shot runs.
func OpenCache(path string) (*Cache, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.MemoryError, err, "open index cache %s", path)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	if err := c.db.Close(); err != nil {
		return errs.Wrap(errs.MemoryError, err, "close index cache")
	}
	return nil
}

// cacheSeed is an arbitrary fixed seed, just to avoid the zero-seed
// default -- there is no cross-process key compatibility requirement
// to keep stable here.
const cacheSeed = 0x1d2c3b4a

// cacheKey hashes path into a fixed-width digest so an arbitrarily
// long or unusual path never ends up embedded verbatim in a buntdb
// key, the same Checksum64S-over-a-seed pattern cmn/cos uses to turn
// variable-length identifiers into fixed digests.
func cacheKey(path string, size int64, mtimeUnixNano int64) string {
	digest := xxhash.Checksum64S([]byte(path), cacheSeed)
	return fmt.Sprintf("idx:%x:%d:%d", digest, size, mtimeUnixNano)
}

// Lookup returns the cached index for (path, size, mtimeUnixNano), or
// ok=false if no entry matches exactly -- any mismatch on size or
// mtime is a cache miss, never a partial hit.
func (c *Cache) Lookup(path string, size, mtimeUnixNano int64) (*Index, bool, error) {
	key := cacheKey(path, size, mtimeUnixNano)
	var encoded string
	err := c.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		encoded = v
		return nil
	})
	if err == buntdb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.MemoryError, err, "read index cache")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false, errs.Wrap(errs.DecodeError, err, "decode cached index entry")
	}
	ix, err := Unmarshal(raw)
	if err != nil {
		return nil, false, err
	}
	return ix, true, nil
}

// Store saves ix under (path, size, mtimeUnixNano), replacing any
// stale entry for a previous size/mtime combination implicitly (the
// old key simply becomes unreachable and is left for buntdb's own
// compaction).
func (c *Cache) Store(path string, size, mtimeUnixNano int64, ix *Index) error {
	raw, err := Marshal(ix)
	if err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	key := cacheKey(path, size, mtimeUnixNano)
	err = c.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, encoded, nil)
		return err
	})
	if err != nil {
		return errs.Wrap(errs.MemoryError, err, "write index cache")
	}
	return nil
}
