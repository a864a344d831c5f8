// Package datacache keeps normalized coverage snapshots in memory and
// reloads them when the resultset file changes on disk.
package datacache

import (
	"fmt"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/keithrbennett/covloupe/schema"
)

// BuildFunc produces a fresh snapshot for a resolved resultset path and root.
type BuildFunc func(resultsetPath, root string) (*schema.Snapshot, error)

type key struct {
	resultsetPath string
	root          string
}

// signature is the cheap metadata check done before comparing digests.
type signature struct {
	size    int64
	mtimeNs int64
	inode   uint64
}

type entry struct {
	sig      signature
	digest   uint64
	snapshot *schema.Snapshot
}

// Cache maps (resultset path, root) to the last snapshot built for it.
// Every Get runs under one mutex, so a caller never sees a half-replaced entry.
type Cache struct {
	mu      sync.Mutex
	build   BuildFunc
	entries map[key]*entry
	hits    int64
	misses  int64
}

// New returns an empty cache that calls build on every miss.
func New(build BuildFunc) *Cache {
	return &Cache{build: build, entries: make(map[key]*entry)}
}

// Get returns the snapshot for the pair, rebuilding it unless the stored
// entry's signature and digest both match the file on disk. When the file
// cannot be stat'ed or read, the builder still runs so it can report the
// problem, and nothing is stored.
func (c *Cache) Get(resultsetPath, root string) (*schema.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{resultsetPath: resultsetPath, root: root}
	sig, digest, fpErr := fingerprint(resultsetPath)

	if fpErr == nil {
		if e, ok := c.entries[k]; ok && e.sig == sig && e.digest == digest {
			c.hits++
			return e.snapshot, nil
		}
	}

	c.misses++
	snap, err := c.build(resultsetPath, root)
	if err != nil {
		return nil, err
	}
	if fpErr != nil {
		delete(c.entries, k)
		return snap, nil
	}
	c.entries[k] = &entry{sig: sig, digest: digest, snapshot: snap}
	return snap, nil
}

// Clear drops every entry and resets the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[key]*entry)
	c.hits, c.misses = 0, 0
}

// Stats reports the current entry count and hit/miss counters.
func (c *Cache) Stats() schema.CacheStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return schema.CacheStatus{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

func fingerprint(path string) (signature, uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return signature{}, 0, err
	}
	if !info.Mode().IsRegular() {
		return signature{}, 0, fmt.Errorf("%s is not a regular file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return signature{}, 0, err
	}
	sig := signature{
		size:    info.Size(),
		mtimeNs: info.ModTime().UnixNano(),
		inode:   inodeOf(info),
	}
	return sig, xxhash.Sum64(data), nil
}
