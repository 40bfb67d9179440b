// Package digestcache implements model.FileComparator by memoizing file
// digests for the lifetime of a single merge run: a (root, path) pair is
// hashed at most once, however many times the diff engine or merge
// executor asks about it.
package digestcache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/frozenspider/chat-history-manager-backend/model"
)

// Cache is a thread-safe, unbounded digest cache. It carries no TTL or
// background eviction, unlike a long-lived service cache: it is meant to
// be created once per merge run and discarded afterward.
type Cache struct {
	mu      sync.RWMutex
	digests map[string]entry
}

type entry struct {
	exists bool
	digest string // hex sha256, only meaningful when exists is true
}

// New creates an empty digest cache.
func New() *Cache {
	return &Cache{digests: make(map[string]entry)}
}

// Exists implements model.FileComparator.
func (c *Cache) Exists(ref model.FileRef) (bool, error) {
	if ref.Path == nil {
		return false, nil
	}
	e, err := c.lookup(ref)
	if err != nil {
		return false, err
	}
	return e.exists, nil
}

// BytesEqual implements model.FileComparator by comparing digests rather
// than re-reading both files byte by byte.
func (c *Cache) BytesEqual(a, b model.FileRef) (bool, error) {
	ea, err := c.lookup(a)
	if err != nil {
		return false, err
	}
	eb, err := c.lookup(b)
	if err != nil {
		return false, err
	}
	if !ea.exists || !eb.exists {
		return false, nil
	}
	return ea.digest == eb.digest, nil
}

// Size reports how many distinct (root, path) pairs have been resolved so
// far, for progress logging.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.digests)
}

func (c *Cache) lookup(ref model.FileRef) (entry, error) {
	key := cacheKey(ref)
	c.mu.RLock()
	e, ok := c.digests[key]
	c.mu.RUnlock()
	if ok {
		return e, nil
	}

	e, err := digest(ref)
	if err != nil {
		return entry{}, err
	}

	c.mu.Lock()
	c.digests[key] = e
	c.mu.Unlock()
	return e, nil
}

func cacheKey(ref model.FileRef) string {
	if ref.Path == nil {
		return ref.Root + "\x00"
	}
	return ref.Root + "\x00" + *ref.Path
}

func digest(ref model.FileRef) (entry, error) {
	full := filepath.Join(ref.Root, *ref.Path)
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return entry{exists: false}, nil
		}
		return entry{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return entry{}, err
	}
	return entry{exists: true, digest: hex.EncodeToString(h.Sum(nil))}, nil
}
