package oval

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache memoizes traversal orders per landmark topology. Orders depend only
// on landmark indices, so one computation serves every frame of every input
// that shares the topology.
type Cache struct {
	store *bigcache.BigCache
}

// NewCache creates an order cache whose entries live for ttl.
func NewCache(ctx context.Context, ttl time.Duration) (*Cache, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 16
	cfg.MaxEntriesInWindow = 64
	cfg.MaxEntrySize = 1024
	cfg.Verbose = false

	store, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create order cache: %w", err)
	}
	return &Cache{store: store}, nil
}

// Order returns the cached traversal order for edges, computing and storing
// it on first use.
func (c *Cache) Order(edges []Edge) ([]Edge, error) {
	order, ok, err := c.Lookup(Fingerprint(edges))
	if err != nil {
		return nil, err
	}
	if ok {
		return order, nil
	}

	if order, err = Order(edges); err != nil {
		return nil, err
	}
	if _, err := c.Put(order); err != nil {
		return nil, err
	}
	return order, nil
}

// Lookup returns the order cached under fingerprint.
func (c *Cache) Lookup(fingerprint string) ([]Edge, bool, error) {
	raw, err := c.store.Get(fingerprint)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("order cache lookup: %w", err)
	}

	var pairs [][2]int
	if err := msgpack.Unmarshal(raw, &pairs); err != nil {
		// unreadable entry: report a miss so the caller recomputes
		return nil, false, nil
	}
	return fromPairs(pairs), true, nil
}

// Put caches an order loaded from elsewhere under the fingerprint of its edge
// set. Orders that do not chain are rejected.
func (c *Cache) Put(order []Edge) (string, error) {
	if err := Validate(order); err != nil {
		return "", err
	}
	fp := Fingerprint(order)

	raw, err := msgpack.Marshal(toPairs(order))
	if err != nil {
		return "", fmt.Errorf("failed to encode order: %w", err)
	}
	if err := c.store.Set(fp, raw); err != nil {
		return "", fmt.Errorf("failed to cache order: %w", err)
	}
	return fp, nil
}

// Len returns the number of cached topologies.
func (c *Cache) Len() int {
	return c.store.Len()
}

// Close releases the cache.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Fingerprint identifies a topology by its canonical edge set.
func Fingerprint(edges []Edge) string {
	h := sha256.New()
	var buf [16]byte
	for _, e := range Canonical(edges) {
		binary.LittleEndian.PutUint64(buf[:8], uint64(e.From))
		binary.LittleEndian.PutUint64(buf[8:], uint64(e.To))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func toPairs(edges []Edge) [][2]int {
	pairs := make([][2]int, len(edges))
	for i, e := range edges {
		pairs[i] = [2]int{e.From, e.To}
	}
	return pairs
}

func fromPairs(pairs [][2]int) []Edge {
	edges := make([]Edge, len(pairs))
	for i, p := range pairs {
		edges[i] = Edge{From: p[0], To: p[1]}
	}
	return edges
}
