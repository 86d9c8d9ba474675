package web

import (
	"sync"
	"time"

	"github.com/JonMunkholm/crmingest/internal/core"
)

// DefaultBatchTTL is used when no TTL is configured.
const DefaultBatchTTL = 15 * time.Minute

// batchCache holds previewed batches so an import can reuse the parse.
// Entries expire after ttl.
type batchCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cachedBatch
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

type cachedBatch struct {
	schema   string
	prepared *core.Prepared
	expires  time.Time
}

func newBatchCache(ttl time.Duration) *batchCache {
	if ttl <= 0 {
		ttl = DefaultBatchTTL
	}
	c := &batchCache{
		ttl:     ttl,
		entries: make(map[string]cachedBatch),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *batchCache) put(schema string, p *core.Prepared) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[p.ID] = cachedBatch{schema: schema, prepared: p, expires: c.now().Add(c.ttl)}
}

// get returns the batch if it exists, belongs to schema and has not expired.
func (c *batchCache) get(id, schema string) (*core.Prepared, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.entries, id)
		return nil, false
	}
	if e.schema != schema {
		return nil, false
	}
	return e.prepared, true
}

func (c *batchCache) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	delete(c.entries, id)
	return ok
}

func (c *batchCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// sweep drops expired entries and returns how many it removed.
func (c *batchCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for id, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, id)
			n++
		}
	}
	return n
}

func (c *batchCache) run() {
	ticker := time.NewTicker(c.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *batchCache) close() {
	c.once.Do(func() { close(c.stop) })
}
