package cache

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
)

type item struct {
	value      []byte
	expiration int64
}

// Cache is an in-process TTL cache of JSON-encoded values.
type Cache struct {
	items map[string]item
	mu    sync.RWMutex
	ttl   time.Duration
	stop  chan struct{}
	once  sync.Once
}

// New creates a cache whose entries live for defaultTTL unless Set is given
// another duration. Expired entries are swept every sweep interval until
// Close is called; a non-positive sweep disables the janitor.
func New(defaultTTL, sweep time.Duration) *Cache {
	c := &Cache{
		items: make(map[string]item),
		ttl:   defaultTTL,
		stop:  make(chan struct{}),
	}
	if sweep > 0 {
		go c.cleanupExpired(sweep)
	}
	return c
}

// Set stores value encoded as JSON.
func (c *Cache) Set(key string, value any, ttl ...time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	duration := c.ttl
	if len(ttl) > 0 {
		duration = ttl[0]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item{value: data, expiration: time.Now().Add(duration).UnixNano()}
	return nil
}

// Get decodes the cached value into target. It reports false when the key is
// missing or expired.
func (c *Cache) Get(key string, target any) (bool, error) {
	c.mu.RLock()
	it, found := c.items[key]
	c.mu.RUnlock()

	if !found || time.Now().UnixNano() > it.expiration {
		return false, nil
	}
	if err := json.Unmarshal(it.value, target); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// DeleteByPrefix removes every key starting with prefix.
func (c *Cache) DeleteByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

// Size counts stored entries, expired ones included until the next sweep.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the janitor.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache) cleanupExpired(every time.Duration) {
	ticker := time.NewTicker(every)
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

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixNano()
	for key, it := range c.items {
		if now > it.expiration {
			delete(c.items, key)
		}
	}
}
