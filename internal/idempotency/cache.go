// ABOUTME: Thread-safe TTL cache mapping idempotency keys to the resource they created
// ABOUTME: Lets a retried create request replay the first result instead of inserting twice

package idempotency

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// ErrInFlight is returned by Claim when another request holds the key and
// has not finished yet.
var ErrInFlight = errors.New("request with this idempotency key is still in progress")

type entry struct {
	value     string // empty while pending
	pending   bool
	timestamp time.Time
	element   *list.Element
}

// Cache remembers, for a bounded time and number of keys, which resource a
// keyed request produced. Oldest keys are evicted first when full.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a cache. A background goroutine removes expired entries until
// Close is called.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Claim reserves key for the calling request.
//
// If an earlier request with the same key completed, Claim returns its value
// and done=true. If one is still running it returns ErrInFlight. Otherwise
// the key is reserved and the caller must follow up with Complete or Release.
func (c *Cache) Claim(key string) (value string, done bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && time.Since(e.timestamp) < c.ttl {
		if e.pending {
			return "", false, ErrInFlight
		}
		return e.value, true, nil
	}

	c.putLocked(key, "", true)
	return "", false, nil
}

// Complete records the value produced for a claimed key.
func (c *Cache) Complete(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(key, value, false)
}

// Release drops a reservation after a failed request so a retry can run.
func (c *Cache) Release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && e.pending {
		c.order.Remove(e.element)
		delete(c.entries, key)
	}
}

// Len reports the number of entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// putLocked must be called with mu held.
func (c *Cache) putLocked(key, value string, pending bool) {
	now := time.Now()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.pending = pending
		e.timestamp = now
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = &entry{
		value:     value,
		pending:   pending,
		timestamp: now,
		element:   c.order.PushBack(key),
	}
}

// evictOldest must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries.
func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if now.Sub(e.timestamp) >= c.ttl {
			c.order.Remove(e.element)
			delete(c.entries, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
