package cache

import (
	"container/list"
	"sync"
	"time"
)

// Options configures a Cache. Zero values disable expiry and the size bound.
type Options struct {
	TTL      time.Duration
	MaxItems int
}

type entry[V any] struct {
	key     string
	value   V
	expires time.Time
}

// Cache is a thread-safe least-recently-used cache with optional expiry.
// Expired entries are dropped lazily when they are read or evicted.
type Cache[V any] struct {
	mu        sync.Mutex
	ttl       time.Duration
	maxItems  int
	order     *list.List
	items     map[string]*list.Element
	onEvicted func(string, V)
	now       func() time.Time
}

// New creates a cache with the given options
func New[V any](opts Options) *Cache[V] {
	return &Cache[V]{
		ttl:      opts.TTL,
		maxItems: opts.MaxItems,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Set stores value under key and marks it most recently used
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value, e.expires = value, expires
		c.order.MoveToFront(el)
		return
	}

	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value, expires: expires})
	if c.maxItems > 0 && c.order.Len() > c.maxItems {
		c.removeElement(c.order.Back())
	}
}

// Get returns the value stored under key
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[V])
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.removeElement(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Delete removes key
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Flush removes every entry
func (c *Cache[V]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.order.Front(); el != nil; {
		next := el.Next()
		c.removeElement(el)
		el = next
	}
}

// Len reports the number of entries, including expired ones not yet dropped
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// SetOnEvicted registers a callback run for every removed entry
func (c *Cache[V]) SetOnEvicted(f func(string, V)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvicted = f
}

func (c *Cache[V]) removeElement(el *list.Element) {
	e := c.order.Remove(el).(*entry[V])
	delete(c.items, e.key)
	if c.onEvicted != nil {
		c.onEvicted(e.key, e.value)
	}
}
