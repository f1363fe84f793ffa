package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a goroutine-safe in-process Cache with TTL expiry.
type Memory struct {
	items map[string]memoryItem
	mu    sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]memoryItem)}
}

func (c *Memory) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists || time.Now().After(item.expiresAt) {
		return ErrMiss
	}
	return json.Unmarshal(item.value, dest)
}

func (c *Memory) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.items[key] = memoryItem{value: data, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *Memory) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

type objectEntry[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// Objects is a goroutine-safe in-process cache for live values that cannot
// be serialized (authenticated vendor clients). Entries expire by TTL and
// the least recently used entry is evicted once capacity is reached.
type Objects[T any] struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	capacity int
	ttl      time.Duration
}

func NewObjects[T any](capacity int, ttl time.Duration) *Objects[T] {
	if capacity <= 0 {
		capacity = 256
	}
	return &Objects[T]{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		capacity: capacity,
		ttl:      ttl,
	}
}

func (c *Objects[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	entry := el.Value.(*objectEntry[T])
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		return zero, false
	}

	c.order.MoveToFront(el)
	return entry.value, true
}

func (c *Objects[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*objectEntry[T])
		entry.value = value
		entry.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*objectEntry[T]).key)
		}
	}

	el := c.order.PushFront(&objectEntry[T]{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	})
	c.entries[key] = el
}

func (c *Objects[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
