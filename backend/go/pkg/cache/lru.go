package cache

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// Config 配置 LRU 缓存的淘汰策略。
type Config struct {
	// Capacity 是最大条目数，0 表示不限制。
	Capacity int
	// MaxWeight 是所有条目权重之和的上限，0 表示不限制。
	MaxWeight int
	// TTL 是条目的存活时间，0 表示永不过期。
	TTL time.Duration
}

type entry[K comparable, V any] struct {
	key        K
	value      V
	weight     int
	expiration time.Time
}

// LRU 是一个泛型、线程安全的 LRU 缓存。
type LRU[K comparable, V any] struct {
	cfg           Config
	ll            *list.List
	items         map[K]*list.Element
	currentWeight int
	hits, misses  uint64
	now           func() time.Time
	mu            sync.Mutex
}

// New 创建一个 LRU 缓存。Capacity 与 MaxWeight 至少要设置一个。
func New[K comparable, V any](cfg Config) (*LRU[K, V], error) {
	if cfg.Capacity <= 0 && cfg.MaxWeight <= 0 {
		return nil, errors.New("cache: Capacity 或 MaxWeight 至少设置一个")
	}
	return &LRU[K, V]{
		cfg:   cfg,
		ll:    list.New(),
		items: make(map[K]*list.Element),
		now:   time.Now,
	}, nil
}

// Get 返回 key 对应的值，并将其标记为最近使用。过期条目在这里被动淘汰。
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if c.cfg.TTL > 0 && c.now().After(e.expiration) {
		c.remove(el)
		c.misses++
		return zero, false
	}
	c.ll.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Put 添加或更新一个条目。只按条目数淘汰时 weight 传 1。
func (c *LRU[K, V]) Put(key K, value V, weight int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		c.currentWeight += weight - e.weight
		e.weight, e.value = weight, value
		if c.cfg.TTL > 0 {
			e.expiration = c.now().Add(c.cfg.TTL)
		}
		c.ll.MoveToFront(el)
	} else {
		e := &entry[K, V]{key: key, value: value, weight: weight}
		if c.cfg.TTL > 0 {
			e.expiration = c.now().Add(c.cfg.TTL)
		}
		c.items[key] = c.ll.PushFront(e)
		c.currentWeight += weight
	}

	// 一个大条目可能需要淘汰多个旧条目
	for c.overCapacity() {
		c.remove(c.ll.Back())
	}
}

// Caller holds the mutex.
func (c *LRU[K, V]) overCapacity() bool {
	if c.ll.Len() == 0 {
		return false
	}
	if c.cfg.Capacity > 0 && c.ll.Len() > c.cfg.Capacity {
		return true
	}
	return c.cfg.MaxWeight > 0 && c.currentWeight > c.cfg.MaxWeight
}

func (c *LRU[K, V]) remove(el *list.Element) {
	c.ll.Remove(el)
	e := el.Value.(*entry[K, V])
	delete(c.items, e.key)
	c.currentWeight -= e.weight
}

// Len 返回当前条目数。
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Weight 返回当前总权重。
func (c *LRU[K, V]) Weight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentWeight
}

// Stats returns the hit and miss counters since creation.
func (c *LRU[K, V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
