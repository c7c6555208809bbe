package server

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

type localEntry struct {
	expires time.Time
	data    []byte
}

// Cache is a two-level result cache, a short-lived in-process map in
// front of redis. A redis outage degrades to recomputation, never to an
// error for the caller.
type Cache struct {
	Addr     string
	Password string
	DB       int

	client *redis.Client
	ctx    context.Context

	mu       sync.Mutex
	memCache map[string]localEntry
}

func NewCache(addr, password string, db int) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Cache{
		Addr:     addr,
		Password: password,
		DB:       db,
		client:   rdb,
		ctx:      context.Background(),
		memCache: make(map[string]localEntry),
	}
}

func (c *Cache) Get(key string, out any) error {
	c.mu.Lock()
	local, found := c.memCache[key]
	if found && time.Now().Before(local.expires) {
		c.mu.Unlock()
		return sonic.Unmarshal(local.data, out)
	}
	if found {
		delete(c.memCache, key)
	}
	c.mu.Unlock()

	data, err := c.client.Get(c.ctx, key).Bytes()
	if err != nil {
		return err
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return err
	}
	c.mu.Lock()
	c.memCache[key] = localEntry{expires: time.Now().Add(time.Minute), data: data}
	c.mu.Unlock()
	return nil
}

func (c *Cache) Set(key string, value any, expiration time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.memCache[key] = localEntry{expires: time.Now().Add(expiration), data: data}
	c.mu.Unlock()
	return c.client.Set(c.ctx, key, data, expiration).Err()
}

// Flush drops the local map, catalogue change messages call it so stale
// facets disappear before their ttl.
func (c *Cache) Flush() {
	c.mu.Lock()
	c.memCache = make(map[string]localEntry)
	c.mu.Unlock()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
