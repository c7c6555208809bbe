package server

import (
	"log"
	"time"
)

type CacheHelper[T any] struct {
	Cache *Cache
}

func NewCacheHelper[T any](cache *Cache) *CacheHelper[T] {
	return &CacheHelper[T]{Cache: cache}
}

// Handle fills out from the cache or computes and stores it. Compute
// failures propagate and are never stored, a failed store only logs.
func (c *CacheHelper[T]) Handle(key string, out *T, fn func() (T, error), expiration time.Duration) error {
	if c.Cache != nil {
		if err := c.Cache.Get(key, out); err == nil {
			return nil
		}
	}
	value, err := fn()
	if err != nil {
		return err
	}
	*out = value
	if c.Cache != nil {
		if err := c.Cache.Set(key, *out, expiration); err != nil {
			log.Printf("cache store failed: %v", err)
		}
	}
	return nil
}
