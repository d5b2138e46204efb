package kvdb

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// recordCache is the handle-local read cache. A zero size gives a cache
// that never holds anything.
type recordCache struct {
	lru *lru.Cache[int64, []byte]
}

func newRecordCache(size int) (*recordCache, error) {
	if size == 0 {
		return &recordCache{}, nil
	}
	c, err := lru.New[int64, []byte](size)
	if err != nil {
		return nil, err
	}
	return &recordCache{lru: c}, nil
}

func (c *recordCache) get(key int64) ([]byte, bool) {
	if c.lru == nil {
		return nil, false
	}
	value, ok := c.lru.Get(key)
	if ok {
		cacheHits.Inc()
	} else {
		cacheMisses.Inc()
	}
	return value, ok
}

func (c *recordCache) add(key int64, value []byte) {
	if c.lru != nil {
		c.lru.Add(key, value)
	}
}

func (c *recordCache) evict(key int64) {
	if c.lru != nil {
		c.lru.Remove(key)
	}
}

func (c *recordCache) purge() {
	if c.lru != nil {
		c.lru.Purge()
	}
}

func (c *recordCache) len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
