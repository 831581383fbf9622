// pkg/chunk/cache.go

package chunk

import (
	"sync"
	"time"
)

type memItem struct {
	atime   time.Time
	payload []byte
}

// memCache keeps verified plaintext chunk payloads for repeated reads.
// A capacity of zero disables it.
type memCache struct {
	sync.Mutex
	capacity int64
	used     int64
	items    map[string]memItem
}

func newMemCache(capacity int64) *memCache {
	return &memCache{
		capacity: capacity,
		items:    make(map[string]memItem),
	}
}

func (c *memCache) usedMemory() int64 {
	c.Lock()
	defer c.Unlock()
	return c.used
}

func (c *memCache) cache(key string, payload []byte) {
	if c.capacity == 0 {
		return
	}
	c.Lock()
	defer c.Unlock()
	if _, ok := c.items[key]; ok {
		return
	}
	c.items[key] = memItem{time.Now(), payload}
	c.used += int64(cap(payload))
	if c.used > c.capacity {
		c.cleanup()
	}
}

func (c *memCache) delete(key string, item memItem) {
	c.used -= int64(cap(item.payload))
	delete(c.items, key)
}

func (c *memCache) remove(key string) {
	c.Lock()
	defer c.Unlock()
	if item, ok := c.items[key]; ok {
		c.delete(key, item)
		logger.Debugf("remove chunk %s from cache", key)
	}
}

func (c *memCache) load(key string) ([]byte, bool) {
	c.Lock()
	defer c.Unlock()
	if item, ok := c.items[key]; ok {
		c.items[key] = memItem{time.Now(), item.payload}
		return item.payload, true
	}
	return nil, false
}

// locked
func (c *memCache) cleanup() {
	var cnt int
	var lastKey string
	var lastValue memItem
	var now = time.Now()
	// for each two random keys, compare the access time, evict the older one
	for k, v := range c.items {
		if cnt == 0 || lastValue.atime.After(v.atime) {
			lastKey = k
			lastValue = v
		}
		cnt++
		if cnt > 1 {
			logger.Debugf("evict chunk from cache, age: %d", now.Sub(lastValue.atime))
			c.delete(lastKey, lastValue)
			cnt = 0
			if c.used < c.capacity {
				break
			}
		}
	}
}
