package services

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codyseavey/tcg-binder/internal/models"
)

// PriceCache stores resolved quotes by normalized identity.
// Implementations must be safe for concurrent use.
type PriceCache interface {
	Get(key models.PriceQuoteKey) (models.PriceQuoteResult, bool)
	Set(key models.PriceQuoteKey, result models.PriceQuoteResult)
	Len() int
}

// MemoryPriceCache never evicts; it is bounded by the number of distinct printings queried
type MemoryPriceCache struct {
	mu      sync.RWMutex
	entries map[models.PriceQuoteKey]models.PriceQuoteResult
}

func NewMemoryPriceCache() *MemoryPriceCache {
	return &MemoryPriceCache{
		entries: make(map[models.PriceQuoteKey]models.PriceQuoteResult),
	}
}

func (c *MemoryPriceCache) Get(key models.PriceQuoteKey) (models.PriceQuoteResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.entries[key]
	return result, ok
}

func (c *MemoryPriceCache) Set(key models.PriceQuoteKey, result models.PriceQuoteResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
}

func (c *MemoryPriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// LRUPriceCache keeps at most size quotes, evicting the least recently used
type LRUPriceCache struct {
	entries *lru.Cache[models.PriceQuoteKey, models.PriceQuoteResult]
}

func NewLRUPriceCache(size int) (*LRUPriceCache, error) {
	entries, err := lru.New[models.PriceQuoteKey, models.PriceQuoteResult](size)
	if err != nil {
		return nil, err
	}
	return &LRUPriceCache{entries: entries}, nil
}

func (c *LRUPriceCache) Get(key models.PriceQuoteKey) (models.PriceQuoteResult, bool) {
	return c.entries.Get(key)
}

func (c *LRUPriceCache) Set(key models.PriceQuoteKey, result models.PriceQuoteResult) {
	c.entries.Add(key, result)
}

func (c *LRUPriceCache) Len() int {
	return c.entries.Len()
}

// NewPriceCache returns an unbounded cache for size <= 0, otherwise an LRU of that size
func NewPriceCache(size int) (PriceCache, error) {
	if size <= 0 {
		return NewMemoryPriceCache(), nil
	}
	return NewLRUPriceCache(size)
}
