package vm

import (
	"sync"
	"sync/atomic"

	"github.com/zeebo/xxh3"

	"github.com/chazu/weft/codec"
	"github.com/chazu/weft/value"
)

// ChunkCache indexes compiled chunks by the 128-bit content hash of their
// source expression's canonical encoding. Chunks are pure functions of
// their source, so a hit can be reused without revalidation.
type ChunkCache struct {
	mu     sync.RWMutex
	chunks map[xxh3.Uint128]*Chunk

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewChunkCache creates an empty chunk cache.
func NewChunkCache() *ChunkCache {
	return &ChunkCache{chunks: make(map[xxh3.Uint128]*Chunk)}
}

func cacheKey(expr value.Value) xxh3.Uint128 {
	return xxh3.Hash128(codec.Encode(expr))
}

// Get returns the cached chunk for an expression, if present.
func (cc *ChunkCache) Get(expr value.Value) (*Chunk, bool) {
	key := cacheKey(expr)
	cc.mu.RLock()
	chunk, ok := cc.chunks[key]
	cc.mu.RUnlock()
	if ok {
		cc.hits.Add(1)
	} else {
		cc.misses.Add(1)
	}
	return chunk, ok
}

// Put stores a compiled chunk for an expression.
func (cc *ChunkCache) Put(expr value.Value, chunk *Chunk) {
	key := cacheKey(expr)
	cc.mu.Lock()
	cc.chunks[key] = chunk
	cc.mu.Unlock()
}

// Evict removes the chunk for an expression, reporting whether one was
// cached.
func (cc *ChunkCache) Evict(expr value.Value) bool {
	key := cacheKey(expr)
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if _, ok := cc.chunks[key]; !ok {
		return false
	}
	delete(cc.chunks, key)
	return true
}

// Purge removes all cached chunks.
func (cc *ChunkCache) Purge() {
	cc.mu.Lock()
	cc.chunks = make(map[xxh3.Uint128]*Chunk)
	cc.mu.Unlock()
}

// Len returns the number of cached chunks.
func (cc *ChunkCache) Len() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.chunks)
}

// Stats returns the cumulative hit and miss counts.
func (cc *ChunkCache) Stats() (hits, misses uint64) {
	return cc.hits.Load(), cc.misses.Load()
}
