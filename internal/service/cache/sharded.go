package cache

import (
	"context"
	"hash/fnv"
	"sync"

	"CoinPulse/internal/domain/models"
)

const defaultShards = 32

type shard struct {
	mu sync.RWMutex
	m  map[models.QuoteKey]Entry
}

// ShardedStore is an in-process EntryStore split across independently locked
// shards, so lookups for unrelated keys do not contend.
type ShardedStore struct {
	shards []*shard
}

func NewShardedStore(n int) *ShardedStore {
	if n <= 0 {
		n = defaultShards
	}
	s := &ShardedStore{shards: make([]*shard, n)}
	for i := range s.shards {
		s.shards[i] = &shard{m: make(map[models.QuoteKey]Entry)}
	}
	return s
}

func (s *ShardedStore) shardFor(key models.QuoteKey) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.Asset))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(key.Currency))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *ShardedStore) Load(_ context.Context, key models.QuoteKey) (Entry, bool, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	e, ok := sh.m[key]
	sh.mu.RUnlock()
	return e, ok, nil
}

func (s *ShardedStore) Store(_ context.Context, key models.QuoteKey, e Entry) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.m[key] = e
	sh.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *ShardedStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.m)
		sh.mu.RUnlock()
	}
	return n
}
