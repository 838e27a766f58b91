package limiter

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const defaultMemoryShards = 64

type memoryRecord struct {
	raw       []byte
	expiresAt time.Time
}

type memoryShard struct {
	mu      sync.Mutex
	records map[string]memoryRecord
}

// MemoryStore is an in-process Store.
//
// It is safe for concurrent use by multiple goroutines: every admission step
// holds the lock of the shard owning the key, which gives the same per-key
// atomicity Redis gives the Lua script. Its state is local to the process and
// is not shared across replicas. Use RedisStore when you need a single global
// limit across multiple instances.
type MemoryStore struct {
	now    func() time.Time
	shards []*memoryShard
}

type MemoryOption func(*MemoryStore)

// WithClock sets the store's clock. It plays the role of the Redis TIME
// command and defaults to time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) {
		if now != nil {
			m.now = now
		}
	}
}

// WithShards sets how many independent locks keys are spread over.
func WithShards(n int) MemoryOption {
	return func(m *MemoryStore) {
		if n > 0 {
			m.shards = newShards(n)
		}
	}
}

// NewMemoryStore constructs a MemoryStore with empty state.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		now:    time.Now,
		shards: newShards(defaultMemoryShards),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func newShards(n int) []*memoryShard {
	shards := make([]*memoryShard, n)
	for i := range shards {
		shards[i] = &memoryShard{records: make(map[string]memoryRecord)}
	}
	return shards
}

func (m *MemoryStore) shard(key string) *memoryShard {
	return m.shards[xxhash.Sum64String(key)%uint64(len(m.shards))]
}

func (m *MemoryStore) Admit(ctx context.Context, key string, cost float64, limits LimitSet) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}

	sh := m.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := m.now()
	var (
		prev  bucketState
		found bool
	)
	if rec, ok := sh.records[key]; ok {
		if now.Before(rec.expiresAt) {
			prev, found = decodeState(rec.raw, len(limits))
		} else {
			delete(sh.records, key)
		}
	}

	reply, next, ttl := admit(prev, found, seconds(now), cost, limits)
	raw, err := encodeState(next)
	if err != nil {
		return Reply{}, err
	}
	sh.records[key] = memoryRecord{raw: raw, expiresAt: expiresAt(now, ttl)}
	return reply, nil
}

func (m *MemoryStore) Reset(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sh := m.shard(key)
	sh.mu.Lock()
	delete(sh.records, key)
	sh.mu.Unlock()
	return nil
}

// Sweep drops every expired record and returns how many were removed.
// Expired records are already ignored on read; Sweep only bounds memory for
// long-lived processes with high-cardinality keys.
func (m *MemoryStore) Sweep() int {
	removed := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		now := m.now()
		for key, rec := range sh.records {
			if !now.Before(rec.expiresAt) {
				delete(sh.records, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len reports the number of records held, expired or not.
func (m *MemoryStore) Len() int {
	n := 0
	for _, sh := range m.shards {
		sh.mu.Lock()
		n += len(sh.records)
		sh.mu.Unlock()
	}
	return n
}

// expiresAt saturates instead of wrapping for tiers that take centuries to
// drain.
func expiresAt(now time.Time, ttl time.Duration) time.Time {
	t := now.Add(ttl)
	if ttl > 0 && !t.After(now) {
		return time.Unix(math.MaxInt64>>1, 0)
	}
	return t
}

func seconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}
