package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores decoded transactions. Mined transactions never change, so
// entries only expire to bound memory.
type Cache interface {
	Get(ctx context.Context, txHash string) (*DecodedTransaction, bool, error)
	Set(ctx context.Context, txHash string, decoded *DecodedTransaction, ttl time.Duration) error
}

// TransactionDecoder is implemented by Decoder.
type TransactionDecoder interface {
	DecodeTransaction(ctx context.Context, txHash string) (*DecodedTransaction, error)
}

// CachedDecoder serves decodes from a Cache and fills it on success.
// Cache failures fall through to the decoder.
type CachedDecoder struct {
	next    TransactionDecoder
	cache   Cache
	ttl     time.Duration
	metrics *Metrics
	logger  *slog.Logger
}

func NewCachedDecoder(next TransactionDecoder, cache Cache, ttl time.Duration, metrics *Metrics, logger *slog.Logger) *CachedDecoder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CachedDecoder{next: next, cache: cache, ttl: ttl, metrics: metrics, logger: logger}
}

func (c *CachedDecoder) DecodeTransaction(ctx context.Context, txHash string) (*DecodedTransaction, error) {
	key := strings.ToLower(txHash)
	cached, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.metrics.IncrementCache("error")
		c.logger.WarnContext(ctx, "decode cache read failed", "tx_hash", txHash, "error", err)
	case ok:
		c.metrics.IncrementCache("hit")
		return cached, nil
	default:
		c.metrics.IncrementCache("miss")
	}

	decoded, err := c.next.DecodeTransaction(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, decoded, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "decode cache write failed", "tx_hash", txHash, "error", err)
	}
	return decoded, nil
}

// MemoryCache is a process-local TTL cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	decoded   *DecodedTransaction
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, txHash string) (*DecodedTransaction, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[txHash]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, txHash)
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.decoded, true, nil
}

func (m *MemoryCache) Set(_ context.Context, txHash string, decoded *DecodedTransaction, ttl time.Duration) error {
	entry := memoryEntry{decoded: decoded}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[txHash] = entry
	m.mu.Unlock()
	return nil
}

const redisKeyPrefix = "chain:tx:"

// RedisCache shares decodes across replicas.
type RedisCache struct {
	client redis.Cmdable
}

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, txHash string) (*DecodedTransaction, bool, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+txHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var decoded DecodedTransaction
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, false, fmt.Errorf("decode cached transaction: %w", err)
	}
	return &decoded, true, nil
}

func (r *RedisCache) Set(ctx context.Context, txHash string, decoded *DecodedTransaction, ttl time.Duration) error {
	raw, err := json.Marshal(decoded)
	if err != nil {
		return fmt.Errorf("encode decoded transaction: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+txHash, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
