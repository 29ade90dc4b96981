package answercache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/db"
)

// store is the consumer interface for the answer memo (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Cache memoizes answers keyed by (question, chunk id).
// Store failures are logged and reported as misses.
type Cache struct {
	store      store
	keyPrefix  string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates an answer memo. cacheTotal has label "result" ("hit"/"miss").
func New(s store, keyPrefix string, ttl time.Duration, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	return &Cache{
		store:      s,
		keyPrefix:  keyPrefix + "answer:",
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Get returns the memoized answer for the pair.
func (c *Cache) Get(ctx context.Context, question, chunkID string) (string, bool) {
	key := c.key(question, chunkID)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Answer cache read failed", zap.String("key", key), zap.Error(err))
		}
		c.inc("miss")
		return "", false
	}
	if len(data) == 0 {
		c.inc("miss")
		return "", false
	}
	c.inc("hit")
	return string(data), true
}

// Put stores the answer. Errors are only logged.
func (c *Cache) Put(ctx context.Context, question, chunkID, answer string) {
	key := c.key(question, chunkID)
	if err := c.store.SetWithTTL(ctx, key, []byte(answer), c.ttl); err != nil {
		c.logger.Warn("Answer cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) key(question, chunkID string) string {
	h := sha256.New()
	h.Write([]byte(question))
	h.Write([]byte{0})
	h.Write([]byte(chunkID))
	return c.keyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
