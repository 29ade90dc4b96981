package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docqa/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Flavor selects server-specific command dialects.
type Flavor string

const (
	// FlavorRedis targets Redis 8+ with the bundled query engine.
	FlavorRedis Flavor = "redis"
	// FlavorValkey targets Valkey with valkey-search: no TEXT fields, no SORTBY,
	// no bare "*" FT.SEARCH.
	FlavorValkey Flavor = "valkey"
)

// Config holds connection parameters for a store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	Flavor   Flavor
}

// Store implements db.Store via rueidis for Redis 8+ and Valkey.
type Store struct {
	client rueidis.Client
	flavor Flavor
}

// NewStore creates a store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}
	flavor := cfg.Flavor
	if flavor == "" {
		flavor = FlavorRedis
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client, flavor: flavor}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.b().Ping().Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", db.MarkUnavailable(err))
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", db.MarkUnavailable(ctx.Err()))
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// opErr wraps err with the command name.
func opErr(op string, err error) error {
	return &db.Error{Op: op, Err: classify(err)}
}

// classify marks anything that is not a server reply (dial failures, timeouts,
// closed client) as db.ErrUnavailable.
func classify(err error) error {
	if _, ok := rueidis.IsRedisErr(err); !ok && !errors.Is(err, context.Canceled) {
		return db.MarkUnavailable(err)
	}
	return err
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
