package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docqa/internal/db"
)

// ExistsMulti checks many keys in a single DoMulti round-trip. Result order follows keys.
func (s *Store) ExistsMulti(ctx context.Context, keys []string) ([]bool, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Exists().Key(key).Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	out := make([]bool, len(results))
	for i, res := range results {
		n, err := res.AsInt64()
		if err != nil {
			return nil, &db.Error{Op: db.OpExists, Err: fmt.Errorf("key %s: %w", keys[i], classify(err))}
		}
		out[i] = n > 0
	}
	return out, nil
}
