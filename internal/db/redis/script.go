package redis

import (
	"context"
	"errors"
	"sort"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docqa/internal/db"
)

var errNoFields = errors.New("at least one field is required")

// hsetNXScript creates a hash only when the key is absent.
// Lua runs atomically, so two writers racing on one key see exactly one creation.
var hsetNXScript = rueidis.NewLuaScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// HSetNX writes fields to key if the key does not exist. Reports whether it was created.
func (s *Store) HSetNX(ctx context.Context, key string, fields map[string]string) (bool, error) {
	if len(fields) == 0 {
		return false, &db.Error{Op: db.OpEval, Err: errNoFields}
	}

	args := make([]string, 0, len(fields)*2)
	for _, k := range sortedKeys(fields) {
		args = append(args, k, fields[k])
	}

	created, err := hsetNXScript.Exec(ctx, s.client, []string{key}, args).AsInt64()
	if err != nil {
		return false, opErr(db.OpEval, err)
	}
	return created == 1, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
