package redis

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docqa/internal/db"
)

// CreateIndex creates an FT index from the given definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def, s.supportsText())
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return opErr(db.OpCreateIndex, err)
	}
	return nil
}

// IndexExists probes index existence via FT.INFO.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isUnknownIndex(err) {
			return false, nil
		}
		return false, opErr(db.OpIndexInfo, err)
	}
	return true, nil
}

// supportsText reports whether TEXT schema fields are accepted.
// valkey-search indexes only TAG, NUMERIC and VECTOR.
func (s *Store) supportsText() bool {
	return s.flavor != FlavorValkey
}

// valkey-search: "Index with name 'x' not found".
var valkeyUnknownIndex = regexp.MustCompile(`(?i)\bindex with name\b.*\bnot found\b`)

// Redis says "Unknown index name" or "no such index" depending on the version.
func isUnknownIndex(err error) bool {
	if isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index") {
		return true
	}
	re, ok := rueidis.IsRedisErr(err)
	return ok && valkeyUnknownIndex.MatchString(re.Error())
}

// buildCreateArgs renders FT.CREATE arguments. TEXT fields are dropped when the
// server cannot index them; chunk text is still stored in the hash.
func buildCreateArgs(idx *db.IndexDefinition, allowText bool) ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	storage := idx.StorageType
	if storage == "" {
		storage = db.StorageHash
	}
	args := []string{idx.Name, "ON", string(storage)}
	if n := len(idx.Prefixes); n > 0 {
		args = append(append(args, "PREFIX", strconv.Itoa(n)), idx.Prefixes...)
	}
	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Type == db.IndexFieldText && !allowText {
			continue
		}
		args = append(args, f.Name)
		if f.Alias != "" {
			args = append(args, "AS", f.Alias)
		}
		switch f.Type {
		case db.IndexFieldNumeric:
			args = append(args, "NUMERIC")
		case db.IndexFieldText:
			args = append(args, "TEXT")
		case db.IndexFieldVector:
			args = append(args, vectorArgs(f)...)
		default:
			return nil, fmt.Errorf("field %s: unknown type %d", f.Name, f.Type)
		}
	}

	return args, nil
}

// vectorArgs renders VECTOR <algo> <n> <attrs...>.
func vectorArgs(f *db.IndexField) []string {
	algo, distance := f.VectorAlgo, f.VectorDistance
	if algo == "" {
		algo = db.VectorHNSW
	}
	if distance == "" {
		distance = db.DistanceCosine
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(distance),
	}
	if algo == db.VectorHNSW && f.VectorM > 0 {
		attrs = append(attrs, "M", strconv.Itoa(f.VectorM))
	}
	if algo == db.VectorHNSW && f.VectorEFConstruct > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.VectorEFConstruct))
	}

	return append([]string{"VECTOR", string(algo), strconv.Itoa(len(attrs))}, attrs...)
}
