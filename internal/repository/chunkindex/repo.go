package chunkindex

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/docqa/internal/db"
	"github.com/kailas-cloud/docqa/internal/domain"
	"github.com/kailas-cloud/docqa/internal/domain/entry"
)

// Hash field names of a stored chunk.
const (
	fieldContent = "__content"
	fieldVector  = "__vector"
	fieldSeq     = "__seq"
	vectorAlias  = "vector"
)

// store is the consumer interface for the chunk index (ISP).
type store interface {
	HSetNX(ctx context.Context, key string, fields map[string]string) (bool, error)
	ExistsMulti(ctx context.Context, keys []string) ([]bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	Ping(ctx context.Context) error
}

// Options configure the index layout.
type Options struct {
	KeyPrefix string // e.g. "docqa:"
	Vector    domain.VectorConfig
	Flat      bool // FLAT instead of HNSW
}

// Repo implements usecase/retrieval.Index on top of Redis/Valkey search.
type Repo struct {
	store     store
	keyPrefix string // <prefix>chunk:
	indexName string // <prefix>chunk:idx
	vec       domain.VectorConfig
	flat      bool
}

// New creates a chunk index repository.
func New(s store, opts Options) *Repo {
	base := opts.KeyPrefix + "chunk:"
	return &Repo{
		store:     s,
		keyPrefix: base,
		indexName: base + "idx",
		vec:       opts.Vector,
		flat:      opts.Flat,
	}
}

// IndexName returns the FT index name.
func (r *Repo) IndexName() string { return r.indexName }

// EnsureIndex creates the FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.indexName, mapErr(err))
	}
	if exists {
		return nil
	}

	def, err := r.indexDefinition()
	if err != nil {
		return fmt.Errorf("build index %s: %w", r.indexName, err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		// Another replica won the race.
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", r.indexName, mapErr(err))
	}
	return nil
}

func (r *Repo) indexDefinition() (*db.IndexDefinition, error) {
	distance := db.DistanceMetric(r.vec.Distance.RedisName())
	b := db.NewIndex(r.indexName).
		Prefix(r.keyPrefix).
		Text(fieldContent).
		Numeric(fieldSeq)
	if r.flat {
		b = b.VectorFlat(fieldVector, vectorAlias, r.vec.Dimensions, distance)
	} else {
		b = b.VectorHNSW(fieldVector, vectorAlias, r.vec.Dimensions, distance, r.vec.HNSWM, r.vec.HNSWEFConstruction)
	}
	return b.Build()
}

// Upsert stores e unless an entry with the same chunk id already exists.
// Reports whether the entry was created.
func (r *Repo) Upsert(ctx context.Context, e entry.Entry) (bool, error) {
	if err := r.checkDims(e.Vector()); err != nil {
		return false, fmt.Errorf("upsert %s: %w", e.ChunkID(), err)
	}

	created, err := r.store.HSetNX(ctx, r.key(e.ChunkID()), map[string]string{
		fieldContent: e.Text(),
		fieldVector:  db.EncodeVector(e.Vector()),
		fieldSeq:     strconv.Itoa(e.Seq()),
	})
	if err != nil {
		return false, fmt.Errorf("upsert %s: %w", e.ChunkID(), mapErr(err))
	}
	return created, nil
}

// Missing returns the ids that are not stored yet, in input order.
func (r *Repo) Missing(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}

	exists, err := r.store.ExistsMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("check chunks: %w", mapErr(err))
	}
	if len(exists) != len(ids) {
		return nil, fmt.Errorf("check chunks: got %d replies for %d keys", len(exists), len(ids))
	}

	var missing []string
	for i, ok := range exists {
		if !ok {
			missing = append(missing, ids[i])
		}
	}
	return missing, nil
}

// Nearest returns up to k entries closest to vector, ordered by increasing distance.
// A missing index is treated as empty.
func (r *Repo) Nearest(ctx context.Context, vector []float32, k int) ([]entry.Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := r.checkDims(vector); err != nil {
		return nil, fmt.Errorf("nearest: %w", err)
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName,
		VectorField:  vectorAlias,
		Vector:       vector,
		K:            k,
		ReturnFields: []string{fieldContent},
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("nearest: %w", mapErr(err))
	}

	out := make([]entry.Neighbor, 0, len(sr.Entries))
	for _, se := range sr.Entries {
		out = append(out, entry.Neighbor{
			ChunkID:  strings.TrimPrefix(se.Key, r.keyPrefix),
			Text:     se.Fields[fieldContent],
			Distance: se.Distance,
		})
	}
	return out, nil
}

// Count returns the number of stored chunks.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.indexName, "*")
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("count chunks: %w", mapErr(err))
	}
	return n, nil
}

// Ping checks the store connection.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return mapErr(err)
	}
	return nil
}

func (r *Repo) key(id string) string { return r.keyPrefix + id }

func (r *Repo) checkDims(v []float32) error {
	if r.vec.Dimensions > 0 && len(v) != r.vec.Dimensions {
		return fmt.Errorf("%w: got %d, want %d", domain.ErrVectorDimMismatch, len(v), r.vec.Dimensions)
	}
	return nil
}

// mapErr adds domain.ErrIndexUnavailable to transport failures, keeping the cause.
func mapErr(err error) error {
	if errors.Is(err, db.ErrUnavailable) {
		return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return err
}
