package redis

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/redis/rueidis"
	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"

	"github.com/kailas-cloud/docqa/internal/db"
)

// --- client.go tests ---

func TestPing_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.Result(mock.RedisString("PONG")))

	s := NewStoreForTest(c, FlavorRedis)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("PING")).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c, FlavorRedis)
	err := s.Ping(context.Background())
	if !errors.Is(err, db.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestOpErr_Classification(t *testing.T) {
	transport := opErr(db.OpGet, context.DeadlineExceeded)
	if !errors.Is(transport, db.ErrUnavailable) {
		t.Error("timeout must be marked unavailable")
	}
	if !errors.Is(transport, context.DeadlineExceeded) {
		t.Error("cause must stay inspectable")
	}

	canceled := opErr(db.OpGet, context.Canceled)
	if errors.Is(canceled, db.ErrUnavailable) {
		t.Error("canceled context is not an outage")
	}
}

func TestNewStore_RequiresAddrs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for empty addrs")
	}
}

// --- hash.go tests ---

func TestExistsMulti(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{
			mock.Result(mock.RedisInt64(1)),
			mock.Result(mock.RedisInt64(0)),
			mock.Result(mock.RedisInt64(1)),
		})

	s := NewStoreForTest(c, FlavorRedis)
	got, err := s.ExistsMulti(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(got, []bool{true, false, true}) {
		t.Errorf("got %v", got)
	}
}

func TestExistsMulti_TransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		DoMulti(gomock.Any(), gomock.Any()).
		Return([]rueidis.RedisResult{mock.ErrorResult(context.DeadlineExceeded)})

	s := NewStoreForTest(c, FlavorRedis)
	_, err := s.ExistsMulti(context.Background(), []string{"a"})
	if !errors.Is(err, db.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !isDBError(err) {
		t.Errorf("expected db.Error, got %T", err)
	}
}

func TestExistsMulti_Empty(t *testing.T) {
	s := NewStoreForTest(nil, FlavorRedis) // client not called
	got, err := s.ExistsMulti(context.Background(), nil)
	if err != nil || got != nil {
		t.Fatalf("ExistsMulti(nil) = %v, %v", got, err)
	}
}

// --- script.go tests ---

func TestHSetNX_Created(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			// EVALSHA <sha> 1 <key> <field> <value> ...
			return cmd[0] == "EVALSHA" && cmd[2] == "1" && cmd[3] == "docqa:chunk:doc_0" &&
				cmd[4] == "__content" && cmd[5] == "hello"
		})).
		Return(mock.Result(mock.RedisInt64(1)))

	s := NewStoreForTest(c, FlavorRedis)
	created, err := s.HSetNX(context.Background(), "docqa:chunk:doc_0", map[string]string{
		"__seq":     "0",
		"__content": "hello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true")
	}
}

func TestHSetNX_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "EVALSHA"
		})).
		Return(mock.Result(mock.RedisInt64(0)))

	s := NewStoreForTest(c, FlavorRedis)
	created, err := s.HSetNX(context.Background(), "k", map[string]string{"f": "v"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected created=false for existing key")
	}
}

func TestHSetNX_NoScriptFallsBackToEval(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
				return cmd[0] == "EVALSHA"
			})).
			Return(mock.Result(mock.RedisError("NOSCRIPT No matching script"))),
		c.EXPECT().
			Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
				return cmd[0] == "EVAL"
			})).
			Return(mock.Result(mock.RedisInt64(1))),
	)

	s := NewStoreForTest(c, FlavorRedis)
	created, err := s.HSetNX(context.Background(), "k", map[string]string{"f": "v"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true")
	}
}

func TestHSetNX_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c, FlavorRedis)
	_, err := s.HSetNX(context.Background(), "k", map[string]string{"f": "v"})
	if !errors.Is(err, db.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestHSetNX_NoFields(t *testing.T) {
	s := NewStoreForTest(nil, FlavorRedis)
	if _, err := s.HSetNX(context.Background(), "k", nil); err == nil {
		t.Fatal("expected error for empty fields")
	}
}

// --- kv.go tests ---

func TestGet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisBlobString("value")))

	s := NewStoreForTest(c, FlavorRedis)
	data, err := s.Get(context.Background(), "mykey")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "value" {
		t.Errorf("unexpected data: %s", data)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("GET", "mykey")).
		Return(mock.Result(mock.RedisNil()))

	s := NewStoreForTest(c, FlavorRedis)
	_, err := s.Get(context.Background(), "mykey")
	if !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestSetWithTTL_NoExpiry(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "mykey", "myvalue")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c, FlavorRedis)
	if err := s.SetWithTTL(context.Background(), "mykey", []byte("myvalue"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetWithTTL_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("SET", "mykey", "myvalue", "EX", "60")).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c, FlavorRedis)
	if err := s.SetWithTTL(context.Background(), "mykey", []byte("myvalue"), 60*1e9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- index.go tests ---

func chunkIndexDef(t *testing.T) *db.IndexDefinition {
	t.Helper()
	def, err := db.NewIndex("docqa:chunk:idx").
		Prefix("docqa:chunk:").
		Text("__content").
		Numeric("__seq").
		VectorHNSW("__vector", "vector", 4, db.DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	return def
}

func TestCreateIndex_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE" && slices.Contains(cmd, "TEXT")
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c, FlavorRedis)
	if err := s.CreateIndex(context.Background(), chunkIndexDef(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_ValkeySkipsText(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE" && !slices.Contains(cmd, "TEXT") && slices.Contains(cmd, "NUMERIC")
		})).
		Return(mock.Result(mock.RedisString("OK")))

	s := NewStoreForTest(c, FlavorValkey)
	if err := s.CreateIndex(context.Background(), chunkIndexDef(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateIndex_AlreadyExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.CREATE"
		})).
		Return(mock.Result(mock.RedisError("Index already exists")))

	s := NewStoreForTest(c, FlavorRedis)
	err := s.CreateIndex(context.Background(), chunkIndexDef(t))
	if !errors.Is(err, db.ErrIndexExists) {
		t.Fatalf("expected ErrIndexExists, got %v", err)
	}
}

func TestIndexExists(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	gomock.InOrder(
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.INFO", "idx")).
			Return(mock.Result(mock.RedisArray(mock.RedisString("index_name"), mock.RedisString("idx")))),
		c.EXPECT().
			Do(gomock.Any(), mock.Match("FT.INFO", "idx")).
			Return(mock.Result(mock.RedisError("Unknown Index name"))),
	)

	s := NewStoreForTest(c, FlavorRedis)
	if ok, err := s.IndexExists(context.Background(), "idx"); err != nil || !ok {
		t.Fatalf("first IndexExists = %v, %v", ok, err)
	}
	if ok, err := s.IndexExists(context.Background(), "idx"); err != nil || ok {
		t.Fatalf("second IndexExists = %v, %v", ok, err)
	}
}

func TestBuildCreateArgs(t *testing.T) {
	args, err := buildCreateArgs(chunkIndexDef(t), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"docqa:chunk:idx", "ON", "HASH", "PREFIX", "1", "docqa:chunk:", "SCHEMA",
		"__content", "TEXT",
		"__seq", "NUMERIC",
		"__vector", "AS", "vector", "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32", "DIM", "4", "DISTANCE_METRIC", "COSINE", "M", "16", "EF_CONSTRUCTION", "200",
	}
	if !slices.Equal(args, want) {
		t.Errorf("args =\n%v\nwant\n%v", args, want)
	}
}

func TestBuildCreateArgs_Validation(t *testing.T) {
	if _, err := buildCreateArgs(&db.IndexDefinition{}, true); err == nil {
		t.Error("expected error for empty name")
	}
	if _, err := buildCreateArgs(&db.IndexDefinition{Name: "idx"}, true); err == nil {
		t.Error("expected error for no fields")
	}
	bad := &db.IndexDefinition{Name: "idx", Fields: []db.IndexField{{Name: "v", Type: db.IndexFieldVector}}}
	if _, err := buildCreateArgs(bad, true); err == nil {
		t.Error("expected error for zero DIM")
	}
}

// --- search.go tests ---

func TestSearchKNN_SortsByDistance(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && cmd[2] == "*=>[KNN 3 @vector $BLOB]" &&
				slices.Contains(cmd, "SORTBY")
		})).
		Return(mock.Result(mock.RedisArray(
			mock.RedisInt64(3),
			mock.RedisString("docqa:chunk:doc_0"),
			mock.RedisArray(
				mock.RedisString("__vector_score"), mock.RedisString("0.9"),
				mock.RedisString("__content"), mock.RedisString("far"),
			),
			mock.RedisString("docqa:chunk:doc_1"),
			mock.RedisArray(
				mock.RedisString("__vector_score"), mock.RedisString("0.1"),
				mock.RedisString("__content"), mock.RedisString("near"),
			),
			mock.RedisString("docqa:chunk:doc_2"),
			mock.RedisArray(
				mock.RedisString("__vector_score"), mock.RedisString("0.5"),
				mock.RedisString("__content"), mock.RedisString("mid"),
			),
		)))

	s := NewStoreForTest(c, FlavorRedis)
	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName:    "docqa:chunk:idx",
		Vector:       []float32{0.1, 0.2},
		K:            3,
		ReturnFields: []string{"__content"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(result.Entries))
	}
	first := result.Entries[0]
	if first.Key != "docqa:chunk:doc_1" || first.Fields["__content"] != "near" {
		t.Errorf("unexpected nearest: %+v", first)
	}
	if first.Distance < 0.09 || first.Distance > 0.11 {
		t.Errorf("expected raw distance ~0.1, got %f", first.Distance)
	}
	if _, ok := first.Fields["__vector_score"]; ok {
		t.Error("__vector_score must be moved out of fields")
	}
	if result.Entries[2].Key != "docqa:chunk:doc_0" {
		t.Errorf("farthest should be last, got %s", result.Entries[2].Key)
	}
}

func TestSearchKNN_ValkeyOmitsSortBy(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "FT.SEARCH" && !slices.Contains(cmd, "SORTBY")
		})).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(0))))

	s := NewStoreForTest(c, FlavorValkey)
	result, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(result.Entries))
	}
}

func TestSearchKNN_UnknownIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisError("idx: no such index")))

	s := NewStoreForTest(c, FlavorRedis)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 1})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestIsUnknownIndex(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Unknown Index name", true},
		{"idx: no such index", true},
		{"Index with name 'docqa:chunk:idx' not found", true},
		{"Field '__vector' not found", false},
		{"Invalid query: attribute __seq not found in schema", false},
		{"ERR syntax error", false},
	}
	for _, tc := range tests {
		t.Run(tc.msg, func(t *testing.T) {
			err := mock.Result(mock.RedisError(tc.msg)).Error()
			if got := isUnknownIndex(err); got != tc.want {
				t.Errorf("isUnknownIndex(%q) = %v, want %v", tc.msg, got, tc.want)
			}
		})
	}
}

func TestSearchKNN_FieldNotFoundIsNotMissingIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.Result(mock.RedisError("Field 'vector' not found")))

	s := NewStoreForTest(c, FlavorValkey)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 1})
	if errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("field error must not read as a missing index: %v", err)
	}
	if !isDBError(err) {
		t.Errorf("expected *db.Error, got %v", err)
	}
}

func TestSearchKNN_TransportError(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		Return(mock.ErrorResult(context.DeadlineExceeded))

	s := NewStoreForTest(c, FlavorRedis)
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{IndexName: "idx", Vector: []float32{1}, K: 1})
	if !errors.Is(err, db.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSearchKNN_Validation(t *testing.T) {
	s := &Store{}
	ctx := context.Background()

	if _, err := s.SearchKNN(ctx, &db.KNNQuery{Vector: []float32{0.1}, K: 1}); err == nil {
		t.Error("expected error for empty index name")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", K: 1}); err == nil {
		t.Error("expected error for empty vector")
	}
	if _, err := s.SearchKNN(ctx, &db.KNNQuery{IndexName: "idx", Vector: []float32{1}}); err == nil {
		t.Error("expected error for non-positive k")
	}
}

func TestSearchCount_Redis(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	c.EXPECT().
		Do(gomock.Any(), mock.Match("FT.SEARCH", "idx", "*", "LIMIT", "0", "0")).
		Return(mock.Result(mock.RedisArray(mock.RedisInt64(7))))

	s := NewStoreForTest(c, FlavorRedis)
	n, err := s.SearchCount(context.Background(), "idx", "*")
	if err != nil || n != 7 {
		t.Fatalf("SearchCount = %d, %v; want 7, nil", n, err)
	}
}

func TestSearchCount_ValkeyScans(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock.NewClient(ctrl)

	first := true
	c.EXPECT().
		Do(gomock.Any(), mock.MatchFn(func(cmd []string) bool {
			return cmd[0] == "SCAN" && slices.Contains(cmd, "docqa:chunk:*")
		})).
		DoAndReturn(func(_ context.Context, _ rueidis.Completed) rueidis.RedisResult {
			if first {
				first = false
				return mock.Result(mock.RedisArray(
					mock.RedisInt64(42),
					mock.RedisArray(mock.RedisString("docqa:chunk:doc_0")),
				))
			}
			return mock.Result(mock.RedisArray(
				mock.RedisInt64(0),
				mock.RedisArray(mock.RedisString("docqa:chunk:doc_1"), mock.RedisString("docqa:chunk:doc_2")),
			))
		}).Times(2)

	s := NewStoreForTest(c, FlavorValkey)
	n, err := s.SearchCount(context.Background(), "docqa:chunk:idx", "*")
	if err != nil || n != 3 {
		t.Fatalf("SearchCount = %d, %v; want 3, nil", n, err)
	}
}

func TestIndexToKeyPrefix(t *testing.T) {
	if got := indexToKeyPrefix("docqa:chunk:idx"); got != "docqa:chunk:" {
		t.Errorf("got %q", got)
	}
	if got := indexToKeyPrefix("plain"); got != "plain:" {
		t.Errorf("got %q", got)
	}
}

// --- helpers ---

// isDBError is a test helper for checking wrapped db.Error.
func isDBError(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}
