package db

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestIndexBuilder_ChunkSchema(t *testing.T) {
	idx, err := NewIndex("docqa:chunk:idx").
		Prefix("docqa:chunk:").
		Text("__content").
		Numeric("__seq").
		VectorHNSW("__vector", "vector", 1536, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if idx.StorageType != StorageHash {
		t.Errorf("storage = %q, want HASH", idx.StorageType)
	}
	if len(idx.Fields) != 3 {
		t.Fatalf("fields count = %d, want 3", len(idx.Fields))
	}
	f := idx.Fields[2]
	if f.Alias != "vector" || f.VectorAlgo != VectorHNSW || f.VectorDim != 1536 {
		t.Errorf("unexpected vector field: %+v", f)
	}
	if f.VectorM != 16 || f.VectorEFConstruct != 200 {
		t.Errorf("M/EF = %d/%d, want 16/200", f.VectorM, f.VectorEFConstruct)
	}
}

func TestIndexBuilder_VectorFlat(t *testing.T) {
	idx, err := NewIndex("flat-idx").VectorFlat("__vector", "vector", 3, DistanceL2).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Fields[0].VectorAlgo != VectorFlat || idx.Fields[0].VectorDistance != DistanceL2 {
		t.Errorf("unexpected field: %+v", idx.Fields[0])
	}
}

func TestIndexBuilder_Validation(t *testing.T) {
	tests := []struct {
		name string
		b    *IndexBuilder
	}{
		{"empty name", NewIndex("").Text("a")},
		{"invalid name", NewIndex("bad name").Text("a")},
		{"no fields", NewIndex("idx")},
		{"duplicate field", NewIndex("idx").Text("a").Numeric("a")},
		{"duplicate alias", NewIndex("idx").Text("vector").VectorFlat("v", "vector", 2, DistanceIP)},
		{"zero dim", NewIndex("idx").VectorHNSW("v", "", 0, DistanceCosine, 0, 0)},
		{"unknown distance", NewIndex("idx").VectorFlat("v", "", 2, DistanceMetric("MANHATTAN"))},
		{"negative M", NewIndex("idx").VectorHNSW("v", "", 2, DistanceCosine, -1, 0)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.b.Build(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestIndexDefinition_Vector(t *testing.T) {
	idx, err := NewIndex("idx").Text("__content").VectorFlat("__vector", "vector", 2, DistanceIP).Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := idx.Vector(); v == nil || v.Name != "__vector" {
		t.Errorf("Vector() = %+v, want __vector", v)
	}

	textOnly, _ := NewIndex("idx").Text("__content").Build()
	if textOnly.Vector() != nil {
		t.Error("expected no vector field")
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx, _ := NewIndex("idx").
		Prefix("p:").
		Text("__content").
		VectorHNSW("__vector", "vector", 4, DistanceIP, 0, 0).
		Build()

	s := idx.String()
	for _, want := range []string{"FT.CREATE idx", "ON HASH", "PREFIX p:", "__content TEXT", "__vector AS vector VECTOR HNSW IP"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"abc", "a:b", "a_b-c", "X1"}
	invalid := []string{"", "a b", "a*b", "ключ"}
	for _, s := range valid {
		if !IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = true, want false", s)
		}
	}
}

func TestMarkUnavailable(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := MarkUnavailable(cause)
	if !errors.Is(err, ErrUnavailable) {
		t.Error("expected ErrUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Error("cause must stay inspectable")
	}
	if err.Error() != cause.Error() {
		t.Errorf("message changed: %q", err.Error())
	}
	if MarkUnavailable(nil) != nil {
		t.Error("nil must stay nil")
	}
	wrapped := fmt.Errorf("op: %w", err)
	if MarkUnavailable(wrapped) != wrapped {
		t.Error("already marked errors must not be wrapped again")
	}
}
