package db

import (
	"errors"
	"fmt"
)

// StorageType is the ON clause of FT.CREATE. Chunks are always hashes.
type StorageType string

// StorageHash stores entries as Redis hashes.
const StorageHash StorageType = "HASH"

// DistanceMetric is the DISTANCE_METRIC attribute of a vector field.
type DistanceMetric string

// Distance metrics understood by both Redis and Valkey search.
const (
	DistanceL2     DistanceMetric = "L2"
	DistanceIP     DistanceMetric = "IP"
	DistanceCosine DistanceMetric = "COSINE"
)

func (d DistanceMetric) known() bool {
	switch d {
	case DistanceL2, DistanceIP, DistanceCosine:
		return true
	}
	return false
}

// VectorAlgorithm selects how the vector field is indexed.
type VectorAlgorithm string

const (
	// VectorHNSW is the approximate graph index.
	VectorHNSW VectorAlgorithm = "HNSW"
	// VectorFlat is exact brute force, fine for a single document.
	VectorFlat VectorAlgorithm = "FLAT"
)

// IndexFieldType is the SCHEMA type of a field.
type IndexFieldType int

// Field types used by the chunk schema.
const (
	IndexFieldNumeric IndexFieldType = iota
	IndexFieldText
	IndexFieldVector
)

// IndexField is one SCHEMA entry.
type IndexField struct {
	Name  string
	Alias string
	Type  IndexFieldType

	VectorAlgo        VectorAlgorithm
	VectorDim         int
	VectorDistance    DistanceMetric
	VectorM           int // HNSW only, 0 keeps the server default
	VectorEFConstruct int // HNSW only, 0 keeps the server default
}

// key is the name the field is queried by.
func (f *IndexField) key() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// IndexDefinition is everything FT.CREATE needs.
type IndexDefinition struct {
	Name        string
	StorageType StorageType
	Prefixes    []string
	Fields      []IndexField
}

// Vector returns the first vector field, or nil.
func (idx *IndexDefinition) Vector() *IndexField {
	for i := range idx.Fields {
		if idx.Fields[i].Type == IndexFieldVector {
			return &idx.Fields[i]
		}
	}
	return nil
}

// Validate checks names, duplicates and vector attributes.
func (idx *IndexDefinition) Validate() error {
	switch {
	case idx.Name == "":
		return errors.New("index name is required")
	case !IsValidIdentifier(idx.Name):
		return fmt.Errorf("index name %q contains invalid characters", idx.Name)
	case len(idx.Fields) == 0:
		return errors.New("at least one field is required")
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		if _, dup := seen[f.key()]; dup {
			return fmt.Errorf("duplicate field name: %s", f.key())
		}
		seen[f.key()] = struct{}{}

		if f.Type != IndexFieldVector {
			continue
		}
		if f.VectorDim <= 0 {
			return fmt.Errorf("vector field %s requires positive DIM", f.Name)
		}
		if f.VectorDistance != "" && !f.VectorDistance.known() {
			return fmt.Errorf("vector field %s: unknown distance %q", f.Name, f.VectorDistance)
		}
		if f.VectorM < 0 || f.VectorEFConstruct < 0 {
			return fmt.Errorf("vector field %s: negative HNSW parameters", f.Name)
		}
	}

	return nil
}

// IsValidIdentifier reports whether s is non-empty and made of [a-zA-Z0-9_:-].
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case c == '_', c == ':', c == '-':
		default:
			return false
		}
	}
	return true
}
