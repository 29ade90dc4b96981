// Package metric defines the distance function shared by index creation and querying.
package metric

import (
	"fmt"
	"math"
	"strings"
)

// Metric names a vector distance function. Smaller distance is always more similar.
type Metric string

const (
	// Cosine is 1 - cos(a, b).
	Cosine Metric = "cosine"
	// InnerProduct is 1 - dot(a, b), matching the Redis IP metric.
	InnerProduct Metric = "ip"
	// L2 is the Euclidean distance.
	L2 Metric = "l2"
)

// Parse resolves a metric name case-insensitively. Empty means Cosine.
func Parse(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Cosine, nil
	case Cosine, InnerProduct, L2:
		return m, nil
	default:
		return "", fmt.Errorf("unknown distance metric %q", s)
	}
}

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	switch m {
	case Cosine, InnerProduct, L2:
		return true
	}
	return false
}

// RedisName returns the DISTANCE_METRIC token for FT.CREATE.
func (m Metric) RedisName() string {
	switch m {
	case InnerProduct:
		return "IP"
	case L2:
		return "L2"
	default:
		return "COSINE"
	}
}

// Distance computes the distance between two equal-length vectors.
// Mismatched lengths return +Inf so the pair never wins a nearest query.
func (m Metric) Distance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	switch m {
	case L2:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return math.Sqrt(sum)

	case InnerProduct:
		return 1 - dot(a, b)

	default:
		var na, nb float64
		for i := range a {
			na += float64(a[i]) * float64(a[i])
			nb += float64(b[i]) * float64(b[i])
		}
		if na == 0 || nb == 0 {
			return 1
		}
		return 1 - dot(a, b)/(math.Sqrt(na)*math.Sqrt(nb))
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
