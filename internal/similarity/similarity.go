// Package similarity provides proximity scoring between embedding vectors
// under a configurable metric.
package similarity

import (
	"fmt"
	"math"
)

// Metric identifies a proximity metric. For every metric a higher score means
// closer meaning: cosine reports similarity (max 1.0 for identical vectors),
// the distance metrics report the negated distance (max 0 for identical
// vectors).
type Metric string

const (
	Cosine    Metric = "cosine"
	Euclidean Metric = "euclidean"
	Manhattan Metric = "manhattan"
)

// ParseMetric parses a metric name case-sensitively. An empty name selects
// the cosine default.
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "", string(Cosine):
		return Cosine, nil
	case string(Euclidean):
		return Euclidean, nil
	case string(Manhattan):
		return Manhattan, nil
	default:
		return "", fmt.Errorf("unknown proximity metric %q", name)
	}
}

// Score computes the proximity score between two vectors of equal dimension
// under the given metric.
func Score(metric Metric, a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}

	switch metric {
	case Euclidean:
		return -euclideanDistance(a, b), nil
	case Manhattan:
		return -manhattanDistance(a, b), nil
	default:
		return cosineSimilarity(a, b), nil
	}
}

// MaxScore returns the highest score attainable under a metric, reached when
// the compared vectors are identical.
func MaxScore(metric Metric) float32 {
	if metric == Cosine {
		return 1.0
	}
	return 0.0
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func euclideanDistance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

func manhattanDistance(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += math.Abs(float64(a[i]) - float64(b[i]))
	}
	return float32(sum)
}
