package utils

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float32) float32 {
	return float32(math.Sqrt(float64(dot(v, v))))
}

// CosineSimilarity returns the cosine of the angle between a and b.
// A zero vector is similar to nothing.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("vectors cannot be empty")
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d != %d", len(a), len(b))
	}

	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot(a, b) / (na * nb), nil
}

// HashEmbedding projects the words of text into a fixed number of buckets
// and L2-normalizes the result. Identical word sets map to identical vectors.
func HashEmbedding(text string, dims int) []float32 {
	vec := make([]float32, dims)
	if dims <= 0 {
		return vec
	}

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		sum := h.Sum32()
		sign := float32(1)
		if sum&(1<<31) != 0 {
			sign = -1
		}
		vec[int(sum%uint32(dims))] += sign
	}

	if n := norm(vec); n > 0 {
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec
}
