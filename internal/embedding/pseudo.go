package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
)

// Pseudo produces deterministic unit vectors seeded from a hash of the exact text.
// Identical text always yields the identical vector, so ordering is reproducible offline.
type Pseudo struct {
	Dimension int
}

func NewPseudo(dimension int) Pseudo {
	if dimension <= 0 {
		dimension = 768
	}
	return Pseudo{Dimension: dimension}
}

func (p Pseudo) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = p.vector(text)
	}
	return vectors, nil
}

func (p Pseudo) vector(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	rng := rand.New(rand.NewSource(int64(binary.BigEndian.Uint64(sum[:8]))))

	vector := make([]float32, p.Dimension)
	var norm float64
	for i := range vector {
		v := rng.NormFloat64()
		vector[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vector
	}
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
	return vector
}
