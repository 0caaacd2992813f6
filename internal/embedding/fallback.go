package embedding

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Fallback uses Primary until it fails once, then serves every later request from
// pseudo-embeddings. The pseudo vectors take the length of the vectors already in
// use: the first Primary result, or a length pinned from the store.
type Fallback struct {
	Primary  Service
	size     int
	dim      atomic.Int64
	degraded atomic.Bool
}

// NewFallback wraps primary; size is the pseudo vector length when no length was seen or pinned
func NewFallback(primary Service, size int) *Fallback {
	return &Fallback{Primary: primary, size: NewPseudo(size).Dimension}
}

func (f *Fallback) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !f.degraded.Load() {
		vectors, err := f.Primary.Embed(ctx, texts)
		if err == nil {
			if len(vectors) > 0 {
				f.Pin(len(vectors[0]))
			}
			return vectors, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		f.dim.CompareAndSwap(0, int64(f.size))
		log.Warn().Err(err).Int64("dimension", f.dim.Load()).Msg("Embedding service unavailable, switching to pseudo-embeddings")
		f.degraded.Store(true)
	}
	return NewPseudo(int(f.dim.Load())).Embed(ctx, texts)
}

// Pin fixes the vector length if none is known yet
func (f *Fallback) Pin(dim int) {
	if dim > 0 {
		f.dim.CompareAndSwap(0, int64(dim))
	}
}

// Dimension is the pinned vector length, 0 when unknown
func (f *Fallback) Dimension() int {
	return int(f.dim.Load())
}

// Degraded reports whether pseudo-embeddings are in use
func (f *Fallback) Degraded() bool {
	return f.degraded.Load()
}
