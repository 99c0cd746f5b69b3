// Package storage owns the persisted vector collections: one for fused
// visual units, one for text-embedded audio units. Vectors arrive
// pre-normalized, so cosine similarity reduces to inner product in every
// backend.
package storage

import (
	"context"
	"fmt"

	"videorag/config"
	"videorag/core"
)

// VectorStore is the two-collection upsert/query contract. Upserts are
// idempotent by record id. Queries restrict to one video when videoID is
// non-empty and return an empty slice, never an error, when nothing
// matches. There are no cross-collection transactions: a partial
// ingestion is repaired by re-running it.
type VectorStore interface {
	UpsertVisual(ctx context.Context, records []core.VisualRecord) (int, error)
	UpsertAudio(ctx context.Context, records []core.AudioRecord) (int, error)
	QueryVisual(ctx context.Context, vector []float32, topN int, videoID string) ([]core.VisualHit, error)
	QueryAudio(ctx context.Context, vector []float32, topN int, videoID string) ([]core.AudioHit, error)
	// DeleteVideo removes every record for one video from both
	// collections and returns how many were dropped.
	DeleteVideo(ctx context.Context, videoID string) (int, error)
	Close(ctx context.Context) error
}

// Open builds the configured backend. The handle is process-wide and
// reusable across ingestions and queries; callers serialize concurrent
// ingestion of the same video themselves.
func Open(ctx context.Context, cfg *config.Config) (VectorStore, error) {
	switch cfg.Store {
	case "", "memory":
		return NewMemoryStore(), nil
	case "pgvector":
		return NewPgVectorStore(ctx, cfg)
	case "milvus":
		return NewMilvusStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown vector store %q", cfg.Store)
	}
}
