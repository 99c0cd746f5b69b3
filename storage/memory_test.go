package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videorag/core"
)

func visualRecord(id, video string, vec []float32) core.VisualRecord {
	return core.VisualRecord{ID: id, Video: video, Vector: vec, Timestamp: "frame_000", Document: "doc " + id}
}

func audioRecord(id, video string, vec []float32) core.AudioRecord {
	return core.AudioRecord{ID: id, Video: video, Vector: vec, Document: "speech " + id}
}

func TestMemoryStoreUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec := visualRecord("frame_v_frame_000", "v", []float32{1, 0})
	n, err := s.UpsertVisual(ctx, []core.VisualRecord{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec.Document = "updated"
	_, err = s.UpsertVisual(ctx, []core.VisualRecord{rec})
	require.NoError(t, err)

	hits, err := s.QueryVisual(ctx, []float32{1, 0}, 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "updated", hits[0].Document)
}

func TestMemoryStoreQueryOrdersByScore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.UpsertVisual(ctx, []core.VisualRecord{
		visualRecord("a", "v", []float32{0, 1}),
		visualRecord("b", "v", []float32{1, 0}),
		visualRecord("c", "v", []float32{0.7, 0.7}),
	})
	require.NoError(t, err)

	hits, err := s.QueryVisual(ctx, []float32{1, 0}, 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "b", hits[0].ID)
	assert.Equal(t, "c", hits[1].ID)
	assert.Equal(t, "a", hits[2].ID)
}

func TestMemoryStoreTopNTruncation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	records := make([]core.AudioRecord, 8)
	for i := range records {
		records[i] = audioRecord(string(rune('a'+i)), "v", []float32{1, 0})
	}
	_, err := s.UpsertAudio(ctx, records)
	require.NoError(t, err)

	hits, err := s.QueryAudio(ctx, []float32{1, 0}, 5, "")
	require.NoError(t, err)
	assert.Len(t, hits, 5)
}

func TestMemoryStoreVideoFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.UpsertVisual(ctx, []core.VisualRecord{
		visualRecord("a", "video1", []float32{1, 0}),
		visualRecord("b", "video2", []float32{1, 0}),
	})
	require.NoError(t, err)

	hits, err := s.QueryVisual(ctx, []float32{1, 0}, 10, "video1")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)

	hits, err = s.QueryVisual(ctx, []float32{1, 0}, 10, "missing")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryStoreDeleteVideo(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.UpsertVisual(ctx, []core.VisualRecord{
		visualRecord("a", "video1", []float32{1, 0}),
		visualRecord("b", "video2", []float32{1, 0}),
	})
	require.NoError(t, err)
	_, err = s.UpsertAudio(ctx, []core.AudioRecord{
		audioRecord("x", "video1", []float32{1, 0}),
	})
	require.NoError(t, err)

	removed, err := s.DeleteVideo(ctx, "video1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	hits, err := s.QueryVisual(ctx, []float32{1, 0}, 10, "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)

	removed, err = s.DeleteVideo(ctx, "video1")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestMemoryStoreEmptyQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	hits, err := s.QueryVisual(ctx, []float32{1, 0}, 10, "")
	require.NoError(t, err)
	assert.Empty(t, hits)
}
