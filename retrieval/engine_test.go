package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"videorag/config"
	"videorag/core"
	"videorag/storage"
)

// fakeEncoder maps known texts to fixed unit vectors.
type fakeEncoder struct {
	vectors map[string][]float32
}

func (e *fakeEncoder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}
	return nil, fmt.Errorf("no fake vector for %q", text)
}

func testConfig() *config.Config {
	return &config.Config{TopN: 5, TopK: 3, AttachImages: false}
}

func newTestEngine(t *testing.T, store storage.VectorStore, enc *fakeEncoder) *Engine {
	t.Helper()
	return NewEngine(testConfig(), zap.NewNop(), store, enc, &MockGenerator{})
}

func seedStore(t *testing.T, ctx context.Context, store storage.VectorStore) {
	t.Helper()
	_, err := store.UpsertVisual(ctx, []core.VisualRecord{
		{
			ID: "frame_clip.mp4_frame_000", Video: "clip.mp4", Timestamp: "frame_000",
			SceneStart: 0, SceneEnd: 3, SceneDuration: 3,
			Vector: []float32{1, 0}, Document: "doc A",
		},
		{
			ID: "frame_clip.mp4_frame_001", Video: "clip.mp4", Timestamp: "frame_001",
			SceneStart: 3, SceneEnd: 6, SceneDuration: 3,
			Vector: []float32{0.6, 0.8}, Document: "doc B",
		},
	})
	require.NoError(t, err)
	_, err = store.UpsertAudio(ctx, []core.AudioRecord{
		{
			ID: "audio_clip.mp4_000000", Video: "clip.mp4",
			Start: 0, End: 2.5, Duration: 2.5,
			Vector: []float32{1, 0}, Document: "hello there",
		},
	})
	require.NoError(t, err)
}

func TestQueryComposesEvidenceAndCitations(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	seedStore(t, ctx, store)

	enc := &fakeEncoder{vectors: map[string][]float32{
		"what happens": {1, 0},
		"doc A":        {1, 0},
		"doc B":        {0, 1},
	}}
	engine := newTestEngine(t, store, enc)

	result, err := engine.Query(ctx, QueryRequest{Question: "what happens"})
	require.NoError(t, err)

	require.Len(t, result.VisualHits, 2)
	require.Len(t, result.AudioHits, 1)
	assert.Contains(t, result.Evidence, "- frame frame_000 0.00-3.00s")
	assert.Contains(t, result.Evidence, "- audio audio_clip.mp4_000000 0.00-2.50s")
	assert.Equal(t, []string{"frame_000", "frame_001", "audio_clip.mp4_000000"}, result.Citations)

	assert.True(t, strings.HasSuffix(result.Answer, "[Citations: frame_000, frame_001, audio_clip.mp4_000000]"))
	assert.Contains(t, result.Answer, "\n\nEvidence:\n")

	answer, evidence, citations := SplitAnswer(result.Answer)
	assert.Equal(t, "Mock answer based on the retrieved context.", answer)
	assert.True(t, strings.HasPrefix(evidence, "Evidence:\n- frame frame_000"))
	assert.Equal(t, "[Citations: frame_000, frame_001, audio_clip.mp4_000000]", citations)
}

func TestQueryRerankReordersFrames(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	seedStore(t, ctx, store)

	// Vector search favors frame_000, but the re-embedded documents favor
	// frame_001.
	enc := &fakeEncoder{vectors: map[string][]float32{
		"what happens": {1, 0},
		"doc A":        {0, 1},
		"doc B":        {1, 0},
	}}
	engine := newTestEngine(t, store, enc)

	result, err := engine.Query(ctx, QueryRequest{Question: "what happens"})
	require.NoError(t, err)
	require.Len(t, result.VisualHits, 2)
	assert.Equal(t, "frame_001", result.VisualHits[0].Timestamp)
	assert.Equal(t, "frame_000", result.VisualHits[1].Timestamp)

	// Repeating the query hits the rerank cache and must not change the
	// ordering.
	again, err := engine.Query(ctx, QueryRequest{Question: "what happens"})
	require.NoError(t, err)
	assert.Equal(t, result.Answer, again.Answer)
}

func TestQueryVideoFilter(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	seedStore(t, ctx, store)

	enc := &fakeEncoder{vectors: map[string][]float32{
		"what happens": {1, 0},
		"doc A":        {1, 0},
		"doc B":        {0, 1},
	}}
	engine := newTestEngine(t, store, enc)

	result, err := engine.Query(ctx, QueryRequest{Question: "what happens", VideoID: "other.mp4"})
	require.NoError(t, err)
	assert.Empty(t, result.VisualHits)
	assert.Equal(t, noMatchAnswer, result.Answer)
}

func TestQueryNoMatchesSentinel(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	enc := &fakeEncoder{vectors: map[string][]float32{"anything": {1, 0}}}
	engine := newTestEngine(t, store, enc)

	result, err := engine.Query(ctx, QueryRequest{Question: "anything"})
	require.NoError(t, err)
	assert.Empty(t, result.Evidence)
	assert.Empty(t, result.Citations)

	answer, evidence, citations := SplitAnswer(result.Answer)
	assert.Equal(t, "No matches.", answer)
	assert.Equal(t, "Evidence: (no evidence)", evidence)
	assert.Equal(t, "[Citations: ]", citations)
}

func TestQueryEmptyQuestion(t *testing.T) {
	engine := newTestEngine(t, storage.NewMemoryStore(), &fakeEncoder{})
	_, err := engine.Query(context.Background(), QueryRequest{Question: "   "})
	assert.Error(t, err)
}

func TestCapText(t *testing.T) {
	assert.Equal(t, "abc", capText("  abc  ", 10))
	assert.Equal(t, "abcde", capText("abcdefgh", 5))
	assert.Equal(t, "", capText("   ", 5))
}
