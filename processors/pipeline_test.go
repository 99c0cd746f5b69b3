package processors

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"videorag/config"
	"videorag/core"
	"videorag/storage"
)

// fixedEncoder returns the same unit vector for every input.
type fixedEncoder struct {
	vec []float32
}

func (e *fixedEncoder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	return append([]float32(nil), e.vec...), nil
}

func (e *fixedEncoder) EncodeImage(ctx context.Context, img image.Image) ([]float32, error) {
	return append([]float32(nil), e.vec...), nil
}

func testPipeline(store storage.VectorStore) *Pipeline {
	cfg := &config.Config{
		SceneThreshold:     0.6,
		MinSceneGap:        10,
		MinSegmentDuration: 2.0,
		UserDescription:    "A test video",
	}
	enc := &fixedEncoder{vec: []float32{1, 0}}
	return NewPipeline(cfg, zap.NewNop(), store, enc, enc)
}

func TestBuildVisualRecord(t *testing.T) {
	p := testPipeline(storage.NewMemoryStore())

	scene := &core.SceneInterval{
		Start:        0,
		End:          3,
		Duration:     3,
		Keyframe:     solidFrame(color.Gray{Y: 100}),
		TimestampKey: "frame_000",
	}

	rec, err := p.buildVisualRecord(context.Background(), "clip.mp4", scene)
	require.NoError(t, err)

	assert.Equal(t, "frame_clip.mp4_frame_000", rec.ID)
	assert.Equal(t, "frame_000", rec.Timestamp)
	assert.Equal(t, "clip.mp4", rec.Video)
	assert.Equal(t, 0.0, rec.SceneStart)
	assert.Equal(t, 3.0, rec.SceneEnd)
	assert.Equal(t, 3.0, rec.SceneDuration)
	assert.Contains(t, rec.Document, "SHORT: ")
	assert.Contains(t, rec.Document, " | LONG: ")
	assert.Contains(t, rec.Document, " | CAUSAL: ")
	require.Len(t, rec.Vector, 2)
	assert.InDelta(t, 1.0, float64(rec.Vector[0]), 1e-6)
}

func TestIngestVideoMissingFile(t *testing.T) {
	p := testPipeline(storage.NewMemoryStore())
	_, err := p.IngestVideo(context.Background(), "does-not-exist.mp4")
	assert.Error(t, err)
}

func TestIngestBatchIsolatesFailures(t *testing.T) {
	p := testPipeline(storage.NewMemoryStore())

	results := p.IngestBatch(context.Background(), []string{"missing-a.mp4", "missing-b.mp4"})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Nil(t, r.Result)
		assert.NotEmpty(t, r.Error)
	}
}

func TestMockTranscriberChunks(t *testing.T) {
	tr := &MockTranscriber{}

	// Probing a nonexistent file falls back to the default duration.
	result, err := tr.Transcribe(context.Background(), "no-such-audio.wav")
	require.NoError(t, err)
	require.Len(t, result.Segments, 2)
	assert.Equal(t, 0.0, result.Segments[0].Start)
	assert.Equal(t, 15.0, result.Segments[0].End)
	assert.Equal(t, 15.0, result.Segments[1].Start)
	assert.Equal(t, 30.0, result.Segments[1].End)
	assert.NotEmpty(t, result.Text)
}
