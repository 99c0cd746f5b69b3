// Package embedding produces the unit-norm vectors stored for visual and
// audio units, and the fused (image+text) representation for keyframes.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"videorag/config"
)

// ErrZeroVector marks an embedding whose pre-normalization L2 norm is
// zero (empty or degenerate input). Callers skip the unit rather than let
// NaNs reach the store.
var ErrZeroVector = errors.New("embedding: zero vector")

// TextEncoder and ImageEncoder are the opaque model contracts. Both
// return unit-norm vectors; encoders paired for visual fusion must share
// one dimensionality and one similarity space.
type TextEncoder interface {
	EncodeText(ctx context.Context, text string) ([]float32, error)
}

type ImageEncoder interface {
	EncodeImage(ctx context.Context, img image.Image) ([]float32, error)
}

// NewEncoders builds the configured encoder pair. The clip backend covers
// both modalities from one local model; the openai backend is text-only,
// so its image encoder is nil and visual ingestion is unavailable.
func NewEncoders(cfg *config.Config) (TextEncoder, ImageEncoder, error) {
	switch cfg.Encoder {
	case "clip":
		enc, err := NewCLIPEncoder(cfg.ClipModelDir, cfg.EmbedDim)
		if err != nil {
			return nil, nil, err
		}
		return enc, enc, nil
	case "openai":
		if !cfg.HasValidAPI() {
			config.PrintConfigInstructions()
			return nil, nil, fmt.Errorf("openai encoder requires api_key and base_url")
		}
		return NewOpenAITextEncoder(cfg), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown encoder %q", cfg.Encoder)
	}
}

// NormalizeL2 scales v to unit L2 norm in place. A zero vector is
// reported as ErrZeroVector instead of being divided into NaNs.
func NormalizeL2(v []float32) error {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return ErrZeroVector
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return nil
}

// FuseVisual combines a text embedding and an image embedding into the
// stored fused vector: normalize each, average element-wise, normalize
// the average. Equal weighting keeps either modality from dominating, and
// the final normalization keeps cosine search well defined.
func FuseVisual(textVec, imageVec []float32) ([]float32, error) {
	if len(textVec) != len(imageVec) {
		return nil, fmt.Errorf("fuse visual: dimension mismatch %d vs %d", len(textVec), len(imageVec))
	}
	if len(textVec) == 0 {
		return nil, ErrZeroVector
	}

	t := make([]float32, len(textVec))
	copy(t, textVec)
	if err := NormalizeL2(t); err != nil {
		return nil, fmt.Errorf("fuse visual: text embedding: %w", err)
	}
	v := make([]float32, len(imageVec))
	copy(v, imageVec)
	if err := NormalizeL2(v); err != nil {
		return nil, fmt.Errorf("fuse visual: image embedding: %w", err)
	}

	fused := make([]float32, len(t))
	for i := range fused {
		fused[i] = (t[i] + v[i]) / 2.0
	}
	if err := NormalizeL2(fused); err != nil {
		return nil, fmt.Errorf("fuse visual: %w", err)
	}
	return fused, nil
}

// Dot is the cosine similarity of two unit-norm vectors.
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
