package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"videorag/config"
)

// OpenAITextEncoder embeds text through an OpenAI-compatible embeddings
// endpoint. It cannot embed images; pair it with the clip encoder when
// visual units are ingested.
type OpenAITextEncoder struct {
	cli   *openai.Client
	model string
	dim   int
}

func NewOpenAITextEncoder(cfg *config.Config) *OpenAITextEncoder {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAITextEncoder{
		cli:   openai.NewClientWithConfig(clientConfig),
		model: cfg.EmbeddingModel,
		dim:   cfg.EmbedDim,
	}
}

func (e *OpenAITextEncoder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.cli.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      []string{text},
		Dimensions: e.dim,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding API failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	vec := resp.Data[0].Embedding
	if len(vec) != e.dim {
		return nil, fmt.Errorf("embedding dimension %d, want %d", len(vec), e.dim)
	}
	// Endpoints generally return unit vectors already; enforce the
	// contract regardless.
	if err := NormalizeL2(vec); err != nil {
		return nil, err
	}
	return vec, nil
}
