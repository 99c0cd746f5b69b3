package retrieval

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"videorag/config"
)

// Generator produces the final answer text from the retrieval prompt,
// optionally grounding it on keyframe images.
type Generator interface {
	Generate(ctx context.Context, prompt string, imagePaths []string) (string, error)
}

func NewGenerator(cfg *config.Config) Generator {
	if cfg.HasValidAPI() {
		return NewChatGenerator(cfg)
	}
	return &MockGenerator{}
}

// ChatGenerator calls the configured chat model. Keyframe images ride
// along as base64 data URLs; unreadable files are skipped silently, the
// text context alone still supports an answer.
type ChatGenerator struct {
	cli     *openai.Client
	model   string
	timeout time.Duration
}

func NewChatGenerator(cfg *config.Config) *ChatGenerator {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &ChatGenerator{
		cli:     openai.NewClientWithConfig(clientConfig),
		model:   cfg.ChatModel,
		timeout: cfg.RequestTimeout,
	}
}

func (g *ChatGenerator) Generate(ctx context.Context, prompt string, imagePaths []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: prompt},
	}
	for _, path := range imagePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
			},
		})
	}

	resp, err := g.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generation API failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generation API returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// MockGenerator answers from the context alone, for runs without API
// access and for tests.
type MockGenerator struct{}

func (g *MockGenerator) Generate(ctx context.Context, prompt string, imagePaths []string) (string, error) {
	return "Mock answer based on the retrieved context.", nil
}
