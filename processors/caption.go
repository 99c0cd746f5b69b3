package processors

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"videorag/config"
)

const captionPrompt = "Describe this video frame. Reply with exactly two lines:\n" +
	"SHORT: a phrase of at most ten words\n" +
	"LONG: two or three sentences covering the setting, subjects and action"

// Caption is the two-granularity description of one keyframe.
type Caption struct {
	Short string
	Long  string
}

// Captioner describes keyframes. Implementations return one caption per
// call; the pipeline iterates over scenes.
type Captioner interface {
	Caption(ctx context.Context, img image.Image) (Caption, error)
}

// CausalAnalyzer produces the cause-and-effect sentence stored alongside
// the captions in a visual unit's document.
type CausalAnalyzer interface {
	Analyze(ctx context.Context, userDescription, visuals string) (string, error)
}

func NewCaptioner(cfg *config.Config) Captioner {
	if cfg.HasValidAPI() {
		return NewVisionCaptioner(cfg)
	}
	return &MockCaptioner{}
}

func NewCausalAnalyzer(cfg *config.Config) CausalAnalyzer {
	if cfg.HasValidAPI() {
		return NewChatCausalAnalyzer(cfg)
	}
	return &MockCausalAnalyzer{}
}

// VisionCaptioner sends the keyframe as a base64 data URL to a vision
// chat model and parses the SHORT:/LONG: reply.
type VisionCaptioner struct {
	cli   *openai.Client
	model string
}

func NewVisionCaptioner(cfg *config.Config) *VisionCaptioner {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &VisionCaptioner{
		cli:   openai.NewClientWithConfig(clientConfig),
		model: cfg.CaptionModel,
	}
}

func (c *VisionCaptioner) Caption(ctx context.Context, img image.Image) (Caption, error) {
	dataURL, err := imageDataURL(img)
	if err != nil {
		return Caption{}, err
	}

	resp, err := c.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: captionPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
		MaxTokens: 300,
	})
	if err != nil {
		return Caption{}, fmt.Errorf("caption API failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Caption{}, fmt.Errorf("caption API returned no choices")
	}
	return parseCaption(resp.Choices[0].Message.Content), nil
}

// parseCaption extracts the SHORT:/LONG: lines. A reply that drifts from
// the format still yields a usable caption: the whole text becomes the
// long form and its first 50 characters the short form.
func parseCaption(raw string) Caption {
	raw = strings.TrimSpace(raw)
	var parsed Caption
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "SHORT:"):
			parsed.Short = strings.TrimSpace(line[len("SHORT:"):])
		case strings.HasPrefix(upper, "LONG:"):
			parsed.Long = strings.TrimSpace(line[len("LONG:"):])
		}
	}
	if parsed.Short == "" && parsed.Long == "" {
		parsed.Long = raw
		if len(raw) > 50 {
			parsed.Short = raw[:50]
		} else {
			parsed.Short = raw
		}
	}
	if parsed.Short == "" {
		parsed.Short = parsed.Long
		if len(parsed.Short) > 50 {
			parsed.Short = parsed.Short[:50]
		}
	}
	if parsed.Long == "" {
		parsed.Long = parsed.Short
	}
	return parsed
}

func imageDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("encode keyframe: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ChatCausalAnalyzer asks the chat model for a cause-and-effect reading
// of one keyframe given the user's description of the video.
type ChatCausalAnalyzer struct {
	cli   *openai.Client
	model string
}

func NewChatCausalAnalyzer(cfg *config.Config) *ChatCausalAnalyzer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &ChatCausalAnalyzer{
		cli:   openai.NewClientWithConfig(clientConfig),
		model: cfg.ChatModel,
	}
}

func (a *ChatCausalAnalyzer) Analyze(ctx context.Context, userDescription, visuals string) (string, error) {
	prompt := fmt.Sprintf("Context: %s\nVisuals: %s\nIdentify the cause and effect (CR0).", userDescription, visuals)
	resp, err := a.cli.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: 200,
	})
	if err != nil {
		return "", fmt.Errorf("causal API failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("causal API returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// MockCaptioner and MockCausalAnalyzer keep ingestion runnable without
// API access.
type MockCaptioner struct{}

func (c *MockCaptioner) Caption(ctx context.Context, img image.Image) (Caption, error) {
	b := img.Bounds()
	return Caption{
		Short: "Mock keyframe",
		Long:  fmt.Sprintf("Mock caption for a %dx%d keyframe.", b.Dx(), b.Dy()),
	}, nil
}

type MockCausalAnalyzer struct{}

func (a *MockCausalAnalyzer) Analyze(ctx context.Context, userDescription, visuals string) (string, error) {
	return "Mock causal analysis.", nil
}
