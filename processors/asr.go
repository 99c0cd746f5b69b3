package processors

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"videorag/config"
	"videorag/core"
	"videorag/media"
)

// Transcriber turns an extracted audio file into timed transcript
// fragments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (core.TranscribeResult, error)
}

// NewTranscriber picks the Whisper-backed transcriber when API access is
// configured and falls back to the deterministic mock otherwise.
func NewTranscriber(cfg *config.Config) Transcriber {
	if cfg.HasValidAPI() {
		return NewWhisperTranscriber(cfg)
	}
	return &MockTranscriber{}
}

// WhisperTranscriber calls an OpenAI-compatible audio transcription
// endpoint and keeps the segment timings from the verbose response.
type WhisperTranscriber struct {
	cli   *openai.Client
	model string
}

func NewWhisperTranscriber(cfg *config.Config) *WhisperTranscriber {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &WhisperTranscriber{
		cli:   openai.NewClientWithConfig(clientConfig),
		model: cfg.WhisperModel,
	}
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (core.TranscribeResult, error) {
	resp, err := t.cli.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return core.TranscribeResult{}, fmt.Errorf("transcription API failed: %w", err)
	}

	result := core.TranscribeResult{Text: resp.Text}
	for _, seg := range resp.Segments {
		result.Segments = append(result.Segments, core.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}
	return result, nil
}

// MockTranscriber produces placeholder fragments in 15 second chunks so
// the rest of the pipeline can run without API access.
type MockTranscriber struct{}

func (t *MockTranscriber) Transcribe(ctx context.Context, audioPath string) (core.TranscribeResult, error) {
	duration, err := media.ProbeDuration(audioPath)
	if err != nil || duration <= 0 {
		duration = 30
	}

	const chunk = 15.0
	var result core.TranscribeResult
	for i, start := 0, 0.0; start < duration; i, start = i+1, start+chunk {
		end := start + chunk
		if end > duration {
			end = duration
		}
		result.Segments = append(result.Segments, core.Segment{
			Start: start,
			End:   end,
			Text:  fmt.Sprintf("Mock transcript segment %d covering %.0fs to %.0fs.", i+1, start, end),
		})
	}
	for i, seg := range result.Segments {
		if i > 0 {
			result.Text += " "
		}
		result.Text += seg.Text
	}
	return result, nil
}
