// Package retrieval answers questions over ingested videos: embed the
// question, search both collections, rerank frame hits by document
// similarity and generate a cited answer.
package retrieval

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"videorag/config"
	"videorag/core"
	"videorag/embedding"
	"videorag/storage"
)

const (
	// rerankDocCap limits how much of a stored document is re-embedded
	// during reranking.
	rerankDocCap = 800
	// promptTokenBudget bounds the generation prompt; lowest-ranked
	// context lines are dropped first when it is exceeded.
	promptTokenBudget = 6000

	answerInstructions = "You are a video RAG assistant. Answer the question using the provided context and image. " +
		"If the answer is not in the context, say you don't know. " +
		"Do not repeat yourself. Do not use LaTeX or boxed answers. " +
		"Be concise and direct.\n\n"

	// noMatchAnswer is returned when neither collection has a hit. It
	// carries the same trailing sections as a real answer so downstream
	// section splitting never has a special case.
	noMatchAnswer = "No matches.\n\nEvidence: (no evidence)\n\n[Citations: ]"
)

// QueryRequest is one retrieval call. VideoID restricts the search to a
// single video when non-empty. FrameDir, when set together with the
// attach-images setting, is where keyframe JPEGs are loaded from for the
// generation call.
type QueryRequest struct {
	Question string `json:"question"`
	VideoID  string `json:"video_id,omitempty"`
	FrameDir string `json:"frame_dir,omitempty"`
}

// Engine runs retrieval. It is safe for concurrent use; the rerank
// cache is shared across queries.
type Engine struct {
	cfg     *config.Config
	log     *zap.Logger
	store   storage.VectorStore
	encoder embedding.TextEncoder
	gen     Generator

	// rerankCache memoizes document re-embeddings keyed by capped text,
	// so repeated questions over the same collection stay cheap.
	rerankCache *gocache.Cache
	tokenizer   *tiktoken.Tiktoken
}

func NewEngine(cfg *config.Config, log *zap.Logger, store storage.VectorStore, encoder embedding.TextEncoder, gen Generator) *Engine {
	// Token counting is best effort: without the encoding files the
	// prompt simply goes out unbudgeted.
	tke, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Warn("token encoding unavailable, prompt budgeting disabled", zap.Error(err))
		tke = nil
	}
	return &Engine{
		cfg:         cfg,
		log:         log,
		store:       store,
		encoder:     encoder,
		gen:         gen,
		rerankCache: gocache.New(10*time.Minute, 15*time.Minute),
		tokenizer:   tke,
	}
}

// Query answers one question. The returned Answer always ends with the
// Evidence block and the [Citations: ...] trailer.
func (e *Engine) Query(ctx context.Context, req QueryRequest) (*core.QueryResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("empty question")
	}

	queryVec, err := e.encoder.EncodeText(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	visualHits, err := e.store.QueryVisual(ctx, queryVec, e.cfg.TopN, req.VideoID)
	if err != nil {
		return nil, err
	}
	audioHits, err := e.store.QueryAudio(ctx, queryVec, e.cfg.TopN, req.VideoID)
	if err != nil {
		return nil, err
	}

	result := &core.QueryResult{Question: question}
	if len(visualHits) == 0 && len(audioHits) == 0 {
		result.Answer = noMatchAnswer
		return result, nil
	}

	visualHits = e.rerankVisual(ctx, queryVec, visualHits)
	if len(visualHits) > e.cfg.TopK {
		visualHits = visualHits[:e.cfg.TopK]
	}
	if len(audioHits) > e.cfg.TopK {
		audioHits = audioHits[:e.cfg.TopK]
	}
	result.VisualHits = visualHits
	result.AudioHits = audioHits

	frameLines := make([]string, 0, len(visualHits))
	for i, h := range visualHits {
		frameLines = append(frameLines, fmt.Sprintf("[F%d] id=%s ts=%s (%.2f-%.2fs) | %s",
			i+1, h.ID, h.Timestamp, h.SceneStart, h.SceneEnd, h.Document))
	}
	audioLines := make([]string, 0, len(audioHits))
	for i, h := range audioHits {
		audioLines = append(audioLines, fmt.Sprintf("[A%d] id=%s %s (t=%.2f-%.2fs, dur=%.2fs)",
			i+1, h.ID, h.Document, h.Start, h.End, h.Duration))
	}

	var imagePaths []string
	if e.cfg.AttachImages && req.FrameDir != "" {
		for _, h := range visualHits {
			if h.Timestamp == "" {
				continue
			}
			imagePaths = append(imagePaths, filepath.Join(req.FrameDir, h.Timestamp+".jpg"))
		}
	}

	for _, h := range visualHits {
		if h.Timestamp == "" {
			continue
		}
		result.Evidence = append(result.Evidence, strings.TrimSpace(
			fmt.Sprintf("- frame %s %.2f-%.2fs", h.Timestamp, h.SceneStart, h.SceneEnd)))
		result.Citations = append(result.Citations, h.Timestamp)
	}
	for _, h := range audioHits {
		result.Evidence = append(result.Evidence, fmt.Sprintf("- audio %s %.2f-%.2fs", h.ID, h.Start, h.End))
		result.Citations = append(result.Citations, h.ID)
	}

	prompt := e.buildPrompt(question, frameLines, audioLines)
	generated, err := e.gen.Generate(ctx, prompt, imagePaths)
	if err != nil {
		return nil, err
	}

	evidenceText := "Evidence: (no frames found)"
	if len(result.Evidence) > 0 {
		evidenceText = "Evidence:\n" + strings.Join(result.Evidence, "\n")
	}
	result.Answer = fmt.Sprintf("%s\n\n%s\n\n[Citations: %s]",
		generated, evidenceText, strings.Join(result.Citations, ", "))
	return result, nil
}

// rerankVisual reorders frame hits by the similarity between the
// question and each hit's re-embedded document text. Hits whose document
// fails to embed keep their vector-search score. Audio hits are not
// reranked; their stored text is what was searched in the first place.
func (e *Engine) rerankVisual(ctx context.Context, queryVec []float32, hits []core.VisualHit) []core.VisualHit {
	reranked := make([]core.VisualHit, len(hits))
	copy(reranked, hits)
	for i := range reranked {
		doc := capText(reranked[i].Document, rerankDocCap)
		if doc == "" {
			continue
		}
		docVec, err := e.docEmbedding(ctx, doc)
		if err != nil {
			e.log.Warn("rerank embedding failed", zap.String("id", reranked[i].ID), zap.Error(err))
			continue
		}
		reranked[i].Score = embedding.Dot(queryVec, docVec)
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})
	return reranked
}

func (e *Engine) docEmbedding(ctx context.Context, doc string) ([]float32, error) {
	if cached, ok := e.rerankCache.Get(doc); ok {
		return cached.([]float32), nil
	}
	vec, err := e.encoder.EncodeText(ctx, doc)
	if err != nil {
		return nil, err
	}
	e.rerankCache.Set(doc, vec, gocache.DefaultExpiration)
	return vec, nil
}

// buildPrompt assembles the generation prompt and trims it to the token
// budget by dropping the lowest-ranked context lines first.
func (e *Engine) buildPrompt(question string, frameLines, audioLines []string) string {
	assemble := func(frames, audio []string) string {
		return answerInstructions +
			"Question: " + question + "\n" +
			"Frame Context:\n" + strings.Join(frames, "\n") + "\n" +
			"Audio Context:\n" + strings.Join(audio, "\n") + "\n"
	}

	prompt := assemble(frameLines, audioLines)
	if e.tokenizer == nil {
		return prompt
	}
	for len(e.tokenizer.Encode(prompt, nil, nil)) > promptTokenBudget {
		switch {
		case len(audioLines) > 1:
			audioLines = audioLines[:len(audioLines)-1]
		case len(frameLines) > 1:
			frameLines = frameLines[:len(frameLines)-1]
		default:
			return prompt
		}
		prompt = assemble(frameLines, audioLines)
	}
	return prompt
}

func capText(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) > limit {
		return text[:limit]
	}
	return text
}
