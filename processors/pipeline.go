// Package processors implements the ingestion side of the pipeline:
// scene segmentation, speech merging, transcription, captioning and the
// orchestration that turns one video file into stored visual and audio
// units.
package processors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"videorag/config"
	"videorag/core"
	"videorag/embedding"
	"videorag/media"
	"videorag/storage"
)

// IngestResult summarizes one completed ingestion run. Warnings carry
// per-unit failures that were skipped without aborting the run.
type IngestResult struct {
	JobID       string                `json:"job_id"`
	VideoID     string                `json:"video_id"`
	VideoPath   string                `json:"video_path"`
	VisualUnits int                   `json:"visual_units"`
	AudioUnits  int                   `json:"audio_units"`
	Transcript  core.TranscribeResult `json:"transcript"`
	Warnings    []string              `json:"warnings,omitempty"`
}

// BatchResult reports one video of a batch run; failed videos carry the
// error text instead of a result.
type BatchResult struct {
	VideoPath string        `json:"video_path"`
	Result    *IngestResult `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Pipeline wires the ingestion collaborators together. One Pipeline is
// reusable across videos; per-run state lives in the job directory.
type Pipeline struct {
	cfg         *config.Config
	log         *zap.Logger
	store       storage.VectorStore
	text        embedding.TextEncoder
	image       embedding.ImageEncoder
	transcriber Transcriber
	captioner   Captioner
	causal      CausalAnalyzer
	segmenter   *SceneSegmenter
}

func NewPipeline(cfg *config.Config, log *zap.Logger, store storage.VectorStore, text embedding.TextEncoder, image embedding.ImageEncoder) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		log:         log,
		store:       store,
		text:        text,
		image:       image,
		transcriber: NewTranscriber(cfg),
		captioner:   NewCaptioner(cfg),
		causal:      NewCausalAnalyzer(cfg),
		segmenter:   NewSceneSegmenter(cfg.SceneThreshold, cfg.MinSceneGap),
	}
}

// IngestVideo runs the full pipeline for one video file: probe, extract
// and transcribe audio, merge speech segments, segment scenes, caption
// and analyze keyframes, embed everything and upsert into the store.
// Re-running with the same file is idempotent because unit ids are
// derived from the video id.
func (p *Pipeline) IngestVideo(ctx context.Context, videoPath string) (*IngestResult, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("video file: %w", err)
	}

	jobID := core.NewJobID()
	videoID := core.VideoIDFromPath(videoPath)
	jobDir := filepath.Join(core.DataRoot(), jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return nil, fmt.Errorf("create job dir: %w", err)
	}

	info, err := media.Probe(videoPath)
	if err != nil {
		return nil, err
	}
	p.log.Info("ingestion started",
		zap.String("job_id", jobID),
		zap.String("video", videoID),
		zap.Float64("duration", info.Duration),
		zap.Float64("fps", info.FPS),
		zap.Bool("has_audio", info.HasAudio))

	result := &IngestResult{JobID: jobID, VideoID: videoID, VideoPath: videoPath}

	if info.HasAudio {
		if err := p.ingestAudio(ctx, videoPath, videoID, jobDir, result); err != nil {
			return nil, err
		}
	}
	if err := p.ingestVisual(ctx, videoPath, videoID, jobDir, info.FPS, result); err != nil {
		return nil, err
	}

	p.log.Info("ingestion finished",
		zap.String("job_id", jobID),
		zap.String("video", videoID),
		zap.Int("visual_units", result.VisualUnits),
		zap.Int("audio_units", result.AudioUnits),
		zap.Int("warnings", len(result.Warnings)))
	return result, nil
}

func (p *Pipeline) ingestAudio(ctx context.Context, videoPath, videoID, jobDir string, result *IngestResult) error {
	audioPath := filepath.Join(jobDir, "audio.wav")
	if err := media.ExtractAudio(videoPath, audioPath); err != nil {
		return err
	}

	transcript, err := p.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return fmt.Errorf("transcribe %s: %w", videoID, err)
	}
	result.Transcript = transcript

	segments := MergeSpeechSegments(transcript.Segments, p.cfg.MinSegmentDuration)
	if len(segments) == 0 {
		return nil
	}

	records := make([]core.AudioRecord, 0, len(segments))
	for i, seg := range segments {
		if seg.Text == "" {
			continue
		}
		vec, err := p.text.EncodeText(ctx, seg.Text)
		if err != nil {
			p.warn(result, fmt.Sprintf("audio segment %d: %v", i, err))
			continue
		}
		records = append(records, core.AudioRecord{
			ID:       fmt.Sprintf("audio_%s_%06d", videoID, i),
			Vector:   vec,
			Start:    seg.Start,
			End:      seg.End,
			Duration: seg.Duration,
			Video:    videoID,
			Document: seg.Text,
		})
	}
	if len(records) == 0 && len(segments) > 0 {
		return fmt.Errorf("all %d audio segments of %s failed to embed", len(segments), videoID)
	}

	n, err := p.store.UpsertAudio(ctx, records)
	if err != nil {
		return fmt.Errorf("store audio units for %s: %w", videoID, err)
	}
	result.AudioUnits = n
	return nil
}

func (p *Pipeline) ingestVisual(ctx context.Context, videoPath, videoID, jobDir string, fps float64, result *IngestResult) error {
	if p.image == nil {
		return fmt.Errorf("visual ingestion requires an image encoder (encoder=clip)")
	}

	framesDir := filepath.Join(jobDir, "frames")
	if err := media.ExtractFrames(videoPath, framesDir); err != nil {
		return err
	}
	src, err := media.NewDirFrameSource(framesDir, fps)
	if err != nil {
		return err
	}
	scenes, err := p.segmenter.Segment(src)
	if err != nil {
		return fmt.Errorf("segment scenes of %s: %w", videoID, err)
	}
	if len(scenes) == 0 {
		return nil
	}
	p.log.Info("scenes segmented", zap.String("video", videoID), zap.Int("scenes", len(scenes)))

	records := make([]core.VisualRecord, 0, len(scenes))
	for i := range scenes {
		scene := &scenes[i]
		framePath := filepath.Join(jobDir, "keyframes", scene.TimestampKey+".jpg")
		if err := media.SaveJPEG(scene.Keyframe, framePath); err != nil {
			p.warn(result, fmt.Sprintf("scene %s: save keyframe: %v", scene.TimestampKey, err))
			continue
		}
		scene.FramePath = framePath

		rec, err := p.buildVisualRecord(ctx, videoID, scene)
		if err != nil {
			p.warn(result, fmt.Sprintf("scene %s: %v", scene.TimestampKey, err))
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return fmt.Errorf("all %d scenes of %s failed", len(scenes), videoID)
	}

	n, err := p.store.UpsertVisual(ctx, records)
	if err != nil {
		return fmt.Errorf("store visual units for %s: %w", videoID, err)
	}
	result.VisualUnits = n
	return nil
}

// buildVisualRecord captions, analyzes and embeds one scene keyframe.
func (p *Pipeline) buildVisualRecord(ctx context.Context, videoID string, scene *core.SceneInterval) (core.VisualRecord, error) {
	caption, err := p.captioner.Caption(ctx, scene.Keyframe)
	if err != nil {
		return core.VisualRecord{}, err
	}
	causal, err := p.causal.Analyze(ctx, p.cfg.UserDescription, caption.Long)
	if err != nil {
		return core.VisualRecord{}, err
	}
	document := fmt.Sprintf("SHORT: %s | LONG: %s | CAUSAL: %s", caption.Short, caption.Long, causal)

	textVec, err := p.text.EncodeText(ctx, document)
	if err != nil {
		return core.VisualRecord{}, fmt.Errorf("embed document: %w", err)
	}
	imageVec, err := p.image.EncodeImage(ctx, scene.Keyframe)
	if err != nil {
		return core.VisualRecord{}, fmt.Errorf("embed keyframe: %w", err)
	}
	fused, err := embedding.FuseVisual(textVec, imageVec)
	if err != nil {
		return core.VisualRecord{}, err
	}

	return core.VisualRecord{
		ID:            fmt.Sprintf("frame_%s_%s", videoID, scene.TimestampKey),
		Vector:        fused,
		Timestamp:     scene.TimestampKey,
		SceneStart:    scene.Start,
		SceneEnd:      scene.End,
		SceneDuration: scene.Duration,
		Video:         videoID,
		Document:      document,
	}, nil
}

// IngestBatch processes videos sequentially; a failed video is logged
// and reported without stopping the rest of the batch.
func (p *Pipeline) IngestBatch(ctx context.Context, videoPaths []string) []BatchResult {
	results := make([]BatchResult, 0, len(videoPaths))
	for _, path := range videoPaths {
		res, err := p.IngestVideo(ctx, path)
		if err != nil {
			p.log.Error("ingestion failed", zap.String("video", path), zap.Error(err))
			results = append(results, BatchResult{VideoPath: path, Error: err.Error()})
			continue
		}
		results = append(results, BatchResult{VideoPath: path, Result: res})
	}
	return results
}

func (p *Pipeline) warn(result *IngestResult, msg string) {
	p.log.Warn(msg, zap.String("video", result.VideoID))
	result.Warnings = append(result.Warnings, msg)
}
