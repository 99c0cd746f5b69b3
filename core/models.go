package core

import "image"

// SceneInterval is one visual scene produced by the scene segmenter.
// Intervals for a video are contiguous, non-overlapping and ordered by
// start time. Keyframe holds the representative frame for the interval
// and is not serialized; FramePath points at the saved JPEG once the
// ingestion pipeline has written it.
type SceneInterval struct {
	Start    float64     `json:"start_time"`
	End      float64     `json:"end_time"`
	Duration float64     `json:"duration"`
	Keyframe image.Image `json:"-"`
	// TimestampKey is the stable per-video keyframe key ("frame_000", ...)
	// used for stored metadata, citations and the saved JPEG name.
	TimestampKey string `json:"timestamp"`
	FramePath    string `json:"frame_path,omitempty"`
}

// Segment is a raw timed transcript fragment as returned by a transcriber.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SpeechSegment is a merged speech chunk of at least the configured
// minimum duration (the trailing remainder of a video may be shorter).
type SpeechSegment struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// TranscribeResult is the full transcriber output for one video. A video
// without an audio stream yields the zero value: empty text, no segments.
type TranscribeResult struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// VisualRecord is the stored form of one scene: a unit-norm fused
// (image+text) vector plus the metadata fields preserved for
// compatibility with existing collections.
type VisualRecord struct {
	ID            string    `json:"id"`
	Vector        []float32 `json:"-"`
	Timestamp     string    `json:"timestamp"`
	SceneStart    float64   `json:"scene_start"`
	SceneEnd      float64   `json:"scene_end"`
	SceneDuration float64   `json:"scene_duration"`
	Video         string    `json:"video"`
	Document      string    `json:"document"`
}

// AudioRecord is the stored form of one merged speech segment, embedded
// text-only.
type AudioRecord struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"-"`
	Start    float64   `json:"start"`
	End      float64   `json:"end"`
	Duration float64   `json:"duration"`
	Video    string    `json:"video"`
	Document string    `json:"document"`
}

type VisualHit struct {
	ID            string  `json:"id"`
	Score         float64 `json:"score"`
	Timestamp     string  `json:"timestamp"`
	SceneStart    float64 `json:"scene_start"`
	SceneEnd      float64 `json:"scene_end"`
	SceneDuration float64 `json:"scene_duration"`
	Video         string  `json:"video"`
	Document      string  `json:"document"`
}

type AudioHit struct {
	ID       string  `json:"id"`
	Score    float64 `json:"score"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Video    string  `json:"video"`
	Document string  `json:"document"`
}

// QueryResult is the ephemeral result of one retrieval run. Answer always
// ends with the Evidence block and the [Citations: ...] trailer.
type QueryResult struct {
	Question   string      `json:"question"`
	Answer     string      `json:"answer"`
	VisualHits []VisualHit `json:"visual_hits"`
	AudioHits  []AudioHit  `json:"audio_hits"`
	Evidence   []string    `json:"evidence"`
	Citations  []string    `json:"citations"`
}
