package storage

import (
	"context"
	"sort"
	"sync"

	"videorag/core"
	"videorag/embedding"
)

// MemoryStore keeps both collections in process memory. It is the
// fallback backend and the one the tests run against.
type MemoryStore struct {
	mu     sync.RWMutex
	visual map[string]core.VisualRecord
	audio  map[string]core.AudioRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		visual: map[string]core.VisualRecord{},
		audio:  map[string]core.AudioRecord{},
	}
}

func (s *MemoryStore) UpsertVisual(ctx context.Context, records []core.VisualRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.visual[rec.ID] = rec
	}
	return len(records), nil
}

func (s *MemoryStore) UpsertAudio(ctx context.Context, records []core.AudioRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.audio[rec.ID] = rec
	}
	return len(records), nil
}

func (s *MemoryStore) QueryVisual(ctx context.Context, vector []float32, topN int, videoID string) ([]core.VisualHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topN <= 0 {
		topN = 5
	}

	hits := make([]core.VisualHit, 0, len(s.visual))
	for _, rec := range s.visual {
		if videoID != "" && rec.Video != videoID {
			continue
		}
		hits = append(hits, core.VisualHit{
			ID:            rec.ID,
			Score:         embedding.Dot(vector, rec.Vector),
			Timestamp:     rec.Timestamp,
			SceneStart:    rec.SceneStart,
			SceneEnd:      rec.SceneEnd,
			SceneDuration: rec.SceneDuration,
			Video:         rec.Video,
			Document:      rec.Document,
		})
	}
	sortVisualHits(hits)
	if len(hits) > topN {
		hits = hits[:topN]
	}
	return hits, nil
}

func (s *MemoryStore) QueryAudio(ctx context.Context, vector []float32, topN int, videoID string) ([]core.AudioHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topN <= 0 {
		topN = 5
	}

	hits := make([]core.AudioHit, 0, len(s.audio))
	for _, rec := range s.audio {
		if videoID != "" && rec.Video != videoID {
			continue
		}
		hits = append(hits, core.AudioHit{
			ID:       rec.ID,
			Score:    embedding.Dot(vector, rec.Vector),
			Start:    rec.Start,
			End:      rec.End,
			Duration: rec.Duration,
			Video:    rec.Video,
			Document: rec.Document,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topN {
		hits = hits[:topN]
	}
	return hits, nil
}

func (s *MemoryStore) DeleteVideo(ctx context.Context, videoID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.visual {
		if rec.Video == videoID {
			delete(s.visual, id)
			removed++
		}
	}
	for id, rec := range s.audio {
		if rec.Video == videoID {
			delete(s.audio, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }

// sortVisualHits orders by score descending with id as a deterministic
// tie-break.
func sortVisualHits(hits []core.VisualHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}
