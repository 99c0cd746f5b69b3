package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"videorag/config"
	"videorag/core"
)

// MilvusStore keeps the visual and audio collections in Milvus (or Zilliz
// Cloud). Units use their string id as primary key, so Upsert replaces
// records in place.
type MilvusStore struct {
	mc         client.Client
	visualColl string
	audioColl  string
	dim        int
}

func NewMilvusStore(ctx context.Context, cfg *config.Config) (*MilvusStore, error) {
	mc, err := client.NewClient(ctx, client.Config{
		Address:  cfg.MilvusAddr,
		Username: cfg.MilvusUsername,
		Password: cfg.MilvusPassword,
		APIKey:   cfg.MilvusAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}

	s := &MilvusStore{
		mc:         mc,
		visualColl: cfg.VisualCollection,
		audioColl:  cfg.AudioCollection,
		dim:        cfg.EmbedDim,
	}
	if err := s.ensureCollections(ctx); err != nil {
		_ = mc.Close()
		return nil, err
	}
	return s, nil
}

func (s *MilvusStore) ensureCollections(ctx context.Context) error {
	if err := s.ensureCollection(ctx, s.visualColl, visualSchema(s.visualColl, s.dim)); err != nil {
		return err
	}
	return s.ensureCollection(ctx, s.audioColl, audioSchema(s.audioColl, s.dim))
}

func visualSchema(name string, dim int) *entity.Schema {
	schema := entity.NewSchema().WithName(name)
	schema.WithField(entity.NewField().WithName("id").WithIsPrimaryKey(true).WithDataType(entity.FieldTypeVarChar).WithMaxLength(256))
	schema.WithField(entity.NewField().WithName("video").WithDataType(entity.FieldTypeVarChar).WithMaxLength(256))
	schema.WithField(entity.NewField().WithName("timestamp").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
	schema.WithField(entity.NewField().WithName("scene_start").WithDataType(entity.FieldTypeDouble))
	schema.WithField(entity.NewField().WithName("scene_end").WithDataType(entity.FieldTypeDouble))
	schema.WithField(entity.NewField().WithName("scene_duration").WithDataType(entity.FieldTypeDouble))
	schema.WithField(entity.NewField().WithName("document").WithDataType(entity.FieldTypeVarChar).WithMaxLength(8192))
	schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dim)))
	return schema
}

func audioSchema(name string, dim int) *entity.Schema {
	schema := entity.NewSchema().WithName(name)
	schema.WithField(entity.NewField().WithName("id").WithIsPrimaryKey(true).WithDataType(entity.FieldTypeVarChar).WithMaxLength(256))
	schema.WithField(entity.NewField().WithName("video").WithDataType(entity.FieldTypeVarChar).WithMaxLength(256))
	schema.WithField(entity.NewField().WithName("start").WithDataType(entity.FieldTypeDouble))
	schema.WithField(entity.NewField().WithName("end").WithDataType(entity.FieldTypeDouble))
	schema.WithField(entity.NewField().WithName("duration").WithDataType(entity.FieldTypeDouble))
	schema.WithField(entity.NewField().WithName("document").WithDataType(entity.FieldTypeVarChar).WithMaxLength(8192))
	schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dim)))
	return schema
}

func (s *MilvusStore) ensureCollection(ctx context.Context, name string, schema *entity.Schema) error {
	has, err := s.mc.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if !has {
		if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
		idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
		if err != nil {
			return fmt.Errorf("new hnsw index: %w", err)
		}
		if err := s.mc.CreateIndex(ctx, name, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
			return fmt.Errorf("create index on %s: %w", name, err)
		}
	}
	if err := s.mc.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("load collection %s: %w", name, err)
	}
	return nil
}

func (s *MilvusStore) UpsertVisual(ctx context.Context, records []core.VisualRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(records))
	videos := make([]string, 0, len(records))
	timestamps := make([]string, 0, len(records))
	starts := make([]float64, 0, len(records))
	ends := make([]float64, 0, len(records))
	durations := make([]float64, 0, len(records))
	documents := make([]string, 0, len(records))
	vectors := make([][]float32, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
		videos = append(videos, rec.Video)
		timestamps = append(timestamps, rec.Timestamp)
		starts = append(starts, rec.SceneStart)
		ends = append(ends, rec.SceneEnd)
		durations = append(durations, rec.SceneDuration)
		documents = append(documents, rec.Document)
		vectors = append(vectors, rec.Vector)
	}

	_, err := s.mc.Upsert(ctx, s.visualColl, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("video", videos),
		entity.NewColumnVarChar("timestamp", timestamps),
		entity.NewColumnDouble("scene_start", starts),
		entity.NewColumnDouble("scene_end", ends),
		entity.NewColumnDouble("scene_duration", durations),
		entity.NewColumnVarChar("document", documents),
		entity.NewColumnFloatVector("vector", s.dim, vectors),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert visual units: %w", err)
	}
	return len(records), nil
}

func (s *MilvusStore) UpsertAudio(ctx context.Context, records []core.AudioRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(records))
	videos := make([]string, 0, len(records))
	starts := make([]float64, 0, len(records))
	ends := make([]float64, 0, len(records))
	durations := make([]float64, 0, len(records))
	documents := make([]string, 0, len(records))
	vectors := make([][]float32, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
		videos = append(videos, rec.Video)
		starts = append(starts, rec.Start)
		ends = append(ends, rec.End)
		durations = append(durations, rec.Duration)
		documents = append(documents, rec.Document)
		vectors = append(vectors, rec.Vector)
	}

	_, err := s.mc.Upsert(ctx, s.audioColl, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("video", videos),
		entity.NewColumnDouble("start", starts),
		entity.NewColumnDouble("end", ends),
		entity.NewColumnDouble("duration", durations),
		entity.NewColumnVarChar("document", documents),
		entity.NewColumnFloatVector("vector", s.dim, vectors),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert audio units: %w", err)
	}
	return len(records), nil
}

func videoFilter(videoID string) string {
	if videoID == "" {
		return ""
	}
	return fmt.Sprintf("video == \"%s\"", strings.ReplaceAll(videoID, "\"", "\\\""))
}

func (s *MilvusStore) QueryVisual(ctx context.Context, vector []float32, topN int, videoID string) ([]core.VisualHit, error) {
	if topN <= 0 {
		topN = 5
	}
	sp, _ := entity.NewIndexHNSWSearchParam(74)
	res, err := s.mc.Search(ctx, s.visualColl, []string{}, videoFilter(videoID),
		[]string{"id", "video", "timestamp", "scene_start", "scene_end", "scene_duration", "document"},
		[]entity.Vector{entity.FloatVector(vector)}, "vector", entity.COSINE, topN, sp)
	if err != nil {
		return nil, fmt.Errorf("search visual units: %w", err)
	}

	var hits []core.VisualHit
	for _, r := range res {
		cols := columnsByName(r.Fields)
		for i := 0; i < r.ResultCount; i++ {
			h := core.VisualHit{Score: float64(r.Scores[i])}
			h.ID = varcharAt(cols, "id", i)
			h.Video = varcharAt(cols, "video", i)
			h.Timestamp = varcharAt(cols, "timestamp", i)
			h.SceneStart = doubleAt(cols, "scene_start", i)
			h.SceneEnd = doubleAt(cols, "scene_end", i)
			h.SceneDuration = doubleAt(cols, "scene_duration", i)
			h.Document = varcharAt(cols, "document", i)
			hits = append(hits, h)
		}
	}
	return hits, nil
}

func (s *MilvusStore) QueryAudio(ctx context.Context, vector []float32, topN int, videoID string) ([]core.AudioHit, error) {
	if topN <= 0 {
		topN = 5
	}
	sp, _ := entity.NewIndexHNSWSearchParam(74)
	res, err := s.mc.Search(ctx, s.audioColl, []string{}, videoFilter(videoID),
		[]string{"id", "video", "start", "end", "duration", "document"},
		[]entity.Vector{entity.FloatVector(vector)}, "vector", entity.COSINE, topN, sp)
	if err != nil {
		return nil, fmt.Errorf("search audio units: %w", err)
	}

	var hits []core.AudioHit
	for _, r := range res {
		cols := columnsByName(r.Fields)
		for i := 0; i < r.ResultCount; i++ {
			h := core.AudioHit{Score: float64(r.Scores[i])}
			h.ID = varcharAt(cols, "id", i)
			h.Video = varcharAt(cols, "video", i)
			h.Start = doubleAt(cols, "start", i)
			h.End = doubleAt(cols, "end", i)
			h.Duration = doubleAt(cols, "duration", i)
			h.Document = varcharAt(cols, "document", i)
			hits = append(hits, h)
		}
	}
	return hits, nil
}

func (s *MilvusStore) DeleteVideo(ctx context.Context, videoID string) (int, error) {
	expr := videoFilter(videoID)
	removed := 0
	for _, coll := range []string{s.visualColl, s.audioColl} {
		cols, err := s.mc.Query(ctx, coll, []string{}, expr, []string{"id"})
		if err != nil {
			return removed, fmt.Errorf("count units in %s for %s: %w", coll, videoID, err)
		}
		for _, c := range cols {
			if c.Name() == "id" {
				removed += c.Len()
			}
		}
		if err := s.mc.Delete(ctx, coll, "", expr); err != nil {
			return removed, fmt.Errorf("delete units in %s for %s: %w", coll, videoID, err)
		}
	}
	return removed, nil
}

func (s *MilvusStore) Close(ctx context.Context) error {
	return s.mc.Close()
}

func columnsByName(fields []entity.Column) map[string]entity.Column {
	cols := make(map[string]entity.Column, len(fields))
	for _, c := range fields {
		cols[c.Name()] = c
	}
	return cols
}

func varcharAt(cols map[string]entity.Column, name string, i int) string {
	if c, ok := cols[name].(*entity.ColumnVarChar); ok {
		data := c.Data()
		if i < len(data) {
			return data[i]
		}
	}
	return ""
}

func doubleAt(cols map[string]entity.Column, name string, i int) float64 {
	if c, ok := cols[name].(*entity.ColumnDouble); ok {
		data := c.Data()
		if i < len(data) {
			return data[i]
		}
	}
	return 0
}
