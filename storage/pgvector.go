package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"videorag/config"
	"videorag/core"
)

// PgVectorStore persists both collections in Postgres with the pgvector
// extension. Records are keyed by their unit id; ON CONFLICT replaces the
// whole row, which makes re-ingestion a no-op for unchanged units.
type PgVectorStore struct {
	conn *pgx.Conn
	dim  int
}

func NewPgVectorStore(ctx context.Context, cfg *config.Config) (*PgVectorStore, error) {
	conn, err := pgx.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PgVectorStore{conn: conn, dim: cfg.EmbedDim}
	if err := s.ensureTables(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) ensureTables(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	visualQuery := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS visual_units (
			id VARCHAR(255) PRIMARY KEY,
			video VARCHAR(255) NOT NULL,
			ts VARCHAR(64) NOT NULL,
			scene_start FLOAT NOT NULL,
			scene_end FLOAT NOT NULL,
			scene_duration FLOAT NOT NULL,
			document TEXT NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`, s.dim)
	if _, err := s.conn.Exec(ctx, visualQuery); err != nil {
		return fmt.Errorf("create visual_units table: %w", err)
	}

	audioQuery := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS audio_units (
			id VARCHAR(255) PRIMARY KEY,
			video VARCHAR(255) NOT NULL,
			start_time FLOAT NOT NULL,
			end_time FLOAT NOT NULL,
			duration FLOAT NOT NULL,
			document TEXT NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`, s.dim)
	if _, err := s.conn.Exec(ctx, audioQuery); err != nil {
		return fmt.Errorf("create audio_units table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_visual_units_video ON visual_units(video);",
		"CREATE INDEX IF NOT EXISTS idx_audio_units_video ON audio_units(video);",
	}
	for _, q := range indexes {
		if _, err := s.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func (s *PgVectorStore) UpsertVisual(ctx context.Context, records []core.VisualRecord) (int, error) {
	count := 0
	for _, rec := range records {
		_, err := s.conn.Exec(ctx, `
			INSERT INTO visual_units (id, video, ts, scene_start, scene_end, scene_duration, document, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				video = EXCLUDED.video,
				ts = EXCLUDED.ts,
				scene_start = EXCLUDED.scene_start,
				scene_end = EXCLUDED.scene_end,
				scene_duration = EXCLUDED.scene_duration,
				document = EXCLUDED.document,
				embedding = EXCLUDED.embedding
		`, rec.ID, rec.Video, rec.Timestamp, rec.SceneStart, rec.SceneEnd, rec.SceneDuration, rec.Document, pgvector.NewVector(rec.Vector))
		if err != nil {
			return count, fmt.Errorf("upsert visual unit %s: %w", rec.ID, err)
		}
		count++
	}
	return count, nil
}

func (s *PgVectorStore) UpsertAudio(ctx context.Context, records []core.AudioRecord) (int, error) {
	count := 0
	for _, rec := range records {
		_, err := s.conn.Exec(ctx, `
			INSERT INTO audio_units (id, video, start_time, end_time, duration, document, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				video = EXCLUDED.video,
				start_time = EXCLUDED.start_time,
				end_time = EXCLUDED.end_time,
				duration = EXCLUDED.duration,
				document = EXCLUDED.document,
				embedding = EXCLUDED.embedding
		`, rec.ID, rec.Video, rec.Start, rec.End, rec.Duration, rec.Document, pgvector.NewVector(rec.Vector))
		if err != nil {
			return count, fmt.Errorf("upsert audio unit %s: %w", rec.ID, err)
		}
		count++
	}
	return count, nil
}

func (s *PgVectorStore) QueryVisual(ctx context.Context, vector []float32, topN int, videoID string) ([]core.VisualHit, error) {
	if topN <= 0 {
		topN = 5
	}
	rows, err := s.conn.Query(ctx, `
		SELECT id, video, ts, scene_start, scene_end, scene_duration, document,
		       1 - (embedding <=> $1) AS similarity
		FROM visual_units
		WHERE ($2 = '' OR video = $2)
		ORDER BY embedding <=> $1
		LIMIT $3
	`, pgvector.NewVector(vector), videoID, topN)
	if err != nil {
		return nil, fmt.Errorf("query visual units: %w", err)
	}
	defer rows.Close()

	var hits []core.VisualHit
	for rows.Next() {
		var h core.VisualHit
		if err := rows.Scan(&h.ID, &h.Video, &h.Timestamp, &h.SceneStart, &h.SceneEnd, &h.SceneDuration, &h.Document, &h.Score); err != nil {
			return nil, fmt.Errorf("scan visual hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PgVectorStore) QueryAudio(ctx context.Context, vector []float32, topN int, videoID string) ([]core.AudioHit, error) {
	if topN <= 0 {
		topN = 5
	}
	rows, err := s.conn.Query(ctx, `
		SELECT id, video, start_time, end_time, duration, document,
		       1 - (embedding <=> $1) AS similarity
		FROM audio_units
		WHERE ($2 = '' OR video = $2)
		ORDER BY embedding <=> $1
		LIMIT $3
	`, pgvector.NewVector(vector), videoID, topN)
	if err != nil {
		return nil, fmt.Errorf("query audio units: %w", err)
	}
	defer rows.Close()

	var hits []core.AudioHit
	for rows.Next() {
		var h core.AudioHit
		if err := rows.Scan(&h.ID, &h.Video, &h.Start, &h.End, &h.Duration, &h.Document, &h.Score); err != nil {
			return nil, fmt.Errorf("scan audio hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PgVectorStore) DeleteVideo(ctx context.Context, videoID string) (int, error) {
	visual, err := s.conn.Exec(ctx, "DELETE FROM visual_units WHERE video = $1", videoID)
	if err != nil {
		return 0, fmt.Errorf("delete visual units for %s: %w", videoID, err)
	}
	audio, err := s.conn.Exec(ctx, "DELETE FROM audio_units WHERE video = $1", videoID)
	if err != nil {
		return int(visual.RowsAffected()), fmt.Errorf("delete audio units for %s: %w", videoID, err)
	}
	return int(visual.RowsAffected() + audio.RowsAffected()), nil
}

func (s *PgVectorStore) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}
