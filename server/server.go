// Package server exposes the pipeline over HTTP: ingestion, retrieval
// and per-video cleanup.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"videorag/core"
	"videorag/processors"
	"videorag/retrieval"
	"videorag/storage"
)

type Server struct {
	pipeline *processors.Pipeline
	engine   *retrieval.Engine
	store    storage.VectorStore
	log      *zap.Logger
}

func New(pipeline *processors.Pipeline, engine *retrieval.Engine, store storage.VectorStore, log *zap.Logger) *Server {
	return &Server{pipeline: pipeline, engine: engine, store: store, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Post("/ingest", s.handleIngest)
	r.Post("/ingest/batch", s.handleIngestBatch)
	r.Post("/query", s.handleQuery)
	r.Delete("/videos/{videoID}", s.handleDeleteVideo)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	core.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestRequest struct {
	VideoPath string `json:"video_path"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.VideoPath == "" {
		writeError(w, http.StatusBadRequest, errors.New("video_path is required"))
		return
	}

	result, err := s.pipeline.IngestVideo(r.Context(), req.VideoPath)
	if err != nil {
		s.log.Error("ingest failed", zap.String("video_path", req.VideoPath), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, result)
}

type ingestBatchRequest struct {
	VideoPaths []string `json:"video_paths"`
}

func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var req ingestBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.VideoPaths) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("video_paths is required"))
		return
	}
	core.WriteJSON(w, http.StatusOK, s.pipeline.IngestBatch(r.Context(), req.VideoPaths))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req retrieval.QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, errors.New("question is required"))
		return
	}

	result, err := s.engine.Query(r.Context(), req)
	if err != nil {
		s.log.Error("query failed", zap.String("question", req.Question), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	if videoID == "" {
		writeError(w, http.StatusBadRequest, errors.New("videoID is required"))
		return
	}

	removed, err := s.store.DeleteVideo(r.Context(), videoID)
	if err != nil {
		s.log.Error("delete failed", zap.String("video", videoID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"video": videoID, "removed": removed})
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	core.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
