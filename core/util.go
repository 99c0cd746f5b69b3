package core

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DataRoot is where per-job working directories (extracted audio, dumped
// frames, keyframes) are created.
func DataRoot() string {
	if root := os.Getenv("DATA_ROOT"); root != "" {
		return root
	}
	return filepath.Join(".", "data")
}

func NewJobID() string {
	return uuid.NewString()
}

// VideoIDFromPath derives the tenancy key for a video file: its base name
// with spaces replaced, matching the ids already present in stored
// collections.
func VideoIDFromPath(path string) string {
	name := filepath.Base(path)
	if name == "" || name == "." {
		name = "unknown"
	}
	return strings.ReplaceAll(name, " ", "_")
}

func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func MustJSON(v any) []byte {
	b, _ := json.MarshalIndent(v, "", "  ")
	return b
}

func FormatTime(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	m := int(sec) / 60
	s := int(sec) % 60
	return fmt.Sprintf("%02d:%02d", m, s)
}

// NewLogger builds the process logger. Production JSON output by default,
// human-readable when debug is set.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
