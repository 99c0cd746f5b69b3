package media

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirFrameSource streams decoded frames from a directory of numbered
// JPEGs, in name order. It satisfies the scene segmenter's FrameSource
// contract: Next returns io.EOF when the stream is exhausted.
type DirFrameSource struct {
	paths []string
	fps   float64
	next  int
}

func NewDirFrameSource(framesDir string, fps float64) (*DirFrameSource, error) {
	entries, err := os.ReadDir(framesDir)
	if err != nil {
		return nil, fmt.Errorf("read frames dir %s: %w", framesDir, err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".jpg") {
			continue
		}
		paths = append(paths, filepath.Join(framesDir, e.Name()))
	}
	sort.Strings(paths)
	if fps <= 0 {
		fps = 1.0
	}
	return &DirFrameSource{paths: paths, fps: fps}, nil
}

func (s *DirFrameSource) Next() (image.Image, error) {
	if s.next >= len(s.paths) {
		return nil, io.EOF
	}
	path := s.paths[s.next]
	s.next++

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame %s: %w", path, err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", path, err)
	}
	return img, nil
}

func (s *DirFrameSource) FPS() float64 { return s.fps }

// SaveJPEG writes a keyframe image to disk.
func SaveJPEG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
}
