// Package media wraps the ffmpeg/ffprobe command line tools for video
// probing, audio extraction and frame dumping.
package media

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ProbeInfo describes one video source. FPS is already sanitized: a source
// that reports a zero or invalid rate probes as 1.0 so downstream
// timestamps stay finite.
type ProbeInfo struct {
	Duration float64
	FPS      float64
	HasAudio bool
	Width    int
	Height   int
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe inspects a video file. An unreadable file is a fatal error for the
// caller; files are not expected to become readable on retry.
func Probe(path string) (*ProbeInfo, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_streams", "-show_format",
		"-of", "json",
		path)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}

	var probed ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}

	info := &ProbeInfo{FPS: 1.0}
	for _, s := range probed.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
		case "video":
			if fps := parseRate(s.RFrameRate); fps > 0 {
				info.FPS = fps
			} else if fps := parseRate(s.AvgFrameRate); fps > 0 {
				info.FPS = fps
			}
			if s.Width > 0 {
				info.Width = s.Width
				info.Height = s.Height
			}
		}
	}
	if d, err := strconv.ParseFloat(strings.TrimSpace(probed.Format.Duration), 64); err == nil {
		info.Duration = d
	}
	return info, nil
}

// ProbeDuration returns the container duration in seconds.
func ProbeDuration(path string) (float64, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("probe duration %s: %w", path, err)
	}
	return strconv.ParseFloat(strings.TrimSpace(out.String()), 64)
}

// parseRate parses an ffprobe rational rate like "30000/1001" or "25/1".
func parseRate(r string) float64 {
	r = strings.TrimSpace(r)
	if r == "" || r == "0/0" {
		return 0
	}
	num, den, ok := strings.Cut(r, "/")
	if !ok {
		f, err := strconv.ParseFloat(r, 64)
		if err != nil {
			return 0
		}
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

// ExtractAudio writes the audio track as 16kHz mono WAV, the input format
// the transcribers expect.
func ExtractAudio(inputPath, audioOut string) error {
	args := []string{"-y", "-i", inputPath, "-vn", "-ac", "1", "-ar", "16000", "-f", "wav", audioOut}
	if err := runFFmpeg(args); err != nil {
		return fmt.Errorf("extract audio from %s: %w", inputPath, err)
	}
	return nil
}

// ExtractFrames dumps every frame of the video into framesDir as
// sequentially numbered JPEGs at the source frame rate.
func ExtractFrames(inputPath, framesDir string) error {
	if err := os.MkdirAll(framesDir, 0755); err != nil {
		return err
	}
	pattern := filepath.Join(framesDir, "%06d.jpg")
	args := []string{"-y", "-i", inputPath, "-vsync", "0", pattern}
	if err := runFFmpeg(args); err != nil {
		return fmt.Errorf("extract frames from %s: %w", inputPath, err)
	}
	return nil
}

func runFFmpeg(args []string) error {
	cmd := exec.Command("ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
