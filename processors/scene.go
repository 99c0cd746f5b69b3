package processors

import (
	"errors"
	"fmt"
	"image"
	"io"
	"math"

	"videorag/core"
)

// FrameSource is an ordered stream of decoded video frames. Next returns
// io.EOF when the stream ends; any other error aborts segmentation.
type FrameSource interface {
	Next() (image.Image, error)
	FPS() float64
}

const histogramBins = 256

// SceneSegmenter splits a frame stream into scene intervals by comparing
// each frame's grayscale intensity histogram against the current scene's
// reference histogram.
type SceneSegmenter struct {
	// Threshold is the Bhattacharyya distance above which a new scene
	// boundary is declared.
	Threshold float64
	// MinSceneGap is the minimum number of frames between boundaries; it
	// stops rapid re-triggering on cuts between near-identical shots.
	MinSceneGap int
}

func NewSceneSegmenter(threshold float64, minSceneGap int) *SceneSegmenter {
	if threshold <= 0 {
		threshold = 0.6
	}
	if minSceneGap <= 0 {
		minSceneGap = 10
	}
	return &SceneSegmenter{Threshold: threshold, MinSceneGap: minSceneGap}
}

// Segment consumes the whole frame stream and returns the ordered scene
// intervals covering it, one representative keyframe per interval. A
// stream with zero frames yields no intervals and no error. A stream that
// never crosses the threshold yields exactly one interval.
func (s *SceneSegmenter) Segment(src FrameSource) ([]core.SceneInterval, error) {
	fps := src.FPS()
	if fps <= 0 {
		fps = 1.0
	}

	var (
		intervals      []core.SceneInterval
		refHist        []float64
		sceneStartIdx  int
		lastSceneIdx   int
		frameIdx       int
		lastValidFrame image.Image
	)

	for {
		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read frame %d: %w", frameIdx, err)
		}
		lastValidFrame = frame

		hist := grayHistogram(frame)
		if refHist == nil {
			refHist = hist
			sceneStartIdx = frameIdx
			lastSceneIdx = frameIdx
		} else if bhattacharyya(refHist, hist) > s.Threshold && frameIdx-lastSceneIdx >= s.MinSceneGap {
			// Close the outgoing scene at the boundary frame, which also
			// serves as its representative keyframe.
			intervals = append(intervals, makeInterval(sceneStartIdx, frameIdx, fps, frame, len(intervals)))
			refHist = hist
			sceneStartIdx = frameIdx
			lastSceneIdx = frameIdx
		}
		frameIdx++
	}

	// Final interval: from the last open boundary to the end of the stream,
	// emitted even when no boundary ever triggered.
	if frameIdx > 0 && lastValidFrame != nil {
		intervals = append(intervals, makeInterval(sceneStartIdx, frameIdx, fps, lastValidFrame, len(intervals)))
	}
	return intervals, nil
}

func makeInterval(startIdx, endIdx int, fps float64, keyframe image.Image, ordinal int) core.SceneInterval {
	start := float64(startIdx) / fps
	end := float64(endIdx) / fps
	if end < start {
		end = start
	}
	return core.SceneInterval{
		Start:        start,
		End:          end,
		Duration:     end - start,
		Keyframe:     keyframe,
		TimestampKey: fmt.Sprintf("frame_%03d", ordinal),
	}
}

// grayHistogram computes a 256-bin intensity histogram normalized to sum 1.
func grayHistogram(img image.Image) []float64 {
	hist := make([]float64, histogramBins)
	bounds := img.Bounds()
	total := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma, on 16-bit channel values.
			luma := (299*r + 587*g + 114*b) / 1000
			hist[luma>>8]++
			total++
		}
	}
	if total > 0 {
		inv := 1.0 / float64(total)
		for i := range hist {
			hist[i] *= inv
		}
	}
	return hist
}

// bhattacharyya returns the Bhattacharyya distance between two histograms
// normalized to sum 1: sqrt(1 - sum(sqrt(h1*h2))), in [0, 1].
func bhattacharyya(h1, h2 []float64) float64 {
	var bc float64
	for i := range h1 {
		bc += math.Sqrt(h1[i] * h2[i])
	}
	if bc > 1 {
		bc = 1
	}
	return math.Sqrt(1 - bc)
}
