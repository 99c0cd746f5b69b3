package media

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRate(t *testing.T) {
	assert.InDelta(t, 29.97, parseRate("30000/1001"), 0.01)
	assert.Equal(t, 25.0, parseRate("25/1"))
	assert.Equal(t, 30.0, parseRate("30"))
	assert.Equal(t, 0.0, parseRate("0/0"))
	assert.Equal(t, 0.0, parseRate(""))
	assert.Equal(t, 0.0, parseRate("25/0"))
}

func TestDirFrameSourceStreamsInOrder(t *testing.T) {
	dir := t.TempDir()
	colors := []color.Color{color.Black, color.Gray{Y: 128}, color.White}
	for i, c := range colors {
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				img.Set(x, y, c)
			}
		}
		require.NoError(t, SaveJPEG(img, filepath.Join(dir, fmt.Sprintf("%06d.jpg", i+1))))
	}

	src, err := NewDirFrameSource(dir, 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, src.FPS())

	count := 0
	for {
		img, err := src.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.NotNil(t, img)
		count++
	}
	assert.Equal(t, len(colors), count)
}

func TestDirFrameSourceZeroFPSFallback(t *testing.T) {
	src, err := NewDirFrameSource(t.TempDir(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, src.FPS())

	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDirFrameSourceIgnoresNonJPEG(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	require.NoError(t, SaveJPEG(img, filepath.Join(dir, "000001.jpg")))
	require.NoError(t, SaveJPEG(img, filepath.Join(dir, "notes.txt.png")))

	src, err := NewDirFrameSource(dir, 1)
	require.NoError(t, err)

	_, err = src.Next()
	require.NoError(t, err)
	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}
