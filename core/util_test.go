package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVideoIDFromPath(t *testing.T) {
	assert.Equal(t, "clip.mp4", VideoIDFromPath("/videos/clip.mp4"))
	assert.Equal(t, "my_movie_scene.mp4", VideoIDFromPath("/videos/my movie scene.mp4"))
	assert.Equal(t, "clip.mp4", VideoIDFromPath("clip.mp4"))
	assert.Equal(t, "unknown", VideoIDFromPath(""))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "00:00", FormatTime(0))
	assert.Equal(t, "01:05", FormatTime(65))
	assert.Equal(t, "10:59", FormatTime(659.9))
	assert.Equal(t, "00:00", FormatTime(-3))
}

func TestNewJobIDUnique(t *testing.T) {
	assert.NotEqual(t, NewJobID(), NewJobID())
}
