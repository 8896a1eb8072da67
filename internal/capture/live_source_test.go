package capture

import (
	"image"
	"testing"

	"github.com/2beens/fitcoach/internal/formanalysis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveSource_SnapshotBeforeFirstFrame(t *testing.T) {
	source := NewLiveSource(nil)
	img, err := source.Snapshot()
	assert.Nil(t, img)
	assert.ErrorIs(t, err, formanalysis.ErrCaptureUnavailable)
}

func TestLiveSource_LatestFrameWins(t *testing.T) {
	source := NewLiveSource(nil)
	first := image.NewRGBA(image.Rect(0, 0, 2, 2))
	second := image.NewRGBA(image.Rect(0, 0, 2, 2))

	require.NoError(t, source.Publish(first))
	require.NoError(t, source.Publish(second))
	assert.Equal(t, uint64(1), source.Drops())

	img, err := source.Snapshot()
	require.NoError(t, err)
	assert.Same(t, second, img)

	// sampled frame is not a drop when overwritten
	require.NoError(t, source.Publish(first))
	assert.Equal(t, uint64(1), source.Drops())

	// the latest frame stays available until replaced
	img, err = source.Snapshot()
	require.NoError(t, err)
	assert.Same(t, first, img)
	img, err = source.Snapshot()
	require.NoError(t, err)
	assert.Same(t, first, img)
}

func TestLiveSource_Close(t *testing.T) {
	released := 0
	source := NewLiveSource(func() {
		released++
	})
	require.NoError(t, source.Publish(image.NewRGBA(image.Rect(0, 0, 1, 1))))

	require.NoError(t, source.Close())
	require.NoError(t, source.Close())
	assert.Equal(t, 1, released)
	assert.True(t, source.isClosed())

	_, err := source.Snapshot()
	assert.ErrorIs(t, err, formanalysis.ErrCaptureUnavailable)
	assert.ErrorIs(t, source.Publish(image.NewRGBA(image.Rect(0, 0, 1, 1))), ErrSourceClosed)
}
