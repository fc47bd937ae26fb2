package pixel

import (
	"math"
	"testing"

	"discoagent/internal/frame"
	"discoagent/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlphaPolicies(t *testing.T) {
	px := frame.RGBA{R: 1.0, G: 0.5, B: 0.0, A: 0.5}
	assert.Equal(t, Color{127, 63, 0}, WeightedAlpha.ToColor(px))
	assert.Equal(t, Color{255, 127, 0}, FixedAlpha.ToColor(px))
}

func TestToColorClamps(t *testing.T) {
	nan := float32(math.NaN())
	px := frame.RGBA{R: 2, G: -1, B: nan, A: 1}
	assert.Equal(t, Color{255, 0, 0}, WeightedAlpha.ToColor(px))
	assert.Equal(t, Color{0, 0, 0}, WeightedAlpha.ToColor(frame.RGBA{R: 1, G: 1, B: 1, A: nan}))
}

func TestParseAlphaPolicy(t *testing.T) {
	p, err := ParseAlphaPolicy("Fixed")
	require.NoError(t, err)
	assert.Equal(t, FixedAlpha, p)

	p, err = ParseAlphaPolicy("")
	require.NoError(t, err)
	assert.Equal(t, WeightedAlpha, p)

	_, err = ParseAlphaPolicy("premultiplied")
	assert.Error(t, err)
	assert.Equal(t, "weighted", WeightedAlpha.String())
}

func TestApplyFrameOnLogSink(t *testing.T) {
	sink := NewLogSink(logger.Discard(), 4)
	require.NoError(t, sink.Begin())
	require.NoError(t, sink.SetBrightness(100))
	assert.Error(t, sink.SetBrightness(101))

	f := &frame.Frame{
		Header: frame.Header{StartIndex: 2, EndIndex: 5},
		Pixels: []frame.RGBA{
			{R: 1, A: 1},
			{G: 1, A: 1},
			{B: 1, A: 1}, // index 4 is off the strip
		},
	}
	require.NoError(t, ApplyFrame(sink, f, FixedAlpha))

	assert.Equal(t, Color{}, sink.Pixel(0))
	assert.Equal(t, Color{255, 0, 0}, sink.Pixel(2))
	assert.Equal(t, Color{0, 255, 0}, sink.Pixel(3))
	assert.Equal(t, uint64(1), sink.frames)
}
