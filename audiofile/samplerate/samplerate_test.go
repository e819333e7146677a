package samplerate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/core"
)

func TestNewRejectsInvalidFormats(t *testing.T) {
	_, err := New(0, 48000, 1)
	assert.ErrorIs(t, err, core.ErrConfiguration)
	_, err = New(44100, 48000, 0)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestConvertDCKeepsLevelAndLength(t *testing.T) {
	c, err := New(44100, 48000, 2, WithQuality(Linear))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	assert.InDelta(t, 48000.0/44100.0, c.Ratio(), 1e-12)

	in := buffer.New(4410, 2)
	for ch := range 2 {
		for i, s := 0, in.Channel(ch); i < len(s); i++ {
			s[i] = 0.5
		}
	}
	none := buffer.New(0, 2)
	out := buffer.New(1024, 2)

	var got []float32
	drain := func() {
		for {
			_ = out.SetNumFrames(1024)
			_, n, err := c.Convert(none, out)
			require.NoError(t, err)
			if n == 0 {
				return
			}
			got = append(got, out.Channel(0)[:n]...)
		}
	}

	for range 10 {
		consumed, _, err := c.Convert(in, none)
		require.NoError(t, err)
		require.Equal(t, 4410, consumed)
		drain()
	}
	require.NoError(t, c.Flush())
	drain()

	assert.InDelta(t, 48000, len(got), 48)
	for _, v := range got[1000 : len(got)-1000] {
		require.InDelta(t, 0.5, v, 1e-3)
	}
}

func TestConvertChecksChannels(t *testing.T) {
	c, err := New(44100, 22050, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, _, err = c.Convert(buffer.New(4, 2), buffer.New(4, 1))
	assert.ErrorIs(t, err, core.ErrConfiguration)
	_, _, err = c.Convert(buffer.NewInterleaved(4, 1), buffer.New(4, 1))
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestResetDropsHeldOutput(t *testing.T) {
	c, err := New(8000, 16000, 1, WithQuality(ZeroOrderHold))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, _, err = c.Convert(buffer.New(800, 1), buffer.New(0, 1))
	require.NoError(t, err)
	require.NoError(t, c.Reset())

	_, n, err := c.Convert(buffer.New(0, 1), buffer.New(64, 1))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFactory(t *testing.T) {
	conv, err := Factory(WithQuality(Fastest))(44100, 48000, 1)
	require.NoError(t, err)
	c, ok := conv.(*Converter)
	require.True(t, ok)
	assert.Equal(t, Fastest, c.quality)
	require.NoError(t, c.Close())
}
