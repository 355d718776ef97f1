package playback

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSineReaderInterleaving(t *testing.T) {
	src := &sineReader{freq: 440, rate: 44100, channels: 2}
	buf := make([]byte, 44100/10*4)
	n, err := src.Read(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)

	// the wave starts at zero and every channel carries the same sample
	first := int16(binary.LittleEndian.Uint16(buf[0:2]))
	assert.Zero(t, first)

	peak := int16(0)
	for i := 0; i < n; i += 4 {
		left := int16(binary.LittleEndian.Uint16(buf[i : i+2]))
		right := int16(binary.LittleEndian.Uint16(buf[i+2 : i+4]))
		require.Equal(t, left, right)
		if left > peak {
			peak = left
		}
	}
	// a tenth of a second covers many full cycles, so the peak has to come
	// close to the configured amplitude
	assert.InDelta(t, toneAmplitude*32767, float64(peak), 50)
}

func TestSineReaderContinuity(t *testing.T) {
	whole := &sineReader{freq: 440, rate: 44100, channels: 1}
	split := &sineReader{freq: 440, rate: 44100, channels: 1}

	a := make([]byte, 400)
	_, err := whole.Read(a)
	require.NoError(t, err)

	b1 := make([]byte, 160)
	b2 := make([]byte, 240)
	_, err = split.Read(b1)
	require.NoError(t, err)
	_, err = split.Read(b2)
	require.NoError(t, err)

	assert.Equal(t, a, append(b1, b2...))
}

func TestToneBytes(t *testing.T) {
	assert.Equal(t, int64(44100*2*2), toneBytes(44100, 2, time.Second))
	assert.Equal(t, int64(4800*2), toneBytes(48000, 1, 100*time.Millisecond))

	// always a whole number of frames
	assert.Zero(t, toneBytes(44100, 2, 333*time.Millisecond)%4)
}
