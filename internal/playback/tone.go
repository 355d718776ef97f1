// Package playback plays a short verification tone through the system
// mixer. Hearing the tone confirms a device is alive before spending
// seconds on an exclusive-mode probe run against it.
package playback

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/exaudio/exaudio/internal/logger"
)

const toneAmplitude = 0.3

// sineReader streams an interleaved signed 16-bit sine wave.
type sineReader struct {
	freq     float64
	rate     int
	channels int
	pos      int64
}

func (s *sineReader) Read(p []byte) (int, error) {
	frameBytes := s.channels * 2
	frames := len(p) / frameBytes
	for i := 0; i < frames; i++ {
		v := toneAmplitude * math.Sin(2*math.Pi*s.freq*float64(s.pos)/float64(s.rate))
		sample := int16(v * math.MaxInt16)
		for ch := 0; ch < s.channels; ch++ {
			off := i*frameBytes + ch*2
			p[off] = byte(sample)
			p[off+1] = byte(sample >> 8)
		}
		s.pos++
	}
	return frames * frameBytes, nil
}

// NewSine returns an endless interleaved signed 16-bit little-endian sine
// source, for callers that bring their own output path.
func NewSine(rate, channels int, freq float64) io.Reader {
	return &sineReader{freq: freq, rate: rate, channels: channels}
}

// Tone plays a sine wave of the given frequency for the given duration,
// blocking until it finished.
func Tone(rate, channels int, freq float64, duration time.Duration) error {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("failed to open audio context: %w", err)
	}
	<-ready

	logger.Info("Playing verification tone",
		logger.Float64("frequency_hz", freq),
		logger.Duration("duration", duration))

	src := &sineReader{freq: freq, rate: rate, channels: channels}
	player := ctx.NewPlayer(io.LimitReader(src, toneBytes(rate, channels, duration)))
	player.Play()
	for player.IsPlaying() {
		time.Sleep(10 * time.Millisecond)
	}
	return player.Close()
}

func toneBytes(rate, channels int, duration time.Duration) int64 {
	frames := int64(float64(rate) * duration.Seconds())
	return frames * int64(channels) * 2
}
