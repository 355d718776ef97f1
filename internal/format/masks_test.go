package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMask(t *testing.T) {
	assert.Equal(t, SpeakerFrontCenter, DefaultMask(1))
	assert.Equal(t, SpeakerFrontLeft|SpeakerFrontRight, DefaultMask(2))
	assert.Equal(t, uint32(0), DefaultMask(3))
	assert.Equal(t, uint32(0), DefaultMask(8))
}

func TestSequentialMask(t *testing.T) {
	tests := []struct {
		channels int
		want     uint32
	}{
		{1, 0x1},
		{2, 0x3},
		{6, 0x3F},
		{8, 0xFF},
		{12, 0xFFF},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SequentialMask(tt.channels))
	}
}

func TestMasksForOrdering(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		want     []uint32
	}{
		{
			name:     "Mono",
			channels: 1,
			want:     []uint32{0x4, 0x1, 0x0},
		},
		{
			name:     "Stereo keeps curated and sequential duplicates",
			channels: 2,
			want:     []uint32{0x3, 0x3, 0x0},
		},
		{
			name:     "Quad has back and surround layouts",
			channels: 4,
			want:     []uint32{0x33, 0x107, 0xF, 0x0},
		},
		{
			name:     "Five point one",
			channels: 6,
			want:     []uint32{0x3F, 0x60F, 0x3F, 0x0},
		},
		{
			name:     "Seven point one",
			channels: 8,
			want:     []uint32{0xFF, 0x63F, 0xFF, 0x0},
		},
		{
			name:     "Beyond curated table falls back to sequential and zero",
			channels: 9,
			want:     []uint32{0x1FF, 0x0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MasksFor(tt.channels)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMasksForInvalidCount(t *testing.T) {
	assert.Nil(t, MasksFor(0))
	assert.Nil(t, MasksFor(-3))
}

// Every curated mask must have exactly as many bits set as the channel
// count it is listed under.
func TestCuratedMaskPopulation(t *testing.T) {
	for i, layouts := range curatedMasks {
		channels := i + 1
		for _, mask := range layouts {
			bits := 0
			for m := mask; m != 0; m >>= 1 {
				bits += int(m & 1)
			}
			assert.Equalf(t, channels, bits, "mask 0x%x listed for %d channels", mask, channels)
		}
	}
}
