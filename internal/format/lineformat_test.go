package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineFormats(t *testing.T) {
	tbl := NewTable()
	// the same audible configuration confirmed through both wire variants
	tbl.Add(Descriptor{Rate: 44100, Channels: 2, ValidBits: 16, StoreBits: 16, ChannelMask: 0x3, Variant: Extensible})
	tbl.Add(Descriptor{Rate: 44100, Channels: 2, ValidBits: 16, StoreBits: 16, ChannelMask: 0x3, Variant: ShortPcm})
	// and one 24-in-32 entry
	tbl.Add(Descriptor{Rate: 44100, Channels: 2, ValidBits: 24, StoreBits: 32, ChannelMask: 0x3, Variant: Extensible})

	got := LineFormats(tbl)
	want := []LineFormat{
		{ValidBits: 16, FrameBytes: 4, Channels: 2, Rate: 44100},
		{ValidBits: 24, FrameBytes: 8, Channels: 2, Rate: 44100},
		{ValidBits: 16, FrameBytes: NotSpecified, Channels: NotSpecified, Rate: NotSpecified},
		{ValidBits: 24, FrameBytes: NotSpecified, Channels: NotSpecified, Rate: NotSpecified},
	}
	assert.Equal(t, want, got)
}

func TestLineFormatsMaskVariantsCollapse(t *testing.T) {
	tbl := NewTable()
	// several masks for the same rate/channels/bits collapse into one line
	tbl.Add(Descriptor{Rate: 48000, Channels: 6, ValidBits: 24, StoreBits: 32, ChannelMask: 0x3F, Variant: Extensible})
	tbl.Add(Descriptor{Rate: 48000, Channels: 6, ValidBits: 24, StoreBits: 32, ChannelMask: 0x60F, Variant: Extensible})
	tbl.Add(Descriptor{Rate: 48000, Channels: 6, ValidBits: 24, StoreBits: 32, ChannelMask: 0x0, Variant: Extensible})

	got := LineFormats(tbl)
	require.Len(t, got, 2)
	assert.Equal(t, LineFormat{ValidBits: 24, FrameBytes: 24, Channels: 6, Rate: 48000}, got[0])
	assert.Equal(t, LineFormat{ValidBits: 24, FrameBytes: NotSpecified, Channels: NotSpecified, Rate: NotSpecified}, got[1])
}

func TestLineFormatsEmptyTable(t *testing.T) {
	assert.Empty(t, LineFormats(NewTable()))
}
