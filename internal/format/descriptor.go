// Package format implements the candidate side of exclusive-mode format
// negotiation: the descriptor value type, the channel-mask catalog, the
// ordered candidate generator and the deduplicated table of confirmed
// formats.
//
// WASAPI does not publish a format list for exclusive mode; the only way to
// learn what an endpoint accepts is to ask it, one concrete format at a
// time. This package produces the formats worth asking about, in the order
// they are most likely to succeed.
package format

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidBitPair  = errors.New("bit pair is not one of 16/16, 24/24, 24/32, 32/32")
	ErrInvalidRate     = errors.New("sample rate must be positive")
	ErrInvalidChannels = errors.New("channel count must be positive")
	ErrShortPcmLayout  = errors.New("short PCM variant requires mono or stereo with the default mask")
)

// Variant selects the wire header used for a format-support query.
type Variant int

const (
	// Extensible probes with a WAVEFORMATEXTENSIBLE header carrying an
	// explicit channel mask.
	Extensible Variant = iota
	// ShortPcm probes with a legacy WAVEFORMATEX PCM header. Some devices
	// only answer mono/stereo queries in this form.
	ShortPcm
)

func (v Variant) String() string {
	switch v {
	case Extensible:
		return "extensible"
	case ShortPcm:
		return "short-pcm"
	default:
		return "unknown"
	}
}

// BitPair is a sanctioned pairing of meaningful bits per sample and the
// container width they are stored in.
type BitPair struct {
	Valid int
	Store int
}

// BitPairs lists every pairing the negotiation ever probes, in probe order.
// 24-bit data is tried both packed (24/24) and padded into 32-bit
// containers (24/32).
var BitPairs = [4]BitPair{
	{Valid: 16, Store: 16},
	{Valid: 24, Store: 24},
	{Valid: 24, Store: 32},
	{Valid: 32, Store: 32},
}

// Descriptor identifies one candidate PCM format. It is the unit exchanged
// between the generator, the device probe and the format table.
type Descriptor struct {
	Rate        int
	Channels    int
	ValidBits   int
	StoreBits   int
	ChannelMask uint32
	Variant     Variant
}

// FrameBytes returns the size of one interleaved frame in bytes.
func (d Descriptor) FrameBytes() int {
	return d.Channels * d.StoreBits / 8
}

// Validate reports whether the descriptor is one the negotiation is allowed
// to probe.
func (d Descriptor) Validate() error {
	if d.Rate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRate, d.Rate)
	}
	if d.Channels <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChannels, d.Channels)
	}
	if !sanctionedBitPair(d.ValidBits, d.StoreBits) {
		return fmt.Errorf("%w: %d/%d", ErrInvalidBitPair, d.ValidBits, d.StoreBits)
	}
	if d.Variant == ShortPcm {
		if d.Channels > 2 || d.ChannelMask != DefaultMask(d.Channels) {
			return ErrShortPcmLayout
		}
	}
	return nil
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%dHz/%dch %d/%d mask=0x%x %s",
		d.Rate, d.Channels, d.ValidBits, d.StoreBits, d.ChannelMask, d.Variant)
}

func sanctionedBitPair(valid, store int) bool {
	for _, p := range BitPairs {
		if p.Valid == valid && p.Store == store {
			return true
		}
	}
	return false
}
