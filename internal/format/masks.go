package format

// Speaker position bits as defined by ksmedia.h. Only the positions used by
// the curated layouts are named.
const (
	SpeakerFrontLeft          uint32 = 0x1
	SpeakerFrontRight         uint32 = 0x2
	SpeakerFrontCenter        uint32 = 0x4
	SpeakerLowFrequency       uint32 = 0x8
	SpeakerBackLeft           uint32 = 0x10
	SpeakerBackRight          uint32 = 0x20
	SpeakerFrontLeftOfCenter  uint32 = 0x40
	SpeakerFrontRightOfCenter uint32 = 0x80
	SpeakerBackCenter         uint32 = 0x100
	SpeakerSideLeft           uint32 = 0x200
	SpeakerSideRight          uint32 = 0x400
)

// Composite layouts matching the conventions used by PortAudio and friends.
const (
	maskMono     = SpeakerFrontCenter
	maskStereo   = SpeakerFrontLeft | SpeakerFrontRight
	maskQuad     = maskStereo | SpeakerBackLeft | SpeakerBackRight
	maskSurround = maskStereo | SpeakerFrontCenter | SpeakerBackCenter
	mask5Point1  = maskStereo | SpeakerFrontCenter | SpeakerLowFrequency |
		SpeakerBackLeft | SpeakerBackRight
	mask5Point1Surround = maskStereo | SpeakerFrontCenter | SpeakerLowFrequency |
		SpeakerSideLeft | SpeakerSideRight
	mask7Point1         = mask5Point1 | SpeakerFrontLeftOfCenter | SpeakerFrontRightOfCenter
	mask7Point1Surround = mask5Point1 | SpeakerSideLeft | SpeakerSideRight
)

// curatedMasks holds the well-known layouts for channel counts 1 through 8.
// The values are a convention table, not something to derive: a real device
// matches (or rejects) these exact bit patterns, so they must stay
// bit-for-bit identical to the source convention. Counts 4 through 8 carry
// both a back-speaker and a side/center variant.
var curatedMasks = [8][]uint32{
	{maskMono},
	{maskStereo},
	{maskStereo | SpeakerLowFrequency},
	{maskQuad, maskSurround},
	{maskQuad | SpeakerLowFrequency, maskSurround | SpeakerLowFrequency},
	{mask5Point1, mask5Point1Surround},
	{mask5Point1 | SpeakerBackCenter, mask5Point1Surround | SpeakerBackCenter},
	{mask7Point1, mask7Point1Surround},
}

// DefaultMask returns the canonical mask for mono and stereo, the only
// counts the legacy short PCM header may describe. Zero for anything else.
func DefaultMask(channels int) uint32 {
	switch channels {
	case 1:
		return maskMono
	case 2:
		return maskStereo
	default:
		return 0
	}
}

// SequentialMask returns the generated layout with the low n bits set,
// valid for any channel count.
func SequentialMask(channels int) uint32 {
	return 1<<uint(channels) - 1
}

// MasksFor returns the ordered sequence of channel masks to probe for the
// given channel count, most likely to succeed first: the curated well-known
// layouts (counts 1..8 only), then the sequential mask, then the zero
// "unspecified" mask that some capture devices insist on.
//
// The sequence may repeat a mask (stereo's curated and sequential layouts
// are the same bits); duplicates are intentionally kept so every mask/wire
// variant pairing is still probed, and the format table deduplicates.
func MasksFor(channels int) []uint32 {
	if channels <= 0 {
		return nil
	}
	var masks []uint32
	if channels <= len(curatedMasks) {
		masks = append(masks, curatedMasks[channels-1]...)
	}
	masks = append(masks, SequentialMask(channels))
	masks = append(masks, 0)
	return masks
}
