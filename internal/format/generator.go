package format

// Built-in limits for the candidate gate. They bound the probe storm when
// the caller runs with the default rate and channel lists; explicitly
// configured lists are always probed in full.
const (
	MaxRate     = 192000
	MaxChannels = 8
)

// DefaultRates and DefaultChannels are the built-in candidate lists used
// when the caller supplies no hints of its own.
var (
	DefaultRates    = []int{44100, 48000, 88200, 96000, 176400, 192000, 352800, 384000}
	DefaultChannels = []int{1, 2, 4, 6, 8}
)

// LimitPolicy is derived once per negotiation run from how the candidate
// lists were sourced.
type LimitPolicy struct {
	RatesAreDefault    bool
	ChannelsAreDefault bool
	MaxRate            int
	MaxChannels        int
}

// DefaultLimitPolicy marks both lists as built-in defaults, enabling the
// rate/channel gate with the built-in limits.
func DefaultLimitPolicy() LimitPolicy {
	return LimitPolicy{
		RatesAreDefault:    true,
		ChannelsAreDefault: true,
		MaxRate:            MaxRate,
		MaxChannels:        MaxChannels,
	}
}

// accepts reports whether a (rate, channels) group passes the gate. The
// gate only applies when both lists are the built-in defaults, and it is an
// inclusive OR: a group survives when either dimension is below its limit.
// That lets a high-rate/low-channel or low-rate/high-channel combination
// through on purpose; do not tighten this to AND.
func (p LimitPolicy) accepts(rate, channels int) bool {
	if !p.RatesAreDefault || !p.ChannelsAreDefault {
		return true
	}
	return rate < p.MaxRate || channels < p.MaxChannels
}

// Candidates is the full ordered candidate space for one negotiation run: a
// finite, deterministic, restartable sequence of descriptors. It holds only
// the inputs, so iterating twice yields the identical sequence.
type Candidates struct {
	rates    []int
	channels []int
	policy   LimitPolicy
}

// NewCandidates builds the candidate sequence for the given hints. Empty
// rate or channel lists produce an empty sequence; that is the caller's
// malformed-input signal, not an error.
func NewCandidates(rates, channels []int, policy LimitPolicy) *Candidates {
	return &Candidates{rates: rates, channels: channels, policy: policy}
}

// Each walks the sequence in probe order, outermost to innermost: rate
// (caller order), channel count (caller order), bit pair (fixed order),
// channel mask (catalog order), wire variant. For mono and stereo with the
// canonical default mask the extensible descriptor is immediately followed
// by its short PCM twin. Returning false from yield stops the walk.
func (c *Candidates) Each(yield func(Descriptor) bool) {
	for _, rate := range c.rates {
		if rate <= 0 {
			continue
		}
		for _, channels := range c.channels {
			if channels <= 0 {
				continue
			}
			if !c.policy.accepts(rate, channels) {
				continue
			}
			for _, pair := range BitPairs {
				for _, mask := range MasksFor(channels) {
					d := Descriptor{
						Rate:        rate,
						Channels:    channels,
						ValidBits:   pair.Valid,
						StoreBits:   pair.Store,
						ChannelMask: mask,
						Variant:     Extensible,
					}
					if !yield(d) {
						return
					}
					if channels <= 2 && mask == DefaultMask(channels) {
						d.Variant = ShortPcm
						if !yield(d) {
							return
						}
					}
				}
			}
		}
	}
}

// Slice materializes the whole sequence. Intended for tests and tooling;
// the engine consumes Each directly.
func (c *Candidates) Slice() []Descriptor {
	var out []Descriptor
	c.Each(func(d Descriptor) bool {
		out = append(out, d)
		return true
	})
	return out
}
