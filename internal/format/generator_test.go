package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitPolicyGate(t *testing.T) {
	tests := []struct {
		name     string
		policy   LimitPolicy
		rate     int
		channels int
		want     bool
	}{
		{
			name:     "Both at limit is rejected",
			policy:   DefaultLimitPolicy(),
			rate:     192000,
			channels: 8,
			want:     false,
		},
		{
			name:     "Rate below limit passes regardless of channels",
			policy:   DefaultLimitPolicy(),
			rate:     176400,
			channels: 8,
			want:     true,
		},
		{
			name:     "Channels below limit pass regardless of rate",
			policy:   DefaultLimitPolicy(),
			rate:     384000,
			channels: 2,
			want:     true,
		},
		{
			name:     "Both above limit is rejected",
			policy:   DefaultLimitPolicy(),
			rate:     384000,
			channels: 8,
			want:     false,
		},
		{
			name:     "Explicit rate list disables the gate",
			policy:   LimitPolicy{RatesAreDefault: false, ChannelsAreDefault: true, MaxRate: MaxRate, MaxChannels: MaxChannels},
			rate:     384000,
			channels: 8,
			want:     true,
		},
		{
			name:     "Explicit channel list disables the gate",
			policy:   LimitPolicy{RatesAreDefault: true, ChannelsAreDefault: false, MaxRate: MaxRate, MaxChannels: MaxChannels},
			rate:     384000,
			channels: 8,
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.accepts(tt.rate, tt.channels))
		})
	}
}

func TestCandidatesGateFiltersGroups(t *testing.T) {
	// 200000 Hz with the default limits only survives when paired with a
	// channel count under the limit.
	gated := NewCandidates([]int{200000}, []int{8}, DefaultLimitPolicy()).Slice()
	assert.Empty(t, gated)

	open := NewCandidates([]int{200000}, []int{2}, DefaultLimitPolicy()).Slice()
	assert.NotEmpty(t, open)
	for _, d := range open {
		assert.Equal(t, 200000, d.Rate)
		assert.Equal(t, 2, d.Channels)
	}
}

func TestCandidatesDeterministic(t *testing.T) {
	c := NewCandidates(DefaultRates, DefaultChannels, DefaultLimitPolicy())
	first := c.Slice()
	second := c.Slice()
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestCandidatesRestartableAfterEarlyStop(t *testing.T) {
	c := NewCandidates([]int{44100, 48000}, []int{1, 2}, DefaultLimitPolicy())

	var partial []Descriptor
	c.Each(func(d Descriptor) bool {
		partial = append(partial, d)
		return len(partial) < 5
	})
	require.Len(t, partial, 5)

	full := c.Slice()
	require.Greater(t, len(full), 5)
	assert.Equal(t, full[:5], partial)
}

func TestCandidatesStereoSequence(t *testing.T) {
	// One rate, stereo only. Masks are curated, sequential (same bits) and
	// zero; mono/stereo descriptors with the canonical mask are immediately
	// followed by their legacy PCM twin.
	got := NewCandidates([]int{44100}, []int{2}, DefaultLimitPolicy()).Slice()

	// 4 bit pairs x (3 masks + 2 short PCM twins)
	require.Len(t, got, 20)

	perPair := len(got) / len(BitPairs)
	for i, pair := range BitPairs {
		block := got[i*perPair : (i+1)*perPair]
		want := []Descriptor{
			{Rate: 44100, Channels: 2, ValidBits: pair.Valid, StoreBits: pair.Store, ChannelMask: 0x3, Variant: Extensible},
			{Rate: 44100, Channels: 2, ValidBits: pair.Valid, StoreBits: pair.Store, ChannelMask: 0x3, Variant: ShortPcm},
			{Rate: 44100, Channels: 2, ValidBits: pair.Valid, StoreBits: pair.Store, ChannelMask: 0x3, Variant: Extensible},
			{Rate: 44100, Channels: 2, ValidBits: pair.Valid, StoreBits: pair.Store, ChannelMask: 0x3, Variant: ShortPcm},
			{Rate: 44100, Channels: 2, ValidBits: pair.Valid, StoreBits: pair.Store, ChannelMask: 0x0, Variant: Extensible},
		}
		assert.Equal(t, want, block)
	}
}

func TestCandidatesNoShortPcmAboveStereo(t *testing.T) {
	got := NewCandidates([]int{48000}, []int{4, 6, 8}, DefaultLimitPolicy()).Slice()
	require.NotEmpty(t, got)
	for _, d := range got {
		assert.Equal(t, Extensible, d.Variant)
	}
}

func TestCandidatesOrdering(t *testing.T) {
	// rate is the outermost loop, channel count the next one in
	got := NewCandidates([]int{48000, 44100}, []int{2, 1}, DefaultLimitPolicy()).Slice()
	require.NotEmpty(t, got)

	assert.Equal(t, 48000, got[0].Rate)
	assert.Equal(t, 2, got[0].Channels)
	assert.Equal(t, 44100, got[len(got)-1].Rate)
	assert.Equal(t, 1, got[len(got)-1].Channels)

	lastRateSwitch := 0
	for i := 1; i < len(got); i++ {
		if got[i].Rate != got[i-1].Rate {
			lastRateSwitch++
		}
	}
	assert.Equal(t, 1, lastRateSwitch)
}

func TestCandidatesSkipMalformedEntries(t *testing.T) {
	got := NewCandidates([]int{-1, 0, 44100}, []int{0, 2}, DefaultLimitPolicy()).Slice()
	require.NotEmpty(t, got)
	for _, d := range got {
		assert.Equal(t, 44100, d.Rate)
		assert.Equal(t, 2, d.Channels)
	}

	assert.Empty(t, NewCandidates(nil, []int{2}, DefaultLimitPolicy()).Slice())
	assert.Empty(t, NewCandidates([]int{44100}, nil, DefaultLimitPolicy()).Slice())
}

func TestCandidatesAllValid(t *testing.T) {
	for _, d := range NewCandidates(DefaultRates, DefaultChannels, DefaultLimitPolicy()).Slice() {
		require.NoErrorf(t, d.Validate(), "generated descriptor %s", d)
	}
}
