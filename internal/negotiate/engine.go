// Package negotiate drives exclusive-mode format discovery for one device:
// it walks the ordered candidate stream, asks the device about each
// descriptor and assembles the confirmed subset into a format table.
package negotiate

import (
	"context"

	"github.com/exaudio/exaudio/internal/format"
	"github.com/exaudio/exaudio/internal/logger"
)

// Probe answers whether a device handle accepts one concrete format in
// exclusive mode. Implementations wrap IsFormatSupported-style calls; tests
// substitute deterministic stubs.
type Probe interface {
	// Supports reports whether the descriptor can be opened exclusively.
	// A returned error means the query itself failed (device busy, handle
	// gone); the engine treats that the same as "unsupported".
	Supports(ctx context.Context, d format.Descriptor) (bool, error)
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context, d format.Descriptor) (bool, error)

func (f ProbeFunc) Supports(ctx context.Context, d format.Descriptor) (bool, error) {
	return f(ctx, d)
}

// Negotiate probes every candidate for the given hints against one device
// and returns the table of confirmed formats.
//
// Probing is strictly sequential: exclusive-mode queries share negotiation
// state inside the device, so concurrent probes against one handle would
// race. A failed or errored probe is the expected common case and never
// aborts the run; it only means that candidate is unsupported. An empty
// candidate stream (malformed hints) or a device that rejects everything
// both yield an empty table, which is the caller's decision to act on.
func Negotiate(ctx context.Context, probe Probe, rates, channels []int, policy format.LimitPolicy) *format.Table {
	table := format.NewTable()
	candidates := format.NewCandidates(rates, channels, policy)

	probed := 0
	candidates.Each(func(d format.Descriptor) bool {
		probed++
		ok, err := probe.Supports(ctx, d)
		if err != nil {
			// Transient probe failures count as unsupported; retry policy,
			// if any, belongs to the owner of the device handle.
			logger.Debug("probe failed, treating candidate as unsupported",
				logger.String("descriptor", d.String()),
				logger.Error(err))
			return true
		}
		if !ok {
			return true
		}
		if table.Add(d) {
			logger.Debug("device confirmed format",
				logger.String("descriptor", d.String()))
		}
		return true
	})

	logger.Info("format negotiation finished",
		logger.Int("probed", probed),
		logger.Int("confirmed", table.Len()))
	return table
}
