//go:build !windows

package wasapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/exaudio/exaudio/internal/device"
	"github.com/exaudio/exaudio/internal/format"
)

func TestStubReportsUnsupportedPlatform(t *testing.T) {
	assert.ErrorIs(t, Initialize(), device.ErrUnsupportedPlatform)

	_, err := NewBackend()
	assert.ErrorIs(t, err, device.ErrUnsupportedPlatform)

	b := &Backend{}
	_, err = b.Devices()
	assert.ErrorIs(t, err, device.ErrUnsupportedPlatform)
	_, err = b.Device("0")
	assert.ErrorIs(t, err, device.ErrUnsupportedPlatform)
	_, err = b.NewProbe("0")
	assert.ErrorIs(t, err, device.ErrUnsupportedPlatform)
	_, err = b.OpenRender("0", format.Descriptor{}, 0)
	assert.ErrorIs(t, err, device.ErrUnsupportedPlatform)
	_, err = b.OpenCapture("0", format.Descriptor{}, 0)
	assert.ErrorIs(t, err, device.ErrUnsupportedPlatform)

	p := &Probe{}
	_, err = p.Supports(context.Background(), format.Descriptor{})
	assert.ErrorIs(t, err, device.ErrUnsupportedPlatform)
}
