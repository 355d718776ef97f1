//go:build !windows

// Non-Windows builds get stub implementations so the rest of the module
// still compiles and tests run anywhere; every entry point reports
// ErrUnsupportedPlatform.
package wasapi

import (
	"context"

	"github.com/exaudio/exaudio/internal/device"
	"github.com/exaudio/exaudio/internal/format"
	"github.com/exaudio/exaudio/internal/stream"
)

func Initialize() error {
	return device.ErrUnsupportedPlatform
}

type Backend struct{}

func NewBackend() (*Backend, error) {
	return nil, device.ErrUnsupportedPlatform
}

func (b *Backend) Devices() ([]device.Info, error) {
	return nil, device.ErrUnsupportedPlatform
}

func (b *Backend) Device(id string) (device.Info, error) {
	return device.Info{}, device.ErrUnsupportedPlatform
}

func (b *Backend) OpenRender(id string, d format.Descriptor, bufferBytes int) (*stream.PlayLine, error) {
	return nil, device.ErrUnsupportedPlatform
}

func (b *Backend) OpenCapture(id string, d format.Descriptor, bufferBytes int) (*stream.CaptureLine, error) {
	return nil, device.ErrUnsupportedPlatform
}

type Probe struct{}

func (b *Backend) NewProbe(id string) (*Probe, error) {
	return nil, device.ErrUnsupportedPlatform
}

func (p *Probe) Release() {}

func (p *Probe) Supports(ctx context.Context, d format.Descriptor) (bool, error) {
	return false, device.ErrUnsupportedPlatform
}
