//go:build windows

package wasapi

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/go-ole/go-ole"
	"github.com/moutend/go-wca/pkg/wca"

	"github.com/exaudio/exaudio/internal/format"
	"github.com/exaudio/exaudio/internal/logger"
	"github.com/exaudio/exaudio/internal/stream"
)

const hrBufferSizeNotAligned uintptr = 0x88890019

// openClient activates an exclusive-mode audio client on the endpoint and
// initializes it with the chunk period derived from the descriptor. When
// the device insists on its own buffer alignment the client is reopened
// once with the corrected period.
func (b *Backend) openClient(id string, d format.Descriptor, bufferBytes int) (*wca.IAudioClient, *wca.IMMDevice, stream.Geometry, error) {
	info, err := b.Device(id)
	if err != nil {
		return nil, nil, stream.Geometry{}, err
	}
	mmd, err := endpointAt(info)
	if err != nil {
		return nil, nil, stream.Geometry{}, err
	}

	var client *wca.IAudioClient
	if err := mmd.Activate(wca.IID_IAudioClient, wca.CLSCTX_ALL, nil, &client); err != nil {
		mmd.Release()
		return nil, nil, stream.Geometry{}, fmt.Errorf("failed to activate audio client: %w", err)
	}

	var defaultPeriod, minPeriod wca.REFERENCE_TIME
	if err := client.GetDevicePeriod(&defaultPeriod, &minPeriod); err != nil {
		client.Release()
		mmd.Release()
		return nil, nil, stream.Geometry{}, fmt.Errorf("failed to query device period: %w", err)
	}

	geo := stream.NewGeometry(d.Rate, d.FrameBytes(), d.Channels, bufferBytes, int64(minPeriod))
	wfx, release := waveFormat(d)
	defer release()

	period := wca.REFERENCE_TIME(geo.PeriodHNS)
	err = client.Initialize(wca.AUDCLNT_SHAREMODE_EXCLUSIVE, 0, period, period, wfx, nil)
	if isHR(err, hrBufferSizeNotAligned) {
		// the device wants a period matching its own buffer alignment;
		// reopen with the period implied by the returned buffer size
		var alignedFrames uint32
		if err := client.GetBufferSize(&alignedFrames); err != nil {
			client.Release()
			mmd.Release()
			return nil, nil, stream.Geometry{}, fmt.Errorf("failed to query aligned buffer size: %w", err)
		}
		client.Release()
		if err := mmd.Activate(wca.IID_IAudioClient, wca.CLSCTX_ALL, nil, &client); err != nil {
			mmd.Release()
			return nil, nil, stream.Geometry{}, fmt.Errorf("failed to reactivate audio client: %w", err)
		}
		period = wca.REFERENCE_TIME(int64(alignedFrames)*10_000_000/int64(d.Rate) + 1)
		geo.PeriodHNS = int64(period)
		geo.ChunkFrames = int(alignedFrames)
		logger.Debug("realigned exclusive period",
			logger.Uint64("frames", uint64(alignedFrames)),
			logger.Int("period_hns", int(period)))
		err = client.Initialize(wca.AUDCLNT_SHAREMODE_EXCLUSIVE, 0, period, period, wfx, nil)
	}
	if err != nil {
		client.Release()
		mmd.Release()
		return nil, nil, stream.Geometry{}, fmt.Errorf("failed to initialize exclusive stream: %w", err)
	}
	return client, mmd, geo, nil
}

func isHR(err error, hr uintptr) bool {
	var oleErr *ole.OleError
	return errors.As(err, &oleErr) && oleErr.Code() == hr
}

// renderEndpoint drives one exclusive-mode render buffer with a timer
// paced loop.
type renderEndpoint struct {
	client       *wca.IAudioClient
	rc           *wca.IAudioRenderClient
	mmd          *wca.IMMDevice
	frameBytes   int
	bufferFrames uint32
	period       time.Duration
}

// OpenRender opens the endpoint exclusively with the given confirmed
// descriptor and wraps it into a play line.
func (b *Backend) OpenRender(id string, d format.Descriptor, bufferBytes int) (*stream.PlayLine, error) {
	client, mmd, geo, err := b.openClient(id, d, bufferBytes)
	if err != nil {
		return nil, err
	}
	var bufferFrames uint32
	if err := client.GetBufferSize(&bufferFrames); err != nil {
		client.Release()
		mmd.Release()
		return nil, fmt.Errorf("failed to query buffer size: %w", err)
	}
	var rc *wca.IAudioRenderClient
	if err := client.GetService(wca.IID_IAudioRenderClient, &rc); err != nil {
		client.Release()
		mmd.Release()
		return nil, fmt.Errorf("failed to get render service: %w", err)
	}
	ep := &renderEndpoint{
		client:       client,
		rc:           rc,
		mmd:          mmd,
		frameBytes:   d.FrameBytes(),
		bufferFrames: bufferFrames,
		period:       time.Duration(geo.PeriodHNS*100) * time.Nanosecond,
	}
	return stream.NewPlayLine(ep, geo), nil
}

func (e *renderEndpoint) WriteChunk(p []byte) error {
	remaining := p
	for len(remaining) > 0 {
		var padding uint32
		if err := e.client.GetCurrentPadding(&padding); err != nil {
			return fmt.Errorf("failed to query buffer padding: %w", err)
		}
		free := e.bufferFrames - padding
		if free == 0 {
			time.Sleep(e.period / 2)
			continue
		}
		frames := uint32(len(remaining) / e.frameBytes)
		if frames > free {
			frames = free
		}
		var data *byte
		if err := e.rc.GetBuffer(frames, &data); err != nil {
			return fmt.Errorf("failed to get render buffer: %w", err)
		}
		n := int(frames) * e.frameBytes
		copy(unsafe.Slice(data, n), remaining[:n])
		if err := e.rc.ReleaseBuffer(frames, 0); err != nil {
			return fmt.Errorf("failed to release render buffer: %w", err)
		}
		remaining = remaining[n:]
	}
	return nil
}

func (e *renderEndpoint) Start() error {
	return e.client.Start()
}

func (e *renderEndpoint) Stop() error {
	return e.client.Stop()
}

func (e *renderEndpoint) Close() error {
	e.rc.Release()
	e.client.Release()
	e.mmd.Release()
	return nil
}

// captureEndpoint pulls packets off an exclusive-mode capture buffer.
type captureEndpoint struct {
	client     *wca.IAudioClient
	cc         *wca.IAudioCaptureClient
	mmd        *wca.IMMDevice
	frameBytes int
	period     time.Duration
	clock      *stream.ClockTracker
	frameTime  float64
	leftover   []byte
}

// OpenCapture opens the endpoint exclusively with the given confirmed
// descriptor and wraps it into a capture line.
func (b *Backend) OpenCapture(id string, d format.Descriptor, bufferBytes int) (*stream.CaptureLine, error) {
	client, mmd, geo, err := b.openClient(id, d, bufferBytes)
	if err != nil {
		return nil, err
	}
	var cc *wca.IAudioCaptureClient
	if err := client.GetService(wca.IID_IAudioCaptureClient, &cc); err != nil {
		client.Release()
		mmd.Release()
		return nil, fmt.Errorf("failed to get capture service: %w", err)
	}
	ep := &captureEndpoint{
		client:     client,
		cc:         cc,
		mmd:        mmd,
		frameBytes: d.FrameBytes(),
		period:     time.Duration(geo.PeriodHNS*100) * time.Nanosecond,
		clock:      stream.NewClockTracker("capture"),
		frameTime:  float64(geo.ChunkFrames) / float64(d.Rate),
	}
	return stream.NewCaptureLine(ep, geo), nil
}

func (e *captureEndpoint) ReadChunk(p []byte) (int, error) {
	n := copy(p, e.leftover)
	e.leftover = e.leftover[n:]
	if n > 0 {
		return n, nil
	}

	var packetFrames uint32
	if err := e.cc.GetNextPacketSize(&packetFrames); err != nil {
		return 0, fmt.Errorf("failed to query packet size: %w", err)
	}
	if packetFrames == 0 {
		time.Sleep(e.period / 2)
		return 0, nil
	}

	var data *byte
	var frames, flags uint32
	var devPosition, qpcPosition uint64
	if err := e.cc.GetBuffer(&data, &frames, &flags, &devPosition, &qpcPosition); err != nil {
		return 0, fmt.Errorf("failed to get capture buffer: %w", err)
	}
	total := int(frames) * e.frameBytes
	got := unsafe.Slice(data, total)

	// qpc positions are 100ns ticks; a jump larger than one period means
	// the device overwrote packets we never saw
	if e.clock.EventMissing(float64(qpcPosition)/1e7, e.frameTime) {
		logger.Warn("capture stream fell behind the device clock",
			logger.Uint64("device_frames", devPosition))
	}

	n = copy(p, got)
	if n < total {
		e.leftover = append(e.leftover[:0], got[n:]...)
	}
	if err := e.cc.ReleaseBuffer(frames); err != nil {
		return n, fmt.Errorf("failed to release capture buffer: %w", err)
	}
	return n, nil
}

func (e *captureEndpoint) Start() error {
	return e.client.Start()
}

func (e *captureEndpoint) Stop() error {
	return e.client.Stop()
}

func (e *captureEndpoint) Close() error {
	e.cc.Release()
	e.client.Release()
	e.mmd.Release()
	return nil
}
