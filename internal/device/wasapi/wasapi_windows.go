//go:build windows

// Package wasapi is the Windows backend: COM plumbing for endpoint
// enumeration and the exclusive-mode format probe, built on go-wca.
package wasapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"unsafe"

	"github.com/go-ole/go-ole"
	"github.com/moutend/go-wca/pkg/wca"

	"github.com/exaudio/exaudio/internal/device"
	"github.com/exaudio/exaudio/internal/format"
	"github.com/exaudio/exaudio/internal/logger"
)

const (
	formatTagPCM        uint16 = 0x0001
	formatTagExtensible uint16 = 0xFFFE

	hrSFalse            uintptr = 0x00000001
	hrRPCChangedMode    uintptr = 0x80010106
	hrUnsupportedFormat uintptr = 0x88890008
)

// waveFormatExtensible is the native 40-byte WAVEFORMATEXTENSIBLE layout.
// go-wca only ships WAVEFORMATEX, and the base header cannot be embedded
// here: the native struct is packed to 18 bytes while the Go struct pads
// to 20, which would shift Samples, the mask and SubFormat. Keeping the
// fields flat puts SubFormat at offset 24 as the device expects.
type waveFormatExtensible struct {
	WFormatTag      uint16
	NChannels       uint16
	NSamplesPerSec  uint32
	NAvgBytesPerSec uint32
	NBlockAlign     uint16
	WBitsPerSample  uint16
	CbSize          uint16
	Samples         uint16
	DwChannelMask   uint32
	SubFormat       ole.GUID
}

var subtypePCM = ole.NewGUID("{00000001-0000-0010-8000-00AA00389B71}")

// Initialize enters the single-threaded apartment for the calling
// goroutine. Already-initialized results (S_FALSE, or a different apartment
// mode picked by the host) are tolerated, matching how hosts that embed
// this library behave.
func Initialize() error {
	err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED)
	if err == nil {
		return nil
	}
	var oleErr *ole.OleError
	if errors.As(err, &oleErr) {
		switch oleErr.Code() {
		case hrSFalse:
			logger.Debug("thread already initialized in STA mode")
			return nil
		case hrRPCChangedMode:
			logger.Warn("thread already initialized in a non-STA mode, continuing")
			return nil
		}
	}
	return fmt.Errorf("CoInitializeEx failed: %w", err)
}

// Backend enumerates WASAPI endpoints and opens probes against them.
type Backend struct{}

func NewBackend() (*Backend, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	return &Backend{}, nil
}

// Devices lists all active endpoints, render collection first, with
// collection indexes as IDs.
func (b *Backend) Devices() ([]device.Info, error) {
	var infos []device.Info
	idx := 0
	for _, dir := range []device.Direction{device.Render, device.Capture} {
		coll, err := endpointCollection(dir)
		if err != nil {
			return nil, err
		}
		count, err := collectionCount(coll)
		if err != nil {
			coll.Release()
			return nil, err
		}
		for i := uint32(0); i < count; i++ {
			info, err := endpointInfo(coll, i, dir)
			if err != nil {
				coll.Release()
				return nil, err
			}
			info.ID = strconv.Itoa(idx)
			infos = append(infos, info)
			idx++
		}
		coll.Release()
	}
	return infos, nil
}

// Device resolves one endpoint by its collection index ID.
func (b *Backend) Device(id string) (device.Info, error) {
	infos, err := b.Devices()
	if err != nil {
		return device.Info{}, err
	}
	for _, info := range infos {
		if info.ID == id {
			return info, nil
		}
	}
	return device.Info{}, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, id)
}

// Probe holds an activated IAudioClient and answers exclusive-mode
// format-support queries on it. Not safe for concurrent use; exclusive
// negotiation state inside the device is not either.
type Probe struct {
	client  *wca.IAudioClient
	mmd     *wca.IMMDevice
	devName string
}

// NewProbe activates an audio client on the endpoint with the given ID.
// Callers own the probe exclusively for the negotiation run and must
// Release it afterwards.
func (b *Backend) NewProbe(id string) (*Probe, error) {
	info, err := b.Device(id)
	if err != nil {
		return nil, err
	}
	mmd, err := endpointAt(info)
	if err != nil {
		return nil, err
	}
	var client *wca.IAudioClient
	if err := mmd.Activate(wca.IID_IAudioClient, wca.CLSCTX_ALL, nil, &client); err != nil {
		mmd.Release()
		return nil, fmt.Errorf("failed to activate audio client: %w", err)
	}
	return &Probe{client: client, mmd: mmd, devName: info.Name}, nil
}

func (p *Probe) Release() {
	if p.client != nil {
		p.client.Release()
		p.client = nil
	}
	if p.mmd != nil {
		p.mmd.Release()
		p.mmd = nil
	}
}

// Supports asks the device whether the descriptor can be opened
// exclusively. An unsupported-format result is a normal negative answer;
// any other COM failure is reported as a probe error.
func (p *Probe) Supports(ctx context.Context, d format.Descriptor) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	wfx, release := waveFormat(d)
	defer release()
	err := p.client.IsFormatSupported(wca.AUDCLNT_SHAREMODE_EXCLUSIVE, wfx, nil)
	if err == nil {
		logger.Debug("device supports format",
			logger.String("device", p.devName),
			logger.String("descriptor", d.String()))
		return true, nil
	}
	var oleErr *ole.OleError
	if errors.As(err, &oleErr) && oleErr.Code() == hrUnsupportedFormat {
		logger.Trace("device rejected format",
			logger.String("device", p.devName),
			logger.String("descriptor", d.String()))
		return false, nil
	}
	return false, fmt.Errorf("IsFormatSupported failed: %w", err)
}

// waveFormat builds the wire header for one descriptor: a
// WAVEFORMATEXTENSIBLE with the explicit channel mask, or the legacy PCM
// header for the short variant.
func waveFormat(d format.Descriptor) (*wca.WAVEFORMATEX, func()) {
	if d.Variant == format.ShortPcm {
		wfx := wca.WAVEFORMATEX{
			WFormatTag:      formatTagPCM,
			NChannels:       uint16(d.Channels),
			NSamplesPerSec:  uint32(d.Rate),
			NAvgBytesPerSec: uint32(d.Rate * d.FrameBytes()),
			NBlockAlign:     uint16(d.FrameBytes()),
			WBitsPerSample:  uint16(d.StoreBits),
			CbSize:          0,
		}
		return &wfx, func() {}
	}
	ext := &waveFormatExtensible{
		WFormatTag:      formatTagExtensible,
		NChannels:       uint16(d.Channels),
		NSamplesPerSec:  uint32(d.Rate),
		NAvgBytesPerSec: uint32(d.Rate * d.FrameBytes()),
		NBlockAlign:     uint16(d.FrameBytes()),
		WBitsPerSample:  uint16(d.StoreBits),
		CbSize:          22,
		Samples:         uint16(d.ValidBits),
		DwChannelMask:   d.ChannelMask,
		SubFormat:       *subtypePCM,
	}
	return (*wca.WAVEFORMATEX)(unsafe.Pointer(ext)), func() {
		// keep ext alive until the COM call returned
		_ = ext
	}
}

func endpointCollection(dir device.Direction) (*wca.IMMDeviceCollection, error) {
	var mmde *wca.IMMDeviceEnumerator
	if err := wca.CoCreateInstance(wca.CLSID_MMDeviceEnumerator, 0, wca.CLSCTX_ALL, wca.IID_IMMDeviceEnumerator, &mmde); err != nil {
		return nil, fmt.Errorf("failed to create device enumerator: %w", err)
	}
	defer mmde.Release()

	flow := uint32(wca.ERender)
	if dir == device.Capture {
		flow = uint32(wca.ECapture)
	}
	var coll *wca.IMMDeviceCollection
	if err := mmde.EnumAudioEndpoints(flow, wca.DEVICE_STATE_ACTIVE, &coll); err != nil {
		return nil, fmt.Errorf("failed to enumerate %s endpoints: %w", dir, err)
	}
	return coll, nil
}

func collectionCount(coll *wca.IMMDeviceCollection) (uint32, error) {
	var count uint32
	if err := coll.GetCount(&count); err != nil {
		return 0, fmt.Errorf("failed to count endpoints: %w", err)
	}
	return count, nil
}

func endpointInfo(coll *wca.IMMDeviceCollection, i uint32, dir device.Direction) (device.Info, error) {
	var mmd *wca.IMMDevice
	if err := coll.Item(i, &mmd); err != nil {
		return device.Info{}, fmt.Errorf("failed to get endpoint %d: %w", i, err)
	}
	defer mmd.Release()

	name, err := endpointProperty(mmd, wca.PKEY_Device_FriendlyName)
	if err != nil {
		return device.Info{}, err
	}
	desc, err := endpointProperty(mmd, wca.PKEY_Device_DeviceDesc)
	if err != nil {
		desc = name
	}
	return device.Info{
		Name:        "EXCL: " + name,
		Description: desc,
		Direction:   dir,
		MaxLines:    1,
	}, nil
}

func endpointProperty(mmd *wca.IMMDevice, key wca.PROPERTYKEY) (string, error) {
	var ps *wca.IPropertyStore
	if err := mmd.OpenPropertyStore(wca.STGM_READ, &ps); err != nil {
		return "", fmt.Errorf("failed to open property store: %w", err)
	}
	defer ps.Release()

	var pv wca.PROPVARIANT
	if err := ps.GetValue(&key, &pv); err != nil {
		return "", fmt.Errorf("failed to read endpoint property: %w", err)
	}
	return pv.String(), nil
}

// endpointAt reopens the IMMDevice behind an Info. The collection index is
// recomputed because Info IDs span both collections.
func endpointAt(info device.Info) (*wca.IMMDevice, error) {
	idx, err := strconv.Atoi(info.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, info.ID)
	}
	renderColl, err := endpointCollection(device.Render)
	if err != nil {
		return nil, err
	}
	renderCount, err := collectionCount(renderColl)
	if err != nil {
		renderColl.Release()
		return nil, err
	}
	coll, collIdx := renderColl, uint32(idx)
	if uint32(idx) >= renderCount {
		renderColl.Release()
		coll, err = endpointCollection(device.Capture)
		if err != nil {
			return nil, err
		}
		collIdx = uint32(idx) - renderCount
	}
	defer coll.Release()

	var mmd *wca.IMMDevice
	if err := coll.Item(collIdx, &mmd); err != nil {
		return nil, fmt.Errorf("%w: %s", device.ErrDeviceNotFound, info.ID)
	}
	return mmd, nil
}
