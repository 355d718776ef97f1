// Package device defines the endpoint abstractions the negotiation and
// streaming layers work against: directions, endpoint descriptions and the
// enumerator interface the platform backend implements.
package device

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceNotFound      = errors.New("audio device not found")
	ErrWrongDirection      = errors.New("operation does not match device direction")
	ErrUnsupportedPlatform = errors.New("exclusive-mode audio is not supported on this platform")
)

// Direction distinguishes playback endpoints from capture endpoints.
type Direction int

const (
	Render Direction = iota
	Capture
)

func (d Direction) String() string {
	switch d {
	case Render:
		return "render"
	case Capture:
		return "capture"
	default:
		return "unknown"
	}
}

// Info describes one audio endpoint. IDs are collection indexes rendered
// as strings, render endpoints first; names carry an "EXCL: " prefix so
// callers can tell the exclusive-mode entries apart from shared-mode ones.
type Info struct {
	ID          string
	Name        string
	Description string
	Direction   Direction
	MaxLines    int
}

func (i Info) String() string {
	return fmt.Sprintf("%s [%s] %s", i.ID, i.Direction, i.Name)
}

// Enumerator lists the endpoints a backend can open.
type Enumerator interface {
	// Devices returns all endpoints, render before capture.
	Devices() ([]Info, error)
	// Device resolves one endpoint by ID.
	Device(id string) (Info, error)
}
