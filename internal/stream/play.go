package stream

import (
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/exaudio/exaudio/internal/logger"
)

var (
	ErrLineClosed = errors.New("stream line is closed")
)

// recvTimeout mirrors the device pump's idle budget: with no data for this
// long the stream is stopped so the device does not replay stale buffers.
const recvTimeout = 5 * time.Millisecond

// drainPoll is how often Drain re-checks the queues.
const drainPoll = 5 * time.Millisecond

// RenderEndpoint is the device side of a playback line. WriteChunk blocks
// until the device is ready for the next period, which is what paces the
// whole line.
//
// Endpoints that also implement io.Closer are closed when their line's
// pump exits.
type RenderEndpoint interface {
	WriteChunk(p []byte) error
	Start() error
	Stop() error
}

func closeEndpoint(ep any) {
	if c, ok := ep.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("endpoint close failed", logger.Error(err))
		}
	}
}

// PlayLine adapts arbitrary-length writes to the fixed chunk cadence of an
// exclusive-mode render endpoint. Writes that do not fill a whole chunk
// accumulate in a leftover buffer; full chunks are handed to the pump
// goroutine over a bounded channel whose capacity is the line's buffer.
//
// The caller side (Write, Drain, Flush, positions) is owned by a single
// goroutine, matching exclusive-mode ownership of the device handle.
type PlayLine struct {
	ep  RenderEndpoint
	geo Geometry

	tx           chan []byte
	leftovers    []byte
	leftoversPos int

	bufferFill atomic.Int64 // bytes sitting in the device buffer
	startSig   atomic.Bool
	stopSig    atomic.Bool
	exitSig    atomic.Bool
	done       chan struct{}
}

func NewPlayLine(ep RenderEndpoint, geo Geometry) *PlayLine {
	l := &PlayLine{
		ep:        ep,
		geo:       geo,
		tx:        make(chan []byte, geo.Chunks),
		leftovers: make([]byte, geo.ChunkBytes()),
		done:      make(chan struct{}),
	}
	go l.pump()
	return l
}

// Write queues p for playback, blocking when the chunk buffer is full.
// It always consumes all of p unless the line is closed.
func (l *PlayLine) Write(p []byte) (int, error) {
	chunkBytes := l.geo.ChunkBytes()
	dataLen := len(p)

	// leftovers plus new data still short of one chunk: just accumulate
	if l.leftoversPos+dataLen < chunkBytes {
		copy(l.leftovers[l.leftoversPos:], p)
		l.leftoversPos += dataLen
		return dataLen, nil
	}

	if l.leftoversPos > 0 {
		chunk := make([]byte, chunkBytes)
		copy(chunk, l.leftovers[:l.leftoversPos])
		fromData := chunkBytes - l.leftoversPos
		copy(chunk[l.leftoversPos:], p[:fromData])
		l.leftoversPos = 0
		if err := l.send(chunk); err != nil {
			return 0, err
		}
		p = p[fromData:]
	}

	for len(p) >= chunkBytes {
		chunk := make([]byte, chunkBytes)
		copy(chunk, p[:chunkBytes])
		if err := l.send(chunk); err != nil {
			return dataLen - len(p), err
		}
		p = p[chunkBytes:]
	}

	if len(p) > 0 {
		copy(l.leftovers, p)
		l.leftoversPos = len(p)
	}
	return dataLen, nil
}

func (l *PlayLine) send(chunk []byte) error {
	select {
	case l.tx <- chunk:
		return nil
	case <-l.done:
		return ErrLineClosed
	}
}

// AvailableBytes reports how much can be written right now without
// blocking.
func (l *PlayLine) AvailableBytes() int {
	return (cap(l.tx) - len(l.tx)) * l.geo.ChunkBytes()
}

// BufferBytes reports the total capacity of the interchange buffer.
func (l *PlayLine) BufferBytes() int {
	return cap(l.tx) * l.geo.ChunkBytes()
}

// BytePosition converts the caller's running write count into a playback
// position by subtracting everything still queued on this side of the
// device.
func (l *PlayLine) BytePosition(outerPos uint64) uint64 {
	queued := uint64(len(l.tx)*l.geo.ChunkBytes() + l.leftoversPos)
	if queued > outerPos {
		return 0
	}
	return outerPos - queued
}

// Start lets the pump start the device stream.
func (l *PlayLine) Start() {
	l.startSig.Store(true)
}

// Stop requests the pump to stop the device stream.
func (l *PlayLine) Stop() {
	l.stopSig.Store(true)
}

// Drain blocks until the device consumed every queued byte, then stops
// the stream.
func (l *PlayLine) Drain() {
	for {
		if len(l.tx) == 0 && l.bufferFill.Load() == 0 {
			l.Stop()
			return
		}
		select {
		case <-l.done:
			return
		case <-time.After(drainPoll):
		}
	}
}

// Flush discards every chunk queued but not yet sent to the device.
func (l *PlayLine) Flush() {
	cnt := 0
	for {
		select {
		case <-l.tx:
			cnt++
		default:
			l.leftoversPos = 0
			logger.Trace("flushed playback chunks", logger.Int("chunks", cnt))
			return
		}
	}
}

// Close shuts the pump down and stops the device stream.
func (l *PlayLine) Close() error {
	l.exitSig.Store(true)
	<-l.done
	return nil
}

func (l *PlayLine) pump() {
	defer close(l.done)
	defer closeEndpoint(l.ep)
	running := false
	for {
		if l.startSig.CompareAndSwap(true, false) && !running {
			if err := l.ep.Start(); err != nil {
				logger.ErrorLog("failed to start render endpoint", logger.Error(err))
				return
			}
			running = true
		}
		if l.stopSig.CompareAndSwap(true, false) && running {
			if err := l.ep.Stop(); err != nil {
				logger.ErrorLog("failed to stop render endpoint", logger.Error(err))
				return
			}
			running = false
		}
		if l.exitSig.Load() {
			if running {
				l.ep.Stop()
			}
			return
		}

		select {
		case chunk := <-l.tx:
			if !running {
				logger.Warn("received chunk on a stopped line, starting automatically")
				if err := l.ep.Start(); err != nil {
					logger.ErrorLog("failed to start render endpoint", logger.Error(err))
					return
				}
				running = true
			}
			l.bufferFill.Store(int64(len(chunk)))
			if err := l.ep.WriteChunk(chunk); err != nil {
				logger.ErrorLog("playback write failed, stopping line", logger.Error(err))
				l.ep.Stop()
				return
			}
			l.bufferFill.Store(0)
		case <-time.After(recvTimeout):
			// no data: stop the stream rather than let the device starve
			if running {
				if err := l.ep.Stop(); err != nil {
					logger.ErrorLog("failed to stop render endpoint", logger.Error(err))
					return
				}
				running = false
			}
		}
	}
}
