package stream

import (
	"sync/atomic"
	"time"

	"github.com/exaudio/exaudio/internal/logger"
)

// CaptureEndpoint is the device side of a capture line. ReadChunk blocks
// until a device period is available and fills p with at most one period
// of frames.
type CaptureEndpoint interface {
	ReadChunk(p []byte) (int, error)
	Start() error
	Stop() error
}

// capturedChunk carries one device period plus its sequence number, so the
// reader can tell when the pump had to drop periods because the reader
// fell behind.
type capturedChunk struct {
	nbr  uint64
	data []byte
}

// CaptureLine adapts the fixed chunk cadence of an exclusive-mode capture
// endpoint to arbitrary-length reads. The pump goroutine numbers every
// chunk it pulls off the device; dropped and flushed chunks show up as
// gaps in the numbering, which Read reports.
//
// Like PlayLine, the caller side is owned by a single goroutine.
type CaptureLine struct {
	ep  CaptureEndpoint
	geo Geometry

	rx   chan capturedChunk
	pool chan []byte

	leftovers    []byte
	leftoversPos int
	lastChunkNbr uint64
	flushedCnt   uint64

	startSig atomic.Bool
	stopSig  atomic.Bool
	exitSig  atomic.Bool
	done     chan struct{}
}

func NewCaptureLine(ep CaptureEndpoint, geo Geometry) *CaptureLine {
	l := &CaptureLine{
		ep:        ep,
		geo:       geo,
		rx:        make(chan capturedChunk, geo.Chunks),
		pool:      make(chan []byte, geo.Chunks+1),
		leftovers: make([]byte, geo.ChunkBytes()),
		done:      make(chan struct{}),
	}
	// preallocate with headroom; exclusive-mode periods can come back a
	// frame or two larger than the estimate after alignment
	for i := 0; i < cap(l.pool); i++ {
		l.pool <- make([]byte, geo.ChunkBytes()*3/2)
	}
	go l.pump()
	return l
}

// Read fills p completely, blocking for device periods as needed. Gaps in
// the chunk numbering (reader fell behind, or Flush discarded periods)
// are logged but do not fail the read.
func (l *CaptureLine) Read(p []byte) (int, error) {
	dataLen := len(p)
	readLen := 0
	expected := l.lastChunkNbr

	if l.leftoversPos > 0 {
		n := l.leftoversPos
		if n > dataLen {
			n = dataLen
		}
		copy(p[:n], l.leftovers[:n])
		if n < l.leftoversPos {
			copy(l.leftovers, l.leftovers[n:l.leftoversPos])
		}
		l.leftoversPos -= n
		readLen = n
	}

	for readLen < dataLen {
		var c capturedChunk
		select {
		case c = <-l.rx:
		case <-l.done:
			l.lastChunkNbr = expected
			return readLen, ErrLineClosed
		}

		expected += 1 + l.flushedCnt
		l.flushedCnt = 0
		if c.nbr > expected {
			logger.Warn("capture chunks dropped",
				logger.Uint64("missed", c.nbr-expected))
			expected = c.nbr
		}

		avail := dataLen - readLen
		if len(c.data) <= avail {
			copy(p[readLen:], c.data)
			readLen += len(c.data)
		} else {
			copy(p[readLen:], c.data[:avail])
			l.leftoversPos = len(c.data) - avail
			copy(l.leftovers, c.data[avail:])
			readLen = dataLen
		}
		l.pool <- c.data[:cap(c.data)]
	}

	l.lastChunkNbr = expected
	return dataLen, nil
}

// AvailableBytes reports how much can be read right now without blocking.
func (l *CaptureLine) AvailableBytes() int {
	return len(l.rx)*l.geo.ChunkBytes() + l.leftoversPos
}

// BufferBytes reports the total capacity of the interchange buffer.
func (l *CaptureLine) BufferBytes() int {
	return cap(l.rx) * l.geo.ChunkBytes()
}

// BytePosition converts the caller's running read count into a capture
// position by adding everything captured but not yet read.
func (l *CaptureLine) BytePosition(outerPos uint64) uint64 {
	return outerPos + uint64(len(l.rx)*l.geo.ChunkBytes()+l.leftoversPos)
}

func (l *CaptureLine) Start() {
	l.startSig.Store(true)
}

func (l *CaptureLine) Stop() {
	l.stopSig.Store(true)
}

// Drain stops the stream once every captured chunk has been read.
func (l *CaptureLine) Drain() {
	for {
		if len(l.rx) == 0 {
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

// Flush discards every captured chunk not yet read. The discarded count
// feeds into the numbering so the next Read does not report them as
// dropped.
func (l *CaptureLine) Flush() {
	cnt := uint64(0)
	for {
		select {
		case c := <-l.rx:
			l.pool <- c.data[:cap(c.data)]
			cnt++
		default:
			l.leftoversPos = 0
			l.flushedCnt += cnt
			logger.Trace("flushed capture chunks", logger.Uint64("chunks", cnt))
			return
		}
	}
}

// Close shuts the pump down and stops the device stream.
func (l *CaptureLine) Close() error {
	l.exitSig.Store(true)
	<-l.done
	return nil
}

func (l *CaptureLine) pump() {
	defer close(l.done)
	defer closeEndpoint(l.ep)
	running := false
	// numbering starts at 1: lastChunkNbr zero means nothing seen yet
	chunkNbr := uint64(1)
	var saved []byte
	for {
		if l.startSig.CompareAndSwap(true, false) && !running {
			if err := l.ep.Start(); err != nil {
				logger.ErrorLog("failed to start capture endpoint", logger.Error(err))
				return
			}
			running = true
		}
		if l.stopSig.CompareAndSwap(true, false) && running {
			if err := l.ep.Stop(); err != nil {
				logger.ErrorLog("failed to stop capture endpoint", logger.Error(err))
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
		if !running {
			time.Sleep(recvTimeout)
			continue
		}

		buf := saved
		saved = nil
		if buf == nil {
			select {
			case buf = <-l.pool:
			case <-time.After(recvTimeout):
				continue
			}
		}

		n, err := l.ep.ReadChunk(buf)
		if err != nil {
			logger.ErrorLog("capture read failed, stopping line", logger.Error(err))
			l.ep.Stop()
			return
		}
		if n == 0 {
			saved = buf
			continue
		}

		select {
		case l.rx <- capturedChunk{nbr: chunkNbr, data: buf[:n]}:
		default:
			// reader fell behind; drop the period but keep counting so the
			// gap is visible
			logger.Trace("capture buffer full, dropping chunk",
				logger.Uint64("chunk", chunkNbr))
			saved = buf
		}
		chunkNbr++
	}
}
