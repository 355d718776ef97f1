// Package stream implements the chunked I/O layer wrapped around an opened
// exclusive-mode format: fixed-size chunks exchanged with the device
// goroutine over channels, leftover-byte accounting so callers can read and
// write arbitrary lengths, and position/drain/flush bookkeeping.
//
// The device side is abstracted behind endpoint interfaces so the layer is
// testable without hardware; wiring a real WASAPI render/capture client
// underneath is the platform backend's job.
package stream

import "time"

// hundredNanos per unit conversions; WASAPI periods are expressed in
// 100-nanosecond ticks.
const hnsPerSecond = 10_000_000

// intelHDAAlign is the extra byte alignment IntelHDA controllers require
// on top of frame alignment. Applied for any line with 16 channels or
// fewer, since those may sit on IntelHDA hardware (16 channels is its
// spec maximum).
const intelHDAAlign = 128

// targetPeriod is the period the geometry aims for before alignment.
const targetPeriod = 30 * time.Millisecond

// Geometry fixes the chunk size and chunk count for one opened line.
type Geometry struct {
	PeriodHNS   int64 // aligned device period, 100ns ticks
	ChunkFrames int   // estimated frames per device period
	Chunks      int   // chunk slots in the interchange buffer
	FrameBytes  int
}

// NewGeometry derives the chunk geometry for a line: a period of roughly
// 30 ms, rounded to a whole number of alignment segments and never below
// the device minimum, and enough chunk slots to cover the caller's
// requested buffer size.
func NewGeometry(rate, frameBytes, channels, bufferBytes int, minPeriodHNS int64) Geometry {
	approxHNS := int64(targetPeriod / 100)
	if minPeriodHNS > approxHNS {
		approxHNS = minPeriodHNS
	}

	alignBytes := frameBytes
	if channels <= 16 {
		alignBytes = lcm(frameBytes, intelHDAAlign)
	}
	segmentFrames := alignBytes / frameBytes
	segmentHNS := float64(segmentFrames) * hnsPerSecond / float64(rate)

	segments := int64(float64(approxHNS)/segmentHNS + 0.5)
	periodHNS := int64(float64(segments)*segmentHNS + 0.5)
	if periodHNS < minPeriodHNS {
		periodHNS += int64(segmentHNS)
	}

	chunkFrames := int(int64(rate) * periodHNS / hnsPerSecond)
	chunks := 0
	if chunkFrames > 0 && frameBytes > 0 {
		chunks = bufferBytes / frameBytes / chunkFrames
	}
	if chunks < 1 {
		chunks = 1
	}
	return Geometry{
		PeriodHNS:   periodHNS,
		ChunkFrames: chunkFrames,
		Chunks:      chunks,
		FrameBytes:  frameBytes,
	}
}

// ChunkBytes returns the size of one interchange chunk.
func (g Geometry) ChunkBytes() int {
	return g.ChunkFrames * g.FrameBytes
}

// lowest common multiple via Euclid's gcd
func lcm(a, b int) int {
	x, y := a, b
	if y > x {
		x, y = y, x
	}
	for y != 0 {
		x, y = y, x%y
	}
	return a * b / x
}
