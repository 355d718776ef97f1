package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClockTrackerSteadyCadence(t *testing.T) {
	tr := NewClockTracker("render")
	frame := 0.03

	dev := 0.5
	for i := 0; i < 10; i++ {
		assert.False(t, tr.EventMissing(dev, frame))
		dev += frame
	}
}

func TestClockTrackerDetectsMissedEvent(t *testing.T) {
	tr := NewClockTracker("render")
	frame := 0.03

	assert.False(t, tr.EventMissing(1.00, frame))
	// the device clock jumped two periods while only one period of frame
	// time was accounted for
	assert.True(t, tr.EventMissing(1.06, frame))

	// detection resets the tracker, so the next reading starts fresh
	assert.False(t, tr.EventMissing(1.09, frame))
	assert.False(t, tr.EventMissing(1.12, frame))
}

func TestClockTrackerIgnoresZeroReadings(t *testing.T) {
	tr := NewClockTracker("capture")
	frame := 0.03

	assert.False(t, tr.EventMissing(1.00, frame))
	// a zero position cannot be told from a failed query; the frame time
	// is banked instead of compared
	assert.False(t, tr.EventMissing(0, frame))
	assert.False(t, tr.EventMissing(0, frame))
	// three periods of frame time are now accounted for, matching the
	// clock advance, so nothing was missed
	assert.False(t, tr.EventMissing(1.09, frame))
}

func TestClockTrackerZeroBeforeFirstReading(t *testing.T) {
	tr := NewClockTracker("capture")
	assert.False(t, tr.EventMissing(0, 0.03))
	assert.False(t, tr.EventMissing(0.5, 0.03))
	assert.False(t, tr.EventMissing(0.53, 0.03))
}

func TestClockTrackerReset(t *testing.T) {
	tr := NewClockTracker("render")
	frame := 0.03

	assert.False(t, tr.EventMissing(1.00, frame))
	tr.Reset()
	// a huge jump right after a reset is not comparable to anything
	assert.False(t, tr.EventMissing(9.00, frame))
	assert.False(t, tr.EventMissing(9.03, frame))
}
