package stream

import "github.com/exaudio/exaudio/internal/logger"

// ClockTracker detects missed device events by comparing how far the
// device clock advanced against the frame time the caller accounted for.
// One event corresponds to one period of frame time; when the device clock
// grew significantly more than that, an event was missed and the stream
// should be reset.
type ClockTracker struct {
	prefix       string
	prevDevTime  float64
	hasPrev      bool
	accFrameTime float64
}

func NewClockTracker(prefix string) *ClockTracker {
	return &ClockTracker{prefix: prefix}
}

func (t *ClockTracker) Reset() {
	t.hasPrev = false
	t.prevDevTime = 0
	t.accFrameTime = 0
}

// EventMissing records one event with the given device-clock reading (in
// seconds) and the frame time the event carried, and reports whether a
// prior event must have been missed.
//
// A zero device time is ambiguous: GetPosition returns S_FALSE with a zero
// position and that cannot be told apart from a true zero, so the reading
// is skipped and its frame time accumulated for the next check.
func (t *ClockTracker) EventMissing(devTime, frameTime float64) bool {
	if devTime == 0 {
		logger.Trace("clock position zero (likely S_FALSE), ignoring",
			logger.String("line", t.prefix))
		if t.hasPrev {
			t.accFrameTime += frameTime
		}
		return false
	}

	if t.hasPrev {
		elapsedDev := devTime - t.prevDevTime
		elapsedFrames := t.accFrameTime + frameTime
		if elapsedFrames > 0 && elapsedDev > elapsedFrames+0.5*frameTime {
			logger.Warn("missed device event",
				logger.String("line", t.prefix),
				logger.Float64("device_elapsed_s", elapsedDev),
				logger.Float64("expected_elapsed_s", elapsedFrames))
			t.Reset()
			return true
		}
	}
	t.prevDevTime = devTime
	t.hasPrev = true
	// prevDevTime now holds the current reading, so the next check spans a
	// single event time and the accumulator must restart.
	t.accFrameTime = 0
	return false
}
