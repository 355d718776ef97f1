package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCapture produces a fixed number of 4-byte periods with sequential
// content, then reports silence.
type fakeCapture struct {
	mu      sync.Mutex
	periods int
	next    byte
	starts  int
	stops   int
}

func (f *fakeCapture) ReadChunk(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.periods == 0 {
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	f.periods--
	for i := 0; i < 4; i++ {
		p[i] = f.next
		f.next++
	}
	return 4, nil
}

func (f *fakeCapture) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return nil
}

func (f *fakeCapture) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func TestCaptureLineReadsSequentially(t *testing.T) {
	ep := &fakeCapture{periods: 6}
	l := NewCaptureLine(ep, testGeometry(4, 8))
	defer l.Close()
	l.Start()

	// 10 bytes spans two whole periods plus half of the third
	buf := make([]byte, 10)
	n, err := l.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 10, n)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, buf)

	// the rest comes out of leftovers and the remaining periods
	buf = make([]byte, 14)
	n, err = l.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 14, n)
	assert.Equal(t, []byte{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23}, buf)
}

func TestCaptureLineLeftoverSmallReads(t *testing.T) {
	ep := &fakeCapture{periods: 1}
	l := NewCaptureLine(ep, testGeometry(4, 8))
	defer l.Close()
	l.Start()

	for want := byte(0); want < 4; want++ {
		one := make([]byte, 1)
		n, err := l.Read(one)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		assert.Equal(t, want, one[0])
	}
}

func TestCaptureLineAvailableAndPosition(t *testing.T) {
	ep := &fakeCapture{periods: 3}
	l := NewCaptureLine(ep, testGeometry(4, 8))
	defer l.Close()
	l.Start()

	// wait for all three periods to arrive in the interchange buffer
	require.Eventually(t, func() bool {
		return l.AvailableBytes() == 12
	}, time.Second, time.Millisecond)

	// captured but unread data counts into the position
	assert.Equal(t, uint64(12), l.BytePosition(0))

	buf := make([]byte, 6)
	_, err := l.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 6, l.AvailableBytes())
	assert.Equal(t, uint64(12), l.BytePosition(6))
}

func TestCaptureLineFlush(t *testing.T) {
	ep := &fakeCapture{periods: 4}
	l := NewCaptureLine(ep, testGeometry(4, 8))
	defer l.Close()
	l.Start()

	require.Eventually(t, func() bool {
		return l.AvailableBytes() == 16
	}, time.Second, time.Millisecond)

	l.Flush()
	assert.Zero(t, l.AvailableBytes())
}

func TestCaptureLineStartsOnDemandOnly(t *testing.T) {
	ep := &fakeCapture{periods: 1}
	l := NewCaptureLine(ep, testGeometry(4, 8))
	defer l.Close()

	// without Start the pump must not touch the device
	time.Sleep(20 * time.Millisecond)
	ep.mu.Lock()
	starts := ep.starts
	ep.mu.Unlock()
	assert.Zero(t, starts)

	l.Start()
	require.Eventually(t, func() bool {
		ep.mu.Lock()
		defer ep.mu.Unlock()
		return ep.starts == 1
	}, time.Second, time.Millisecond)
}
