package strip

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shift/systemd-status-leds/led"
)

// mockSink records every frame written to it. failures controls how
// many writes fail before it starts succeeding again.
type mockSink struct {
	mu       sync.Mutex
	frames   [][]byte
	failures int
	short    bool
}

func (m *mockSink) Write(frame []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return 0, errors.New("bus gone")
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	m.frames = append(m.frames, cp)
	if m.short {
		return len(frame) - 1, nil
	}
	return len(frame), nil
}

func (m *mockSink) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

func (m *mockSink) lastFrame() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.frames) == 0 {
		return nil
	}
	return m.frames[len(m.frames)-1]
}

func newTestBuffer(t *testing.T) *led.Buffer {
	t.Helper()
	buffer := led.NewBuffer(4)
	c1, err := buffer.AddCell("svc1.service")
	require.NoError(t, err)
	c2, err := buffer.AddCell("svc2.service")
	require.NoError(t, err)
	c1.SetColor(led.Color{Red: 255})
	c2.SetColor(led.Color{Green: 255})
	return buffer
}

func TestRendererWritesFrames(t *testing.T) {
	sink := &mockSink{}
	buffer := newTestBuffer(t)
	r := NewRenderer(sink, buffer, 4, 10*time.Millisecond, nil)

	assert.Equal(t, Idle, r.State())
	r.Start()
	assert.Equal(t, Running, r.State())

	require.Eventually(t, func() bool {
		return sink.writeCount() >= 3
	}, time.Second, 5*time.Millisecond)

	frame := sink.lastFrame()
	require.Len(t, frame, 16)
	assert.Equal(t, byte(0xff), frame[0])
	assert.Equal(t, byte(0xff), frame[5])

	r.Stop()
}

func TestRendererSurvivesWriteErrors(t *testing.T) {
	sink := &mockSink{failures: 3}
	buffer := newTestBuffer(t)
	r := NewRenderer(sink, buffer, 4, 5*time.Millisecond, nil)
	r.Start()
	defer r.Stop()

	// loop keeps ticking past the failed writes
	require.Eventually(t, func() bool {
		return sink.writeCount() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestRendererToleratesShortWrites(t *testing.T) {
	sink := &mockSink{short: true}
	buffer := newTestBuffer(t)
	r := NewRenderer(sink, buffer, 4, 5*time.Millisecond, nil)
	r.Start()
	defer r.Stop()

	require.Eventually(t, func() bool {
		return sink.writeCount() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestStopWritesExactlyOneOffFrame(t *testing.T) {
	sink := &mockSink{}
	buffer := newTestBuffer(t)
	r := NewRenderer(sink, buffer, 4, 10*time.Millisecond, nil)
	r.Start()

	require.Eventually(t, func() bool {
		return sink.writeCount() >= 1
	}, time.Second, 5*time.Millisecond)

	r.Stop()
	assert.Equal(t, Stopped, r.State())
	countAfterStop := sink.writeCount()

	// final frame is all off
	assert.Equal(t, make([]byte, 16), sink.lastFrame())
	for _, cell := range buffer.Cells() {
		assert.True(t, cell.Color().IsOff())
		assert.Equal(t, led.StateUnknown, cell.State())
	}

	// second Stop is a no-op
	r.Stop()
	assert.Equal(t, countAfterStop, sink.writeCount())
	assert.Equal(t, Stopped, r.State())
}

func TestStopWithoutStart(t *testing.T) {
	sink := &mockSink{}
	buffer := newTestBuffer(t)
	r := NewRenderer(sink, buffer, 4, 10*time.Millisecond, nil)

	r.Stop()
	assert.Equal(t, Stopped, r.State())
	// the off frame still went out
	assert.Equal(t, 1, sink.writeCount())
	assert.Equal(t, make([]byte, 16), sink.lastFrame())

	// Start after Stop stays stopped
	r.Start()
	assert.Equal(t, Stopped, r.State())
}

func TestStopSwallowsWriteError(t *testing.T) {
	sink := &mockSink{failures: 1}
	buffer := newTestBuffer(t)
	r := NewRenderer(sink, buffer, 4, 10*time.Millisecond, nil)

	// must not panic or block even though the off write fails
	r.Stop()
	assert.Equal(t, Stopped, r.State())
}

func TestNightDimmerFactor(t *testing.T) {
	// Hamburg in June: 02:00 UTC is before sunrise, 12:00 UTC is day
	d := NewNightDimmer(53.55, 9.99, 0.25)
	night := time.Date(2024, 6, 21, 2, 0, 0, 0, time.UTC)
	day := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0.25, d.FactorAt(night))
	assert.Equal(t, 1.0, d.FactorAt(day))
}

func TestNightDimmerApply(t *testing.T) {
	d := NewNightDimmer(53.55, 9.99, 0.5)
	night := time.Date(2024, 6, 21, 2, 0, 0, 0, time.UTC)
	day := time.Date(2024, 6, 21, 12, 0, 0, 0, time.UTC)

	frame := []byte{200, 100, 0, 50}
	d.Apply(frame, night)
	assert.Equal(t, []byte{100, 50, 0, 25}, frame)

	frame = []byte{200, 100, 0, 50}
	d.Apply(frame, day)
	assert.Equal(t, []byte{200, 100, 0, 50}, frame)
}

func TestRendererAppliesDimming(t *testing.T) {
	sink := &mockSink{}
	buffer := newTestBuffer(t)
	d := NewNightDimmer(53.55, 9.99, 0.5)
	r := NewRenderer(sink, buffer, 4, 5*time.Millisecond, d)
	r.nowFunc = func() time.Time {
		return time.Date(2024, 6, 21, 2, 0, 0, 0, time.UTC)
	}
	r.Start()
	defer r.Stop()

	require.Eventually(t, func() bool {
		return sink.writeCount() >= 1
	}, time.Second, 5*time.Millisecond)

	frame := sink.lastFrame()
	assert.Equal(t, byte(127), frame[0])
}
