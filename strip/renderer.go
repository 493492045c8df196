// Package strip owns the periodic serialisation of the LED buffer to
// the hardware device, including the lights-off shutdown flush.
package strip

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shift/systemd-status-leds/led"
)

// ByteSink is the write end of the hardware bus. The renderer is its
// only user.
type ByteSink interface {
	Write(frame []byte) (int, error)
}

// Renderer lifecycle states.
type State int

const (
	Idle State = iota
	Running
	Draining
	Stopped
)

// Renderer snapshots the buffer at a fixed rate and writes the frame to
// the sink. Write failures are logged and retried on the next tick;
// transient bus errors must not kill the indicator. Stop is idempotent
// and always leaves the strip dark.
type Renderer struct {
	sink    ByteSink
	buffer  *led.Buffer
	length  int
	period  time.Duration
	dimmer  *NightDimmer
	nowFunc func() time.Time

	// Guards state
	mu    sync.Mutex
	state State

	stopOnce sync.Once
	loopStop chan struct{}
	loopDone chan struct{}
}

// NewRenderer creates an idle renderer for a strip of length LEDs,
// refreshing every period. dimmer may be nil.
func NewRenderer(sink ByteSink, buffer *led.Buffer, length int, period time.Duration, dimmer *NightDimmer) *Renderer {
	return &Renderer{
		sink:     sink,
		buffer:   buffer,
		length:   length,
		period:   period,
		dimmer:   dimmer,
		nowFunc:  time.Now,
		loopStop: make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start transitions Idle to Running and begins the render loop. Calling
// it in any other state does nothing.
func (r *Renderer) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Idle {
		return
	}
	r.state = Running
	slog.Info("Starting render loop", "period", r.period, "leds", r.length)
	go r.run()
}

// Stop drains and shuts the strip off: halt the loop, reset every cell,
// write one final all-off frame. Safe to call repeatedly and before
// Start; guaranteed to have run exactly one off-frame write when it
// returns.
func (r *Renderer) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		wasRunning := r.state == Running
		r.state = Draining
		r.mu.Unlock()

		if wasRunning {
			close(r.loopStop)
			<-r.loopDone
		}

		r.buffer.ResetAll()
		if _, err := r.sink.Write(make([]byte, r.length*led.Channels)); err != nil {
			// the process is exiting, nothing to do but say so
			slog.Error("Failed to turn LEDs off during shutdown", "error", err)
		}

		r.mu.Lock()
		r.state = Stopped
		r.mu.Unlock()
		slog.Info("Render loop stopped, strip is off")
	})
}

func (r *Renderer) run() {
	defer close(r.loopDone)
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	// first frame right away instead of one period late
	r.renderOnce()
	for {
		select {
		case <-r.loopStop:
			return
		case <-ticker.C:
			r.renderOnce()
		}
	}
}

func (r *Renderer) renderOnce() {
	frame := r.buffer.SnapshotBytes(r.length)
	if r.dimmer != nil {
		r.dimmer.Apply(frame, r.nowFunc())
	}
	n, err := r.sink.Write(frame)
	if err != nil {
		slog.Error("Failed to write frame, retrying next tick", "error", err)
		return
	}
	if n != len(frame) {
		slog.Warn("Partial frame write", "written", n, "expected", len(frame))
	}
}
