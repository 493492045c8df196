package monitor

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gammazero/deque"

	"github.com/shift/systemd-status-leds/led"
)

// ServiceEvent is one observed state transition of a monitored unit.
type ServiceEvent struct {
	Unit      string
	State     led.ServiceState
	Timestamp time.Time
}

// StateSource is the contract the rest of the system has with the
// authority reporting unit states. The production implementation talks
// to systemd over DBus; tests substitute their own.
type StateSource interface {
	// IsAvailable reports whether the state authority is reachable.
	// Startup fails fast when it is not.
	IsAvailable() bool

	// CurrentState is a point-in-time query, used when a unit is
	// first registered.
	CurrentState(unit string) (led.ServiceState, error)

	// Watch registers interest in a unit and emits its current state
	// as an initial event. Calling it twice for the same unit is a
	// no-op.
	Watch(unit string) error

	// Events returns the single ongoing event stream. Delivery order
	// per unit matches emission order.
	Events() <-chan ServiceEvent

	// Done is closed when the source stops producing, expectedly or
	// not.
	Done() <-chan struct{}

	// Close stops the source and releases its resources.
	Close()
}

// how many events may pile up before the oldest is discarded
const maxPending = 256

// broadcaster decouples event production from consumption: publishing
// never blocks, pending events queue up to maxPending and the oldest
// are dropped with a warning beyond that. An event emitted before any
// receiver is attached is therefore held, not lost and not fatal.
type broadcaster struct {
	mu      sync.Mutex
	pending deque.Deque[ServiceEvent]
	dropped int
	notify  chan struct{}
	out     chan ServiceEvent
	stop    chan struct{}
	done    chan struct{}
}

func newBroadcaster() *broadcaster {
	b := &broadcaster{
		notify: make(chan struct{}, 1),
		out:    make(chan ServiceEvent, 16),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Publish enqueues an event. Never blocks.
func (b *broadcaster) Publish(ev ServiceEvent) {
	b.mu.Lock()
	b.pending.PushBack(ev)
	if b.pending.Len() > maxPending {
		dropped := b.pending.PopFront()
		b.dropped++
		slog.Warn("Event queue full, dropping oldest event",
			"unit", dropped.Unit, "state", dropped.State.String(),
			"dropped_total", b.dropped)
	}
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *broadcaster) Out() <-chan ServiceEvent {
	return b.out
}

func (b *broadcaster) Close() {
	close(b.stop)
	<-b.done
}

func (b *broadcaster) dispatch() {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			return
		case <-b.notify:
			for {
				b.mu.Lock()
				if b.pending.Len() == 0 {
					b.mu.Unlock()
					break
				}
				ev := b.pending.PopFront()
				b.mu.Unlock()

				select {
				case b.out <- ev:
				case <-b.stop:
					return
				}
			}
		}
	}
}
