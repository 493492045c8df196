package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	systemd "github.com/coreos/go-systemd/v22/dbus"
	sdutil "github.com/coreos/go-systemd/v22/util"
	"github.com/godbus/dbus/v5"

	"github.com/shift/systemd-status-leds/led"
)

// SystemdSource reports unit state transitions from systemd over DBus.
// It subscribes once to the manager and tracks individual units through
// a SubscriptionSet, so per-unit delivery order follows systemd's
// signal order.
type SystemdSource struct {
	conn *systemd.Conn
	set  *systemd.SubscriptionSet
	bc   *broadcaster

	// Guards watched
	mu      sync.Mutex
	watched map[string]bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

var notFound = dbus.MakeVariant("not-found")

// NewSystemdSource connects to the system bus and subscribes to unit
// state signals. The caller should check IsAvailable before relying on
// the stream.
func NewSystemdSource(ctx context.Context) (*SystemdSource, error) {
	conn, err := systemd.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to systemd, running as root? %w", err)
	}
	if err := conn.Subscribe(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("systemd subscribe failed: %w", err)
	}

	s := &SystemdSource{
		conn:    conn,
		set:     conn.NewSubscriptionSet(),
		bc:      newBroadcaster(),
		watched: make(map[string]bool),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// IsAvailable reports whether this host runs systemd and the manager
// answers on the bus.
func (s *SystemdSource) IsAvailable() bool {
	if !sdutil.IsRunningSystemd() {
		return false
	}
	if _, err := s.conn.GetManagerProperty("Version"); err != nil {
		slog.Warn("systemd manager not answering", "error", err)
		return false
	}
	return true
}

// CurrentState queries the unit's ActiveState. A unit whose LoadState
// is not-found maps to unknown instead of an error, it may appear
// later.
func (s *SystemdSource) CurrentState(unit string) (led.ServiceState, error) {
	load, err := s.conn.GetUnitPropertyContext(context.Background(), unit, "LoadState")
	if err != nil {
		return led.StateUnknown, fmt.Errorf("cannot get LoadState of %s: %w", unit, err)
	}
	if load.Value == notFound {
		slog.Info("Unit not found, waiting for it to appear", "unit", unit)
		return led.StateUnknown, nil
	}
	active, err := s.conn.GetUnitPropertyContext(context.Background(), unit, "ActiveState")
	if err != nil {
		return led.StateUnknown, fmt.Errorf("cannot get ActiveState of %s: %w", unit, err)
	}
	var state string
	if err := active.Value.Store(&state); err != nil {
		return led.StateUnknown, fmt.Errorf("unexpected ActiveState value for %s: %w", unit, err)
	}
	return led.StateFromString(state), nil
}

// Watch adds the unit to the subscription set and publishes its current
// state as an initial event so the strip shows reality before the first
// transition. Idempotent.
func (s *SystemdSource) Watch(unit string) error {
	s.mu.Lock()
	if s.watched[unit] {
		s.mu.Unlock()
		return nil
	}
	s.watched[unit] = true
	s.mu.Unlock()

	state, err := s.CurrentState(unit)
	if err != nil {
		return err
	}
	s.set.Add(unit)
	s.bc.Publish(ServiceEvent{Unit: unit, State: state, Timestamp: time.Now()})
	slog.Info("Watching unit", "unit", unit, "state", state.String())
	return nil
}

func (s *SystemdSource) Events() <-chan ServiceEvent {
	return s.bc.Out()
}

func (s *SystemdSource) Done() <-chan struct{} {
	return s.done
}

// Close stops the signal loop and drops the bus connection.
func (s *SystemdSource) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.bc.Close()
		s.conn.Close()
	})
}

func (s *SystemdSource) run() {
	defer close(s.done)
	events, errs := s.set.Subscribe()
	for {
		select {
		case <-s.stop:
			return
		case changes := <-events:
			now := time.Now()
			for unit, status := range changes {
				state := led.StateUnknown
				if status != nil {
					state = led.StateFromString(status.ActiveState)
				}
				s.bc.Publish(ServiceEvent{Unit: unit, State: state, Timestamp: now})
			}
		case err := <-errs:
			// Transient per-unit failures are logged and the loop
			// keeps going; only Close ends it.
			slog.Error("systemd subscription error", "error", err)
		}
	}
}
