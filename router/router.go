// Package router bridges the service event stream to buffer mutations.
// It owns all cell writes during steady state and performs no I/O, so
// it can never be stalled by a slow device.
package router

import (
	"errors"
	"log/slog"

	"github.com/shift/systemd-status-leds/led"
	"github.com/shift/systemd-status-leds/monitor"
	"github.com/shift/systemd-status-leds/util"
)

type Router struct {
	buffer   *led.Buffer
	resolver *util.AtomicEvent[*led.Resolver]
	events   <-chan monitor.ServiceEvent
	stop     chan struct{}
	done     chan struct{}
}

// New creates a router reading events and applying them to buffer. The
// resolver is taken from a latest-value event so colour mapping reloads
// take effect without restarting the stream.
func New(buffer *led.Buffer, resolver *util.AtomicEvent[*led.Resolver], events <-chan monitor.ServiceEvent) *Router {
	return &Router{
		buffer:   buffer,
		resolver: resolver,
		events:   events,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the routing loop.
func (r *Router) Start() {
	go r.run()
}

// Stop ends the routing loop and waits for it to finish.
func (r *Router) Stop() {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	<-r.done
}

// Done is closed when the routing loop has exited, expectedly or not.
func (r *Router) Done() <-chan struct{} {
	return r.done
}

func (r *Router) run() {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			slog.Info("Ending event router")
			return
		case ev, ok := <-r.events:
			if !ok {
				slog.Warn("Event stream closed, router exiting")
				return
			}
			r.Apply(ev)
		}
	}
}

// Apply routes a single event: find the owning cell, resolve the colour
// for the new state, update state and colour as one unit. Events for
// units without a cell are logged and discarded.
func (r *Router) Apply(ev monitor.ServiceEvent) {
	cell, err := r.buffer.GetByUnit(ev.Unit)
	if err != nil {
		if errors.Is(err, led.ErrNotFound) {
			slog.Warn("Event for unit without an LED, ignoring",
				"unit", ev.Unit, "state", ev.State.String())
			return
		}
		slog.Error("Cell lookup failed", "unit", ev.Unit, "error", err)
		return
	}

	stateName := ev.State.String()
	if color, ok := r.resolver.Value().Resolve(cell.Position(), stateName); ok {
		cell.SetState(ev.State, &color)
		slog.Debug("Updated LED",
			"unit", ev.Unit, "position", cell.Position(),
			"state", stateName, "colour", color.Hex())
	} else {
		// no mapping: state changes, colour stays
		cell.SetState(ev.State, nil)
		slog.Warn("No colour defined for state, keeping current colour",
			"unit", ev.Unit, "state", stateName)
	}
}
