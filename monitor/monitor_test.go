package monitor

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shift/systemd-status-leds/led"
)

func TestBroadcasterDeliversInOrder(t *testing.T) {
	b := newBroadcaster()
	defer b.Close()

	for i := 0; i < 5; i++ {
		b.Publish(ServiceEvent{
			Unit:      "svc1.service",
			State:     led.ServiceState(i % 3),
			Timestamp: time.Now(),
		})
	}

	for i := 0; i < 5; i++ {
		select {
		case ev := <-b.Out():
			assert.Equal(t, led.ServiceState(i%3), ev.State)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestBroadcasterHoldsEventsForLateReceiver(t *testing.T) {
	b := newBroadcaster()
	defer b.Close()

	// published before anyone reads; must neither block nor get lost
	b.Publish(ServiceEvent{Unit: "svc1.service", State: led.StateActive})

	time.Sleep(20 * time.Millisecond)

	select {
	case ev := <-b.Out():
		assert.Equal(t, "svc1.service", ev.Unit)
		assert.Equal(t, led.StateActive, ev.State)
	case <-time.After(time.Second):
		t.Fatal("event was lost")
	}
}

func TestBroadcasterDropsOldestWhenFull(t *testing.T) {
	// construct without the dispatch goroutine so the queue fills
	// deterministically
	b := &broadcaster{
		notify: make(chan struct{}, 1),
		out:    make(chan ServiceEvent, 16),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	for i := 0; i < maxPending+10; i++ {
		b.Publish(ServiceEvent{Unit: fmt.Sprintf("svc%d.service", i)})
	}

	assert.Equal(t, 10, b.dropped)
	assert.Equal(t, maxPending, b.pending.Len())
	// the oldest retained event is the first one not dropped
	assert.Equal(t, "svc10.service", b.pending.Front().Unit)
}

func TestBroadcasterPublishNeverBlocks(t *testing.T) {
	b := newBroadcaster()
	defer b.Close()

	finished := make(chan struct{})
	go func() {
		for i := 0; i < maxPending*4; i++ {
			b.Publish(ServiceEvent{Unit: "svc1.service"})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with no receiver attached")
	}
}

func TestBroadcasterCloseUnblocksDispatch(t *testing.T) {
	b := newBroadcaster()
	for i := 0; i < 100; i++ {
		b.Publish(ServiceEvent{Unit: "svc1.service"})
	}

	closed := make(chan struct{})
	go func() {
		b.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked")
	}
}
