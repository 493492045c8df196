package util

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendAndValue(t *testing.T) {
	ae := NewAtomicEvent[string]()
	ae.Send("first")
	assert.Equal(t, "first", ae.Value())

	ae.Send("second")
	assert.Equal(t, "second", ae.Value())
}

func TestNotificationCoalescing(t *testing.T) {
	ae := NewAtomicEvent[int]()

	ae.Send(1)
	ae.Send(2)
	ae.Send(3)

	// multiple sends collapse into one pending notification carrying
	// the latest value
	select {
	case <-ae.Channel():
	default:
		t.Fatal("should have received a notification")
	}
	assert.Equal(t, 3, ae.Value())

	select {
	case <-ae.Channel():
		t.Fatal("channel should be empty")
	default:
	}
}

func TestConcurrentSend(t *testing.T) {
	ae := NewAtomicEvent[int]()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ae.Send(v)
			}
		}(i)
	}
	wg.Wait()

	v := ae.Value()
	assert.GreaterOrEqual(t, v, 0)
	assert.Less(t, v, 10)
}
