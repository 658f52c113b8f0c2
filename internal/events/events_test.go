package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	p := NewMemoryPublisher()
	defer p.Close()

	ch := p.Subscribe()
	p.Publish(New(TypePhaseComplete, "c1", "", PhaseComplete{Phase: "scan", Success: true}))

	select {
	case ev := <-ch:
		assert.Equal(t, TypePhaseComplete, ev.Type)
		assert.Equal(t, "c1", ev.CycleID)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestPublishNonBlockingOnFullBuffer(t *testing.T) {
	p := NewMemoryPublisher(WithBufferSize(1))
	defer p.Close()

	_ = p.Subscribe() // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			p.Publish(New(TypeTaskUpdate, "", "t1", nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	p := NewMemoryPublisher()
	defer p.Close()

	ch := p.Subscribe()
	p.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe must not panic.
	p.Publish(New(TypeStateChanged, "", "", nil))
}

func TestCloseIdempotent(t *testing.T) {
	p := NewMemoryPublisher()
	ch := p.Subscribe()

	p.Close()
	p.Close()

	_, open := <-ch
	require.False(t, open)

	// Subscribe after close returns a closed channel.
	ch2 := p.Subscribe()
	_, open = <-ch2
	assert.False(t, open)
}

func TestEventsDeliveredInOrder(t *testing.T) {
	p := NewMemoryPublisher(WithBufferSize(10))
	defer p.Close()

	ch := p.Subscribe()
	for i := 0; i < 5; i++ {
		p.Publish(Event{Type: TypeStateChanged, Data: i, Time: time.Now()})
	}

	for i := 0; i < 5; i++ {
		ev := <-ch
		assert.Equal(t, i, ev.Data)
	}
}
