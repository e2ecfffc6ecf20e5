package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPerSubscriberOrdering(t *testing.T) {
	b := New()
	defer b.Close()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	b.Subscribe("topic", func(ev Event) {
		mu.Lock()
		got = append(got, ev.Payload.(int))
		n := len(got)
		mu.Unlock()
		if n == 100 {
			close(done)
		}
	})

	for i := 0; i < 100; i++ {
		b.Publish("topic", i)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for deliveries")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		assert.Equal(t, i, v, "events must arrive in publication order")
	}
}

func TestHandlerPanicDoesNotSuppressOthers(t *testing.T) {
	b := New()
	defer b.Close()

	received := make(chan struct{}, 2)
	b.Subscribe("topic", func(Event) {
		panic("broken consumer")
	})
	b.Subscribe("topic", func(Event) {
		received <- struct{}{}
	})

	b.Publish("topic", nil)
	b.Publish("topic", nil)

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatal("healthy subscriber stopped receiving after sibling panicked")
		}
	}
}

func TestTopicIsolation(t *testing.T) {
	b := New()
	defer b.Close()

	received := make(chan string, 4)
	b.Subscribe(TopicScheduleCreated, func(ev Event) { received <- ev.Topic })

	b.Publish(TopicScheduleDeleted, nil)
	b.Publish(TopicScheduleCreated, nil)

	select {
	case topic := <-received:
		assert.Equal(t, TopicScheduleCreated, topic)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never received its topic")
	}
	select {
	case topic := <-received:
		t.Fatalf("unexpected delivery for topic %s", topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishAfterCloseIsSafe(t *testing.T) {
	b := New()
	b.Subscribe("topic", func(Event) {})
	b.Close()
	// must not panic
	b.Publish("topic", nil)
}

func TestDisplayContentTopic(t *testing.T) {
	assert.Equal(t, "display.42.content.changed", DisplayContentTopic(42))
}
