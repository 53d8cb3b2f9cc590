package progress

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHub() *Hub {
	return NewHub(log.New(io.Discard, "", 0))
}

func TestHubDeliversToSubscriber(t *testing.T) {
	hub := testHub()
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	event := Event{CampaignUUID: "abc", Status: "progress", Total: 10, Sent: 3, Timestamp: time.Now().UTC()}
	hub.Publish(1, event)

	select {
	case got := <-ch:
		assert.Equal(t, event, got)
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}
}

func TestHubScopesEventsToCampaign(t *testing.T) {
	hub := testHub()
	ch1, cancel1 := hub.Subscribe(1)
	defer cancel1()
	ch2, cancel2 := hub.Subscribe(2)
	defer cancel2()

	hub.Publish(1, Event{Status: "started"})

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("campaign 1 subscriber expected an event")
	}
	select {
	case got := <-ch2:
		t.Fatalf("campaign 2 subscriber received a foreign event: %+v", got)
	default:
	}
}

func TestHubFansOutToAllSubscribers(t *testing.T) {
	hub := testHub()
	ch1, cancel1 := hub.Subscribe(1)
	defer cancel1()
	ch2, cancel2 := hub.Subscribe(1)
	defer cancel2()

	hub.Publish(1, Event{Status: "progress"})

	require.Len(t, ch1, 1)
	require.Len(t, ch2, 1)
}

func TestHubCancelReleasesSubscription(t *testing.T) {
	hub := testHub()
	_, cancel1 := hub.Subscribe(1)
	_, cancel2 := hub.Subscribe(1)
	assert.Equal(t, 2, hub.SubscriberCount(1))

	cancel1()
	assert.Equal(t, 1, hub.SubscriberCount(1))
	cancel2()
	assert.Zero(t, hub.SubscriberCount(1))

	// Cancelling twice is harmless
	cancel1()
	assert.Zero(t, hub.SubscriberCount(1))
}

func TestHubDropsEventsForSlowSubscribers(t *testing.T) {
	hub := testHub()
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	// Publish never blocks, even well past the subscriber buffer
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			hub.Publish(1, Event{Processed: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestHubPublishWithoutSubscribersIsNoop(t *testing.T) {
	hub := testHub()
	hub.Publish(99, Event{Status: "progress"})
	assert.Zero(t, hub.SubscriberCount(99))
}
