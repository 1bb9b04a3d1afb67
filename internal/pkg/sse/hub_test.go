package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesEverySubscriberOfTopic(t *testing.T) {
	hub := NewHub(1)

	a, cleanupA := hub.Subscribe("emp-1")
	defer cleanupA()
	b, cleanupB := hub.Subscribe("emp-1")
	defer cleanupB()
	other, cleanupOther := hub.Subscribe("emp-2")
	defer cleanupOther()

	delivered := hub.Publish("emp-1", Event{Event: "invalidate", Data: "clock_action"})
	assert.Equal(t, 2, delivered)

	for _, ch := range []<-chan Event{a, b} {
		ev := <-ch
		assert.Equal(t, "emp-1", ev.Topic)
		assert.Equal(t, "invalidate", ev.Event)
	}
	assert.Len(t, other, 0)
}

func TestHub_PublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	hub := NewHub(1)
	_, cleanup := hub.Subscribe("emp-1")
	defer cleanup()

	assert.Equal(t, 1, hub.Publish("emp-1", Event{Event: "first"}))
	assert.Equal(t, 0, hub.Publish("emp-1", Event{Event: "second"}))
}

func TestHub_CleanupRemovesTopic(t *testing.T) {
	hub := NewHub(0)
	ch, cleanup := hub.Subscribe("emp-1")
	require.Equal(t, 1, hub.SubscriberCount("emp-1"))
	assert.ElementsMatch(t, []string{"emp-1"}, hub.Topics())

	cleanup()
	cleanup()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.TotalSubscribers())
	assert.Empty(t, hub.Topics())
}
