package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFanout(t *testing.T) {
	t.Parallel()

	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	posted, unsubPosted := b.Subscribe(4, TypeDailyPosted)
	defer unsubPosted()

	b.Publish(Event{Type: TypeTaskStarted})
	b.Publish(Event{Type: TypeDailyPosted, Data: "g1"})

	require.Len(t, all, 2)
	require.Len(t, posted, 1)
	e := <-posted
	assert.Equal(t, "g1", e.Data)
	assert.False(t, e.Time.IsZero())
}

func TestSlowSubscriberDrops(t *testing.T) {
	t.Parallel()

	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: TypeTaskStarted})
	b.Publish(Event{Type: TypeTaskStarted})
	b.Publish(Event{Type: TypeTaskStarted})
	assert.Equal(t, uint64(2), b.Dropped())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)
	b.Publish(Event{Type: TypeTaskStarted})
}
