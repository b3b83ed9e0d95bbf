package events

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPublishSubscribe(t *testing.T) {
	b := NewMemory()
	ch := b.Subscribe("s1")

	evt := Event{Type: TypeDelivered, SessionID: "s1", JobID: "j1", StatusCode: 200}
	b.Publish("s1", evt)
	b.Publish("s2", Event{Type: TypeFailed, SessionID: "s2"})

	select {
	case got := <-ch:
		assert.Equal(t, evt, got)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	select {
	case got := <-ch:
		t.Fatalf("unexpected event for other topic: %+v", got)
	default:
	}

	b.Unsubscribe("s1", ch)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// second unsubscribe is a no-op
	b.Unsubscribe("s1", ch)
}

func TestMemorySlowSubscriberDrops(t *testing.T) {
	b := NewMemory()
	ch := b.Subscribe("s1")
	for i := 0; i < 100; i++ {
		b.Publish("s1", Event{Type: TypeRetrying, Attempt: i})
	}
	assert.Len(t, ch, cap(ch))
}

func TestPublishSessionFansOutToAll(t *testing.T) {
	b := NewMemory()
	sess := b.Subscribe("s1")
	all := b.Subscribe(TopicAll)

	PublishSession(b, Event{Type: TypeDelivered, SessionID: "s1"})
	PublishSession(nil, Event{Type: TypeDelivered, SessionID: "s1"})

	require.Len(t, sess, 1)
	require.Len(t, all, 1)
	assert.Equal(t, "s1", (<-all).SessionID)

	require.NoError(t, b.Close())
	_, ok := <-sess
	assert.False(t, ok)
}

func TestRedisChanName(t *testing.T) {
	assert.Equal(t, "wahook:events:s1", chanName("s1"))
	assert.Equal(t, "wahook:events:*", chanName(TopicAll))
}

func TestNewRedisInvalidURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not-a-url", zerolog.Nop())
	assert.Error(t, err)
}
