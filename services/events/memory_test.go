package eventsvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorhub/core"
)

func receive(t *testing.T, ch <-chan core.AuthEvent) core.AuthEvent {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return core.AuthEvent{}
	}
}

func TestMemoryBroker(t *testing.T) {
	broker := NewMemoryBroker()
	ctx, cancel := context.WithCancel(context.Background())

	first, err := broker.Subscribe(ctx, "u1")
	require.NoError(t, err)
	second, err := broker.Subscribe(ctx, "u1")
	require.NoError(t, err)
	other, err := broker.Subscribe(ctx, "u2")
	require.NoError(t, err)

	require.NoError(t, broker.Publish(context.Background(), core.NewAuthEvent(core.EventSignedOut, "u1")))

	assert.Equal(t, core.EventSignedOut, receive(t, first).Type)
	assert.Equal(t, core.EventSignedOut, receive(t, second).Type)
	select {
	case evt := <-other:
		t.Fatalf("unexpected event for another account: %v", evt)
	default:
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-first
		return !open
	}, time.Second, 10*time.Millisecond)
}
