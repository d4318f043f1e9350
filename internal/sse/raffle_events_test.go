package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-raffles/internal/models"
)

func TestEmitReachesRaffleAndGlobalSubscribers(t *testing.T) {
	e := NewRaffleEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	one := e.Subscribe(ctx, "raffle-1")
	other := e.Subscribe(ctx, "raffle-2")
	all := e.Subscribe(ctx, AllRaffles)

	e.Emit(models.RaffleEvent{Name: "raffle.created", Raffle: "raffle-1"})

	select {
	case ev := <-one:
		assert.Equal(t, "raffle.created", ev.Name)
	case <-time.After(time.Second):
		t.Fatal("raffle subscriber got nothing")
	}
	select {
	case ev := <-all:
		assert.Equal(t, "raffle-1", ev.Raffle)
	case <-time.After(time.Second):
		t.Fatal("global subscriber got nothing")
	}
	assert.Len(t, other, 0)
}

func TestSubscriberRemovedOnCancel(t *testing.T) {
	e := NewRaffleEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	ch := e.Subscribe(ctx, "raffle-1")
	require.Equal(t, 1, e.ClientCount("raffle-1"))

	cancel()
	// Test case: channel is closed once the client goes away
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	assert.Equal(t, 0, e.ClientCount("raffle-1"))
}

func TestEmitDoesNotBlockOnFullBuffer(t *testing.T) {
	e := NewRaffleEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Subscribe(ctx, "raffle-1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			e.Emit(models.RaffleEvent{Raffle: "raffle-1"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked")
	}
}
