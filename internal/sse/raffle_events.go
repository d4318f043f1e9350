package sse

import (
	"context"
	"sync"

	"ms-raffles/internal/models"
)

// AllRaffles subscribes to events of every raffle.
const AllRaffles = ""

// RaffleEventEmitter fans raffle events out to SSE subscribers.
type RaffleEventEmitter struct {
	clients     map[string][]chan models.RaffleEvent
	clientMutex sync.RWMutex
}

func NewRaffleEventEmitter() *RaffleEventEmitter {
	return &RaffleEventEmitter{
		clients: make(map[string][]chan models.RaffleEvent),
	}
}

// Subscribe registers a client for raffle, or for every raffle when raffle is
// AllRaffles. The channel is closed once ctx is done.
func (e *RaffleEventEmitter) Subscribe(ctx context.Context, raffle string) chan models.RaffleEvent {
	clientChan := make(chan models.RaffleEvent, 10)

	e.clientMutex.Lock()
	e.clients[raffle] = append(e.clients[raffle], clientChan)
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(raffle, clientChan)
	}()

	return clientChan
}

// Emit broadcasts ev without blocking on slow clients.
func (e *RaffleEventEmitter) Emit(ev models.RaffleEvent) {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()

	targets := [][]chan models.RaffleEvent{e.clients[ev.Raffle]}
	if ev.Raffle != AllRaffles {
		targets = append(targets, e.clients[AllRaffles])
	}
	for _, clients := range targets {
		for _, clientChan := range clients {
			select {
			case clientChan <- ev:
			default:
				// Buffer full, drop for this client
			}
		}
	}
}

// Publish lets the emitter sit behind the same interface as the Kafka producer.
func (e *RaffleEventEmitter) Publish(_ context.Context, ev *models.RaffleEvent) error {
	e.Emit(*ev)
	return nil
}

func (e *RaffleEventEmitter) removeClient(raffle string, clientChan chan models.RaffleEvent) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	clients := e.clients[raffle]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[raffle] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(e.clients[raffle]) == 0 {
		delete(e.clients, raffle)
	}
}

// ClientCount returns the number of subscribers for raffle.
func (e *RaffleEventEmitter) ClientCount(raffle string) int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients[raffle])
}
