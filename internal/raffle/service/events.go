package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-raffles/internal/logger"
	"ms-raffles/internal/models"
	"ms-raffles/internal/raffle"
	"ms-raffles/internal/runtime"
)

// EventSink receives raffle events. The Kafka producer, the SSE emitter and
// the projection all implement it.
type EventSink interface {
	Publish(ctx context.Context, ev *models.RaffleEvent) error
}

// Dispatcher turns committed receipts into raffle events and hands them to
// every sink. Sink failures are logged; the transaction has already settled.
type Dispatcher struct {
	Sinks  []EventSink
	Logger *logger.Logger
}

func NewDispatcher(log *logger.Logger, sinks ...EventSink) *Dispatcher {
	return &Dispatcher{Sinks: sinks, Logger: log}
}

func (d *Dispatcher) Dispatch(ctx context.Context, receipt *runtime.Receipt) {
	for _, e := range receipt.Events {
		ev, err := models.NewRaffleEvent(e.EventName(), e.EventKey(), receipt.Signature.String(), receipt.Slot, e)
		if err != nil {
			d.Logger.Error("EVENTS", fmt.Sprintf("failed to encode %s: %v", e.EventName(), err))
			continue
		}
		ev.Timestamp = time.Unix(receipt.UnixTime, 0).UTC()
		d.Publish(ctx, ev)
	}
}

func (d *Dispatcher) Publish(ctx context.Context, ev *models.RaffleEvent) {
	for _, sink := range d.Sinks {
		if err := sink.Publish(ctx, ev); err != nil {
			d.Logger.Error("EVENTS", fmt.Sprintf("failed to publish %s for raffle %s: %v", ev.Name, ev.Raffle, err))
		}
	}
}

// Projection keeps the purchase counters and the cache in step with ticket
// events.
type Projection struct {
	Service *RaffleService
}

func (p *Projection) Publish(ctx context.Context, ev *models.RaffleEvent) error {
	if ev.Name != raffle.EventTicketPurchased && ev.Name != raffle.EventTicketClosed {
		return nil
	}
	var payload struct {
		Participant string `json:"participant"`
	}
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", ev.Name, err)
	}
	if ev.Name == raffle.EventTicketClosed {
		p.Service.ForgetPurchases(ctx, ev.Raffle, payload.Participant)
		return nil
	}
	return p.Service.RecordPurchase(ctx, ev.Raffle, payload.Participant, 1, ev.Timestamp)
}
