package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-raffles/internal/config"
	"ms-raffles/internal/logger"
	"ms-raffles/internal/models"
	"ms-raffles/internal/raffle"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	msgs chan kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-r.msgs:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) Close() error { return nil }

func testTopics() config.TopicConfig {
	return config.TopicConfig{
		RaffleCreated:   "raffles.created",
		TicketPurchased: "raffles.ticket_purchased",
		RaffleClosed:    "raffles.closed",
		TicketClosed:    "raffles.ticket_closed",
		WinnersDrawn:    "raffles.drawn",
	}
}

func TestTopicRoutesCoverEveryEvent(t *testing.T) {
	routes := TopicRoutes(testTopics())
	assert.Len(t, routes, 5)
	assert.Equal(t, "raffles.ticket_purchased", routes[raffle.EventTicketPurchased])
	assert.Equal(t, "raffles.drawn", routes[raffle.EventWinnersDrawn])
}

func TestProducerPublishRoutesByEventName(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{Writer: w, Topics: TopicRoutes(testTopics()), Logger: logger.NewDiscard()}

	ev, err := models.NewRaffleEvent(raffle.EventRaffleClosed, "raffle-1", "sig", 7, map[string]int{"tickets": 3})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "raffles.closed", msg.Topic)
	assert.Equal(t, []byte("raffle-1"), msg.Key)

	var decoded models.RaffleEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev.ID, decoded.ID)
	assert.Equal(t, uint64(7), decoded.Slot)
	assert.JSONEq(t, `{"tickets":3}`, string(decoded.Payload))
}

func TestProducerRejectsUnknownEvent(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{Writer: w, Topics: TopicRoutes(testTopics()), Logger: logger.NewDiscard()}

	err := p.Publish(context.Background(), &models.RaffleEvent{Name: "raffle.unknown"})
	assert.Error(t, err)
	assert.Empty(t, w.msgs)
}

func TestProducerSurfacesWriteErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &Producer{Writer: w, Topics: TopicRoutes(testTopics()), Logger: logger.NewDiscard()}

	err := p.Publish(context.Background(), &models.RaffleEvent{Name: raffle.EventRaffleCreated})
	assert.EqualError(t, err, "broker down")
}

func TestConsumerDeliversDecodedEvents(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 3)}
	c := NewConsumerFromReader(reader, logger.NewDiscard())

	ev, err := models.NewRaffleEvent(raffle.EventTicketPurchased, "raffle-9", "sig", 1, nil)
	require.NoError(t, err)
	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	reader.msgs <- kafka.Message{Topic: "raffles.ticket_purchased", Value: []byte("not json")}
	reader.msgs <- kafka.Message{Topic: "raffles.ticket_purchased", Value: raw}

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan models.RaffleEvent, 1)
	done := make(chan struct{})
	go func() {
		c.Start(ctx, func(ev models.RaffleEvent) { got <- ev })
		close(done)
	}()

	select {
	case ev := <-got:
		assert.Equal(t, "raffle-9", ev.Raffle)
		assert.Equal(t, raffle.EventTicketPurchased, ev.Name)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestMissingTopics(t *testing.T) {
	existing := []string{"raffles.created", "__consumer_offsets"}
	wanted := []string{"raffles.created", "raffles.closed", "", "raffles.closed", "raffles.drawn"}

	assert.Equal(t, []string{"raffles.closed", "raffles.drawn"}, missingTopics(existing, wanted))
	assert.Empty(t, missingTopics(wanted, wanted))
}

func TestEnsureTopicsExistNeedsBrokers(t *testing.T) {
	assert.Error(t, EnsureTopicsExist(nil, []string{"raffles.created"}, logger.NewDiscard()))
}
