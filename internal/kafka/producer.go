package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-raffles/internal/logger"
	"ms-raffles/internal/models"
)

// MessageWriter is the part of kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes raffle events, routing each event name to its topic.
type Producer struct {
	Writer MessageWriter
	Topics map[string]string
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics map[string]string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

// Publish writes ev keyed by its raffle so a raffle's events stay ordered.
func (p *Producer) Publish(ctx context.Context, ev *models.RaffleEvent) error {
	topic, ok := p.Topics[ev.Name]
	if !ok {
		return fmt.Errorf("no topic for event %q", ev.Name)
	}
	msgBytes, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("%s for raffle %s", ev.Name, ev.Raffle))

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(ev.Raffle),
		Value: msgBytes,
	})
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
