package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-raffles/internal/logger"
	"ms-raffles/internal/models"
)

// MessageReader is the part of kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Consumer struct {
	reader MessageReader
	logger *logger.Logger
}

// NewConsumer reads every topic in topics as one consumer group member.
func NewConsumer(brokers []string, topics []string, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupTopics: topics,
		GroupID:     groupID,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
	})
	return &Consumer{reader: reader, logger: log}
}

func NewConsumerFromReader(reader MessageReader, log *logger.Logger) *Consumer {
	return &Consumer{reader: reader, logger: log}
}

// Start hands each decoded event to handler until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, handler func(models.RaffleEvent)) {
	c.logger.Info("KAFKA", "consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("KAFKA", "consumer stopped")
				return
			}
			c.logger.Error("KAFKA", fmt.Sprintf("error reading message: %v", err))
			continue
		}

		var ev models.RaffleEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			c.logger.Warn("KAFKA", fmt.Sprintf("failed to unmarshal message on %s: %v", msg.Topic, err))
			continue
		}

		c.logger.LogKafka("CONSUME", msg.Topic, fmt.Sprintf("%s for raffle %s", ev.Name, ev.Raffle))
		handler(ev)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
