package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-raffles/internal/config"
	"ms-raffles/internal/logger"
	"ms-raffles/internal/raffle"
)

// TopicRoutes maps each raffle event name to its configured topic.
func TopicRoutes(t config.TopicConfig) map[string]string {
	return map[string]string{
		raffle.EventRaffleCreated:   t.RaffleCreated,
		raffle.EventTicketPurchased: t.TicketPurchased,
		raffle.EventRaffleClosed:    t.RaffleClosed,
		raffle.EventTicketClosed:    t.TicketClosed,
		raffle.EventWinnersDrawn:    t.WinnersDrawn,
	}
}

// missingTopics returns the wanted topics not in existing, keeping order.
func missingTopics(existing, wanted []string) []string {
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[t] = true
	}
	var out []string
	for _, t := range wanted {
		if !have[t] && t != "" {
			have[t] = true
			out = append(out, t)
		}
	}
	return out
}

// EnsureTopicsExist creates Kafka topics if they don't already exist
func EnsureTopicsExist(brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	existing, err := ListTopics(brokers)
	if err != nil {
		log.Warn("KAFKA", fmt.Sprintf("could not list topics, trying to create all: %v", err))
	}
	topics = missingTopics(existing, topics)
	if len(topics) == 0 {
		return nil
	}

	// Connect to the first broker to find the controller
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	// Create each topic
	for _, topic := range topics {
		err = controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		if err != nil {
			if errors.Is(err, kafka.TopicAlreadyExists) {
				log.Debug("KAFKA", fmt.Sprintf("topic %s already exists", topic))
				continue
			}
			// Continue trying to create other topics even if one fails
			log.Error("KAFKA", fmt.Sprintf("error creating topic %s: %v", topic, err))
		} else {
			log.LogKafka("CREATE_TOPIC", topic, "created")
		}
	}

	// Wait a moment for topics to be fully created
	time.Sleep(1 * time.Second)
	return nil
}

// ListTopics returns a list of all existing topics
func ListTopics(brokers []string) ([]string, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return nil, err
	}

	// Track unique topics
	topicMap := make(map[string]bool)
	for _, p := range partitions {
		topicMap[p.Topic] = true
	}

	var topics []string
	for topic := range topicMap {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics, nil
}
