package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/mt2n/internal/util"
	"github.com/OFFIS-RIT/mt2n/pkg/logger"
)

const (
	IngestQueue     = "ingest_queue"
	IngestDLQ       = IngestQueue + "_dlq"
	Exchange        = "pubsub_exchange"
	GraphBuiltTopic = "graph.built"

	dialRetries = 5
	dialWait    = 3 * time.Second
)

// Publisher is the part of an AMQP channel used for publishing.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// URL builds the broker address from the RABBITMQ_* environment variables.
func URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnv("RABBITMQ_USER"),
		util.GetEnv("RABBITMQ_PASSWORD"),
		util.GetEnvString("RABBITMQ_HOST", "localhost"),
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)
}

// Init connects to RabbitMQ, retrying while the broker is starting up.
func Init(ctx context.Context) (*amqp091.Connection, error) {
	conn, err := util.RetryWithContext(ctx, dialRetries, dialWait, func(ctx context.Context) (*amqp091.Connection, error) {
		conn, err := amqp091.Dial(URL())
		if err != nil {
			logger.Warn("[Queue] Broker not reachable", "err", err)
		}
		return conn, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares the topic exchange, the ingest queue and its dead
// letter queue. Failed jobs are not retried, they are parked in the DLQ.
func SetupQueues(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		Exchange,
		"topic",
		false,
		true,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", Exchange, err)
	}

	for _, name := range []string{IngestQueue, IngestDLQ} {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}
	}

	return nil
}

// PublishFIFO publishes a persistent message to the default exchange.
func PublishFIFO(p Publisher, queueName string, data []byte) error {
	return p.Publish(
		"",
		queueName,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// PublishTopic publishes an event on the topic exchange.
func PublishTopic(p Publisher, topic string, data []byte) error {
	return p.Publish(
		Exchange,
		topic,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         data,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
}
