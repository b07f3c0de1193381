package event

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"messenger-gateway/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Delivery is one message taken from a queue.
type Delivery struct {
	Queue  string
	Action string
	Data   []byte
}

type RabbitMQSubscribeListener struct {
	Queue   string
	Channel chan Delivery
}

const RabbitMQActionHeader string = "x-action"

// Publisher emits a message to a queue.
type Publisher interface {
	Emit(ctx context.Context, queue string, action string, data []byte) error
}

type RabbitMQ struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	queues     map[string]amqp.Queue
	journal    *Journal

	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

// RabbitMQConnect dials the broker from the RABBITMQ_* settings and
// declares queues. journal may be nil.
func RabbitMQConnect(queues []string, journal *Journal) (*RabbitMQ, error) {
	connection, err := amqp.Dial(fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		config.ConfigDefault("RABBITMQ_USER", "guest"),
		config.ConfigDefault("RABBITMQ_PASSWORD", "guest"),
		config.ConfigDefault("RABBITMQ_HOST", "localhost"),
		config.ConfigDefault("RABBITMQ_PORT", "5672"),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	log.Printf("connection opened to RabbitMQ server")

	channel, err := connection.Channel()
	if err != nil {
		connection.Close()
		return nil, fmt.Errorf("failed to open a RabbitMQ channel: %w", err)
	}
	log.Printf("opened a RabbitMQ channel")

	r := &RabbitMQ{
		connection: connection,
		channel:    channel,
		queues:     make(map[string]amqp.Queue),
		journal:    journal,
	}

	for _, name := range queues {
		queue, err := channel.QueueDeclare(
			name,  // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to declare RabbitMQ queue %s: %w", name, err)
		}

		r.queues[name] = queue
		log.Printf("success declare a RabbitMQ queue: %s", name)
	}
	return r, nil
}

// Subscribe forwards every message of each listener queue to its channel.
// Messages are acknowledged once handed over.
func (r *RabbitMQ) Subscribe(listeners []RabbitMQSubscribeListener) error {
	for _, listener := range listeners {
		msgs, err := r.channel.Consume(
			listener.Queue, // queue
			"",             // consumer
			false,          // auto-ack
			false,          // exclusive
			false,          // no-local
			false,          // no-wait
			nil,            // args
		)
		if err != nil {
			return fmt.Errorf("failed to register a consumer on %s: %w", listener.Queue, err)
		}
		log.Printf("success subscribe to RabbitMQ [%s] queue", listener.Queue)

		go func(listener RabbitMQSubscribeListener) {
			for msg := range msgs {
				action, _ := msg.Headers[RabbitMQActionHeader].(string)
				r.journal.In(listener.Queue, action, msg.Body)

				listener.Channel <- Delivery{
					Queue:  listener.Queue,
					Action: action,
					Data:   msg.Body,
				}
				if err := msg.Ack(false); err != nil {
					log.Printf("ack on [%s] failed: %v", listener.Queue, err)
				}
			}
		}(listener)
	}
	return nil
}

func (r *RabbitMQ) Emit(ctx context.Context, queue string, action string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	r.mu.Lock()
	err := r.channel.PublishWithContext(
		ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Headers: amqp.Table{
				RabbitMQActionHeader: action,
			},
			Body: data,
		},
	)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}

	r.journal.Out(queue, action, data)
	return nil
}

func (r *RabbitMQ) Close() error {
	return errors.Join(r.channel.Close(), r.connection.Close())
}
