// Package notify publishes upload lifecycle events to an AMQP 0.9.1 broker
// such as RabbitMQ. Events go to a durable topic exchange with the event
// kind as routing key, so consumers can bind to "upload.*" or to a single
// kind like "upload.failed".
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/phrazzld/uploadq/internal/config"
	"github.com/phrazzld/uploadq/internal/events"
)

// ExchangeKind is the type of the declared exchange
const ExchangeKind = "topic"

// dialRetryInterval is the pause between connection attempts in Dial
const dialRetryInterval = time.Second

// Channel is the part of *amqp.Channel the publisher uses
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher forwards upload events to an exchange. Progress events are not
// published. It implements events.EventHandler.
type Publisher struct {
	channel    Channel
	connection *amqp.Connection
	exchange   string
	logger     *slog.Logger
}

var _ events.EventHandler = (*Publisher)(nil)

// NewPublisher declares the exchange on channel and returns a Publisher for it.
func NewPublisher(channel Channel, exchange string, logger *slog.Logger) (*Publisher, error) {
	if exchange == "" {
		return nil, errors.New("exchange name cannot be empty")
	}
	if err := channel.ExchangeDeclare(exchange, ExchangeKind, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &Publisher{
		channel:  channel,
		exchange: exchange,
		logger:   logger.With("component", "amqp_publisher", "exchange", exchange),
	}, nil
}

// Dial connects to the broker, retrying until ctx is done, opens a channel
// and declares the exchange.
func Dial(ctx context.Context, cfg config.BrokerConfig, logger *slog.Logger) (*Publisher, error) {
	var (
		connection *amqp.Connection
		err        error
	)
	for {
		connection, err = amqp.Dial(cfg.URL)
		if err == nil {
			break
		}
		logger.Warn("broker connection failed, retrying",
			"error", err,
			"retry_in", dialRetryInterval)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to connect to broker: %w", errors.Join(ctx.Err(), err))
		case <-time.After(dialRetryInterval):
		}
	}

	channel, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	publisher, err := NewPublisher(channel, cfg.Exchange, logger)
	if err != nil {
		_ = connection.Close()
		return nil, err
	}
	publisher.connection = connection

	logger.Info("broker connection established", "exchange", cfg.Exchange)
	return publisher, nil
}

// HandleEvent implements events.EventHandler
func (p *Publisher) HandleEvent(ctx context.Context, event *events.UploadEvent) error {
	if event.Kind == events.KindProgress {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal upload event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, string(event.Kind), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.CreatedAt,
		Type:         string(event.Kind),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Kind, err)
	}

	p.logger.DebugContext(ctx, "upload event published",
		"event_id", event.ID,
		"task_id", event.TaskID,
		"routing_key", event.Kind)
	return nil
}

// Close closes the channel and, when the publisher owns it, the connection
func (p *Publisher) Close() error {
	err := p.channel.Close()
	if p.connection != nil {
		err = errors.Join(err, p.connection.Close())
	}
	return err
}
