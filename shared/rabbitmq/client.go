package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config holds RabbitMQ connection configuration
type Config struct {
	Host          string
	Port          int
	User          string
	Password      string
	VHost         string
	RetryAttempts int
	RetryInterval time.Duration
	Heartbeat     time.Duration
}

// Client represents a RabbitMQ client. The connection and channel are
// shared process-wide and established lazily on first use: the first
// caller dials, later callers wait on the mutex and reuse the channel.
type Client struct {
	config  *Config
	logger  *slog.Logger
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewClient creates a new RabbitMQ client. No connection is made until
// the first publish, consume, or subscribe call.
func NewClient(config *Config, logger *slog.Logger) *Client {
	return &Client{
		config: config,
		logger: logger,
	}
}

// ensureChannel establishes the shared connection and channel once.
func (c *Client) ensureChannel() (*amqp.Channel, error) {
	if ch := c.currentChannel(); ch != nil {
		return ch, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}

	dsn := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		c.config.User,
		c.config.Password,
		c.config.Host,
		c.config.Port,
		c.config.VHost,
	)

	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}

	attempts := c.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		conn, err = amqp.DialConfig(dsn, amqpConfig)
		if err == nil {
			break
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt < attempts {
			time.Sleep(c.config.RetryInterval)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	c.conn = conn
	c.channel = channel

	c.logger.Info("RabbitMQ connection established",
		slog.String("host", c.config.Host),
		slog.Int("port", c.config.Port),
	)

	return channel, nil
}

func (c *Client) currentChannel() *amqp.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel
	}
	return nil
}

// PublishQueue publishes a persistent JSON message directly to a durable
// queue via the default exchange. The queue is declared on every publish
// so producer and consumer can start in any order.
func (c *Client) PublishQueue(ctx context.Context, queue string, body []byte) error {
	channel, err := c.ensureChannel()
	if err != nil {
		return err
	}

	_, err = channel.QueueDeclare(
		queue, // name
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", queue, err)
	}

	err = channel.PublishWithContext(
		ctx,
		"",    // default exchange
		queue, // routing key is the queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to queue %q: %w", queue, err)
	}

	c.logger.Debug("Message published to queue",
		slog.String("queue", queue),
		slog.Int("body_size", len(body)),
	)

	return nil
}

// PublishFanout publishes a persistent JSON message to a durable fanout
// exchange. Every queue currently bound to the exchange receives a copy;
// delivery is fire-and-forget from the publisher's perspective.
func (c *Client) PublishFanout(ctx context.Context, exchange string, body []byte) error {
	channel, err := c.ensureChannel()
	if err != nil {
		return err
	}

	err = channel.ExchangeDeclare(
		exchange,            // name
		amqp.ExchangeFanout, // type
		true,                // durable
		false,               // auto-delete
		false,               // internal
		false,               // no-wait
		nil,                 // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %q: %w", exchange, err)
	}

	err = channel.PublishWithContext(
		ctx,
		exchange,
		"",    // fanout ignores the routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to exchange %q: %w", exchange, err)
	}

	c.logger.Debug("Message published to exchange",
		slog.String("exchange", exchange),
		slog.Int("body_size", len(body)),
	)

	return nil
}

// ConsumeQueue declares a durable queue, applies the prefetch limit, and
// starts a manual-acknowledgment consumer on it.
func (c *Client) ConsumeQueue(queue, consumerTag string, prefetch int) (<-chan amqp.Delivery, error) {
	channel, err := c.ensureChannel()
	if err != nil {
		return nil, err
	}

	_, err = channel.QueueDeclare(
		queue, // name
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue %q: %w", queue, err)
	}

	if err := channel.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := channel.Consume(
		queue,
		consumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume from queue %q: %w", queue, err)
	}

	c.logger.Info("Started consuming from queue",
		slog.String("queue", queue),
		slog.String("consumer_tag", consumerTag),
		slog.Int("prefetch", prefetch),
	)

	return deliveries, nil
}

// SubscribeFanout binds a fresh broker-named queue (non-durable,
// exclusive, auto-delete) to a durable fanout exchange and starts a
// manual-acknowledgment consumer on it. Events published before the
// subscription exist never reach this queue.
func (c *Client) SubscribeFanout(exchange, consumerTag string) (<-chan amqp.Delivery, string, error) {
	channel, err := c.ensureChannel()
	if err != nil {
		return nil, "", err
	}

	err = channel.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to declare exchange %q: %w", exchange, err)
	}

	q, err := channel.QueueDeclare(
		"",    // broker-generated name
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to declare subscriber queue: %w", err)
	}

	err = channel.QueueBind(
		q.Name,
		"", // fanout ignores the routing key
		exchange,
		false,
		nil,
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to bind queue %q to exchange %q: %w", q.Name, exchange, err)
	}

	if err := channel.Qos(1, 0, false); err != nil {
		return nil, "", fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := channel.Consume(
		q.Name,
		consumerTag,
		false, // auto-ack
		false, // exclusive consumer
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to consume from queue %q: %w", q.Name, err)
	}

	c.logger.Info("Subscribed to fanout exchange",
		slog.String("exchange", exchange),
		slog.String("queue", q.Name),
		slog.String("consumer_tag", consumerTag),
	)

	return deliveries, q.Name, nil
}

// Close closes the RabbitMQ channel and connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("Closing RabbitMQ connection")

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ channel",
				slog.Any("error", err),
			)
		}
		c.channel = nil
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ connection",
				slog.Any("error", err),
			)
			c.conn = nil
			return err
		}
		c.conn = nil
	}

	return nil
}
