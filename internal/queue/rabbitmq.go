package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/i474232898/weather-collector/internal/metrics"
	"github.com/i474232898/weather-collector/internal/weather"
)

const contentTypeJSON = "application/json"

var errPublisherClosed = errors.New("publisher closed")

// amqpChannel is the subset of *amqp.Channel the publisher uses.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// amqpConnection is the subset of *amqp.Connection the publisher uses.
type amqpConnection interface {
	Channel() (amqpChannel, error)
	IsClosed() bool
	Close() error
}

// Dialer opens a broker connection.
type Dialer func(url string) (amqpConnection, error)

// Config configures the publisher.
type Config struct {
	URL     string
	Queue   string
	Timeout time.Duration
}

// RabbitPublisher publishes records to a durable queue over one long-lived
// connection. A failed publish drops the connection; the next call redials.
type RabbitPublisher struct {
	url     string
	queue   string
	timeout time.Duration
	dial    Dialer
	logger  *zap.Logger
	metrics *metrics.Collector

	mu     sync.Mutex
	conn   amqpConnection
	ch     amqpChannel
	closed bool
}

// Option customizes a RabbitPublisher.
type Option func(*RabbitPublisher)

// WithDialer replaces the AMQP dialer.
func WithDialer(d Dialer) Option {
	return func(p *RabbitPublisher) { p.dial = d }
}

// WithMetrics records publish outcomes on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(p *RabbitPublisher) { p.metrics = m }
}

func NewRabbitPublisher(cfg Config, logger *zap.Logger, opts ...Option) *RabbitPublisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	p := &RabbitPublisher{
		url:     cfg.URL,
		queue:   cfg.Queue,
		timeout: cfg.Timeout,
		logger:  logger,
	}
	p.dial = DialAMQP(cfg.Timeout)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DialAMQP returns a Dialer with a bounded connect timeout.
func DialAMQP(timeout time.Duration) Dialer {
	return func(url string) (amqpConnection, error) {
		props := amqp.NewConnectionProperties()
		props.SetClientConnectionName("weather-collector")
		conn, err := amqp.DialConfig(url, amqp.Config{
			Dial:       amqp.DefaultDial(timeout),
			Properties: props,
		})
		if err != nil {
			return nil, err
		}
		return connAdapter{conn}, nil
	}
}

type connAdapter struct {
	*amqp.Connection
}

func (c connAdapter) Channel() (amqpChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Queue returns the target queue name.
func (p *RabbitPublisher) Queue() string { return p.queue }

// Publish serializes rec and publishes it as a persistent message.
func (p *RabbitPublisher) Publish(ctx context.Context, rec weather.Record) error {
	err := p.publish(ctx, rec)
	p.metrics.ObservePublish(err)
	if err != nil {
		return &weather.PublishError{Location: rec.Location, Queue: p.queue, Cause: err}
	}
	return nil
}

func (p *RabbitPublisher) publish(ctx context.Context, rec weather.Record) error {
	body, err := weather.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msgID := uuid.NewString()
	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    msgID,
		Timestamp:    rec.Timestamp,
		Body:         body,
	})
	if err != nil {
		p.reset()
		return fmt.Errorf("publish: %w", err)
	}

	p.logger.Debug("record published",
		zap.String("location_id", rec.Location.Key()),
		zap.String("queue", p.queue),
		zap.String("message_id", msgID),
	)
	return nil
}

// channel returns the open channel, dialing and declaring the queue when
// needed. Caller holds p.mu.
func (p *RabbitPublisher) channel() (amqpChannel, error) {
	if p.closed {
		return nil, errPublisherClosed
	}
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := p.dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connect: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel open: %w", err)
	}

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare %s: %w", p.queue, err)
	}

	p.conn, p.ch = conn, ch
	p.logger.Info("connected to broker", zap.String("queue", p.queue))
	return ch, nil
}

// reset drops the current channel and connection. Caller holds p.mu.
func (p *RabbitPublisher) reset() {
	if p.ch != nil {
		if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			p.logger.Debug("rabbit channel close failed", zap.Error(err))
		}
		p.ch = nil
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			p.logger.Debug("rabbit connection close failed", zap.Error(err))
		}
		p.conn = nil
	}
}

// Close releases the channel and connection. Later publishes fail.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.reset()
	return nil
}
