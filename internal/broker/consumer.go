package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"

	"tipflow/internal/config"
	"tipflow/internal/ingest"
	"tipflow/internal/logging"
	"tipflow/internal/metrics"
	"tipflow/internal/services"
)

// Disposition is how a delivery is settled.
type Disposition string

const (
	DispositionAck     Disposition = "accepted"
	DispositionReject  Disposition = "rejected"
	DispositionRequeue Disposition = "requeued"
)

const (
	metricsSource = "amqp"
	consumerTag   = "tipflow"
)

// Consumer turns queue deliveries into pending runs.
type Consumer struct {
	url      string
	queue    string
	prefetch int
	intake   ingest.RunCreator
	logger   *slog.Logger
	metrics  *metrics.Metrics
	dial     func(url string) (*amqp.Connection, error)
}

// NewConsumer builds a consumer for the configured broker.
func NewConsumer(cfg *config.Config, intake ingest.RunCreator, logger *slog.Logger, m *metrics.Metrics) *Consumer {
	if logger == nil {
		logger = logging.NewNop()
	}
	prefetch := cfg.Broker.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		url:      cfg.Broker.URL,
		queue:    cfg.Broker.Queue,
		prefetch: prefetch,
		intake:   intake,
		logger:   logger.With(logging.String(logging.FieldComponent, "broker")),
		metrics:  m,
		dial:     amqp.Dial,
	}
}

// Run consumes until ctx is cancelled, reconnecting after connection loss.
func (c *Consumer) Run(ctx context.Context) error {
	if strings.TrimSpace(c.url) == "" {
		return services.Wrap(services.ErrConfiguration, "broker", "run", "broker url is not configured", nil)
	}
	for {
		conn, err := backoff.Retry(ctx, func() (*amqp.Connection, error) {
			return c.dial(c.url)
		},
			backoff.WithBackOff(backoff.NewExponentialBackOff()),
			backoff.WithNotify(func(err error, next time.Duration) {
				c.logger.Warn("broker connection failed; retrying",
					logging.Error(err),
					logging.Duration("retry_in", next),
					logging.String(logging.FieldEventType, "broker_dial_failed"),
					logging.String(logging.FieldErrorHint, "check broker.url and that the broker is reachable"),
				)
			}),
		)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("broker unreachable; starting a new connection cycle",
				logging.Error(err),
				logging.String(logging.FieldEventType, "broker_unreachable"),
				logging.String(logging.FieldImpact, "broker events are not ingested until the connection recovers"),
			)
			continue
		}

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("broker consumer interrupted; reconnecting",
			logging.Error(err),
			logging.String(logging.FieldEventType, "broker_reconnect"),
			logging.String(logging.FieldImpact, "events queue in the broker until the consumer returns"),
		)
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		c.queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %q: %w", c.queue, err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	deliveries, err := ch.Consume(
		q.Name,
		consumerTag,
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume queue %q: %w", q.Name, err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.logger.Info("broker consumer started",
		logging.String("queue", q.Name),
		logging.Int("prefetch", c.prefetch),
		logging.String(logging.FieldEventType, "broker_start"),
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr, ok := <-closed:
			if !ok || amqpErr == nil {
				return errors.New("broker connection closed")
			}
			return amqpErr
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.Settle(ctx, delivery)
		}
	}
}

// Settle records delivery and acknowledges it according to the outcome.
func (c *Consumer) Settle(ctx context.Context, delivery amqp.Delivery) Disposition {
	disposition := c.Handle(ctx, delivery.Body, delivery.MessageId)
	var err error
	switch disposition {
	case DispositionAck:
		err = delivery.Ack(false)
	case DispositionReject:
		err = delivery.Reject(false)
	default:
		err = delivery.Nack(false, true)
	}
	if err != nil {
		c.logger.Warn("failed to settle delivery",
			logging.String("disposition", string(disposition)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "broker_settle_failed"),
			logging.String(logging.FieldImpact, "broker will redeliver the message"),
		)
	}
	return disposition
}

// Handle parses body and records a run. messageID is the correlation id
// fallback when the envelope carries none.
func (c *Consumer) Handle(ctx context.Context, body []byte, messageID string) Disposition {
	env, event, err := ingest.ParseEnvelope(body)
	if err != nil {
		c.metrics.EventReceived(metricsSource, string(DispositionReject))
		c.logger.Warn("rejected malformed event",
			logging.Error(err),
			logging.String("event_name", env.Name),
			logging.String(logging.FieldEventType, "broker_event_rejected"),
			logging.String(logging.FieldImpact, "message dropped without requeue"),
		)
		return DispositionReject
	}

	correlationID := strings.TrimSpace(env.ID)
	if correlationID == "" {
		correlationID = strings.TrimSpace(messageID)
	}
	run, err := ingest.Enqueue(ctx, c.intake, event, correlationID)
	if err != nil {
		c.metrics.EventReceived(metricsSource, string(DispositionRequeue))
		c.logger.Error("failed to record event",
			logging.Error(err),
			logging.String(logging.FieldCorrelationID, correlationID),
			logging.String(logging.FieldEventType, "broker_enqueue_failed"),
			logging.String(logging.FieldErrorHint, "check run store access"),
		)
		return DispositionRequeue
	}

	c.metrics.EventReceived(metricsSource, string(DispositionAck))
	c.logger.Info("event accepted",
		logging.String(logging.FieldRunID, run.ID),
		logging.String(logging.FieldCorrelationID, correlationID),
		logging.String("video_resource_id", event.VideoResourceID),
		logging.String(logging.FieldEventType, "broker_event_accepted"),
	)
	return DispositionAck
}
