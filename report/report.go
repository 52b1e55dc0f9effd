package report

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"auto_social_post_publisher/pipeline"
)

const eventType = "post.outcome"

// Envelope is the message body sent for every finished run.
type Envelope struct {
	Meta    Meta            `json:"meta"`
	Payload pipeline.Result `json:"payload"`
}

type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	CorrelationID string    `json:"correlation_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewEnvelope wraps res; the run ID doubles as correlation ID.
func NewEnvelope(res pipeline.Result) Envelope {
	occurred := res.FinishedAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return Envelope{
		Meta: Meta{
			ID:            uuid.NewString(),
			Type:          eventType,
			CorrelationID: res.RunID,
			OccurredAt:    occurred.UTC(),
		},
		Payload: res,
	}
}

// RoutingKey is post.<status>, plus the stage for failures.
func RoutingKey(res pipeline.Result) string {
	key := "post." + string(res.Status)
	if res.Status == pipeline.StatusFailed && res.Stage != "" {
		key += "." + string(res.Stage)
	}
	return key
}

// Nop discards outcomes.
type Nop struct{}

func (Nop) Report(context.Context, pipeline.Result) error { return nil }

// AMQP publishes outcomes to a durable topic exchange.
type AMQP struct {
	conn     *amqp091.Connection
	exchange string
	logger   *zap.Logger
}

func NewAMQP(url, exchange string, logger *zap.Logger) (*AMQP, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &AMQP{conn: conn, exchange: exchange, logger: logger}, nil
}

func (a *AMQP) Report(ctx context.Context, res pipeline.Result) error {
	ch, err := a.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	env := NewEnvelope(res)
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	key := RoutingKey(res)
	err = ch.PublishWithContext(ctx, a.exchange, key, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: env.Meta.CorrelationID,
		Type:          eventType,
		Timestamp:     env.Meta.OccurredAt,
		Body:          body,
	})
	if err == nil {
		a.logger.Debug("outcome published", zap.String("key", key), zap.String("exchange", a.exchange))
	}
	return err
}

func (a *AMQP) Close() error {
	return a.conn.Close()
}
