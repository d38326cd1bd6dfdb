// Package bus wraps the message broker carrying deployment provisioning
// requests out and progress events back in (§4.3, §6). Exchange "install"
// (topic); submissions route on "install.start.<provider>.<region>.<flavor>",
// progress events are consumed from a queue bound to "install.progress.*.*.*".
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/trydirect/stacker/internal/telemetry"
)

const (
	exchangeName    = "install"
	submitKeyFormat = "install.start.%s.%s.%s"
	progressPattern = "install.progress.*.*.*"
)

// ProgressEvent is a message-bus progress update (§3, §6). Numeric fields are
// accepted as string or integer only; see decode.go for the float-rejection
// rule.
type ProgressEvent struct {
	ID       *string
	DeployID *string
	Alert    int
	Message  string
	Status   string
	Progress *string

	delivery amqp.Delivery
}

// Ack acknowledges the underlying delivery. Callers must only call this
// after the progress event's effect is durable in the persistence store
// (§4.3: "no message is acked until its effect is durable").
func (p ProgressEvent) Ack() error {
	return p.delivery.Ack(false)
}

// Nack rejects the delivery without requeueing it; used when the payload
// fails to decode (§9's open question: a float numeric field is dropped,
// not guessed at).
func (p ProgressEvent) Nack() error {
	return p.delivery.Nack(false, false)
}

// Client owns the AMQP connection/channel pair and reconnects with
// exponential backoff capped at 30s (§4.3).
type Client struct {
	url          string
	reconnectMax time.Duration
	logger       *slog.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
}

// New dials the broker at url and declares the install exchange. The
// progress queue and its binding are declared by Consume.
func New(ctx context.Context, url string, reconnectMax time.Duration, logger *slog.Logger) (*Client, error) {
	c := &Client{url: url, reconnectMax: reconnectMax, logger: logger}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dialing amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("opening channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declaring exchange: %w", err)
	}

	c.conn, c.ch = conn, ch
	return nil
}

// reconnect retries connect with exponential backoff capped at c.reconnectMax.
func (c *Client) reconnect(ctx context.Context) error {
	backoff := 500 * time.Millisecond
	for {
		telemetry.BusReconnectsTotal.Inc()
		err := c.connect(ctx)
		if err == nil {
			return nil
		}

		c.logger.Warn("amqp reconnect failed", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.reconnectMax {
			backoff = c.reconnectMax
		}
	}
}

// Publish sends payload to the install exchange with a routing key built from
// provider/region/flavor, at-least-once (publisher confirms are not
// required; durable exchange + persistent delivery is the durability
// contract).
func (c *Client) Publish(ctx context.Context, provider, region, flavor string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling publish payload: %w", err)
	}

	key := fmt.Sprintf(submitKeyFormat, provider, region, flavor)

	err = c.ch.PublishWithContext(ctx, exchangeName, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		if rerr := c.reconnect(ctx); rerr != nil {
			return fmt.Errorf("publishing (reconnect failed): %w", err)
		}
		return c.Publish(ctx, provider, region, flavor, payload)
	}

	return nil
}

// Ping reports whether the AMQP connection is open, for use by the health
// aggregator (§4.10).
func (c *Client) Ping(ctx context.Context) error {
	if c.conn == nil || c.conn.IsClosed() {
		return fmt.Errorf("amqp connection closed")
	}
	return nil
}

// Close releases the channel and connection.
func (c *Client) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
