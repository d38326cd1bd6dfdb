package bus

import (
	"context"
	"fmt"
)

const progressQueueDefault = "install_progress"

// Consume declares (idempotently) the progress queue, binds it to the
// install exchange with the install.progress.*.*.* pattern, and returns a
// channel of decoded progress events. One consumer per coordinator process
// per §4.3. Re-declare/re-bind happens transparently across reconnects.
func (c *Client) Consume(ctx context.Context, queueName string) (<-chan ProgressEvent, error) {
	if queueName == "" {
		queueName = progressQueueDefault
	}

	if err := c.declareConsumerTopology(queueName); err != nil {
		return nil, err
	}

	deliveries, err := c.ch.ConsumeWithContext(ctx, queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("starting consumer: %w", err)
	}

	out := make(chan ProgressEvent)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return

			case d, ok := <-deliveries:
				if !ok {
					// Channel/connection dropped; reconnect and resubscribe.
					if err := c.reconnect(ctx); err != nil {
						c.logger.Error("amqp consumer: reconnect failed, giving up", "error", err)
						return
					}
					if err := c.declareConsumerTopology(queueName); err != nil {
						c.logger.Error("amqp consumer: re-declare failed, giving up", "error", err)
						return
					}
					redeliveries, err := c.ch.ConsumeWithContext(ctx, queueName, "", false, false, false, false, nil)
					if err != nil {
						c.logger.Error("amqp consumer: re-consume failed, giving up", "error", err)
						return
					}
					deliveries = redeliveries
					continue
				}

				event, err := decodeProgressEvent(d.Body)
				if err != nil {
					c.logger.Error("progress event decode failed, dropping", "error", err)
					_ = d.Nack(false, false)
					continue
				}
				event.delivery = d

				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (c *Client) declareConsumerTopology(queueName string) error {
	if _, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring progress queue: %w", err)
	}
	if err := c.ch.QueueBind(queueName, progressPattern, exchangeName, false, nil); err != nil {
		return fmt.Errorf("binding progress queue: %w", err)
	}
	return nil
}
