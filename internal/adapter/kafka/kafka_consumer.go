package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/aq2208/gorder-storefront/internal/logging"
)

// ErrSkip tells the consumer the message can never be applied; it is
// marked and not retried.
var ErrSkip = errors.New("skip message")

// HandlerFunc processes one raw message value.
type HandlerFunc func(ctx context.Context, key, value []byte) error

// Consumer consumes topics with a single handler. A handler error other than
// ErrSkip leaves the message unmarked and restarts the session after
// RetryDelay, so the message is redelivered from the last committed offset.
type Consumer struct {
	Group      sarama.ConsumerGroup
	Topics     []string
	Handle     HandlerFunc
	RetryDelay time.Duration
	Logger     *slog.Logger
}

func NewConsumer(group sarama.ConsumerGroup, topics []string, h HandlerFunc) *Consumer {
	return &Consumer{
		Group:      group,
		Topics:     topics,
		Handle:     h,
		RetryDelay: 2 * time.Second,
		Logger:     logging.New("kafka-consumer"),
	}
}

// Run blocks until ctx is cancelled, then closes the group.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.Group.Close()

	go func() {
		for err := range c.Group.Errors() {
			c.Logger.Warn("consumer group error", "err", err)
		}
	}()

	handler := &cgHandler{handle: c.Handle, logger: c.Logger, retryDelay: c.RetryDelay}
	for {
		if err := c.Group.Consume(ctx, c.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		// When Consume returns, it’s because ctx was cancelled or a rebalance happened.
		if ctx.Err() != nil {
			return nil
		}
	}
}

type cgHandler struct {
	handle     HandlerFunc
	logger     *slog.Logger
	retryDelay time.Duration
}

func (h *cgHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *cgHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *cgHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		ctx := logging.WithCtx(sess.Context(), h.logger.With(
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset))

		err := h.handle(ctx, msg.Key, msg.Value)
		switch {
		case err == nil:
			sess.MarkMessage(msg, "")
		case errors.Is(err, ErrSkip):
			h.logger.Warn("message skipped", "err", err, "key", string(msg.Key), "offset", msg.Offset)
			sess.MarkMessage(msg, "skipped")
		default:
			h.logger.Error("handler error, will retry", "err", err, "key", string(msg.Key), "offset", msg.Offset)
			select {
			case <-sess.Context().Done():
			case <-time.After(h.retryDelay):
			}
			// ending the claim ends the session; the next one resumes at the unmarked offset
			return nil
		}
	}
	return nil
}
