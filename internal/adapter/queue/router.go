package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aq2208/gorder-storefront/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// consumeChannel is the part of *amqp.Channel the router uses.
type consumeChannel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
}

// Router manages multiple consumers (one per registered queue) on a single AMQP channel.
type Router struct {
	ch            consumeChannel
	prefetch      int
	callTimeout   time.Duration
	requeueOnErr  bool
	registrations []registration
	log           *slog.Logger
}

type registration struct {
	queueName   string
	handler     Handler
	consumerTag string
}

// --- Options ---

type RouterOption func(*Router)

func WithPrefetch(n int) RouterOption          { return func(r *Router) { r.prefetch = n } }
func WithTimeout(d time.Duration) RouterOption { return func(r *Router) { r.callTimeout = d } }
func WithRequeue(b bool) RouterOption          { return func(r *Router) { r.requeueOnErr = b } }

// NewRouter constructs a Router. Defaults: prefetch=50, timeout=10s, requeueOnErr=true.
func NewRouter(ch consumeChannel, opts ...RouterOption) *Router {
	r := &Router{
		ch:           ch,
		prefetch:     50,
		callTimeout:  10 * time.Second,
		requeueOnErr: true,
		log:          logging.New("rmq-router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.prefetch <= 0 {
		r.prefetch = 50
	}
	if r.callTimeout <= 0 {
		r.callTimeout = 10 * time.Second
	}
	return r
}

// Register associates a queue with a handler. Call multiple times for multiple queues.
func (r *Router) Register(queueName string, h Handler) {
	r.registrations = append(r.registrations, registration{
		queueName:   queueName,
		handler:     h,
		consumerTag: "c_" + queueName,
	})
}

// Run consumes every registered queue until ctx is cancelled, then cancels
// the consumers and waits for in-flight deliveries to be acked or nacked.
// QoS (prefetch) is set per-channel and applies to all consumers on this channel.
func (r *Router) Run(ctx context.Context) error {
	if err := r.ch.Qos(r.prefetch, 0, false); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, reg := range r.registrations {
		deliveries, err := r.ch.Consume(
			reg.queueName,
			reg.consumerTag,
			false, // manual ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			r.cancelAll()
			wg.Wait()
			return err
		}

		wg.Add(1)
		go func(reg registration, msgs <-chan amqp.Delivery) {
			defer wg.Done()
			for d := range msgs {
				r.dispatch(ctx, reg, d)
			}
			r.log.Info("consumer stopped", "queue", reg.queueName, "tag", reg.consumerTag)
		}(reg, deliveries)
	}

	<-ctx.Done()
	r.cancelAll()
	wg.Wait()
	return nil
}

func (r *Router) cancelAll() {
	for _, reg := range r.registrations {
		_ = r.ch.Cancel(reg.consumerTag, false)
	}
}

func (r *Router) dispatch(ctx context.Context, reg registration, d amqp.Delivery) {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.callTimeout)
	err := reg.handler.Handle(hctx, d)
	cancel()

	if err == nil {
		_ = d.Ack(false)
		return
	}
	requeue := r.requeueOnErr && !errors.Is(err, ErrPoison)
	r.log.Warn("handler error",
		"queue", reg.queueName, "tag", reg.consumerTag, "rk", d.RoutingKey,
		"err", err, "requeue", requeue)
	_ = d.Nack(false, requeue)
}
