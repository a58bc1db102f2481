package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/aq2208/gorder-storefront/internal/logging"
	"github.com/aq2208/gorder-storefront/internal/usecase"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey, messageID string, body []byte) error
}

type RelayOptions struct {
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
}

// Relay moves PENDING outbox rows to the broker. Delivery is at least once:
// a crash between publish and MarkSent republishes the row, and two relays
// over the same table may both send it.
type Relay struct {
	repo usecase.OutboxRepo
	pub  Publisher
	opts RelayOptions
	now  func() time.Time
	log  *slog.Logger
}

func NewRelay(repo usecase.OutboxRepo, pub Publisher, opts RelayOptions) *Relay {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 8
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 2 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 10 * time.Minute
	}
	return &Relay{repo: repo, pub: pub, opts: opts, now: time.Now, log: logging.New("outbox-relay")}
}

// Run drains due messages every poll interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.opts.PollInterval)
	defer t.Stop()
	for {
		if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.log.Error("outbox drain failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// Drain publishes one batch of due messages and returns how many were sent.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	msgs, err := r.repo.FetchDue(ctx, r.now(), r.opts.BatchSize)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, m := range msgs {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if err := r.pub.Publish(ctx, m.Channel, m.ID, m.Payload); err != nil {
			r.retry(ctx, m, err)
			continue
		}
		if err := r.repo.MarkSent(ctx, m.ID); err != nil {
			// published but not marked: it goes out again next round
			r.log.Error("outbox mark sent failed", "id", m.ID, "err", err)
			continue
		}
		sent++
	}
	return sent, nil
}

func (r *Relay) retry(ctx context.Context, m usecase.OutboxMessage, cause error) {
	attempt := m.RetryCount + 1
	failed := attempt >= r.opts.MaxRetries
	next := r.now().Add(r.Backoff(attempt))
	if err := r.repo.MarkRetry(ctx, m.ID, next, failed); err != nil {
		r.log.Error("outbox mark retry failed", "id", m.ID, "err", err)
		return
	}
	if failed {
		r.log.Error("outbox message parked as FAILED", "id", m.ID, "channel", m.Channel, "attempts", attempt, "err", cause)
		return
	}
	r.log.Warn("outbox publish failed", "id", m.ID, "channel", m.Channel, "attempt", attempt, "next", next, "err", cause)
}

// Backoff is BaseBackoff doubled per prior attempt, capped at MaxBackoff.
func (r *Relay) Backoff(attempt int) time.Duration {
	d := r.opts.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= r.opts.MaxBackoff {
			return r.opts.MaxBackoff
		}
	}
	return d
}
