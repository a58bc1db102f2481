package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aq2208/gorder-storefront/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type memOutbox struct {
	mu   sync.Mutex
	msgs map[string]*usecase.OutboxMessage
}

func newMemOutbox(msgs ...usecase.OutboxMessage) *memOutbox {
	m := &memOutbox{msgs: map[string]*usecase.OutboxMessage{}}
	for i := range msgs {
		msg := msgs[i]
		if msg.Status == "" {
			msg.Status = usecase.OutboxPending
		}
		m.msgs[msg.ID] = &msg
	}
	return m
}

func (m *memOutbox) FetchDue(_ context.Context, now time.Time, limit int) ([]usecase.OutboxMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []usecase.OutboxMessage
	for _, msg := range m.msgs {
		if msg.Status == usecase.OutboxPending && !msg.NextAttemptAt.After(now) && len(out) < limit {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (m *memOutbox) MarkSent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs[id].Status = usecase.OutboxSent
	return nil
}

func (m *memOutbox) MarkRetry(_ context.Context, id string, next time.Time, failed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.msgs[id]
	msg.RetryCount++
	msg.NextAttemptAt = next
	if failed {
		msg.Status = usecase.OutboxFailed
	}
	return nil
}

func (m *memOutbox) get(id string) usecase.OutboxMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.msgs[id]
}

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (p *fakePublisher) Publish(_ context.Context, routingKey, messageID string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, routingKey+"/"+messageID)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

var t0 = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func TestRelay_DrainPublishesDueMessages(t *testing.T) {
	repo := newMemOutbox(
		usecase.OutboxMessage{ID: "m1", Channel: usecase.ChannelOrderCreated, NextAttemptAt: t0},
		usecase.OutboxMessage{ID: "m2", Channel: usecase.ChannelOrderCreated, NextAttemptAt: t0.Add(time.Hour)},
	)
	pub := &fakePublisher{}
	r := NewRelay(repo, pub, RelayOptions{})
	r.now = func() time.Time { return t0 }

	n, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"order.created/m1"}, pub.sent)
	assert.Equal(t, usecase.OutboxSent, repo.get("m1").Status)
	assert.Equal(t, usecase.OutboxPending, repo.get("m2").Status, "not due yet")
}

func TestRelay_FailureSchedulesRetryThenParks(t *testing.T) {
	repo := newMemOutbox(usecase.OutboxMessage{ID: "m1", Channel: usecase.ChannelOrderCreated, NextAttemptAt: t0})
	pub := &fakePublisher{err: errors.New("broker down")}
	r := NewRelay(repo, pub, RelayOptions{MaxRetries: 3, BaseBackoff: time.Second})
	now := t0
	r.now = func() time.Time { return now }

	_, err := r.Drain(context.Background())
	require.NoError(t, err)
	m := repo.get("m1")
	assert.Equal(t, 1, m.RetryCount)
	assert.Equal(t, usecase.OutboxPending, m.Status)
	assert.Equal(t, t0.Add(time.Second), m.NextAttemptAt)

	now = m.NextAttemptAt
	_, err = r.Drain(context.Background())
	require.NoError(t, err)
	m = repo.get("m1")
	assert.Equal(t, 2, m.RetryCount)
	assert.Equal(t, now.Add(2*time.Second), m.NextAttemptAt)

	now = m.NextAttemptAt
	_, err = r.Drain(context.Background())
	require.NoError(t, err)
	m = repo.get("m1")
	assert.Equal(t, 3, m.RetryCount)
	assert.Equal(t, usecase.OutboxFailed, m.Status)

	// parked messages are never fetched again
	pub.err = nil
	n, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelay_Backoff(t *testing.T) {
	r := NewRelay(newMemOutbox(), &fakePublisher{}, RelayOptions{BaseBackoff: time.Second, MaxBackoff: 5 * time.Second})
	assert.Equal(t, time.Second, r.Backoff(1))
	assert.Equal(t, 2*time.Second, r.Backoff(2))
	assert.Equal(t, 4*time.Second, r.Backoff(3))
	assert.Equal(t, 5*time.Second, r.Backoff(4))
	assert.Equal(t, 5*time.Second, r.Backoff(30))
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := newMemOutbox(usecase.OutboxMessage{ID: "m1", Channel: usecase.ChannelOrderCreated, NextAttemptAt: t0})
	pub := &fakePublisher{}
	r := NewRelay(repo, pub, RelayOptions{PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
