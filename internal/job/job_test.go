package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"virtualbank/internal/infrastructure/metrics"
	"virtualbank/internal/infrastructure/mq"
	"virtualbank/internal/model"
	"virtualbank/internal/repository/memory"
	"virtualbank/pkg/clock"
)

var now = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

type stubPublisher struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (p *stubPublisher) Publish(ctx context.Context, topic, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, key)
	return nil
}

type countingRecorder struct {
	metrics.NoopRecorder
	mu      sync.Mutex
	results map[string]int
}

func (r *countingRecorder) IncOutboxPublished(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = make(map[string]int)
	}
	r.results[result]++
}

func seedOutbox(t *testing.T, store *memory.Store, keys ...string) {
	t.Helper()
	for _, key := range keys {
		err := store.InsertOutbox(context.Background(), &model.OutboxMessage{
			MessageKey: key,
			EventType:  model.EventTransfer,
			Topic:      "funds-events",
			Payload:    fmt.Sprintf(`{"reference":%q}`, key),
			Status:     model.OutboxStatusPending,
		})
		if err != nil {
			t.Fatalf("insert outbox: %v", err)
		}
	}
}

func statuses(store *memory.Store) map[string]string {
	out := make(map[string]string)
	for _, m := range store.OutboxMessages() {
		out[m.MessageKey] = m.Status
	}
	return out
}

func TestOutboxSenderMarksSent(t *testing.T) {
	store := memory.NewStore().WithClock(clock.Fixed(now))
	seedOutbox(t, store, "TRF-1", "TRF-2")
	pub := &stubPublisher{}
	rec := &countingRecorder{}

	NewOutboxSender(store, pub, rec, 3).processPendingMessages(context.Background())

	if len(pub.sent) != 2 || pub.sent[0] != "TRF-1" || pub.sent[1] != "TRF-2" {
		t.Fatalf("unexpected sends %v", pub.sent)
	}
	for key, status := range statuses(store) {
		if status != model.OutboxStatusSent {
			t.Fatalf("%s status = %s", key, status)
		}
	}
	if rec.results[metrics.OutboxSent] != 2 {
		t.Fatalf("unexpected metrics %v", rec.results)
	}
}

func TestOutboxSenderRetriesThenFails(t *testing.T) {
	store := memory.NewStore().WithClock(clock.Fixed(now))
	seedOutbox(t, store, "TRF-1")
	pub := &stubPublisher{err: errors.New("broker down")}
	rec := &countingRecorder{}
	sender := NewOutboxSender(store, pub, rec, 3)

	for i := 0; i < 2; i++ {
		sender.processPendingMessages(context.Background())
		msg := store.OutboxMessages()[0]
		if msg.Status != model.OutboxStatusPending || msg.RetryCount != i+1 {
			t.Fatalf("round %d: unexpected %+v", i, msg)
		}
	}

	sender.processPendingMessages(context.Background())
	msg := store.OutboxMessages()[0]
	if msg.Status != model.OutboxStatusFailed {
		t.Fatalf("expected FAILED after max retries, got %+v", msg)
	}
	if rec.results[metrics.OutboxRetry] != 2 || rec.results[metrics.OutboxFailed] != 1 {
		t.Fatalf("unexpected metrics %v", rec.results)
	}

	// FAILED 的消息不再被发送任务读取
	pub.err = nil
	sender.processPendingMessages(context.Background())
	if len(pub.sent) != 0 {
		t.Fatalf("failed message must not be resent, got %v", pub.sent)
	}
}

func TestOutboxSenderBacksOffWhenBreakerOpen(t *testing.T) {
	store := memory.NewStore().WithClock(clock.Fixed(now))
	seedOutbox(t, store, "TRF-1", "TRF-2")
	pub := &stubPublisher{err: fmt.Errorf("%w: circuit breaker is open", mq.ErrPublisherUnavailable)}
	rec := &countingRecorder{}

	NewOutboxSender(store, pub, rec, 3).processPendingMessages(context.Background())

	for _, m := range store.OutboxMessages() {
		if m.Status != model.OutboxStatusPending || m.RetryCount != 0 {
			t.Fatalf("deferred message must stay untouched: %+v", m)
		}
	}
	if rec.results[metrics.OutboxDeferred] != 1 {
		t.Fatalf("expected one deferred batch, got %v", rec.results)
	}
}

func TestOutboxSenderStopsOnStop(t *testing.T) {
	sender := NewOutboxSender(memory.NewStore(), &stubPublisher{}, nil, 3)
	done := make(chan struct{})
	go func() {
		sender.Start(context.Background())
		close(done)
	}()

	sender.Stop()
	sender.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sender did not stop")
	}
}

func TestOutboxRequeueJob(t *testing.T) {
	store := memory.NewStore().WithClock(clock.Fixed(now))
	seedOutbox(t, store, "OLD", "RECENT", "PENDING")

	msgs := store.OutboxMessages()
	for _, m := range msgs[:2] {
		if err := store.MarkAsFailed(context.Background(), m.ID); err != nil {
			t.Fatalf("mark failed: %v", err)
		}
	}
	store.SetOutboxUpdatedAt(msgs[0].ID, now.Add(-2*time.Hour))
	store.SetOutboxUpdatedAt(msgs[1].ID, now.Add(-time.Minute))

	job := NewOutboxRequeueJob(store, time.Hour, clock.Fixed(now))
	if n := job.requeueFailedMessages(context.Background()); n != 1 {
		t.Fatalf("requeued = %d, want 1", n)
	}

	got := statuses(store)
	if got["OLD"] != model.OutboxStatusPending || got["RECENT"] != model.OutboxStatusFailed || got["PENDING"] != model.OutboxStatusPending {
		t.Fatalf("unexpected statuses %v", got)
	}
	for _, m := range store.OutboxMessages() {
		if m.MessageKey == "OLD" && m.RetryCount != 0 {
			t.Fatalf("requeue must reset retry_count, got %d", m.RetryCount)
		}
	}
}
