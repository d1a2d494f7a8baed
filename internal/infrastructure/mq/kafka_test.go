package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/sony/gobreaker"
)

func TestKafkaPublisherSendsKeyAndValue(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"a":1}` {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})

	p := NewKafkaPublisher(producer)
	if err := p.Publish(context.Background(), "funds-events", "TRF1", `{"a":1}`); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestKafkaPublisherReturnsProducerError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisher(producer)
	err := p.Publish(context.Background(), "funds-events", "k", "v")
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}
	_ = p.Close()
}

type failingPublisher struct {
	calls int
}

func (f *failingPublisher) Publish(ctx context.Context, topic, key, value string) error {
	f.calls++
	return errors.New("broker down")
}

func TestBreakerPublisherOpensAfterConsecutiveFailures(t *testing.T) {
	next := &failingPublisher{}
	bp := NewBreakerPublisher(next, BreakerSettings{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             time.Minute,
		ConsecutiveFailures: 2,
	})

	for i := 0; i < 2; i++ {
		if err := bp.Publish(context.Background(), "t", "k", "v"); err == nil {
			t.Fatal("expected failure")
		}
	}
	if bp.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", bp.State())
	}

	err := bp.Publish(context.Background(), "t", "k", "v")
	if !errors.Is(err, ErrPublisherUnavailable) {
		t.Fatalf("expected ErrPublisherUnavailable, got %v", err)
	}
	if next.calls != 2 {
		t.Fatalf("open breaker must not call through, calls = %d", next.calls)
	}
}
