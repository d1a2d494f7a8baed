package mq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"virtualbank/internal/config"
	"virtualbank/internal/logging"

	"github.com/IBM/sarama"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrPublisherUnavailable 熔断器打开，消息未发送
var ErrPublisherUnavailable = errors.New("消息队列暂不可用")

// Publisher 发送一条消息到指定 topic
type Publisher interface {
	Publish(ctx context.Context, topic, key, value string) error
}

// NewSyncProducer 创建 Kafka 同步生产者
func NewSyncProducer(cfg *config.KafkaConfig) (sarama.SyncProducer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}
	return producer, nil
}

// KafkaPublisher 基于 sarama.SyncProducer 的 Publisher
type KafkaPublisher struct {
	producer sarama.SyncProducer
}

func NewKafkaPublisher(producer sarama.SyncProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// BreakerSettings 熔断参数
type BreakerSettings struct {
	MaxRequests         uint32        // 半开状态允许通过的请求数
	Interval            time.Duration // 关闭状态下计数清零周期
	Timeout             time.Duration // 打开状态持续时间
	ConsecutiveFailures uint32        // 连续失败多少次后打开
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// BreakerPublisher Kafka 不可用时快速失败，消息留在本地消息表等待下一轮
type BreakerPublisher struct {
	next   Publisher
	cb     *gobreaker.CircuitBreaker
	logger *logging.Logger
}

func NewBreakerPublisher(next Publisher, settings BreakerSettings) *BreakerPublisher {
	logger := logging.Global().Named("publisher")
	bp := &BreakerPublisher{next: next, logger: logger}
	bp.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("熔断器状态变化",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return bp
}

func (bp *BreakerPublisher) Publish(ctx context.Context, topic, key, value string) error {
	_, err := bp.cb.Execute(func() (interface{}, error) {
		return nil, bp.next.Publish(ctx, topic, key, value)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrPublisherUnavailable, err)
	}
	return err
}

// State 当前熔断器状态
func (bp *BreakerPublisher) State() gobreaker.State {
	return bp.cb.State()
}
