package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"virtualbank/internal/infrastructure/metrics"
	"virtualbank/internal/infrastructure/mq"
	"virtualbank/internal/logging"
	"virtualbank/internal/model"
	"virtualbank/internal/repository"

	"go.uber.org/zap"
)

// OutboxSender 把本地消息表中的资金事件投递到 Kafka
// 投递成功标记 SENT；失败累加重试次数，达到上限后标记 FAILED，交给 OutboxRequeueJob 处理
type OutboxSender struct {
	store     repository.OutboxStore
	publisher mq.Publisher
	metrics   metrics.Recorder
	logger    *logging.Logger
	maxRetry  int
	interval  time.Duration
	batchSize int
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewOutboxSender(store repository.OutboxStore, publisher mq.Publisher, rec metrics.Recorder, maxRetry int) *OutboxSender {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &OutboxSender{
		store:     store,
		publisher: publisher,
		metrics:   rec,
		logger:    logging.Global().Named("outbox_sender"),
		maxRetry:  maxRetry,
		interval:  100 * time.Millisecond,
		batchSize: 100,
		stopCh:    make(chan struct{}),
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.logger.Info("消息发送任务启动", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.logger.Info("任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	messages, err := s.store.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("查询消息失败", zap.Error(err))
		return
	}

	for _, msg := range messages {
		if !s.sendMessage(ctx, msg) {
			return
		}
	}
}

// sendMessage 返回 false 表示本轮剩余消息不再尝试
func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(ctx, msg.Topic, msg.MessageKey, msg.Payload)

	if err == nil {
		s.metrics.IncOutboxPublished(metrics.OutboxSent)
		if updateErr := s.store.MarkAsSent(ctx, msg.ID); updateErr != nil {
			// 下一轮会重复投递，消费方按 message_key 去重
			s.logger.Error("更新消息状态失败", zap.Int64("id", msg.ID), zap.Error(updateErr))
		} else {
			s.logger.Debug("消息发送成功", zap.Int64("id", msg.ID), zap.String("topic", msg.Topic), zap.String("key", msg.MessageKey))
		}
		return true
	}

	if errors.Is(err, mq.ErrPublisherUnavailable) {
		// 熔断打开时消息没有真正发出，不计入重试次数
		s.metrics.IncOutboxPublished(metrics.OutboxDeferred)
		s.logger.Warn("消息队列不可用，本轮暂停发送", zap.Error(err))
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	s.logger.Warn("消息发送失败", zap.Int64("id", msg.ID), zap.Int("retry_count", msg.RetryCount), zap.Error(err))

	if msg.RetryCount+1 >= s.maxRetry {
		if err := s.store.MarkAsFailed(ctx, msg.ID); err != nil {
			s.logger.Error("标记消息失败状态失败", zap.Int64("id", msg.ID), zap.Error(err))
		} else {
			s.metrics.IncOutboxPublished(metrics.OutboxFailed)
			s.logger.Warn("消息超过最大重试次数，标记为失败", zap.Int64("id", msg.ID))
		}
		return true
	}

	if err := s.store.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.logger.Error("增加重试次数失败", zap.Int64("id", msg.ID), zap.Error(err))
	}
	s.metrics.IncOutboxPublished(metrics.OutboxRetry)
	return true
}
