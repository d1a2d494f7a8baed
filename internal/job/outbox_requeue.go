package job

import (
	"context"
	"sync"
	"time"

	"virtualbank/internal/logging"
	"virtualbank/internal/repository"
	"virtualbank/pkg/clock"

	"go.uber.org/zap"
)

// OutboxRequeueJob 把失败一段时间的消息重新放回待发送队列
// Kafka 长时间不可用恢复后，这些消息会被 OutboxSender 再次投递
type OutboxRequeueJob struct {
	store        repository.OutboxStore
	clock        clock.Clock
	logger       *logging.Logger
	requeueAfter time.Duration
	interval     time.Duration
	batchSize    int
	stopCh       chan struct{}
	stopOnce     sync.Once
}

func NewOutboxRequeueJob(store repository.OutboxStore, requeueAfter time.Duration, c clock.Clock) *OutboxRequeueJob {
	if c == nil {
		c = clock.RealClock{}
	}
	if requeueAfter <= 0 {
		requeueAfter = 10 * time.Minute
	}
	return &OutboxRequeueJob{
		store:        store,
		clock:        c,
		logger:       logging.Global().Named("outbox_requeue"),
		requeueAfter: requeueAfter,
		interval:     time.Minute,
		batchSize:    100,
		stopCh:       make(chan struct{}),
	}
}

func (j *OutboxRequeueJob) Start(ctx context.Context) {
	j.logger.Info("失败消息重投任务启动", zap.Duration("requeue_after", j.requeueAfter))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.logger.Info("任务停止")
			return
		case <-ticker.C:
			j.requeueFailedMessages(ctx)
		}
	}
}

func (j *OutboxRequeueJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

func (j *OutboxRequeueJob) requeueFailedMessages(ctx context.Context) int {
	before := j.clock.Now().Add(-j.requeueAfter)
	messages, err := j.store.GetFailedMessages(ctx, before, j.batchSize)
	if err != nil {
		j.logger.Error("查询失败消息失败", zap.Error(err))
		return 0
	}
	if len(messages) == 0 {
		return 0
	}

	requeued := 0
	for _, msg := range messages {
		if err := j.store.Requeue(ctx, msg.ID); err != nil {
			j.logger.Error("重置消息状态失败", zap.Int64("id", msg.ID), zap.Error(err))
			continue
		}
		requeued++
	}

	j.logger.Info("失败消息已重新入队", zap.Int("found", len(messages)), zap.Int("requeued", requeued))
	return requeued
}
