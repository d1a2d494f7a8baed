package repository

import (
	"context"
	"time"

	"virtualbank/internal/model"

	"gorm.io/gorm"
)

type OutboxRepository struct {
	db *gorm.DB
}

var _ OutboxStore = (*OutboxRepository)(nil)

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, msg *model.OutboxMessage) error {
	if msg.Status == "" {
		msg.Status = model.OutboxStatusPending
	}
	return translate(r.db.WithContext(ctx).Create(msg).Error)
}

func (r *OutboxRepository) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, translate(err)
}

func (r *OutboxRepository) MarkAsSent(ctx context.Context, id int64) error {
	return r.updateStatus(ctx, id, model.OutboxStatusSent)
}

func (r *OutboxRepository) updateStatus(ctx context.Context, id int64, status string) error {
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", status).Error
	return translate(err)
}

func (r *OutboxRepository) IncrementRetryCount(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count": gorm.Expr("retry_count + 1"),
		}).Error
	return translate(err)
}

func (r *OutboxRepository) MarkAsFailed(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      model.OutboxStatusFailed,
			"retry_count": gorm.Expr("retry_count + 1"),
		}).Error
	return translate(err)
}

func (r *OutboxRepository) GetFailedMessages(ctx context.Context, before time.Time, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.OutboxStatusFailed, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, translate(err)
}

// Requeue 把失败消息放回待发送队列，重试次数清零
// 只处理仍为 FAILED 的行，避免与发送任务互相覆盖
func (r *OutboxRepository) Requeue(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ? AND status = ?", id, model.OutboxStatusFailed).
		Updates(map[string]interface{}{
			"status":      model.OutboxStatusPending,
			"retry_count": 0,
		}).Error
	return translate(err)
}
