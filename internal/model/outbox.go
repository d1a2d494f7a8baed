package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

const (
	EventWithdrawal     = "WITHDRAWAL"
	EventTransfer       = "TRANSFER"
	EventServicePayment = "SERVICE_PAYMENT"
	EventServiceConsume = "SERVICE_CONSUMPTION"
)

// OutboxMessage 本地消息表
// 与资金变更在同一事务中写入，由 OutboxSender 异步投递到 Kafka
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	EventType  string    `gorm:"type:varchar(32);not null" json:"event_type"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// FundsEvent 投递到 Kafka 的资金变动事件
type FundsEvent struct {
	EventType            string          `json:"event_type"`
	Reference            string          `json:"reference"`
	AccountID            int64           `json:"account_id,omitempty"`
	DestinationAccountID int64           `json:"destination_account_id,omitempty"`
	CustomerID           int64           `json:"customer_id,omitempty"`
	ServiceTypeID        int64           `json:"service_type_id,omitempty"`
	Amount               decimal.Decimal `json:"amount"`
	OccurredAt           time.Time       `json:"occurred_at"`
}
