package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransferStatusPending = "PENDING"
	TransferStatusSuccess = "SUCCESS"
	TransferStatusFailed  = "FAILED"
)

const PaymentStatusPosted = "POSTED"

// ============================================================================
// 资金记录实体
// ============================================================================
//
// 【重要】转账与缴费记录只追加，不修改，不删除 —— 更正通过新记录完成
// 每条记录只在资金操作提交成功时作为副产品写入

// Transfer 转账记录
// 记录与两个账户的余额变更在同一个事务中提交
type Transfer struct {
	TransferID           int64           `gorm:"column:transfer_id;primaryKey;autoIncrement" json:"transfer_id"`
	TransferNo           string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transfer_no"`
	RequestID            *string         `gorm:"type:varchar(64);uniqueIndex" json:"request_id,omitempty"`
	OriginAccountID      int64           `gorm:"index;not null" json:"origin_account_id"`
	DestinationAccountID int64           `gorm:"index;not null" json:"destination_account_id"`
	Amount               decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status               string          `gorm:"type:varchar(16);not null" json:"status"`
	AuthorizationUserID  *int64          `json:"authorization_user_id,omitempty"` // 仅作审计字段
	Description          *string         `gorm:"type:varchar(256)" json:"description,omitempty"`
	Timestamp            time.Time       `gorm:"index;not null" json:"timestamp"`
}

func (Transfer) TableName() string {
	return "transfer"
}

// PaymentService 缴费记录
type PaymentService struct {
	PaymentID        int64           `gorm:"column:payment_id;primaryKey;autoIncrement" json:"payment_id"`
	PaymentNo        string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_no"`
	RequestID        *string         `gorm:"type:varchar(64);uniqueIndex" json:"request_id,omitempty"`
	AccountID        int64           `gorm:"index;not null" json:"account_id"`
	ServiceTypeID    int64           `gorm:"not null" json:"service_type_id"`
	ServiceBalanceID int64           `gorm:"index;not null" json:"service_balance_id"`
	Amount           decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Reference        string          `gorm:"type:varchar(64)" json:"reference"`
	Status           string          `gorm:"type:varchar(16);not null" json:"status"`
	PaymentDate      time.Time       `gorm:"not null" json:"payment_date"`
	UpdatedDate      time.Time       `gorm:"not null" json:"updated_date"`
}

func (PaymentService) TableName() string {
	return "payment_service"
}
