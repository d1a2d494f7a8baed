package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountStatusActive   = "A"
	AccountStatusInactive = "I"
	AccountStatusClosed   = "C"
)

// Account 银行账户表
// 余额只允许通过资金引擎变更，任何已提交的操作之后 balance >= 0
type Account struct {
	AccountID     int64           `gorm:"column:account_id;primaryKey;autoIncrement" json:"account_id"`
	CustomerID    int64           `gorm:"index;not null" json:"customer_id"`
	AccountNumber string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"account_number"`
	Balance       decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	AccountTypeID int64           `gorm:"not null" json:"account_type_id"`
	Status        string          `gorm:"column:account_status;type:varchar(1);not null" json:"account_status"`
	CreditLimit   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"credit_limit"`
	OpeningDate   time.Time       `gorm:"not null" json:"opening_date"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}
