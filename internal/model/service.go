package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const ServiceTypeStatusActive = "A"

// ServiceType 可缴费的服务类型（水电、话费等）
type ServiceType struct {
	ServiceTypeID int64  `gorm:"column:service_type_id;primaryKey;autoIncrement" json:"service_type_id"`
	Name          string `gorm:"type:varchar(64);not null" json:"name"`
	Status        string `gorm:"type:varchar(1);not null" json:"status"`
}

func (ServiceType) TableName() string {
	return "service_type"
}

// ServiceBalance 客户在某个服务上的预付余额
// (customer_id, service_type_id) 唯一，缴费增加余额，消费扣减余额
type ServiceBalance struct {
	ServiceBalanceID int64           `gorm:"column:service_balance_id;primaryKey;autoIncrement" json:"service_balance_id"`
	CustomerID       int64           `gorm:"uniqueIndex:uk_customer_service;not null" json:"customer_id"`
	ServiceTypeID    int64           `gorm:"uniqueIndex:uk_customer_service;not null" json:"service_type_id"`
	Balance          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	UpdatedDate      time.Time       `gorm:"not null" json:"updated_date"`
}

func (ServiceBalance) TableName() string {
	return "service_balance"
}
