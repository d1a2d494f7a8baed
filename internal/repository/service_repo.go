package repository

import (
	"context"
	"fmt"
	"time"

	"virtualbank/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ServiceRepository 服务类型与服务余额
type ServiceRepository struct {
	db *gorm.DB
}

func NewServiceRepository(db *gorm.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

func (r *ServiceRepository) GetType(ctx context.Context, serviceTypeID int64) (*model.ServiceType, error) {
	var st model.ServiceType
	err := r.db.WithContext(ctx).Where("service_type_id = ?", serviceTypeID).First(&st).Error
	if err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

func (r *ServiceRepository) GetBalance(ctx context.Context, customerID, serviceTypeID int64) (*model.ServiceBalance, error) {
	var sb model.ServiceBalance
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND service_type_id = ?", customerID, serviceTypeID).
		First(&sb).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sb, nil
}

func (r *ServiceRepository) getBalanceByID(ctx context.Context, serviceBalanceID int64) (*model.ServiceBalance, error) {
	var sb model.ServiceBalance
	err := r.db.WithContext(ctx).Where("service_balance_id = ?", serviceBalanceID).First(&sb).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sb, nil
}

// UpdateBalance 与账户余额相同的条件更新，同时刷新 updated_date
func (r *ServiceRepository) UpdateBalance(ctx context.Context, serviceBalanceID int64, newBalance, expectedPrior decimal.Decimal, at time.Time) (*model.ServiceBalance, error) {
	if newBalance.IsNegative() {
		return nil, fmt.Errorf("服务余额 %d: %w", serviceBalanceID, model.ErrInsufficientFunds)
	}

	result := r.db.WithContext(ctx).
		Model(&model.ServiceBalance{}).
		Where("service_balance_id = ? AND balance = ?", serviceBalanceID, expectedPrior).
		Updates(map[string]interface{}{
			"balance":      newBalance,
			"updated_date": at,
		})
	if result.Error != nil {
		return nil, translate(result.Error)
	}

	if result.RowsAffected == 0 {
		if _, err := r.getBalanceByID(ctx, serviceBalanceID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("服务余额 %d 已变更: %w", serviceBalanceID, model.ErrConflict)
	}

	return r.getBalanceByID(ctx, serviceBalanceID)
}
