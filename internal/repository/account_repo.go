package repository

import (
	"context"
	"fmt"

	"virtualbank/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, accountID int64) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error
	if err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (r *AccountRepository) GetByNumber(ctx context.Context, accountNumber string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("account_number = ?", accountNumber).First(&account).Error
	if err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (r *AccountRepository) ListByCustomer(ctx context.Context, customerID int64) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("account_id ASC").
		Find(&accounts).Error
	return accounts, translate(err)
}

// UpdateBalance 条件更新余额
//
// 【乐观并发控制】
//
//	UPDATE account SET balance = ? WHERE account_id = ? AND balance = ?
//
// 读取余额之后若有其他请求先一步修改了这一行，WHERE 条件不再成立，
// RowsAffected 为 0，由调用方重新读取后重试，不会出现丢失更新
func (r *AccountRepository) UpdateBalance(ctx context.Context, accountID int64, newBalance, expectedPrior decimal.Decimal) (*model.Account, error) {
	if newBalance.IsNegative() {
		return nil, fmt.Errorf("账户 %d: %w", accountID, model.ErrInsufficientFunds)
	}

	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ? AND balance = ?", accountID, expectedPrior).
		Update("balance", newBalance)
	if result.Error != nil {
		return nil, translate(result.Error)
	}

	if result.RowsAffected == 0 {
		// 区分账户不存在和余额已被修改
		if _, err := r.GetByID(ctx, accountID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("账户 %d 余额已变更: %w", accountID, model.ErrConflict)
	}

	return r.GetByID(ctx, accountID)
}
