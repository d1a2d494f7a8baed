package repository

import (
	"context"

	"virtualbank/internal/model"

	"gorm.io/gorm"
)

// TransferRepository 转账记录，只追加
type TransferRepository struct {
	db *gorm.DB
}

func NewTransferRepository(db *gorm.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Create(ctx context.Context, transfer *model.Transfer) error {
	return translate(r.db.WithContext(ctx).Create(transfer).Error)
}

// GetByRequestID 不存在时返回 nil, nil
func (r *TransferRepository) GetByRequestID(ctx context.Context, requestID string) (*model.Transfer, error) {
	var transfer model.Transfer
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&transfer).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, translate(err)
	}
	return &transfer, nil
}

// ListByAccount 分页查询转出或转入该账户的记录，按时间倒序
func (r *TransferRepository) ListByAccount(ctx context.Context, accountID int64, page, pageSize int) ([]*model.Transfer, int64, error) {
	var transfers []*model.Transfer
	var total int64

	query := r.db.WithContext(ctx).
		Model(&model.Transfer{}).
		Where("origin_account_id = ? OR destination_account_id = ?", accountID, accountID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	err := query.
		Order("timestamp DESC").
		Order("transfer_id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transfers).Error

	return transfers, total, translate(err)
}
