package repository

import (
	"context"

	"virtualbank/internal/model"

	"gorm.io/gorm"
)

// PaymentRepository 缴费记录，只追加
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *model.PaymentService) error {
	return translate(r.db.WithContext(ctx).Create(payment).Error)
}

func (r *PaymentRepository) GetByRequestID(ctx context.Context, requestID string) (*model.PaymentService, error) {
	var payment model.PaymentService
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&payment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, translate(err)
	}
	return &payment, nil
}
