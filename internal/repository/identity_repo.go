package repository

import (
	"context"
	"time"

	"virtualbank/internal/model"

	"gorm.io/gorm"
)

// IdentityRepository 客户、卡片、用户与角色的只读查询
// 这些记录由注册和管理流程维护，资金引擎只读取
type IdentityRepository struct {
	db *gorm.DB
}

var _ IdentityStore = (*IdentityRepository)(nil)

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) GetCustomer(ctx context.Context, customerID int64) (*model.Customer, error) {
	var customer model.Customer
	if err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&customer).Error; err != nil {
		return nil, translate(err)
	}
	return &customer, nil
}

func (r *IdentityRepository) GetCard(ctx context.Context, cardID int64) (*model.Card, error) {
	var card model.Card
	if err := r.db.WithContext(ctx).Where("card_id = ?", cardID).First(&card).Error; err != nil {
		return nil, translate(err)
	}
	return &card, nil
}

func (r *IdentityRepository) GetCardByNumber(ctx context.Context, cardNumber string) (*model.Card, error) {
	var card model.Card
	if err := r.db.WithContext(ctx).Where("card_number = ?", cardNumber).First(&card).Error; err != nil {
		return nil, translate(err)
	}
	return &card, nil
}

func (r *IdentityRepository) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *IdentityRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("user_name = ? OR email = ?", login, login).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *IdentityRepository) GetRole(ctx context.Context, roleID int64) (*model.Role, error) {
	var role model.Role
	if err := r.db.WithContext(ctx).Where("role_id = ?", roleID).First(&role).Error; err != nil {
		return nil, translate(err)
	}
	return &role, nil
}

func (r *IdentityRepository) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ?", userID).
		Update("last_login", at).Error
	return translate(err)
}
