package repository

import (
	"context"
	"fmt"
	"time"

	"virtualbank/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormLedger 基于 gorm 的 LedgerStore
// 同一个 GormLedger 在事务内外行为一致，区别只是底层的 *gorm.DB 是否为事务句柄
type GormLedger struct {
	db   *gorm.DB
	inTx bool

	accounts  *AccountRepository
	services  *ServiceRepository
	transfers *TransferRepository
	payments  *PaymentRepository
	outbox    *OutboxRepository
	identity  *IdentityRepository
}

var _ LedgerStore = (*GormLedger)(nil)

func NewGormLedger(db *gorm.DB) *GormLedger {
	return newGormLedger(db, false)
}

func newGormLedger(db *gorm.DB, inTx bool) *GormLedger {
	return &GormLedger{
		db:        db,
		inTx:      inTx,
		accounts:  NewAccountRepository(db),
		services:  NewServiceRepository(db),
		transfers: NewTransferRepository(db),
		payments:  NewPaymentRepository(db),
		outbox:    NewOutboxRepository(db),
		identity:  NewIdentityRepository(db),
	}
}

func (l *GormLedger) GetAccount(ctx context.Context, accountID int64) (*model.Account, error) {
	return l.accounts.GetByID(ctx, accountID)
}

func (l *GormLedger) GetAccountByNumber(ctx context.Context, accountNumber string) (*model.Account, error) {
	return l.accounts.GetByNumber(ctx, accountNumber)
}

func (l *GormLedger) ListAccountsByCustomer(ctx context.Context, customerID int64) ([]*model.Account, error) {
	return l.accounts.ListByCustomer(ctx, customerID)
}

func (l *GormLedger) UpdateAccountBalance(ctx context.Context, accountID int64, newBalance, expectedPrior decimal.Decimal) (*model.Account, error) {
	return l.accounts.UpdateBalance(ctx, accountID, newBalance, expectedPrior)
}

func (l *GormLedger) GetCustomer(ctx context.Context, customerID int64) (*model.Customer, error) {
	return l.identity.GetCustomer(ctx, customerID)
}

func (l *GormLedger) GetCard(ctx context.Context, cardID int64) (*model.Card, error) {
	return l.identity.GetCard(ctx, cardID)
}

func (l *GormLedger) GetCardByNumber(ctx context.Context, cardNumber string) (*model.Card, error) {
	return l.identity.GetCardByNumber(ctx, cardNumber)
}

func (l *GormLedger) GetServiceType(ctx context.Context, serviceTypeID int64) (*model.ServiceType, error) {
	return l.services.GetType(ctx, serviceTypeID)
}

func (l *GormLedger) GetServiceBalance(ctx context.Context, customerID, serviceTypeID int64) (*model.ServiceBalance, error) {
	return l.services.GetBalance(ctx, customerID, serviceTypeID)
}

func (l *GormLedger) UpdateServiceBalance(ctx context.Context, serviceBalanceID int64, newBalance, expectedPrior decimal.Decimal, at time.Time) (*model.ServiceBalance, error) {
	return l.services.UpdateBalance(ctx, serviceBalanceID, newBalance, expectedPrior, at)
}

func (l *GormLedger) InsertTransfer(ctx context.Context, transfer *model.Transfer) (*model.Transfer, error) {
	if err := l.transfers.Create(ctx, transfer); err != nil {
		return nil, err
	}
	return transfer, nil
}

func (l *GormLedger) GetTransferByRequestID(ctx context.Context, requestID string) (*model.Transfer, error) {
	return l.transfers.GetByRequestID(ctx, requestID)
}

func (l *GormLedger) ListTransfersByAccount(ctx context.Context, accountID int64, page, pageSize int) ([]*model.Transfer, int64, error) {
	return l.transfers.ListByAccount(ctx, accountID, page, pageSize)
}

func (l *GormLedger) InsertPayment(ctx context.Context, payment *model.PaymentService) (*model.PaymentService, error) {
	if err := l.payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

func (l *GormLedger) GetPaymentByRequestID(ctx context.Context, requestID string) (*model.PaymentService, error) {
	return l.payments.GetByRequestID(ctx, requestID)
}

func (l *GormLedger) InsertOutbox(ctx context.Context, msg *model.OutboxMessage) error {
	return l.outbox.Create(ctx, msg)
}

// RunAtomic 手动管理事务，以便区分 fn 失败（回滚）与提交失败（结果未知）
func (l *GormLedger) RunAtomic(ctx context.Context, fn func(tx LedgerStore) error) (err error) {
	if l.inTx {
		return fn(l)
	}

	tx := l.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return translate(tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(newGormLedger(tx, true)); err != nil {
		tx.Rollback()
		return err
	}

	// 调用方在提交前已放弃，直接回滚，不产生任何效果
	if ctxErr := ctx.Err(); ctxErr != nil {
		tx.Rollback()
		return ctxErr
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("%w: %v", model.ErrOutcomeUnknown, err)
	}
	return nil
}
