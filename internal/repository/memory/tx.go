package memory

import (
	"context"
	"time"

	"virtualbank/internal/model"
	"virtualbank/internal/repository"
	"virtualbank/pkg/clock"

	"github.com/shopspring/decimal"
)

// txView 事务内的账本视图，直接读写草稿快照
// 调用方（Store.RunAtomic）已持有互斥锁
type txView struct {
	st    *state
	clock clock.Clock
}

var _ repository.LedgerStore = (*txView)(nil)

func (t *txView) GetAccount(ctx context.Context, accountID int64) (*model.Account, error) {
	return t.st.getAccount(accountID)
}

func (t *txView) GetAccountByNumber(ctx context.Context, accountNumber string) (*model.Account, error) {
	return t.st.getAccountByNumber(accountNumber)
}

func (t *txView) ListAccountsByCustomer(ctx context.Context, customerID int64) ([]*model.Account, error) {
	return t.st.listAccountsByCustomer(customerID), nil
}

func (t *txView) UpdateAccountBalance(ctx context.Context, accountID int64, newBalance, expectedPrior decimal.Decimal) (*model.Account, error) {
	return t.st.updateAccountBalance(accountID, newBalance, expectedPrior, t.clock.Now())
}

func (t *txView) GetCustomer(ctx context.Context, customerID int64) (*model.Customer, error) {
	return lookup(t.st.customers, customerID)
}

func (t *txView) GetCard(ctx context.Context, cardID int64) (*model.Card, error) {
	return lookup(t.st.cards, cardID)
}

func (t *txView) GetCardByNumber(ctx context.Context, cardNumber string) (*model.Card, error) {
	return t.st.getCardByNumber(cardNumber)
}

func (t *txView) GetServiceType(ctx context.Context, serviceTypeID int64) (*model.ServiceType, error) {
	return lookup(t.st.serviceTypes, serviceTypeID)
}

func (t *txView) GetServiceBalance(ctx context.Context, customerID, serviceTypeID int64) (*model.ServiceBalance, error) {
	return t.st.getServiceBalance(customerID, serviceTypeID)
}

func (t *txView) UpdateServiceBalance(ctx context.Context, serviceBalanceID int64, newBalance, expectedPrior decimal.Decimal, at time.Time) (*model.ServiceBalance, error) {
	return t.st.updateServiceBalance(serviceBalanceID, newBalance, expectedPrior, at)
}

func (t *txView) InsertTransfer(ctx context.Context, transfer *model.Transfer) (*model.Transfer, error) {
	return t.st.insertTransfer(transfer)
}

func (t *txView) GetTransferByRequestID(ctx context.Context, requestID string) (*model.Transfer, error) {
	return t.st.transferByRequestID(requestID), nil
}

func (t *txView) ListTransfersByAccount(ctx context.Context, accountID int64, page, pageSize int) ([]*model.Transfer, int64, error) {
	transfers, total := t.st.listTransfersByAccount(accountID, page, pageSize)
	return transfers, total, nil
}

func (t *txView) InsertPayment(ctx context.Context, payment *model.PaymentService) (*model.PaymentService, error) {
	return t.st.insertPayment(payment)
}

func (t *txView) GetPaymentByRequestID(ctx context.Context, requestID string) (*model.PaymentService, error) {
	return t.st.paymentByRequestID(requestID), nil
}

func (t *txView) InsertOutbox(ctx context.Context, msg *model.OutboxMessage) error {
	t.st.insertOutbox(msg, t.clock.Now())
	return nil
}

// RunAtomic 嵌套调用复用外层事务
func (t *txView) RunAtomic(ctx context.Context, fn func(tx repository.LedgerStore) error) error {
	return fn(t)
}
