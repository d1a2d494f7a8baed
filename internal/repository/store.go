package repository

import (
	"context"
	"time"

	"virtualbank/internal/model"

	"github.com/shopspring/decimal"
)

// LedgerStore 资金引擎依赖的持久化接口
//
// 所有方法返回的错误已归类为 model 中的错误种类：
//   - 记录不存在        -> model.ErrNotFound
//   - 条件更新未命中    -> model.ErrConflict
//   - 唯一索引冲突      -> model.ErrDuplicateRequest
//   - 其他存储层错误    -> model.ErrStoreUnavailable
type LedgerStore interface {
	GetAccount(ctx context.Context, accountID int64) (*model.Account, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (*model.Account, error)
	ListAccountsByCustomer(ctx context.Context, customerID int64) ([]*model.Account, error)

	// UpdateAccountBalance 仅当当前余额等于 expectedPrior 时写入 newBalance
	// 余额被其他请求修改过则返回 ErrConflict；newBalance 为负返回 ErrInsufficientFunds
	UpdateAccountBalance(ctx context.Context, accountID int64, newBalance, expectedPrior decimal.Decimal) (*model.Account, error)

	GetCustomer(ctx context.Context, customerID int64) (*model.Customer, error)
	GetCard(ctx context.Context, cardID int64) (*model.Card, error)
	GetCardByNumber(ctx context.Context, cardNumber string) (*model.Card, error)
	GetServiceType(ctx context.Context, serviceTypeID int64) (*model.ServiceType, error)

	// GetServiceBalance 按 (customer_id, service_type_id) 组合键查询
	GetServiceBalance(ctx context.Context, customerID, serviceTypeID int64) (*model.ServiceBalance, error)
	UpdateServiceBalance(ctx context.Context, serviceBalanceID int64, newBalance, expectedPrior decimal.Decimal, at time.Time) (*model.ServiceBalance, error)

	InsertTransfer(ctx context.Context, transfer *model.Transfer) (*model.Transfer, error)
	// GetTransferByRequestID 不存在时返回 nil, nil
	GetTransferByRequestID(ctx context.Context, requestID string) (*model.Transfer, error)
	ListTransfersByAccount(ctx context.Context, accountID int64, page, pageSize int) ([]*model.Transfer, int64, error)

	InsertPayment(ctx context.Context, payment *model.PaymentService) (*model.PaymentService, error)
	// GetPaymentByRequestID 不存在时返回 nil, nil
	GetPaymentByRequestID(ctx context.Context, requestID string) (*model.PaymentService, error)

	InsertOutbox(ctx context.Context, msg *model.OutboxMessage) error

	// RunAtomic 在一个事务中执行 fn，fn 返回 nil 时全部提交，否则全部回滚
	// 提交结果无法确认时返回 model.ErrOutcomeUnknown
	// 在事务内部再次调用时直接复用当前事务
	RunAtomic(ctx context.Context, fn func(tx LedgerStore) error) error
}

// IdentityStore 登录与用户资料查询
type IdentityStore interface {
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	// GetUserByLogin 按用户名或邮箱查询
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetRole(ctx context.Context, roleID int64) (*model.Role, error)
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error
}

// OutboxStore 本地消息表的投递侧操作
type OutboxStore interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	MarkAsSent(ctx context.Context, id int64) error
	IncrementRetryCount(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64) error
	// GetFailedMessages 返回 updated_at 早于 before 的失败消息
	GetFailedMessages(ctx context.Context, before time.Time, limit int) ([]*model.OutboxMessage, error)
	Requeue(ctx context.Context, id int64) error
}
