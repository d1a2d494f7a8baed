package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"virtualbank/internal/guard"
	"virtualbank/internal/infrastructure/lock"
	"virtualbank/internal/infrastructure/metrics"
	"virtualbank/internal/logging"
	"virtualbank/internal/model"
	"virtualbank/internal/repository"
	"virtualbank/pkg/clock"
	"virtualbank/pkg/idgen"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ============================================================================
// 资金引擎
// ============================================================================
//
// 四个操作：取款、转账、缴费、服务消费。每个操作的流程相同：
//
//   1. 加锁：按账户 / 服务余额的 key 排序后加锁
//   2. 校验：读取当前余额，校验金额格式、账户状态、余额是否充足
//   3. 提交：在一个事务里做条件更新 + 写记录 + 写本地消息表
//   4. 冲突：条件更新未命中（余额已被其他请求修改）时回到第 2 步，最多 maxRetries 次
//
// 校验阶段的错误不会产生任何写入；提交阶段要么全部生效，要么全部回滚
//
// ============================================================================

const (
	OpWithdraw       = "withdraw"
	OpTransfer       = "transfer"
	OpPayService     = "pay_service"
	OpConsumeService = "consume_service"
)

const (
	defaultMaxConflictRetries = 3
	defaultEventsTopic        = "funds-events"
)

type FundsDeps struct {
	Store   repository.LedgerStore
	Locker  lock.Locker      // 为空时不加锁
	Metrics metrics.Recorder // 为空时不上报
	Clock   clock.Clock
	Logger  *logging.Logger

	MaxConflictRetries int
	EventsTopic        string
}

type FundsService struct {
	store      repository.LedgerStore
	locker     lock.Locker
	metrics    metrics.Recorder
	clock      clock.Clock
	logger     *logging.Logger
	maxRetries int
	topic      string
}

func NewFundsService(deps FundsDeps) *FundsService {
	s := &FundsService{
		store:      deps.Store,
		locker:     deps.Locker,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		logger:     deps.Logger,
		maxRetries: deps.MaxConflictRetries,
		topic:      deps.EventsTopic,
	}
	if s.locker == nil {
		s.locker = lock.NoopLocker{}
	}
	if s.metrics == nil {
		s.metrics = metrics.NoopRecorder{}
	}
	if s.clock == nil {
		s.clock = clock.RealClock{}
	}
	if s.logger == nil {
		s.logger = logging.Global()
	}
	s.logger = s.logger.Named("funds")
	if s.maxRetries <= 0 {
		s.maxRetries = defaultMaxConflictRetries
	}
	if s.topic == "" {
		s.topic = defaultEventsTopic
	}
	return s
}

// ---------------------------------------------------------------------------
// 请求与结果
// ---------------------------------------------------------------------------

type WithdrawRequest struct {
	AccountID int64
	Amount    decimal.Decimal
}

type TransferRequest struct {
	OriginAccountID      int64
	DestinationAccountID int64
	Amount               decimal.Decimal
	Description          *string
	AuthorizationUserID  *int64
	RequestID            string // 可选，幂等键
}

type TransferResult struct {
	Origin      *model.Account  `json:"origin"`
	Destination *model.Account  `json:"destination"`
	Transfer    *model.Transfer `json:"transfer"`
}

// PayServiceRequest 账户按 AccountID 或 AccountNumber 指定，AccountID 优先
type PayServiceRequest struct {
	AccountID     int64
	AccountNumber string
	ServiceTypeID int64
	Amount        decimal.Decimal
	Reference     string
	RequestID     string
}

type PaymentResult struct {
	Account        *model.Account        `json:"account"`
	ServiceBalance *model.ServiceBalance `json:"service_balance"`
	Payment        *model.PaymentService `json:"payment"`
}

// ConsumeServiceRequest 指定 CardID 时通过卡片找到客户，否则使用 CustomerID
type ConsumeServiceRequest struct {
	CardID        int64
	CustomerID    int64
	ServiceTypeID int64
	Amount        decimal.Decimal
}

// ---------------------------------------------------------------------------
// 取款
// ---------------------------------------------------------------------------

func (s *FundsService) Withdraw(ctx context.Context, req WithdrawRequest) (result *model.Account, err error) {
	op := s.start(OpWithdraw)
	defer func() { op.finish(err) }()

	unlock, err := s.lock(ctx, lock.AccountKey(req.AccountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = s.withRetry(ctx, op, func() error {
		op.enter(StateValidating)

		account, err := s.store.GetAccount(ctx, req.AccountID)
		if err != nil {
			return fmt.Errorf("账户 %d: %w", req.AccountID, err)
		}
		if err := admitDebit(account, req.Amount); err != nil {
			return err
		}
		op.enter(StateAdmitted)

		reference := idgen.GenerateMovementNo()
		newBalance := account.Balance.Sub(req.Amount)

		op.enter(StateCommitting)
		return s.store.RunAtomic(ctx, func(tx repository.LedgerStore) error {
			updated, err := tx.UpdateAccountBalance(ctx, account.AccountID, newBalance, account.Balance)
			if err != nil {
				return err
			}
			if err := s.appendEvent(ctx, tx, model.FundsEvent{
				EventType:  model.EventWithdrawal,
				Reference:  reference,
				AccountID:  account.AccountID,
				CustomerID: account.CustomerID,
				Amount:     req.Amount,
			}); err != nil {
				return err
			}
			result = updated
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	op.logger.Info("取款成功",
		zap.Int64("account_id", result.AccountID),
		zap.String("amount", req.Amount.StringFixed(guard.MoneyScale)),
		zap.String("balance", result.Balance.StringFixed(guard.MoneyScale)),
	)
	return result, nil
}

// ---------------------------------------------------------------------------
// 转账
// ---------------------------------------------------------------------------

func (s *FundsService) Transfer(ctx context.Context, req TransferRequest) (result *TransferResult, err error) {
	op := s.start(OpTransfer)
	defer func() { op.finish(err) }()

	if req.OriginAccountID == req.DestinationAccountID {
		return nil, fmt.Errorf("账户 %d: %w", req.OriginAccountID, model.ErrSameAccount)
	}
	if err := s.checkTransferRequestID(ctx, req.RequestID); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, lock.AccountKey(req.OriginAccountID), lock.AccountKey(req.DestinationAccountID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = s.withRetry(ctx, op, func() error {
		op.enter(StateValidating)

		origin, err := s.store.GetAccount(ctx, req.OriginAccountID)
		if err != nil {
			return fmt.Errorf("转出账户 %d: %w", req.OriginAccountID, err)
		}
		if err := admitDebit(origin, req.Amount); err != nil {
			return err
		}
		destination, err := s.store.GetAccount(ctx, req.DestinationAccountID)
		if err != nil {
			return fmt.Errorf("转入账户 %d: %w", req.DestinationAccountID, err)
		}
		if !destination.IsActive() {
			return fmt.Errorf("转入账户 %d: %w", destination.AccountID, model.ErrInactive)
		}
		op.enter(StateAdmitted)

		now := s.clock.Now()
		transfer := &model.Transfer{
			TransferNo:           idgen.GenerateTransferNo(),
			RequestID:            optionalString(req.RequestID),
			OriginAccountID:      origin.AccountID,
			DestinationAccountID: destination.AccountID,
			Amount:               req.Amount,
			Status:               model.TransferStatusSuccess,
			AuthorizationUserID:  req.AuthorizationUserID,
			Description:          req.Description,
			Timestamp:            now,
		}

		// 两个账户的更新按 account_id 升序执行，与加锁顺序一致
		updates := []balanceUpdate{
			{account: origin, newBalance: origin.Balance.Sub(req.Amount)},
			{account: destination, newBalance: destination.Balance.Add(req.Amount)},
		}
		if destination.AccountID < origin.AccountID {
			updates[0], updates[1] = updates[1], updates[0]
		}

		op.enter(StateCommitting)
		return s.store.RunAtomic(ctx, func(tx repository.LedgerStore) error {
			updated := make(map[int64]*model.Account, 2)
			for _, u := range updates {
				acc, err := tx.UpdateAccountBalance(ctx, u.account.AccountID, u.newBalance, u.account.Balance)
				if err != nil {
					return err
				}
				updated[acc.AccountID] = acc
			}

			inserted, err := tx.InsertTransfer(ctx, transfer)
			if err != nil {
				return err
			}

			if err := s.appendEvent(ctx, tx, model.FundsEvent{
				EventType:            model.EventTransfer,
				Reference:            inserted.TransferNo,
				AccountID:            origin.AccountID,
				DestinationAccountID: destination.AccountID,
				CustomerID:           origin.CustomerID,
				Amount:               req.Amount,
			}); err != nil {
				return err
			}

			result = &TransferResult{
				Origin:      updated[origin.AccountID],
				Destination: updated[destination.AccountID],
				Transfer:    inserted,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	op.logger.Info("转账成功",
		zap.String("transfer_no", result.Transfer.TransferNo),
		zap.Int64("origin_account_id", req.OriginAccountID),
		zap.Int64("destination_account_id", req.DestinationAccountID),
		zap.String("amount", req.Amount.StringFixed(guard.MoneyScale)),
	)
	return result, nil
}

type balanceUpdate struct {
	account    *model.Account
	newBalance decimal.Decimal
}

func (s *FundsService) checkTransferRequestID(ctx context.Context, requestID string) error {
	if requestID == "" {
		return nil
	}
	existing, err := s.store.GetTransferByRequestID(ctx, requestID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("request_id %s 已对应转账 %s: %w", requestID, existing.TransferNo, model.ErrDuplicateRequest)
	}
	return nil
}

// ---------------------------------------------------------------------------
// 缴费：账户扣款，服务余额增加
// ---------------------------------------------------------------------------

func (s *FundsService) PayService(ctx context.Context, req PayServiceRequest) (result *PaymentResult, err error) {
	op := s.start(OpPayService)
	defer func() { op.finish(err) }()

	// 账户 ID 不会变化，先解析出来用于加锁
	account, err := s.resolveAccount(ctx, req.AccountID, req.AccountNumber)
	if err != nil {
		return nil, err
	}
	if req.RequestID != "" {
		existing, err := s.store.GetPaymentByRequestID(ctx, req.RequestID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, fmt.Errorf("request_id %s 已对应缴费 %s: %w", req.RequestID, existing.PaymentNo, model.ErrDuplicateRequest)
		}
	}

	accountID := account.AccountID
	unlock, err := s.lock(ctx,
		lock.AccountKey(accountID),
		lock.ServiceBalanceKey(account.CustomerID, req.ServiceTypeID),
	)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = s.withRetry(ctx, op, func() error {
		op.enter(StateValidating)

		account, err := s.store.GetAccount(ctx, accountID)
		if err != nil {
			return fmt.Errorf("账户 %d: %w", accountID, err)
		}
		if _, err := s.store.GetCustomer(ctx, account.CustomerID); err != nil {
			return fmt.Errorf("客户 %d: %w", account.CustomerID, err)
		}
		serviceType, err := s.store.GetServiceType(ctx, req.ServiceTypeID)
		if err != nil {
			return fmt.Errorf("服务类型 %d: %w", req.ServiceTypeID, err)
		}
		if serviceType.Status != model.ServiceTypeStatusActive {
			return fmt.Errorf("服务类型 %d: %w", req.ServiceTypeID, model.ErrInactive)
		}
		if err := admitDebit(account, req.Amount); err != nil {
			return err
		}
		serviceBalance, err := s.store.GetServiceBalance(ctx, account.CustomerID, req.ServiceTypeID)
		if err != nil {
			return fmt.Errorf("客户 %d 未开通服务 %d: %w", account.CustomerID, req.ServiceTypeID, err)
		}
		op.enter(StateAdmitted)

		op.enter(StateCommitting)
		return s.store.RunAtomic(ctx, func(tx repository.LedgerStore) error {
			// 提交时间同时作为缴费日期和服务余额的更新时间
			now := s.clock.Now()

			updatedAccount, err := tx.UpdateAccountBalance(ctx, account.AccountID, account.Balance.Sub(req.Amount), account.Balance)
			if err != nil {
				return err
			}
			updatedService, err := tx.UpdateServiceBalance(ctx, serviceBalance.ServiceBalanceID,
				serviceBalance.Balance.Add(req.Amount), serviceBalance.Balance, now)
			if err != nil {
				return err
			}

			payment, err := tx.InsertPayment(ctx, &model.PaymentService{
				PaymentNo:        idgen.GeneratePaymentNo(),
				RequestID:        optionalString(req.RequestID),
				AccountID:        account.AccountID,
				ServiceTypeID:    req.ServiceTypeID,
				ServiceBalanceID: serviceBalance.ServiceBalanceID,
				Amount:           req.Amount,
				Reference:        req.Reference,
				Status:           model.PaymentStatusPosted,
				PaymentDate:      now,
				UpdatedDate:      now,
			})
			if err != nil {
				return err
			}

			if err := s.appendEvent(ctx, tx, model.FundsEvent{
				EventType:     model.EventServicePayment,
				Reference:     payment.PaymentNo,
				AccountID:     account.AccountID,
				CustomerID:    account.CustomerID,
				ServiceTypeID: req.ServiceTypeID,
				Amount:        req.Amount,
			}); err != nil {
				return err
			}

			result = &PaymentResult{Account: updatedAccount, ServiceBalance: updatedService, Payment: payment}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	op.logger.Info("缴费成功",
		zap.String("payment_no", result.Payment.PaymentNo),
		zap.Int64("account_id", result.Account.AccountID),
		zap.Int64("service_type_id", req.ServiceTypeID),
		zap.String("amount", req.Amount.StringFixed(guard.MoneyScale)),
	)
	return result, nil
}

func (s *FundsService) resolveAccount(ctx context.Context, accountID int64, accountNumber string) (*model.Account, error) {
	if accountID > 0 {
		account, err := s.store.GetAccount(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("账户 %d: %w", accountID, err)
		}
		return account, nil
	}
	if accountNumber == "" {
		return nil, fmt.Errorf("未指定账户: %w", model.ErrNotFound)
	}
	account, err := s.store.GetAccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("账号 %s: %w", accountNumber, err)
	}
	return account, nil
}

// ---------------------------------------------------------------------------
// 服务消费：只扣减服务余额，不涉及银行账户
// ---------------------------------------------------------------------------

func (s *FundsService) ConsumeService(ctx context.Context, req ConsumeServiceRequest) (result *model.ServiceBalance, err error) {
	op := s.start(OpConsumeService)
	defer func() { op.finish(err) }()

	customerID, err := s.resolveConsumer(ctx, req)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, lock.ServiceBalanceKey(customerID, req.ServiceTypeID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = s.withRetry(ctx, op, func() error {
		op.enter(StateValidating)

		serviceBalance, err := s.store.GetServiceBalance(ctx, customerID, req.ServiceTypeID)
		if err != nil {
			return fmt.Errorf("客户 %d 未开通服务 %d: %w", customerID, req.ServiceTypeID, err)
		}
		ok, err := guard.CanDebit(serviceBalance.Balance, req.Amount)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("服务余额 %d: %w", serviceBalance.ServiceBalanceID, model.ErrInsufficientFunds)
		}
		op.enter(StateAdmitted)

		reference := idgen.GenerateMovementNo()

		op.enter(StateCommitting)
		return s.store.RunAtomic(ctx, func(tx repository.LedgerStore) error {
			updated, err := tx.UpdateServiceBalance(ctx, serviceBalance.ServiceBalanceID,
				serviceBalance.Balance.Sub(req.Amount), serviceBalance.Balance, s.clock.Now())
			if err != nil {
				return err
			}
			if err := s.appendEvent(ctx, tx, model.FundsEvent{
				EventType:     model.EventServiceConsume,
				Reference:     reference,
				CustomerID:    customerID,
				ServiceTypeID: req.ServiceTypeID,
				Amount:        req.Amount,
			}); err != nil {
				return err
			}
			result = updated
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	op.logger.Info("服务消费成功",
		zap.Int64("customer_id", customerID),
		zap.Int64("service_type_id", req.ServiceTypeID),
		zap.String("amount", req.Amount.StringFixed(guard.MoneyScale)),
		zap.String("balance", result.Balance.StringFixed(guard.MoneyScale)),
	)
	return result, nil
}

// resolveConsumer 卡片 -> 账户 -> 客户；未给卡片时直接使用客户 ID
func (s *FundsService) resolveConsumer(ctx context.Context, req ConsumeServiceRequest) (int64, error) {
	if req.CardID == 0 {
		if _, err := s.store.GetCustomer(ctx, req.CustomerID); err != nil {
			return 0, fmt.Errorf("客户 %d: %w", req.CustomerID, err)
		}
		return req.CustomerID, nil
	}

	card, err := s.store.GetCard(ctx, req.CardID)
	if err != nil {
		return 0, fmt.Errorf("卡片 %d: %w", req.CardID, err)
	}
	if !card.Usable(s.clock.Now()) {
		return 0, fmt.Errorf("卡片 %d: %w", req.CardID, model.ErrInactive)
	}
	account, err := s.store.GetAccount(ctx, card.AccountID)
	if err != nil {
		return 0, fmt.Errorf("卡片 %d 的账户 %d: %w", req.CardID, card.AccountID, err)
	}
	return account.CustomerID, nil
}

// ---------------------------------------------------------------------------
// 公共步骤
// ---------------------------------------------------------------------------

// admitDebit 借记账户前的准入校验：金额格式、账户状态、余额
func admitDebit(account *model.Account, amount decimal.Decimal) error {
	ok, err := guard.CanDebit(account.Balance, amount)
	if err != nil {
		return err
	}
	if !account.IsActive() {
		return fmt.Errorf("账户 %d: %w", account.AccountID, model.ErrInactive)
	}
	if !ok {
		return fmt.Errorf("账户 %d: %w", account.AccountID, model.ErrInsufficientFunds)
	}
	return nil
}

func (s *FundsService) lock(ctx context.Context, keys ...string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, keys...)
	switch {
	case err == nil:
		return unlock, nil
	case errors.Is(err, lock.ErrLockFailed):
		return nil, fmt.Errorf("%v: %w", err, model.ErrConflict)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	default:
		return nil, fmt.Errorf("加锁失败: %w: %v", model.ErrStoreUnavailable, err)
	}
}

// withRetry 条件更新冲突时重新读取并重试，其余错误直接返回
func (s *FundsService) withRetry(ctx context.Context, op *operation, attempt func() error) error {
	var err error
	for i := 0; i < s.maxRetries; i++ {
		err = attempt()
		if err == nil || !errors.Is(err, model.ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.metrics.IncConflictRetry(op.name)
		op.logger.Debug("余额已被并发修改，重试", zap.Int("attempt", i+1), zap.Error(err))
	}
	return fmt.Errorf("重试 %d 次后仍然冲突: %w", s.maxRetries, err)
}

// appendEvent 把资金事件写入本地消息表，与余额变更同一事务提交
func (s *FundsService) appendEvent(ctx context.Context, tx repository.LedgerStore, event model.FundsEvent) error {
	event.OccurredAt = s.clock.Now()
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化资金事件失败: %w", err)
	}
	return tx.InsertOutbox(ctx, &model.OutboxMessage{
		MessageKey: event.Reference,
		EventType:  event.EventType,
		Topic:      s.topic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
