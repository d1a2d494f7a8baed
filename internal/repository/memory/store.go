// Package memory 内存版账本，用于测试和本地演示
//
// RunAtomic 在互斥锁内对快照的副本执行事务函数，只有函数返回 nil 时才替换快照，
// 因此提交要么全部可见，要么完全没有效果
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"virtualbank/internal/model"
	"virtualbank/internal/repository"
	"virtualbank/pkg/clock"

	"github.com/shopspring/decimal"
)

type Store struct {
	mu    sync.Mutex
	st    *state
	clock clock.Clock
}

var (
	_ repository.LedgerStore   = (*Store)(nil)
	_ repository.IdentityStore = (*Store)(nil)
	_ repository.OutboxStore   = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{st: newState(), clock: clock.RealClock{}}
}

// WithClock 替换记录时间戳使用的时钟
func (s *Store) WithClock(c clock.Clock) *Store {
	s.clock = c
	return s
}

// ---------------------------------------------------------------------------
// 初始化数据
// ---------------------------------------------------------------------------

func (s *Store) PutAccount(a model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.accounts[a.AccountID] = a
}

func (s *Store) PutCustomer(c model.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.customers[c.CustomerID] = c
}

func (s *Store) PutCard(c model.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.cards[c.CardID] = c
}

func (s *Store) PutServiceType(t model.ServiceType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.serviceTypes[t.ServiceTypeID] = t
}

func (s *Store) PutServiceBalance(sb model.ServiceBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.serviceBalances[sb.ServiceBalanceID] = sb
}

func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.UserID] = u
}

func (s *Store) PutRole(r model.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.roles[r.RoleID] = r
}

// Transfers 返回全部转账记录，按写入顺序
func (s *Store) Transfers() []model.Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Transfer(nil), s.st.transfers...)
}

func (s *Store) Payments() []model.PaymentService {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PaymentService(nil), s.st.payments...)
}

func (s *Store) OutboxMessages() []model.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OutboxMessage(nil), s.st.outbox...)
}

// ---------------------------------------------------------------------------
// LedgerStore
// ---------------------------------------------------------------------------

func (s *Store) GetAccount(ctx context.Context, accountID int64) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getAccount(accountID)
}

func (s *Store) GetAccountByNumber(ctx context.Context, accountNumber string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getAccountByNumber(accountNumber)
}

func (s *Store) ListAccountsByCustomer(ctx context.Context, customerID int64) ([]*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listAccountsByCustomer(customerID), nil
}

func (s *Store) UpdateAccountBalance(ctx context.Context, accountID int64, newBalance, expectedPrior decimal.Decimal) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateAccountBalance(accountID, newBalance, expectedPrior, s.clock.Now())
}

func (s *Store) GetCustomer(ctx context.Context, customerID int64) (*model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lookup(s.st.customers, customerID)
}

func (s *Store) GetCard(ctx context.Context, cardID int64) (*model.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lookup(s.st.cards, cardID)
}

func (s *Store) GetCardByNumber(ctx context.Context, cardNumber string) (*model.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getCardByNumber(cardNumber)
}

func (s *Store) GetServiceType(ctx context.Context, serviceTypeID int64) (*model.ServiceType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lookup(s.st.serviceTypes, serviceTypeID)
}

func (s *Store) GetServiceBalance(ctx context.Context, customerID, serviceTypeID int64) (*model.ServiceBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getServiceBalance(customerID, serviceTypeID)
}

func (s *Store) UpdateServiceBalance(ctx context.Context, serviceBalanceID int64, newBalance, expectedPrior decimal.Decimal, at time.Time) (*model.ServiceBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateServiceBalance(serviceBalanceID, newBalance, expectedPrior, at)
}

func (s *Store) InsertTransfer(ctx context.Context, transfer *model.Transfer) (*model.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.insertTransfer(transfer)
}

func (s *Store) GetTransferByRequestID(ctx context.Context, requestID string) (*model.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.transferByRequestID(requestID), nil
}

func (s *Store) ListTransfersByAccount(ctx context.Context, accountID int64, page, pageSize int) ([]*model.Transfer, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	transfers, total := s.st.listTransfersByAccount(accountID, page, pageSize)
	return transfers, total, nil
}

func (s *Store) InsertPayment(ctx context.Context, payment *model.PaymentService) (*model.PaymentService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.insertPayment(payment)
}

func (s *Store) GetPaymentByRequestID(ctx context.Context, requestID string) (*model.PaymentService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.paymentByRequestID(requestID), nil
}

func (s *Store) InsertOutbox(ctx context.Context, msg *model.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.insertOutbox(msg, s.clock.Now())
	return nil
}

// RunAtomic 事务期间持有互斥锁，事务之间完全串行
func (s *Store) RunAtomic(ctx context.Context, fn func(tx repository.LedgerStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.st.clone()
	if err := fn(&txView{st: draft, clock: s.clock}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = draft
	return nil
}

// ---------------------------------------------------------------------------
// IdentityStore
// ---------------------------------------------------------------------------

func (s *Store) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lookup(s.st.users, userID)
}

func (s *Store) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if u.UserName == login || u.Email == login {
			u := u
			return &u, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *Store) GetRole(ctx context.Context, roleID int64) (*model.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lookup(s.st.roles, roleID)
}

func (s *Store) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[userID]
	if !ok {
		return model.ErrNotFound
	}
	u.LastLogin = &at
	s.st.users[userID] = u
	return nil
}

// ---------------------------------------------------------------------------
// OutboxStore
// ---------------------------------------------------------------------------

func (s *Store) GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.OutboxMessage
	for _, m := range s.st.outbox {
		if m.Status == model.OutboxStatusPending {
			m := m
			out = append(out, &m)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) MarkAsSent(ctx context.Context, id int64) error {
	return s.updateOutbox(id, func(m *model.OutboxMessage) {
		m.Status = model.OutboxStatusSent
	})
}

func (s *Store) IncrementRetryCount(ctx context.Context, id int64) error {
	return s.updateOutbox(id, func(m *model.OutboxMessage) {
		m.RetryCount++
	})
}

func (s *Store) MarkAsFailed(ctx context.Context, id int64) error {
	return s.updateOutbox(id, func(m *model.OutboxMessage) {
		m.Status = model.OutboxStatusFailed
		m.RetryCount++
	})
}

func (s *Store) GetFailedMessages(ctx context.Context, before time.Time, limit int) ([]*model.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.OutboxMessage
	for _, m := range s.st.outbox {
		if m.Status == model.OutboxStatusFailed && m.UpdatedAt.Before(before) {
			m := m
			out = append(out, &m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Requeue(ctx context.Context, id int64) error {
	return s.updateOutbox(id, func(m *model.OutboxMessage) {
		if m.Status == model.OutboxStatusFailed {
			m.Status = model.OutboxStatusPending
			m.RetryCount = 0
		}
	})
}

// SetOutboxUpdatedAt 仅供测试调整消息的更新时间
func (s *Store) SetOutboxUpdatedAt(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.outbox {
		if s.st.outbox[i].ID == id {
			s.st.outbox[i].UpdatedAt = at
		}
	}
}

func (s *Store) updateOutbox(id int64, mutate func(m *model.OutboxMessage)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.outbox {
		if s.st.outbox[i].ID == id {
			mutate(&s.st.outbox[i])
			s.st.outbox[i].UpdatedAt = s.clock.Now()
			return nil
		}
	}
	return model.ErrNotFound
}

func lookup[T any](m map[int64]T, id int64) (*T, error) {
	v, ok := m[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &v, nil
}
