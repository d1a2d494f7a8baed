package memory

import (
	"fmt"
	"sort"
	"time"

	"virtualbank/internal/model"

	"github.com/shopspring/decimal"
)

// state 是内存账本的一份完整快照
// 可变记录（账户、服务余额、消息）按值保存，clone 时逐条复制；
// 转账、缴费记录只追加，clone 只复制切片
type state struct {
	accounts        map[int64]model.Account
	customers       map[int64]model.Customer
	cards           map[int64]model.Card
	serviceTypes    map[int64]model.ServiceType
	serviceBalances map[int64]model.ServiceBalance
	users           map[int64]model.User
	roles           map[int64]model.Role

	transfers []model.Transfer
	payments  []model.PaymentService
	outbox    []model.OutboxMessage

	nextTransferID int64
	nextPaymentID  int64
	nextOutboxID   int64
}

func newState() *state {
	return &state{
		accounts:        make(map[int64]model.Account),
		customers:       make(map[int64]model.Customer),
		cards:           make(map[int64]model.Card),
		serviceTypes:    make(map[int64]model.ServiceType),
		serviceBalances: make(map[int64]model.ServiceBalance),
		users:           make(map[int64]model.User),
		roles:           make(map[int64]model.Role),
	}
}

func (s *state) clone() *state {
	c := &state{
		accounts:        make(map[int64]model.Account, len(s.accounts)),
		customers:       s.customers,
		cards:           s.cards,
		serviceTypes:    s.serviceTypes,
		serviceBalances: make(map[int64]model.ServiceBalance, len(s.serviceBalances)),
		users:           s.users,
		roles:           s.roles,
		transfers:       append([]model.Transfer(nil), s.transfers...),
		payments:        append([]model.PaymentService(nil), s.payments...),
		outbox:          append([]model.OutboxMessage(nil), s.outbox...),
		nextTransferID:  s.nextTransferID,
		nextPaymentID:   s.nextPaymentID,
		nextOutboxID:    s.nextOutboxID,
	}
	for id, a := range s.accounts {
		c.accounts[id] = a
	}
	for id, sb := range s.serviceBalances {
		c.serviceBalances[id] = sb
	}
	return c
}

func (s *state) getAccount(accountID int64) (*model.Account, error) {
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &a, nil
}

func (s *state) getAccountByNumber(number string) (*model.Account, error) {
	for _, a := range s.accounts {
		if a.AccountNumber == number {
			a := a
			return &a, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *state) listAccountsByCustomer(customerID int64) []*model.Account {
	var out []*model.Account
	for _, a := range s.accounts {
		if a.CustomerID == customerID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}

func (s *state) updateAccountBalance(accountID int64, newBalance, expectedPrior decimal.Decimal, at time.Time) (*model.Account, error) {
	if newBalance.IsNegative() {
		return nil, fmt.Errorf("账户 %d: %w", accountID, model.ErrInsufficientFunds)
	}
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, model.ErrNotFound
	}
	if !a.Balance.Equal(expectedPrior) {
		return nil, fmt.Errorf("账户 %d 余额已变更: %w", accountID, model.ErrConflict)
	}
	a.Balance = newBalance
	a.UpdatedAt = at
	s.accounts[accountID] = a
	return &a, nil
}

func (s *state) getCardByNumber(number string) (*model.Card, error) {
	for _, c := range s.cards {
		if c.CardNumber == number {
			c := c
			return &c, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *state) getServiceBalance(customerID, serviceTypeID int64) (*model.ServiceBalance, error) {
	for _, sb := range s.serviceBalances {
		if sb.CustomerID == customerID && sb.ServiceTypeID == serviceTypeID {
			sb := sb
			return &sb, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *state) updateServiceBalance(id int64, newBalance, expectedPrior decimal.Decimal, at time.Time) (*model.ServiceBalance, error) {
	if newBalance.IsNegative() {
		return nil, fmt.Errorf("服务余额 %d: %w", id, model.ErrInsufficientFunds)
	}
	sb, ok := s.serviceBalances[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if !sb.Balance.Equal(expectedPrior) {
		return nil, fmt.Errorf("服务余额 %d 已变更: %w", id, model.ErrConflict)
	}
	sb.Balance = newBalance
	sb.UpdatedDate = at
	s.serviceBalances[id] = sb
	return &sb, nil
}

func (s *state) insertTransfer(t *model.Transfer) (*model.Transfer, error) {
	for _, existing := range s.transfers {
		if existing.TransferNo == t.TransferNo || sameRequest(existing.RequestID, t.RequestID) {
			return nil, fmt.Errorf("转账 %s: %w", t.TransferNo, model.ErrDuplicateRequest)
		}
	}
	s.nextTransferID++
	t.TransferID = s.nextTransferID
	s.transfers = append(s.transfers, *t)
	out := *t
	return &out, nil
}

func (s *state) transferByRequestID(requestID string) *model.Transfer {
	for _, t := range s.transfers {
		if t.RequestID != nil && *t.RequestID == requestID {
			t := t
			return &t
		}
	}
	return nil
}

func (s *state) listTransfersByAccount(accountID int64, page, pageSize int) ([]*model.Transfer, int64) {
	var matched []*model.Transfer
	for _, t := range s.transfers {
		if t.OriginAccountID == accountID || t.DestinationAccountID == accountID {
			t := t
			matched = append(matched, &t)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].TransferID > matched[j].TransferID
	})

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start < 0 || start >= len(matched) {
		return []*model.Transfer{}, total
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total
}

func (s *state) insertPayment(p *model.PaymentService) (*model.PaymentService, error) {
	for _, existing := range s.payments {
		if existing.PaymentNo == p.PaymentNo || sameRequest(existing.RequestID, p.RequestID) {
			return nil, fmt.Errorf("缴费 %s: %w", p.PaymentNo, model.ErrDuplicateRequest)
		}
	}
	s.nextPaymentID++
	p.PaymentID = s.nextPaymentID
	s.payments = append(s.payments, *p)
	out := *p
	return &out, nil
}

func (s *state) paymentByRequestID(requestID string) *model.PaymentService {
	for _, p := range s.payments {
		if p.RequestID != nil && *p.RequestID == requestID {
			p := p
			return &p
		}
	}
	return nil
}

func (s *state) insertOutbox(msg *model.OutboxMessage, at time.Time) {
	s.nextOutboxID++
	msg.ID = s.nextOutboxID
	if msg.Status == "" {
		msg.Status = model.OutboxStatusPending
	}
	msg.CreatedAt = at
	msg.UpdatedAt = at
	s.outbox = append(s.outbox, *msg)
}

func sameRequest(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}
