package service

import (
	"context"
	"fmt"

	"virtualbank/internal/model"
	"virtualbank/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// AccountService 账户与转账记录的只读查询
type AccountService struct {
	store repository.LedgerStore
}

func NewAccountService(store repository.LedgerStore) *AccountService {
	return &AccountService{store: store}
}

func (s *AccountService) GetAccount(ctx context.Context, accountID int64) (*model.Account, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("账户 %d: %w", accountID, err)
	}
	return account, nil
}

func (s *AccountService) GetAccountByNumber(ctx context.Context, accountNumber string) (*model.Account, error) {
	account, err := s.store.GetAccountByNumber(ctx, accountNumber)
	if err != nil {
		return nil, fmt.Errorf("账号 %s: %w", accountNumber, err)
	}
	return account, nil
}

func (s *AccountService) ListAccounts(ctx context.Context, customerID int64) ([]*model.Account, error) {
	accounts, err := s.store.ListAccountsByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []*model.Account{}
	}
	return accounts, nil
}

type TransferPage struct {
	Items    []*model.Transfer `json:"items"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

func (s *AccountService) ListTransfers(ctx context.Context, accountID int64, page, pageSize int) (*TransferPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	items, total, err := s.store.ListTransfersByAccount(ctx, accountID, page, pageSize)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*model.Transfer{}
	}
	return &TransferPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}
