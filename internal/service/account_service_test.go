package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"virtualbank/internal/model"
)

func TestListAccountsByCustomer(t *testing.T) {
	accounts := NewAccountService(newLedger())

	got, err := accounts.ListAccounts(context.Background(), 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].AccountID != 1 || got[1].AccountID != 3 {
		t.Fatalf("unexpected accounts %+v", got)
	}

	none, err := accounts.ListAccounts(context.Background(), 404)
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil list, got %v / %v", none, err)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	accounts := NewAccountService(newLedger())
	if _, err := accounts.GetAccount(context.Background(), 404); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTransfersPaginatesNewestFirst(t *testing.T) {
	store := newLedger()
	accounts := NewAccountService(store)

	// 五笔转账，时间依次递增
	for i := 0; i < 5; i++ {
		_, err := store.InsertTransfer(context.Background(), &model.Transfer{
			TransferNo:           "TRF-" + string(rune('a'+i)),
			OriginAccountID:      1,
			DestinationAccountID: 2,
			Amount:               dec("1"),
			Status:               model.TransferStatusSuccess,
			Timestamp:            fixedNow.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	page, err := accounts.ListTransfers(context.Background(), 2, 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 5 || len(page.Items) != 2 || page.Items[0].TransferNo != "TRF-e" || page.Items[1].TransferNo != "TRF-d" {
		t.Fatalf("unexpected first page %+v", page)
	}

	last, err := accounts.ListTransfers(context.Background(), 2, 3, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(last.Items) != 1 || last.Items[0].TransferNo != "TRF-a" {
		t.Fatalf("unexpected last page %+v", last)
	}
}

func TestListTransfersNormalisesPaging(t *testing.T) {
	accounts := NewAccountService(newLedger())

	page, err := accounts.ListTransfers(context.Background(), 1, 0, 1000)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Page != 1 || page.PageSize != maxPageSize || page.Items == nil {
		t.Fatalf("unexpected paging %+v", page)
	}

	page, _ = accounts.ListTransfers(context.Background(), 1, 2, 0)
	if page.PageSize != defaultPageSize {
		t.Fatalf("page_size = %d, want %d", page.PageSize, defaultPageSize)
	}
}
