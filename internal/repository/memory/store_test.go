package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"virtualbank/internal/model"
	"virtualbank/internal/repository"

	"github.com/shopspring/decimal"
)

func seededStore() *Store {
	s := NewStore()
	s.PutAccount(model.Account{AccountID: 1, CustomerID: 5, AccountNumber: "001", Balance: decimal.NewFromInt(100), Status: model.AccountStatusActive})
	s.PutAccount(model.Account{AccountID: 2, CustomerID: 6, AccountNumber: "002", Balance: decimal.NewFromInt(10), Status: model.AccountStatusActive})
	return s
}

func TestUpdateAccountBalanceDetectsStalePrior(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	_, err := s.UpdateAccountBalance(ctx, 1, decimal.NewFromInt(60), decimal.NewFromInt(99))
	if !errors.Is(err, model.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	updated, err := s.UpdateAccountBalance(ctx, 1, decimal.NewFromInt(60), decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Balance.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected 60, got %s", updated.Balance)
	}

	if _, err := s.UpdateAccountBalance(ctx, 42, decimal.NewFromInt(1), decimal.Zero); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdateAccountBalance(ctx, 1, decimal.NewFromInt(-1), decimal.NewFromInt(60)); !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestRunAtomicRollsBackOnError(t *testing.T) {
	s := seededStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunAtomic(ctx, func(tx repository.LedgerStore) error {
		if _, err := tx.UpdateAccountBalance(ctx, 1, decimal.NewFromInt(70), decimal.NewFromInt(100)); err != nil {
			return err
		}
		if _, err := tx.InsertTransfer(ctx, &model.Transfer{TransferNo: "T1", OriginAccountID: 1, DestinationAccountID: 2}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	a, _ := s.GetAccount(ctx, 1)
	if !a.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance should be unchanged, got %s", a.Balance)
	}
	if n := len(s.Transfers()); n != 0 {
		t.Fatalf("expected no transfers, got %d", n)
	}
}

func TestRunAtomicCommitsAllWrites(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	err := s.RunAtomic(ctx, func(tx repository.LedgerStore) error {
		if _, err := tx.UpdateAccountBalance(ctx, 1, decimal.NewFromInt(70), decimal.NewFromInt(100)); err != nil {
			return err
		}
		if _, err := tx.UpdateAccountBalance(ctx, 2, decimal.NewFromInt(40), decimal.NewFromInt(10)); err != nil {
			return err
		}
		// 嵌套调用复用同一事务
		return tx.RunAtomic(ctx, func(inner repository.LedgerStore) error {
			_, err := inner.InsertTransfer(ctx, &model.Transfer{TransferNo: "T1", OriginAccountID: 1, DestinationAccountID: 2})
			return err
		})
	})
	if err != nil {
		t.Fatalf("run atomic: %v", err)
	}

	a1, _ := s.GetAccount(ctx, 1)
	a2, _ := s.GetAccount(ctx, 2)
	if !a1.Balance.Equal(decimal.NewFromInt(70)) || !a2.Balance.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected balances %s / %s", a1.Balance, a2.Balance)
	}
	if n := len(s.Transfers()); n != 1 {
		t.Fatalf("expected 1 transfer, got %d", n)
	}
}

func TestRunAtomicRollsBackOnPanic(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = s.RunAtomic(ctx, func(tx repository.LedgerStore) error {
			_, _ = tx.UpdateAccountBalance(ctx, 1, decimal.Zero, decimal.NewFromInt(100))
			panic("kaboom")
		})
	}()

	a, err := s.GetAccount(ctx, 1)
	if err != nil {
		t.Fatalf("store should remain usable after panic: %v", err)
	}
	if !a.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance should be unchanged, got %s", a.Balance)
	}
}

func TestRunAtomicHonoursCancelledContext(t *testing.T) {
	s := seededStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.RunAtomic(ctx, func(tx repository.LedgerStore) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatal("fn should not run on a cancelled context")
	}
}

func TestInsertTransferRejectsDuplicateRequestID(t *testing.T) {
	s := seededStore()
	ctx := context.Background()
	rid := "req-1"

	if _, err := s.InsertTransfer(ctx, &model.Transfer{TransferNo: "T1", RequestID: &rid}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := s.InsertTransfer(ctx, &model.Transfer{TransferNo: "T2", RequestID: &rid})
	if !errors.Is(err, model.ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}

	found, err := s.GetTransferByRequestID(ctx, rid)
	if err != nil || found == nil || found.TransferNo != "T1" {
		t.Fatalf("lookup by request id: %+v, %v", found, err)
	}
	missing, err := s.GetTransferByRequestID(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for unknown request id, got %+v, %v", missing, err)
	}
}

func TestListTransfersByAccountPaginatesNewestFirst(t *testing.T) {
	s := seededStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := s.InsertTransfer(ctx, &model.Transfer{
			TransferNo:           string(rune('A' + i)),
			OriginAccountID:      1,
			DestinationAccountID: 2,
			Timestamp:            base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	_, _ = s.InsertTransfer(ctx, &model.Transfer{TransferNo: "other", OriginAccountID: 2, DestinationAccountID: 3, Timestamp: base})

	page, total, err := s.ListTransfersByAccount(ctx, 1, 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(page) != 2 || page[0].TransferNo != "E" || page[1].TransferNo != "D" {
		t.Fatalf("unexpected first page: %+v", page)
	}

	last, _, _ := s.ListTransfersByAccount(ctx, 1, 3, 2)
	if len(last) != 1 || last[0].TransferNo != "A" {
		t.Fatalf("unexpected last page: %+v", last)
	}

	beyond, _, _ := s.ListTransfersByAccount(ctx, 1, 9, 2)
	if len(beyond) != 0 {
		t.Fatalf("expected empty page, got %d", len(beyond))
	}
}

func TestOutboxRequeueOnlyTouchesFailed(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	msg := &model.OutboxMessage{MessageKey: "k", Topic: "t", Payload: "{}"}
	if err := s.InsertOutbox(ctx, msg); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.MarkAsFailed(ctx, msg.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	failed, _ := s.GetFailedMessages(ctx, time.Now().Add(time.Hour), 10)
	if len(failed) != 1 || failed[0].RetryCount != 1 {
		t.Fatalf("unexpected failed messages: %+v", failed)
	}

	if err := s.Requeue(ctx, msg.ID); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	pending, _ := s.GetPendingMessages(ctx, 10)
	if len(pending) != 1 || pending[0].RetryCount != 0 {
		t.Fatalf("unexpected pending messages: %+v", pending)
	}

	if err := s.MarkAsSent(ctx, msg.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	_ = s.Requeue(ctx, msg.ID)
	if got := s.OutboxMessages()[0].Status; got != model.OutboxStatusSent {
		t.Fatalf("requeue must not touch sent messages, got %s", got)
	}
}
