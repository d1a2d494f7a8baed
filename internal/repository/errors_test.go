package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"virtualbank/internal/model"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "record not found", in: gorm.ErrRecordNotFound, want: model.ErrNotFound},
		{name: "wrapped not found", in: fmt.Errorf("select: %w", gorm.ErrRecordNotFound), want: model.ErrNotFound},
		{name: "gorm duplicated key", in: gorm.ErrDuplicatedKey, want: model.ErrDuplicateRequest},
		{name: "mysql duplicate entry", in: &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'r-1' for key 'request_id'"}, want: model.ErrDuplicateRequest},
		{name: "postgres unique violation", in: &pgconn.PgError{Code: "23505"}, want: model.ErrDuplicateRequest},
		{name: "mysql other", in: &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, want: model.ErrStoreUnavailable},
		{name: "postgres other", in: &pgconn.PgError{Code: "40001"}, want: model.ErrStoreUnavailable},
		{name: "connection refused", in: errors.New("dial tcp: connection refused"), want: model.ErrStoreUnavailable},
		{name: "cancelled", in: context.Canceled, want: context.Canceled},
		{name: "deadline", in: context.DeadlineExceeded, want: context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := translate(tt.in); !errors.Is(got, tt.want) {
				t.Fatalf("translate(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if translate(nil) != nil {
		t.Fatal("translate(nil) must be nil")
	}
}
