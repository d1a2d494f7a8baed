package database

import (
	"testing"

	"virtualbank/internal/config"
)

func TestDialectorFor(t *testing.T) {
	tests := []struct {
		driver  string
		name    string
		wantErr bool
	}{
		{driver: "mysql", name: "mysql"},
		{driver: "postgres", name: "postgres"},
		{driver: "sqlite", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := dialectorFor(&config.DatabaseConfig{
				Driver: tt.driver, Host: "localhost", Port: 3306, User: "u", Password: "p", Database: "bank",
			})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Name() != tt.name {
				t.Fatalf("dialector name = %q, want %q", d.Name(), tt.name)
			}
		})
	}
}
