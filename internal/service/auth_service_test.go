package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"virtualbank/internal/identity"
	"virtualbank/internal/model"
	"virtualbank/internal/repository/memory"
	"virtualbank/pkg/clock"

	"golang.org/x/crypto/bcrypt"
)

func hash(t *testing.T, secret string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(h)
}

func newAuthFixture(t *testing.T) (*memory.Store, *AuthService, *identity.JWTProvider) {
	t.Helper()
	store := newLedger()
	store.PutCard(model.Card{CardID: 7, AccountID: 1, CardNumber: "4000000000000007", PIN: hash(t, "1234"), Status: model.CardStatusActive, ExpirationDate: fixedNow.AddDate(1, 0, 0)})
	store.PutCard(model.Card{CardID: 8, AccountID: 1, CardNumber: "4000000000000008", PIN: hash(t, "1234"), Status: model.CardStatusActive, ExpirationDate: fixedNow.AddDate(0, 0, -1)})

	customerID := int64(5)
	store.PutRole(model.Role{RoleID: 1, Description: "customer"})
	store.PutUser(model.User{UserID: 11, UserName: "ana", Email: "ana@example.com", Password: hash(t, "s3cret"), Status: model.UserStatusActive, RoleID: 1, CustomerID: &customerID})
	store.PutUser(model.User{UserID: 12, UserName: "locked", Email: "locked@example.com", Password: hash(t, "s3cret"), Status: "I", RoleID: 1})

	jwtProvider := identity.NewJWTProvider("test-secret", 15*time.Minute, clock.Fixed(fixedNow))
	return store, NewAuthService(store, store, jwtProvider, clock.Fixed(fixedNow)), jwtProvider
}

func TestAtmLoginIssuesCardSession(t *testing.T) {
	_, auth, jwtProvider := newAuthFixture(t)

	session, err := auth.AtmLogin(context.Background(), "4000000000000007", "1234")
	if err != nil {
		t.Fatalf("atm login: %v", err)
	}
	if session.Account.AccountID != 1 || session.Customer.CustomerID != 5 || session.Card.CardID != 7 {
		t.Fatalf("unexpected session %+v", session)
	}
	if !session.ExpiresAt.Equal(fixedNow.Add(15 * time.Minute)) {
		t.Fatalf("expires_at = %v", session.ExpiresAt)
	}

	p, err := jwtProvider.ResolvePrincipal("Bearer " + session.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !p.IsCard() || p.AccountID != 1 || p.CustomerID != 5 {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestAtmLoginRejects(t *testing.T) {
	tests := []struct {
		name string
		card string
		pin  string
		want error
	}{
		{name: "unknown card", card: "4999", pin: "1234", want: model.ErrNotFound},
		{name: "wrong pin", card: "4000000000000007", pin: "0000", want: model.ErrUnauthorized},
		{name: "expired card", card: "4000000000000008", pin: "1234", want: model.ErrInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, auth, _ := newAuthFixture(t)
			_, err := auth.AtmLogin(context.Background(), tt.card, tt.pin)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoginByUserNameOrEmail(t *testing.T) {
	for _, login := range []string{"ana", "ana@example.com"} {
		store, auth, _ := newAuthFixture(t)

		session, err := auth.Login(context.Background(), login, "s3cret")
		if err != nil {
			t.Fatalf("login %s: %v", login, err)
		}
		if session.User.UserID != 11 || session.User.LastLogin == nil || !session.User.LastLogin.Equal(fixedNow) {
			t.Fatalf("unexpected session user %+v", session.User)
		}

		stored, _ := store.GetUser(context.Background(), 11)
		if stored.LastLogin == nil || !stored.LastLogin.Equal(fixedNow) {
			t.Fatalf("last_login not persisted: %+v", stored)
		}
	}
}

func TestLoginRejects(t *testing.T) {
	tests := []struct {
		name     string
		login    string
		password string
		want     error
	}{
		{name: "unknown user", login: "nobody", password: "s3cret", want: model.ErrUnauthorized},
		{name: "wrong password", login: "ana", password: "nope", want: model.ErrUnauthorized},
		{name: "inactive user", login: "locked", password: "s3cret", want: model.ErrInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, auth, _ := newAuthFixture(t)
			_, err := auth.Login(context.Background(), tt.login, tt.password)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestProfile(t *testing.T) {
	_, auth, _ := newAuthFixture(t)

	profile, err := auth.Profile(context.Background(), &identity.Principal{UserID: 11, CustomerID: 5})
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.User.UserName != "ana" || profile.Role.Description != "customer" || profile.Customer.Name != "Ana" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	cardProfile, err := auth.Profile(context.Background(), &identity.Principal{CardID: 7, AccountID: 1, CustomerID: 5})
	if err != nil {
		t.Fatalf("card profile: %v", err)
	}
	if cardProfile.User != nil || cardProfile.Customer == nil {
		t.Fatalf("card session should only carry the customer: %+v", cardProfile)
	}

	if _, err := auth.Profile(context.Background(), &identity.Principal{UserID: 99}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
