package identity

import (
	"errors"
	"testing"
	"time"

	"virtualbank/internal/model"
	"virtualbank/pkg/clock"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndResolveRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewJWTProvider("secret", 5*time.Minute, clock.Fixed(now))

	token, expiresAt, err := p.Issue(Principal{CardID: 7, AccountID: 3, CustomerID: 5})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !expiresAt.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	for _, credential := range []string{token, "Bearer " + token, "bearer " + token} {
		got, err := p.ResolvePrincipal(credential)
		if err != nil {
			t.Fatalf("resolve %q: %v", credential[:6], err)
		}
		if got.CardID != 7 || got.AccountID != 3 || got.CustomerID != 5 || got.UserID != 0 {
			t.Fatalf("unexpected principal %+v", got)
		}
		if !got.IsCard() {
			t.Fatal("expected card principal")
		}
	}
}

func TestResolveRejects(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewJWTProvider("secret", time.Minute, clock.Fixed(now))
	valid, _, err := issuer.Issue(Principal{UserID: 1, CustomerID: 5})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
		Principal:        Principal{UserID: 1},
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	noSubject, _, _ := issuer.Issue(Principal{CustomerID: 5})

	tests := []struct {
		name       string
		provider   *JWTProvider
		credential string
	}{
		{name: "empty", provider: issuer, credential: ""},
		{name: "bearer only", provider: issuer, credential: "Bearer "},
		{name: "garbage", provider: issuer, credential: "not-a-jwt"},
		{name: "wrong secret", provider: NewJWTProvider("other", time.Minute, clock.Fixed(now)), credential: valid},
		{name: "expired", provider: NewJWTProvider("secret", time.Minute, clock.Fixed(now.Add(2*time.Minute))), credential: valid},
		{name: "alg none", provider: issuer, credential: noneToken},
		{name: "no subject", provider: issuer, credential: noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.provider.ResolvePrincipal(tt.credential)
			if !errors.Is(err, model.ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}
