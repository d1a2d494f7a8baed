// Package identity 签发和解析登录凭证
// 资金引擎不依赖本包，HTTP 层解析出 Principal 后把其中的 ID 传给引擎
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"virtualbank/internal/model"
	"virtualbank/pkg/clock"

	"github.com/golang-jwt/jwt/v5"
)

// Principal 已认证的调用方
// 网银用户登录时 CardID、AccountID 为 0；ATM 登录时 UserID 为 0
type Principal struct {
	UserID     int64 `json:"user_id,omitempty"`
	CustomerID int64 `json:"customer_id,omitempty"`
	AccountID  int64 `json:"account_id,omitempty"`
	CardID     int64 `json:"card_id,omitempty"`
}

// IsCard ATM 卡片会话
func (p Principal) IsCard() bool {
	return p.CardID != 0
}

// Provider 把凭证解析为 Principal，失败返回 model.ErrUnauthorized
type Provider interface {
	ResolvePrincipal(credential string) (*Principal, error)
}

// Issuer 为 Principal 签发凭证
type Issuer interface {
	Issue(p Principal) (token string, expiresAt time.Time, err error)
}

type claims struct {
	Principal
	jwt.RegisteredClaims
}

// JWTProvider HS256 签名的 JWT
type JWTProvider struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

var (
	_ Provider = (*JWTProvider)(nil)
	_ Issuer   = (*JWTProvider)(nil)
)

func NewJWTProvider(secret string, ttl time.Duration, c clock.Clock) *JWTProvider {
	if c == nil {
		c = clock.RealClock{}
	}
	return &JWTProvider{secret: []byte(secret), ttl: ttl, clock: c}
}

func (p *JWTProvider) Issue(principal Principal) (string, time.Time, error) {
	now := p.clock.Now()
	expiresAt := now.Add(p.ttl)
	subject := fmt.Sprintf("user:%d", principal.UserID)
	if principal.IsCard() {
		subject = fmt.Sprintf("card:%d", principal.CardID)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Principal: principal,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("签发令牌失败: %w", err)
	}
	return signed, expiresAt, nil
}

// ResolvePrincipal 接受 "Bearer <token>" 或裸 token
func (p *JWTProvider) ResolvePrincipal(credential string) (*Principal, error) {
	raw := strings.TrimSpace(credential)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw == "" {
		return nil, fmt.Errorf("缺少令牌: %w", model.ErrUnauthorized)
	}

	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(token *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("令牌已过期: %w", model.ErrUnauthorized)
		}
		return nil, fmt.Errorf("令牌无效: %w", model.ErrUnauthorized)
	}

	if c.UserID == 0 && c.CardID == 0 {
		return nil, fmt.Errorf("令牌缺少主体: %w", model.ErrUnauthorized)
	}
	principal := c.Principal
	return &principal, nil
}

type contextKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok && p != nil
}
