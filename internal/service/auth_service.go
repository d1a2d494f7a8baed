package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"virtualbank/internal/identity"
	"virtualbank/internal/logging"
	"virtualbank/internal/model"
	"virtualbank/internal/repository"
	"virtualbank/pkg/clock"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService ATM 卡片登录与网银用户登录
type AuthService struct {
	ledger repository.LedgerStore
	users  repository.IdentityStore
	issuer identity.Issuer
	clock  clock.Clock
	logger *logging.Logger
}

func NewAuthService(ledger repository.LedgerStore, users repository.IdentityStore, issuer identity.Issuer, c clock.Clock) *AuthService {
	if c == nil {
		c = clock.RealClock{}
	}
	return &AuthService{
		ledger: ledger,
		users:  users,
		issuer: issuer,
		clock:  c,
		logger: logging.Global().Named("auth"),
	}
}

type AtmSession struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Card      *model.Card     `json:"card"`
	Account   *model.Account  `json:"account"`
	Customer  *model.Customer `json:"customer"`
}

// AtmLogin 卡号 + PIN 登录
func (s *AuthService) AtmLogin(ctx context.Context, cardNumber, pin string) (*AtmSession, error) {
	card, err := s.ledger.GetCardByNumber(ctx, cardNumber)
	if err != nil {
		return nil, fmt.Errorf("卡片: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(card.PIN), []byte(pin)); err != nil {
		s.logger.Warn("PIN 校验失败", zap.Int64("card_id", card.CardID))
		return nil, fmt.Errorf("PIN 错误: %w", model.ErrUnauthorized)
	}
	if !card.Usable(s.clock.Now()) {
		return nil, fmt.Errorf("卡片 %d 状态 %s: %w", card.CardID, card.Status, model.ErrInactive)
	}

	account, err := s.ledger.GetAccount(ctx, card.AccountID)
	if err != nil {
		return nil, fmt.Errorf("卡片 %d 的账户: %w", card.CardID, err)
	}
	customer, err := s.ledger.GetCustomer(ctx, account.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("客户 %d: %w", account.CustomerID, err)
	}

	token, expiresAt, err := s.issuer.Issue(identity.Principal{
		CardID:     card.CardID,
		AccountID:  account.AccountID,
		CustomerID: customer.CustomerID,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("ATM 登录成功", zap.Int64("card_id", card.CardID))
	return &AtmSession{Token: token, ExpiresAt: expiresAt, Card: card, Account: account, Customer: customer}, nil
}

type UserSession struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// Login 用户名或邮箱 + 密码登录
func (s *AuthService) Login(ctx context.Context, login, password string) (*UserSession, error) {
	user, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			// 不区分用户不存在和密码错误
			return nil, fmt.Errorf("用户名或密码错误: %w", model.ErrUnauthorized)
		}
		return nil, err
	}
	if user.Status != model.UserStatusActive {
		return nil, fmt.Errorf("用户 %d 状态 %s: %w", user.UserID, user.Status, model.ErrInactive)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("用户名或密码错误: %w", model.ErrUnauthorized)
	}

	principal := identity.Principal{UserID: user.UserID}
	if user.CustomerID != nil {
		principal.CustomerID = *user.CustomerID
	}
	token, expiresAt, err := s.issuer.Issue(principal)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.users.TouchLastLogin(ctx, user.UserID, now); err != nil {
		// 登录时间只用于展示，写入失败不影响登录
		s.logger.Warn("更新最后登录时间失败", zap.Int64("user_id", user.UserID), zap.Error(err))
	} else {
		user.LastLogin = &now
	}

	s.logger.Info("用户登录成功", zap.Int64("user_id", user.UserID))
	return &UserSession{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

type Profile struct {
	User     *model.User     `json:"user,omitempty"`
	Role     *model.Role     `json:"role,omitempty"`
	Customer *model.Customer `json:"customer,omitempty"`
}

// Profile 当前登录主体的资料，卡片会话只返回客户信息
func (s *AuthService) Profile(ctx context.Context, p *identity.Principal) (*Profile, error) {
	profile := &Profile{}

	if p.UserID != 0 {
		user, err := s.users.GetUser(ctx, p.UserID)
		if err != nil {
			return nil, fmt.Errorf("用户 %d: %w", p.UserID, err)
		}
		profile.User = user

		role, err := s.users.GetRole(ctx, user.RoleID)
		switch {
		case err == nil:
			profile.Role = role
		case !errors.Is(err, model.ErrNotFound):
			return nil, err
		}
	}

	if p.CustomerID != 0 {
		customer, err := s.ledger.GetCustomer(ctx, p.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("客户 %d: %w", p.CustomerID, err)
		}
		profile.Customer = customer
	}

	return profile, nil
}
