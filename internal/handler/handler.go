package handler

import (
	"context"
	"fmt"
	"strconv"

	"virtualbank/internal/identity"
	"virtualbank/internal/model"
	"virtualbank/internal/service"
	"virtualbank/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	funds    *service.FundsService
	accounts *service.AccountService
	auth     *service.AuthService
}

func NewHandler(funds *service.FundsService, accounts *service.AccountService, auth *service.AuthService) *Handler {
	return &Handler{
		funds:    funds,
		accounts: accounts,
		auth:     auth,
	}
}

// ============================================================
// 登录
// ============================================================

type AtmLoginRequest struct {
	CardNumber string `json:"card_number" binding:"required"`
	PIN        string `json:"pin" binding:"required"`
}

// AtmLogin ATM 卡片登录
// POST /auth/atm_login
func (h *Handler) AtmLogin(c *gin.Context) {
	var req AtmLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	session, err := h.auth.AtmLogin(c.Request.Context(), req.CardNumber, req.PIN)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, session)
}

type LoginRequest struct {
	Login    string `json:"login" binding:"required"` // 用户名或邮箱
	Password string `json:"password" binding:"required"`
}

// Login 网银登录
// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, session)
}

// ============================================================
// ATM
// ============================================================

// GetBalance 查询余额，默认查询卡片所属账户
// GET /atm/get_balance?account_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	p := principalFrom(c)

	accountID, err := optionalID(c.Query("account_id"))
	if err != nil {
		response.ParamError(c, "account_id 参数错误")
		return
	}
	if accountID == 0 {
		accountID = p.AccountID
	}

	account, err := h.ownedAccount(c.Request.Context(), p, accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_id":     account.AccountID,
		"account_number": account.AccountNumber,
		"balance":        account.Balance,
	})
}

// WithdrawRequest 金额可以是 JSON 数字或字符串，统一按十进制解析
type WithdrawRequest struct {
	AccountID int64           `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// Withdraw 取款
// POST /atm/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	p := principalFrom(c)
	if req.AccountID == 0 {
		req.AccountID = p.AccountID
	}

	if _, err := h.ownedAccount(c.Request.Context(), p, req.AccountID); err != nil {
		response.Error(c, err)
		return
	}

	account, err := h.funds.Withdraw(c.Request.Context(), service.WithdrawRequest{
		AccountID: req.AccountID,
		Amount:    req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, account)
}

// ============================================================
// 网银
// ============================================================

type TransferRequest struct {
	OriginAccountID      int64           `json:"origin_account_id" binding:"required"`
	DestinationAccountID int64           `json:"destination_account_id" binding:"required"`
	Amount               decimal.Decimal `json:"amount"`
	Description          *string         `json:"description" binding:"omitempty,max=256"`
	RequestID            string          `json:"request_id" binding:"omitempty,max=64"` // 幂等ID，客户端生成
}

// Transfer 账户间转账
// POST /home/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	p := principalFrom(c)

	if _, err := h.ownedAccount(c.Request.Context(), p, req.OriginAccountID); err != nil {
		response.Error(c, err)
		return
	}

	var approver *int64
	if p.UserID != 0 {
		userID := p.UserID
		approver = &userID
	}

	result, err := h.funds.Transfer(c.Request.Context(), service.TransferRequest{
		OriginAccountID:      req.OriginAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               req.Amount,
		Description:          req.Description,
		AuthorizationUserID:  approver,
		RequestID:            req.RequestID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// PayServiceRequest account_id 与 account_number 二选一
type PayServiceRequest struct {
	AccountID     int64           `json:"account_id"`
	AccountNumber string          `json:"account_number"`
	ServiceTypeID int64           `json:"service_type_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Reference     string          `json:"reference" binding:"max=64"`
	RequestID     string          `json:"request_id" binding:"omitempty,max=64"`
}

// PayService 缴费
// POST /home/pay_service
func (h *Handler) PayService(c *gin.Context) {
	var req PayServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	p := principalFrom(c)

	accountID := req.AccountID
	if accountID == 0 && req.AccountNumber != "" {
		account, err := h.accounts.GetAccountByNumber(c.Request.Context(), req.AccountNumber)
		if err != nil {
			response.Error(c, err)
			return
		}
		accountID = account.AccountID
	}
	if accountID == 0 {
		accountID = p.AccountID
	}
	if _, err := h.ownedAccount(c.Request.Context(), p, accountID); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.funds.PayService(c.Request.Context(), service.PayServiceRequest{
		AccountID:     accountID,
		ServiceTypeID: req.ServiceTypeID,
		Amount:        req.Amount,
		Reference:     req.Reference,
		RequestID:     req.RequestID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

type ConsumeServiceRequest struct {
	ServiceTypeID int64           `json:"service_type_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
}

// ConsumeService 消费服务余额，卡片会话按卡片找客户，用户会话使用自己的客户
// POST /home/consume_service
func (h *Handler) ConsumeService(c *gin.Context) {
	var req ConsumeServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	p := principalFrom(c)

	consume := service.ConsumeServiceRequest{
		ServiceTypeID: req.ServiceTypeID,
		Amount:        req.Amount,
	}
	switch {
	case p.IsCard():
		consume.CardID = p.CardID
	case p.CustomerID != 0:
		consume.CustomerID = p.CustomerID
	default:
		response.Error(c, fmt.Errorf("用户 %d 未关联客户: %w", p.UserID, model.ErrForbidden))
		return
	}

	balance, err := h.funds.ConsumeService(c.Request.Context(), consume)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, balance)
}

// GetProfile 当前登录主体的资料
// GET /home/get_profile
func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.auth.Profile(c.Request.Context(), principalFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, profile)
}

// GetAccounts 当前客户的全部账户
// GET /home/get-accounts
func (h *Handler) GetAccounts(c *gin.Context) {
	p := principalFrom(c)
	if p.CustomerID == 0 {
		response.Error(c, fmt.Errorf("用户 %d 未关联客户: %w", p.UserID, model.ErrForbidden))
		return
	}

	accounts, err := h.accounts.ListAccounts(c.Request.Context(), p.CustomerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, accounts)
}

// ListTransfers 账户的转账记录，按时间倒序
// GET /home/transfers?account_id=xxx&page=1&page_size=20
func (h *Handler) ListTransfers(c *gin.Context) {
	p := principalFrom(c)

	accountID, err := optionalID(c.Query("account_id"))
	if err != nil {
		response.ParamError(c, "account_id 参数错误")
		return
	}
	if accountID == 0 {
		accountID = p.AccountID
	}
	if _, err := h.ownedAccount(c.Request.Context(), p, accountID); err != nil {
		response.Error(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.accounts.ListTransfers(c.Request.Context(), accountID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// ============================================================
// 权限
// ============================================================

// ownedAccount 校验账户属于当前主体
// 卡片会话只能操作卡片绑定的账户；用户会话只能操作所属客户名下的账户
func (h *Handler) ownedAccount(ctx context.Context, p *identity.Principal, accountID int64) (*model.Account, error) {
	if accountID == 0 {
		return nil, fmt.Errorf("未指定账户: %w", model.ErrNotFound)
	}
	if p.IsCard() && accountID != p.AccountID {
		return nil, fmt.Errorf("卡片 %d 不能操作账户 %d: %w", p.CardID, accountID, model.ErrForbidden)
	}

	account, err := h.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if p.CustomerID == 0 || account.CustomerID != p.CustomerID {
		return nil, fmt.Errorf("账户 %d 不属于客户 %d: %w", accountID, p.CustomerID, model.ErrForbidden)
	}
	return account, nil
}

func optionalID(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
