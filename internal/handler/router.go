package handler

import (
	"net/http"

	"virtualbank/internal/identity"
	"virtualbank/internal/logging"

	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Handler  *Handler
	Provider identity.Provider
	Logger   *logging.Logger
	Metrics  http.Handler // 为空时不暴露 /metrics
}

// SetupRouter 配置路由
func SetupRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Global()
	}
	logger = logger.Named("http")
	h := deps.Handler

	r := gin.New()

	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())

	auth := r.Group("/auth")
	{
		auth.POST("/atm_login", h.AtmLogin)
		auth.POST("/login", h.Login)
	}

	authed := AuthMiddleware(deps.Provider)

	atm := r.Group("/atm", authed)
	{
		atm.GET("/get_balance", h.GetBalance)
		atm.POST("/withdraw", h.Withdraw)
	}

	home := r.Group("/home", authed)
	{
		home.POST("/transfer", h.Transfer)
		home.POST("/pay_service", h.PayService)
		home.POST("/consume_service", h.ConsumeService)
		home.GET("/get_profile", h.GetProfile)
		home.GET("/get-accounts", h.GetAccounts)
		home.GET("/transfers", h.ListTransfers)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	return r
}
