package response

import (
	"errors"
	"net/http"

	"virtualbank/internal/model"

	"github.com/gin-gonic/gin"
)

// 失败响应中的 error 字段，客户端按它判断错误种类
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeInvalidAmount     = "INVALID_AMOUNT"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeSameAccount       = "SAME_ACCOUNT"
	CodeInactive          = "INACTIVE"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeDuplicateRequest  = "DUPLICATE_REQUEST"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
	CodeOutcomeUnknown    = "OUTCOME_UNKNOWN"
	CodeInternal          = "INTERNAL"
)

// Response 统一响应结构
// 成功时带 data，失败时带 error
type Response struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type kind struct {
	err    error
	status int
	code   string
}

// 顺序即优先级，先匹配先生效
var kinds = []kind{
	{model.ErrInvalidAmount, http.StatusBadRequest, CodeInvalidAmount},
	{model.ErrInsufficientFunds, http.StatusBadRequest, CodeInsufficientFunds},
	{model.ErrSameAccount, http.StatusBadRequest, CodeSameAccount},
	{model.ErrInactive, http.StatusBadRequest, CodeInactive},
	{model.ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},
	{model.ErrForbidden, http.StatusForbidden, CodeForbidden},
	{model.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{model.ErrDuplicateRequest, http.StatusConflict, CodeDuplicateRequest},
	{model.ErrConflict, http.StatusConflict, CodeConflict},
	{model.ErrOutcomeUnknown, http.StatusInternalServerError, CodeOutcomeUnknown},
	{model.ErrStoreUnavailable, http.StatusInternalServerError, CodeStoreUnavailable},
}

// Classify 返回错误对应的 HTTP 状态码、错误码和可以展示给客户端的消息
// 包装在错误里的细节（账号、金额、SQL）不会出现在消息中
func Classify(err error) (status int, code, message string) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status, k.code, k.err.Error()
		}
	}
	return http.StatusInternalServerError, CodeInternal, "服务器内部错误"
}

func Success(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, "success", data)
}

func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, "created", data)
}

func JSON(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

// Error 按错误种类输出失败响应
func Error(c *gin.Context, err error) {
	status, code, message := Classify(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, Response{
		StatusCode: status,
		Message:    message,
		Error:      code,
	})
}

func ParamError(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		StatusCode: http.StatusBadRequest,
		Message:    message,
		Error:      CodeInvalidRequest,
	})
}

func ServerError(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
		StatusCode: http.StatusInternalServerError,
		Message:    message,
		Error:      CodeInternal,
	})
}
