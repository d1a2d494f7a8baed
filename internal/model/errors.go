package model

import "errors"

// 资金引擎的错误种类，调用方通过 errors.Is 判断
// 具体信息通过 fmt.Errorf("...: %w", ErrXxx) 附加，只写日志，不返回给客户端
var (
	ErrInvalidAmount     = errors.New("金额无效")
	ErrNotFound          = errors.New("记录不存在")
	ErrInsufficientFunds = errors.New("余额不足")
	ErrSameAccount       = errors.New("不能向同一账户转账")
	ErrConflict          = errors.New("并发冲突，请重试")
	ErrUnauthorized      = errors.New("未授权")
	ErrForbidden         = errors.New("无权操作该账户")
	ErrInactive          = errors.New("账户或卡片未激活")
	ErrDuplicateRequest  = errors.New("重复请求")
	ErrStoreUnavailable  = errors.New("存储服务不可用")
	ErrOutcomeUnknown    = errors.New("提交结果未知，请重新查询账户状态")
)
