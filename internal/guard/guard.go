// Package guard 余额充足性校验，无副作用，不依赖存储
package guard

import (
	"fmt"

	"virtualbank/internal/model"

	"github.com/shopspring/decimal"
)

// MoneyScale 金额的最小单位为分（两位小数）
const MoneyScale = 2

// ValidateAmount 金额必须为正数，且能以分精确表示
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("金额必须大于0: %w", model.ErrInvalidAmount)
	}
	if !amount.Equal(amount.Truncate(MoneyScale)) {
		return fmt.Errorf("金额最多保留%d位小数: %w", MoneyScale, model.ErrInvalidAmount)
	}
	return nil
}

// CanDebit 判断当前余额是否足以扣减 amount
// 金额不合法时返回 ErrInvalidAmount；余额不足时返回 false 且无错误
func CanDebit(currentBalance, amount decimal.Decimal) (bool, error) {
	if err := ValidateAmount(amount); err != nil {
		return false, err
	}
	return amount.LessThanOrEqual(currentBalance), nil
}
