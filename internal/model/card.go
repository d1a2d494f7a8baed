package model

import (
	"time"
)

const (
	CardStatusActive  = "A"
	CardStatusBlocked = "B"
	CardStatusExpired = "E"
)

// Card 借记卡，属于唯一一个账户
// 资金引擎只读取卡片状态，不修改卡片
type Card struct {
	CardID         int64     `gorm:"column:card_id;primaryKey;autoIncrement" json:"card_id"`
	AccountID      int64     `gorm:"index;not null" json:"account_id"`
	CardNumber     string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"card_number"`
	CardType       string    `gorm:"type:varchar(16)" json:"card_type"`
	PIN            string    `gorm:"column:card_pin;type:varchar(128);not null" json:"-"`
	Status         string    `gorm:"column:card_status;type:varchar(1);not null" json:"card_status"`
	ExpirationDate time.Time `gorm:"not null" json:"expiration_date"`
}

func (Card) TableName() string {
	return "card"
}

// Usable 卡片状态为激活且未过期
func (c *Card) Usable(now time.Time) bool {
	return c.Status == CardStatusActive && now.Before(c.ExpirationDate)
}
