package model

import (
	"time"
)

// Customer 客户资料，由注册流程创建
type Customer struct {
	CustomerID     int64     `gorm:"column:customer_id;primaryKey;autoIncrement" json:"customer_id"`
	Name           string    `gorm:"type:varchar(128);not null" json:"name"`
	Address        string    `gorm:"type:varchar(256)" json:"address"`
	Telephone      string    `gorm:"type:varchar(32)" json:"telephone"`
	Email          string    `gorm:"type:varchar(128)" json:"email"`
	Identification string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"identification"`
	Birthdate      time.Time `json:"birthdate"`
	CivilStatus    string    `gorm:"type:varchar(16)" json:"civil_status"`
	Gender         string    `gorm:"type:varchar(16)" json:"gender"`
	Nationality    string    `gorm:"type:varchar(64)" json:"nationality"`
}

func (Customer) TableName() string {
	return "customer"
}

// Role 用户角色
type Role struct {
	RoleID      int64  `gorm:"column:role_id;primaryKey;autoIncrement" json:"role_id"`
	Description string `gorm:"type:varchar(64);not null" json:"description"`
}

func (Role) TableName() string {
	return "role"
}

const UserStatusActive = "A"

// User 网银登录用户，密码为 bcrypt 哈希
type User struct {
	UserID     int64      `gorm:"column:user_id;primaryKey;autoIncrement" json:"user_id"`
	UserName   string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_name"`
	Email      string     `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	Password   string     `gorm:"type:varchar(128);not null" json:"-"`
	Status     string     `gorm:"column:user_status;type:varchar(1);not null" json:"user_status"`
	RoleID     int64      `gorm:"index" json:"role_id"`
	CustomerID *int64     `gorm:"index" json:"customer_id,omitempty"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
}

func (User) TableName() string {
	return "user"
}
