package model

import "time"

// AuthUser 本地身份服务账号（local 提供方）
type AuthUser struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Email          string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash   string    `gorm:"type:varchar(255);not null" json:"-"`
	EmailConfirmed bool      `json:"email_confirmed"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (AuthUser) TableName() string { return "auth_users" }

// AuthSession 登录会话，仅保存令牌摘要
type AuthSession struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	TokenHash string    `gorm:"type:char(64);uniqueIndex;not null"`
	UserID    string    `gorm:"type:varchar(64);index;not null"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName 表名
func (AuthSession) TableName() string { return "auth_sessions" }

// BootstrapAdmin 首个管理员的唯一占位行，主键固定为 1
type BootstrapAdmin struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ProfileID string    `gorm:"type:varchar(64);not null" json:"profile_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (BootstrapAdmin) TableName() string { return "bootstrap_admin" }
