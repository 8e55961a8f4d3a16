package model

import "time"

// Profile 应用层用户资料，与身份服务账号一一对应
// - role: admin | observer；旧数据可能为空，由会话解析器补齐
type Profile struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Username  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Role      string    `gorm:"type:varchar(16)" json:"role"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (Profile) TableName() string { return "profiles" }

// ProfileUpdate 资料的部分更新，nil 字段保持不变
type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Role     *string `json:"role,omitempty"`
}

// Columns 转为列名到值的映射
func (u ProfileUpdate) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if u.Username != nil {
		cols["username"] = *u.Username
	}
	if u.Role != nil {
		cols["role"] = *u.Role
	}
	return cols
}
