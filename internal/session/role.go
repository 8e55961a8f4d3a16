// Package session 解析当前登录用户及其角色，并负责注册/登录流程
package session

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

// Role 用户角色
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleObserver Role = "observer"
)

// ParseRole 解析角色字符串，大小写不敏感
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleObserver:
		return RoleObserver, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Identity 当前请求的用户身份，通过 gin 上下文显式传递
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin 是否管理员
func (i *Identity) IsAdmin() bool { return i != nil && i.Role == RoleAdmin }

const (
	identityKey = "session.identity"
	tokenKey    = "session.token"
)

// Attach 把身份与访问令牌写入 gin 上下文
func Attach(c *gin.Context, id *Identity, token string) {
	c.Set(identityKey, id)
	c.Set(tokenKey, token)
}

// FromContext 读取当前身份，未登录时返回 nil
func FromContext(c *gin.Context) *Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*Identity)
	return id
}

// TokenFromContext 读取当前访问令牌
func TokenFromContext(c *gin.Context) string {
	return c.GetString(tokenKey)
}
