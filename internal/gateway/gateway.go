// Package gateway 定义访问远程数据服务（身份认证 + 表数据）的接口
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/netdevconsole/netdevconsole/internal/model"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrConflict           = errors.New("duplicate key value violates unique constraint")
	ErrUserExists         = errors.New("user already registered")
)

// User 身份服务中的账号
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	EmailConfirmed bool      `json:"email_confirmed"`
	CreatedAt      time.Time `json:"created_at"`
}

// Session 登录会话
type Session struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired 会话是否已过期
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Identity 身份认证接口
type Identity interface {
	SignUp(ctx context.Context, email, password string) (string, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetSession(ctx context.Context, accessToken string) (*Session, error)
	GetUser(ctx context.Context, accessToken string) (*User, error)

	// 管理操作，需要服务密钥
	AdminCreateUser(ctx context.Context, email, password string, emailConfirmed bool) (string, error)
	AdminDeleteUser(ctx context.Context, id string) error
	AdminListUsers(ctx context.Context) ([]User, error)
	AdminGetUserByID(ctx context.Context, id string) (*User, error)
}

// ProfileStore profiles 表
type ProfileStore interface {
	List(ctx context.Context) ([]model.Profile, error)
	Get(ctx context.Context, id string) (*model.Profile, error)
	GetByUsername(ctx context.Context, username string) (*model.Profile, error)
	Count(ctx context.Context) (int64, error)
	Insert(ctx context.Context, p *model.Profile) error
	Update(ctx context.Context, id string, u model.ProfileUpdate) error
	Delete(ctx context.Context, id string) error
}

// DeviceStore devices 表
type DeviceStore interface {
	List(ctx context.Context) ([]model.Device, error)
	Get(ctx context.Context, id string) (*model.Device, error)
	Insert(ctx context.Context, d *model.Device) error
	Update(ctx context.Context, d *model.Device) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// TemplateStore device_templates 表
type TemplateStore interface {
	List(ctx context.Context) ([]model.DeviceTemplate, error)
	Get(ctx context.Context, id string) (*model.DeviceTemplate, error)
	Insert(ctx context.Context, t *model.DeviceTemplate) error
	Update(ctx context.Context, t *model.DeviceTemplate) error
	Delete(ctx context.Context, id string) error
}

// BootstrapStore 首个管理员的原子认领
type BootstrapStore interface {
	// ClaimAdmin 仅有一个调用方能成功认领，返回是否认领成功
	ClaimAdmin(ctx context.Context, profileID string) (bool, error)
	// ReleaseAdmin 在注册回滚时释放认领（仅当认领者为 profileID）
	ReleaseAdmin(ctx context.Context, profileID string) error
}

// Gateway 数据网关，聚合身份服务与各数据表
type Gateway struct {
	Identity  Identity
	Profiles  ProfileStore
	Devices   DeviceStore
	Templates TemplateStore
	Bootstrap BootstrapStore
	// Close 释放底层连接，可为空
	Close func() error
}

type accessTokenKey struct{}

// WithAccessToken 把调用方的访问令牌放入上下文，托管后端据此按用户身份访问数据表
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessToken 从上下文读取访问令牌
func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}
