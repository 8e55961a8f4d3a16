package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/model"
	"github.com/netdevconsole/netdevconsole/pkg/logger"
)

var ErrUsernameTaken = errors.New("username already taken")

// InputError 注册/创建用户时的输入错误
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

const defaultMinPasswordLen = 6

// Auth 登录、注册与管理员创建用户
type Auth struct {
	gw             *gateway.Gateway
	minPasswordLen int
}

// NewAuth 创建认证服务
func NewAuth(gw *gateway.Gateway, minPasswordLen int) *Auth {
	if minPasswordLen <= 0 {
		minPasswordLen = defaultMinPasswordLen
	}
	return &Auth{gw: gw, minPasswordLen: minPasswordLen}
}

// RegisterInput 注册参数
type RegisterInput struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// CreateUserInput 管理员创建用户参数
type CreateUserInput struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role"`
}

func (a *Auth) checkInput(username, email, password string) error {
	switch {
	case username == "":
		return &InputError{Msg: "username is required"}
	case email == "":
		return &InputError{Msg: "email is required"}
	case len(password) < a.minPasswordLen:
		return &InputError{Msg: fmt.Sprintf("password must be at least %d characters", a.minPasswordLen)}
	}
	return nil
}

func (a *Auth) ensureUsernameFree(ctx context.Context, username string) error {
	_, err := a.gw.Profiles.GetByUsername(ctx, username)
	switch {
	case err == nil:
		return ErrUsernameTaken
	case errors.Is(err, gateway.ErrNotFound):
		return nil
	default:
		return err
	}
}

// Login 登录并返回会话
func (a *Auth) Login(ctx context.Context, email, password string) (*gateway.Session, error) {
	return a.gw.Identity.SignIn(ctx, strings.TrimSpace(email), password)
}

// Logout 注销会话
func (a *Auth) Logout(ctx context.Context, accessToken string) error {
	return a.gw.Identity.SignOut(ctx, accessToken)
}

// Register 自助注册：首个资料成为管理员，其余为观察者
func (a *Auth) Register(ctx context.Context, in RegisterInput) (*model.Profile, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if err := a.checkInput(username, email, in.Password); err != nil {
		return nil, err
	}
	if err := a.ensureUsernameFree(ctx, username); err != nil {
		return nil, err
	}

	userID, err := a.gw.Identity.SignUp(ctx, email, in.Password)
	if err != nil {
		return nil, err
	}

	role := RoleObserver
	claimed := false
	count, err := a.gw.Profiles.Count(ctx)
	if err != nil {
		a.rollbackIdentity(ctx, userID)
		return nil, err
	}
	if count == 0 {
		claimed, err = a.gw.Bootstrap.ClaimAdmin(ctx, userID)
		if err != nil {
			a.rollbackIdentity(ctx, userID)
			return nil, err
		}
		if claimed {
			role = RoleAdmin
		}
	}

	profile := &model.Profile{ID: userID, Username: username, Role: string(role)}
	if err := a.gw.Profiles.Insert(ctx, profile); err != nil {
		if claimed {
			if rerr := a.gw.Bootstrap.ReleaseAdmin(ctx, userID); rerr != nil {
				logger.Warn("failed to release admin claim", "user_id", userID, "error", rerr)
			}
		}
		a.rollbackIdentity(ctx, userID)
		if errors.Is(err, gateway.ErrConflict) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	logger.Info("user registered", "user_id", userID, "username", username, "role", role)
	return profile, nil
}

// CreateByAdmin 管理员创建已确认邮箱的账号，角色缺省为观察者
func (a *Auth) CreateByAdmin(ctx context.Context, in CreateUserInput) (*model.Profile, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if err := a.checkInput(username, email, in.Password); err != nil {
		return nil, err
	}
	role := RoleObserver
	if strings.TrimSpace(in.Role) != "" {
		r, err := ParseRole(in.Role)
		if err != nil {
			return nil, &InputError{Msg: err.Error()}
		}
		role = r
	}
	if err := a.ensureUsernameFree(ctx, username); err != nil {
		return nil, err
	}

	userID, err := a.gw.Identity.AdminCreateUser(ctx, email, in.Password, true)
	if err != nil {
		return nil, err
	}
	profile := &model.Profile{ID: userID, Username: username, Role: string(role)}
	if err := a.gw.Profiles.Insert(ctx, profile); err != nil {
		a.rollbackIdentity(ctx, userID)
		if errors.Is(err, gateway.ErrConflict) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	logger.Info("user created by admin", "user_id", userID, "username", username, "role", role)
	return profile, nil
}

// rollbackIdentity 资料写入失败时删除刚创建的账号，失败只记录日志
func (a *Auth) rollbackIdentity(ctx context.Context, userID string) {
	if err := a.gw.Identity.AdminDeleteUser(ctx, userID); err != nil {
		logger.Warn("failed to roll back identity after profile error", "user_id", userID, "error", err)
	}
}
