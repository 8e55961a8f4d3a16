package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/model"
	"github.com/netdevconsole/netdevconsole/internal/session"
	"github.com/netdevconsole/netdevconsole/internal/util"
	"github.com/netdevconsole/netdevconsole/pkg/logger"
)

// UserView 用户资料与登录邮箱
type UserView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserView(p model.Profile, email string) UserView {
	return UserView{ID: p.ID, Username: p.Username, Role: p.Role, Email: email, CreatedAt: p.CreatedAt}
}

// UserService 用户管理（仅管理员）
type UserService struct {
	profiles  gateway.ProfileStore
	identity  gateway.Identity
	bootstrap gateway.BootstrapStore
	auth      *session.Auth
}

// NewUserService 创建用户服务
func NewUserService(gw *gateway.Gateway, auth *session.Auth) *UserService {
	return &UserService{profiles: gw.Profiles, identity: gw.Identity, bootstrap: gw.Bootstrap, auth: auth}
}

// List 列出用户并按用户名/邮箱搜索；邮箱查询失败时仍返回资料列表
func (s *UserService) List(ctx context.Context, query string) ([]UserView, error) {
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		logger.Error("failed to list profiles", "error", err)
		return nil, err
	}
	emails := map[string]string{}
	if users, err := s.identity.AdminListUsers(ctx); err != nil {
		logger.Warn("failed to load user emails", "error", err)
	} else {
		for _, u := range users {
			emails[u.ID] = u.Email
		}
	}
	out := make([]UserView, 0, len(profiles))
	for _, p := range profiles {
		v := newUserView(p, emails[p.ID])
		if util.MatchAny(query, v.Username, v.Email) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Get 获取单个用户
func (s *UserService) Get(ctx context.Context, id string) (*UserView, error) {
	p, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	email := ""
	if u, err := s.identity.AdminGetUserByID(ctx, id); err != nil {
		logger.Warn("failed to load user email", "user_id", id, "error", err)
	} else {
		email = u.Email
	}
	v := newUserView(*p, email)
	return &v, nil
}

// Create 管理员创建用户
func (s *UserService) Create(ctx context.Context, in session.CreateUserInput) (*UserView, error) {
	p, err := s.auth.CreateByAdmin(ctx, in)
	if err != nil {
		return nil, err
	}
	v := newUserView(*p, strings.TrimSpace(in.Email))
	return &v, nil
}

// UpdateRole 修改角色
func (s *UserService) UpdateRole(ctx context.Context, id, role string) error {
	r, err := session.ParseRole(role)
	if err != nil {
		return &session.InputError{Msg: err.Error()}
	}
	if r != session.RoleAdmin {
		if err := s.ensureOtherAdmin(ctx, id); err != nil {
			return err
		}
	}
	roleStr := string(r)
	if err := s.profiles.Update(ctx, id, model.ProfileUpdate{Role: &roleStr}); err != nil {
		return err
	}
	logger.Info("user role updated", "user_id", id, "role", roleStr)
	return nil
}

// UpdateUsername 修改用户名，用户名需唯一
func (s *UserService) UpdateUsername(ctx context.Context, id, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return &session.InputError{Msg: "username is required"}
	}
	other, err := s.profiles.GetByUsername(ctx, username)
	switch {
	case err == nil && other.ID != id:
		return session.ErrUsernameTaken
	case err != nil && !errors.Is(err, gateway.ErrNotFound):
		return err
	}
	err = s.profiles.Update(ctx, id, model.ProfileUpdate{Username: &username})
	if errors.Is(err, gateway.ErrConflict) {
		return session.ErrUsernameTaken
	}
	return err
}

// ensureOtherAdmin 目标为管理员时，要求至少还有另一名管理员
func (s *UserService) ensureOtherAdmin(ctx context.Context, id string) error {
	target, err := s.profiles.Get(ctx, id)
	if err != nil {
		return err
	}
	if target.Role != string(session.RoleAdmin) {
		return nil
	}
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range profiles {
		if p.ID != id && p.Role == string(session.RoleAdmin) {
			return nil
		}
	}
	return ErrLastAdmin
}

// Delete 先删资料再删账号；账号已不存在时视为成功。
// 被删用户持有首个管理员认领时一并释放，资料清空后新注册者可重新成为管理员
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.ensureOtherAdmin(ctx, id); err != nil {
		return err
	}
	if err := s.profiles.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.bootstrap.ReleaseAdmin(ctx, id); err != nil {
		logger.Warn("failed to release admin claim", "user_id", id, "error", err)
	}
	if err := s.identity.AdminDeleteUser(ctx, id); err != nil && !errors.Is(err, gateway.ErrNotFound) {
		logger.Error("profile deleted but identity removal failed", "user_id", id, "error", err)
		return err
	}
	logger.Info("user deleted", "user_id", id)
	return nil
}
