package session

import (
	"context"
	"errors"
	"strings"

	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/model"
	"github.com/netdevconsole/netdevconsole/pkg/logger"
)

// Resolver 把访问令牌解析为带角色的身份
type Resolver struct {
	gw *gateway.Gateway
}

// NewResolver 创建解析器
func NewResolver(gw *gateway.Gateway) *Resolver {
	return &Resolver{gw: gw}
}

func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// CurrentUserWithRole 返回当前用户；无会话或会话过期时返回 nil, nil
func (r *Resolver) CurrentUserWithRole(ctx context.Context, accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, nil
	}
	ctx = gateway.WithAccessToken(ctx, accessToken)

	user, err := r.gw.Identity.GetUser(ctx, accessToken)
	if errors.Is(err, gateway.ErrSessionNotFound) || errors.Is(err, gateway.ErrSessionExpired) || errors.Is(err, gateway.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	profile, err := r.gw.Profiles.Get(ctx, user.ID)
	if err != nil && !errors.Is(err, gateway.ErrNotFound) {
		return nil, err
	}

	id := &Identity{ID: user.ID, Email: user.Email, Username: emailLocalPart(user.Email)}
	if profile != nil && profile.Username != "" {
		id.Username = profile.Username
	}

	if profile != nil && profile.Role != "" {
		role, err := ParseRole(profile.Role)
		if err != nil {
			logger.Warn("profile has unknown role, treating as observer", "user_id", user.ID, "role", profile.Role)
			role = RoleObserver
		}
		id.Role = role
		return id, nil
	}

	role, err := r.assignRole(ctx, user.ID, profile != nil)
	if err != nil {
		return nil, err
	}
	id.Role = role
	if profile != nil {
		roleStr := string(role)
		if err := r.gw.Profiles.Update(ctx, user.ID, model.ProfileUpdate{Role: &roleStr}); err != nil {
			logger.Warn("failed to persist resolved role", "user_id", user.ID, "error", err)
		}
	}
	return id, nil
}

// assignRole 为没有角色的资料决定角色：当前用户是唯一资料（或尚无任何资料）时尝试认领管理员
func (r *Resolver) assignRole(ctx context.Context, userID string, hasProfile bool) (Role, error) {
	count, err := r.gw.Profiles.Count(ctx)
	if err != nil {
		return "", err
	}
	first := count == 0 || (hasProfile && count == 1)
	if !first {
		return RoleObserver, nil
	}
	won, err := r.gw.Bootstrap.ClaimAdmin(ctx, userID)
	if err != nil {
		return "", err
	}
	if won {
		logger.Info("first profile claimed admin role", "user_id", userID)
		return RoleAdmin, nil
	}
	return RoleObserver, nil
}
