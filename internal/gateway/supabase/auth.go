package supabase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/netdevconsole/netdevconsole/internal/gateway"
)

// Auth GoTrue 身份服务
type Auth struct {
	c *Client
}

type remoteUser struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (u remoteUser) toUser() gateway.User {
	return gateway.User{ID: u.ID, Email: u.Email, EmailConfirmed: u.EmailConfirmedAt != nil, CreatedAt: u.CreatedAt}
}

func credentials(email, password string) map[string]string {
	return map[string]string{"email": strings.TrimSpace(email), "password": password}
}

func isUserExists(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == "user_already_exists" || apiErr.Code == "email_exists" ||
		strings.Contains(strings.ToLower(apiErr.Message), "already registered")
}

// SignUp 注册，开启邮件确认时响应只含用户不含会话
func (a *Auth) SignUp(ctx context.Context, email, password string) (string, error) {
	var out struct {
		remoteUser
		User *remoteUser `json:"user"`
	}
	_, err := a.c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/signup", body: credentials(email, password)}, &out)
	if err != nil {
		if isUserExists(err) {
			return "", gateway.ErrUserExists
		}
		return "", err
	}
	if out.User != nil && out.User.ID != "" {
		return out.User.ID, nil
	}
	if out.ID == "" {
		return "", errors.New("signup response carries no user id")
	}
	return out.ID, nil
}

type tokenResponse struct {
	AccessToken string     `json:"access_token"`
	ExpiresIn   int64      `json:"expires_in"`
	ExpiresAt   int64      `json:"expires_at"`
	User        remoteUser `json:"user"`
}

// SignIn 密码登录
func (a *Auth) SignIn(ctx context.Context, email, password string) (*gateway.Session, error) {
	var out tokenResponse
	_, err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   credentials(email, password),
	}, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnauthorized) {
			return nil, gateway.ErrInvalidCredentials
		}
		return nil, err
	}
	expires := time.Unix(out.ExpiresAt, 0)
	if out.ExpiresAt == 0 && out.ExpiresIn > 0 {
		expires = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	}
	return &gateway.Session{AccessToken: out.AccessToken, UserID: out.User.ID, ExpiresAt: expires}, nil
}

// SignOut 注销
func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	_, err := a.c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout", bearer: accessToken}, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden || apiErr.Status == http.StatusNotFound) {
		return nil
	}
	return err
}

// GetSession 由身份服务校验令牌，过期时间取自 JWT 的 exp 声明
func (a *Auth) GetSession(ctx context.Context, accessToken string) (*gateway.Session, error) {
	if accessToken == "" {
		return nil, gateway.ErrSessionNotFound
	}
	exp := tokenExpiry(accessToken)
	if !exp.IsZero() && !time.Now().Before(exp) {
		return nil, gateway.ErrSessionExpired
	}
	u, err := a.GetUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return &gateway.Session{AccessToken: accessToken, UserID: u.ID, ExpiresAt: exp}, nil
}

// GetUser 获取令牌对应的账号
func (a *Auth) GetUser(ctx context.Context, accessToken string) (*gateway.User, error) {
	var out remoteUser
	_, err := a.c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user", bearer: accessToken}, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			return nil, gateway.ErrSessionNotFound
		}
		return nil, err
	}
	u := out.toUser()
	return &u, nil
}

// tokenExpiry 读取 JWT 的 exp 声明，仅用于展示和提前判断过期，不校验签名
func tokenExpiry(token string) time.Time {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if json.Unmarshal(raw, &claims) != nil || claims.Exp == 0 {
		return time.Time{}
	}
	return time.Unix(claims.Exp, 0)
}

// AdminCreateUser 管理员创建账号
func (a *Auth) AdminCreateUser(ctx context.Context, email, password string, emailConfirmed bool) (string, error) {
	body := map[string]interface{}{
		"email":         strings.TrimSpace(email),
		"password":      password,
		"email_confirm": emailConfirmed,
	}
	var out remoteUser
	if _, err := a.c.admin(ctx, request{method: http.MethodPost, path: "/auth/v1/admin/users", body: body}, &out); err != nil {
		if isUserExists(err) {
			return "", gateway.ErrUserExists
		}
		return "", err
	}
	return out.ID, nil
}

// AdminDeleteUser 管理员删除账号
func (a *Auth) AdminDeleteUser(ctx context.Context, id string) error {
	_, err := a.c.admin(ctx, request{method: http.MethodDelete, path: "/auth/v1/admin/users/" + url.PathEscape(id)}, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return gateway.ErrNotFound
	}
	return err
}

const adminPageSize = 1000

// AdminListUsers 分页拉取全部账号
func (a *Auth) AdminListUsers(ctx context.Context) ([]gateway.User, error) {
	var users []gateway.User
	for page := 1; ; page++ {
		var out struct {
			Users []remoteUser `json:"users"`
		}
		q := url.Values{}
		q.Set("page", itoa(page))
		q.Set("per_page", itoa(adminPageSize))
		if _, err := a.c.admin(ctx, request{method: http.MethodGet, path: "/auth/v1/admin/users", query: q}, &out); err != nil {
			return nil, err
		}
		for _, u := range out.Users {
			users = append(users, u.toUser())
		}
		if len(out.Users) < adminPageSize {
			return users, nil
		}
	}
}

// AdminGetUserByID 管理员按 ID 获取账号
func (a *Auth) AdminGetUserByID(ctx context.Context, id string) (*gateway.User, error) {
	var out remoteUser
	_, err := a.c.admin(ctx, request{method: http.MethodGet, path: "/auth/v1/admin/users/" + url.PathEscape(id)}, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, gateway.ErrNotFound
		}
		return nil, err
	}
	u := out.toUser()
	return &u, nil
}
