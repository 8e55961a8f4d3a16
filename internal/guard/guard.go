// Package guard 按登录状态和角色保护页面与接口
package guard

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/session"
	"github.com/netdevconsole/netdevconsole/pkg/logger"
)

// State 守卫状态
type State int

const (
	// Checking 身份尚未解析
	Checking State = iota
	Authorized
	RedirectLogin
	RedirectHome
)

func (s State) String() string {
	switch s {
	case Authorized:
		return "authorized"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	}
	return "checking"
}

// 跳转目标
const (
	LoginPath = "/login"
	HomePath  = "/home"
)

// CookieName 会话 Cookie 名
const CookieName = "session"

// Decide 根据身份和所需角色给出结论；required 为空表示只需登录
func Decide(id *session.Identity, required session.Role) State {
	if id == nil {
		return RedirectLogin
	}
	if required != "" && id.Role != required {
		return RedirectHome
	}
	return Authorized
}

// Resolver 解析访问令牌
type Resolver interface {
	CurrentUserWithRole(ctx context.Context, accessToken string) (*session.Identity, error)
}

// AccessToken 依次从 Cookie 和 Authorization: Bearer 头读取令牌
func AccessToken(c *gin.Context) string {
	if v, err := c.Cookie(CookieName); err == nil && v != "" {
		return v
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Authenticate 每个请求重新解析身份，不缓存结果；解析失败按未登录处理
func Authenticate(r Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := AccessToken(c)
		if token == "" {
			c.Next()
			return
		}
		id, err := r.CurrentUserWithRole(c.Request.Context(), token)
		if err != nil {
			logger.Warn("failed to resolve session",
				"request_id", c.GetString("request_id"),
				"path", c.Request.URL.Path,
				"error", err,
			)
			id = nil
		}
		if id != nil {
			session.Attach(c, id, token)
			c.Request = c.Request.WithContext(gateway.WithAccessToken(c.Request.Context(), token))
		}
		c.Next()
	}
}

// RequirePage 页面守卫：未登录跳转登录页，角色不符跳转首页
func RequirePage(required session.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch Decide(session.FromContext(c), required) {
		case RedirectLogin:
			c.Redirect(http.StatusFound, LoginPath)
			c.Abort()
		case RedirectHome:
			c.Redirect(http.StatusFound, HomePath)
			c.Abort()
		default:
			c.Next()
		}
	}
}

// RequireAPI 接口守卫：未登录 401，角色不符 403
func RequireAPI(required session.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch Decide(session.FromContext(c), required) {
		case RedirectLogin:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHENTICATED",
				"message": "login required",
			})
		case RedirectHome:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "FORBIDDEN",
				"message": "insufficient role",
			})
		default:
			c.Next()
		}
	}
}
