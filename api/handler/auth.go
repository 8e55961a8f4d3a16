package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/netdevconsole/netdevconsole/internal/guard"
	"github.com/netdevconsole/netdevconsole/internal/session"
	"github.com/netdevconsole/netdevconsole/pkg/logger"
)

// CookieOptions 会话 Cookie 设置
type CookieOptions struct {
	Secure bool
	TTL    time.Duration
}

func setSessionCookie(c *gin.Context, opts CookieOptions, token string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if expires.IsZero() || maxAge <= 0 {
		maxAge = int(opts.TTL.Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(guard.CookieName, token, maxAge, "/", "", opts.Secure, true)
}

func clearSessionCookie(c *gin.Context, opts CookieOptions) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(guard.CookieName, "", -1, "/", "", opts.Secure, true)
}

// AuthHandler 认证接口
type AuthHandler struct {
	auth   *session.Auth
	cookie CookieOptions
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(auth *session.Auth, cookie CookieOptions) *AuthHandler {
	return &AuthHandler{auth: auth, cookie: cookie}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register 注册
// @Summary 自助注册
// @Tags auth
// @Accept json
// @Produce json
// @Success 201 {object} SuccessResponse "注册成功"
// @Failure 409 {object} ErrorResponse "用户名或邮箱已存在"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req session.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_PARAMS", err.Error())
		return
	}
	profile, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "registered", profile)
}

// Login 登录，同时写入会话 Cookie
// @Summary 登录
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} SuccessResponse "登录成功"
// @Failure 401 {object} ErrorResponse "凭据无效"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_PARAMS", err.Error())
		return
	}
	sess, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		logger.Warn("login failed", "email", req.Email, "error", err)
		respondError(c, err)
		return
	}
	setSessionCookie(c, h.cookie, sess.AccessToken, sess.ExpiresAt)
	ok(c, http.StatusOK, "logged in", sess)
}

// Logout 注销
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), guard.AccessToken(c)); err != nil {
		respondError(c, err)
		return
	}
	clearSessionCookie(c, h.cookie)
	ok(c, http.StatusOK, "logged out", nil)
}

// Me 当前用户
func (h *AuthHandler) Me(c *gin.Context) {
	ok(c, http.StatusOK, "ok", session.FromContext(c))
}
