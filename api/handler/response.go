package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netdevconsole/netdevconsole/internal/devform"
	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/service"
	"github.com/netdevconsole/netdevconsole/internal/session"
	"github.com/netdevconsole/netdevconsole/pkg/logger"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
	Invalid []string `json:"invalid,omitempty"`
}

// SuccessResponse 成功响应
type SuccessResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, SuccessResponse{Code: "SUCCESS", Message: message, Data: data})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{Code: code, Message: message})
}

// classify 把领域错误映射为 HTTP 状态码和错误码
func classify(err error) (int, string) {
	var vErr *service.ValidationError
	var inputErr *session.InputError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, "VALIDATION_FAILED"
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, "INVALID_PARAMS"
	case errors.Is(err, devform.ErrNameRequired), errors.Is(err, devform.ErrNoVisibleFields):
		return http.StatusBadRequest, "VALIDATION_FAILED"
	case errors.Is(err, gateway.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, session.ErrUsernameTaken), errors.Is(err, gateway.ErrUserExists), errors.Is(err, gateway.ErrConflict),
		errors.Is(err, service.ErrLastAdmin):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, gateway.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case errors.Is(err, gateway.ErrSessionNotFound), errors.Is(err, gateway.ErrSessionExpired):
		return http.StatusUnauthorized, "UNAUTHENTICATED"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// respondError 输出错误响应，消息原样透传给调用方
func respondError(c *gin.Context, err error) {
	status, code := classify(err)
	resp := ErrorResponse{Code: code, Message: err.Error()}
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		resp.Missing = vErr.Missing
		resp.Invalid = vErr.Invalid
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"request_id", c.GetString("request_id"),
			"path", c.Request.URL.Path,
			"error", err,
		)
	}
	c.JSON(status, resp)
}

// requireConfirm 删除接口需带 confirm=true
func requireConfirm(c *gin.Context) bool {
	if c.Query("confirm") == "true" {
		return true
	}
	fail(c, http.StatusBadRequest, "CONFIRMATION_REQUIRED", "add ?confirm=true to delete")
	return false
}

// actorID 当前登录用户 ID
func actorID(c *gin.Context) string {
	if id := session.FromContext(c); id != nil {
		return id.ID
	}
	return ""
}
