package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netdevconsole/netdevconsole/internal/service"
	"github.com/netdevconsole/netdevconsole/internal/session"
)

// UserHandler 用户管理接口（仅管理员）
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler 创建用户处理器
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// ListUsers 用户列表
func (h *UserHandler) ListUsers(c *gin.Context) {
	list, err := h.users.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "ok", list)
}

// GetUser 用户详情
func (h *UserHandler) GetUser(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "ok", u)
}

// CreateUser 管理员创建用户
// @Summary 创建用户
// @Tags user
// @Accept json
// @Produce json
// @Success 201 {object} SuccessResponse "创建成功"
// @Failure 409 {object} ErrorResponse "用户名或邮箱已存在"
// @Router /api/v1/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req session.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_PARAMS", err.Error())
		return
	}
	u, err := h.users.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "user created", u)
}

type updateUserRequest struct {
	Username string `json:"username" binding:"required"`
}

// UpdateUser 修改用户名
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_PARAMS", err.Error())
		return
	}
	if err := h.users.UpdateUsername(c.Request.Context(), c.Param("id"), req.Username); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "user updated", nil)
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateRole 修改角色
func (h *UserHandler) UpdateRole(c *gin.Context) {
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_PARAMS", err.Error())
		return
	}
	if err := h.users.UpdateRole(c.Request.Context(), c.Param("id"), req.Role); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "role updated", nil)
}

// DeleteUser 删除用户，需 confirm=true
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if !requireConfirm(c) {
		return
	}
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "user deleted", nil)
}
