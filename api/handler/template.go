package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netdevconsole/netdevconsole/internal/model"
	"github.com/netdevconsole/netdevconsole/internal/service"
)

// TemplateHandler 设备模板接口（仅管理员）
type TemplateHandler struct {
	templates *service.TemplateService
}

// NewTemplateHandler 创建模板处理器
func NewTemplateHandler(templates *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{templates: templates}
}

// ListTemplates 模板列表
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	list, err := h.templates.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "ok", list)
}

// GetTemplate 模板详情
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	t, err := h.templates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "ok", t)
}

// bindTemplate 请求体与存储结构一致：name、description 与 show_*/require_* 标志
func bindTemplate(c *gin.Context) (model.DeviceTemplate, bool) {
	var req model.DeviceTemplate
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_PARAMS", err.Error())
		return req, false
	}
	return req, true
}

// CreateTemplate 新建模板
// @Summary 新建设备模板
// @Tags template
// @Accept json
// @Produce json
// @Success 201 {object} SuccessResponse "创建成功"
// @Failure 400 {object} ErrorResponse "名称为空或没有可见字段"
// @Router /api/v1/templates [post]
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	req, bound := bindTemplate(c)
	if !bound {
		return
	}
	t, err := h.templates.Create(c.Request.Context(), actorID(c), service.TemplateFromModel(req))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "template created", t)
}

// UpdateTemplate 更新模板
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	req, bound := bindTemplate(c)
	if !bound {
		return
	}
	t, err := h.templates.Update(c.Request.Context(), c.Param("id"), service.TemplateFromModel(req))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "template updated", t)
}

// DeleteTemplate 删除模板，需 confirm=true
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	if !requireConfirm(c) {
		return
	}
	if err := h.templates.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "template deleted", nil)
}

// DuplicateTemplate 复制模板
func (h *TemplateHandler) DuplicateTemplate(c *gin.Context) {
	t, err := h.templates.Duplicate(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "template duplicated", t)
}
