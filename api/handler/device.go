package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netdevconsole/netdevconsole/internal/devform"
	"github.com/netdevconsole/netdevconsole/internal/service"
)

// DeviceHandler 设备接口
type DeviceHandler struct {
	devices *service.DeviceService
	export  *service.ExportService
}

// NewDeviceHandler 创建设备处理器
func NewDeviceHandler(devices *service.DeviceService, export *service.ExportService) *DeviceHandler {
	return &DeviceHandler{devices: devices, export: export}
}

// deviceRequest 设备表单，template_id 为空时按默认模板校验
type deviceRequest struct {
	TemplateID string `json:"template_id"`
	devform.Candidate
}

// ListDevices 设备列表
// @Summary 设备列表
// @Tags device
// @Produce json
// @Param q query string false "按名称或 IP 搜索"
// @Success 200 {object} SuccessResponse
// @Router /api/v1/devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	list, err := h.devices.List(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "ok", list)
}

// GetDevice 设备详情
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	d, err := h.devices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "ok", d)
}

// FormPlan 按模板返回需要渲染的字段
func (h *DeviceHandler) FormPlan(c *gin.Context) {
	plan, err := h.devices.Plan(c.Request.Context(), c.Query("template"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "ok", plan)
}

// CreateDevice 新增设备
// @Summary 新增设备
// @Description 按所选模板校验必填字段后保存
// @Tags device
// @Accept json
// @Produce json
// @Success 201 {object} SuccessResponse "创建成功"
// @Failure 400 {object} ErrorResponse "缺少必填字段"
// @Router /api/v1/devices [post]
func (h *DeviceHandler) CreateDevice(c *gin.Context) {
	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_PARAMS", err.Error())
		return
	}
	d, err := h.devices.Create(c.Request.Context(), actorID(c), req.TemplateID, req.Candidate)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, "device created", d)
}

// UpdateDevice 更新设备
func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_PARAMS", err.Error())
		return
	}
	d, err := h.devices.Update(c.Request.Context(), c.Param("id"), req.TemplateID, req.Candidate)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "device updated", d)
}

// DeleteDevice 删除设备，需 confirm=true
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	if !requireConfirm(c) {
		return
	}
	if err := h.devices.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "device deleted", nil)
}

// ExportDevices 导出设备清单 CSV
func (h *DeviceHandler) ExportDevices(c *gin.Context) {
	obj, err := h.export.ExportDevices(c.Request.Context(), c.Query("backend"))
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "export written", obj)
}
