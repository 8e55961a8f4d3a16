package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/netdevconsole/netdevconsole/internal/service"
)

// StatsHandler 统计与健康检查
type StatsHandler struct {
	dashboard *service.DashboardService
	// ping 数据网关连通性检查，可为空
	ping func() error
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(dashboard *service.DashboardService, ping func() error) *StatsHandler {
	return &StatsHandler{dashboard: dashboard, ping: ping}
}

// Stats 设备与用户统计
func (h *StatsHandler) Stats(c *gin.Context) {
	st, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, http.StatusOK, "ok", st)
}

// Health 健康检查
func (h *StatsHandler) Health(c *gin.Context) {
	if h.ping != nil {
		if err := h.ping(); err != nil {
			fail(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", err.Error())
			return
		}
	}
	ok(c, http.StatusOK, "service healthy", gin.H{"status": "running"})
}
