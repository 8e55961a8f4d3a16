package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/pkg/logger"
)

var exportHeader = []string{
	"id", "name", "ip_address", "mac_address", "device_type", "status",
	"manufacturer", "model", "assigned_to", "assigned_username", "template_id", "created_by", "created_at",
}

// ExportService 设备清单导出
type ExportService struct {
	devices  gateway.DeviceStore
	profiles gateway.ProfileStore
	writer   StorageWriter
	now      func() time.Time
}

// NewExportService 创建导出服务
func NewExportService(gw *gateway.Gateway, writer StorageWriter) *ExportService {
	return &ExportService{devices: gw.Devices, profiles: gw.Profiles, writer: writer, now: time.Now}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ExportDevices 把当前设备清单写成 CSV 并保存到指定后端，backend 为空时使用配置默认值
func (s *ExportService) ExportDevices(ctx context.Context, backend string) (StoredObject, error) {
	devices, err := s.devices.List(ctx)
	if err != nil {
		return StoredObject{}, err
	}
	profiles, err := s.profiles.List(ctx)
	if err != nil {
		return StoredObject{}, err
	}
	usernames := make(map[string]string, len(profiles))
	for _, p := range profiles {
		usernames[p.ID] = p.Username
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return StoredObject{}, err
	}
	for _, d := range devices {
		assigned := deref(d.AssignedTo)
		row := []string{
			d.ID, d.Name, d.IPAddress, d.MACAddress, d.DeviceType, d.Status,
			d.Manufacturer, d.Model, assigned, usernames[assigned], deref(d.TemplateID), d.CreatedBy,
			d.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return StoredObject{}, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return StoredObject{}, err
	}

	now := s.now()
	obj, err := s.writer.Write(ctx, StorageMeta{
		Kind:         "devices",
		DateYYYYMMDD: now.Format("20060102"),
		FileName:     fmt.Sprintf("devices_%s.csv", now.Format("150405")),
		Backend:      backend,
	}, buf.Bytes(), "text/csv; charset=utf-8")
	if err != nil {
		logger.Error("device export failed", "error", err)
		return StoredObject{}, err
	}
	logger.Info("device export written", "uri", obj.URI, "devices", len(devices), "fallback", obj.Fallback)
	return obj, nil
}
