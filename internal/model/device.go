package model

import "time"

// 设备状态
const (
	DeviceStatusStock   = "stock"
	DeviceStatusDipakai = "dipakai"
	DeviceStatusRusak   = "rusak"
)

// Device 网络设备台账记录
type Device struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name         string    `gorm:"column:name;type:varchar(128)" json:"name"`
	IPAddress    string    `gorm:"column:ip_address;type:varchar(64)" json:"ip_address"`
	MACAddress   string    `gorm:"column:mac_address;type:varchar(64)" json:"mac_address"`
	DeviceType   string    `gorm:"column:device_type;type:varchar(32)" json:"device_type"`
	Status       string    `gorm:"column:status;type:varchar(16);index" json:"status"`
	Manufacturer string    `gorm:"column:manufacturer;type:varchar(128)" json:"manufacturer"`
	Model        string    `gorm:"column:model;type:varchar(128)" json:"model"`
	AssignedTo   *string   `gorm:"column:assigned_to;type:varchar(64);index" json:"assigned_to"`
	TemplateID   *string   `gorm:"column:template_id;type:varchar(64);index" json:"template_id"`
	CreatedBy    string    `gorm:"column:created_by;type:varchar(64)" json:"created_by"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (Device) TableName() string { return "devices" }

// UpdateColumns 编辑设备时允许修改的列，created_by/created_at 不随编辑变化
func (d Device) UpdateColumns() map[string]interface{} {
	return map[string]interface{}{
		"name":         d.Name,
		"ip_address":   d.IPAddress,
		"mac_address":  d.MACAddress,
		"device_type":  d.DeviceType,
		"status":       d.Status,
		"manufacturer": d.Manufacturer,
		"model":        d.Model,
		"assigned_to":  d.AssignedTo,
		"template_id":  d.TemplateID,
	}
}
