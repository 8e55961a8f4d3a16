package model

import "time"

// DeviceTemplate 设备录入模板，按字段记录显示/必填标志
// 列名沿用 show_<field> / require_<field>，与托管后端的表结构一致
type DeviceTemplate struct {
	ID          string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name        string `gorm:"type:varchar(128);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	ShowDeviceName      bool `gorm:"column:show_device_name" json:"show_device_name"`
	RequireDeviceName   bool `gorm:"column:require_device_name" json:"require_device_name"`
	ShowIPAddress       bool `gorm:"column:show_ip_address" json:"show_ip_address"`
	RequireIPAddress    bool `gorm:"column:require_ip_address" json:"require_ip_address"`
	ShowMACAddress      bool `gorm:"column:show_mac_address" json:"show_mac_address"`
	RequireMACAddress   bool `gorm:"column:require_mac_address" json:"require_mac_address"`
	ShowDeviceType      bool `gorm:"column:show_device_type" json:"show_device_type"`
	RequireDeviceType   bool `gorm:"column:require_device_type" json:"require_device_type"`
	ShowStatus          bool `gorm:"column:show_status" json:"show_status"`
	RequireStatus       bool `gorm:"column:require_status" json:"require_status"`
	ShowManufacturer    bool `gorm:"column:show_manufacturer" json:"show_manufacturer"`
	RequireManufacturer bool `gorm:"column:require_manufacturer" json:"require_manufacturer"`
	ShowModel           bool `gorm:"column:show_model" json:"show_model"`
	RequireModel        bool `gorm:"column:require_model" json:"require_model"`
	ShowAssignedTo      bool `gorm:"column:show_assigned_to" json:"show_assigned_to"`
	RequireAssignedTo   bool `gorm:"column:require_assigned_to" json:"require_assigned_to"`

	CreatedBy string    `gorm:"type:varchar(64)" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (DeviceTemplate) TableName() string { return "device_templates" }

func (t *DeviceTemplate) flagRefs() map[string]*bool {
	return map[string]*bool{
		"show_device_name":     &t.ShowDeviceName,
		"require_device_name":  &t.RequireDeviceName,
		"show_ip_address":      &t.ShowIPAddress,
		"require_ip_address":   &t.RequireIPAddress,
		"show_mac_address":     &t.ShowMACAddress,
		"require_mac_address":  &t.RequireMACAddress,
		"show_device_type":     &t.ShowDeviceType,
		"require_device_type":  &t.RequireDeviceType,
		"show_status":          &t.ShowStatus,
		"require_status":       &t.RequireStatus,
		"show_manufacturer":    &t.ShowManufacturer,
		"require_manufacturer": &t.RequireManufacturer,
		"show_model":           &t.ShowModel,
		"require_model":        &t.RequireModel,
		"show_assigned_to":     &t.ShowAssignedTo,
		"require_assigned_to":  &t.RequireAssignedTo,
	}
}

// Flags 以列名返回全部显示/必填标志
func (t DeviceTemplate) Flags() map[string]bool {
	out := make(map[string]bool, 16)
	for k, p := range t.flagRefs() {
		out[k] = *p
	}
	return out
}

// SetFlags 按列名写入标志，未知列名忽略，缺失列名置为 false
func (t *DeviceTemplate) SetFlags(flags map[string]bool) {
	for k, p := range t.flagRefs() {
		*p = flags[k]
	}
}

// UpdateColumns 编辑模板时写入的列
func (t DeviceTemplate) UpdateColumns() map[string]interface{} {
	cols := make(map[string]interface{}, 18)
	cols["name"] = t.Name
	cols["description"] = t.Description
	for k, v := range t.Flags() {
		cols[k] = v
	}
	return cols
}
