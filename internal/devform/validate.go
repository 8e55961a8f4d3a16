package devform

import (
	"net"
	"strings"
)

// Candidate 表单提交的设备记录
type Candidate struct {
	Name         string `json:"name" form:"device_name"`
	IPAddress    string `json:"ip_address" form:"ip_address"`
	MACAddress   string `json:"mac_address" form:"mac_address"`
	DeviceType   string `json:"device_type" form:"device_type"`
	Status       string `json:"status" form:"status"`
	Manufacturer string `json:"manufacturer" form:"manufacturer"`
	Model        string `json:"model" form:"model"`
	AssignedTo   string `json:"assigned_to" form:"assigned_to"`
}

// Value 获取字段原始值
func (c Candidate) Value(f Field) string {
	switch f {
	case DeviceName:
		return c.Name
	case IPAddress:
		return c.IPAddress
	case MACAddress:
		return c.MACAddress
	case DeviceType:
		return c.DeviceType
	case Status:
		return c.Status
	case Manufacturer:
		return c.Manufacturer
	case Model:
		return c.Model
	case AssignedTo:
		return c.AssignedTo
	}
	return ""
}

// Set 设置字段值
func (c *Candidate) Set(f Field, v string) {
	switch f {
	case DeviceName:
		c.Name = v
	case IPAddress:
		c.IPAddress = v
	case MACAddress:
		c.MACAddress = v
	case DeviceType:
		c.DeviceType = v
	case Status:
		c.Status = v
	case Manufacturer:
		c.Manufacturer = v
	case Model:
		c.Model = v
	case AssignedTo:
		c.AssignedTo = v
	}
}

func allowed(f Field, v string) bool {
	opts := f.Options()
	if opts == nil {
		return true
	}
	for _, o := range opts {
		if strings.EqualFold(o.Value, v) {
			return true
		}
	}
	return false
}

// Validate 返回缺失的必填字段名（空值或枚举值不合法），为空时才允许保存
func Validate(t Template, c Candidate) []string {
	var missing []string
	for _, f := range Fields() {
		if !t.rules[f].required {
			continue
		}
		v := strings.TrimSpace(c.Value(f))
		if v == "" || !allowed(f, v) {
			missing = append(missing, f.Label())
		}
	}
	return missing
}

// InvalidOptions 返回可见的非必填枚举字段中取值不合法的字段名
func InvalidOptions(t Template, c Candidate) []string {
	var invalid []string
	for _, f := range Fields() {
		r := t.rules[f]
		if !r.visible || r.required || f.Options() == nil {
			continue
		}
		if v := strings.TrimSpace(c.Value(f)); v != "" && !allowed(f, v) {
			invalid = append(invalid, f.Label())
		}
	}
	return invalid
}

// Normalize 去除首尾空白，枚举值转小写，并清空模板隐藏的字段
func Normalize(t Template, c Candidate) Candidate {
	var out Candidate
	for _, f := range Fields() {
		if !t.rules[f].visible {
			continue
		}
		v := strings.TrimSpace(c.Value(f))
		if f.Options() != nil {
			v = strings.ToLower(v)
		}
		out.Set(f, v)
	}
	return out
}

// FormatHints 地址格式提示，不阻止保存
func FormatHints(t Template, c Candidate) []string {
	var hints []string
	if t.rules[IPAddress].visible {
		if v := strings.TrimSpace(c.IPAddress); v != "" && net.ParseIP(v) == nil {
			hints = append(hints, IPAddress.Label()+" does not look like an IPv4/IPv6 address")
		}
	}
	if t.rules[MACAddress].visible {
		if v := strings.TrimSpace(c.MACAddress); v != "" {
			if _, err := net.ParseMAC(v); err != nil {
				hints = append(hints, MACAddress.Label()+" does not look like a MAC address")
			}
		}
	}
	return hints
}
