// Package devform 根据设备模板生成表单方案并校验设备记录
package devform

// Field 设备表单字段
type Field int

// 字段的规范顺序，渲染与校验均按此顺序
const (
	DeviceName Field = iota
	IPAddress
	MACAddress
	DeviceType
	Status
	Manufacturer
	Model
	AssignedTo

	fieldCount
)

var fieldMeta = [fieldCount]struct {
	key   string
	label string
}{
	DeviceName:   {"device_name", "Device Name"},
	IPAddress:    {"ip_address", "IP Address"},
	MACAddress:   {"mac_address", "MAC Address"},
	DeviceType:   {"device_type", "Device Type"},
	Status:       {"status", "Status"},
	Manufacturer: {"manufacturer", "Manufacturer"},
	Model:        {"model", "Model"},
	AssignedTo:   {"assigned_to", "User (Assigned To)"},
}

// Fields 按规范顺序返回全部字段
func Fields() []Field {
	out := make([]Field, fieldCount)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// Valid 是否为已知字段
func (f Field) Valid() bool { return f >= 0 && f < fieldCount }

// Key 字段键名，用于模板标志列和表单输入名
func (f Field) Key() string {
	if !f.Valid() {
		return ""
	}
	return fieldMeta[f].key
}

// Label 展示给用户的字段名
func (f Field) Label() string {
	if !f.Valid() {
		return ""
	}
	return fieldMeta[f].label
}

func (f Field) String() string { return f.Key() }

// ParseField 根据键名查找字段
func ParseField(key string) (Field, bool) {
	for i, m := range fieldMeta {
		if m.key == key {
			return Field(i), true
		}
	}
	return 0, false
}

// Option 枚举字段的可选值
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var deviceTypeOptions = []Option{
	{"router", "Router"},
	{"switch", "Switch"},
	{"printer", "Printer"},
	{"computer", "Computer"},
	{"server", "Server"},
	{"other", "Other"},
}

// 旧版 online/offline 状态不再允许写入
var statusOptions = []Option{
	{"stock", "Stock"},
	{"dipakai", "Dipakai"},
	{"rusak", "Rusak"},
}

// DeviceTypeOptions 设备类型可选值
func DeviceTypeOptions() []Option { return append([]Option(nil), deviceTypeOptions...) }

// StatusOptions 设备状态可选值
func StatusOptions() []Option { return append([]Option(nil), statusOptions...) }

// Options 枚举字段的可选值，非枚举字段返回 nil
func (f Field) Options() []Option {
	switch f {
	case DeviceType:
		return DeviceTypeOptions()
	case Status:
		return StatusOptions()
	}
	return nil
}
