package devform

import (
	"errors"
	"strings"
)

// Rule 字段的显示/必填规则，只有下面三种取值，必填字段一定可见
type Rule struct {
	visible  bool
	required bool
}

var (
	Hidden    = Rule{}
	Optional  = Rule{visible: true}
	Mandatory = Rule{visible: true, required: true}
)

func (r Rule) Visible() bool  { return r.visible }
func (r Rule) Required() bool { return r.required }

// RuleOf 由原始标志构造规则，必填但不显示按隐藏处理
func RuleOf(show, require bool) Rule {
	switch {
	case !show:
		return Hidden
	case require:
		return Mandatory
	default:
		return Optional
	}
}

// Template 设备模板，决定哪些字段显示、哪些必填
type Template struct {
	ID          string
	Name        string
	Description string
	rules       [fieldCount]Rule
}

// NewTemplate 新建模板的初始值：核心字段必填，扩展字段显示但可选
func NewTemplate(name, description string) Template {
	t := Template{Name: name, Description: description}
	for _, f := range Fields() {
		if f <= Status {
			t.rules[f] = Mandatory
		} else {
			t.rules[f] = Optional
		}
	}
	return t
}

// Rule 获取字段规则
func (t Template) Rule(f Field) Rule {
	if !f.Valid() {
		return Hidden
	}
	return t.rules[f]
}

// SetVisible 切换显示，隐藏字段时同时取消必填
func (t *Template) SetVisible(f Field, visible bool) {
	if !f.Valid() {
		return
	}
	switch {
	case !visible:
		t.rules[f] = Hidden
	case !t.rules[f].visible:
		t.rules[f] = Optional
	}
}

// SetRequired 切换必填，隐藏字段不生效，返回是否已应用
func (t *Template) SetRequired(f Field, required bool) bool {
	if !f.Valid() || !t.rules[f].visible {
		return false
	}
	t.rules[f] = RuleOf(true, required)
	return true
}

// VisibleCount 可见字段数
func (t Template) VisibleCount() int {
	n := 0
	for _, r := range t.rules {
		if r.visible {
			n++
		}
	}
	return n
}

// Flags 转换为 show_<key>/require_<key> 标志
func (t Template) Flags() map[string]bool {
	out := make(map[string]bool, 2*fieldCount)
	for _, f := range Fields() {
		r := t.rules[f]
		out["show_"+f.Key()] = r.visible
		out["require_"+f.Key()] = r.required
	}
	return out
}

// FromFlags 由存储的标志列构造模板，require 为真但 show 为假的字段视为隐藏
func FromFlags(id, name, description string, flags map[string]bool) Template {
	t := Template{ID: id, Name: name, Description: description}
	for _, f := range Fields() {
		t.rules[f] = RuleOf(flags["show_"+f.Key()], flags["require_"+f.Key()])
	}
	return t
}

var defaultTemplate = func() Template {
	t := Template{Name: "Default", Description: "Built-in device form"}
	for _, f := range Fields() {
		if f <= Status {
			t.rules[f] = Mandatory
		}
	}
	return t
}()

// Default 未选择模板时使用的默认模板：五个核心字段必填，扩展字段隐藏
func Default() Template { return defaultTemplate }

// ResolveEffective 返回已选模板，未选择时返回默认模板
func ResolveEffective(selected *Template) Template {
	if selected == nil {
		return Default()
	}
	return *selected
}

// FieldsToRender 按规范顺序返回需要渲染的字段
func FieldsToRender(t Template) []Field {
	out := make([]Field, 0, fieldCount)
	for _, f := range Fields() {
		if t.rules[f].visible {
			out = append(out, f)
		}
	}
	return out
}

var (
	ErrNameRequired    = errors.New("template name is required")
	ErrNoVisibleFields = errors.New("template must show at least one field")
)

// ValidateAuthoring 保存模板前的校验
func ValidateAuthoring(t Template) error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrNameRequired
	}
	if t.VisibleCount() == 0 {
		return ErrNoVisibleFields
	}
	return nil
}
