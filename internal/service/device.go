package service

import (
	"context"
	"errors"
	"strings"

	"github.com/netdevconsole/netdevconsole/internal/devform"
	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/model"
	"github.com/netdevconsole/netdevconsole/internal/util"
	"github.com/netdevconsole/netdevconsole/pkg/logger"
)

// DeviceService 设备台账
type DeviceService struct {
	devices   gateway.DeviceStore
	templates gateway.TemplateStore
	profiles  gateway.ProfileStore
}

// NewDeviceService 创建设备服务
func NewDeviceService(gw *gateway.Gateway) *DeviceService {
	return &DeviceService{devices: gw.Devices, templates: gw.Templates, profiles: gw.Profiles}
}

// List 按名称或 IP 搜索设备，按创建时间倒序
func (s *DeviceService) List(ctx context.Context, query string) ([]model.Device, error) {
	all, err := s.devices.List(ctx)
	if err != nil {
		logger.Error("failed to list devices", "error", err)
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return all, nil
	}
	out := make([]model.Device, 0, len(all))
	for _, d := range all {
		if util.MatchAny(query, d.Name, d.IPAddress) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Get 获取设备
func (s *DeviceService) Get(ctx context.Context, id string) (*model.Device, error) {
	return s.devices.Get(ctx, id)
}

// EffectiveTemplate 返回生效模板，templateID 为空时使用默认模板
func (s *DeviceService) EffectiveTemplate(ctx context.Context, templateID string) (devform.Template, error) {
	if strings.TrimSpace(templateID) == "" {
		return devform.ResolveEffective(nil), nil
	}
	m, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return devform.Template{}, err
	}
	t := TemplateFromModel(*m)
	return devform.ResolveEffective(&t), nil
}

// MissingTemplateNotice 设备引用的模板已被删除时的提示
const MissingTemplateNotice = "The selected template no longer exists; the default form is used instead."

// FormTemplate 编辑表单使用的模板；模板已被删除时回退到默认模板并返回 fallback=true
func (s *DeviceService) FormTemplate(ctx context.Context, templateID string) (t devform.Template, fallback bool, err error) {
	t, err = s.EffectiveTemplate(ctx, templateID)
	if errors.Is(err, gateway.ErrNotFound) {
		logger.Warn("template not found, falling back to default", "template_id", templateID)
		return devform.ResolveEffective(nil), true, nil
	}
	return t, false, err
}

// PlanField 表单中的一个字段
type PlanField struct {
	Key      string           `json:"key"`
	Label    string           `json:"label"`
	Required bool             `json:"required"`
	Options  []devform.Option `json:"options,omitempty"`
}

// FormPlan 设备表单渲染方案
type FormPlan struct {
	TemplateID   string      `json:"template_id,omitempty"`
	TemplateName string      `json:"template_name"`
	Fields       []PlanField `json:"fields"`
	// Notice 模板回退等非阻断提示
	Notice string `json:"notice,omitempty"`
}

// Plan 生成表单方案；"指派用户"字段的可选项来自用户资料
func (s *DeviceService) Plan(ctx context.Context, templateID string) (*FormPlan, error) {
	t, fallback, err := s.FormTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	plan := &FormPlan{TemplateID: t.ID, TemplateName: t.Name}
	if fallback {
		plan.Notice = MissingTemplateNotice
	}
	for _, f := range devform.FieldsToRender(t) {
		pf := PlanField{Key: f.Key(), Label: f.Label(), Required: t.Rule(f).Required(), Options: f.Options()}
		if f == devform.AssignedTo {
			profiles, err := s.profiles.List(ctx)
			if err != nil {
				return nil, err
			}
			for _, p := range profiles {
				pf.Options = append(pf.Options, devform.Option{Value: p.ID, Label: p.Username})
			}
		}
		plan.Fields = append(plan.Fields, pf)
	}
	return plan, nil
}

// build 校验候选记录并转换为设备；隐藏字段清空，状态缺省为 stock
func build(t devform.Template, c devform.Candidate) (*model.Device, error) {
	missing := devform.Validate(t, c)
	invalid := devform.InvalidOptions(t, c)
	if len(missing) > 0 || len(invalid) > 0 {
		return nil, &ValidationError{Missing: missing, Invalid: invalid}
	}
	n := devform.Normalize(t, c)
	d := &model.Device{
		Name:         n.Name,
		IPAddress:    n.IPAddress,
		MACAddress:   n.MACAddress,
		DeviceType:   n.DeviceType,
		Status:       n.Status,
		Manufacturer: n.Manufacturer,
		Model:        n.Model,
	}
	if d.Status == "" {
		d.Status = model.DeviceStatusStock
	}
	if n.AssignedTo != "" {
		d.AssignedTo = &n.AssignedTo
	}
	if t.ID != "" {
		id := t.ID
		d.TemplateID = &id
	}
	return d, nil
}

// Create 按模板校验后新增设备，记录模板 ID 与创建人
func (s *DeviceService) Create(ctx context.Context, actorID, templateID string, c devform.Candidate) (*model.Device, error) {
	t, err := s.EffectiveTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	d, err := build(t, c)
	if err != nil {
		return nil, err
	}
	d.CreatedBy = actorID
	if err := s.devices.Insert(ctx, d); err != nil {
		logger.Error("failed to create device", "name", d.Name, "error", err)
		return nil, err
	}
	logger.Info("device created", "device_id", d.ID, "template_id", t.ID, "created_by", actorID)
	return d, nil
}

// Update 按模板校验后整体更新设备；模板已被删除时按默认模板校验并清除模板引用
func (s *DeviceService) Update(ctx context.Context, id, templateID string, c devform.Candidate) (*model.Device, error) {
	existing, err := s.devices.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t, _, err := s.FormTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	d, err := build(t, c)
	if err != nil {
		return nil, err
	}
	d.ID = existing.ID
	d.CreatedBy = existing.CreatedBy
	d.CreatedAt = existing.CreatedAt
	if err := s.devices.Update(ctx, d); err != nil {
		logger.Error("failed to update device", "device_id", id, "error", err)
		return nil, err
	}
	return d, nil
}

// Delete 删除设备
func (s *DeviceService) Delete(ctx context.Context, id string) error {
	if err := s.devices.Delete(ctx, id); err != nil {
		logger.Error("failed to delete device", "device_id", id, "error", err)
		return err
	}
	return nil
}

// CandidateFromDevice 把已有设备转为表单值，用于编辑
func CandidateFromDevice(d model.Device) devform.Candidate {
	c := devform.Candidate{
		Name:         d.Name,
		IPAddress:    d.IPAddress,
		MACAddress:   d.MACAddress,
		DeviceType:   d.DeviceType,
		Status:       d.Status,
		Manufacturer: d.Manufacturer,
		Model:        d.Model,
	}
	if d.AssignedTo != nil {
		c.AssignedTo = *d.AssignedTo
	}
	return c
}
