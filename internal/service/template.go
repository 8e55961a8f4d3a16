package service

import (
	"context"
	"strings"

	"github.com/netdevconsole/netdevconsole/internal/devform"
	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/model"
	"github.com/netdevconsole/netdevconsole/pkg/logger"
)

// TemplateFromModel 存储行转为模板，require 但未 show 的字段按隐藏读取
func TemplateFromModel(m model.DeviceTemplate) devform.Template {
	return devform.FromFlags(m.ID, m.Name, m.Description, m.Flags())
}

func templateToModel(t devform.Template) model.DeviceTemplate {
	m := model.DeviceTemplate{
		ID:          t.ID,
		Name:        strings.TrimSpace(t.Name),
		Description: strings.TrimSpace(t.Description),
	}
	m.SetFlags(t.Flags())
	return m
}

// TemplateService 设备模板
type TemplateService struct {
	templates gateway.TemplateStore
}

// NewTemplateService 创建模板服务
func NewTemplateService(gw *gateway.Gateway) *TemplateService {
	return &TemplateService{templates: gw.Templates}
}

// List 按创建时间倒序列出模板
func (s *TemplateService) List(ctx context.Context) ([]model.DeviceTemplate, error) {
	return s.templates.List(ctx)
}

// Get 获取模板
func (s *TemplateService) Get(ctx context.Context, id string) (*model.DeviceTemplate, error) {
	return s.templates.Get(ctx, id)
}

func checkAuthoring(t devform.Template) error {
	if err := devform.ValidateAuthoring(t); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}

// Create 新建模板
func (s *TemplateService) Create(ctx context.Context, actorID string, t devform.Template) (*model.DeviceTemplate, error) {
	if err := checkAuthoring(t); err != nil {
		return nil, err
	}
	m := templateToModel(t)
	m.ID = ""
	m.CreatedBy = actorID
	if err := s.templates.Insert(ctx, &m); err != nil {
		logger.Error("failed to create template", "name", m.Name, "error", err)
		return nil, err
	}
	logger.Info("template created", "template_id", m.ID, "visible_fields", t.VisibleCount())
	return &m, nil
}

// Update 更新模板名称、描述和字段规则
func (s *TemplateService) Update(ctx context.Context, id string, t devform.Template) (*model.DeviceTemplate, error) {
	if err := checkAuthoring(t); err != nil {
		return nil, err
	}
	existing, err := s.templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m := templateToModel(t)
	m.ID = existing.ID
	m.CreatedBy = existing.CreatedBy
	m.CreatedAt = existing.CreatedAt
	if err := s.templates.Update(ctx, &m); err != nil {
		logger.Error("failed to update template", "template_id", id, "error", err)
		return nil, err
	}
	return &m, nil
}

// Delete 删除模板；已引用该模板的设备保留 template_id
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	if err := s.templates.Delete(ctx, id); err != nil {
		logger.Error("failed to delete template", "template_id", id, "error", err)
		return err
	}
	return nil
}

// Duplicate 复制模板，名称追加 " (Copy)"，创建人为当前用户
func (s *TemplateService) Duplicate(ctx context.Context, actorID, id string) (*model.DeviceTemplate, error) {
	src, err := s.templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t := TemplateFromModel(*src)
	t.Name = src.Name + " (Copy)"
	return s.Create(ctx, actorID, t)
}
