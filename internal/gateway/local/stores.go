package local

import (
	"context"
	"errors"
	"time"

	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func firstByID(ctx context.Context, db *gorm.DB, dst interface{}, id string) error {
	err := db.WithContext(ctx).Where("id = ?", id).First(dst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return gateway.ErrNotFound
	}
	return err
}

func deleteByID(ctx context.Context, db *gorm.DB, m interface{}, id string) error {
	res := db.WithContext(ctx).Delete(m, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gateway.ErrNotFound
	}
	return nil
}

// ProfileStore profiles 表
type ProfileStore struct {
	db *gorm.DB
}

func (s *ProfileStore) List(ctx context.Context) ([]model.Profile, error) {
	var out []model.Profile
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (s *ProfileStore) Get(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	if err := firstByID(ctx, s.db, &p, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByUsername 用户名精确匹配（区分大小写）
func (s *ProfileStore) GetByUsername(ctx context.Context, username string) (*model.Profile, error) {
	var p model.Profile
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gateway.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProfileStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Profile{}).Count(&n).Error
	return n, err
}

func (s *ProfileStore) Insert(ctx context.Context, p *model.Profile) error {
	p.ID = newID(p.ID)
	return writeErr("insert profile", s.db.WithContext(ctx).Create(p).Error)
}

func (s *ProfileStore) Update(ctx context.Context, id string, u model.ProfileUpdate) error {
	cols := u.Columns()
	if len(cols) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", id).Updates(cols)
	return writeErr("update profile", affected(ctx, s.db, res, &model.Profile{}, id))
}

func (s *ProfileStore) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, s.db, &model.Profile{}, id)
}

// DeviceStore devices 表
type DeviceStore struct {
	db *gorm.DB
}

func (s *DeviceStore) List(ctx context.Context) ([]model.Device, error) {
	var out []model.Device
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (s *DeviceStore) Get(ctx context.Context, id string) (*model.Device, error) {
	var d model.Device
	if err := firstByID(ctx, s.db, &d, id); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DeviceStore) Insert(ctx context.Context, d *model.Device) error {
	d.ID = newID(d.ID)
	return writeErr("insert device", s.db.WithContext(ctx).Create(d).Error)
}

func (s *DeviceStore) Update(ctx context.Context, d *model.Device) error {
	res := s.db.WithContext(ctx).Model(&model.Device{}).Where("id = ?", d.ID).Updates(d.UpdateColumns())
	return writeErr("update device", affected(ctx, s.db, res, &model.Device{}, d.ID))
}

func (s *DeviceStore) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, s.db, &model.Device{}, id)
}

func (s *DeviceStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Device{}).Count(&n).Error
	return n, err
}

// CountByStatus 按状态分组统计
func (s *DeviceStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := s.db.WithContext(ctx).Model(&model.Device{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}

// TemplateStore device_templates 表
type TemplateStore struct {
	db *gorm.DB
}

func (s *TemplateStore) List(ctx context.Context) ([]model.DeviceTemplate, error) {
	var out []model.DeviceTemplate
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (s *TemplateStore) Get(ctx context.Context, id string) (*model.DeviceTemplate, error) {
	var t model.DeviceTemplate
	if err := firstByID(ctx, s.db, &t, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TemplateStore) Insert(ctx context.Context, t *model.DeviceTemplate) error {
	t.ID = newID(t.ID)
	return writeErr("insert template", s.db.WithContext(ctx).Create(t).Error)
}

func (s *TemplateStore) Update(ctx context.Context, t *model.DeviceTemplate) error {
	cols := t.UpdateColumns()
	cols["updated_at"] = time.Now()
	res := s.db.WithContext(ctx).Model(&model.DeviceTemplate{}).Where("id = ?", t.ID).Updates(cols)
	return writeErr("update template", affected(ctx, s.db, res, &model.DeviceTemplate{}, t.ID))
}

func (s *TemplateStore) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, s.db, &model.DeviceTemplate{}, id)
}

// BootstrapStore 首个管理员认领：向 bootstrap_admin 插入主键为 1 的行，冲突即认领失败
type BootstrapStore struct {
	db *gorm.DB
}

const bootstrapRowID = 1

func (s *BootstrapStore) ClaimAdmin(ctx context.Context, profileID string) (bool, error) {
	row := model.BootstrapAdmin{ID: bootstrapRowID, ProfileID: profileID}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *BootstrapStore) ReleaseAdmin(ctx context.Context, profileID string) error {
	return s.db.WithContext(ctx).
		Where("id = ? AND profile_id = ?", bootstrapRowID, profileID).
		Delete(&model.BootstrapAdmin{}).Error
}
