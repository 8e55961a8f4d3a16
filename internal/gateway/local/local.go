// Package local 基于关系型数据库（gorm）的数据网关实现，身份认证与数据表都保存在本地库中
package local

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/netdevconsole/netdevconsole/internal/database"
	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"gorm.io/gorm"
)

const defaultSessionTTL = 24 * time.Hour

// Options 本地网关选项
type Options struct {
	SessionTTL time.Duration
	// Now 时钟，测试时可替换
	Now func() time.Time
}

// New 基于已迁移的数据库构建网关
func New(db *gorm.DB, opts Options) *gateway.Gateway {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &gateway.Gateway{
		Identity:  &IdentityService{db: db, ttl: opts.SessionTTL, now: opts.Now},
		Profiles:  &ProfileStore{db: db},
		Devices:   &DeviceStore{db: db},
		Templates: &TemplateStore{db: db},
		Bootstrap: &BootstrapStore{db: db},
		Close: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

// writeErr 把唯一约束冲突统一为 gateway.ErrConflict
func writeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, gateway.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// affected 更新/删除未命中任何行时返回 ErrNotFound；
// mysql 对值未变化的行不计入 RowsAffected，因此再按主键确认一次
func affected(ctx context.Context, db *gorm.DB, res *gorm.DB, m interface{}, id string) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var n int64
	if err := db.WithContext(ctx).Model(m).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gateway.ErrNotFound
	}
	return nil
}
