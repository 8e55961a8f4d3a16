// Package gatewaytest 为测试提供基于内存 sqlite 的本地网关
package gatewaytest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/netdevconsole/netdevconsole/internal/config"
	"github.com/netdevconsole/netdevconsole/internal/database"
	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/gateway/local"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// OpenDB 打开一个独立的内存数据库并完成迁移，测试结束时关闭
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: "file:" + uuid.New().String() + "?mode=memory&cache=shared"},
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// NewLocal 返回基于内存数据库的网关
func NewLocal(t testing.TB, opts ...local.Options) *gateway.Gateway {
	t.Helper()
	var o local.Options
	if len(opts) > 0 {
		o = opts[0]
	}
	return local.New(OpenDB(t), o)
}
