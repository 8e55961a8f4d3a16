package local

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/netdevconsole/netdevconsole/internal/config"
	"github.com/netdevconsole/netdevconsole/internal/database"
	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: "file:" + uuid.New().String() + "?mode=memory&cache=shared"},
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return db
}

func TestIdentitySignUpSignIn(t *testing.T) {
	ctx := context.Background()
	gw := New(openTestDB(t), Options{})

	id, err := gw.Identity.SignUp(ctx, " Alice@Example.com ", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = gw.Identity.SignUp(ctx, "alice@example.com", "other12")
	assert.ErrorIs(t, err, gateway.ErrUserExists)

	_, err = gw.Identity.SignIn(ctx, "alice@example.com", "wrong!!")
	assert.ErrorIs(t, err, gateway.ErrInvalidCredentials)
	_, err = gw.Identity.SignIn(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, gateway.ErrInvalidCredentials)

	sess, err := gw.Identity.SignIn(ctx, "ALICE@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, id, sess.UserID)
	assert.NotEmpty(t, sess.AccessToken)

	u, err := gw.Identity.GetUser(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, u.EmailConfirmed)

	require.NoError(t, gw.Identity.SignOut(ctx, sess.AccessToken))
	_, err = gw.Identity.GetSession(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, gateway.ErrSessionNotFound)
}

func TestIdentitySessionExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	gw := New(openTestDB(t), Options{SessionTTL: time.Hour, Now: func() time.Time { return now }})

	_, err := gw.Identity.SignUp(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)
	sess, err := gw.Identity.SignIn(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)

	_, err = gw.Identity.GetSession(ctx, sess.AccessToken)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = gw.Identity.GetSession(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, gateway.ErrSessionExpired)
	_, err = gw.Identity.GetSession(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, gateway.ErrSessionNotFound, "expired session is removed")
}

func TestIdentityAdminOperations(t *testing.T) {
	ctx := context.Background()
	gw := New(openTestDB(t), Options{})

	id, err := gw.Identity.AdminCreateUser(ctx, "carol@example.com", "secret1", false)
	require.NoError(t, err)
	u, err := gw.Identity.AdminGetUserByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, u.EmailConfirmed)

	users, err := gw.Identity.AdminListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	sess, err := gw.Identity.SignIn(ctx, "carol@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, gw.Identity.AdminDeleteUser(ctx, id))
	_, err = gw.Identity.GetSession(ctx, sess.AccessToken)
	assert.ErrorIs(t, err, gateway.ErrSessionNotFound)
	assert.ErrorIs(t, gw.Identity.AdminDeleteUser(ctx, id), gateway.ErrNotFound)
	_, err = gw.Identity.AdminGetUserByID(ctx, id)
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestProfileStore(t *testing.T) {
	ctx := context.Background()
	gw := New(openTestDB(t), Options{})

	p := &model.Profile{ID: "u1", Username: "alice", Role: "admin"}
	require.NoError(t, gw.Profiles.Insert(ctx, p))
	err := gw.Profiles.Insert(ctx, &model.Profile{ID: "u2", Username: "alice"})
	assert.ErrorIs(t, err, gateway.ErrConflict)

	n, err := gw.Profiles.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = gw.Profiles.GetByUsername(ctx, "Alice")
	assert.ErrorIs(t, err, gateway.ErrNotFound, "username lookup is case-sensitive")

	role := "observer"
	require.NoError(t, gw.Profiles.Update(ctx, "u1", model.ProfileUpdate{Role: &role}))
	require.NoError(t, gw.Profiles.Update(ctx, "u1", model.ProfileUpdate{Role: &role}), "unchanged update is not a miss")
	got, err := gw.Profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "observer", got.Role)

	assert.ErrorIs(t, gw.Profiles.Update(ctx, "missing", model.ProfileUpdate{Role: &role}), gateway.ErrNotFound)
	require.NoError(t, gw.Profiles.Delete(ctx, "u1"))
	assert.ErrorIs(t, gw.Profiles.Delete(ctx, "u1"), gateway.ErrNotFound)
}

func TestDeviceStore(t *testing.T) {
	ctx := context.Background()
	gw := New(openTestDB(t), Options{})

	tplID := "t1"
	d := &model.Device{Name: "core-sw", Status: model.DeviceStatusStock, TemplateID: &tplID, CreatedBy: "u1"}
	require.NoError(t, gw.Devices.Insert(ctx, d))
	require.NotEmpty(t, d.ID)
	require.NoError(t, gw.Devices.Insert(ctx, &model.Device{Name: "edge", Status: model.DeviceStatusRusak}))
	require.NoError(t, gw.Devices.Insert(ctx, &model.Device{Name: "spare", Status: model.DeviceStatusStock}))

	byStatus, err := gw.Devices.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"stock": 2, "rusak": 1}, byStatus)

	d.Name = "core-sw-01"
	d.Status = model.DeviceStatusDipakai
	d.TemplateID = nil
	require.NoError(t, gw.Devices.Update(ctx, d))
	got, err := gw.Devices.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "core-sw-01", got.Name)
	assert.Nil(t, got.TemplateID)
	assert.Equal(t, "u1", got.CreatedBy)

	list, err := gw.Devices.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	require.NoError(t, gw.Devices.Delete(ctx, d.ID))
	_, err = gw.Devices.Get(ctx, d.ID)
	assert.ErrorIs(t, err, gateway.ErrNotFound)
	n, err := gw.Devices.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestTemplateStorePersistsFalseFlags(t *testing.T) {
	ctx := context.Background()
	gw := New(openTestDB(t), Options{})

	tpl := &model.DeviceTemplate{Name: "Minimal", ShowDeviceName: true, RequireDeviceName: true, ShowStatus: true}
	require.NoError(t, gw.Templates.Insert(ctx, tpl))

	tpl.ShowStatus = false
	tpl.Description = "only names"
	require.NoError(t, gw.Templates.Update(ctx, tpl))

	got, err := gw.Templates.Get(ctx, tpl.ID)
	require.NoError(t, err)
	assert.False(t, got.ShowStatus)
	assert.True(t, got.RequireDeviceName)
	assert.Equal(t, "only names", got.Description)

	assert.ErrorIs(t, gw.Templates.Update(ctx, &model.DeviceTemplate{ID: "nope", Name: "x"}), gateway.ErrNotFound)
	require.NoError(t, gw.Templates.Delete(ctx, tpl.ID))
	list, err := gw.Templates.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBootstrapClaimSingleWinner(t *testing.T) {
	ctx := context.Background()
	gw := New(openTestDB(t), Options{})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := gw.Bootstrap.ClaimAdmin(ctx, uuid.New().String())
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestBootstrapReleaseOnlyByClaimer(t *testing.T) {
	ctx := context.Background()
	gw := New(openTestDB(t), Options{})

	ok, err := gw.Bootstrap.ClaimAdmin(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, gw.Bootstrap.ReleaseAdmin(ctx, "p2"))
	ok, err = gw.Bootstrap.ClaimAdmin(ctx, "p2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, gw.Bootstrap.ReleaseAdmin(ctx, "p1"))
	ok, err = gw.Bootstrap.ClaimAdmin(ctx, "p2")
	require.NoError(t, err)
	assert.True(t, ok)
}
