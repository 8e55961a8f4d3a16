package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/netdevconsole/netdevconsole/api/handler"
	"github.com/netdevconsole/netdevconsole/internal/config"
	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/gateway/gatewaytest"
	"github.com/netdevconsole/netdevconsole/internal/guard"
	"github.com/netdevconsole/netdevconsole/internal/service"
	"github.com/netdevconsole/netdevconsole/internal/session"
	"github.com/netdevconsole/netdevconsole/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	gw     *gateway.Gateway
	auth   *session.Auth
	engine *gin.Engine
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gw := gatewaytest.NewLocal(t)
	tpl, err := web.Templates()
	require.NoError(t, err)

	auth := session.NewAuth(gw, 6)
	devices := service.NewDeviceService(gw)
	templates := service.NewTemplateService(gw)
	users := service.NewUserService(gw, auth)
	dashboard := service.NewDashboardService(gw)
	export := service.NewExportService(gw, service.NewStorageWriter(config.ExportConfig{
		StorageBackend: service.BackendLocal,
		Prefix:         "exports",
		Local:          config.LocalExportConfig{BaseDir: t.TempDir(), MkdirIfMissing: true},
	}))
	cookie := handler.CookieOptions{TTL: time.Hour}

	engine := SetupRouter(Deps{
		Mode:      gin.TestMode,
		Templates: tpl,
		Static:    web.Static(),
		Resolver:  session.NewResolver(gw),
		Auth:      handler.NewAuthHandler(auth, cookie),
		Devices:   handler.NewDeviceHandler(devices, export),
		Tpl:       handler.NewTemplateHandler(templates),
		Users:     handler.NewUserHandler(users),
		Stats:     handler.NewStatsHandler(dashboard, nil),
		Pages: handler.NewPageHandler(handler.PageDeps{
			Auth:      auth,
			Devices:   devices,
			Templates: templates,
			Users:     users,
			Dashboard: dashboard,
			Cookie:    cookie,
		}),
	})
	return &testApp{gw: gw, auth: auth, engine: engine}
}

// signUp 注册并登录，返回访问令牌
func (a *testApp) signUp(t *testing.T, username string) string {
	t.Helper()
	ctx := context.Background()
	email := username + "@example.com"
	_, err := a.auth.Register(ctx, session.RegisterInput{Username: username, Email: email, Password: "secret123"})
	require.NoError(t, err)
	sess, err := a.auth.Login(ctx, email, "secret123")
	require.NoError(t, err)
	return sess.AccessToken
}

func (a *testApp) do(method, target, token string, body string, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: guard.CookieName, Value: token})
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testApp) form(target, token string, values url.Values) *httptest.ResponseRecorder {
	return a.do(http.MethodPost, target, token, values.Encode(), "application/x-www-form-urlencoded")
}

func (a *testApp) sendJSON(method, target, token, body string) *httptest.ResponseRecorder {
	return a.do(method, target, token, body, "application/json")
}

func TestAnonymousPagesRedirectToLogin(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/home", "/devices", "/templates", "/users"} {
		w := app.do(http.MethodGet, path, "", "", "")
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, guard.LoginPath, w.Header().Get("Location"), path)
	}

	w := app.do(http.MethodGet, "/", "", "", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, guard.LoginPath, w.Header().Get("Location"))

	w = app.do(http.MethodGet, "/about", "", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodGet, "/login", "", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/login"`)
}

func TestObserverIsSentHomeFromAdminPages(t *testing.T) {
	app := newTestApp(t)
	admin := app.signUp(t, "alice")
	observer := app.signUp(t, "bob")

	for _, path := range []string{"/templates", "/users"} {
		w := app.do(http.MethodGet, path, observer, "", "")
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, guard.HomePath, w.Header().Get("Location"), path)

		w = app.do(http.MethodGet, path, admin, "", "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := app.do(http.MethodGet, "/devices", observer, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `href="/templates"`)
}

func TestAPIGuards(t *testing.T) {
	app := newTestApp(t)
	admin := app.signUp(t, "alice")
	observer := app.signUp(t, "bob")

	w := app.do(http.MethodGet, "/api/v1/devices", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHENTICATED")

	w = app.do(http.MethodGet, "/api/v1/templates", observer, "", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodGet, "/api/v1/templates", admin, "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	// Bearer 头同样有效
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+observer)
	rec := httptest.NewRecorder()
	app.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data session.Identity `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bob", resp.Data.Username)
	assert.Equal(t, session.RoleObserver, resp.Data.Role)
}

func TestRoleChangeTakesEffectOnNextRequest(t *testing.T) {
	app := newTestApp(t)
	admin := app.signUp(t, "alice")
	observer := app.signUp(t, "bob")

	w := app.do(http.MethodGet, "/templates", observer, "", "")
	require.Equal(t, http.StatusFound, w.Code)

	profile, err := app.gw.Profiles.GetByUsername(context.Background(), "bob")
	require.NoError(t, err)
	w = app.sendJSON(http.MethodPut, "/api/v1/users/"+profile.ID+"/role", admin, `{"role":"admin"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(http.MethodGet, "/templates", observer, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterAndLoginThroughAPI(t *testing.T) {
	app := newTestApp(t)

	w := app.sendJSON(http.MethodPost, "/api/v1/auth/register", "", `{"username":"alice","email":"alice@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"role":"admin"`)

	w = app.sendJSON(http.MethodPost, "/api/v1/auth/register", "", `{"username":"alice","email":"other@example.com","password":"secret123"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.sendJSON(http.MethodPost, "/api/v1/auth/login", "", `{"email":"alice@example.com","password":"wrong-pass"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.sendJSON(http.MethodPost, "/api/v1/auth/login", "", `{"email":"alice@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var token string
	for _, c := range w.Result().Cookies() {
		if c.Name == guard.CookieName {
			token = c.Value
			assert.True(t, c.HttpOnly)
		}
	}
	require.NotEmpty(t, token)

	w = app.do(http.MethodGet, "/home", token, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome, alice")
}

func TestDeviceAPIValidation(t *testing.T) {
	app := newTestApp(t)
	token := app.signUp(t, "alice")

	w := app.sendJSON(http.MethodPost, "/api/v1/devices", token,
		`{"name":"","ip_address":"10.0.0.1","mac_address":"AA:BB:CC:DD:EE:FF","device_type":"Router","status":"stock"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp handler.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_FAILED", resp.Code)
	assert.Equal(t, []string{"Device Name"}, resp.Missing)

	n, err := app.gw.Devices.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	w = app.sendJSON(http.MethodPost, "/api/v1/devices", token,
		`{"name":"core-1","ip_address":"10.0.0.1","mac_address":"AA:BB:CC:DD:EE:FF","device_type":"Router","status":"stock"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	list, err := app.gw.Devices.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	w = app.do(http.MethodDelete, "/api/v1/devices/"+list[0].ID, token, "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = app.do(http.MethodDelete, "/api/v1/devices/"+list[0].ID+"?confirm=true", token, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTemplateDrivenDeviceFormPages(t *testing.T) {
	app := newTestApp(t)
	token := app.signUp(t, "alice")
	ctx := context.Background()

	w := app.form("/templates", token, url.Values{
		"name":                {"Minimal"},
		"show_device_name":    {"on"},
		"require_device_name": {"on"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())

	templates, err := app.gw.Templates.List(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	tplID := templates[0].ID

	w = app.do(http.MethodGet, "/devices?template="+tplID, token, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `name="device_name"`)
	assert.NotContains(t, body, `name="ip_address"`)
	assert.NotContains(t, body, `name="status"`)

	// 缺少必填字段时保留在页面并显示提示
	w = app.form("/devices", token, url.Values{"template_id": {tplID}, "device_name": {"  "}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `role="alert"`)
	assert.Contains(t, w.Body.String(), "Device Name")

	w = app.form("/devices", token, url.Values{"template_id": {tplID}, "device_name": {"Switch1"}})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/devices?template="+tplID, w.Header().Get("Location"))

	devices, err := app.gw.Devices.List(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.NotNil(t, devices[0].TemplateID)
	assert.Equal(t, tplID, *devices[0].TemplateID)

	// 未确认的删除只跳转到确认卡片
	w = app.form("/devices/"+devices[0].ID+"/delete", token, url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)
	w = app.do(http.MethodGet, w.Header().Get("Location"), token, "", "")
	assert.Contains(t, w.Body.String(), `name="confirm" value="yes"`)

	w = app.form("/devices/"+devices[0].ID+"/delete", token, url.Values{"confirm": {"yes"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	n, err := app.gw.Devices.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEditDeviceWhoseTemplateWasDeleted(t *testing.T) {
	app := newTestApp(t)
	token := app.signUp(t, "alice")
	ctx := context.Background()

	w := app.form("/templates", token, url.Values{
		"name":                {"Minimal"},
		"show_device_name":    {"on"},
		"require_device_name": {"on"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	templates, err := app.gw.Templates.List(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	tplID := templates[0].ID

	w = app.form("/devices", token, url.Values{"template_id": {tplID}, "device_name": {"Switch1"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	devices, err := app.gw.Devices.List(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	deviceID := devices[0].ID

	w = app.form("/templates/"+tplID+"/delete", token, url.Values{"confirm": {"yes"}})
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = app.do(http.MethodGet, "/devices?edit="+deviceID, token, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "no longer exists")
	assert.Contains(t, body, `name="ip_address"`)
	assert.Contains(t, body, `value="Switch1"`)

	w = app.form("/devices", token, url.Values{
		"id":          {deviceID},
		"template_id": {tplID},
		"device_name": {"Switch2"},
		"ip_address":  {"10.0.0.2"},
		"mac_address": {"AA:BB:CC:DD:EE:02"},
		"device_type": {"switch"},
		"status":      {"stock"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())

	got, err := app.gw.Devices.Get(ctx, deviceID)
	require.NoError(t, err)
	assert.Equal(t, "Switch2", got.Name)
	assert.Nil(t, got.TemplateID)

	w = app.do(http.MethodGet, "/api/v1/devices/form?template="+tplID, token, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"notice"`)
}

func TestLastAdminCannotDeleteThemselves(t *testing.T) {
	app := newTestApp(t)
	token := app.signUp(t, "alice")
	profile, err := app.gw.Profiles.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)

	w := app.do(http.MethodDelete, "/api/v1/users/"+profile.ID+"?confirm=true", token, "", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.sendJSON(http.MethodPut, "/api/v1/users/"+profile.ID+"/role", token, `{"role":"observer"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.do(http.MethodGet, "/templates", token, "", "")
	assert.Equal(t, http.StatusOK, w.Code, "still admin")
}

func TestLoginPageShowsErrorBanner(t *testing.T) {
	app := newTestApp(t)
	app.signUp(t, "alice")

	w := app.form("/login", "", url.Values{"email": {"alice@example.com"}, "password": {"nope-nope"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `role="alert"`)
	assert.Contains(t, w.Body.String(), `value="alice@example.com"`)

	w = app.form("/login", "", url.Values{"email": {"alice@example.com"}, "password": {"secret123"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, guard.HomePath, w.Header().Get("Location"))
}

func TestLogoutInvalidatesSession(t *testing.T) {
	app := newTestApp(t)
	token := app.signUp(t, "alice")

	w := app.form("/logout", token, url.Values{})
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = app.do(http.MethodGet, "/home", token, "", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, guard.LoginPath, w.Header().Get("Location"))
}

func TestHealthAndNoRoute(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodGet, "/api/v1/health", "", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = app.do(http.MethodGet, "/api/v1/nope", "", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")

	w = app.do(http.MethodGet, "/static/console.css", "", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminExportsInventory(t *testing.T) {
	app := newTestApp(t)
	admin := app.signUp(t, "alice")
	observer := app.signUp(t, "bob")

	w := app.do(http.MethodPost, "/api/v1/devices/export", observer, "", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodPost, "/api/v1/devices/export?backend=local", admin, "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data service.StoredObject `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Data.URI, "devices")
	assert.False(t, resp.Data.Fallback)
}
