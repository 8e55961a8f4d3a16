package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/netdevconsole/netdevconsole/internal/devform"
	"github.com/netdevconsole/netdevconsole/internal/guard"
	"github.com/netdevconsole/netdevconsole/internal/service"
	"github.com/netdevconsole/netdevconsole/internal/session"
	"github.com/netdevconsole/netdevconsole/pkg/logger"
)

// PageDeps 页面处理器依赖
type PageDeps struct {
	Auth      *session.Auth
	Devices   *service.DeviceService
	Templates *service.TemplateService
	Users     *service.UserService
	Dashboard *service.DashboardService
	Cookie    CookieOptions
}

// PageHandler 服务端渲染的控制台页面
type PageHandler struct {
	PageDeps
}

// NewPageHandler 创建页面处理器
func NewPageHandler(deps PageDeps) *PageHandler {
	return &PageHandler{PageDeps: deps}
}

func (h *PageHandler) render(c *gin.Context, status int, page, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Title"] = title
	data["Active"] = page
	data["User"] = session.FromContext(c)
	c.HTML(status, page+".html", data)
}

// renderError 页面内红色提示条，显示原始错误信息
func (h *PageHandler) renderError(c *gin.Context, page, title string, data gin.H, err error) {
	if data == nil {
		data = gin.H{}
	}
	status, _ := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error("page action failed", "request_id", c.GetString("request_id"), "page", page, "error", err)
	}
	data["Error"] = err.Error()
	h.render(c, status, page, title, data)
}

func redirect(c *gin.Context, path string) {
	c.Redirect(http.StatusSeeOther, path)
}

// Root 根路径跳转登录页
func (h *PageHandler) Root(c *gin.Context) {
	c.Redirect(http.StatusFound, guard.LoginPath)
}

// LoginPage 登录页，已登录时直接进入首页
func (h *PageHandler) LoginPage(c *gin.Context) {
	if session.FromContext(c) != nil {
		c.Redirect(http.StatusFound, guard.HomePath)
		return
	}
	data := gin.H{}
	if c.Query("registered") == "1" {
		data["Notice"] = "Registration successful, please sign in."
	}
	h.render(c, http.StatusOK, "login", "Login", data)
}

// Login 登录表单提交
func (h *PageHandler) Login(c *gin.Context) {
	email := c.PostForm("email")
	sess, err := h.Auth.Login(c.Request.Context(), email, c.PostForm("password"))
	if err != nil {
		logger.Warn("login failed", "email", email, "error", err)
		h.renderError(c, "login", "Login", gin.H{"Email": email}, err)
		return
	}
	setSessionCookie(c, h.Cookie, sess.AccessToken, sess.ExpiresAt)
	redirect(c, guard.HomePath)
}

// RegisterPage 注册页
func (h *PageHandler) RegisterPage(c *gin.Context) {
	h.render(c, http.StatusOK, "register", "Register", nil)
}

// Register 注册表单提交，成功后回到登录页
func (h *PageHandler) Register(c *gin.Context) {
	in := session.RegisterInput{
		Username: c.PostForm("username"),
		Email:    c.PostForm("email"),
		Password: c.PostForm("password"),
	}
	if _, err := h.Auth.Register(c.Request.Context(), in); err != nil {
		h.renderError(c, "register", "Register", gin.H{"Username": in.Username, "Email": in.Email}, err)
		return
	}
	redirect(c, guard.LoginPath+"?registered=1")
}

// Logout 注销并清除 Cookie
func (h *PageHandler) Logout(c *gin.Context) {
	if err := h.Auth.Logout(c.Request.Context(), guard.AccessToken(c)); err != nil {
		logger.Warn("logout failed", "error", err)
	}
	clearSessionCookie(c, h.Cookie)
	redirect(c, guard.LoginPath)
}

// Home 首页统计
func (h *PageHandler) Home(c *gin.Context) {
	st, err := h.Dashboard.Stats(c.Request.Context())
	if err != nil {
		h.renderError(c, "home", "Home", gin.H{}, err)
		return
	}
	h.render(c, http.StatusOK, "home", "Home", gin.H{"Stats": st})
}

// About 关于页
func (h *PageHandler) About(c *gin.Context) {
	h.render(c, http.StatusOK, "about", "About", nil)
}

// ---- 设备 ----

func candidateFromForm(c *gin.Context) devform.Candidate {
	var cand devform.Candidate
	for _, f := range devform.Fields() {
		cand.Set(f, c.PostForm(f.Key()))
	}
	return cand
}

func candidateValues(cand devform.Candidate) map[string]string {
	out := map[string]string{}
	for _, f := range devform.Fields() {
		out[f.Key()] = cand.Value(f)
	}
	return out
}

// devicesView 组装设备页数据：列表、模板选择器、当前模板的表单字段
func (h *PageHandler) devicesView(ctx context.Context, query, templateID string, values devform.Candidate) (gin.H, error) {
	data := gin.H{
		"Query":      query,
		"TemplateID": templateID,
		"Values":     candidateValues(values),
	}
	devices, err := h.Devices.List(ctx, query)
	if err != nil {
		return data, err
	}
	data["Devices"] = devices
	templates, err := h.Templates.List(ctx)
	if err != nil {
		return data, err
	}
	data["Templates"] = templates
	plan, err := h.Devices.Plan(ctx, templateID)
	if err != nil {
		return data, err
	}
	data["Plan"] = plan
	if plan.Notice != "" {
		data["Notice"] = plan.Notice
		data["TemplateID"] = plan.TemplateID
	}
	return data, nil
}

// DevicesPage 设备页；?template= 切换模板并重置表单，?edit= 编辑，?delete= 删除确认
func (h *PageHandler) DevicesPage(c *gin.Context) {
	ctx := c.Request.Context()
	templateID := c.Query("template")
	var values devform.Candidate
	editing := c.Query("edit")
	if editing != "" {
		d, err := h.Devices.Get(ctx, editing)
		if err != nil {
			h.renderError(c, "devices", "Devices", gin.H{}, err)
			return
		}
		values = service.CandidateFromDevice(*d)
		if templateID == "" && d.TemplateID != nil {
			templateID = *d.TemplateID
		}
	}

	data, err := h.devicesView(ctx, c.Query("q"), templateID, values)
	data["Editing"] = editing
	if err != nil {
		h.renderError(c, "devices", "Devices", data, err)
		return
	}
	if id := c.Query("delete"); id != "" {
		if d, err := h.Devices.Get(ctx, id); err == nil {
			data["ConfirmDelete"] = d
		}
	}
	h.render(c, http.StatusOK, "devices", "Devices", data)
}

// SaveDevice 新增或更新设备；校验失败时保留输入并显示提示
func (h *PageHandler) SaveDevice(c *gin.Context) {
	ctx := c.Request.Context()
	templateID := c.PostForm("template_id")
	id := c.PostForm("id")
	cand := candidateFromForm(c)

	var err error
	if id == "" {
		_, err = h.Devices.Create(ctx, actorID(c), templateID, cand)
	} else {
		_, err = h.Devices.Update(ctx, id, templateID, cand)
	}
	if err == nil {
		redirect(c, "/devices?template="+url.QueryEscape(templateID))
		return
	}

	data, verr := h.devicesView(ctx, "", templateID, cand)
	if verr != nil {
		logger.Warn("failed to reload devices page", "error", verr)
	}
	data["Editing"] = id
	if tpl, _, terr := h.Devices.FormTemplate(ctx, templateID); terr == nil {
		data["Hints"] = devform.FormatHints(tpl, cand)
	}
	h.renderError(c, "devices", "Devices", data, err)
}

// DeleteDevice 删除设备，需确认
func (h *PageHandler) DeleteDevice(c *gin.Context) {
	id := c.Param("id")
	if c.PostForm("confirm") != "yes" {
		redirect(c, "/devices?delete="+url.QueryEscape(id))
		return
	}
	if err := h.Devices.Delete(c.Request.Context(), id); err != nil {
		data, _ := h.devicesView(c.Request.Context(), "", "", devform.Candidate{})
		h.renderError(c, "devices", "Devices", data, err)
		return
	}
	redirect(c, "/devices")
}

// ---- 模板 ----

type templateRow struct {
	Key      string
	Label    string
	Visible  bool
	Required bool
}

func templateRows(t devform.Template) []templateRow {
	rows := make([]templateRow, 0, len(devform.Fields()))
	for _, f := range devform.Fields() {
		r := t.Rule(f)
		rows = append(rows, templateRow{Key: f.Key(), Label: f.Label(), Visible: r.Visible(), Required: r.Required()})
	}
	return rows
}

// templateFromForm 复选框 show_<key>/require_<key>；未显示的字段不会被设为必填
func templateFromForm(c *gin.Context) devform.Template {
	flags := map[string]bool{}
	for _, f := range devform.Fields() {
		flags["show_"+f.Key()] = c.PostForm("show_"+f.Key()) != ""
		flags["require_"+f.Key()] = c.PostForm("require_"+f.Key()) != ""
	}
	return devform.FromFlags(c.PostForm("id"), c.PostForm("name"), c.PostForm("description"), flags)
}

func (h *PageHandler) templatesView(ctx context.Context, form devform.Template) (gin.H, error) {
	data := gin.H{"Form": form, "Rows": templateRows(form)}
	list, err := h.Templates.List(ctx)
	data["Templates"] = list
	return data, err
}

// TemplatesPage 模板页；?edit= 编辑，?delete= 删除确认
func (h *PageHandler) TemplatesPage(c *gin.Context) {
	ctx := c.Request.Context()
	form := devform.NewTemplate("", "")
	if id := c.Query("edit"); id != "" {
		m, err := h.Templates.Get(ctx, id)
		if err != nil {
			h.renderError(c, "templates", "Templates", gin.H{"Form": form, "Rows": templateRows(form)}, err)
			return
		}
		form = service.TemplateFromModel(*m)
	}
	data, err := h.templatesView(ctx, form)
	if err != nil {
		h.renderError(c, "templates", "Templates", data, err)
		return
	}
	if id := c.Query("delete"); id != "" {
		if m, err := h.Templates.Get(ctx, id); err == nil {
			data["ConfirmDelete"] = m
		}
	}
	h.render(c, http.StatusOK, "templates", "Templates", data)
}

// SaveTemplate 新建或更新模板
func (h *PageHandler) SaveTemplate(c *gin.Context) {
	ctx := c.Request.Context()
	form := templateFromForm(c)
	var err error
	if form.ID == "" {
		_, err = h.Templates.Create(ctx, actorID(c), form)
	} else {
		_, err = h.Templates.Update(ctx, form.ID, form)
	}
	if err == nil {
		redirect(c, "/templates")
		return
	}
	data, _ := h.templatesView(ctx, form)
	h.renderError(c, "templates", "Templates", data, err)
}

// DeleteTemplate 删除模板，需确认
func (h *PageHandler) DeleteTemplate(c *gin.Context) {
	id := c.Param("id")
	if c.PostForm("confirm") != "yes" {
		redirect(c, "/templates?delete="+url.QueryEscape(id))
		return
	}
	if err := h.Templates.Delete(c.Request.Context(), id); err != nil {
		data, _ := h.templatesView(c.Request.Context(), devform.NewTemplate("", ""))
		h.renderError(c, "templates", "Templates", data, err)
		return
	}
	redirect(c, "/templates")
}

// DuplicateTemplate 复制模板
func (h *PageHandler) DuplicateTemplate(c *gin.Context) {
	if _, err := h.Templates.Duplicate(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		data, _ := h.templatesView(c.Request.Context(), devform.NewTemplate("", ""))
		h.renderError(c, "templates", "Templates", data, err)
		return
	}
	redirect(c, "/templates")
}

// ---- 用户 ----

func (h *PageHandler) usersView(ctx context.Context, query string) (gin.H, error) {
	list, err := h.Users.List(ctx, query)
	return gin.H{"Users": list, "Query": query, "Roles": []session.Role{session.RoleObserver, session.RoleAdmin}}, err
}

// UsersPage 用户管理页
func (h *PageHandler) UsersPage(c *gin.Context) {
	data, err := h.usersView(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.renderError(c, "users", "Users", data, err)
		return
	}
	if id := c.Query("delete"); id != "" {
		if u, err := h.Users.Get(c.Request.Context(), id); err == nil {
			data["ConfirmDelete"] = u
		}
	}
	h.render(c, http.StatusOK, "users", "Users", data)
}

// CreateUser 管理员创建用户
func (h *PageHandler) CreateUser(c *gin.Context) {
	in := session.CreateUserInput{
		Username: c.PostForm("username"),
		Email:    c.PostForm("email"),
		Password: c.PostForm("password"),
		Role:     c.PostForm("role"),
	}
	if _, err := h.Users.Create(c.Request.Context(), in); err != nil {
		data, _ := h.usersView(c.Request.Context(), "")
		data["NewUser"] = in
		h.renderError(c, "users", "Users", data, err)
		return
	}
	redirect(c, "/users")
}

// UpdateUserRole 修改角色
func (h *PageHandler) UpdateUserRole(c *gin.Context) {
	if err := h.Users.UpdateRole(c.Request.Context(), c.Param("id"), c.PostForm("role")); err != nil {
		data, _ := h.usersView(c.Request.Context(), "")
		h.renderError(c, "users", "Users", data, err)
		return
	}
	redirect(c, "/users")
}

// DeleteUser 删除用户，需确认
func (h *PageHandler) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if c.PostForm("confirm") != "yes" {
		redirect(c, "/users?delete="+url.QueryEscape(id))
		return
	}
	if err := h.Users.Delete(c.Request.Context(), id); err != nil {
		data, _ := h.usersView(c.Request.Context(), "")
		h.renderError(c, "users", "Users", data, err)
		return
	}
	redirect(c, "/users")
}

// UserDetailPage 用户详情
func (h *PageHandler) UserDetailPage(c *gin.Context) {
	u, err := h.Users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, "user_detail", "User", gin.H{}, err)
		return
	}
	h.render(c, http.StatusOK, "user_detail", "User", gin.H{"Detail": u})
}

// UpdateUser 修改用户名
func (h *PageHandler) UpdateUser(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.Users.UpdateUsername(ctx, id, c.PostForm("username")); err != nil {
		data := gin.H{}
		if u, gerr := h.Users.Get(ctx, id); gerr == nil {
			data["Detail"] = u
		}
		h.renderError(c, "user_detail", "User", data, err)
		return
	}
	redirect(c, "/users/"+url.PathEscape(id))
}
