package router

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/netdevconsole/netdevconsole/api/handler"
	"github.com/netdevconsole/netdevconsole/internal/guard"
	"github.com/netdevconsole/netdevconsole/internal/session"
	"github.com/netdevconsole/netdevconsole/pkg/logger"
)

// Deps 路由依赖
type Deps struct {
	Mode      string
	Templates *template.Template
	Static    http.FileSystem
	Resolver  guard.Resolver

	Auth    *handler.AuthHandler
	Devices *handler.DeviceHandler
	Tpl     *handler.TemplateHandler
	Users   *handler.UserHandler
	Stats   *handler.StatsHandler
	Pages   *handler.PageHandler
}

// SetupRouter 设置路由
func SetupRouter(d Deps) *gin.Engine {
	// 设置Gin模式
	if d.Mode != "" {
		gin.SetMode(d.Mode)
	}

	r := gin.New()

	// 添加中间件
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())
	// 每个请求都重新解析会话与角色
	r.Use(guard.Authenticate(d.Resolver))

	if d.Templates != nil {
		r.SetHTMLTemplate(d.Templates)
	}
	if d.Static != nil {
		r.StaticFS("/static", d.Static)
	}

	setupPages(r, d.Pages)
	setupAPI(r.Group("/api/v1"), d)

	// 404处理
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "NOT_FOUND",
				"message": "接口不存在",
				"path":    c.Request.URL.Path,
			})
			return
		}
		c.String(http.StatusNotFound, "page not found")
	})

	return r
}

func setupPages(r *gin.Engine, p *handler.PageHandler) {
	if p == nil {
		return
	}
	r.GET("/", p.Root)
	r.GET(guard.LoginPath, p.LoginPage)
	r.POST(guard.LoginPath, p.Login)
	r.GET("/register", p.RegisterPage)
	r.POST("/register", p.Register)
	r.POST("/logout", p.Logout)
	r.GET("/about", p.About)

	member := r.Group("", guard.RequirePage(""))
	{
		member.GET(guard.HomePath, p.Home)
		member.GET("/devices", p.DevicesPage)
		member.POST("/devices", p.SaveDevice)
		member.POST("/devices/:id/delete", p.DeleteDevice)
	}

	admin := r.Group("", guard.RequirePage(session.RoleAdmin))
	{
		admin.GET("/templates", p.TemplatesPage)
		admin.POST("/templates", p.SaveTemplate)
		admin.POST("/templates/:id/delete", p.DeleteTemplate)
		admin.POST("/templates/:id/duplicate", p.DuplicateTemplate)

		admin.GET("/users", p.UsersPage)
		admin.POST("/users", p.CreateUser)
		admin.GET("/users/:id", p.UserDetailPage)
		admin.POST("/users/:id", p.UpdateUser)
		admin.POST("/users/:id/role", p.UpdateUserRole)
		admin.POST("/users/:id/delete", p.DeleteUser)
	}
}

func setupAPI(v1 *gin.RouterGroup, d Deps) {
	// 健康检查
	if d.Stats != nil {
		v1.GET("/health", d.Stats.Health)
	}

	if d.Auth != nil {
		auth := v1.Group("/auth")
		{
			auth.POST("/register", d.Auth.Register)
			auth.POST("/login", d.Auth.Login)
			auth.POST("/logout", d.Auth.Logout)
			auth.GET("/me", guard.RequireAPI(""), d.Auth.Me)
		}
	}

	member := v1.Group("", guard.RequireAPI(""))
	admin := v1.Group("", guard.RequireAPI(session.RoleAdmin))

	if d.Stats != nil {
		member.GET("/stats", d.Stats.Stats)
	}

	// 设备管理路由
	if d.Devices != nil {
		devices := member.Group("/devices")
		{
			devices.GET("", d.Devices.ListDevices)
			devices.GET("/form", d.Devices.FormPlan)
			devices.POST("", d.Devices.CreateDevice)
			devices.GET("/:id", d.Devices.GetDevice)
			devices.PUT("/:id", d.Devices.UpdateDevice)
			devices.DELETE("/:id", d.Devices.DeleteDevice)
		}
		admin.POST("/devices/export", d.Devices.ExportDevices)
	}

	// 模板路由（仅管理员）
	if d.Tpl != nil {
		templates := admin.Group("/templates")
		{
			templates.GET("", d.Tpl.ListTemplates)
			templates.POST("", d.Tpl.CreateTemplate)
			templates.GET("/:id", d.Tpl.GetTemplate)
			templates.PUT("/:id", d.Tpl.UpdateTemplate)
			templates.DELETE("/:id", d.Tpl.DeleteTemplate)
			templates.POST("/:id/duplicate", d.Tpl.DuplicateTemplate)
		}
	}

	// 用户路由（仅管理员）
	if d.Users != nil {
		users := admin.Group("/users")
		{
			users.GET("", d.Users.ListUsers)
			users.POST("", d.Users.CreateUser)
			users.GET("/:id", d.Users.GetUser)
			users.PUT("/:id", d.Users.UpdateUser)
			users.PUT("/:id/role", d.Users.UpdateRole)
			users.DELETE("/:id", d.Users.DeleteUser)
		}
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestIDMiddleware 请求ID中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// LoggingMiddleware 日志中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		requestID := c.GetString("request_id")
		statusCode := c.Writer.Status()
		userID := ""
		if id := session.FromContext(c); id != nil {
			userID = id.ID
		}

		fields := []interface{}{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", statusCode,
			"duration", duration,
			"client_ip", c.ClientIP(),
			"user_id", userID,
		}
		switch {
		case statusCode >= 500:
			logger.Error("HTTP Error", fields...)
		case statusCode >= 400:
			logger.Warn("HTTP Request", fields...)
		default:
			logger.Info("HTTP Request", fields...)
		}
	}
}
