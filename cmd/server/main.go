package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/netdevconsole/netdevconsole/api/handler"
	"github.com/netdevconsole/netdevconsole/api/router"
	"github.com/netdevconsole/netdevconsole/internal/config"
	"github.com/netdevconsole/netdevconsole/internal/database"
	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/gateway/local"
	"github.com/netdevconsole/netdevconsole/internal/gateway/supabase"
	"github.com/netdevconsole/netdevconsole/internal/service"
	"github.com/netdevconsole/netdevconsole/internal/session"
	"github.com/netdevconsole/netdevconsole/pkg/logger"
	"github.com/netdevconsole/netdevconsole/web"
)

func logConfig(c config.LogConfig) logger.Config {
	return logger.Config{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		FilePath:   c.FilePath,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}

// openGateway 按 backend.provider 构建数据网关，ping 用于健康检查
func openGateway(cfg *config.Config) (*gateway.Gateway, func() error, error) {
	switch cfg.Backend.Provider {
	case config.ProviderSupabase:
		gw, err := supabase.New(supabase.Config{
			URL:        cfg.Backend.URL,
			AnonKey:    cfg.Backend.AnonKey,
			ServiceKey: cfg.Backend.ServiceKey,
			Timeout:    cfg.Backend.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		if cfg.Backend.ServiceKey == "" {
			logger.Warn("backend.service_key not set, user administration is disabled")
		}
		ping := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := gw.Profiles.Count(ctx)
			return err
		}
		return gw, ping, nil
	default:
		if err := database.Init(cfg.Database); err != nil {
			return nil, nil, err
		}
		db := database.GetDB()
		gw := local.New(db, local.Options{SessionTTL: cfg.Auth.SessionTTL})
		return gw, func() error { return database.Health(db) }, nil
	}
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(logConfig(cfg.Log)); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Starting Network Device Console", "version", "1.0.0", "provider", cfg.Backend.Provider)

	gw, ping, err := openGateway(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize data gateway", "error", err)
	}
	defer func() {
		if gw.Close != nil {
			if err := gw.Close(); err != nil {
				logger.Warn("Failed to close data gateway", "error", err)
			}
		}
	}()

	tpl, err := web.Templates()
	if err != nil {
		logger.Fatal("Failed to parse page templates", "error", err)
	}

	// 服务层
	auth := session.NewAuth(gw, cfg.Auth.MinPasswordLen)
	devices := service.NewDeviceService(gw)
	templates := service.NewTemplateService(gw)
	users := service.NewUserService(gw, auth)
	dashboard := service.NewDashboardService(gw)
	export := service.NewExportService(gw, service.NewStorageWriter(cfg.Export))

	cookie := handler.CookieOptions{Secure: cfg.Server.CookieSecure, TTL: cfg.Auth.SessionTTL}

	// 设置路由
	r := router.SetupRouter(router.Deps{
		Mode:      cfg.Server.Mode,
		Templates: tpl,
		Static:    web.Static(),
		Resolver:  session.NewResolver(gw),
		Auth:      handler.NewAuthHandler(auth, cookie),
		Devices:   handler.NewDeviceHandler(devices, export),
		Tpl:       handler.NewTemplateHandler(templates),
		Users:     handler.NewUserHandler(users),
		Stats:     handler.NewStatsHandler(dashboard, ping),
		Pages: handler.NewPageHandler(handler.PageDeps{
			Auth:      auth,
			Devices:   devices,
			Templates: templates,
			Users:     users,
			Dashboard: dashboard,
			Cookie:    cookie,
		}),
	})

	// 创建HTTP服务器
	server := &http.Server{
		Addr:           cfg.GetServerAddr(),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// 启动服务器
	go func() {
		logger.Info("Server starting", "addr", server.Addr, "mode", cfg.Server.Mode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	go watchConfig(*configPath)

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")

	// 优雅关闭服务器
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	} else {
		logger.Info("Server shutdown complete")
	}
}

// watchConfig 配置文件热更新；仅日志配置即时生效，其余项需重启
func watchConfig(path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("Config watch init failed", "error", err)
		return
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		logger.Warn("Config watch add failed", "error", err)
		return
	}
	var debounce *time.Timer
	debounceInterval := 300 * time.Millisecond
	trigger := func() {
		newCfg, err := config.Load(path)
		if err != nil {
			logger.Warn("Config reload failed", "error", err)
			return
		}
		if err := logger.Init(logConfig(newCfg.Log)); err != nil {
			logger.Warn("Logger reload failed", "error", err)
			return
		}
		logger.Info("Config reloaded", "log_level", newCfg.Log.Level)
	}
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceInterval, trigger)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Config watch error", "error", err)
		}
	}
}
