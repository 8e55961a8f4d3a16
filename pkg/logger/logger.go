package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu  sync.RWMutex
	log *logrus.Logger
	// rotator 当前日志使用的滚动文件，重新初始化时关闭
	rotator io.Closer
)

// Config 日志配置
type Config struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	Output     string `json:"output"`
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"`
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"`
	Compress   bool   `json:"compress"`
}

// New 按配置构建日志实例
func New(config Config) (*logrus.Logger, error) {
	l, _, err := build(config)
	return l, err
}

func build(config Config) (*logrus.Logger, io.Closer, error) {
	l := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if config.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:   "2006-01-02 15:04:05",
			DisableHTMLEscape: true,
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	var writers []io.Writer
	var closer io.Closer
	switch config.Output {
	case "", "console":
		writers = append(writers, os.Stdout)
	case "file", "both":
		if config.Output == "both" {
			writers = append(writers, os.Stdout)
		}
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}
		writers = append(writers, lj)
		closer = lj
	default:
		return nil, nil, fmt.Errorf("unsupported log output: %s", config.Output)
	}
	l.SetOutput(io.MultiWriter(writers...))
	return l, closer, nil
}

// Init 初始化全局日志，可在配置热更新时重复调用
func Init(config Config) error {
	l, closer, err := build(config)
	if err != nil {
		return err
	}
	mu.Lock()
	old := rotator
	log = l
	rotator = closer
	mu.Unlock()
	if old != nil {
		return old.Close()
	}
	return nil
}

// GetLogger 获取日志实例
func GetLogger() *logrus.Logger {
	mu.RLock()
	l := log
	mu.RUnlock()
	if l != nil {
		return l
	}
	mu.Lock()
	defer mu.Unlock()
	if log == nil {
		log = logrus.New()
	}
	return log
}

// With 将 key/value 成对参数转换为结构化字段
func With(kv ...interface{}) *logrus.Entry {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields[key] = kv[i+1]
	}
	if len(kv)%2 == 1 {
		fields["_extra"] = kv[len(kv)-1]
	}
	return GetLogger().WithFields(fields)
}

// Debug 调试日志
func Debug(msg string, kv ...interface{}) {
	With(kv...).Debug(msg)
}

// Info 信息日志
func Info(msg string, kv ...interface{}) {
	With(kv...).Info(msg)
}

// Warn 警告日志
func Warn(msg string, kv ...interface{}) {
	With(kv...).Warn(msg)
}

// Error 错误日志
func Error(msg string, kv ...interface{}) {
	With(kv...).Error(msg)
}

// Fatal 致命错误日志
func Fatal(msg string, kv ...interface{}) {
	With(kv...).Fatal(msg)
}
