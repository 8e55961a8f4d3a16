package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/netdevconsole/netdevconsole/internal/config"
	"github.com/netdevconsole/netdevconsole/pkg/logger"
)

// 存储后端
const (
	BackendLocal = "local"
	BackendMinio = "minio"
)

// StorageWriter 抽象存储写入器
type StorageWriter interface {
	Write(ctx context.Context, meta StorageMeta, data []byte, contentType string) (StoredObject, error)
}

// StorageMeta 写入元数据
type StorageMeta struct {
	// Kind 导出类别，作为目录名，例如 devices
	Kind         string
	DateYYYYMMDD string
	FileName     string
	Backend      string // local|minio
}

// StoredObject 存储的对象信息
type StoredObject struct {
	URI         string `json:"uri"`
	Size        int64  `json:"size"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type"`
	// Fallback MinIO 写入失败后改写到本地
	Fallback bool `json:"fallback,omitempty"`
}

// NewStorageWriter 根据配置创建写入器（委派到本地或 MinIO）
func NewStorageWriter(cfg config.ExportConfig) StorageWriter {
	dw := &DelegatingStorageWriter{cfg: cfg, local: &LocalStorageWriter{cfg: cfg}}
	dw.minio = initMinioWriter(cfg)
	return dw
}

// DelegatingStorageWriter 按后端路由写入
type DelegatingStorageWriter struct {
	cfg   config.ExportConfig
	local *LocalStorageWriter
	minio *MinioStorageWriter
}

func (w *DelegatingStorageWriter) Write(ctx context.Context, meta StorageMeta, data []byte, contentType string) (StoredObject, error) {
	backend := strings.ToLower(strings.TrimSpace(meta.Backend))
	if backend == "" {
		backend = strings.ToLower(strings.TrimSpace(w.cfg.StorageBackend))
	}
	if backend != BackendMinio {
		return w.local.Write(ctx, meta, data, contentType)
	}

	var err error
	if w.minio == nil {
		err = fmt.Errorf("minio client not initialized")
	} else {
		var obj StoredObject
		if obj, err = w.minio.Write(ctx, meta, data, contentType); err == nil {
			return obj, nil
		}
	}
	// MinIO 不可用：记录预警并回退到本地
	logger.Warn("MinIO write failed; falling back to local", "file", meta.FileName, "error", err)
	obj, lerr := w.local.Write(ctx, meta, data, contentType)
	if lerr != nil {
		return StoredObject{}, fmt.Errorf("minio write failed: %v; local fallback failed: %w", err, lerr)
	}
	obj.Fallback = true
	return obj, nil
}

func objectParts(prefix string, meta StorageMeta) []string {
	var parts []string
	if p := strings.TrimSpace(prefix); p != "" {
		parts = append(parts, p)
	}
	if k := strings.TrimSpace(meta.Kind); k != "" {
		parts = append(parts, slug(k))
	}
	datePart := strings.TrimSpace(meta.DateYYYYMMDD)
	if datePart == "" {
		datePart = time.Now().Format("20060102")
	}
	return append(parts, datePart)
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func orDefault(contentType string) string {
	if contentType != "" {
		return contentType
	}
	return "text/plain; charset=utf-8"
}

// LocalStorageWriter 本地文件写入
type LocalStorageWriter struct {
	cfg config.ExportConfig
}

func (w *LocalStorageWriter) Write(_ context.Context, meta StorageMeta, data []byte, contentType string) (StoredObject, error) {
	baseDir := strings.TrimSpace(w.cfg.Local.BaseDir)
	if baseDir == "" {
		baseDir = "./data"
	}

	// 层级：baseDir / prefix / kind / date / file
	dirPath := filepath.Join(append([]string{baseDir}, objectParts(w.cfg.Prefix, meta)...)...)
	if w.cfg.Local.MkdirIfMissing {
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return StoredObject{}, fmt.Errorf("failed to create dir: %w", err)
		}
	}

	fullPath := filepath.Join(dirPath, slug(meta.FileName))
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return StoredObject{}, fmt.Errorf("failed to write file: %w", err)
	}

	return StoredObject{
		URI:         "file://" + fullPath,
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: orDefault(contentType),
	}, nil
}

// MinioStorageWriter MinIO 对象存储写入
type MinioStorageWriter struct {
	cfg      config.ExportConfig
	client   *minio.Client
	endpoint string
}

// initMinioWriter 尝试初始化 MinIO 写入器，配置不完整时返回 nil
func initMinioWriter(cfg config.ExportConfig) *MinioStorageWriter {
	host := strings.TrimSpace(cfg.Minio.Host)
	port := cfg.Minio.Port
	if host == "" || port <= 0 {
		if strings.EqualFold(cfg.StorageBackend, BackendMinio) {
			logger.Warn("MinIO configuration incomplete; host/port missing")
		}
		return nil
	}
	endpoint := fmt.Sprintf("%s:%d", host, port)

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
		Secure:    cfg.Minio.Secure,
		Transport: transport,
	})
	if err != nil {
		logger.Error("MinIO client initialization failed", "error", err)
		return nil
	}
	return &MinioStorageWriter{cfg: cfg, client: client, endpoint: endpoint}
}

// Write 将内容写入 MinIO，单次尝试不重试
func (w *MinioStorageWriter) Write(ctx context.Context, meta StorageMeta, data []byte, contentType string) (StoredObject, error) {
	bucket := strings.TrimSpace(w.cfg.Minio.Bucket)
	if bucket == "" {
		return StoredObject{}, fmt.Errorf("minio bucket not configured")
	}

	if err := w.ensureBucket(ctx, bucket); err != nil {
		return StoredObject{}, fmt.Errorf("minio ensure bucket failed on %s: %w", w.endpoint, err)
	}

	objectName := path.Join(strings.Join(objectParts(w.cfg.Prefix, meta), "/"), slug(meta.FileName))
	ct := orDefault(contentType)
	_, err := w.client.PutObject(ctx, bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: ct})
	if err != nil {
		return StoredObject{}, fmt.Errorf("minio put object failed: %w", err)
	}

	return StoredObject{
		URI:         "minio://" + path.Join(bucket, objectName),
		Size:        int64(len(data)),
		Checksum:    checksum(data),
		ContentType: ct,
	}, nil
}

// ensureBucket 校验并创建 bucket
func (w *MinioStorageWriter) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := w.client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return w.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

var slugRe = regexp.MustCompile(`[^a-z0-9._-]+`)

func slug(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = slugRe.ReplaceAllString(s, "")
	if s == "" {
		s = "unknown"
	}
	return s
}
