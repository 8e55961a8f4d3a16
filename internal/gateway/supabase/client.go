// Package supabase 托管后端（GoTrue 身份服务 + PostgREST 数据表）的数据网关实现
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/pkg/logger"
)

// Config 托管后端连接参数
type Config struct {
	URL        string
	AnonKey    string
	ServiceKey string
	Timeout    time.Duration
}

// Client 托管后端 HTTP 客户端
type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	http       *http.Client
}

// NewClient 创建客户端，缺少地址或公开 Key 时返回错误
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("supabase url is required")
	}
	if strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, errors.New("supabase anon key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		http:       &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// New 创建完整网关
func New(cfg Config) (*gateway.Gateway, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &gateway.Gateway{
		Identity:  &Auth{c: c},
		Profiles:  &ProfileStore{c: c},
		Devices:   &DeviceStore{c: c},
		Templates: &TemplateStore{c: c},
		Bootstrap: &BootstrapStore{c: c},
	}, nil
}

// APIError 托管后端返回的错误
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote request failed with status %d", e.Status)
	}
	return e.Message
}

// Unwrap 唯一约束冲突映射为 gateway.ErrConflict
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusConflict || e.Code == "23505" {
		return gateway.ErrConflict
	}
	return nil
}

func decodeAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Code             interface{} `json:"code"`
		ErrorCode        string      `json:"error_code"`
		Message          string      `json:"message"`
		Msg              string      `json:"msg"`
		Error            string      `json:"error"`
		ErrorDescription string      `json:"error_description"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch v := payload.Code.(type) {
		case string:
			apiErr.Code = v
		}
		if apiErr.Code == "" {
			apiErr.Code = payload.ErrorCode
		}
		for _, m := range []string{payload.Message, payload.Msg, payload.ErrorDescription, payload.Error} {
			if m != "" {
				apiErr.Message = m
				break
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// request 单次请求描述，不做重试
type request struct {
	method  string
	path    string
	query   url.Values
	body    interface{}
	bearer  string
	apiKey  string
	headers map[string]string
}

func (c *Client) do(ctx context.Context, r request, out interface{}) (*http.Response, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, err
	}
	apiKey := r.apiKey
	if apiKey == "" {
		apiKey = c.anonKey
	}
	bearer := r.bearer
	if bearer == "" {
		bearer = apiKey
	}
	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn("remote request failed", "method", r.method, "path", r.path, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp, decodeAPIError(resp)
	}
	if out != nil && resp.StatusCode != http.StatusNoContent && r.method != http.MethodHead {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp, nil
}

// admin 以服务密钥发起管理请求
func (c *Client) admin(ctx context.Context, r request, out interface{}) (*http.Response, error) {
	if c.serviceKey == "" {
		return nil, errors.New("admin operation requires a service key")
	}
	r.apiKey = c.serviceKey
	r.bearer = c.serviceKey
	return c.do(ctx, r, out)
}
