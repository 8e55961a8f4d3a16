package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/model"
)

const (
	objectAccept   = "application/vnd.pgrst.object+json"
	returnRows     = "return=representation"
	countExact     = "count=exact"
	ignoreConflict = "resolution=ignore-duplicates,return=representation"
)

func itoa(n int) string { return strconv.Itoa(n) }

func eq(v string) string { return "eq." + v }

// table PostgREST 单表访问，按调用方令牌（上下文）执行行级权限
type table struct {
	c    *Client
	name string
}

func (t table) path() string { return "/rest/v1/" + t.name }

func (t table) list(ctx context.Context, q url.Values, out interface{}) error {
	if q == nil {
		q = url.Values{}
	}
	if q.Get("select") == "" {
		q.Set("select", "*")
	}
	_, err := t.c.do(ctx, request{method: http.MethodGet, path: t.path(), query: q, bearer: gateway.AccessToken(ctx)}, out)
	return err
}

// single 返回恰好一行，0 行时 PostgREST 响应 406
func (t table) single(ctx context.Context, q url.Values, out interface{}) error {
	q.Set("select", "*")
	_, err := t.c.do(ctx, request{
		method:  http.MethodGet,
		path:    t.path(),
		query:   q,
		bearer:  gateway.AccessToken(ctx),
		headers: map[string]string{"Accept": objectAccept},
	}, out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotAcceptable {
		return gateway.ErrNotFound
	}
	return err
}

func (t table) count(ctx context.Context, q url.Values) (int64, error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("select", "id")
	resp, err := t.c.do(ctx, request{
		method:  http.MethodHead,
		path:    t.path(),
		query:   q,
		bearer:  gateway.AccessToken(ctx),
		headers: map[string]string{"Prefer": countExact},
	}, nil)
	if err != nil {
		return 0, err
	}
	return parseContentRange(resp.Header.Get("Content-Range"))
}

// parseContentRange 解析 "0-24/3573" 或 "*/0"
func parseContentRange(v string) (int64, error) {
	i := strings.LastIndexByte(v, '/')
	if i < 0 || v[i+1:] == "*" {
		return 0, fmt.Errorf("missing total in content-range %q", v)
	}
	return strconv.ParseInt(v[i+1:], 10, 64)
}

func (t table) insert(ctx context.Context, row map[string]interface{}, out interface{}) error {
	var rows []json.RawMessage
	if _, err := t.c.do(ctx, request{
		method:  http.MethodPost,
		path:    t.path(),
		body:    row,
		bearer:  gateway.AccessToken(ctx),
		headers: map[string]string{"Prefer": returnRows},
	}, &rows); err != nil {
		return err
	}
	if len(rows) == 0 || out == nil {
		return nil
	}
	return json.Unmarshal(rows[0], out)
}

// update/remove 未命中任何行时返回 ErrNotFound
func (t table) update(ctx context.Context, id string, cols map[string]interface{}) error {
	var rows []json.RawMessage
	if _, err := t.c.do(ctx, request{
		method:  http.MethodPatch,
		path:    t.path(),
		query:   url.Values{"id": {eq(id)}},
		body:    cols,
		bearer:  gateway.AccessToken(ctx),
		headers: map[string]string{"Prefer": returnRows},
	}, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return gateway.ErrNotFound
	}
	return nil
}

func (t table) remove(ctx context.Context, q url.Values) (int, error) {
	var rows []json.RawMessage
	_, err := t.c.do(ctx, request{
		method:  http.MethodDelete,
		path:    t.path(),
		query:   q,
		bearer:  gateway.AccessToken(ctx),
		headers: map[string]string{"Prefer": returnRows},
	}, &rows)
	return len(rows), err
}

func (t table) removeByID(ctx context.Context, id string) error {
	n, err := t.remove(ctx, url.Values{"id": {eq(id)}})
	if err != nil {
		return err
	}
	if n == 0 {
		return gateway.ErrNotFound
	}
	return nil
}

// toRow 序列化为列映射，零值时间戳交给数据库默认值
func toRow(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	row := map[string]interface{}{}
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	for _, k := range []string{"created_at", "updated_at"} {
		if s, ok := row[k].(string); ok && strings.HasPrefix(s, "0001-01-01") {
			delete(row, k)
		}
	}
	return row, nil
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

var recentFirst = url.Values{"order": {"created_at.desc"}}

func cloneQuery(q url.Values) url.Values {
	out := url.Values{}
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// ProfileStore profiles 表
type ProfileStore struct {
	c *Client
}

func (s *ProfileStore) t() table { return table{c: s.c, name: "profiles"} }

func (s *ProfileStore) List(ctx context.Context) ([]model.Profile, error) {
	var out []model.Profile
	err := s.t().list(ctx, cloneQuery(recentFirst), &out)
	return out, err
}

func (s *ProfileStore) Get(ctx context.Context, id string) (*model.Profile, error) {
	var p model.Profile
	if err := s.t().single(ctx, url.Values{"id": {eq(id)}}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProfileStore) GetByUsername(ctx context.Context, username string) (*model.Profile, error) {
	var p model.Profile
	if err := s.t().single(ctx, url.Values{"username": {eq(username)}}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProfileStore) Count(ctx context.Context) (int64, error) {
	return s.t().count(ctx, nil)
}

func (s *ProfileStore) Insert(ctx context.Context, p *model.Profile) error {
	p.ID = newID(p.ID)
	row, err := toRow(p)
	if err != nil {
		return err
	}
	return s.t().insert(ctx, row, p)
}

func (s *ProfileStore) Update(ctx context.Context, id string, u model.ProfileUpdate) error {
	cols := u.Columns()
	if len(cols) == 0 {
		return nil
	}
	return s.t().update(ctx, id, cols)
}

func (s *ProfileStore) Delete(ctx context.Context, id string) error {
	return s.t().removeByID(ctx, id)
}

// DeviceStore devices 表
type DeviceStore struct {
	c *Client
}

func (s *DeviceStore) t() table { return table{c: s.c, name: "devices"} }

func (s *DeviceStore) List(ctx context.Context) ([]model.Device, error) {
	var out []model.Device
	err := s.t().list(ctx, cloneQuery(recentFirst), &out)
	return out, err
}

func (s *DeviceStore) Get(ctx context.Context, id string) (*model.Device, error) {
	var d model.Device
	if err := s.t().single(ctx, url.Values{"id": {eq(id)}}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DeviceStore) Insert(ctx context.Context, d *model.Device) error {
	d.ID = newID(d.ID)
	row, err := toRow(d)
	if err != nil {
		return err
	}
	return s.t().insert(ctx, row, d)
}

func (s *DeviceStore) Update(ctx context.Context, d *model.Device) error {
	return s.t().update(ctx, d.ID, d.UpdateColumns())
}

func (s *DeviceStore) Delete(ctx context.Context, id string) error {
	return s.t().removeByID(ctx, id)
}

func (s *DeviceStore) Count(ctx context.Context) (int64, error) {
	return s.t().count(ctx, nil)
}

// CountByStatus 只取 status 列在本地聚合
func (s *DeviceStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string `json:"status"`
	}
	if err := s.t().list(ctx, url.Values{"select": {"status"}}, &rows); err != nil {
		return nil, err
	}
	out := map[string]int64{}
	for _, r := range rows {
		out[r.Status]++
	}
	return out, nil
}

// TemplateStore device_templates 表
type TemplateStore struct {
	c *Client
}

func (s *TemplateStore) t() table { return table{c: s.c, name: "device_templates"} }

func (s *TemplateStore) List(ctx context.Context) ([]model.DeviceTemplate, error) {
	var out []model.DeviceTemplate
	err := s.t().list(ctx, cloneQuery(recentFirst), &out)
	return out, err
}

func (s *TemplateStore) Get(ctx context.Context, id string) (*model.DeviceTemplate, error) {
	var t model.DeviceTemplate
	if err := s.t().single(ctx, url.Values{"id": {eq(id)}}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TemplateStore) Insert(ctx context.Context, t *model.DeviceTemplate) error {
	t.ID = newID(t.ID)
	row, err := toRow(t)
	if err != nil {
		return err
	}
	return s.t().insert(ctx, row, t)
}

func (s *TemplateStore) Update(ctx context.Context, t *model.DeviceTemplate) error {
	return s.t().update(ctx, t.ID, t.UpdateColumns())
}

func (s *TemplateStore) Delete(ctx context.Context, id string) error {
	return s.t().removeByID(ctx, id)
}

// BootstrapStore bootstrap_admin 表，冲突时忽略插入，返回空数组即认领失败
type BootstrapStore struct {
	c *Client
}

func (s *BootstrapStore) t() table { return table{c: s.c, name: "bootstrap_admin"} }

func (s *BootstrapStore) ClaimAdmin(ctx context.Context, profileID string) (bool, error) {
	var rows []json.RawMessage
	_, err := s.c.do(ctx, request{
		method:  http.MethodPost,
		path:    s.t().path(),
		body:    map[string]interface{}{"id": 1, "profile_id": profileID},
		bearer:  gateway.AccessToken(ctx),
		headers: map[string]string{"Prefer": ignoreConflict},
	}, &rows)
	if err != nil {
		return false, err
	}
	return len(rows) == 1, nil
}

func (s *BootstrapStore) ReleaseAdmin(ctx context.Context, profileID string) error {
	_, err := s.t().remove(ctx, url.Values{"id": {eq("1")}, "profile_id": {eq(profileID)}})
	return err
}
