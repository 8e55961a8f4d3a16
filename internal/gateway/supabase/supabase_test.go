package supabase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, h http.HandlerFunc) *gateway.Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	gw, err := New(Config{URL: srv.URL + "/", AnonKey: "anon", ServiceKey: "service", Timeout: time.Second})
	require.NoError(t, err)
	return gw
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jwtWithExp(exp time.Time) string {
	payload, _ := json.Marshal(map[string]int64{"exp": exp.Unix()})
	return "h." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func TestNewRequiresURLAndKey(t *testing.T) {
	_, err := New(Config{AnonKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{URL: "https://x.supabase.co"})
	assert.Error(t, err)
}

func TestSignInMapsBadCredentials(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret1" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid login credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token": "tok",
			"expires_at":   time.Now().Add(time.Hour).Unix(),
			"user":         map[string]string{"id": "u1", "email": body["email"]},
		})
	})

	_, err := gw.Identity.SignIn(context.Background(), "a@b.c", "nope")
	assert.ErrorIs(t, err, gateway.ErrInvalidCredentials)

	sess, err := gw.Identity.SignIn(context.Background(), "a@b.c", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "tok", sess.AccessToken)
	assert.Equal(t, "u1", sess.UserID)
}

func TestSignUpExistingUser(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"code": 422, "error_code": "user_already_exists", "msg": "User already registered"})
	})
	_, err := gw.Identity.SignUp(context.Background(), "a@b.c", "secret1")
	assert.ErrorIs(t, err, gateway.ErrUserExists)
}

func TestSignUpReadsNestedOrFlatUser(t *testing.T) {
	nested := true
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if nested {
			writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "t", "user": map[string]string{"id": "nested"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": "flat", "email": "a@b.c"})
	})
	id, err := gw.Identity.SignUp(context.Background(), "a@b.c", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "nested", id)

	nested = false
	id, err = gw.Identity.SignUp(context.Background(), "a@b.c", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "flat", id)
}

func TestGetSession(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		if r.Header.Get("Authorization") == "Bearer revoked" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": "u1", "email": "a@b.c", "email_confirmed_at": time.Now()})
	})
	ctx := context.Background()

	_, err := gw.Identity.GetSession(ctx, "")
	assert.ErrorIs(t, err, gateway.ErrSessionNotFound)
	_, err = gw.Identity.GetSession(ctx, "revoked")
	assert.ErrorIs(t, err, gateway.ErrSessionNotFound)
	_, err = gw.Identity.GetSession(ctx, jwtWithExp(time.Now().Add(-time.Minute)))
	assert.ErrorIs(t, err, gateway.ErrSessionExpired)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	sess, err := gw.Identity.GetSession(ctx, jwtWithExp(exp))
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
	assert.True(t, exp.Equal(sess.ExpiresAt))
}

func TestAdminCallsUseServiceKey(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "service", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/auth/v1/admin/users":
			writeJSON(w, http.StatusOK, map[string]interface{}{"users": []map[string]string{{"id": "u1", "email": "a@b.c"}, {"id": "u2", "email": "d@e.f"}}})
		case r.Method == http.MethodDelete && r.URL.Path == "/auth/v1/admin/users/gone":
			writeJSON(w, http.StatusNotFound, map[string]string{"msg": "User not found"})
		case r.Method == http.MethodPost:
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, true, body["email_confirm"])
			writeJSON(w, http.StatusOK, map[string]string{"id": "u3"})
		default:
			w.WriteHeader(http.StatusOK)
		}
	})
	ctx := context.Background()

	users, err := gw.Identity.AdminListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	id, err := gw.Identity.AdminCreateUser(ctx, "x@y.z", "secret1", true)
	require.NoError(t, err)
	assert.Equal(t, "u3", id)

	assert.ErrorIs(t, gw.Identity.AdminDeleteUser(ctx, "gone"), gateway.ErrNotFound)
}

func TestAdminWithoutServiceKey(t *testing.T) {
	gw, err := New(Config{URL: "http://127.0.0.1:1", AnonKey: "anon"})
	require.NoError(t, err)
	_, err = gw.Identity.AdminListUsers(context.Background())
	assert.ErrorContains(t, err, "service key")
}

func TestTableRequestsCarryCallerToken(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/devices", r.URL.Path)
		assert.Equal(t, "Bearer user-jwt", r.Header.Get("Authorization"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))
		writeJSON(w, http.StatusOK, []map[string]interface{}{{"id": "d1", "name": "core-sw", "status": "stock"}})
	})
	ctx := gateway.WithAccessToken(context.Background(), "user-jwt")
	list, err := gw.Devices.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "core-sw", list[0].Name)
}

func TestSingleRowNotFound(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, objectAccept, r.Header.Get("Accept"))
		assert.Equal(t, "eq.missing", r.URL.Query().Get("id"))
		writeJSON(w, http.StatusNotAcceptable, map[string]string{"code": "PGRST116", "message": "JSON object requested, multiple (or no) rows returned"})
	})
	_, err := gw.Templates.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestCountParsesContentRange(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, countExact, r.Header.Get("Prefer"))
		w.Header().Set("Content-Range", "0-0/7")
		w.WriteHeader(http.StatusOK)
	})
	n, err := gw.Profiles.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	_, err = parseContentRange("0-0/*")
	assert.Error(t, err)
	n, err = parseContentRange("*/0")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsertConflictAndPayload(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var row map[string]interface{}
		assert.NoError(t, json.Unmarshal(raw, &row))
		assert.NotContains(t, row, "created_at", "zero timestamps are left to the database")
		assert.Equal(t, returnRows, r.Header.Get("Prefer"))
		if row["username"] == "taken" {
			writeJSON(w, http.StatusConflict, map[string]string{"code": "23505", "message": `duplicate key value violates unique constraint "profiles_username_key"`})
			return
		}
		row["created_at"] = "2024-05-01T08:00:00Z"
		writeJSON(w, http.StatusCreated, []interface{}{row})
	})
	ctx := context.Background()

	err := gw.Profiles.Insert(ctx, &model.Profile{ID: "u1", Username: "taken"})
	assert.ErrorIs(t, err, gateway.ErrConflict)
	assert.Contains(t, err.Error(), "duplicate key")

	p := &model.Profile{ID: "u2", Username: "free", Role: "observer"}
	require.NoError(t, gw.Profiles.Insert(ctx, p))
	assert.Equal(t, 2024, p.CreatedAt.Year())
}

func TestUpdateAndDeleteMissReportNotFound(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []interface{}{})
	})
	ctx := context.Background()
	role := "admin"
	assert.ErrorIs(t, gw.Profiles.Update(ctx, "x", model.ProfileUpdate{Role: &role}), gateway.ErrNotFound)
	assert.ErrorIs(t, gw.Devices.Delete(ctx, "x"), gateway.ErrNotFound)
	assert.ErrorIs(t, gw.Devices.Update(ctx, &model.Device{ID: "x"}), gateway.ErrNotFound)
}

func TestBootstrapClaim(t *testing.T) {
	claimed := false
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/bootstrap_admin", r.URL.Path)
		assert.Equal(t, ignoreConflict, r.Header.Get("Prefer"))
		if claimed {
			writeJSON(w, http.StatusCreated, []interface{}{})
			return
		}
		claimed = true
		writeJSON(w, http.StatusCreated, []interface{}{map[string]interface{}{"id": 1, "profile_id": "p1"}})
	})
	ctx := context.Background()
	ok, err := gw.Bootstrap.ClaimAdmin(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = gw.Bootstrap.ClaimAdmin(ctx, "p2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountByStatusAggregates(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "status", r.URL.Query().Get("select"))
		fmt.Fprint(w, `[{"status":"stock"},{"status":"stock"},{"status":"rusak"}]`)
	})
	got, err := gw.Devices.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"stock": 2, "rusak": 1}, got)
}
