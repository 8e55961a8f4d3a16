package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/netdevconsole/netdevconsole/internal/devform"
	"github.com/netdevconsole/netdevconsole/internal/gateway"
	"github.com/netdevconsole/netdevconsole/internal/service"
	"github.com/netdevconsole/netdevconsole/internal/session"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&service.ValidationError{Missing: []string{"Device Name"}}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{&session.InputError{Msg: "email is required"}, http.StatusBadRequest, "INVALID_PARAMS"},
		{devform.ErrNoVisibleFields, http.StatusBadRequest, "VALIDATION_FAILED"},
		{fmt.Errorf("get device: %w", gateway.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{session.ErrUsernameTaken, http.StatusConflict, "CONFLICT"},
		{gateway.ErrUserExists, http.StatusConflict, "CONFLICT"},
		{service.ErrLastAdmin, http.StatusConflict, "CONFLICT"},
		{gateway.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{gateway.ErrSessionExpired, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		status, code := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestRespondErrorCarriesMissingLabels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/devices", nil)

	respondError(c, &service.ValidationError{Missing: []string{"Device Name", "Status"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"code":"VALIDATION_FAILED","message":"missing required fields: Device Name, Status","missing":["Device Name","Status"]}`, w.Body.String())
}

func TestRequireConfirm(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodDelete, "/api/v1/devices/d1", nil)
	assert.False(t, requireConfirm(c))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "CONFIRMATION_REQUIRED")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodDelete, "/api/v1/devices/d1?confirm=true", nil)
	assert.True(t, requireConfirm(c))
}
