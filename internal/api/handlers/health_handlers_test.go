package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func serve(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, HealthResponse) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/probe", h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestReadiness_AllHealthy(t *testing.T) {
	h := NewHealthHandler(map[string]CheckFunc{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return nil },
	}, zap.NewNop(), "test")

	w, resp := serve(t, h.Readiness)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestReadiness_FailingDependency(t *testing.T) {
	h := NewHealthHandler(map[string]CheckFunc{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}, zap.NewNop(), "test")

	w, resp := serve(t, h.Readiness)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["redis"].Error)
	assert.Equal(t, StatusHealthy, resp.Checks["database"].Status)
}

func TestLiveness(t *testing.T) {
	h := NewHealthHandler(nil, zap.NewNop(), "v1")

	w, resp := serve(t, h.Liveness)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v1", resp.Version)
	assert.Empty(t, resp.Checks)
}
