package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryEmpty(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	assert.True(t, healthy)
	assert.Empty(t, statuses)
}

func TestRegistryOneUnhealthy(t *testing.T) {
	r := NewRegistry()
	r.Register("classifier", FromError("classifier", func(context.Context) error { return nil }))
	r.Register("store", FromError("store", func(context.Context) error {
		return errors.New("connection refused")
	}))

	healthy, statuses := r.CheckAll(context.Background())
	assert.False(t, healthy)
	require.Len(t, statuses, 2)
	assert.Equal(t, "classifier", statuses[0].Name)
	assert.True(t, statuses[0].Healthy)
	assert.Equal(t, "store", statuses[1].Name)
	assert.Equal(t, "connection refused", statuses[1].Detail)
}

func TestRegistryFillsName(t *testing.T) {
	r := NewRegistry()
	r.Register("contract", func(context.Context) Status { return Status{Healthy: true} })

	_, statuses := r.CheckAll(context.Background())
	require.Len(t, statuses, 1)
	assert.Equal(t, "contract", statuses[0].Name)
}

func TestRegistryConcurrentRegisterAndCheck(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register("checker", func(context.Context) Status { return Status{Healthy: true} })
		}()
		go func() {
			defer wg.Done()
			r.CheckAll(context.Background())
		}()
	}
	wg.Wait()
}

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.RegisterRoutes(router)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHandler_Health(t *testing.T) {
	r := NewRegistry()
	r.Register("classifier", FromError("classifier", func(context.Context) error { return nil }))
	h := NewHandler(r, "test")

	w := serve(h, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "test", body.Version)
	require.Len(t, body.Checks, 1)

	r.Register("contract", FromError("contract", func(context.Context) error { return errors.New("drift") }))
	w = serve(h, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestHandler_LiveAndReady(t *testing.T) {
	r := NewRegistry()
	h := NewHandler(r, "test")

	assert.Equal(t, http.StatusOK, serve(h, "/health/live").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, "/health/ready").Code)

	r.SetReady(true)
	assert.Equal(t, http.StatusOK, serve(h, "/health/ready").Code)
}
