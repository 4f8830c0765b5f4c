package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiretrace/wiretrace/internal/middleware"
	"github.com/wiretrace/wiretrace/internal/repository"
	"github.com/wiretrace/wiretrace/internal/service"
	"github.com/wiretrace/wiretrace/internal/stream"
)

func newTestRouter(t *testing.T) (*gin.Engine, *stream.Broadcaster) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repository.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo, err := repository.NewSQLiteEventRepo(db)
	require.NoError(t, err)

	broadcaster := stream.NewBroadcaster(8)
	t.Cleanup(broadcaster.Close)
	eventHandler := NewEventHandler(service.NewIngestService(repo, broadcaster), service.NewQueryService(repo))
	streamHandler := NewStreamHandler(broadcaster)

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.GET("/health", eventHandler.Health)
	r.GET("/events/stream", streamHandler.SSE)
	r.GET("/events/ws", streamHandler.WebSocket)
	r.POST("/events", eventHandler.Ingest)
	r.GET("/events", eventHandler.List)
	r.GET("/events/:id", eventHandler.Get)
	r.GET("/hosts", eventHandler.Hosts)
	r.POST("/clear", eventHandler.Clear)
	return r, broadcaster
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestIngestEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/events", map[string]any{
		"phase":      "response",
		"method":     "get",
		"url":        "https://api.example.com/v1/x?y=1",
		"status":     404,
		"reqHeaders": map[string]string{"Authorization": "Bearer abc"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ID      int64 `json:"id"`
		Success bool  `json:"success"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.ID)
	assert.True(t, resp.Success)

	// Stored record is retrievable and redacted.
	w = doJSON(t, r, http.MethodGet, "/events/1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var event struct {
		Method     string            `json:"method"`
		Host       string            `json:"host"`
		Path       string            `json:"path"`
		ReqHeaders map[string]string `json:"req_headers"`
		Service    *string           `json:"service"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &event))
	assert.Equal(t, "GET", event.Method)
	assert.Equal(t, "api.example.com", event.Host)
	assert.Equal(t, "/v1/x?y=1", event.Path)
	assert.Equal(t, map[string]string{"Authorization": "[redacted]"}, event.ReqHeaders)
	assert.Nil(t, event.Service)
}

func TestIngestValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/events", map[string]any{"phase": "request"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "url")

	w = doJSON(t, r, http.MethodPost, "/events", map[string]any{"phase": "bogus", "url": "https://x.example/"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestBadURLStillSucceeds(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/events", map[string]any{"phase": "request", "url": "not a url"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/events/1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var event struct {
		Host *string `json:"host"`
		Path string  `json:"path"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &event))
	assert.Nil(t, event.Host)
	assert.Equal(t, "not a url", event.Path)
}

func TestListEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	for i := 0; i < 15; i++ {
		status := 200
		if i%5 == 0 {
			status = 500
		}
		w := doJSON(t, r, http.MethodPost, "/events", map[string]any{
			"phase":  "response",
			"method": "GET",
			"url":    fmt.Sprintf("https://api.example.com/item/%d", i),
			"status": status,
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/events?page=1&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Events     []json.RawMessage `json:"events"`
		Pagination struct {
			Page       int `json:"page"`
			Limit      int `json:"limit"`
			Total      int `json:"total"`
			TotalPages int `json:"totalPages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Events, 10)
	assert.Equal(t, 15, resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.TotalPages)

	w = doJSON(t, r, http.MethodGet, "/events?statusCategory=5xx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Pagination.Total)

	// Page below 1 is clamped at the transport boundary.
	w = doJSON(t, r, http.MethodGet, "/events?page=0&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Pagination.Page)
}

func TestGetNotFoundEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/events/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Event not found"}`, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/events/abc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHostsAndClearEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, u := range []string{"https://zeta.example.com/a", "https://alpha.example.com/b"} {
		w := doJSON(t, r, http.MethodPost, "/events", map[string]any{"phase": "request", "url": u})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/hosts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["alpha.example.com","zeta.example.com"]`, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/clear", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Pagination.Total)
}
