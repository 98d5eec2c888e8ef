package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmesh/tripmesh/dialog"
	"github.com/tripmesh/tripmesh/engine"
	"github.com/tripmesh/tripmesh/handler"
	"github.com/tripmesh/tripmesh/model"
	"github.com/tripmesh/tripmesh/router"
	"github.com/tripmesh/tripmesh/server"
	"github.com/tripmesh/tripmesh/session"
)

type stubHandler struct {
	name string
	text string
}

func (s *stubHandler) Name() string { return s.name }

func (s *stubHandler) Handle(_ context.Context, _ handler.Request) (*handler.Response, error) {
	return &handler.Response{Text: s.text}, nil
}

func newTestServer(t *testing.T) (*server.Server, *session.InMemoryStore) {
	t.Helper()
	r, err := router.New(model.NewMockModel("mock", "test"))
	require.NoError(t, err)
	reg, err := handler.NewRegistry(&stubHandler{name: "weather", text: "Clear skies."})
	require.NoError(t, err)

	store := session.NewInMemoryStore()
	e := engine.New(dialog.New(r, reg), engine.WithStore(store))
	return server.New(e, server.WithMode(gin.TestMode)), store
}

func postChat(t *testing.T, srv *server.Server, threadID, message string) map[string]any {
	t.Helper()
	body, err := json.Marshal(map[string]string{"thread_id": threadID, "message": message})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestChatEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.ApplyDelta("t1", map[string]string{"city": "Lisbon"}))

	resp := postChat(t, srv, "t1", "what's the weather like?")

	assert.Equal(t, "t1", resp["thread_id"])
	assert.Equal(t, "Clear skies.", resp["reply"])
	slots, ok := resp["slots"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Lisbon", slots["city"])
}

func TestChatGeneratesThreadID(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := postChat(t, srv, "", "/clear")
	assert.NotEmpty(t, resp["thread_id"])
}

func TestChatRejectsMissingMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte(`{"thread_id":"t1"}`)))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWhyEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.ApplyDelta("t1", map[string]string{"city": "Lisbon"}))

	// No receipt before the first answered turn.
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/threads/t1/why", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	postChat(t, srv, "t1", "weather forecast please")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/threads/t1/why", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var receipt map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, "weather", receipt["intent"])
	assert.Equal(t, "regex", receipt["route_source"])
}

func TestGetAndClearThread(t *testing.T) {
	srv, store := newTestServer(t)
	require.NoError(t, store.ApplyDelta("t1", map[string]string{"city": "Lisbon"}))
	postChat(t, srv, "t1", "weather forecast please")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/threads/t1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var view map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	history, ok := view["history"].([]any)
	require.True(t, ok)
	assert.Len(t, history, 2)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/threads/t1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	thread, err := store.Get("t1")
	require.NoError(t, err)
	assert.Empty(t, thread.SlotSnapshot())
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
