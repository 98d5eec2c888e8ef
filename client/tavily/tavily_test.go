package tavily

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-key", req["api_key"])
		assert.Equal(t, "ryokan etiquette", req["query"])

		w.Write([]byte(`{"answer":"Remove shoes at the entrance.","results":[{"title":"Ryokan guide","url":"https://example.com/ryokan","content":"Etiquette basics...","score":0.97}]}`))
	}))
	defer srv.Close()

	c := New("test-key", func(o *Options) {
		o.BaseURL = srv.URL
		o.RPS = 1000
	})

	resp, err := c.Search(context.Background(), "ryokan etiquette", 3)
	require.NoError(t, err)
	assert.Equal(t, "Remove shoes at the entrance.", resp.Answer)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "https://example.com/ryokan", resp.Results[0].URL)
	assert.Contains(t, resp.Describe(), "Ryokan guide")

	// identical query served from cache
	_, err = c.Search(context.Background(), "ryokan etiquette", 3)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSearch_MissingKey(t *testing.T) {
	c := New("")
	_, err := c.Search(context.Background(), "anything", 3)
	assert.Error(t, err)
}
