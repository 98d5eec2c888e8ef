package amadeus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, tokenCalls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/security/oauth2/token":
			atomic.AddInt32(tokenCalls, 1)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
			w.Write([]byte(`{"access_token":"tok-123","expires_in":1799}`))
		case "/v2/shopping/flight-offers":
			assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
			assert.Equal(t, "LIS", r.URL.Query().Get("originLocationCode"))
			assert.Equal(t, "FCO", r.URL.Query().Get("destinationLocationCode"))
			w.Write([]byte(`{"data":[{"id":"1","itineraries":[{"duration":"PT3H05M","segments":[{"carrierCode":"TP","departure":{"iataCode":"LIS","at":"2026-09-10T08:00:00"},"arrival":{"iataCode":"FCO","at":"2026-09-10T12:05:00"}}]}],"price":{"total":"129.40","currency":"EUR"}}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
}

func TestSearchOffers(t *testing.T) {
	var tokenCalls int32
	srv := newTestServer(t, &tokenCalls)
	defer srv.Close()

	c := New("id", "secret", func(o *Options) {
		o.BaseURL = srv.URL
		o.RPS = 1000
	})

	offers, err := c.SearchOffers(context.Background(), "LIS", "FCO", "2026-09-10", 3)
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "TP", offers[0].Carrier)
	assert.Equal(t, 0, offers[0].Stops)
	assert.Equal(t, "129.40", offers[0].PriceTotal)
	assert.Contains(t, DescribeOffers(offers), "EUR")

	// second search reuses the cached token
	_, err = c.SearchOffers(context.Background(), "LIS", "FCO", "2026-09-10", 3)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestSearchOffers_MissingCredentials(t *testing.T) {
	c := New("", "")
	_, err := c.SearchOffers(context.Background(), "LIS", "FCO", "2026-09-10", 3)
	assert.Error(t, err)
}
