package openmeteo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeocode_CachesResponses(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/search", r.URL.Path)
		assert.Equal(t, "Lisbon", r.URL.Query().Get("name"))
		w.Write([]byte(`{"results":[{"name":"Lisbon","country":"Portugal","latitude":38.72,"longitude":-9.14,"timezone":"Europe/Lisbon"}]}`))
	}))
	defer srv.Close()

	c := New(func(o *Options) {
		o.GeoBaseURL = srv.URL
		o.RPS = 1000
	})

	loc, err := c.Geocode(context.Background(), "Lisbon")
	require.NoError(t, err)
	assert.Equal(t, "Portugal", loc.Country)
	assert.InDelta(t, 38.72, loc.Latitude, 1e-9)

	_, err = c.Geocode(context.Background(), "Lisbon")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second lookup must hit the cache")
}

func TestGeocode_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := New(func(o *Options) {
		o.GeoBaseURL = srv.URL
		o.RPS = 1000
	})

	_, err := c.Geocode(context.Background(), "Nowhereville")
	assert.Error(t, err)
}

func TestForecast_ParsesDailySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("forecast_days"))
		w.Write([]byte(`{"daily":{"time":["2026-09-01","2026-09-02","2026-09-03"],"temperature_2m_max":[28,27,25],"temperature_2m_min":[18,17,16],"precipitation_sum":[0,1.2,0],"weather_code":[0,61,2]}}`))
	}))
	defer srv.Close()

	c := New(func(o *Options) {
		o.BaseURL = srv.URL
		o.RPS = 1000
	})

	loc := &Location{Name: "Lisbon", Country: "Portugal", Latitude: 38.72, Longitude: -9.14}
	fc, err := c.Forecast(context.Background(), loc, 3)
	require.NoError(t, err)
	require.Len(t, fc.Days, 3)
	assert.Equal(t, 28.0, fc.Days[0].TempMax)
	assert.Equal(t, 61, fc.Days[1].WeatherCode)
	assert.Contains(t, fc.Describe(), "Lisbon, Portugal")
}

func TestForecast_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"daily":{"time":["2026-09-01"],"temperature_2m_max":[20],"temperature_2m_min":[12],"precipitation_sum":[0],"weather_code":[1]}}`))
	}))
	defer srv.Close()

	c := New(func(o *Options) {
		o.BaseURL = srv.URL
		o.RPS = 1000
	})

	fc, err := c.Forecast(context.Background(), &Location{Name: "Oslo"}, 1)
	require.NoError(t, err)
	assert.Len(t, fc.Days, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
