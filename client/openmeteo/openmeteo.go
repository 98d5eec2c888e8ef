// Package openmeteo is a thin client for the Open-Meteo geocoding and
// forecast APIs. No API key is required. Responses are cached briefly and
// calls are rate limited so bursty conversations do not hammer the service.
package openmeteo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/tripmesh/tripmesh/internal/httpx"
)

const (
	defaultBaseURL    = "https://api.open-meteo.com"
	defaultGeoBaseURL = "https://geocoding-api.open-meteo.com"
)

// Options configure the Open-Meteo client.
type Options struct {
	BaseURL    string
	GeoBaseURL string
	HTTPClient *http.Client
	CacheTTL   time.Duration
	RPS        float64
}

// Location is a resolved city from the geocoding API.
type Location struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}

// DailyForecast is one day of the forecast.
type DailyForecast struct {
	Date          string  `json:"date"`
	TempMax       float64 `json:"temp_max"`
	TempMin       float64 `json:"temp_min"`
	Precipitation float64 `json:"precipitation"`
	WeatherCode   int     `json:"weather_code"`
}

// Forecast is the daily outlook for a location.
type Forecast struct {
	Location Location        `json:"location"`
	Days     []DailyForecast `json:"days"`
}

// Client talks to Open-Meteo.
type Client struct {
	baseURL    string
	geoBaseURL string
	httpClient *http.Client
	cache      *gocache.Cache
	limiter    *rate.Limiter
}

// New builds an Open-Meteo client.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL:    defaultBaseURL,
		GeoBaseURL: defaultGeoBaseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		CacheTTL:   10 * time.Minute,
		RPS:        5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		baseURL:    opts.BaseURL,
		geoBaseURL: opts.GeoBaseURL,
		httpClient: opts.HTTPClient,
		cache:      gocache.New(opts.CacheTTL, 2*opts.CacheTTL),
		limiter:    rate.NewLimiter(rate.Limit(opts.RPS), 1),
	}
}

type geocodeResponse struct {
	Results []Location `json:"results"`
}

// Geocode resolves a city name to its best-match location.
func (c *Client) Geocode(ctx context.Context, city string) (*Location, error) {
	cacheKey := "geo:" + city
	if cached, ok := c.cache.Get(cacheKey); ok {
		loc := cached.(Location)
		return &loc, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v1/search?name=%s&count=1&language=en&format=json",
		c.geoBaseURL, url.QueryEscape(city))

	req, err := httpx.NewRequest(ctx, http.MethodGet, u)
	if err != nil {
		return nil, err
	}

	var decoded geocodeResponse
	if err := httpx.DoJSON(c.httpClient, req, &decoded, 3); err != nil {
		return nil, fmt.Errorf("geocode %q: %w", city, err)
	}

	if len(decoded.Results) == 0 {
		return nil, fmt.Errorf("no location found for %q", city)
	}

	loc := decoded.Results[0]
	c.cache.SetDefault(cacheKey, loc)

	return &loc, nil
}

type forecastResponse struct {
	Daily struct {
		Time             []string  `json:"time"`
		Temperature2mMax []float64 `json:"temperature_2m_max"`
		Temperature2mMin []float64 `json:"temperature_2m_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
		WeatherCode      []int     `json:"weather_code"`
	} `json:"daily"`
}

// Forecast fetches a daily forecast for a resolved location. days is clamped
// to [1,16], the API's supported range.
func (c *Client) Forecast(ctx context.Context, loc *Location, days int) (*Forecast, error) {
	if days < 1 {
		days = 1
	}
	if days > 16 {
		days = 16
	}

	cacheKey := fmt.Sprintf("fc:%.3f:%.3f:%d", loc.Latitude, loc.Longitude, days)
	if cached, ok := c.cache.Get(cacheKey); ok {
		fc := cached.(Forecast)
		return &fc, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v1/forecast?latitude=%f&longitude=%f&daily=temperature_2m_max,temperature_2m_min,precipitation_sum,weather_code&forecast_days=%d&timezone=auto",
		c.baseURL, loc.Latitude, loc.Longitude, days)

	req, err := httpx.NewRequest(ctx, http.MethodGet, u)
	if err != nil {
		return nil, err
	}

	var decoded forecastResponse
	if err := httpx.DoJSON(c.httpClient, req, &decoded, 3); err != nil {
		return nil, fmt.Errorf("forecast for %s: %w", loc.Name, err)
	}

	fc := Forecast{Location: *loc}
	for i, date := range decoded.Daily.Time {
		day := DailyForecast{Date: date}
		if i < len(decoded.Daily.Temperature2mMax) {
			day.TempMax = decoded.Daily.Temperature2mMax[i]
		}
		if i < len(decoded.Daily.Temperature2mMin) {
			day.TempMin = decoded.Daily.Temperature2mMin[i]
		}
		if i < len(decoded.Daily.PrecipitationSum) {
			day.Precipitation = decoded.Daily.PrecipitationSum[i]
		}
		if i < len(decoded.Daily.WeatherCode) {
			day.WeatherCode = decoded.Daily.WeatherCode[i]
		}
		fc.Days = append(fc.Days, day)
	}

	c.cache.SetDefault(cacheKey, fc)

	return &fc, nil
}

// Describe renders a forecast as compact text for prompt injection.
func (f *Forecast) Describe() string {
	out := fmt.Sprintf("Forecast for %s, %s:\n", f.Location.Name, f.Location.Country)
	for _, d := range f.Days {
		out += fmt.Sprintf("- %s: %.0f to %.0f C, %.1f mm precipitation\n",
			d.Date, d.TempMin, d.TempMax, d.Precipitation)
	}
	return out
}
