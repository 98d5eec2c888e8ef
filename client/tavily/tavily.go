// Package tavily is a thin client for the Tavily web-search API, used by the
// websearch handler after the user consents.
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/tripmesh/tripmesh/internal/httpx"
)

const defaultBaseURL = "https://api.tavily.com"

// Options configure the Tavily client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	CacheTTL   time.Duration
	RPS        float64
}

// Result is one web search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Response is a completed search: an optional direct answer plus ranked hits.
type Response struct {
	Answer  string   `json:"answer"`
	Results []Result `json:"results"`
}

// Client talks to Tavily.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *gocache.Cache
	limiter    *rate.Limiter
}

// New builds a Tavily client for the given API key.
func New(apiKey string, optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		CacheTTL:   10 * time.Minute,
		RPS:        2,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		apiKey:     apiKey,
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		cache:      gocache.New(opts.CacheTTL, 2*opts.CacheTTL),
		limiter:    rate.NewLimiter(rate.Limit(opts.RPS), 1),
	}
}

// Configured reports whether the client has an API key to search with.
func (c *Client) Configured() bool { return c != nil && c.apiKey != "" }

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

// Search runs a web search returning at most maxResults hits.
func (c *Client) Search(ctx context.Context, query string, maxResults int) (*Response, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("tavily api key not configured")
	}
	if maxResults < 1 {
		maxResults = 5
	}

	cacheKey := fmt.Sprintf("q:%d:%s", maxResults, query)
	if cached, ok := c.cache.Get(cacheKey); ok {
		resp := cached.(Response)
		return &resp, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(searchRequest{
		APIKey:        c.apiKey,
		Query:         query,
		MaxResults:    maxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}

	var decoded Response
	if err := httpx.DoJSON(c.httpClient, req, &decoded, 3); err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}

	c.cache.SetDefault(cacheKey, decoded)

	return &decoded, nil
}

// Describe renders search output as compact text for prompt injection.
func (r *Response) Describe() string {
	out := ""
	if r.Answer != "" {
		out += "Answer: " + r.Answer + "\n"
	}
	for i, res := range r.Results {
		out += fmt.Sprintf("[%d] %s (%s): %s\n", i+1, res.Title, res.URL, res.Content)
	}
	return out
}
