// Package amadeus is a thin client for the Amadeus self-service flight APIs:
// OAuth2 client-credentials token handling plus flight offer search. Tokens
// are cached until shortly before expiry.
package amadeus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tripmesh/tripmesh/internal/httpx"
)

const defaultBaseURL = "https://test.api.amadeus.com"

// Options configure the Amadeus client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	RPS        float64
}

// Offer is a simplified flight offer.
type Offer struct {
	ID            string `json:"id"`
	Carrier       string `json:"carrier"`
	Departure     string `json:"departure"`
	Arrival       string `json:"arrival"`
	Duration      string `json:"duration"`
	Stops         int    `json:"stops"`
	PriceTotal    string `json:"price_total"`
	PriceCurrency string `json:"price_currency"`
}

// Client talks to the Amadeus API.
type Client struct {
	clientID     string
	clientSecret string
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// New builds an Amadeus client from OAuth client credentials.
func New(clientID, clientSecret string, optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
		RPS:        2,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      opts.BaseURL,
		httpClient:   opts.HTTPClient,
		limiter:      rate.NewLimiter(rate.Limit(opts.RPS), 1),
	}
}

// Configured reports whether the client has OAuth credentials to call with.
func (c *Client) Configured() bool {
	return c != nil && c.clientID != "" && c.clientSecret != ""
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a valid access token, refreshing when within a minute of
// expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	body := form.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/security/oauth2/token", strings.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	}

	var decoded tokenResponse
	if err := httpx.DoJSON(c.httpClient, req, &decoded, 2); err != nil {
		return "", fmt.Errorf("amadeus token: %w", err)
	}

	c.accessToken = decoded.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(decoded.ExpiresIn) * time.Second)

	return c.accessToken, nil
}

type offersResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Itineraries []struct {
			Duration string `json:"duration"`
			Segments []struct {
				CarrierCode string `json:"carrierCode"`
				Departure   struct {
					IATACode string `json:"iataCode"`
					At       string `json:"at"`
				} `json:"departure"`
				Arrival struct {
					IATACode string `json:"iataCode"`
					At       string `json:"at"`
				} `json:"arrival"`
			} `json:"segments"`
		} `json:"itineraries"`
		Price struct {
			Total    string `json:"total"`
			Currency string `json:"currency"`
		} `json:"price"`
	} `json:"data"`
}

// SearchOffers looks up one-way flight offers between two IATA location codes
// on a date (YYYY-MM-DD), returning at most limit simplified offers.
func (c *Client) SearchOffers(ctx context.Context, origin, destination, date string, limit int) ([]Offer, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return nil, fmt.Errorf("amadeus credentials not configured")
	}
	if limit < 1 {
		limit = 3
	}

	tok, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v2/shopping/flight-offers?originLocationCode=%s&destinationLocationCode=%s&departureDate=%s&adults=1&max=%d",
		c.baseURL, url.QueryEscape(origin), url.QueryEscape(destination), url.QueryEscape(date), limit)

	req, err := httpx.NewRequest(ctx, http.MethodGet, u)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	var decoded offersResponse
	if err := httpx.DoJSON(c.httpClient, req, &decoded, 3); err != nil {
		return nil, fmt.Errorf("flight offers %s-%s: %w", origin, destination, err)
	}

	offers := make([]Offer, 0, len(decoded.Data))
	for _, d := range decoded.Data {
		if len(d.Itineraries) == 0 || len(d.Itineraries[0].Segments) == 0 {
			continue
		}
		itin := d.Itineraries[0]
		first := itin.Segments[0]
		last := itin.Segments[len(itin.Segments)-1]
		offers = append(offers, Offer{
			ID:            d.ID,
			Carrier:       first.CarrierCode,
			Departure:     fmt.Sprintf("%s %s", first.Departure.IATACode, first.Departure.At),
			Arrival:       fmt.Sprintf("%s %s", last.Arrival.IATACode, last.Arrival.At),
			Duration:      itin.Duration,
			Stops:         len(itin.Segments) - 1,
			PriceTotal:    d.Price.Total,
			PriceCurrency: d.Price.Currency,
		})
	}

	return offers, nil
}

// DescribeOffers renders offers as compact text for prompt injection.
func DescribeOffers(offers []Offer) string {
	out := ""
	for i, o := range offers {
		out += fmt.Sprintf("[%d] %s: %s -> %s, %s, %d stops, %s %s\n",
			i+1, o.Carrier, o.Departure, o.Arrival, o.Duration, o.Stops, o.PriceTotal, o.PriceCurrency)
	}
	return out
}
