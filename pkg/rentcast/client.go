// Package rentcast is a client for the Rentcast property records API.
package rentcast

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/property-resolver/internal/resilience"
)

const defaultBaseURL = "https://api.rentcast.io/v1"

// Client calls Rentcast endpoints and returns raw JSON bodies.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// DefaultRateLimit is the requests per second allowed when none is set.
const DefaultRateLimit = 5

// WithRateLimit sets requests per second.
func WithRateLimit(rps float64) Option { return WithLimiter(resilience.NewLimiter(rps)) }

// WithLimiter shares l with every other client built with it, so one rate
// budget covers them all.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// NewClient creates a Rentcast client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    resilience.NewLimiter(DefaultRateLimit),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PropertiesByAddress returns property records matching a full address.
func (c *Client) PropertiesByAddress(ctx context.Context, address string) (json.RawMessage, error) {
	return c.get(ctx, "/properties", url.Values{"address": {address}})
}

// PropertiesNear returns up to limit records within radiusMiles of a point.
func (c *Client) PropertiesNear(ctx context.Context, lat, lng, radiusMiles float64, limit int) (json.RawMessage, error) {
	return c.get(ctx, "/properties", url.Values{
		"latitude":  {strconv.FormatFloat(lat, 'f', 6, 64)},
		"longitude": {strconv.FormatFloat(lng, 'f', 6, 64)},
		"radius":    {strconv.FormatFloat(radiusMiles, 'f', -1, 64)},
		"limit":     {strconv.Itoa(limit)},
	})
}

// Property fetches one record by Rentcast ID.
func (c *Client) Property(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, "/properties/"+url.PathEscape(id), nil)
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rentcast: rate limit")
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(resilience.RedactURL(err), "rentcast: build request")
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(resilience.RedactURL(err), "rentcast: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckStatus(resp); err != nil {
		return nil, eris.Wrapf(err, "rentcast: %s", path)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "rentcast: read body")
	}
	if !json.Valid(body) {
		return nil, eris.Errorf("rentcast: %s returned malformed JSON", path)
	}
	return body, nil
}
