// Package melissa is a client for the Melissa property and reverse
// geocoding web services.
package melissa

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

const (
	defaultPropertyURL = "https://property.melissadata.net/v4/WEB/LookupProperty"
	defaultReverseURL  = "https://reversegeo.melissadata.net/v3/web/ReverseGeoCode/doLookup"
	propertyColumns    = "GrpAll"
)

// Client calls Melissa endpoints and returns raw JSON bodies.
type Client struct {
	licenseKey  string
	propertyURL string
	reverseURL  string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL points both services at one host, as tests do.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.propertyURL = u + "/v4/WEB/LookupProperty"
		c.reverseURL = u + "/v3/web/ReverseGeoCode/doLookup"
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// DefaultRateLimit is the requests per second allowed when none is set.
const DefaultRateLimit = 10

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

// NewClient creates a Melissa client for a license key.
func NewClient(licenseKey string, opts ...Option) *Client {
	c := &Client{
		licenseKey:  licenseKey,
		propertyURL: defaultPropertyURL,
		reverseURL:  defaultReverseURL,
		httpClient:  &http.Client{Timeout: 20 * time.Second},
		limiter:     resilience.NewLimiter(DefaultRateLimit),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PropertyByAddress looks up a property by free-form address.
func (c *Client) PropertyByAddress(ctx context.Context, freeform string) (json.RawMessage, error) {
	return c.get(ctx, c.propertyURL, url.Values{"ff": {freeform}, "cols": {propertyColumns}})
}

// PropertyByParcel looks up a property by APN and county FIPS.
func (c *Client) PropertyByParcel(ctx context.Context, apn, fips string) (json.RawMessage, error) {
	return c.get(ctx, c.propertyURL, url.Values{"apn": {apn}, "fips": {fips}, "cols": {propertyColumns}})
}

// PropertyByAddressKey looks up a property by Melissa address key (MAK).
func (c *Client) PropertyByAddressKey(ctx context.Context, mak string) (json.RawMessage, error) {
	return c.get(ctx, c.propertyURL, url.Values{"mak": {mak}, "cols": {propertyColumns}})
}

// ReverseGeocode lists up to recs addresses within distMiles of a point.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng, distMiles float64, recs int) (json.RawMessage, error) {
	return c.get(ctx, c.reverseURL, url.Values{
		"lat":  {strconv.FormatFloat(lat, 'f', 6, 64)},
		"long": {strconv.FormatFloat(lng, 'f', 6, 64)},
		"dist": {strconv.FormatFloat(distMiles, 'f', -1, 64)},
		"recs": {strconv.Itoa(recs)},
	})
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "melissa: rate limit")
	}
	q.Set("id", c.licenseKey)
	q.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(resilience.RedactURL(err), "melissa: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(resilience.RedactURL(err), "melissa: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckStatus(resp); err != nil {
		return nil, eris.Wrap(err, "melissa: lookup")
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "melissa: read body")
	}
	if !json.Valid(body) {
		return nil, eris.New("melissa: malformed JSON")
	}
	return body, nil
}
