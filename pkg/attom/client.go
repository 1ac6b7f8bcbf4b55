// Package attom is a client for the ATTOM property and neighborhood APIs.
package attom

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

const defaultBaseURL = "https://api.gateway.attomdata.com"

const (
	propertyPath  = "/propertyapi/v1.0.0/property/"
	communityPath = "/v4/neighborhood/community"
	locationPath  = "/v4/location/lookup"
)

// Client calls ATTOM endpoints and returns raw JSON bodies; callers decode
// the fields they need.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the API host.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

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

// NewClient creates an ATTOM client.
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

// BasicProfileByAddress looks up properties by street line and locality line.
func (c *Client) BasicProfileByAddress(ctx context.Context, address1, address2 string) (json.RawMessage, error) {
	q := url.Values{"address1": {address1}}
	if address2 != "" {
		q.Set("address2", address2)
	}
	return c.get(ctx, propertyPath+"basicprofile", q)
}

// BasicProfileByParcel looks up a property by APN and county FIPS.
func (c *Client) BasicProfileByParcel(ctx context.Context, apn, fips string) (json.RawMessage, error) {
	return c.get(ctx, propertyPath+"basicprofile", url.Values{"apn": {apn}, "fips": {fips}})
}

// Snapshot lists properties within radiusMiles of a point.
func (c *Client) Snapshot(ctx context.Context, lat, lng, radiusMiles float64) (json.RawMessage, error) {
	return c.get(ctx, propertyPath+"snapshot", url.Values{
		"latitude":  {strconv.FormatFloat(lat, 'f', 6, 64)},
		"longitude": {strconv.FormatFloat(lng, 'f', 6, 64)},
		"radius":    {strconv.FormatFloat(radiusMiles, 'f', -1, 64)},
	})
}

// Detail fetches the full detail record by ATTOM ID.
func (c *Client) Detail(ctx context.Context, attomID string) (json.RawMessage, error) {
	return c.get(ctx, propertyPath+"detail", url.Values{"attomid": {attomID}})
}

// ExpandedProfile fetches the expanded profile by address.
func (c *Client) ExpandedProfile(ctx context.Context, address1, address2 string) (json.RawMessage, error) {
	q := url.Values{"address1": {address1}}
	if address2 != "" {
		q.Set("address2", address2)
	}
	return c.get(ctx, propertyPath+"expandedprofile", q)
}

// Community fetches neighborhood statistics for a v4 geography ID.
func (c *Client) Community(ctx context.Context, geoIDV4 string) (json.RawMessage, error) {
	return c.get(ctx, communityPath, url.Values{"geoIdV4": {geoIDV4}})
}

// LocationLookup resolves a place name ("Sangamon, IL") to geography IDs of
// the given type abbreviation, such as "CO" for county or "PL" for place.
func (c *Client) LocationLookup(ctx context.Context, name, geographyType string) (json.RawMessage, error) {
	return c.get(ctx, locationPath, url.Values{"name": {name}, "geographyTypeAbbreviation": {geographyType}})
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "attom: rate limit")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(resilience.RedactURL(err), "attom: build request")
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(resilience.RedactURL(err), "attom: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckStatus(resp); err != nil {
		return nil, eris.Wrapf(err, "attom: %s", path)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "attom: read body")
	}
	if !json.Valid(body) {
		return nil, eris.Errorf("attom: %s returned malformed JSON", path)
	}
	return body, nil
}
