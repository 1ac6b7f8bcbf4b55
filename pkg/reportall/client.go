// Package reportall is a client for the ReportAllUSA parcel API.
package reportall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/wkt"
	"golang.org/x/time/rate"

	"github.com/sells-group/property-resolver/internal/resilience"
)

const (
	defaultBaseURL = "https://reportallusa.com/api"
	apiVersion     = "9"
)

// Client calls the parcels endpoint and returns raw JSON bodies.
type Client struct {
	clientKey  string
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

// NewClient creates a ReportAllUSA client.
func NewClient(clientKey string, opts ...Option) *Client {
	c := &Client{
		clientKey:  clientKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    resilience.NewLimiter(DefaultRateLimit),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ParcelsByAddress searches by street address, scoped by region ("City, ST").
func (c *Client) ParcelsByAddress(ctx context.Context, address, region string) (json.RawMessage, error) {
	q := url.Values{"address": {address}}
	if region != "" {
		q.Set("region", region)
	}
	return c.get(ctx, q)
}

// ParcelsByID searches by parcel number within a county FIPS.
func (c *Client) ParcelsByID(ctx context.Context, parcelID, countyFIPS string) (json.RawMessage, error) {
	return c.get(ctx, url.Values{"parcel_id": {parcelID}, "county_id": {countyFIPS}})
}

// ParcelsAtPoint returns parcels whose geometry contains the point.
func (c *Client) ParcelsAtPoint(ctx context.Context, lat, lng float64) (json.RawMessage, error) {
	return c.get(ctx, url.Values{
		"spatial_intersect": {fmt.Sprintf("POINT(%f %f)", lng, lat)},
		"si_srid":           {"4326"},
	})
}

func (c *Client) get(ctx context.Context, q url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "reportall: rate limit")
	}
	q.Set("client", c.clientKey)
	q.Set("v", apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/parcels?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(resilience.RedactURL(err), "reportall: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(resilience.RedactURL(err), "reportall: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckStatus(resp); err != nil {
		return nil, eris.Wrap(err, "reportall: parcels")
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "reportall: read body")
	}
	if !json.Valid(body) {
		return nil, eris.New("reportall: malformed JSON")
	}
	return body, nil
}

// Centroid returns the center of a WKT geometry's bounding box as lat/lng.
// Parcel geometries are small enough that the box center stands in for a
// true centroid.
func Centroid(geometry string) (lat, lng float64, err error) {
	g, err := wkt.Unmarshal(geometry)
	if err != nil {
		return 0, 0, eris.Wrap(err, "reportall: parse geometry")
	}
	b := g.Bounds()
	if b == nil || b.IsEmpty() {
		return 0, 0, eris.New("reportall: empty geometry")
	}
	return (b.Min(1) + b.Max(1)) / 2, (b.Min(0) + b.Max(0)) / 2, nil
}
