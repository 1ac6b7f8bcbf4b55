// Package census is a client for the Census Bureau geocoder and the ACS
// 5-year county tables.
package census

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
	defaultGeocoderURL = "https://geocoding.geo.census.gov/geocoder"
	defaultDataURL     = "https://api.census.gov/data"
	benchmark          = "Public_AR_Current"
	vintage            = "Current_Current"
)

// Client calls the geocoder and data APIs.
type Client struct {
	apiKey      string
	geocoderURL string
	dataURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// Option configures the Client.
type Option func(*Client)

// WithGeocoderURL overrides the geocoder root.
func WithGeocoderURL(u string) Option { return func(c *Client) { c.geocoderURL = u } }

// WithDataURL overrides the data API root.
func WithDataURL(u string) Option { return func(c *Client) { c.dataURL = u } }

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// DefaultRateLimit is the requests per second allowed when none is set.
const DefaultRateLimit = 20

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

// NewClient creates a Census client. apiKey may be empty for low-volume use.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:      apiKey,
		geocoderURL: defaultGeocoderURL,
		dataURL:     defaultDataURL,
		httpClient:  &http.Client{Timeout: 20 * time.Second},
		limiter:     resilience.NewLimiter(DefaultRateLimit),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// County is a county geography.
type County struct {
	GEOID  string `json:"GEOID"`
	Name   string `json:"NAME"`
	State  string `json:"STATE"`
	County string `json:"COUNTY"`
}

type coordinatesResponse struct {
	Result struct {
		Geographies struct {
			Counties []County `json:"Counties"`
		} `json:"geographies"`
	} `json:"result"`
}

// CountyAt returns the county containing a point. ok is false when the
// point is outside every county.
func (c *Client) CountyAt(ctx context.Context, lat, lng float64) (County, bool, error) {
	q := url.Values{
		"x":         {strconv.FormatFloat(lng, 'f', 6, 64)},
		"y":         {strconv.FormatFloat(lat, 'f', 6, 64)},
		"benchmark": {benchmark},
		"vintage":   {vintage},
		"layers":    {"Counties"},
		"format":    {"json"},
	}
	var out coordinatesResponse
	if err := c.getJSON(ctx, c.geocoderURL+"/geographies/coordinates?"+q.Encode(), &out); err != nil {
		return County{}, false, eris.Wrap(err, "census: geocode coordinates")
	}
	counties := out.Result.Geographies.Counties
	if len(counties) == 0 || counties[0].GEOID == "" {
		return County{}, false, nil
	}
	return counties[0], true, nil
}

// Table fetches variables for one geography and returns the single data row
// keyed by header. forGeo and inGeo follow the API's "for"/"in" syntax.
func (c *Client) Table(ctx context.Context, year int, variables []string, forGeo, inGeo string) (map[string]string, error) {
	rows, err := c.rows(ctx, year, variables, forGeo, inGeo)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Counties lists every county of a state.
func (c *Client) Counties(ctx context.Context, year int, stateFIPS string) ([]County, error) {
	rows, err := c.rows(ctx, year, []string{"NAME"}, "county:*", "state:"+stateFIPS)
	if err != nil {
		return nil, err
	}
	out := make([]County, 0, len(rows))
	for _, r := range rows {
		out = append(out, County{
			GEOID:  r["state"] + r["county"],
			Name:   r["NAME"],
			State:  r["state"],
			County: r["county"],
		})
	}
	return out, nil
}

func (c *Client) rows(ctx context.Context, year int, variables []string, forGeo, inGeo string) ([]map[string]string, error) {
	get := "NAME"
	for _, v := range variables {
		if v != "NAME" {
			get += "," + v
		}
	}
	q := url.Values{"get": {get}, "for": {forGeo}}
	if inGeo != "" {
		q.Set("in", inGeo)
	}
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	u := c.dataURL + "/" + strconv.Itoa(year) + "/acs/acs5?" + q.Encode()

	var table [][]*string
	if err := c.getJSON(ctx, u, &table); err != nil {
		return nil, eris.Wrapf(err, "census: acs5 %d %s", year, forGeo)
	}
	if len(table) < 2 {
		return nil, nil
	}
	header := table[0]
	out := make([]map[string]string, 0, len(table)-1)
	for _, row := range table[1:] {
		m := make(map[string]string, len(header))
		for i, h := range header {
			if h == nil || i >= len(row) || row[i] == nil {
				continue
			}
			m[*h] = *row[i]
		}
		out = append(out, m)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "census: rate limit")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrap(resilience.RedactURL(err), "census: build request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(resilience.RedactURL(err), "census: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckStatus(resp); err != nil {
		return err
	}
	// The data API answers an empty body with 204 when no rows match.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "census: read body")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "census: parse response")
	}
	return nil
}
