// Package datausa is a client for the Data USA time-series API.
package datausa

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/property-resolver/internal/resilience"
)

const defaultBaseURL = "https://datausa.io/api"

// Measures used for county profiles.
const (
	MeasurePopulation    = "Population"
	MeasureIncome        = "Household Income by Race"
	MeasurePropertyValue = "Property Value"
	MeasurePovertyRate   = "Poverty Rate"
)

// Client calls the data endpoint.
type Client struct {
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

// NewClient creates a Data USA client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(5, 5),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Point is one yearly observation.
type Point struct {
	Year  int
	Value float64
}

// CountyGeoID converts a 5-digit FIPS code to a Data USA county geography.
func CountyGeoID(fips string) string { return "05000US" + fips }

type dataResponse struct {
	Data []map[string]any `json:"data"`
}

// Series returns the yearly values of measure for geoID, newest first.
func (c *Client) Series(ctx context.Context, geoID, measure string) ([]Point, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "datausa: rate limit")
	}
	q := url.Values{"Geography": {geoID}, "measure": {measure}, "drilldowns": {"Year"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/data?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(resilience.RedactURL(err), "datausa: build request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(resilience.RedactURL(err), "datausa: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckStatus(resp); err != nil {
		return nil, eris.Wrapf(err, "datausa: %s", measure)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "datausa: read body")
	}
	var out dataResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "datausa: parse response")
	}

	// Rows arrive per year, sometimes split by a sub-dimension; keep the
	// first value seen for each year.
	byYear := make(map[int]float64)
	for _, row := range out.Data {
		year, ok := intOf(row["ID Year"])
		if !ok {
			year, ok = intOf(row["Year"])
		}
		val, vok := row[measure].(float64)
		if !ok || !vok {
			continue
		}
		if _, seen := byYear[year]; !seen {
			byYear[year] = val
		}
	}
	points := make([]Point, 0, len(byYear))
	for y, v := range byYear {
		points = append(points, Point{Year: y, Value: v})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Year > points[j].Year })
	return points, nil
}

// LatestPair returns the newest point and the point for the year before it.
// prev is nil when that year is absent.
func LatestPair(points []Point) (cur, prev *Point) {
	if len(points) == 0 {
		return nil, nil
	}
	cur = &points[0]
	for i := 1; i < len(points); i++ {
		if points[i].Year == cur.Year-1 {
			return cur, &points[i]
		}
	}
	return cur, nil
}

func intOf(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil
	}
	return 0, false
}
