// Package fred reads series observations from the St. Louis Fed FRED API.
package fred

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-resolver/internal/resilience"
)

const defaultBaseURL = "https://api.stlouisfed.org/fred"

// SeriesTreasury10Y is the daily 10-year constant-maturity treasury yield.
const SeriesTreasury10Y = "DGS10"

// Client reads FRED series.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// NewClient creates a FRED client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Observation is one dated value.
type Observation struct {
	Date  string
	Value float64
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// Latest returns the most recent reported value of a series. FRED marks
// missing days with "."; those are skipped.
func (c *Client) Latest(ctx context.Context, seriesID string) (*Observation, error) {
	q := url.Values{
		"series_id":  {seriesID},
		"api_key":    {c.apiKey},
		"file_type":  {"json"},
		"sort_order": {"desc"},
		"limit":      {"10"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/series/observations?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(resilience.RedactURL(err), "fred: build request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(resilience.RedactURL(err), "fred: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := resilience.CheckStatus(resp); err != nil {
		return nil, eris.Wrapf(err, "fred: %s", seriesID)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fred: read body")
	}
	var out observationsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "fred: parse response")
	}
	for _, o := range out.Observations {
		v, err := strconv.ParseFloat(o.Value, 64)
		if err != nil {
			continue
		}
		return &Observation{Date: o.Date, Value: v}, nil
	}
	return nil, nil
}
