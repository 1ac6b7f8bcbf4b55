package datausa

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data", r.URL.Path)
		assert.Equal(t, "05000US17167", r.URL.Query().Get("Geography"))
		assert.Equal(t, "Population", r.URL.Query().Get("measure"))
		_, _ = io.WriteString(w, `{"data": [
			{"ID Year": 2021, "Year": "2021", "Population": 196000},
			{"ID Year": 2022, "Year": "2022", "Population": 195000},
			{"ID Year": 2022, "Year": "2022", "Population": 1},
			{"Year": "2019", "Population": 197000},
			{"Year": "bogus", "Population": 5}
		]}`)
	}))
	defer srv.Close()

	pts, err := NewClient(WithBaseURL(srv.URL)).Series(context.Background(), CountyGeoID("17167"), MeasurePopulation)
	require.NoError(t, err)
	assert.Equal(t, []Point{{2022, 195000}, {2021, 196000}, {2019, 197000}}, pts)

	cur, prev := LatestPair(pts)
	require.NotNil(t, prev)
	assert.Equal(t, 2022, cur.Year)
	assert.Equal(t, 2021, prev.Year)
}

func TestLatestPair_Gap(t *testing.T) {
	cur, prev := LatestPair([]Point{{2022, 1}, {2020, 2}})
	assert.Equal(t, 2022, cur.Year)
	assert.Nil(t, prev)

	cur, prev = LatestPair(nil)
	assert.Nil(t, cur)
	assert.Nil(t, prev)
}

func TestSeries_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("measure") == "bad" {
			_, _ = io.WriteString(w, `{"data": [`)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Series(context.Background(), "05000US17167", MeasureIncome)
	assert.Error(t, err)
	_, err = c.Series(context.Background(), "05000US17167", "bad")
	assert.Error(t, err)
}
