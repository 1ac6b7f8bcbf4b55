package census

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountyAt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geographies/coordinates", r.URL.Path)
		assert.Equal(t, "-89.650000", r.URL.Query().Get("x"))
		assert.Equal(t, "39.780000", r.URL.Query().Get("y"))
		_, _ = io.WriteString(w, `{"result": {"geographies": {"Counties": [
			{"GEOID": "17167", "NAME": "Sangamon County", "STATE": "17", "COUNTY": "167"}
		]}}}`)
	}))
	defer srv.Close()

	c := NewClient("", WithGeocoderURL(srv.URL))
	county, ok, err := c.CountyAt(context.Background(), 39.78, -89.65)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "17167", county.GEOID)
	assert.Equal(t, "Sangamon County", county.Name)
}

func TestCountyAt_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"result": {"geographies": {}}}`)
	}))
	defer srv.Close()

	_, ok, err := NewClient("", WithGeocoderURL(srv.URL)).CountyAt(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCountyStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2023/acs/acs5", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "county:167", q.Get("for"))
		assert.Equal(t, "state:17", q.Get("in"))
		assert.Equal(t, "k", q.Get("key"))
		_, _ = io.WriteString(w, `[
			["NAME","B01003_001E","B19013_001E","B17001_001E","B17001_002E","B23025_004E","B25077_001E","B25031_004E","state","county"],
			["Sangamon County, Illinois","196343","68662","190000","24700","96000","165400","-666666666","17","167"]
		]`)
	}))
	defer srv.Close()

	c := NewClient("k", WithDataURL(srv.URL))
	s, err := c.CountyStats(context.Background(), 2023, "17167")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "Sangamon County, Illinois", s.Name)
	assert.Equal(t, 196343.0, *s.Population)
	assert.Equal(t, 68662.0, *s.MedianIncome)
	assert.InDelta(t, 13.0, *s.PovertyRate, 1e-9)
	assert.Nil(t, s.TwoBedroomRent, "annotation codes are missing data")
}

func TestCountyStats_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s, err := NewClient("", WithDataURL(srv.URL)).CountyStats(context.Background(), 2023, "17167")
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = NewClient("").CountyStats(context.Background(), 2023, "171")
	assert.Error(t, err)
}

func TestCounties(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "NAME", r.URL.Query().Get("get"))
		assert.Equal(t, "county:*", r.URL.Query().Get("for"))
		_, _ = io.WriteString(w, `[["NAME","state","county"],["Doña Ana County, New Mexico","35","013"],["Bernalillo County, New Mexico","35","001"]]`)
	}))
	defer srv.Close()

	counties, err := NewClient("", WithDataURL(srv.URL)).Counties(context.Background(), 2023, "35")
	require.NoError(t, err)
	require.Len(t, counties, 2)
	assert.Equal(t, "35013", counties[0].GEOID)
	assert.Equal(t, "Doña Ana County, New Mexico", counties[0].Name)
}
