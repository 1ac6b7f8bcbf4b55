package rentcast

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-resolver/internal/resilience"
)

func TestPropertiesByAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/properties", r.URL.Path)
		assert.Equal(t, "rk", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "123 Main St, Springfield, IL 62701", r.URL.Query().Get("address"))
		_, _ = io.WriteString(w, `[{"id": "123-Main-St"}]`)
	}))
	defer srv.Close()

	c := NewClient("rk", WithBaseURL(srv.URL))
	body, err := c.PropertiesByAddress(context.Background(), "123 Main St, Springfield, IL 62701")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id": "123-Main-St"}]`, string(body))
}

func TestPropertiesNear(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "latitude=39.780000&limit=10&longitude=-89.650000&radius=2", r.URL.RawQuery)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient("rk", WithBaseURL(srv.URL))
	_, err := c.PropertiesNear(context.Background(), 39.78, -89.65, 2, 10)
	require.NoError(t, err)
}

func TestProperty_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/properties/abc", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("rk", WithBaseURL(srv.URL))
	_, err := c.Property(context.Background(), "abc")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, resilience.StatusCode(err))
	assert.False(t, resilience.IsTransient(err))
}
