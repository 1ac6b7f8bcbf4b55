package resolve

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-resolver/internal/config"
	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/provider"
)

func TestRegisterProviders_OpensShareRateLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `{"property": []}`)
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.ATTOM = config.ProviderConfig{BaseURL: srv.URL, RateLimit: 1}
	reg := provider.NewRegistry(keys{CredentialATTOM: "k"})
	RegisterProviders(reg, cfg, NewGuard(config.LookupConfig{MaxAttempts: 1}, nil))

	ctx := context.Background()
	first, err := reg.Open(ctx, provider.NameATTOM)
	require.NoError(t, err)
	_, err = first.ByAddress(ctx, "123 Main St, Springfield, IL 62701", normalize.AddressParts{})
	require.NoError(t, err)

	// A second request gets a fresh client but the same one-per-second budget.
	second, err := reg.Open(ctx, provider.NameATTOM)
	require.NoError(t, err)
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = second.ByAddress(short, "123 Main St, Springfield, IL 62701", normalize.AddressParts{})
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRateOr(t *testing.T) {
	assert.Equal(t, 3.0, rateOr(3, 10))
	assert.Equal(t, 10.0, rateOr(0, 10))
}
