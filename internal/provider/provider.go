// Package provider adapts external property data services to one lookup
// interface returning typed property records.
package provider

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/property"
)

// Lookup step names, used in logs, metrics, and ProviderError.Step.
const (
	StepParcel            = "apn"
	StepAddress           = "address"
	StepNormalizedAddress = "normalized_address"
	StepLocation          = "lat_lng"
	StepDetail            = "detail"
	StepExpanded          = "expanded"
	StepParcelReenrich    = "parcel_reenrich"
	StepCommunity         = "community"
	StepGeoLookup         = "geo_lookup"
)

// Source is a property data provider. Each lookup returns every candidate
// record the provider matched; an empty slice means no match. A provider
// that cannot search one way returns nil, nil.
type Source interface {
	// Name is the registry key, such as "attom".
	Name() string
	// DisplayName is the name users see in messages, such as "ATTOM".
	DisplayName() string
	ByParcel(ctx context.Context, apn, fips string) ([]property.Record, error)
	ByAddress(ctx context.Context, address string, parts normalize.AddressParts) ([]property.Record, error)
	ByLocation(ctx context.Context, lat, lng, radiusMiles float64) ([]property.Record, error)
}

// Enricher is implemented by sources with follow-up endpoints that return
// more fields for an already identified property.
type Enricher interface {
	// Detail fetches the full record by the provider's own ID.
	Detail(ctx context.Context, rec property.Record) (*property.Record, error)
	// Expanded fetches expanded profiles by the record's address.
	Expanded(ctx context.Context, rec property.Record) ([]property.Record, error)
}

// KeyResolver supplies provider credentials by config key.
type KeyResolver interface {
	Key(ctx context.Context, name string) (string, error)
}

// Factory builds a Source from its credential.
type Factory func(apiKey string) Source

type registration struct {
	credential string
	factory    Factory
}

// Registry maps provider names to factories and the credential each needs.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
	keys    KeyResolver
}

// NewRegistry creates an empty registry resolving credentials with keys.
func NewRegistry(keys KeyResolver) *Registry {
	return &Registry{entries: make(map[string]registration), keys: keys}
}

// Register adds a provider. credential is the config key of its API key.
func (r *Registry) Register(name, credential string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[strings.ToLower(name)] = registration{credential: credential, factory: f}
}

// Open builds the named provider. A missing credential is a
// *property.ConfigError naming it.
func (r *Registry) Open(ctx context.Context, name string) (Source, error) {
	r.mu.RLock()
	reg, ok := r.entries[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, &property.ValidationError{Reason: "unknown provider " + name}
	}
	key, err := r.keys.Key(ctx, reg.credential)
	if err != nil {
		return nil, eris.Wrapf(err, "provider: resolve %s credential", name)
	}
	if strings.TrimSpace(key) == "" {
		return nil, &property.ConfigError{Credential: reg.credential}
	}
	return reg.factory(key), nil
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
