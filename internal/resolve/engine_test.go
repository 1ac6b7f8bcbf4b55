package resolve

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-resolver/internal/cascade"
	"github.com/sells-group/property-resolver/internal/config"
	"github.com/sells-group/property-resolver/internal/housing"
	"github.com/sells-group/property-resolver/internal/normalize"
	"github.com/sells-group/property-resolver/internal/property"
	"github.com/sells-group/property-resolver/internal/provider"
	"github.com/sells-group/property-resolver/internal/reconcile"
	"github.com/sells-group/property-resolver/pkg/census"
	"github.com/sells-group/property-resolver/pkg/fred"
)

type keys map[string]string

func (k keys) Key(_ context.Context, name string) (string, error) { return k[name], nil }

type stubSource struct {
	mu      sync.Mutex
	address []property.Record
	addrErr error
	block   bool
	calls   int
}

func (s *stubSource) Name() string        { return "stub" }
func (s *stubSource) DisplayName() string { return "Stub" }

func (s *stubSource) ByParcel(context.Context, string, string) ([]property.Record, error) {
	return nil, nil
}

func (s *stubSource) ByAddress(ctx context.Context, _ string, _ normalize.AddressParts) ([]property.Record, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return nil, &property.ProviderError{Provider: "stub", Step: "address", Err: ctx.Err()}
	}
	if s.addrErr != nil {
		return nil, s.addrErr
	}
	return s.address, nil
}

func (s *stubSource) ByLocation(context.Context, float64, float64, float64) ([]property.Record, error) {
	return nil, nil
}

type stubCensus struct{}

func (stubCensus) CountyAt(context.Context, float64, float64) (census.County, bool, error) {
	return census.County{}, false, nil
}

func (stubCensus) Counties(context.Context, int, string) ([]census.County, error) { return nil, nil }

func (stubCensus) CountyStats(_ context.Context, year int, fips string) (*census.CountyStats, error) {
	if fips != "17167" {
		return nil, nil
	}
	pop := 196000.0
	if year == 2022 {
		pop = 195000.0
	}
	return &census.CountyStats{Year: year, Population: &pop, MedianIncome: normalize.Float(68000)}, nil
}

type stubTreasury struct {
	obs *fred.Observation
	err error
}

func (s stubTreasury) Latest(context.Context, string) (*fred.Observation, error) { return s.obs, s.err }

type countingRecorder struct{ found, missed int }

func (r *countingRecorder) Resolved(_ string, found bool) {
	if found {
		r.found++
	} else {
		r.missed++
	}
}

func springfield() property.Record {
	return property.Record{
		Identifier: property.IdentifierBlock{APN: "1428126001", FIPS: "17167"},
		Address: property.AddressBlock{
			Line1: "123 MAIN ST", City: "SPRINGFIELD", State: "IL", Zip: "62701",
		},
		Assessment: &property.AssessmentBlock{Assessed: normalize.Float(50000)},
		Tax:        &property.TaxBlock{Amount: normalize.Float(1000)},
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Lookup = config.LookupConfig{Provider: "stub", TimeoutSecs: 5, RadiusMiles: 2}
	cfg.Area.ACSYear = 2023
	return cfg
}

func newEngine(t *testing.T, src *stubSource, deps Deps) *Engine {
	t.Helper()
	reg := provider.NewRegistry(keys{"stub.key": "secret"})
	reg.Register("stub", "stub.key", func(string) provider.Source { return src })
	reg.Register("nokey", "nokey.key", func(string) provider.Source { return src })
	deps.Registry = reg
	return New(testConfig(), deps)
}

func TestResolveProperty_Step1(t *testing.T) {
	src := &stubSource{address: []property.Record{springfield()}}
	rec := &countingRecorder{}
	e := newEngine(t, src, Deps{
		Census:   stubCensus{},
		Housing:  housing.NewTable(map[string]property.HousingCrisisMetrics{"IL": {AffordableUnitsPer100: normalize.Float(24)}}),
		Recorder: rec,
	})

	res, err := e.ResolveProperty(context.Background(), "", property.LookupContext{Address: "123 Main St, Springfield, IL 62701"})
	require.NoError(t, err)

	assert.True(t, res.APNFound)
	require.NotNil(t, res.APNLookupSource)
	assert.Equal(t, property.SourceAddress, *res.APNLookupSource)
	assert.Equal(t, 196000.0, *res.DemographicsEconomics.Population)
	assert.Equal(t, 0.51, *res.DemographicsEconomics.PopulationChange)
	assert.Equal(t, "census_acs", res.DemographicsEconomics.Source)
	assert.Equal(t, property.HousingCritical, res.HousingCrisisMetrics.Status())
	assert.Equal(t, 20.0, *res.Financials.MillageRate)
	assert.Nil(t, res.Financials.TreasuryYield10Y)
	assert.Equal(t, 196000.0, res.APISnapshot[property.FieldPopulation])
	assert.Equal(t, "Critical Shortage", res.APISnapshot[property.FieldHousingStatus])
	assert.Equal(t, 1, rec.found)
}

func TestResolveProperty_Taxes(t *testing.T) {
	src := &stubSource{address: []property.Record{springfield()}}
	e := newEngine(t, src, Deps{
		Census:   stubCensus{},
		Treasury: stubTreasury{obs: &fred.Observation{Date: "2026-10-09", Value: 4.12}},
	})

	res, err := e.ResolveProperty(context.Background(), "stub", property.LookupContext{Address: "123 Main St", Intent: property.IntentTaxes})
	require.NoError(t, err)

	assert.Equal(t, 4.12, *res.Financials.TreasuryYield10Y)
	assert.Equal(t, "2026-10-09", res.Financials.TreasuryAsOf)
	assert.Nil(t, res.DemographicsEconomics.Population, "taxes intent skips demographics")
	assert.Equal(t, 4.12, res.APISnapshot[property.FieldTreasuryYield])
}

func TestResolveProperty_TreasuryFailureDegrades(t *testing.T) {
	src := &stubSource{address: []property.Record{springfield()}}
	e := newEngine(t, src, Deps{Treasury: stubTreasury{err: errors.New("fred down")}})

	res, err := e.ResolveProperty(context.Background(), "stub", property.LookupContext{Address: "123 Main St", Intent: property.IntentTaxes})
	require.NoError(t, err)
	assert.True(t, res.APNFound)
	assert.Nil(t, res.Financials.TreasuryYield10Y)
}

func TestResolveProperty_NotFound(t *testing.T) {
	rec := &countingRecorder{}
	e := newEngine(t, &stubSource{}, Deps{Recorder: rec})

	res, err := e.ResolveProperty(context.Background(), "stub", property.LookupContext{Address: "1 Nowhere Rd"})
	require.NoError(t, err)
	assert.False(t, res.APNFound)
	assert.Equal(t, "No APN found via address or coordinates using Stub.", res.Message)
	assert.Equal(t, 1, rec.missed)
}

func TestResolveProperty_Errors(t *testing.T) {
	src := &stubSource{}
	e := newEngine(t, src, Deps{})

	_, err := e.ResolveProperty(context.Background(), "stub", property.LookupContext{})
	var val *property.ValidationError
	require.ErrorAs(t, err, &val)
	assert.Zero(t, src.calls, "validation precedes any provider call")

	_, err = e.ResolveProperty(context.Background(), "nokey", property.LookupContext{Address: "123 Main St"})
	var cfgErr *property.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "nokey.key", cfgErr.Credential)

	_, err = e.ResolveProperty(context.Background(), "bogus", property.LookupContext{Address: "123 Main St"})
	require.ErrorAs(t, err, &val)
}

func TestResolveProperty_Timeout(t *testing.T) {
	src := &stubSource{block: true}
	e := newEngine(t, src, Deps{})
	e.cfg.Lookup.TimeoutSecs = 1

	_, err := e.ResolveProperty(context.Background(), "stub", property.LookupContext{Address: "123 Main St"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestResolve_SlowStepIsNoMatch(t *testing.T) {
	src := &stubSource{block: true}
	e := newEngine(t, src, Deps{})
	e.cfg.Lookup.StepTimeoutSecs = 1

	resp, err := e.Resolve(context.Background(), Request{Provider: "stub", Context: property.LookupContext{Address: "123 Main St"}})
	require.NoError(t, err)
	assert.False(t, resp.APNFound)
	require.NotEmpty(t, resp.Steps)
	assert.Equal(t, cascade.StateAddress, resp.Steps[0].State)
	assert.Equal(t, "provider stub: address lookup unavailable (timed out)", resp.Steps[0].Error)
}

func TestResolve_StepErrorsOmitTransportDetail(t *testing.T) {
	src := &stubSource{addrErr: &property.ProviderError{
		Provider:   "stub",
		Step:       "address",
		StatusCode: 503,
		Err:        errors.New(`Get "https://stub.test/lookup?id=SECRET-KEY": unexpected response`),
	}}
	e := newEngine(t, src, Deps{})

	resp, err := e.Resolve(context.Background(), Request{Provider: "stub", Context: property.LookupContext{Address: "123 Main St"}})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Steps)
	for _, st := range resp.Steps {
		assert.NotContains(t, st.Error, "SECRET-KEY")
	}
	assert.Equal(t, "provider stub: address lookup unavailable (status 503)", resp.Steps[0].Error)
}

func TestResolve_Reconciles(t *testing.T) {
	src := &stubSource{address: []property.Record{springfield()}}
	e := newEngine(t, src, Deps{Defaults: map[string]any{property.FieldCity: "Enter City"}})

	resp, err := e.Resolve(context.Background(), Request{
		Context: property.LookupContext{Address: "123 Main St", Intent: property.IntentTaxes},
		Form: map[string]any{
			property.FieldCity:  "enter city",
			property.FieldOwner: "",
			property.FieldAPN:   "99-999",
		},
		APISnapshot: property.Snapshot{property.FieldAPN: "11-111"},
	})
	require.NoError(t, err)

	assert.Equal(t, "SPRINGFIELD", resp.Applied[property.FieldCity])
	assert.NotContains(t, resp.Applied, property.FieldAPN, "manual edit is kept")
	assert.Equal(t, "11-111", resp.NextAPISnapshot[property.FieldAPN])
	assert.Equal(t, "SPRINGFIELD", resp.NextAPISnapshot[property.FieldCity])
	assert.NotEmpty(t, resp.Steps)
	assert.Equal(t, cascade.StateAddress, resp.Steps[0].State)
}

func TestResolve_NoForm(t *testing.T) {
	e := newEngine(t, &stubSource{address: []property.Record{springfield()}}, Deps{})
	resp, err := e.Resolve(context.Background(), Request{Context: property.LookupContext{Address: "123 Main St", Intent: property.IntentTaxes}})
	require.NoError(t, err)
	assert.Nil(t, resp.Applied)
	assert.Nil(t, resp.NextAPISnapshot)
}

func TestResolveAreaMetrics(t *testing.T) {
	e := newEngine(t, &stubSource{}, Deps{Census: stubCensus{}})

	m, err := e.ResolveAreaMetrics(context.Background(), "17167")
	require.NoError(t, err)
	assert.Equal(t, 196000.0, *m.Population)
	assert.Equal(t, "census_acs", m.Source)

	m, err = e.ResolveAreaMetrics(context.Background(), "06037")
	require.NoError(t, err)
	assert.Equal(t, 12, m.Missing())

	_, err = e.ResolveAreaMetrics(context.Background(), "")
	var val *property.ValidationError
	assert.ErrorAs(t, err, &val)
}

func TestReconcileField_UsesEngineDefaults(t *testing.T) {
	e := newEngine(t, &stubSource{}, Deps{Defaults: map[string]any{"city": "Enter City"}})
	d := e.ReconcileField("city", "Peoria", "Enter City", nil, nil)
	assert.True(t, d.Apply)
	assert.Equal(t, reconcile.ReasonDefault, d.Reason)
	assert.Equal(t, "Peoria", d.Next["city"])
}
