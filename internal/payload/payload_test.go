package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
	"property": [{
		"identifier": {"apn": "12-345", "fips": "17167"},
		"location": {"latitude": "39.78", "geoIdV4": {"CO": "abc123"}},
		"area": {"countrySecSubd": "Sangamon County"}
	}]
}`

func decode(t *testing.T) any {
	t.Helper()
	doc, err := Decode([]byte(sample))
	require.NoError(t, err)
	return doc
}

func TestGet(t *testing.T) {
	doc := decode(t)

	assert.Equal(t, "12-345", Get(doc, "property.0.identifier.apn"))
	assert.Equal(t, "Sangamon County", Get(doc, "property.0.area.countrysecsubd"))
	assert.Nil(t, Get(doc, "property.1.identifier"))
	assert.Nil(t, Get(doc, "property.x"))
	assert.Nil(t, Get(doc, "missing.path"))
}

func TestFirst(t *testing.T) {
	doc := decode(t)
	assert.Equal(t, "17167", First(doc, "property.0.identifier.countyFips", "property.0.identifier.fips"))
	assert.Nil(t, First(doc, "nope", "also.nope"))
}

func TestDecode_PreservesNumbers(t *testing.T) {
	doc, err := Decode([]byte(`{"id": 184713191234567890}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("184713191234567890"), Get(doc, "id"))

	_, err = Decode([]byte(`{bad`))
	assert.Error(t, err)
}

func TestFindKey(t *testing.T) {
	doc := decode(t)

	v, ok := FindKey(doc, []string{"geoidv4"}, MaxSearchDepth)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"CO": "abc123"}, v)

	_, ok = FindKey(doc, []string{"geoIdV4"}, 2)
	assert.False(t, ok, "geoIdV4 is three levels below the root")

	_, ok = FindKey(doc, []string{"nothing"}, MaxSearchDepth)
	assert.False(t, ok)
}

func TestFindKey_PrefersEarlierKeys(t *testing.T) {
	doc := map[string]any{"fips": "17167", "geoid": "17167000100"}
	v, ok := FindKey(doc, []string{"geoid", "fips"}, MaxSearchDepth)
	require.True(t, ok)
	assert.Equal(t, "17167000100", v)
}

func TestFindKey_SkipsEmptyValues(t *testing.T) {
	doc := map[string]any{"apn": "", "nested": map[string]any{"apn": "999"}}
	v, ok := FindKey(doc, []string{"apn"}, MaxSearchDepth)
	require.True(t, ok)
	assert.Equal(t, "999", v)
}

func TestFindKey_Cycle(t *testing.T) {
	a := map[string]any{}
	b := map[string]any{"parent": a}
	a["child"] = b

	_, ok := FindKey(a, []string{"missing"}, 100)
	assert.False(t, ok)
}
