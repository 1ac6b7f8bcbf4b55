package normalize

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *float64
	}{
		{"currency string", "$1,234.50", Float(1234.5)},
		{"plain string", "1234.50", Float(1234.5)},
		{"float", 1234.5, Float(1234.5)},
		{"int", 42, Float(42)},
		{"percent string", "12.5%", Float(12.5)},
		{"json number", json.Number("7.25"), Float(7.25)},
		{"padded", "  99 ", Float(99)},
		{"negative", "-3", Float(-3)},
		{"empty", "", nil},
		{"nil", nil, nil},
		{"letters", "abc", nil},
		{"nan string", "NaN", nil},
		{"inf", math.Inf(1), nil},
		{"bool", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToNumber(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestToPercent(t *testing.T) {
	assert.Equal(t, 42.0, *ToPercent(0.42))
	assert.Equal(t, 42.0, *ToPercent(42))
	assert.Equal(t, 100.0, *ToPercent(1))
	assert.Equal(t, 12.34, *ToPercent("0.1234"))
	assert.Equal(t, 0.0, *ToPercent(0))
	assert.Nil(t, ToPercent("n/a"))
}

func TestPickNumber(t *testing.T) {
	got := PickNumber(nil, "", "abc", "$5", 10)
	require.NotNil(t, got)
	assert.Equal(t, 5.0, *got)

	assert.Nil(t, PickNumber())
	assert.Nil(t, PickNumber(nil, "x"))

	zero := PickNumber(0, 3)
	require.NotNil(t, zero)
	assert.Equal(t, 0.0, *zero)

	pos := PickPositive(0, "-1", 3)
	require.NotNil(t, pos)
	assert.Equal(t, 3.0, *pos)
}

func TestPercentChange(t *testing.T) {
	got := PercentChange(Float(110), Float(100))
	require.NotNil(t, got)
	assert.Equal(t, 10.0, *got)

	assert.Nil(t, PercentChange(nil, Float(100)))
	assert.Nil(t, PercentChange(Float(100), nil))
	assert.Nil(t, PercentChange(Float(100), Float(0)))
}

func TestMillageRate(t *testing.T) {
	got := MillageRate(Float(1000), Float(50000))
	require.NotNil(t, got)
	assert.Equal(t, 20.0, *got)

	assert.Nil(t, MillageRate(Float(1000), Float(0)))
	assert.Nil(t, MillageRate(nil, Float(50000)))
	assert.Nil(t, MillageRate(Float(1000), nil))
}

func TestAssessmentRatio(t *testing.T) {
	got := AssessmentRatio(Float(50000), Float(200000))
	require.NotNil(t, got)
	assert.Equal(t, 0.25, *got)

	assert.Nil(t, AssessmentRatio(Float(50000), Float(0)))
	assert.Nil(t, AssessmentRatio(nil, Float(1)))
}

func TestAcres(t *testing.T) {
	acres := AcresFromSqft(Float(87120))
	require.NotNil(t, acres)
	assert.Equal(t, 2.0, *acres)

	sqft := SqftFromAcres(Float(0.5))
	require.NotNil(t, sqft)
	assert.Equal(t, 21780.0, *sqft)

	assert.Nil(t, AcresFromSqft(Float(0)))
	assert.Nil(t, SqftFromAcres(nil))
}

func TestToDate(t *testing.T) {
	assert.Equal(t, "2021-03-04", ToDate("2021-03-04T00:00:00"))
	assert.Equal(t, "2021-03-04", ToDate("2021/03/04"))
	assert.Equal(t, "2021-03-04", ToDate("03/04/2021"))
	assert.Equal(t, "2021-03-04", ToDate("20210304"))
	assert.Equal(t, "", ToDate("last tuesday"))
	assert.Equal(t, "", ToDate(nil))
}

func TestPickString(t *testing.T) {
	assert.Equal(t, "b", PickString(nil, "  ", "b", "c"))
	assert.Equal(t, "12", PickString(12))
	assert.Equal(t, "", PickString())
}
