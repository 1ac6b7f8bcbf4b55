package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddress(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		parts AddressParts
		want  string
	}{
		{
			name: "suffix and directional",
			raw:  "123 North Main Street, Springfield, IL 62701",
			want: "123 N MAIN ST, SPRINGFIELD, IL 62701",
		},
		{
			name:  "appends known parts",
			raw:   "123 Main St.",
			parts: AddressParts{City: "Springfield", State: "Illinois", Zip: "62701-0001"},
			want:  "123 MAIN ST, SPRINGFIELD, IL 62701",
		},
		{
			name:  "does not duplicate parts",
			raw:   "123 Main St, Springfield, IL 62701",
			parts: AddressParts{City: "springfield", State: "IL", Zip: "62701"},
			want:  "123 MAIN ST, SPRINGFIELD, IL 62701",
		},
		{
			name: "unit marker",
			raw:  "55 Lake Rd #4",
			want: "55 LAKE RD 4",
		},
		{
			name: "empty",
			raw:  "  ",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Address(tt.raw, tt.parts))
		})
	}
}

func TestSplitAddress(t *testing.T) {
	l1, l2 := SplitAddress("123 Main St, Springfield, IL 62701")
	assert.Equal(t, "123 Main St", l1)
	assert.Equal(t, "Springfield, IL 62701", l2)

	l1, l2 = SplitAddress("123 Main St")
	assert.Equal(t, "123 Main St", l1)
	assert.Equal(t, "", l2)
}

func TestZipsAndNumbers(t *testing.T) {
	assert.Equal(t, []string{"62701"}, ZipsIn("123 Main St, Springfield, IL 62701-1234"))
	assert.Nil(t, ZipsIn("no zip here"))
	assert.Equal(t, []string{"123", "62701"}, NumbersIn("123 Main St, IL 62701"))
}

func TestCountyName(t *testing.T) {
	assert.Equal(t, "sangamon", CountyName("Sangamon County"))
	assert.Equal(t, "orleans", CountyName("Orleans Parish"))
	assert.Equal(t, "donaana", CountyName("Doña Ana County"))
	assert.Equal(t, "donaana", CountyName("DONA ANA"))
	assert.Equal(t, "stlouis", CountyName("St. Louis County, Missouri"))
	assert.Equal(t, "juneau", CountyName("Juneau City and Borough"))
	assert.Equal(t, "bethel", CountyName("Bethel Census Area"))
	assert.Equal(t, "anchorage", CountyName("Anchorage Municipality"))
}

func TestContainsWord(t *testing.T) {
	assert.True(t, containsWord("SPRINGFIELD, IL 62701", "IL"))
	assert.False(t, containsWord("ILLINOIS AVE", "IL"))
	assert.False(t, containsWord("", "IL"))
}
