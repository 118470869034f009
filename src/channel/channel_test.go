package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress_String(t *testing.T) {
	a := NewAddress(Sum, "GridSellActiveEnergy")
	assert.Equal(t, "_sum/GridSellActiveEnergy", a.String())
}

func TestAddress_EqualityByValue(t *testing.T) {
	a := NewAddress(Sum, "ProductionActiveEnergy")
	b := Address{ComponentID: "_sum", Property: "ProductionActiveEnergy"}
	assert.Equal(t, a, b)

	m := map[Address]float64{a: 1}
	assert.Equal(t, 1.0, m[b])
}

func TestAddress_Topic(t *testing.T) {
	a := NewAddress(Sum, "ProductionActiveEnergy")
	assert.Equal(t, "openems/edge0/_sum/ProductionActiveEnergy", a.Topic("openems/edge0"))
	assert.Equal(t, "openems/edge0/_sum/ProductionActiveEnergy", a.Topic("openems/edge0/"))
	assert.Equal(t, "_sum/ProductionActiveEnergy", a.Topic(""))
}

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("meter0/ActivePower")
	require.NoError(t, err)
	assert.Equal(t, NewAddress("meter0", "ActivePower"), a)
}

func TestParseAddress_Invalid(t *testing.T) {
	for _, s := range []string{"", "meter0", "/ActivePower", "meter0/", "a/b/c"} {
		_, err := ParseAddress(s)
		assert.Error(t, err, s)
	}
}

func TestCurrentData_AbsentChannel(t *testing.T) {
	grid := NewAddress(Sum, "GridSellActiveEnergy")
	production := NewAddress(Sum, "ProductionActiveEnergy")
	data := NewCurrentData(map[Address]float64{production: 5000})

	v, ok := data.Value(grid)
	assert.False(t, ok)
	assert.Equal(t, 0.0, v)
	assert.Equal(t, 0.0, data.ValueOrZero(grid))
	assert.Equal(t, 5000.0, data.ValueOrZero(production))
	assert.Equal(t, 1, data.Len())
}

func TestCurrentData_CopiesInput(t *testing.T) {
	production := NewAddress(Sum, "ProductionActiveEnergy")
	values := map[Address]float64{production: 5000}
	data := NewCurrentData(values)

	values[production] = 1
	assert.Equal(t, 5000.0, data.ValueOrZero(production))

	all := data.AllComponents()
	all["_sum/ProductionActiveEnergy"] = 2
	assert.Equal(t, 5000.0, data.ValueOrZero(production))
}

func TestCurrentData_AllComponents(t *testing.T) {
	data := NewCurrentData(map[Address]float64{
		NewAddress(Sum, "GridSellActiveEnergy"):   2000,
		NewAddress(Sum, "ProductionActiveEnergy"): 10000,
	})
	assert.Equal(t, map[string]float64{
		"_sum/GridSellActiveEnergy":   2000,
		"_sum/ProductionActiveEnergy": 10000,
	}, data.AllComponents())
}

func TestCurrentData_AddressesSorted(t *testing.T) {
	data := NewCurrentData(map[Address]float64{
		NewAddress("meter0", "ActivePower"):       1,
		NewAddress(Sum, "ProductionActiveEnergy"): 2,
		NewAddress(Sum, "GridSellActiveEnergy"):   3,
	})
	assert.Equal(t, []Address{
		NewAddress(Sum, "GridSellActiveEnergy"),
		NewAddress(Sum, "ProductionActiveEnergy"),
		NewAddress("meter0", "ActivePower"),
	}, data.Addresses())
}

func TestCurrentData_ZeroValue(t *testing.T) {
	var data CurrentData
	assert.Equal(t, 0, data.Len())
	assert.Equal(t, 0.0, data.ValueOrZero(NewAddress(Sum, "GridSellActiveEnergy")))
	assert.Empty(t, data.AllComponents())
}
