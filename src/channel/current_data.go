package channel

import (
	"maps"
	"slices"
)

// CurrentData is a read-only snapshot of the latest value of each channel,
// valid for a single update tick. Values are raw meter readings (Wh for
// energy counters). A channel that has not produced data yet is absent.
type CurrentData struct {
	values map[Address]float64
}

// NewCurrentData creates a snapshot from a copy of values
func NewCurrentData(values map[Address]float64) CurrentData {
	return CurrentData{values: maps.Clone(values)}
}

// Value returns the value of a channel and whether it is present
func (d CurrentData) Value(a Address) (float64, bool) {
	v, ok := d.values[a]
	return v, ok
}

// ValueOrZero returns the value of a channel, or 0 if it is absent
func (d CurrentData) ValueOrZero(a Address) float64 {
	return d.values[a]
}

// Len returns the number of channels present in the snapshot
func (d CurrentData) Len() int {
	return len(d.values)
}

// Addresses returns the present channels in sorted order
func (d CurrentData) Addresses() []Address {
	addrs := slices.Collect(maps.Keys(d.values))
	slices.SortFunc(addrs, Compare)
	return addrs
}

// AllComponents returns a copy of the values keyed by "{componentId}/{property}"
func (d CurrentData) AllComponents() map[string]float64 {
	out := make(map[string]float64, len(d.values))
	for a, v := range d.values {
		out[a.String()] = v
	}
	return out
}
