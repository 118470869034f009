// Package widget defines the contract between dashboard widgets and the
// subscription layer that feeds them.
package widget

import (
	"slices"

	"github.com/ryansname/savedemissions/src/channel"
)

// Widget declares the channels it needs and derives its state from snapshots.
//
// ChannelAddresses is called once before the first snapshot and must return
// the same non-empty set for the widget's lifetime. OnCurrentData is called
// once per tick and never concurrently for the same instance.
type Widget interface {
	ChannelAddresses() []channel.Address
	OnCurrentData(data channel.CurrentData)
}

// Presenter is a Widget whose derived values can be read for display
type Presenter interface {
	Widget

	// ID returns a stable identifier, unique among the running widgets
	ID() string

	// Name returns a human readable title
	Name() string

	// Readings returns a copy of the derived values computed by the last tick
	Readings() []Reading
}

// Reading is a single derived value exposed for display
type Reading struct {
	Key       string   `json:"key"`
	Name      string   `json:"name"`
	Unit      string   `json:"unit,omitempty"`
	Class     string   `json:"-"` // Home Assistant device class, may be empty
	Precision int      `json:"precision"`
	Value     *float64 `json:"value"` // nil when undefined
}

// ChannelSet returns the sorted, deduplicated union of the declared channel lists
func ChannelSet(declared ...[]channel.Address) []channel.Address {
	addrs := slices.Concat(declared...)
	slices.SortFunc(addrs, channel.Compare)
	return slices.Compact(addrs)
}

// copyValue returns a pointer to a copy of v, or nil
func copyValue(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
