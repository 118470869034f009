// Package channel identifies telemetry channels and holds per-tick snapshots of their values.
package channel

import (
	"cmp"
	"fmt"
	"strings"
)

// Sum is the component id of the aggregated system values
const Sum = "_sum"

// Address identifies a data channel by component id and property name.
// It is a comparable value type and can be used directly as a map key.
type Address struct {
	ComponentID string
	Property    string
}

// NewAddress creates an Address
func NewAddress(componentID, property string) Address {
	return Address{ComponentID: componentID, Property: property}
}

// String returns the canonical "{componentId}/{property}" form
func (a Address) String() string {
	return a.ComponentID + "/" + a.Property
}

// Topic returns the MQTT topic carrying this channel below prefix
func (a Address) Topic(prefix string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return a.String()
	}
	return prefix + "/" + a.String()
}

// ParseAddress parses the canonical "{componentId}/{property}" form
func ParseAddress(s string) (Address, error) {
	componentID, property, ok := strings.Cut(s, "/")
	if !ok || componentID == "" || property == "" || strings.Contains(property, "/") {
		return Address{}, fmt.Errorf("invalid channel address %q, expected component/property", s)
	}
	return Address{ComponentID: componentID, Property: property}, nil
}

// Compare orders addresses by component id, then property
func Compare(a, b Address) int {
	if c := cmp.Compare(a.ComponentID, b.ComponentID); c != 0 {
		return c
	}
	return cmp.Compare(a.Property, b.Property)
}
