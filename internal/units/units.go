// Package units provides shared constants and conversion for the electrical
// units the MCU reports.
package units

import (
	"fmt"
	"strings"
)

// Unit constants
const (
	A  = "A"
	MA = "mA"
	UA = "uA"
	V  = "V"
	MV = "mV"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{A, MA, UA, V, MV}

var scale = map[string]float64{
	A:  1,
	MA: 1e3,
	UA: 1e6,
	V:  1,
	MV: 1e3,
}

var dimension = map[string]string{
	A: "current", MA: "current", UA: "current",
	V: "voltage", MV: "voltage",
}

// Canonical returns the canonical spelling of unit, accepting any case and
// the "µA" form. The second result is false for unknown units.
func Canonical(unit string) (string, bool) {
	u := strings.TrimSpace(unit)
	u = strings.ReplaceAll(u, "µ", "u")
	for _, v := range ValidUnits {
		if strings.EqualFold(u, v) {
			return v, true
		}
	}
	return "", false
}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	_, ok := Canonical(unit)
	return ok
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// Convert converts value from one unit to another of the same dimension.
func Convert(value float64, from, to string) (float64, error) {
	f, ok := Canonical(from)
	if !ok {
		return 0, fmt.Errorf("unknown unit %q (valid: %s)", from, GetValidUnitsString())
	}
	t, ok := Canonical(to)
	if !ok {
		return 0, fmt.Errorf("unknown unit %q (valid: %s)", to, GetValidUnitsString())
	}
	if dimension[f] != dimension[t] {
		return 0, fmt.Errorf("cannot convert %s to %s", f, t)
	}
	return value / scale[f] * scale[t], nil
}
