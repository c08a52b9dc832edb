package types

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Parameter identifies one measured water-quality quantity.
type Parameter string

// The six parameters a station may report.
const (
	PH          Parameter = "ph"
	TDS         Parameter = "tds"
	EC          Parameter = "ec"
	Turbidity   Parameter = "turbidity"
	Temperature Parameter = "temperature"
	Rainfall    Parameter = "rainfall"
)

// Parameters lists every parameter in canonical order. Alerts and reports are
// always produced in this order.
var Parameters = []Parameter{PH, TDS, EC, Turbidity, Temperature, Rainfall}

// ParseParameter maps a wire key (case-insensitive) to a Parameter.
func ParseParameter(s string) (Parameter, bool) {
	p := Parameter(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Parameters {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// Label is the upper-case name used in alert messages ("PH", "TDS", ...).
func (p Parameter) Label() string { return strings.ToUpper(string(p)) }

// Values holds the numeric readings present in one submission. A parameter
// missing from the map has no data; it is never treated as zero.
type Values map[Parameter]float64

// Get returns the value for p and whether it is present.
func (v Values) Get(p Parameter) (float64, bool) {
	x, ok := v[p]
	return x, ok
}

// Present returns the parameters that carry a value, in canonical order.
func (v Values) Present() []Parameter {
	out := make([]Parameter, 0, len(v))
	for _, p := range Parameters {
		if _, ok := v[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// ParseValues converts a decoded JSON object into Values. Unknown keys,
// nulls, non-numeric strings, NaN and infinities are dropped.
func ParseValues(raw map[string]any) Values {
	out := make(Values, len(raw))
	for k, v := range raw {
		p, ok := ParseParameter(k)
		if !ok {
			continue
		}
		if f, ok := toFloat(v); ok {
			out[p] = f
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = x
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
