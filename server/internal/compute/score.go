package compute

import (
	"math"

	"github.com/buoywatch/buoywatch/pkg/types"
)

// Status labels for the aggregate index.
const (
	StatusGood     = "Good"
	StatusWarning  = "Warning"
	StatusCritical = "Critical"
)

// Thresholds that map the index to a status label.
const (
	ThresholdGood    = 70.0 // strictly above is Good
	ThresholdWarning = 50.0 // at or above is Warning
)

// overrideBelow is the pH/TDS sub-score under which the index is forced to 0.
const overrideBelow = 50

// DefaultPool is the weight shared between TDS and EC.
const DefaultPool = 25.0

// Weights are the base weight per parameter. The TDS entry holds the pool
// shared with EC; any EC entry is ignored.
type Weights map[types.Parameter]float64

// DefaultWeights returns the built-in base weights.
func DefaultWeights() Weights {
	return Weights{
		types.PH:          30,
		types.TDS:         DefaultPool,
		types.EC:          0,
		types.Turbidity:   20,
		types.Temperature: 15,
		types.Rainfall:    10,
	}
}

// Merge returns a copy of w with the overrides applied on top. Keys that are
// not parameter names are ignored.
func (w Weights) Merge(overrides map[string]float64) Weights {
	out := make(Weights, len(w))
	for p, v := range w {
		out[p] = v
	}
	for k, v := range overrides {
		if p, ok := types.ParseParameter(k); ok && !math.IsNaN(v) {
			out[p] = v
		}
	}
	return out
}

// Result is the outcome of scoring one submission.
type Result struct {
	// SubScores has an entry for every parameter; nil means no data.
	SubScores map[types.Parameter]*int `json:"sub_scores"`

	// Weights are the effective weights after the TDS/EC pool split.
	Weights map[types.Parameter]float64 `json:"weights"`

	// Index is the water-quality index, 0–100, rounded to 2 decimals.
	Index float64 `json:"index"`

	// Status is one of Good, Warning, Critical.
	Status string `json:"status"`

	// Overridden is set when a failing pH or TDS sub-score forced Index to 0.
	Overridden bool `json:"overridden"`
}

// Score computes sub-scores and the aggregate index for values.
//
//	index = Σ(sub_i * w_i) / Σ(w_i)   over parameters with data and w_i > 0
//
// Score never fails: unknown or missing values yield nil sub-scores, and an
// input with nothing to weigh yields index 0.
func Score(values types.Values, base Weights) Result {
	if base == nil {
		base = DefaultWeights()
	}

	subs := make(map[types.Parameter]*int, len(types.Parameters))
	for _, p := range types.Parameters {
		if v, ok := values.Get(p); ok {
			subs[p] = SubScore(p, v)
		} else {
			subs[p] = nil
		}
	}

	weights := effectiveWeights(base, subs[types.TDS] != nil, subs[types.EC] != nil)

	// Canonical order keeps the floating-point sum independent of map order.
	var sum, wsum float64
	for _, p := range types.Parameters {
		s, w := subs[p], weights[p]
		if s == nil || w <= 0 {
			continue
		}
		sum += float64(*s) * w
		wsum += w
	}

	index := 0.0
	if wsum > 0 {
		index = round2(sum / wsum)
	}
	res := Result{
		SubScores: subs,
		Weights:   weights,
		Index:     index,
		Status:    statusFromIndex(index),
	}

	if below(subs[types.PH], overrideBelow) || below(subs[types.TDS], overrideBelow) {
		res.Index = 0
		res.Status = StatusCritical
		res.Overridden = true
	}
	return res
}

// effectiveWeights applies the TDS/EC pool rule to base.
func effectiveWeights(base Weights, hasTDS, hasEC bool) map[types.Parameter]float64 {
	out := make(map[types.Parameter]float64, len(types.Parameters))
	for _, p := range types.Parameters {
		out[p] = base[p]
	}

	// An unset pool falls back only when EC takes part; TDS alone keeps the
	// configured weight, so a zero pool excludes it.
	pool := base[types.TDS]
	if hasEC && pool <= 0 {
		pool = DefaultPool
	}
	switch {
	case hasTDS && hasEC:
		out[types.TDS] = pool / 2
		out[types.EC] = pool / 2
	case hasTDS:
		out[types.TDS] = max(pool, 0)
		out[types.EC] = 0
	case hasEC:
		out[types.TDS] = 0
		out[types.EC] = pool
	default:
		out[types.TDS] = 0
		out[types.EC] = 0
	}
	return out
}

// statusFromIndex maps an index to its status label.
func statusFromIndex(index float64) string {
	switch {
	case index > ThresholdGood:
		return StatusGood
	case index >= ThresholdWarning:
		return StatusWarning
	default:
		return StatusCritical
	}
}

func below(s *int, limit int) bool { return s != nil && *s < limit }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
