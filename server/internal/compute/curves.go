package compute

import (
	"math"

	"github.com/buoywatch/buoywatch/pkg/types"
)

// curve maps a raw value to an integer sub-score in [0, 100].
type curve func(v float64) int

// curves is the closed dispatch table for sub-score calculation.
var curves = map[types.Parameter]curve{
	types.PH:          scorePH,
	types.TDS:         scoreTDS,
	types.EC:          scoreEC,
	types.Turbidity:   scoreTurbidity,
	types.Temperature: scoreTemperature,
	types.Rainfall:    scoreRainfall,
}

// SubScore returns the sub-score for p, or nil when v is not a number or p
// is not a known parameter.
func SubScore(p types.Parameter, v float64) *int {
	fn, ok := curves[p]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	s := fn(v)
	return &s
}

// pH: good 6.5–8.5, warning 6.0–6.4 / 8.6–9.0 (70 down to 50), zero at 5 and 10.
// Values between the good and warning bands (6.4–6.5, 8.5–8.6) score 50.
func scorePH(ph float64) int {
	const (
		goodLow, goodHigh   = 6.5, 8.5
		warnLowL, warnHighL = 6.0, 6.4
		warnLowR, warnHighR = 8.6, 9.0
		hardLow, hardHigh   = 5.0, 10.0
	)
	switch {
	case ph >= goodLow && ph <= goodHigh:
		return 100
	case ph >= warnLowL && ph <= warnHighL:
		return round(lerp(70, 50, (ph-warnLowL)/(warnHighL-warnLowL)))
	case ph >= warnLowR && ph <= warnHighR:
		return round(lerp(70, 50, (ph-warnLowR)/(warnHighR-warnLowR)))
	case ph < warnLowL:
		return round(lerp(0, 50, clamp01((ph-hardLow)/(warnLowL-hardLow))))
	case ph > warnHighR:
		return round(lerp(50, 0, clamp01((ph-warnHighR)/(hardHigh-warnHighR))))
	}
	return 50
}

// descending builds the one-sided curve shared by TDS, EC and turbidity:
// 100→70 up to good, 70→50 up to warn, 50→0 up to hard.
func descending(good, warn, hard float64) curve {
	return func(v float64) int {
		switch {
		case v <= 0:
			return 100
		case v <= good:
			return round(lerp(100, 70, v/good))
		case v <= warn:
			return round(lerp(70, 50, (v-good)/(warn-good)))
		}
		return round(lerp(50, 0, clamp01((v-warn)/(hard-warn))))
	}
}

var (
	scoreTDS       = descending(600, 900, 2000)
	scoreEC        = descending(895, 1343, 2000)
	scoreTurbidity = descending(25, 100, 300)
)

// Temperature (°C): good 26–30, warning 23–26 / 30–33, critical ramps top out
// at 49 and reach 0 at 15 and 39.
func scoreTemperature(t float64) int {
	const (
		goodLow, goodHigh = 26.0, 30.0
		warnLow, warnHigh = 23.0, 33.0
		hardLow, hardHigh = 15.0, 39.0
	)
	switch {
	case t >= goodLow && t <= goodHigh:
		return 100
	case t >= warnLow && t < goodLow:
		return round(lerp(50, 100, (t-warnLow)/(goodLow-warnLow)))
	case t > goodHigh && t <= warnHigh:
		return round(lerp(100, 50, (t-goodHigh)/(warnHigh-goodHigh)))
	case t < warnLow:
		return round(lerp(0, 49, clamp01((t-hardLow)/(warnLow-hardLow))))
	}
	return round(lerp(49, 0, clamp01((t-warnHigh)/(hardHigh-warnHigh))))
}

// Rainfall proxy (mV) is inverted: a lower signal means heavier rain.
func scoreRainfall(mv float64) int {
	switch {
	case mv <= 0:
		return 0
	case mv <= 341:
		return round(lerp(0, 50, mv/341))
	case mv <= 682:
		return round(lerp(50, 70, (mv-341)/(682-341)))
	case mv <= 1023:
		return round(lerp(70, 100, (mv-682)/(1023-682)))
	}
	return 100
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func round(v float64) int { return int(math.Round(v)) }

// clamp01 restricts v to the range [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
