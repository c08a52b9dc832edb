package compute

import (
	"fmt"
	"math"

	"github.com/buoywatch/buoywatch/pkg/types"
)

// Verdict is the classifier's decision for one reading.
type Verdict struct {
	Severity types.Severity
	Reason   string
}

// Alerting reports whether the verdict should produce an alert.
func (v Verdict) Alerting() bool { return v.Severity != types.SeverityNone }

// Message is the alert text for parameter p, e.g. "PH abnormal at critical level".
func (v Verdict) Message(p types.Parameter) string {
	return fmt.Sprintf("%s abnormal at %s level", p.Label(), v.Severity)
}

var none = Verdict{Severity: types.SeverityNone}

func critical(reason string) Verdict {
	return Verdict{Severity: types.SeverityCritical, Reason: reason}
}

func warning(reason string) Verdict {
	return Verdict{Severity: types.SeverityWarning, Reason: reason}
}

// rules is the static threshold table. Each entry checks critical first.
var rules = map[types.Parameter]func(v float64) Verdict{
	types.PH: func(v float64) Verdict {
		switch {
		case v < 6.0 || v > 9.0:
			return critical("pH outside safe range")
		case v <= 6.4 || v >= 8.6:
			return warning("pH at warning level")
		}
		return none
	},
	types.TDS: func(v float64) Verdict {
		switch {
		case v > 900:
			return critical("TDS abnormally high")
		case v > 600:
			return warning("TDS should be monitored")
		}
		return none
	},
	types.EC: func(v float64) Verdict {
		switch {
		case v > 1343:
			return critical("EC abnormally high")
		case v > 895:
			return warning("EC should be monitored")
		}
		return none
	},
	types.Turbidity: func(v float64) Verdict {
		switch {
		case v > 100:
			return critical("turbidity abnormally high")
		case v > 25:
			return warning("turbidity should be monitored")
		}
		return none
	},
	types.Temperature: func(v float64) Verdict {
		switch {
		case v < 23 || v > 33:
			return critical("water temperature abnormal")
		case v <= 25 || v >= 31:
			return warning("water temperature should be monitored")
		}
		return none
	},
	// Lower rainfall signal means heavier rain.
	types.Rainfall: func(v float64) Verdict {
		switch {
		case v <= 341:
			return critical("heavy rainfall")
		case v <= 682:
			return warning("high rainfall, stay alert")
		}
		return none
	},
}

// Classify grades a single reading against the static thresholds.
// Unknown parameters and non-finite values are never alerting.
func Classify(p types.Parameter, v float64) Verdict {
	rule, ok := rules[p]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return none
	}
	return rule(v)
}
