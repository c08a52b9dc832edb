package compute

import (
	"math"
	"testing"

	"github.com/buoywatch/buoywatch/pkg/types"
)

// --- breakpoint continuity ---

func TestSubScore_Breakpoints(t *testing.T) {
	tests := []struct {
		param types.Parameter
		value float64
		want  int
	}{
		// pH
		{types.PH, 5.0, 0},
		{types.PH, 5.5, 25},
		{types.PH, 6.0, 70},
		{types.PH, 6.4, 50},
		{types.PH, 6.45, 50}, // gap between warning and good bands
		{types.PH, 6.5, 100},
		{types.PH, 7.0, 100},
		{types.PH, 8.5, 100},
		{types.PH, 8.6, 70},
		{types.PH, 9.0, 50},
		{types.PH, 9.5, 25},
		{types.PH, 10.0, 0},
		{types.PH, 12.0, 0},

		// TDS
		{types.TDS, -3, 100},
		{types.TDS, 0, 100},
		{types.TDS, 300, 85},
		{types.TDS, 600, 70},
		{types.TDS, 750, 60},
		{types.TDS, 900, 50},
		{types.TDS, 2000, 0},
		{types.TDS, 5000, 0},

		// EC
		{types.EC, 0, 100},
		{types.EC, 895, 70},
		{types.EC, 1343, 50},
		{types.EC, 2000, 0},

		// Turbidity
		{types.Turbidity, 0, 100},
		{types.Turbidity, 10, 88},
		{types.Turbidity, 25, 70},
		{types.Turbidity, 62.5, 60},
		{types.Turbidity, 100, 50},
		{types.Turbidity, 300, 0},

		// Temperature
		{types.Temperature, 15, 0},
		{types.Temperature, 19, 25},
		{types.Temperature, 23, 50},
		{types.Temperature, 26, 100},
		{types.Temperature, 28, 100},
		{types.Temperature, 30, 100},
		{types.Temperature, 33, 50},
		{types.Temperature, 36, 25},
		{types.Temperature, 39, 0},
		{types.Temperature, 45, 0},

		// Rainfall proxy
		{types.Rainfall, -1, 0},
		{types.Rainfall, 0, 0},
		{types.Rainfall, 341, 50},
		{types.Rainfall, 682, 70},
		{types.Rainfall, 900, 89},
		{types.Rainfall, 1023, 100},
		{types.Rainfall, 4095, 100},
	}

	for _, tt := range tests {
		got := SubScore(tt.param, tt.value)
		if got == nil {
			t.Errorf("SubScore(%s, %v): got nil, want %d", tt.param, tt.value, tt.want)
			continue
		}
		if *got != tt.want {
			t.Errorf("SubScore(%s, %v): got %d, want %d", tt.param, tt.value, *got, tt.want)
		}
	}
}

func TestSubScore_NonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := SubScore(types.PH, v); got != nil {
			t.Errorf("SubScore(ph, %v): got %d, want nil", v, *got)
		}
	}
	if got := SubScore("salinity", 10); got != nil {
		t.Errorf("SubScore(salinity): got %d, want nil", *got)
	}
}

// Every curve stays within [0, 100] across a wide sweep.
func TestSubScore_Range(t *testing.T) {
	for _, p := range types.Parameters {
		for v := -500.0; v <= 5000; v += 0.5 {
			s := SubScore(p, v)
			if s == nil {
				t.Fatalf("SubScore(%s, %v): unexpected nil", p, v)
			}
			if *s < 0 || *s > 100 {
				t.Fatalf("SubScore(%s, %v) = %d, out of [0, 100]", p, v, *s)
			}
		}
	}
}

func TestClamp01(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-1, 0}, {0, 0}, {0.5, 0.5}, {1, 1}, {2, 1},
	}
	for _, c := range cases {
		if got := clamp01(c.in); got != c.want {
			t.Errorf("clamp01(%v): got %v, want %v", c.in, got, c.want)
		}
	}
}
