package decay

import (
	"errors"
	"math"
	"testing"
)

const tolerance = 1e-9

func TestEliminationConstant(t *testing.T) {
	k, err := EliminationConstant(24)
	if err != nil {
		t.Fatalf("EliminationConstant() error = %v", err)
	}
	if math.Abs(k-0.028881132523331) > 1e-9 {
		t.Errorf("EliminationConstant(24) = %v, want ~0.02888", k)
	}
}

func TestEliminationConstant_InvalidHalfLife(t *testing.T) {
	tests := []struct {
		name     string
		halfLife float64
	}{
		{"Zero", 0},
		{"Negative", -3},
		{"NaN", math.NaN()},
		{"Infinite", math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EliminationConstant(tt.halfLife); !errors.Is(err, ErrInvalidHalfLife) {
				t.Errorf("EliminationConstant(%v) error = %v, want ErrInvalidHalfLife", tt.halfLife, err)
			}
		})
	}
}

func TestCurve_StartsAtDose(t *testing.T) {
	for _, hl := range []float64{0.5, 1.5, 2, 5, 24, 30, 200} {
		for _, dose := range []float64{0.1, 10, 100, 5000} {
			curve, err := Curve(dose, hl, 100, 50)
			if err != nil {
				t.Fatalf("Curve(%v, %v) error = %v", dose, hl, err)
			}
			if got := curve.Points[0].Concentration; math.Abs(got-dose) > tolerance*dose {
				t.Errorf("Curve(%v, %v) at t=0 = %v, want %v", dose, hl, got, dose)
			}
		}
	}
}

func TestCurve_StrictlyDecreasing(t *testing.T) {
	curve, err := Curve(100, 5, 100, 500)
	if err != nil {
		t.Fatalf("Curve() error = %v", err)
	}

	for i := 1; i < len(curve.Points); i++ {
		if curve.Points[i].Concentration >= curve.Points[i-1].Concentration {
			t.Fatalf("Concentration not decreasing at index %d: %v >= %v",
				i, curve.Points[i].Concentration, curve.Points[i-1].Concentration)
		}
		if curve.Points[i].Concentration < 0 {
			t.Fatalf("Negative concentration at index %d", i)
		}
	}
}

func TestCurve_Sampling(t *testing.T) {
	curve, err := Curve(100, 24, 100, 500)
	if err != nil {
		t.Fatalf("Curve() error = %v", err)
	}

	if len(curve.Points) != 500 {
		t.Fatalf("len(Points) = %d, want 500", len(curve.Points))
	}
	if curve.Points[0].TimeHours != 0 {
		t.Errorf("First sample at %v, want 0", curve.Points[0].TimeHours)
	}
	if curve.Points[499].TimeHours != 100 {
		t.Errorf("Last sample at %v, want 100", curve.Points[499].TimeHours)
	}

	step := 100.0 / 499
	for i := 1; i < len(curve.Points); i++ {
		gap := curve.Points[i].TimeHours - curve.Points[i-1].TimeHours
		if math.Abs(gap-step) > 1e-9 {
			t.Fatalf("Uneven spacing at %d: %v, want %v", i, gap, step)
		}
	}
}

func TestCurve_Deterministic(t *testing.T) {
	a, _ := Curve(42, 7.5, 48, 97)
	b, _ := Curve(42, 7.5, 48, 97)

	for i := range a.Points {
		if a.Points[i] != b.Points[i] {
			t.Fatalf("Point %d differs between runs: %v vs %v", i, a.Points[i], b.Points[i])
		}
	}
}

func TestCurve_EdgeCases(t *testing.T) {
	single, err := Curve(100, 24, 100, 1)
	if err != nil {
		t.Fatalf("Curve() with one sample error = %v", err)
	}
	if len(single.Points) != 1 || single.Points[0].TimeHours != 0 || single.Points[0].Concentration != 100 {
		t.Errorf("Single sample curve = %+v, want one point at t=0", single.Points)
	}

	tests := []struct {
		name     string
		dose     float64
		halfLife float64
		horizon  float64
		samples  int
		want     error
	}{
		{"Zero half-life", 100, 0, 100, 10, ErrInvalidHalfLife},
		{"Negative half-life", 100, -1, 100, 10, ErrInvalidHalfLife},
		{"Zero dose", 0, 24, 100, 10, ErrInvalidDose},
		{"No samples", 100, 24, 100, 0, ErrInvalidSampleCount},
		{"Too many samples", 100, 24, 100, MaxSampleCount + 1, ErrInvalidSampleCount},
		{"Huge sample count", 100, 24, 100, 1 << 45, ErrInvalidSampleCount},
		{"Negative horizon", 100, 24, -5, 10, ErrInvalidSampleCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Curve(tt.dose, tt.halfLife, tt.horizon, tt.samples)
			if !errors.Is(err, tt.want) {
				t.Errorf("Curve() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestScenarioA_HalvingEveryHalfLife(t *testing.T) {
	// dose=100, halfLife=24: 50 at t=24 and 25 at t=48
	at24, err := ConcentrationAt(100, 24, 24)
	if err != nil {
		t.Fatalf("ConcentrationAt() error = %v", err)
	}
	if math.Abs(at24-50) > 1e-9 {
		t.Errorf("ConcentrationAt(t=24) = %v, want 50", at24)
	}

	at48, _ := ConcentrationAt(100, 24, 48)
	if math.Abs(at48-25) > 1e-9 {
		t.Errorf("ConcentrationAt(t=48) = %v, want 25", at48)
	}

	curve, _ := Curve(100, 24, 48, 3)
	if math.Abs(curve.Points[1].Concentration-50) > 1e-9 || math.Abs(curve.Points[2].Concentration-25) > 1e-9 {
		t.Errorf("Curve(100, 24, 48, 3) = %+v, want 100/50/25", curve.Points)
	}
}

func TestScenarioB_NicotineClearance(t *testing.T) {
	hours, err := TimeToThreshold(100, 2, 10)
	if err != nil {
		t.Fatalf("TimeToThreshold() error = %v", err)
	}
	if math.Abs(hours-6.643856189774724) > 1e-9 {
		t.Errorf("TimeToThreshold(100, 2, 10) = %v, want ~6.64", hours)
	}
}

func TestTimeToThreshold_RoundTrip(t *testing.T) {
	for _, hl := range []float64{1.5, 2, 5, 24, 30} {
		k := math.Ln2 / hl
		for _, target := range []float64{0, 0.25, 1, 12, 99.5, 240} {
			threshold := 100 * math.Exp(-k*target)
			got, err := TimeToThreshold(100, hl, threshold)
			if err != nil {
				t.Fatalf("TimeToThreshold(hl=%v, T=%v) error = %v", hl, target, err)
			}
			if math.Abs(got-target) > 1e-6 {
				t.Errorf("TimeToThreshold(hl=%v) = %v, want %v", hl, got, target)
			}
		}
	}
}

func TestTimeToThreshold_Boundaries(t *testing.T) {
	zero, err := TimeToThreshold(100, 5, 100)
	if err != nil {
		t.Fatalf("TimeToThreshold(threshold == dose) error = %v", err)
	}
	if zero != 0 {
		t.Errorf("TimeToThreshold(threshold == dose) = %v, want 0", zero)
	}

	tests := []struct {
		name      string
		dose      float64
		halfLife  float64
		threshold float64
		want      error
	}{
		{"Above dose", 5, 2, 10, ErrThresholdUnreachable},
		{"Zero threshold", 100, 2, 0, ErrThresholdUnreachable},
		{"Negative threshold", 100, 2, -1, ErrThresholdUnreachable},
		{"Invalid half-life", 100, 0, 10, ErrInvalidHalfLife},
		{"Invalid dose", -100, 2, 10, ErrInvalidDose},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TimeToThreshold(tt.dose, tt.halfLife, tt.threshold)
			if !errors.Is(err, tt.want) {
				t.Errorf("TimeToThreshold() error = %v, want %v", err, tt.want)
			}
			if math.IsNaN(got) || got < 0 {
				t.Errorf("TimeToThreshold() = %v, must never be NaN or negative", got)
			}
		})
	}
}

func TestFractionRemaining(t *testing.T) {
	f, err := FractionRemaining(5, 10)
	if err != nil {
		t.Fatalf("FractionRemaining() error = %v", err)
	}
	if math.Abs(f-0.25) > 1e-12 {
		t.Errorf("FractionRemaining(5, 10) = %v, want 0.25", f)
	}
}
