package pathfit

import (
	"math"
	"testing"
)

func TestFitRecoversExactCubic(t *testing.T) {
	want := []float64{1, 0.5, -0.25, 0.03}
	xs := []float64{-6, -4, -2, 0, 2, 4, 6, 8}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = Eval(want, x)
	}

	got, err := Fit(xs, ys, 3)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-8 {
			t.Errorf("coeff %d = %g, want %g", i, got[i], want[i])
		}
	}
}

func TestFitInputValidation(t *testing.T) {
	if _, err := Fit([]float64{1, 2}, []float64{1}, 1); err == nil {
		t.Error("expected error for mismatched lengths")
	}
	if _, err := Fit([]float64{1, 2}, []float64{1, 2}, 0); err == nil {
		t.Error("expected error for degree 0")
	}
	if _, err := Fit([]float64{1, 2, 3}, []float64{1, 2, 3}, 3); err == nil {
		t.Error("expected error for too few points")
	}
}

func TestToVehicleFrame(t *testing.T) {
	// Vehicle at (2, 1) heading straight up: a waypoint 2 m ahead lands
	// on the vehicle-frame x axis.
	vx, vy, err := ToVehicleFrame([]float64{2}, []float64{3}, 2, 1, math.Pi/2)
	if err != nil {
		t.Fatalf("ToVehicleFrame: %v", err)
	}
	if math.Abs(vx[0]-2) > 1e-12 || math.Abs(vy[0]) > 1e-12 {
		t.Fatalf("transformed waypoint = (%g, %g), want (2, 0)", vx[0], vy[0])
	}

	if _, _, err := ToVehicleFrame([]float64{1}, []float64{}, 0, 0, 0); err == nil {
		t.Error("expected error for mismatched waypoint lengths")
	}
}

func TestErrorsFromFit(t *testing.T) {
	cte, epsi := Errors([]float64{1.5, 1, 0})
	if cte != 1.5 {
		t.Errorf("cte = %g, want 1.5", cte)
	}
	if math.Abs(epsi-(-math.Pi/4)) > 1e-12 {
		t.Errorf("epsi = %g, want -pi/4", epsi)
	}
}
