// Package pathfit turns global-frame reference waypoints into the
// vehicle-frame polynomial the controller tracks.
package pathfit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ToVehicleFrame translates and rotates global waypoints into the vehicle
// frame (origin at the vehicle, x along the heading). Fitting in this frame
// keeps the path close to a function y(x) and makes cte/epsi fall out of the
// coefficients directly.
func ToVehicleFrame(wpX, wpY []float64, x, y, psi float64) ([]float64, []float64, error) {
	if len(wpX) != len(wpY) {
		return nil, nil, fmt.Errorf("pathfit: waypoint lengths differ (%d vs %d)", len(wpX), len(wpY))
	}
	sin, cos := math.Sin(psi), math.Cos(psi)
	vx := make([]float64, len(wpX))
	vy := make([]float64, len(wpY))
	for i := range wpX {
		dx := wpX[i] - x
		dy := wpY[i] - y
		vx[i] = dx*cos + dy*sin
		vy[i] = -dx*sin + dy*cos
	}
	return vx, vy, nil
}

// Fit least-squares fits a polynomial of the given degree through the
// points and returns its coefficients in ascending powers. QR keeps the
// Vandermonde solve stable for the short, well-scaled windows used here.
func Fit(xs, ys []float64, degree int) ([]float64, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("pathfit: point lengths differ (%d vs %d)", len(xs), len(ys))
	}
	if degree < 1 {
		return nil, fmt.Errorf("pathfit: degree must be >= 1, got %d", degree)
	}
	if len(xs) < degree+1 {
		return nil, fmt.Errorf("pathfit: need %d points for degree %d, got %d", degree+1, degree, len(xs))
	}

	a := mat.NewDense(len(xs), degree+1, nil)
	for i, x := range xs {
		p := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, p)
			p *= x
		}
	}
	b := mat.NewVecDense(len(ys), ys)

	var qr mat.QR
	qr.Factorize(a)
	var sol mat.Dense
	if err := qr.SolveTo(&sol, false, b); err != nil {
		return nil, fmt.Errorf("pathfit: solve: %w", err)
	}

	coeffs := make([]float64, degree+1)
	for j := range coeffs {
		coeffs[j] = sol.At(j, 0)
	}
	return coeffs, nil
}

// Eval computes sum coeffs[i] * x^i.
func Eval(coeffs []float64, x float64) float64 {
	result := 0.0
	pow := 1.0
	for _, c := range coeffs {
		result += c * pow
		pow *= x
	}
	return result
}

// Errors derives the tracking errors at the vehicle origin from a
// vehicle-frame fit: cte is the polynomial value at x=0, epsi the negated
// tangent angle there.
func Errors(coeffs []float64) (cte, epsi float64) {
	cte = Eval(coeffs, 0)
	if len(coeffs) > 1 {
		epsi = -math.Atan(coeffs[1])
	}
	return cte, epsi
}
