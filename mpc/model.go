package mpc

import (
	"math"

	"gonum.org/v1/gonum/num/dual"
)

// State is the measured vehicle state at the start of a control cycle.
// Lengths are meters, angles radians, speed m/s.
type State struct {
	X    float64 // position
	Y    float64
	Psi  float64 // heading
	V    float64 // speed
	Cte  float64 // cross-track error to the reference path
	Epsi float64 // heading error to the path tangent
}

// Actuation is one step of control input: steering angle and acceleration.
type Actuation struct {
	SteerRad  float64
	AccelMPS2 float64
}

// Model is the discrete-time kinematic bicycle model. The constraint
// encoder runs it in dual arithmetic; the plant simulation and tests use
// the plain-float Predict.
type Model struct {
	LfM   float64 // CoG to front axle distance
	StepS float64 // timestep
}

// polyEval computes sum coeffs[i] * x^i in dual arithmetic, so the path
// evaluation stays differentiable with respect to x.
func polyEval(coeffs []float64, x dual.Number) dual.Number {
	var result dual.Number
	pow := dual.Number{Real: 1}
	for _, c := range coeffs {
		result = dual.Add(result, dual.Scale(c, pow))
		pow = dual.Mul(pow, x)
	}
	return result
}

// step advances one timestep. prev holds {x, y, psi, v, cte, epsi} at t-1.
//
// cte and epsi are propagated with their own first-order update instead of
// being recomputed from absolute position at t; the linearization holds over
// a short horizon. The heading term v*steer/Lf*dt is computed once and feeds
// both the psi and the epsi updates.
func (m Model) step(prev [6]dual.Number, steer, accel dual.Number, coeffs []float64) [6]dual.Number {
	x0, y0, psi0, v0, epsi0 := prev[0], prev[1], prev[2], prev[3], prev[5]

	desiredY := polyEval(coeffs, x0)
	desiredPsi := math.Atan(coeffs[1])

	headingTerm := dual.Scale(m.StepS/m.LfM, dual.Mul(v0, steer))

	var next [6]dual.Number
	next[0] = dual.Add(x0, dual.Scale(m.StepS, dual.Mul(v0, dual.Cos(psi0))))
	next[1] = dual.Add(y0, dual.Scale(m.StepS, dual.Mul(v0, dual.Sin(psi0))))
	next[2] = dual.Add(psi0, headingTerm)
	next[3] = dual.Add(v0, dual.Scale(m.StepS, accel))
	next[4] = dual.Add(dual.Sub(desiredY, y0), dual.Scale(m.StepS, dual.Mul(v0, dual.Sin(epsi0))))
	next[5] = dual.Add(dual.Sub(psi0, dual.Number{Real: desiredPsi}), headingTerm)
	return next
}

// Predict advances a plain-float state by one timestep. coeffs needs at
// least two entries (the path tangent at the origin reads coeffs[1]).
func (m Model) Predict(s State, u Actuation, coeffs []float64) State {
	prev := [6]dual.Number{
		{Real: s.X}, {Real: s.Y}, {Real: s.Psi},
		{Real: s.V}, {Real: s.Cte}, {Real: s.Epsi},
	}
	next := m.step(prev, dual.Number{Real: u.SteerRad}, dual.Number{Real: u.AccelMPS2}, coeffs)
	return State{
		X: next[0].Real, Y: next[1].Real, Psi: next[2].Real,
		V: next[3].Real, Cte: next[4].Real, Epsi: next[5].Real,
	}
}
