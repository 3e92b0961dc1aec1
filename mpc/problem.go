package mpc

import "gonum.org/v1/gonum/num/dual"

// problem binds one solve's reference-path coefficients to the layout,
// configuration and model. Constructed fresh per control cycle.
type problem struct {
	cfg    Config
	lay    layout
	model  Model
	coeffs []float64
}

// eval is the combined callback handed to the solver: out[0] receives the
// cost, out[1:] the 6n constraint expressions, indexed like the state
// segments of the decision vector.
//
// The first six constraint expressions are the raw initial-state variables;
// the solver pins them by giving those constraints non-zero equal bounds set
// to the measured state. Every later expression is the difference between a
// state variable at t and the model prediction from t-1, constrained to
// zero, which is how "the trajectory obeys the kinematics" becomes algebra.
func (p *problem) eval(vars, out []dual.Number) {
	lay := p.lay

	out[1+lay.x] = vars[lay.x]
	out[1+lay.y] = vars[lay.y]
	out[1+lay.psi] = vars[lay.psi]
	out[1+lay.v] = vars[lay.v]
	out[1+lay.cte] = vars[lay.cte]
	out[1+lay.epsi] = vars[lay.epsi]

	for t := 1; t < lay.n; t++ {
		prev := [6]dual.Number{
			vars[lay.x+t-1], vars[lay.y+t-1], vars[lay.psi+t-1],
			vars[lay.v+t-1], vars[lay.cte+t-1], vars[lay.epsi+t-1],
		}
		next := p.model.step(prev, vars[lay.steer+t-1], vars[lay.accel+t-1], p.coeffs)

		out[1+lay.x+t] = dual.Sub(vars[lay.x+t], next[0])
		out[1+lay.y+t] = dual.Sub(vars[lay.y+t], next[1])
		out[1+lay.psi+t] = dual.Sub(vars[lay.psi+t], next[2])
		out[1+lay.v+t] = dual.Sub(vars[lay.v+t], next[3])
		out[1+lay.cte+t] = dual.Sub(vars[lay.cte+t], next[4])
		out[1+lay.epsi+t] = dual.Sub(vars[lay.epsi+t], next[5])
	}

	out[0] = p.cost(vars)
}
