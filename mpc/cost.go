package mpc

import "gonum.org/v1/gonum/num/dual"

func square(v dual.Number) dual.Number { return dual.Mul(v, v) }

// cost accumulates the scalar objective over the horizon. Every term is
// normalized by a characteristic scale before squaring, so the weights stay
// decoupled from raw physical units: tracking (cte, epsi), speed against the
// fixed target, actuator magnitude, and actuator smoothness.
func (p *problem) cost(vars []dual.Number) dual.Number {
	cfg, lay := p.cfg, p.lay
	var c dual.Number

	for t := 0; t < lay.n; t++ {
		// cte is weighted more heavily later in the horizon, so drift
		// near the far end of the plan gets corrected before it builds.
		wCte := cfg.Weights.Cte * float64(t+1)
		c = dual.Add(c, dual.Scale(wCte, square(dual.Scale(1/cfg.Scales.CteM, vars[lay.cte+t]))))
		c = dual.Add(c, dual.Scale(cfg.Weights.Epsi, square(dual.Scale(1/cfg.Scales.EpsiRad, vars[lay.epsi+t]))))

		// Deviation from the cruising target in either direction; this
		// also keeps the optimum away from a full stop.
		dv := dual.Sub(vars[lay.v+t], dual.Number{Real: cfg.TargetMPS})
		c = dual.Add(c, dual.Scale(cfg.Weights.Speed, square(dual.Scale(1/cfg.TargetMPS, dv))))
	}

	for t := 0; t < lay.n-1; t++ {
		c = dual.Add(c, dual.Scale(cfg.Weights.Steer, square(dual.Scale(1/cfg.MaxSteerRad, vars[lay.steer+t]))))
		c = dual.Add(c, dual.Scale(cfg.Weights.Accel, square(dual.Scale(1/cfg.MaxAccelMPS2, vars[lay.accel+t]))))
	}

	for t := 0; t < lay.n-2; t++ {
		dSteer := dual.Sub(vars[lay.steer+t+1], vars[lay.steer+t])
		c = dual.Add(c, dual.Scale(cfg.Weights.SteerRate, square(dual.Scale(1/cfg.Scales.SteerRateRad, dSteer))))
		dAccel := dual.Sub(vars[lay.accel+t+1], vars[lay.accel+t])
		c = dual.Add(c, dual.Scale(cfg.Weights.AccelRate, square(dual.Scale(1/cfg.Scales.AccelRateMPS2, dAccel))))
	}

	return c
}
