package mpc

// layout is the segment-descriptor table for the flat decision vector the
// solver works on. Six state segments of length n come first (x, y, psi, v,
// cte, epsi), then the two actuator segments of length n-1 (steer, accel);
// actuators act on transitions, so there is one fewer of each than there are
// planned states. The constraint vector reuses the first 6n indices: one
// equation per state variable per timestep.
type layout struct {
	n int // horizon length

	x, y, psi, v, cte, epsi int // state segment offsets
	steer, accel            int // actuator segment offsets

	nVars int // 6n + 2(n-1)
	nCons int // 6n
}

func newLayout(n int) layout {
	l := layout{n: n}
	l.x = 0
	l.y = l.x + n
	l.psi = l.y + n
	l.v = l.psi + n
	l.cte = l.v + n
	l.epsi = l.cte + n
	l.steer = l.epsi + n
	l.accel = l.steer + (n - 1)
	l.nVars = l.accel + (n - 1)
	l.nCons = l.steer
	return l
}
