package utils

// Conversion factor between meters/second and miles/hour.
const mpsToMPH = 2.23694

// MPHToMPS converts miles/hour to meters/second. Externally supplied speed
// limits are usually quoted in mph and must be converted before they reach
// the controller.
func MPHToMPS(mph float64) float64 { return mph / mpsToMPH }

// MPSToMPH converts meters/second to miles/hour.
func MPSToMPH(mps float64) float64 { return mps * mpsToMPH }

// ClampFloat clamps value between min and max.
func ClampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
