// Package units provides shared angle and time conversion constants.
package units

import "math"

// Conversion constants. Pointing-model parameters are expressed in degrees
// (or seconds for timing terms) and correction offsets in arc-minutes, while
// all pipeline geometry is carried in radians.
const (
	DegToRad    = math.Pi / 180.0
	RadToDeg    = 180.0 / math.Pi
	ArcminToRad = math.Pi / 180.0 / 60.0
	RadToArcmin = 60.0 * 180.0 / math.Pi

	// SecToDeg converts a clock offset in seconds to the equivalent
	// rotation of the sky in degrees (360 degrees per solar day).
	SecToDeg = 360.0 / 86400.0
)

// WrapTwoPi reduces an angle to [0, 2π).
func WrapTwoPi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// WrapPi reduces an angle to (−π, π].
func WrapPi(a float64) float64 {
	a = WrapTwoPi(a)
	if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
