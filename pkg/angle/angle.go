// Package angle normalises headings for consumers that want a bounded value.
// The pose estimator itself never wraps its heading.
package angle

import "math"

// PlusMinus180 is a heading in degrees, held in the range (-180, 180].
// All operations wrap their output back into range.
type PlusMinus180 struct {
	float64
}

func (a PlusMinus180) Add(b PlusMinus180) PlusMinus180 {
	return FromFloat(a.float64 + b.float64)
}

func (a PlusMinus180) Sub(b PlusMinus180) PlusMinus180 {
	return FromFloat(a.float64 - b.float64)
}

// Float returns the heading in degrees, range (-180, 180].
func (a PlusMinus180) Float() float64 {
	return a.float64
}

func (a PlusMinus180) Radians() float64 {
	return a.float64 * math.Pi / 180
}

// FromFloat wraps a heading in degrees of any magnitude into (-180, 180].
func FromFloat(deg float64) PlusMinus180 {
	d := math.Mod(deg, 360)
	if d <= -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	return PlusMinus180{d}
}

// FromRadians wraps an unbounded heading in radians, as reported by
// kinematics.Estimator.Theta.
func FromRadians(rad float64) PlusMinus180 {
	return FromFloat(rad * 180 / math.Pi)
}
