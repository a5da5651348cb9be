package chassis

import (
	"math"

	"github.com/pkg/errors"
)

var (
	ErrNoMotion          = errors.New("no motion recorded")
	ErrDirectionMismatch = errors.New("measured and estimated directions disagree")
)

// ScaleRadius corrects the wheel radius from a straight run.  estimatedMM is
// what odometry reported with d, measuredMM is what was measured on the floor.
func (d Dimensions) ScaleRadius(estimatedMM, measuredMM float64) (Dimensions, error) {
	if math.Abs(estimatedMM) < 1 {
		return d, errors.Wrapf(ErrNoMotion, "estimated %.2fmm", estimatedMM)
	}
	d.WheelRadiusMM *= math.Abs(measuredMM / estimatedMM)
	return d, d.Validate()
}

// ScaleTrack corrects the wheel track from a spin on the spot.  estimatedTheta
// is the heading change odometry reported with d, in radians; turns is the
// number of full turns the bot actually made.  Turning further than the
// estimate means the wheels are closer together than d says.  turns must
// have the same sign as estimatedTheta (anti-clockwise positive).
func (d Dimensions) ScaleTrack(estimatedTheta, turns float64) (Dimensions, error) {
	if math.Abs(estimatedTheta) < 0.01 || turns == 0 {
		return d, errors.Wrapf(ErrNoMotion, "estimated %.3frad over %v turns", estimatedTheta, turns)
	}
	if (estimatedTheta > 0) != (turns > 0) {
		return d, errors.Wrapf(ErrDirectionMismatch, "estimated %.3frad but measured %v turns", estimatedTheta, turns)
	}
	d.WheelTrackMM *= estimatedTheta / (2 * math.Pi * turns)
	return d, d.Validate()
}
