// Package kinematics does dead-reckoning pose estimation for a two-wheeled
// differential-drive bot from cumulative wheel encoder counts.
package kinematics

import (
	"math"

	"github.com/tigerbot-team/tigerbot/odometry/pkg/chassis"
)

const RadiansToDegrees = 180 / math.Pi

// Pose is a snapshot of the estimate.  X and Y are in millimetres in the
// frame fixed at construction; Theta is in radians, anti-clockwise positive
// and never wrapped.
type Pose struct {
	X, Y  float64
	Theta float64
}

// Estimator integrates encoder deltas into a pose.  It does no locking; a
// single owner must call Update once per control cycle.
type Estimator struct {
	dims       chassis.Dimensions
	mmPerCount float64

	x, y  float64
	theta float64

	prevLeftCount  float64
	prevRightCount float64
}

// New returns an estimator at the origin using the Romi dimensions.
func New() *Estimator {
	e, _ := NewWithDimensions(chassis.Romi)
	return e
}

func NewWithDimensions(d chassis.Dimensions) (*Estimator, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{
		dims:       d,
		mmPerCount: d.MMPerCount(),
	}, nil
}

// Update integrates the motion since the previous call.  leftCount and
// rightCount are cumulative ticks from the same counters on every call; they
// must never be reset between calls.  A bad jump can't be told apart from a
// real one so it just produces a bad pose.
func (e *Estimator) Update(leftCount, rightCount float64) {
	deltaLeft := leftCount - e.prevLeftCount
	deltaRight := rightCount - e.prevRightCount
	e.prevLeftCount = leftCount
	e.prevRightCount = rightCount

	distLeft := deltaLeft * e.mmPerCount
	distRight := deltaRight * e.mmPerCount

	d := (distLeft + distRight) / 2

	// First-order: move along the heading from before this update.
	e.x += d * math.Cos(e.theta)
	e.y += d * math.Sin(e.theta)
	e.theta += (distLeft - distRight) / (2 * e.dims.WheelTrackMM)
}

func (e *Estimator) X() float64 {
	return e.x
}

func (e *Estimator) Y() float64 {
	return e.y
}

// Theta returns the heading in radians.
func (e *Estimator) Theta() float64 {
	return e.theta
}

// CalcAngle returns the heading in degrees.  Like Theta it is unbounded;
// use the angle package to normalise it.
func (e *Estimator) CalcAngle() float64 {
	return e.theta * RadiansToDegrees
}

func (e *Estimator) Pose() Pose {
	return Pose{X: e.x, Y: e.y, Theta: e.theta}
}

func (e *Estimator) Dimensions() chassis.Dimensions {
	return e.dims
}
