package kinematics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/tigerbot-team/tigerbot/odometry/pkg/chassis"
)

const tolerance = 1e-9

func TestNewIsAtOrigin(t *testing.T) {
	e := New()
	expectPose(t, e, 0, 0, 0)
	if e.Dimensions() != chassis.Romi {
		t.Fatalf("New() should use Romi dimensions, got %v", e.Dimensions())
	}
}

func TestNewWithDimensionsRejectsBadValues(t *testing.T) {
	_, err := NewWithDimensions(chassis.Dimensions{WheelRadiusMM: 35, WheelTrackMM: 0, CountsPerRev: 1440})
	if err == nil {
		t.Fatal("Zero wheel track should be rejected")
	}
}

func TestZeroUpdatesDoNothing(t *testing.T) {
	e := New()
	for i := 0; i < 10; i++ {
		e.Update(0, 0)
	}
	expectPose(t, e, 0, 0, 0)
}

func TestStraightLine(t *testing.T) {
	e := New()
	mmPerCount := chassis.Romi.MMPerCount()
	for _, k := range []float64{1, 250, -300} {
		e = New()
		e.Update(k, k)
		expectPose(t, e, k*mmPerCount, 0, 0)
	}
}

func TestPureRotation(t *testing.T) {
	e := New()
	const k = 100
	e.Update(k, -k)
	expectPose(t, e, 0, 0, k*chassis.Romi.MMPerCount()/chassis.Romi.WheelTrackMM)
}

func TestLeftFartherTurnsAntiClockwise(t *testing.T) {
	e := New()
	e.Update(200, 100)
	if e.Theta() <= 0 {
		t.Fatalf("Left wheel travelling further should increase theta, got %v", e.Theta())
	}
}

func TestNoDoubleCounting(t *testing.T) {
	twice := New()
	twice.Update(10, 10)
	twice.Update(10, 10)

	once := New()
	once.Update(20, 20)

	// The second Update(10, 10) sees no delta so the first bot only moved 10 ticks.
	expectPose(t, twice, 10*chassis.Romi.MMPerCount(), 0, 0)
	if twice.Pose() == once.Pose() {
		t.Fatalf("Repeated counts should not be integrated twice")
	}

	stepped := New()
	stepped.Update(10, 10)
	stepped.Update(20, 20)
	expectPose(t, stepped, once.X(), once.Y(), once.Theta())
}

func TestHeadingIsNotWrapped(t *testing.T) {
	e := New()
	// One update spins by 90 degrees.
	quarterTurnCounts := math.Pi / 2 * chassis.Romi.WheelTrackMM / chassis.Romi.MMPerCount()
	for i := 1; i <= 9; i++ {
		e.Update(float64(i)*quarterTurnCounts, -float64(i)*quarterTurnCounts)
	}
	if e.Theta() <= 2*math.Pi {
		t.Fatalf("Theta should accumulate past 2π, got %v", e.Theta())
	}
	if !scalar.EqualWithinAbs(e.CalcAngle(), 810, 1e-6) {
		t.Fatalf("Expected 810 degrees, got %v", e.CalcAngle())
	}
}

func TestOneRevolution(t *testing.T) {
	e, err := NewWithDimensions(chassis.Dimensions{WheelRadiusMM: 35.0, WheelTrackMM: 70.0, CountsPerRev: 1440})
	if err != nil {
		t.Fatal(err)
	}
	e.Update(1440, 1440)
	expectPose(t, e, 2*math.Pi*35.0, 0, 0)
	if math.Abs(e.X()-219.8) > 0.2 {
		t.Fatalf("One revolution should be ~219.8mm, got %v", e.X())
	}
}

func TestFirstOrderIntegrationUsesPreviousHeading(t *testing.T) {
	e := New()
	mmPerCount := chassis.Romi.MMPerCount()
	// Spin then drive forward in the same update: the translation must use
	// the heading from before the spin, i.e. 0.
	e.Update(300, 100)
	d := (300 + 100) / 2 * mmPerCount
	theta := (300 - 100) * mmPerCount / (2 * chassis.Romi.WheelTrackMM)
	expectPose(t, e, d, 0, theta)

	// The next update moves along theta.
	e.Update(400, 200)
	d2 := 100 * mmPerCount
	expectPose(t, e, d+d2*math.Cos(theta), d2*math.Sin(theta), theta)
}

func TestCalcAngle(t *testing.T) {
	e := New()
	e.Update(-50, 50)
	if !scalar.EqualWithinAbs(e.CalcAngle(), e.Theta()*180/math.Pi, tolerance) {
		t.Fatalf("CalcAngle %v doesn't match theta %v", e.CalcAngle(), e.Theta())
	}
	if e.CalcAngle() >= 0 {
		t.Fatalf("Right wheel further should give a negative angle, got %v", e.CalcAngle())
	}
}

func expectPose(t *testing.T, e *Estimator, x, y, theta float64) {
	t.Helper()
	if !scalar.EqualWithinAbs(e.X(), x, tolerance) ||
		!scalar.EqualWithinAbs(e.Y(), y, tolerance) ||
		!scalar.EqualWithinAbs(e.Theta(), theta, tolerance) {
		t.Fatalf("Expected pose (%v, %v, %v), got (%v, %v, %v)", x, y, theta, e.X(), e.Y(), e.Theta())
	}
}
