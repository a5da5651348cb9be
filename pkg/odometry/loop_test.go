package odometry

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/tigerbot-team/tigerbot/odometry/pkg/chassis"
	"github.com/tigerbot-team/tigerbot/odometry/pkg/encoder"
	"github.com/tigerbot-team/tigerbot/odometry/pkg/kinematics"
)

func TestStepFeedsEstimator(t *testing.T) {
	sim := encoder.NewSimulated(100, 100)
	loop := New(kinematics.New(), encoder.NewTracker(sim), time.Millisecond)

	var seen []kinematics.Pose
	loop.OnPose(func(p kinematics.Pose) { seen = append(seen, p) })

	for i := 0; i < 4; i++ {
		if err := loop.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}
	// The first poll only sets the encoder baseline.
	expected := 300 * chassis.Romi.MMPerCount()
	p := loop.CurrentPose()
	if !scalar.EqualWithinAbs(p.X, expected, 1e-9) || p.Y != 0 || p.Theta != 0 {
		t.Fatalf("Expected x=%v straight ahead, got %+v", expected, p)
	}
	if len(seen) != 4 || seen[3] != p {
		t.Fatalf("Subscriber should see every update, got %v", seen)
	}
}

type flakyCounts struct {
	fail  bool
	left  float64
	right float64
}

func (f *flakyCounts) Poll() error {
	if f.fail {
		return errors.New("bus error")
	}
	return nil
}

func (f *flakyCounts) Counts() (float64, float64) { return f.left, f.right }

func TestStepSkipsUpdateOnPollFailure(t *testing.T) {
	counts := &flakyCounts{left: 10, right: 10}
	est := kinematics.New()
	loop := newLoop(est, counts, 0)
	if loop.period != DefaultPeriod {
		t.Fatalf("Zero period should use the default, got %v", loop.period)
	}

	if err := loop.Step(); err != nil {
		t.Fatal(err)
	}
	before := loop.CurrentPose()

	counts.fail = true
	counts.left, counts.right = 20, 20
	if err := loop.Step(); err == nil {
		t.Fatal("Expected the poll error")
	}
	if loop.CurrentPose() != before || est.Pose() != before {
		t.Fatal("A failed poll must not update the pose")
	}

	counts.fail = false
	if err := loop.Step(); err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinAbs(loop.CurrentPose().X, 20*chassis.Romi.MMPerCount(), 1e-9) {
		t.Fatalf("Ticks should not be lost across a failed poll, got %+v", loop.CurrentPose())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	sim := encoder.NewSimulated(5, -5)
	loop := New(kinematics.New(), encoder.NewTracker(sim), time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kinematics.Pose, 1000)
	loop.OnPose(func(p kinematics.Pose) {
		select {
		case updates <- p:
		default:
		}
	})

	done := make(chan error)
	go func() { done <- loop.Run(ctx) }()

	for i := 0; i < 3; i++ {
		select {
		case <-updates:
		case <-time.After(2 * time.Second):
			t.Fatal("Loop never updated")
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Loop didn't exit on cancel")
	}
	if loop.CurrentPose().Theta <= 0 {
		t.Fatalf("Left-forward spin should turn anti-clockwise, got %+v", loop.CurrentPose())
	}
}
