// Package odometry runs the pose estimator in a fixed-period control loop.
package odometry

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tigerbot-team/tigerbot/odometry/pkg/encoder"
	"github.com/tigerbot-team/tigerbot/odometry/pkg/kinematics"
)

const DefaultPeriod = 10 * time.Millisecond

type countSource interface {
	Poll() error
	Counts() (left, right float64)
}

// Loop owns an estimator and is the only thing that updates it.  Other
// goroutines read the pose via CurrentPose.
type Loop struct {
	est     *kinematics.Estimator
	encs    countSource
	period  time.Duration
	updates uint64

	lock        sync.Mutex
	pose        kinematics.Pose
	subscribers []func(kinematics.Pose)
}

func New(est *kinematics.Estimator, tracker *encoder.Tracker, period time.Duration) *Loop {
	return newLoop(est, tracker, period)
}

func newLoop(est *kinematics.Estimator, encs countSource, period time.Duration) *Loop {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Loop{
		est:    est,
		encs:   encs,
		period: period,
		pose:   est.Pose(),
	}
}

// OnPose registers a callback that is called, on the loop goroutine, after
// every update.
func (l *Loop) OnPose(f func(kinematics.Pose)) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.subscribers = append(l.subscribers, f)
}

func (l *Loop) CurrentPose() kinematics.Pose {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.pose
}

// Step runs one cycle: poll the encoders and feed the counts to the
// estimator.  If the poll fails the estimator is left alone.
func (l *Loop) Step() error {
	if err := l.encs.Poll(); err != nil {
		return errors.Wrap(err, "encoder poll failed")
	}
	l.est.Update(l.encs.Counts())
	l.updates++
	pose := l.est.Pose()

	l.lock.Lock()
	l.pose = pose
	subs := l.subscribers
	l.lock.Unlock()

	for _, f := range subs {
		f(pose)
	}
	return nil
}

// Run steps once per period until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	log.WithField("period", l.period).Info("Odometry loop started")
	defer log.Info("Odometry loop exited")

	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	var failures int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := l.Step(); err != nil {
			failures++
			// Don't flood the log if the bus goes away.
			if failures == 1 || failures%100 == 0 {
				log.WithError(err).WithField("failures", failures).Warn("Skipping odometry update")
			}
			continue
		}
		if failures > 0 {
			log.WithField("failures", failures).Info("Encoders recovered")
			failures = 0
		}
		if log.IsLevelEnabled(log.DebugLevel) {
			p := l.CurrentPose()
			log.WithFields(log.Fields{
				"update": l.updates,
				"x":      p.X,
				"y":      p.Y,
				"theta":  p.Theta,
			}).Debug("Pose updated")
		}
	}
}
