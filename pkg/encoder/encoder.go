// Package encoder reads the wheel encoders and turns their free-running,
// wrapping 16-bit counters into cumulative counts for the pose estimator.
package encoder

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	Left = iota
	Right
)

var (
	ErrMalformedLine = errors.New("malformed encoder line")
	ErrNoData        = errors.New("no encoder data received yet")
	ErrClosed        = errors.New("encoder source closed")
)

// PerWheel holds one value per drive wheel, indexed by Left and Right.
type PerWheel[T any] [2]T

func (p PerWheel[T]) String() string {
	return fmt.Sprintf("L=%v R=%v", p[Left], p[Right])
}

// Source is anything that can report the raw encoder counters.
type Source interface {
	RawCounts() (PerWheel[int16], error)
	Close() error
}

// Tracker accumulates raw counter deltas so that the counts it hands out
// never wrap and never go back to zero.
type Tracker struct {
	src Source

	doneFirstPoll bool
	lastRawValues PerWheel[int16]

	accumulator PerWheel[int64]
}

func NewTracker(src Source) *Tracker {
	return &Tracker{
		src: src,
	}
}

// Poll reads the source once.  The first successful poll only sets the
// baseline.  On error the baseline is kept so no ticks are lost.
func (t *Tracker) Poll() error {
	raw, err := t.src.RawCounts()
	if err != nil {
		return err
	}

	if t.doneFirstPoll {
		for w, newC := range raw {
			oldC := t.lastRawValues[w]
			// int16 arithmetic wraps, giving the short way round.
			delta := newC - oldC
			t.accumulator[w] += int64(delta)
		}
	}

	t.lastRawValues = raw
	t.doneFirstPoll = true
	return nil
}

// Counts returns the cumulative counts since the first poll.
func (t *Tracker) Counts() (left, right float64) {
	return float64(t.accumulator[Left]), float64(t.accumulator[Right])
}

func (t *Tracker) Close() error {
	return t.src.Close()
}
