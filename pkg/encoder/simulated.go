package encoder

import "sync"

// Simulated is a bench source that advances each wheel by a fixed number of
// ticks every time it is read.  The counters wrap like the real hardware.
type Simulated struct {
	lock    sync.Mutex
	perPoll PerWheel[int16]
	counts  PerWheel[int16]
	closed  bool
}

var _ Source = (*Simulated)(nil)

func NewSimulated(leftPerPoll, rightPerPoll int16) *Simulated {
	return &Simulated{
		perPoll: PerWheel[int16]{leftPerPoll, rightPerPoll},
	}
}

// SetSpeeds changes the ticks added per read, e.g. to script a turn.
func (s *Simulated) SetSpeeds(leftPerPoll, rightPerPoll int16) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.perPoll = PerWheel[int16]{leftPerPoll, rightPerPoll}
}

func (s *Simulated) RawCounts() (PerWheel[int16], error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return s.counts, ErrClosed
	}
	for w := range s.counts {
		s.counts[w] += s.perPoll[w]
	}
	return s.counts, nil
}

func (s *Simulated) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closed = true
	return nil
}
