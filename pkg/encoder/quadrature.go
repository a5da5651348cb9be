package encoder

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// QuadraturePins names the GPIO pins wired to each encoder's A and B
// channels, e.g. "GPIO17".
type QuadraturePins struct {
	LeftA  string `help:"Left encoder channel A." default:"GPIO17"`
	LeftB  string `help:"Left encoder channel B." default:"GPIO27"`
	RightA string `help:"Right encoder channel A." default:"GPIO22"`
	RightB string `help:"Right encoder channel B." default:"GPIO23"`
}

// quadratureSteps maps (previous AB state << 2 | new AB state) to a count
// delta.  The Gray sequence 00, 01, 11, 10 (B leading A) counts up.  Invalid
// transitions (both channels changed) count as zero.
var quadratureSteps = [16]int16{
	0, 1, -1, 0,
	-1, 0, 0, 1,
	1, 0, 0, -1,
	0, -1, 1, 0,
}

func quadratureStep(prev, next uint8) int16 {
	return quadratureSteps[(prev&3)<<2|(next&3)]
}

// Quadrature decodes the encoder signals directly from GPIO, counting every
// edge on both channels.
type Quadrature struct {
	wheels [2]*quadratureWheel

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ Source = (*Quadrature)(nil)

type quadratureWheel struct {
	a, b gpio.PinIO

	lock  sync.Mutex
	state uint8
	count int16
}

func NewQuadrature(pins QuadraturePins) (*Quadrature, error) {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialise periph")
	}
	return newQuadrature(pins, gpioreg.ByName)
}

func newQuadrature(pins QuadraturePins, byName func(string) gpio.PinIO) (*Quadrature, error) {
	// Pins configured so far, released again if a later one fails.
	var configured []gpio.PinIO
	fail := func(err error) (*Quadrature, error) {
		haltPins(configured)
		return nil, err
	}

	q := &Quadrature{
		stop: make(chan struct{}),
	}
	for w, names := range [2][2]string{
		Left:  {pins.LeftA, pins.LeftB},
		Right: {pins.RightA, pins.RightB},
	} {
		wheel := &quadratureWheel{}
		for i, name := range names {
			p := byName(name)
			if p == nil {
				return fail(errors.Errorf("no such GPIO pin %q", name))
			}
			if err := p.In(gpio.PullUp, gpio.BothEdges); err != nil {
				return fail(errors.Wrapf(err, "failed to configure %s", name))
			}
			configured = append(configured, p)
			if i == 0 {
				wheel.a = p
			} else {
				wheel.b = p
			}
		}
		wheel.state = wheel.read()
		q.wheels[w] = wheel
	}

	for _, wheel := range q.wheels {
		for _, p := range []gpio.PinIO{wheel.a, wheel.b} {
			q.wg.Add(1)
			go q.watch(wheel, p)
		}
	}
	return q, nil
}

func haltPins(pins []gpio.PinIO) {
	for _, p := range pins {
		if err := p.Halt(); err != nil {
			fmt.Println("Encoders: failed to release pin", p, err)
		}
	}
}

func (w *quadratureWheel) read() uint8 {
	var s uint8
	if w.a.Read() == gpio.High {
		s |= 2
	}
	if w.b.Read() == gpio.High {
		s |= 1
	}
	return s
}

func (w *quadratureWheel) onEdge() {
	w.lock.Lock()
	defer w.lock.Unlock()
	next := w.read()
	w.count += quadratureStep(w.state, next)
	w.state = next
}

func (q *Quadrature) watch(wheel *quadratureWheel, p gpio.PinIO) {
	defer q.wg.Done()
	for {
		select {
		case <-q.stop:
			return
		default:
		}
		if p.WaitForEdge(100 * time.Millisecond) {
			wheel.onEdge()
		}
	}
}

func (q *Quadrature) RawCounts() (counts PerWheel[int16], err error) {
	for w, wheel := range q.wheels {
		wheel.lock.Lock()
		counts[w] = wheel.count
		wheel.lock.Unlock()
	}
	return
}

// Close stops the watchers and releases the pins.  It is safe to call more
// than once.
func (q *Quadrature) Close() error {
	q.closeOnce.Do(func() {
		close(q.stop)
		q.wg.Wait()
		for _, wheel := range q.wheels {
			haltPins([]gpio.PinIO{wheel.a, wheel.b})
		}
	})
	return nil
}
