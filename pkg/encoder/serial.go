package encoder

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// Serial reads encoder counts streamed by the board firmware as text lines of
// the form "E <left> <right>".  Other lines (debug output etc) are ignored.
type Serial struct {
	port io.ReadCloser

	lock     sync.Mutex
	latest   PerWheel[int16]
	haveData bool
	readErr  error

	done chan struct{}
}

var _ Source = (*Serial)(nil)

func NewSerial(portName string, baud int) (*Serial, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", portName)
	}
	return newSerial(port), nil
}

func newSerial(port io.ReadCloser) *Serial {
	s := &Serial{
		port: port,
		done: make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Serial) loop() {
	defer close(s.done)
	scanner := bufio.NewScanner(s.port)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "E ") {
			continue
		}
		counts, err := ParseLine(line)
		if err != nil {
			fmt.Println("Encoders:", err)
			continue
		}
		s.lock.Lock()
		s.latest = counts
		s.haveData = true
		s.lock.Unlock()
	}
	s.lock.Lock()
	s.readErr = scanner.Err()
	if s.readErr == nil {
		s.readErr = io.EOF
	}
	s.lock.Unlock()
}

// RawCounts returns the most recent line received.
func (s *Serial) RawCounts() (PerWheel[int16], error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.readErr != nil {
		return s.latest, errors.Wrap(s.readErr, "serial encoder stream ended")
	}
	if !s.haveData {
		return s.latest, ErrNoData
	}
	return s.latest, nil
}

func (s *Serial) Close() error {
	err := s.port.Close()
	<-s.done
	return err
}

// ParseLine parses an "E <left> <right>" line.
func ParseLine(line string) (counts PerWheel[int16], err error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != "E" {
		return counts, errors.Wrapf(ErrMalformedLine, "%q", line)
	}
	for w, f := range fields[1:] {
		v, err := strconv.ParseInt(f, 10, 16)
		if err != nil {
			return counts, errors.Wrapf(ErrMalformedLine, "%q: %v", line, err)
		}
		counts[w] = int16(v)
	}
	return counts, nil
}
