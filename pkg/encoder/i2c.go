package encoder

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
)

const (
	// Romi32U4Addr is the I2C address of the Romi 32U4 control board.
	Romi32U4Addr = 20

	// Offset of the int16 left/right encoder counts in the board's shared
	// register block.  Values are little-endian (AVR).
	RegEncoders = 39
)

type i2cPort interface {
	Read(buf []byte) error
	Write(buf []byte) error
	Close() error
}

// I2C reads the encoders maintained by the Romi 32U4 firmware.
type I2C struct {
	deviceFile string
	addr       int
	dev        i2cPort
}

var _ Source = (*I2C)(nil)

func NewI2C(deviceFile string, addr int) (*I2C, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open encoder board on %s@%#x", deviceFile, addr)
	}
	return &I2C{
		deviceFile: deviceFile,
		addr:       addr,
		dev:        dev,
	}, nil
}

func (e *I2C) RawCounts() (counts PerWheel[int16], err error) {
	var buf [4]byte
	if err = e.readWithRetries(RegEncoders, buf[:]); err != nil {
		return
	}
	counts[Left] = int16(binary.LittleEndian.Uint16(buf[0:2]))
	counts[Right] = int16(binary.LittleEndian.Uint16(buf[2:4]))
	return
}

// readWithRetries selects the register and reads it back.  The 32U4 needs a
// short pause between the two halves of the transaction.
func (e *I2C) readWithRetries(reg byte, buf []byte) error {
	var err error
	for tries := 0; tries < 5; tries++ {
		if err = e.dev.Write([]byte{reg}); err == nil {
			time.Sleep(100 * time.Microsecond)
			if err = e.dev.Read(buf); err == nil {
				if tries > 0 {
					fmt.Println("Encoders: read succeeded after retries")
				}
				return nil
			}
		}
		fmt.Println("Encoders: failed to read from board:", err)
		time.Sleep(1 * time.Millisecond)
	}
	return errors.Wrap(err, "encoder read failed")
}

func (e *I2C) Close() error {
	return e.dev.Close()
}
