package chassis

import (
	"fmt"
	"io/ioutil"
	"math"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Dimensions are the calibration constants of a two-wheeled differential
// drive.  Once an estimator has been built from a Dimensions value the
// constants must not change.
type Dimensions struct {
	WheelRadiusMM float64 `yaml:"wheel_radius_mm"`

	// WheelTrackMM is half the distance between the two wheel contact
	// patches, i.e. the distance from the centre of the bot to a wheel.
	WheelTrackMM float64 `yaml:"wheel_track_mm"`

	// Encoder ticks for one full revolution of a wheel.
	CountsPerRev float64 `yaml:"counts_per_rev"`
}

// Romi is the Pololu Romi chassis with its stock encoders.
var Romi = Dimensions{
	WheelRadiusMM: 35.0,
	WheelTrackMM:  70.0,
	CountsPerRev:  1440,
}

var ErrNonPositive = errors.New("dimension must be strictly positive")

// MMPerCount is the linear distance travelled by a wheel for one encoder
// tick.  For the Romi this is ~0.15mm.
func (d Dimensions) MMPerCount() float64 {
	return 2 * math.Pi * d.WheelRadiusMM / d.CountsPerRev
}

func (d Dimensions) WheelCircumMM() float64 {
	return 2 * math.Pi * d.WheelRadiusMM
}

func (d Dimensions) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"wheel_radius_mm", d.WheelRadiusMM},
		{"wheel_track_mm", d.WheelTrackMM},
		{"counts_per_rev", d.CountsPerRev},
	} {
		// Written so that NaN fails too.
		if !(f.value > 0) || math.IsInf(f.value, 1) {
			return errors.Wrapf(ErrNonPositive, "%s=%v", f.name, f.value)
		}
	}
	return nil
}

func (d Dimensions) String() string {
	return fmt.Sprintf("radius=%.2fmm track=%.2fmm counts/rev=%.0f (%.4fmm/count)",
		d.WheelRadiusMM, d.WheelTrackMM, d.CountsPerRev, d.MMPerCount())
}

// Load reads dimensions from a YAML file.  Fields missing from the file keep
// their Romi defaults.
func Load(path string) (Dimensions, error) {
	d := Romi
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return d, errors.Wrap(err, "failed to read chassis config")
	}
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return d, errors.Wrapf(err, "failed to parse chassis config %s", path)
	}
	if err := d.Validate(); err != nil {
		return d, errors.Wrapf(err, "bad chassis config %s", path)
	}
	return d, nil
}

// Save writes the dimensions out as YAML, in the format Load expects.
func (d Dimensions) Save(path string) error {
	if err := d.Validate(); err != nil {
		return err
	}
	raw, err := yaml.Marshal(&d)
	if err != nil {
		return errors.Wrap(err, "failed to marshal chassis config")
	}
	return errors.Wrapf(ioutil.WriteFile(path, raw, 0666), "failed to write %s", path)
}
