package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/tigerbot-team/tigerbot/odometry/pkg/angle"
	"github.com/tigerbot-team/tigerbot/odometry/pkg/chassis"
	"github.com/tigerbot-team/tigerbot/odometry/pkg/encoder"
	"github.com/tigerbot-team/tigerbot/odometry/pkg/kinematics"
	"github.com/tigerbot-team/tigerbot/odometry/pkg/odometry"
	"github.com/tigerbot-team/tigerbot/odometry/pkg/trace"
)

var CLI struct {
	Config string `help:"Chassis calibration YAML; Romi defaults if unset." type:"existingfile"`
	Source string `help:"Encoder source." enum:"sim,i2c,serial,gpio" default:"sim"`

	Period      time.Duration `help:"Control loop period." default:"10ms"`
	Duration    time.Duration `help:"Stop after this long (0 = until interrupted)." default:"0s"`
	ReportEvery time.Duration `help:"How often to print the pose." default:"500ms"`
	Trace       string        `help:"Write the path to this PNG on exit." type:"path"`
	Debug       bool          `help:"Log every update."`

	I2CDevice string `name:"i2c-device" help:"I2C bus for the encoder board." default:"/dev/i2c-1"`
	I2CAddr   int    `name:"i2c-addr" help:"I2C address of the encoder board." default:"20"`

	SerialPort string `help:"Serial port streaming encoder lines." default:"/dev/ttyACM0"`
	Baud       int    `help:"Serial baud rate." default:"115200"`

	Pins encoder.QuadraturePins `embed:"" prefix:"pin-"`

	SimLeft  int16 `help:"Simulated left ticks per period." default:"20"`
	SimRight int16 `help:"Simulated right ticks per period." default:"18"`
}

func main() {
	fmt.Println("---- Odometry ----")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))

	kong.Parse(&CLI,
		kong.Name("odometry"),
		kong.Description("Dead-reckoning pose estimate from the wheel encoders."),
	)
	if CLI.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if err := run(); err != nil && errors.Cause(err) != context.Canceled &&
		errors.Cause(err) != context.DeadlineExceeded {
		log.WithError(err).Fatal("Odometry failed")
	}
}

func run() error {
	dims := chassis.Romi
	if CLI.Config != "" {
		var err error
		if dims, err = chassis.Load(CLI.Config); err != nil {
			return err
		}
	}
	log.WithField("chassis", dims.String()).Info("Using chassis dimensions")

	est, err := kinematics.NewWithDimensions(dims)
	if err != nil {
		return err
	}

	src, err := openSource()
	if err != nil {
		return err
	}
	tracker := encoder.NewTracker(src)
	defer func() {
		if err := tracker.Close(); err != nil {
			log.WithError(err).Warn("Failed to close encoder source")
		}
	}()

	loop := odometry.New(est, tracker, CLI.Period)
	rec := trace.NewRecorder()
	loop.OnPose(rec.Record)

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registerSignalHandlers(cancel)
	if CLI.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, CLI.Duration)
		defer cancel()
	}

	go reportLoop(ctx, loop)
	err = loop.Run(ctx)

	report(loop.CurrentPose())
	log.WithFields(log.Fields{
		"pathMM":         rec.PathLengthMM(),
		"displacementMM": rec.Displacement(),
	}).Info("Finished")
	if CLI.Trace != "" {
		if terr := rec.RenderPNG(CLI.Trace, 512); terr != nil {
			log.WithError(terr).Error("Failed to write trace")
		} else {
			log.WithField("path", CLI.Trace).Info("Wrote trace")
		}
	}
	return err
}

func openSource() (encoder.Source, error) {
	switch CLI.Source {
	case "i2c":
		return encoder.NewI2C(CLI.I2CDevice, CLI.I2CAddr)
	case "serial":
		return encoder.NewSerial(CLI.SerialPort, CLI.Baud)
	case "gpio":
		return encoder.NewQuadrature(CLI.Pins)
	default:
		return encoder.NewSimulated(CLI.SimLeft, CLI.SimRight), nil
	}
}

func reportLoop(ctx context.Context, loop *odometry.Loop) {
	if CLI.ReportEvery <= 0 {
		return
	}
	ticker := time.NewTicker(CLI.ReportEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report(loop.CurrentPose())
		}
	}
}

func report(p kinematics.Pose) {
	log.WithFields(log.Fields{
		"x":       fmt.Sprintf("%.1f", p.X),
		"y":       fmt.Sprintf("%.1f", p.Y),
		"theta":   fmt.Sprintf("%.3f", p.Theta),
		"heading": fmt.Sprintf("%.1f", angle.FromRadians(p.Theta).Float()),
	}).Info("Pose")
}

func registerSignalHandlers(cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		log.WithField("signal", sig).Info("Signal received, shutting down")
		cancel()
	}()
}
