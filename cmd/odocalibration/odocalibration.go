package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/alecthomas/kong"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/tigerbot-team/tigerbot/odometry/pkg/chassis"
	"github.com/tigerbot-team/tigerbot/odometry/pkg/encoder"
	"github.com/tigerbot-team/tigerbot/odometry/pkg/kinematics"
	"github.com/tigerbot-team/tigerbot/odometry/pkg/odometry"
)

var CLI struct {
	Config    string `help:"Starting chassis calibration; Romi defaults if unset." type:"existingfile"`
	Out       string `help:"Where to write the corrected calibration." default:"chassis.yaml" type:"path"`
	I2CDevice string `name:"i2c-device" help:"I2C bus for the encoder board." default:"/dev/i2c-1"`
	I2CAddr   int    `name:"i2c-addr" help:"I2C address of the encoder board." default:"20"`
	Runs      int    `help:"Runs per measurement." default:"3"`
}

var scanner *bufio.Scanner

func init() {
	scanner = bufio.NewScanner(os.Stdin)
}

func prompt(msg string) float64 {
	fmt.Println(msg)
	for {
		if !scanner.Scan() {
			panic(scanner.Err())
		}
		v, err := strconv.ParseFloat(scanner.Text(), 64)
		if err == nil {
			return v
		}
		fmt.Printf("error: %v, please try again:\n", err)
	}
}

func main() {
	fmt.Println("---- Odometry Calibration ----")
	fmt.Println("GOMAXPROCS", runtime.GOMAXPROCS(0))
	kong.Parse(&CLI, kong.Name("odocalibration"))

	dims := chassis.Romi
	if CLI.Config != "" {
		var err error
		if dims, err = chassis.Load(CLI.Config); err != nil {
			log.WithError(err).Fatal("Failed to load calibration")
		}
	}
	fmt.Println("Starting from", dims)

	src, err := encoder.NewI2C(CLI.I2CDevice, CLI.I2CAddr)
	if err != nil {
		log.WithError(err).Fatal("Failed to open encoders")
	}
	defer src.Close()

	// Straight runs fix the wheel radius.
	var radii []float64
	for i := 0; i < CLI.Runs; i++ {
		fmt.Printf("Straight run %v/%v: place the bot on the start line and press enter, "+
			"then push it straight ahead and press enter again.\n", i+1, CLI.Runs)
		pose := measure(src, dims)
		measured := prompt(fmt.Sprintf("Odometry says %.1fmm. Enter measured distance (mm):", pose.X))
		corrected, err := dims.ScaleRadius(pose.X, measured)
		if err != nil {
			fmt.Println("Ignoring run:", err)
			continue
		}
		radii = append(radii, corrected.WheelRadiusMM)
	}
	if len(radii) > 0 {
		dims.WheelRadiusMM = stat.Mean(radii, nil)
	}
	fmt.Println("Radius calibrated:", dims)

	// Spins on the spot fix the track, using the corrected radius.
	var tracks []float64
	for i := 0; i < CLI.Runs; i++ {
		fmt.Printf("Spin %v/%v: mark the heading and press enter, "+
			"then rotate the bot on the spot and press enter again.\n", i+1, CLI.Runs)
		pose := measure(src, dims)
		turns := prompt(fmt.Sprintf("Odometry says %.1f degrees. Enter actual number of turns (anti-clockwise +tive):",
			pose.Theta*kinematics.RadiansToDegrees))
		corrected, err := dims.ScaleTrack(pose.Theta, turns)
		if err != nil {
			fmt.Println("Ignoring run:", err)
			continue
		}
		tracks = append(tracks, corrected.WheelTrackMM)
	}
	if len(tracks) > 0 {
		dims.WheelTrackMM = stat.Mean(tracks, nil)
	}

	fmt.Println("Calibrated:", dims)
	if err := dims.Save(CLI.Out); err != nil {
		log.WithError(err).Fatal("Failed to save calibration")
	}
	fmt.Println("Wrote", CLI.Out)
}

// measure runs the odometry loop from a fresh origin between two presses of
// enter and returns the final pose.
func measure(src encoder.Source, dims chassis.Dimensions) kinematics.Pose {
	if !scanner.Scan() {
		panic(scanner.Err())
	}
	est, err := kinematics.NewWithDimensions(dims)
	if err != nil {
		panic(err)
	}
	// Fresh tracker so the new estimator starts from zero counts.
	loop := odometry.New(est, encoder.NewTracker(src), odometry.DefaultPeriod)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()

	if !scanner.Scan() {
		panic(scanner.Err())
	}
	// Let the last movement get polled.
	time.Sleep(5 * odometry.DefaultPeriod)
	cancel()
	<-done
	return loop.CurrentPose()
}
