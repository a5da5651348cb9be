// Package trace records the estimated path of the bot and draws it.
package trace

import (
	"fmt"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"github.com/quartercastle/vector"

	"github.com/tigerbot-team/tigerbot/odometry/pkg/angle"
	"github.com/tigerbot-team/tigerbot/odometry/pkg/kinematics"
)

// Recorder keeps the history of poses.  Record is safe to call from the
// odometry loop while other goroutines read.
type Recorder struct {
	lock  sync.Mutex
	poses []kinematics.Pose
}

func NewRecorder() *Recorder {
	return &Recorder{
		poses: []kinematics.Pose{{}},
	}
}

// Record appends a pose.  Consecutive identical poses (bot stationary) are
// dropped.
func (r *Recorder) Record(p kinematics.Pose) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.poses[len(r.poses)-1] == p {
		return
	}
	r.poses = append(r.poses, p)
}

func (r *Recorder) Poses() []kinematics.Pose {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]kinematics.Pose(nil), r.poses...)
}

// PathLengthMM is the distance travelled along the recorded path.  Spinning
// on the spot contributes nothing.
func (r *Recorder) PathLengthMM() float64 {
	poses := r.Poses()
	var total float64
	for i := 1; i < len(poses); i++ {
		total += segment(poses[i-1], poses[i]).Magnitude()
	}
	return total
}

// Displacement is the straight-line distance from the origin to the latest
// pose.
func (r *Recorder) Displacement() float64 {
	poses := r.Poses()
	return segment(kinematics.Pose{}, poses[len(poses)-1]).Magnitude()
}

func segment(from, to kinematics.Pose) vector.Vector {
	return vector.Vector{to.X - from.X, to.Y - from.Y}
}

const (
	marginPx     = 20
	maxGridLines = 50
)

// RenderPNG draws the path, scaled to fit, with the final heading shown as an
// arrow.  World +Y is drawn upwards.
func (r *Recorder) RenderPNG(path string, sizePx int) error {
	poses := r.Poses()
	if sizePx <= 2*marginPx {
		return errors.Errorf("image size %d too small", sizePx)
	}

	minX, maxX, minY, maxY := 0.0, 0.0, 0.0, 0.0
	for _, p := range poses {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	span := math.Max(math.Max(maxX-minX, maxY-minY), 100)
	for _, v := range []float64{minX, maxX, minY, maxY, span} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return errors.Errorf("path extent is not finite (x %v..%v, y %v..%v)", minX, maxX, minY, maxY)
		}
	}
	scale := float64(sizePx-2*marginPx) / span
	toPx := func(p kinematics.Pose) (float64, float64) {
		return marginPx + (p.X-minX)*scale, float64(sizePx) - marginPx - (p.Y-minY)*scale
	}

	dc := gg.NewContext(sizePx, sizePx)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// 100mm grid, coarser for long paths so there are at most maxGridLines.
	step := 100.0
	for span/step > maxGridLines {
		step *= 10
	}
	dc.SetRGBA(0, 0, 0, 0.1)
	dc.SetLineWidth(1)
	startX, startY := math.Floor(minX/step)*step, math.Floor(minY/step)*step
	for i := 0; i <= int(span/step)+1; i++ {
		x, y := toPx(kinematics.Pose{X: startX + float64(i)*step, Y: startY + float64(i)*step})
		if x >= 0 && x <= float64(sizePx) {
			dc.DrawLine(x, 0, x, float64(sizePx))
		}
		if y >= 0 && y <= float64(sizePx) {
			dc.DrawLine(0, y, float64(sizePx), y)
		}
	}
	dc.Stroke()

	dc.SetRGB(0.1, 0.3, 0.9)
	dc.SetLineWidth(2)
	for i, p := range poses {
		x, y := toPx(p)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.Stroke()

	// Start marker.
	dc.SetRGB(0.2, 0.7, 0.2)
	ox, oy := toPx(kinematics.Pose{})
	dc.DrawCircle(ox, oy, 4)
	dc.Fill()

	// Heading arrow at the end.  Screen Y is flipped so negate the angle.
	last := poses[len(poses)-1]
	heading := angle.FromRadians(last.Theta)
	lx, ly := toPx(last)
	dc.Push()
	dc.Translate(lx, ly)
	dc.Rotate(-heading.Radians())
	dc.SetRGB(0.9, 0.2, 0)
	dc.DrawRegularPolygon(3, 0, 0, 8, 0)
	dc.Fill()
	dc.Pop()

	dc.SetRGB(0, 0, 0)
	dc.DrawString(fmt.Sprintf("x=%.0fmm y=%.0fmm heading=%.1fdeg", last.X, last.Y, heading.Float()), marginPx, marginPx/2+5)

	return errors.Wrapf(dc.SavePNG(path), "failed to write trace to %s", path)
}
