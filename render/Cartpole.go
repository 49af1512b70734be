// Package render draws environment states to image frames for
// visualizing trained policies.
package render

import (
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"

	"github.com/gorl/ppo/environment/cartpole"
)

const (
	cartWidth   float64 = 80.0
	cartHeight  float64 = 40.0
	poleLength  float64 = 120.0
	poleWidth   float64 = 12.0
	axleRadius  float64 = 6.0
	trackOffset float64 = 60.0 // track height above the frame bottom
)

// Cartpole renders cart-pole states as PNG frames. The track spans the
// frame width, scaled so that the position thresholds sit at the frame
// edges.
type Cartpole struct {
	width  int
	height int
	scale  float64
}

// NewCartpole returns a renderer producing width × height frames.
func NewCartpole(width, height int) *Cartpole {
	return &Cartpole{
		width:  width,
		height: height,
		scale:  float64(width) / (2.0 * cartpole.PositionThreshold),
	}
}

// Frame draws the cart at position x with the pole at angle theta
// radians from vertical.
func (r *Cartpole) Frame(x, theta float64) image.Image {
	dc := gg.NewContext(r.width, r.height)

	dc.SetRGB(1, 1, 1)
	dc.Clear()

	trackY := float64(r.height) - trackOffset
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(2)
	dc.DrawLine(0, trackY, float64(r.width), trackY)
	dc.Stroke()

	cartX := float64(r.width)/2.0 + x*r.scale
	dc.SetRGB(0.2, 0.2, 0.2)
	dc.DrawRectangle(cartX-cartWidth/2.0, trackY-cartHeight, cartWidth,
		cartHeight)
	dc.Fill()

	// The pole pivots on the cart's axle; theta grows clockwise from
	// upright.
	axleY := trackY - cartHeight
	tipX := cartX + poleLength*math.Sin(theta)
	tipY := axleY - poleLength*math.Cos(theta)
	dc.SetRGB(0.76, 0.56, 0.35)
	dc.SetLineWidth(poleWidth)
	dc.SetLineCapRound()
	dc.DrawLine(cartX, axleY, tipX, tipY)
	dc.Stroke()

	dc.SetRGB(0.5, 0.5, 0.5)
	dc.DrawCircle(cartX, axleY, axleRadius)
	dc.Fill()

	return dc.Image()
}

// Save draws a frame and writes it to filename as a PNG.
func (r *Cartpole) Save(x, theta float64, filename string) error {
	dc := gg.NewContextForImage(r.Frame(x, theta))
	if err := dc.SavePNG(filename); err != nil {
		return fmt.Errorf("save: could not write frame: %v", err)
	}
	return nil
}
