// Package framebuffer holds the color and depth planes a fog dispatch writes, and
// encodes them as OpenEXR or PNG.
package framebuffer

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Target is a linear RGBA color plane plus a single-channel depth plane.
// Row 0 is the bottom of the image, matching normalized device coordinates.
// Concurrent writes to distinct pixels are safe.
type Target struct {
	Width  int
	Height int
	Color  []mgl32.Vec4
	Depth  []float32
}

// NewTarget allocates a cleared target.
//
// Parameters:
//   - width, height: the resolution in pixels
//
// Returns:
//   - *Target: the target, cleared to transparent black at far depth
func NewTarget(width, height int) *Target {
	t := &Target{
		Width:  width,
		Height: height,
		Color:  make([]mgl32.Vec4, width*height),
		Depth:  make([]float32, width*height),
	}
	t.Clear()
	return t
}

// Clear resets every pixel to transparent black at depth 1.
func (t *Target) Clear() {
	for i := range t.Color {
		t.Color[i] = mgl32.Vec4{}
		t.Depth[i] = 1
	}
}

// Set writes one pixel.
func (t *Target) Set(x, y int, color mgl32.Vec4, depth float32) {
	i := y*t.Width + x
	t.Color[i] = color
	t.Depth[i] = depth
}

// At reads one pixel.
func (t *Target) At(x, y int) (mgl32.Vec4, float32) {
	i := y*t.Width + x
	return t.Color[i], t.Depth[i]
}

// Coverage returns the fraction of pixels with non-zero alpha.
func (t *Target) Coverage() float32 {
	if len(t.Color) == 0 {
		return 0
	}
	n := 0
	for _, c := range t.Color {
		if c.W() > 0 {
			n++
		}
	}
	return float32(n) / float32(len(t.Color))
}
