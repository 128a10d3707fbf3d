package density

import (
	"github.com/Carmen-Shannon/oxy-fog/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Func is an analytic field evaluated directly at each lookup. Every level of
// detail returns the same value, which makes it exact under LOD blending.
type Func struct {
	LevelCount int
	Fn         func(uvw mgl32.Vec3) float32
}

var _ Field = Func{}

// Levels returns the configured level count, at least 1.
func (f Func) Levels() int {
	return max(f.LevelCount, 1)
}

// Sample evaluates the function at the clamped lookup coordinate.
func (f Func) Sample(_ int, uvw mgl32.Vec3) float32 {
	uvw = mgl32.Vec3{common.Saturate(uvw[0]), common.Saturate(uvw[1]), common.Saturate(uvw[2])}
	return max(f.Fn(uvw), 0)
}

// Uniform returns a field with the same density everywhere.
//
// Parameters:
//   - value: the density
//   - levels: the number of levels of detail to report
//
// Returns:
//   - Func: the field
func Uniform(value float32, levels int) Func {
	return Func{LevelCount: levels, Fn: func(mgl32.Vec3) float32 { return value }}
}

// HardCutoff returns a field of the given density wherever uvw.z is at least
// cutoff and zero elsewhere. With an untransformed volume a camera ray along -z
// crosses the dense half first.
//
// Parameters:
//   - value: the density on the dense side
//   - cutoff: the z lookup coordinate of the boundary
//
// Returns:
//   - Func: the field
func HardCutoff(value, cutoff float32) Func {
	return Func{LevelCount: 1, Fn: func(uvw mgl32.Vec3) float32 {
		if uvw[2] >= cutoff {
			return value
		}
		return 0
	}}
}

// SoftSphere returns a field that is densest at the center of the lookup cube and
// fades smoothly to zero at radius 0.5.
func SoftSphere(value float32, levels int) Func {
	center := mgl32.Vec3{0.5, 0.5, 0.5}
	return Func{LevelCount: levels, Fn: func(uvw mgl32.Vec3) float32 {
		d := uvw.Sub(center).Len() * 2
		return value * (1 - common.SmoothStep(0.3, 1, d))
	}}
}

// Cloud generates a voxel grid of fractal-noise fog shaped by a spherical falloff.
//
// Parameters:
//   - size: voxels per axis
//   - frequency: noise lattice cells across the volume
//   - octaves: fractal octave count
//   - value: peak density
//
// Returns:
//   - *Grid: the generated grid with mips
//   - error: wrapped ErrInvalidVolume for a bad size
func Cloud(size int, frequency float32, octaves int, value float32) (*Grid, error) {
	shape := SoftSphere(1, 1)
	return Generate(size, size, size, func(uvw mgl32.Vec3) float32 {
		n := FBM(uvw.Mul(frequency), octaves)
		return value * shape.Fn(uvw) * common.SmoothStep(0.35, 0.75, n)
	})
}
