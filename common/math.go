package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Mix linearly interpolates between a and b by t (GLSL mix).
func Mix(a, b, t float32) float32 {
	return a + (b-a)*t
}

// Clamp restricts v to the closed interval [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Saturate clamps v to [0, 1].
func Saturate(v float32) float32 {
	return Clamp(v, 0, 1)
}

// Remap maps v from the range [inMin, inMax] onto [outMin, outMax] without clamping.
//
// Parameters:
//   - v: the value to remap
//   - inMin, inMax: the source range (must differ)
//   - outMin, outMax: the destination range
//
// Returns:
//   - float32: the remapped value
func Remap(v, inMin, inMax, outMin, outMax float32) float32 {
	return outMin + (v-inMin)*(outMax-outMin)/(inMax-inMin)
}

// SmoothStep performs Hermite interpolation between 0 and 1 when edge0 < x < edge1.
func SmoothStep(edge0, edge1, x float32) float32 {
	t := Saturate((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

// MixVec3 interpolates two vectors component-wise by t.
func MixVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return mgl32.Vec3{Mix(a[0], b[0], t), Mix(a[1], b[1], t), Mix(a[2], b[2], t)}
}

// MulVec3 returns the component-wise product of a and b.
func MulVec3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// ExpVec3 returns e raised to each component of v.
func ExpVec3(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{math32.Exp(v[0]), math32.Exp(v[1]), math32.Exp(v[2])}
}

// SaturateVec3 clamps every component of v to [0, 1].
func SaturateVec3(v mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{Saturate(v[0]), Saturate(v[1]), Saturate(v[2])}
}

// MeanVec3 returns the arithmetic mean of the three components of v.
func MeanVec3(v mgl32.Vec3) float32 {
	return (v[0] + v[1] + v[2]) / 3
}

// IsFinite reports whether f is neither NaN nor infinite.
func IsFinite(f float32) bool {
	return !math32.IsNaN(f) && !math32.IsInf(f, 0)
}

// IsFiniteVec3 reports whether every component of v is finite.
func IsFiniteVec3(v mgl32.Vec3) bool {
	return IsFinite(v[0]) && IsFinite(v[1]) && IsFinite(v[2])
}

// IsFiniteMat3 reports whether every element of m is finite.
func IsFiniteMat3(m mgl32.Mat3) bool {
	for _, f := range m {
		if !IsFinite(f) {
			return false
		}
	}
	return true
}

// IsFiniteMat4 reports whether every element of m is finite.
func IsFiniteMat4(m mgl32.Mat4) bool {
	for _, f := range m {
		if !IsFinite(f) {
			return false
		}
	}
	return true
}

// IsUnitVec3 reports whether v is finite and has a length within tol of 1.
func IsUnitVec3(v mgl32.Vec3, tol float32) bool {
	if !IsFiniteVec3(v) {
		return false
	}
	return math32.Abs(v.Len()-1) <= tol
}
