package density

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// The hash and both noise functions are mirrored bit for bit in the fog WGSL
// kernel; any change here must be made there too.

// hash3 mixes three lattice coordinates into a well-distributed 32-bit value.
func hash3(x, y, z int32) uint32 {
	h := uint32(x)*0x8da6b343 ^ uint32(y)*0xd8163841 ^ uint32(z)*0xcb1ab31f
	h ^= h >> 13
	h *= 0x5bd1e995
	h ^= h >> 15
	return h
}

// latticeValue maps a hash onto [0, 1].
func latticeValue(x, y, z int32) float32 {
	return float32(hash3(x, y, z)&0xffffff) / float32(0xffffff)
}

// gradients are the twelve cube-edge directions of improved Perlin noise.
var gradients = [12]mgl32.Vec3{
	{1, 1, 0}, {-1, 1, 0}, {1, -1, 0}, {-1, -1, 0},
	{1, 0, 1}, {-1, 0, 1}, {1, 0, -1}, {-1, 0, -1},
	{0, 1, 1}, {0, -1, 1}, {0, 1, -1}, {0, -1, -1},
}

func gradDot(x, y, z int32, fx, fy, fz float32) float32 {
	g := gradients[hash3(x, y, z)%12]
	return g[0]*fx + g[1]*fy + g[2]*fz
}

func smooth(t float32) float32 {
	return t * t * (3 - 2*t)
}

func quintic(t float32) float32 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// ValueNoise returns smoothly interpolated lattice noise in [0, 1].
//
// Parameters:
//   - p: the evaluation point; one lattice cell per unit
//
// Returns:
//   - float32: the noise value
func ValueNoise(p mgl32.Vec3) float32 {
	fx, fy, fz := math32.Floor(p[0]), math32.Floor(p[1]), math32.Floor(p[2])
	ix, iy, iz := int32(fx), int32(fy), int32(fz)
	tx, ty, tz := smooth(p[0]-fx), smooth(p[1]-fy), smooth(p[2]-fz)

	c000 := latticeValue(ix, iy, iz)
	c100 := latticeValue(ix+1, iy, iz)
	c010 := latticeValue(ix, iy+1, iz)
	c110 := latticeValue(ix+1, iy+1, iz)
	c001 := latticeValue(ix, iy, iz+1)
	c101 := latticeValue(ix+1, iy, iz+1)
	c011 := latticeValue(ix, iy+1, iz+1)
	c111 := latticeValue(ix+1, iy+1, iz+1)

	return lerp(
		lerp(lerp(c000, c100, tx), lerp(c010, c110, tx), ty),
		lerp(lerp(c001, c101, tx), lerp(c011, c111, tx), ty),
		tz,
	)
}

// GradientNoise returns Perlin-style gradient noise, clamped to [-1, 1].
// The value is zero at every lattice point.
//
// Parameters:
//   - p: the evaluation point; one lattice cell per unit
//
// Returns:
//   - float32: the noise value
func GradientNoise(p mgl32.Vec3) float32 {
	fx, fy, fz := math32.Floor(p[0]), math32.Floor(p[1]), math32.Floor(p[2])
	ix, iy, iz := int32(fx), int32(fy), int32(fz)
	rx, ry, rz := p[0]-fx, p[1]-fy, p[2]-fz
	u, v, w := quintic(rx), quintic(ry), quintic(rz)

	n000 := gradDot(ix, iy, iz, rx, ry, rz)
	n100 := gradDot(ix+1, iy, iz, rx-1, ry, rz)
	n010 := gradDot(ix, iy+1, iz, rx, ry-1, rz)
	n110 := gradDot(ix+1, iy+1, iz, rx-1, ry-1, rz)
	n001 := gradDot(ix, iy, iz+1, rx, ry, rz-1)
	n101 := gradDot(ix+1, iy, iz+1, rx-1, ry, rz-1)
	n011 := gradDot(ix, iy+1, iz+1, rx, ry-1, rz-1)
	n111 := gradDot(ix+1, iy+1, iz+1, rx-1, ry-1, rz-1)

	n := lerp(
		lerp(lerp(n000, n100, u), lerp(n010, n110, u), v),
		lerp(lerp(n001, n101, u), lerp(n011, n111, u), v),
		w,
	)
	return max(-1, min(1, n))
}

// FBM sums octaves of gradient noise with halving amplitude and doubling
// frequency, remapped onto [0, 1].
//
// Parameters:
//   - p: the evaluation point
//   - octaves: number of octaves (at least 1)
//
// Returns:
//   - float32: the fractal noise value
func FBM(p mgl32.Vec3, octaves int) float32 {
	var sum, norm float32
	amp := float32(1)
	for i := 0; i < max(octaves, 1); i++ {
		sum += amp * GradientNoise(p)
		norm += amp
		amp *= 0.5
		p = p.Mul(2)
	}
	return max(0, min(1, sum/norm*0.5+0.5))
}

// Modulation combines gradient and value noise at p into a density multiplier
// floored at 1 - influence. An influence of zero always yields 1, so noise can
// only thin the fog out.
//
// Parameters:
//   - p: the unnormalized local-space position
//   - scale: lattice cells per unit of local space
//   - influence: how far the multiplier may drop, in [0, 1]
//
// Returns:
//   - float32: the multiplier in [1 - influence, 1]
func Modulation(p mgl32.Vec3, scale, influence float32) float32 {
	if influence <= 0 {
		return 1
	}
	q := p.Mul(scale)
	n := 0.5*(GradientNoise(q)*0.5+0.5) + 0.5*ValueNoise(q)
	return max(1-influence, n)
}
