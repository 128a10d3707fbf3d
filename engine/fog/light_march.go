package fog

import (
	"github.com/go-gl/mathgl/mgl32"
)

// LightEnergy marches from origin toward a light and returns the energy that
// survives to be scattered toward the eye. The march takes fixed steps of the
// dispatch step size, at most 2·radius/stepSize of them, and stops as soon as a
// step leaves the sphere.
//
// Parameters:
//   - origin: the camera-space sample position
//   - lightDir: the normalized direction from origin toward the light
//   - mu: the cosine between the view ray and lightDir
//
// Returns:
//   - mgl32.Vec3: per-channel light energy
func (f *Frame) LightEnergy(origin, lightDir mgl32.Vec3, mu float32) mgl32.Vec3 {
	step := f.params.StepSize
	var opticalDepth, marched float32

	for i := 0; i < f.lightSteps; i++ {
		pos := origin.Add(lightDir.Mul(marched))
		if !f.inSphere(pos) {
			break
		}
		opticalDepth += f.sampler.Density(pos) * step
		marched += step
	}

	absorb := f.params.LightAbsorb
	ms := MultipleScattering(opticalDepth, mu, absorb)
	w := PowderWeight(opticalDepth, mu, absorb)
	return mgl32.Vec3{ms[0] * w[0], ms[1] * w[1], ms[2] * w[2]}
}
