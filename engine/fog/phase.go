package fog

import (
	"github.com/Carmen-Shannon/oxy-fog/common"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// DualLobeWeight is the share of the forward lobe in the dual-lobe phase function.
	DualLobeWeight = 0.7

	// scatteringOctaves is the number of terms in the multiple-scattering series.
	scatteringOctaves = 4

	// octaveAnisotropy is the phase asymmetry of the first scattering octave.
	octaveAnisotropy = 0.3

	octaveAttenuation      = 0.2
	octaveContribution     = 0.2
	octavePhaseAttenuation = 0.5
)

// HenyeyGreenstein evaluates the single-lobe Henyey-Greenstein phase function.
//
// Parameters:
//   - g: the asymmetry in (-1, 1); positive favors forward scattering
//   - mu: the cosine of the scattering angle
//
// Returns:
//   - float32: the phase value, normalized to integrate to 1 over the sphere
func HenyeyGreenstein(g, mu float32) float32 {
	g2 := g * g
	return (1 / (4 * math32.Pi)) * (1 - g2) / math32.Pow(1+g2-2*g*mu, 1.5)
}

// DualLobe mixes a back-scatter lobe HG(-g) and a forward lobe HG(g) with
// forward weight w.
func DualLobe(g, mu, w float32) float32 {
	return common.Mix(HenyeyGreenstein(-g, mu), HenyeyGreenstein(g, mu), w)
}

// Phase is the dual-lobe phase function used by the kernel.
func Phase(g, mu float32) float32 {
	return DualLobe(g, mu, DualLobeWeight)
}

// MultipleScattering approximates light that has scattered several times inside
// the medium with a four-octave series. Each octave halves the phase asymmetry and
// scales both the Beer-Lambert extinction and its contribution by 0.2.
//
// Parameters:
//   - opticalDepth: density integrated toward the light
//   - mu: the cosine between the view ray and the light direction
//   - absorb: per-channel absorption coefficient
//
// Returns:
//   - mgl32.Vec3: the per-channel scattered energy
func MultipleScattering(opticalDepth, mu float32, absorb mgl32.Vec3) mgl32.Vec3 {
	a, b, c := float32(1), float32(1), float32(1)
	var luminance mgl32.Vec3
	for i := 0; i < scatteringOctaves; i++ {
		phase := Phase(octaveAnisotropy*c, mu)
		beers := common.ExpVec3(absorb.Mul(-opticalDepth * a))
		luminance = luminance.Add(beers.Mul(b * phase))

		a *= octaveAttenuation
		b *= octaveContribution
		c *= 1 - octavePhaseAttenuation
	}
	return luminance
}

// Powder returns 1 - exp(-2·opticalDepth·absorb) per channel: the darkening of
// thin fog edges where little light has had the chance to scatter toward the eye.
func Powder(opticalDepth float32, absorb mgl32.Vec3) mgl32.Vec3 {
	e := common.ExpVec3(absorb.Mul(-2 * opticalDepth))
	return mgl32.Vec3{1 - e[0], 1 - e[1], 1 - e[2]}
}

// PowderWeight is the factor applied to the multiple-scattering term:
// mix(2·powder, 1, remap(mu, -1, 1, 0, 1)).
//
// Parameters:
//   - opticalDepth: density integrated toward the light
//   - mu: the cosine between the view ray and the light direction
//   - absorb: per-channel absorption coefficient
//
// Returns:
//   - mgl32.Vec3: the per-channel weight
func PowderWeight(opticalDepth, mu float32, absorb mgl32.Vec3) mgl32.Vec3 {
	t := common.Remap(mu, -1, 1, 0, 1)
	p := Powder(opticalDepth, absorb).Mul(2)
	return common.MixVec3(p, mgl32.Vec3{1, 1, 1}, t)
}

// Opacity converts accumulated optical depth into alpha. The exponent is scaled by
// the mean scattered energy, floored at 1.
//
// Parameters:
//   - opticalDepth: the sum of density contributions along the ray
//   - scattering: the accumulated scattering
//
// Returns:
//   - float32: alpha in [0, 1)
func Opacity(opticalDepth float32, scattering mgl32.Vec3) float32 {
	return 1 - math32.Exp(-opticalDepth*max(common.MeanVec3(scattering), 1))
}
