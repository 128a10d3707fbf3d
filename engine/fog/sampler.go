package fog

import (
	"github.com/Carmen-Shannon/oxy-fog/common"
	"github.com/Carmen-Shannon/oxy-fog/engine/density"
	"github.com/go-gl/mathgl/mgl32"
)

const sqrt2 = 1.414213562

// Sampler maps camera-space points into the fog volume's lookup cube and returns
// LOD-blended, noise-modulated density. It holds no mutable state.
type Sampler struct {
	field          density.Field
	toLocal        mgl32.Mat3
	center         mgl32.Vec3
	invInscribed   float32
	lodFloor       int
	lodCeil        int
	lodBlend       float32
	noiseInfluence float32
	noiseScale     float32
}

// NewSampler binds a density field to the volume described by p.
//
// Parameters:
//   - p: validated dispatch params
//   - field: the density field
//
// Returns:
//   - Sampler: the sampler
func NewSampler(p *Params, field density.Field) Sampler {
	return Sampler{
		field:          field,
		toLocal:        p.Rotation.Mul3(p.InverseView.Mat3()),
		center:         p.Center,
		invInscribed:   1 / InscribedRadius(p.Radius),
		lodFloor:       p.LODFloor,
		lodCeil:        p.LODCeil,
		lodBlend:       p.LODBlend,
		noiseInfluence: p.NoiseInfluence,
		noiseScale:     p.NoiseScale,
	}
}

// InscribedRadius is the half-extent of the largest cube inside a sphere of radius r.
func InscribedRadius(r float32) float32 {
	return r / sqrt2
}

// Local returns the unnormalized volume-local offset of a camera-space point.
func (s *Sampler) Local(pos mgl32.Vec3) mgl32.Vec3 {
	return s.toLocal.Mul3x1(pos.Sub(s.center))
}

// Lookup returns the density-field coordinate of a camera-space point: the offset
// from the center in inscribed radii, biased by 0.5. Points within half an
// inscribed radius of the center land in [0,1]³; the rest clamp to the field edge.
func (s *Sampler) Lookup(pos mgl32.Vec3) mgl32.Vec3 {
	return s.Local(pos).Mul(s.invInscribed).Add(mgl32.Vec3{0.5, 0.5, 0.5})
}

// Density returns the sampled density at a camera-space point, before the
// dispatch density scale is applied.
//
// Parameters:
//   - pos: the camera-space sample position
//
// Returns:
//   - float32: the density, never negative
func (s *Sampler) Density(pos mgl32.Vec3) float32 {
	local := s.Local(pos)
	uvw := local.Mul(s.invInscribed).Add(mgl32.Vec3{0.5, 0.5, 0.5})

	d := common.Mix(s.field.Sample(s.lodFloor, uvw), s.field.Sample(s.lodCeil, uvw), s.lodBlend)
	if s.noiseInfluence > 0 {
		d *= density.Modulation(local, s.noiseScale, s.noiseInfluence)
	}
	return d
}
