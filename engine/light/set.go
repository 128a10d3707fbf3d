package light

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-fog/common"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxPerType is the number of slots available to each light variant in a Set.
const MaxPerType = 8

var (
	// ErrCapacityExceeded is returned when a variant already holds MaxPerType lights.
	ErrCapacityExceeded = errors.New("light capacity exceeded")

	// ErrInvalidLight is returned when a light carries non-finite or degenerate data.
	ErrInvalidLight = errors.New("invalid light")
)

// Source is the plain value form of a light as the fog kernel reads it.
// In a Set produced by ToView, positions are in camera space, a directional
// Direction points from the scene toward the light, and a spot Direction is
// the camera-space cone axis.
type Source struct {
	Type      LightType
	Position  mgl32.Vec3
	Direction mgl32.Vec3
	Diffuse   mgl32.Vec3
	Constant  float32
	Linear    float32
	Quadratic float32
	InnerCone float32 // cos(inner half-angle)
	OuterCone float32 // cos(outer half-angle)
}

// SourceOf snapshots a Light into its value form.
//
// Parameters:
//   - l: the light to snapshot
//
// Returns:
//   - Source: the value form of l
func SourceOf(l Light) Source {
	c, lin, q := l.Attenuation()
	return Source{
		Type:      l.Type(),
		Position:  l.Position(),
		Direction: l.Direction(),
		Diffuse:   l.Diffuse(),
		Constant:  c,
		Linear:    lin,
		Quadratic: q,
		InnerCone: l.InnerCone(),
		OuterCone: l.OuterCone(),
	}
}

// AttenuationAt evaluates 1 / (constant + linear·d + quadratic·d²). The result is
// not clamped; callers clamp it to [0, 1]. A non-positive denominator yields 1.
//
// Parameters:
//   - dist: distance from the light to the sample
//
// Returns:
//   - float32: the distance attenuation factor
func (s Source) AttenuationAt(dist float32) float32 {
	denom := s.Constant + s.Linear*dist + s.Quadratic*dist*dist
	if denom <= 0 {
		return 1
	}
	return 1 / denom
}

// SpotFactor returns the smooth cone falloff for a spot light given the cosine of
// the angle between the cone axis and the direction from the light to the sample.
// Returns 1 inside the inner cone and 0 outside the outer cone.
func (s Source) SpotFactor(cosTheta float32) float32 {
	eps := s.InnerCone - s.OuterCone
	if eps <= 0 {
		if cosTheta >= s.OuterCone {
			return 1
		}
		return 0
	}
	return common.Saturate((cosTheta - s.OuterCone) / eps)
}

// Set holds the fixed-capacity light arrays the fog kernel iterates. Only the
// first DirectionalCount, PointCount and SpotCount slots of each array are live.
type Set struct {
	Directional [MaxPerType]Source
	Point       [MaxPerType]Source
	Spot        [MaxPerType]Source

	DirectionalCount int
	PointCount       int
	SpotCount        int
}

// NewSet builds a Set from the provided lights, skipping disabled ones.
//
// Parameters:
//   - lights: the lights to add
//
// Returns:
//   - Set: the populated set
//   - error: ErrCapacityExceeded if a variant overflows
func NewSet(lights ...Light) (Set, error) {
	var s Set
	for _, l := range lights {
		if err := s.Add(l); err != nil {
			return Set{}, err
		}
	}
	return s, nil
}

// Add appends an enabled light to the slot array for its variant.
// Disabled lights are ignored.
//
// Parameters:
//   - l: the light to add
//
// Returns:
//   - error: ErrCapacityExceeded if the variant is full
func (s *Set) Add(l Light) error {
	if l == nil || !l.Enabled() {
		return nil
	}
	return s.AddSource(SourceOf(l))
}

// AddSource appends a light value to the slot array for its variant.
//
// Parameters:
//   - src: the light value to add
//
// Returns:
//   - error: ErrCapacityExceeded if the variant is full
func (s *Set) AddSource(src Source) error {
	var slots *[MaxPerType]Source
	var count *int
	switch src.Type {
	case LightTypeDirectional:
		slots, count = &s.Directional, &s.DirectionalCount
	case LightTypePoint:
		slots, count = &s.Point, &s.PointCount
	case LightTypeSpot:
		slots, count = &s.Spot, &s.SpotCount
	default:
		return fmt.Errorf("unknown light type %d: %w", src.Type, ErrInvalidLight)
	}
	if *count >= MaxPerType {
		return fmt.Errorf("%s lights: %w (max %d)", src.Type, ErrCapacityExceeded, MaxPerType)
	}
	slots[*count] = src
	*count++
	return nil
}

// Len returns the total number of live lights across all variants.
func (s Set) Len() int {
	return s.DirectionalCount + s.PointCount + s.SpotCount
}

// Validate checks that every count is within capacity and that every live slot
// carries finite data with a usable direction where one is required.
//
// Returns:
//   - error: a wrapped ErrCapacityExceeded or ErrInvalidLight, or nil
func (s Set) Validate() error {
	counts := []struct {
		name  string
		count int
	}{
		{"directional", s.DirectionalCount},
		{"point", s.PointCount},
		{"spot", s.SpotCount},
	}
	for _, c := range counts {
		if c.count < 0 || c.count > MaxPerType {
			return fmt.Errorf("%s count %d: %w (max %d)", c.name, c.count, ErrCapacityExceeded, MaxPerType)
		}
	}

	for i := 0; i < s.DirectionalCount; i++ {
		if err := validateSource(s.Directional[i], true); err != nil {
			return fmt.Errorf("directional light %d: %w", i, err)
		}
	}
	for i := 0; i < s.PointCount; i++ {
		if err := validateSource(s.Point[i], false); err != nil {
			return fmt.Errorf("point light %d: %w", i, err)
		}
	}
	for i := 0; i < s.SpotCount; i++ {
		if err := validateSource(s.Spot[i], true); err != nil {
			return fmt.Errorf("spot light %d: %w", i, err)
		}
	}
	return nil
}

// ToView returns a copy of the set transformed into camera space by view.
//
// Parameters:
//   - view: the world-to-camera transform
//
// Returns:
//   - Set: the camera-space set
func (s Set) ToView(view mgl32.Mat4) Set {
	out := s
	rot := view.Mat3()
	for i := 0; i < s.DirectionalCount; i++ {
		out.Directional[i].Direction = rot.Mul3x1(s.Directional[i].Direction.Mul(-1)).Normalize()
	}
	for i := 0; i < s.PointCount; i++ {
		out.Point[i].Position = view.Mul4x1(s.Point[i].Position.Vec4(1)).Vec3()
	}
	for i := 0; i < s.SpotCount; i++ {
		out.Spot[i].Position = view.Mul4x1(s.Spot[i].Position.Vec4(1)).Vec3()
		out.Spot[i].Direction = rot.Mul3x1(s.Spot[i].Direction).Normalize()
	}
	return out
}

// validateSource checks a single live slot.
func validateSource(src Source, needsDirection bool) error {
	if !common.IsFiniteVec3(src.Position) || !common.IsFiniteVec3(src.Diffuse) || !common.IsFiniteVec3(src.Direction) {
		return fmt.Errorf("non-finite vector: %w", ErrInvalidLight)
	}
	if needsDirection && src.Direction.Len() == 0 {
		return fmt.Errorf("zero-length direction: %w", ErrInvalidLight)
	}
	for _, f := range []float32{src.Constant, src.Linear, src.Quadratic, src.InnerCone, src.OuterCone} {
		if !common.IsFinite(f) {
			return fmt.Errorf("non-finite coefficient: %w", ErrInvalidLight)
		}
	}
	if src.Constant < 0 || src.Linear < 0 || src.Quadratic < 0 {
		return fmt.Errorf("negative attenuation coefficient: %w", ErrInvalidLight)
	}
	return nil
}
