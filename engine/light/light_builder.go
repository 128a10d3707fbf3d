package light

import "github.com/go-gl/mathgl/mgl32"

// LightBuilderOption configures a light in NewLight.
type LightBuilderOption func(*lightImpl)

// WithPosition places a point or spot light in world space.
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = mgl32.Vec3{x, y, z}
	}
}

// WithDirection sets the travel direction of a directional light or the axis of a spot
// cone. The vector is normalized; a zero vector stays zero and fails Set validation.
func WithDirection(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.direction = normalize3(x, y, z)
	}
}

// WithColor sets the linear RGB color. Intensity scales it into the diffuse term.
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = mgl32.Vec3{r, g, b}
	}
}

// WithIntensity scales the color.
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.intensity = intensity
	}
}

// WithAttenuation sets the distance falloff 1/(constant + linear·d + quadratic·d²) of a
// point or spot light. Directional lights ignore it.
//
// Parameters:
//   - constant: the distance-independent term
//   - linear: the coefficient of d
//   - quadratic: the coefficient of d²
//
// Returns:
//   - LightBuilderOption: the option
func WithAttenuation(constant, linear, quadratic float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.constant, l.linear, l.quadratic = constant, linear, quadratic
	}
}

// WithSpotCone sets the inner and outer half-angles of a spot cone in degrees. The light
// is full strength inside inner, zero outside outer and blends linearly in cosine between.
//
// Parameters:
//   - innerDeg: inner half-angle in degrees
//   - outerDeg: outer half-angle in degrees, at least innerDeg
//
// Returns:
//   - LightBuilderOption: the option
func WithSpotCone(innerDeg, outerDeg float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.innerCone = cosDeg(innerDeg)
		l.outerCone = cosDeg(outerDeg)
	}
}

// WithEnabled toggles whether NewSet includes the light. Lights start enabled.
func WithEnabled(enabled bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.enabled = enabled
	}
}
