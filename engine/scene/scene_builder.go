package scene

import (
	"github.com/Carmen-Shannon/oxy-fog/engine/density"
	"github.com/Carmen-Shannon/oxy-fog/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithField sets the density field rendered by the scene.
//
// Parameters:
//   - f: the density field
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithField(f density.Field) SceneBuilderOption {
	return func(s *scene) {
		s.field = f
	}
}

// WithVolume places the fog sphere in world space.
//
// Parameters:
//   - center: the world-space sphere center
//   - radius: the sphere radius
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithVolume(center mgl32.Vec3, radius float32) SceneBuilderOption {
	return func(s *scene) {
		s.volume.Center = center
		s.volume.Radius = radius
	}
}

// WithOrientation rotates the volume's local frame.
//
// Parameters:
//   - q: the local-to-world rotation
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithOrientation(q mgl32.Quat) SceneBuilderOption {
	return func(s *scene) {
		s.volume.Orientation = q
	}
}

// WithSettings replaces the fog settings.
//
// Parameters:
//   - settings: the fog settings
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithSettings(settings Settings) SceneBuilderOption {
	return func(s *scene) {
		s.settings = settings
	}
}

// WithLights adds initial world-space lights to the scene.
//
// Parameters:
//   - lights: the lights to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLights(lights ...light.Light) SceneBuilderOption {
	return func(s *scene) {
		s.lights = append(s.lights, lights...)
	}
}
