package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraController owns the camera's positional state. The camera reads the
// position and target from the controller and derives its matrices from them.
//
// The controller orbits a target point using spherical coordinates (radius,
// azimuth, elevation); the position is always recomputed from them.
type CameraController interface {
	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - mgl32.Vec3: world-space camera position
	Position() mgl32.Vec3

	// Target returns the look-at point.
	//
	// Returns:
	//   - mgl32.Vec3: world-space target position
	Target() mgl32.Vec3

	// SetTarget sets the orbit pivot and recomputes the position.
	//
	// Parameters:
	//   - target: world-space pivot
	SetTarget(target mgl32.Vec3)

	// Orbit rotates the camera around the target. Deltas are multiplied by the
	// orbit speed; elevation is clamped to the configured bounds.
	//
	// Parameters:
	//   - dAzimuth: horizontal steps, positive turns right
	//   - dElevation: vertical steps, positive tilts up
	Orbit(dAzimuth, dElevation float32)

	// Pan slides the target and the camera together across the view plane.
	// Deltas are multiplied by the pan speed scaled by the current radius.
	//
	// Parameters:
	//   - dx: steps along the camera's right axis
	//   - dy: steps along the camera's up axis
	Pan(dx, dy float32)

	// Zoom moves the camera toward the target. Positive delta zooms in.
	// The radius is clamped to the configured bounds.
	//
	// Parameters:
	//   - delta: zoom amount scaled by the zoom speed
	Zoom(delta float32)

	// Radius returns the distance from the target.
	Radius() float32

	// SetRadius sets the distance from the target, clamped to the bounds.
	SetRadius(radius float32)

	// Azimuth returns the horizontal angle around the Y axis in radians.
	Azimuth() float32

	// SetAzimuth places the camera at an absolute horizontal angle.
	//
	// Parameters:
	//   - azimuth: angle around the Y axis in radians
	SetAzimuth(azimuth float32)

	// Elevation returns the vertical angle above the horizontal plane in radians.
	Elevation() float32
}
