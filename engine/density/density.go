// Package density provides the 3D scalar fields the fog kernel samples: a
// mip-mapped voxel grid, analytic procedural fields, deterministic lattice noise
// and a compressed on-disk volume format.
package density

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrInvalidVolume is returned when volume dimensions or data are inconsistent.
	ErrInvalidVolume = errors.New("invalid density volume")

	// ErrLODOutOfRange is returned when a level-of-detail index does not exist.
	ErrLODOutOfRange = errors.New("level of detail out of range")
)

// Field is a trilinearly filterable 3D scalar field addressed by a lookup vector in
// [0,1]³. Coordinates outside the unit cube clamp to the nearest edge. The field
// exposes discrete levels of detail; blending between them is the caller's job.
//
// Implementations must be safe for concurrent Sample calls.
type Field interface {
	// Levels returns the number of addressable levels of detail. Level 0 is the
	// finest; valid indices are [0, Levels()).
	//
	// Returns:
	//   - int: the level count (at least 1)
	Levels() int

	// Sample returns the filtered density at uvw on the given level.
	// The lod index must already be within range.
	//
	// Parameters:
	//   - lod: the level-of-detail index
	//   - uvw: the lookup coordinate
	//
	// Returns:
	//   - float32: the density, never negative
	Sample(lod int, uvw mgl32.Vec3) float32
}
