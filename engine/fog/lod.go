package fog

import (
	"github.com/Carmen-Shannon/oxy-fog/common"
	"github.com/chewxy/math32"
)

// SelectLOD picks the two density levels and their blend for a volume seen from
// the given distance. The finest level is used until the camera is one sphere
// diameter away; each doubling of distance after that moves one level coarser.
//
// Parameters:
//   - distance: camera distance to the volume center
//   - radius: the volume radius
//   - levels: the number of levels the field exposes
//
// Returns:
//   - floor, ceil: the level indices to blend
//   - blend: the weight of ceil, in [0, 1]
func SelectLOD(distance, radius float32, levels int) (floor, ceil int, blend float32) {
	if levels <= 1 || radius <= 0 {
		return 0, 0, 0
	}
	lod := math32.Log2(max(distance/(2*radius), 1))
	lod = common.Clamp(lod, 0, float32(levels-1))
	floor = int(lod)
	ceil = min(floor+1, levels-1)
	blend = lod - float32(floor)
	if floor == ceil {
		blend = 0
	}
	return floor, ceil, blend
}
