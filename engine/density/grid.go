package density

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-fog/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Level is a single level of detail of a Grid, stored x-fastest then y then z.
type Level struct {
	Width, Height, Depth int
	Data                 []float32
}

// At returns the voxel at (x, y, z) with clamp-to-edge addressing.
func (l *Level) At(x, y, z int) float32 {
	x = clampInt(x, 0, l.Width-1)
	y = clampInt(y, 0, l.Height-1)
	z = clampInt(z, 0, l.Depth-1)
	return l.Data[(z*l.Height+y)*l.Width+x]
}

// Sample returns the trilinearly filtered value at uvw, treating voxel centers as
// the sample points (texel center convention).
func (l *Level) Sample(uvw mgl32.Vec3) float32 {
	fx := uvw[0]*float32(l.Width) - 0.5
	fy := uvw[1]*float32(l.Height) - 0.5
	fz := uvw[2]*float32(l.Depth) - 0.5

	x0, tx := splitFloor(fx)
	y0, ty := splitFloor(fy)
	z0, tz := splitFloor(fz)

	c000 := l.At(x0, y0, z0)
	c100 := l.At(x0+1, y0, z0)
	c010 := l.At(x0, y0+1, z0)
	c110 := l.At(x0+1, y0+1, z0)
	c001 := l.At(x0, y0, z0+1)
	c101 := l.At(x0+1, y0, z0+1)
	c011 := l.At(x0, y0+1, z0+1)
	c111 := l.At(x0+1, y0+1, z0+1)

	c00 := common.Mix(c000, c100, tx)
	c10 := common.Mix(c010, c110, tx)
	c01 := common.Mix(c001, c101, tx)
	c11 := common.Mix(c011, c111, tx)

	c0 := common.Mix(c00, c10, ty)
	c1 := common.Mix(c01, c11, ty)
	return common.Mix(c0, c1, tz)
}

// Grid is a voxel density field with a box-filtered mip chain.
type Grid struct {
	levels []Level
}

var _ Field = &Grid{}

// NewGrid wraps a base level of voxels and builds its full mip chain down to 1×1×1.
// Negative voxel values are clamped to zero.
//
// Parameters:
//   - width, height, depth: base level dimensions (each > 0)
//   - data: width*height*depth voxels, x-fastest
//
// Returns:
//   - *Grid: the mip-mapped grid
//   - error: wrapped ErrInvalidVolume if the dimensions and data disagree
func NewGrid(width, height, depth int, data []float32) (*Grid, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("dimensions %dx%dx%d: %w", width, height, depth, ErrInvalidVolume)
	}
	if len(data) != width*height*depth {
		return nil, fmt.Errorf("expected %d voxels, got %d: %w", width*height*depth, len(data), ErrInvalidVolume)
	}
	base := Level{Width: width, Height: height, Depth: depth, Data: make([]float32, len(data))}
	for i, v := range data {
		base.Data[i] = max(v, 0)
	}

	g := &Grid{levels: []Level{base}}
	for {
		prev := &g.levels[len(g.levels)-1]
		if prev.Width == 1 && prev.Height == 1 && prev.Depth == 1 {
			break
		}
		g.levels = append(g.levels, downsample(prev))
	}
	return g, nil
}

// NewGridFromLevels assembles a Grid from precomputed levels, as read from disk.
// Every level must be consistently sized.
//
// Parameters:
//   - levels: the level chain, finest first
//
// Returns:
//   - *Grid: the grid
//   - error: wrapped ErrInvalidVolume if a level is malformed
func NewGridFromLevels(levels []Level) (*Grid, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("no levels: %w", ErrInvalidVolume)
	}
	for i, l := range levels {
		if l.Width <= 0 || l.Height <= 0 || l.Depth <= 0 || len(l.Data) != l.Width*l.Height*l.Depth {
			return nil, fmt.Errorf("level %d is %dx%dx%d with %d voxels: %w", i, l.Width, l.Height, l.Depth, len(l.Data), ErrInvalidVolume)
		}
	}
	return &Grid{levels: levels}, nil
}

// Generate fills a grid by evaluating fn at every voxel center and builds its mips.
//
// Parameters:
//   - width, height, depth: base level dimensions
//   - fn: the density function over [0,1]³
//
// Returns:
//   - *Grid: the generated grid
//   - error: wrapped ErrInvalidVolume for bad dimensions
func Generate(width, height, depth int, fn func(uvw mgl32.Vec3) float32) (*Grid, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("dimensions %dx%dx%d: %w", width, height, depth, ErrInvalidVolume)
	}
	data := make([]float32, width*height*depth)
	i := 0
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				uvw := mgl32.Vec3{
					(float32(x) + 0.5) / float32(width),
					(float32(y) + 0.5) / float32(height),
					(float32(z) + 0.5) / float32(depth),
				}
				data[i] = fn(uvw)
				i++
			}
		}
	}
	return NewGrid(width, height, depth, data)
}

// Bake samples an arbitrary field on a regular grid at level 0 and returns a Grid
// with its own mip chain. Used to upload analytic fields to the GPU.
func Bake(f Field, width, height, depth int) (*Grid, error) {
	return Generate(width, height, depth, func(uvw mgl32.Vec3) float32 {
		return f.Sample(0, uvw)
	})
}

// Levels returns the number of levels in the mip chain.
func (g *Grid) Levels() int {
	return len(g.levels)
}

// Level returns the level at index lod.
//
// Parameters:
//   - lod: the level index
//
// Returns:
//   - *Level: the level
//   - error: wrapped ErrLODOutOfRange if lod does not exist
func (g *Grid) Level(lod int) (*Level, error) {
	if lod < 0 || lod >= len(g.levels) {
		return nil, fmt.Errorf("lod %d of %d: %w", lod, len(g.levels), ErrLODOutOfRange)
	}
	return &g.levels[lod], nil
}

// Sample returns the trilinearly filtered density at uvw on the given level.
func (g *Grid) Sample(lod int, uvw mgl32.Vec3) float32 {
	return g.levels[lod].Sample(uvw)
}

// downsample box-filters a level into one half its size on each axis (minimum 1).
func downsample(src *Level) Level {
	dst := Level{
		Width:  max(src.Width/2, 1),
		Height: max(src.Height/2, 1),
		Depth:  max(src.Depth/2, 1),
	}
	dst.Data = make([]float32, dst.Width*dst.Height*dst.Depth)

	sx := src.Width / dst.Width
	sy := src.Height / dst.Height
	sz := src.Depth / dst.Depth
	inv := 1 / float32(sx*sy*sz)

	i := 0
	for z := 0; z < dst.Depth; z++ {
		for y := 0; y < dst.Height; y++ {
			for x := 0; x < dst.Width; x++ {
				var sum float32
				for dz := 0; dz < sz; dz++ {
					for dy := 0; dy < sy; dy++ {
						for dx := 0; dx < sx; dx++ {
							sum += src.At(x*sx+dx, y*sy+dy, z*sz+dz)
						}
					}
				}
				dst.Data[i] = sum * inv
				i++
			}
		}
	}
	return dst
}

// splitFloor returns the integer floor of f and the fractional remainder.
func splitFloor(f float32) (int, float32) {
	i := int(f)
	if float32(i) > f {
		i--
	}
	return i, f - float32(i)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
