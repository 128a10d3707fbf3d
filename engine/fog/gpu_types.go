package fog

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-fog/engine/density"
)

// GPUFogParamsSource is the canonical WGSL definition of the FogParams and VolumeLevel
// structs. Matches GPUFogParams and GPUVolumeLevel exactly.
//
//go:embed assets/fog_params.wgsl
var GPUFogParamsSource string

// FlagDisableEarlyTermination is bit 0 of GPUFogParams.Flags.
const FlagDisableEarlyTermination uint32 = 1 << 0

// GPUFogParams is the GPU-aligned dispatch uniform for the fog compute kernel.
// Size: 144 bytes (WGSL uniform aligned).
type GPUFogParams struct {
	Center               [3]float32  // offset   0: camera-space sphere center
	Radius               float32     // offset  12
	ToLocal              [12]float32 // offset  16: mat3x3 columns, each padded to vec4
	FogColor             [3]float32  // offset  64
	DensityScale         float32     // offset  76
	LightAbsorb          [3]float32  // offset  80
	StepSize             float32     // offset  92
	Width                uint32      // offset  96
	Height               uint32      // offset 100
	LODFloor             uint32      // offset 104
	LODCeil              uint32      // offset 108
	LODBlend             float32     // offset 112
	NoiseInfluence       float32     // offset 116
	NoiseScale           float32     // offset 120
	InitialTransmittance float32     // offset 124
	MinDistance          float32     // offset 128: march entry distance
	MaxDistance          float32     // offset 132: march exit distance
	LightSteps           uint32      // offset 136: light march step cap
	Flags                uint32      // offset 140
}

// GPUParams packs the frame's derived per-dispatch state for upload.
//
// Returns:
//   - GPUFogParams: the packed uniform
func (f *Frame) GPUParams() GPUFogParams {
	p := &f.params
	toLocal := f.sampler.toLocal
	g := GPUFogParams{
		Center:               p.Center,
		Radius:               p.Radius,
		FogColor:             p.FogColor,
		DensityScale:         p.DensityScale,
		LightAbsorb:          p.LightAbsorb,
		StepSize:             p.StepSize,
		Width:                uint32(p.Width),
		Height:               uint32(p.Height),
		LODFloor:             uint32(p.LODFloor),
		LODCeil:              uint32(p.LODCeil),
		LODBlend:             p.LODBlend,
		NoiseInfluence:       p.NoiseInfluence,
		NoiseScale:           p.NoiseScale,
		InitialTransmittance: p.InitialTransmittance,
		MinDistance:          f.minDistance,
		MaxDistance:          f.maxDistance,
		LightSteps:           uint32(f.lightSteps),
	}
	for col := 0; col < 3; col++ {
		c := toLocal.Col(col)
		copy(g.ToLocal[col*4:col*4+3], c[:])
	}
	if p.DisableEarlyTermination {
		g.Flags |= FlagDisableEarlyTermination
	}
	return g
}

// Size returns the size of the GPUFogParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (144)
func (g *GPUFogParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUFogParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 144-byte buffer ready for GPU upload
func (g *GPUFogParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	putF := func(off int, v float32) { binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v)) }
	putU := func(off int, v uint32) { binary.LittleEndian.PutUint32(buf[off:], v) }

	for i := range 3 {
		putF(i*4, g.Center[i])
		putF(64+i*4, g.FogColor[i])
		putF(80+i*4, g.LightAbsorb[i])
	}
	putF(12, g.Radius)
	for i := range 12 {
		putF(16+i*4, g.ToLocal[i])
	}
	putF(76, g.DensityScale)
	putF(92, g.StepSize)
	putU(96, g.Width)
	putU(100, g.Height)
	putU(104, g.LODFloor)
	putU(108, g.LODCeil)
	putF(112, g.LODBlend)
	putF(116, g.NoiseInfluence)
	putF(120, g.NoiseScale)
	putF(124, g.InitialTransmittance)
	putF(128, g.MinDistance)
	putF(132, g.MaxDistance)
	putU(136, g.LightSteps)
	putU(140, g.Flags)
	return buf
}

// GPUVolumeLevel describes where one density LOD lives in the flat voxel buffer.
// Size: 16 bytes.
type GPUVolumeLevel struct {
	Width, Height, Depth uint32
	Offset               uint32 // first voxel index of the level
}

// GPUVolume is a density grid flattened for upload: a level table plus every
// level's voxels back to back.
type GPUVolume struct {
	Levels []GPUVolumeLevel
	Voxels []float32
}

// PackVolume flattens every level of g.
//
// Parameters:
//   - g: the grid to pack
//
// Returns:
//   - GPUVolume: the level table and voxels
//   - error: an error if a level cannot be read
func PackVolume(g *density.Grid) (GPUVolume, error) {
	var v GPUVolume
	for lod := 0; lod < g.Levels(); lod++ {
		lvl, err := g.Level(lod)
		if err != nil {
			return GPUVolume{}, fmt.Errorf("failed to pack level %d: %w", lod, err)
		}
		v.Levels = append(v.Levels, GPUVolumeLevel{
			Width:  uint32(lvl.Width),
			Height: uint32(lvl.Height),
			Depth:  uint32(lvl.Depth),
			Offset: uint32(len(v.Voxels)),
		})
		v.Voxels = append(v.Voxels, lvl.Data...)
	}
	return v, nil
}

// MarshalLevels serializes the level table.
//
// Returns:
//   - []byte: 16 bytes per level
func (v *GPUVolume) MarshalLevels() []byte {
	buf := make([]byte, 16*len(v.Levels))
	for i, l := range v.Levels {
		binary.LittleEndian.PutUint32(buf[i*16:], l.Width)
		binary.LittleEndian.PutUint32(buf[i*16+4:], l.Height)
		binary.LittleEndian.PutUint32(buf[i*16+8:], l.Depth)
		binary.LittleEndian.PutUint32(buf[i*16+12:], l.Offset)
	}
	return buf
}
