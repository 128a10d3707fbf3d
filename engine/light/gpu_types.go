package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPULightSource is the canonical WGSL definition of the Light and LightSet structs.
// Matches GPULight and MarshalSet layouts exactly.
//
//go:embed assets/light.wgsl
var GPULightSource string

// GPULightSetSize is the byte size of a marshaled Set: a 16-byte count header
// followed by three arrays of MaxPerType GPULight entries.
const GPULightSetSize = 16 + 3*MaxPerType*64

// GPULight is the GPU-aligned representation of a single light source.
// Matches the WGSL Light struct layout exactly (see GPULightSource).
// Size: 64 bytes (std430 / WGSL aligned).
type GPULight struct {
	Position  [3]float32 // offset  0: camera-space position (point/spot)
	LightType uint32     // offset 12: 0 = directional, 1 = point, 2 = spot
	Diffuse   [3]float32 // offset 16: color * intensity
	Constant  float32    // offset 28: constant attenuation
	Direction [3]float32 // offset 32: toward-light (directional) or cone axis (spot)
	Linear    float32    // offset 44: linear attenuation
	Quadratic float32    // offset 48: quadratic attenuation
	InnerCone float32    // offset 52: cos(inner half-angle) for spot
	OuterCone float32    // offset 56: cos(outer half-angle) for spot
	_pad      float32    // offset 60: padding to 64-byte alignment
}

// NewGPULight converts a light value into its GPU layout.
func NewGPULight(s Source) GPULight {
	return GPULight{
		Position:  s.Position,
		LightType: uint32(s.Type),
		Diffuse:   s.Diffuse,
		Constant:  s.Constant,
		Direction: s.Direction,
		Linear:    s.Linear,
		Quadratic: s.Quadratic,
		InnerCone: s.InnerCone,
		OuterCone: s.OuterCone,
	}
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, 64)
	putVec3(buf[0:12], g.Position)
	binary.LittleEndian.PutUint32(buf[12:16], g.LightType)
	putVec3(buf[16:28], g.Diffuse)
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.Constant))
	putVec3(buf[32:44], g.Direction)
	binary.LittleEndian.PutUint32(buf[44:48], math.Float32bits(g.Linear))
	binary.LittleEndian.PutUint32(buf[48:52], math.Float32bits(g.Quadratic))
	binary.LittleEndian.PutUint32(buf[52:56], math.Float32bits(g.InnerCone))
	binary.LittleEndian.PutUint32(buf[56:60], math.Float32bits(g.OuterCone))
	binary.LittleEndian.PutUint32(buf[60:64], 0) // padding
	return buf
}

// MarshalSet serializes a Set into the WGSL LightSet layout. Unused slots are zeroed,
// so the shader never reads stale data past the live counts.
//
// Parameters:
//   - s: the light set, normally already in camera space
//
// Returns:
//   - []byte: GPULightSetSize bytes ready for GPU upload
func MarshalSet(s Set) []byte {
	buf := make([]byte, GPULightSetSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(s.DirectionalCount))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(s.PointCount))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(s.SpotCount))

	offset := 16
	write := func(slots *[MaxPerType]Source, count int) {
		for i := 0; i < MaxPerType; i++ {
			if i < count {
				g := NewGPULight(slots[i])
				copy(buf[offset:offset+64], g.Marshal())
			}
			offset += 64
		}
	}
	write(&s.Directional, s.DirectionalCount)
	write(&s.Point, s.PointCount)
	write(&s.Spot, s.SpotCount)
	return buf
}

func putVec3(dst []byte, v [3]float32) {
	binary.LittleEndian.PutUint32(dst[0:4], math.Float32bits(v[0]))
	binary.LittleEndian.PutUint32(dst[4:8], math.Float32bits(v[1]))
	binary.LittleEndian.PutUint32(dst[8:12], math.Float32bits(v[2]))
}
