package camera

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// GPUCameraUniformSource is the canonical WGSL definition of the CameraUniform struct.
// Matches GPUCameraUniform layout exactly (256 bytes, std430 aligned).
//
//go:embed assets/camera_uniform.wgsl
var GPUCameraUniformSource string

// GPUCameraUniform is the GPU-aligned representation of the camera matrices the fog
// kernel needs. Matrices are column-major, as mgl32 stores them.
// Size: 256 bytes.
type GPUCameraUniform struct {
	Projection        [16]float32 // offset   0
	InverseProjection [16]float32 // offset  64
	View              [16]float32 // offset 128
	InverseView       [16]float32 // offset 192
}

// NewGPUCameraUniform packs the four matrices of a frame.
//
// Parameters:
//   - proj, invProj: projection and its inverse
//   - view, invView: world-to-view matrix and its inverse
//
// Returns:
//   - GPUCameraUniform: the packed uniform
func NewGPUCameraUniform(proj, invProj, view, invView mgl32.Mat4) GPUCameraUniform {
	return GPUCameraUniform{
		Projection:        proj,
		InverseProjection: invProj,
		View:              view,
		InverseView:       invView,
	}
}

// Size returns the size of the GPUCameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (256)
func (g *GPUCameraUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCameraUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	mats := [4]*[16]float32{&g.Projection, &g.InverseProjection, &g.View, &g.InverseView}
	for m, mat := range mats {
		for i := range 16 {
			binary.LittleEndian.PutUint32(buf[m*64+i*4:], math.Float32bits(mat[i]))
		}
	}
	return buf
}
