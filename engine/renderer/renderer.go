package renderer

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"reflect"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-fog/common"
	"github.com/Carmen-Shannon/oxy-fog/engine/camera"
	"github.com/Carmen-Shannon/oxy-fog/engine/density"
	"github.com/Carmen-Shannon/oxy-fog/engine/fog"
	"github.com/Carmen-Shannon/oxy-fog/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-fog/engine/light"
	"github.com/Carmen-Shannon/oxy-fog/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-fog/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-fog/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

//go:embed assets/fog_kernel.wgsl
var fogKernelSource string

// FogPipelineKey is the key of the fog compute pipeline.
const FogPipelineKey = "fog_kernel"

// Bindings of the fog kernel's group 0.
const (
	bindingCamera = iota
	bindingParams
	bindingLights
	bindingLevels
	bindingVoxels
	bindingColor
	bindingDepth
)

// fogBindingIdentities names the declaration each fog kernel binding must come from.
var fogBindingIdentities = map[int]shader.AnnotationArg{
	bindingCamera: "camera",
	bindingParams: "params",
	bindingLights: "lights",
	bindingLevels: "levels",
	bindingVoxels: shader.AnnotationArgVolume,
	bindingColor:  shader.AnnotationArgOutputColor,
	bindingDepth:  shader.AnnotationArgOutputDepth,
}

// checkBindings verifies that the kernel source declares every binding the renderer
// writes at the slot it writes it to.
func checkBindings(s shader.Shader) error {
	for binding, identity := range fogBindingIdentities {
		a, ok := s.Declaration(identity)
		if !ok {
			return fmt.Errorf("fog kernel does not declare %q", identity)
		}
		if a.Slot.Group != 0 || a.Slot.Binding != binding {
			return fmt.Errorf("fog kernel declares %q at %d/%d, want 0/%d", identity, a.Slot.Group, a.Slot.Binding, binding)
		}
	}
	return nil
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend

	pipeline pipeline.Pipeline
	provider bind_group_provider.BindGroupProvider

	colorReadback *wgpu.Buffer
	depthReadback *wgpu.Buffer

	// uploaded is the grid whose voxels currently sit in the volume buffers
	uploaded *density.Grid
	// bakedFrom and baked cache the voxelization of the last procedural field
	bakedFrom density.Field
	baked     *density.Grid

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	power                PowerPreference
	bakeResolution       int
}

// Renderer runs the fog march as a WebGPU compute shader, one invocation per pixel,
// and reads the color and depth planes back into a framebuffer.Target.
//
// The GPU kernel mirrors the CPU kernel step for step. Density fields that are not
// voxel grids are baked into a grid before upload. The bake is reused only while the
// same comparable field value is passed; callers animating a density.Func should bake
// it themselves.
type Renderer interface {
	// Dispatch validates params, uploads the per-frame uniforms (and the volume when it
	// changed), runs the kernel and reads the result into target. The context is checked
	// before submission; a submitted dispatch always runs to completion.
	//
	// Parameters:
	//   - ctx: cancellation for the dispatch
	//   - params: the dispatch params; Width and Height must match the target
	//   - field: the density field
	//   - target: the output planes
	//
	// Returns:
	//   - fog.Stats: counters for the dispatch; per-sample counters are not tracked on the GPU
	//   - error: a wrapped fog.ErrInvalidParams, the context error, or a GPU error
	Dispatch(ctx context.Context, params fog.Params, field density.Field, target *framebuffer.Target) (fog.Stats, error)

	// Pipeline returns the registered fog compute pipeline.
	//
	// Returns:
	//   - pipeline.Pipeline: the fog pipeline
	Pipeline() pipeline.Pipeline

	// BakeResolution returns the voxel resolution procedural fields are baked at.
	//
	// Returns:
	//   - int: voxels per axis
	BakeResolution() int

	// Release frees every GPU resource, including the device.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer requests a headless adapter, compiles the fog kernel and registers its
// compute pipeline.
//
// Parameters:
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the ready renderer
//   - error: an error if no adapter is available or the pipeline cannot be built
func NewRenderer(options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:             &sync.Mutex{},
		backendType:    BackendTypeWGPU,
		bakeResolution: 64,
	}
	for _, option := range options {
		option(r)
	}

	switch r.backendType {
	case BackendTypeWGPU:
		backend, err := newWGPURendererBackend(r.forceFallbackAdapter, r.power)
		if err != nil {
			return nil, err
		}
		r.backend = backend
	default:
		return nil, fmt.Errorf("unsupported backend type %d", r.backendType)
	}

	s, err := shader.NewShader(FogPipelineKey, fogKernelSource)
	if err == nil {
		err = checkBindings(s)
	}
	if err != nil {
		r.backend.Release()
		return nil, err
	}
	r.pipeline = pipeline.NewPipeline(FogPipelineKey, pipeline.WithComputeShader(s), pipeline.WithLabel("Fog Sphere"))
	if err := r.backend.RegisterComputePipeline(r.pipeline); err != nil {
		r.backend.Release()
		return nil, fmt.Errorf("failed to register %s: %w", FogPipelineKey, err)
	}

	log.Printf("[Renderer] fog kernel ready, workgroup %v", s.WorkgroupSize())
	return r, nil
}

func (r *renderer) Pipeline() pipeline.Pipeline {
	return r.pipeline
}

func (r *renderer) BakeResolution() int {
	return r.bakeResolution
}

func (r *renderer) Dispatch(ctx context.Context, params fog.Params, field density.Field, target *framebuffer.Target) (fog.Stats, error) {
	start := time.Now()
	if target == nil || target.Width != params.Width || target.Height != params.Height {
		return fog.Stats{}, fmt.Errorf("target does not match %dx%d: %w", params.Width, params.Height, fog.ErrInvalidParams)
	}
	frame, err := fog.NewFrame(params, field)
	if err != nil {
		return fog.Stats{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	grid, err := r.resolveGrid(field)
	if err != nil {
		return fog.Stats{}, err
	}
	if params.LODCeil >= grid.Levels() {
		return fog.Stats{}, fmt.Errorf("lod %d exceeds baked volume levels %d: %w", params.LODCeil, grid.Levels(), fog.ErrInvalidParams)
	}
	if err := r.ensureBuffers(params.Width, params.Height, grid); err != nil {
		return fog.Stats{}, err
	}
	if err := ctx.Err(); err != nil {
		return fog.Stats{}, fmt.Errorf("fog dispatch cancelled: %w", err)
	}

	cam := camera.NewGPUCameraUniform(params.Projection, params.InverseProjection, params.View, params.InverseView)
	gpuParams := frame.GPUParams()
	writes := []bind_group_provider.BufferWrite{
		{Provider: r.provider, Binding: bindingCamera, Data: cam.Marshal()},
		{Provider: r.provider, Binding: bindingParams, Data: gpuParams.Marshal()},
		{Provider: r.provider, Binding: bindingLights, Data: light.MarshalSet(frame.Lights())},
	}
	if r.uploaded != grid {
		volume, err := fog.PackVolume(grid)
		if err != nil {
			return fog.Stats{}, err
		}
		writes = append(writes,
			bind_group_provider.BufferWrite{Provider: r.provider, Binding: bindingLevels, Data: volume.MarshalLevels()},
			bind_group_provider.BufferWrite{Provider: r.provider, Binding: bindingVoxels, Data: common.SliceToBytes(volume.Voxels)},
		)
		r.uploaded = grid
	}
	if err := r.backend.WriteBuffers(writes); err != nil {
		r.uploaded = nil
		return fog.Stats{}, err
	}

	groups := r.pipeline.WorkgroupCount(params.Width, params.Height)
	colorSize := r.provider.BufferSize(bindingColor)
	depthSize := r.provider.BufferSize(bindingDepth)

	if err := r.backend.BeginComputeFrame(); err != nil {
		return fog.Stats{}, err
	}
	r.backend.DispatchCompute(r.pipeline, r.provider, groups)
	if err := r.backend.CopyBuffer(r.provider.Buffer(bindingColor), r.colorReadback, colorSize); err != nil {
		return fog.Stats{}, err
	}
	if err := r.backend.CopyBuffer(r.provider.Buffer(bindingDepth), r.depthReadback, depthSize); err != nil {
		return fog.Stats{}, err
	}
	if err := r.backend.EndComputeFrame(); err != nil {
		return fog.Stats{}, err
	}

	colorBytes, err := r.backend.ReadBuffer(r.colorReadback, colorSize)
	if err != nil {
		return fog.Stats{}, err
	}
	depthBytes, err := r.backend.ReadBuffer(r.depthReadback, depthSize)
	if err != nil {
		return fog.Stats{}, err
	}

	stats := fog.Stats{
		Pixels: int64(params.Width * params.Height),
		Tiles:  int(groups[0] * groups[1]),
	}
	colors := common.Float32sFromBytes(colorBytes)
	depths := common.Float32sFromBytes(depthBytes)
	for i := range target.Color {
		o := i * 4
		target.Color[i] = mgl32.Vec4{colors[o], colors[o+1], colors[o+2], colors[o+3]}
		target.Depth[i] = depths[i]
		if depths[i] < fog.FarDepth {
			stats.Covered++
		}
	}
	stats.Elapsed = time.Since(start)
	return stats, nil
}

// resolveGrid returns field as a grid, baking and caching it when it is procedural.
// Caller must hold the mutex.
func (r *renderer) resolveGrid(field density.Field) (*density.Grid, error) {
	if g, ok := field.(*density.Grid); ok {
		return g, nil
	}
	if r.baked != nil && reflect.TypeOf(field).Comparable() && reflect.TypeOf(field) == reflect.TypeOf(r.bakedFrom) && field == r.bakedFrom {
		return r.baked, nil
	}

	n := r.bakeResolution
	g, err := density.Bake(field, n, n, n)
	if err != nil {
		return nil, fmt.Errorf("failed to bake density field: %w", err)
	}
	log.Printf("[Renderer] baked procedural field at %d^3", n)
	r.bakedFrom = field
	r.baked = g
	return g, nil
}

// ensureBuffers recreates the bind group and readback buffers whenever the output
// resolution or volume size changes. Caller must hold the mutex.
func (r *renderer) ensureBuffers(width, height int, grid *density.Grid) error {
	voxels := 0
	for lod := 0; lod < grid.Levels(); lod++ {
		lvl, err := grid.Level(lod)
		if err != nil {
			return err
		}
		voxels += len(lvl.Data)
	}
	sizes := map[int]uint64{
		bindingLevels: uint64(16 * grid.Levels()),
		bindingVoxels: uint64(4 * voxels),
		bindingColor:  uint64(16 * width * height),
		bindingDepth:  uint64(4 * width * height),
	}

	if r.provider != nil {
		same := true
		for binding, size := range sizes {
			if r.provider.BufferSize(binding) != size {
				same = false
				break
			}
		}
		if same {
			return nil
		}
		r.releaseBuffers()
	}

	r.provider = bind_group_provider.NewBindGroupProvider(FogPipelineKey, bind_group_provider.WithGroup(0))
	usage := map[int]wgpu.BufferUsage{
		bindingColor: wgpu.BufferUsageCopySrc,
		bindingDepth: wgpu.BufferUsageCopySrc,
	}
	if err := r.backend.InitBindGroup(r.provider, r.pipeline, sizes, usage); err != nil {
		r.releaseBuffers()
		return fmt.Errorf("failed to create fog bind group: %w", err)
	}

	var err error
	if r.colorReadback, err = r.backend.CreateReadbackBuffer("Fog Color Readback", sizes[bindingColor]); err != nil {
		r.releaseBuffers()
		return err
	}
	if r.depthReadback, err = r.backend.CreateReadbackBuffer("Fog Depth Readback", sizes[bindingDepth]); err != nil {
		r.releaseBuffers()
		return err
	}
	r.uploaded = nil
	return nil
}

// releaseBuffers frees the bind group, its buffers and the readback buffers.
func (r *renderer) releaseBuffers() {
	if r.provider != nil {
		r.provider.Release()
		r.provider = nil
	}
	if r.colorReadback != nil {
		r.colorReadback.Release()
		r.colorReadback = nil
	}
	if r.depthReadback != nil {
		r.depthReadback.Release()
		r.depthReadback = nil
	}
	r.uploaded = nil
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.releaseBuffers()
	if r.pipeline != nil {
		r.pipeline.Release()
	}
	if r.backend != nil {
		r.backend.Release()
		r.backend = nil
	}
}
