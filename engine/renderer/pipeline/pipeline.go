package pipeline

import (
	"github.com/Carmen-Shannon/oxy-fog/common"
	"github.com/Carmen-Shannon/oxy-fog/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	// pipelineKey is the unique identifier for this pipeline, used for caching and lookups
	pipelineKey string
	// label names the GPU objects; empty falls back to the key
	label string

	// computeShader is required before the pipeline is registered with a backend.
	computeShader shader.Shader

	// computePipeline is nil until the backend registers the pipeline
	computePipeline *wgpu.ComputePipeline
	// bindGroupLayouts are created alongside the compute pipeline, indexed by group
	bindGroupLayouts []*wgpu.BindGroupLayout
}

// Pipeline wraps a compute pipeline together with the shader it was built from and
// the bind group layouts the backend created for it.
type Pipeline interface {
	// PipelineKey returns the unique key associated with this pipeline.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Label returns the debug label for the pipeline's GPU objects.
	//
	// Returns:
	//   - string: the label, or the pipeline key when none was set
	Label() string

	// Shader returns the compute shader.
	//
	// Returns:
	//   - shader.Shader: the compute shader, or nil if not set
	Shader() shader.Shader

	// ComputePipeline returns the GPU pipeline object, or nil before registration.
	//
	// Returns:
	//   - *wgpu.ComputePipeline: the compute pipeline
	ComputePipeline() *wgpu.ComputePipeline

	// BindGroupLayout returns the layout created for a group index, or nil.
	//
	// Parameters:
	//   - group: the @group index
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the layout
	BindGroupLayout(group int) *wgpu.BindGroupLayout

	// WorkgroupCount returns the dispatch size that covers a width x height grid
	// of invocations with the shader's workgroup size.
	//
	// Parameters:
	//   - width, height: the invocation grid
	//
	// Returns:
	//   - [3]uint32: the workgroup count
	WorkgroupCount(width, height int) [3]uint32

	// SetComputePipeline stores the created GPU pipeline and its layouts.
	//
	// Parameters:
	//   - p: the WebGPU compute pipeline
	//   - layouts: the bind group layouts indexed by group
	SetComputePipeline(p *wgpu.ComputePipeline, layouts []*wgpu.BindGroupLayout)

	// Release frees the GPU objects held by the pipeline.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates an unregistered compute pipeline.
//
// Parameters:
//   - pipelineKey: the unique key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey: pipelineKey,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Label() string {
	return common.Coalesce(p.label, p.pipelineKey)
}

func (p *pipeline) Shader() shader.Shader {
	return p.computeShader
}

func (p *pipeline) ComputePipeline() *wgpu.ComputePipeline {
	return p.computePipeline
}

func (p *pipeline) BindGroupLayout(group int) *wgpu.BindGroupLayout {
	if group < 0 || group >= len(p.bindGroupLayouts) {
		return nil
	}
	return p.bindGroupLayouts[group]
}

func (p *pipeline) WorkgroupCount(width, height int) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	if p.computeShader != nil {
		size = p.computeShader.WorkgroupSize()
	}
	return [3]uint32{
		(uint32(width) + size[0] - 1) / size[0],
		(uint32(height) + size[1] - 1) / size[1],
		1,
	}
}

func (p *pipeline) SetComputePipeline(cp *wgpu.ComputePipeline, layouts []*wgpu.BindGroupLayout) {
	p.computePipeline = cp
	p.bindGroupLayouts = layouts
}

func (p *pipeline) Release() {
	if p.computePipeline != nil {
		p.computePipeline.Release()
		p.computePipeline = nil
	}
	for i, l := range p.bindGroupLayouts {
		if l != nil {
			l.Release()
			p.bindGroupLayouts[i] = nil
		}
	}
}
