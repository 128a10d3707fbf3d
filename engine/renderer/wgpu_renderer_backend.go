package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-fog/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-fog/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrMapFailed is returned when a readback buffer cannot be mapped.
var ErrMapFailed = errors.New("failed to map readback buffer")

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter

	// computeFrameEncoder batches every dispatch and copy of a frame into one submission
	computeFrameEncoder *wgpu.CommandEncoder
}

type wgpuRendererBackend interface {
	Device() *wgpu.Device
	Queue() *wgpu.Queue
	Instance() *wgpu.Instance
	Adapter() *wgpu.Adapter

	// RegisterComputePipeline creates the shader module, bind group layouts, pipeline
	// layout and compute pipeline for p and stores them on it.
	//
	// Parameters:
	//   - p: the pipeline holding the compute shader
	//
	// Returns:
	//   - error: an error if any GPU object cannot be created
	RegisterComputePipeline(p pipeline.Pipeline) error

	// InitBindGroup creates a buffer for every entry of the pipeline's layout for the
	// provider's group and the bind group that binds them. Buffers already present on the
	// provider are reused.
	//
	// Parameters:
	//   - provider: the provider receiving the buffers and bind group
	//   - p: the registered pipeline
	//   - sizeOverrides: byte sizes for runtime-sized bindings, keyed by binding
	//   - usageOverrides: extra usage flags keyed by binding (e.g. CopySrc for outputs)
	//
	// Returns:
	//   - error: an error if a buffer or the bind group cannot be created
	InitBindGroup(provider bind_group_provider.BindGroupProvider, p pipeline.Pipeline, sizeOverrides map[int]uint64, usageOverrides map[int]wgpu.BufferUsage) error

	// WriteBuffers checks every staged write and then queues them. Nothing is queued
	// when any write fails its check.
	//
	// Parameters:
	//   - writes: the staged writes
	//
	// Returns:
	//   - error: the first failed check
	WriteBuffers(writes []bind_group_provider.BufferWrite) error

	// BeginComputeFrame creates the command encoder for a frame's dispatches and copies.
	//
	// Returns:
	//   - error: an error if the encoder cannot be created
	BeginComputeFrame() error

	// DispatchCompute encodes one compute pass with the provider bound at its group.
	//
	// Parameters:
	//   - p: the registered pipeline
	//   - provider: the provider holding the bind group
	//   - workGroupCount: the dispatch size
	DispatchCompute(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32)

	// CopyBuffer encodes a buffer-to-buffer copy after the dispatches encoded so far.
	//
	// Parameters:
	//   - src, dst: the source and destination buffers
	//   - size: the byte count, a multiple of 4
	//
	// Returns:
	//   - error: an error if the copy cannot be encoded
	CopyBuffer(src, dst *wgpu.Buffer, size uint64) error

	// EndComputeFrame finishes the encoder and submits it to the queue.
	//
	// Returns:
	//   - error: an error if the command buffer cannot be finished
	EndComputeFrame() error

	// CreateReadbackBuffer creates a MapRead|CopyDst buffer.
	//
	// Parameters:
	//   - label: debug label
	//   - size: the byte size
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer
	//   - error: an error if creation fails
	CreateReadbackBuffer(label string, size uint64) (*wgpu.Buffer, error)

	// ReadBuffer maps a readback buffer, blocks until the GPU is done with it and
	// returns a copy of its first size bytes.
	//
	// Parameters:
	//   - buf: a buffer created by CreateReadbackBuffer
	//   - size: the byte count
	//
	// Returns:
	//   - []byte: the copied contents
	//   - error: ErrMapFailed if mapping fails
	ReadBuffer(buf *wgpu.Buffer, size uint64) ([]byte, error)

	// Release frees the device, adapter and instance.
	Release()
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

// newWGPURendererBackend creates a headless backend: no surface is configured, the
// device only runs compute work and copies.
func newWGPURendererBackend(forceFallbackAdapter bool, power PowerPreference) (wgpuRendererBackend, error) {
	w := &wgpuRendererBackendImpl{
		mu:       &sync.Mutex{},
		instance: wgpu.CreateInstance(nil),
	}

	pref := wgpu.PowerPreferenceHighPerformance
	if power == PowerLow {
		pref = wgpu.PowerPreferenceLowPower
	}
	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		PowerPreference:      pref,
	})
	if err != nil {
		w.instance.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Fog Compute Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		a.Release()
		w.instance.Release()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()

	return w, nil
}

func (b *wgpuRendererBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuRendererBackendImpl) Queue() *wgpu.Queue {
	return b.queue
}

func (b *wgpuRendererBackendImpl) Instance() *wgpu.Instance {
	return b.instance
}

func (b *wgpuRendererBackendImpl) Adapter() *wgpu.Adapter {
	return b.adapter
}

func (b *wgpuRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	computeShader := p.Shader()
	if computeShader == nil {
		return errors.New("compute shader must be set to create a compute pipeline")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	s, err := b.device.CreateShaderModule(computeShader.Module())
	if err != nil {
		return err
	}
	defer s.Release()

	descriptors := computeShader.BindGroupLayoutDescriptors()
	maxGroup := -1
	for g := range descriptors {
		maxGroup = max(maxGroup, g)
	}
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g, desc := range descriptors {
		desc.Label = fmt.Sprintf("%s Group %d", p.Label(), g)
		bgl, bglErr := b.device.CreateBindGroupLayout(&desc)
		if bglErr != nil {
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, bglErr)
		}
		bindGroupLayouts[g] = bgl
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.Label(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return err
	}
	defer layout.Release()

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.Label() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		return err
	}

	p.SetComputePipeline(created, bindGroupLayouts)
	return nil
}

func (b *wgpuRendererBackendImpl) InitBindGroup(
	provider bind_group_provider.BindGroupProvider,
	p pipeline.Pipeline,
	sizeOverrides map[int]uint64,
	usageOverrides map[int]wgpu.BufferUsage,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	group := provider.Group()
	descriptor := p.Shader().BindGroupLayoutDescriptor(group)
	if len(descriptor.Entries) == 0 {
		return nil
	}
	layout := p.BindGroupLayout(group)
	if layout == nil {
		return fmt.Errorf("pipeline %s has no layout for group %d", p.PipelineKey(), group)
	}
	provider.SetBindGroupLayout(layout)

	bindGroupEntries := make([]wgpu.BindGroupEntry, len(descriptor.Entries))
	for i, entry := range descriptor.Entries {
		binding := int(entry.Binding)

		var usage wgpu.BufferUsage
		switch entry.Buffer.Type {
		case wgpu.BufferBindingTypeUniform:
			usage = wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
		case wgpu.BufferBindingTypeStorage, wgpu.BufferBindingTypeReadOnlyStorage:
			usage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
		default:
			return fmt.Errorf("binding %d of group %d is not a buffer", binding, group)
		}
		if overrideUsage, ok := usageOverrides[binding]; ok {
			usage |= overrideUsage
		}

		buf := provider.Buffer(binding)
		if buf == nil {
			bufSize := entry.Buffer.MinBindingSize
			if overrideSize, ok := sizeOverrides[binding]; ok {
				bufSize = overrideSize
			}
			if bufSize == 0 {
				return fmt.Errorf("binding %d of group %d has no size", binding, group)
			}
			var err error
			buf, err = b.device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: fmt.Sprintf("%s Buffer %d", provider.Label(), binding),
				Size:  bufSize,
				Usage: usage,
			})
			if err != nil {
				return err
			}
			provider.SetBuffer(binding, buf, bufSize)
		}
		bindGroupEntries[i] = wgpu.BindGroupEntry{
			Binding: entry.Binding,
			Buffer:  buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		}
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  layout,
		Entries: bindGroupEntries,
	})
	if err != nil {
		return err
	}
	provider.SetBindGroup(bindGroup)

	return nil
}

func (b *wgpuRendererBackendImpl) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
	for _, w := range writes {
		if err := w.Check(); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, w := range writes {
		if len(w.Data) == 0 {
			continue
		}
		b.queue.WriteBuffer(w.Provider.Buffer(w.Binding), w.Offset, w.Data)
	}
	return nil
}

func (b *wgpuRendererBackendImpl) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.computeFrameEncoder = encoder
	return nil
}

func (b *wgpuRendererBackendImpl) DispatchCompute(
	p pipeline.Pipeline,
	provider bind_group_provider.BindGroupProvider,
	workGroupCount [3]uint32,
) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return
	}

	pass := b.computeFrameEncoder.BeginComputePass(nil)
	pass.SetPipeline(p.ComputePipeline())
	pass.SetBindGroup(uint32(provider.Group()), provider.BindGroup(), nil)
	pass.DispatchWorkgroups(workGroupCount[0], workGroupCount[1], workGroupCount[2])
	pass.End()
}

func (b *wgpuRendererBackendImpl) CopyBuffer(src, dst *wgpu.Buffer, size uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return errors.New("copy outside a compute frame")
	}
	return b.computeFrameEncoder.CopyBufferToBuffer(src, 0, dst, 0, size)
}

func (b *wgpuRendererBackendImpl) EndComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return nil
	}
	defer func() {
		b.computeFrameEncoder.Release()
		b.computeFrameEncoder = nil
	}()

	commandBuffer, err := b.computeFrameEncoder.Finish(nil)
	if err != nil {
		return err
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (b *wgpuRendererBackendImpl) CreateReadbackBuffer(label string, size uint64) (*wgpu.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
}

func (b *wgpuRendererBackendImpl) ReadBuffer(buf *wgpu.Buffer, size uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var status wgpu.BufferMapAsyncStatus
	if err := buf.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMapFailed, err)
	}
	b.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("%w: status %d", ErrMapFailed, status)
	}

	mapped := buf.GetMappedRange(0, uint(size))
	out := make([]byte, len(mapped))
	copy(out, mapped)
	buf.Unmap()
	return out, nil
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
