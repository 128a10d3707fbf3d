package renderer

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based compute backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PowerPreference selects which adapter the backend asks for.
type PowerPreference int

const (
	// PowerHighPerformance prefers a discrete GPU. This is the default.
	PowerHighPerformance PowerPreference = iota

	// PowerLow prefers an integrated GPU.
	PowerLow
)

// RendererBackend is the top-level backend interface for the Renderer.
// It embeds the concrete backend interface for the selected GPU API.
type RendererBackend interface {
	wgpuRendererBackend
}
