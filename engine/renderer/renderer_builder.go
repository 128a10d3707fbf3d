package renderer

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithBackendType selects the GPU backend implementation.
//
// Parameters:
//   - t: the backend type
//
// Returns:
//   - RendererBuilderOption: a function that applies the backend option to a renderer
func WithBackendType(t RendererBackendType) RendererBuilderOption {
	return func(r *renderer) {
		r.backendType = t
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe). Useful for benchmarking against the CPU kernel.
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithPowerPreference selects a discrete or integrated adapter.
//
// Parameters:
//   - p: the power preference
//
// Returns:
//   - RendererBuilderOption: a function that applies the power preference to a renderer
func WithPowerPreference(p PowerPreference) RendererBuilderOption {
	return func(r *renderer) {
		r.power = p
	}
}

// WithBakeResolution sets the voxels per axis procedural fields are baked at before upload.
// Values below 1 are ignored.
//
// Parameters:
//   - n: voxels per axis
//
// Returns:
//   - RendererBuilderOption: a function that applies the bake resolution to a renderer
func WithBakeResolution(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n > 0 {
			r.bakeResolution = n
		}
	}
}
