package fog

import "time"

// KernelBuilderOption is a functional option for configuring a Kernel.
// Use the With* functions to create options.
type KernelBuilderOption func(k *kernelImpl)

// WithWorkers sets the number of pool workers marching tiles in parallel.
// Defaults to runtime.NumCPU().
//
// Parameters:
//   - n: the worker count (minimum 1)
//
// Returns:
//   - KernelBuilderOption: option function to apply
func WithWorkers(n int) KernelBuilderOption {
	return func(k *kernelImpl) {
		if n < 1 {
			n = 1
		}
		k.workers = n
	}
}

// WithTileSize sets the pixel dimensions of one work item.
//
// Parameters:
//   - width, height: the tile size (each minimum 1)
//
// Returns:
//   - KernelBuilderOption: option function to apply
func WithTileSize(width, height int) KernelBuilderOption {
	return func(k *kernelImpl) {
		k.tileWidth = max(width, 1)
		k.tileHeight = max(height, 1)
	}
}

// WithQueueSize sets the pool's task queue capacity.
//
// Parameters:
//   - n: the queue size (minimum 1)
//
// Returns:
//   - KernelBuilderOption: option function to apply
func WithQueueSize(n int) KernelBuilderOption {
	return func(k *kernelImpl) {
		k.queueSize = max(n, 1)
	}
}

// WithIdleTimeout sets how long an idle pool worker lingers before exiting.
//
// Parameters:
//   - d: the idle timeout
//
// Returns:
//   - KernelBuilderOption: option function to apply
func WithIdleTimeout(d time.Duration) KernelBuilderOption {
	return func(k *kernelImpl) {
		k.idleTimeout = d
	}
}
