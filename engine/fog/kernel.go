package fog

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-fog/engine/density"
	"github.com/Carmen-Shannon/oxy-fog/engine/framebuffer"
)

// Stats summarizes one dispatch.
type Stats struct {
	Pixels     int64
	Covered    int64 // rays that entered the sphere
	Terminated int64 // rays stopped by early termination
	Samples    int64 // in-volume primary samples
	Tiles      int
	Elapsed    time.Duration
}

// Kernel runs the fog march over every pixel of a target on the CPU.
//
// Pixels are grouped into tiles and the tiles are fanned out over a reusable
// worker pool. Each pixel is written exactly once per dispatch and no pixel task
// reads another's output, so tasks share nothing but the read-only Frame.
type Kernel interface {
	// Dispatch validates params, marches every pixel and writes the results into
	// target. When ctx is cancelled mid-dispatch the remaining tiles are skipped,
	// the target contents are undefined and the context error is returned.
	//
	// Parameters:
	//   - ctx: cancellation for the dispatch
	//   - params: the dispatch params; Width and Height must match the target
	//   - field: the density field
	//   - target: the output planes
	//
	// Returns:
	//   - Stats: counters for the dispatch
	//   - error: a wrapped ErrInvalidParams, or the context error
	Dispatch(ctx context.Context, params Params, field density.Field, target *framebuffer.Target) (Stats, error)

	// Workers returns the number of pool workers.
	//
	// Returns:
	//   - int: the worker count
	Workers() int

	// TileSize returns the pixel dimensions of one work item.
	//
	// Returns:
	//   - width, height: the tile size in pixels
	TileSize() (width, height int)
}

// kernelImpl is the implementation of the Kernel interface.
type kernelImpl struct {
	mu *sync.Mutex

	// pool keeps worker goroutines alive between dispatches so interactive
	// rendering does not pay a spawn cost per frame.
	pool        worker.DynamicWorkerPool
	workers     int
	queueSize   int
	idleTimeout time.Duration

	tileWidth  int
	tileHeight int
}

var _ Kernel = &kernelImpl{}

// NewKernel creates a CPU kernel. Tiles default to 32x16 pixels and the worker
// count defaults to runtime.NumCPU().
//
// Parameters:
//   - options: functional options to configure the kernel
//
// Returns:
//   - Kernel: the kernel
func NewKernel(options ...KernelBuilderOption) Kernel {
	k := &kernelImpl{
		mu:          &sync.Mutex{},
		workers:     runtime.NumCPU(),
		queueSize:   256,
		idleTimeout: 1 * time.Second,
		tileWidth:   32,
		tileHeight:  16,
	}
	for _, option := range options {
		option(k)
	}
	k.pool = worker.NewDynamicWorkerPool(k.workers, k.queueSize, k.idleTimeout)
	log.Printf("[Kernel] %d workers, %dx%d pixel tiles", k.workers, k.tileWidth, k.tileHeight)
	return k
}

func (k *kernelImpl) Workers() int {
	return k.workers
}

func (k *kernelImpl) TileSize() (int, int) {
	return k.tileWidth, k.tileHeight
}

func (k *kernelImpl) Dispatch(ctx context.Context, params Params, field density.Field, target *framebuffer.Target) (Stats, error) {
	if target == nil {
		return Stats{}, fmt.Errorf("nil target: %w", ErrInvalidParams)
	}
	if target.Width != params.Width || target.Height != params.Height {
		return Stats{}, fmt.Errorf("target %dx%d does not match params %dx%d: %w",
			target.Width, target.Height, params.Width, params.Height, ErrInvalidParams)
	}
	frame, err := NewFrame(params, field)
	if err != nil {
		return Stats{}, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	start := time.Now()
	var covered, terminated, samples atomic.Int64

	// A WaitGroup provides the per-dispatch barrier; the pool's own Wait blocks
	// until workers idle out.
	var wg sync.WaitGroup
	taskID := 0
	for y0 := 0; y0 < params.Height; y0 += k.tileHeight {
		for x0 := 0; x0 < params.Width; x0 += k.tileWidth {
			x1 := min(x0+k.tileWidth, params.Width)
			y1 := min(y0+k.tileHeight, params.Height)

			wg.Add(1)
			id := taskID
			taskID++
			k.pool.SubmitTask(worker.Task{
				ID: id,
				Do: func() (any, error) {
					defer wg.Done()
					if err := ctx.Err(); err != nil {
						return nil, err
					}
					var c, t, s int64
					for y := y0; y < y1; y++ {
						for x := x0; x < x1; x++ {
							res := frame.March(x, y)
							target.Set(x, y, res.Color, res.Depth)
							if res.State != StateNotEntered {
								c++
							}
							if res.State == StateTerminated {
								t++
							}
							s += int64(res.Samples)
						}
					}
					covered.Add(c)
					terminated.Add(t)
					samples.Add(s)
					return nil, nil
				},
			})
		}
	}
	wg.Wait()

	stats := Stats{
		Pixels:     int64(params.Width) * int64(params.Height),
		Covered:    covered.Load(),
		Terminated: terminated.Load(),
		Samples:    samples.Load(),
		Tiles:      taskID,
		Elapsed:    time.Since(start),
	}
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("fog dispatch cancelled: %w", err)
	}
	return stats, nil
}
