package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-fog/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-fog/engine/profiler"
	"github.com/Carmen-Shannon/oxy-fog/engine/scene"
)

// FrameCallback receives every rendered frame. Returning an error stops Run.
type FrameCallback func(frame int, target *framebuffer.Target, stats scene.RenderStats) error

// engine implements the Engine interface.
type engine struct {
	mu *sync.Mutex

	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	scene  scene.Scene
	target *framebuffer.Target

	profiler         *profiler.Profiler
	profilingEnabled bool

	tickRate      time.Duration // 0 renders frames back to back
	maxFrames     int           // 0 runs until quit
	frames        int
	tickCallback  func(deltaTime float32)
	frameCallback FrameCallback
}

// Engine drives a scene at a fixed tick rate: each tick runs the tick callback,
// renders the scene into the engine's target and hands the frame to the frame
// callback.
type Engine interface {
	// Scene returns the rendered scene.
	Scene() scene.Scene

	// Target returns the output planes every frame is rendered into.
	Target() *framebuffer.Target

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// Profiler returns the engine's profiler.
	Profiler() *profiler.Profiler

	// SetTickRate sets the frame rate in frames per second. Values <= 0 render
	// frames back to back. Takes effect immediately on a running engine.
	//
	// Parameters:
	//   - fps: target frames per second
	SetTickRate(fps float64)

	// SetTickCallback registers the function called before each frame renders.
	// Use this to move the camera or change fog settings.
	//
	// Parameters:
	//   - callback: receives the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetFrameCallback registers the function called after each frame renders.
	//
	// Parameters:
	//   - callback: receives the frame index, the target and the render stats
	SetFrameCallback(callback FrameCallback)

	// Frames returns the number of frames rendered so far.
	Frames() int

	// Run renders frames until ctx is done, Quit is called, the frame limit is
	// reached or a render or callback fails.
	//
	// Parameters:
	//   - ctx: cancellation for the loop and every dispatch
	//
	// Returns:
	//   - error: the first render or callback error; nil on a clean stop
	Run(ctx context.Context) error

	// Quit signals Run to return after the current frame.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates an Engine rendering s into a width x height target.
// Panics if s is nil.
//
// Parameters:
//   - s: the scene to render
//   - width, height: the target resolution
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(s scene.Scene, width, height int, options ...EngineBuilderOption) Engine {
	if s == nil {
		panic("engine: scene must not be nil")
	}
	e := &engine{
		mu:              &sync.Mutex{},
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		scene:           s,
		target:          framebuffer.NewTarget(width, height),
		profiler:        profiler.NewProfiler(),
		tickRate:        time.Second / 30,
	}

	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) Target() *framebuffer.Target {
	return e.target
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

// Quit signals the loop to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("engine is already running")
	}
	e.running = true
	rate := e.tickRate
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	// Without a ticker frames render back to back.
	var ticker *time.Ticker
	var tick <-chan time.Time
	if rate > 0 {
		ticker = time.NewTicker(rate)
		defer ticker.Stop()
		tick = ticker.C
	}

	lastFrame := time.Now()
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-e.quitChannel:
				return nil
			case newRate := <-e.tickRateChannel:
				if newRate > 0 {
					ticker.Reset(newRate)
				}
				continue
			case <-tick:
			}
		}
		// A stop that raced a tick wins.
		if e.stopped(ctx) {
			return nil
		}

		now := time.Now()
		dt := float32(now.Sub(lastFrame).Seconds())
		lastFrame = now

		done, err := e.frame(ctx, dt)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		}
		if done {
			return nil
		}
	}
}

// stopped reports whether ctx is done or Quit was called, without blocking.
func (e *engine) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-e.quitChannel:
		return true
	default:
		return false
	}
}

// frame runs one tick, render and callback cycle.
func (e *engine) frame(ctx context.Context, dt float32) (bool, error) {
	if e.tickCallback != nil {
		e.tickCallback(dt)
	}

	stats, err := e.scene.Render(ctx, e.target)
	if err != nil {
		return false, err
	}

	if e.profilingEnabled && e.profiler != nil {
		e.profiler.Tick(stats.Elapsed, stats.Pixels, stats.Covered, stats.Culled)
	}

	e.mu.Lock()
	index := e.frames
	e.frames++
	e.mu.Unlock()

	if e.frameCallback != nil {
		if err := e.frameCallback(index, e.target, stats); err != nil {
			return false, fmt.Errorf("frame %d callback failed: %w", index, err)
		}
	}
	return e.maxFrames > 0 && index+1 >= e.maxFrames, nil
}

func (e *engine) Frames() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the frame rate in frames per second.
// If the engine is running on a ticker, the change takes effect on the next tick.
func (e *engine) SetTickRate(fps float64) {
	var newRate time.Duration
	if fps > 0 {
		newRate = time.Duration(float64(time.Second) / fps)
	}

	e.mu.Lock()
	running := e.running
	if !running {
		e.tickRate = newRate
	}
	e.mu.Unlock()

	if running {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	}
}

// SetTickCallback registers the function called before each frame.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetFrameCallback registers the function called after each frame.
func (e *engine) SetFrameCallback(callback FrameCallback) {
	e.frameCallback = callback
}
