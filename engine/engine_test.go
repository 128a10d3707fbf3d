package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-fog/engine/camera"
	"github.com/Carmen-Shannon/oxy-fog/engine/density"
	"github.com/Carmen-Shannon/oxy-fog/engine/fog"
	"github.com/Carmen-Shannon/oxy-fog/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-fog/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

type countingDispatcher struct {
	calls int
}

func (c *countingDispatcher) Dispatch(_ context.Context, _ fog.Params, _ density.Field, target *framebuffer.Target) (fog.Stats, error) {
	c.calls++
	return fog.Stats{Pixels: int64(target.Width * target.Height)}, nil
}

func newTestScene(t *testing.T, d scene.Dispatcher) scene.Scene {
	t.Helper()
	cam := camera.NewCamera(camera.WithController(camera.NewOrbitController(camera.WithRadius(20))))
	return scene.NewScene("engine", cam, d,
		scene.WithField(density.Uniform(0.5, 1)),
		scene.WithVolume(mgl32.Vec3{}, 2),
	)
}

func TestRunMaxFrames(t *testing.T) {
	d := &countingDispatcher{}
	ticks := 0
	var indices []int

	e := NewEngine(newTestScene(t, d), 8, 8,
		WithTickRate(0),
		WithMaxFrames(3),
		WithTickCallback(func(float32) { ticks++ }),
		WithFrameCallback(func(frame int, target *framebuffer.Target, stats scene.RenderStats) error {
			indices = append(indices, frame)
			if stats.Pixels != 64 {
				t.Errorf("frame %d Pixels = %d, want 64", frame, stats.Pixels)
			}
			return nil
		}),
	)

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if e.Frames() != 3 || d.calls != 3 || ticks != 3 {
		t.Errorf("frames %d, dispatches %d, ticks %d; want 3 each", e.Frames(), d.calls, ticks)
	}
	if len(indices) != 3 || indices[0] != 0 || indices[2] != 2 {
		t.Errorf("frame indices = %v, want [0 1 2]", indices)
	}
}

func TestRunStops(t *testing.T) {
	errStop := errors.New("stop")

	tests := []struct {
		name    string
		setup   func(e Engine, cancel context.CancelFunc)
		wantErr error
	}{
		{
			name: "quit",
			setup: func(e Engine, _ context.CancelFunc) {
				e.SetTickCallback(func(float32) { e.Quit() })
			},
		},
		{
			name: "cancel",
			setup: func(e Engine, cancel context.CancelFunc) {
				e.SetFrameCallback(func(int, *framebuffer.Target, scene.RenderStats) error {
					cancel()
					return nil
				})
			},
		},
		{
			name: "callback error",
			setup: func(e Engine, _ context.CancelFunc) {
				e.SetFrameCallback(func(int, *framebuffer.Target, scene.RenderStats) error { return errStop })
			},
			wantErr: errStop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			e := NewEngine(newTestScene(t, &countingDispatcher{}), 4, 4, WithTickRate(1000))
			tt.setup(e, cancel)

			err := e.Run(ctx)
			if tt.wantErr == nil && err != nil {
				t.Errorf("Run() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
			}
			if e.Frames() > 1 {
				t.Errorf("Frames() = %d, want at most 1", e.Frames())
			}
		})
	}
}

func TestRunWithKernel(t *testing.T) {
	k := fog.NewKernel(fog.WithWorkers(2))
	s := newTestScene(t, k)

	var coverage float32
	e := NewEngine(s, 24, 16,
		WithTickRate(0),
		WithMaxFrames(1),
		WithProfiling(true),
		WithFrameCallback(func(_ int, target *framebuffer.Target, stats scene.RenderStats) error {
			if stats.Culled {
				t.Error("centered sphere was culled")
			}
			coverage = target.Coverage()
			return nil
		}),
	)

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if coverage <= 0 {
		t.Errorf("Coverage() = %v, want fog in the frame", coverage)
	}
}

func TestNewEnginePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewEngine(nil) did not panic")
		}
	}()
	NewEngine(nil, 1, 1)
}
