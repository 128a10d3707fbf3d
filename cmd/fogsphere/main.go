// Command fogsphere renders a volumetric fog sphere to EXR and PNG files, bakes
// procedural density fields to .fogvol files, or serves a live preview.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Carmen-Shannon/oxy-fog/engine"
	"github.com/Carmen-Shannon/oxy-fog/engine/config"
	"github.com/Carmen-Shannon/oxy-fog/engine/density"
	"github.com/Carmen-Shannon/oxy-fog/engine/fog"
	"github.com/Carmen-Shannon/oxy-fog/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-fog/engine/preview"
	"github.com/Carmen-Shannon/oxy-fog/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fog/engine/scene"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func main() {
	var (
		configPath = flag.String("config", "fogsphere.json", "scene file; defaults are used when it does not exist")
		out        = flag.String("out", "", "EXR output path")
		pngOut     = flag.String("png", "", "PNG preview output path")
		width      = flag.Int("width", 0, "output width in pixels")
		height     = flag.Int("height", 0, "output height in pixels")
		gpu        = flag.Bool("gpu", false, "render with the WebGPU compute kernel")
		serve      = flag.String("serve", "", "serve the live preview on this address, e.g. :8080")
		workers    = flag.Int("workers", 0, "CPU kernel workers (0 uses every core)")
		frames     = flag.Int("frames", 1, "frames to render; more than one renders a turntable")
		fps        = flag.Float64("fps", 15, "preview frame rate")
		profile    = flag.Bool("profile", false, "log frame and memory statistics")
		bake       = flag.String("bake", "", "write the configured density field to this .fogvol file and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[Fogsphere] %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Output.EXR = *out
		case "png":
			cfg.Output.PNG = *pngOut
		case "width":
			cfg.Width = *width
		case "height":
			cfg.Height = *height
		case "gpu":
			cfg.Renderer.GPU = *gpu
		case "workers":
			cfg.Renderer.Workers = *workers
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[Fogsphere] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *bake != "" {
		if err := bakeField(cfg, *bake); err != nil {
			log.Fatalf("[Fogsphere] %v", err)
		}
		return
	}

	d, release, err := newDispatcher(cfg)
	if err != nil {
		log.Fatalf("[Fogsphere] %v", err)
	}
	defer release()

	opts, err := cfg.SceneOptions()
	if err != nil {
		log.Fatalf("[Fogsphere] %v", err)
	}
	s := scene.NewScene("fogsphere", cfg.NewCamera(), d, opts...)
	if cfg.Renderer.GPU {
		if err := bakeForGPU(s, cfg.Renderer.BakeResolution); err != nil {
			log.Fatalf("[Fogsphere] %v", err)
		}
	}

	if *serve != "" {
		err = runPreview(ctx, cfg, s, *serve, *fps, *profile)
	} else {
		err = runBatch(ctx, cfg, s, *frames, *profile)
	}
	if err != nil {
		log.Fatalf("[Fogsphere] %v", err)
	}
}

// newDispatcher builds the GPU renderer or the CPU kernel.
func newDispatcher(cfg config.Config) (scene.Dispatcher, func(), error) {
	if cfg.Renderer.GPU {
		power := renderer.PowerHighPerformance
		if cfg.Renderer.LowPower {
			power = renderer.PowerLow
		}
		r, err := renderer.NewRenderer(
			renderer.WithBackendType(renderer.BackendTypeWGPU),
			renderer.WithForceSoftwareRenderer(cfg.Renderer.Software),
			renderer.WithPowerPreference(power),
			renderer.WithBakeResolution(cfg.Renderer.BakeResolution),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create GPU renderer: %w", err)
		}
		return r, r.Release, nil
	}
	k := fog.NewKernel(cfg.KernelOptions()...)
	log.Printf("[Fogsphere] CPU kernel with %d workers", k.Workers())
	return k, func() {}, nil
}

// bakeField samples the configured field into a grid and saves it.
func bakeField(cfg config.Config, path string) error {
	field, err := cfg.NewField()
	if err != nil {
		return err
	}
	grid, err := toGrid(field, cfg.Renderer.BakeResolution)
	if err != nil {
		return err
	}
	if err := density.Save(path, grid); err != nil {
		return err
	}
	log.Printf("[Fogsphere] baked %d levels to %s", grid.Levels(), path)
	return nil
}

// bakeForGPU replaces a procedural field with a voxel grid so the renderer
// uploads it once.
func bakeForGPU(s scene.Scene, res int) error {
	grid, err := toGrid(s.Field(), res)
	if err != nil {
		return err
	}
	s.SetField(grid)
	return nil
}

// toGrid returns field unchanged when it is already a grid and bakes it at
// res voxels per axis otherwise.
func toGrid(field density.Field, res int) (*density.Grid, error) {
	if g, ok := field.(*density.Grid); ok {
		return g, nil
	}
	if res <= 0 {
		res = 64
	}
	g, err := density.Bake(field, res, res, res)
	if err != nil {
		return nil, fmt.Errorf("failed to bake density field: %w", err)
	}
	return g, nil
}

// runBatch renders frames to disk. With more than one frame the camera turns a
// full circle around the volume.
func runBatch(ctx context.Context, cfg config.Config, s scene.Scene, frames int, profile bool) error {
	if cfg.Output.EXR == "" && cfg.Output.PNG == "" {
		return fmt.Errorf("no output path: set -out or -png")
	}
	frames = max(frames, 1)
	cc := s.Camera().Controller()
	start := cc.Azimuth()
	background := mgl32.Vec3(cfg.Output.Background)

	var e engine.Engine
	e = engine.NewEngine(s, cfg.Width, cfg.Height,
		engine.WithTickRate(0),
		engine.WithMaxFrames(frames),
		engine.WithProfiling(profile),
		engine.WithTickCallback(func(float32) {
			cc.SetAzimuth(start + 2*math32.Pi*float32(e.Frames())/float32(frames))
		}),
		engine.WithFrameCallback(func(frame int, target *framebuffer.Target, stats scene.RenderStats) error {
			if path := framePath(cfg.Output.EXR, frame, frames); path != "" {
				if err := target.WriteEXR(path); err != nil {
					return err
				}
			}
			if path := framePath(cfg.Output.PNG, frame, frames); path != "" {
				if err := target.WritePNG(path, background, cfg.Output.Exposure); err != nil {
					return err
				}
			}
			log.Printf("[Fogsphere] frame %d/%d: %d of %d pixels covered in %v (culled: %v)",
				frame+1, frames, stats.Covered, stats.Pixels, stats.Elapsed, stats.Culled)
			return nil
		}),
	)
	return e.Run(ctx)
}

// runPreview renders continuously and streams PNG frames to the preview server.
func runPreview(ctx context.Context, cfg config.Config, s scene.Scene, addr string, fps float64, profile bool) error {
	srv := preview.NewServer(cfg.PreviewOptions()...)
	background := mgl32.Vec3(cfg.Output.Background)

	e := engine.NewEngine(s, cfg.Width, cfg.Height,
		engine.WithTickRate(fps),
		engine.WithProfiling(profile),
		engine.WithTickCallback(func(float32) {
			for {
				select {
				case cmd := <-srv.Commands():
					if err := preview.Apply(s, cmd); err != nil {
						log.Printf("[Preview] %v", err)
					}
				default:
					return
				}
			}
		}),
		engine.WithFrameCallback(func(_ int, target *framebuffer.Target, _ scene.RenderStats) error {
			if srv.Clients() == 0 {
				return nil
			}
			var buf bytes.Buffer
			if err := target.EncodePNG(&buf, background, cfg.Output.Exposure); err != nil {
				return err
			}
			srv.Publish(buf.Bytes())
			return nil
		}),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx, addr)
		cancel()
	}()

	if err := e.Run(ctx); err != nil {
		return err
	}
	return <-errCh
}

// framePath numbers path for multi-frame renders: fog.exr becomes fog_0003.exr.
func framePath(path string, frame, frames int) string {
	if path == "" || frames <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%04d%s", strings.TrimSuffix(path, ext), frame, ext)
}
