package renderer

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-fog/engine/density"
	"github.com/Carmen-Shannon/oxy-fog/engine/fog"
	"github.com/Carmen-Shannon/oxy-fog/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-fog/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-fog/engine/renderer/shader"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func TestFogKernelLayout(t *testing.T) {
	s, err := shader.NewShader(FogPipelineKey, fogKernelSource)
	if err != nil {
		t.Fatalf("NewShader() error = %v", err)
	}
	if got := s.EntryPoint(); got != "main" {
		t.Errorf("EntryPoint() = %q, want main", got)
	}
	if got := s.WorkgroupSize(); got != [3]uint32{16, 16, 1} {
		t.Errorf("WorkgroupSize() = %v, want [16 16 1]", got)
	}

	entries := s.BindGroupLayoutDescriptor(0).Entries
	if len(entries) != 7 {
		t.Fatalf("len(Entries) = %d, want 7", len(entries))
	}

	wantSizes := map[int]uint64{
		bindingCamera: 256,
		bindingParams: 144,
		bindingLights: 1552,
		bindingLevels: 16,
		bindingVoxels: 4,
		bindingColor:  16,
		bindingDepth:  4,
	}
	for binding, want := range wantSizes {
		if got := entries[binding].Buffer.MinBindingSize; got != want {
			t.Errorf("binding %d (%s) MinBindingSize = %d, want %d", binding, s.BindGroupVarName(0, binding), got, want)
		}
	}

	if got := len(s.Declarations()); got != 7 {
		t.Errorf("len(Declarations()) = %d, want 7", got)
	}
	if err := checkBindings(s); err != nil {
		t.Errorf("checkBindings() error = %v", err)
	}
}

func TestCheckBindingsRejectsMovedSlot(t *testing.T) {
	src := strings.Replace(fogKernelSource, "//@oxy:provider 0 4 volume", "//@oxy:provider 0 7 volume", 1)
	s, err := shader.NewShader(FogPipelineKey, src)
	if err != nil {
		t.Fatalf("NewShader() error = %v", err)
	}
	if err := checkBindings(s); err == nil {
		t.Error("checkBindings() accepted a moved volume binding")
	}
}

func TestWorkgroupCount(t *testing.T) {
	s, err := shader.NewShader(FogPipelineKey, fogKernelSource)
	if err != nil {
		t.Fatalf("NewShader() error = %v", err)
	}
	p := pipeline.NewPipeline(FogPipelineKey, pipeline.WithComputeShader(s))

	tests := []struct {
		w, h int
		want [3]uint32
	}{
		{16, 16, [3]uint32{1, 1, 1}},
		{17, 16, [3]uint32{2, 1, 1}},
		{1920, 1080, [3]uint32{120, 68, 1}},
	}
	for _, tt := range tests {
		if got := p.WorkgroupCount(tt.w, tt.h); got != tt.want {
			t.Errorf("WorkgroupCount(%d, %d) = %v, want %v", tt.w, tt.h, got, tt.want)
		}
	}
}

// TestGPUMatchesCPU needs a WebGPU adapter; set OXY_FOG_GPU=1 to run it.
func TestGPUMatchesCPU(t *testing.T) {
	if os.Getenv("OXY_FOG_GPU") == "" {
		t.Skip("set OXY_FOG_GPU=1 to run GPU tests")
	}

	r, err := NewRenderer()
	if err != nil {
		t.Skipf("no GPU adapter: %v", err)
	}
	defer r.Release()

	const w, h = 32, 24
	p := fog.DefaultParams(w, h)
	p.Projection = mgl32.Perspective(mgl32.DegToRad(60), float32(w)/h, 0.1, 100)
	p.InverseProjection = p.Projection.Inv()
	p.Center = mgl32.Vec3{0, 0, -10}
	p.Radius = 2
	p.StepSize = 0.05

	grid, err := density.Generate(8, 8, 8, func(uvw mgl32.Vec3) float32 { return 0.5 })
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	gpu := framebuffer.NewTarget(w, h)
	if _, err := r.Dispatch(context.Background(), p, grid, gpu); err != nil {
		t.Fatalf("GPU Dispatch() error = %v", err)
	}

	k := fog.NewKernel()
	cpu := framebuffer.NewTarget(w, h)
	if _, err := k.Dispatch(context.Background(), p, grid, cpu); err != nil {
		t.Fatalf("CPU Dispatch() error = %v", err)
	}

	for i := range cpu.Color {
		for c := 0; c < 4; c++ {
			if math32.Abs(cpu.Color[i][c]-gpu.Color[i][c]) > 5e-3 {
				t.Fatalf("pixel %d channel %d: cpu %f, gpu %f", i, c, cpu.Color[i][c], gpu.Color[i][c])
			}
		}
		if math32.Abs(cpu.Depth[i]-gpu.Depth[i]) > 1e-4 {
			t.Fatalf("pixel %d depth: cpu %f, gpu %f", i, cpu.Depth[i], gpu.Depth[i])
		}
	}
}
