package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-fog/engine/renderer/shader"
)

func TestPipelineLabel(t *testing.T) {
	if got := NewPipeline("fog_kernel").Label(); got != "fog_kernel" {
		t.Errorf("Label() = %q, want the key", got)
	}
	if got := NewPipeline("fog_kernel", WithLabel("Fog Sphere")).Label(); got != "Fog Sphere" {
		t.Errorf("Label() = %q, want %q", got, "Fog Sphere")
	}
}

func TestWorkgroupCount(t *testing.T) {
	s, err := shader.NewShader("grid", "@compute @workgroup_size(16, 16) fn main() {}")
	if err != nil {
		t.Fatalf("NewShader() error = %v", err)
	}
	p := NewPipeline("grid", WithComputeShader(s))

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

	if got := NewPipeline("bare").WorkgroupCount(3, 2); got != [3]uint32{3, 2, 1} {
		t.Errorf("WorkgroupCount() without shader = %v, want [3 2 1]", got)
	}
	if p.BindGroupLayout(0) != nil || p.BindGroupLayout(-1) != nil {
		t.Error("BindGroupLayout() before registration should be nil")
	}
}
