package shader

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

const testSource = `//@oxy:include fog_params
//@oxy:group 0 0 storage_uniform params fog_params
//@oxy:group 0 1 storage_read levels array<volume_level>

//@oxy:provider 0 2 output_depth
@group(0) @binding(2) var<storage, read_write> out_depth: array<f32>;

@compute @workgroup_size(8, 4)
fn run(@builtin(global_invocation_id) gid: vec3<u32>) {
    out_depth[gid.x] = params.radius;
}
`

func TestNewShader(t *testing.T) {
	s, err := NewShader("test", testSource)
	if err != nil {
		t.Fatalf("NewShader() error = %v", err)
	}

	if got := s.EntryPoint(); got != "run" {
		t.Errorf("EntryPoint() = %q, want %q", got, "run")
	}
	if got := s.WorkgroupSize(); got != [3]uint32{8, 4, 1} {
		t.Errorf("WorkgroupSize() = %v, want [8 4 1]", got)
	}
	if !strings.Contains(s.Source(), "struct FogParams") {
		t.Error("processed source is missing the included FogParams struct")
	}
	if !strings.Contains(s.Source(), "@group(0) @binding(1) var<storage, read> levels: array<VolumeLevel>;") {
		t.Errorf("processed source is missing the generated levels binding:\n%s", s.Source())
	}
	if got := len(s.Declarations()); got != 3 {
		t.Errorf("len(Declarations()) = %d, want 3", got)
	}

	desc := s.BindGroupLayoutDescriptor(0)
	if len(desc.Entries) != 3 {
		t.Fatalf("len(Entries) = %d, want 3", len(desc.Entries))
	}

	tests := []struct {
		binding int
		kind    wgpu.BufferBindingType
		minSize uint64
	}{
		{0, wgpu.BufferBindingTypeUniform, 144},
		{1, wgpu.BufferBindingTypeReadOnlyStorage, 16},
		{2, wgpu.BufferBindingTypeStorage, 4},
	}
	for _, tt := range tests {
		e := desc.Entries[tt.binding]
		if e.Buffer.Type != tt.kind {
			t.Errorf("binding %d type = %v, want %v", tt.binding, e.Buffer.Type, tt.kind)
		}
		if e.Buffer.MinBindingSize != tt.minSize {
			t.Errorf("binding %d MinBindingSize = %d, want %d", tt.binding, e.Buffer.MinBindingSize, tt.minSize)
		}
		if e.Visibility != wgpu.ShaderStageCompute {
			t.Errorf("binding %d visibility = %v, want compute", tt.binding, e.Visibility)
		}
	}

	if b, ok := s.BindGroupFromVarName(0, "out_depth"); !ok || b != 2 {
		t.Errorf("BindGroupFromVarName(out_depth) = %d, %v; want 2, true", b, ok)
	}
	if got := s.BindGroupVarName(0, 0); got != "params" {
		t.Errorf("BindGroupVarName(0, 0) = %q, want params", got)
	}
}

func TestPreProcessorIncludesSharedAssetOnce(t *testing.T) {
	pp := NewPreProcessor()
	out, err := pp.Process("//@oxy:include light\n//@oxy:include light_set\n")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if n := strings.Count(out, "struct LightSet"); n != 1 {
		t.Errorf("LightSet defined %d times, want 1", n)
	}
}

func TestPreProcessorErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"empty annotation", "//@oxy:"},
		{"unknown type", "//@oxy:bogus camera"},
		{"unknown include", "//@oxy:include mesh"},
		{"include arity", "//@oxy:include camera light"},
		{"group arity", "//@oxy:group 0 0 storage_uniform camera"},
		{"bad group number", "//@oxy:group x 0 storage_uniform camera camera"},
		{"bad address space", "//@oxy:group 0 0 storage_private camera camera"},
		{"unknown array element", "//@oxy:group 0 0 storage_read things array<thing>"},
		{"unknown provider", "//@oxy:provider 0 0 texture"},
		{"bad binding number", "//@oxy:provider 0 b volume"},
		{"negative binding", "//@oxy:provider 0 -1 volume"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPreProcessor().Process(tt.source); err == nil {
				t.Errorf("Process(%q) succeeded, want error", tt.source)
			}
		})
	}
}

func TestNewShaderWithoutEntryPoint(t *testing.T) {
	if _, err := NewShader("empty", "fn helper() {}"); err == nil {
		t.Error("NewShader() succeeded without a @compute entry point")
	}
}

func TestParseWorkgroupSizeDefaults(t *testing.T) {
	tests := []struct {
		src  string
		want [3]uint32
	}{
		{"@compute fn main() {}", [3]uint32{1, 1, 1}},
		{"@compute @workgroup_size(64) fn main() {}", [3]uint32{64, 1, 1}},
		{"@compute @workgroup_size(16, 16, 1) fn main() {}", [3]uint32{16, 16, 1}},
		{"// @workgroup_size(2, 2)\n@compute @workgroup_size(4) fn main() {}", [3]uint32{4, 1, 1}},
	}
	for _, tt := range tests {
		if got := parseWorkgroupSize(tt.src); got != tt.want {
			t.Errorf("parseWorkgroupSize(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestLayoutResolver(t *testing.T) {
	src := stripComments(`
struct Inner { a: vec3<f32>, b: f32 }
/* nested /* block */ comment */
struct Outer {
    m: mat3x3<f32>,   // 48 bytes
    inner: array<Inner, 2>,
    count: u32,
}
struct Tail { n: u32, items: array<vec4f> }
struct Loop { next: Loop }
`)
	r := newLayoutResolver(parseStructBlocks(src))

	tests := []struct {
		typeName string
		want     uint64
		ok       bool
	}{
		{"f32", 4, true},
		{"vec3f", 12, true},
		{"vec2<f16>", 4, true},
		{"mat4x4<f32>", 64, true},
		{"mat3x2f", 24, true},
		{"atomic<u32>", 4, true},
		{"array<vec3<f32>, 4>", 64, true},
		{"Inner", 16, true},
		{"Outer", 48 + 32 + 16, true},
		{"array<Inner>", 16, true},
		{"array<f32>", 4, true},
		{"Tail", 16, true},
		{"Loop", 0, false},
		{"texture_2d<f32>", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			got, ok := r.minBindingSize(tt.typeName)
			if ok != tt.ok || got != tt.want {
				t.Errorf("minBindingSize(%q) = %d, %v, want %d, %v", tt.typeName, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestStripCommentsKeepsLines(t *testing.T) {
	src := "a // one\n/* two\nthree */b\nc"
	got := stripComments(src)
	if strings.Count(got, "\n") != strings.Count(src, "\n") {
		t.Errorf("stripComments() changed line count: %q", got)
	}
	if strings.Contains(got, "one") || strings.Contains(got, "two") || !strings.Contains(got, "b") {
		t.Errorf("stripComments() = %q", got)
	}
}

func TestShaderDeclaration(t *testing.T) {
	s, err := NewShader("test", testSource)
	if err != nil {
		t.Fatalf("NewShader() error = %v", err)
	}

	tests := []struct {
		identity AnnotationArg
		kind     AnnotationType
		slot     Slot
	}{
		{"params", AnnotationTypeBindingGroup, Slot{0, 0}},
		{"levels", AnnotationTypeBindingGroup, Slot{0, 1}},
		{AnnotationArgOutputDepth, AnnotationTypeProvider, Slot{0, 2}},
	}
	for _, tt := range tests {
		a, ok := s.Declaration(tt.identity)
		if !ok {
			t.Errorf("Declaration(%q) not found", tt.identity)
			continue
		}
		if a.Type != tt.kind || a.Slot == nil || *a.Slot != tt.slot {
			t.Errorf("Declaration(%q) = %v at %v, want %v at %v", tt.identity, a.Type, a.Slot, tt.kind, tt.slot)
		}
	}
	if _, ok := s.Declaration(AnnotationArgVolume); ok {
		t.Error("Declaration(volume) found an undeclared provider")
	}
}

func TestNewShaderFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fog.wgsl")
	if err := os.WriteFile(path, []byte(testSource), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s, err := NewShaderFromPath("disk", path)
	if err != nil {
		t.Fatalf("NewShaderFromPath() error = %v", err)
	}
	if s.Key() != "disk" || s.EntryPoint() != "run" {
		t.Errorf("NewShaderFromPath() = key %q entry %q", s.Key(), s.EntryPoint())
	}

	_, err = NewShaderFromPath("missing", filepath.Join(dir, "missing.wgsl"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file error = %v, want fs.ErrNotExist", err)
	}
}
