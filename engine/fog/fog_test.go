package fog

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-fog/engine/density"
	"github.com/Carmen-Shannon/oxy-fog/engine/framebuffer"
	"github.com/Carmen-Shannon/oxy-fog/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

func near(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) <= float64(tol)
}

// testParams frames a radius-2 sphere ten units down the -z axis.
func testParams(width, height int) Params {
	p := DefaultParams(width, height)
	proj := mgl32.Perspective(mgl32.DegToRad(60), float32(width)/float32(height), 0.1, 100)
	p.Projection = proj
	p.InverseProjection = proj.Inv()
	p.Center = mgl32.Vec3{0, 0, -10}
	p.Radius = 2
	p.StepSize = 0.05
	return p
}

func mustFrame(t *testing.T, p Params, f density.Field) *Frame {
	t.Helper()
	frame, err := NewFrame(p, f)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	return frame
}

func withLights(t *testing.T, p Params, lights ...light.Light) Params {
	t.Helper()
	set, err := light.NewSet(lights...)
	if err != nil {
		t.Fatal(err)
	}
	p.Lights = set
	return p
}

var forward = mgl32.Vec3{0, 0, -1}

func TestOpacityMonotonic(t *testing.T) {
	if got := Opacity(0, mgl32.Vec3{}); got != 0 {
		t.Fatalf("Opacity(0) = %v, want 0", got)
	}
	prev := float32(0)
	for x := float32(0.1); x < 20; x += 0.1 {
		got := Opacity(x, mgl32.Vec3{})
		if got <= prev {
			t.Fatalf("Opacity not increasing at %v: %v <= %v", x, got, prev)
		}
		prev = got
	}
	if got := Opacity(50, mgl32.Vec3{}); !near(got, 1, 1e-6) {
		t.Errorf("Opacity(50) = %v, want ~1", got)
	}
	// Bright scattering steepens the curve; dim scattering is floored at 1.
	if Opacity(1, mgl32.Vec3{3, 3, 3}) <= Opacity(1, mgl32.Vec3{0.1, 0.1, 0.1}) {
		t.Error("bright scattering should raise opacity")
	}
	if Opacity(1, mgl32.Vec3{0.1, 0.1, 0.1}) != Opacity(1, mgl32.Vec3{}) {
		t.Error("scattering below 1 should not change opacity")
	}
}

func TestHenyeyGreenstein(t *testing.T) {
	iso := float32(1 / (4 * math.Pi))
	for _, mu := range []float32{-1, -0.3, 0, 0.5, 1} {
		if got := HenyeyGreenstein(0, mu); !near(got, iso, 1e-6) {
			t.Errorf("HG(0, %v) = %v, want %v", mu, got, iso)
		}
	}
	if HenyeyGreenstein(0.6, 1) <= HenyeyGreenstein(0.6, -1) {
		t.Error("positive g should favor forward scattering")
	}
}

func TestDualLobeSymmetry(t *testing.T) {
	integrate := func(g, w float32, flip bool) float64 {
		const n = 4000
		var sum float64
		for i := 0; i < n; i++ {
			mu := float32(-1 + (float64(i)+0.5)*2/n)
			if flip {
				mu = -mu
			}
			sum += float64(DualLobe(g, mu, w))
		}
		return 2 * math.Pi * sum * 2 / n
	}

	for _, g := range []float32{0, 0.3, 0.6} {
		for _, w := range []float32{0.7, 0.2, 0.5} {
			for _, mu := range []float32{-0.9, -0.2, 0.4, 1} {
				a := DualLobe(g, mu, w)
				b := DualLobe(g, -mu, 1-w)
				if !near(a, b, 1e-5) {
					t.Errorf("DualLobe(%v, %v, %v) = %v, swapped = %v", g, mu, w, a, b)
				}
			}
			straight := integrate(g, w, false)
			swapped := integrate(g, 1-w, true)
			if math.Abs(straight-swapped) > 1e-4 {
				t.Errorf("g=%v w=%v: integral %v != swapped %v", g, w, straight, swapped)
			}
			if math.Abs(straight-1) > 1e-3 {
				t.Errorf("g=%v w=%v: integral %v, want 1", g, w, straight)
			}
		}
	}
}

func TestMultipleScatteringDecaysWithDepth(t *testing.T) {
	absorb := mgl32.Vec3{0.15, 0.3, 0.6}
	prev := MultipleScattering(0, 0.5, absorb)
	for od := float32(1); od < 30; od += 1 {
		cur := MultipleScattering(od, 0.5, absorb)
		for c := 0; c < 3; c++ {
			if cur[c] > prev[c] {
				t.Fatalf("channel %d grew at depth %v", c, od)
			}
		}
		prev = cur
	}
	// Higher absorption extinguishes faster.
	ms := MultipleScattering(5, 0.5, absorb)
	if !(ms[0] > ms[1] && ms[1] > ms[2]) {
		t.Errorf("expected per-channel ordering, got %v", ms)
	}
}

func TestPowderForwardVersusBackward(t *testing.T) {
	absorb := mgl32.Vec3{0.15, 0.15, 0.15}
	for _, od := range []float32{0.1, 0.5, 1} {
		fwd := PowderWeight(od, 1, absorb)
		back := PowderWeight(od, -1, absorb)
		if fwd[0] <= back[0] {
			t.Errorf("od=%v: forward weight %v should exceed backward %v", od, fwd[0], back[0])
		}
	}

	// Same scenario through the light marcher: from the sphere center a uniform
	// field gives the same optical depth toward and away from the eye.
	p := testParams(8, 8)
	f := mustFrame(t, p, density.Uniform(0.05, 1))
	center := p.Center
	along := f.LightEnergy(center, forward, 1)
	against := f.LightEnergy(center, forward.Mul(-1), -1)
	if along[0] <= 0 || against[0] <= 0 {
		t.Fatalf("light energy should be positive: %v %v", along, against)
	}
	wAlong := along[0] / MultipleScattering(opticalDepthTo(f, center, forward), 1, p.LightAbsorb)[0]
	wAgainst := against[0] / MultipleScattering(opticalDepthTo(f, center, forward.Mul(-1)), -1, p.LightAbsorb)[0]
	if wAlong <= wAgainst {
		t.Errorf("forward powder weight %v should exceed backward %v", wAlong, wAgainst)
	}
}

// opticalDepthTo repeats the light march accumulation for inspection.
func opticalDepthTo(f *Frame, origin, dir mgl32.Vec3) float32 {
	var od, marched float32
	for i := 0; i < f.lightSteps; i++ {
		pos := origin.Add(dir.Mul(marched))
		if !f.inSphere(pos) {
			break
		}
		od += f.Sampler().Density(pos) * f.params.StepSize
		marched += f.params.StepSize
	}
	return od
}

func TestLightMarchStopsAtSphereBoundary(t *testing.T) {
	p := testParams(8, 8)
	f := mustFrame(t, p, density.Uniform(1, 1))
	// From the center the sphere boundary is one radius away: 40 steps of 0.05.
	od := opticalDepthTo(f, p.Center, mgl32.Vec3{1, 0, 0})
	if !near(od, 2, 0.06) {
		t.Errorf("optical depth to boundary = %v, want ~2", od)
	}
}

func TestMissedRay(t *testing.T) {
	p := withLights(t, testParams(16, 16),
		light.NewLight(light.LightTypeDirectional, light.WithDirection(0, -1, 0)),
		light.NewLight(light.LightTypePoint, light.WithPosition(0, 0, -10)),
	)
	f := mustFrame(t, p, density.Uniform(1, 1))

	for _, dir := range []mgl32.Vec3{{0, 0, 1}, mgl32.Vec3{1, 0, -0.2}.Normalize(), mgl32.Vec3{0, 1, -1}.Normalize()} {
		res := f.MarchRay(dir, nil)
		if res.Depth != FarDepth {
			t.Errorf("dir %v: depth = %v, want %v", dir, res.Depth, FarDepth)
		}
		if res.Color.W() != 0 {
			t.Errorf("dir %v: alpha = %v, want 0", dir, res.Color.W())
		}
		if res.State != StateNotEntered {
			t.Errorf("dir %v: state = %v, want StateNotEntered", dir, res.State)
		}
	}
}

func TestUniformDensityWithoutLights(t *testing.T) {
	p := testParams(16, 16)
	p.FogColor = mgl32.Vec3{0.8, 0.6, 0.4}
	f := mustFrame(t, p, density.Uniform(1, 1))

	res := f.MarchRay(forward, nil)
	if res.State != StateInVolume {
		t.Fatalf("state = %v, want StateInVolume", res.State)
	}
	if res.Scattering != (mgl32.Vec3{}) {
		t.Errorf("scattering = %v, want zero", res.Scattering)
	}
	if res.Color.Vec3() != (mgl32.Vec3{}) {
		t.Errorf("color = %v, want black", res.Color.Vec3())
	}
	want := 1 - float32(math.Exp(-float64(res.OpticalDepth)))
	if res.Color.W() <= 0 || !near(res.Color.W(), want, 1e-6) {
		t.Errorf("alpha = %v, want %v > 0", res.Color.W(), want)
	}
	if !(res.Depth >= 0 && res.Depth < 1) {
		t.Errorf("depth = %v, want inside [0, 1)", res.Depth)
	}
}

func TestZeroLightsIgnoresStaleSlots(t *testing.T) {
	p := testParams(16, 16)
	clean := mustFrame(t, p, density.SoftSphere(2, 1)).MarchRay(forward, nil)

	nan := float32(math.NaN())
	p.Lights.Point[2] = light.Source{Type: light.LightTypePoint, Position: mgl32.Vec3{nan, nan, nan}, Diffuse: mgl32.Vec3{1e9, 1e9, 1e9}}
	p.Lights.Spot[0] = light.Source{Type: light.LightTypeSpot, Diffuse: mgl32.Vec3{5, 5, 5}}
	dirty := mustFrame(t, p, density.SoftSphere(2, 1)).MarchRay(forward, nil)

	if clean != dirty {
		t.Errorf("unused slots changed the result:\n clean %+v\n dirty %+v", clean, dirty)
	}
	if clean.Scattering != (mgl32.Vec3{}) {
		t.Errorf("scattering without lights = %v", clean.Scattering)
	}
}

func TestTransmittanceNonIncreasing(t *testing.T) {
	cloud, err := density.Cloud(16, 3, 3, 4)
	if err != nil {
		t.Fatal(err)
	}
	p := withLights(t, testParams(16, 16),
		light.NewLight(light.LightTypeDirectional, light.WithDirection(1, -1, 0), light.WithColor(1, 0.9, 0.8)),
		light.NewLight(light.LightTypePoint, light.WithPosition(1, 1, -9), light.WithIntensity(3)),
		light.NewLight(light.LightTypeSpot, light.WithPosition(0, 3, -10), light.WithDirection(0, -1, 0), light.WithSpotCone(20, 40)),
	)
	p.NoiseInfluence = 0.5
	p.NoiseScale = 2
	f := mustFrame(t, p, cloud)

	for _, dir := range []mgl32.Vec3{forward, mgl32.Vec3{0.1, 0.05, -1}.Normalize(), mgl32.Vec3{-0.12, 0, -1}.Normalize()} {
		prev := mgl32.Vec3{1, 1, 1}
		res := f.MarchRay(dir, func(s Sample) {
			for c := 0; c < 3; c++ {
				if s.Transmittance[c] > prev[c] {
					t.Fatalf("step %d channel %d: transmittance rose %v -> %v", s.Step, c, prev[c], s.Transmittance[c])
				}
			}
			prev = s.Transmittance
		})
		for c := 0; c < 3; c++ {
			if res.Transmittance[c] < 0 || res.Transmittance[c] > 1 {
				t.Errorf("final transmittance %v outside [0, 1]", res.Transmittance)
			}
		}
		for c := 0; c < 4; c++ {
			if math.IsNaN(float64(res.Color[c])) {
				t.Fatalf("NaN in color %v", res.Color)
			}
		}
	}
}

func TestEarlyTerminationEquivalence(t *testing.T) {
	p := withLights(t, testParams(16, 16),
		light.NewLight(light.LightTypeDirectional, light.WithDirection(0, -1, -1)),
	)
	p.LightAbsorb = mgl32.Vec3{1, 1, 1}
	field := density.HardCutoff(10, 0.5)

	early := mustFrame(t, p, field).MarchRay(forward, nil)
	p.DisableEarlyTermination = true
	full := mustFrame(t, p, field).MarchRay(forward, nil)

	if early.State != StateTerminated {
		t.Fatalf("expected early termination, got state %v", early.State)
	}
	if full.State != StateInVolume {
		t.Fatalf("reference should march to the end, got state %v", full.State)
	}
	if early.Samples >= full.Samples {
		t.Errorf("early ray took %d samples, reference %d", early.Samples, full.Samples)
	}
	if early.Depth != full.Depth {
		t.Errorf("depth %v != reference %v", early.Depth, full.Depth)
	}
	for c := 0; c < 4; c++ {
		if !near(early.Color[c], full.Color[c], 0.01) {
			t.Errorf("channel %d: %v vs reference %v", c, early.Color[c], full.Color[c])
		}
	}
	if early.Color.Vec3().Len() == 0 {
		t.Error("lit fog should scatter some light")
	}
}

func TestMarchFarVolume(t *testing.T) {
	p := testParams(8, 8)
	p.Center = mgl32.Vec3{0, 0, -1e5}
	p.Radius = 10
	p.StepSize = 0.1
	p.MaxDistance = 1e6
	p.DisableEarlyTermination = true
	f := mustFrame(t, p, density.Uniform(1, 1))

	done := make(chan Result, 1)
	prevZ := float32(math.Inf(1))
	repeats := 0
	go func() {
		done <- f.MarchRay(forward, func(s Sample) {
			if s.Position.Z() >= prevZ {
				repeats++
			}
			prevZ = s.Position.Z()
		})
	}()

	select {
	case res := <-done:
		if repeats > 0 {
			t.Errorf("%d samples did not advance along the ray", repeats)
		}
		// 2·radius / step samples, give or take the boundary steps.
		if res.Samples < 195 || res.Samples > 205 {
			t.Errorf("samples = %d, want ~200", res.Samples)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("MarchRay did not return for a far volume")
	}
}

func TestMaxDistanceTruncatesMarch(t *testing.T) {
	p := testParams(8, 8)
	full := mustFrame(t, p, density.Uniform(1, 1)).MarchRay(forward, nil)

	// Stop at the sphere center, halfway through the volume.
	p.MaxDistance = 10
	var farthest float32
	cut := mustFrame(t, p, density.Uniform(1, 1)).MarchRay(forward, func(s Sample) {
		farthest = max(farthest, -s.Position.Z())
	})

	if farthest >= 10 {
		t.Errorf("sampled at distance %v, past MaxDistance 10", farthest)
	}
	if cut.Samples >= full.Samples || !near(float32(cut.Samples), float32(full.Samples)/2, 2) {
		t.Errorf("samples = %d, want about half of %d", cut.Samples, full.Samples)
	}
	if !near(cut.OpticalDepth, full.OpticalDepth/2, 2) || cut.OpticalDepth >= full.OpticalDepth {
		t.Errorf("optical depth = %v, want about half of %v", cut.OpticalDepth, full.OpticalDepth)
	}
}

func TestSpotOutsideConeContributesNothing(t *testing.T) {
	field := density.SoftSphere(2, 1)
	dark := mustFrame(t, testParams(8, 8), field).MarchRay(forward, nil)

	// Above the sphere, pointing away from it.
	p := withLights(t, testParams(8, 8),
		light.NewLight(light.LightTypeSpot,
			light.WithPosition(0, 6, -10),
			light.WithDirection(0, 1, 0),
			light.WithSpotCone(10, 20),
			light.WithIntensity(50),
		),
	)
	lit := mustFrame(t, p, field).MarchRay(forward, nil)

	if lit.Scattering != (mgl32.Vec3{}) {
		t.Errorf("scattering = %v, want zero for a spot aimed away", lit.Scattering)
	}
	if lit != dark {
		t.Errorf("spot outside its cone changed the result:\n lit  %+v\n dark %+v", lit, dark)
	}
}

func TestSamplerLookupAndBlend(t *testing.T) {
	p := testParams(8, 8)
	p.LODFloor, p.LODCeil, p.LODBlend = 0, 1, 0.25
	s := NewSampler(&p, lodField{2, 6})

	if got := s.Lookup(p.Center); !got.ApproxEqualThreshold(mgl32.Vec3{0.5, 0.5, 0.5}, 1e-6) {
		t.Errorf("Lookup(center) = %v", got)
	}
	half := p.Center.Add(mgl32.Vec3{InscribedRadius(p.Radius) / 2, 0, 0})
	if got := s.Lookup(half); !near(got[0], 1, 1e-5) {
		t.Errorf("half an inscribed radius maps to %v, want x=1", got)
	}
	if got := s.Density(p.Center); !near(got, 3, 1e-6) {
		t.Errorf("blended density = %v, want 3", got)
	}

	p.NoiseInfluence = 1
	noisy := NewSampler(&p, lodField{2, 6})
	for i := 0; i < 50; i++ {
		pos := p.Center.Add(mgl32.Vec3{float32(i) * 0.03, 0, 0})
		if d := noisy.Density(pos); d > 3 || d < 0 {
			t.Fatalf("noise must only thin density, got %v", d)
		}
	}
}

func TestSamplerAppliesRotations(t *testing.T) {
	p := testParams(8, 8)
	// Volume rotated 90 degrees about y: camera -z lands on local -x.
	p.Rotation = mgl32.Rotate3DY(mgl32.DegToRad(90))
	s := NewSampler(&p, lodField{1})
	pos := p.Center.Add(mgl32.Vec3{0, 0, -1})
	local := s.Local(pos)
	if !local.ApproxEqualThreshold(mgl32.Vec3{-1, 0, 0}, 1e-5) {
		t.Errorf("Local = %v, want (-1, 0, 0)", local)
	}
}

// lodField returns a constant per level.
type lodField []float32

func (l lodField) Levels() int                           { return len(l) }
func (l lodField) Sample(lod int, _ mgl32.Vec3) float32 { return l[lod] }

func TestParamsValidate(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name   string
		mutate func(p *Params)
		ok     bool
	}{
		{"defaults", func(p *Params) {}, true},
		{"zero radius", func(p *Params) { p.Radius = 0 }, false},
		{"negative step", func(p *Params) { p.StepSize = -1 }, false},
		{"nan center", func(p *Params) { p.Center[1] = nan }, false},
		{"nan matrix", func(p *Params) { p.InverseProjection[3] = nan }, false},
		{"lod past levels", func(p *Params) { p.LODCeil = 4 }, false},
		{"lod inverted", func(p *Params) { p.LODFloor, p.LODCeil = 2, 1 }, false},
		{"blend above one", func(p *Params) { p.LODBlend = 1.5 }, false},
		{"noise influence nan", func(p *Params) { p.NoiseInfluence = nan }, false},
		{"zero resolution", func(p *Params) { p.Width = 0 }, false},
		{"negative absorb", func(p *Params) { p.LightAbsorb[2] = -0.1 }, false},
		{"transmittance zero", func(p *Params) { p.InitialTransmittance = 0 }, false},
		{"light count over capacity", func(p *Params) { p.Lights.PointCount = light.MaxPerType + 1 }, false},
		{"top lod", func(p *Params) { p.LODFloor, p.LODCeil, p.LODBlend = 3, 3, 1 }, true},
		{"step below float spacing", func(p *Params) {
			p.Center, p.Radius, p.MaxDistance, p.StepSize = mgl32.Vec3{0, 0, -3e7}, 10, 1e9, 0.1
		}, false},
		{"far volume with coarse step", func(p *Params) {
			p.Center, p.Radius, p.MaxDistance, p.StepSize = mgl32.Vec3{0, 0, -3e7}, 10, 1e9, 4
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams(8, 8)
			tt.mutate(&p)
			err := p.Validate(4)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidParams) {
				t.Fatalf("expected ErrInvalidParams, got %v", err)
			}
		})
	}
}

func TestSelectLOD(t *testing.T) {
	tests := []struct {
		distance, radius float32
		levels           int
		floor, ceil      int
		blend            float32
	}{
		{5, 10, 6, 0, 1, 0},
		{40, 10, 6, 1, 2, 0},
		{60, 10, 6, 1, 2, 0.585},
		{1e6, 10, 6, 5, 5, 0},
		{100, 10, 1, 0, 0, 0},
	}
	for _, tt := range tests {
		floor, ceil, blend := SelectLOD(tt.distance, tt.radius, tt.levels)
		if floor != tt.floor || ceil != tt.ceil || !near(blend, tt.blend, 1e-3) {
			t.Errorf("SelectLOD(%v, %v, %d) = %d, %d, %v; want %d, %d, %v",
				tt.distance, tt.radius, tt.levels, floor, ceil, blend, tt.floor, tt.ceil, tt.blend)
		}
	}
}

func TestKernelDispatch(t *testing.T) {
	const w, h = 32, 24
	p := withLights(t, testParams(w, h), light.NewLight(light.LightTypeDirectional, light.WithDirection(0, -1, 0)))
	field := density.SoftSphere(3, 1)
	k := NewKernel(WithWorkers(4), WithTileSize(8, 8))

	target := framebuffer.NewTarget(w, h)
	stats, err := k.Dispatch(context.Background(), p, field, target)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if stats.Pixels != w*h || stats.Tiles != 12 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Covered == 0 || stats.Covered == stats.Pixels {
		t.Errorf("expected partial coverage, got %d of %d", stats.Covered, stats.Pixels)
	}

	frame := mustFrame(t, p, field)
	for _, px := range [][2]int{{16, 12}, {0, 0}, {31, 23}, {20, 9}} {
		want := frame.March(px[0], px[1])
		c, d := target.At(px[0], px[1])
		if c != want.Color || d != want.Depth {
			t.Errorf("pixel %v = %v/%v, want %v/%v", px, c, d, want.Color, want.Depth)
		}
	}
	if c, _ := target.At(16, 12); c.W() <= 0 {
		t.Error("center pixel should be covered")
	}
	if c, d := target.At(0, 0); c.W() != 0 || d != 1 {
		t.Errorf("corner pixel = %v/%v, want empty at far depth", c, d)
	}
}

func TestKernelDispatchErrors(t *testing.T) {
	k := NewKernel(WithWorkers(2))
	p := testParams(8, 8)

	if _, err := k.Dispatch(context.Background(), p, density.Uniform(1, 1), framebuffer.NewTarget(4, 4)); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("size mismatch: expected ErrInvalidParams, got %v", err)
	}

	bad := p
	bad.Radius = -1
	if _, err := k.Dispatch(context.Background(), bad, density.Uniform(1, 1), framebuffer.NewTarget(8, 8)); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("bad radius: expected ErrInvalidParams, got %v", err)
	}

	if _, err := k.Dispatch(context.Background(), p, nil, framebuffer.NewTarget(8, 8)); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("nil field: expected ErrInvalidParams, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := k.Dispatch(ctx, p, density.Uniform(1, 1), framebuffer.NewTarget(8, 8)); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: expected context.Canceled, got %v", err)
	}
}
