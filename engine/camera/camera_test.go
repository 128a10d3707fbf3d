package camera

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

func TestOrbitControllerDefaults(t *testing.T) {
	cc := NewOrbitController(WithRadius(20), WithTarget(mgl32.Vec3{0, 0, -20}))

	dist := cc.Position().Sub(cc.Target()).Len()
	if math32.Abs(dist-20) > 1e-4 {
		t.Fatalf("distance from target = %f, want 20", dist)
	}
}

func TestOrbitControllerBounds(t *testing.T) {
	tests := []struct {
		name       string
		apply      func(CameraController)
		wantRadius float32
	}{
		{
			name:       "zoom in clamps to min radius",
			apply:      func(cc CameraController) { cc.Zoom(1000) },
			wantRadius: 2,
		},
		{
			name:       "zoom out clamps to max radius",
			apply:      func(cc CameraController) { cc.Zoom(-1000) },
			wantRadius: 50,
		},
		{
			name:       "set radius within bounds",
			apply:      func(cc CameraController) { cc.SetRadius(12) },
			wantRadius: 12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc := NewOrbitController(WithRadius(10), WithRadiusBounds(2, 50))
			tt.apply(cc)
			if got := cc.Radius(); got != tt.wantRadius {
				t.Errorf("Radius() = %f, want %f", got, tt.wantRadius)
			}
		})
	}
}

func TestOrbitControllerElevationClamp(t *testing.T) {
	cc := NewOrbitController(WithOrbitSpeed(1))
	cc.Orbit(0, 100)
	if e := cc.Elevation(); e >= math32.Pi/2 {
		t.Errorf("Elevation() = %f, want below pi/2", e)
	}
	cc.Orbit(0, -100)
	if e := cc.Elevation(); e <= -math32.Pi/2 {
		t.Errorf("Elevation() = %f, want above -pi/2", e)
	}
	cc.Orbit(0.5, 0)
	if a := cc.Azimuth(); math32.Abs(a-0.5) > 1e-6 {
		t.Errorf("Azimuth() = %f, want 0.5", a)
	}
}

func TestOrbitControllerPan(t *testing.T) {
	cc := NewOrbitController(WithRadius(10), WithElevation(0), WithPanSpeed(0.1))
	cc.Pan(10, 5)

	if got := cc.Target(); !got.ApproxEqualThreshold(mgl32.Vec3{10, 5, 0}, 1e-4) {
		t.Errorf("Target() = %v, want (10,5,0)", got)
	}
	if got := cc.Position(); !got.ApproxEqualThreshold(mgl32.Vec3{10, 5, 10}, 1e-4) {
		t.Errorf("Position() = %v, want (10,5,10)", got)
	}
}

func TestOrbitControllerSetAzimuth(t *testing.T) {
	cc := NewOrbitController(WithRadius(10), WithElevation(0))
	cc.SetAzimuth(math32.Pi / 2)

	if got := cc.Position(); !got.ApproxEqualThreshold(mgl32.Vec3{10, 0, 0}, 1e-4) {
		t.Errorf("Position() = %v, want (10,0,0)", got)
	}
}

func TestCameraMatrices(t *testing.T) {
	cc := NewOrbitController(WithRadius(20), WithElevation(0))
	cam := NewCamera(WithController(cc), WithAspect(1), WithFov(60), WithClip(0.1, 100))

	ident := cam.View().Mul4(cam.InverseView())
	if !ident.ApproxEqualThreshold(mgl32.Ident4(), 1e-4) {
		t.Errorf("View * InverseView = %v, want identity", ident)
	}

	ident = cam.Projection().Mul4(cam.InverseProjection())
	if !ident.ApproxEqualThreshold(mgl32.Ident4(), 1e-4) {
		t.Errorf("Projection * InverseProjection = %v, want identity", ident)
	}

	// The orbit target sits straight ahead, 20 units down -Z in view space.
	target := cam.View().Mul4x1(cc.Target().Vec4(1)).Vec3()
	if !target.ApproxEqualThreshold(mgl32.Vec3{0, 0, -20}, 1e-4) {
		t.Errorf("target in view space = %v, want (0,0,-20)", target)
	}
}

func TestCameraFrustum(t *testing.T) {
	cam := NewCamera(WithController(NewOrbitController(WithRadius(20), WithElevation(0))))

	if !cam.Frustum().SphereVisible(mgl32.Vec3{}, 2) {
		t.Error("sphere at orbit target should be visible")
	}
	behind := cam.Position().Mul(2)
	if cam.Frustum().SphereVisible(behind, 2) {
		t.Error("sphere behind the camera should be culled")
	}
}

func TestCameraSetAspectUpdatesProjection(t *testing.T) {
	cam := NewCamera(WithAspect(1))
	before := cam.Projection()
	cam.SetAspect(2)
	after := cam.Projection()

	if math32.Abs(after[0]-before[0]/2) > 1e-5 {
		t.Errorf("projection[0] = %f, want %f", after[0], before[0]/2)
	}
	if cam.Aspect() != 2 {
		t.Errorf("Aspect() = %f, want 2", cam.Aspect())
	}
}

func TestGPUCameraUniformMarshal(t *testing.T) {
	cam := NewCamera()
	u := NewGPUCameraUniform(cam.Projection(), cam.InverseProjection(), cam.View(), cam.InverseView())

	if u.Size() != 256 {
		t.Fatalf("Size() = %d, want 256", u.Size())
	}
	buf := u.Marshal()
	if len(buf) != 256 {
		t.Fatalf("len(Marshal()) = %d, want 256", len(buf))
	}
	// Column 3 row 2 of the projection holds -2fn/(f-n); check it landed at index 14.
	got := math.Float32frombits(binary.LittleEndian.Uint32(buf[56:]))
	if got != cam.Projection()[14] {
		t.Errorf("marshaled projection[14] = %f, want %f", got, cam.Projection()[14])
	}
}
