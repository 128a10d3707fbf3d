package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-fog/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is a perspective camera. Matrices follow the OpenGL clip convention
// (right-handed view space looking down -Z, NDC depth in [-1, 1]).
//
// The camera does not own a position; it reads position and target from its
// CameraController every time Update is called.
type Camera interface {
	// Up returns the world-space up vector.
	Up() mgl32.Vec3

	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Aspect returns the width/height ratio.
	Aspect() float32

	// Near returns the near clip distance.
	Near() float32

	// Far returns the far clip distance.
	Far() float32

	// View returns the world-to-view matrix computed by the last Update.
	View() mgl32.Mat4

	// InverseView returns the view-to-world matrix.
	InverseView() mgl32.Mat4

	// Projection returns the perspective projection matrix.
	Projection() mgl32.Mat4

	// InverseProjection returns the inverse of Projection.
	InverseProjection() mgl32.Mat4

	// ViewProjection returns Projection * View.
	ViewProjection() mgl32.Mat4

	// Position returns the controller's current world position.
	Position() mgl32.Vec3

	// Frustum returns the world-space frustum of the last Update.
	Frustum() common.Frustum

	// Controller returns the attached controller.
	Controller() CameraController

	// SetController replaces the controller and recomputes the matrices.
	//
	// Parameters:
	//   - controller: the new controller, must not be nil
	SetController(controller CameraController)

	// SetAspect updates the aspect ratio, for instance after a resize.
	//
	// Parameters:
	//   - aspect: width divided by height
	SetAspect(aspect float32)

	// SetFov updates the vertical field of view in radians.
	SetFov(fov float32)

	// SetClip updates the near and far clip distances.
	SetClip(near, far float32)

	// Update recomputes every matrix from the controller state.
	Update()
}

// cameraImpl is the implementation of the Camera interface.
type cameraImpl struct {
	mu *sync.Mutex

	up     mgl32.Vec3
	fov    float32
	aspect float32
	near   float32
	far    float32

	view        mgl32.Mat4
	inverseView mgl32.Mat4
	projection  mgl32.Mat4
	inverseProj mgl32.Mat4
	viewProj    mgl32.Mat4
	frustum     common.Frustum

	controller CameraController
}

var _ Camera = &cameraImpl{}

// NewCamera creates a camera with a 60 degree field of view, 16:9 aspect,
// and clip planes at 0.1 and 1000. Without WithController it gets a default
// orbit controller.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera with matrices computed
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		up:     mgl32.Vec3{0, 1, 0},
		fov:    mgl32.DegToRad(60),
		aspect: 16.0 / 9.0,
		near:   0.1,
		far:    1000.0,
	}

	for _, option := range options {
		option(c)
	}

	if c.controller == nil {
		c.controller = NewOrbitController()
	}

	c.update()
	return c
}

// update recomputes all matrices. Caller must hold the mutex or be the constructor.
func (c *cameraImpl) update() {
	eye := c.controller.Position()
	target := c.controller.Target()

	c.view = mgl32.LookAtV(eye, target, c.up)
	c.inverseView = c.view.Inv()
	c.projection = mgl32.Perspective(c.fov, c.aspect, c.near, c.far)
	c.inverseProj = c.projection.Inv()
	c.viewProj = c.projection.Mul4(c.view)
	c.frustum = common.ExtractFrustum(c.viewProj)
}

func (c *cameraImpl) Up() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) View() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *cameraImpl) InverseView() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseView
}

func (c *cameraImpl) Projection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

func (c *cameraImpl) InverseProjection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseProj
}

func (c *cameraImpl) ViewProjection() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProj
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	return c.controller.Position()
}

func (c *cameraImpl) Frustum() common.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frustum
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(controller CameraController) {
	if controller == nil {
		panic("camera controller cannot be nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = controller
	c.update()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.update()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.update()
}

func (c *cameraImpl) SetClip(near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.far = far
	c.update()
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.update()
}
