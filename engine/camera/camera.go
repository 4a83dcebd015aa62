package camera

import (
	"sync"

	"github.com/chewxy/math32"

	"github.com/Carmen-Shannon/oxy-scene/common"
)

// Projection selects how a camera projects the view volume.
type Projection int

const (
	ProjectionPerspective Projection = iota
	ProjectionOrthographic
)

type cameraImpl struct {
	mu *sync.Mutex

	up [3]float32

	projection Projection
	fov        float32
	aspect     float32
	near       float32
	far        float32
	halfWidth  float32
	halfHeight float32

	viewMatrix           [16]float32
	projectionMatrix     [16]float32
	viewProjectionMatrix [16]float32
	frustum              common.Frustum

	controller Controller
}

// Camera defines the interface for the camera system.
// The camera holds projection settings and computes view/projection matrices and the culling frustum
// from an attached Controller each frame via Update().
type Camera interface {
	// Up returns the camera's up vector.
	//
	// Returns:
	//   - x, y, z: up vector components
	Up() (x, y, z float32)

	// Fov returns the field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// Projection returns the projection mode.
	Projection() Projection

	// Eye returns the world-space camera position, the reference point for level-of-detail distances.
	//
	// Returns:
	//   - [3]float32: the eye position, the origin without a controller
	Eye() [3]float32

	// ViewMatrix returns the current 4x4 view matrix as 16 floats (column-major).
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the current 4x4 projection matrix as 16 floats (column-major).
	ProjectionMatrix() [16]float32

	// ViewProjectionMatrix returns the current combined view-projection matrix as 16 floats (column-major).
	ViewProjectionMatrix() [16]float32

	// Frustum returns the culling planes extracted from the view-projection matrix.
	//
	// Returns:
	//   - common.Frustum: the planes, normalized
	Frustum() common.Frustum

	// CheckBounding tests a bounding volume against the frustum. The detail level picks the test:
	// 0 or less always passes, 1 tests the centre point, 2 the bounding sphere, 3 and above the box.
	//
	// Parameters:
	//   - bv: the world-space volume
	//   - detailLevel: the node's detail level
	//
	// Returns:
	//   - bool: true if the volume may be visible
	CheckBounding(bv common.BoundingVolume, detailLevel int) bool

	// Uniform returns the GPU camera uniform for the current matrices.
	Uniform() GPUCameraUniform

	// Controller returns the attached Controller, nil if none is attached.
	Controller() Controller

	// Update reads position/target from the controller and recomputes matrices.
	// Should be called once per frame before classification.
	// If no controller is attached, this method does nothing.
	Update()

	// SetUp sets the camera's up vector.
	//
	// Parameters:
	//   - x, y, z: up vector components
	SetUp(x, y, z float32)

	// SetFov sets the field of view in radians and recomputes matrices.
	SetFov(fov float32)

	// SetAspect sets the aspect ratio (width / height) and recomputes matrices.
	SetAspect(aspect float32)

	// SetNear sets the near clipping plane distance and recomputes matrices.
	SetNear(near float32)

	// SetFar sets the far clipping plane distance and recomputes matrices.
	SetFar(far float32)

	// SetController attaches a Controller to the camera and recomputes matrices.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl Controller)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with default perspective settings.
// Without a controller the view is the identity and the eye sits at the origin.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:         &sync.Mutex{},
		up:         [3]float32{0, 1, 0},
		fov:        45.0 * (math32.Pi / 180.0), // radians
		aspect:     1.0,
		near:       0.1,
		far:        100.0,
		halfWidth:  10,
		halfHeight: 10,
	}
	common.Identity(c.viewMatrix[:])
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Up() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up[0], c.up[1], c.up[2]
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

func (c *cameraImpl) Projection() Projection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

func (c *cameraImpl) Eye() [3]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return [3]float32{}
	}
	return c.controller.Position()
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) Frustum() common.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frustum
}

func (c *cameraImpl) CheckBounding(bv common.BoundingVolume, detailLevel int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bv.CheckWithFrustum(&c.frustum, detailLevel)
}

func (c *cameraImpl) Uniform() GPUCameraUniform {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := GPUCameraUniform{ViewProj: c.viewProjectionMatrix, Far: c.far}
	if c.controller != nil {
		u.Eye = c.controller.Position()
	}
	return u
}

func (c *cameraImpl) SetUp(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = [3]float32{x, y, z}
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.updateMatrices()
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
	c.updateMatrices()
}

func (c *cameraImpl) Controller() Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return
	}
	c.updateMatrices()
}

func (c *cameraImpl) SetController(ctrl Controller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
	c.updateMatrices()
}

// updateMatrices recalculates the view, projection and view-projection matrices and the frustum.
// The view matrix is only rebuilt when a controller is attached.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	if c.controller != nil {
		p := c.controller.Position()
		t := c.controller.Target()
		common.LookAt(c.viewMatrix[:],
			p[0], p[1], p[2],
			t[0], t[1], t[2],
			c.up[0], c.up[1], c.up[2],
		)
	}

	switch c.projection {
	case ProjectionOrthographic:
		common.Orthographic(c.projectionMatrix[:], c.halfWidth, c.halfHeight, c.near, c.far)
	default:
		common.Perspective(c.projectionMatrix[:], c.fov, c.aspect, c.near, c.far)
	}

	common.Mul4(c.viewProjectionMatrix[:], c.projectionMatrix[:], c.viewMatrix[:])
	c.frustum = common.ExtractFrustumFromMatrix(c.viewProjectionMatrix[:])
}
