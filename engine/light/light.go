// Package light provides the directional light whose orthographic cameras cull the shadow cascade queues.
package light

import (
	"sync"

	"github.com/chewxy/math32"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
)

const cascadeCount = 3

// cascade is one orthographic shadow camera and the controller placing it.
type cascade struct {
	halfExtent float32
	controller camera.LookAtController
	camera     camera.Camera
}

// directionalLight is the implementation of the DirectionalLight interface.
type directionalLight struct {
	mu *sync.Mutex

	direction  [3]float32
	center     [3]float32
	halfExtent float32
	factor     float32
	near       float32
	far        float32

	cascades [cascadeCount]cascade
}

// DirectionalLight is a sun-like light without position. It keeps one orthographic camera per
// shadow pass (near, mid, far), each centred on a followed point and looking along the light
// direction, with the half-extent growing by a constant factor per cascade.
//
// The cameras are plain camera.Camera values: the scene updates them every frame and hands
// them to the shadow queues as culling cameras.
type DirectionalLight interface {
	// Direction returns the normalized direction the light travels in.
	//
	// Returns:
	//   - [3]float32: the direction
	Direction() [3]float32

	// SetDirection changes the light direction. A zero vector is ignored.
	//
	// Parameters:
	//   - x, y, z: direction components, normalized before storing
	SetDirection(x, y, z float32)

	// Center returns the point the cascades are centred on.
	Center() [3]float32

	// Follow recentres every cascade on a world-space point, typically the camera target.
	//
	// Parameters:
	//   - center: the point to follow
	Follow(center [3]float32)

	// CascadeCamera returns the culling camera of a shadow pass.
	//
	// Parameters:
	//   - pass: the render pass
	//
	// Returns:
	//   - camera.Camera: the cascade camera, nil for passes without a cascade
	CascadeCamera(pass common.Pass) camera.Camera

	// HalfExtent returns the orthographic half-extent of a shadow pass, 0 for passes without a cascade.
	HalfExtent(pass common.Pass) float32
}

var _ DirectionalLight = &directionalLight{}

// NewDirectionalLight creates a DirectionalLight pointing straight down unless configured otherwise.
//
// Parameters:
//   - options: functional options to configure the light
//
// Returns:
//   - DirectionalLight: the newly created light
func NewDirectionalLight(options ...DirectionalLightBuilderOption) DirectionalLight {
	l := &directionalLight{
		mu:         &sync.Mutex{},
		direction:  [3]float32{0, -1, 0},
		halfExtent: DefaultShadowHalfExtent,
		factor:     DefaultCascadeFactor,
		near:       DefaultShadowNear,
		far:        DefaultShadowFar,
	}
	for _, opt := range options {
		opt(l)
	}

	h := l.halfExtent
	for i := range l.cascades {
		ctrl := camera.NewLookAtController(l.eye(), l.center)
		l.cascades[i] = cascade{
			halfExtent: h,
			controller: ctrl,
			camera: camera.NewCamera(
				camera.WithOrthographic(h, h),
				camera.WithNear(l.near),
				camera.WithFar(l.far),
				camera.WithController(ctrl),
				camera.WithUp(l.up()),
			),
		}
		h *= l.factor
	}
	return l
}

func (l *directionalLight) Direction() [3]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.direction
}

func (l *directionalLight) SetDirection(x, y, z float32) {
	d, ok := normalize3(x, y, z)
	if !ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.direction = d
	l.place()
}

func (l *directionalLight) Center() [3]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.center
}

func (l *directionalLight) Follow(center [3]float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if center == l.center {
		return
	}
	l.center = center
	l.place()
}

func (l *directionalLight) CascadeCamera(pass common.Pass) camera.Camera {
	i := cascadeIndex(pass)
	if i < 0 {
		return nil
	}
	return l.cascades[i].camera
}

func (l *directionalLight) HalfExtent(pass common.Pass) float32 {
	i := cascadeIndex(pass)
	if i < 0 {
		return 0
	}
	return l.cascades[i].halfExtent
}

// place moves every cascade controller to the current centre and direction.
// The cameras pick the change up on their next Update.
func (l *directionalLight) place() {
	eye := l.eye()
	x, y, z := l.up()
	for _, c := range l.cascades {
		c.controller.SetPosition(eye[0], eye[1], eye[2])
		c.controller.SetTarget(l.center[0], l.center[1], l.center[2])
		c.camera.SetUp(x, y, z)
	}
}

func (l *directionalLight) eye() [3]float32 {
	back := l.far / 2
	return [3]float32{
		l.center[0] - l.direction[0]*back,
		l.center[1] - l.direction[1]*back,
		l.center[2] - l.direction[2]*back,
	}
}

// up returns +Y, or +Z when the light is nearly vertical.
func (l *directionalLight) up() (x, y, z float32) {
	if math32.Abs(l.direction[1]) > 0.99 {
		return 0, 0, 1
	}
	return 0, 1, 0
}

func normalize3(x, y, z float32) ([3]float32, bool) {
	n := math32.Sqrt(x*x + y*y + z*z)
	if n == 0 {
		return [3]float32{}, false
	}
	return [3]float32{x / n, y / n, z / n}, true
}
