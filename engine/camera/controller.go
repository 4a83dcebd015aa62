package camera

import (
	"sync"

	"github.com/chewxy/math32"
)

// Controller supplies the camera position and the point it looks at.
type Controller interface {
	// Position returns the world-space camera position.
	Position() [3]float32

	// Target returns the world-space point the camera looks at.
	Target() [3]float32
}

// LookAtController is a Controller placed directly by position and target.
type LookAtController interface {
	Controller

	// SetPosition moves the camera.
	SetPosition(x, y, z float32)

	// SetTarget changes the look-at point.
	SetTarget(x, y, z float32)
}

// OrbitController keeps the camera on a sphere around its target.
type OrbitController interface {
	Controller

	// Orbit rotates around the target.
	//
	// Parameters:
	//   - dAzimuth: change of the horizontal angle around Y, radians
	//   - dElevation: change of the vertical angle, radians, clamped to the elevation bounds
	Orbit(dAzimuth, dElevation float32)

	// Zoom changes the radius by delta, clamped to the radius bounds.
	Zoom(delta float32)

	// SetTarget moves the orbit centre, keeping the spherical offset.
	SetTarget(x, y, z float32)

	Radius() float32
	Azimuth() float32
	Elevation() float32
}

type lookAtController struct {
	mu       *sync.Mutex
	position [3]float32
	target   [3]float32
}

var _ LookAtController = &lookAtController{}

// NewLookAtController creates a controller at a fixed position looking at target.
//
// Parameters:
//   - position: the camera position
//   - target: the look-at point
//
// Returns:
//   - LookAtController: the controller
func NewLookAtController(position, target [3]float32) LookAtController {
	return &lookAtController{mu: &sync.Mutex{}, position: position, target: target}
}

func (l *lookAtController) Position() [3]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position
}

func (l *lookAtController) Target() [3]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.target
}

func (l *lookAtController) SetPosition(x, y, z float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position = [3]float32{x, y, z}
}

func (l *lookAtController) SetTarget(x, y, z float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.target = [3]float32{x, y, z}
}

type orbitController struct {
	mu *sync.Mutex

	position [3]float32
	target   [3]float32

	radius    float32
	azimuth   float32
	elevation float32

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32
}

var _ OrbitController = &orbitController{}

// NewOrbitController creates an orbit controller. Defaults: radius 10 in [1, 100],
// elevation 0.3 in [-1.5, 1.5], azimuth 0, target at the origin.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - OrbitController: the controller
func NewOrbitController(options ...OrbitControllerOption) OrbitController {
	o := &orbitController{
		mu:           &sync.Mutex{},
		radius:       10,
		elevation:    0.3,
		minRadius:    1,
		maxRadius:    100,
		minElevation: -1.5,
		maxElevation: 1.5,
	}
	for _, opt := range options {
		opt(o)
	}
	o.radius = clamp(o.radius, o.minRadius, o.maxRadius)
	o.elevation = clamp(o.elevation, o.minElevation, o.maxElevation)
	o.updatePosition()
	return o
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(v, hi))
}

// updatePosition recomputes the position from the spherical coordinates.
// Caller must hold the mutex.
func (o *orbitController) updatePosition() {
	sinEl, cosEl := math32.Sin(o.elevation), math32.Cos(o.elevation)
	sinAz, cosAz := math32.Sin(o.azimuth), math32.Cos(o.azimuth)
	o.position[0] = o.target[0] + o.radius*cosEl*sinAz
	o.position[1] = o.target[1] + o.radius*sinEl
	o.position[2] = o.target[2] + o.radius*cosEl*cosAz
}

func (o *orbitController) Position() [3]float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.position
}

func (o *orbitController) Target() [3]float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.target
}

func (o *orbitController) Orbit(dAzimuth, dElevation float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.azimuth += dAzimuth
	o.elevation = clamp(o.elevation+dElevation, o.minElevation, o.maxElevation)
	o.updatePosition()
}

func (o *orbitController) Zoom(delta float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.radius = clamp(o.radius+delta, o.minRadius, o.maxRadius)
	o.updatePosition()
}

func (o *orbitController) SetTarget(x, y, z float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.target = [3]float32{x, y, z}
	o.updatePosition()
}

func (o *orbitController) Radius() float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.radius
}

func (o *orbitController) Azimuth() float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.azimuth
}

func (o *orbitController) Elevation() float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.elevation
}
