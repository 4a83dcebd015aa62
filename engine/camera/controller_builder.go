package camera

// OrbitControllerOption is a functional option for configuring an OrbitController.
type OrbitControllerOption func(*orbitController)

// WithRadius sets the initial distance from the target.
//
// Parameters:
//   - radius: the distance
//
// Returns:
//   - OrbitControllerOption: a function that applies the radius option
func WithRadius(radius float32) OrbitControllerOption {
	return func(o *orbitController) {
		o.radius = radius
	}
}

// WithAzimuth sets the initial horizontal angle in radians.
//
// Parameters:
//   - azimuth: the angle around Y
//
// Returns:
//   - OrbitControllerOption: a function that applies the azimuth option
func WithAzimuth(azimuth float32) OrbitControllerOption {
	return func(o *orbitController) {
		o.azimuth = azimuth
	}
}

// WithElevation sets the initial vertical angle in radians.
//
// Parameters:
//   - elevation: the angle above the horizontal plane
//
// Returns:
//   - OrbitControllerOption: a function that applies the elevation option
func WithElevation(elevation float32) OrbitControllerOption {
	return func(o *orbitController) {
		o.elevation = elevation
	}
}

// WithTarget sets the orbit centre.
//
// Parameters:
//   - x, y, z: the target position
//
// Returns:
//   - OrbitControllerOption: a function that applies the target option
func WithTarget(x, y, z float32) OrbitControllerOption {
	return func(o *orbitController) {
		o.target = [3]float32{x, y, z}
	}
}

// WithRadiusBounds sets the zoom limits.
//
// Parameters:
//   - lo, hi: minimum and maximum radius
//
// Returns:
//   - OrbitControllerOption: a function that applies the bounds option
func WithRadiusBounds(lo, hi float32) OrbitControllerOption {
	return func(o *orbitController) {
		o.minRadius = lo
		o.maxRadius = hi
	}
}

// WithElevationBounds sets the vertical angle limits in radians.
//
// Parameters:
//   - lo, hi: minimum and maximum elevation
//
// Returns:
//   - OrbitControllerOption: a function that applies the bounds option
func WithElevationBounds(lo, hi float32) OrbitControllerOption {
	return func(o *orbitController) {
		o.minElevation = lo
		o.maxElevation = hi
	}
}
