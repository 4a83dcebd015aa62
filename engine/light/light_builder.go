package light

// DirectionalLightBuilderOption is a function that configures a DirectionalLight during construction.
type DirectionalLightBuilderOption func(*directionalLight)

// WithDirection is an option builder that sets the direction the light travels in.
// The direction is normalized before storing; a zero vector is ignored.
//
// Parameters:
//   - x: the x direction component
//   - y: the y direction component
//   - z: the z direction component
//
// Returns:
//   - DirectionalLightBuilderOption: a function that applies the direction option
func WithDirection(x, y, z float32) DirectionalLightBuilderOption {
	return func(l *directionalLight) {
		if d, ok := normalize3(x, y, z); ok {
			l.direction = d
		}
	}
}

// WithCenter is an option builder that sets the initial point the cascades are centred on.
//
// Parameters:
//   - x, y, z: the world-space point
//
// Returns:
//   - DirectionalLightBuilderOption: a function that applies the center option
func WithCenter(x, y, z float32) DirectionalLightBuilderOption {
	return func(l *directionalLight) {
		l.center = [3]float32{x, y, z}
	}
}

// WithCascades is an option builder that sets the near cascade half-extent and the growth factor
// applied per cascade. Non-positive values and factors below 1 are ignored.
//
// Parameters:
//   - halfExtent: the near cascade half-extent in world units
//   - factor: the half-extent multiplier from one cascade to the next
//
// Returns:
//   - DirectionalLightBuilderOption: a function that applies the cascade option
func WithCascades(halfExtent, factor float32) DirectionalLightBuilderOption {
	return func(l *directionalLight) {
		if halfExtent > 0 {
			l.halfExtent = halfExtent
		}
		if factor >= 1 {
			l.factor = factor
		}
	}
}

// WithDepthRange is an option builder that sets the near and far planes of every cascade.
// Ranges with far <= near are ignored.
//
// Parameters:
//   - near: the near plane distance
//   - far: the far plane distance
//
// Returns:
//   - DirectionalLightBuilderOption: a function that applies the depth option
func WithDepthRange(near, far float32) DirectionalLightBuilderOption {
	return func(l *directionalLight) {
		if far > near && near >= 0 {
			l.near = near
			l.far = far
		}
	}
}
