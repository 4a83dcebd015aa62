package drawable_object

import (
	"github.com/Carmen-Shannon/oxy-scene/engine/mesh"
)

// DrawableObjectBuilderOption is a functional option for configuring a DrawableObject.
type DrawableObjectBuilderOption func(*drawableObject)

// WithID sets the object's identifier.
//
// Parameters:
//   - id: the identifier
//
// Returns:
//   - DrawableObjectBuilderOption: a function that applies the ID option
func WithID(id uint64) DrawableObjectBuilderOption {
	return func(o *drawableObject) {
		o.id = id
	}
}

// WithLOD sets the mid and low detail meshes. Either may be nil.
//
// Parameters:
//   - mid: mesh used beyond the mid distance
//   - low: mesh used beyond the low distance
//
// Returns:
//   - DrawableObjectBuilderOption: a function that applies the LOD option
func WithLOD(mid, low mesh.Mesh) DrawableObjectBuilderOption {
	return func(o *drawableObject) {
		o.meshMid = mid
		o.meshLow = low
	}
}

// WithPosition sets the initial node-local position.
//
// Parameters:
//   - x, y, z: position components
//
// Returns:
//   - DrawableObjectBuilderOption: a function that applies the position option
func WithPosition(x, y, z float32) DrawableObjectBuilderOption {
	return func(o *drawableObject) {
		o.position = [3]float32{x, y, z}
	}
}

// WithRotation sets the initial node-local Euler rotation in radians.
//
// Parameters:
//   - rx, ry, rz: rotation angles
//
// Returns:
//   - DrawableObjectBuilderOption: a function that applies the rotation option
func WithRotation(rx, ry, rz float32) DrawableObjectBuilderOption {
	return func(o *drawableObject) {
		o.rotation = [3]float32{rx, ry, rz}
	}
}

// WithScale sets the initial node-local scale.
//
// Parameters:
//   - sx, sy, sz: scale factors
//
// Returns:
//   - DrawableObjectBuilderOption: a function that applies the scale option
func WithScale(sx, sy, sz float32) DrawableObjectBuilderOption {
	return func(o *drawableObject) {
		o.scale = [3]float32{sx, sy, sz}
	}
}

// WithDynamic marks the object for the shared dynamic batch.
//
// Parameters:
//   - dynamic: true to batch dynamically
//
// Returns:
//   - DrawableObjectBuilderOption: a function that applies the dynamic option
func WithDynamic(dynamic bool) DrawableObjectBuilderOption {
	return func(o *drawableObject) {
		o.dynamic = dynamic
	}
}

// WithShadowCaster sets whether the object renders into shadow passes. Defaults to true.
//
// Parameters:
//   - caster: false to skip shadow passes
//
// Returns:
//   - DrawableObjectBuilderOption: a function that applies the shadow option
func WithShadowCaster(caster bool) DrawableObjectBuilderOption {
	return func(o *drawableObject) {
		o.shadowCaster = caster
	}
}

// WithCollisionObject attaches a physics proxy.
//
// Parameters:
//   - c: the proxy
//
// Returns:
//   - DrawableObjectBuilderOption: a function that applies the collision option
func WithCollisionObject(c CollisionObject) DrawableObjectBuilderOption {
	return func(o *drawableObject) {
		o.collision = c
	}
}
