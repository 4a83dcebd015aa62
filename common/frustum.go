package common

import (
	"github.com/chewxy/math32"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   [3]float32
	Distance float32
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// Plane indices into Frustum.Planes.
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// planeRows lists, per frustum plane, the matrix row combined with row 3 and its sign.
var planeRows = [6]struct {
	row  int
	sign float32
}{
	FrustumLeft:   {0, 1},
	FrustumRight:  {0, -1},
	FrustumBottom: {1, 1},
	FrustumTop:    {1, -1},
	FrustumNear:   {2, 1},
	FrustumFar:    {2, -1},
}

// ExtractFrustumFromMatrix extracts normalized frustum planes from a column-major
// view-projection matrix (Gribb/Hartmann): each plane is row 3 plus or minus one of rows 0..2.
//
// Parameters:
//   - viewProj: 16 float32 values, element (row, col) at index col*4 + row
//
// Returns:
//   - Frustum: the extracted frustum with unit plane normals
func ExtractFrustumFromMatrix(viewProj []float32) Frustum {
	var f Frustum
	for i, pr := range planeRows {
		p := &f.Planes[i]
		for col := range 3 {
			p.Normal[col] = viewProj[col*4+3] + pr.sign*viewProj[col*4+pr.row]
		}
		p.Distance = viewProj[15] + pr.sign*viewProj[12+pr.row]

		length := math32.Sqrt(p.Normal[0]*p.Normal[0] + p.Normal[1]*p.Normal[1] + p.Normal[2]*p.Normal[2])
		if length > 0 {
			inv := 1 / length
			p.Normal[0] *= inv
			p.Normal[1] *= inv
			p.Normal[2] *= inv
			p.Distance *= inv
		}
	}
	return f
}

// SignedDistance returns the signed distance from the plane to point p.
// Positive values lie inside the frustum half-space.
func (p Plane) SignedDistance(pt [3]float32) float32 {
	return p.Normal[0]*pt[0] + p.Normal[1]*pt[1] + p.Normal[2]*pt[2] + p.Distance
}

// ContainsPoint reports whether pt lies inside all six planes.
//
// Parameters:
//   - pt: world-space point
//
// Returns:
//   - bool: true if the point is inside the frustum
func (f *Frustum) ContainsPoint(pt [3]float32) bool {
	for i := range f.Planes {
		if f.Planes[i].SignedDistance(pt) < 0 {
			return false
		}
	}
	return true
}

// IntersectsSphere reports whether a sphere is at least partially inside the frustum.
//
// Parameters:
//   - center: world-space sphere center
//   - radius: sphere radius
//
// Returns:
//   - bool: true if the sphere is not fully outside any plane
func (f *Frustum) IntersectsSphere(center [3]float32, radius float32) bool {
	for i := range f.Planes {
		if f.Planes[i].SignedDistance(center) < -radius {
			return false
		}
	}
	return true
}

// IntersectsAABB reports whether an axis-aligned box is at least partially inside the frustum.
// Uses the positive-vertex test: the box is rejected only when its projected radius onto a
// plane normal cannot reach the inside half-space.
//
// Parameters:
//   - center: world-space box center
//   - halfExtents: box half-extents along each axis
//
// Returns:
//   - bool: true if the box is not fully outside any plane
func (f *Frustum) IntersectsAABB(center, halfExtents [3]float32) bool {
	for i := range f.Planes {
		p := &f.Planes[i]
		r := math32.Abs(p.Normal[0])*halfExtents[0] +
			math32.Abs(p.Normal[1])*halfExtents[1] +
			math32.Abs(p.Normal[2])*halfExtents[2]
		if p.SignedDistance(center) < -r {
			return false
		}
	}
	return true
}
