package common

import (
	"github.com/chewxy/math32"
)

// BoundingVolume is an axis-aligned box stored as a world-space center and three half-extents.
// A volume whose half-extents are all zero is empty and is skipped by Merge.
type BoundingVolume struct {
	// Position is the world-space center of the box.
	Position [3]float32
	// HalfExtents is half the box size along X, Y and Z.
	HalfExtents [3]float32
}

// NewBoundingVolumeFromMinMax builds a volume from its minimum and maximum corners.
//
// Parameters:
//   - lo: minimum corner
//   - hi: maximum corner
//
// Returns:
//   - BoundingVolume: the enclosing volume
func NewBoundingVolumeFromMinMax(lo, hi [3]float32) BoundingVolume {
	var b BoundingVolume
	for i := range 3 {
		b.Position[i] = (lo[i] + hi[i]) * 0.5
		b.HalfExtents[i] = math32.Abs(hi[i]-lo[i]) * 0.5
	}
	return b
}

// Empty reports whether the volume has zero extent on every axis.
func (b BoundingVolume) Empty() bool {
	return b.HalfExtents[0] <= 0 && b.HalfExtents[1] <= 0 && b.HalfExtents[2] <= 0
}

// Min returns the minimum corner.
func (b BoundingVolume) Min() [3]float32 {
	return [3]float32{b.Position[0] - b.HalfExtents[0], b.Position[1] - b.HalfExtents[1], b.Position[2] - b.HalfExtents[2]}
}

// Max returns the maximum corner.
func (b BoundingVolume) Max() [3]float32 {
	return [3]float32{b.Position[0] + b.HalfExtents[0], b.Position[1] + b.HalfExtents[1], b.Position[2] + b.HalfExtents[2]}
}

// Radius returns the radius of the sphere that encloses the box.
func (b BoundingVolume) Radius() float32 {
	h := b.HalfExtents
	return math32.Sqrt(h[0]*h[0] + h[1]*h[1] + h[2]*h[2])
}

// Update moves the volume so it is centered at pos, keeping its extents.
//
// Parameters:
//   - pos: new world-space center
func (b *BoundingVolume) Update(pos [3]float32) {
	b.Position = pos
}

// Translate shifts the volume by a delta.
//
// Parameters:
//   - d: offset to add to the center
func (b *BoundingVolume) Translate(d [3]float32) {
	b.Position[0] += d[0]
	b.Position[1] += d[1]
	b.Position[2] += d[2]
}

// Merge replaces the receiver with the smallest box enclosing every non-empty volume in vs.
// When vs holds no non-empty volume the receiver is left untouched.
//
// Parameters:
//   - vs: candidate volumes
//
// Returns:
//   - bool: true if at least one volume was merged
func (b *BoundingVolume) Merge(vs ...BoundingVolume) bool {
	lo := [3]float32{math32.Inf(1), math32.Inf(1), math32.Inf(1)}
	hi := [3]float32{math32.Inf(-1), math32.Inf(-1), math32.Inf(-1)}
	merged := false
	for _, v := range vs {
		if v.Empty() {
			continue
		}
		vmin, vmax := v.Min(), v.Max()
		for i := range 3 {
			lo[i] = math32.Min(lo[i], vmin[i])
			hi[i] = math32.Max(hi[i], vmax[i])
		}
		merged = true
	}
	if merged {
		*b = NewBoundingVolumeFromMinMax(lo, hi)
	}
	return merged
}

// Contains reports whether other lies fully inside the receiver, within eps.
//
// Parameters:
//   - other: the volume to test
//   - eps: tolerance applied on every face
//
// Returns:
//   - bool: true if other is enclosed
func (b BoundingVolume) Contains(other BoundingVolume, eps float32) bool {
	bmin, bmax := b.Min(), b.Max()
	omin, omax := other.Min(), other.Max()
	for i := range 3 {
		if omin[i] < bmin[i]-eps || omax[i] > bmax[i]+eps {
			return false
		}
	}
	return true
}

// Corners returns the eight corners of the box. Bit 0 of the index selects max X,
// bit 1 max Y and bit 2 max Z.
func (b BoundingVolume) Corners() [8][3]float32 {
	var out [8][3]float32
	lo, hi := b.Min(), b.Max()
	for i := range 8 {
		for axis := range 3 {
			if i&(1<<axis) != 0 {
				out[i][axis] = hi[axis]
			} else {
				out[i][axis] = lo[axis]
			}
		}
	}
	return out
}

// CheckWithFrustum tests the volume against a frustum at the given detail level.
// Level 0 or below never culls, level 1 tests the center point, level 2 the enclosing
// sphere and level 3 or above the full box.
//
// Parameters:
//   - f: the view frustum
//   - detailLevel: culling precision
//
// Returns:
//   - bool: true if the volume may be visible
func (b BoundingVolume) CheckWithFrustum(f *Frustum, detailLevel int) bool {
	switch {
	case detailLevel <= 0:
		return true
	case detailLevel == 1:
		return f.ContainsPoint(b.Position)
	case detailLevel == 2:
		return f.IntersectsSphere(b.Position, b.Radius())
	default:
		return f.IntersectsAABB(b.Position, b.HalfExtents)
	}
}

// DistanceSquared returns the squared distance between the volume center and p.
//
// Parameters:
//   - p: reference point, usually the eye position
//
// Returns:
//   - float32: squared euclidean distance
func (b BoundingVolume) DistanceSquared(p [3]float32) float32 {
	dx := b.Position[0] - p[0]
	dy := b.Position[1] - p[1]
	dz := b.Position[2] - p[2]
	return dx*dx + dy*dy + dz*dz
}
