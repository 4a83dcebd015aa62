package light

import "github.com/Carmen-Shannon/oxy-scene/common"

// DefaultShadowHalfExtent is the orthographic half-extent (in world units) of the near cascade.
const DefaultShadowHalfExtent float32 = 40.0

// DefaultCascadeFactor scales the half-extent from one cascade to the next.
const DefaultCascadeFactor float32 = 2.5

// DefaultShadowNear is the near plane of every cascade projection.
const DefaultShadowNear float32 = 0.1

// DefaultShadowFar is the far plane of every cascade projection. Cascade cameras sit half this
// distance from the followed point, against the light direction.
const DefaultShadowFar float32 = 200.0

// cascadeIndex maps a shadow pass to its cascade, -1 for passes without one.
func cascadeIndex(pass common.Pass) int {
	switch pass {
	case common.PassNearShadow:
		return 0
	case common.PassMidShadow:
		return 1
	case common.PassFarShadow:
		return 2
	}
	return -1
}
