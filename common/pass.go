package common

// Pass identifies the render pass a queue, drawcall or channel policy serves.
type Pass int

const (
	// PassColor is the main shaded pass.
	PassColor Pass = iota
	// PassNearShadow is the closest shadow cascade.
	PassNearShadow
	// PassMidShadow is the middle shadow cascade.
	PassMidShadow
	// PassFarShadow is the farthest shadow cascade.
	PassFarShadow
)

// IsShadow reports whether the pass renders depth for shadowing.
func (p Pass) IsShadow() bool {
	return p != PassColor
}

func (p Pass) String() string {
	switch p {
	case PassColor:
		return "color"
	case PassNearShadow:
		return "near_shadow"
	case PassMidShadow:
		return "mid_shadow"
	case PassFarShadow:
		return "far_shadow"
	}
	return "unknown"
}

// ParsePass maps a configuration name onto a Pass.
//
// Parameters:
//   - name: one of "color", "near_shadow", "mid_shadow", "far_shadow"
//
// Returns:
//   - Pass: the parsed pass
//   - bool: false if the name is not recognised
func ParsePass(name string) (Pass, bool) {
	for _, p := range []Pass{PassColor, PassNearShadow, PassMidShadow, PassFarShadow} {
		if p.String() == name {
			return p, true
		}
	}
	return PassColor, false
}
