package debug_draw

type linesConfig struct {
	baseHue  float64
	maxDepth int
	fixed    *[4]uint8
}

func newLinesConfig(options ...LinesBuilderOption) *linesConfig {
	cfg := &linesConfig{maxDepth: -1}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg
}

func (c *linesConfig) color(depth int) [4]uint8 {
	if c.fixed != nil {
		return *c.fixed
	}
	return DepthColor(depth, c.baseHue)
}

// LinesBuilderOption configures BoundingLines.
type LinesBuilderOption func(*linesConfig)

// WithBaseHue sets the hue of the root level in degrees.
//
// Parameters:
//   - hue: the hue
//
// Returns:
//   - LinesBuilderOption: a function that applies the hue option
func WithBaseHue(hue float64) LinesBuilderOption {
	return func(c *linesConfig) {
		c.baseHue = hue
	}
}

// WithMaxDepth stops the walk below depth. Negative values walk the whole subtree.
//
// Parameters:
//   - depth: the deepest level emitted, 0 for the root only
//
// Returns:
//   - LinesBuilderOption: a function that applies the depth option
func WithMaxDepth(depth int) LinesBuilderOption {
	return func(c *linesConfig) {
		c.maxDepth = depth
	}
}

// WithColor draws every level in one colour.
//
// Parameters:
//   - rgba: the colour
//
// Returns:
//   - LinesBuilderOption: a function that applies the colour option
func WithColor(rgba [4]uint8) LinesBuilderOption {
	return func(c *linesConfig) {
		c.fixed = &rgba
	}
}
