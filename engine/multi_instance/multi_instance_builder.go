package multi_instance

import "go.uber.org/zap"

// ConsolidatorBuilderOption is a functional option for configuring a Consolidator.
type ConsolidatorBuilderOption func(*consolidator)

// WithPassFilter restricts which category lists Init builds.
// Sources that only match filtered categories keep their geometry but get no draw record.
//
// Parameters:
//   - f: a mask of PassNormal, PassSingle, PassBillboard and PassAnimated
//
// Returns:
//   - ConsolidatorBuilderOption: a function that applies the filter option
func WithPassFilter(f PassFilter) ConsolidatorBuilderOption {
	return func(c *consolidator) {
		c.filter = f
	}
}

// WithLogger sets the logger.
//
// Parameters:
//   - l: the logger, nil keeps the no-op logger
//
// Returns:
//   - ConsolidatorBuilderOption: a function that applies the logger option
func WithLogger(l *zap.Logger) ConsolidatorBuilderOption {
	return func(c *consolidator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithLabel sets the label used in logs and buffer names.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - ConsolidatorBuilderOption: a function that applies the label option
func WithLabel(label string) ConsolidatorBuilderOption {
	return func(c *consolidator) {
		c.label = label
	}
}
