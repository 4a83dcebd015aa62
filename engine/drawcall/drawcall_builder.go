package drawcall

import "go.uber.org/zap"

type drawcallConfig struct {
	double bool
	policy *ChannelPolicy
	label  string
	logger *zap.Logger
}

func newDrawcallConfig(options ...DrawcallBuilderOption) *drawcallConfig {
	cfg := &drawcallConfig{
		double: true,
		logger: zap.NewNop(),
	}
	for _, opt := range options {
		opt(cfg)
	}
	if cfg.policy == nil {
		cfg.policy = DefaultChannelPolicy()
	}
	return cfg
}

// DrawcallBuilderOption is a functional option for configuring drawcalls.
type DrawcallBuilderOption func(*drawcallConfig)

// WithDoubleBuffering turns double buffering on or off. It is on by default.
//
// Parameters:
//   - enabled: whether to allocate a second buffer
//
// Returns:
//   - DrawcallBuilderOption: a function that applies the double buffering option
func WithDoubleBuffering(enabled bool) DrawcallBuilderOption {
	return func(c *drawcallConfig) {
		c.double = enabled
	}
}

// WithChannelPolicy sets the per-pass channel policy.
//
// Parameters:
//   - p: the policy, shared by every drawcall built with it
//
// Returns:
//   - DrawcallBuilderOption: a function that applies the policy option
func WithChannelPolicy(p *ChannelPolicy) DrawcallBuilderOption {
	return func(c *drawcallConfig) {
		c.policy = p
	}
}

// WithLabel sets the label of the created buffers and draw commands.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - DrawcallBuilderOption: a function that applies the label option
func WithLabel(label string) DrawcallBuilderOption {
	return func(c *drawcallConfig) {
		c.label = label
	}
}

// WithLogger sets the logger.
//
// Parameters:
//   - l: the logger, nil keeps the no-op logger
//
// Returns:
//   - DrawcallBuilderOption: a function that applies the logger option
func WithLogger(l *zap.Logger) DrawcallBuilderOption {
	return func(c *drawcallConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
