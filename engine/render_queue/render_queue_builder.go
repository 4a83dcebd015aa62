package render_queue

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/batch"
	"github.com/Carmen-Shannon/oxy-scene/engine/config"
	"github.com/Carmen-Shannon/oxy-scene/engine/drawcall"
	"github.com/Carmen-Shannon/oxy-scene/engine/multi_instance"
)

// RenderQueueBuilderOption is a functional option for configuring a RenderQueue.
type RenderQueueBuilderOption func(*renderQueue)

// WithName sets the queue label used for drawcalls and logs. It defaults to the pass name.
//
// Parameters:
//   - name: the label
//
// Returns:
//   - RenderQueueBuilderOption: a function that applies the name option
func WithName(name string) RenderQueueBuilderOption {
	return func(q *renderQueue) {
		q.name = name
	}
}

// WithShadowLevel sets the minimum node shadow level a shadow pass accepts.
//
// Parameters:
//   - level: the minimum level
//
// Returns:
//   - RenderQueueBuilderOption: a function that applies the shadow level option
func WithShadowLevel(level int) RenderQueueBuilderOption {
	return func(q *renderQueue) {
		q.shadowLevel = level
	}
}

// WithDoubleBuffering turns double buffering of the queue's drawcalls on or off.
//
// Parameters:
//   - enabled: whether drawcalls allocate a second buffer
//
// Returns:
//   - RenderQueueBuilderOption: a function that applies the double buffering option
func WithDoubleBuffering(enabled bool) RenderQueueBuilderOption {
	return func(q *renderQueue) {
		q.double = enabled
	}
}

// WithChannelPolicy overrides which channels each pass refreshes.
//
// Parameters:
//   - p: the policy
//
// Returns:
//   - RenderQueueBuilderOption: a function that applies the policy option
func WithChannelPolicy(p *drawcall.ChannelPolicy) RenderQueueBuilderOption {
	return func(q *renderQueue) {
		q.policy = p
	}
}

// WithBatchLimits sets the capacity of the dynamic batch.
//
// Parameters:
//   - l: the batch limits
//
// Returns:
//   - RenderQueueBuilderOption: a function that applies the batch limits option
func WithBatchLimits(l batch.Limits) RenderQueueBuilderOption {
	return func(q *renderQueue) {
		q.batchLimits = l
	}
}

// WithPassFilter restricts the category lists the consolidator builds.
//
// Parameters:
//   - f: the filter
//
// Returns:
//   - RenderQueueBuilderOption: a function that applies the filter option
func WithPassFilter(f multi_instance.PassFilter) RenderQueueBuilderOption {
	return func(q *renderQueue) {
		q.filter = f
	}
}

// WithMeshRegistry sets the mesh list the accumulators are seeded from.
//
// Parameters:
//   - r: the registry
//
// Returns:
//   - RenderQueueBuilderOption: a function that applies the registry option
func WithMeshRegistry(r MeshRegistry) RenderQueueBuilderOption {
	return func(q *renderQueue) {
		q.registry = r
	}
}

// WithLogger sets the logger.
//
// Parameters:
//   - l: the logger, nil keeps the no-op logger
//
// Returns:
//   - RenderQueueBuilderOption: a function that applies the logger option
func WithLogger(l *zap.Logger) RenderQueueBuilderOption {
	return func(q *renderQueue) {
		if l != nil {
			q.logger = l
		}
	}
}

var categoryFilters = map[string]multi_instance.PassFilter{
	"normal":    multi_instance.PassNormal,
	"single":    multi_instance.PassSingle,
	"billboard": multi_instance.PassBillboard,
	"animated":  multi_instance.PassAnimated,
}

// ParsePassFilter maps category names onto a pass filter. An empty list allows every category.
//
// Parameters:
//   - names: normal, single, billboard or animated
//
// Returns:
//   - multi_instance.PassFilter: the filter
//   - error: an unknown category name
func ParsePassFilter(names []string) (multi_instance.PassFilter, error) {
	if len(names) == 0 {
		return multi_instance.PassAll, nil
	}
	var f multi_instance.PassFilter
	for _, name := range names {
		bit, ok := categoryFilters[name]
		if !ok {
			return 0, fmt.Errorf("unknown instance category %q", name)
		}
		f |= bit
	}
	return f, nil
}

// FromConfig builds a queue from one configured queue entry. Zero LOD distances fall back to
// the render section, and the batch limits and double buffering come from it.
//
// Parameters:
//   - qc: the queue entry
//   - rc: the render section
//   - options: extra options applied after the configured ones
//
// Returns:
//   - RenderQueue: the queue
//   - error: an unknown pass or category name
func FromConfig(qc config.QueueConfig, rc config.RenderConfig, options ...RenderQueueBuilderOption) (RenderQueue, error) {
	pass, ok := common.ParsePass(common.Coalesce(qc.Pass, common.PassColor.String()))
	if !ok {
		return nil, fmt.Errorf("queue %s: unknown pass %q", qc.Name, qc.Pass)
	}
	filter, err := ParsePassFilter(qc.Categories)
	if err != nil {
		return nil, fmt.Errorf("queue %s: %w", qc.Name, err)
	}

	mid, low := qc.MidDistance, qc.LowDistance
	if mid == 0 && low == 0 {
		mid, low = rc.MidDistance, rc.LowDistance
	}
	limits := batch.DefaultLimits()
	if rc.BatchVertices > 0 {
		limits.Vertices = rc.BatchVertices
	}
	if rc.BatchIndices > 0 {
		limits.Indices = rc.BatchIndices
	}
	if rc.BatchObjects > 0 {
		limits.Objects = rc.BatchObjects
	}

	opts := []RenderQueueBuilderOption{
		WithName(qc.Name),
		WithShadowLevel(qc.ShadowLevel),
		WithPassFilter(filter),
		WithBatchLimits(limits),
		WithDoubleBuffering(rc.DoubleBuffering),
	}
	return NewRenderQueue(pass, mid, low, append(opts, options...)...), nil
}
