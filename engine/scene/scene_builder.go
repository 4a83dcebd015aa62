package scene

import (
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/config"
	"github.com/Carmen-Shannon/oxy-scene/engine/light"
	"github.com/Carmen-Shannon/oxy-scene/engine/profiler"
	"github.com/Carmen-Shannon/oxy-scene/engine/render_queue"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithConfig sets the render, shadow, queue and profiler settings. The compute worker count is
// taken from the render section when it is positive.
//
// Parameters:
//   - cfg: the configuration, nil keeps the defaults
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithConfig(cfg *config.Config) SceneBuilderOption {
	return func(s *scene) {
		if cfg == nil {
			return
		}
		s.cfg = cfg
		if cfg.Render.ComputeWorkers > 0 {
			s.computeWorkers = cfg.Render.ComputeWorkers
		}
	}
}

// WithComputeWorkers sets the number of worker goroutines used during the parallel
// queue prepare phase of Frame. Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of compute workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithComputeWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.computeWorkers = n
	}
}

// WithLogger sets the logger shared by the graph, the configured queues and the profiler.
//
// Parameters:
//   - l: the logger, nil keeps the no-op logger
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLogger(l *zap.Logger) SceneBuilderOption {
	return func(s *scene) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithQueue adds a prebuilt queue. Supplying any queue skips building queues from the configuration.
//
// Parameters:
//   - q: the queue
//   - cam: the culling camera, nil for the main camera
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithQueue(q render_queue.RenderQueue, cam camera.Camera) SceneBuilderOption {
	return func(s *scene) {
		s.queues = append(s.queues, queueEntry{queue: q, cam: cam})
	}
}

// WithPassCamera sets the culling camera of every configured queue serving pass,
// typically an orthographic light camera for a shadow cascade.
//
// Parameters:
//   - pass: the render pass
//   - cam: the culling camera
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithPassCamera(pass common.Pass, cam camera.Camera) SceneBuilderOption {
	return func(s *scene) {
		s.passCameras[pass] = cam
	}
}

// WithSunLight sets the directional light whose cascade cameras cull the shadow queues.
// The cascades follow the main camera target every frame. Cameras given with WithPassCamera
// take precedence.
//
// Parameters:
//   - sun: the light
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithSunLight(sun light.DirectionalLight) SceneBuilderOption {
	return func(s *scene) {
		s.sun = sun
	}
}

// WithProfiler sets the profiler ticked at the end of every frame, overriding the configured one.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) SceneBuilderOption {
	return func(s *scene) {
		s.prof = p
	}
}
