package scene

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/config"
	"github.com/Carmen-Shannon/oxy-scene/engine/drawable_object"
	"github.com/Carmen-Shannon/oxy-scene/engine/gpu"
	"github.com/Carmen-Shannon/oxy-scene/engine/light"
	"github.com/Carmen-Shannon/oxy-scene/engine/mesh"
	"github.com/Carmen-Shannon/oxy-scene/engine/node"
	"github.com/Carmen-Shannon/oxy-scene/engine/profiler"
	"github.com/Carmen-Shannon/oxy-scene/engine/render_queue"
)

// FrameStats summarizes one Frame call.
type FrameStats struct {
	Updated int
	Removed int
	Queues  render_queue.Stats
}

// Scene owns a node graph with its static, billboard and animation roots, the mesh registry,
// the set of dynamic objects and the render queues, and drives them once per frame.
// Mutations and Frame must run on the same goroutine.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Graph returns the node graph.
	Graph() *node.Graph

	// Context returns the frame context every graph mutation must be given.
	Context() *node.FrameContext

	// StaticRoot returns the root holding static and instanced content.
	StaticRoot() node.NodeID

	// BillboardRoot returns the root holding billboard content.
	BillboardRoot() node.NodeID

	// AnimationRoot returns the root holding animated content.
	AnimationRoot() node.NodeID

	// Roots returns every root in traversal order.
	Roots() []node.NodeID

	// Camera returns the main camera, the level-of-detail reference of every queue.
	Camera() camera.Camera

	// Sun returns the directional light culling the shadow queues, nil if none was set.
	Sun() light.DirectionalLight

	// Device returns the graphics device.
	Device() gpu.Device

	// AddNode creates a node and attaches it below parent.
	//
	// Parameters:
	//   - parent: the parent node, usually one of the roots
	//   - category: how queues submit the node
	//   - options: node options
	//
	// Returns:
	//   - node.NodeID: the new node
	//   - error: the attach error
	AddNode(parent node.NodeID, category node.Category, options ...node.NodeBuilderOption) (node.NodeID, error)

	// AddObject adds an object to a node.
	//
	// Parameters:
	//   - id: the node
	//   - obj: the object
	//
	// Returns:
	//   - error: node.ErrNodeNotFound
	AddObject(id node.NodeID, obj drawable_object.DrawableObject) error

	// RemoveObject removes an object from a node.
	//
	// Parameters:
	//   - id: the node
	//   - obj: the object
	//
	// Returns:
	//   - bool: false if the node or object was not found
	RemoveObject(id node.NodeID, obj drawable_object.DrawableObject) bool

	// RemoveNode schedules a node and its subtree for destruction at the start of the next frame.
	//
	// Parameters:
	//   - id: the node
	RemoveNode(id node.NodeID)

	// RegisterMesh adds a mesh to the registry the instance queues are seeded from.
	// Registering after the first frame makes every queue rebuild its instance buffers.
	//
	// Parameters:
	//   - m: the mesh
	RegisterMesh(m mesh.Mesh)

	// Meshes returns the registered meshes in registration order.
	Meshes() []mesh.Mesh

	// AddQueue appends a render queue culled against cam.
	//
	// Parameters:
	//   - q: the queue
	//   - cam: the culling camera, nil for the main camera
	AddQueue(q render_queue.RenderQueue, cam camera.Camera)

	// Queues returns the render queues in draw order.
	Queues() []render_queue.RenderQueue

	// DynamicObjects returns the objects currently flagged dynamic in the hierarchy.
	DynamicObjects() []drawable_object.DrawableObject

	// Frame drains pending updates and removals, refreshes the cameras, classifies every root
	// into every queue, prepares the queues in parallel and draws them in order.
	//
	// Returns:
	//   - FrameStats: the frame's counters
	//   - error: the first prepare error, or a draw error, either aborts the frame
	Frame() (FrameStats, error)

	// Release destroys the roots with their drawcalls and frees the queues' buffers.
	Release()
}

type queueEntry struct {
	queue render_queue.RenderQueue
	cam   camera.Camera
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu *sync.Mutex

	name   string
	cam    camera.Camera
	device gpu.Device
	logger *zap.Logger

	graph    *node.Graph
	ctx      *node.FrameContext
	roots    [3]node.NodeID
	dynamics *dynamicSet

	meshMu *sync.RWMutex
	meshes []mesh.Mesh

	cfg         *config.Config
	sun         light.DirectionalLight
	passCameras map[common.Pass]camera.Camera
	queues      []queueEntry
	framed      bool
	prof        *profiler.Profiler

	computePool    worker.DynamicWorkerPool
	computeWorkers int
}

var _ Scene = &scene{}

// NewScene creates a scene with its three roots. Queues come from WithQueue options; when none
// are given they are built from the configuration, and without configured queues a single
// color queue is created, followed by three shadow cascades when shadows are enabled.
//
// Parameters:
//   - name: the name of the scene
//   - cam: the main camera (must not be nil)
//   - device: the graphics device (must not be nil)
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
//   - error: an invalid queue configuration
func NewScene(name string, cam camera.Camera, device gpu.Device, options ...SceneBuilderOption) (Scene, error) {
	if cam == nil {
		panic("scene: NewScene requires a non-nil Camera")
	}
	if device == nil {
		panic("scene: NewScene requires a non-nil Device")
	}

	s := &scene{
		mu:             &sync.Mutex{},
		name:           name,
		cam:            cam,
		device:         device,
		logger:         zap.NewNop(),
		ctx:            node.NewFrameContext(),
		dynamics:       newDynamicSet(),
		meshMu:         &sync.RWMutex{},
		cfg:            config.Default(),
		passCameras:    make(map[common.Pass]camera.Camera),
		computeWorkers: max(runtime.NumCPU()-1, 1),
	}
	for _, option := range options {
		option(s)
	}
	for i := range s.queues {
		if s.queues[i].cam == nil {
			s.queues[i].cam = s.passCamera(s.queues[i].queue.Pass())
		}
	}

	s.graph = node.NewGraph(node.WithDynamicTracker(s.dynamics), node.WithLogger(s.logger))
	s.roots = [3]node.NodeID{
		s.graph.CreateNode(node.CategoryGeneric, node.AsRoot(), node.WithName("static root")),
		s.graph.CreateNode(node.CategoryGeneric, node.AsRoot(), node.WithName("billboard root")),
		s.graph.CreateNode(node.CategoryGeneric, node.AsRoot(), node.WithName("animation root")),
	}

	if len(s.queues) == 0 {
		if err := s.buildQueues(); err != nil {
			return nil, fmt.Errorf("scene %s: %w", name, err)
		}
	}
	if s.prof == nil && s.cfg.Profiler.Enabled {
		s.prof = profiler.NewProfiler(profiler.WithInterval(s.cfg.Profiler.Interval), profiler.WithLogger(s.logger))
	}

	// Queue size of 256 leaves headroom over any realistic queue count.
	s.computePool = worker.NewDynamicWorkerPool(s.computeWorkers, 256, 1*time.Second)

	s.logger.Info("scene created",
		zap.String("scene", name),
		zap.Int("queues", len(s.queues)),
		zap.Int("compute_workers", s.computeWorkers))
	return s, nil
}

// buildQueues creates the queues described by the configuration.
func (s *scene) buildQueues() error {
	rc := s.cfg.Render
	entries := s.cfg.Queues
	if len(entries) == 0 {
		entries = []config.QueueConfig{{Name: "color", Pass: common.PassColor.String()}}
		if sc := s.cfg.Shadow; sc.Enabled {
			cascades := []struct {
				pass  common.Pass
				level int
			}{
				{common.PassNearShadow, sc.NearLevel},
				{common.PassMidShadow, sc.MidLevel},
				{common.PassFarShadow, sc.FarLevel},
			}
			for _, c := range cascades {
				entries = append(entries, config.QueueConfig{
					Name:        c.pass.String(),
					Pass:        c.pass.String(),
					MidDistance: sc.MidDistance,
					LowDistance: sc.LowDistance,
					ShadowLevel: c.level,
				})
			}
		}
	}

	for _, qc := range entries {
		q, err := render_queue.FromConfig(qc, rc,
			render_queue.WithMeshRegistry(s),
			render_queue.WithLogger(s.logger),
		)
		if err != nil {
			return err
		}
		s.queues = append(s.queues, queueEntry{queue: q, cam: s.passCamera(q.Pass())})
	}
	return nil
}

// passCamera returns the culling camera for pass: an explicit pass camera, then the sun cascade,
// nil for the main camera.
func (s *scene) passCamera(pass common.Pass) camera.Camera {
	if cam := s.passCameras[pass]; cam != nil {
		return cam
	}
	if s.sun != nil {
		return s.sun.CascadeCamera(pass)
	}
	return nil
}

// focus is the point shadow cascades follow: the camera target, or its eye without a controller.
func (s *scene) focus() [3]float32 {
	if ctrl := s.cam.Controller(); ctrl != nil {
		return ctrl.Target()
	}
	return s.cam.Eye()
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Graph() *node.Graph {
	return s.graph
}

func (s *scene) Context() *node.FrameContext {
	return s.ctx
}

func (s *scene) StaticRoot() node.NodeID {
	return s.roots[0]
}

func (s *scene) BillboardRoot() node.NodeID {
	return s.roots[1]
}

func (s *scene) AnimationRoot() node.NodeID {
	return s.roots[2]
}

func (s *scene) Roots() []node.NodeID {
	return append([]node.NodeID(nil), s.roots[:]...)
}

func (s *scene) Camera() camera.Camera {
	return s.cam
}

func (s *scene) Sun() light.DirectionalLight {
	return s.sun
}

func (s *scene) Device() gpu.Device {
	return s.device
}

func (s *scene) AddNode(parent node.NodeID, category node.Category, options ...node.NodeBuilderOption) (node.NodeID, error) {
	id := s.graph.CreateNode(category, options...)
	if err := s.graph.AttachChild(s.ctx, parent, id); err != nil {
		_ = s.graph.Destroy(s.ctx, id)
		return node.Nil, fmt.Errorf("add node: %w", err)
	}
	return id, nil
}

func (s *scene) AddObject(id node.NodeID, obj drawable_object.DrawableObject) error {
	return s.graph.AddObject(s.ctx, id, obj)
}

func (s *scene) RemoveObject(id node.NodeID, obj drawable_object.DrawableObject) bool {
	_, ok := s.graph.RemoveObject(s.ctx, id, obj)
	return ok
}

func (s *scene) RemoveNode(id node.NodeID) {
	s.ctx.QueueRemove(id)
}

func (s *scene) RegisterMesh(m mesh.Mesh) {
	if m == nil {
		return
	}
	s.meshMu.Lock()
	if slices.Contains(s.meshes, m) {
		s.meshMu.Unlock()
		return
	}
	s.meshes = append(s.meshes, m)
	s.meshMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.framed {
		for _, e := range s.queues {
			e.queue.Invalidate()
		}
		s.logger.Debug("mesh registered after first frame, queues invalidated", zap.String("mesh", m.Name()))
	}
}

// Meshes is also the queues' MeshRegistry and runs inside Frame, so it only takes the mesh lock.
func (s *scene) Meshes() []mesh.Mesh {
	s.meshMu.RLock()
	defer s.meshMu.RUnlock()
	return slices.Clone(s.meshes)
}

func (s *scene) AddQueue(q render_queue.RenderQueue, cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cam == nil {
		cam = s.passCamera(q.Pass())
	}
	s.queues = append(s.queues, queueEntry{queue: q, cam: cam})
}

func (s *scene) Queues() []render_queue.RenderQueue {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]render_queue.RenderQueue, len(s.queues))
	for i, e := range s.queues {
		out[i] = e.queue
	}
	return out
}

func (s *scene) DynamicObjects() []drawable_object.DrawableObject {
	return s.dynamics.objects()
}

func (s *scene) Frame() (FrameStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats FrameStats
	stats.Updated, stats.Removed = s.graph.Drain(s.ctx)

	if s.sun != nil {
		s.sun.Follow(s.focus())
	}
	s.cam.Update()
	for _, e := range s.queues {
		if e.cam != nil && e.cam != s.cam {
			e.cam.Update()
		}
	}
	eye := s.cam.Eye()

	for _, e := range s.queues {
		vis := s.cam
		if e.cam != nil {
			vis = e.cam
		}
		e.queue.Flush()
		for _, root := range s.roots {
			e.queue.Classify(s.graph, root, vis, eye)
		}
	}
	s.framed = true

	// Phase 1: parallel CPU prep. A WaitGroup is the per-frame barrier;
	// the pool's workers persist across frames.
	var wg sync.WaitGroup
	var errMu sync.Mutex
	var prepErrs []error
	for i, e := range s.queues {
		wg.Add(1)
		q := e.queue
		s.computePool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				if err := q.Prepare(); err != nil {
					errMu.Lock()
					prepErrs = append(prepErrs, err)
					errMu.Unlock()
					return nil, err
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	if err := errors.Join(prepErrs...); err != nil {
		return stats, fmt.Errorf("frame %s: %w", s.name, err)
	}

	// Phase 2: serial GPU submission in queue order.
	for _, e := range s.queues {
		if err := e.queue.Draw(s.device, s.graph); err != nil {
			return stats, fmt.Errorf("frame %s: draw %s: %w", s.name, e.queue.Name(), err)
		}
		stats.Queues = stats.Queues.Add(e.queue.Stats())
	}
	s.device.EndFrame()

	if s.prof != nil {
		s.prof.Tick(profiler.FrameStats{
			Drawcalls: stats.Queues.Drawcalls,
			Instances: stats.Queues.LiveInstances,
			Objects:   stats.Queues.BatchedObjects + stats.Queues.InstancedObjects,
		})
	}
	return stats, nil
}

func (s *scene) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.queues {
		e.queue.Release()
	}
	for _, root := range s.roots {
		if s.graph.Live(root) {
			_ = s.graph.Destroy(s.ctx, root)
		}
	}
	s.logger.Info("scene released", zap.String("scene", s.name))
}
