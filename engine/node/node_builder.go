package node

import (
	"go.uber.org/zap"
)

// GraphBuilderOption is a functional option for configuring a Graph.
type GraphBuilderOption func(*Graph)

// WithCollisionWorld sets the physics collaborator notified when objects leave the graph.
//
// Parameters:
//   - w: the collision world
//
// Returns:
//   - GraphBuilderOption: option function to apply
func WithCollisionWorld(w CollisionWorld) GraphBuilderOption {
	return func(g *Graph) {
		g.collisions = w
	}
}

// WithDynamicTracker sets the collaborator that tracks dynamically batched objects.
//
// Parameters:
//   - t: the tracker
//
// Returns:
//   - GraphBuilderOption: option function to apply
func WithDynamicTracker(t DynamicTracker) GraphBuilderOption {
	return func(g *Graph) {
		g.dynamics = t
	}
}

// WithLogger sets the graph's logger. Defaults to a no-op logger.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - GraphBuilderOption: option function to apply
func WithLogger(l *zap.Logger) GraphBuilderOption {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// NodeBuilderOption is a functional option for configuring a node in CreateNode.
type NodeBuilderOption func(*node)

// WithName sets the node's debug name.
func WithName(name string) NodeBuilderOption {
	return func(n *node) {
		n.name = name
	}
}

// WithPosition sets the node's translation relative to its parent.
//
// Parameters:
//   - x, y, z: translation components
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithPosition(x, y, z float32) NodeBuilderOption {
	return func(n *node) {
		n.position = [3]float32{x, y, z}
	}
}

// WithShadowLevel sets the level compared against a shadow queue's minimum. Defaults to DefaultLevel.
func WithShadowLevel(level int) NodeBuilderOption {
	return func(n *node) {
		n.shadowLevel = level
	}
}

// WithDetailLevel sets the frustum test precision. Defaults to DefaultLevel (full box test).
func WithDetailLevel(level int) NodeBuilderOption {
	return func(n *node) {
		n.detailLevel = level
	}
}

// WithDynamicBatch makes a static node merge its objects into the shared dynamic batch.
func WithDynamicBatch(enabled bool) NodeBuilderOption {
	return func(n *node) {
		n.dynamicBatch = enabled
	}
}

// AsRoot marks the node as a scene root. Mesh usage is counted only for nodes reachable from a root.
func AsRoot() NodeBuilderOption {
	return func(n *node) {
		n.root = true
	}
}
