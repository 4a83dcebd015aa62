package node

import (
	"slices"
)

// FrameContext holds the nodes scheduled for the end-of-frame update and removal passes.
// A scene owns one context and passes it to every mutating Graph operation.
type FrameContext struct {
	toUpdate []NodeID
	toRemove []NodeID
}

// NewFrameContext creates an empty FrameContext.
func NewFrameContext() *FrameContext {
	return &FrameContext{
		toUpdate: make([]NodeID, 0, 64),
		toRemove: make([]NodeID, 0, 8),
	}
}

// PendingUpdates returns a copy of the nodes waiting for the update pass.
func (c *FrameContext) PendingUpdates() []NodeID {
	return slices.Clone(c.toUpdate)
}

// PendingRemovals returns a copy of the nodes waiting for the removal pass.
func (c *FrameContext) PendingRemovals() []NodeID {
	return slices.Clone(c.toRemove)
}

// QueueRemove schedules a node to be detached and destroyed at the end of the frame.
// Queuing the same node twice has no additional effect.
//
// Parameters:
//   - id: the node to remove
func (c *FrameContext) QueueRemove(id NodeID) {
	if id == Nil || slices.Contains(c.toRemove, id) {
		return
	}
	c.toRemove = append(c.toRemove, id)
}

// forget drops id from both queues.
func (c *FrameContext) forget(id NodeID) {
	c.toUpdate = slices.DeleteFunc(c.toUpdate, func(v NodeID) bool { return v == id })
	c.toRemove = slices.DeleteFunc(c.toRemove, func(v NodeID) bool { return v == id })
}
