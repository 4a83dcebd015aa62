package scene

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/engine/drawable_object"
)

// dynamicSet tracks the dynamic objects of the hierarchy in insertion order.
type dynamicSet struct {
	mu    *sync.Mutex
	index map[drawable_object.DrawableObject]int
	list  []drawable_object.DrawableObject
}

func newDynamicSet() *dynamicSet {
	return &dynamicSet{
		mu:    &sync.Mutex{},
		index: make(map[drawable_object.DrawableObject]int),
	}
}

func (d *dynamicSet) AddDynamicObject(o drawable_object.DrawableObject) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.index[o]; ok {
		return
	}
	d.index[o] = len(d.list)
	d.list = append(d.list, o)
}

// RemoveDynamicObject swap-removes o.
func (d *dynamicSet) RemoveDynamicObject(o drawable_object.DrawableObject) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.index[o]
	if !ok {
		return
	}
	last := len(d.list) - 1
	if i != last {
		d.list[i] = d.list[last]
		d.index[d.list[i]] = i
	}
	d.list[last] = nil
	d.list = d.list[:last]
	delete(d.index, o)
}

func (d *dynamicSet) objects() []drawable_object.DrawableObject {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]drawable_object.DrawableObject(nil), d.list...)
}
