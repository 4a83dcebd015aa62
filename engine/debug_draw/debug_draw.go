// Package debug_draw builds wireframe line geometry for node bounding volumes.
package debug_draw

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/gpu"
	"github.com/Carmen-Shannon/oxy-scene/engine/node"
)

const (
	// EdgesPerVolume is the number of line segments emitted for one box.
	EdgesPerVolume = 12
	// VerticesPerVolume is the number of line-list vertices emitted for one box.
	VerticesPerVolume = EdgesPerVolume * 2

	positionComponents = 3
	colorComponents    = 4
)

// Lines is a non-indexed line list with one RGBA colour per vertex.
type Lines struct {
	Positions []float32
	Colors    []uint8
}

// VertexCount returns the number of line-list vertices.
func (l *Lines) VertexCount() int {
	return len(l.Positions) / positionComponents
}

// Channel exposes the position and colour streams to a gpu.Buffer upload.
func (l *Lines) Channel(slot int) (int, []byte, bool) {
	switch slot {
	case gpu.SlotPosition:
		return l.VertexCount(), common.SliceToBytes(l.Positions), true
	case gpu.SlotColor:
		return l.VertexCount(), common.SliceToBytes(l.Colors), true
	}
	return 0, nil, false
}

// ChannelSpecs returns the buffer layout for up to capacity vertices.
func ChannelSpecs(capacity int) []gpu.ChannelSpec {
	return []gpu.ChannelSpec{
		{Slot: gpu.SlotPosition, Name: "position", Format: gpu.FormatFloat32, Components: positionComponents, Capacity: capacity},
		{Slot: gpu.SlotColor, Name: "color", Format: gpu.FormatUint8, Components: colorComponents, Capacity: capacity},
	}
}

// BoundingLines walks the subtree below root and emits the twelve edges of every non-empty
// node bounding volume, coloured by tree depth.
//
// Parameters:
//   - g: the scene graph
//   - root: the subtree root
//   - options: colour options
//
// Returns:
//   - *Lines: the line list
func BoundingLines(g *node.Graph, root node.NodeID, options ...LinesBuilderOption) *Lines {
	cfg := newLinesConfig(options...)
	lines := &Lines{}
	appendSubtree(lines, g, root, 0, cfg)
	return lines
}

func appendSubtree(lines *Lines, g *node.Graph, id node.NodeID, depth int, cfg *linesConfig) {
	if !g.Live(id) || (cfg.maxDepth >= 0 && depth > cfg.maxDepth) {
		return
	}
	if bv := g.Bounds(id); !bv.Empty() {
		AppendBox(lines, bv, cfg.color(depth))
	}
	for _, c := range g.Children(id) {
		appendSubtree(lines, g, c, depth+1, cfg)
	}
}

// AppendBox appends the twelve edges of one volume.
//
// Parameters:
//   - lines: the destination
//   - bv: the volume
//   - rgba: the edge colour
func AppendBox(lines *Lines, bv common.BoundingVolume, rgba [4]uint8) {
	corners := bv.Corners()
	for axis := range 3 {
		bit := 1 << axis
		for i := range 8 {
			if i&bit != 0 {
				continue
			}
			a, b := corners[i], corners[i|bit]
			lines.Positions = append(lines.Positions, a[0], a[1], a[2], b[0], b[1], b[2])
			lines.Colors = append(lines.Colors, rgba[0], rgba[1], rgba[2], rgba[3], rgba[0], rgba[1], rgba[2], rgba[3])
		}
	}
}

// DepthColor returns the colour of a tree depth: the hue rotates by the golden angle per level.
//
// Parameters:
//   - depth: the tree depth, 0 for the root
//   - baseHue: hue of depth 0 in degrees
//
// Returns:
//   - [4]uint8: an opaque RGBA colour
func DepthColor(depth int, baseHue float64) [4]uint8 {
	hue := math.Mod(baseHue+float64(depth)*137.508, 360)
	r, g, b := colorful.Hsv(hue, 0.75, 1).RGB255()
	return [4]uint8{r, g, b, 255}
}

// Drawer uploads line lists into a reusable buffer and submits them as line primitives.
type Drawer struct {
	device   gpu.Device
	buffer   gpu.Buffer
	capacity int
	label    string
}

// NewDrawer creates a Drawer. The buffer is allocated on the first Draw.
//
// Parameters:
//   - device: the graphics device
//
// Returns:
//   - *Drawer: the drawer
func NewDrawer(device gpu.Device) *Drawer {
	if device == nil {
		panic("debug_draw: NewDrawer requires a device")
	}
	return &Drawer{device: device, label: "debug lines"}
}

// Draw uploads lines and submits them, growing the buffer to the next power of two when needed.
//
// Parameters:
//   - pass: the render pass
//   - lines: the line list
//
// Returns:
//   - error: an allocation, upload or draw error
func (d *Drawer) Draw(pass common.Pass, lines *Lines) error {
	n := lines.VertexCount()
	if n == 0 {
		return nil
	}
	if n > d.capacity {
		if d.buffer != nil {
			d.buffer.Release()
			d.buffer = nil
		}
		capacity := VerticesPerVolume
		for capacity < n {
			capacity *= 2
		}
		buf, err := d.device.CreateBuffer(gpu.BufferDescriptor{
			Label:    d.label,
			Channels: ChannelSpecs(capacity),
			Usage:    gpu.UsageStream,
		})
		if err != nil {
			d.capacity = 0
			return fmt.Errorf("grow %s: %w", d.label, err)
		}
		d.buffer, d.capacity = buf, capacity
	}

	for _, slot := range []int{gpu.SlotPosition, gpu.SlotColor} {
		count, data, _ := lines.Channel(slot)
		if err := d.buffer.UpdateChannel(slot, count, data); err != nil {
			return fmt.Errorf("upload %s: %w", d.label, err)
		}
	}
	return d.device.Draw(gpu.DrawCommand{
		Label:         d.label,
		Buffer:        d.buffer,
		Pass:          pass,
		Primitive:     gpu.PrimitiveLines,
		Count:         n,
		InstanceCount: 1,
	})
}

// Release frees the buffer.
func (d *Drawer) Release() {
	if d.buffer != nil {
		d.buffer.Release()
		d.buffer = nil
		d.capacity = 0
	}
}
