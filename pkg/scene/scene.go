// Package scene defines the sink that loaded volumes are handed to for
// display, and an in-memory implementation of it.
package scene

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// FrameLabelsAttribute is the node attribute holding the frame labels of a
// multi-frame volume.
const FrameLabelsAttribute = "MultiVolume.FrameLabels"

var (
	ErrUnknownNode    = errors.New("unknown node")
	ErrAlreadyInScene = errors.New("node already in scene")
)

// NodeHandle identifies a node created by a Sink.
type NodeHandle string

// Shape describes a voxel buffer handed to a Sink. Components is the number
// of values per voxel, i.e. the frame count of a multi-frame volume.
type Shape struct {
	Columns    int
	Rows       int
	Slices     int
	Components int
}

// Len returns the number of samples a buffer of this shape holds.
func (s Shape) Len() int {
	return s.Columns * s.Rows * s.Slices * s.Components
}

// Sink receives volumes for display.
type Sink interface {
	CreateVolumeNode(buf []float32, shape Shape, labels []string) (NodeHandle, error)
	AddToScene(h NodeHandle) error
}

// Namer is implemented by sinks that can give nodes display names.
type Namer interface {
	SetName(h NodeHandle, name string) error
}

// Node is a volume held by Memory.
type Node struct {
	Handle     NodeHandle
	Name       string
	Data       []float32
	Shape      Shape
	Labels     []string
	Attributes map[string]string
	InScene    bool
}

// Memory is a Sink that keeps nodes in memory. It is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	next  int
	nodes map[NodeHandle]*Node
	order []NodeHandle
}

// NewMemory returns an empty in-memory scene.
func NewMemory() *Memory {
	return &Memory{nodes: make(map[NodeHandle]*Node)}
}

// CreateVolumeNode registers buf as a new node. For multi-component shapes
// labels must name every component; single-component volumes take no labels.
func (m *Memory) CreateVolumeNode(buf []float32, shape Shape, labels []string) (NodeHandle, error) {
	if shape.Columns <= 0 || shape.Rows <= 0 || shape.Slices <= 0 || shape.Components <= 0 {
		return "", fmt.Errorf("invalid shape %+v", shape)
	}
	if len(buf) != shape.Len() {
		return "", fmt.Errorf("buffer has %d samples, shape %+v needs %d", len(buf), shape, shape.Len())
	}
	if len(labels) != 0 && len(labels) != shape.Components {
		return "", fmt.Errorf("%d labels for %d components", len(labels), shape.Components)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	h := NodeHandle(fmt.Sprintf("vtkMRMLVolumeNode%d", m.next))
	if shape.Components > 1 {
		h = NodeHandle(fmt.Sprintf("vtkMRMLMultiVolumeNode%d", m.next))
	}
	n := &Node{
		Handle:     h,
		Name:       string(h),
		Data:       buf,
		Shape:      shape,
		Labels:     append([]string(nil), labels...),
		Attributes: make(map[string]string),
	}
	if len(labels) > 0 {
		n.Attributes[FrameLabelsAttribute] = FormatLabels(labels)
	}
	m.nodes[h] = n
	return h, nil
}

// AddToScene marks a created node as part of the scene.
func (m *Memory) AddToScene(h NodeHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[h]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, h)
	}
	if n.InScene {
		return fmt.Errorf("%w: %s", ErrAlreadyInScene, h)
	}
	n.InScene = true
	m.order = append(m.order, h)
	return nil
}

// SetName renames a node.
func (m *Memory) SetName(h NodeHandle, name string) error {
	return m.update(h, func(n *Node) { n.Name = name })
}

// SetAttribute sets a string attribute on a node.
func (m *Memory) SetAttribute(h NodeHandle, key, value string) error {
	return m.update(h, func(n *Node) { n.Attributes[key] = value })
}

func (m *Memory) update(h NodeHandle, fn func(n *Node)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[h]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, h)
	}
	fn(n)
	return nil
}

// Node returns a copy of the node's metadata. Data is shared.
func (m *Memory) Node(h NodeHandle) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.nodes[h]
	if !ok {
		return Node{}, false
	}
	return cloneNode(n), true
}

// Nodes returns the nodes added to the scene, in the order they were added.
func (m *Memory) Nodes() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Node, 0, len(m.order))
	for _, h := range m.order {
		out = append(out, cloneNode(m.nodes[h]))
	}
	return out
}

// FindByName returns the scene node with the given name.
func (m *Memory) FindByName(name string) (Node, bool) {
	for _, n := range m.Nodes() {
		if n.Name == name {
			return n, true
		}
	}
	return Node{}, false
}

func cloneNode(n *Node) Node {
	c := *n
	c.Labels = append([]string(nil), n.Labels...)
	c.Attributes = make(map[string]string, len(n.Attributes))
	for k, v := range n.Attributes {
		c.Attributes[k] = v
	}
	return c
}

// AttributeKeys returns the node's attribute names in sorted order.
func (n Node) AttributeKeys() []string {
	keys := make([]string, 0, len(n.Attributes))
	for k := range n.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatLabels renders labels as a quoted, comma separated list:
// 'week0-1', 'quarter1'.
func FormatLabels(labels []string) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = "'" + l + "'"
	}
	return strings.Join(quoted, ", ")
}
