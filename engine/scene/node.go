package scene

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
)

// Node is a tree element. It owns its children and its components.
type Node struct {
	Name string

	id         uuid.UUID
	parent     *Node
	children   []*Node
	transform  *Transform
	components []Component
	isRoot     bool
	traversals int
}

func NewNode(name string) *Node {
	return &Node{
		Name: name,
		id:   uuid.New(),
	}
}

func (n *Node) ID() uuid.UUID { return n.id }

func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the child list in insertion order.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

func (n *Node) isLocked() bool {
	for p := n; p != nil; p = p.parent {
		if p.traversals > 0 {
			return true
		}
	}
	return false
}

func (n *Node) isAncestorOf(other *Node) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// AddChild attaches child to n. Adding a child n already holds does nothing.
// A child held by another parent is rejected and neither tree changes.
func (n *Node) AddChild(child *Node) error {
	if child == nil {
		return fmt.Errorf("add nil child to '%s'", n.Name)
	}
	if child.parent == n {
		return nil
	}
	if child.isRoot {
		return fmt.Errorf("add '%s' to '%s': %w", child.Name, n.Name, core.ErrNodeIsRoot)
	}
	if child.parent != nil {
		return fmt.Errorf("add '%s' to '%s', parent is '%s': %w", child.Name, n.Name, child.parent.Name, core.ErrNodeAlreadyParented)
	}
	if child.isAncestorOf(n) {
		return fmt.Errorf("add '%s' to '%s': %w", child.Name, n.Name, core.ErrNodeCycle)
	}
	if n.isLocked() || child.traversals > 0 {
		return fmt.Errorf("add '%s' to '%s': %w", child.Name, n.Name, core.ErrTreeLocked)
	}
	child.parent = n
	n.children = append(n.children, child)
	return nil
}

// RemoveChild detaches child, handing ownership back to the caller.
func (n *Node) RemoveChild(child *Node) error {
	if child == nil || child.parent != n {
		return fmt.Errorf("remove child from '%s': %w", n.Name, core.ErrNodeNotChild)
	}
	if n.isLocked() || child.traversals > 0 {
		return fmt.Errorf("remove '%s' from '%s': %w", child.Name, n.Name, core.ErrTreeLocked)
	}
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			break
		}
	}
	child.parent = nil
	return nil
}

// AddComponent attaches c to n. A transform becomes the node's only
// transform.
func (n *Node) AddComponent(c Component) error {
	if c == nil {
		return fmt.Errorf("add nil component to '%s'", n.Name)
	}
	if owner := c.Node(); owner != nil {
		if owner == n {
			return nil
		}
		return fmt.Errorf("add %s to '%s', owned by '%s': %w", c.Kind(), n.Name, owner.Name, core.ErrComponentOwned)
	}
	if t, ok := c.(*Transform); ok {
		if n.transform != nil {
			return fmt.Errorf("add transform to '%s': %w", n.Name, core.ErrTransformExists)
		}
		n.transform = t
	}
	c.setNode(n)
	n.components = append(n.components, c)
	return nil
}

// Components returns a copy of the component list in insertion order.
func (n *Node) Components() []Component {
	return append([]Component(nil), n.components...)
}

// Transform returns the node's transform. A node without one is a usage
// error, no default is made up.
func (n *Node) Transform() (*Transform, error) {
	if n.transform == nil {
		return nil, fmt.Errorf("node '%s': %w", n.Name, core.ErrNoTransform)
	}
	return n.transform, nil
}

func (n *Node) HasTransform() bool { return n.transform != nil }

// GetComponent returns the first component of kind on n itself.
func (n *Node) GetComponent(kind ComponentKind) (Component, bool) {
	for _, c := range n.components {
		if c.Kind() == kind {
			return c, true
		}
	}
	return nil, false
}

// GetComponentInChildren searches n, then its descendants in pre-order.
func (n *Node) GetComponentInChildren(kind ComponentKind) (Component, bool) {
	if c, ok := n.GetComponent(kind); ok {
		return c, true
	}
	for _, child := range n.children {
		if c, ok := child.GetComponentInChildren(kind); ok {
			return c, true
		}
	}
	return nil, false
}

// ComponentOf returns the first component of type T on n.
func ComponentOf[T Component](n *Node) (T, bool) {
	for _, c := range n.components {
		if t, ok := c.(T); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

// ComponentInChildren returns the first component of type T on n or its
// descendants, in pre-order.
func ComponentInChildren[T Component](n *Node) (T, bool) {
	if t, ok := ComponentOf[T](n); ok {
		return t, true
	}
	for _, child := range n.children {
		if t, ok := ComponentInChildren[T](child); ok {
			return t, true
		}
	}
	var zero T
	return zero, false
}

// TraversePreOrder visits every node of the subtree once, each node before
// its children. The tree cannot be mutated from fn.
func (n *Node) TraversePreOrder(fn func(*Node)) {
	n.traversals++
	defer func() { n.traversals-- }()
	n.preOrder(fn)
}

func (n *Node) preOrder(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.preOrder(fn)
	}
}

// TraversePostOrder visits every node of the subtree once, each node after
// its children. The tree cannot be mutated from fn.
func (n *Node) TraversePostOrder(fn func(*Node)) {
	n.traversals++
	defer func() { n.traversals-- }()
	n.postOrder(fn)
}

func (n *Node) postOrder(fn func(*Node)) {
	for _, c := range n.children {
		c.postOrder(fn)
	}
	fn(n)
}

// Update runs every component's Update, pre-order.
func (n *Node) Update(deltaTime float64) {
	n.TraversePreOrder(func(node *Node) {
		for _, c := range node.components {
			c.Update(deltaTime)
		}
	})
}

// LocalMatrix is the transform matrix, or identity without a transform.
func (n *Node) LocalMatrix() math.Mat4 {
	if n.transform == nil {
		return math.NewMat4Identity()
	}
	return n.transform.Matrix()
}

// WorldMatrix composes the local matrix with every ancestor's, walking up to
// the root. Nothing is cached.
func (n *Node) WorldMatrix() math.Mat4 {
	world := n.LocalMatrix()
	for p := n.parent; p != nil; p = p.parent {
		world = world.Mul(p.LocalMatrix())
	}
	return world
}

// Find returns the first node named name in the subtree, pre-order.
func (n *Node) Find(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, c := range n.children {
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// Destroy detaches n from its parent and destroys its subtree and
// components, children first.
func (n *Node) Destroy() error {
	if n.isLocked() {
		return fmt.Errorf("destroy '%s': %w", n.Name, core.ErrTreeLocked)
	}
	if n.parent != nil {
		if err := n.parent.RemoveChild(n); err != nil {
			return err
		}
	}
	n.destroySubtree()
	return nil
}

func (n *Node) destroySubtree() {
	for _, c := range n.children {
		c.destroySubtree()
		c.parent = nil
	}
	n.children = nil
	for _, c := range n.components {
		c.destroy()
	}
	n.components = nil
	n.transform = nil
}
