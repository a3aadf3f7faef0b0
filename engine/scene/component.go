// Package scene holds the node tree the renderer draws: nodes own their
// children and components, parents are non-owning back references.
package scene

import "fmt"

// ComponentKind tags the closed set of component variants.
type ComponentKind uint8

const (
	KindTransform ComponentKind = iota
	KindMesh
	KindCamera
	KindDirectionalLight
	KindSpotLight
	KindFirstPersonController
)

func (k ComponentKind) String() string {
	switch k {
	case KindTransform:
		return "transform"
	case KindMesh:
		return "mesh"
	case KindCamera:
		return "camera"
	case KindDirectionalLight:
		return "directional_light"
	case KindSpotLight:
		return "spot_light"
	case KindFirstPersonController:
		return "first_person_controller"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Component is a capability attached to exactly one node. The unexported
// methods keep the set closed to this package.
type Component interface {
	Kind() ComponentKind
	// Node returns the owning node, or nil while detached.
	Node() *Node
	// Update is called once per frame, parents before children.
	Update(deltaTime float64)

	setNode(n *Node)
	destroy()
}

type componentBase struct {
	node *Node
}

func (c *componentBase) Node() *Node { return c.node }

func (c *componentBase) Update(deltaTime float64) {}

func (c *componentBase) setNode(n *Node) { c.node = n }

func (c *componentBase) destroy() { c.node = nil }
