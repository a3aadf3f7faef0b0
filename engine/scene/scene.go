package scene

// Scene owns the root node and the scene wide ambient light.
type Scene struct {
	Name             string
	AmbientIntensity float32

	root *Node
}

func NewScene(name string) *Scene {
	root := NewNode("root")
	root.isRoot = true
	return &Scene{
		Name: name,
		root: root,
	}
}

func (s *Scene) Root() *Node { return s.root }

// Update advances every component by deltaTime, pre-order.
func (s *Scene) Update(deltaTime float64) {
	s.root.Update(deltaTime)
}

// Camera returns the first camera in pre-order.
func (s *Scene) Camera() (*Camera, bool) {
	return ComponentInChildren[*Camera](s.root)
}

// DirectionalLight returns the first directional light in pre-order.
func (s *Scene) DirectionalLight() (*DirectionalLight, bool) {
	return ComponentInChildren[*DirectionalLight](s.root)
}

// SpotLights collects up to max spot lights in pre-order.
func (s *Scene) SpotLights(max int) []*SpotLight {
	var lights []*SpotLight
	if max <= 0 {
		return lights
	}
	s.root.TraversePreOrder(func(n *Node) {
		for _, c := range n.components {
			if l, ok := c.(*SpotLight); ok && len(lights) < max {
				lights = append(lights, l)
			}
		}
	})
	return lights
}

// Destroy destroys every node and component of the scene.
func (s *Scene) Destroy() error {
	return s.root.Destroy()
}
