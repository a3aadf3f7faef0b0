package scene

import "github.com/spaghettifunk/lumen/engine/math"

// DirectionalLight shines along its node's forward axis (-Z).
type DirectionalLight struct {
	componentBase

	Color     math.Vec3
	Intensity float32
}

func NewDirectionalLight(color math.Vec3, intensity float32) *DirectionalLight {
	return &DirectionalLight{Color: color, Intensity: intensity}
}

func (l *DirectionalLight) Kind() ComponentKind { return KindDirectionalLight }

func (l *DirectionalLight) Direction() math.Vec3 {
	return forwardOf(l.node)
}

// SpotLight is a cone of light from its node's position along its forward
// axis.
type SpotLight struct {
	componentBase

	Color     math.Vec3
	Intensity float32
	Range     float32
	// Cone angles in radians, measured from the axis.
	InnerCone float32
	OuterCone float32
}

func NewSpotLight(color math.Vec3, intensity, lightRange, innerCone, outerCone float32) *SpotLight {
	return &SpotLight{
		Color:     color,
		Intensity: intensity,
		Range:     lightRange,
		InnerCone: innerCone,
		OuterCone: outerCone,
	}
}

func (l *SpotLight) Kind() ComponentKind { return KindSpotLight }

func (l *SpotLight) Position() math.Vec3 {
	if l.node == nil {
		return math.NewVec3Zero()
	}
	return l.node.WorldMatrix().Translation()
}

func (l *SpotLight) Direction() math.Vec3 {
	return forwardOf(l.node)
}

func forwardOf(n *Node) math.Vec3 {
	if n == nil {
		return math.NewVec3Forward()
	}
	return n.WorldMatrix().Forward()
}
