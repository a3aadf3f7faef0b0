package scene

import "github.com/spaghettifunk/lumen/engine/math"

// Transform places its node relative to the parent node.
type Transform struct {
	componentBase
	math.Transform
}

func NewTransform() *Transform {
	return &Transform{Transform: math.NewTransform()}
}

func NewTransformAt(position math.Vec3) *Transform {
	return &Transform{Transform: math.NewTransformFromPosition(position)}
}

func (t *Transform) Kind() ComponentKind { return KindTransform }
