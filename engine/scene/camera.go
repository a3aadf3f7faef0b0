package scene

import (
	"github.com/spaghettifunk/lumen/engine/math"
)

type ProjectionType int

const (
	ProjectionPerspective ProjectionType = iota
	ProjectionOrthographic
)

// Camera projects the scene as seen from its node.
type Camera struct {
	componentBase

	Projection ProjectionType
	// FovY is the vertical field of view in radians.
	FovY   float32
	Aspect float32
	Near   float32
	Far    float32

	Left, Right, Bottom, Top float32

	// AutoAspect lets the renderer set Aspect from the target extent every
	// frame.
	AutoAspect bool
}

func NewPerspectiveCamera(fovY, aspect, near, far float32) *Camera {
	return &Camera{
		Projection: ProjectionPerspective,
		FovY:       fovY,
		Aspect:     aspect,
		Near:       near,
		Far:        far,
	}
}

func NewOrthographicCamera(left, right, bottom, top, near, far float32) *Camera {
	return &Camera{
		Projection: ProjectionOrthographic,
		Left:       left,
		Right:      right,
		Bottom:     bottom,
		Top:        top,
		Near:       near,
		Far:        far,
	}
}

func (c *Camera) Kind() ComponentKind { return KindCamera }

// View is the inverse of the owning node's world matrix.
func (c *Camera) View() math.Mat4 {
	if c.node == nil {
		return math.NewMat4Identity()
	}
	return c.node.WorldMatrix().Inverse()
}

func (c *Camera) ProjectionMatrix() math.Mat4 {
	if c.Projection == ProjectionOrthographic {
		return math.NewMat4Orthographic(c.Left, c.Right, c.Bottom, c.Top, c.Near, c.Far)
	}
	return math.NewMat4Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

// Position is the camera's world space position.
func (c *Camera) Position() math.Vec3 {
	if c.node == nil {
		return math.NewVec3Zero()
	}
	return c.node.WorldMatrix().Translation()
}
