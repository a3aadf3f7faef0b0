package scene

import (
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
)

// InputState is the input the controller reads each frame.
type InputState interface {
	IsKeyDown(key core.KeyCode) bool
	IsButtonDown(button core.Button) bool
	MouseDelta() (float32, float32)
}

const maxPitch = 89.0 * math.K_DEG2RAD_MULTIPLIER

// FirstPersonController drives its node's transform: WASD moves on the view
// plane, Space and Shift move up and down, the mouse turns the view.
type FirstPersonController struct {
	componentBase

	input InputState

	MoveSpeed   float32
	Sensitivity float32
	// LookButton must be held for mouse look when RequireLookButton is set.
	LookButton        core.Button
	RequireLookButton bool

	yaw   float32
	pitch float32
}

func NewFirstPersonController(input InputState) *FirstPersonController {
	return &FirstPersonController{
		input:             input,
		MoveSpeed:         5.0,
		Sensitivity:       0.0025,
		LookButton:        core.BUTTON_RIGHT,
		RequireLookButton: true,
	}
}

func (f *FirstPersonController) Kind() ComponentKind { return KindFirstPersonController }

// SetOrientation sets yaw and pitch in radians. Pitch is clamped to ±89°.
func (f *FirstPersonController) SetOrientation(yaw, pitch float32) {
	f.yaw = yaw
	f.pitch = math.Clamp(pitch, -maxPitch, maxPitch)
}

func (f *FirstPersonController) Orientation() (yaw, pitch float32) {
	return f.yaw, f.pitch
}

func (f *FirstPersonController) Update(deltaTime float64) {
	if f.node == nil || f.input == nil {
		return
	}
	t, err := f.node.Transform()
	if err != nil {
		core.LogWarn("first person controller: %s", err)
		return
	}

	if !f.RequireLookButton || f.input.IsButtonDown(f.LookButton) {
		dx, dy := f.input.MouseDelta()
		f.SetOrientation(f.yaw-dx*f.Sensitivity, f.pitch-dy*f.Sensitivity)
	}
	t.Rotation = math.NewQuatFromEuler(f.pitch, f.yaw, 0)

	forward := t.Rotation.Rotate(math.NewVec3Forward())
	right := t.Rotation.Rotate(math.NewVec3Right())
	up := math.NewVec3Up()

	var move math.Vec3
	if f.input.IsKeyDown(core.KEY_W) {
		move = move.Add(forward)
	}
	if f.input.IsKeyDown(core.KEY_S) {
		move = move.Sub(forward)
	}
	if f.input.IsKeyDown(core.KEY_D) {
		move = move.Add(right)
	}
	if f.input.IsKeyDown(core.KEY_A) {
		move = move.Sub(right)
	}
	if f.input.IsKeyDown(core.KEY_SPACE) {
		move = move.Add(up)
	}
	if f.input.IsKeyDown(core.KEY_SHIFT) {
		move = move.Sub(up)
	}
	if move.LengthSquared() == 0 {
		return
	}
	t.Translate(move.Normalized().MulScalar(f.MoveSpeed * float32(deltaTime)))
}
