package math

// Transform is a translation, rotation and scale triple.
type Transform struct {
	Position Vec3
	Rotation Quaternion
	Scale    Vec3
}

func NewTransform() Transform {
	return Transform{
		Position: NewVec3Zero(),
		Rotation: NewQuatIdentity(),
		Scale:    NewVec3One(),
	}
}

func NewTransformFromPosition(position Vec3) Transform {
	t := NewTransform()
	t.Position = position
	return t
}

func NewTransformFromPositionRotationScale(position Vec3, rotation Quaternion, scale Vec3) Transform {
	return Transform{Position: position, Rotation: rotation, Scale: scale}
}

func (t *Transform) Translate(translation Vec3) {
	t.Position = t.Position.Add(translation)
}

// Rotate applies rotation on top of the current orientation, in parent space.
func (t *Transform) Rotate(rotation Quaternion) {
	t.Rotation = rotation.Mul(t.Rotation).Normalize()
}

// Matrix returns T * S * R in column vector notation: a local point is
// rotated, then scaled, then translated.
func (t *Transform) Matrix() Mat4 {
	r := t.Rotation.ToMat4()
	s := NewMat4Scale(t.Scale)
	tr := NewMat4Translation(t.Position)
	return r.Mul(s).Mul(tr)
}
