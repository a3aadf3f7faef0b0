package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const tolerance float32 = 1e-5

func TestMat4InverseOfTranslation(t *testing.T) {
	m := NewMat4Translation(Vec3{1, 2, 3})
	inv := m.Inverse()
	assert.True(t, inv.Compare(NewMat4Translation(Vec3{-1, -2, -3}), tolerance))
	assert.True(t, m.Mul(inv).Compare(NewMat4Identity(), tolerance))
}

func TestMat4InverseOfRotationScale(t *testing.T) {
	tr := NewTransformFromPositionRotationScale(
		Vec3{3, -1, 2},
		NewQuatFromAxisAngle(Vec3{0, 1, 0}, DegToRad(30)),
		Vec3{2, 2, 2},
	)
	m := tr.Matrix()
	assert.True(t, m.Mul(m.Inverse()).Compare(NewMat4Identity(), 1e-4))
}

func TestMulAppliesLeftOperandFirst(t *testing.T) {
	scale := NewMat4Scale(Vec3{2, 2, 2})
	translate := NewMat4Translation(Vec3{1, 0, 0})

	// scale, then translate
	p := Vec3{1, 0, 0}.Transform(scale.Mul(translate))
	assert.True(t, p.Compare(Vec3{3, 0, 0}, tolerance))

	// translate, then scale
	p = Vec3{1, 0, 0}.Transform(translate.Mul(scale))
	assert.True(t, p.Compare(Vec3{4, 0, 0}, tolerance))
}

func TestTransformMatrixRotatesThenScalesThenTranslates(t *testing.T) {
	tr := NewTransformFromPositionRotationScale(
		Vec3{0, 0, 5},
		NewQuatFromAxisAngle(Vec3{0, 1, 0}, DegToRad(90)),
		Vec3{2, 1, 1},
	)
	// (1,0,0) rotates to (0,0,-1), scale leaves it, translation moves it.
	p := Vec3{1, 0, 0}.Transform(tr.Matrix())
	assert.True(t, p.Compare(Vec3{0, 0, 4}, tolerance), "got %v", p)
}

func TestQuaternionRotate(t *testing.T) {
	q := NewQuatFromAxisAngle(Vec3{0, 0, 1}, DegToRad(90))
	v := q.Rotate(Vec3{1, 0, 0})
	assert.True(t, v.Compare(Vec3{0, 1, 0}, tolerance), "got %v", v)

	back := q.Inverse().Rotate(v)
	assert.True(t, back.Compare(Vec3{1, 0, 0}, tolerance))
}

func TestQuaternionSlerpEndpoints(t *testing.T) {
	a := NewQuatIdentity()
	b := NewQuatFromAxisAngle(Vec3{0, 1, 0}, DegToRad(90))
	assert.InDelta(t, 1.0, a.Slerp(b, 0).Dot(a), 1e-5)
	assert.InDelta(t, 1.0, a.Slerp(b, 1).Dot(b), 1e-5)
}

func TestPerspectiveDepthRange(t *testing.T) {
	near, far := float32(0.1), float32(100)
	p := NewMat4Perspective(DegToRad(60), 1.5, near, far)

	depth := func(z float32) float32 {
		clipZ := z*p.Data[10] + p.Data[14]
		clipW := z * p.Data[11]
		return clipZ / clipW
	}
	assert.InDelta(t, 0.0, depth(-near), 1e-5)
	assert.InDelta(t, 1.0, depth(-far), 1e-4)
	assert.Less(t, p.Data[5], float32(0))
}

func TestOrthographicMapsBounds(t *testing.T) {
	o := NewMat4Orthographic(-2, 2, -1, 1, 0.1, 10)
	assert.True(t, Vec3{2, 1, -0.1}.Transform(o).Compare(Vec3{1, -1, 0}, tolerance))
	assert.True(t, Vec3{-2, -1, -10}.Transform(o).Compare(Vec3{-1, 1, 1}, tolerance))
}

func TestLookAtIsInverseOfCameraPose(t *testing.T) {
	view := NewMat4LookAt(Vec3{0, 0, 5}, Vec3{0, 0, 0}, NewVec3Up())
	assert.True(t, view.Compare(NewMat4Translation(Vec3{0, 0, 5}).Inverse(), tolerance))
}

func TestGenerators(t *testing.T) {
	v, i := GenerateQuad(2, 2, NewVec4One())
	assert.Len(t, v, 4)
	assert.Len(t, i, 6)

	v, i = GenerateCube(1, NewVec4One())
	assert.Len(t, v, 24)
	assert.Len(t, i, 36)
	assert.True(t, v[0].Normal.Compare(Vec3{0, 0, 1}, tolerance))

	v, i = GeneratePointGrid(4, 3, 0.5, NewVec4One())
	assert.Len(t, v, 12)
	assert.Equal(t, uint32(11), i[11])
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 3, Clamp(5, 0, 3))
	assert.Equal(t, float32(-1), Clamp(float32(-4), -1, 1))
}
