package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

// Quaternion represents a rotational orientation. W is the scalar part.
type Quaternion Vec4

// Mat4 is a 4x4 matrix stored column by column, the layout GLSL expects, so
// the translation lives in Data[12], Data[13], Data[14].
type Mat4 struct {
	Data [16]float32
}

// Extents3D are the axis aligned bounds of a 3d object.
type Extents3D struct {
	Min Vec3
	Max Vec3
}

// Vertex3D is the vertex format consumed by the standard materials.
type Vertex3D struct {
	Position Vec3
	Normal   Vec3
	Texcoord Vec2
	Colour   Vec4
}
