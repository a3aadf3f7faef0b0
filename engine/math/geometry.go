package math

import "github.com/spaghettifunk/lumen/engine/core"

// GeometryGenerateNormals writes a face normal into every vertex of every
// triangle. Smoothing out should be done in a separate pass if desired.
func GeometryGenerateNormals(vertices []Vertex3D, indices []uint32) {
	for i := 0; i+2 < len(indices); i += 3 {
		i0 := indices[i+0]
		i1 := indices[i+1]
		i2 := indices[i+2]

		edge1 := vertices[i1].Position.Sub(vertices[i0].Position)
		edge2 := vertices[i2].Position.Sub(vertices[i0].Position)
		normal := edge1.Cross(edge2).Normalized()

		vertices[i0].Normal = normal
		vertices[i1].Normal = normal
		vertices[i2].Normal = normal
	}
}

// GenerateQuad builds a width x height quad in the XY plane facing +Z, made
// of two counter clockwise triangles.
func GenerateQuad(width, height float32, colour Vec4) ([]Vertex3D, []uint32) {
	hw := width * 0.5
	hh := height * 0.5
	normal := Vec3{0, 0, 1}
	vertices := []Vertex3D{
		{Position: Vec3{-hw, -hh, 0}, Normal: normal, Texcoord: Vec2{0, 1}, Colour: colour},
		{Position: Vec3{hw, -hh, 0}, Normal: normal, Texcoord: Vec2{1, 1}, Colour: colour},
		{Position: Vec3{hw, hh, 0}, Normal: normal, Texcoord: Vec2{1, 0}, Colour: colour},
		{Position: Vec3{-hw, hh, 0}, Normal: normal, Texcoord: Vec2{0, 0}, Colour: colour},
	}
	indices := []uint32{0, 1, 2, 2, 3, 0}
	return vertices, indices
}

// GenerateCube builds an axis aligned cube centered on the origin, with
// separate vertices per face so each face carries its own normal.
func GenerateCube(size float32, colour Vec4) ([]Vertex3D, []uint32) {
	h := size * 0.5
	faces := [6][4]Vec3{
		{{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h}},     // +Z
		{{h, -h, -h}, {-h, -h, -h}, {-h, h, -h}, {h, h, -h}}, // -Z
		{{h, -h, h}, {h, -h, -h}, {h, h, -h}, {h, h, h}},     // +X
		{{-h, -h, -h}, {-h, -h, h}, {-h, h, h}, {-h, h, -h}}, // -X
		{{-h, h, h}, {h, h, h}, {h, h, -h}, {-h, h, -h}},     // +Y
		{{-h, -h, -h}, {h, -h, -h}, {h, -h, h}, {-h, -h, h}}, // -Y
	}
	uvs := [4]Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	vertices := make([]Vertex3D, 0, 24)
	indices := make([]uint32, 0, 36)
	for f, corners := range faces {
		base := uint32(f * 4)
		for c, p := range corners {
			vertices = append(vertices, Vertex3D{Position: p, Texcoord: uvs[c], Colour: colour})
		}
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}
	GeometryGenerateNormals(vertices, indices)
	return vertices, indices
}

// GeneratePointGrid lays countX x countZ points on the XZ plane, spaced by
// spacing and centered on the origin. Indices list every point once, for
// point-list topology.
func GeneratePointGrid(countX, countZ uint32, spacing float32, colour Vec4) ([]Vertex3D, []uint32) {
	if countX == 0 || countZ == 0 {
		core.LogWarn("point grid requested with zero points (%dx%d)", countX, countZ)
		return nil, nil
	}
	offsetX := float32(countX-1) * spacing * 0.5
	offsetZ := float32(countZ-1) * spacing * 0.5

	vertices := make([]Vertex3D, 0, countX*countZ)
	indices := make([]uint32, 0, countX*countZ)
	for z := uint32(0); z < countZ; z++ {
		for x := uint32(0); x < countX; x++ {
			vertices = append(vertices, Vertex3D{
				Position: Vec3{float32(x)*spacing - offsetX, 0, float32(z)*spacing - offsetZ},
				Normal:   NewVec3Up(),
				Texcoord: Vec2{float32(x) / float32(countX), float32(z) / float32(countZ)},
				Colour:   colour,
			})
			indices = append(indices, uint32(len(indices)))
		}
	}
	return vertices, indices
}
