package renderer

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/scene"
)

// MaxSpotLights is the size of the spot light array in the lighting block.
// The configured limit can only lower it, so the block size never changes.
const MaxSpotLights = 8

// Byte sizes of the global uniform blocks, as declared by the shaders.
const (
	MatrixUniformsSize   = 192
	LightingUniformsSize = 560
	CameraUniformsSize   = 16
)

// Global descriptor set (set 0) bindings.
const (
	MatrixBinding   uint32 = 0
	LightingBinding uint32 = 1
	CameraBinding   uint32 = 2
)

// MatrixUniforms is set 0, binding 0.
type MatrixUniforms struct {
	View           math.Mat4
	Projection     math.Mat4
	ViewProjection math.Mat4
}

// SpotLightUniform follows std140: every vec3 is completed to 16 bytes by the
// scalar after it.
type SpotLightUniform struct {
	Position  math.Vec3
	Range     float32
	Direction math.Vec3
	Intensity float32
	Color     math.Vec3
	InnerCos  float32
	OuterCos  float32
	_         [3]float32
}

// LightingUniforms is set 0, binding 1.
type LightingUniforms struct {
	AmbientIntensity        float32
	DirectionalLightEnabled uint32
	SpotLightCount          uint32
	_                       float32

	DirectionalDirection math.Vec3
	DirectionalIntensity float32
	DirectionalColor     math.Vec3
	_                    float32

	SpotLights [MaxSpotLights]SpotLightUniform
}

// CameraUniforms is set 0, binding 2.
type CameraUniforms struct {
	Position math.Vec3
	_        float32
}

func newMatrixUniforms(camera *scene.Camera) MatrixUniforms {
	view := camera.View()
	projection := camera.ProjectionMatrix()
	return MatrixUniforms{
		View:           view,
		Projection:     projection,
		ViewProjection: view.Mul(projection),
	}
}

// newLightingUniforms reads the ambient intensity, the first directional
// light and up to maxSpots spot lights of s, in pre-order.
func newLightingUniforms(s *scene.Scene, maxSpots int) LightingUniforms {
	var l LightingUniforms
	l.AmbientIntensity = s.AmbientIntensity

	if dl, ok := s.DirectionalLight(); ok {
		l.DirectionalLightEnabled = 1
		l.DirectionalDirection = dl.Direction()
		l.DirectionalIntensity = dl.Intensity
		l.DirectionalColor = dl.Color
	}

	spots := s.SpotLights(math.Clamp(maxSpots, 0, MaxSpotLights))
	for i, sl := range spots {
		l.SpotLights[i] = SpotLightUniform{
			Position:  sl.Position(),
			Range:     sl.Range,
			Direction: sl.Direction(),
			Intensity: sl.Intensity,
			Color:     sl.Color,
			InnerCos:  math32.Cos(sl.InnerCone),
			OuterCos:  math32.Cos(sl.OuterCone),
		}
	}
	l.SpotLightCount = uint32(len(spots))
	return l
}
