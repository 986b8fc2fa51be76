package core

import "github.com/go-gl/mathgl/mgl32"

type LightType uint32

const (
	LightTypeDirectional LightType = 0
	LightTypePoint       LightType = 1
	LightTypeSpot        LightType = 2
)

func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	case LightTypeSpot:
		return "spot"
	}
	return "unknown"
}

// ShadowMode is the per-light shadow setting chosen by the host.
type ShadowMode uint32

const (
	ShadowsNone ShadowMode = 0
	ShadowsHard ShadowMode = 1
	ShadowsSoft ShadowMode = 2
)

// NoLight marks a light index map entry whose light contributes to no object.
const NoLight = -1

// VisibleLight is a light reported by culling for the current camera.
// It is read-only for the duration of a frame.
type VisibleLight struct {
	Type       LightType
	FinalColor mgl32.Vec4 // linear RGB, intensity already applied
	// LocalToWorld column 2 is the forward axis, column 3 the position.
	LocalToWorld mgl32.Mat4
	Range        float32 // point/spot
	SpotAngle    float32 // full cone angle in degrees

	Shadows         ShadowMode
	ShadowStrength  float32
	ShadowBias      float32
	ShadowNearPlane float32 // directional only
}

// Forward returns the normalized forward axis of the light transform.
// A degenerate transform yields the zero vector.
func (l *VisibleLight) Forward() mgl32.Vec3 {
	f := l.LocalToWorld.Col(2).Vec3()
	if f.Len() == 0 {
		return mgl32.Vec3{}
	}
	return f.Normalize()
}

// Position returns the world-space position of the light.
func (l *VisibleLight) Position() mgl32.Vec3 {
	return l.LocalToWorld.Col(3).Vec3()
}

// NewVisibleLight builds a light whose transform places it at position
// looking along forward.
func NewVisibleLight(lightType LightType, position, forward mgl32.Vec3) VisibleLight {
	tr := NewTransform()
	tr.Position = position
	tr.LookAlong(forward)
	return VisibleLight{
		Type:         lightType,
		FinalColor:   mgl32.Vec4{1, 1, 1, 1},
		LocalToWorld: tr.ObjectToWorld(),
		Range:        10,
		SpotAngle:    30,
	}
}
