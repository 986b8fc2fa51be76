package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type CameraID string

func NewCameraID() CameraID {
	return CameraID(uuid.NewString())
}

// Short is the first uuid group, enough to tell cameras apart in logs.
func (id CameraID) Short() string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

type CameraType uint32

const (
	CameraTypeGame CameraType = iota
	CameraTypeSceneView
	CameraTypePreview
)

func (t CameraType) String() string {
	switch t {
	case CameraTypeGame:
		return "game"
	case CameraTypeSceneView:
		return "scene-view"
	case CameraTypePreview:
		return "preview"
	}
	return "unknown"
}

type ClearFlags uint32

const (
	ClearNone  ClearFlags = 0
	ClearDepth ClearFlags = 1 << 0
	ClearColor ClearFlags = 1 << 1
	ClearAll              = ClearDepth | ClearColor
)

type Camera struct {
	ID              CameraID
	Type            CameraType
	Transform       *Transform
	FovY            float32 // degrees
	Aspect          float32
	Near            float32
	Far             float32
	ClearFlags      ClearFlags
	BackgroundColor mgl32.Vec4
}

func NewCamera() *Camera {
	return &Camera{
		ID:              NewCameraID(),
		Type:            CameraTypeGame,
		Transform:       NewTransform(),
		FovY:            60,
		Aspect:          16.0 / 9.0,
		Near:            0.3,
		Far:             1000,
		ClearFlags:      ClearAll,
		BackgroundColor: mgl32.Vec4{0.19, 0.3, 0.47, 0},
	}
}

// HasValidFrustum reports whether a perspective frustum can be built from the
// camera parameters.
func (c *Camera) HasValidFrustum() bool {
	if c == nil || c.Transform == nil {
		return false
	}
	if c.Near <= 0 || c.Far <= c.Near {
		return false
	}
	if c.FovY <= 0 || c.FovY >= 180 || c.Aspect <= 0 {
		return false
	}
	return !math.IsInf(float64(c.Far), 0)
}

func (c *Camera) Forward() mgl32.Vec3 {
	return c.Transform.Forward()
}

func (c *Camera) GetViewMatrix() mgl32.Mat4 {
	eye := c.Transform.Position
	target := eye.Add(c.Forward())
	up := c.Transform.Rotation.Rotate(mgl32.Vec3{0, 1, 0})
	return mgl32.LookAtV(eye, target, up)
}

func (c *Camera) GetProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FovY), c.Aspect, c.Near, c.Far)
}

// ExtractFrustum extracts the 6 planes of the frustum from the view-projection matrix.
// Returns planes in order: Left, Right, Bottom, Top, Near, Far.
// Plane is Ax + By + Cz + D = 0 with the normal pointing inside.
func ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	var planes [6]mgl32.Vec4
	row3 := vp.Row(3)
	for i := 0; i < 3; i++ {
		row := vp.Row(i)
		planes[2*i] = row3.Add(row)
		planes[2*i+1] = row3.Sub(row)
	}

	for i := 0; i < 6; i++ {
		length := planes[i].Vec3().Len()
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}

	return planes
}
