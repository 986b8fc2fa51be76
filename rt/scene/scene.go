// Package scene is a CPU host for the pipeline: it culls lights against the
// camera frustum, reports shadow casters from a list of boxes and fits the
// shadow frustums of directional and spot lights.
package scene

import (
	"errors"
	"math"

	"github.com/gekko3d/dithered/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrNoFrustum = errors.New("scene: camera has no valid frustum")

type Scene struct {
	Lights  []core.VisibleLight
	Casters []core.AABB
}

var _ core.Culler = (*Scene)(nil)

func NewScene() *Scene {
	return &Scene{}
}

func (s *Scene) AddLight(lights ...core.VisibleLight) {
	s.Lights = append(s.Lights, lights...)
}

func (s *Scene) AddCaster(boxes ...core.AABB) {
	s.Casters = append(s.Casters, boxes...)
}

// Boxes returns the non-empty caster boxes for drawing.
func (s *Scene) Boxes() []core.AABB {
	boxes := make([]core.AABB, 0, len(s.Casters))
	for _, box := range s.Casters {
		if !box.IsEmpty() {
			boxes = append(boxes, box)
		}
	}
	return boxes
}

// Cull keeps every directional light and the point and spot lights whose
// range sphere touches the camera frustum, in scene order.
func (s *Scene) Cull(camera *core.Camera, params core.CullingParameters) (core.CullResult, error) {
	if !camera.HasValidFrustum() {
		return nil, ErrNoFrustum
	}

	planes := core.ExtractFrustum(camera.GetProjectionMatrix().Mul4(camera.GetViewMatrix()))
	res := &CullResult{
		camera: camera,
		params: params,
	}

	for _, light := range s.Lights {
		if light.Type != core.LightTypeDirectional &&
			!core.SphereInFrustum(light.Position(), light.Range, planes) {
			continue
		}
		res.visible = append(res.visible, light)
	}
	res.casters = s.Boxes()
	res.indexMap = make([]int, len(res.visible))
	for i := range res.indexMap {
		res.indexMap[i] = i
	}
	return res, nil
}

type CullResult struct {
	camera   *core.Camera
	params   core.CullingParameters
	visible  []core.VisibleLight
	casters  []core.AABB
	indexMap []int
}

var _ core.CullResult = (*CullResult)(nil)

func (r *CullResult) VisibleLights() []core.VisibleLight {
	return r.visible
}

func (r *CullResult) LightIndexMap() []int {
	return append([]int(nil), r.indexMap...)
}

func (r *CullResult) SetLightIndexMap(indices []int) {
	r.indexMap = append(r.indexMap[:0], indices...)
}

// shadowSphere is the region around the camera that directional shadows cover.
func (r *CullResult) shadowSphere() (mgl32.Vec3, float32) {
	radius := 0.5 * r.params.ShadowDistance
	center := r.camera.Transform.Position.Add(r.camera.Forward().Mul(radius))
	return center, radius
}

func (r *CullResult) ShadowCasterBounds(lightIndex int) (core.AABB, bool) {
	if lightIndex < 0 || lightIndex >= len(r.visible) {
		return core.EmptyAABB(), false
	}
	light := &r.visible[lightIndex]

	var center mgl32.Vec3
	var radius float32
	switch light.Type {
	case core.LightTypeDirectional:
		center, radius = r.shadowSphere()
	default:
		center, radius = light.Position(), light.Range
	}

	// Spot casters must also lie inside the cone's shadow frustum. A spot
	// without a valid frustum keeps the range test and is demoted later.
	var planes [6]mgl32.Vec4
	coneTest := false
	if light.Type == core.LightTypeSpot {
		if m, ok := r.ComputeSpotShadowMatrices(lightIndex); ok {
			planes = core.ExtractFrustum(m.Proj.Mul4(m.View))
			coneTest = true
		}
	}

	bounds := core.EmptyAABB()
	for _, box := range r.casters {
		if !box.IntersectsSphere(center, radius) {
			continue
		}
		if coneTest && !core.AABBInFrustum(box, planes) {
			continue
		}
		bounds = bounds.Union(box)
	}
	return bounds, !bounds.IsEmpty()
}

// upFor picks an up vector that is not parallel to dir.
func upFor(dir mgl32.Vec3) mgl32.Vec3 {
	if float32(math.Abs(float64(dir.Y()))) > 0.99 {
		return mgl32.Vec3{1, 0, 0}
	}
	return mgl32.Vec3{0, 1, 0}
}

func (r *CullResult) ComputeSpotShadowMatrices(lightIndex int) (core.ShadowMatrices, bool) {
	if lightIndex < 0 || lightIndex >= len(r.visible) {
		return core.ShadowMatrices{}, false
	}
	light := &r.visible[lightIndex]
	if light.Type != core.LightTypeSpot {
		return core.ShadowMatrices{}, false
	}
	forward := light.Forward()
	near := max(0.01*light.Range, 0.01)
	if forward.Len() == 0 || light.SpotAngle <= 0 || light.SpotAngle >= 180 || light.Range <= near {
		return core.ShadowMatrices{}, false
	}

	pos := light.Position()
	half := 0.5 * light.Range
	return core.ShadowMatrices{
		View: mgl32.LookAtV(pos, pos.Add(forward), upFor(forward)),
		Proj: mgl32.Perspective(mgl32.DegToRad(light.SpotAngle), 1, near, light.Range),
		Split: core.ShadowSplitData{
			CullingSphere: pos.Add(forward.Mul(half)).Vec4(half),
		},
	}, true
}

// ComputeDirectionalShadowMatrices fits an orthographic frustum around the
// part of the camera's shadow distance covered by the split. The frustum
// center is snapped to whole texels so shadows do not shimmer as the camera
// moves.
func (r *CullResult) ComputeDirectionalShadowMatrices(lightIndex, splitIndex, splitCount int, splitRatio mgl32.Vec3, tileResolution int, nearPlane float32) (core.ShadowMatrices, bool) {
	if lightIndex < 0 || lightIndex >= len(r.visible) {
		return core.ShadowMatrices{}, false
	}
	light := &r.visible[lightIndex]
	if light.Type != core.LightTypeDirectional || tileResolution <= 0 {
		return core.ShadowMatrices{}, false
	}
	if splitCount < 1 || splitIndex < 0 || splitIndex >= splitCount {
		return core.ShadowMatrices{}, false
	}
	forward := light.Forward()
	if forward.Len() == 0 || nearPlane < 0 || r.params.ShadowDistance <= nearPlane {
		return core.ShadowMatrices{}, false
	}

	// Split boundaries as fractions of the shadow distance.
	start, end := float32(0), float32(1)
	if splitCount > 1 {
		if splitIndex > 0 {
			start = splitRatio[min(splitIndex-1, 2)]
		}
		if splitIndex < splitCount-1 {
			end = splitRatio[min(splitIndex, 2)]
		}
	}
	if end <= start {
		return core.ShadowMatrices{}, false
	}

	dist := r.params.ShadowDistance
	radius := 0.5 * (end - start) * dist
	center := r.camera.Transform.Position.Add(r.camera.Forward().Mul((start + 0.5*(end-start)) * dist))

	up := upFor(forward)
	rotation := mgl32.LookAtV(mgl32.Vec3{}, forward, up)
	texel := 2 * radius / float32(tileResolution)
	ls := rotation.Mul4x1(center.Vec4(1))
	ls[0] = float32(math.Floor(float64(ls[0]/texel))) * texel
	ls[1] = float32(math.Floor(float64(ls[1]/texel))) * texel
	center = rotation.Transpose().Mul4x1(ls).Vec3()

	eye := center.Sub(forward.Mul(radius + nearPlane))
	return core.ShadowMatrices{
		View: mgl32.LookAtV(eye, center, up),
		Proj: mgl32.Ortho(-radius, radius, -radius, radius, nearPlane, nearPlane+2*radius),
		Split: core.ShadowSplitData{
			CullingSphere: center.Vec4(radius),
		},
	}, true
}
