package dithered

import (
	"errors"
	"slices"

	"github.com/gekko3d/dithered/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

type fakeAtlas struct {
	size     int
	released int
}

func (a *fakeAtlas) Size() int { return a.size }
func (a *fakeAtlas) Release()  { a.released++ }

type fakeAllocator struct {
	err      error
	acquired []*fakeAtlas
}

func (f *fakeAllocator) AcquireAtlas(size int) (core.Atlas, error) {
	if f.err != nil {
		return nil, f.err
	}
	a := &fakeAtlas{size: size}
	f.acquired = append(f.acquired, a)
	return a, nil
}

type directionalCall struct {
	lightIndex, splitIndex, splitCount int
	splitRatio                         mgl32.Vec3
	tileResolution                     int
	nearPlane                          float32
}

// fakeCull reports casters for every light and builds simple perspective
// shadow matrices unless told to fail.
type fakeCull struct {
	lights    []core.VisibleLight
	indexMap  []int
	noCasters map[int]bool
	failing   map[int]bool

	directionalCalls []directionalCall
	spotCalls        []int
}

func newFakeCull(lights ...core.VisibleLight) *fakeCull {
	c := &fakeCull{
		lights:    lights,
		noCasters: map[int]bool{},
		failing:   map[int]bool{},
	}
	for i := range lights {
		c.indexMap = append(c.indexMap, i)
	}
	return c
}

func (c *fakeCull) VisibleLights() []core.VisibleLight { return c.lights }

func (c *fakeCull) ShadowCasterBounds(lightIndex int) (core.AABB, bool) {
	if c.noCasters[lightIndex] {
		return core.EmptyAABB(), false
	}
	return core.AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}, true
}

func (c *fakeCull) matrices(lightIndex int) (core.ShadowMatrices, bool) {
	if c.failing[lightIndex] {
		return core.ShadowMatrices{}, false
	}
	pos := mgl32.Vec3{float32(lightIndex), 5, 0}
	return core.ShadowMatrices{
		View:  mgl32.LookAtV(pos, pos.Add(mgl32.Vec3{0, -1, 0}), mgl32.Vec3{1, 0, 0}),
		Proj:  mgl32.Perspective(mgl32.DegToRad(60), 1, 0.1, 20),
		Split: core.ShadowSplitData{CullingSphere: mgl32.Vec4{0, 0, 0, float32(lightIndex + 1)}},
	}, true
}

func (c *fakeCull) ComputeDirectionalShadowMatrices(lightIndex, splitIndex, splitCount int, splitRatio mgl32.Vec3, tileResolution int, nearPlane float32) (core.ShadowMatrices, bool) {
	c.directionalCalls = append(c.directionalCalls, directionalCall{
		lightIndex, splitIndex, splitCount, splitRatio, tileResolution, nearPlane,
	})
	return c.matrices(lightIndex)
}

func (c *fakeCull) ComputeSpotShadowMatrices(lightIndex int) (core.ShadowMatrices, bool) {
	c.spotCalls = append(c.spotCalls, lightIndex)
	return c.matrices(lightIndex)
}

func (c *fakeCull) LightIndexMap() []int          { return slices.Clone(c.indexMap) }
func (c *fakeCull) SetLightIndexMap(indices []int) { c.indexMap = slices.Clone(indices) }

var errCullFailed = errors.New("cull failed")

type fakeCuller struct {
	result core.CullResult
	err    error
	params []core.CullingParameters
}

func (f *fakeCuller) Cull(camera *core.Camera, params core.CullingParameters) (core.CullResult, error) {
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type clearCall struct {
	depth, color bool
	background   mgl32.Vec4
}

type viewProjection struct {
	view, proj mgl32.Mat4
}

type shadowDraw struct {
	lightIndex int
	split      core.ShadowSplitData
}

// recordingContext keeps the last value of every global and the order of
// the commands it received.
type recordingContext struct {
	calls []string

	vectors      map[core.PropertyID]mgl32.Vec4
	vectorArrays map[core.PropertyID][]mgl32.Vec4
	matrixArrays map[core.PropertyID][]mgl32.Mat4
	floats       map[core.PropertyID][]float32
	textures     map[core.PropertyID]core.Atlas
	keywords     map[core.Keyword]bool

	shadowTargets   []core.Atlas
	viewports       []core.Rect
	scissors        []core.Rect
	viewProjections []viewProjection
	shadowDraws     []shadowDraw
	clears          []clearCall
	draws           []core.DrawSettings

	panicOnDraw bool
}

func newRecordingContext() *recordingContext {
	return &recordingContext{
		vectors:      map[core.PropertyID]mgl32.Vec4{},
		vectorArrays: map[core.PropertyID][]mgl32.Vec4{},
		matrixArrays: map[core.PropertyID][]mgl32.Mat4{},
		floats:       map[core.PropertyID][]float32{},
		textures:     map[core.PropertyID]core.Atlas{},
		keywords:     map[core.Keyword]bool{},
	}
}

func (r *recordingContext) SetGlobalVector(id core.PropertyID, v mgl32.Vec4) {
	r.calls = append(r.calls, "SetGlobalVector")
	r.vectors[id] = v
}

func (r *recordingContext) SetGlobalVectorArray(id core.PropertyID, values []mgl32.Vec4) {
	r.calls = append(r.calls, "SetGlobalVectorArray")
	r.vectorArrays[id] = slices.Clone(values)
}

func (r *recordingContext) SetGlobalMatrixArray(id core.PropertyID, values []mgl32.Mat4) {
	r.calls = append(r.calls, "SetGlobalMatrixArray")
	r.matrixArrays[id] = slices.Clone(values)
}

func (r *recordingContext) SetGlobalFloat(id core.PropertyID, v float32) {
	r.calls = append(r.calls, "SetGlobalFloat")
	r.floats[id] = append(r.floats[id], v)
}

func (r *recordingContext) SetGlobalTexture(id core.PropertyID, atlas core.Atlas) {
	r.calls = append(r.calls, "SetGlobalTexture")
	r.textures[id] = atlas
}

func (r *recordingContext) SetKeyword(keyword core.Keyword, enabled bool) {
	r.calls = append(r.calls, "SetKeyword")
	r.keywords[keyword] = enabled
}

func (r *recordingContext) SetShadowTarget(atlas core.Atlas) {
	r.calls = append(r.calls, "SetShadowTarget")
	r.shadowTargets = append(r.shadowTargets, atlas)
}

func (r *recordingContext) SetViewport(rect core.Rect) {
	r.calls = append(r.calls, "SetViewport")
	r.viewports = append(r.viewports, rect)
}

func (r *recordingContext) EnableScissor(rect core.Rect) {
	r.calls = append(r.calls, "EnableScissor")
	r.scissors = append(r.scissors, rect)
}

func (r *recordingContext) DisableScissor() {
	r.calls = append(r.calls, "DisableScissor")
}

func (r *recordingContext) SetViewProjection(view, proj mgl32.Mat4) {
	r.calls = append(r.calls, "SetViewProjection")
	r.viewProjections = append(r.viewProjections, viewProjection{view, proj})
}

func (r *recordingContext) DrawShadows(lightIndex int, split core.ShadowSplitData) {
	r.calls = append(r.calls, "DrawShadows")
	r.shadowDraws = append(r.shadowDraws, shadowDraw{lightIndex, split})
}

func (r *recordingContext) SetupCameraProperties(camera *core.Camera) {
	r.calls = append(r.calls, "SetupCameraProperties")
}

func (r *recordingContext) ClearRenderTarget(depth, color bool, background mgl32.Vec4) {
	r.calls = append(r.calls, "ClearRenderTarget")
	r.clears = append(r.clears, clearCall{depth, color, background})
}

func (r *recordingContext) DrawRenderers(cull core.CullResult, settings core.DrawSettings) {
	if r.panicOnDraw {
		panic("draw failed")
	}
	r.calls = append(r.calls, "DrawRenderers")
	r.draws = append(r.draws, settings)
}

func (r *recordingContext) DrawSkybox(camera *core.Camera) {
	r.calls = append(r.calls, "DrawSkybox")
}

func (r *recordingContext) Submit() {
	r.calls = append(r.calls, "Submit")
}

func (r *recordingContext) shadowDrawIndices() []int {
	out := make([]int, 0, len(r.shadowDraws))
	for _, d := range r.shadowDraws {
		out = append(out, d.lightIndex)
	}
	return out
}

type fakeEditor struct {
	emitted   []*core.Camera
	fallbacks []*core.Camera
}

func (e *fakeEditor) EmitSceneViewGeometry(camera *core.Camera) {
	e.emitted = append(e.emitted, camera)
}

func (e *fakeEditor) DrawErrorFallback(ctx core.RenderContext, cull core.CullResult, camera *core.Camera) {
	e.fallbacks = append(e.fallbacks, camera)
}
