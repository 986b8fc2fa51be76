package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Contracts with the host renderer. Implementations are synchronous and
// return fully formed results or an explicit failure.

// CullingParameters carries the per-camera settings the cull needs from the
// pipeline.
type CullingParameters struct {
	// ShadowDistance is already clamped to the camera far plane.
	ShadowDistance float32
}

type Culler interface {
	// Cull fails when the camera has no valid frustum.
	Cull(camera *Camera, params CullingParameters) (CullResult, error)
}

// ShadowSplitData describes the culling volume used when drawing a shadow tile.
type ShadowSplitData struct {
	CullingSphere mgl32.Vec4 // xyz center, w radius
}

type ShadowMatrices struct {
	View  mgl32.Mat4
	Proj  mgl32.Mat4
	Split ShadowSplitData
}

type CullResult interface {
	VisibleLights() []VisibleLight

	// ShadowCasterBounds reports false when nothing casts a shadow for the light.
	ShadowCasterBounds(lightIndex int) (AABB, bool)

	ComputeDirectionalShadowMatrices(lightIndex, splitIndex, splitCount int, splitRatio mgl32.Vec3, tileResolution int, nearPlane float32) (ShadowMatrices, bool)
	ComputeSpotShadowMatrices(lightIndex int) (ShadowMatrices, bool)

	// LightIndexMap returns a copy of the visible-light to per-object light
	// mapping, one entry per visible light.
	LightIndexMap() []int
	SetLightIndexMap(indices []int)
}

// Atlas is a square depth render target holding every shadow tile of a frame.
type Atlas interface {
	Size() int
	Release()
}

type AtlasAllocator interface {
	AcquireAtlas(size int) (Atlas, error)
}

type SortingCriteria uint32

const (
	SortCommonOpaque SortingCriteria = iota
	SortCommonTransparent
)

type RenderQueueRange uint32

const (
	RenderQueueOpaque RenderQueueRange = iota
	RenderQueueTransparent
	RenderQueueAll
)

type DrawSettings struct {
	PassName        string
	Sorting         SortingCriteria
	Queue           RenderQueueRange
	DynamicBatching bool
	Instancing      bool
	// PerObjectLightData requests light data and light indices per object.
	PerObjectLightData bool
}

// RenderContext records the commands and globals consumed by shading.
type RenderContext interface {
	SetGlobalVector(id PropertyID, v mgl32.Vec4)
	SetGlobalVectorArray(id PropertyID, values []mgl32.Vec4)
	SetGlobalMatrixArray(id PropertyID, values []mgl32.Mat4)
	SetGlobalFloat(id PropertyID, v float32)
	SetGlobalTexture(id PropertyID, atlas Atlas)
	SetKeyword(keyword Keyword, enabled bool)

	// SetShadowTarget binds the atlas as render target and clears its depth.
	SetShadowTarget(atlas Atlas)
	SetViewport(r Rect)
	EnableScissor(r Rect)
	DisableScissor()
	SetViewProjection(view, proj mgl32.Mat4)
	DrawShadows(lightIndex int, split ShadowSplitData)

	SetupCameraProperties(camera *Camera)
	ClearRenderTarget(depth, color bool, background mgl32.Vec4)
	DrawRenderers(cull CullResult, settings DrawSettings)
	DrawSkybox(camera *Camera)
	Submit()
}

// EditorHook receives host tooling callbacks. It is only invoked when the
// pipeline runs in development mode.
type EditorHook interface {
	EmitSceneViewGeometry(camera *Camera)
	DrawErrorFallback(ctx RenderContext, cull CullResult, camera *Camera)
}
