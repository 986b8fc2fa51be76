// Package dithered is the per-camera frame loop of a forward renderer with
// up to 16 per-pixel lights and a shared shadow atlas.
//
// A Pipeline culls each camera through the host, packs the visible lights,
// renders the shadow maps of eligible directional and spot lights into one
// atlas and then records the opaque, skybox and transparent passes.
package dithered

import (
	"errors"
	"fmt"

	"github.com/gekko3d/dithered/rt/atlas"
	"github.com/gekko3d/dithered/rt/core"
	"github.com/gekko3d/dithered/rt/lighting"
	"github.com/gekko3d/dithered/rt/shadow"
	"github.com/go-gl/mathgl/mgl32"
)

// ErrNoValidFrustum is returned for cameras that cannot be culled.
var ErrNoValidFrustum = errors.New("camera has no valid frustum")

// UnlitPassName is the shader pass drawn for opaque and transparent geometry.
const UnlitPassName = "SRPDefaultUnlit"

// Pipeline is not safe for concurrent use. Cameras are rendered one after
// another and share the light arrays and the shadow matrices.
type Pipeline struct {
	settings  Settings
	logger    Logger
	editor    core.EditorHook
	observer  StateObserver
	culler    core.Culler
	allocator core.AtlasAllocator
	profiler  *Profiler
	composer  shadow.Composer
	props     *core.Properties

	state         FrameState
	arrays        lighting.Arrays
	worldToShadow [lighting.MaxVisibleLights]mgl32.Mat4
	plan          atlas.Plan
}

func (p *Pipeline) Settings() Settings {
	return p.settings
}

func (p *Pipeline) Logger() Logger {
	return p.logger
}

func (p *Pipeline) Profiler() *Profiler {
	return p.profiler
}

func (p *Pipeline) State() FrameState {
	return p.state
}

// Arrays returns the light arrays of the last rendered camera. They are
// overwritten by the next render.
func (p *Pipeline) Arrays() *lighting.Arrays {
	return &p.arrays
}

// WorldToShadowMatrices returns the shadow matrices of the last rendered
// camera. Entries of lights without a shadow tile are zero.
func (p *Pipeline) WorldToShadowMatrices() [lighting.MaxVisibleLights]mgl32.Mat4 {
	return p.worldToShadow
}

// Plan returns the atlas layout of the last shadow pass.
func (p *Pipeline) Plan() atlas.Plan {
	return p.plan
}

// Render draws every camera in order. A camera that fails to cull is
// skipped and the remaining cameras still render.
func (p *Pipeline) Render(ctx core.RenderContext, cameras ...*core.Camera) {
	p.profiler.Reset()
	for _, camera := range cameras {
		if err := p.RenderCamera(ctx, camera); err != nil {
			p.logger.Debugf("Skipping camera: %v", err)
		}
	}
}

// RenderCamera runs the frame state machine for one camera. The shadow
// atlas, when one was acquired, is released before it returns.
func (p *Pipeline) RenderCamera(ctx core.RenderContext, camera *core.Camera) error {
	p.changeState(StateCulling)
	defer p.changeState(StateIdle)

	if !camera.HasValidFrustum() {
		return ErrNoValidFrustum
	}
	logger := withCamera(p.logger, camera)
	params := core.CullingParameters{
		ShadowDistance: min(p.settings.ShadowDistance, camera.Far),
	}
	if p.settings.DevelopmentMode && p.editor != nil && camera.Type == core.CameraTypeSceneView {
		p.editor.EmitSceneViewGeometry(camera)
	}

	p.profiler.BeginScope(ScopeCull)
	cull, err := p.culler.Cull(camera, params)
	p.profiler.EndScope(ScopeCull)
	if err != nil {
		return fmt.Errorf("failed to cull camera %s: %w", camera.ID, err)
	}
	p.profiler.AddCount(CountCameras, 1)

	var shadowMap core.Atlas
	defer func() {
		if shadowMap != nil {
			shadowMap.Release()
		}
	}()

	p.changeState(StateLightPacking)
	p.profiler.BeginScope(ScopeLights)
	lighting.Configure(&p.arrays, cull)
	p.profiler.EndScope(ScopeLights)
	p.profiler.AddCount(CountVisibleLights, p.arrays.Count)
	p.profiler.AddCount(CountOverflowLights, p.arrays.Overflow)
	if p.arrays.Overflow > 0 {
		logger.Debugf("%d visible lights, %d excluded from per-object lighting",
			p.arrays.Count+p.arrays.Overflow, p.arrays.Overflow)
	}

	if p.arrays.Count > 0 {
		if p.arrays.ShadowTileCount > 0 {
			p.changeState(StateShadowPass)
			p.profiler.BeginScope(ScopeShadows)
			shadowMap = p.renderShadows(ctx, logger, cull, params.ShadowDistance)
			p.profiler.EndScope(ScopeShadows)
		} else {
			p.changeState(StateSkipShadows)
			p.disableShadows(ctx)
		}
		ctx.SetKeyword(core.KeywordVertexSecondaryLights, p.settings.SecondaryVertexLights)
	} else {
		p.changeState(StateSkipShadows)
		ctx.SetGlobalVector(p.props.LightIndicesOffsetAndCount, mgl32.Vec4{})
		p.disableShadows(ctx)
		ctx.SetKeyword(core.KeywordVertexSecondaryLights, false)
	}

	p.profiler.BeginScope(ScopeDraw)
	defer p.profiler.EndScope(ScopeDraw)

	ctx.SetupCameraProperties(camera)
	ctx.ClearRenderTarget(
		camera.ClearFlags&core.ClearDepth != 0,
		camera.ClearFlags&core.ClearColor != 0,
		camera.BackgroundColor,
	)
	ctx.SetGlobalVectorArray(p.props.VisibleLightColors, p.arrays.Colors[:])
	ctx.SetGlobalVectorArray(p.props.VisibleLightDirectionsOrPositions, p.arrays.DirectionsOrPositions[:])
	ctx.SetGlobalVectorArray(p.props.VisibleLightAttenuations, p.arrays.Attenuations[:])
	ctx.SetGlobalVectorArray(p.props.VisibleLightSpotDirections, p.arrays.SpotDirections[:])

	p.changeState(StateOpaquePass)
	settings := core.DrawSettings{
		PassName:           UnlitPassName,
		Sorting:            core.SortCommonOpaque,
		Queue:              core.RenderQueueOpaque,
		DynamicBatching:    p.settings.DynamicBatching,
		Instancing:         p.settings.Instancing,
		PerObjectLightData: p.arrays.Count > 0,
	}
	ctx.DrawRenderers(cull, settings)

	p.changeState(StateSkyboxPass)
	ctx.DrawSkybox(camera)

	p.changeState(StateTransparentPass)
	settings.Sorting = core.SortCommonTransparent
	settings.Queue = core.RenderQueueTransparent
	ctx.DrawRenderers(cull, settings)

	if p.settings.DevelopmentMode && p.editor != nil {
		p.editor.DrawErrorFallback(ctx, cull, camera)
	}

	p.changeState(StateSubmit)
	ctx.Submit()
	return nil
}

// disableShadows turns both shadow keywords off and uploads zeroed shadow
// data so nothing samples a tile from an earlier camera.
func (p *Pipeline) disableShadows(ctx core.RenderContext) {
	p.arrays.ClearShadows()
	p.worldToShadow = [lighting.MaxVisibleLights]mgl32.Mat4{}
	ctx.SetGlobalVectorArray(p.props.ShadowData, p.arrays.ShadowData[:])
	ctx.SetKeyword(core.KeywordShadowsHard, false)
	ctx.SetKeyword(core.KeywordShadowsSoft, false)
}

// renderShadows draws the shadow map of every eligible light into its own
// atlas tile and uploads the matrices and shadow data. It returns the
// atlas, or nil when none could be acquired.
func (p *Pipeline) renderShadows(ctx core.RenderContext, logger Logger, cull core.CullResult, shadowDistance float32) core.Atlas {
	size := int(p.settings.ShadowMapSize)
	plan, err := atlas.NewPlan(size, p.arrays.ShadowTileCount)
	if err != nil {
		logger.Errorf("Shadow atlas layout rejected: %v", err)
		p.changeState(StateSkipShadows)
		p.disableShadows(ctx)
		return nil
	}
	shadowMap, err := p.allocator.AcquireAtlas(size)
	if err != nil {
		logger.Warnf("Skipping shadows, failed to acquire %dpx shadow atlas: %v", size, err)
		p.changeState(StateSkipShadows)
		p.disableShadows(ctx)
		return nil
	}
	p.plan = plan
	p.worldToShadow = [lighting.MaxVisibleLights]mgl32.Mat4{}

	ctx.SetShadowTarget(shadowMap)
	ctx.SetGlobalVector(p.props.GlobalShadowData, mgl32.Vec4{plan.TileScale(), shadowDistance * shadowDistance, 0, 0})

	tiles := atlas.NewAllocator(plan)
	lights := cull.VisibleLights()
	hardShadows, softShadows := false, false

	for i := 0; i < p.arrays.Count; i++ {
		if !p.arrays.CastsShadows(i) {
			continue
		}
		light := &lights[i]

		var matrices core.ShadowMatrices
		var ok bool
		if light.Type == core.LightTypeDirectional {
			matrices, ok = cull.ComputeDirectionalShadowMatrices(i, 0, 1, mgl32.Vec3{1, 0, 0}, plan.TileSize, light.ShadowNearPlane)
		} else {
			matrices, ok = cull.ComputeSpotShadowMatrices(i)
		}
		if !ok {
			logger.Debugf("Light %d (%s) has no valid shadow frustum, shadow dropped", i, light.Type)
			p.arrays.Demote(i)
			p.profiler.AddCount(CountDemotedShadows, 1)
			continue
		}
		tile, ok := tiles.Next()
		if !ok {
			p.arrays.Demote(i)
			p.profiler.AddCount(CountDemotedShadows, 1)
			continue
		}

		ctx.SetViewport(tile.Viewport)
		ctx.EnableScissor(tile.Scissor)
		ctx.SetViewProjection(matrices.View, matrices.Proj)
		ctx.SetGlobalFloat(p.props.ShadowBias, light.ShadowBias)
		ctx.DrawShadows(i, matrices.Split)

		p.worldToShadow[i] = p.composer.WorldToShadow(matrices, tile)
		p.arrays.ShadowData[i] = p.composer.ShadowData(p.arrays.ShadowData[i], tile)

		if p.arrays.ShadowData[i].Y() <= 0 {
			hardShadows = true
		} else {
			softShadows = true
		}
	}
	p.profiler.AddCount(CountShadowTiles, tiles.Used())

	ctx.DisableScissor()
	ctx.SetGlobalTexture(p.props.ShadowMap, shadowMap)
	ctx.SetGlobalMatrixArray(p.props.WorldToShadowMatrices, p.worldToShadow[:])
	ctx.SetGlobalVectorArray(p.props.ShadowData, p.arrays.ShadowData[:])

	inv := 1 / float32(size)
	ctx.SetGlobalVector(p.props.ShadowMapSize, mgl32.Vec4{inv, inv, float32(size), float32(size)})
	ctx.SetKeyword(core.KeywordShadowsHard, hardShadows)
	ctx.SetKeyword(core.KeywordShadowsSoft, softShadows)
	return shadowMap
}
