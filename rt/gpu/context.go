package gpu

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/dithered/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrNotShadowAtlas = errors.New("gpu: shadow target is not a ShadowAtlas")

// Frame is the pass state handed to a Drawer.
type Frame struct {
	Pass *wgpu.RenderPassEncoder
	// ViewProj is the view-projection set by the pipeline, in GL clip
	// conventions. Drawers cull against it.
	ViewProj mgl32.Mat4
	// Clip is ViewProj converted to this pass's WebGPU clip space.
	Clip      mgl32.Mat4
	ReversedZ bool

	// Shadow passes.
	LightIndex int
	Bias       float32

	// Camera passes. ShadowMap is nil when the camera skipped shadows.
	Camera    *core.Camera
	Lights    *wgpu.Buffer
	ShadowMap *ShadowAtlas
}

// Drawer records geometry into the passes opened by a Context.
type Drawer interface {
	DrawShadowCasters(f *Frame, split core.ShadowSplitData) error
	DrawRenderers(f *Frame, cull core.CullResult, settings core.DrawSettings) error
	DrawSkybox(f *Frame) error
	// Submitted runs after the commands of a camera were submitted.
	Submitted()
}

// DeviceClip converts a GL-convention view-projection (clip z in [-w, w],
// y up) to WebGPU clip space, where z is in [0, w]. Reversed depth maps the
// near plane to w instead of 0.
//
// Shadow passes also flip y. Framebuffer rows grow downwards while the
// world-to-shadow matrices grow v upwards; rendering the tile upside down
// makes texel (u, v) of the composed matrix the texel that was written.
func DeviceClip(viewProj mgl32.Mat4, shadowPass, reversedZ bool) mgl32.Mat4 {
	m := mgl32.Ident4()
	if shadowPass {
		m.Set(1, 1, -1)
	}
	if reversedZ {
		m.Set(2, 2, -0.5)
	} else {
		m.Set(2, 2, 0.5)
	}
	m.Set(2, 3, 0.5)
	return m.Mul4(viewProj)
}

type passKind int

const (
	passNone passKind = iota
	passShadow
	passCamera
)

// Context is a RenderContext that records into one wgpu command encoder per
// Submit. Globals are collected in a LightBlock and written to a uniform
// buffer on Submit.
//
// The host sets Target (and optionally Depth) to the views of the current
// frame with BeginFrame. The first error of a frame is kept and reported
// by Err.
type Context struct {
	Device *wgpu.Device
	Target *wgpu.TextureView
	Depth  *wgpu.TextureView
	// TargetWidth and TargetHeight size the scissor reset of camera passes.
	TargetWidth  uint32
	TargetHeight uint32
	Drawer       Drawer
	// ReversedZ clears depth to 0 and hands drawers reversed clip matrices.
	ReversedZ bool

	Block    LightBlock
	Uniforms *wgpu.Buffer

	props    *core.Properties
	encoder  *wgpu.CommandEncoder
	pass     *wgpu.RenderPassEncoder
	kind     passKind
	passSize [2]uint32

	shadowMap  *ShadowAtlas
	camera     *core.Camera
	viewProj   mgl32.Mat4
	clearDepth bool
	clearColor bool
	background mgl32.Vec4

	err error
}

var _ core.RenderContext = (*Context)(nil)

func NewContext(device *wgpu.Device, drawer Drawer) *Context {
	return &Context{
		Device: device,
		Drawer: drawer,
		props:  core.PropertyIDs(),
	}
}

// Err returns the first error recorded since BeginFrame.
func (c *Context) Err() error {
	return c.err
}

// ShadowMap is the atlas bound by the last shadow pass, nil when shadows
// were skipped.
func (c *Context) ShadowMap() *ShadowAtlas {
	return c.shadowMap
}

func (c *Context) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *Context) properties() *core.Properties {
	if c.props == nil {
		c.props = core.PropertyIDs()
	}
	return c.props
}

func (c *Context) SetGlobalVector(id core.PropertyID, v mgl32.Vec4) {
	c.Block.setVector(c.properties(), id, v)
}

func (c *Context) SetGlobalVectorArray(id core.PropertyID, values []mgl32.Vec4) {
	c.Block.setVectorArray(c.properties(), id, values)
}

func (c *Context) SetGlobalMatrixArray(id core.PropertyID, values []mgl32.Mat4) {
	c.Block.setMatrixArray(c.properties(), id, values)
}

func (c *Context) SetGlobalFloat(id core.PropertyID, v float32) {
	if id == c.properties().ShadowBias {
		c.Block.ShadowBias = v
	}
}

func (c *Context) SetGlobalTexture(id core.PropertyID, atlas core.Atlas) {
	if id != c.properties().ShadowMap {
		return
	}
	a, ok := atlas.(*ShadowAtlas)
	if !ok {
		c.fail(ErrNotShadowAtlas)
		return
	}
	c.shadowMap = a
}

func (c *Context) SetKeyword(keyword core.Keyword, enabled bool) {
	c.Block.setKeyword(keyword, enabled)
}

func (c *Context) ensureEncoder() bool {
	if c.encoder != nil {
		return true
	}
	if c.Device == nil {
		c.fail(ErrNoDevice)
		return false
	}
	encoder, err := c.Device.CreateCommandEncoder(nil)
	if err != nil {
		c.fail(fmt.Errorf("failed to create command encoder: %w", err))
		return false
	}
	c.encoder = encoder
	return true
}

func (c *Context) farDepth() float32 {
	if c.ReversedZ {
		return 0
	}
	return 1
}

func (c *Context) ensureUniforms() bool {
	if c.Uniforms != nil {
		return true
	}
	if c.Device == nil {
		c.fail(ErrNoDevice)
		return false
	}
	buf, err := c.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "LightBlockUB",
		Size:  LightBlockSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		c.fail(fmt.Errorf("failed to create light uniform buffer: %w", err))
		return false
	}
	c.Uniforms = buf
	return true
}

func (c *Context) endPass() {
	if c.pass == nil {
		return
	}
	if err := c.pass.End(); err != nil {
		c.fail(fmt.Errorf("failed to end render pass: %w", err))
	}
	c.pass.Release()
	c.pass = nil
	c.kind = passNone
}

// SetShadowTarget opens a depth-only pass on the atlas and clears it.
func (c *Context) SetShadowTarget(atlas core.Atlas) {
	c.endPass()
	a, ok := atlas.(*ShadowAtlas)
	if !ok || a == nil || a.View == nil {
		c.fail(ErrNotShadowAtlas)
		return
	}
	if !c.ensureEncoder() {
		return
	}
	c.pass = c.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Shadow Atlas Pass",
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            a.View,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: c.farDepth(),
		},
	})
	c.kind = passShadow
	c.passSize = [2]uint32{uint32(a.Size()), uint32(a.Size())}
}

func (c *Context) SetViewport(r core.Rect) {
	if c.pass != nil {
		c.pass.SetViewport(r.X, r.Y, r.Width, r.Height, 0, 1)
	}
}

func (c *Context) EnableScissor(r core.Rect) {
	if c.pass != nil && !r.Empty() {
		c.pass.SetScissorRect(uint32(r.X), uint32(r.Y), uint32(r.Width), uint32(r.Height))
	}
}

func (c *Context) DisableScissor() {
	if c.pass != nil {
		c.pass.SetScissorRect(0, 0, c.passSize[0], c.passSize[1])
	}
}

func (c *Context) SetViewProjection(view, proj mgl32.Mat4) {
	c.viewProj = proj.Mul4(view)
}

func (c *Context) DrawShadows(lightIndex int, split core.ShadowSplitData) {
	if c.kind != passShadow || c.Drawer == nil {
		return
	}
	f := &Frame{
		Pass:       c.pass,
		ViewProj:   c.viewProj,
		Clip:       DeviceClip(c.viewProj, true, c.ReversedZ),
		ReversedZ:  c.ReversedZ,
		LightIndex: lightIndex,
		Bias:       c.Block.ShadowBias,
	}
	if err := c.Drawer.DrawShadowCasters(f, split); err != nil {
		c.fail(fmt.Errorf("failed to draw shadow casters of light %d: %w", lightIndex, err))
	}
}

func (c *Context) cameraFrame() *Frame {
	return &Frame{
		Pass:      c.pass,
		ViewProj:  c.viewProj,
		Clip:      DeviceClip(c.viewProj, false, c.ReversedZ),
		ReversedZ: c.ReversedZ,
		Camera:    c.camera,
		Lights:    c.Uniforms,
		ShadowMap: c.shadowMap,
	}
}

// SetupCameraProperties closes the shadow pass. The camera pass opens on
// the first draw so it can apply the clear requested in between.
func (c *Context) SetupCameraProperties(camera *core.Camera) {
	c.endPass()
	c.camera = camera
	c.viewProj = camera.GetProjectionMatrix().Mul4(camera.GetViewMatrix())
}

func (c *Context) ClearRenderTarget(depth, color bool, background mgl32.Vec4) {
	c.clearDepth = depth
	c.clearColor = color
	c.background = background
}

func (c *Context) ensureCameraPass() bool {
	if c.kind == passCamera {
		return true
	}
	c.endPass()
	if c.Target == nil {
		c.fail(errors.New("gpu: no color target for camera pass"))
		return false
	}
	if !c.ensureEncoder() || !c.ensureUniforms() {
		return false
	}

	colorLoad := wgpu.LoadOpLoad
	if c.clearColor {
		colorLoad = wgpu.LoadOpClear
	}
	desc := &wgpu.RenderPassDescriptor{
		Label: "Camera Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    c.Target,
			LoadOp:  colorLoad,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(c.background[0]),
				G: float64(c.background[1]),
				B: float64(c.background[2]),
				A: float64(c.background[3]),
			},
		}},
	}
	if c.Depth != nil {
		depthLoad := wgpu.LoadOpLoad
		if c.clearDepth {
			depthLoad = wgpu.LoadOpClear
		}
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            c.Depth,
			DepthLoadOp:     depthLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: c.farDepth(),
		}
	}
	c.pass = c.encoder.BeginRenderPass(desc)
	c.kind = passCamera
	c.passSize = [2]uint32{c.TargetWidth, c.TargetHeight}
	// The clear applies once per camera.
	c.clearColor, c.clearDepth = false, false
	return true
}

func (c *Context) DrawRenderers(cull core.CullResult, settings core.DrawSettings) {
	if !c.ensureCameraPass() || c.Drawer == nil {
		return
	}
	if err := c.Drawer.DrawRenderers(c.cameraFrame(), cull, settings); err != nil {
		c.fail(fmt.Errorf("failed to draw %s renderers: %w", settings.PassName, err))
	}
}

func (c *Context) DrawSkybox(camera *core.Camera) {
	if !c.ensureCameraPass() || c.Drawer == nil {
		return
	}
	f := c.cameraFrame()
	f.Camera = camera
	if err := c.Drawer.DrawSkybox(f); err != nil {
		c.fail(fmt.Errorf("failed to draw skybox: %w", err))
	}
}

// Submit closes the open pass, uploads the light block and submits the
// recorded commands.
func (c *Context) Submit() {
	c.endPass()
	defer func() {
		c.shadowMap = nil
		c.camera = nil
	}()

	if !c.ensureUniforms() {
		return
	}
	queue := c.Device.GetQueue()
	if err := queue.WriteBuffer(c.Uniforms, 0, c.Block.Bytes()); err != nil {
		c.fail(fmt.Errorf("failed to write light uniforms: %w", err))
	}

	if c.encoder == nil {
		return
	}
	cmd, err := c.encoder.Finish(nil)
	c.encoder.Release()
	c.encoder = nil
	if err != nil {
		c.fail(fmt.Errorf("failed to finish command encoder: %w", err))
		return
	}
	queue.Submit(cmd)
	cmd.Release()
	if c.Drawer != nil {
		c.Drawer.Submitted()
	}
}

// BeginFrame clears errors left by the previous frame.
func (c *Context) BeginFrame(target *wgpu.TextureView, width, height uint32) {
	c.Target = target
	c.TargetWidth = width
	c.TargetHeight = height
	c.err = nil
}

func (c *Context) Release() {
	c.endPass()
	if c.encoder != nil {
		c.encoder.Release()
		c.encoder = nil
	}
	if c.Uniforms != nil {
		c.Uniforms.Release()
		c.Uniforms = nil
	}
}
