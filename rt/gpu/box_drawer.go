package gpu

import (
	"errors"
	"fmt"
	"slices"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/dithered/rt/core"
	"github.com/gekko3d/dithered/rt/shaders"
	"github.com/gekko3d/dithered/rt/shadow"
	"github.com/go-gl/mathgl/mgl32"
)

var ErrDrawSlotsExhausted = errors.New("gpu: out of draw uniform slots")

const (
	// Uniform offsets must be aligned to minUniformBufferOffsetAlignment.
	drawSlotStride  = 256
	drawSlotCount   = 64
	drawUniformSize = uint64(unsafe.Sizeof(DrawUniform{}))

	vertsPerBox = 36
)

// BoxVertex matches the WGSL VertexIn.
type BoxVertex struct {
	Pos    [3]float32
	Normal [3]float32
}

// DrawUniform matches the WGSL Draw struct.
type DrawUniform struct {
	Clip      mgl32.Mat4
	InvClip   mgl32.Mat4
	CameraPos mgl32.Vec4
	// x: caster bias, y: reversed depth, z: tile-offset encoding.
	Params mgl32.Vec4
}

// BoxSource supplies the boxes drawn every frame.
type BoxSource interface {
	Boxes() []core.AABB
}

// BoxDrawer draws a BoxSource as solid boxes: depth only into shadow tiles,
// lit by the visible lights in camera passes, followed by a sky gradient.
// Camera passes need a Depth32Float attachment.
type BoxDrawer struct {
	Device *wgpu.Device
	Source BoxSource

	reversedZ bool
	encoding  shadow.Encoding

	shadowPipeline *wgpu.RenderPipeline
	litPipeline    *wgpu.RenderPipeline
	skyPipeline    *wgpu.RenderPipeline
	drawLayout     *wgpu.BindGroupLayout
	litLayout      *wgpu.BindGroupLayout

	slots     *wgpu.Buffer
	drawGroup *wgpu.BindGroup
	nextSlot  int

	vertexBuffer *wgpu.Buffer
	vertexCap    int
	uploaded     []core.AABB
	fresh        bool

	litGroup     *wgpu.BindGroup
	fallback     *wgpu.Texture
	fallbackView *wgpu.TextureView
	fallbackSmp  *wgpu.Sampler
}

var _ Drawer = (*BoxDrawer)(nil)

func NewBoxDrawer(device *wgpu.Device, format wgpu.TextureFormat, reversedZ bool, encoding shadow.Encoding, source BoxSource) (*BoxDrawer, error) {
	if device == nil {
		return nil, ErrNoDevice
	}
	d := &BoxDrawer{
		Device:    device,
		Source:    source,
		reversedZ: reversedZ,
		encoding:  encoding,
	}
	if err := d.createPipelines(format); err != nil {
		d.Release()
		return nil, err
	}
	if err := d.createResources(); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

func (d *BoxDrawer) createPipelines(format wgpu.TextureFormat) error {
	shaderModule, err := d.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "BoxesShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.BoxesWGSL},
	})
	if err != nil {
		return fmt.Errorf("failed to create boxes shader: %w", err)
	}
	defer shaderModule.Release()

	drawEntry := wgpu.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
		Buffer: wgpu.BufferBindingLayout{
			Type:             wgpu.BufferBindingTypeUniform,
			MinBindingSize:   drawUniformSize,
			HasDynamicOffset: true,
		},
	}
	d.drawLayout, err = d.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "BoxesDrawBGL",
		Entries: []wgpu.BindGroupLayoutEntry{drawEntry},
	})
	if err != nil {
		return fmt.Errorf("failed to create draw bind group layout: %w", err)
	}
	d.litLayout, err = d.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "BoxesLitBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			drawEntry,
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: LightBlockSize,
				},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeDepth,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    3,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeComparison,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create lit bind group layout: %w", err)
	}

	drawPL, err := d.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "BoxesDrawPL",
		BindGroupLayouts: []*wgpu.BindGroupLayout{d.drawLayout},
	})
	if err != nil {
		return fmt.Errorf("failed to create draw pipeline layout: %w", err)
	}
	defer drawPL.Release()
	litPL, err := d.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "BoxesLitPL",
		BindGroupLayouts: []*wgpu.BindGroupLayout{d.litLayout},
	})
	if err != nil {
		return fmt.Errorf("failed to create lit pipeline layout: %w", err)
	}
	defer litPL.Release()

	boxBuffers := []wgpu.VertexBufferLayout{
		{
			ArrayStride: uint64(unsafe.Sizeof(BoxVertex{})),
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
			},
		},
	}
	depthCompare := wgpu.CompareFunctionLess
	skyCompare := wgpu.CompareFunctionLessEqual
	if d.reversedZ {
		depthCompare = wgpu.CompareFunctionGreater
		skyCompare = wgpu.CompareFunctionGreaterEqual
	}
	depthState := func(compare wgpu.CompareFunction, write bool) *wgpu.DepthStencilState {
		return &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: write,
			DepthCompare:      compare,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}
	primitive := wgpu.PrimitiveState{
		Topology:  wgpu.PrimitiveTopologyTriangleList,
		FrontFace: wgpu.FrontFaceCCW,
		CullMode:  wgpu.CullModeNone,
	}
	multisample := wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF}
	colorTargets := []wgpu.ColorTargetState{{Format: format, WriteMask: wgpu.ColorWriteMaskAll}}

	// Depth only: shadow passes have no color attachment.
	d.shadowPipeline, err = d.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "BoxesShadowPipeline",
		Layout: drawPL,
		Vertex: wgpu.VertexState{
			Module:     shaderModule,
			EntryPoint: "vs_shadow",
			Buffers:    boxBuffers,
		},
		Primitive:    primitive,
		DepthStencil: depthState(depthCompare, true),
		Multisample:  multisample,
	})
	if err != nil {
		return fmt.Errorf("failed to create shadow pipeline: %w", err)
	}

	d.litPipeline, err = d.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "BoxesLitPipeline",
		Layout: litPL,
		Vertex: wgpu.VertexState{
			Module:     shaderModule,
			EntryPoint: "vs_lit",
			Buffers:    boxBuffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     shaderModule,
			EntryPoint: "fs_lit",
			Targets:    colorTargets,
		},
		Primitive:    primitive,
		DepthStencil: depthState(depthCompare, true),
		Multisample:  multisample,
	})
	if err != nil {
		return fmt.Errorf("failed to create lit pipeline: %w", err)
	}

	d.skyPipeline, err = d.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "BoxesSkyPipeline",
		Layout: drawPL,
		Vertex: wgpu.VertexState{
			Module:     shaderModule,
			EntryPoint: "vs_sky",
		},
		Fragment: &wgpu.FragmentState{
			Module:     shaderModule,
			EntryPoint: "fs_sky",
			Targets:    colorTargets,
		},
		Primitive:    primitive,
		DepthStencil: depthState(skyCompare, false),
		Multisample:  multisample,
	})
	if err != nil {
		return fmt.Errorf("failed to create sky pipeline: %w", err)
	}
	return nil
}

func (d *BoxDrawer) createResources() error {
	var err error
	d.slots, err = d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "BoxesDrawUB",
		Size:  drawSlotStride * drawSlotCount,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create draw uniform buffer: %w", err)
	}
	d.drawGroup, err = d.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "BoxesDrawBG",
		Layout: d.drawLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: d.slots, Size: drawUniformSize},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create draw bind group: %w", err)
	}

	// Bound in place of the atlas when a camera skipped shadows.
	d.fallback, err = d.Device.CreateTexture(atlasDescriptor(1))
	if err != nil {
		return fmt.Errorf("failed to create fallback shadow texture: %w", err)
	}
	d.fallbackView, err = d.fallback.CreateView(nil)
	if err != nil {
		return fmt.Errorf("failed to create fallback shadow view: %w", err)
	}
	d.fallbackSmp, err = d.Device.CreateSampler(comparisonSamplerDescriptor(d.reversedZ))
	if err != nil {
		return fmt.Errorf("failed to create fallback shadow sampler: %w", err)
	}
	return nil
}

// boxVertices expands boxes into triangle lists, vertsPerBox per box, with
// outward normals.
func boxVertices(boxes []core.AABB) []BoxVertex {
	verts := make([]BoxVertex, 0, len(boxes)*vertsPerBox)
	for _, b := range boxes {
		lo, hi := b.Min, b.Max
		corner := func(x, y, z int) [3]float32 {
			pick := func(axis, bit int) float32 {
				if bit == 0 {
					return lo[axis]
				}
				return hi[axis]
			}
			return [3]float32{pick(0, x), pick(1, y), pick(2, z)}
		}
		face := func(n [3]float32, p0, p1, p2, p3 [3]float32) {
			verts = append(verts,
				BoxVertex{p0, n}, BoxVertex{p1, n}, BoxVertex{p2, n},
				BoxVertex{p0, n}, BoxVertex{p2, n}, BoxVertex{p3, n})
		}
		face([3]float32{1, 0, 0}, corner(1, 0, 0), corner(1, 1, 0), corner(1, 1, 1), corner(1, 0, 1))
		face([3]float32{-1, 0, 0}, corner(0, 0, 1), corner(0, 1, 1), corner(0, 1, 0), corner(0, 0, 0))
		face([3]float32{0, 1, 0}, corner(0, 1, 0), corner(0, 1, 1), corner(1, 1, 1), corner(1, 1, 0))
		face([3]float32{0, -1, 0}, corner(0, 0, 0), corner(1, 0, 0), corner(1, 0, 1), corner(0, 0, 1))
		face([3]float32{0, 0, 1}, corner(0, 0, 1), corner(1, 0, 1), corner(1, 1, 1), corner(0, 1, 1))
		face([3]float32{0, 0, -1}, corner(1, 0, 0), corner(0, 0, 0), corner(0, 1, 0), corner(1, 1, 0))
	}
	return verts
}

// drawUniformFor fills the per-draw constants of a frame.
func drawUniformFor(f *Frame, encoding shadow.Encoding) DrawUniform {
	u := DrawUniform{
		Clip:    f.Clip,
		InvClip: f.Clip.Inv(),
	}
	if f.Camera != nil {
		u.CameraPos = f.Camera.Transform.Position.Vec4(1)
	}
	u.Params[0] = f.Bias
	if f.ReversedZ {
		u.Params[1] = 1
	}
	if encoding == shadow.EncodingTileOffset {
		u.Params[2] = 1
	}
	return u
}

// writeSlot stores u in the next free slot and returns its dynamic offset.
func (d *BoxDrawer) writeSlot(u DrawUniform) (uint32, error) {
	if d.nextSlot >= drawSlotCount {
		return 0, ErrDrawSlotsExhausted
	}
	offset := uint64(d.nextSlot) * drawSlotStride
	data := unsafe.Slice((*byte)(unsafe.Pointer(&u)), drawUniformSize)
	if err := d.Device.GetQueue().WriteBuffer(d.slots, offset, data); err != nil {
		return 0, fmt.Errorf("failed to write draw uniforms: %w", err)
	}
	d.nextSlot++
	return uint32(offset), nil
}

// refresh uploads the source boxes once per submit. Boxes that did not
// change since the last upload are not written again.
func (d *BoxDrawer) refresh() ([]core.AABB, error) {
	if d.fresh {
		return d.uploaded, nil
	}
	var boxes []core.AABB
	if d.Source != nil {
		boxes = d.Source.Boxes()
	}
	d.fresh = true
	if slices.Equal(boxes, d.uploaded) && d.vertexBuffer != nil {
		return d.uploaded, nil
	}
	d.uploaded = slices.Clone(boxes)
	if len(boxes) == 0 {
		return nil, nil
	}

	verts := boxVertices(boxes)
	if d.vertexBuffer == nil || d.vertexCap < len(verts) {
		if d.vertexBuffer != nil {
			d.vertexBuffer.Release()
			d.vertexBuffer = nil
		}
		buf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "BoxesVertexBuffer",
			Size:  uint64(len(verts)) * uint64(unsafe.Sizeof(BoxVertex{})),
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			d.uploaded = nil
			return nil, fmt.Errorf("failed to create box vertex buffer: %w", err)
		}
		d.vertexBuffer, d.vertexCap = buf, len(verts)
	}
	size := uint64(len(verts)) * uint64(unsafe.Sizeof(BoxVertex{}))
	if err := d.Device.GetQueue().WriteBuffer(d.vertexBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&verts[0])), size)); err != nil {
		d.uploaded = nil
		return nil, fmt.Errorf("failed to write box vertices: %w", err)
	}
	return d.uploaded, nil
}

// visibleBoxes lists the boxes inside the frustum of viewProj and, when the
// split carries a radius, touching its culling sphere.
func visibleBoxes(boxes []core.AABB, viewProj mgl32.Mat4, split core.ShadowSplitData) []int {
	planes := core.ExtractFrustum(viewProj)
	sphere := split.CullingSphere
	var visible []int
	for i, b := range boxes {
		if !core.AABBInFrustum(b, planes) {
			continue
		}
		if sphere.W() > 0 && !b.IntersectsSphere(sphere.Vec3(), sphere.W()) {
			continue
		}
		visible = append(visible, i)
	}
	return visible
}

func (d *BoxDrawer) drawBoxes(pass *wgpu.RenderPassEncoder, indices []int) {
	pass.SetVertexBuffer(0, d.vertexBuffer, 0, d.vertexBuffer.GetSize())
	for _, i := range indices {
		pass.Draw(vertsPerBox, 1, uint32(i*vertsPerBox), 0)
	}
}

func (d *BoxDrawer) DrawShadowCasters(f *Frame, split core.ShadowSplitData) error {
	boxes, err := d.refresh()
	if err != nil {
		return err
	}
	visible := visibleBoxes(boxes, f.ViewProj, split)
	if len(visible) == 0 {
		return nil
	}
	offset, err := d.writeSlot(drawUniformFor(f, d.encoding))
	if err != nil {
		return err
	}
	f.Pass.SetPipeline(d.shadowPipeline)
	f.Pass.SetBindGroup(0, d.drawGroup, []uint32{offset})
	d.drawBoxes(f.Pass, visible)
	return nil
}

// DrawRenderers draws the boxes as opaque geometry; the transparent queue
// has nothing to draw.
func (d *BoxDrawer) DrawRenderers(f *Frame, cull core.CullResult, settings core.DrawSettings) error {
	if settings.Queue == core.RenderQueueTransparent {
		return nil
	}
	boxes, err := d.refresh()
	if err != nil {
		return err
	}
	visible := visibleBoxes(boxes, f.ViewProj, core.ShadowSplitData{})
	if len(visible) == 0 {
		return nil
	}
	if err := d.ensureLitGroup(f); err != nil {
		return err
	}
	offset, err := d.writeSlot(drawUniformFor(f, d.encoding))
	if err != nil {
		return err
	}
	f.Pass.SetPipeline(d.litPipeline)
	f.Pass.SetBindGroup(0, d.litGroup, []uint32{offset})
	d.drawBoxes(f.Pass, visible)
	return nil
}

func (d *BoxDrawer) ensureLitGroup(f *Frame) error {
	if d.litGroup != nil {
		return nil
	}
	if f.Lights == nil {
		return errors.New("gpu: no light uniform buffer")
	}
	view, sampler := d.fallbackView, d.fallbackSmp
	if f.ShadowMap != nil && f.ShadowMap.View != nil {
		view = f.ShadowMap.View
		if f.ShadowMap.Sampler != nil {
			sampler = f.ShadowMap.Sampler
		}
	}
	group, err := d.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "BoxesLitBG",
		Layout: d.litLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: d.slots, Size: drawUniformSize},
			{Binding: 1, Buffer: f.Lights, Size: LightBlockSize},
			{Binding: 2, TextureView: view},
			{Binding: 3, Sampler: sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create lit bind group: %w", err)
	}
	d.litGroup = group
	return nil
}

func (d *BoxDrawer) DrawSkybox(f *Frame) error {
	offset, err := d.writeSlot(drawUniformFor(f, d.encoding))
	if err != nil {
		return err
	}
	f.Pass.SetPipeline(d.skyPipeline)
	f.Pass.SetBindGroup(0, d.drawGroup, []uint32{offset})
	f.Pass.Draw(3, 1, 0, 0)
	return nil
}

// Submitted frees the slots and the lit bind group of the camera that was
// just submitted. Its atlas is released after this call.
func (d *BoxDrawer) Submitted() {
	d.nextSlot = 0
	d.fresh = false
	if d.litGroup != nil {
		d.litGroup.Release()
		d.litGroup = nil
	}
}

func (d *BoxDrawer) Release() {
	d.Submitted()
	for _, p := range []**wgpu.RenderPipeline{&d.shadowPipeline, &d.litPipeline, &d.skyPipeline} {
		if *p != nil {
			(*p).Release()
			*p = nil
		}
	}
	if d.drawGroup != nil {
		d.drawGroup.Release()
		d.drawGroup = nil
	}
	for _, l := range []**wgpu.BindGroupLayout{&d.drawLayout, &d.litLayout} {
		if *l != nil {
			(*l).Release()
			*l = nil
		}
	}
	for _, b := range []**wgpu.Buffer{&d.slots, &d.vertexBuffer} {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
	if d.fallbackSmp != nil {
		d.fallbackSmp.Release()
		d.fallbackSmp = nil
	}
	if d.fallbackView != nil {
		d.fallbackView.Release()
		d.fallbackView = nil
	}
	if d.fallback != nil {
		d.fallback.Release()
		d.fallback = nil
	}
}
