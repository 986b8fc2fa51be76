package main

import (
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/dithered"
	"github.com/gekko3d/dithered/rt/core"
	"github.com/gekko3d/dithered/rt/gpu"
	"github.com/gekko3d/dithered/rt/scene"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

type App struct {
	Window *glfw.Window

	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	Depth     *wgpu.Texture
	DepthView *wgpu.TextureView

	Scene     *scene.Scene
	Camera    *core.Camera
	Pipeline  *dithered.Pipeline
	Context   *gpu.Context
	Allocator *gpu.AtlasAllocator
	Drawer    *gpu.BoxDrawer
	Logger    dithered.Logger

	StatsEvery int
	frame      int
	startTime  float64
	orbiting   []int
}

func NewApp(window *glfw.Window, logger dithered.Logger) *App {
	return &App{
		Window: window,
		Logger: logger,
		Scene:  scene.NewScene(),
		Camera: core.NewCamera(),
	}
}

func (a *App) Init(settings dithered.Settings) error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("failed to request adapter: %w", err)
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("failed to request device: %w", err)
	}

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(adapter, a.Device, a.Config)
	if err := a.setupDepth(width, height); err != nil {
		return err
	}

	a.Allocator, err = gpu.NewAtlasAllocator(a.Device, settings.ReversedZ)
	if err != nil {
		return err
	}
	a.Drawer, err = gpu.NewBoxDrawer(a.Device, a.Config.Format, settings.ReversedZ, settings.ShadowEncoding, a.Scene)
	if err != nil {
		return err
	}
	a.Context = gpu.NewContext(a.Device, a.Drawer)
	a.Context.Depth = a.DepthView
	a.Context.ReversedZ = settings.ReversedZ

	a.setupScene()
	a.Camera.Aspect = float32(width) / float32(max(height, 1))

	a.Pipeline, err = dithered.NewPipelineBuilder().
		UseSettings(settings).
		UseHost(a.Scene, a.Allocator).
		UseLogger(a.Logger).
		UseStateObserver(func(from, to dithered.FrameState) {
			if a.Logger.DebugEnabled() {
				a.Logger.Debugf("frame state %s -> %s", from, to)
			}
		}).
		Build()
	if err != nil {
		return err
	}

	a.startTime = glfw.GetTime()
	return nil
}

func (a *App) setupDepth(w, h int) error {
	if a.DepthView != nil {
		a.DepthView.Release()
	}
	if a.Depth != nil {
		a.Depth.Release()
	}
	tex, err := a.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Camera Depth",
		Size: wgpu.Extent3D{
			Width:              uint32(w),
			Height:             uint32(h),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("failed to create depth texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("failed to create depth view: %w", err)
	}
	a.Depth, a.DepthView = tex, view
	if a.Context != nil {
		a.Context.Depth = view
	}
	return nil
}

// setupScene builds a small courtyard: a sun, a ring of shadowed spot
// lamps orbiting a pillar and a few unshadowed point lights.
func (a *App) setupScene() {
	a.Camera.Transform.Position = mgl32.Vec3{0, 6, 18}
	a.Camera.Transform.LookAlong(mgl32.Vec3{0, -0.3, -1})

	sun := core.NewVisibleLight(core.LightTypeDirectional, mgl32.Vec3{}, mgl32.Vec3{0.4, -1, -0.3})
	sun.FinalColor = mgl32.Vec4{1, 0.95, 0.85, 1}
	sun.Shadows = core.ShadowsSoft
	sun.ShadowStrength = 0.8
	sun.ShadowBias = 0.05
	sun.ShadowNearPlane = 0.2
	a.Scene.AddLight(sun)

	for i := range 6 {
		lamp := core.NewVisibleLight(core.LightTypeSpot, mgl32.Vec3{}, mgl32.Vec3{0, -1, 0})
		lamp.FinalColor = mgl32.Vec4{0.4 + 0.1*float32(i), 0.6, 1, 1}
		lamp.Range = 12
		lamp.SpotAngle = 50
		lamp.Shadows = core.ShadowsHard
		lamp.ShadowStrength = 1
		lamp.ShadowBias = 0.02
		a.orbiting = append(a.orbiting, len(a.Scene.Lights))
		a.Scene.AddLight(lamp)
	}
	for i := range 4 {
		fill := core.NewVisibleLight(core.LightTypePoint, mgl32.Vec3{float32(i*4 - 6), 1, 4}, mgl32.Vec3{0, 0, 1})
		fill.Range = 6
		a.Scene.AddLight(fill)
	}

	a.Scene.AddCaster(
		core.AABB{Min: mgl32.Vec3{-1, 0, -1}, Max: mgl32.Vec3{1, 6, 1}},
		core.AABB{Min: mgl32.Vec3{-20, -0.5, -20}, Max: mgl32.Vec3{20, 0, 20}},
	)
	a.animate(0)
}

// animate moves the spot lamps around the pillar.
func (a *App) animate(t float64) {
	for n, idx := range a.orbiting {
		angle := t*0.5 + float64(n)*2*math.Pi/float64(len(a.orbiting))
		pos := mgl32.Vec3{float32(6 * math.Cos(angle)), 8, float32(6 * math.Sin(angle))}
		tr := core.NewTransform()
		tr.Position = pos
		tr.LookAlong(mgl32.Vec3{}.Sub(pos).Normalize())
		a.Scene.Lights[idx].LocalToWorld = tr.ObjectToWorld()
	}
}

func (a *App) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	a.Config.Width = uint32(w)
	a.Config.Height = uint32(h)
	a.Surface.Configure(a.Adapter, a.Device, a.Config)
	if err := a.setupDepth(w, h); err != nil {
		a.Logger.Errorf("Resize failed: %v", err)
	}
	a.Camera.Aspect = float32(w) / float32(h)
}

func (a *App) Update() {
	a.animate(glfw.GetTime() - a.startTime)
}

func (a *App) Render() {
	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		a.Logger.Errorf("GetCurrentTexture failed: %v", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		a.Logger.Errorf("CreateView failed: %v", err)
		return
	}
	defer view.Release()

	a.Context.BeginFrame(view, a.Config.Width, a.Config.Height)
	a.Pipeline.Render(a.Context, a.Camera)
	if err := a.Context.Err(); err != nil {
		a.Logger.Errorf("Frame failed: %v", err)
	}
	a.Surface.Present()

	a.frame++
	if a.StatsEvery > 0 && a.frame%a.StatsEvery == 0 {
		a.Logger.Infof("frame %d, %d live atlases\n%s", a.frame, a.Allocator.Live(), a.Pipeline.Profiler().StatsString())
	}
}

func (a *App) Release() {
	if a.Context != nil {
		a.Context.Release()
	}
	if a.Drawer != nil {
		a.Drawer.Release()
	}
	if a.Allocator != nil {
		a.Allocator.Release()
	}
	if a.DepthView != nil {
		a.DepthView.Release()
	}
	if a.Depth != nil {
		a.Depth.Release()
	}
}
