package gpu

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/dithered/rt/core"
)

var ErrNoDevice = errors.New("gpu: no device")

// ShadowAtlas is a square Depth32Float texture sampled by shading through
// the allocator's comparison sampler.
type ShadowAtlas struct {
	Texture *wgpu.Texture
	View    *wgpu.TextureView
	Sampler *wgpu.Sampler

	size  int
	owner *AtlasAllocator
}

func (a *ShadowAtlas) Size() int {
	return a.size
}

// Release frees the texture and its view. Calling it twice is harmless.
func (a *ShadowAtlas) Release() {
	if a.View != nil {
		a.View.Release()
		a.View = nil
	}
	if a.Texture != nil {
		a.Texture.Release()
		a.Texture = nil
		if a.owner != nil {
			a.owner.live--
		}
	}
}

// AtlasAllocator creates one shadow atlas per camera render on a wgpu device.
type AtlasAllocator struct {
	Device  *wgpu.Device
	Sampler *wgpu.Sampler

	live int
}

var _ core.AtlasAllocator = (*AtlasAllocator)(nil)

// NewAtlasAllocator creates the shared comparison sampler. With reversedZ
// the sampler passes when the stored depth is nearer, i.e. greater.
func NewAtlasAllocator(device *wgpu.Device, reversedZ bool) (*AtlasAllocator, error) {
	if device == nil {
		return nil, ErrNoDevice
	}
	sampler, err := device.CreateSampler(comparisonSamplerDescriptor(reversedZ))
	if err != nil {
		return nil, fmt.Errorf("failed to create shadow comparison sampler: %w", err)
	}
	return &AtlasAllocator{Device: device, Sampler: sampler}, nil
}

// Live is the number of atlases acquired and not yet released.
func (m *AtlasAllocator) Live() int {
	return m.live
}

func (m *AtlasAllocator) AcquireAtlas(size int) (core.Atlas, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid shadow atlas size %d", size)
	}
	if m.Device == nil {
		return nil, ErrNoDevice
	}

	tex, err := m.Device.CreateTexture(atlasDescriptor(size))
	if err != nil {
		return nil, fmt.Errorf("failed to create shadow atlas texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to create shadow atlas view: %w", err)
	}

	m.live++
	return &ShadowAtlas{
		Texture: tex,
		View:    view,
		Sampler: m.Sampler,
		size:    size,
		owner:   m,
	}, nil
}

// Release frees the shared sampler. Atlases still alive stay valid until
// released themselves.
func (m *AtlasAllocator) Release() {
	if m.Sampler != nil {
		m.Sampler.Release()
		m.Sampler = nil
	}
}

func atlasDescriptor(size int) *wgpu.TextureDescriptor {
	return &wgpu.TextureDescriptor{
		Label: "Shadow Atlas",
		Size: wgpu.Extent3D{
			Width:              uint32(size),
			Height:             uint32(size),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	}
}

// Bilinear comparison with clamped edges; tiles are kept apart by the
// scissor border, not by the sampler.
func comparisonSamplerDescriptor(reversedZ bool) *wgpu.SamplerDescriptor {
	compare := wgpu.CompareFunctionLess
	if reversedZ {
		compare = wgpu.CompareFunctionGreater
	}
	return &wgpu.SamplerDescriptor{
		Label:         "Shadow Atlas Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		Compare:       compare,
		MaxAnisotropy: 1,
	}
}
