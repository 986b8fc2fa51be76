package gpu

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAtlasAllocator_NoDevice(t *testing.T) {
	alloc, err := NewAtlasAllocator(nil, false)
	assert.Nil(t, alloc)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestAcquireAtlas_RejectsBadInput(t *testing.T) {
	alloc := &AtlasAllocator{}

	_, err := alloc.AcquireAtlas(0)
	assert.Error(t, err)

	_, err = alloc.AcquireAtlas(1024)
	assert.ErrorIs(t, err, ErrNoDevice)
	assert.Zero(t, alloc.Live())
}

func TestShadowAtlas_ReleaseIsIdempotent(t *testing.T) {
	owner := &AtlasAllocator{}
	atlas := &ShadowAtlas{size: 512, owner: owner}

	require.NotPanics(t, func() {
		atlas.Release()
		atlas.Release()
	})
	assert.Equal(t, 512, atlas.Size())
	assert.Zero(t, owner.Live())

	require.NotPanics(t, owner.Release)
}

func TestAtlasDescriptor(t *testing.T) {
	d := atlasDescriptor(2048)
	assert.Equal(t, wgpu.Extent3D{Width: 2048, Height: 2048, DepthOrArrayLayers: 1}, d.Size)
	assert.Equal(t, wgpu.TextureFormatDepth32Float, d.Format)
	assert.Equal(t, wgpu.TextureDimension2D, d.Dimension)
	assert.NotZero(t, d.Usage&wgpu.TextureUsageRenderAttachment)
	assert.NotZero(t, d.Usage&wgpu.TextureUsageTextureBinding)
	assert.Equal(t, uint32(1), d.MipLevelCount)
}

func TestComparisonSamplerDescriptor(t *testing.T) {
	d := comparisonSamplerDescriptor(false)
	assert.Equal(t, wgpu.CompareFunctionLess, d.Compare)
	assert.Equal(t, wgpu.FilterModeLinear, d.MagFilter)
	assert.Equal(t, wgpu.FilterModeLinear, d.MinFilter)
	assert.Equal(t, wgpu.AddressModeClampToEdge, d.AddressModeU)
	assert.Equal(t, wgpu.AddressModeClampToEdge, d.AddressModeV)
}

func TestComparisonSamplerDescriptor_ReversedZ(t *testing.T) {
	d := comparisonSamplerDescriptor(true)
	assert.Equal(t, wgpu.CompareFunctionGreater, d.Compare)
}
