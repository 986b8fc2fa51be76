package dithered

import (
	"testing"

	"github.com/gekko3d/dithered/rt/core"
	"github.com/gekko3d/dithered/rt/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_RendersScene(t *testing.T) {
	s := scene.NewScene()

	sun := core.NewVisibleLight(core.LightTypeDirectional, mgl32.Vec3{0, 50, 0}, mgl32.Vec3{0.3, -1, -0.2})
	sun.Shadows = core.ShadowsHard
	sun.ShadowStrength = 1

	lamp := core.NewVisibleLight(core.LightTypeSpot, mgl32.Vec3{0, 5, -10}, mgl32.Vec3{0, -1, 0})
	lamp.Range = 8
	lamp.SpotAngle = 45
	lamp.Shadows = core.ShadowsSoft
	lamp.ShadowStrength = 0.5

	unlit := core.NewVisibleLight(core.LightTypePoint, mgl32.Vec3{2, 1, -6}, mgl32.Vec3{0, 0, 1})
	hidden := core.NewVisibleLight(core.LightTypePoint, mgl32.Vec3{0, 0, 300}, mgl32.Vec3{0, 0, 1})
	hidden.Range = 2

	s.AddLight(sun, lamp, unlit, hidden)
	s.AddCaster(core.AABB{Min: mgl32.Vec3{-1, 0, -11}, Max: mgl32.Vec3{1, 2, -9}})

	allocator := &fakeAllocator{}
	ctx := newRecordingContext()
	p, err := NewPipelineBuilder().
		UseHost(s, allocator).
		UseShadowMapSize(ShadowMap2048).
		Build()
	require.NoError(t, err)

	cam := core.NewCamera()
	cam.Transform.LookAlong(mgl32.Vec3{0, 0, -1})

	p.Render(ctx, cam)

	arrays := p.Arrays()
	assert.Equal(t, 3, arrays.Count, "the point light behind the camera is culled")
	assert.Equal(t, 2, arrays.ShadowTileCount)
	assert.Equal(t, 2, p.Plan().Split)
	assert.Equal(t, 1024, p.Plan().TileSize)

	assert.Equal(t, []int{0, 1}, ctx.shadowDrawIndices())
	assert.True(t, ctx.keywords[core.KeywordShadowsHard])
	assert.True(t, ctx.keywords[core.KeywordShadowsSoft])

	assert.Equal(t, float32(1), arrays.ShadowData[0].Z())
	assert.Equal(t, mgl32.Vec4{0.5, 1, 0, 0}, arrays.ShadowData[1])
	assert.Equal(t, mgl32.Vec4{}, arrays.ShadowData[2])

	require.Len(t, allocator.acquired, 1)
	assert.Equal(t, 2048, allocator.acquired[0].size)
	assert.Equal(t, 1, allocator.acquired[0].released)
	assert.Equal(t, StateIdle, p.State())
	assert.Equal(t, 1, p.Profiler().Counts[CountCameras])

	// The lamp's own frustum contains the caster's top face.
	lampMatrix := p.WorldToShadowMatrices()[1]
	uv := lampMatrix.Mul4x1(mgl32.Vec4{0, 2, -10, 1})
	uv = uv.Mul(1 / uv.W())
	assert.GreaterOrEqual(t, uv.X(), float32(0.5))
	assert.LessOrEqual(t, uv.X(), float32(1))
	assert.GreaterOrEqual(t, uv.Y(), float32(0))
	assert.LessOrEqual(t, uv.Y(), float32(0.5))
}
