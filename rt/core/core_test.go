package core

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closeEnough(a, b, epsilon float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= epsilon
}

func TestTransformComposition(t *testing.T) {
	tr := NewTransform()
	tr.Position = mgl32.Vec3{10, 20, 30}
	tr.Scale = mgl32.Vec3{2, 2, 2}
	tr.LookAlong(mgl32.Vec3{1, 1, 0})

	// Local +Z is scaled, rotated onto the look direction, then translated.
	got := tr.ObjectToWorld().Mul4x1(mgl32.Vec4{0, 0, 1, 1})
	want := mgl32.Vec3{10 + math.Sqrt2, 20 + math.Sqrt2, 30}
	for i := 0; i < 3; i++ {
		if !closeEnough(got[i], want[i], 0.001) {
			t.Errorf("component %d should be %f, got %f", i, want[i], got[i])
		}
	}
	if !closeEnough(got[3], 1, 0.001) {
		t.Errorf("w should stay 1, got %f", got[3])
	}
}

func TestTransformLookAlong(t *testing.T) {
	tr := NewTransform()
	tr.LookAlong(mgl32.Vec3{0, -3, 0})
	assert.True(t, tr.Forward().ApproxEqualThreshold(mgl32.Vec3{0, -1, 0}, 1e-4), "forward = %v", tr.Forward())

	before := tr.Rotation
	tr.LookAlong(mgl32.Vec3{})
	assert.Equal(t, before, tr.Rotation, "zero direction must leave the rotation untouched")
}

func TestVisibleLightAxes(t *testing.T) {
	l := NewVisibleLight(LightTypeSpot, mgl32.Vec3{1, 2, 3}, mgl32.Vec3{0, 0, -5})

	assert.True(t, l.Position().ApproxEqualThreshold(mgl32.Vec3{1, 2, 3}, 1e-4))
	assert.True(t, l.Forward().ApproxEqualThreshold(mgl32.Vec3{0, 0, -1}, 1e-4), "forward = %v", l.Forward())

	var degenerate VisibleLight
	assert.Equal(t, mgl32.Vec3{}, degenerate.Forward())
}

func TestAABBUnion(t *testing.T) {
	a := AABB{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{1, 1, 1}}
	b := AABB{Min: mgl32.Vec3{-1, 2, 0}, Max: mgl32.Vec3{0, 3, 4}}

	u := a.Union(b)
	assert.Equal(t, mgl32.Vec3{-1, 0, 0}, u.Min)
	assert.Equal(t, mgl32.Vec3{1, 3, 4}, u.Max)

	assert.Equal(t, a, EmptyAABB().Union(a))
	assert.Equal(t, a, a.Union(EmptyAABB()))
	assert.True(t, EmptyAABB().IsEmpty())
}

func TestAABBIntersectsSphere(t *testing.T) {
	box := AABB{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{2, 2, 2}}
	assert.True(t, box.IntersectsSphere(mgl32.Vec3{1, 1, 1}, 0.1))
	assert.True(t, box.IntersectsSphere(mgl32.Vec3{4, 1, 1}, 2))
	assert.False(t, box.IntersectsSphere(mgl32.Vec3{4, 1, 1}, 1.9))
	assert.False(t, EmptyAABB().IntersectsSphere(mgl32.Vec3{}, 100))
}

func TestRectInset(t *testing.T) {
	r := Rect{X: 256, Y: 512, Width: 256, Height: 256}.Inset(4)
	assert.Equal(t, Rect{X: 260, Y: 516, Width: 248, Height: 248}, r)
	assert.False(t, r.Empty())
	assert.True(t, Rect{Width: 8, Height: 8}.Inset(4).Empty())
}

func TestPropertyIDs(t *testing.T) {
	p := PropertyIDs()
	require.Same(t, p, PropertyIDs(), "table must be built once")

	assert.Equal(t, ShadowMap, p.Name(p.ShadowMap))
	assert.Equal(t, VisibleLightColors, p.Name(p.VisibleLightColors))
	assert.Equal(t, "", p.Name(PropertyID(-1)))
	assert.Equal(t, "", p.Name(PropertyID(1000)))

	seen := map[PropertyID]bool{}
	for _, id := range []PropertyID{
		p.VisibleLightColors, p.VisibleLightDirectionsOrPositions, p.VisibleLightAttenuations,
		p.VisibleLightSpotDirections, p.LightIndicesOffsetAndCount, p.ShadowMap,
		p.WorldToShadowMatrices, p.ShadowBias, p.ShadowData, p.ShadowMapSize, p.GlobalShadowData,
	} {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
}

func TestCameraIDsAreUnique(t *testing.T) {
	assert.NotEqual(t, NewCamera().ID, NewCamera().ID)
}

func TestCameraIDShort(t *testing.T) {
	assert.Equal(t, "0f1e2d3c", CameraID("0f1e2d3c-aaaa-bbbb-cccc-000000000000").Short())
	assert.Equal(t, "main", CameraID("main").Short())
	assert.Equal(t, "scene-view", CameraTypeSceneView.String())
	assert.Equal(t, "unknown", CameraType(9).String())
}
