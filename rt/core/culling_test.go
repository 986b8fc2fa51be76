package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestFrustumCulling(t *testing.T) {
	// Camera at origin looking down -Z, 90 deg FOV, near 1, far 100.
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1.0, 1.0, 100.0)
	view := mgl32.LookAtV(
		mgl32.Vec3{0, 0, 0},
		mgl32.Vec3{0, 0, -1},
		mgl32.Vec3{0, 1, 0},
	)
	planes := ExtractFrustum(proj.Mul4(view))

	tests := []struct {
		name     string
		aabbMin  mgl32.Vec3
		aabbMax  mgl32.Vec3
		expected bool
	}{
		{"Inside (center)", mgl32.Vec3{-1, -1, -10}, mgl32.Vec3{1, 1, -5}, true},
		{"Outside (Left)", mgl32.Vec3{-20, -1, -10}, mgl32.Vec3{-15, 1, -5}, false},
		{"Outside (Right)", mgl32.Vec3{15, -1, -10}, mgl32.Vec3{20, 1, -5}, false},
		{"Outside (Behind/Near)", mgl32.Vec3{-1, -1, 2}, mgl32.Vec3{1, 1, 5}, false},
		{"Outside (Far)", mgl32.Vec3{-1, -1, -200}, mgl32.Vec3{1, 1, -150}, false},
		{"Intersecting (Left Plane)", mgl32.Vec3{-15, -1, -10}, mgl32.Vec3{-5, 1, -5}, true},
		{"Encompassing (Huge box)", mgl32.Vec3{-1000, -1000, -1000}, mgl32.Vec3{1000, 1000, 1000}, true},
	}

	for _, tc := range tests {
		visible := AABBInFrustum(AABB{Min: tc.aabbMin, Max: tc.aabbMax}, planes)
		if visible != tc.expected {
			t.Errorf("Test %s failed: expected %v, got %v", tc.name, tc.expected, visible)
			center := tc.aabbMin.Add(tc.aabbMax).Mul(0.5)
			for i, p := range planes {
				t.Logf("  P%d: %v, Dist(Center)=%f", i, p, p.Dot(center.Vec4(1.0)))
			}
		}
	}
}

func TestFrustumCulling_EmptyBoxIsNeverVisible(t *testing.T) {
	planes := ExtractFrustum(mgl32.Ortho(-10, 10, -10, 10, 0, 20))
	if AABBInFrustum(EmptyAABB(), planes) {
		t.Error("empty AABB should not be visible")
	}
}

func TestSphereInFrustum(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1.0, 1.0, 100.0)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0})
	planes := ExtractFrustum(proj.Mul4(view))

	if !SphereInFrustum(mgl32.Vec3{0, 0, -10}, 1, planes) {
		t.Error("sphere in front of the camera should be visible")
	}
	if SphereInFrustum(mgl32.Vec3{0, 0, 10}, 1, planes) {
		t.Error("sphere behind the camera should not be visible")
	}
	// Center behind the near plane but radius reaching into the frustum.
	if !SphereInFrustum(mgl32.Vec3{0, 0, 1}, 5, planes) {
		t.Error("sphere straddling the near plane should be visible")
	}
}

func TestCameraFrustumMatchesViewDirection(t *testing.T) {
	cam := NewCamera()
	cam.Transform.Position = mgl32.Vec3{0, 0, 0}
	cam.Transform.LookAlong(mgl32.Vec3{1, 0, 0})

	planes := ExtractFrustum(cam.GetProjectionMatrix().Mul4(cam.GetViewMatrix()))

	ahead := AABB{Min: mgl32.Vec3{9, -1, -1}, Max: mgl32.Vec3{11, 1, 1}}
	behind := AABB{Min: mgl32.Vec3{-11, -1, -1}, Max: mgl32.Vec3{-9, 1, 1}}
	if !AABBInFrustum(ahead, planes) {
		t.Error("box along the camera forward axis should be visible")
	}
	if AABBInFrustum(behind, planes) {
		t.Error("box behind the camera should be culled")
	}
}

func TestCameraHasValidFrustum(t *testing.T) {
	cam := NewCamera()
	if !cam.HasValidFrustum() {
		t.Fatal("default camera should have a valid frustum")
	}

	cam.Far = cam.Near
	if cam.HasValidFrustum() {
		t.Error("far == near should be rejected")
	}

	cam = NewCamera()
	cam.FovY = 0
	if cam.HasValidFrustum() {
		t.Error("zero field of view should be rejected")
	}

	var nilCam *Camera
	if nilCam.HasValidFrustum() {
		t.Error("nil camera should be rejected")
	}
}
